package verify

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sarchlab/streamcheck/util/logging"
)

// ReferenceSuffix ends the name of every cached reference output file.
const ReferenceSuffix = ".reference"

// ReferencePath returns the cached reference file of a port for a captured
// output file. The extension of the output file, a trailing ".output" and a
// trailing port name are replaced:
//
//	gen/case01.02.output.bin, port "out" -> gen/case01.02.out.reference
//	gen/case01.02.out.bin, port "out"    -> gen/case01.02.out.reference
func ReferencePath(outputPath, port string) string {
	return referenceStem(outputPath, port) + "." + port + ReferenceSuffix
}

// referenceStem is the part of a captured output path shared by the
// references of all ports of one test.
func referenceStem(outputPath, port string) string {
	stem := strings.TrimSuffix(outputPath, filepath.Ext(outputPath))
	stem = strings.TrimSuffix(stem, ".output")

	return strings.TrimSuffix(stem, "."+port)
}

// ScopeDir returns the directory scanned for changes newer than the cached
// reference.
func (v *Verifier) ScopeDir(outputPath string) string {
	dir := filepath.Dir(outputPath)
	for i := 0; i < v.scopeDepth; i++ {
		dir = filepath.Dir(dir)
	}

	return dir
}

var errNewer = errors.New("found newer file")

// IsStale reports whether the reference file must be regenerated before it
// can be compared with the output file.
func (v *Verifier) IsStale(referencePath, outputPath string) (bool, error) {
	ref, err := os.Stat(referencePath)
	if errors.Is(err, fs.ErrNotExist) {
		logging.Trace("Stale", "Reference", referencePath, "Cause", "missing")
		return true, nil
	}

	if err != nil {
		return false, errors.Wrap(err, "stat reference output")
	}

	out, err := os.Stat(outputPath)
	if err != nil {
		return false, errors.Wrap(err, "stat implementation output")
	}

	if out.ModTime().After(ref.ModTime()) {
		logging.Trace("Stale", "Reference", referencePath, "Cause", outputPath)
		return true, nil
	}

	newer, err := v.newestChange(v.ScopeDir(outputPath), ref.ModTime())
	if err != nil {
		return false, err
	}

	if newer != "" {
		logging.Trace("Stale", "Reference", referencePath, "Cause", newer)
		return true, nil
	}

	return false, nil
}

// newestChange returns the first file below root modified after since, or
// an empty string.
func (v *Verifier) newestChange(root string, since time.Time) (string, error) {
	found := ""

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || strings.HasSuffix(path, ReferenceSuffix) {
			return nil
		}

		ignored, err := matchAny(v.ignored, d.Name())
		if err != nil || ignored {
			return err
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		if info.ModTime().After(since) {
			found = path
			return errNewer
		}

		return nil
	})

	if err != nil && !errors.Is(err, errNewer) {
		return "", errors.Wrapf(err, "scan %s", root)
	}

	return found, nil
}

func matchAny(patterns []string, name string) (bool, error) {
	for _, p := range patterns {
		ok, err := filepath.Match(p, name)
		if err != nil {
			return false, err
		}

		if ok {
			return true, nil
		}
	}

	return false, nil
}
