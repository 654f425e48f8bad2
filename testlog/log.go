package testlog

import (
	"encoding/json"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
	"github.com/pkg/errors"
	"github.com/rs/xid"
)

// DefaultPlatform is the platform name used when none is configured.
const DefaultPlatform = "unspecified"

// Builder can build test logs.
type Builder struct {
	path        string
	platform    string
	directories []string
	now         func() time.Time
	commitID    func(dir string) string
}

// WithPath sets the JSON file the log is loaded from and saved to.
func (b Builder) WithPath(path string) Builder {
	b.path = path
	return b
}

// WithPlatform sets the platform the results are recorded under.
func (b Builder) WithPlatform(platform string) Builder {
	b.platform = platform
	return b
}

// WithDirectories sets the directories whose git commits are recorded with
// every result.
func (b Builder) WithDirectories(dirs ...string) Builder {
	b.directories = append([]string{}, dirs...)
	return b
}

// WithClock replaces the wall clock.
func (b Builder) WithClock(now func() time.Time) Builder {
	b.now = now
	return b
}

// WithCommitLookup replaces the git commit lookup.
func (b Builder) WithCommitLookup(f func(dir string) string) Builder {
	b.commitID = f
	return b
}

// Build loads the existing log file, if any, and returns the log.
func (b Builder) Build() (*Log, error) {
	if b.path == "" {
		return nil, errors.New("test log path is not set")
	}

	if b.platform == "" {
		b.platform = DefaultPlatform
	}

	if b.now == nil {
		b.now = time.Now
	}

	if b.commitID == nil {
		b.commitID = GitCommit
	}

	l := &Log{
		path:        b.path,
		platform:    b.platform,
		now:         b.now,
		directories: make([]string, len(b.directories)),
		commitIDs:   make([]string, len(b.directories)),
		runID:       xid.New().String(),
		doc:         Document{},
	}

	for i, dir := range b.directories {
		abs, err := filepath.Abs(dir)
		if err != nil {
			abs = dir
		}

		l.directories[i] = abs
		l.commitIDs[i] = b.commitID(abs)
	}

	if err := l.load(); err != nil {
		return nil, err
	}

	return l, nil
}

// Log records verdicts in a JSON document. Every record call saves the
// document so that a crash loses no result.
type Log struct {
	path        string
	platform    string
	directories []string
	commitIDs   []string
	runID       string
	now         func() time.Time
	doc         Document
}

func (l *Log) load() error {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err != nil {
		return errors.Wrap(err, "read test log")
	}

	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, &l.doc); err != nil {
		return errors.Wrapf(err, "parse test log %s", l.path)
	}

	return nil
}

// Path returns the file the log is saved to.
func (l *Log) Path() string {
	return l.path
}

// RunID identifies the process that recorded a run.
func (l *Log) RunID() string {
	return l.runID
}

// Entry returns a copy of the recorded entry of a test.
func (l *Log) Entry(testCase, testSubcase string) (Entry, bool) {
	e, ok := l.doc[testCase][testSubcase]
	if !ok {
		return Entry{}, false
	}

	return *e, true
}

// SetTestInfo records how the input of a test was generated and how the
// outputs are compared.
func (l *Log) SetTestInfo(testCase, testSubcase, generator, method string) error {
	e := l.doc.entry(testCase, testSubcase)
	e.Generator = generator
	e.ComparisonMethod = method

	return l.Save()
}

// RecordPass records that the port passed the test.
func (l *Log) RecordPass(worker, port, testCase, testSubcase string) error {
	return l.record(worker, port, testCase, testSubcase, Passed, "")
}

// RecordFail records that the port failed the test.
func (l *Log) RecordFail(worker, port, testCase, testSubcase, reason string) error {
	return l.record(worker, port, testCase, testSubcase, Failed, reason)
}

func (l *Log) record(
	worker, port, testCase, testSubcase, verdict, reason string,
) error {
	if worker == keyGenerator || worker == keyComparisonMethod {
		return errors.Wrapf(ErrReservedWorker, "%q", worker)
	}

	r := l.doc.entry(testCase, testSubcase).run(worker, l.platform)

	now := l.now()
	r.Result[port] = verdict
	r.Date = now.Format("2006-01-02")
	r.Time = now.Format("15:04:05")
	r.Directories = append([]string{}, l.directories...)
	r.CommitIDs = append([]string{}, l.commitIDs...)
	r.RunID = l.runID

	if reason != "" {
		if r.Reasons == nil {
			r.Reasons = map[string]string{}
		}
		r.Reasons[port] = reason
	} else {
		delete(r.Reasons, port)
	}

	return l.Save()
}

// Save writes the document as canonical JSON.
func (l *Log) Save() error {
	raw, err := json.Marshal(l.doc)
	if err != nil {
		return errors.Wrap(err, "encode test log")
	}

	canonical, err := jsoncanonicalizer.Transform(raw)
	if err != nil {
		return errors.Wrap(err, "canonicalize test log")
	}

	if dir := filepath.Dir(l.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "create test log directory")
		}
	}

	if err := os.WriteFile(l.path, append(canonical, '\n'), 0o644); err != nil {
		return errors.Wrap(err, "write test log")
	}

	return nil
}

// GitCommit returns the commit checked out in dir, or an empty string when
// dir is not inside a git repository.
func GitCommit(dir string) string {
	out, err := exec.Command("git", "-C", dir, "rev-parse", "HEAD").Output()
	if err != nil {
		slog.Debug("no git commit", "Dir", dir, "Error", err)
		return ""
	}

	return strings.TrimSpace(string(out))
}
