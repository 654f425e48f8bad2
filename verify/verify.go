// Package verify checks the output captured from an implementation-under-test
// against the output of a reference implementation.
//
// # Flow
//
// For one test and one output port, Verifier.Verify
//
//  1. locates the cached reference output next to the captured output,
//  2. regenerates all reference outputs when the cache is stale, by replaying
//     the input files through the reference implementation,
//  3. decodes both outputs through the Codec,
//  4. runs the comparator configured for the port, and
//  5. records the verdict in the Log and prints a report when it fails.
//
// # Staleness
//
// The reference output is regenerated when it does not exist, when the
// captured output is newer, or when any file in the scope directory is newer.
// The scope is an ancestor of the directory holding the captured output; see
// Builder.WithScopeDepth. Reference files themselves never make the cache
// stale.
//
// # Usage
//
//	v, err := verify.Builder{}.
//		WithImplementation(samples.NewPassthrough()).
//		WithInputProtocols("short_timed_sample").
//		WithOutputProtocols("short_timed_sample").
//		WithComparisonMethods("bounded").
//		WithLog(testLog).
//		WithWorker("my_worker").
//		Build()
//	passed, err := v.Verify("case01.02", inputs, "gen/case01.02.output.bin", "")
//
// Comparison failures are reported through the boolean result. The error is
// only set for configuration and I/O problems.
package verify

import (
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/pkg/errors"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/streamcheck/codec"
	"github.com/sarchlab/streamcheck/compare"
	"github.com/sarchlab/streamcheck/dispatch"
	"github.com/sarchlab/streamcheck/msg"
)

// Codec reads and writes message files.
type Codec interface {
	Read(path, protocol string) ([]msg.Message, error)
	Write(path, protocol string, msgs []msg.Message) error
}

// Log records verdicts.
type Log interface {
	RecordPass(worker, port, testCase, testSubcase string) error
	RecordFail(worker, port, testCase, testSubcase, reason string) error
}

// TestInfoRecorder is implemented by logs that also record how a test is
// generated and compared.
type TestInfoRecorder interface {
	SetTestInfo(testCase, testSubcase, generator, method string) error
}

// Builder can build verifiers.
type Builder struct {
	impl            dispatch.Implementation
	settings        dispatch.Settings
	inputProtocols  []string
	outputProtocols []string
	comparators     []compare.Comparator
	methods         []string
	codec           Codec
	log             Log
	worker          string
	generator       string
	scopeDepth      int
	scopeDepthSet   bool
	ignored         []string
	report          io.Writer
}

// WithImplementation sets the reference implementation.
func (b Builder) WithImplementation(impl dispatch.Implementation) Builder {
	b.impl = impl
	return b
}

// WithSettings sets the configuration handed to a reference implementation
// without input ports.
func (b Builder) WithSettings(settings dispatch.Settings) Builder {
	b.settings = settings
	return b
}

// WithInputProtocols sets one protocol name per input port.
func (b Builder) WithInputProtocols(protocols ...string) Builder {
	b.inputProtocols = slices.Clone(protocols)
	return b
}

// WithOutputProtocols sets one protocol name per output port.
func (b Builder) WithOutputProtocols(protocols ...string) Builder {
	b.outputProtocols = slices.Clone(protocols)
	return b
}

// WithComparators sets one comparator per output port.
func (b Builder) WithComparators(comparators ...compare.Comparator) Builder {
	b.comparators = slices.Clone(comparators)
	b.methods = nil
	return b
}

// WithComparisonMethods sets one comparison method name per output port.
// Each method is created with the default parameters.
func (b Builder) WithComparisonMethods(methods ...string) Builder {
	b.methods = slices.Clone(methods)
	b.comparators = nil
	return b
}

// WithCodec sets the codec used for all message files. The default is
// codec.FileCodec.
func (b Builder) WithCodec(c Codec) Builder {
	b.codec = c
	return b
}

// WithLog sets where verdicts are recorded.
func (b Builder) WithLog(l Log) Builder {
	b.log = l
	return b
}

// WithWorker sets the worker name verdicts are recorded under.
func (b Builder) WithWorker(worker string) Builder {
	b.worker = worker
	return b
}

// WithGenerator sets the generator name recorded with the test information.
func (b Builder) WithGenerator(generator string) Builder {
	b.generator = generator
	return b
}

// WithScopeDepth sets how many directories above the one holding the
// captured output the staleness scan starts. 0 scans the output directory
// itself. The default is 1.
func (b Builder) WithScopeDepth(depth int) Builder {
	b.scopeDepth = depth
	b.scopeDepthSet = true
	return b
}

// WithIgnoredPatterns excludes files whose base name matches any of the
// patterns from the staleness scan.
func (b Builder) WithIgnoredPatterns(patterns ...string) Builder {
	b.ignored = slices.Clone(patterns)
	return b
}

// WithReportWriter sets where failure reports are printed. The default is
// standard output.
func (b Builder) WithReportWriter(w io.Writer) Builder {
	b.report = w
	return b
}

// Build validates the configuration and creates a verifier.
func (b Builder) Build() (*Verifier, error) {
	if b.impl == nil {
		return nil, errors.New("reference implementation is not set")
	}

	inputs := b.impl.InputPorts()
	outputs := b.impl.OutputPorts()

	if len(b.inputProtocols) != len(inputs) {
		return nil, errors.Errorf(
			"%d input protocols given for %d input ports",
			len(b.inputProtocols), len(inputs))
	}

	if len(b.outputProtocols) != len(outputs) {
		return nil, errors.Errorf(
			"%d output protocols given for %d output ports",
			len(b.outputProtocols), len(outputs))
	}

	comparators, err := b.buildComparators(len(outputs))
	if err != nil {
		return nil, err
	}

	if !b.scopeDepthSet {
		b.scopeDepth = 1
	}

	if b.scopeDepth < 0 {
		return nil, errors.Errorf("negative scope depth %d", b.scopeDepth)
	}

	for _, p := range b.ignored {
		if _, err := matchAny([]string{p}, ""); err != nil {
			return nil, errors.Wrapf(err, "ignored pattern %q", p)
		}
	}

	engine, err := dispatch.EngineBuilder{}.WithSettings(b.settings).Build(b.impl)
	if err != nil {
		return nil, errors.WithMessage(err, "reference implementation")
	}

	v := &Verifier{
		HookableBase:    sim.NewHookableBase(),
		engine:          engine,
		inputProtocols:  b.inputProtocols,
		outputProtocols: b.outputProtocols,
		outputPorts:     outputs,
		comparators:     comparators,
		codec:           b.codec,
		log:             b.log,
		worker:          b.worker,
		generator:       b.generator,
		scopeDepth:      b.scopeDepth,
		ignored:         b.ignored,
		report:          b.report,
	}

	if v.codec == nil {
		v.codec = codec.FileCodec{}
	}

	if v.report == nil {
		v.report = os.Stdout
	}

	return v, nil
}

func (b Builder) buildComparators(numOutputs int) ([]compare.Comparator, error) {
	if b.comparators != nil {
		if len(b.comparators) != numOutputs {
			return nil, errors.Errorf("%d comparators given for %d output ports",
				len(b.comparators), numOutputs)
		}

		for i, c := range b.comparators {
			if c == nil {
				return nil, errors.Errorf("comparator %d is nil", i)
			}
		}

		return b.comparators, nil
	}

	if len(b.methods) != numOutputs {
		return nil, errors.Errorf("%d comparison methods given for %d output ports",
			len(b.methods), numOutputs)
	}

	comparators := make([]compare.Comparator, len(b.methods))
	for i, m := range b.methods {
		c, err := compare.New(m, compare.DefaultParams())
		if err != nil {
			return nil, err
		}

		comparators[i] = c
	}

	return comparators, nil
}

// Verifier compares captured implementation outputs against reference
// outputs.
type Verifier struct {
	*sim.HookableBase

	engine          *dispatch.Engine
	inputProtocols  []string
	outputProtocols []string
	outputPorts     []string
	comparators     []compare.Comparator
	codec           Codec
	log             Log
	worker          string
	generator       string
	scopeDepth      int
	ignored         []string
	report          io.Writer
}

// Engine returns the dispatch engine that drives the reference
// implementation.
func (v *Verifier) Engine() *dispatch.Engine {
	return v.engine
}

// OutputPorts returns the output port names of the reference implementation.
func (v *Verifier) OutputPorts() []string {
	return slices.Clone(v.outputPorts)
}

// Comparator returns the comparator of an output port.
func (v *Verifier) Comparator(port string) (compare.Comparator, error) {
	idx, err := v.portIndex(port)
	if err != nil {
		return nil, err
	}

	return v.comparators[idx], nil
}

// Verify compares the captured output of one port with the reference output
// and records the verdict. port may be empty when the reference
// implementation has a single output port.
func (v *Verifier) Verify(
	testID string,
	inputPaths []string,
	outputPath string,
	port string,
) (bool, error) {
	idx, err := v.portIndex(port)
	if err != nil {
		return false, err
	}
	portName := v.outputPorts[idx]

	refPath := ReferencePath(outputPath, portName)

	stale, err := v.IsStale(refPath, outputPath)
	if err != nil {
		return false, err
	}

	if stale {
		if err := v.Regenerate(inputPaths, outputPath, portName); err != nil {
			return false, err
		}
	}

	protocol := v.outputProtocols[idx]

	reference, err := v.codec.Read(refPath, protocol)
	if err != nil {
		return false, errors.WithMessage(err, "read reference output")
	}

	implementation, err := v.codec.Read(outputPath, protocol)
	if err != nil {
		return false, errors.WithMessage(err, "read implementation output")
	}

	cmp := v.comparators[idx]
	res := cmp.Same(reference, implementation)

	testCase, testSubcase := ParseTestID(testID)
	verdict := Verdict{
		ID:          sim.GetIDGenerator().Generate(),
		TestID:      testID,
		TestCase:    testCase,
		TestSubcase: testSubcase,
		Worker:      v.worker,
		Port:        portName,
		Method:      cmp.Name(),
		Result:      res,
		Regenerated: stale,
	}

	if err := v.record(verdict); err != nil {
		return res.Passed, err
	}

	if !res.Passed {
		WriteFailureReport(v.report, verdict, reference, implementation)
	}

	return res.Passed, nil
}

func (v *Verifier) portIndex(port string) (int, error) {
	if port == "" {
		if len(v.outputPorts) != 1 {
			return 0, errors.Errorf(
				"port must be selected, implementation has %d output ports",
				len(v.outputPorts))
		}

		return 0, nil
	}

	idx := slices.Index(v.outputPorts, port)
	if idx < 0 {
		return 0, errors.Errorf("unknown output port %q, ports are %v",
			port, v.outputPorts)
	}

	return idx, nil
}

func (v *Verifier) record(verdict Verdict) error {
	if len(v.Hooks()) > 0 {
		v.InvokeHook(sim.HookCtx{
			Domain: v,
			Pos:    HookPosVerdict,
			Item:   verdict,
		})
	}

	if verdict.Result.Passed {
		slog.Info("Verdict",
			"TestID", verdict.TestID, "Port", verdict.Port, "Passed", true)
	} else {
		slog.Warn("Verdict",
			"TestID", verdict.TestID, "Port", verdict.Port, "Passed", false,
			"Reason", verdict.Result.Reason)
	}

	if v.log == nil {
		return nil
	}

	if info, ok := v.log.(TestInfoRecorder); ok {
		err := info.SetTestInfo(verdict.TestCase, verdict.TestSubcase,
			v.generator, verdict.Method)
		if err != nil {
			return errors.WithMessage(err, "record test information")
		}
	}

	var err error
	if verdict.Result.Passed {
		err = v.log.RecordPass(verdict.Worker, verdict.Port,
			verdict.TestCase, verdict.TestSubcase)
	} else {
		err = v.log.RecordFail(verdict.Worker, verdict.Port,
			verdict.TestCase, verdict.TestSubcase, verdict.Result.Reason)
	}

	return errors.WithMessage(err, "record verdict")
}

// Regenerate replays the input files through the reference implementation
// and writes one reference file per output port next to outputPath, the
// captured output of port. The references of the other ports are named as if
// each port had its own captured file next to outputPath.
func (v *Verifier) Regenerate(inputPaths []string, outputPath, port string) error {
	idx, err := v.portIndex(port)
	if err != nil {
		return err
	}

	stem := referenceStem(outputPath, v.outputPorts[idx])

	if len(inputPaths) != len(v.inputProtocols) {
		return errors.Errorf("%d input files given for %d input ports",
			len(inputPaths), len(v.inputProtocols))
	}

	inputs := make([][]msg.Message, len(inputPaths))
	for i, path := range inputPaths {
		msgs, err := v.codec.Read(path, v.inputProtocols[i])
		if err != nil {
			return errors.WithMessagef(err, "read input port %d", i)
		}

		inputs[i] = msgs
	}

	v.engine.Reset()

	outputs, err := v.engine.Run(inputs)
	if err != nil {
		return errors.WithMessage(err, "run reference implementation")
	}

	paths := make([]string, len(v.outputPorts))
	for k, name := range v.outputPorts {
		paths[k] = stem + "." + name + ReferenceSuffix

		err := v.codec.Write(paths[k], v.outputProtocols[k], outputs[k])
		if err != nil {
			return errors.WithMessagef(err, "write reference output %s", name)
		}
	}

	if len(v.Hooks()) > 0 {
		v.InvokeHook(sim.HookCtx{
			Domain: v,
			Pos:    HookPosRegenerate,
			Item:   Regeneration{Inputs: slices.Clone(inputPaths), References: paths},
		})
	}

	slog.Debug("Regenerated reference outputs", "References", paths)

	return nil
}
