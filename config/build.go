package config

import (
	"io"
	"slices"

	"github.com/pkg/errors"
	"github.com/sarchlab/streamcheck/compare"
	"github.com/sarchlab/streamcheck/dispatch"
	"github.com/sarchlab/streamcheck/recorder"
	"github.com/sarchlab/streamcheck/samples"
	"github.com/sarchlab/streamcheck/testlog"
	"github.com/sarchlab/streamcheck/verify"
)

type settingsChecker interface {
	CheckSettings(settings dispatch.Settings) error
}

type controlPortSelector interface {
	SelectControlPort(port int)
}

// Session is a verifier together with the logs it records into.
type Session struct {
	Verifier *verify.Verifier
	TestLog  *testlog.Log
	Results  *recorder.SQLiteRecorder
}

// Close flushes and closes the results database.
func (s *Session) Close() error {
	if s.Results == nil {
		return nil
	}

	return s.Results.Close()
}

// Build creates the reference implementation, the logs and the verifier of
// the suite. Reports are written to report.
func (s *Suite) Build(report io.Writer) (*Session, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	impl, err := samples.New(s.Reference)
	if err != nil {
		return nil, err
	}

	if err := checkPorts("input", impl.InputPorts(), portNames(s.Inputs)); err != nil {
		return nil, err
	}

	outputNames := make([]string, len(s.Outputs))
	for i, p := range s.Outputs {
		outputNames[i] = p.Name
	}

	if err := checkPorts("output", impl.OutputPorts(), outputNames); err != nil {
		return nil, err
	}

	if c, ok := impl.(settingsChecker); ok {
		if err := c.CheckSettings(dispatch.Settings(s.Settings)); err != nil {
			return nil, errors.WithMessagef(err, "settings of %s", s.Reference)
		}
	}

	if s.ControlPort != nil {
		c, ok := impl.(controlPortSelector)
		if !ok {
			return nil, errors.Errorf("%s does not support control_port", s.Reference)
		}

		c.SelectControlPort(*s.ControlPort)
	}

	session := &Session{}
	var logs verify.MultiLog

	if s.TestLog != "" {
		session.TestLog, err = testlog.Builder{}.
			WithPath(s.TestLog).
			WithPlatform(s.Platform).
			WithDirectories(".").
			Build()
		if err != nil {
			return nil, err
		}

		logs = append(logs, session.TestLog)
	}

	if s.ResultsDB != "" {
		session.Results, err = recorder.NewSQLiteRecorder(s.ResultsDB, s.platform())
		if err != nil {
			return nil, err
		}

		logs = append(logs, session.Results)
	}

	b := verify.Builder{}.
		WithImplementation(impl).
		WithSettings(dispatch.Settings(s.Settings)).
		WithInputProtocols(protocols(s.Inputs)...).
		WithOutputProtocols(outputProtocols(s.Outputs)...).
		WithComparators(s.comparators()...).
		WithWorker(s.Worker).
		WithGenerator(s.Generator).
		WithIgnoredPatterns(s.Ignore...).
		WithReportWriter(report)

	if len(logs) > 0 {
		b = b.WithLog(logs)
	}

	if s.ScopeDepth != nil {
		b = b.WithScopeDepth(*s.ScopeDepth)
	}

	session.Verifier, err = b.Build()
	if err != nil {
		_ = session.Close()
		return nil, err
	}

	return session, nil
}

func (s *Suite) platform() string {
	if s.Platform == "" {
		return testlog.DefaultPlatform
	}

	return s.Platform
}

// comparators must only be called after Validate.
func (s *Suite) comparators() []compare.Comparator {
	cmps := make([]compare.Comparator, len(s.Outputs))
	for i, p := range s.Outputs {
		c, err := p.Comparison.Comparator()
		if err != nil {
			panic(err)
		}

		cmps[i] = c
	}

	return cmps
}

func checkPorts(kind string, declared, configured []string) error {
	if !slices.Equal(declared, configured) {
		return errors.Errorf("%s ports %v do not match the implementation's %v",
			kind, configured, declared)
	}

	return nil
}

func portNames(ports []Port) []string {
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.Name
	}

	return names
}

func protocols(ports []Port) []string {
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.Protocol
	}

	return names
}

func outputProtocols(ports []OutputPort) []string {
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.Protocol
	}

	return names
}
