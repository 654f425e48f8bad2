// Package config loads a verification suite description and builds the
// verifier it describes.
//
// A suite file looks like:
//
//	worker: combiner_worker
//	platform: rcc
//	reference: combiner
//	generator: gen_ramp
//	test_log: logs/test_log.json
//	results_db: logs/results.sqlite3
//	scope_depth: 1
//	ignore: ["*.log"]
//	control_port: 0
//	inputs:
//	  - {name: a, protocol: short_timed_sample}
//	  - {name: b, protocol: short_timed_sample}
//	outputs:
//	  - name: sum
//	    protocol: short_timed_sample
//	    comparison:
//	      method: bounded
//	      bound: 2
//
// Environment variables, also read from a .env file, override the file:
// STREAMCHECK_WORKER, STREAMCHECK_PLATFORM, STREAMCHECK_TEST_LOG,
// STREAMCHECK_RESULTS_DB and STREAMCHECK_SCOPE_DEPTH.
package config

import (
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sarchlab/streamcheck/codec"
	"github.com/sarchlab/streamcheck/compare"
	"gopkg.in/yaml.v3"
)

// Environment variables that override suite values.
const (
	EnvWorker     = "STREAMCHECK_WORKER"
	EnvPlatform   = "STREAMCHECK_PLATFORM"
	EnvTestLog    = "STREAMCHECK_TEST_LOG"
	EnvResultsDB  = "STREAMCHECK_RESULTS_DB"
	EnvScopeDepth = "STREAMCHECK_SCOPE_DEPTH"
)

// Port declares the protocol of one port.
type Port struct {
	Name     string `yaml:"name"`
	Protocol string `yaml:"protocol"`
}

// Comparison selects the comparison method of an output port.
type Comparison struct {
	Method         string `yaml:"method"`
	compare.Params `yaml:",inline"`
}

// UnmarshalYAML starts from the default parameters so that a suite only
// lists the ones it changes.
func (c *Comparison) UnmarshalYAML(node *yaml.Node) error {
	type plain Comparison

	p := plain{Method: compare.MethodEqual, Params: compare.DefaultParams()}
	if err := node.Decode(&p); err != nil {
		return err
	}

	*c = Comparison(p)

	return nil
}

// Comparator creates the configured comparator.
func (c Comparison) Comparator() (compare.Comparator, error) {
	return compare.New(c.Method, c.Params)
}

// OutputPort declares the protocol and comparison of an output port.
type OutputPort struct {
	Port       `yaml:",inline"`
	Comparison Comparison `yaml:"comparison"`
}

// Suite describes how the outputs of one worker are verified.
type Suite struct {
	Worker    string         `yaml:"worker"`
	Platform  string         `yaml:"platform"`
	Reference string         `yaml:"reference"`
	Generator string         `yaml:"generator"`
	Settings  map[string]any `yaml:"settings"`

	Inputs  []Port       `yaml:"inputs"`
	Outputs []OutputPort `yaml:"outputs"`

	TestLog    string   `yaml:"test_log"`
	ResultsDB  string   `yaml:"results_db"`
	ScopeDepth *int     `yaml:"scope_depth"`
	Ignore     []string `yaml:"ignore"`

	// ControlPort overrides the input port whose control messages are
	// passed through by the default handlers.
	ControlPort *int `yaml:"control_port"`
}

// Load reads a suite file.
func Load(path string) (*Suite, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read suite")
	}

	s, err := Parse(raw)
	if err != nil {
		return nil, errors.WithMessage(err, path)
	}

	return s, nil
}

// Parse decodes a suite document.
func Parse(raw []byte) (*Suite, error) {
	var s Suite
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, errors.Wrap(err, "parse suite")
	}

	s.applyDefaults()

	return &s, nil
}

func (s *Suite) applyDefaults() {
	for i := range s.Outputs {
		c := &s.Outputs[i].Comparison
		if c.Method == "" {
			c.Method = compare.MethodEqual
			c.Params = compare.DefaultParams()
		}
	}
}

// Validate checks that all protocol and comparison method names exist.
func (s *Suite) Validate() error {
	if s.Reference == "" {
		return errors.New("reference implementation is not set")
	}

	if len(s.Outputs) == 0 {
		return errors.New("suite declares no output port")
	}

	for _, p := range s.Inputs {
		if _, err := codec.Lookup(p.Protocol); err != nil {
			return errors.WithMessagef(err, "input %s", p.Name)
		}
	}

	for _, p := range s.Outputs {
		if _, err := codec.Lookup(p.Protocol); err != nil {
			return errors.WithMessagef(err, "output %s", p.Name)
		}

		if _, err := p.Comparison.Comparator(); err != nil {
			return errors.WithMessagef(err, "output %s", p.Name)
		}
	}

	if s.ControlPort != nil &&
		(*s.ControlPort < 0 || *s.ControlPort >= len(s.Inputs)) {
		return errors.Errorf("control_port %d is not an input port", *s.ControlPort)
	}

	if s.ScopeDepth != nil && *s.ScopeDepth < 0 {
		return errors.Errorf("negative scope_depth %d", *s.ScopeDepth)
	}

	return nil
}

// Env looks up an environment value.
type Env func(key string) (string, bool)

// LoadEnv returns an environment that prefers process variables and falls
// back to the values of the dotenv file. A missing dotenv file is not an
// error.
func LoadEnv(dotenvPath string) (Env, error) {
	file := map[string]string{}

	if dotenvPath != "" {
		values, err := godotenv.Read(dotenvPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, errors.Wrapf(err, "read %s", dotenvPath)
		default:
			file = values
		}
	}

	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}

		v, ok := file[key]

		return v, ok
	}, nil
}

// ApplyEnv overrides suite values with the environment.
func (s *Suite) ApplyEnv(env Env) error {
	overrides := []struct {
		key    string
		target *string
	}{
		{EnvWorker, &s.Worker},
		{EnvPlatform, &s.Platform},
		{EnvTestLog, &s.TestLog},
		{EnvResultsDB, &s.ResultsDB},
	}

	for _, o := range overrides {
		if v, ok := env(o.key); ok {
			*o.target = v
		}
	}

	if v, ok := env(EnvScopeDepth); ok {
		depth, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "%s", EnvScopeDepth)
		}

		s.ScopeDepth = &depth
	}

	return nil
}
