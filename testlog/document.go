// Package testlog keeps the JSON record of which tests passed on which
// worker and platform.
//
// The document is keyed test case, then test subcase:
//
//	{
//	  "case01": {
//	    "01": {
//	      "generator": "...",
//	      "comparison_method": "bounded",
//	      "my_worker": {
//	        "rcc": {"result": {"output": "PASSED"}, "date": ..., ...}
//	      }
//	    }
//	  }
//	}
package testlog

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Verdicts stored per port.
const (
	Passed = "PASSED"
	Failed = "FAILED"
)

// Run is the latest outcome of a test on one worker and platform.
type Run struct {
	Result      map[string]string `json:"result"`
	Reasons     map[string]string `json:"reasons,omitempty"`
	Date        string            `json:"date"`
	Time        string            `json:"time"`
	Directories []string          `json:"directories"`
	CommitIDs   []string          `json:"commit_ids"`
	RunID       string            `json:"run_id,omitempty"`
}

// Entry holds everything recorded for one test case and subcase.
type Entry struct {
	Generator        string
	ComparisonMethod string

	// Workers maps worker name to platform name to run.
	Workers map[string]map[string]*Run
}

const (
	keyGenerator        = "generator"
	keyComparisonMethod = "comparison_method"
)

// ErrReservedWorker is returned when a worker name collides with the test
// information keys of an entry.
var ErrReservedWorker = errors.New("worker name is reserved")

// MarshalJSON writes the worker names next to the test information keys.
func (e Entry) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any, len(e.Workers)+2)
	for worker, platforms := range e.Workers {
		obj[worker] = platforms
	}

	if e.Generator != "" {
		obj[keyGenerator] = e.Generator
	}

	if e.ComparisonMethod != "" {
		obj[keyComparisonMethod] = e.ComparisonMethod
	}

	return json.Marshal(obj)
}

// UnmarshalJSON reads an entry written by MarshalJSON.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	*e = Entry{Workers: map[string]map[string]*Run{}}

	for key, raw := range obj {
		var err error

		switch key {
		case keyGenerator:
			err = json.Unmarshal(raw, &e.Generator)
		case keyComparisonMethod:
			err = json.Unmarshal(raw, &e.ComparisonMethod)
		default:
			platforms := map[string]*Run{}
			err = json.Unmarshal(raw, &platforms)
			e.Workers[key] = platforms
		}

		if err != nil {
			return errors.Wrapf(err, "entry key %q", key)
		}
	}

	return nil
}

// Document is the whole test log.
type Document map[string]map[string]*Entry

func (d Document) entry(testCase, testSubcase string) *Entry {
	subcases, ok := d[testCase]
	if !ok {
		subcases = map[string]*Entry{}
		d[testCase] = subcases
	}

	e, ok := subcases[testSubcase]
	if !ok {
		e = &Entry{Workers: map[string]map[string]*Run{}}
		subcases[testSubcase] = e
	}

	return e
}

func (e *Entry) run(worker, platform string) *Run {
	platforms, ok := e.Workers[worker]
	if !ok {
		platforms = map[string]*Run{}
		e.Workers[worker] = platforms
	}

	r, ok := platforms[platform]
	if !ok {
		r = &Run{Result: map[string]string{}}
		platforms[platform] = r
	}

	if r.Result == nil {
		r.Result = map[string]string{}
	}

	return r
}
