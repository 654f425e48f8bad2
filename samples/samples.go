// Package samples provides small reference implementations that can be
// driven by the dispatch engine and selected by name from the command line.
package samples

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/sarchlab/streamcheck/dispatch"
)

// ErrUnknownImplementation is returned by New for unregistered names.
var ErrUnknownImplementation = errors.New("unknown reference implementation")

var registry = map[string]func() dispatch.Implementation{
	"passthrough":     func() dispatch.Implementation { return NewPassthrough() },
	"combiner":        func() dispatch.Implementation { return NewCombiner() },
	"constant_source": func() dispatch.Implementation { return NewConstantSource() },
}

// New creates the reference implementation registered under name.
func New(name string) (dispatch.Implementation, error) {
	f, ok := registry[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownImplementation, "%q", name)
	}

	return f(), nil
}

// Names lists the registered implementation names.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}

	sort.Strings(names)

	return names
}

// Passthrough forwards every message from its input to its output.
type Passthrough struct {
	dispatch.Base
}

// NewPassthrough creates a passthrough with one input and one output port.
func NewPassthrough() *Passthrough {
	return &Passthrough{Base: dispatch.Base{
		InputNames:  []string{"input"},
		OutputNames: []string{"output"},
	}}
}

// Reset does nothing, a passthrough has no state.
func (p *Passthrough) Reset() {}

// Sample forwards the sample message.
func (p *Passthrough) Sample(in dispatch.Args) dispatch.Outputs {
	return p.PassThrough(in)
}
