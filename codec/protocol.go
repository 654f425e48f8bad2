// Package codec reads and writes protocol message files.
package codec

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"github.com/sarchlab/streamcheck/msg"
)

// ErrUnknownProtocol is returned for protocol names that are not registered.
var ErrUnknownProtocol = errors.New("unknown protocol")

// Protocol describes the sample type carried by a port.
type Protocol struct {
	Name     string
	Complex  bool
	Integral bool
	Bool     bool

	// Min and Max bound integral samples. They are ignored for floating
	// point protocols.
	Min float64
	Max float64
}

type sampleType struct {
	name     string
	integral bool
	min, max float64
	complex  bool
}

var sampleTypes = []sampleType{
	{name: "char", integral: true, min: math.MinInt8, max: math.MaxInt8, complex: true},
	{name: "uchar", integral: true, min: 0, max: math.MaxUint8},
	{name: "short", integral: true, min: math.MinInt16, max: math.MaxInt16, complex: true},
	{name: "ushort", integral: true, min: 0, max: math.MaxUint16},
	{name: "long", integral: true, min: math.MinInt32, max: math.MaxInt32, complex: true},
	{name: "ulong", integral: true, min: 0, max: math.MaxUint32},
	{name: "longlong", integral: true, min: math.MinInt64, max: math.MaxInt64, complex: true},
	{name: "ulonglong", integral: true, min: 0, max: math.MaxUint64},
	{name: "float", min: -math.MaxFloat32, max: math.MaxFloat32, complex: true},
	{name: "double", min: -math.MaxFloat64, max: math.MaxFloat64, complex: true},
}

var protocols = buildRegistry()

func buildRegistry() map[string]Protocol {
	reg := map[string]Protocol{
		"bool_timed_sample": {
			Name: "bool_timed_sample", Integral: true, Bool: true, Min: 0, Max: 1,
		},
	}

	for _, t := range sampleTypes {
		p := Protocol{
			Name:     t.name + "_timed_sample",
			Integral: t.integral,
			Min:      t.min,
			Max:      t.max,
		}
		reg[p.Name] = p

		if t.complex {
			c := p
			c.Name = "complex_" + p.Name
			c.Complex = true
			reg[c.Name] = c
		}
	}

	return reg
}

// Lookup returns the protocol registered under name.
func Lookup(name string) (Protocol, error) {
	p, ok := protocols[name]
	if !ok {
		return Protocol{}, errors.Wrapf(ErrUnknownProtocol, "%q", name)
	}

	return p, nil
}

// Names returns all registered protocol names in sorted order.
func Names() []string {
	names := make([]string, 0, len(protocols))
	for n := range protocols {
		names = append(names, n)
	}

	sort.Strings(names)

	return names
}

// Check verifies that a message can be carried by the protocol without
// modification.
func (p Protocol) Check(m msg.Message) error {
	if err := m.Validate(); err != nil {
		return err
	}

	if m.Opcode != msg.OpSample {
		return nil
	}

	if p.Complex != m.IsComplex() {
		return errors.Errorf("%s carries %s samples, message has %s samples",
			p.Name, kind(p.Complex), kind(m.IsComplex()))
	}

	return nil
}

// Coerce converts the samples of m to the value set of the protocol.
// Integral samples are rounded and clamped to the type range, booleans
// become 0 or 1. Non-sample messages are only validated.
func (p Protocol) Coerce(m msg.Message) (msg.Message, error) {
	if err := p.Check(m); err != nil {
		return msg.Message{}, err
	}

	c := m.Clone()
	if m.Opcode != msg.OpSample || !p.Integral {
		return c, nil
	}

	var err error
	for i, v := range c.Samples {
		if c.Samples[i], err = p.coerceValue(v); err != nil {
			return msg.Message{}, errors.WithMessagef(err, "sample %d", i)
		}
	}

	for i, v := range c.Complex {
		re, err := p.coerceValue(real(v))
		if err != nil {
			return msg.Message{}, errors.WithMessagef(err, "sample %d", i)
		}

		im, err := p.coerceValue(imag(v))
		if err != nil {
			return msg.Message{}, errors.WithMessagef(err, "sample %d", i)
		}

		c.Complex[i] = complex(re, im)
	}

	return c, nil
}

func (p Protocol) coerceValue(v float64) (float64, error) {
	if math.IsNaN(v) {
		return 0, errors.Errorf("%s cannot carry NaN", p.Name)
	}

	if p.Bool {
		if v != 0 {
			return 1, nil
		}
		return 0, nil
	}

	return math.Max(p.Min, math.Min(p.Max, math.Round(v))), nil
}

func kind(isComplex bool) string {
	if isComplex {
		return "complex"
	}

	return "real"
}
