// Package msg defines the protocol messages that flow on the ports of a
// streaming dataflow component.
package msg

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"
)

// Opcode is the discriminant of a protocol message.
type Opcode int

// The closed set of opcodes a port can carry.
const (
	OpSample Opcode = iota
	OpTime
	OpSampleInterval
	OpFlush
	OpDiscontinuity
	OpMetadata

	NumOpcodes = int(OpMetadata) + 1
)

var opcodeNames = [NumOpcodes]string{
	"sample",
	"time",
	"sample_interval",
	"flush",
	"discontinuity",
	"metadata",
}

// ErrUnsupportedOpcode is returned when an opcode is outside the closed set.
var ErrUnsupportedOpcode = errors.New("unsupported opcode")

// Opcodes returns all opcodes in declaration order.
func Opcodes() []Opcode {
	ops := make([]Opcode, NumOpcodes)
	for i := range ops {
		ops[i] = Opcode(i)
	}

	return ops
}

// Valid reports whether the opcode is one of the declared opcodes.
func (o Opcode) Valid() bool {
	return o >= OpSample && o <= OpMetadata
}

// String returns the protocol name of the opcode.
func (o Opcode) String() string {
	if !o.Valid() {
		return fmt.Sprintf("opcode(%d)", int(o))
	}

	return opcodeNames[o]
}

// ParseOpcode converts a protocol opcode name into an Opcode.
func ParseOpcode(name string) (Opcode, error) {
	lower := strings.ToLower(strings.TrimSpace(name))
	for i, n := range opcodeNames {
		if n == lower {
			return Opcode(i), nil
		}
	}

	return 0, errors.Wrapf(ErrUnsupportedOpcode, "%q", name)
}

// MaxTime is the exclusive upper limit of time and sample interval values.
// The protocol limit is 2^32 - 2^-40, which float64 cannot hold next to 2^32,
// so every float64 strictly below 2^32 is in range.
var MaxTime = math.Ldexp(1, 32)

// Metadata is the payload of a metadata message.
type Metadata struct {
	ID    uint32
	Value uint64
}

// Message is one protocol message. Which payload field is meaningful depends
// on the opcode:
//
//   - OpSample: Samples for real-valued protocols, Complex for complex ones.
//     Booleans are carried as 0 and 1.
//   - OpTime, OpSampleInterval: Value.
//   - OpMetadata: Metadata.
//   - OpFlush, OpDiscontinuity: no payload.
type Message struct {
	Opcode   Opcode
	Samples  []float64
	Complex  []complex128
	Value    float64
	Metadata Metadata
}

// NewSamples creates a real-valued sample message.
func NewSamples(values ...float64) Message {
	return Message{Opcode: OpSample, Samples: append([]float64{}, values...)}
}

// NewComplexSamples creates a complex-valued sample message.
func NewComplexSamples(values ...complex128) Message {
	return Message{
		Opcode:  OpSample,
		Complex: append([]complex128{}, values...),
	}
}

// NewTime creates a time message.
func NewTime(t float64) Message {
	return Message{Opcode: OpTime, Value: t}
}

// NewSampleInterval creates a sample interval message.
func NewSampleInterval(interval float64) Message {
	return Message{Opcode: OpSampleInterval, Value: interval}
}

// NewFlush creates a flush message.
func NewFlush() Message {
	return Message{Opcode: OpFlush}
}

// NewDiscontinuity creates a discontinuity message.
func NewDiscontinuity() Message {
	return Message{Opcode: OpDiscontinuity}
}

// NewMetadata creates a metadata message.
func NewMetadata(id uint32, value uint64) Message {
	return Message{
		Opcode:   OpMetadata,
		Metadata: Metadata{ID: id, Value: value},
	}
}

// FromBools creates a sample message from a slice of booleans.
func FromBools(values []bool) Message {
	m := Message{Opcode: OpSample, Samples: make([]float64, len(values))}
	for i, v := range values {
		if v {
			m.Samples[i] = 1
		}
	}

	return m
}

// IsComplex reports whether a sample message carries complex values.
func (m Message) IsComplex() bool {
	return m.Complex != nil
}

// SampleLen returns the number of samples carried by a sample message.
func (m Message) SampleLen() int {
	if m.IsComplex() {
		return len(m.Complex)
	}

	return len(m.Samples)
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	c := m
	if m.Samples != nil {
		c.Samples = append([]float64{}, m.Samples...)
	}

	if m.Complex != nil {
		c.Complex = append([]complex128{}, m.Complex...)
	}

	return c
}

// Validate checks the payload against the limits of the opcode.
func (m Message) Validate() error {
	switch m.Opcode {
	case OpSample:
		if m.Samples != nil && m.Complex != nil {
			return errors.New("sample message carries both real and complex data")
		}
	case OpTime, OpSampleInterval:
		if math.IsNaN(m.Value) || m.Value < 0 || m.Value >= MaxTime {
			return errors.Errorf("%s value %v outside [0, 2^32 - 2^-40]",
				m.Opcode, m.Value)
		}
	case OpFlush, OpDiscontinuity, OpMetadata:
	default:
		return errors.Wrapf(ErrUnsupportedOpcode, "%d", int(m.Opcode))
	}

	return nil
}

// PayloadEqual reports whether two messages have the same opcode and exactly
// the same payload. NaN samples are equal to NaN samples.
func (m Message) PayloadEqual(other Message) bool {
	if m.Opcode != other.Opcode {
		return false
	}

	switch m.Opcode {
	case OpTime, OpSampleInterval:
		return m.Value == other.Value
	case OpMetadata:
		return m.Metadata == other.Metadata
	case OpSample:
		return samplesEqual(m, other)
	}

	return true
}

func samplesEqual(a, b Message) bool {
	if a.IsComplex() != b.IsComplex() || a.SampleLen() != b.SampleLen() {
		return false
	}

	if a.IsComplex() {
		for i := range a.Complex {
			if !floatEqual(real(a.Complex[i]), real(b.Complex[i])) ||
				!floatEqual(imag(a.Complex[i]), imag(b.Complex[i])) {
				return false
			}
		}

		return true
	}

	for i := range a.Samples {
		if !floatEqual(a.Samples[i], b.Samples[i]) {
			return false
		}
	}

	return true
}

func floatEqual(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}

// String gives a short description of the message.
func (m Message) String() string {
	switch m.Opcode {
	case OpSample:
		if m.IsComplex() {
			return fmt.Sprintf("sample[%d complex]", len(m.Complex))
		}
		return fmt.Sprintf("sample[%d]", len(m.Samples))
	case OpTime, OpSampleInterval:
		return fmt.Sprintf("%s(%v)", m.Opcode, m.Value)
	case OpMetadata:
		return fmt.Sprintf("metadata(id=%d, value=%d)",
			m.Metadata.ID, m.Metadata.Value)
	default:
		return m.Opcode.String()
	}
}
