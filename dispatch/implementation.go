// Package dispatch drives an implementation of a dataflow component with
// per-port message lists and collects what it emits on each output port.
//
// An Implementation handles one opcode per call. Each handler receives one
// argument per input port and returns one message list per output port:
//
//	in := dispatch.Args{&timeMsg, nil} // port 0 has a time message, port 1 not
//	out := impl.Time(in)               // out[k] holds messages for output k
//
// With one input port the messages are simply replayed in order. With several
// input ports the Engine merges the streams in lock-step: the implementation
// picks which port advances next, and every port whose next message has the
// same opcode advances in the same call. With no input port the
// implementation is a source and generates its output once.
package dispatch

import (
	"github.com/sarchlab/streamcheck/msg"
)

// Args carries one entry per input port. An entry is nil when the port does
// not provide a message with the handled opcode in this step.
type Args []*msg.Message

// Present returns the indices of the ports that provide a message.
func (a Args) Present() []int {
	var ports []int
	for i, m := range a {
		if m != nil {
			ports = append(ports, i)
		}
	}

	return ports
}

// Outputs carries one message list per output port, in declared port order.
type Outputs [][]msg.Message

// NewOutputs creates empty message lists for n output ports.
func NewOutputs(n int) Outputs {
	out := make(Outputs, n)
	for i := range out {
		out[i] = []msg.Message{}
	}

	return out
}

func (o Outputs) appendAll(other Outputs) {
	for i := range o {
		o[i] = append(o[i], other[i]...)
	}
}

// Settings is the fixed configuration handed to a source implementation.
type Settings map[string]any

// Implementation is a behavioural model of a component. All handlers must
// return either nil or exactly one message list per output port.
type Implementation interface {
	// InputPorts returns the ordered input port names.
	InputPorts() []string

	// OutputPorts returns the ordered output port names.
	OutputPorts() []string

	// Reset returns the implementation to its just-constructed state.
	Reset()

	Sample(in Args) Outputs
	Time(in Args) Outputs
	SampleInterval(in Args) Outputs
	Flush(in Args) Outputs
	Discontinuity(in Args) Outputs
	Metadata(in Args) Outputs
}

// Pending describes the next unread message of an input port.
type Pending struct {
	Opcode    msg.Opcode
	Exhausted bool
}

// InputSelector must be implemented by implementations with more than one
// input port.
type InputSelector interface {
	// SelectInput returns the index of the port to advance next. It must
	// name a port that is not exhausted.
	SelectInput(next []Pending) int
}

// Generator must be implemented by implementations without input ports.
type Generator interface {
	Generate(settings Settings) Outputs
}

// Base provides the port declarations and the default control opcode
// behaviour. Implementations embed it and supply Reset and Sample.
//
// By default a control message is passed through unmodified from the input
// port selected by NonSampleOpcodePortSelect to every output port. The same
// opcode arriving on any other port in the same step is dropped.
type Base struct {
	InputNames                []string
	OutputNames               []string
	NonSampleOpcodePortSelect int
}

// InputPorts returns the ordered input port names.
func (b *Base) InputPorts() []string {
	return append([]string{}, b.InputNames...)
}

// OutputPorts returns the ordered output port names.
func (b *Base) OutputPorts() []string {
	return append([]string{}, b.OutputNames...)
}

// NewOutputs creates one empty message list per declared output port.
func (b *Base) NewOutputs() Outputs {
	return NewOutputs(len(b.OutputNames))
}

// Emit creates outputs where only the given output port carries messages.
func (b *Base) Emit(port int, msgs ...msg.Message) Outputs {
	out := b.NewOutputs()
	out[port] = append(out[port], msgs...)

	return out
}

// SelectControlPort changes the input port whose control messages the
// default handlers pass through.
func (b *Base) SelectControlPort(port int) {
	b.NonSampleOpcodePortSelect = port
}

// PassThrough forwards the message of the selected control port to every
// output port.
func (b *Base) PassThrough(in Args) Outputs {
	out := b.NewOutputs()

	sel := b.NonSampleOpcodePortSelect
	if sel < 0 || sel >= len(in) || in[sel] == nil {
		return out
	}

	for k := range out {
		out[k] = append(out[k], in[sel].Clone())
	}

	return out
}

// Time passes the time message through.
func (b *Base) Time(in Args) Outputs {
	return b.PassThrough(in)
}

// SampleInterval passes the sample interval message through.
func (b *Base) SampleInterval(in Args) Outputs {
	return b.PassThrough(in)
}

// Flush passes the flush message through.
func (b *Base) Flush(in Args) Outputs {
	return b.PassThrough(in)
}

// Discontinuity passes the discontinuity message through.
func (b *Base) Discontinuity(in Args) Outputs {
	return b.PassThrough(in)
}

// Metadata passes the metadata message through.
func (b *Base) Metadata(in Args) Outputs {
	return b.PassThrough(in)
}
