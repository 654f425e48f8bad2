package dispatch

import (
	"fmt"
	"maps"

	"github.com/pkg/errors"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/streamcheck/msg"
	"github.com/sarchlab/streamcheck/util/logging"
)

// HookPosDispatchStep is triggered before each handler call. The hook item is
// a Step.
var HookPosDispatchStep = &sim.HookPos{Name: "DispatchStep"}

// Step describes one handler call.
type Step struct {
	RunID  string
	Index  int
	Opcode msg.Opcode

	// Ports lists the input ports consumed in this step.
	Ports []int
}

// Handler is the function an opcode is dispatched to.
type Handler func(in Args) Outputs

// EngineBuilder can build dispatch engines.
type EngineBuilder struct {
	settings Settings
}

// WithSettings sets the configuration handed to source implementations.
func (b EngineBuilder) WithSettings(settings Settings) EngineBuilder {
	b.settings = maps.Clone(settings)
	return b
}

// Build creates an engine for impl. The opcode handler table is fixed here.
func (b EngineBuilder) Build(impl Implementation) (*Engine, error) {
	e := &Engine{
		HookableBase: sim.NewHookableBase(),
		impl:         impl,
		settings:     b.settings,
		numInputs:    len(impl.InputPorts()),
		numOutputs:   len(impl.OutputPorts()),
	}

	if e.numOutputs == 0 {
		return nil, errors.New("implementation declares no output port")
	}

	e.handlers = [msg.NumOpcodes]Handler{
		msg.OpSample:         impl.Sample,
		msg.OpTime:           impl.Time,
		msg.OpSampleInterval: impl.SampleInterval,
		msg.OpFlush:          impl.Flush,
		msg.OpDiscontinuity:  impl.Discontinuity,
		msg.OpMetadata:       impl.Metadata,
	}

	switch {
	case e.numInputs == 0:
		gen, ok := impl.(Generator)
		if !ok {
			return nil, errors.New(
				"implementation without input ports must implement Generator")
		}
		e.generator = gen
	case e.numInputs > 1:
		sel, ok := impl.(InputSelector)
		if !ok {
			return nil, errors.Errorf(
				"implementation with %d input ports must implement InputSelector",
				e.numInputs)
		}
		e.selector = sel
	}

	return e, nil
}

// Engine turns per-port input message lists into per-port output message
// lists by calling the opcode handlers of an Implementation.
type Engine struct {
	*sim.HookableBase

	impl      Implementation
	selector  InputSelector
	generator Generator
	handlers  [msg.NumOpcodes]Handler
	settings  Settings

	numInputs  int
	numOutputs int
}

// Implementation returns the driven implementation.
func (e *Engine) Implementation() Implementation {
	return e.impl
}

// Reset resets the implementation before an independent run.
func (e *Engine) Reset() {
	e.impl.Reset()
}

// Run dispatches all input messages and returns the outputs, one message
// list per declared output port. inputs must hold one list per input port.
//
// Run panics if the implementation breaks its contract: SelectInput naming
// an exhausted port, or a handler returning the wrong number of outputs.
func (e *Engine) Run(inputs [][]msg.Message) (Outputs, error) {
	if len(inputs) != e.numInputs {
		return nil, errors.Errorf(
			"got message lists for %d input ports, implementation declares %d",
			len(inputs), e.numInputs)
	}

	for p, list := range inputs {
		for i, m := range list {
			if !m.Opcode.Valid() {
				return nil, errors.Wrapf(msg.ErrUnsupportedOpcode,
					"input port %d message %d: %d", p, i, int(m.Opcode))
			}
		}
	}

	runID := sim.GetIDGenerator().Generate()

	switch e.numInputs {
	case 0:
		return e.generate(), nil
	case 1:
		return e.runSinglePort(runID, inputs[0]), nil
	default:
		return e.runMultiPort(runID, inputs), nil
	}
}

func (e *Engine) generate() Outputs {
	out := e.generator.Generate(maps.Clone(e.settings))

	return e.checkOutputs(out, "Generate")
}

func (e *Engine) runSinglePort(runID string, list []msg.Message) Outputs {
	out := NewOutputs(e.numOutputs)

	for i, m := range list {
		c := m.Clone()
		step := Step{RunID: runID, Index: i, Opcode: m.Opcode, Ports: []int{0}}
		out.appendAll(e.call(step, Args{&c}))
	}

	return out
}

func (e *Engine) runMultiPort(runID string, inputs [][]msg.Message) Outputs {
	out := NewOutputs(e.numOutputs)
	cursors := make([]int, e.numInputs)

	for index := 0; ; index++ {
		pending, remaining := e.pending(inputs, cursors)
		if !remaining {
			break
		}

		sel := e.selector.SelectInput(pending)
		if sel < 0 || sel >= len(pending) || pending[sel].Exhausted {
			panic(fmt.Sprintf(
				"SelectInput returned port %d, which has no unread message", sel))
		}

		op := pending[sel].Opcode
		args := make(Args, e.numInputs)
		step := Step{RunID: runID, Index: index, Opcode: op}

		for p := range pending {
			if pending[p].Exhausted || pending[p].Opcode != op {
				continue
			}

			c := inputs[p][cursors[p]].Clone()
			args[p] = &c
			cursors[p]++
			step.Ports = append(step.Ports, p)
		}

		out.appendAll(e.call(step, args))
	}

	return out
}

func (e *Engine) pending(
	inputs [][]msg.Message,
	cursors []int,
) ([]Pending, bool) {
	pending := make([]Pending, len(inputs))
	remaining := false

	for p, list := range inputs {
		if cursors[p] >= len(list) {
			pending[p].Exhausted = true
			continue
		}

		pending[p].Opcode = list[cursors[p]].Opcode
		remaining = true
	}

	return pending, remaining
}

func (e *Engine) call(step Step, args Args) Outputs {
	if len(e.Hooks()) > 0 {
		e.InvokeHook(sim.HookCtx{
			Domain: e,
			Pos:    HookPosDispatchStep,
			Item:   step,
		})
	}

	logging.Trace("DispatchStep",
		"RunID", step.RunID,
		"Index", step.Index,
		"Opcode", step.Opcode.String(),
		"Ports", step.Ports,
	)

	out := e.handlers[step.Opcode](args)

	return e.checkOutputs(out, step.Opcode.String())
}

func (e *Engine) checkOutputs(out Outputs, handler string) Outputs {
	if out == nil {
		return NewOutputs(e.numOutputs)
	}

	if len(out) != e.numOutputs {
		panic(fmt.Sprintf("%s handler returned %d outputs, expected %d",
			handler, len(out), e.numOutputs))
	}

	for k := range out {
		if out[k] == nil {
			out[k] = []msg.Message{}
		}
	}

	return out
}
