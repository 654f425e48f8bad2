package samples

import (
	"github.com/sarchlab/streamcheck/dispatch"
	"github.com/sarchlab/streamcheck/msg"
)

// Combiner adds the samples of two input streams pairwise. Samples that have
// no partner yet are held until the other port delivers one. A flush or a
// discontinuity drops the held samples.
//
// Control messages are taken from the first port; the same opcode on the
// second port is dropped.
type Combiner struct {
	dispatch.Base

	held        [2][]float64
	heldComplex [2][]complex128
}

// NewCombiner creates a combiner with ports "a", "b" and "sum".
func NewCombiner() *Combiner {
	return &Combiner{Base: dispatch.Base{
		InputNames:  []string{"a", "b"},
		OutputNames: []string{"sum"},
	}}
}

// Reset drops all held samples.
func (c *Combiner) Reset() {
	c.held = [2][]float64{}
	c.heldComplex = [2][]complex128{}
}

// SelectInput advances control messages before samples, so that a sample
// is never combined across a flush on the other port. Among the ports with a
// pending control message the lowest index wins; otherwise the first port
// with samples left advances.
func (c *Combiner) SelectInput(next []dispatch.Pending) int {
	for i, p := range next {
		if !p.Exhausted && p.Opcode != msg.OpSample {
			return i
		}
	}

	for i, p := range next {
		if !p.Exhausted {
			return i
		}
	}

	return -1
}

// Sample holds the new samples and emits the sums of all complete pairs.
func (c *Combiner) Sample(in dispatch.Args) dispatch.Outputs {
	complexValued := false

	for port, m := range in {
		if m == nil {
			continue
		}

		if m.IsComplex() {
			complexValued = true
			c.heldComplex[port] = append(c.heldComplex[port], m.Complex...)
		} else {
			c.held[port] = append(c.held[port], m.Samples...)
		}
	}

	if complexValued {
		return c.emitComplex()
	}

	return c.emitReal()
}

func (c *Combiner) emitReal() dispatch.Outputs {
	n := min(len(c.held[0]), len(c.held[1]))
	if n == 0 {
		return c.NewOutputs()
	}

	sums := make([]float64, n)
	for i := range sums {
		sums[i] = c.held[0][i] + c.held[1][i]
	}

	c.held[0] = c.held[0][n:]
	c.held[1] = c.held[1][n:]

	return c.Emit(0, msg.NewSamples(sums...))
}

func (c *Combiner) emitComplex() dispatch.Outputs {
	n := min(len(c.heldComplex[0]), len(c.heldComplex[1]))
	if n == 0 {
		return c.NewOutputs()
	}

	sums := make([]complex128, n)
	for i := range sums {
		sums[i] = c.heldComplex[0][i] + c.heldComplex[1][i]
	}

	c.heldComplex[0] = c.heldComplex[0][n:]
	c.heldComplex[1] = c.heldComplex[1][n:]

	return c.Emit(0, msg.NewComplexSamples(sums...))
}

// Flush drops the held samples and forwards the flush.
func (c *Combiner) Flush(in dispatch.Args) dispatch.Outputs {
	c.Reset()
	return c.PassThrough(in)
}

// Discontinuity drops the held samples and forwards the discontinuity.
func (c *Combiner) Discontinuity(in dispatch.Args) dispatch.Outputs {
	c.Reset()
	return c.PassThrough(in)
}
