package compare

import (
	"math"

	"github.com/sarchlab/streamcheck/msg"
)

// Relative accepts samples that are close relative to their magnitude, or
// within an absolute tolerance near zero.
type Relative struct {
	relativeTolerance float64
	absoluteTolerance float64
}

// NewRelative creates a Relative comparator from p.RelativeTolerance and
// p.AbsoluteTolerance.
func NewRelative(p Params) (*Relative, error) {
	if err := checkBound(p.RelativeTolerance, "relative tolerance"); err != nil {
		return nil, err
	}

	if err := checkBound(p.AbsoluteTolerance, "absolute tolerance"); err != nil {
		return nil, err
	}

	return &Relative{
		relativeTolerance: p.RelativeTolerance,
		absoluteTolerance: p.AbsoluteTolerance,
	}, nil
}

// Name returns the comparison method name.
func (*Relative) Name() string {
	return MethodRelative
}

// Close reports whether r and m are close under the configured tolerances.
func (c *Relative) Close(r, m float64) bool {
	if bothNaN(r, m) || r == m {
		return true
	}

	if math.IsInf(r, 0) || math.IsInf(m, 0) {
		return false
	}

	diff := math.Abs(r - m)
	limit := math.Max(
		c.relativeTolerance*math.Max(math.Abs(r), math.Abs(m)),
		c.absoluteTolerance)

	return diff <= limit
}

// Same checks every sample pair with Close.
func (c *Relative) Same(reference, implementation []msg.Message) Result {
	return walk(reference, implementation,
		func(i int, r, m msg.Message) Result {
			for j := 0; j < r.SampleLen(); j++ {
				for _, a := range axesOf(r) {
					rv, mv := component(r, j, a), component(m, j, a)
					if c.Close(rv, mv) {
						continue
					}

					return failAt(i, j,
						"%s: reference %v, implementation %v, difference %v exceeds relative tolerance %v and absolute tolerance %v",
						describeSample(i, j, a, r.IsComplex()),
						rv, mv, math.Abs(rv-mv),
						c.relativeTolerance, c.absoluteTolerance)
				}
			}

			return Pass()
		})
}
