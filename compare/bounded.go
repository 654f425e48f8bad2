package compare

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"github.com/sarchlab/streamcheck/msg"
)

// wrapRange models integer overflow: values near opposite ends of
// [low, high] are treated as close to each other.
type wrapRange struct {
	low, high float64
}

func newWrapRange(values []float64) (*wrapRange, error) {
	if values == nil {
		return nil, nil
	}

	if len(values) != 2 {
		return nil, errors.Errorf(
			"wraparound needs both a low and a high value, got %d value(s)",
			len(values))
	}

	w := &wrapRange{low: values[0], high: values[1]}
	if math.IsNaN(w.low) || math.IsNaN(w.high) || w.low >= w.high {
		return nil, errors.Errorf("invalid wraparound range [%v, %v]",
			w.low, w.high)
	}

	return w, nil
}

func (w *wrapRange) mustContain(v float64) {
	if v >= w.low && v <= w.high {
		return
	}

	panic(fmt.Sprintf("value %v outside of wraparound range [%v, %v]",
		v, w.low, w.high))
}

// distance is the number of steps between r and m when stepping past the
// ends of the range.
func (w *wrapRange) distance(r, m float64) float64 {
	lo, hi := math.Min(r, m), math.Max(r, m)

	return math.Abs(w.low-lo) + math.Abs(w.high-hi) + 1
}

// withinBound is the acceptance rule shared by Bounded and
// BoundedWithException. With a wraparound range, every non-NaN value must lie
// inside it.
func withinBound(r, m, bound float64, wrap *wrapRange) bool {
	if wrap != nil {
		for _, v := range []float64{r, m} {
			if !math.IsNaN(v) {
				wrap.mustContain(v)
			}
		}
	}

	if bothNaN(r, m) || r == m {
		return true
	}

	if math.IsNaN(r) || math.IsNaN(m) {
		return false
	}

	if math.Abs(r-m) <= bound {
		return true
	}

	if wrap == nil {
		return false
	}

	return wrap.distance(r, m) <= bound
}

func checkBound(bound float64, name string) error {
	if math.IsNaN(bound) || bound < 0 {
		return errors.Errorf("%s must be a non-negative number, got %v",
			name, bound)
	}

	return nil
}

func copyWrap(values []float64) []float64 {
	if values == nil {
		return nil
	}

	return append([]float64{}, values...)
}

// Bounded accepts samples whose absolute difference is within a bound.
type Bounded struct {
	bound           float64
	wrapRoundValues []float64
	wrap            *wrapRange
}

// NewBounded creates a Bounded comparator from p.Bound and p.WrapRoundValues.
func NewBounded(p Params) (*Bounded, error) {
	if err := checkBound(p.Bound, "bound"); err != nil {
		return nil, err
	}

	wrap, err := newWrapRange(p.WrapRoundValues)
	if err != nil {
		return nil, err
	}

	return &Bounded{
		bound:           p.Bound,
		wrapRoundValues: copyWrap(p.WrapRoundValues),
		wrap:            wrap,
	}, nil
}

// Name returns the comparison method name.
func (*Bounded) Name() string {
	return MethodBounded
}

// Bound returns the configured bound.
func (b *Bounded) Bound() float64 {
	return b.bound
}

// WrapRoundValues returns a copy of the configured wraparound range, or nil.
func (b *Bounded) WrapRoundValues() []float64 {
	return copyWrap(b.wrapRoundValues)
}

// Same checks every sample pair against the bound.
func (b *Bounded) Same(reference, implementation []msg.Message) Result {
	return walk(reference, implementation,
		func(i int, r, m msg.Message) Result {
			for j := 0; j < r.SampleLen(); j++ {
				for _, a := range axesOf(r) {
					rv, mv := component(r, j, a), component(m, j, a)
					if withinBound(rv, mv, b.bound, b.wrap) {
						continue
					}

					return failAt(i, j,
						"%s: reference %v, implementation %v, difference %v exceeds bound %v",
						describeSample(i, j, a, r.IsComplex()),
						rv, mv, math.Abs(rv-mv), b.bound)
				}
			}

			return Pass()
		})
}
