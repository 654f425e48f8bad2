package compare

import (
	"math"

	"github.com/pkg/errors"
	"github.com/sarchlab/streamcheck/msg"
)

// BoundedWithException behaves like Bounded but tolerates a limited number of
// samples per message that only pass a wider exception bound.
type BoundedWithException struct {
	bound                float64
	exceptionBound       float64
	allowedExceptionRate float64
	wrapRoundValues      []float64
	wrap                 *wrapRange
}

// NewBoundedWithException creates a BoundedWithException comparator from
// p.Bound, p.ExceptionBound, p.AllowedExceptionRate and p.WrapRoundValues.
func NewBoundedWithException(p Params) (*BoundedWithException, error) {
	if err := checkBound(p.Bound, "bound"); err != nil {
		return nil, err
	}

	if err := checkBound(p.ExceptionBound, "exception bound"); err != nil {
		return nil, err
	}

	if p.ExceptionBound < p.Bound {
		return nil, errors.Errorf(
			"exception bound %v must not be smaller than bound %v",
			p.ExceptionBound, p.Bound)
	}

	rate := p.AllowedExceptionRate
	if math.IsNaN(rate) || rate < 0 || rate > 1 {
		return nil, errors.Errorf(
			"allowed exception rate must be within [0, 1], got %v", rate)
	}

	wrap, err := newWrapRange(p.WrapRoundValues)
	if err != nil {
		return nil, err
	}

	return &BoundedWithException{
		bound:                p.Bound,
		exceptionBound:       p.ExceptionBound,
		allowedExceptionRate: rate,
		wrapRoundValues:      copyWrap(p.WrapRoundValues),
		wrap:                 wrap,
	}, nil
}

// Name returns the comparison method name.
func (*BoundedWithException) Name() string {
	return MethodBoundedWithException
}

// AllowedExceptions returns how many exceptions a message of the given
// length may contain. It is never below one.
func (b *BoundedWithException) AllowedExceptions(length int) int {
	allowed := int(math.RoundToEven(b.allowedExceptionRate * float64(length)))
	if allowed < 1 {
		return 1
	}

	return allowed
}

// Same checks every sample against the bound and counts exceptions.
func (b *BoundedWithException) Same(
	reference, implementation []msg.Message,
) Result {
	return walk(reference, implementation,
		func(i int, r, m msg.Message) Result {
			allowed := b.AllowedExceptions(r.SampleLen())
			exceptions := 0

			for j := 0; j < r.SampleLen(); j++ {
				exception := false

				for _, a := range axesOf(r) {
					rv, mv := component(r, j, a), component(m, j, a)
					if withinBound(rv, mv, b.bound, b.wrap) {
						continue
					}

					if !withinBound(rv, mv, b.exceptionBound, b.wrap) {
						return failAt(i, j,
							"%s: reference %v, implementation %v, difference %v exceeds exception bound %v",
							describeSample(i, j, a, r.IsComplex()),
							rv, mv, math.Abs(rv-mv), b.exceptionBound)
					}

					exception = true
				}

				if !exception {
					continue
				}

				exceptions++
				if exceptions > allowed {
					return failAt(i, j,
						"message %d: %d samples exceed bound %v, only %d allowed (exception rate %v)",
						i, exceptions, b.bound, allowed, b.allowedExceptionRate)
				}
			}

			return Pass()
		})
}
