package compare

import "github.com/sarchlab/streamcheck/msg"

// Equal requires every sample to be exactly equal. NaN matches NaN.
type Equal struct{}

// NewEqual creates an Equal comparator.
func NewEqual() *Equal {
	return &Equal{}
}

// Name returns the comparison method name.
func (*Equal) Name() string {
	return MethodEqual
}

// Same compares the two sequences for exact equality.
func (*Equal) Same(reference, implementation []msg.Message) Result {
	return walk(reference, implementation,
		func(i int, r, m msg.Message) Result {
			for j := 0; j < r.SampleLen(); j++ {
				for _, a := range axesOf(r) {
					rv, mv := component(r, j, a), component(m, j, a)
					if rv == mv || bothNaN(rv, mv) {
						continue
					}

					return failAt(i, j,
						"%s: reference %v and implementation %v are not equal",
						describeSample(i, j, a, r.IsComplex()), rv, mv)
				}
			}

			return Pass()
		})
}
