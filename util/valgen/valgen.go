// Package valgen provides small closure-based value generators used to build
// deterministic test vectors.
package valgen

// Gen produces the next value of a sequence each time it is called.
type Gen func() float64

// MakeConstGen returns a generator that always yields constant.
func MakeConstGen(constant float64) Gen {
	return func() float64 {
		return constant
	}
}

// MakeIncreasingGen returns a generator that yields start+1, start+2, ...
func MakeIncreasingGen(start float64) Gen {
	current := start
	return func() float64 {
		current++
		return current
	}
}

// MakeRampGen returns a generator that yields start, start+step, ...
func MakeRampGen(start, step float64) Gen {
	next := start
	return func() float64 {
		v := next
		next += step
		return v
	}
}

// MakeWrapGen returns a generator that counts up from low and wraps back to
// low after high, the way a fixed-width integer overflows.
func MakeWrapGen(low, high float64) Gen {
	next := low
	return func() float64 {
		v := next
		next++
		if next > high {
			next = low
		}
		return v
	}
}

// Take draws n values from gen.
func Take(gen Gen, n int) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = gen()
	}

	return values
}
