// Package compare provides the algorithms that decide whether the output
// captured from an implementation-under-test matches the output of a
// reference implementation.
//
// Every comparator first runs the same structural check: both sequences have
// the same number of messages, the opcodes match index by index, and sample
// messages carry the same number of samples. Only then is the numeric policy
// of the comparator applied, and only to sample payloads. Other opcodes must
// carry exactly the same payload.
//
// A failed comparison is a Result value, never an error. Misconfiguration
// discovered while comparing, such as a sample outside the declared
// wraparound range, panics.
package compare

import (
	"fmt"
	"math"

	"github.com/sarchlab/streamcheck/msg"
)

// Comparator decides whether two message sequences are the same.
type Comparator interface {
	// Name returns the comparison method name.
	Name() string

	// Same compares the implementation output against the reference output.
	Same(reference, implementation []msg.Message) Result
}

// Result is the outcome of a comparison. Reason is empty iff Passed.
type Result struct {
	Passed bool
	Reason string

	// MessageIndex and SampleIndex locate the first (or a representative)
	// violation. They are -1 when the failure is not tied to a sample.
	MessageIndex int
	SampleIndex  int
}

// Pass is the result of a successful comparison.
func Pass() Result {
	return Result{Passed: true, MessageIndex: -1, SampleIndex: -1}
}

// Fail creates a failed result that is not tied to a sample.
func Fail(format string, args ...any) Result {
	return Result{
		Reason:       fmt.Sprintf(format, args...),
		MessageIndex: -1,
		SampleIndex:  -1,
	}
}

func failAt(msgIndex, sampleIndex int, format string, args ...any) Result {
	return Result{
		Reason:       fmt.Sprintf(format, args...),
		MessageIndex: msgIndex,
		SampleIndex:  sampleIndex,
	}
}

// CheckStructure verifies message counts, opcodes and sample message lengths.
// It returns a passing result when the two sequences have the same shape.
func CheckStructure(reference, implementation []msg.Message) Result {
	if len(reference) != len(implementation) {
		return Fail("reference has %d messages, implementation has %d messages",
			len(reference), len(implementation))
	}

	for i := range reference {
		r, m := reference[i], implementation[i]

		if r.Opcode != m.Opcode {
			return failAt(i, -1,
				"message %d: reference opcode is %s, implementation opcode is %s",
				i, r.Opcode, m.Opcode)
		}

		if r.Opcode != msg.OpSample {
			continue
		}

		if r.SampleLen() != m.SampleLen() {
			return failAt(i, -1,
				"message %d: reference has %d samples, implementation has %d samples",
				i, r.SampleLen(), m.SampleLen())
		}

		if r.IsComplex() != m.IsComplex() {
			return failAt(i, -1,
				"message %d: reference complex=%t, implementation complex=%t",
				i, r.IsComplex(), m.IsComplex())
		}
	}

	return Pass()
}

// checkControl compares a non-sample message pair for exact equality.
func checkControl(i int, r, m msg.Message) (Result, bool) {
	if r.PayloadEqual(m) {
		return Result{}, true
	}

	return failAt(i, -1, "message %d: reference %s, implementation %s",
		i, r, m), false
}

// axis names a component of a sample value.
type axis int

const (
	axisReal axis = iota
	axisImag
)

func (a axis) String() string {
	if a == axisImag {
		return "imaginary"
	}

	return "real"
}

// component returns one scalar axis of sample j of a sample message.
func component(m msg.Message, j int, a axis) float64 {
	if !m.IsComplex() {
		return m.Samples[j]
	}

	if a == axisImag {
		return imag(m.Complex[j])
	}

	return real(m.Complex[j])
}

func axesOf(m msg.Message) []axis {
	if m.IsComplex() {
		return []axis{axisReal, axisImag}
	}

	return []axis{axisReal}
}

// bothNaN reports whether both values are NaN.
func bothNaN(r, m float64) bool {
	return math.IsNaN(r) && math.IsNaN(m)
}

func describeSample(i, j int, a axis, complexValued bool) string {
	if complexValued {
		return fmt.Sprintf("message %d sample %d (%s)", i, j, a)
	}

	return fmt.Sprintf("message %d sample %d", i, j)
}

// walk applies the structural check and then visits every message pair.
// Non-sample messages are compared exactly; sample messages are passed to
// visit. Walking stops at the first failure.
func walk(
	reference, implementation []msg.Message,
	visit func(i int, r, m msg.Message) Result,
) Result {
	if res := CheckStructure(reference, implementation); !res.Passed {
		return res
	}

	for i := range reference {
		r, m := reference[i], implementation[i]
		if r.Opcode != msg.OpSample {
			if res, ok := checkControl(i, r, m); !ok {
				return res
			}
			continue
		}

		if res := visit(i, r, m); !res.Passed {
			return res
		}
	}

	return Pass()
}
