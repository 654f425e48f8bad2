package compare

import (
	"strings"

	"github.com/pkg/errors"
)

// Method names accepted by New.
const (
	MethodEqual                = "equal"
	MethodBounded              = "bounded"
	MethodBoundedWithException = "bounded_with_exception"
	MethodRelative             = "relative"
	MethodStatistical          = "statistical"
)

// ErrUnknownMethod is returned by New for an unknown comparison method name.
var ErrUnknownMethod = errors.New("unknown comparison method")

// Params holds the tunables of all comparison methods. Each comparator copies
// the fields it uses when it is created.
type Params struct {
	Bound           float64   `yaml:"bound"`
	WrapRoundValues []float64 `yaml:"wrap_round_values"`

	ExceptionBound       float64 `yaml:"exception_bound"`
	AllowedExceptionRate float64 `yaml:"allowed_exception_rate"`

	RelativeTolerance float64 `yaml:"relative_tolerance"`
	AbsoluteTolerance float64 `yaml:"absolute_tolerance"`

	MeanDifferenceLimit       float64 `yaml:"mean_difference_limit"`
	StandardDeviationLimit    float64 `yaml:"standard_deviation_limit"`
	StandardDeviationMultiple float64 `yaml:"standard_deviation_multiple"`
	SmallestIncrement         float64 `yaml:"smallest_increment"`
}

// DefaultParams returns the parameters used when a method is selected by
// name without further configuration.
func DefaultParams() Params {
	return Params{
		Bound:                     1,
		ExceptionBound:            2,
		AllowedExceptionRate:      0.01,
		RelativeTolerance:         1e-9,
		AbsoluteTolerance:         1e-9,
		MeanDifferenceLimit:       1,
		StandardDeviationLimit:    1,
		StandardDeviationMultiple: 3,
		SmallestIncrement:         1,
	}
}

// Methods lists the comparison method names in a stable order.
func Methods() []string {
	return []string{
		MethodEqual,
		MethodBounded,
		MethodBoundedWithException,
		MethodRelative,
		MethodStatistical,
	}
}

// New creates a comparator by method name.
func New(method string, p Params) (Comparator, error) {
	switch strings.ToLower(strings.TrimSpace(method)) {
	case MethodEqual:
		return NewEqual(), nil
	case MethodBounded:
		return NewBounded(p)
	case MethodBoundedWithException:
		return NewBoundedWithException(p)
	case MethodRelative:
		return NewRelative(p)
	case MethodStatistical:
		return NewStatistical(p)
	}

	return nil, errors.Wrapf(ErrUnknownMethod, "%q", method)
}
