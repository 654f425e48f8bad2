package compare

import (
	"math"

	"github.com/pkg/errors"
	"github.com/sarchlab/streamcheck/msg"
)

// Statistical judges the distribution of the differences between the
// implementation and the reference over the whole test rather than gating
// each sample on a fixed bound.
//
// The checks run in a fixed order and the first one to fail is reported:
//
//  1. the configured limits must be sensible for the magnitude of the data;
//  2. every difference must lie in mean ± min(multiple × std, cap), widened
//     to include zero;
//  3. |mean| must not exceed the mean difference limit;
//  4. the standard deviation must not exceed its limit.
type Statistical struct {
	meanDifferenceLimit       float64
	standardDeviationLimit    float64
	standardDeviationMultiple float64
	smallestIncrement         float64
}

// NewStatistical creates a Statistical comparator from p.MeanDifferenceLimit,
// p.StandardDeviationLimit, p.StandardDeviationMultiple and
// p.SmallestIncrement.
func NewStatistical(p Params) (*Statistical, error) {
	for _, v := range []struct {
		name  string
		value float64
	}{
		{"mean difference limit", p.MeanDifferenceLimit},
		{"standard deviation limit", p.StandardDeviationLimit},
		{"standard deviation multiple", p.StandardDeviationMultiple},
		{"smallest increment", p.SmallestIncrement},
	} {
		if err := checkBound(v.value, v.name); err != nil {
			return nil, err
		}
	}

	if math.IsInf(p.StandardDeviationMultiple, 0) {
		return nil, errors.New("standard deviation multiple must be finite")
	}

	return &Statistical{
		meanDifferenceLimit:       p.MeanDifferenceLimit,
		standardDeviationLimit:    p.StandardDeviationLimit,
		standardDeviationMultiple: p.StandardDeviationMultiple,
		smallestIncrement:         p.SmallestIncrement,
	}, nil
}

// Name returns the comparison method name.
func (*Statistical) Name() string {
	return MethodStatistical
}

type difference struct {
	value        float64
	msgIndex     int
	sampleIndex  int
	axis         axis
	complexValue bool
}

// Stats summarises the differences of a comparison.
type Stats struct {
	Count             int
	Mean              float64
	StandardDeviation float64
	Smallest          float64
	Largest           float64
}

type accumulator struct {
	diffs    []difference
	smallest float64
	largest  float64
}

func newAccumulator() *accumulator {
	return &accumulator{
		smallest: math.Inf(1),
		largest:  0,
	}
}

func (acc *accumulator) add(d difference, reference float64) {
	acc.diffs = append(acc.diffs, d)

	magnitude := math.Abs(reference)
	acc.smallest = math.Min(acc.smallest, magnitude)
	acc.largest = math.Max(acc.largest, magnitude)
}

func (acc *accumulator) stats() Stats {
	s := Stats{Count: len(acc.diffs)}
	if s.Count == 0 {
		return s
	}

	sum := 0.0
	for _, d := range acc.diffs {
		sum += d.value
	}
	s.Mean = sum / float64(s.Count)

	squares := 0.0
	for _, d := range acc.diffs {
		delta := d.value - s.Mean
		squares += delta * delta
	}
	s.StandardDeviation = math.Sqrt(squares / float64(s.Count))

	s.Smallest = acc.smallest
	s.Largest = acc.largest

	return s
}

// accumulate walks the sequences and collects the signed differences, one
// accumulator per axis. It fails early on non-sample mismatches and
// one-sided NaN or infinity.
func (c *Statistical) accumulate(
	reference, implementation []msg.Message,
) ([]*accumulator, Result) {
	accs := []*accumulator{newAccumulator(), newAccumulator()}

	res := walk(reference, implementation,
		func(i int, r, m msg.Message) Result {
			for j := 0; j < r.SampleLen(); j++ {
				for _, a := range axesOf(r) {
					rv, mv := component(r, j, a), component(m, j, a)

					if res, skip := c.special(i, j, a, r.IsComplex(), rv, mv); skip {
						if !res.Passed {
							return res
						}
						continue
					}

					accs[a].add(difference{
						value:        mv - rv,
						msgIndex:     i,
						sampleIndex:  j,
						axis:         a,
						complexValue: r.IsComplex(),
					}, rv)
				}
			}

			return Pass()
		})

	return accs, res
}

// special handles NaN and infinite values. It returns skip=true when the
// pair must not enter the statistics, together with whether that is a pass.
func (c *Statistical) special(
	i, j int, a axis, complexValued bool, r, m float64,
) (Result, bool) {
	rSpecial := math.IsNaN(r) || math.IsInf(r, 0)
	mSpecial := math.IsNaN(m) || math.IsInf(m, 0)

	if !rSpecial && !mSpecial {
		return Result{}, false
	}

	if bothNaN(r, m) || (rSpecial && mSpecial && r == m) {
		return Pass(), true
	}

	return failAt(i, j, "%s: reference %v, implementation %v",
		describeSample(i, j, a, complexValued), r, m), true
}

// Same runs the statistical checks. The real and imaginary axes of complex
// data are scored independently; the first axis to fail is reported.
func (c *Statistical) Same(reference, implementation []msg.Message) Result {
	accs, res := c.accumulate(reference, implementation)
	if !res.Passed {
		return res
	}

	for _, acc := range accs {
		if res := c.judge(acc); !res.Passed {
			return res
		}
	}

	return Pass()
}

func (c *Statistical) judge(acc *accumulator) Result {
	s := acc.stats()
	if s.Count == 0 {
		return Pass()
	}

	prefix := ""
	if d := acc.diffs[0]; d.complexValue {
		prefix = d.axis.String() + " axis: "
	}

	if res := c.checkLimits(s); !res.Passed {
		res.Reason = prefix + res.Reason
		return res
	}

	if res := c.checkDeviations(acc, s); !res.Passed {
		return res
	}

	if math.Abs(s.Mean) > c.meanDifferenceLimit {
		return Fail("%smean difference %v exceeds limit %v",
			prefix, s.Mean, c.meanDifferenceLimit)
	}

	if math.Abs(s.StandardDeviation) > c.standardDeviationLimit {
		return Fail("%sstandard deviation of differences %v exceeds limit %v",
			prefix, s.StandardDeviation, c.standardDeviationLimit)
	}

	return Pass()
}

func (c *Statistical) checkLimits(s Stats) Result {
	limitCap := math.Max(0.25*s.Largest, 2*c.smallestIncrement)

	if c.meanDifferenceLimit > limitCap {
		return Fail("mean difference limit %v is larger than %v; "+
			"the comparison is mis-configured for this data",
			c.meanDifferenceLimit, limitCap)
	}

	if c.standardDeviationLimit > limitCap {
		return Fail("standard deviation limit %v is larger than %v; "+
			"the comparison is mis-configured for this data",
			c.standardDeviationLimit, limitCap)
	}

	return Pass()
}

// Band returns the acceptance band for individual differences.
func (c *Statistical) Band(s Stats) (lower, upper float64) {
	deviationCap := math.Max(
		0.2*(s.Largest-s.Smallest),
		math.Max(c.standardDeviationMultiple*c.smallestIncrement,
			0.005*s.Largest))
	deviation := math.Min(
		c.standardDeviationMultiple*s.StandardDeviation, deviationCap)

	lower = math.Min(s.Mean-deviation, 0)
	upper = math.Max(s.Mean+deviation, 0)

	return lower, upper
}

func (c *Statistical) checkDeviations(acc *accumulator, s Stats) Result {
	lower, upper := c.Band(s)

	for _, d := range acc.diffs {
		if d.value >= lower && d.value <= upper {
			continue
		}

		return failAt(d.msgIndex, d.sampleIndex,
			"%s: difference %v outside of [%v, %v] (mean %v, standard deviation %v)",
			describeSample(d.msgIndex, d.sampleIndex, d.axis, d.complexValue),
			d.value, lower, upper, s.Mean, s.StandardDeviation)
	}

	return Pass()
}
