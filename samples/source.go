package samples

import (
	"math"

	"github.com/pkg/errors"
	"github.com/sarchlab/streamcheck/dispatch"
	"github.com/sarchlab/streamcheck/msg"
	"github.com/sarchlab/streamcheck/util/valgen"
)

// ConstantSource has no input port. It generates its whole output from the
// settings:
//
//	value    first sample value (default 0)
//	step     increment between samples (default 0, a constant stream)
//	length   samples per message (default 8)
//	messages number of sample messages (default 1)
//	interval if set, a sample_interval message is sent first
type ConstantSource struct {
	dispatch.Base
}

// NewConstantSource creates a source with a single output port.
func NewConstantSource() *ConstantSource {
	return &ConstantSource{Base: dispatch.Base{
		OutputNames: []string{"output"},
	}}
}

// Reset does nothing, the output only depends on the settings.
func (s *ConstantSource) Reset() {}

// Sample is never called on a source.
func (s *ConstantSource) Sample(dispatch.Args) dispatch.Outputs {
	return nil
}

type sourceSettings struct {
	value, step      float64
	length, messages int
	interval         float64
	hasInterval      bool
}

func parseSourceSettings(settings dispatch.Settings) (sourceSettings, error) {
	var p sourceSettings
	var err error

	number := func(key string, def float64) float64 {
		if err != nil {
			return def
		}

		var v float64
		v, err = floatSetting(settings, key, def)

		return v
	}

	p.value = number("value", 0)
	p.step = number("step", 0)
	length := number("length", 8)
	messages := number("messages", 1)
	_, p.hasInterval = settings["interval"]
	p.interval = number("interval", 0)

	if err != nil {
		return p, err
	}

	for _, c := range []struct {
		key   string
		value float64
	}{{"length", length}, {"messages", messages}} {
		if c.value < 0 || c.value != math.Trunc(c.value) {
			return p, errors.Errorf(
				"setting %q must be a non-negative integer, got %v", c.key, c.value)
		}
	}

	p.length, p.messages = int(length), int(messages)

	if p.hasInterval {
		if err := msg.NewSampleInterval(p.interval).Validate(); err != nil {
			return p, errors.WithMessage(err, "setting \"interval\"")
		}
	}

	return p, nil
}

// CheckSettings reports settings that Generate cannot use.
func (s *ConstantSource) CheckSettings(settings dispatch.Settings) error {
	_, err := parseSourceSettings(settings)

	return err
}

// Generate creates the output messages. It panics on settings rejected by
// CheckSettings.
func (s *ConstantSource) Generate(settings dispatch.Settings) dispatch.Outputs {
	p, err := parseSourceSettings(settings)
	if err != nil {
		panic(err)
	}

	var gen valgen.Gen
	if p.step == 0 {
		gen = valgen.MakeConstGen(p.value)
	} else {
		gen = valgen.MakeRampGen(p.value, p.step)
	}

	out := s.NewOutputs()

	if p.hasInterval {
		out[0] = append(out[0], msg.NewSampleInterval(p.interval))
	}

	for i := 0; i < p.messages; i++ {
		out[0] = append(out[0], msg.NewSamples(valgen.Take(gen, p.length)...))
	}

	return out
}

func floatSetting(
	settings dispatch.Settings, key string, def float64,
) (float64, error) {
	v, ok := settings[key]
	if !ok {
		return def, nil
	}

	switch v := v.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	}

	return 0, errors.Errorf("setting %q has type %T, expected a number", key, v)
}
