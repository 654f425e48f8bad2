package main

import (
	"github.com/pkg/errors"
	"github.com/sarchlab/streamcheck/codec"
	"github.com/sarchlab/streamcheck/compare"
	"github.com/spf13/cobra"
)

var compareCmd = &cobra.Command{
	Use:   "compare [flags] REFERENCE IMPLEMENTATION",
	Short: "Compare two message files.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		method, _ := cmd.Flags().GetString("method")
		protocol, _ := cmd.Flags().GetString("protocol")

		p := compare.DefaultParams()
		p.Bound, _ = cmd.Flags().GetFloat64("bound")
		p.WrapRoundValues, _ = cmd.Flags().GetFloat64Slice("wrap")
		p.ExceptionBound, _ = cmd.Flags().GetFloat64("exception-bound")
		p.AllowedExceptionRate, _ = cmd.Flags().GetFloat64("allowed-exception-rate")
		p.RelativeTolerance, _ = cmd.Flags().GetFloat64("relative-tolerance")
		p.AbsoluteTolerance, _ = cmd.Flags().GetFloat64("absolute-tolerance")
		p.MeanDifferenceLimit, _ = cmd.Flags().GetFloat64("mean-difference-limit")
		p.StandardDeviationLimit, _ = cmd.Flags().GetFloat64("standard-deviation-limit")
		p.StandardDeviationMultiple, _ = cmd.Flags().GetFloat64("standard-deviation-multiple")
		p.SmallestIncrement, _ = cmd.Flags().GetFloat64("smallest-increment")

		if len(p.WrapRoundValues) == 0 {
			p.WrapRoundValues = nil
		}

		c, err := compare.New(method, p)
		if err != nil {
			return err
		}

		reference, err := codec.ReadFile(args[0], protocol)
		if err != nil {
			return err
		}

		implementation, err := codec.ReadFile(args[1], protocol)
		if err != nil {
			return err
		}

		res := c.Same(reference, implementation)
		if res.Passed {
			cmd.Println("PASSED")
			return nil
		}

		cmd.Printf("FAILED: %s\n", res.Reason)
		if window := compare.Window(reference, implementation, res); window != "" {
			cmd.Println(window)
		}

		return errors.Wrapf(errTestFailed, "%s differs from %s", args[1], args[0])
	},
}

func init() {
	d := compare.DefaultParams()

	rootCmd.AddCommand(compareCmd)
	f := compareCmd.Flags()
	f.String("method", compare.MethodEqual, "Comparison method")
	f.String("protocol", "", "Expected protocol of both files")
	f.Float64("bound", d.Bound, "Bound")
	f.Float64Slice("wrap", nil, "Wraparound range as low,high")
	f.Float64("exception-bound", d.ExceptionBound, "Exception bound")
	f.Float64("allowed-exception-rate", d.AllowedExceptionRate,
		"Allowed exception rate")
	f.Float64("relative-tolerance", d.RelativeTolerance, "Relative tolerance")
	f.Float64("absolute-tolerance", d.AbsoluteTolerance, "Absolute tolerance")
	f.Float64("mean-difference-limit", d.MeanDifferenceLimit,
		"Mean difference limit")
	f.Float64("standard-deviation-limit", d.StandardDeviationLimit,
		"Standard deviation limit")
	f.Float64("standard-deviation-multiple", d.StandardDeviationMultiple,
		"Standard deviation multiple")
	f.Float64("smallest-increment", d.SmallestIncrement, "Smallest increment")
}
