package main

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sarchlab/streamcheck/config"
	"github.com/sarchlab/streamcheck/samples"
	"github.com/sarchlab/streamcheck/verify"
	"github.com/spf13/cobra"
)

var errTestFailed = errors.New("test failed")

var verifyCmd = &cobra.Command{
	Use:   "verify [flags] INPUT...",
	Short: "Verify a captured output file against the reference.",
	Long: "`verify --config suite.yaml --test-id case01.02 --output out.bin " +
		"in.bin` regenerates the reference output when it is stale, " +
		"compares, and records the verdict in the configured logs.",
	RunE: func(cmd *cobra.Command, args []string) error {
		suitePath, _ := cmd.Flags().GetString("config")
		dotenv, _ := cmd.Flags().GetString("env")
		testID, _ := cmd.Flags().GetString("test-id")
		output, _ := cmd.Flags().GetString("output")
		port, _ := cmd.Flags().GetString("port")
		reference, _ := cmd.Flags().GetString("reference")
		traceHooks, _ := cmd.Flags().GetBool("trace-hooks")

		suite, err := config.Load(suitePath)
		if err != nil {
			return err
		}

		if reference != "" {
			suite.Reference = reference
		}

		env, err := config.LoadEnv(dotenv)
		if err != nil {
			return err
		}

		if err := suite.ApplyEnv(env); err != nil {
			return err
		}

		session, err := suite.Build(os.Stdout)
		if err != nil {
			return err
		}
		defer session.Close()

		if traceHooks {
			session.Verifier.AcceptHook(verify.LogHook{})
			session.Verifier.Engine().AcceptHook(verify.LogHook{})
		}

		passed, err := session.Verifier.Verify(testID, args, output, port)
		if err != nil {
			return err
		}

		if !passed {
			return errors.Wrapf(errTestFailed, "%s", testID)
		}

		cmd.Printf("PASSED %s\n", testID)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().String("config", "streamcheck.yaml", "Suite file")
	verifyCmd.Flags().String("env", ".env", "Dotenv file with overrides")
	verifyCmd.Flags().String("test-id", "", "Test name, such as case01.02")
	verifyCmd.Flags().String("output", "", "Captured output file")
	verifyCmd.Flags().String("port", "", "Output port under test")
	verifyCmd.Flags().String("reference", "",
		"Reference implementation, overrides the suite ("+
			strings.Join(samples.Names(), ", ")+")")
	verifyCmd.Flags().Bool("trace-hooks", false,
		"Log verdict, regeneration and dispatch step events")
	_ = verifyCmd.MarkFlagRequired("test-id")
	_ = verifyCmd.MarkFlagRequired("output")
}
