package main

import (
	"fmt"
	"os"

	"github.com/sarchlab/streamcheck/util/logging"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "streamcheck",
	Short: "Streamcheck verifies captured component outputs against a reference.",
	Long: `Streamcheck replays test input files through a reference ` +
		`implementation, caches its outputs, and compares them with the ` +
		`outputs captured from the implementation under test.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		levelName, _ := cmd.Flags().GetString("log-level")
		format, _ := cmd.Flags().GetString("log-format")

		level, err := logging.ParseLevel(levelName)
		if err != nil {
			return err
		}

		return logging.Setup(os.Stderr, format, level)
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "warn",
		"Log level: debug, info, trace, warn or error.")
	rootCmd.PersistentFlags().String("log-format", "text",
		"Log format: text or json.")
}

// Execute runs the command line and exits through atexit so that buffered
// results are flushed.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func main() {
	Execute()
}
