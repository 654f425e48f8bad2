package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/sarchlab/streamcheck/codec"
	"github.com/sarchlab/streamcheck/msg"
	"github.com/spf13/cobra"
)

var dumpCmd = &cobra.Command{
	Use:   "dump [flags] FILE",
	Short: "Print the messages of a message file as a table.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("samples")
		want, _ := cmd.Flags().GetString("protocol")

		data, err := os.ReadFile(args[0])
		if err != nil {
			return errors.Wrap(err, "read message file")
		}

		protocol, msgs, err := codec.Decode(data)
		if err != nil {
			return errors.WithMessage(err, args[0])
		}

		if want != "" && want != protocol {
			return errors.Wrapf(codec.ErrProtocolMismatch,
				"%s holds %s, not %s", args[0], protocol, want)
		}

		t := table.NewWriter()
		t.SetTitle(fmt.Sprintf("%s (%s)", args[0], protocol))
		t.AppendHeader(table.Row{"#", "Opcode", "Payload"})

		for i, m := range msgs {
			t.AppendRow(table.Row{i, m.Opcode, payload(m, limit)})
		}

		cmd.Println(t.Render())

		return nil
	},
}

func init() {
	rootCmd.AddCommand(dumpCmd)
	dumpCmd.Flags().Int("samples", 8, "Samples shown per message")
	dumpCmd.Flags().String("protocol", "", "Expected protocol of the file")
}

func payload(m msg.Message, limit int) string {
	switch m.Opcode {
	case msg.OpSample:
		n := m.SampleLen()
		parts := make([]string, 0, min(n, limit)+1)

		for j := 0; j < n && j < limit; j++ {
			if m.IsComplex() {
				parts = append(parts, fmt.Sprint(m.Complex[j]))
			} else {
				parts = append(parts, fmt.Sprint(m.Samples[j]))
			}
		}

		if n > limit {
			parts = append(parts, fmt.Sprintf("... (%d total)", n))
		}

		return strings.Join(parts, " ")
	case msg.OpTime, msg.OpSampleInterval:
		return fmt.Sprint(m.Value)
	case msg.OpMetadata:
		return fmt.Sprintf("id=%d value=%d", m.Metadata.ID, m.Metadata.Value)
	default:
		return ""
	}
}
