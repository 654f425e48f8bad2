package verify

import (
	"fmt"
	"io"
	"strings"

	"github.com/sarchlab/streamcheck/compare"
	"github.com/sarchlab/streamcheck/msg"
)

// WriteFailureReport prints a failed verdict with the messages or samples
// around the violation.
func WriteFailureReport(
	w io.Writer,
	verdict Verdict,
	reference, implementation []msg.Message,
) {
	separator := strings.Repeat("=", 60)

	fmt.Fprintln(w, separator)
	fmt.Fprintf(w, "FAILED: %s port %s (%s)\n",
		verdict.TestID, verdict.Port, verdict.Method)
	fmt.Fprintln(w, separator)

	if verdict.Worker != "" {
		fmt.Fprintf(w, "Worker: %s\n", verdict.Worker)
	}

	fmt.Fprintf(w, "Reason: %s\n", verdict.Result.Reason)
	fmt.Fprintf(w, "Messages: reference %d, implementation %d\n",
		len(reference), len(implementation))

	window := compare.Window(reference, implementation, verdict.Result)
	if window != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, window)
	}

	fmt.Fprintln(w)
}
