package compare

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sarchlab/streamcheck/msg"
)

// WindowRadius is the number of neighbours shown on each side of a violation.
const WindowRadius = 5

// Window renders the neighbourhood of the violation located by res. Sample
// violations show the samples around the failing one; message-level
// violations show the surrounding messages. It returns an empty string when
// the result is not tied to a location.
func Window(reference, implementation []msg.Message, res Result) string {
	if res.Passed || res.MessageIndex < 0 {
		return ""
	}

	if res.SampleIndex < 0 {
		return messageWindow(reference, implementation, res.MessageIndex)
	}

	if res.MessageIndex >= len(reference) ||
		res.MessageIndex >= len(implementation) {
		return ""
	}

	return sampleWindow(reference[res.MessageIndex],
		implementation[res.MessageIndex], res.MessageIndex, res.SampleIndex)
}

func windowRange(center, length int) (int, int) {
	start := max(center-WindowRadius, 0)
	end := min(center+WindowRadius+1, length)

	return start, end
}

func sampleWindow(r, m msg.Message, msgIndex, sampleIndex int) string {
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("Message %d, samples around %d", msgIndex, sampleIndex))
	t.AppendHeader(table.Row{"", "Sample", "Reference", "Implementation", "Difference"})

	start, end := windowRange(sampleIndex, min(r.SampleLen(), m.SampleLen()))
	for j := start; j < end; j++ {
		marker := ""
		if j == sampleIndex {
			marker = ">"
		}

		t.AppendRow(table.Row{
			marker, j,
			formatSample(r, j), formatSample(m, j), formatDifference(r, m, j),
		})
	}

	return t.Render()
}

func messageWindow(reference, implementation []msg.Message, center int) string {
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("Messages around %d", center))
	t.AppendHeader(table.Row{"", "Message", "Reference", "Implementation"})

	start, end := windowRange(center, max(len(reference), len(implementation)))
	for i := start; i < end; i++ {
		marker := ""
		if i == center {
			marker = ">"
		}

		t.AppendRow(table.Row{
			marker, i, describeAt(reference, i), describeAt(implementation, i),
		})
	}

	return t.Render()
}

func describeAt(msgs []msg.Message, i int) string {
	if i >= len(msgs) {
		return "-"
	}

	return msgs[i].String()
}

func formatSample(m msg.Message, j int) string {
	if m.IsComplex() {
		return fmt.Sprintf("%v", m.Complex[j])
	}

	return fmt.Sprintf("%v", m.Samples[j])
}

func formatDifference(r, m msg.Message, j int) string {
	if r.IsComplex() && m.IsComplex() {
		return fmt.Sprintf("%v", m.Complex[j]-r.Complex[j])
	}

	if !r.IsComplex() && !m.IsComplex() {
		return fmt.Sprintf("%v", m.Samples[j]-r.Samples[j])
	}

	return "-"
}
