package main

import (
	"io"
	"strconv"
	"time"

	"github.com/jzx17/matrixpipe/pkg/pipeline"
	"github.com/olekukonko/tablewriter"
)

// printSummary renders the run summary as a two-column table
func printSummary(w io.Writer, output string, s pipeline.Summary) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Value"})
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	table.AppendBulk([][]string{
		{"run id", s.RunID},
		{"output", output},
		{"pairs generated", strconv.FormatInt(s.Generated, 10)},
		{"products written", strconv.FormatInt(s.Written, 10)},
		{"pairs discarded", strconv.FormatInt(s.Discarded, 10)},
		{"stop reason", s.StopReason},
		{"elapsed", s.Elapsed.Round(time.Millisecond).String()},
		{"multiply mean", s.MultiplyMean.String()},
		{"multiply stddev", s.MultiplyStdDev.String()},
	})
	table.Render()
}
