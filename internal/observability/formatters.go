// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/rodaine/table"

	"github.com/jonathan/linkscan/internal/pipeline"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxMessageLen caps the error column of the failure table
	maxMessageLen = 80
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintSummary outputs the run tallies followed by the failure table.
func (p *Printer) PrintSummary(s *pipeline.Summary) {
	if s == nil {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "URLs:       %d\n", s.Total)
	fmt.Fprintf(&sb, "Written:    %d\n", s.Succeeded)
	fmt.Fprintf(&sb, "No links:   %d\n", s.NoLinks)
	fmt.Fprintf(&sb, "Failed:     %d\n", s.Failed)
	fmt.Fprintf(&sb, "Pairs:      %d\n", s.Links)
	fmt.Fprintf(&sb, "Elapsed:    %.2fs", s.Elapsed.Seconds())

	p.printBox("RUN SUMMARY", sb.String())
	p.PrintFailures(s.Failures)
}

// PrintFailures outputs one table row per failed URL, sorted by URL.
func (p *Printer) PrintFailures(failures []pipeline.Failure) {
	if len(failures) == 0 {
		return
	}

	sorted := make([]pipeline.Failure, len(failures))
	copy(sorted, failures)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].URL < sorted[j].URL })

	tbl := table.New("URL", "Kind", "Error").WithWriter(p.out)
	for _, f := range sorted {
		kind := string(f.Kind)
		if kind == "" {
			kind = "-"
		}
		msg := ""
		if f.Err != nil {
			msg = truncate(f.Err.Error(), maxMessageLen)
		}
		tbl.AddRow(f.URL, kind, msg)
	}
	tbl.Print()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
