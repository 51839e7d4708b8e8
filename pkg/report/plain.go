/*
Copyright 2025 Argos Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/argos-audit/argos/pkg/finding"
	"github.com/argos-audit/argos/pkg/location"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

// snippetLimit caps how many source lines one location excerpt prints.
const snippetLimit = 4

func severityStyle(s finding.Severity) *color.Color {
	switch s {
	case finding.SeverityHigh:
		return color.New(color.FgHiRed, color.Bold)
	case finding.SeverityMedium:
		return color.New(color.FgHiYellow, color.Bold)
	case finding.SeverityLow:
		return color.New(color.FgYellow)
	case finding.SeverityInformational:
		return color.New(color.FgBlue)
	default:
		return color.New(color.FgHiBlue)
	}
}

// generatePlainReport creates the colorized terminal report.
func (g *Generator) generatePlainReport(r *Results) error {
	w := g.out

	titleStyle := color.New(color.FgHiCyan, color.Bold)
	subtitleStyle := color.New(color.FgCyan, color.Bold)
	infoStyle := color.New(color.FgBlue)
	successStyle := color.New(color.FgGreen, color.Bold)

	fmt.Fprintln(w)
	titleStyle.Fprintln(w, "╔═══════════════════════════════════════════╗")
	titleStyle.Fprintln(w, "║            ARGOS AUDIT RESULTS            ║")
	titleStyle.Fprintln(w, "╚═══════════════════════════════════════════╝")

	fmt.Fprintln(w)
	subtitleStyle.Fprintln(w, "► RUN INFORMATION")
	fmt.Fprintln(w, strings.Repeat("━", 49))
	infoStyle.Fprintf(w, "%-20s ", "Inputs audited:")
	fmt.Fprintln(w, r.Inputs)
	infoStyle.Fprintf(w, "%-20s ", "Audits run:")
	fmt.Fprintln(w, r.Audits)
	if !r.Start.IsZero() {
		infoStyle.Fprintf(w, "%-20s ", "Start time:")
		fmt.Fprintln(w, r.Start.Format(time.RFC1123))
	}
	if r.Duration > 0 {
		infoStyle.Fprintf(w, "%-20s ", "Duration:")
		fmt.Fprintln(w, r.Duration.Round(time.Millisecond))
	}
	if r.Errors > 0 {
		infoStyle.Fprintf(w, "%-20s ", "Audit errors:")
		fmt.Fprintln(w, r.Errors)
	}

	g.plainSummary(w, r, subtitleStyle)

	if len(r.Findings) == 0 {
		fmt.Fprintln(w)
		successStyle.Fprintln(w, "✅ NO ISSUES FOUND!")
		g.plainHiddenCounts(w, r)
		fmt.Fprintln(w)
		return nil
	}

	fmt.Fprintln(w)
	subtitleStyle.Fprintln(w, "► FINDINGS")
	fmt.Fprintln(w, strings.Repeat("━", 49))
	g.plainFindings(w, r, infoStyle)
	g.plainHiddenCounts(w, r)
	fmt.Fprintln(w)
	return nil
}

func (g *Generator) plainSummary(w io.Writer, r *Results, subtitleStyle *color.Color) {
	fmt.Fprintln(w)
	subtitleStyle.Fprintln(w, "► SUMMARY")
	fmt.Fprintln(w, strings.Repeat("━", 49))

	counts := r.counts()
	total := len(r.Findings)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Severity", "Count", "Indicator"})
	table.SetBorder(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderColor(
		tablewriter.Colors{tablewriter.Bold},
		tablewriter.Colors{tablewriter.Bold},
		tablewriter.Colors{tablewriter.Bold},
	)

	rowColors := map[finding.Severity]tablewriter.Colors{
		finding.SeverityHigh:          {tablewriter.FgHiRedColor, tablewriter.Bold},
		finding.SeverityMedium:        {tablewriter.FgHiYellowColor, tablewriter.Bold},
		finding.SeverityLow:           {tablewriter.FgYellowColor},
		finding.SeverityInformational: {tablewriter.FgBlueColor},
		finding.SeverityUnknown:       {tablewriter.FgHiBlueColor},
	}

	for _, severity := range severityOrder {
		row := []string{
			strings.ToUpper(severity.String()),
			strconv.Itoa(counts[severity]),
			severityBar(counts[severity], total, 20),
		}
		if color.NoColor {
			table.Append(row)
		} else {
			style := rowColors[severity]
			table.Rich(row, []tablewriter.Colors{style, style, style})
		}
	}

	totalRow := []string{"TOTAL", strconv.Itoa(total), ""}
	if color.NoColor {
		table.Append(totalRow)
	} else {
		bold := tablewriter.Colors{tablewriter.Bold}
		table.Rich(totalRow, []tablewriter.Colors{bold, bold, bold})
	}

	table.Render()
}

// severityBar renders a proportional indicator for the summary table.
func severityBar(count, total, width int) string {
	if total == 0 || count == 0 {
		return strings.Repeat("░", width)
	}
	filled := count * width / total
	if filled == 0 {
		filled = 1
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func (g *Generator) plainFindings(w io.Writer, r *Results, infoStyle *color.Color) {
	groups := make(map[finding.Severity][]*finding.Finding)
	for _, f := range r.Findings {
		groups[f.Severity] = append(groups[f.Severity], f)
	}

	count := 0
	for _, severity := range severityOrder {
		group := groups[severity]
		if len(group) == 0 {
			continue
		}

		style := severityStyle(severity)
		fmt.Fprintln(w)
		style.Fprintf(w, "■ %s SEVERITY FINDINGS\n", strings.ToUpper(severity.String()))
		fmt.Fprintln(w, strings.Repeat("─", 49))

		for _, f := range group {
			count++
			g.plainFinding(w, r, f, count, style, infoStyle)
		}
	}
	fmt.Fprintln(w)
}

func (g *Generator) plainFinding(w io.Writer, r *Results, f *finding.Finding, number int, style, infoStyle *color.Color) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "[%d] ", number)
	style.Fprint(w, f.Ident)
	fmt.Fprintf(w, ": %s\n", f.Desc)

	primary := f.PrimaryLocation()
	if primary != nil {
		infoStyle.Fprintf(w, "  %-12s ", "Location:")
		fmt.Fprintln(w, locationLabel(primary))
	}
	infoStyle.Fprintf(w, "  %-12s ", "Confidence:")
	fmt.Fprintln(w, f.Confidence)
	if f.Persona != finding.PersonaRegular {
		infoStyle.Fprintf(w, "  %-12s ", "Persona:")
		fmt.Fprintln(w, f.Persona)
	}

	if primary != nil {
		writeSnippet(w, r.doc(primary.Symbolic.Key), primary, style)
	}

	for i := range f.Locations {
		loc := &f.Locations[i]
		if loc.Symbolic.Primary {
			continue
		}
		infoStyle.Fprintf(w, "  %-12s ", "Related:")
		if note := loc.Symbolic.Annotation; note != "" {
			fmt.Fprintf(w, "%s (%s)\n", locationLabel(loc), note)
		} else {
			fmt.Fprintln(w, locationLabel(loc))
		}
	}

	if f.URL != "" {
		infoStyle.Fprintf(w, "  %-12s ", "Docs:")
		fmt.Fprintln(w, f.URL)
	}
}

// locationLabel formats a location as path:line:column, using the remote
// form of the key for fetched documents.
func locationLabel(loc *finding.Location) string {
	name := loc.Symbolic.Key.String()
	start := loc.Concrete.Span.Start
	if start.Line < 1 {
		return name
	}
	return fmt.Sprintf("%s:%d:%d", name, start.Line, start.Column)
}

// writeSnippet prints the source lines behind a location with a caret
// marker under the feature's first line.
func writeSnippet(w io.Writer, doc *location.Document, loc *finding.Location, style *color.Color) {
	span := loc.Concrete.Span
	if doc == nil || span.Start.Line < 1 {
		return
	}

	lines := doc.Lines()
	last := span.End.Line
	// A span ending in column 1 stops at the previous line break.
	if span.End.Column <= 1 && last > span.Start.Line {
		last--
	}
	if last > lines.TotalLines() {
		last = lines.TotalLines()
	}
	if last < span.Start.Line {
		last = span.Start.Line
	}
	truncated := false
	if last-span.Start.Line+1 > snippetLimit {
		last = span.Start.Line + snippetLimit - 1
		truncated = true
	}
	gutter := len(strconv.Itoa(last))

	fmt.Fprintln(w)
	for ln := span.Start.Line; ln <= last; ln++ {
		text := lines.GetLine(ln)
		fmt.Fprintf(w, "  %*d | %s\n", gutter, ln, text)
		if ln != span.Start.Line {
			continue
		}

		width := len(text) - span.Start.Column + 1
		if span.End.Line == span.Start.Line {
			width = span.End.Column - span.Start.Column
		}
		if width < 1 {
			width = 1
		}
		padWidth := span.Start.Column - 1
		if padWidth < 0 {
			padWidth = 0
		}
		pad := strings.Repeat(" ", padWidth)
		marker := style.Sprint(strings.Repeat("^", width))
		if note := loc.Symbolic.Annotation; note != "" {
			fmt.Fprintf(w, "  %*s | %s%s %s\n", gutter, "", pad, marker, note)
		} else {
			fmt.Fprintf(w, "  %*s | %s%s\n", gutter, "", pad, marker)
		}
	}
	if truncated {
		fmt.Fprintf(w, "  %*s | ...\n", gutter, "")
	}
}

func (g *Generator) plainHiddenCounts(w io.Writer, r *Results) {
	if r.Ignored == 0 && r.Suppressed == 0 {
		return
	}
	var parts []string
	if r.Ignored > 0 {
		parts = append(parts, fmt.Sprintf("%d ignored", r.Ignored))
	}
	if r.Suppressed > 0 {
		parts = append(parts, fmt.Sprintf("%d hidden by persona", r.Suppressed))
	}
	fmt.Fprintf(w, "Not shown: %s.\n", strings.Join(parts, ", "))
}
