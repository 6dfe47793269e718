// Package render formats weekly records for the terminal.
package render

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"timesheet/internal/aggregate"
)

var (
	colorHeader = lipgloss.Color("#fe8019")
	colorDim    = lipgloss.Color("#928374")
	colorGreen  = lipgloss.Color("#8ec07c")
	colorYellow = lipgloss.Color("#fabd2f")

	styleHeader = lipgloss.NewStyle().Foreground(colorHeader).Bold(true)
	styleDim    = lipgloss.NewStyle().Foreground(colorDim)
	styleTotal  = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	styleWarn   = lipgloss.NewStyle().Foreground(colorYellow)
)

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type painter bool

func (p painter) paint(s lipgloss.Style, text string) string {
	if !p {
		return text
	}
	return s.Render(text)
}

// Summary renders one week as a category table followed by the totals.
func Summary(rec aggregate.WeeklyRecord, color bool) string {
	p := painter(color)

	rows := make([][]string, 0, len(aggregate.Categories()))
	for _, c := range aggregate.Categories() {
		d := rec.Totals.Total(c)
		formatted := aggregate.FormatDuration(d, aggregate.DefaultDurationPattern)
		if d == 0 {
			formatted = p.paint(styleDim, formatted)
		}
		rows = append(rows, []string{c.Label(), c.String(), formatted})
	}

	var b strings.Builder
	b.WriteString(p.paint(styleHeader, "Week of "+rec.Key()))
	b.WriteString("\n\n")
	b.WriteString(table(p, []string{"Category", "Code", "Time"}, rows))
	b.WriteString("\n")
	b.WriteString(p.paint(styleTotal, "Weekly total: "+
		aggregate.FormatDuration(rec.WeeklyTotal(), aggregate.DefaultDurationPattern)+
		" ("+strconv.FormatFloat(rec.WeeklyHours(), 'f', 2, 64)+" h)"))
	b.WriteString("\n")
	return b.String()
}

// Unclassified lists event titles that had no known category prefix.
func Unclassified(titles []string, color bool) string {
	if len(titles) == 0 {
		return ""
	}
	p := painter(color)
	var b strings.Builder
	b.WriteString(p.paint(styleWarn, strconv.Itoa(len(titles))+" unclassified event(s):"))
	b.WriteString("\n")
	for _, t := range titles {
		b.WriteString("  - ")
		b.WriteString(t)
		b.WriteString("\n")
	}
	return b.String()
}

// Weeks renders a compact list of recorded weeks.
func Weeks(recs []aggregate.WeeklyRecord, color bool) string {
	p := painter(color)
	if len(recs) == 0 {
		return p.paint(styleDim, "no weeks recorded") + "\n"
	}
	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, []string{
			r.Key(),
			aggregate.FormatDuration(r.WeeklyTotal(), aggregate.DefaultDurationPattern),
			strconv.FormatFloat(r.WeeklyHours(), 'f', 2, 64),
			aggregate.FormatDuration(r.Totals.Total(aggregate.Unclassified), aggregate.DefaultDurationPattern),
		})
	}
	return table(p, []string{"Week", "Weekly total", "Hours", aggregate.Unclassified.Label()}, rows)
}

// table renders an aligned table with a header separator line. Widths are
// measured on visible text so styled cells line up.
func table(p painter, headers []string, rows [][]string) string {
	cols := len(headers)
	widths := make([]int, cols)
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i := 0; i < cols && i < len(row); i++ {
			if w := lipgloss.Width(row[i]); w > widths[i] {
				widths[i] = w
			}
		}
	}

	const colGap = 2
	var b strings.Builder

	for i, h := range headers {
		b.WriteString(p.paint(styleHeader, h))
		if i < cols-1 {
			b.WriteString(strings.Repeat(" ", widths[i]-lipgloss.Width(h)+colGap))
		}
	}
	b.WriteString("\n")

	for i, w := range widths {
		b.WriteString(p.paint(styleDim, strings.Repeat("─", w)))
		if i < cols-1 {
			b.WriteString(strings.Repeat(" ", colGap))
		}
	}
	b.WriteString("\n")

	for _, row := range rows {
		for i := 0; i < cols; i++ {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			b.WriteString(cell)
			if i < cols-1 {
				b.WriteString(strings.Repeat(" ", max(0, widths[i]-lipgloss.Width(cell))+colGap))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
