// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux renders marketstats CLI reports.
//
// A Printer writes styled output (lipgloss) to terminals and plain
// tab-separated output to pipes and files, so `marketstats report | cut`
// keeps working.
package ux

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Aleutian color palette - deep ocean teals and arctic waters
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // highlights, success
	ColorTealPrimary = lipgloss.Color("#20B9B4") // main brand color
	ColorTealDeep    = lipgloss.Color("#16858E") // borders, accents
	ColorSlate       = lipgloss.Color("#2C4A54") // muted text, borders

	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles holds the shared text styles.
var Styles = struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Bold     lipgloss.Style
	Muted    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Header   lipgloss.Style
	Bar      lipgloss.Style
	Box      lipgloss.Style
}{
	Title:    lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Subtitle: lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Bold:     lipgloss.NewStyle().Bold(true),
	Muted:    lipgloss.NewStyle().Foreground(ColorSlate),
	Success:  lipgloss.NewStyle().Foreground(ColorTealBright),
	Warning:  lipgloss.NewStyle().Foreground(ColorWarning),
	Error:    lipgloss.NewStyle().Foreground(ColorError),
	Header:   lipgloss.NewStyle().Bold(true).Foreground(ColorTealPrimary),
	Bar:      lipgloss.NewStyle().Foreground(ColorTealDeep),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconBullet  Icon = "•"
)

// Render returns the icon with its style.
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	default:
		return string(i)
	}
}

// =============================================================================
// Printer
// =============================================================================

// Mode selects styled or plain output.
type Mode int

const (
	// ModeAuto styles output only when writing to a terminal.
	ModeAuto Mode = iota
	ModeRich
	ModePlain
)

// ParseMode maps "auto", "rich" or "plain" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ModeAuto, nil
	case "rich", "color":
		return ModeRich, nil
	case "plain", "machine":
		return ModePlain, nil
	}
	return ModeAuto, fmt.Errorf("unknown output mode %q", s)
}

// Printer writes report output to one writer.
type Printer struct {
	w     io.Writer
	plain bool
}

// NewPrinter creates a Printer. ModeAuto checks whether w is a terminal.
func NewPrinter(w io.Writer, mode Mode) *Printer {
	plain := mode == ModePlain
	if mode == ModeAuto {
		plain = true
		if f, ok := w.(*os.File); ok {
			fd := f.Fd()
			plain = !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd)
		}
	}
	return &Printer{w: w, plain: plain}
}

// Plain reports whether output is unstyled.
func (p *Printer) Plain() bool { return p.plain }

// Title prints a styled title. Plain output prints "# title".
func (p *Printer) Title(text string) {
	if p.plain {
		fmt.Fprintf(p.w, "# %s\n", text)
		return
	}
	fmt.Fprintln(p.w, Styles.Title.Render(text))
}

// Success prints a success line.
func (p *Printer) Success(text string) {
	if p.plain {
		fmt.Fprintf(p.w, "OK: %s\n", text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
}

// Warning prints a warning line.
func (p *Printer) Warning(text string) {
	if p.plain {
		fmt.Fprintf(p.w, "WARN: %s\n", text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
}

// Error prints an error line.
func (p *Printer) Error(text string) {
	if p.plain {
		fmt.Fprintf(p.w, "ERROR: %s\n", text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", IconError.Render(), Styles.Error.Render(text))
}

// Info prints an informational line.
func (p *Printer) Info(text string) {
	if p.plain {
		fmt.Fprintln(p.w, text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", Styles.Muted.Render("│"), text)
}

// KeyValues prints aligned key/value pairs, boxed when styled.
func (p *Printer) KeyValues(title string, pairs [][2]string) {
	if p.plain {
		for _, kv := range pairs {
			fmt.Fprintf(p.w, "%s\t%s\n", kv[0], kv[1])
		}
		return
	}
	width := 0
	for _, kv := range pairs {
		width = max(width, lipgloss.Width(kv[0]))
	}
	lines := []string{Styles.Title.Render(title)}
	for _, kv := range pairs {
		key := Styles.Muted.Render(padRight(kv[0], width))
		lines = append(lines, key+"  "+Styles.Bold.Render(kv[1]))
	}
	fmt.Fprintln(p.w, Styles.Box.Render(strings.Join(lines, "\n")))
}

// Table prints rows under headers. Plain output is tab-separated with the
// header as the first line.
func (p *Printer) Table(headers []string, rows [][]string) {
	if p.plain {
		fmt.Fprintln(p.w, strings.Join(headers, "\t"))
		for _, r := range rows {
			fmt.Fprintln(p.w, strings.Join(r, "\t"))
		}
		return
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, r := range rows {
		for i := 0; i < len(r) && i < len(widths); i++ {
			widths[i] = max(widths[i], lipgloss.Width(r[i]))
		}
	}

	cells := make([]string, len(headers))
	for i, h := range headers {
		cells[i] = Styles.Header.Render(padRight(h, widths[i]))
	}
	fmt.Fprintln(p.w, strings.Join(cells, "  "))
	for _, r := range rows {
		cells = cells[:0]
		for i := range widths {
			v := ""
			if i < len(r) {
				v = r[i]
			}
			cells = append(cells, padRight(v, widths[i]))
		}
		fmt.Fprintln(p.w, strings.TrimRight(strings.Join(cells, "  "), " "))
	}
}

// BarRow is one labelled count in a BarChart.
type BarRow struct {
	Label string
	Count int
}

// BarChart prints a horizontal bar per row scaled to the largest count, with
// each row's share of total. total <= 0 omits the share column.
func (p *Printer) BarChart(rows []BarRow, total, width int) {
	if width <= 0 {
		width = 30
	}
	peak := 0
	for _, r := range rows {
		peak = max(peak, r.Count)
	}

	headers := []string{"label", "count"}
	if total > 0 {
		headers = append(headers, "share")
	}
	if !p.plain {
		headers = append(headers, "")
	}

	table := make([][]string, 0, len(rows))
	for _, r := range rows {
		line := []string{r.Label, strconv.Itoa(r.Count)}
		if total > 0 {
			line = append(line, fmt.Sprintf("%.1f%%", float64(r.Count)/float64(total)*100))
		}
		if !p.plain {
			n := 0
			if peak > 0 {
				n = r.Count * width / peak
			}
			line = append(line, Styles.Bar.Render(repeatChar('█', n)))
		}
		table = append(table, line)
	}
	p.Table(headers, table)
}

// ProgressBar renders current/total as a bar of width cells.
func (p *Printer) ProgressBar(current, total, width int) string {
	if p.plain || total <= 0 {
		return fmt.Sprintf("%d/%d", current, total)
	}
	pct := float64(current) / float64(total)
	pct = min(max(pct, 0), 1)
	filled := int(pct * float64(width))

	bar := Styles.Success.Render(repeatChar('█', filled)) +
		Styles.Muted.Render(repeatChar('░', width-filled))
	return fmt.Sprintf("%s %3.0f%%", bar, pct*100)
}

func padRight(s string, width int) string {
	if gap := width - lipgloss.Width(s); gap > 0 {
		return s + strings.Repeat(" ", gap)
	}
	return s
}

func repeatChar(c rune, n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat(string(c), n)
}
