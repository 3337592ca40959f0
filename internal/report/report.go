// Package report renders engine output for the terminal. Amounts arrive as
// minor units and are formatted here only.
package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/jask/ledgerflow/internal/database/repository"
	"github.com/jask/ledgerflow/internal/money"
	"github.com/jask/ledgerflow/internal/service"
)

// Catppuccin Mocha, as used across the app.
const (
	colorRed      lipgloss.Color = "#f38ba8"
	colorPeach    lipgloss.Color = "#fab387"
	colorYellow   lipgloss.Color = "#f9e2af"
	colorGreen    lipgloss.Color = "#a6e3a1"
	colorBlue     lipgloss.Color = "#89b4fa"
	colorSubtext0 lipgloss.Color = "#a6adc8"
	colorOverlay1 lipgloss.Color = "#7f849c"
)

var (
	titleStyle       = lipgloss.NewStyle().Foreground(colorBlue).Bold(true)
	tableHeaderStyle = lipgloss.NewStyle().Foreground(colorSubtext0).Bold(true)
	creditStyle      = lipgloss.NewStyle().Foreground(colorGreen)
	debitStyle       = lipgloss.NewStyle().Foreground(colorRed)
	labelStyle       = lipgloss.NewStyle().Foreground(colorSubtext0)
	valueStyle       = lipgloss.NewStyle().Foreground(colorPeach)
	warnStyle        = lipgloss.NewStyle().Foreground(colorYellow)
	mutedStyle       = lipgloss.NewStyle().Foreground(colorOverlay1)
)

const (
	monthWidth  = 8
	amountWidth = 16
	descWidth   = 36
)

// Renderer formats amounts with a currency symbol.
type Renderer struct {
	CurrencySymbol string
}

// Amount renders minor units as "R$ -1203.92".
func (r Renderer) Amount(minor int64) string {
	s := money.FormatMinor(minor)
	if r.CurrencySymbol == "" {
		return s
	}
	return r.CurrencySymbol + " " + s
}

func (r Renderer) signed(minor int64) string {
	field := padLeft(r.Amount(minor), amountWidth)
	switch {
	case minor > 0:
		return creditStyle.Render(field)
	case minor < 0:
		return debitStyle.Render(field)
	}
	return field
}

// Matrix renders the monthly cash-flow matrix followed by a summary.
func (r Renderer) Matrix(m service.Matrix) string {
	cols := []string{"Planned in", "Planned out", "Planned net", "Realised in", "Realised out", "Realised net", "Planned bal", "Realised bal"}
	header := padRight("Month", monthWidth)
	for _, c := range cols {
		header += " " + padLeft(c, amountWidth)
	}
	lines := []string{
		titleStyle.Render(fmt.Sprintf("Cash flow %s .. %s", m.Meta.From, m.Meta.To)),
		tableHeaderStyle.Render(header),
	}
	for _, e := range m.Months {
		fields := []string{
			padRight(e.Month.String(), monthWidth),
			padLeft(r.Amount(e.PlannedIncome), amountWidth),
			padLeft(r.Amount(e.PlannedExpense), amountWidth),
			r.signed(e.PlannedNet),
			padLeft(r.Amount(e.RealisedIncome), amountWidth),
			padLeft(r.Amount(e.RealisedExpense), amountWidth),
			r.signed(e.RealisedNet),
			r.signed(e.PlannedCumAdj),
			r.signed(e.RealisedCumAdj),
		}
		lines = append(lines, strings.Join(fields, " "))
	}
	lines = append(lines, "",
		labelStyle.Render(fmt.Sprintf("%-16s", "Opening balance"))+" "+valueStyle.Render(r.Amount(m.Meta.OpeningBalance)),
		labelStyle.Render(fmt.Sprintf("%-16s", "Worst point"))+" "+
			valueStyle.Render(fmt.Sprintf("%s (%s)", r.Amount(m.Meta.WorstValue), m.Meta.WorstMonth)),
	)
	if n := len(m.Meta.SkippedOrphans); n > 0 {
		lines = append(lines, warnStyle.Render(fmt.Sprintf("%d schedule rows skipped: parent missing", n)))
	}
	return strings.Join(lines, "\n")
}

// Suggestions renders ranked candidates for one external transaction.
func (r Renderer) Suggestions(ext repository.ExternalTransaction, sugs []service.Suggestion) string {
	lines := []string{
		titleStyle.Render(fmt.Sprintf("%s  %s  %s %s", ext.PostedDate.Format(money.DateLayout),
			r.Amount(ext.Direction.Sign()*ext.Amount), ext.ExternalID, truncate(ext.RawDescription, descWidth))),
	}
	if len(sugs) == 0 {
		return strings.Join(append(lines, mutedStyle.Render("  no candidates")), "\n")
	}
	lines = append(lines, tableHeaderStyle.Render(fmt.Sprintf("  %-5s %-10s %*s  %-5s %-*s %s",
		"Conf", "Date", amountWidth, "Amount", "Sim", descWidth, "Description", "Movement")))
	for _, s := range sugs {
		lines = append(lines, fmt.Sprintf("  %-5.2f %-10s %s  %-5.2f %s %s",
			s.Confidence, s.Movement.Date.Format(money.DateLayout), r.signed(s.Movement.Amount),
			s.Evidence.Similarity, padRight(truncate(s.Movement.Description, descWidth), descWidth),
			mutedStyle.Render(s.Movement.ID)))
	}
	return strings.Join(lines, "\n")
}

// Transactions renders a list of external transactions, e.g. the
// unreconciled queue.
func (r Renderer) Transactions(txs []repository.ExternalTransaction) string {
	if len(txs) == 0 {
		return mutedStyle.Render("nothing to reconcile")
	}
	lines := []string{tableHeaderStyle.Render(fmt.Sprintf("%-10s %*s  %-*s %s",
		"Date", amountWidth, "Amount", descWidth, "Description", "ID"))}
	for _, t := range txs {
		lines = append(lines, fmt.Sprintf("%-10s %s  %s %s",
			t.PostedDate.Format(money.DateLayout), r.signed(t.Direction.Sign()*t.Amount),
			padRight(truncate(t.RawDescription, descWidth), descWidth), mutedStyle.Render(t.ID)))
	}
	lines = append(lines, mutedStyle.Render(fmt.Sprintf("── %d unreconciled ──", len(txs))))
	return strings.Join(lines, "\n")
}

// padRight pads s with spaces so its visual width equals width.
func padRight(s string, width int) string {
	w := ansi.StringWidth(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

func padLeft(s string, width int) string {
	w := ansi.StringWidth(s)
	if w >= width {
		return s
	}
	return strings.Repeat(" ", width-w) + s
}

// truncate shortens s to width cells, appending "…" if truncated.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return ansi.Truncate(s, width, "…")
}
