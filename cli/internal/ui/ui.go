// Package ui renders query results and diagnostics for the terminal.
package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/pterm/pterm"

	"github.com/satishbabariya/quarry/query/executor"
)

var (
	PrimaryColor   = lipgloss.Color("#00D9FF")
	SuccessColor   = lipgloss.Color("#00FF88")
	WarningColor   = lipgloss.Color("#FFB800")
	ErrorColor     = lipgloss.Color("#FF4444")
	SecondaryColor = lipgloss.Color("#6C757D")

	TitleStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true).
			MarginBottom(1)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(SuccessColor).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(WarningColor).
			Bold(true)

	SecondaryStyle = lipgloss.NewStyle().
			Foreground(SecondaryColor)
)

// PrintSuccess prints a success message.
func PrintSuccess(format string, args ...interface{}) {
	fmt.Println(SuccessStyle.Render("✓ " + fmt.Sprintf(format, args...)))
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...interface{}) {
	fmt.Fprintln(os.Stderr, ErrorStyle.Render("✗ "+fmt.Sprintf(format, args...)))
}

// PrintWarning prints a warning message.
func PrintWarning(format string, args ...interface{}) {
	fmt.Println(WarningStyle.Render("⚠ " + fmt.Sprintf(format, args...)))
}

// PrintInfo prints an informational message.
func PrintInfo(format string, args ...interface{}) {
	fmt.Println(SecondaryStyle.Render("ℹ " + fmt.Sprintf(format, args...)))
}

// PrintResult renders a finished query result: a row table on success,
// the error envelope otherwise.
func PrintResult(res *executor.Result) {
	switch res.Status {
	case executor.StatusCompleted:
		PrintRows(res)
		note := fmt.Sprintf("%d row(s)", res.RowCount)
		if res.Truncated {
			note += " (truncated)"
		}
		PrintSuccess("%s", note)
	case executor.StatusInterrupted:
		PrintWarning("query interrupted: %s", res.Error)
	default:
		if res.ErrorType != "" {
			PrintError("[%s] %s", res.ErrorType, res.Error)
		} else {
			PrintError("%s", res.Error)
		}
	}
}

// PrintRows renders result rows as a pterm table.
func PrintRows(res *executor.Result) {
	headers := make([]string, len(res.Data.Cols))
	for i, c := range res.Data.Cols {
		headers[i] = c.Name
	}
	table := pterm.TableData{headers}
	for _, row := range res.Data.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatCell(v)
		}
		table = append(table, cells)
	}
	pterm.DefaultTable.WithHasHeader().WithData(table).Render()
}

func formatCell(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}

// PrintTable prints an arbitrary table.
func PrintTable(headers []string, rows [][]string) {
	table := pterm.TableData{headers}
	table = append(table, rows...)
	pterm.DefaultTable.WithHasHeader().WithData(table).Render()
}

// PrintSQL prints generated SQL in a bordered block.
func PrintSQL(sql string, args []any) {
	block := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(SecondaryColor).
		Padding(0, 1).
		Render(sql)
	fmt.Println(block)
	if len(args) > 0 {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = fmt.Sprintf("%v", a)
		}
		fmt.Println(SecondaryStyle.Render("args: " + strings.Join(parts, ", ")))
	}
}

// PrintMarkdown renders markdown to the terminal.
func PrintMarkdown(content string) error {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return err
	}
	out, err := r.Render(content)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

// Spinner starts a progress spinner.
func Spinner(message string) (*pterm.SpinnerPrinter, error) {
	return pterm.DefaultSpinner.WithText(message).Start()
}

// ColorPrinters returns color printers for the common severities.
func ColorPrinters() map[string]*color.Color {
	return map[string]*color.Color{
		"success": color.New(color.FgGreen, color.Bold),
		"error":   color.New(color.FgRed, color.Bold),
		"warning": color.New(color.FgYellow, color.Bold),
		"info":    color.New(color.FgCyan),
	}
}
