package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))             // green
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))             // red
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))            // yellow
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))            // cyan
	detailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))           // light grey
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69")) // purple
)

var symbols = map[string]string{
	"pass":    "✓",
	"fail":    "✗",
	"warning": "!",
	"arrow":   "→",
	"bullet":  "•",
}

func render(style lipgloss.Style, text string) string {
	if NoColor != nil && *NoColor {
		return text
	}
	return style.Render(text)
}

func printHeader(w io.Writer, text string) {
	_, _ = fmt.Fprintln(w, render(headerStyle, text))
}

func printSuccess(w io.Writer, text string) {
	_, _ = fmt.Fprintln(w, render(successStyle, symbols["pass"]+" "+text))
}

func printFailure(w io.Writer, text string) {
	_, _ = fmt.Fprintln(w, render(errorStyle, symbols["fail"]+" "+text))
}

func printWarning(w io.Writer, text string) {
	_, _ = fmt.Fprintln(w, render(warningStyle, symbols["warning"]+" "+text))
}

func printInfo(w io.Writer, text string) {
	_, _ = fmt.Fprintln(w, render(infoStyle, text))
}

func printDetail(w io.Writer, text string) {
	_, _ = fmt.Fprintln(w, render(detailStyle, "  "+symbols["bullet"]+" "+text))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
