package errors

import (
	"fmt"
	"strings"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// FormatForTerminal formats a PipelineError for terminal output with ANSI colors
func (e PipelineError) FormatForTerminal() string {
	var sb strings.Builder

	severityColor := getSeverityColor(e.Severity)
	sb.WriteString(fmt.Sprintf("%s%s%s [%s/%s]: %s\n",
		colorBold+severityColor,
		titleCase(e.Severity.String()),
		colorReset,
		e.Stage,
		e.Code,
		e.Message))

	if e.Location.File != "" {
		if e.Location.Line > 0 {
			sb.WriteString(fmt.Sprintf("  %s-->%s %s:%d\n",
				colorCyan, colorReset, e.Location.File, e.Location.Line))
		} else {
			sb.WriteString(fmt.Sprintf("  %s-->%s %s\n",
				colorCyan, colorReset, e.Location.File))
		}
	}

	return sb.String()
}

// FormatListForTerminal formats every error in the list, separated by
// blank lines, with a trailing summary count.
func FormatListForTerminal(errs List) string {
	var sb strings.Builder

	for _, e := range errs {
		sb.WriteString(e.FormatForTerminal())
		sb.WriteString("\n")
	}

	errorCount := 0
	warningCount := 0
	for _, e := range errs {
		if e.IsError() {
			errorCount++
		} else if e.IsWarning() {
			warningCount++
		}
	}

	if errorCount > 0 {
		sb.WriteString(fmt.Sprintf("%s%d error(s)%s", colorRed, errorCount, colorReset))
		if warningCount > 0 {
			sb.WriteString(fmt.Sprintf(", %s%d warning(s)%s", colorYellow, warningCount, colorReset))
		}
		sb.WriteString("\n")
	} else if warningCount > 0 {
		sb.WriteString(fmt.Sprintf("%s%d warning(s)%s\n", colorYellow, warningCount, colorReset))
	}

	return sb.String()
}

func getSeverityColor(s Severity) string {
	switch s {
	case Fatal, Error:
		return colorRed
	case Warning:
		return colorYellow
	default:
		return colorCyan
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
