// Package diag defines the diagnostic records accumulated during a
// generation run. Diagnostics never abort a run; they travel alongside
// the artifacts so degraded coverage is visible instead of silent.
package diag

import (
	"fmt"
	"strings"
)

// Severity ranks a diagnostic.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic records one recoverable problem found while ingesting a
// document, planning scenarios, synthesizing data, or emitting files.
type Diagnostic struct {
	Severity     Severity
	OperationRef string // "METHOD /path", or "" for document-level problems
	Message      string
	Suggestion   string
}

func (d Diagnostic) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", d.Severity)
	if d.OperationRef != "" {
		fmt.Fprintf(&b, " %s:", d.OperationRef)
	}
	b.WriteString(" " + d.Message)
	if d.Suggestion != "" {
		b.WriteString(" (hint: " + d.Suggestion + ")")
	}
	return b.String()
}

// Errorf builds an error-severity diagnostic for an operation.
func Errorf(opRef, suggestion, format string, args ...any) Diagnostic {
	return Diagnostic{
		Severity:     SeverityError,
		OperationRef: opRef,
		Message:      fmt.Sprintf(format, args...),
		Suggestion:   suggestion,
	}
}

// Warnf builds a warning-severity diagnostic for an operation.
func Warnf(opRef, suggestion, format string, args ...any) Diagnostic {
	return Diagnostic{
		Severity:     SeverityWarning,
		OperationRef: opRef,
		Message:      fmt.Sprintf(format, args...),
		Suggestion:   suggestion,
	}
}

// CountBySeverity tallies diagnostics per severity.
func CountBySeverity(list []Diagnostic) map[Severity]int {
	out := make(map[Severity]int, 3)
	for _, d := range list {
		out[d.Severity]++
	}
	return out
}
