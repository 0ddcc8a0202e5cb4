package errors

import (
	"fmt"
)

// Severity represents the severity level of a pipeline error
type Severity int

const (
	Info Severity = iota
	Warning
	Error
	Fatal
)

// String returns the string representation of the severity
func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler for Severity
func (s Severity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for Severity
func (s *Severity) UnmarshalJSON(data []byte) error {
	str := string(data)
	if len(str) >= 2 && str[0] == '"' && str[len(str)-1] == '"' {
		str = str[1 : len(str)-1]
	}

	switch str {
	case "info":
		*s = Info
	case "warning":
		*s = Warning
	case "error":
		*s = Error
	case "fatal":
		*s = Fatal
	default:
		*s = Error
	}
	return nil
}

// Location points at the input file a pipeline error originated from.
// Line is zero when the error is not tied to a specific line (for example
// a missing file, or an engine exit status).
type Location struct {
	File string `json:"file"`
	Line int    `json:"line"`
}

// PipelineError represents an error raised by one of the build stages.
// Every stage failure is terminal: the pipeline publishes nothing after
// the first error (there is no local recovery or partial output).
type PipelineError struct {
	Stage    string   // "manifest", "recipe", "render", "engine", "verify"
	Code     string   // stable code, e.g. "MAN001"
	Message  string   // human-readable message
	Location Location // input file and line, when known
	Severity Severity
}

// Error implements the error interface
func (e PipelineError) Error() string {
	if e.Location.File == "" {
		return fmt.Sprintf("%s: %s: %s", e.Stage, e.Code, e.Message)
	}
	if e.Location.Line == 0 {
		return fmt.Sprintf("%s: %s: %s: %s", e.Location.File, e.Stage, e.Code, e.Message)
	}
	return fmt.Sprintf("%s:%d: %s: %s: %s", e.Location.File, e.Location.Line, e.Stage, e.Code, e.Message)
}

// New creates a new PipelineError at Error severity
func New(stage, code, message string) PipelineError {
	return PipelineError{
		Stage:    stage,
		Code:     code,
		Message:  message,
		Severity: Error,
	}
}

// Newf creates a new PipelineError with a formatted message
func Newf(stage, code, format string, args ...interface{}) PipelineError {
	return New(stage, code, fmt.Sprintf(format, args...))
}

// At attaches an input location to the error
func (e PipelineError) At(file string, line int) PipelineError {
	e.Location = Location{File: file, Line: line}
	return e
}

// AsFatal raises the severity to Fatal
func (e PipelineError) AsFatal() PipelineError {
	e.Severity = Fatal
	return e
}

// IsError returns true if the error is at Error or Fatal severity
func (e PipelineError) IsError() bool {
	return e.Severity == Error || e.Severity == Fatal
}

// IsWarning returns true if the error is at Warning severity
func (e PipelineError) IsWarning() bool {
	return e.Severity == Warning
}

// List is an ordered collection of pipeline errors from a single run.
type List []PipelineError

// Error implements the error interface for a non-empty list
func (l List) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	default:
		return fmt.Sprintf("%s (and %d more)", l[0].Error(), len(l)-1)
	}
}

// HasErrors reports whether the list contains at least one entry at
// Error severity or above.
func (l List) HasErrors() bool {
	for _, e := range l {
		if e.IsError() {
			return true
		}
	}
	return false
}
