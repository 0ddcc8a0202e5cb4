package errors

import (
	"encoding/json"
)

// JSONOutput represents the JSON structure for error output
type JSONOutput struct {
	Status   string          `json:"status"`
	Errors   []PipelineError `json:"errors"`
	Warnings []PipelineError `json:"warnings"`
	Summary  Summary         `json:"summary"`
}

// Summary contains error and warning counts
type Summary struct {
	ErrorCount   int `json:"error_count"`
	WarningCount int `json:"warning_count"`
	TotalCount   int `json:"total_count"`
}

// MarshalJSON implements json.Marshaler
func (e PipelineError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Stage    string   `json:"stage"`
		Code     string   `json:"code"`
		Message  string   `json:"message"`
		Severity Severity `json:"severity"`
		Location Location `json:"location"`
	}{
		Stage:    e.Stage,
		Code:     e.Code,
		Message:  e.Message,
		Severity: e.Severity,
		Location: e.Location,
	})
}

// FormatAsJSON formats a list of pipeline errors as indented JSON
func FormatAsJSON(errs List) (string, error) {
	var errorList []PipelineError
	var warningList []PipelineError

	for _, err := range errs {
		if err.IsError() {
			errorList = append(errorList, err)
		} else if err.IsWarning() {
			warningList = append(warningList, err)
		}
	}

	status := "ok"
	if len(errorList) > 0 {
		status = "failed"
	}

	out := JSONOutput{
		Status:   status,
		Errors:   errorList,
		Warnings: warningList,
		Summary: Summary{
			ErrorCount:   len(errorList),
			WarningCount: len(warningList),
			TotalCount:   len(errorList) + len(warningList),
		},
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
