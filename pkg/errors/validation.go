package errors

import (
	"fmt"
	"strings"
)

// ValidationErrorData contains structured data for validation errors
type ValidationErrorData struct {
	Subject string   `json:"subject,omitempty"`
	Length  int      `json:"length"`
	Issues  []string `json:"issues,omitempty"`
}

// ParameterErrorData contains structured data for parameter-related errors
type ParameterErrorData struct {
	Parameter string      `json:"parameter"`
	Value     interface{} `json:"value,omitempty"`
	Type      string      `json:"type,omitempty"`
	Required  bool        `json:"required,omitempty"`
	Reason    string      `json:"reason,omitempty"`
}

// ValidationError creates a generic validation error
func ValidationError(message string) ErpError {
	return newCoded(CodeValidationError, message, nil)
}

// ValidationErrorf creates a generic validation error with formatting
func ValidationErrorf(format string, args ...interface{}) ErpError {
	return newCoded(CodeValidationError, fmt.Sprintf(format, args...), nil)
}

// ContentInvalid reports a payload that failed schema validation. subject names
// what was validated ("request", "response").
func ContentInvalid(subject string, length int, issues []string, cause error) ErpError {
	message := fmt.Sprintf("%s content is invalid", subject)
	if len(issues) > 0 {
		message = fmt.Sprintf("%s: %s", message, strings.Join(issues, "; "))
	}

	return newCoded(CodeValidationError, message, cause).
		WithData(&ValidationErrorData{
			Subject: subject,
			Length:  length,
			Issues:  issues,
		})
}

// InvalidParameter creates an error for invalid parameter values
func InvalidParameter(param string, value interface{}, expected string) ErpError {
	var got string
	if value != nil {
		got = fmt.Sprintf("%T", value)
		if str, ok := value.(string); ok && len(str) < 100 {
			got = fmt.Sprintf("%s(%q)", got, str)
		}
	} else {
		got = "nil"
	}

	return newCoded(
		CodeInvalidParameter,
		fmt.Sprintf("Invalid parameter '%s': expected %s, got %s", param, expected, got),
		nil,
	).WithData(&ParameterErrorData{
		Parameter: param,
		Value:     value,
		Type:      got,
		Reason:    fmt.Sprintf("expected %s", expected),
	})
}

// MissingParameter creates an error for missing required parameters
func MissingParameter(param string) ErpError {
	return newCoded(
		CodeMissingParameter,
		fmt.Sprintf("Missing required parameter: %s", param),
		nil,
	).WithData(&ParameterErrorData{
		Parameter: param,
		Required:  true,
	})
}

// InvalidConfiguration reports a configuration value that cannot be used.
func InvalidConfiguration(component, parameter, reason string) ErpError {
	return newCoded(
		CodeInvalidConfiguration,
		fmt.Sprintf("Invalid %s configuration for '%s': %s", component, parameter, reason),
		nil,
	).WithData(&ParameterErrorData{
		Parameter: parameter,
		Reason:    reason,
	}).WithContext(&Context{Component: component})
}

// EncodingError reports a request payload that could not be serialized into
// mediaType. Nothing was sent.
func EncodingError(mediaType string, cause error) ErpError {
	return newCoded(
		CodeValidationError,
		fmt.Sprintf("Request body cannot be encoded as %s", mediaType),
		cause,
	).WithData(&ValidationErrorData{Subject: "request"})
}
