package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different types of errors that can occur
type ErrorType int

const (
	// Configuration errors
	ErrorTypeConfig ErrorType = iota
	// Input collection errors (filesystem walks, remote fetches)
	ErrorTypeCollection
	// Workflow and action document parsing errors
	ErrorTypeWorkflow
	// Expression parsing errors
	ErrorTypeExpression
	// Symbolic location resolution errors
	ErrorTypeResolution
	// API contract violations (programming errors surfaced at runtime)
	ErrorTypeContract
	// An audit declining to run against an input
	ErrorTypeAuditSkip
	// Audit execution errors
	ErrorTypeExecution
	// Policy evaluation errors
	ErrorTypePolicy
	// Report generation errors
	ErrorTypeReport
)

// ArgosError represents a structured error with context
type ArgosError struct {
	Type        ErrorType
	Message     string
	Cause       error
	Details     map[string]interface{}
	Suggestions []string
}

// Error implements the error interface
func (e *ArgosError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)

	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}

	if len(e.Details) > 0 {
		sb.WriteString(" (")
		first := true
		for k, v := range e.Details {
			if !first {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%s: %v", k, v))
			first = false
		}
		sb.WriteString(")")
	}

	return sb.String()
}

// Unwrap returns the underlying error
func (e *ArgosError) Unwrap() error {
	return e.Cause
}

// Is checks if the error is of a specific type
func (e *ArgosError) Is(target error) bool {
	if t, ok := target.(*ArgosError); ok {
		return e.Type == t.Type
	}
	return false
}

// UserFriendlyMessage returns a user-friendly error message with suggestions
func (e *ArgosError) UserFriendlyMessage() string {
	var sb strings.Builder
	sb.WriteString("❌ ")
	sb.WriteString(e.Message)

	if len(e.Suggestions) > 0 {
		sb.WriteString("\n\n💡 Suggestions:")
		for _, suggestion := range e.Suggestions {
			sb.WriteString("\n   • ")
			sb.WriteString(suggestion)
		}
	}

	return sb.String()
}

// IsSkip reports whether err is an audit skip. Skips are ordinary control
// flow: the audit cannot run against this input and says so, which callers
// log and move past rather than treat as a failure.
func IsSkip(err error) bool {
	var ae *ArgosError
	return errors.As(err, &ae) && ae.Type == ErrorTypeAuditSkip
}

// Constructor functions for different error types

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error, suggestions ...string) *ArgosError {
	return &ArgosError{
		Type:        ErrorTypeConfig,
		Message:     message,
		Cause:       cause,
		Suggestions: suggestions,
		Details:     make(map[string]interface{}),
	}
}

// NewCollectionError creates an input collection error
func NewCollectionError(message string, cause error, input string, suggestions ...string) *ArgosError {
	details := make(map[string]interface{})
	if input != "" {
		details["input"] = input
	}

	return &ArgosError{
		Type:        ErrorTypeCollection,
		Message:     message,
		Cause:       cause,
		Details:     details,
		Suggestions: suggestions,
	}
}

// NewWorkflowError creates a workflow parsing error
func NewWorkflowError(message string, cause error, workflowPath string, suggestions ...string) *ArgosError {
	details := make(map[string]interface{})
	if workflowPath != "" {
		details["workflow"] = workflowPath
	}

	return &ArgosError{
		Type:        ErrorTypeWorkflow,
		Message:     message,
		Cause:       cause,
		Details:     details,
		Suggestions: suggestions,
	}
}

// NewExpressionError creates an expression parsing error
func NewExpressionError(message string, cause error, expression string) *ArgosError {
	details := make(map[string]interface{})
	if expression != "" {
		details["expression"] = expression
	}

	return &ArgosError{
		Type:    ErrorTypeExpression,
		Message: message,
		Cause:   cause,
		Details: details,
	}
}

// NewResolutionError creates a location resolution error
func NewResolutionError(message string, route string, documentPath string) *ArgosError {
	details := make(map[string]interface{})
	if route != "" {
		details["route"] = route
	}
	if documentPath != "" {
		details["document"] = documentPath
	}

	return &ArgosError{
		Type:    ErrorTypeResolution,
		Message: message,
		Details: details,
	}
}

// NewContractError creates an API contract violation error
func NewContractError(message string) *ArgosError {
	return &ArgosError{
		Type:    ErrorTypeContract,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// NewSkipError creates an audit skip error
func NewSkipError(message string, auditID string) *ArgosError {
	details := make(map[string]interface{})
	if auditID != "" {
		details["audit"] = auditID
	}

	return &ArgosError{
		Type:    ErrorTypeAuditSkip,
		Message: message,
		Details: details,
	}
}

// NewExecutionError creates an audit execution error
func NewExecutionError(message string, cause error, auditID string, suggestions ...string) *ArgosError {
	details := make(map[string]interface{})
	if auditID != "" {
		details["audit"] = auditID
	}

	return &ArgosError{
		Type:        ErrorTypeExecution,
		Message:     message,
		Cause:       cause,
		Details:     details,
		Suggestions: suggestions,
	}
}

// NewPolicyError creates a policy evaluation error
func NewPolicyError(message string, cause error, policyPath string, suggestions ...string) *ArgosError {
	details := make(map[string]interface{})
	if policyPath != "" {
		details["policy"] = policyPath
	}

	return &ArgosError{
		Type:        ErrorTypePolicy,
		Message:     message,
		Cause:       cause,
		Details:     details,
		Suggestions: suggestions,
	}
}

// NewReportError creates a report generation error
func NewReportError(message string, cause error, outputPath string, suggestions ...string) *ArgosError {
	details := make(map[string]interface{})
	if outputPath != "" {
		details["output"] = outputPath
	}

	return &ArgosError{
		Type:        ErrorTypeReport,
		Message:     message,
		Cause:       cause,
		Details:     details,
		Suggestions: suggestions,
	}
}

// Predefined common errors

// ErrNoInputSpecified creates a no input specified error
func ErrNoInputSpecified() *ArgosError {
	return &ArgosError{
		Type:    ErrorTypeCollection,
		Message: "No inputs specified",
		Details: make(map[string]interface{}),
		Suggestions: []string{
			"Pass one or more workflow files, directories, or owner/repo slugs",
			"Use 'argos --help' to see all available options",
		},
	}
}

// ErrConfigNotFound creates a configuration not found error
func ErrConfigNotFound(configPath string) *ArgosError {
	return NewConfigError(
		fmt.Sprintf("Configuration file not found: %s", configPath),
		nil,
		"Check the file path and permissions",
		"Use default configuration by omitting the --config flag",
	)
}

// ErrInvalidOutputFormat creates an invalid output format error
func ErrInvalidOutputFormat(format string, supportedFormats []string) *ArgosError {
	return &ArgosError{
		Type:    ErrorTypeReport,
		Message: fmt.Sprintf("Invalid output format: %s", format),
		Details: map[string]interface{}{"format": format},
		Suggestions: []string{
			fmt.Sprintf("Use one of the supported formats: %s", strings.Join(supportedFormats, ", ")),
		},
	}
}
