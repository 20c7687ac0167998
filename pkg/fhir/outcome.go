package fhir

import (
	"fmt"
	"strings"
)

// ResourceTypeOperationOutcome is the resourceType of an OperationOutcome
const ResourceTypeOperationOutcome = "OperationOutcome"

// Issue severities
const (
	SeverityFatal       = "fatal"
	SeverityError       = "error"
	SeverityWarning     = "warning"
	SeverityInformation = "information"
)

// OperationOutcome is the error body of a non-2xx inner response
type OperationOutcome struct {
	ResourceType string         `json:"resourceType"`
	ID           string         `json:"id,omitempty"`
	Issue        []OutcomeIssue `json:"issue"`
}

// OutcomeIssue is a single issue of an OperationOutcome
type OutcomeIssue struct {
	Severity    string           `json:"severity"`
	Code        string           `json:"code"`
	Details     *CodeableConcept `json:"details,omitempty"`
	Diagnostics string           `json:"diagnostics,omitempty"`
	Expression  []string         `json:"expression,omitempty"`
}

// CodeableConcept is the reduced FHIR CodeableConcept used in issue details
type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// Coding identifies a code in a code system
type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

// NewOperationOutcome creates an outcome with a single issue
func NewOperationOutcome(severity, code, text string) *OperationOutcome {
	return &OperationOutcome{
		ResourceType: ResourceTypeOperationOutcome,
		Issue: []OutcomeIssue{{
			Severity: severity,
			Code:     code,
			Details:  &CodeableConcept{Text: text},
		}},
	}
}

// Text returns the human readable part of the issue
func (i OutcomeIssue) Text() string {
	if i.Details != nil && i.Details.Text != "" {
		return i.Details.Text
	}
	if i.Details != nil {
		for _, c := range i.Details.Coding {
			if c.Display != "" {
				return c.Display
			}
		}
	}
	return i.Diagnostics
}

// Summary joins the issues into one line, e.g. for logs
func (o *OperationOutcome) Summary() string {
	if o == nil || len(o.Issue) == 0 {
		return ""
	}
	parts := make([]string, 0, len(o.Issue))
	for _, issue := range o.Issue {
		part := fmt.Sprintf("%s/%s", issue.Severity, issue.Code)
		if text := issue.Text(); text != "" {
			part += ": " + text
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, "; ")
}
