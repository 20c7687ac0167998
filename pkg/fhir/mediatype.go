// Package fhir holds the payload side of the inner requests: media types,
// a Codec that turns resources into bytes and back, an optional schema
// Validator, and the OperationOutcome the service answers with on failure.
//
// FHIR semantics are not interpreted here. Resources are plain Go values
// with encoding/json tags; profile validation beyond a JSON schema belongs to
// an external validator plugged in through the Validator interface.
package fhir

import (
	"fmt"
	"mime"
	"strings"
)

// MediaType is a payload media type without parameters
type MediaType string

// Media types understood by the service
const (
	FhirJSON MediaType = "application/fhir+json"
	FhirXML  MediaType = "application/fhir+xml"
	JSON     MediaType = "application/json"
	XML      MediaType = "application/xml"
)

// DefaultCharset is sent as Accept-Charset unless configured otherwise
const DefaultCharset = "utf-8"

var knownMediaTypes = map[MediaType]struct{}{
	FhirJSON: {},
	FhirXML:  {},
	JSON:     {},
	XML:      {},
}

// ParseMediaType parses a Content-Type or Accept value. Parameters such as
// charset are dropped; unknown media types are rejected.
func ParseMediaType(value string) (MediaType, error) {
	mt, _, err := mime.ParseMediaType(strings.TrimSpace(value))
	if err != nil {
		return "", fmt.Errorf("invalid media type %q: %w", value, err)
	}
	m := MediaType(mt)
	if _, ok := knownMediaTypes[m]; !ok {
		return "", fmt.Errorf("unsupported media type %q", mt)
	}
	return m, nil
}

// IsJSON reports whether m is one of the JSON encodings
func (m MediaType) IsJSON() bool {
	return m == FhirJSON || m == JSON
}

// IsXML reports whether m is one of the XML encodings
func (m MediaType) IsXML() bool {
	return m == FhirXML || m == XML
}

// WithCharset renders m with a charset parameter, or bare when charset is empty
func (m MediaType) WithCharset(charset string) string {
	if charset == "" {
		return string(m)
	}
	return mime.FormatMediaType(string(m), map[string]string{"charset": charset})
}

func (m MediaType) String() string {
	return string(m)
}
