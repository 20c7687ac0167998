package fhir

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnsupportedMediaType is returned by codecs for encodings they do not handle
var ErrUnsupportedMediaType = errors.New("unsupported media type")

// Codec encodes resources for the request body and decodes response bodies
type Codec interface {
	Encode(resource any, mt MediaType) ([]byte, error)
	Decode(data []byte, mt MediaType, into any) error
}

// JSONCodec handles the JSON encodings. XML payloads need a codec backed by a
// FHIR XML parser.
type JSONCodec struct {
	// Indent pretty prints encoded resources
	Indent bool
}

// NewJSONCodec creates a compact JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Encode implements Codec
func (c *JSONCodec) Encode(resource any, mt MediaType) ([]byte, error) {
	if !mt.IsJSON() {
		return nil, fmt.Errorf("encode %s: %w", mt, ErrUnsupportedMediaType)
	}
	if c.Indent {
		return json.MarshalIndent(resource, "", "  ")
	}
	return json.Marshal(resource)
}

// Decode implements Codec. An empty body leaves into untouched.
func (c *JSONCodec) Decode(data []byte, mt MediaType, into any) error {
	if !mt.IsJSON() {
		return fmt.Errorf("decode %s: %w", mt, ErrUnsupportedMediaType)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return json.Unmarshal(data, into)
}

// ResourceType peeks at the resourceType member of a JSON resource
func ResourceType(data []byte) (string, error) {
	var probe struct {
		ResourceType string `json:"resourceType"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return "", err
	}
	return probe.ResourceType, nil
}
