package client

import (
	"net/url"
	"reflect"
	"strings"

	"github.com/ajitpratap0/erp-vau-go/pkg/innerhttp"
)

// Command describes one FHIR operation against the service
type Command interface {
	// Method is the inner HTTP method
	Method() string
	// RequestLocator is the path and query of the inner request
	RequestLocator() string
	// FhirResource is the resource path reported to the tunnel endpoint
	FhirResource() string
	// HeaderParameters are extra inner headers in wire order
	HeaderParameters() []innerhttp.Header
	// RequestBody returns the resource to send, if any
	RequestBody() (any, bool)
}

// QueryParameter is a single search or operation parameter
type QueryParameter struct {
	Name  string
	Value string
}

// BaseCommand is a Command built from its parts:
//
//	NewCommand(http.MethodPost, "Task").WithOperation("$create").WithBody(parameters)
//
// locates POST /Task/$create.
type BaseCommand struct {
	method    string
	resource  string
	id        string
	operation string
	query     []QueryParameter
	header    []innerhttp.Header
	body      any
}

// NewCommand creates a command on a resource type
func NewCommand(method, resource string) *BaseCommand {
	return &BaseCommand{method: method, resource: strings.Trim(resource, "/")}
}

// WithID targets a single resource instance
func (c *BaseCommand) WithID(id string) *BaseCommand {
	c.id = id
	return c
}

// WithOperation appends a FHIR operation such as "$accept"
func (c *BaseCommand) WithOperation(operation string) *BaseCommand {
	c.operation = operation
	return c
}

// WithQuery appends a query parameter. Parameters keep their order.
func (c *BaseCommand) WithQuery(name, value string) *BaseCommand {
	c.query = append(c.query, QueryParameter{Name: name, Value: value})
	return c
}

// WithHeader appends an inner request header
func (c *BaseCommand) WithHeader(key, value string) *BaseCommand {
	c.header = append(c.header, innerhttp.Header{Key: key, Value: value})
	return c
}

// WithBody sets the resource sent as request body. A nil body, typed or not,
// sends no body.
func (c *BaseCommand) WithBody(body any) *BaseCommand {
	c.body = body
	return c
}

// Method implements Command
func (c *BaseCommand) Method() string {
	return c.method
}

// ResourcePath is "/<resource>" or "/<resource>/<id>"
func (c *BaseCommand) ResourcePath() string {
	path := "/" + c.resource
	if c.id != "" {
		path += "/" + url.PathEscape(c.id)
	}
	return path
}

// FhirResource implements Command. It is the request locator without query.
func (c *BaseCommand) FhirResource() string {
	path := c.ResourcePath()
	if c.operation != "" {
		path += "/" + c.operation
	}
	return path
}

// RequestLocator implements Command
func (c *BaseCommand) RequestLocator() string {
	return c.FhirResource() + c.encodeQuery()
}

// HeaderParameters implements Command
func (c *BaseCommand) HeaderParameters() []innerhttp.Header {
	return append([]innerhttp.Header(nil), c.header...)
}

// RequestBody implements Command
func (c *BaseCommand) RequestBody() (any, bool) {
	if isNilBody(c.body) {
		return nil, false
	}
	return c.body, true
}

// isNilBody reports whether body is nil or a nil pointer, map, slice or
// interface held in a non-nil interface.
func isNilBody(body any) bool {
	if body == nil {
		return true
	}
	switch v := reflect.ValueOf(body); v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}

func (c *BaseCommand) encodeQuery() string {
	if len(c.query) == 0 {
		return ""
	}
	var b strings.Builder
	for i, p := range c.query {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}
	return b.String()
}
