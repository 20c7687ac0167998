// Package errors provides structured errors for the ERP VAU client.
//
// Every error raised by the client carries a numeric code from codes.go, a
// category and a severity taken from the code registry, an optional cause and
// a Context naming the component and operation that failed. Use IsCode to test
// for a code anywhere in a wrapped chain and AsErpError to get the outermost
// structured error.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// Category groups error codes by concern
type Category string

const (
	CategoryValidation Category = "validation"
	CategoryAuth       Category = "auth"
	CategoryTransport  Category = "transport"
	CategoryVAU        Category = "vau"
	CategoryInternal   Category = "internal"
	CategoryTimeout    Category = "timeout"
	CategoryCancelled  Category = "cancelled"
	CategoryProtocol   Category = "protocol"
)

// Severity ranks how bad an error is for the session
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Context locates an error
type Context struct {
	RequestID string    `json:"request_id,omitempty"`
	Endpoint  string    `json:"endpoint,omitempty"`
	Resource  string    `json:"resource,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Component string    `json:"component,omitempty"`
	Operation string    `json:"operation,omitempty"`
	Attempt   int       `json:"attempt,omitempty"`
}

// ErpError is the structured error returned by all packages of the module.
// The With methods return a modified copy.
type ErpError interface {
	error

	Code() int
	Message() string
	// Details holds technical detail appended to Message in Error()
	Details() string
	// Data is a *...ErrorData struct specific to the code
	Data() interface{}
	Category() Category
	Severity() Severity
	Context() *Context

	WithContext(ctx *Context) ErpError
	WithDetail(detail string) ErpError
	WithData(data interface{}) ErpError

	Unwrap() error
	ToJSON() map[string]interface{}
}

type erpError struct {
	code     int
	message  string
	details  []string
	data     interface{}
	category Category
	severity Severity
	ctx      *Context
	cause    error
}

func (e *erpError) Error() string {
	if len(e.details) == 0 {
		return e.message
	}
	return e.message + ": " + e.Details()
}

func (e *erpError) Code() int                    { return e.code }
func (e *erpError) Message() string              { return e.message }
func (e *erpError) Details() string              { return strings.Join(e.details, "; ") }
func (e *erpError) Data() interface{}            { return e.data }
func (e *erpError) Category() Category           { return e.category }
func (e *erpError) Severity() Severity           { return e.severity }
func (e *erpError) Context() *Context            { return e.ctx }
func (e *erpError) Unwrap() error                { return e.cause }
func (e *erpError) MarshalJSON() ([]byte, error) { return json.Marshal(e.ToJSON()) }

func (e *erpError) clone() *erpError {
	c := *e
	c.details = append([]string(nil), e.details...)
	return &c
}

// WithContext replaces the context. A zero Timestamp keeps the creation time.
func (e *erpError) WithContext(ctx *Context) ErpError {
	c := e.clone()
	if ctx != nil && ctx.Timestamp.IsZero() && e.ctx != nil {
		ctx.Timestamp = e.ctx.Timestamp
	}
	c.ctx = ctx
	return c
}

// WithDetail appends detail; details are joined with "; "
func (e *erpError) WithDetail(detail string) ErpError {
	c := e.clone()
	c.details = append(c.details, detail)
	return c
}

func (e *erpError) WithData(data interface{}) ErpError {
	c := e.clone()
	c.data = data
	return c
}

func (e *erpError) ToJSON() map[string]interface{} {
	out := map[string]interface{}{
		"code":     e.code,
		"name":     GetErrorCodeName(e.code),
		"message":  e.message,
		"category": string(e.category),
		"severity": string(e.severity),
	}
	if len(e.details) > 0 {
		out["details"] = e.Details()
	}
	if e.data != nil {
		out["data"] = e.data
	}
	if e.ctx != nil {
		out["context"] = e.ctx
	}
	if e.cause != nil {
		out["cause"] = e.cause.Error()
	}
	return out
}

// NewError creates an error without cause
func NewError(code int, message string, category Category, severity Severity) ErpError {
	return WrapError(nil, code, message, category, severity)
}

// NewErrorf is NewError with a formatted message
func NewErrorf(code int, category Category, severity Severity, format string, args ...interface{}) ErpError {
	return WrapError(nil, code, fmt.Sprintf(format, args...), category, severity)
}

// WrapError creates an error caused by err. err may be nil.
func WrapError(err error, code int, message string, category Category, severity Severity) ErpError {
	return &erpError{
		code:     code,
		message:  message,
		category: category,
		severity: severity,
		cause:    err,
		ctx:      &Context{Timestamp: time.Now()},
	}
}

// WrapErrorf is WrapError with a formatted message
func WrapErrorf(err error, code int, category Category, severity Severity, format string, args ...interface{}) ErpError {
	return WrapError(err, code, fmt.Sprintf(format, args...), category, severity)
}

// AsErpError finds the outermost ErpError in err's chain.
func AsErpError(err error) (ErpError, bool) {
	var erpErr ErpError
	if err == nil || !stderrors.As(err, &erpErr) {
		return nil, false
	}
	return erpErr, true
}

// IsErpError reports whether err is, or wraps, an ErpError
func IsErpError(err error) bool {
	_, ok := AsErpError(err)
	return ok
}

// IsCategory checks the category of the outermost ErpError
func IsCategory(err error, category Category) bool {
	erpErr, ok := AsErpError(err)
	return ok && erpErr.Category() == category
}

// IsCode reports whether any ErpError in err's chain carries the given code.
func IsCode(err error, code int) bool {
	for ; err != nil; err = stderrors.Unwrap(err) {
		if erpErr, ok := err.(ErpError); ok && erpErr.Code() == code {
			return true
		}
	}
	return false
}
