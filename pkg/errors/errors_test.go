package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErpErrorInterface(t *testing.T) {
	tests := []struct {
		name     string
		err      ErpError
		wantCode int
		wantCat  Category
		wantSev  Severity
	}{
		{
			name:     "validation error",
			err:      ValidationError("test validation error"),
			wantCode: CodeValidationError,
			wantCat:  CategoryValidation,
			wantSev:  SeverityError,
		},
		{
			name:     "certificate error",
			err:      CertificateError("https://erp.example/VAUCertificate", fmt.Errorf("bad der")),
			wantCode: CodeCertificateError,
			wantCat:  CategoryVAU,
			wantSev:  SeverityCritical,
		},
		{
			name:     "unencrypted gateway",
			err:      UnencryptedGatewayError("https://erp.example/VAU/0", 500, "application/octet-stream", "req-1", []byte("boom")),
			wantCode: CodeUnencryptedGateway,
			wantCat:  CategoryVAU,
			wantSev:  SeverityError,
		},
		{
			name:     "malformed inner response",
			err:      MalformedInnerResponse("missing status line", "", 0),
			wantCode: CodeMalformedInnerResponse,
			wantCat:  CategoryProtocol,
			wantSev:  SeverityError,
		},
		{
			name:     "authentication runtime",
			err:      AuthenticationRuntimeError("smartcard", fmt.Errorf("card removed")),
			wantCode: CodeAuthenticationRuntime,
			wantCat:  CategoryAuth,
			wantSev:  SeverityError,
		},
		{
			name:     "channel not ready",
			err:      ChannelNotReady("uninitialized"),
			wantCode: CodeChannelNotReady,
			wantCat:  CategoryInternal,
			wantSev:  SeverityCritical,
		},
		{
			name:     "operation canceled",
			err:      OperationCanceled("send", nil),
			wantCode: CodeOperationCanceled,
			wantCat:  CategoryCancelled,
			wantSev:  SeverityInfo,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, tt.err.Code())
			assert.Equal(t, tt.wantCat, tt.err.Category())
			assert.Equal(t, tt.wantSev, tt.err.Severity())
			assert.NotEmpty(t, tt.err.Error())
			assert.NotNil(t, tt.err.Context())
		})
	}
}

func TestErrorContext(t *testing.T) {
	err := ValidationError("test error")
	require.NotNil(t, err.Context())
	original := err.Context().Timestamp

	withCtx := err.WithContext(&Context{
		RequestID: "123",
		Component: "Channel",
		Operation: "send",
	})

	ctx := withCtx.Context()
	assert.Equal(t, "123", ctx.RequestID)
	assert.Equal(t, "Channel", ctx.Component)
	assert.Equal(t, original, ctx.Timestamp, "zero timestamp should be inherited")

	// the receiver is left untouched
	assert.Empty(t, err.Context().RequestID)
}

func TestWithDetailAccumulates(t *testing.T) {
	err := ValidationError("invalid body").
		WithDetail("first").
		WithDetail("second")

	assert.Equal(t, "first; second", err.Details())
	assert.Equal(t, "invalid body: first; second", err.Error())
}

func TestErrorWrapping(t *testing.T) {
	root := fmt.Errorf("connection reset")
	conn := ConnectionFailed("https://erp.example/VAU/0", root)
	outer := TransportError("send", "https://erp.example/VAU/0", 12, conn)

	assert.True(t, stderrors.Is(outer, root))
	assert.True(t, IsCode(outer, CodeTransportError))
	assert.True(t, IsCode(outer, CodeConnectionFailed))
	assert.False(t, IsCode(outer, CodeConnectionTimeout))

	data, ok := outer.Data().(*TransportErrorData)
	require.True(t, ok)
	assert.Equal(t, 12, data.Attempts)
	assert.Equal(t, "erp.example", data.Endpoint)
	assert.True(t, data.Retryable)

	wrapped := fmt.Errorf("layer: %w", outer)
	erpErr, ok := AsErpError(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeTransportError, erpErr.Code())
	assert.True(t, IsCategory(wrapped, CategoryTransport))
	assert.False(t, IsErpError(root))
}

func TestOperationFailedPreservesCause(t *testing.T) {
	cause := fmt.Errorf("tls: handshake failure")
	err := OperationFailed("send", "https://erp.example/VAU/0", 1, cause)

	assert.Equal(t, cause, err.Unwrap())
	assert.Contains(t, err.Error(), "attempt 1")

	data := err.Data().(*TransportErrorData)
	assert.False(t, data.Retryable)
	assert.Equal(t, 1, err.Context().Attempt)
}

func TestContentInvalid(t *testing.T) {
	err := ContentInvalid("request", 42, []string{"missing resourceType", "unknown field"}, nil)

	assert.Equal(t, CodeValidationError, err.Code())
	assert.Contains(t, err.Error(), "missing resourceType; unknown field")

	data := err.Data().(*ValidationErrorData)
	assert.Equal(t, "request", data.Subject)
	assert.Equal(t, 42, data.Length)
	assert.Len(t, data.Issues, 2)
}

func TestParameterErrors(t *testing.T) {
	err := InvalidParameter("max_retries", -1, "a non-negative integer")
	assert.Equal(t, CodeInvalidParameter, err.Code())
	assert.Contains(t, err.Error(), "int")

	err = InvalidParameter("base_url", "ftp://x", "an http(s) url")
	assert.Contains(t, err.Error(), `string("ftp://x")`)

	missing := MissingParameter("base_url")
	data := missing.Data().(*ParameterErrorData)
	assert.True(t, data.Required)

	cfg := InvalidConfiguration("vau", "base_url", "must not be empty")
	assert.Equal(t, CodeInvalidConfiguration, cfg.Code())
	assert.Equal(t, "vau", cfg.Context().Component)
}

func TestErrorJSONSerialization(t *testing.T) {
	err := UnencryptedGatewayError("https://erp.example/VAU/0", 503, "application/octet-stream", "abc", []byte("unavailable"))

	raw, marshalErr := json.Marshal(err)
	require.NoError(t, marshalErr)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, float64(CodeUnencryptedGateway), decoded["code"])
	assert.Equal(t, "UnencryptedGatewayError", decoded["name"])
	assert.Equal(t, "vau", decoded["category"])

	data := decoded["data"].(map[string]interface{})
	assert.Equal(t, float64(503), data["status_code"])
	assert.Equal(t, float64(len("unavailable")), data["body_length"])
}

func TestErrorCodeRegistry(t *testing.T) {
	for _, info := range ListErrorCodes() {
		assert.Equal(t, info.Name, GetErrorCodeName(info.Code))
		assert.Equal(t, info.Description, GetErrorCodeDescription(info.Code))
		assert.Equal(t, info.Category, GetErrorCodeCategory(info.Code))
		assert.Equal(t, info.Severity, GetErrorCodeSeverity(info.Code))
	}

	assert.Equal(t, "UnknownError", GetErrorCodeName(9999))
	assert.Equal(t, CategoryInternal, GetErrorCodeCategory(9999))
}

func TestConnectionTimeoutMessage(t *testing.T) {
	err := ConnectionTimeout("https://erp.example/VAUCertificate", 5*time.Second, nil)
	assert.Equal(t, "Connection timeout to erp.example after 5s", err.Error())
}
