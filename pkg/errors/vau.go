package errors

import (
	"fmt"
)

// GatewayErrorData describes an outer tunnel response that was not usable.
type GatewayErrorData struct {
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
	BodyLength  int    `json:"body_length"`
}

// CodecErrorData describes an inner HTTP decode failure.
type CodecErrorData struct {
	Reason string `json:"reason"`
	Line   string `json:"line,omitempty"`
	Length int    `json:"length"`
}

// AuthErrorData contains structured data for authentication errors
type AuthErrorData struct {
	Strategy string `json:"strategy,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// CertificateError reports a tunnel certificate that could not be fetched or parsed.
func CertificateError(endpoint string, cause error) ErpError {
	message := "Error while requesting VAU certificate"
	if endpoint != "" {
		message = fmt.Sprintf("Error while requesting VAU certificate from %s", endpoint)
	}
	if cause != nil {
		message = fmt.Sprintf("%s: %s", message, cause.Error())
	}

	return newCoded(CodeCertificateError, message, cause).
		WithContext(&Context{
			Endpoint:  endpoint,
			Component: "Channel",
			Operation: "fetch_certificate",
		})
}

// UnencryptedGatewayError reports a non-2xx tunnel response that carries plaintext
// where ciphertext was expected. body is never decrypted.
func UnencryptedGatewayError(endpoint string, statusCode int, contentType, requestID string, body []byte) ErpError {
	return newCoded(
		CodeUnencryptedGateway,
		fmt.Sprintf("VAU gateway answered with status %d and an unencrypted %q body", statusCode, contentType),
		nil,
	).WithData(&GatewayErrorData{
		StatusCode:  statusCode,
		ContentType: contentType,
		RequestID:   requestID,
		BodyLength:  len(body),
	}).WithContext(&Context{
		RequestID: requestID,
		Endpoint:  endpoint,
		Component: "Channel",
		Operation: "classify_response",
	})
}

// VauDecryptionError reports ciphertext that could not be opened with the
// response key of the request.
func VauDecryptionError(requestID string, length int, cause error) ErpError {
	return newCoded(
		CodeVauDecryption,
		fmt.Sprintf("Error while decoding VAU response of length %d", length),
		cause,
	).WithContext(&Context{
		RequestID: requestID,
		Component: "Channel",
		Operation: "decrypt",
	})
}

// VauEncryptionError reports an inner request that could not be sealed.
func VauEncryptionError(cause error) ErpError {
	return newCoded(CodeVauEncryption, "Error while encrypting VAU request", cause).
		WithContext(&Context{
			Component: "Channel",
			Operation: "encrypt",
		})
}

// ChannelNotReady reports a Send on a channel that has not completed Initialize.
func ChannelNotReady(state string) ErpError {
	return newCoded(
		CodeChannelNotReady,
		fmt.Sprintf("VAU channel is not ready (state %s); call Initialize first", state),
		nil,
	).WithContext(&Context{
		Component: "Channel",
		Operation: "send",
	})
}

// MalformedInnerResponse reports an inner HTTP response that could not be decoded.
func MalformedInnerResponse(reason, line string, length int) ErpError {
	return newCoded(
		CodeMalformedInnerResponse,
		fmt.Sprintf("Malformed inner HTTP response: %s", reason),
		nil,
	).WithData(&CodecErrorData{
		Reason: reason,
		Line:   line,
		Length: length,
	})
}

// MalformedInnerRequest reports an inner HTTP request that could not be decoded.
func MalformedInnerRequest(reason, line string, length int) ErpError {
	return newCoded(
		CodeMalformedInnerRequest,
		fmt.Sprintf("Malformed inner HTTP request: %s", reason),
		nil,
	).WithData(&CodecErrorData{
		Reason: reason,
		Line:   line,
		Length: length,
	})
}

// UnexpectedPayload reports an inner response body that could not be decoded
// into the type the command expects.
func UnexpectedPayload(expected string, statusCode int, cause error) ErpError {
	return newCoded(
		CodeUnexpectedPayload,
		fmt.Sprintf("Response with status %d does not contain a %s", statusCode, expected),
		cause,
	)
}

// AuthenticationRuntimeError re-signals an unexpected failure of the signing or
// identity collaborator.
func AuthenticationRuntimeError(strategy string, cause error) ErpError {
	message := "Authentication failed unexpectedly"
	if strategy != "" {
		message = fmt.Sprintf("Authentication via %s failed unexpectedly", strategy)
	}
	if cause != nil {
		message = fmt.Sprintf("%s: %s", message, cause.Error())
	}

	return newCoded(CodeAuthenticationRuntime, message, cause).
		WithData(&AuthErrorData{
			Strategy: strategy,
			Reason:   errorReason(cause),
		}).
		WithContext(&Context{
			Component: "TokenProvider",
			Operation: "refresh",
		})
}

// TokenUnavailable reports a token read before any authentication happened.
func TokenUnavailable(reason string) ErpError {
	return newCoded(CodeTokenUnavailable, fmt.Sprintf("No bearer token available: %s", reason), nil)
}
