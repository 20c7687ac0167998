package errors

import (
	"fmt"
	"net/url"
	"time"
)

// TransportErrorData contains structured data for transport-related errors
type TransportErrorData struct {
	Transport  string `json:"transport"`
	Operation  string `json:"operation,omitempty"`
	Endpoint   string `json:"endpoint,omitempty"`
	Attempts   int    `json:"attempts"`
	Retryable  bool   `json:"retryable"`
	Reason     string `json:"reason,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
}

// ConnectionErrorData contains structured data for connection-related errors
type ConnectionErrorData struct {
	Transport string        `json:"transport"`
	Endpoint  string        `json:"endpoint,omitempty"`
	Timeout   time.Duration `json:"timeout,omitempty"`
	Retryable bool          `json:"retryable"`
	Reason    string        `json:"reason,omitempty"`
}

// TransportError creates the error surfaced once the retry ceiling is exhausted.
// cause is the last transient failure.
func TransportError(operation, endpoint string, attempts int, cause error) ErpError {
	message := fmt.Sprintf("%s failed after %d attempts", operation, attempts)
	reason := ""
	if cause != nil {
		message = fmt.Sprintf("%s: %s", message, cause.Error())
		reason = cause.Error()
	}

	return newCoded(CodeTransportError, message, cause).
		WithData(&TransportErrorData{
			Transport: "http",
			Operation: operation,
			Endpoint:  endpointHost(endpoint),
			Attempts:  attempts,
			Retryable: true,
			Reason:    reason,
		}).
		WithContext(&Context{
			Endpoint:  endpoint,
			Component: "RetryMiddleware",
			Operation: operation,
			Attempt:   attempts,
		})
}

// OperationFailed wraps a non-retryable failure with the attempt it occurred on.
func OperationFailed(operation, endpoint string, attempt int, cause error) ErpError {
	message := fmt.Sprintf("%s failed on attempt %d", operation, attempt)
	if cause != nil {
		message = fmt.Sprintf("%s: %s", message, cause.Error())
	}

	return newCoded(CodeOperationFailed, message, cause).
		WithData(&TransportErrorData{
			Transport: "http",
			Operation: operation,
			Endpoint:  endpointHost(endpoint),
			Attempts:  attempt,
			Retryable: false,
			Reason:    errorReason(cause),
		}).
		WithContext(&Context{
			Endpoint:  endpoint,
			Component: "RetryMiddleware",
			Operation: operation,
			Attempt:   attempt,
		})
}

// ConnectionFailed creates an error for I/O failures while connecting
func ConnectionFailed(endpoint string, cause error) ErpError {
	message := "Failed to connect"
	if endpoint != "" {
		message = fmt.Sprintf("Failed to connect to %s", endpointHost(endpoint))
	}
	if cause != nil {
		message = fmt.Sprintf("%s: %s", message, cause.Error())
	}

	return newCoded(CodeConnectionFailed, message, cause).
		WithData(&ConnectionErrorData{
			Transport: "http",
			Endpoint:  endpointHost(endpoint),
			Retryable: true,
			Reason:    errorReason(cause),
		})
}

// ConnectionTimeout creates an error for connect timeouts
func ConnectionTimeout(endpoint string, timeout time.Duration, cause error) ErpError {
	message := "Connection timeout"
	if endpoint != "" {
		message = fmt.Sprintf("Connection timeout to %s", endpointHost(endpoint))
	}
	if timeout > 0 {
		message = fmt.Sprintf("%s after %v", message, timeout)
	}

	return newCoded(CodeConnectionTimeout, message, cause).
		WithData(&ConnectionErrorData{
			Transport: "http",
			Endpoint:  endpointHost(endpoint),
			Timeout:   timeout,
			Retryable: true,
			Reason:    "timeout",
		})
}

// HTTPTransportError creates an error for HTTP exchanges that failed after the
// connection was established. These are never retried: the request may already
// have reached the server.
func HTTPTransportError(operation, endpoint string, statusCode int, cause error) ErpError {
	message := fmt.Sprintf("HTTP %s failed", operation)
	if statusCode > 0 {
		message = fmt.Sprintf("%s with status %d", message, statusCode)
	}
	if cause != nil {
		message = fmt.Sprintf("%s: %s", message, cause.Error())
	}

	return newCoded(CodeOperationFailed, message, cause).
		WithData(&TransportErrorData{
			Transport:  "http",
			Operation:  operation,
			Endpoint:   endpointHost(endpoint),
			Retryable:  false,
			Reason:     errorReason(cause),
			StatusCode: statusCode,
		})
}

// OperationCanceled creates an error for requests abandoned because the caller's
// context ended.
func OperationCanceled(operation string, cause error) ErpError {
	return newCoded(CodeOperationCanceled, fmt.Sprintf("%s canceled", operation), cause)
}

func endpointHost(endpoint string) string {
	if endpoint == "" {
		return ""
	}
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		return u.Host
	}
	return endpoint
}

func errorReason(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// OperationTimeout creates an error for requests that exceeded their deadline
// after the connection was established.
func OperationTimeout(operation, endpoint string, timeout time.Duration, cause error) ErpError {
	message := fmt.Sprintf("%s timed out", operation)
	if timeout > 0 {
		message = fmt.Sprintf("%s after %v", message, timeout)
	}

	return newCoded(CodeOperationTimeout, message, cause).
		WithData(&TransportErrorData{
			Transport: "http",
			Operation: operation,
			Endpoint:  endpointHost(endpoint),
			Retryable: false,
			Reason:    "timeout",
		})
}
