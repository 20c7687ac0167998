package errors

// Error codes are grouped in ranges by concern.
const (
	// Validation Errors (1000 to 1099)
	CodeValidationError  int = 1000 // Payload failed schema validation
	CodeMissingParameter int = 1001 // Required parameter missing
	CodeInvalidParameter int = 1002 // Parameter has invalid value

	// Authentication Errors (1100 to 1199)
	CodeAuthenticationRuntime int = 1100 // Signing/authentication collaborator failed unexpectedly
	CodeTokenUnavailable      int = 1101 // No bearer token is available

	// Transport Errors (1200 to 1299)
	CodeTransportError    int = 1200 // Transient failure surfaced after exhausting retries
	CodeConnectionFailed  int = 1201 // I/O failure while establishing the connection
	CodeConnectionTimeout int = 1202 // Connect timeout
	CodeOperationFailed   int = 1203 // Non-retryable failure of a network call
	CodeOperationTimeout  int = 1204 // Request exceeded its deadline
	CodeOperationCanceled int = 1205 // Caller canceled the request

	// VAU Errors (1300 to 1399)
	CodeCertificateError     int = 1300 // Tunnel certificate could not be fetched or parsed
	CodeUnencryptedGateway   int = 1301 // Gateway answered with plaintext instead of ciphertext
	CodeVauDecryption        int = 1302 // Tunnel response could not be decrypted
	CodeVauEncryption        int = 1303 // Inner request could not be encrypted
	CodeChannelNotReady      int = 1304 // Channel used before Initialize completed
	CodeInvalidConfiguration int = 1305 // Channel or client configuration is invalid

	// Protocol Errors (1400 to 1499)
	CodeMalformedInnerResponse int = 1400 // Inner HTTP response could not be decoded
	CodeMalformedInnerRequest  int = 1401 // Inner HTTP request could not be decoded
	CodeUnexpectedPayload      int = 1402 // Inner response body does not match the expected type
)

// ErrorCodeInfo provides human-readable information about error codes
type ErrorCodeInfo struct {
	Code        int
	Name        string
	Description string
	Category    Category
	Severity    Severity
}

// errorCodeRegistry maps error codes to their information
var errorCodeRegistry = map[int]ErrorCodeInfo{
	// Validation Errors
	CodeValidationError:  {CodeValidationError, "ValidationError", "Payload failed validation", CategoryValidation, SeverityError},
	CodeMissingParameter: {CodeMissingParameter, "MissingParameter", "Required parameter missing", CategoryValidation, SeverityError},
	CodeInvalidParameter: {CodeInvalidParameter, "InvalidParameter", "Invalid parameter value", CategoryValidation, SeverityError},

	// Authentication Errors
	CodeAuthenticationRuntime: {CodeAuthenticationRuntime, "AuthenticationRuntimeError", "Authentication collaborator failed", CategoryAuth, SeverityError},
	CodeTokenUnavailable:      {CodeTokenUnavailable, "TokenUnavailable", "No bearer token available", CategoryAuth, SeverityError},

	// Transport Errors
	CodeTransportError:    {CodeTransportError, "TransportError", "Transport error", CategoryTransport, SeverityError},
	CodeConnectionFailed:  {CodeConnectionFailed, "ConnectionFailed", "Connection failed", CategoryTransport, SeverityError},
	CodeConnectionTimeout: {CodeConnectionTimeout, "ConnectionTimeout", "Connection timeout", CategoryTransport, SeverityError},
	CodeOperationFailed:   {CodeOperationFailed, "OperationFailed", "Operation failed", CategoryTransport, SeverityError},
	CodeOperationTimeout:  {CodeOperationTimeout, "OperationTimeout", "Operation timed out", CategoryTimeout, SeverityError},
	CodeOperationCanceled: {CodeOperationCanceled, "OperationCanceled", "Operation canceled", CategoryCancelled, SeverityInfo},

	// VAU Errors
	CodeCertificateError:     {CodeCertificateError, "CertificateError", "Tunnel certificate invalid", CategoryVAU, SeverityCritical},
	CodeUnencryptedGateway:   {CodeUnencryptedGateway, "UnencryptedGatewayError", "Gateway returned plaintext", CategoryVAU, SeverityError},
	CodeVauDecryption:        {CodeVauDecryption, "VauDecryptionError", "Tunnel response could not be decrypted", CategoryVAU, SeverityError},
	CodeVauEncryption:        {CodeVauEncryption, "VauEncryptionError", "Inner request could not be encrypted", CategoryVAU, SeverityError},
	CodeChannelNotReady:      {CodeChannelNotReady, "ChannelNotReady", "Channel not initialized", CategoryInternal, SeverityCritical},
	CodeInvalidConfiguration: {CodeInvalidConfiguration, "InvalidConfiguration", "Invalid configuration", CategoryValidation, SeverityCritical},

	// Protocol Errors
	CodeMalformedInnerResponse: {CodeMalformedInnerResponse, "MalformedInnerResponseError", "Inner HTTP response malformed", CategoryProtocol, SeverityError},
	CodeMalformedInnerRequest:  {CodeMalformedInnerRequest, "MalformedInnerRequestError", "Inner HTTP request malformed", CategoryProtocol, SeverityError},
	CodeUnexpectedPayload:      {CodeUnexpectedPayload, "UnexpectedPayload", "Unexpected response payload", CategoryProtocol, SeverityError},
}

// GetErrorCodeInfo returns information about an error code
func GetErrorCodeInfo(code int) (ErrorCodeInfo, bool) {
	info, exists := errorCodeRegistry[code]
	return info, exists
}

// GetErrorCodeName returns the name of an error code
func GetErrorCodeName(code int) string {
	if info, exists := errorCodeRegistry[code]; exists {
		return info.Name
	}
	return "UnknownError"
}

// GetErrorCodeDescription returns the description of an error code
func GetErrorCodeDescription(code int) string {
	if info, exists := errorCodeRegistry[code]; exists {
		return info.Description
	}
	return "Unknown error"
}

// GetErrorCodeCategory returns the category of an error code
func GetErrorCodeCategory(code int) Category {
	if info, exists := errorCodeRegistry[code]; exists {
		return info.Category
	}
	return CategoryInternal
}

// GetErrorCodeSeverity returns the severity of an error code
func GetErrorCodeSeverity(code int) Severity {
	if info, exists := errorCodeRegistry[code]; exists {
		return info.Severity
	}
	return SeverityError
}

// ListErrorCodes returns all registered error codes
func ListErrorCodes() []ErrorCodeInfo {
	codes := make([]ErrorCodeInfo, 0, len(errorCodeRegistry))
	for _, info := range errorCodeRegistry {
		codes = append(codes, info)
	}
	return codes
}

// newCoded builds an error whose category and severity come from the registry.
func newCoded(code int, message string, cause error) ErpError {
	if cause == nil {
		return NewError(code, message, GetErrorCodeCategory(code), GetErrorCodeSeverity(code))
	}
	return WrapError(cause, code, message, GetErrorCodeCategory(code), GetErrorCodeSeverity(code))
}
