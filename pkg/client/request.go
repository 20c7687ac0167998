package client

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	erperrors "github.com/ajitpratap0/erp-vau-go/pkg/errors"
	"github.com/ajitpratap0/erp-vau-go/pkg/fhir"
	"github.com/ajitpratap0/erp-vau-go/pkg/innerhttp"
	"github.com/ajitpratap0/erp-vau-go/pkg/logging"
	"github.com/ajitpratap0/erp-vau-go/pkg/observability"
)

// Mandated inner request headers
const (
	HeaderAcceptCharset = "Accept-Charset"
	HeaderAuthorization = "Authorization"
	HeaderAccept        = "Accept"
	HeaderContentType   = "Content-Type"
	HeaderContentLength = "Content-Length"
)

// Response is the typed answer to a Command. On 2xx Resource holds the
// decoded body; otherwise Outcome holds the OperationOutcome, if the body was
// one.
type Response[R any] struct {
	StatusCode int
	Header     map[string]string
	Duration   time.Duration
	Resource   *R
	Outcome    *fhir.OperationOutcome
	Body       string
	// RequestID is the X-Request-Id of the outer response
	RequestID string
	// Encrypted is false when the gateway answered in plaintext
	Encrypted bool
}

// IsSuccess reports a 2xx status
func (r *Response[R]) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// ExpectResource returns the decoded resource or an UnexpectedPayload error
// when there is none
func (r *Response[R]) ExpectResource() (*R, error) {
	if r.Resource == nil {
		cause := errors.New("response has no resource")
		if r.Outcome != nil {
			cause = fmt.Errorf("operation outcome: %s", r.Outcome.Summary())
		}
		return nil, erperrors.UnexpectedPayload(typeName[R](), r.StatusCode, cause)
	}
	return r.Resource, nil
}

// Do runs cmd on c and decodes the answer into R. The token is refreshed
// first; a payload rejected by request validation is never sent.
func Do[R any](ctx context.Context, c *Client, cmd Command) (resp *Response[R], err error) {
	if logging.RequestIDFromContext(ctx) == "" {
		ctx = logging.ContextWithRequestID(ctx, logging.NewRequestID())
	}

	ctx, span := observability.StartSpan(ctx, c.tracer, "client.request", trace.SpanKindClient,
		observability.AttrResource.String(cmd.FhirResource()),
	)
	start := time.Now()
	defer func() {
		c.metrics.RecordRequest(ctx, cmd.Method(), observability.StatusOf(err), time.Since(start))
		observability.EndSpan(span, err)
	}()

	logger := c.logger.WithContext(ctx).WithFields(
		logging.String("method", cmd.Method()),
		logging.String("resource", cmd.FhirResource()),
	)

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	body, err := c.encodeBody(cmd)
	if err != nil {
		return nil, err
	}
	if err := c.validate(ctx, c.config.ValidateRequest, "request", body); err != nil {
		return nil, err
	}

	inner := innerhttp.NewRequest(cmd.Method(), cmd.RequestLocator())
	inner.Header = buildHeaders(cmd.HeaderParameters(), c.mandatedHeaders(token.Value, len(body)))
	inner.Body = body

	logger.Debug("Sending request", logging.Int("body_length", len(body)))
	sent := time.Now()
	result, err := c.channel.Send(ctx, inner, token.Value, cmd.FhirResource())
	if err != nil {
		logger.WithError(err).Error("Request failed")
		return nil, err
	}
	duration := time.Since(sent)

	answer := result.Response
	span.SetAttributes(observability.AttrStatusCode.Int(answer.StatusCode))
	if err := c.validate(ctx, c.config.ValidateResponse, "response", []byte(answer.Body)); err != nil {
		return nil, err
	}

	resp = &Response[R]{
		StatusCode: answer.StatusCode,
		Header:     answer.Header,
		Duration:   duration,
		Body:       answer.Body,
		RequestID:  result.RequestID,
		Encrypted:  result.Encrypted,
	}
	if err := decodeInto(c, resp, answer); err != nil {
		return nil, err
	}

	logger.Info("Request completed",
		logging.Int("status", resp.StatusCode),
		logging.Duration("duration", duration),
		logging.String("request_id", resp.RequestID),
	)
	return resp, nil
}

func (c *Client) encodeBody(cmd Command) ([]byte, error) {
	resource, ok := cmd.RequestBody()
	if !ok || isNilBody(resource) {
		return nil, nil
	}
	body, err := c.codec.Encode(resource, c.config.SendMime)
	if err != nil {
		return nil, erperrors.EncodingError(string(c.config.SendMime), err)
	}
	return body, nil
}

func (c *Client) validate(ctx context.Context, enabled bool, subject string, content []byte) error {
	if !enabled {
		return nil
	}
	logger := c.logger.WithContext(ctx)
	logger.Info(fmt.Sprintf("Validating %s content", subject), logging.Int("length", len(content)))

	err := c.validator.Validate(content)
	if err == nil {
		return nil
	}

	var issues []string
	var invalid *fhir.InvalidContentError
	if errors.As(err, &invalid) {
		issues = invalid.Issues
	}
	verr := erperrors.ContentInvalid(subject, len(content), issues, err)
	logger.WithError(verr).Error(fmt.Sprintf("%s content is invalid", subject))
	return verr
}

func (c *Client) mandatedHeaders(accessToken string, contentLength int) []innerhttp.Header {
	return []innerhttp.Header{
		{Key: HeaderAcceptCharset, Value: c.config.AcceptCharset},
		{Key: HeaderAuthorization, Value: "Bearer " + accessToken},
		{Key: HeaderAccept, Value: string(c.config.AcceptMime)},
		{Key: HeaderContentType, Value: string(c.config.SendMime)},
		{Key: HeaderContentLength, Value: strconv.Itoa(contentLength)},
	}
}

// buildHeaders keeps the caller headers in order, drops those a mandated
// header replaces, and appends the mandated headers. Keys compare without
// case.
func buildHeaders(caller, mandated []innerhttp.Header) []innerhttp.Header {
	replaced := make(map[string]struct{}, len(mandated))
	for _, h := range mandated {
		replaced[strings.ToLower(h.Key)] = struct{}{}
	}

	headers := make([]innerhttp.Header, 0, len(caller)+len(mandated))
	for _, h := range caller {
		if _, ok := replaced[strings.ToLower(h.Key)]; ok {
			continue
		}
		headers = append(headers, h)
	}
	return append(headers, mandated...)
}

// decodeInto decodes a 2xx body into R and any other body into an
// OperationOutcome. Only a 2xx body that cannot be decoded is an error; error
// bodies that are no OperationOutcome stay available as raw Body.
func decodeInto[R any](c *Client, resp *Response[R], answer *innerhttp.Response) error {
	if strings.TrimSpace(answer.Body) == "" {
		return nil
	}
	mt := c.responseMediaType(answer)

	if resp.IsSuccess() {
		var resource R
		if err := c.codec.Decode([]byte(answer.Body), mt, &resource); err != nil {
			return erperrors.UnexpectedPayload(typeName[R](), answer.StatusCode, err)
		}
		resp.Resource = &resource
		return nil
	}

	var outcome fhir.OperationOutcome
	if err := c.codec.Decode([]byte(answer.Body), mt, &outcome); err != nil || outcome.ResourceType != fhir.ResourceTypeOperationOutcome {
		c.logger.Debug("Error response carries no OperationOutcome", logging.Int("status", answer.StatusCode))
		return nil
	}
	resp.Outcome = &outcome
	return nil
}

// responseMediaType is the Content-Type of the answer, or the accepted media
// type when it is missing or unknown
func (c *Client) responseMediaType(answer *innerhttp.Response) fhir.MediaType {
	if ct, ok := answer.Get(HeaderContentType); ok {
		if mt, err := fhir.ParseMediaType(ct); err == nil {
			return mt
		}
	}
	return c.config.AcceptMime
}

func typeName[R any]() string {
	t := reflect.TypeOf((*R)(nil)).Elem()
	return t.String()
}
