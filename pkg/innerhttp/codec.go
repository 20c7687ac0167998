package innerhttp

import (
	"bytes"
	"sort"
	"strconv"
	"strings"

	"github.com/ajitpratap0/erp-vau-go/pkg/errors"
)

// Encode writes req as
//
//	METHOD SP PATH SP HTTP/1.1 CRLF (Key ": " Value CRLF)* CRLF [body]
//
// Headers are written in insertion order. A single leading slash is dropped from
// the path since the tunnel expects resource-relative locators. Content-Length
// is never computed here; callers add it when they send a body.
func Encode(req *Request) []byte {
	var buf bytes.Buffer
	buf.Grow(64 + len(req.Body))

	buf.WriteString(req.Method)
	buf.WriteByte(' ')
	buf.WriteString(relativePath(req.Path))
	buf.WriteByte(' ')
	buf.WriteString(Protocol)
	buf.WriteString(crlf)

	for _, h := range req.Header {
		buf.WriteString(h.Key)
		buf.WriteString(": ")
		buf.WriteString(h.Value)
		buf.WriteString(crlf)
	}
	buf.WriteString(crlf)
	buf.Write(req.Body)

	return buf.Bytes()
}

// Decode parses an inner response. The status line must carry at least one
// opaque token, the HTTP/1.1 marker and a numeric status code; the reason phrase
// is optional. A buffer that ends right after the header block yields an empty body.
// Header values keep their whitespace apart from the one space after the colon.
func Decode(raw []byte) (*Response, error) {
	if len(raw) == 0 {
		return nil, errors.MalformedInnerResponse("empty input", "", 0)
	}

	head, body := splitMessage(string(raw))
	lines := strings.Split(head, crlf)

	resp, err := parseStatusLine(lines[0], len(raw))
	if err != nil {
		return nil, err
	}

	resp.Header = make(map[string]string, len(lines)-1)
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		key, value, ok := parseHeaderLine(line)
		if !ok {
			return nil, errors.MalformedInnerResponse("header line without colon", line, len(raw))
		}
		resp.Header[key] = value
	}
	resp.Body = body

	return resp, nil
}

// EncodeResponse writes resp in the inner response format. Headers are written
// sorted by key so the output is deterministic.
func EncodeResponse(resp *Response) []byte {
	protocol := resp.Protocol
	if protocol == "" {
		protocol = Protocol
	}

	var buf bytes.Buffer
	buf.Grow(64 + len(resp.Body))

	if resp.Prefix != "" {
		buf.WriteString(resp.Prefix)
		buf.WriteByte(' ')
	}
	buf.WriteString(protocol)
	buf.WriteByte(' ')
	buf.WriteString(strconv.Itoa(resp.StatusCode))
	if resp.Reason != "" {
		buf.WriteByte(' ')
		buf.WriteString(resp.Reason)
	}
	buf.WriteString(crlf)

	keys := make([]string, 0, len(resp.Header))
	for k := range resp.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		buf.WriteString(k)
		buf.WriteString(": ")
		buf.WriteString(resp.Header[k])
		buf.WriteString(crlf)
	}
	buf.WriteString(crlf)
	buf.WriteString(resp.Body)

	return buf.Bytes()
}

// DecodeRequest parses an inner request as produced by Encode. Header values
// are returned exactly as encoded.
func DecodeRequest(raw []byte) (*Request, error) {
	if len(raw) == 0 {
		return nil, errors.MalformedInnerRequest("empty input", "", 0)
	}

	head, body := splitMessage(string(raw))
	lines := strings.Split(head, crlf)

	parts := strings.SplitN(lines[0], " ", 3)
	if len(parts) != 3 || parts[0] == "" || parts[2] != Protocol {
		return nil, errors.MalformedInnerRequest("invalid request line", lines[0], len(raw))
	}

	req := &Request{Method: parts[0], Path: parts[1]}
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		key, value, ok := parseHeaderLine(line)
		if !ok {
			return nil, errors.MalformedInnerRequest("header line without colon", line, len(raw))
		}
		req.AddHeader(key, value)
	}
	if body != "" {
		req.Body = []byte(body)
	}

	return req, nil
}

func splitMessage(text string) (head, body string) {
	head, body, found := strings.Cut(text, crlf+crlf)
	if !found {
		return text, ""
	}
	return head, body
}

func parseStatusLine(line string, length int) (*Response, error) {
	marker := " " + Protocol + " "

	idx := strings.Index(line, marker)
	if idx < 0 {
		if strings.HasPrefix(line, Protocol+" ") {
			return nil, errors.MalformedInnerResponse("missing leading token", line, length)
		}
		if strings.HasSuffix(line, " "+Protocol) {
			return nil, errors.MalformedInnerResponse("missing status code", line, length)
		}
		return nil, errors.MalformedInnerResponse("missing "+Protocol+" marker", line, length)
	}

	prefix := line[:idx]
	if strings.TrimSpace(prefix) == "" {
		return nil, errors.MalformedInnerResponse("missing leading token", line, length)
	}

	code, reason, _ := strings.Cut(line[idx+len(marker):], " ")
	if !isDigits(code) {
		return nil, errors.MalformedInnerResponse("non-numeric status code", line, length)
	}
	status, err := strconv.Atoi(code)
	if err != nil {
		return nil, errors.MalformedInnerResponse("status code out of range", line, length)
	}

	return &Response{
		Prefix:     prefix,
		Protocol:   Protocol,
		StatusCode: status,
		Reason:     reason,
	}, nil
}

// parseHeaderLine splits "Key: Value". Only the single separator space
// written by Encode is removed; the value keeps any other whitespace.
func parseHeaderLine(line string) (key, value string, ok bool) {
	key, value, ok = strings.Cut(line, ":")
	if !ok || strings.TrimSpace(key) == "" {
		return "", "", false
	}
	return key, strings.TrimPrefix(value, " "), true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func relativePath(path string) string {
	if len(path) > 1 && path[0] == '/' {
		return path[1:]
	}
	return path
}
