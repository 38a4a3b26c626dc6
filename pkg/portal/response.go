package portal

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const resultSuccess = "success"

var gzipMagic = []byte{0x1f, 0x8b}

// Response is the portal's JSON reply. Each known field is nil when the
// server left it out, so callers can tell "absent" from "empty".
type Response struct {
	Result    *string
	Message   *string
	UserIndex *string

	// Fields keeps the whole document, e.g. the account descriptor returned
	// by getOnlineUserInfo.
	Fields map[string]json.RawMessage
}

// ParseResponse decodes body as JSON. Some portal builds send gzip bytes
// without declaring them; those are detected by magic and inflated first.
func ParseResponse(body []byte) (*Response, error) {
	resp, err := decodeJSON(body)
	if err == nil {
		return resp, nil
	}

	if !bytes.HasPrefix(body, gzipMagic) {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	zr, zerr := gzip.NewReader(bytes.NewReader(body))
	if zerr != nil {
		return nil, fmt.Errorf("%w: gzip: %w", ErrMalformedResponse, zerr)
	}
	defer zr.Close()

	inflated, zerr := io.ReadAll(io.LimitReader(zr, maxBodySize))
	if zerr != nil {
		return nil, fmt.Errorf("%w: gzip: %w", ErrMalformedResponse, zerr)
	}

	resp, err = decodeJSON(inflated)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	return resp, nil
}

func decodeJSON(body []byte) (*Response, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}

	if fields == nil {
		return nil, errEmptyDocument
	}

	return &Response{
		Result:    stringField(fields, "result"),
		Message:   stringField(fields, "message"),
		UserIndex: stringField(fields, "userIndex"),
		Fields:    fields,
	}, nil
}

// stringField returns a JSON string's value, or the literal text of any
// other scalar. null and missing keys yield nil.
func stringField(fields map[string]json.RawMessage, key string) *string {
	raw, ok := fields[key]
	if !ok {
		return nil
	}

	text := strings.TrimSpace(string(raw))
	if text == "null" {
		return nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &s
	}

	return &text
}

// Succeeded reports whether result equals the portal's success sentinel.
func (r *Response) Succeeded() bool {
	return r != nil && r.Result != nil && *r.Result == resultSuccess
}

// MessageOr returns the server message, or def when there is none.
func (r *Response) MessageOr(def string) string {
	if r == nil || r.Message == nil || *r.Message == "" {
		return def
	}

	return *r.Message
}

// Token returns the session's userIndex.
func (r *Response) Token() (string, bool) {
	if r == nil || r.UserIndex == nil || *r.UserIndex == "" {
		return "", false
	}

	return *r.UserIndex, true
}
