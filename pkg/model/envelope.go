package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Envelope is the common response wrapper of the Band API:
// {success, data?, error?, count?}.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
	Count   *int            `json:"count,omitempty"`
	AuthURL string          `json:"auth_url,omitempty"`
}

// ErrorMessage returns the server-provided error text, if any.
func (e *Envelope) ErrorMessage() string {
	return ErrorText(e.Error)
}

// HasData reports whether a non-null data payload is present.
func (e *Envelope) HasData() bool {
	d := bytes.TrimSpace(e.Data)
	return len(d) > 0 && !bytes.Equal(d, []byte("null"))
}

// DecodeData unmarshals the data payload into v.
func (e *Envelope) DecodeData(v any) error {
	if !e.HasData() {
		return fmt.Errorf("response has no data payload")
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("failed to decode data payload: %w", err)
	}
	return nil
}

// CountValue returns the count from either the top level or data.count.
func (e *Envelope) CountValue() (int, bool) {
	if e.Count != nil {
		return *e.Count, true
	}
	if !e.HasData() {
		return 0, false
	}
	var data struct {
		Count *int `json:"count"`
	}
	if err := json.Unmarshal(e.Data, &data); err != nil || data.Count == nil {
		return 0, false
	}
	return *data.Count, true
}

// AuthURLValue returns the auth URL from either the top level or data.auth_url.
func (e *Envelope) AuthURLValue() string {
	if e.AuthURL != "" {
		return e.AuthURL
	}
	var data AuthURLResponse
	if e.HasData() && json.Unmarshal(e.Data, &data) == nil {
		return data.AuthURL
	}
	return ""
}

// ErrorText extracts a message from an error value that may be a JSON string,
// an object with a message field, or anything else.
func ErrorText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var obj struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Message != "" {
			return obj.Message
		}
		if obj.Code != "" {
			return obj.Code
		}
	}
	return strings.TrimSpace(string(raw))
}
