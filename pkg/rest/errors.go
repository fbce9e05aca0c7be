package rest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// APIError: ответ сервера с truthy полем error (или не-2xx без тела-конверта).
type APIError struct {
	Status int
	Reason string
}

func (e *APIError) Error() string {
	if e.Status != 0 && e.Status/100 != 2 {
		return fmt.Sprintf("blacket: %s (status %d)", e.Reason, e.Status)
	}
	return "blacket: " + e.Reason
}

// IsReason: err является APIError с одной из перечисленных причин.
func IsReason(err error, reasons ...string) bool {
	var ae *APIError
	if !errors.As(err, &ae) {
		return false
	}
	for _, r := range reasons {
		if ae.Reason == r {
			return true
		}
	}
	return false
}

type envelope struct {
	Error  json.RawMessage `json:"error"`
	Reason json.RawMessage `json:"reason"`
}

func checkEnvelope(status int, raw []byte) error {
	trimmed := bytes.TrimSpace(raw)
	var env envelope
	if len(trimmed) > 0 && trimmed[0] == '{' && json.Unmarshal(trimmed, &env) == nil && truthy(env.Error) {
		return &APIError{Status: status, Reason: reasonText(env.Reason, env.Error)}
	}
	if status/100 != 2 {
		return &APIError{Status: status, Reason: http.StatusText(status)}
	}
	return nil
}

// truthy считает ложью false, 0, "", null и отсутствие поля.
func truthy(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	default:
		return true
	}
}

func reasonText(reason, errField json.RawMessage) string {
	var s string
	if json.Unmarshal(reason, &s) == nil && s != "" {
		return s
	}
	if json.Unmarshal(errField, &s) == nil && s != "" {
		return s
	}
	if len(reason) > 0 && string(reason) != "null" {
		return string(reason)
	}
	return "unknown error"
}
