package resource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"

	"github.com/campusdesk/campus/internal/output"
)

// User-facing messages.
const (
	MsgNetwork     = "Network error. Please check your connection."
	MsgTimeout     = "Request timed out. Please try again."
	MsgUnavailable = "Service temporarily unavailable. Please try again shortly."
	MsgCircuitOpen = "Too many failed attempts. Please try again later."
	MsgBadResponse = "Unexpected response from server."

	requiredFieldMsg = "This field is required."
)

// Classify converts any error into an *output.Error. Errors already carrying
// a code pass through unchanged.
func Classify(err error) *output.Error {
	if err == nil {
		return nil
	}
	var e *output.Error
	if errors.As(err, &e) {
		return e
	}
	if isTimeout(err) {
		return output.ErrTimeout(err)
	}
	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) || errors.Is(err, context.Canceled) {
		return output.ErrNetwork(err)
	}
	return output.AsError(err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

// Describe maps an error to the message shown to users.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	e := Classify(err)

	switch e.Code {
	case output.CodeCircuitOpen:
		return MsgCircuitOpen
	case output.CodeUnavailable:
		return MsgUnavailable
	case output.CodeNetwork:
		return MsgNetwork
	case output.CodeTimeout:
		return MsgTimeout
	case output.CodeValidation:
		if msg, ok := ValidationMessage(e.Body); ok {
			return msg
		}
		return e.Message
	case output.CodeDecode:
		return MsgBadResponse
	case output.CodeUsage:
		return e.Message
	}

	switch {
	case e.HTTPStatus == 502:
		return MsgUnavailable
	case e.HTTPStatus > 0:
		return fmt.Sprintf("Error %d: %s", e.HTTPStatus, ServerMessage(e.Body))
	}
	return e.Message
}

// ServerMessage extracts the best message from an error body: its
// "message", then "detail", then the body itself, then "Server Error".
func ServerMessage(body []byte) string {
	body = []byte(strings.TrimSpace(string(body)))
	if len(body) == 0 {
		return "Server Error"
	}

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err == nil {
		for _, key := range []string{"message", "detail"} {
			if s, ok := obj[key].(string); ok && s != "" {
				return s
			}
		}
		return string(body)
	}

	var s string
	if err := json.Unmarshal(body, &s); err == nil {
		if s == "" {
			return "Server Error"
		}
		return s
	}
	return string(body)
}

// ValidationMessage recognizes the backend's 400 shapes:
//
//	{"detail": "..."}
//	{"non_field_errors": ["..."]}
//	{"<field>": ["This field is required."]}
//	{"<field>": ["..."]}
//
// Required-field errors become "Please provide <field>."; anything else is
// returned verbatim. Fields are checked in name order.
func ValidationMessage(body []byte) (string, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil || len(obj) == 0 {
		return "", false
	}

	if raw, ok := obj["detail"]; ok {
		var s string
		if json.Unmarshal(raw, &s) == nil && s != "" {
			return s, true
		}
	}
	if msgs := stringList(obj["non_field_errors"]); len(msgs) > 0 {
		return msgs[0], true
	}

	fields := make([]string, 0, len(obj))
	for k := range obj {
		if k != "detail" && k != "non_field_errors" {
			fields = append(fields, k)
		}
	}
	sort.Strings(fields)

	for _, field := range fields {
		msgs := stringList(obj[field])
		if len(msgs) == 0 {
			continue
		}
		if msgs[0] == requiredFieldMsg {
			return fmt.Sprintf("Please provide %s.", field), true
		}
		return msgs[0], true
	}
	return "", false
}

// stringList accepts ["a", "b"] or a bare "a".
func stringList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return []string{s}
	}
	return nil
}
