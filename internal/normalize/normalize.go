// Package normalize turns whatever a failed call produced (an error, a recovered panic value, a string, or some
// arbitrary structured value) into a stable, user-facing message.
package normalize

import (
	"fmt"
	"reflect"
	"strings"
)

const (
	// DefaultMessage is used when nothing textual can be extracted from the failure.
	DefaultMessage = "failed to check url."
	// FriendlyMessage replaces messages that carry no useful information for the user.
	FriendlyMessage = "failed to check url. make sure it's a valid bsky post."
)

type messager interface {
	Message() string
}

// Message extracts display text from v, falling back to DefaultMessage.
func Message(v any) string {
	return MessageOr(v, DefaultMessage)
}

// MessageOr extracts display text from v, trying in order:
//  1. a non-empty message property (Message() method, "message" map key, Message string field, or Error() of an
//     error value);
//  2. v itself if it is textual;
//  3. v's textual conversion (fmt.Stringer);
//  4. fallback.
func MessageOr(v any, fallback string) string {
	if v == nil {
		return fallback
	}
	if msg, ok := messageProperty(v); ok {
		return msg
	}
	if s, ok := textual(v); ok {
		return s
	}
	if s, ok := v.(fmt.Stringer); ok && !isNilPointer(v) {
		return s.String()
	}
	return fallback
}

// Friendly is Message with generic or crash-like results replaced by FriendlyMessage.
func Friendly(v any) string {
	msg := Message(v)
	if msg == DefaultMessage || msg == "Error" || strings.Contains(msg, "unreachable") {
		return FriendlyMessage
	}
	return msg
}

func messageProperty(v any) (string, bool) {
	if isNilPointer(v) {
		return "", false
	}
	switch m := v.(type) {
	case messager:
		if msg := m.Message(); msg != "" {
			return msg, true
		}
	case error:
		if msg := m.Error(); msg != "" {
			return msg, true
		}
	case map[string]any:
		if msg, ok := m["message"].(string); ok && msg != "" {
			return msg, true
		}
	case map[string]string:
		if msg := m["message"]; msg != "" {
			return msg, true
		}
	}
	rv := reflect.Indirect(reflect.ValueOf(v))
	if rv.Kind() == reflect.Struct {
		if f := rv.FieldByName("Message"); f.IsValid() && f.CanInterface() && f.Kind() == reflect.String {
			if msg := f.String(); msg != "" {
				return msg, true
			}
		}
	}
	return "", false
}

func textual(v any) (string, bool) {
	if s, ok := v.(string); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String(), true
	}
	return "", false
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
