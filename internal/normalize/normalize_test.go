package normalize

import (
	"errors"
	"fmt"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

type withMessage struct {
	Message string
}

type withMessageMethod struct{ msg string }

func (m withMessageMethod) Message() string { return m.msg }

type stringer struct{ s string }

func (s stringer) String() string { return s.s }

type stringerWithEmptyMessage struct {
	Message string
	text    string
}

func (s stringerWithEmptyMessage) String() string { return s.text }

type opaque struct {
	Code int
}

type namedString string

func TestMessage(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"plain string", "boom", "boom"},
		{"empty string", "", ""},
		{"named string kind", namedString("named"), "named"},
		{"error value", errors.New("network down"), "network down"},
		{"wrapped error", fmt.Errorf("fetch: %w", errors.New("eof")), "fetch: eof"},
		{"struct message field", withMessage{Message: "x"}, "x"},
		{"pointer to struct message field", &withMessage{Message: "y"}, "y"},
		{"message method", withMessageMethod{msg: "z"}, "z"},
		{"map message", map[string]any{"message": "from map"}, "from map"},
		{"map non-textual message", map[string]any{"message": 12}, DefaultMessage},
		{"string map message", map[string]string{"message": "s"}, "s"},
		{"empty message falls through to stringer", stringerWithEmptyMessage{text: "converted"}, "converted"},
		{"stringer", stringer{s: "panicked: unreachable code"}, "panicked: unreachable code"},
		{"opaque struct", opaque{Code: 3}, DefaultMessage},
		{"number", 42, DefaultMessage},
		{"nil", nil, DefaultMessage},
		{"nil pointer", (*withMessage)(nil), DefaultMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert_.Equal(t, tt.want, Message(tt.value))
		})
	}
}

func TestMessageOr(t *testing.T) {
	assert := assert_.New(t)
	assert.Equal("failed to download video", MessageOr(opaque{}, "failed to download video"))
	assert.Equal("disk full", MessageOr(errors.New("disk full"), "failed to download video"))
}

func TestFriendly(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"default becomes friendly", opaque{}, FriendlyMessage},
		{"bare Error becomes friendly", errors.New("Error"), FriendlyMessage},
		{"unreachable becomes friendly", stringer{s: "panicked: unreachable code"}, FriendlyMessage},
		{"unreachable panic string", "RuntimeError: unreachable", FriendlyMessage},
		{"meaningful message kept", errors.New("post not found. check that the URL is correct."), "post not found. check that the URL is correct."},
		{"plain value kept", "boom", "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert_.Equal(t, tt.want, Friendly(tt.value))
		})
	}
}
