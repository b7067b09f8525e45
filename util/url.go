package util

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidPostURL = errors.New("invalid post URL")
)

// A PostRef identifies a post by its author (handle or DID) and record key.
type PostRef struct {
	Actor string
	RKey  string
}

func (r PostRef) IsDID() bool {
	return strings.HasPrefix(r.Actor, "did:")
}

func postURLError(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidPostURL, msg)
}

// ParsePostURL extracts the author and record key from a URL shaped like
// https://{domain}/profile/{handle-or-did}/post/{rkey}.
func ParsePostURL(s string) (PostRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return PostRef{}, postURLError("URL cannot be empty")
	}
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return PostRef{}, postURLError("URL must start with http:// or https://")
	}
	if !strings.Contains(s, "/profile/") || !strings.Contains(s, "/post/") {
		return PostRef{}, postURLError("invalid URL format. expected format: https://{domain}/profile/{handle}/post/{rkey}")
	}

	parts := strings.Split(s, "/")
	profileIdx, postIdx := indexOf(parts, "profile"), indexOf(parts, "post")
	switch {
	case profileIdx < 0:
		return PostRef{}, postURLError("no 'profile' segment found in URL")
	case postIdx < 0:
		return PostRef{}, postURLError("no 'post' segment found in URL")
	case profileIdx+1 >= len(parts):
		return PostRef{}, postURLError("no handle/DID found after 'profile' in URL")
	case postIdx+1 >= len(parts):
		return PostRef{}, postURLError("no post ID found after 'post' in URL")
	case postIdx <= profileIdx:
		return PostRef{}, postURLError("invalid URL structure: 'post' must come after 'profile'")
	}

	ref := PostRef{Actor: parts[profileIdx+1], RKey: parts[postIdx+1]}
	if ref.Actor == "" {
		return PostRef{}, postURLError("handle/DID cannot be empty")
	}
	if ref.RKey == "" {
		return PostRef{}, postURLError("post ID cannot be empty")
	}
	return ref, nil
}

func indexOf(parts []string, s string) int {
	for i, p := range parts {
		if p == s {
			return i
		}
	}
	return -1
}
