// Package address mirrors the confirmed post URL into a shareable address, as a single query parameter.
package address

import (
	"net/url"
	"strings"

	"github.com/alanbriolat/bsky-video-dl/internal/sync_"
)

// Param is the query parameter holding the confirmed post URL.
const Param = "url"

// WithPostURL returns a copy of base with the post URL parameter set, replacing any previous value.
func WithPostURL(base *url.URL, post string) *url.URL {
	u := cloneURL(base)
	q := u.Query()
	q.Set(Param, post)
	u.RawQuery = q.Encode()
	return u
}

// PostURL extracts the post URL parameter from an address.
func PostURL(u *url.URL) (string, bool) {
	if u == nil {
		return "", false
	}
	post := strings.TrimSpace(u.Query().Get(Param))
	return post, post != ""
}

// Address is the current shareable address. It is only ever replaced, never pushed.
type Address interface {
	Current() (*url.URL, error)
	Replace(u *url.URL) error
}

func cloneURL(u *url.URL) *url.URL {
	if u == nil {
		return &url.URL{}
	}
	c := *u
	if u.User != nil {
		user := *u.User
		c.User = &user
	}
	return &c
}

// Memory is an in-process Address with a navigation history, where Replace overwrites the last entry.
type Memory struct {
	history *sync_.Mutexed[[]*url.URL]
}

func NewMemory(initial *url.URL) *Memory {
	return &Memory{history: sync_.NewMutexed([]*url.URL{cloneURL(initial)})}
}

func (m *Memory) Current() (current *url.URL, err error) {
	_ = m.history.Locked(func(history *[]*url.URL) error {
		current = cloneURL((*history)[len(*history)-1])
		return nil
	})
	return current, nil
}

func (m *Memory) Replace(u *url.URL) error {
	return m.history.Locked(func(history *[]*url.URL) error {
		(*history)[len(*history)-1] = cloneURL(u)
		return nil
	})
}

// Push adds a new history entry, like following a link.
func (m *Memory) Push(u *url.URL) {
	_ = m.history.Locked(func(history *[]*url.URL) error {
		*history = append(*history, cloneURL(u))
		return nil
	})
}

// History returns a copy of every entry, oldest first.
func (m *Memory) History() (out []*url.URL) {
	_ = m.history.Locked(func(history *[]*url.URL) error {
		out = make([]*url.URL, len(*history))
		for i, u := range *history {
			out[i] = cloneURL(u)
		}
		return nil
	})
	return out
}
