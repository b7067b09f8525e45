// Package resource keeps fetched video bytes in memory and hands out short-lived, revocable handles to them,
// which can be used as a playback source or a save source until revoked.
package resource

import (
	"bytes"
	"errors"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alanbriolat/bsky-video-dl/generic"
	"github.com/alanbriolat/bsky-video-dl/internal/sync_"
)

const DefaultURLPrefix = "blob:"

var (
	ErrRevoked = errors.New("handle revoked or unknown")
)

// A Blob is an immutable in-memory binary object tagged with its MIME type.
type Blob struct {
	Data     []byte
	MimeType string
}

func NewBlob(data []byte, mimeType string) *Blob {
	return &Blob{Data: data, MimeType: mimeType}
}

func (b *Blob) Size() int {
	return len(b.Data)
}

// A Handle references a Blob through a Store until it is revoked.
type Handle struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (h Handle) IsZero() bool {
	return h.ID == ""
}

type blobsByID = map[string]*Blob

type Store struct {
	prefix string
	blobs  *sync_.RWMutexed[blobsByID]
	log    *zap.SugaredLogger
}

// NewStore creates a Store whose handle URLs are prefix followed by the handle ID.
func NewStore(prefix string) *Store {
	if prefix == "" {
		prefix = DefaultURLPrefix
	}
	return &Store{
		prefix: prefix,
		blobs:  sync_.NewRWMutexed(make(blobsByID)),
		log:    zap.S().Named("resource"),
	}
}

// CreateHandle registers a new handle for the blob. The caller owns the handle and must Revoke it.
func (s *Store) CreateHandle(b *Blob) Handle {
	id := generic.Unwrap(uuid.NewRandom()).String()
	_ = s.blobs.Locked(func(blobs *blobsByID) error {
		(*blobs)[id] = b
		return nil
	})
	s.log.Debugw("handle created", "id", id, "mime_type", b.MimeType, "size", b.Size())
	return Handle{ID: id, URL: s.prefix + id}
}

// Revoke releases the handle, returning true only if this call released it.
func (s *Store) Revoke(h Handle) bool {
	var released bool
	_ = s.blobs.Locked(func(blobs *blobsByID) error {
		if _, ok := (*blobs)[h.ID]; ok {
			delete(*blobs, h.ID)
			released = true
		}
		return nil
	})
	if released {
		s.log.Debugw("handle revoked", "id", h.ID)
	}
	return released
}

// Open returns the blob behind a live handle ID.
func (s *Store) Open(id string) (b *Blob, ok bool) {
	_ = s.blobs.RLocked(func(blobs *blobsByID) error {
		b, ok = (*blobs)[id]
		return nil
	})
	return b, ok
}

// Reader opens a live handle for reading.
func (s *Store) Reader(h Handle) (io.Reader, int, error) {
	b, ok := s.Open(h.ID)
	if !ok {
		return nil, 0, ErrRevoked
	}
	return bytes.NewReader(b.Data), b.Size(), nil
}

// Live returns the number of handles not yet revoked.
func (s *Store) Live() (n int) {
	_ = s.blobs.RLocked(func(blobs *blobsByID) error {
		n = len(*blobs)
		return nil
	})
	return n
}

// WithHandle creates a temporary handle for the blob, runs f with it, and revokes the handle when f returns (or
// panics).
func (s *Store) WithHandle(b *Blob, f func(Handle) error) error {
	h := s.CreateHandle(b)
	defer s.Revoke(h)
	return f(h)
}

// A Resource is a Blob plus its long-lived preview handle, owned by exactly one orchestration run.
type Resource struct {
	Blob    *Blob
	Preview Handle

	store    *Store
	released sync_.Event
}

// NewResource wraps the bytes as a Blob and acquires the preview handle for it.
func (s *Store) NewResource(data []byte, mimeType string) *Resource {
	b := NewBlob(data, mimeType)
	return &Resource{
		Blob:    b,
		Preview: s.CreateHandle(b),
		store:   s,
	}
}

// Release revokes the preview handle. Only the first call has any effect, and only it returns true.
func (r *Resource) Release() bool {
	if r == nil || !r.released.Set() {
		return false
	}
	return r.store.Revoke(r.Preview)
}

// IsReleased reports whether Release has been called.
func (r *Resource) IsReleased() bool {
	return r.released.IsSet()
}
