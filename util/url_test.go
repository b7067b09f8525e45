package util

import (
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

func TestParsePostURL(t *testing.T) {
	assert := assert_.New(t)

	ref, err := ParsePostURL("  https://bsky.app/profile/alice.bsky.social/post/3kabc  ")
	assert.Nil(err)
	assert.Equal(PostRef{Actor: "alice.bsky.social", RKey: "3kabc"}, ref)
	assert.False(ref.IsDID())

	ref, err = ParsePostURL("http://example.com/profile/did:plc:abc123/post/xyz")
	assert.Nil(err)
	assert.Equal("did:plc:abc123", ref.Actor)
	assert.True(ref.IsDID())
}

func TestParsePostURL_Invalid(t *testing.T) {
	cases := map[string]string{
		"":                                      "URL cannot be empty",
		"bsky.app/profile/a/post/b":             "URL must start with http:// or https://",
		"https://bsky.app/profile/a":            "invalid URL format",
		"https://bsky.app/profile/a/post/":      "post ID cannot be empty",
		"https://bsky.app/profile//post/b":      "handle/DID cannot be empty",
		"https://bsky.app/post/b/profile/a":     "'post' must come after 'profile'",
		"https://bsky.app/profile/a/posts/post/": "post ID cannot be empty",
	}
	for input, message := range cases {
		t.Run(input, func(t *testing.T) {
			_, err := ParsePostURL(input)
			assert_.ErrorIs(t, err, ErrInvalidPostURL)
			assert_.Contains(t, err.Error(), message)
		})
	}
}
