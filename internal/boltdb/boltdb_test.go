package boltdb

import (
	"net/url"
	"path/filepath"
	"testing"

	require_ "github.com/stretchr/testify/require"

	"github.com/alanbriolat/bsky-video-dl/internal/address"
)

func TestDatabase_ReplaceSurvivesReopen(t *testing.T) {
	require := require_.New(t)
	path := filepath.Join(t.TempDir(), "state.db")

	db, err := New(path)
	require.NoError(err)
	version, err := db.Version()
	require.NoError(err)
	require.Equal(currentVersion, version)

	current, err := db.Current()
	require.NoError(err)
	_, ok := address.PostURL(current)
	require.False(ok)

	base, _ := url.Parse("http://localhost:8080/")
	post := "https://bsky.app/profile/alice.bsky.social/post/abc"
	require.NoError(db.Replace(address.WithPostURL(base, post)))
	require.NoError(db.Close())

	db, err = New(path)
	require.NoError(err)
	defer db.Close()
	current, err = db.Current()
	require.NoError(err)
	got, ok := address.PostURL(current)
	require.True(ok)
	require.Equal(post, got)
	require.Equal("localhost:8080", current.Host)
}
