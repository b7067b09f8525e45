package bsky_video_dl

import (
	"encoding/json"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
	require_ "github.com/stretchr/testify/require"

	"github.com/alanbriolat/bsky-video-dl/generic"
)

func TestVideoInfo_FormatExtension(t *testing.T) {
	cases := []struct {
		mimeType string
		format   string
		ext      string
	}{
		{"video/mp4", "MP4", "mp4"},
		{"video/webm", "WEBM", "webm"},
		{"video/quicktime; codecs=avc1", "QUICKTIME", "quicktime"},
		{"video/", "", "mp4"},
		{"", "", "mp4"},
		{"garbage", "", "mp4"},
		{"video/a/b", "A", "a"},
		{"Video/MP4;;bad=", "MP4", "mp4"},
	}
	for _, c := range cases {
		t.Run(c.mimeType, func(t *testing.T) {
			info := &VideoInfo{MimeType: c.mimeType}
			assert_.Equal(t, c.format, info.Format())
			assert_.Equal(t, c.ext, info.Extension())
		})
	}
	var nilInfo *VideoInfo
	assert_.Equal(t, "mp4", nilInfo.Extension())
}

func TestAspectRatio(t *testing.T) {
	assert := assert_.New(t)
	a := AspectRatio{Width: 16, Height: 9}
	assert.Equal("16 × 9", a.String())
	padding, ok := a.PaddingPercent()
	assert.True(ok)
	assert.InDelta(56.25, padding, 0.0001)

	_, ok = AspectRatio{Width: 0, Height: 9}.PaddingPercent()
	assert.False(ok)
}

func TestVideoInfo_JSON(t *testing.T) {
	require := require_.New(t)

	var info VideoInfo
	require.NoError(json.Unmarshal([]byte(`{"cid":"bafy","mimeType":"video/mp4","size":2500000,"aspectRatio":{"width":16,"height":9}}`), &info))
	require.Equal("bafy", info.ContentID)
	require.Equal(generic.Some[int64](2500000), info.Size)
	require.Equal(generic.Some(AspectRatio{16, 9}), info.AspectRatio)

	info = VideoInfo{}
	require.NoError(json.Unmarshal([]byte(`{"cid":"bafy","mimeType":"video/mp4"}`), &info))
	require.True(info.Size.IsNone())
	require.True(info.AspectRatio.IsNone())

	data, err := json.Marshal(&info)
	require.NoError(err)
	require.JSONEq(`{"cid":"bafy","mimeType":"video/mp4","size":null,"aspectRatio":null}`, string(data))
}
