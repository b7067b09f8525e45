package intake

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	assert_ "github.com/stretchr/testify/assert"
	require_ "github.com/stretchr/testify/require"

	"github.com/alanbriolat/bsky-video-dl/internal/address"
	"github.com/alanbriolat/bsky-video-dl/internal/normalize"
	"github.com/alanbriolat/bsky-video-dl/internal/pubsub"
	"github.com/alanbriolat/bsky-video-dl/internal/resolvertest"
)

const postURL = "https://bsky.app/profile/alice.bsky.social/post/abc"

type fixture struct {
	intake    *Intake
	resolver  *resolvertest.Resolver
	validated pubsub.Channel[Validated]
	address   *address.Memory
}

func newFixture(t *testing.T, hasVideo func(ctx context.Context, postURL string) (bool, error)) *fixture {
	start, _ := url.Parse("http://localhost:8080/?theme=dark")
	f := &fixture{
		resolver:  &resolvertest.Resolver{HasVideoFunc: hasVideo},
		validated: pubsub.NewChannel[Validated](10),
		address:   address.NewMemory(start),
	}
	f.intake = New(f.resolver, f.validated, f.address)
	t.Cleanup(f.intake.Close)
	return f
}

// drainValidated returns every Validated sent so far.
func (f *fixture) drainValidated() (out []Validated) {
	for {
		select {
		case v := <-f.validated.Receive():
			out = append(out, v)
		default:
			return out
		}
	}
}

func (f *fixture) addressPostURL() (string, bool) {
	current, _ := f.address.Current()
	return address.PostURL(current)
}

func TestIsValid(t *testing.T) {
	valid := []string{
		postURL,
		"  " + postURL + "\n",
		"https://bsky.app/profile/x/post/",
		"https://bsky.app/profile/did:plc:abc/post/3k",
	}
	invalid := []string{
		"",
		"   ",
		"http://bsky.app/profile/alice/post/abc",
		"https://bsky.app/profile/alice",
		"https://bsky.app/post/abc",
		"https://staging.bsky.app/profile/alice/post/abc",
		"https://bsky.app/profile/",
		"see https://bsky.app/profile/alice/post/abc",
	}
	for _, s := range valid {
		assert_.True(t, IsValid(s), s)
	}
	for _, s := range invalid {
		assert_.False(t, IsValid(s), s)
	}
}

func TestIntake_Edit(t *testing.T) {
	assert := assert_.New(t)
	f := newFixture(t, func(context.Context, string) (bool, error) { return false, nil })

	assert.Equal(State{Status: StatusEmpty, ButtonLabel: LabelCheck}, f.intake.State())

	assert.False(f.intake.Edit("https://bsky.app/profile/alice"))
	assert.Equal(StatusInvalid, f.intake.State().Status)
	assert.False(f.intake.State().CanCheck)

	assert.True(f.intake.Edit(postURL))
	assert.Equal(StatusValidSyntax, f.intake.State().Status)
	assert.True(f.intake.State().CanCheck)

	// Get an error showing, then break the shape again: error cleared, action disabled
	assert.Nil(f.intake.Check(context.Background()))
	assert.Equal(MessageNoVideo, f.intake.State().Error)
	assert.False(f.intake.Edit(postURL[:20]))
	state := f.intake.State()
	assert.Equal("", state.Error)
	assert.False(state.CanCheck)
	assert.Equal(StatusInvalid, state.Status)

	assert.False(f.intake.Edit(""))
	assert.Equal(StatusEmpty, f.intake.State().Status)
}

func TestIntake_CheckNotReady(t *testing.T) {
	assert := assert_.New(t)
	f := newFixture(t, func(context.Context, string) (bool, error) { return true, nil })

	assert.ErrorIs(f.intake.Check(context.Background()), ErrNotReady)
	f.intake.Edit("not a link")
	assert.ErrorIs(f.intake.Check(context.Background()), ErrNotReady)
	assert.Empty(f.resolver.Calls(), "invalid input never reaches the resolver")
}

func TestIntake_CheckHasVideo(t *testing.T) {
	require := require_.New(t)
	f := newFixture(t, func(context.Context, string) (bool, error) { return true, nil })

	f.intake.Edit("  " + postURL + " ")
	require.NoError(f.intake.Check(context.Background()))

	state := f.intake.State()
	require.Equal(StatusConfirmed, state.Status)
	require.Equal(postURL, state.Confirmed)
	require.Equal("", state.Error)
	require.True(state.CanCheck)
	require.Equal(LabelCheck, state.ButtonLabel)

	require.Equal([]Validated{{URL: postURL}}, f.drainValidated())

	got, ok := f.addressPostURL()
	require.True(ok)
	require.Equal(postURL, got)
	current, _ := f.address.Current()
	require.Equal("dark", current.Query().Get("theme"))
	require.Len(f.address.History(), 1, "address is replaced, not pushed")
}

func TestIntake_CheckNoVideo(t *testing.T) {
	assert := assert_.New(t)
	f := newFixture(t, func(context.Context, string) (bool, error) { return false, nil })

	f.intake.Edit(postURL)
	assert.Nil(f.intake.Check(context.Background()))

	state := f.intake.State()
	assert.Equal(StatusError, state.Status)
	assert.Equal("no video found in this post.", state.Error)
	assert.True(state.CanCheck)
	assert.Equal(LabelCheck, state.ButtonLabel)
	assert.Empty(f.drainValidated())
	_, ok := f.addressPostURL()
	assert.False(ok)
}

func TestIntake_CheckFailure(t *testing.T) {
	cases := []struct {
		name     string
		hasVideo func(context.Context, string) (bool, error)
		expected string
	}{
		{
			name:     "error message",
			hasVideo: func(context.Context, string) (bool, error) { return false, errors.New("boom") },
			expected: "boom",
		},
		{
			name:     "bare Error",
			hasVideo: func(context.Context, string) (bool, error) { return false, errors.New("Error") },
			expected: normalize.FriendlyMessage,
		},
		{
			name:     "panic with string",
			hasVideo: func(context.Context, string) (bool, error) { panic("RuntimeError: unreachable executed") },
			expected: normalize.FriendlyMessage,
		},
		{
			name:     "panic with opaque value",
			hasVideo: func(context.Context, string) (bool, error) { panic(struct{ code int }{7}) },
			expected: normalize.FriendlyMessage,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert := assert_.New(t)
			f := newFixture(t, c.hasVideo)
			f.intake.Edit(postURL)
			assert.Nil(f.intake.Check(context.Background()))
			state := f.intake.State()
			assert.Equal(StatusError, state.Status)
			assert.Equal(c.expected, state.Error)
			assert.True(state.CanCheck)
			assert.Equal(LabelCheck, state.ButtonLabel)
			assert.Empty(f.drainValidated())
		})
	}
}

func TestIntake_Checking(t *testing.T) {
	require := require_.New(t)
	gate := resolvertest.NewGate[bool]()
	f := newFixture(t, func(ctx context.Context, _ string) (bool, error) { return gate.Wait(ctx) })

	f.intake.Edit(postURL)
	done := make(chan error, 1)
	go func() { done <- f.intake.Check(context.Background()) }()

	require.Eventually(func() bool { return f.intake.State().Status == StatusChecking }, time.Second, time.Millisecond)
	state := f.intake.State()
	require.False(state.CanCheck)
	require.Equal(LabelChecking, state.ButtonLabel)

	// Enter does nothing while the action is disabled
	require.NoError(f.intake.Enter(context.Background()))
	require.Len(f.resolver.Calls(), 1)

	gate.Open(false)
	require.NoError(<-done)
	require.Equal(LabelCheck, f.intake.State().ButtonLabel)
	require.True(f.intake.State().CanCheck)
}

func TestIntake_EnterAndSetURL(t *testing.T) {
	assert := assert_.New(t)
	f := newFixture(t, func(context.Context, string) (bool, error) { return true, nil })

	assert.Nil(f.intake.Enter(context.Background()))
	assert.Empty(f.resolver.Calls())

	f.intake.Edit(postURL)
	assert.Nil(f.intake.Enter(context.Background()))
	assert.Len(f.resolver.Calls(), 1)

	assert.Nil(f.intake.SetURL(context.Background(), "https://example.com/nope"))
	assert.Len(f.resolver.Calls(), 1)
	assert.Equal("https://example.com/nope", f.intake.State().Raw)

	other := "https://bsky.app/profile/bob.bsky.social/post/xyz"
	assert.Nil(f.intake.SetURL(context.Background(), other))
	assert.Equal(resolvertest.Call{Method: "HasVideo", URL: other}, f.resolver.Calls()[1])
	assert.Equal(other, f.intake.State().Confirmed)
	assert.Equal([]Validated{{URL: postURL}, {URL: other}}, f.drainValidated())
}

func TestIntake_Subscribe(t *testing.T) {
	require := require_.New(t)
	f := newFixture(t, func(context.Context, string) (bool, error) { return true, nil })

	states, err := f.intake.Subscribe()
	require.NoError(err)
	var seen []State
	done := make(chan struct{})
	go func() {
		defer close(done)
		for s := range states.Receive() {
			seen = append(seen, s)
		}
	}()

	f.intake.Edit(postURL)
	require.NoError(f.intake.Check(context.Background()))
	f.intake.Close()
	<-done

	require.Len(seen, 3)
	require.Equal(StatusValidSyntax, seen[0].Status)
	require.Equal(StatusChecking, seen[1].Status)
	require.Equal(StatusConfirmed, seen[2].Status)
}

func TestIntake_Closed(t *testing.T) {
	assert := assert_.New(t)
	f := newFixture(t, func(context.Context, string) (bool, error) { return true, nil })
	f.intake.Close()
	f.intake.Close()
	assert.False(f.intake.Edit(postURL))
	assert.ErrorIs(f.intake.Check(context.Background()), ErrClosed)
	assert.ErrorIs(f.intake.SetURL(context.Background(), postURL), ErrClosed)
}

func TestIntake_SlowSubscriberDoesNotBlockState(t *testing.T) {
	require := require_.New(t)
	f := newFixture(t, func(context.Context, string) (bool, error) { return true, nil })
	states, err := f.intake.Subscribe()
	require.NoError(err)
	defer states.Close()

	// Nobody reads states yet, so publishing backs up after a few edits
	inputs := []string{"a", "b", "c", "d", "e", "f"}
	edited := make(chan struct{})
	go func() {
		defer close(edited)
		for _, text := range inputs {
			f.intake.Edit(text)
		}
	}()
	require.Eventually(func() bool {
		return f.intake.State().Raw == "d"
	}, time.Second, time.Millisecond)

	var received []string
	for len(received) < len(inputs) {
		received = append(received, (<-states.Receive()).Raw)
	}
	<-edited
	require.Equal(inputs, received, "published in order")
	require.Equal("f", f.intake.State().Raw)
}
