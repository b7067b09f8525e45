package pubsub

import (
	"strings"
	"sync"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

type testSignal struct {
	URL string
}

func TestFilteredSender_Send(t *testing.T) {
	assert := assert_.New(t)

	ch := NewChannel[int](10)
	filtered := NewFilteredSender[int](ch, func(v int) bool { return v%2 == 0 })

	// Every message is accepted, no indication of filtering
	assert.True(filtered.Send(0))
	assert.True(filtered.Send(1))
	assert.True(filtered.Send(2))
	assert.True(filtered.Send(3))
	assert.True(filtered.Send(4))
	// However, only the filtered messages are received
	assert.Equal(0, <-ch.Receive())
	assert.Equal(2, <-ch.Receive())
	assert.Equal(4, <-ch.Receive())
}

func TestFilteredSender_NilFilter(t *testing.T) {
	assert := assert_.New(t)

	ch := NewChannel[testSignal](2)
	filtered := NewFilteredSender[testSignal](ch, nil)
	assert.True(filtered.Send(testSignal{URL: "a"}))
	assert.Equal("a", (<-ch.Receive()).URL)
}

func TestFilteredSender_Close(t *testing.T) {
	assert := assert_.New(t)

	ch := NewChannel[int](10)
	filtered := NewFilteredSender[int](ch, func(v int) bool { return v%2 == 0 })

	// Closing the filtered sender should close the underlying sender
	filtered.Close()
	<-ch.Closed()
	// And sends should now fail
	assert.False(filtered.Send(0))
}

func TestFilteredSender_Close_Inner(t *testing.T) {
	assert := assert_.New(t)

	ch := NewChannel[int](10)
	filtered := NewFilteredSender[int](ch, func(v int) bool { return v%2 == 0 })

	// Closing the underlying sender should close the filtered sender
	ch.Close()
	<-filtered.Closed()
	// And sends should now fail
	assert.False(filtered.Send(0))
}

func TestFilteredSender_Publisher_AddSubscriber(t *testing.T) {
	assert := assert_.New(t)

	pub := NewPublisher[testSignal]()
	ch := NewChannel[testSignal](1)
	filtered := NewFilteredSender[testSignal](ch, func(v testSignal) bool {
		return strings.Contains(v.URL, "/post/")
	})
	assert.Nil(pub.AddSubscriber(filtered, true))
	inputs := []string{
		"https://bsky.app/profile/a/post/1",
		"https://bsky.app/profile/a",
		"https://bsky.app/profile/b/post/2",
		"",
		"https://bsky.app/profile/c/post/3",
	}
	senderDone := make(chan struct{})
	go func() {
		defer close(senderDone)
		for _, u := range inputs {
			pub.Send(testSignal{URL: u})
		}
	}()
	var received []string
	var mu sync.Mutex
	receiverDone := make(chan struct{})
	go func() {
		defer close(receiverDone)
		for v := range ch.Receive() {
			mu.Lock()
			received = append(received, v.URL)
			mu.Unlock()
		}
	}()
	<-senderDone
	pub.Close()
	<-receiverDone
	assert.Equal([]string{inputs[0], inputs[2], inputs[4]}, received)
}
