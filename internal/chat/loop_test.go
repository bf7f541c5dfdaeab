package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoop_RunsInOrder(t *testing.T) {
	l := NewLoop(8)
	var got []int
	for i := range 3 {
		require.True(t, l.Post(func() { got = append(got, i) }))
	}

	assert.Equal(t, 3, l.Drain())
	assert.Equal(t, []int{0, 1, 2}, got)
	assert.Equal(t, 0, l.Drain())
}

func TestLoop_PostAfterClose(t *testing.T) {
	l := NewLoop(1)
	l.Close()
	l.Close()

	assert.False(t, l.Post(func() {}))
}

func TestLoop_CloseUnblocksFullQueue(t *testing.T) {
	l := NewLoop(1)
	require.True(t, l.Post(func() {}))

	result := make(chan bool)
	go func() { result <- l.Post(func() {}) }()

	time.Sleep(10 * time.Millisecond)
	l.Close()

	select {
	case ok := <-result:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Post stayed blocked after Close")
	}
}

func TestLoop_RunUntil(t *testing.T) {
	l := NewLoop(4)
	done := make(chan struct{})
	ran := 0

	go func() {
		l.Post(func() { ran++ })
		l.Post(func() { ran++; close(done) })
	}()

	require.NoError(t, l.RunUntil(context.Background(), done))
	assert.Equal(t, 2, ran)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, l.RunUntil(ctx, make(chan struct{})), context.Canceled)
}
