package workerpool

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitBusyWhenSaturated(t *testing.T) {
	p := New(2, nil)
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	block := func() {
		started <- struct{}{}
		<-release
	}

	require.NoError(t, p.Submit(block))
	require.NoError(t, p.Submit(block))
	<-started
	<-started

	assert.ErrorIs(t, p.Submit(func() {}), ErrBusy)
	assert.Equal(t, int64(2), p.Submitted())

	close(release)
	p.Close()
}

func TestCloseWaitsAndRejects(t *testing.T) {
	p := New(1, nil)
	var done atomic.Bool
	require.NoError(t, p.Submit(func() {
		time.Sleep(20 * time.Millisecond)
		done.Store(true)
	}))

	p.Close()
	assert.True(t, done.Load())
	assert.ErrorIs(t, p.Submit(func() {}), ErrClosed)
	p.Close()
}

func TestPanicDoesNotKillPool(t *testing.T) {
	p := New(1, nil)
	require.NoError(t, p.Submit(func() { panic("boom") }))

	assert.Eventually(t, func() bool {
		return p.Submit(func() {}) == nil
	}, time.Second, 5*time.Millisecond)
	p.Close()
}
