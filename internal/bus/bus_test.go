package bus_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kernox/agent/internal/bus"
)

func TestQueue_PushThenReceive(t *testing.T) {
	q := bus.New[int](4)
	q.Push(1)
	q.Push(2)
	assert.Equal(t, 1, <-q.C())
	assert.Equal(t, 2, <-q.C())
}

func TestQueue_TryPush_FalseWhenFull(t *testing.T) {
	q := bus.New[int](2)
	assert.True(t, q.TryPush(1))
	assert.True(t, q.TryPush(2))
	assert.False(t, q.TryPush(3))
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, 2, q.Cap())
}

func TestQueue_LenTracksDrain(t *testing.T) {
	q := bus.New[int](4)
	q.Push(1)
	q.Push(2)
	assert.Equal(t, 2, q.Len())
	<-q.C()
	assert.Equal(t, 1, q.Len())
}
