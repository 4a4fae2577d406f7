package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsInvalidSpec(t *testing.T) {
	_, err := New(context.Background(), "every monday", func(context.Context) {})
	assert.Error(t, err)

	_, err = New(context.Background(), "* * * * * *", func(context.Context) {})
	assert.Error(t, err, "seconds field is not accepted")
}

func TestNextAndRunNow(t *testing.T) {
	var runs atomic.Int32
	s, err := New(context.Background(), "0 8 * * 1", func(context.Context) { runs.Add(1) })
	require.NoError(t, err)

	next, err := time.Parse(time.RFC3339, s.Next())
	require.NoError(t, err)
	assert.Equal(t, time.Monday, next.Weekday())
	assert.Equal(t, 8, next.Hour())

	s.RunNow()
	assert.Equal(t, int32(1), runs.Load())
}

func TestRunNowSkipsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var runs atomic.Int32
	s, err := New(ctx, "@daily", func(context.Context) { runs.Add(1) })
	require.NoError(t, err)

	s.RunNow()
	assert.Zero(t, runs.Load())
}

func TestRunStopsOnCancel(t *testing.T) {
	s, err := New(context.Background(), "@hourly", func(context.Context) {})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
