package workers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeperRunsPeriodically(t *testing.T) {
	var calls int64
	s := NewExpirySweeperWithFunc(10*time.Millisecond, func(ctx context.Context, now time.Time) (int, error) {
		atomic.AddInt64(&calls, 1)
		return 0, nil
	})

	s.Start()
	time.Sleep(60 * time.Millisecond)
	s.Stop()

	got := atomic.LoadInt64(&calls)
	require.GreaterOrEqual(t, got, int64(2), "sweeper should have ticked repeatedly")

	// No further calls after Stop.
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, got, atomic.LoadInt64(&calls))
}

func TestSweeperSurvivesErrors(t *testing.T) {
	var calls int64
	s := NewExpirySweeperWithFunc(10*time.Millisecond, func(ctx context.Context, now time.Time) (int, error) {
		atomic.AddInt64(&calls, 1)
		return 0, errors.New("database unavailable")
	})

	s.Start()
	time.Sleep(60 * time.Millisecond)
	s.Stop()

	assert.GreaterOrEqual(t, atomic.LoadInt64(&calls), int64(2), "an error must not stop the loop")
}

func TestSweeperStartStopIdempotent(t *testing.T) {
	s := NewExpirySweeperWithFunc(10*time.Millisecond, func(ctx context.Context, now time.Time) (int, error) {
		return 0, nil
	})

	s.Start()
	s.Start() // second Start is a no-op
	s.Stop()
	s.Stop() // second Stop is a no-op
}

func TestSweeperStopWithoutStart(t *testing.T) {
	s := NewExpirySweeperWithFunc(time.Minute, func(ctx context.Context, now time.Time) (int, error) {
		return 0, nil
	})
	s.Stop() // must not panic or block
}
