package workers

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mantay/busbooking/logger"
	"github.com/mantay/busbooking/models/booking_models"
)

// DefaultSweepInterval is how often lapsed seat holds are cleaned up.
const DefaultSweepInterval = 5 * time.Minute

// SweepFunc deletes lapsed pending bookings and reports how many were
// removed. Injected so the sweeper loop can be tested without a database.
type SweepFunc func(ctx context.Context, now time.Time) (int, error)

// ExpirySweeper periodically deletes pending bookings whose payment window
// has lapsed. Their seats were never committed to the bus, so deletion alone
// frees them.
type ExpirySweeper struct {
	interval time.Duration
	sweep    SweepFunc

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewExpirySweeper builds a sweeper over the given pool with the default
// interval.
func NewExpirySweeper(db *pgxpool.Pool) *ExpirySweeper {
	return &ExpirySweeper{
		interval: DefaultSweepInterval,
		sweep: func(ctx context.Context, now time.Time) (int, error) {
			return SweepExpiredBookings(ctx, db, now)
		},
	}
}

// NewExpirySweeperWithFunc builds a sweeper with a custom interval and sweep
// implementation.
func NewExpirySweeperWithFunc(interval time.Duration, sweep SweepFunc) *ExpirySweeper {
	return &ExpirySweeper{interval: interval, sweep: sweep}
}

// Start launches the sweep loop. Calling Start on a running sweeper is a
// no-op.
func (s *ExpirySweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(ctx)
	logger.InfoLogger.Infof("Expiry sweeper started, interval %s", s.interval)
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (s *ExpirySweeper) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	logger.InfoLogger.Info("Expiry sweeper stopped")
}

func (s *ExpirySweeper) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// A failed sweep must not kill the loop; the next tick retries.
			removed, err := s.sweep(ctx, time.Now())
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.ErrorLogger.Errorf("Expiry sweep failed: %v", err)
				continue
			}
			if removed > 0 {
				logger.InfoLogger.Infof("Expiry sweep removed %d lapsed bookings", removed)
			}
		}
	}
}

// SweepExpiredBookings deletes every pending booking whose hold lapsed before
// now. Each deletion is independent so one failure does not block the rest.
func SweepExpiredBookings(ctx context.Context, db *pgxpool.Pool, now time.Time) (int, error) {
	expired, err := booking_models.FindExpired(ctx, db, now)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, b := range expired {
		if err := booking_models.DeleteBooking(ctx, db, b.ID); err != nil {
			logger.ErrorLogger.Errorf("Failed to delete expired booking %s: %v", b.ID, err)
			continue
		}
		removed++
	}
	return removed, nil
}
