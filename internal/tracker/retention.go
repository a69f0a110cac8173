package tracker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tabwarden/tabwarden/internal/storage"
)

// DefaultRetentionDays is how long daily tracking records are kept.
const DefaultRetentionDays = 90

// RetentionScheduler sweeps the store once per local midnight: tracking
// records older than the retention window are dropped and expired timeout
// entries are removed. Nothing about "today" needs resetting; the day key
// rolls over by itself.
type RetentionScheduler struct {
	store         storage.Store
	clock         Clock
	retentionDays int
	logger        zerolog.Logger
	stopChan      chan struct{}
}

// NewRetentionScheduler creates a retention scheduler.
func NewRetentionScheduler(store storage.Store, retentionDays int, logger zerolog.Logger) *RetentionScheduler {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	return &RetentionScheduler{
		store:         store,
		clock:         RealClock{},
		retentionDays: retentionDays,
		logger:        logger.With().Str("component", "retention").Logger(),
		stopChan:      make(chan struct{}),
	}
}

// SetClock sets the clock (for testing).
func (rs *RetentionScheduler) SetClock(clock Clock) {
	rs.clock = clock
}

// Start begins the scheduler.
func (rs *RetentionScheduler) Start() {
	go rs.run()
	rs.logger.Info().
		Int("retention_days", rs.retentionDays).
		Msg("Retention scheduler started")
}

// Stop stops the scheduler.
func (rs *RetentionScheduler) Stop() {
	close(rs.stopChan)
	rs.logger.Info().Msg("Retention scheduler stopped")
}

func (rs *RetentionScheduler) run() {
	for {
		next := NextMidnight(rs.clock.Now())
		wait := time.Until(next)

		rs.logger.Info().
			Time("next_sweep", next).
			Dur("wait_duration", wait).
			Msg("Scheduled next retention sweep")

		select {
		case <-time.After(wait):
			rs.Sweep(context.Background())
		case <-rs.stopChan:
			return
		}
	}
}

// Sweep performs one retention pass. Exported so the server can run a sweep
// at startup.
func (rs *RetentionScheduler) Sweep(ctx context.Context) {
	now := rs.clock.Now()
	cutoff := storage.DateKey(now.AddDate(0, 0, -rs.retentionDays))

	data, err := rs.store.Load(ctx)
	if err != nil {
		rs.logger.Error().Err(err).Msg("Retention sweep load failed")
		return
	}

	kept := data.TimeTracking[:0]
	dropped := 0
	for _, rec := range data.TimeTracking {
		if rec.Date < cutoff {
			dropped++
			continue
		}
		kept = append(kept, rec)
	}
	data.TimeTracking = kept

	expired := 0
	for site, entry := range data.TimeoutState {
		if entry.Expired(now) {
			delete(data.TimeoutState, site)
			expired++
		}
	}

	if dropped == 0 && expired == 0 {
		return
	}

	data.LastSync = now
	if err := rs.store.Save(ctx, data); err != nil {
		rs.logger.Error().Err(err).Msg("Retention sweep save failed")
		return
	}

	rs.logger.Info().
		Int("records_dropped", dropped).
		Int("timeouts_expired", expired).
		Str("cutoff_date", cutoff).
		Msg("Retention sweep complete")
}
