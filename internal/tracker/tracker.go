// Package tracker owns the single-active-tab time tracking state machine:
// which tab is being timed, the one-second tick that accumulates usage into
// the store, daily-limit breach detection, and the timeout gate that keeps a
// blocked site locked until the next local midnight.
package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tabwarden/tabwarden/internal/metrics"
	"github.com/tabwarden/tabwarden/internal/sites"
	"github.com/tabwarden/tabwarden/internal/storage"
)

// DefaultTickInterval is the period of the tracking tick. One tick adds
// exactly one second of record regardless of wall-clock drift.
const DefaultTickInterval = time.Second

// Config holds tracker configuration.
type Config struct {
	TickInterval time.Duration
}

// Tracker is the tracking state machine. Event handlers are serialized by a
// mutex; the browser event source delivers them one at a time, the way a
// single-threaded extension host would.
type Tracker struct {
	store      storage.Store
	classifier *sites.Classifier
	browser    Browser
	clock      Clock
	interval   time.Duration
	logger     zerolog.Logger

	mu      sync.Mutex
	session *session
	seq     uint64
}

// New creates a tracker. The browser collaborator may be swapped later with
// SetBrowser, which the bridge uses once its client connects.
func New(store storage.Store, classifier *sites.Classifier, cfg Config, logger zerolog.Logger) *Tracker {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	return &Tracker{
		store:      store,
		classifier: classifier,
		browser:    nopBrowser{},
		clock:      RealClock{},
		interval:   cfg.TickInterval,
		logger:     logger.With().Str("component", "tracker").Logger(),
	}
}

// SetClock sets the clock used for day boundaries (for testing).
func (t *Tracker) SetClock(clock Clock) {
	t.clock = clock
}

// SetBrowser sets the browser collaborator receiving updates and commands.
func (t *Tracker) SetBrowser(b Browser) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if b == nil {
		b = nopBrowser{}
	}
	t.browser = b
}

// OnTabActivated handles a tab gaining foreground focus.
func (t *Tracker) OnTabActivated(tabID int, url string) {
	t.handleNavigation(tabID, url)
}

// OnTabUpdated handles a tab navigating to a new URL.
func (t *Tracker) OnTabUpdated(tabID int, url string) {
	t.handleNavigation(tabID, url)
}

// OnTabRemoved stops tracking when the tracked tab closes.
func (t *Tracker) OnTabRemoved(tabID int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session != nil && t.session.tabID == tabID {
		t.logger.Debug().Int("tab_id", tabID).Msg("Tracked tab removed, stopping session")
		t.stopLocked()
	}
}

// OnFocusChanged stops tracking when every window loses focus and
// re-resolves the active tab when focus returns. Resolution is a round-trip:
// the browser answers RequestActiveTab with a tab-activated event.
func (t *Tracker) OnFocusChanged(windowID int) {
	if windowID == WindowIDNone {
		t.mu.Lock()
		t.logger.Debug().Msg("Browser lost focus, stopping session")
		t.stopLocked()
		t.mu.Unlock()
		return
	}

	t.mu.Lock()
	browser := t.browser
	t.mu.Unlock()
	if err := browser.RequestActiveTab(); err != nil {
		t.logger.Warn().Err(err).Msg("Failed to request active tab after focus gain")
	}
}

// Stop tears down any running session. Safe to call at shutdown.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

// handleNavigation is the shared transition for tab activation and URL
// updates: same tracked site in the same tab continues untouched, anything
// else tears the session down first and evaluates the new URL.
func (t *Tracker) handleNavigation(tabID int, url string) {
	site, tracked := t.classifier.Classify(url)

	t.mu.Lock()
	if tracked && t.session != nil && t.session.tabID == tabID && t.session.site == site {
		// Same tracked domain; accumulated time must not reset.
		t.mu.Unlock()
		return
	}
	t.stopLocked()
	epoch := t.seq
	browser := t.browser
	t.mu.Unlock()

	if !tracked {
		return
	}

	t.startTracking(tabID, site, epoch, browser)
}

// startTracking seeds a new session from the store and installs its ticker.
// epoch is re-checked after the storage read: a navigation that arrived while
// the read was in flight supersedes this start.
func (t *Tracker) startTracking(tabID int, site string, epoch uint64, browser Browser) {
	ctx := context.Background()

	data, err := t.store.Load(ctx)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("load").Inc()
		t.logger.Error().Err(err).Str("site", site).Msg("Failed to load state, not starting session")
		return
	}

	now := t.clock.Now()

	if _, blocked := data.ActiveTimeout(site, now); blocked {
		// Locked site: no session, but the overlay must reflect the lock
		// instantly.
		update := Update{Type: UpdateType, TimeSpent: 0, RemainingTime: ptr(int64(0))}
		if limit := data.FindLimit(site); limit != nil {
			update.Limit = ptr(limit.DailyLimitSeconds)
		}
		if err := browser.SendUpdate(tabID, update); err != nil {
			t.logger.Debug().Err(err).Int("tab_id", tabID).Msg("Failed to send locked update")
		}
		t.logger.Info().Str("site", site).Int("tab_id", tabID).Msg("Site is in timeout, not tracking")
		return
	}

	today := storage.DateKey(now)
	seeded := data.TrackingSeconds(site, today)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.seq != epoch || t.session != nil {
		// Superseded while the store read was in flight.
		t.logger.Debug().Str("site", site).Msg("Session start superseded, discarding")
		return
	}

	t.seq++
	s := &session{
		seq:         t.seq,
		tabID:       tabID,
		site:        site,
		date:        today,
		startedAt:   now,
		accumulated: seeded,
		ticker:      time.NewTicker(t.interval),
		stop:        make(chan struct{}),
	}
	t.session = s
	go t.run(s)

	metrics.SessionsStarted.WithLabelValues(site).Inc()
	t.logger.Info().
		Str("site", site).
		Int("tab_id", tabID).
		Int64("seeded_seconds", seeded).
		Msg("Started tracking session")
}

// stopLocked tears the session down unconditionally and synchronously: the
// ticker is stopped and the session cleared before anything else may run.
// No storage I/O happens here; overlapping sessions must stay impossible.
func (t *Tracker) stopLocked() {
	if t.session == nil {
		return
	}
	t.session.ticker.Stop()
	close(t.session.stop)
	t.session = nil
	t.seq++
}

func (t *Tracker) run(s *session) {
	for {
		select {
		case <-s.stop:
			return
		case <-s.ticker.C:
			t.tick(s)
		}
	}
}

// tick advances the session by exactly one second and writes the new total
// through to the store. A storage failure is logged and swallowed so the
// loop self-heals on the next tick; that tick's durable increment is lost.
func (t *Tracker) tick(s *session) {
	t.mu.Lock()
	if t.session == nil || t.session.seq != s.seq {
		// Stale tick from a superseded session.
		t.mu.Unlock()
		return
	}

	now := t.clock.Now()
	date := storage.DateKey(now)
	if date != s.date {
		// Day rolled over mid-session: the new day's record starts fresh.
		s.date = date
		s.accumulated = 0
	}
	s.accumulated++

	total := s.accumulated
	site := s.site
	tabID := s.tabID
	seq := s.seq
	browser := t.browser
	t.mu.Unlock()

	metrics.TicksTotal.WithLabelValues(site).Inc()
	metrics.TrackedSeconds.WithLabelValues(site).Inc()

	ctx := context.Background()
	data, err := t.store.Load(ctx)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("load").Inc()
		t.logger.Warn().Err(err).Str("site", site).Msg("Tick load failed, continuing")
		return
	}

	data.UpsertTracking(site, date, total)

	var limitPtr, remaining *int64
	breached := false
	if limit := data.FindLimit(site); limit != nil && limit.DailyLimitSeconds > 0 {
		limitPtr = ptr(limit.DailyLimitSeconds)
		left := limit.DailyLimitSeconds - total
		if left < 0 {
			left = 0
		}
		remaining = ptr(left)

		if data.Settings.BlockingEnabled && total >= limit.DailyLimitSeconds {
			if _, already := data.ActiveTimeout(site, now); !already {
				breached = true
			}
			data.SetTimeout(site, NextMidnight(now))
		}
	}

	data.LastSync = now
	if err := t.store.Save(ctx, data); err != nil {
		metrics.StoreErrors.WithLabelValues("save").Inc()
		t.logger.Warn().Err(err).Str("site", site).Msg("Tick save failed, increment lost")
		return
	}

	// The store round-trip may have outlived the session; a stale tick must
	// not emit updates or close tabs.
	t.mu.Lock()
	stale := t.session == nil || t.session.seq != seq
	t.mu.Unlock()
	if stale {
		return
	}

	update := Update{Type: UpdateType, TimeSpent: total, Limit: limitPtr, RemainingTime: remaining}
	if err := browser.SendUpdate(tabID, update); err != nil {
		t.logger.Debug().Err(err).Int("tab_id", tabID).Msg("Failed to send time update")
	}

	if breached {
		metrics.TimeoutsTriggered.WithLabelValues(site).Inc()
		t.logger.Info().
			Str("site", site).
			Int64("limit_seconds", *limitPtr).
			Time("expires_at", NextMidnight(now)).
			Msg("Daily limit reached, timeout set")
	}

	if data.Settings.BlockingEnabled && remaining != nil && *remaining == 0 {
		t.mu.Lock()
		if t.session != nil && t.session.seq == seq {
			t.stopLocked()
		}
		t.mu.Unlock()

		if err := browser.CloseTab(tabID); err != nil {
			t.logger.Warn().Err(err).Int("tab_id", tabID).Msg("Failed to close tab on limit breach")
		}
		metrics.TabsClosed.WithLabelValues(site).Inc()
	}
}

func ptr(v int64) *int64 {
	return &v
}

// nopBrowser drops everything; it stands in until a bridge client connects.
type nopBrowser struct{}

func (nopBrowser) SendUpdate(int, Update) error { return nil }
func (nopBrowser) CloseTab(int) error           { return nil }
func (nopBrowser) RequestActiveTab() error      { return nil }
