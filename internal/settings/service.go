// Package settings is the write surface for UI-initiated changes: limits,
// notification preferences, manual usage edits, and daily resets. Every
// operation is a read-modify-write of the full store record and propagates
// storage failures to the caller so the UI can show a save-failed state —
// unlike tracker ticks, these failures are user-visible.
package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tabwarden/tabwarden/internal/game"
	"github.com/tabwarden/tabwarden/internal/storage"
	"github.com/tabwarden/tabwarden/internal/tracker"
)

// ErrNotApproved is returned when a limit increase arrives without the
// friction gate's approval. The gate is a UX nudge, not access control; the
// caller decides approval (e.g. after a completed minigame) and says so.
var ErrNotApproved = errors.New("settings: limit increase not approved")

// ErrInvalidLimit is returned for empty sites or non-positive budgets.
var ErrInvalidLimit = errors.New("settings: invalid time limit")

// Service applies user-initiated writes against the store.
type Service struct {
	store  storage.Store
	clock  tracker.Clock
	logger zerolog.Logger
}

// NewService creates a settings service.
func NewService(store storage.Store, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		clock:  tracker.RealClock{},
		logger: logger.With().Str("component", "settings").Logger(),
	}
}

// SetClock sets the clock (for testing).
func (s *Service) SetClock(clock tracker.Clock) {
	s.clock = clock
}

// Data returns the current store record for UI surfaces that poll on open.
func (s *Service) Data(ctx context.Context) (storage.Data, error) {
	return s.store.Load(ctx)
}

// ResetToday zeroes today's usage for site and clears its timeout entry.
func (s *Service) ResetToday(ctx context.Context, site string) error {
	return s.update(ctx, func(data *storage.Data) error {
		today := storage.DateKey(s.clock.Now())
		data.ResetDay(site, today)
		data.ClearTimeout(site)
		s.logger.Info().Str("site", site).Msg("Today's usage reset")
		return nil
	})
}

// SetTodayUsage overwrites today's usage for site with an arbitrary value
// (manual edit). The record is created if it does not exist yet.
func (s *Service) SetTodayUsage(ctx context.Context, site string, seconds int64) error {
	if seconds < 0 {
		return fmt.Errorf("%w: negative seconds", ErrInvalidLimit)
	}
	return s.update(ctx, func(data *storage.Data) error {
		today := storage.DateKey(s.clock.Now())
		data.UpsertTracking(site, today, seconds)
		s.logger.Info().Str("site", site).Int64("seconds", seconds).Msg("Today's usage overwritten")
		return nil
	})
}

// SetLimit adds or modifies a site limit. A brand-new limit and any
// reduction apply immediately; a reduction additionally triggers the game
// reward hook. Raising either budget requires approved=true from the
// friction gate.
func (s *Service) SetLimit(ctx context.Context, limit storage.SiteTimeLimit, approved bool) error {
	if limit.Site == "" || limit.DailyLimitSeconds <= 0 || limit.WeeklyLimitSeconds < 0 {
		return ErrInvalidLimit
	}

	return s.update(ctx, func(data *storage.Data) error {
		existing := data.FindLimit(limit.Site)
		if existing == nil {
			data.Settings.TimeLimits = append(data.Settings.TimeLimits, limit)
			s.logger.Info().Str("site", limit.Site).Int64("daily", limit.DailyLimitSeconds).Msg("Limit added")
			return nil
		}

		raised := limit.DailyLimitSeconds > existing.DailyLimitSeconds ||
			limit.WeeklyLimitSeconds > existing.WeeklyLimitSeconds
		lowered := limit.DailyLimitSeconds < existing.DailyLimitSeconds ||
			limit.WeeklyLimitSeconds < existing.WeeklyLimitSeconds

		if raised && !approved {
			return ErrNotApproved
		}

		*existing = limit

		if lowered && !raised {
			game.RewardReduction(data, limit.Site, s.clock.Now())
			s.logger.Info().Str("site", limit.Site).Msg("Limit lowered, reward granted")
		} else {
			s.logger.Info().Str("site", limit.Site).Bool("raised", raised).Msg("Limit updated")
		}
		return nil
	})
}

// RemoveLimit deletes the limit for site. Usage keeps being recorded for
// reporting; nothing blocks anymore.
func (s *Service) RemoveLimit(ctx context.Context, site string) error {
	return s.update(ctx, func(data *storage.Data) error {
		limits := data.Settings.TimeLimits[:0]
		for _, l := range data.Settings.TimeLimits {
			if l.Site != site {
				limits = append(limits, l)
			}
		}
		data.Settings.TimeLimits = limits
		s.logger.Info().Str("site", site).Msg("Limit removed")
		return nil
	})
}

// UpdateNotifications replaces the notification settings.
func (s *Service) UpdateNotifications(ctx context.Context, n storage.NotificationSettings) error {
	return s.update(ctx, func(data *storage.Data) error {
		data.Settings.Notifications = n
		return nil
	})
}

// SetBlocking toggles limit enforcement (timeouts and tab closing).
func (s *Service) SetBlocking(ctx context.Context, enabled bool) error {
	return s.update(ctx, func(data *storage.Data) error {
		data.Settings.BlockingEnabled = enabled
		return nil
	})
}

// SetTheme changes the UI theme preference.
func (s *Service) SetTheme(ctx context.Context, theme storage.Theme) error {
	if theme != storage.ThemeLight && theme != storage.ThemeDark {
		return fmt.Errorf("settings: unknown theme %q", theme)
	}
	return s.update(ctx, func(data *storage.Data) error {
		data.Settings.Theme = theme
		return nil
	})
}

// update runs one read-modify-write cycle. The later of two overlapping
// cycles wins wholesale; accepted for a single-user local tool.
func (s *Service) update(ctx context.Context, mutate func(*storage.Data) error) error {
	data, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	if err := mutate(&data); err != nil {
		return err
	}
	data.LastSync = s.clock.Now()
	return s.store.Save(ctx, data)
}
