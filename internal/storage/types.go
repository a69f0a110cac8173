package storage

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// DateFormat is the calendar-day key used for tracking records.
const DateFormat = "2006-01-02"

// DateKey returns the local calendar day for t in record-key form.
func DateKey(t time.Time) string {
	return t.Format(DateFormat)
}

// Theme is the UI theme preference.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// UnmarshalJSON normalizes the theme to lowercase and rejects unknown values.
func (t *Theme) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	normalized := Theme(strings.ToLower(s))
	switch normalized {
	case ThemeLight, ThemeDark:
		*t = normalized
		return nil
	default:
		return fmt.Errorf("invalid theme: %s (must be light or dark)", s)
	}
}

// SiteTimeLimit is a per-site usage budget in seconds. Site is unique within
// a settings set.
type SiteTimeLimit struct {
	Site               string `json:"site"`
	DailyLimitSeconds  int64  `json:"dailyLimit"`
	WeeklyLimitSeconds int64  `json:"weeklyLimit"`
}

// NotificationSettings controls the warning behaviour of the overlay.
type NotificationSettings struct {
	Enabled          bool `json:"enabled"`
	ThresholdPercent int  `json:"threshold"`
}

// UserSettings holds everything the settings UI can change.
type UserSettings struct {
	TimeLimits      []SiteTimeLimit      `json:"timeLimits"`
	Notifications   NotificationSettings `json:"notifications"`
	BlockingEnabled bool                 `json:"blockingEnabled"`
	Theme           Theme                `json:"theme"`
}

// TimeTrackingRecord accumulates seconds spent on one site during one local
// calendar day. (Site, Date) is a logical primary key.
type TimeTrackingRecord struct {
	Site             string `json:"site"`
	Date             string `json:"date"`
	TimeSpentSeconds int64  `json:"timeSpent"`
}

// TimeoutEntry blocks a site until ExpiresAt, which is always the local
// midnight following the limit breach.
type TimeoutEntry struct {
	IsTimedOut bool      `json:"isTimedOut"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Expired reports whether the entry should be treated as absent. Consumers
// must check expiry, not presence: entries are not removed eagerly.
func (e TimeoutEntry) Expired(now time.Time) bool {
	return !e.IsTimedOut || !now.Before(e.ExpiresAt)
}

// Achievement is an unlockable reward. IDs are unique within GameStats.
type Achievement struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Icon        string     `json:"icon"`
	UnlockedAt  *time.Time `json:"unlockedAt,omitempty"`
}

// Streak counts consecutive limit reductions for one site.
type Streak struct {
	CurrentStreak  int       `json:"currentStreak"`
	LongestStreak  int       `json:"longestStreak"`
	LastMaintained time.Time `json:"lastMaintained"`
}

// GameStats rewards users for lowering their own limits.
type GameStats struct {
	Points       int               `json:"points"`
	Level        int               `json:"level"`
	Achievements []Achievement     `json:"achievements"`
	Streaks      map[string]Streak `json:"streaks"`
}

// Data is the complete durable state. It is persisted and replaced as one
// structured record.
type Data struct {
	Settings     UserSettings            `json:"settings"`
	TimeTracking []TimeTrackingRecord    `json:"timeTracking"`
	TimeoutState map[string]TimeoutEntry `json:"timeoutState"`
	LastSync     time.Time               `json:"lastSync"`
	GameStats    *GameStats              `json:"gameStats,omitempty"`
}

// Default returns the documented empty state: no limits, notifications on at
// a 5% threshold, blocking enabled, light theme, now as the last sync point.
func Default(now time.Time) Data {
	return Data{
		Settings: UserSettings{
			TimeLimits: []SiteTimeLimit{},
			Notifications: NotificationSettings{
				Enabled:          true,
				ThresholdPercent: 5,
			},
			BlockingEnabled: true,
			Theme:           ThemeLight,
		},
		TimeTracking: []TimeTrackingRecord{},
		TimeoutState: map[string]TimeoutEntry{},
		LastSync:     now,
	}
}

// FindLimit returns the configured limit for site, or nil.
func (d *Data) FindLimit(site string) *SiteTimeLimit {
	for i := range d.Settings.TimeLimits {
		if d.Settings.TimeLimits[i].Site == site {
			return &d.Settings.TimeLimits[i]
		}
	}
	return nil
}

// TrackingSeconds returns the recorded seconds for (site, date), zero when no
// record exists yet.
func (d *Data) TrackingSeconds(site, date string) int64 {
	for i := range d.TimeTracking {
		if d.TimeTracking[i].Site == site && d.TimeTracking[i].Date == date {
			return d.TimeTracking[i].TimeSpentSeconds
		}
	}
	return 0
}

// UpsertTracking finds or creates the record for (site, date) and sets its
// total, preserving the one-record-per-(site, date) invariant. Records are
// never appended blind.
func (d *Data) UpsertTracking(site, date string, seconds int64) {
	if seconds < 0 {
		seconds = 0
	}
	for i := range d.TimeTracking {
		if d.TimeTracking[i].Site == site && d.TimeTracking[i].Date == date {
			d.TimeTracking[i].TimeSpentSeconds = seconds
			return
		}
	}
	d.TimeTracking = append(d.TimeTracking, TimeTrackingRecord{
		Site:             site,
		Date:             date,
		TimeSpentSeconds: seconds,
	})
}

// ActiveTimeout returns the unexpired timeout entry for site, if any.
func (d *Data) ActiveTimeout(site string, now time.Time) (TimeoutEntry, bool) {
	entry, ok := d.TimeoutState[site]
	if !ok || entry.Expired(now) {
		return TimeoutEntry{}, false
	}
	return entry, true
}

// SetTimeout marks site as blocked until expiresAt.
func (d *Data) SetTimeout(site string, expiresAt time.Time) {
	if d.TimeoutState == nil {
		d.TimeoutState = map[string]TimeoutEntry{}
	}
	d.TimeoutState[site] = TimeoutEntry{IsTimedOut: true, ExpiresAt: expiresAt}
}

// ClearTimeout removes any timeout entry for site.
func (d *Data) ClearTimeout(site string) {
	delete(d.TimeoutState, site)
}

// ResetDay zeroes the (site, date) record if it exists. The record is kept
// rather than deleted so the reset remains visible to reports.
func (d *Data) ResetDay(site, date string) {
	for i := range d.TimeTracking {
		if d.TimeTracking[i].Site == site && d.TimeTracking[i].Date == date {
			d.TimeTracking[i].TimeSpentSeconds = 0
			return
		}
	}
}

// Normalize repairs state loaded from storage: duplicate (site, date) records
// are merged by summing their seconds, negative counts are clamped, and nil
// maps and slices are replaced with empty ones. Summing (rather than keeping
// the latest) is deliberate: duplicates can only come from interleaved
// last-write-wins saves, and a sum never discards observed usage.
func (d *Data) Normalize() {
	if d.TimeTracking == nil {
		d.TimeTracking = []TimeTrackingRecord{}
	}
	if d.TimeoutState == nil {
		d.TimeoutState = map[string]TimeoutEntry{}
	}
	if d.Settings.TimeLimits == nil {
		d.Settings.TimeLimits = []SiteTimeLimit{}
	}
	if d.Settings.Theme == "" {
		d.Settings.Theme = ThemeLight
	}

	merged := make(map[string]int, len(d.TimeTracking))
	out := d.TimeTracking[:0]
	for _, rec := range d.TimeTracking {
		if rec.TimeSpentSeconds < 0 {
			rec.TimeSpentSeconds = 0
		}
		key := rec.Site + "\x00" + rec.Date
		if i, ok := merged[key]; ok {
			out[i].TimeSpentSeconds += rec.TimeSpentSeconds
			continue
		}
		merged[key] = len(out)
		out = append(out, rec)
	}
	d.TimeTracking = out

	sort.SliceStable(d.TimeTracking, func(i, j int) bool {
		if d.TimeTracking[i].Date != d.TimeTracking[j].Date {
			return d.TimeTracking[i].Date < d.TimeTracking[j].Date
		}
		return d.TimeTracking[i].Site < d.TimeTracking[j].Site
	})
}
