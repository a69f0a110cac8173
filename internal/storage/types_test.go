package storage

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDefaultState(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.Local)
	data := Default(now)

	if len(data.Settings.TimeLimits) != 0 {
		t.Fatalf("expected no default limits, got %d", len(data.Settings.TimeLimits))
	}
	if !data.Settings.Notifications.Enabled || data.Settings.Notifications.ThresholdPercent != 5 {
		t.Fatalf("unexpected notification defaults: %+v", data.Settings.Notifications)
	}
	if !data.Settings.BlockingEnabled {
		t.Fatalf("blocking should default to enabled")
	}
	if data.Settings.Theme != ThemeLight {
		t.Fatalf("theme should default to light, got %q", data.Settings.Theme)
	}
	if !data.LastSync.Equal(now) {
		t.Fatalf("last sync should be seeded with now")
	}
}

func TestUpsertTracking(t *testing.T) {
	data := Default(time.Now())

	data.UpsertTracking("x.com", "2026-03-14", 10)
	data.UpsertTracking("x.com", "2026-03-14", 25)
	data.UpsertTracking("x.com", "2026-03-15", 5)

	if len(data.TimeTracking) != 2 {
		t.Fatalf("expected 2 records (one per day), got %d", len(data.TimeTracking))
	}
	if got := data.TrackingSeconds("x.com", "2026-03-14"); got != 25 {
		t.Fatalf("upsert should overwrite, got %d", got)
	}
	if got := data.TrackingSeconds("x.com", "2026-03-15"); got != 5 {
		t.Fatalf("second day record wrong: %d", got)
	}
	if got := data.TrackingSeconds("facebook.com", "2026-03-14"); got != 0 {
		t.Fatalf("missing record should read as zero, got %d", got)
	}
}

func TestUpsertTrackingClampsNegative(t *testing.T) {
	data := Default(time.Now())
	data.UpsertTracking("x.com", "2026-03-14", -30)
	if got := data.TrackingSeconds("x.com", "2026-03-14"); got != 0 {
		t.Fatalf("negative seconds should clamp to zero, got %d", got)
	}
}

func TestTimeoutExpiry(t *testing.T) {
	now := time.Date(2026, 3, 14, 23, 0, 0, 0, time.Local)
	midnight := time.Date(2026, 3, 15, 0, 0, 0, 0, time.Local)

	data := Default(now)
	data.SetTimeout("x.com", midnight)

	if _, ok := data.ActiveTimeout("x.com", now); !ok {
		t.Fatalf("timeout should be active before expiry")
	}
	if _, ok := data.ActiveTimeout("x.com", midnight); ok {
		t.Fatalf("timeout should expire exactly at its boundary")
	}
	if _, ok := data.ActiveTimeout("facebook.com", now); ok {
		t.Fatalf("no timeout expected for untouched site")
	}

	data.ClearTimeout("x.com")
	if _, ok := data.ActiveTimeout("x.com", now); ok {
		t.Fatalf("cleared timeout should be gone")
	}
}

func TestResetDayKeepsRecord(t *testing.T) {
	data := Default(time.Now())
	data.UpsertTracking("x.com", "2026-03-14", 300)

	data.ResetDay("x.com", "2026-03-14")

	if len(data.TimeTracking) != 1 {
		t.Fatalf("reset should keep the record, got %d records", len(data.TimeTracking))
	}
	if got := data.TrackingSeconds("x.com", "2026-03-14"); got != 0 {
		t.Fatalf("reset record should be zero, got %d", got)
	}

	// Resetting a day with no record is a no-op.
	data.ResetDay("facebook.com", "2026-03-14")
	if len(data.TimeTracking) != 1 {
		t.Fatalf("resetting a missing record should not create one")
	}
}

func TestNormalizeMergesDuplicates(t *testing.T) {
	data := Data{
		TimeTracking: []TimeTrackingRecord{
			{Site: "x.com", Date: "2026-03-14", TimeSpentSeconds: 100},
			{Site: "facebook.com", Date: "2026-03-14", TimeSpentSeconds: 40},
			{Site: "x.com", Date: "2026-03-14", TimeSpentSeconds: 20},
			{Site: "x.com", Date: "2026-03-13", TimeSpentSeconds: -5},
		},
	}

	data.Normalize()

	if len(data.TimeTracking) != 3 {
		t.Fatalf("expected 3 records after merge, got %d", len(data.TimeTracking))
	}
	if got := data.TrackingSeconds("x.com", "2026-03-14"); got != 120 {
		t.Fatalf("duplicates should merge by sum, got %d", got)
	}
	if got := data.TrackingSeconds("x.com", "2026-03-13"); got != 0 {
		t.Fatalf("negative seconds should clamp to zero, got %d", got)
	}
	if data.TimeoutState == nil || data.Settings.TimeLimits == nil {
		t.Fatalf("normalize should replace nil collections")
	}
	if data.Settings.Theme != ThemeLight {
		t.Fatalf("empty theme should normalize to light")
	}

	// Sorted by date then site.
	want := []struct{ date, site string }{
		{"2026-03-13", "x.com"},
		{"2026-03-14", "facebook.com"},
		{"2026-03-14", "x.com"},
	}
	for i, w := range want {
		if data.TimeTracking[i].Date != w.date || data.TimeTracking[i].Site != w.site {
			t.Fatalf("record %d out of order: %+v", i, data.TimeTracking[i])
		}
	}
}

func TestFindLimit(t *testing.T) {
	data := Default(time.Now())
	data.Settings.TimeLimits = []SiteTimeLimit{
		{Site: "x.com", DailyLimitSeconds: 120},
	}

	limit := data.FindLimit("x.com")
	if limit == nil || limit.DailyLimitSeconds != 120 {
		t.Fatalf("expected x.com limit, got %+v", limit)
	}

	// FindLimit returns a pointer into the settings; edits must stick.
	limit.DailyLimitSeconds = 60
	if data.Settings.TimeLimits[0].DailyLimitSeconds != 60 {
		t.Fatalf("limit edit through pointer did not stick")
	}

	if data.FindLimit("facebook.com") != nil {
		t.Fatalf("expected nil for unconfigured site")
	}
}

func TestThemeUnmarshal(t *testing.T) {
	var theme Theme
	if err := json.Unmarshal([]byte(`"DARK"`), &theme); err != nil {
		t.Fatalf("mixed-case theme should normalize: %v", err)
	}
	if theme != ThemeDark {
		t.Fatalf("expected dark, got %q", theme)
	}
	if err := json.Unmarshal([]byte(`"sepia"`), &theme); err == nil {
		t.Fatalf("unknown theme should be rejected")
	}
}

func TestDateKey(t *testing.T) {
	got := DateKey(time.Date(2026, 3, 7, 23, 59, 59, 0, time.Local))
	if got != "2026-03-07" {
		t.Fatalf("DateKey = %q", got)
	}
}
