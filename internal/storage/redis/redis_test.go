package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/tabwarden/tabwarden/internal/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := Open(Config{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenUnreachable(t *testing.T) {
	_, err := Open(Config{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond})
	if err == nil {
		t.Fatalf("expected connection error")
	}
}

func TestLoadEmptyReturnsDefaults(t *testing.T) {
	store := openTestStore(t)

	data, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !data.Settings.BlockingEnabled || data.Settings.Theme != storage.ThemeLight {
		t.Fatalf("expected documented defaults, got %+v", data.Settings)
	}
	if data.GameStats != nil {
		t.Fatalf("game stats should be absent until first reward")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.Local)
	data := storage.Default(now)
	data.Settings.TimeLimits = []storage.SiteTimeLimit{
		{Site: "instagram.com", DailyLimitSeconds: 600},
	}
	data.UpsertTracking("instagram.com", "2026-03-14", 300)
	data.SetTimeout("instagram.com", time.Date(2026, 3, 15, 0, 0, 0, 0, time.Local))

	if err := store.Save(ctx, data); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := loaded.TrackingSeconds("instagram.com", "2026-03-14"); got != 300 {
		t.Fatalf("tracking record did not survive, got %d", got)
	}
	if limit := loaded.FindLimit("instagram.com"); limit == nil || limit.DailyLimitSeconds != 600 {
		t.Fatalf("limit did not survive: %+v", limit)
	}
	if _, ok := loaded.ActiveTimeout("instagram.com", now); !ok {
		t.Fatalf("timeout entry did not survive")
	}
}

func TestInitializeBackfillsWithoutDiscarding(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	data := storage.Default(time.Now())
	data.UpsertTracking("x.com", "2026-03-14", 75)
	if err := store.Save(ctx, data); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := store.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := loaded.TrackingSeconds("x.com", "2026-03-14"); got != 75 {
		t.Fatalf("initialize must not discard existing data, got %d", got)
	}
}
