package game

import (
	"testing"
	"time"

	"github.com/tabwarden/tabwarden/internal/storage"
)

func day(d int) time.Time {
	return time.Date(2026, 3, d, 15, 0, 0, 0, time.Local)
}

func TestEnsureStats(t *testing.T) {
	data := storage.Default(time.Now())

	stats := EnsureStats(&data)
	if stats == nil || stats.Level != 1 || stats.Streaks == nil {
		t.Fatalf("unexpected initial stats: %+v", stats)
	}
	if EnsureStats(&data) != stats {
		t.Fatalf("second call should return the same record")
	}
}

func TestRewardPointsAndLevel(t *testing.T) {
	data := storage.Default(time.Now())

	for i := 0; i < 10; i++ {
		RewardReduction(&data, "x.com", day(1))
	}

	stats := data.GameStats
	if stats.Points != 10*PointsPerReduction {
		t.Fatalf("points = %d", stats.Points)
	}
	if stats.Level != 2 {
		t.Fatalf("500 points should be level 2, got %d", stats.Level)
	}
}

func TestStreakProgression(t *testing.T) {
	data := storage.Default(time.Now())

	RewardReduction(&data, "x.com", day(1))
	RewardReduction(&data, "x.com", day(1)) // same day, streak unchanged
	if s := data.GameStats.Streaks["x.com"]; s.CurrentStreak != 1 {
		t.Fatalf("same-day repeat should keep streak at 1, got %d", s.CurrentStreak)
	}

	RewardReduction(&data, "x.com", day(2))
	RewardReduction(&data, "x.com", day(3))
	if s := data.GameStats.Streaks["x.com"]; s.CurrentStreak != 3 || s.LongestStreak != 3 {
		t.Fatalf("consecutive days should extend the streak, got %+v", s)
	}

	RewardReduction(&data, "x.com", day(10))
	s := data.GameStats.Streaks["x.com"]
	if s.CurrentStreak != 1 {
		t.Fatalf("a gap should restart the streak, got %d", s.CurrentStreak)
	}
	if s.LongestStreak != 3 {
		t.Fatalf("longest streak must survive the restart, got %d", s.LongestStreak)
	}
}

func TestStreaksArePerSite(t *testing.T) {
	data := storage.Default(time.Now())

	RewardReduction(&data, "x.com", day(1))
	RewardReduction(&data, "facebook.com", day(2))

	if s := data.GameStats.Streaks["x.com"]; s.CurrentStreak != 1 {
		t.Fatalf("x.com streak = %d", s.CurrentStreak)
	}
	if s := data.GameStats.Streaks["facebook.com"]; s.CurrentStreak != 1 {
		t.Fatalf("facebook.com streak should be independent, got %d", s.CurrentStreak)
	}
}

func TestAchievementsUnlockOnce(t *testing.T) {
	data := storage.Default(time.Now())

	RewardReduction(&data, "x.com", day(1))

	ids := achievementIDs(data.GameStats)
	if len(ids) != 1 || ids[0] != "first-step" {
		t.Fatalf("first reduction should unlock exactly first-step, got %v", ids)
	}

	// Run a week-long streak and cross 500 points on the way.
	for d := 2; d <= 10; d++ {
		RewardReduction(&data, "x.com", day(d))
	}

	ids = achievementIDs(data.GameStats)
	want := map[string]bool{"first-step": true, "disciplined": true, "week-streak": true}
	if len(ids) != len(want) {
		t.Fatalf("expected %d achievements, got %v", len(want), ids)
	}
	for _, id := range ids {
		if !want[id] {
			t.Fatalf("unexpected achievement %q", id)
		}
	}

	for _, a := range data.GameStats.Achievements {
		if a.UnlockedAt == nil {
			t.Fatalf("achievement %q missing unlock time", a.ID)
		}
	}
}

func achievementIDs(stats *storage.GameStats) []string {
	ids := make([]string, 0, len(stats.Achievements))
	for _, a := range stats.Achievements {
		ids = append(ids, a.ID)
	}
	return ids
}
