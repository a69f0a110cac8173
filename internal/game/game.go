// Package game maintains the reward stats attached to voluntary limit
// reductions. It has no bearing on tracking invariants; the settings service
// calls into it at the one hook point where a limit goes down.
package game

import (
	"time"

	"github.com/tabwarden/tabwarden/internal/storage"
)

const (
	// PointsPerReduction is awarded every time a user lowers a limit.
	PointsPerReduction = 50

	// PointsPerLevel is the flat level step.
	PointsPerLevel = 500
)

// EnsureStats returns the game stats record, creating an empty one on first
// use.
func EnsureStats(data *storage.Data) *storage.GameStats {
	if data.GameStats == nil {
		data.GameStats = &storage.GameStats{
			Achievements: []storage.Achievement{},
			Streaks:      map[string]storage.Streak{},
			Level:        1,
		}
	}
	if data.GameStats.Streaks == nil {
		data.GameStats.Streaks = map[string]storage.Streak{}
	}
	if data.GameStats.Level < 1 {
		data.GameStats.Level = 1
	}
	return data.GameStats
}

// RewardReduction credits a voluntary limit reduction for site: points,
// level, the site's streak, and any newly earned achievements.
func RewardReduction(data *storage.Data, site string, now time.Time) {
	stats := EnsureStats(data)

	stats.Points += PointsPerReduction
	stats.Level = 1 + stats.Points/PointsPerLevel

	updateStreak(stats, site, now)
	unlockAchievements(stats, now)
}

// updateStreak extends the site streak when the previous reduction happened
// yesterday, keeps it on a same-day repeat, and restarts it after a gap.
func updateStreak(stats *storage.GameStats, site string, now time.Time) {
	today := storage.DateKey(now)
	streak := stats.Streaks[site]

	switch storage.DateKey(streak.LastMaintained) {
	case today:
		// Second reduction today; streak unchanged.
	case storage.DateKey(now.AddDate(0, 0, -1)):
		streak.CurrentStreak++
	default:
		streak.CurrentStreak = 1
	}

	if streak.CurrentStreak > streak.LongestStreak {
		streak.LongestStreak = streak.CurrentStreak
	}
	streak.LastMaintained = now
	stats.Streaks[site] = streak
}

type milestone struct {
	id          string
	name        string
	description string
	icon        string
	earned      func(*storage.GameStats) bool
}

var milestones = []milestone{
	{
		id:          "first-step",
		name:        "First Step",
		description: "Lower a time limit for the first time",
		icon:        "seedling",
		earned:      func(s *storage.GameStats) bool { return s.Points > 0 },
	},
	{
		id:          "disciplined",
		name:        "Disciplined",
		description: "Reach 500 points",
		icon:        "medal",
		earned:      func(s *storage.GameStats) bool { return s.Points >= 500 },
	},
	{
		id:          "week-streak",
		name:        "One Week Strong",
		description: "Keep a 7-day reduction streak on any site",
		icon:        "flame",
		earned: func(s *storage.GameStats) bool {
			for _, st := range s.Streaks {
				if st.CurrentStreak >= 7 {
					return true
				}
			}
			return false
		},
	},
}

// unlockAchievements appends newly earned milestones. Achievement IDs stay
// unique; already unlocked ones are left untouched.
func unlockAchievements(stats *storage.GameStats, now time.Time) {
	have := make(map[string]bool, len(stats.Achievements))
	for _, a := range stats.Achievements {
		have[a.ID] = true
	}

	for _, m := range milestones {
		if have[m.id] || !m.earned(stats) {
			continue
		}
		unlocked := now
		stats.Achievements = append(stats.Achievements, storage.Achievement{
			ID:          m.id,
			Name:        m.name,
			Description: m.description,
			Icon:        m.icon,
			UnlockedAt:  &unlocked,
		})
	}
}
