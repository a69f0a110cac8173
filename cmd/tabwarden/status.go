package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tabwarden/tabwarden/internal/config"
	"github.com/tabwarden/tabwarden/internal/storage"
)

var statusDate string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show today's usage against configured limits",
	Long:  `Show tracked usage for each site, its configured daily limit, and any active timeout.`,
	Example: `  tabwarden status
  tabwarden -c /etc/tabwarden/config.yaml status --date 2026-08-30`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusDate, "date", "", "Day to report (YYYY-MM-DD, default today)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	data, err := store.Load(context.Background())
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}

	now := time.Now()
	date := statusDate
	if date == "" {
		date = storage.DateKey(now)
	} else if _, err := time.Parse(storage.DateFormat, date); err != nil {
		return fmt.Errorf("invalid date %q: %w", date, err)
	}

	printStatus(data, date, now)
	return nil
}

// printStatus prints the usage report with colors
func printStatus(data storage.Data, date string, now time.Time) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	red := color.New(color.FgRed, color.Bold)

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	cyan.Printf("USAGE REPORT %s\n", date)
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	printed := false
	for _, rec := range data.TimeTracking {
		if rec.Date != date {
			continue
		}
		printed = true

		fmt.Printf("%-20s %s", rec.Site, formatSeconds(rec.TimeSpentSeconds))

		if limit := data.FindLimit(rec.Site); limit != nil {
			fmt.Printf(" / %s  ", formatSeconds(limit.DailyLimitSeconds))
			switch {
			case rec.TimeSpentSeconds >= limit.DailyLimitSeconds:
				red.Println("LIMIT REACHED")
			case limit.DailyLimitSeconds-rec.TimeSpentSeconds <= 60:
				yellow.Println("ALMOST UP")
			default:
				green.Println("OK")
			}
		} else {
			fmt.Println("  (no limit)")
		}
	}

	if !printed {
		fmt.Println("No usage recorded.")
	}

	blocked := false
	for site, entry := range data.TimeoutState {
		if entry.Expired(now) {
			continue
		}
		if !blocked {
			fmt.Println()
			cyan.Println("Active timeouts:")
			blocked = true
		}
		red.Printf("  %s", site)
		fmt.Printf("  blocked until %s\n", entry.ExpiresAt.Format("2006-01-02 15:04"))
	}

	if stats := data.GameStats; stats != nil {
		fmt.Println()
		cyan.Print("Game stats:  ")
		fmt.Printf("%d points, level %d, %d achievements\n",
			stats.Points, stats.Level, len(stats.Achievements))
	}

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()
}

// formatSeconds renders a second count as h/m/s.
func formatSeconds(s int64) string {
	d := time.Duration(s) * time.Second
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	sec := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, sec)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, sec)
	}
	return fmt.Sprintf("%ds", sec)
}
