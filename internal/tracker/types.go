package tracker

import "time"

const (
	// UpdateType is the message type pushed to a tracked tab on every tick.
	UpdateType = "UPDATE_TIME"

	// WarningThresholdSeconds is the remaining-time boundary at or below
	// which the receiving overlay must show its blocking warning. The
	// rendering is the overlay's concern; the threshold is ours.
	WarningThresholdSeconds = 60

	// WindowIDNone is the focus-change payload meaning no browser window
	// has focus.
	WindowIDNone = -1
)

// Update is the per-tick message sent to the tracked tab's overlay. Limit
// and RemainingTime are omitted when the site has no configured limit.
type Update struct {
	Type          string `json:"type"`
	TimeSpent     int64  `json:"timeSpent"`
	Limit         *int64 `json:"limit,omitempty"`
	RemainingTime *int64 `json:"remainingTime,omitempty"`
}

// Browser is the external collaborator that owns real tabs. The bridge
// implements it over the extension's websocket; tests implement it in memory.
type Browser interface {
	// SendUpdate pushes an Update to the content overlay of one tab.
	SendUpdate(tabID int, update Update) error
	// CloseTab closes a tab, used when remaining time reaches zero.
	CloseTab(tabID int) error
	// RequestActiveTab asks the browser to report its active tab; the
	// answer arrives asynchronously as a tab-activated event.
	RequestActiveTab() error
}

// session is the single in-memory record of which tab is being timed right
// now. Exactly one exists per Tracker; it is never persisted.
type session struct {
	seq         uint64
	tabID       int
	site        string
	date        string
	startedAt   time.Time
	accumulated int64
	ticker      *time.Ticker
	stop        chan struct{}
}
