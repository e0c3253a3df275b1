package dashboard

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lotusstage/stagesync/internal/sheetsync"
)

const statsTimeout = 5 * time.Second

// SyncPreviewData summarizes a preview pass.
type SyncPreviewData struct {
	Parsed    int `json:"parsed"`
	Conflicts int `json:"conflicts"`
	Skipped   int `json:"skipped"`
}

// SyncAppliedData summarizes an apply pass.
type SyncAppliedData struct {
	Applied int      `json:"applied"`
	Errors  []string `json:"errors"`
}

// EventUpdateData describes an admin change to one stored event.
type EventUpdateData struct {
	EventID string `json:"eventId"`
	Action  string `json:"action"` // updated, published, unpublished
	Public  bool   `json:"public"`
}

// StatsData contains calendar totals.
type StatsData struct {
	Total  int `json:"total"`
	Public int `json:"public"`
	Synced int `json:"synced"`
}

// StatsFunc computes the current calendar totals.
type StatsFunc func(ctx context.Context) (StatsData, error)

// Notifier formats sync and event changes as dashboard messages. It
// implements sheetsync.Notifier.
type Notifier struct {
	hub   *Hub
	stats StatsFunc
}

var _ sheetsync.Notifier = (*Notifier)(nil)

// NewNotifier creates a notifier publishing to hub. A nil hub makes every
// method a no-op.
func NewNotifier(hub *Hub) *Notifier {
	return &Notifier{hub: hub}
}

// WithStats makes the notifier follow every write with a stats message
// computed by fn.
func (n *Notifier) WithStats(fn StatsFunc) *Notifier {
	n.stats = fn
	return n
}

// PreviewReady publishes a sync_preview message.
func (n *Notifier) PreviewReady(result *sheetsync.PreviewResult) {
	if n == nil || n.hub == nil || result == nil {
		return
	}
	n.hub.Publish(MessageTypeSyncPreview, SyncPreviewData{
		Parsed:    result.Parsed,
		Conflicts: len(result.Conflicts),
		Skipped:   len(result.Skipped),
	})
}

// Applied publishes a sync_applied message.
func (n *Notifier) Applied(result sheetsync.ApplyResult) {
	if n == nil || n.hub == nil {
		return
	}
	errs := result.Errors
	if errs == nil {
		errs = []string{}
	}
	n.hub.Publish(MessageTypeSyncApplied, SyncAppliedData{Applied: result.Applied, Errors: errs})
	if result.Applied > 0 {
		n.publishStats()
	}
}

// EventUpdated publishes an event_update message.
func (n *Notifier) EventUpdated(eventID, action string, public bool) {
	if n == nil || n.hub == nil {
		return
	}
	n.hub.Publish(MessageTypeEventUpdate, EventUpdateData{EventID: eventID, Action: action, Public: public})
	n.publishStats()
}

func (n *Notifier) publishStats() {
	if n.stats == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
	defer cancel()
	stats, err := n.stats(ctx)
	if err != nil {
		n.hub.logger.Warn("failed to compute dashboard stats", zap.Error(err))
		return
	}
	n.hub.Publish(MessageTypeStats, stats)
}
