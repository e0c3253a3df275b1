package sheetsync

import (
	"context"

	"github.com/lotusstage/stagesync/internal/schema"
)

// EventStore is the part of the event store the sync workflow uses.
//
// *store.DB satisfies it. Implementations report a missing id with
// store.ErrNotFound and a failed conditional update with store.ErrStale.
type EventStore interface {
	// FindEvents returns events matching the filter ordered by start_date.
	FindEvents(ctx context.Context, filter schema.EventFilter) ([]*schema.Event, error)

	// InsertEvent stores a new event. The event carries its own id.
	InsertEvent(ctx context.Context, e *schema.Event) error

	// UpdateEvent applies a partial update to an existing event.
	//
	// When patch.IfUpdatedAt is set the update must only succeed if the
	// stored updated_at is unchanged.
	UpdateEvent(ctx context.Context, id string, patch schema.EventPatch) error
}

// Notifier is told about completed passes. The admin dashboard implements
// it to push progress to connected browsers.
type Notifier interface {
	// PreviewReady is called after a successful Preview.
	PreviewReady(result *PreviewResult)

	// Applied is called after every Apply, including partial failures.
	Applied(result ApplyResult)
}
