package sheetsync

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/lotusstage/stagesync/internal/schema"
	"github.com/lotusstage/stagesync/internal/store"
)

// memStore is an in-memory EventStore with failure injection.
type memStore struct {
	mu       sync.Mutex
	events   map[string]*schema.Event
	findErr  error
	failIDs  map[string]error
	inserted int
}

func newMemStore(events ...*schema.Event) *memStore {
	m := &memStore{events: map[string]*schema.Event{}, failIDs: map[string]error{}}
	for _, e := range events {
		m.events[e.ID] = e
	}
	return m
}

func (m *memStore) FindEvents(ctx context.Context, f schema.EventFilter) ([]*schema.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	var out []*schema.Event
	for _, e := range m.events {
		if f.RowNumber != nil && (e.GoogleSheetRowNumber == nil || *e.GoogleSheetRowNumber != *f.RowNumber) {
			continue
		}
		if f.StartFrom != nil && e.StartDate.Before(*f.StartFrom) {
			continue
		}
		if f.StartTo != nil && e.StartDate.After(*f.StartTo) {
			continue
		}
		if f.Location != nil && (e.Location == nil || *e.Location != *f.Location) {
			continue
		}
		if f.PublicOnly && !e.Public {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartDate.Before(out[j].StartDate)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memStore) InsertEvent(ctx context.Context, e *schema.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := e.Validate(); err != nil {
		return err
	}
	if _, ok := m.events[e.ID]; ok {
		return errors.New("duplicate id")
	}
	cp := *e
	m.events[e.ID] = &cp
	m.inserted++
	return nil
}

func (m *memStore) UpdateEvent(ctx context.Context, id string, p schema.EventPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failIDs[id]; ok {
		return err
	}
	e, ok := m.events[id]
	if !ok {
		return store.ErrNotFound
	}
	if p.IfUpdatedAt != nil && !p.IfUpdatedAt.Equal(e.UpdatedAt) {
		return store.ErrStale
	}
	if p.Title.Set {
		e.Title = p.Title.Value
	}
	if p.Public.Set {
		e.Public = p.Public.Value
	}
	if p.StartDate.Set {
		e.StartDate = p.StartDate.Value
	}
	if p.Location.Set {
		e.Location = p.Location.Value
	}
	if p.DayOfWeek.Set {
		e.DayOfWeek = p.DayOfWeek.Value
	}
	if p.GoogleSheetRowNumber.Set {
		e.GoogleSheetRowNumber = p.GoogleSheetRowNumber.Value
	}
	if p.SyncedAt.Set {
		e.SyncedAt = p.SyncedAt.Value
	}
	e.UpdatedAt = schema.Now()
	return nil
}

func (m *memStore) get(id string) *schema.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[id]
}

func (m *memStore) all() []*schema.Event {
	out, _ := m.FindEvents(context.Background(), schema.EventFilter{})
	return out
}
