package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lotusstage/stagesync/internal/ics"
	"github.com/lotusstage/stagesync/internal/schema"
	"github.com/lotusstage/stagesync/internal/store"
)

// publicFilter builds the filter for the public listing from the query.
func (s *Server) publicFilter(r *http.Request) (schema.EventFilter, error) {
	q := r.URL.Query()
	filter := schema.EventFilter{PublicOnly: true}
	now := s.now().UTC()

	if v := q.Get("months"); v != "" {
		months, err := strconv.Atoi(v)
		if err != nil || months < 1 {
			return filter, errors.New("invalid months parameter")
		}
		end := now.AddDate(0, months, 0)
		filter.StartFrom = &now
		filter.StartTo = &end
	}
	if v := q.Get("category"); v != "" {
		c, err := schema.ParseCategory(v)
		if err != nil {
			return filter, err
		}
		filter.Category = c
	}
	if v := q.Get("upcoming"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return filter, errors.New("invalid upcoming parameter")
		}
		filter.StartFrom = &now
		filter.Limit = n
	}
	return filter, nil
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := s.publicFilter(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeEvents(w, r, filter)
}

func (s *Server) handleAdminEvents(w http.ResponseWriter, r *http.Request) {
	var filter schema.EventFilter
	if v := r.URL.Query().Get("category"); v != "" {
		c, err := schema.ParseCategory(v)
		if err != nil {
			writeErr(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Category = c
	}
	s.writeEvents(w, r, filter)
}

func (s *Server) writeEvents(w http.ResponseWriter, r *http.Request, filter schema.EventFilter) {
	events, err := s.store.FindEvents(r.Context(), filter)
	if err != nil {
		loggerFrom(r.Context()).Error("failed to list events", zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "failed to fetch events")
		return
	}
	if events == nil {
		events = []*schema.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	e, err := s.store.GetEvent(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeErr(w, http.StatusNotFound, "event not found")
		return
	case err != nil:
		loggerFrom(r.Context()).Error("failed to get event", zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "failed to fetch event")
		return
	}
	if !e.Public {
		writeErr(w, http.StatusNotFound, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.FindEvents(r.Context(), schema.EventFilter{PublicOnly: true})
	if err != nil {
		loggerFrom(r.Context()).Error("failed to list events for feed", zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "failed to fetch events")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="events.ics"`)
	if err := ics.Write(w, events, ics.Options{Name: s.calName, Location: s.loc}); err != nil {
		loggerFrom(r.Context()).Warn("failed to write feed", zap.Error(err))
	}
}

// patchRequest is the admin edit body. An empty description clears it.
type patchRequest struct {
	Title             *string    `json:"title"`
	Description       *string    `json:"description"`
	Category          *string    `json:"category"`
	Public            *bool      `json:"public"`
	ExpectedUpdatedAt *time.Time `json:"expectedUpdatedAt"`
}

func (p patchRequest) toPatch() (schema.EventPatch, error) {
	var patch schema.EventPatch
	if p.Title != nil {
		patch.Title = schema.Set(strings.TrimSpace(*p.Title))
	}
	if p.Description != nil {
		var desc *string
		if d := strings.TrimSpace(*p.Description); d != "" {
			desc = &d
		}
		patch.Description = schema.Set(desc)
	}
	if p.Category != nil {
		c, err := schema.ParseCategory(*p.Category)
		if err != nil {
			return patch, err
		}
		patch.Category = schema.Set(c)
	}
	if p.Public != nil {
		patch.Public = schema.Set(*p.Public)
	}
	patch.IfUpdatedAt = p.ExpectedUpdatedAt
	if patch.Empty() {
		return patch, errors.New("nothing to update")
	}
	return patch, patch.Validate()
}

func (s *Server) handlePatchEvent(w http.ResponseWriter, r *http.Request) {
	logger := loggerFrom(r.Context())
	id := r.PathValue("id")

	var req patchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}

	err = s.store.UpdateEvent(r.Context(), id, patch)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeErr(w, http.StatusNotFound, "event not found")
		return
	case errors.Is(err, store.ErrStale):
		writeErr(w, http.StatusConflict, "event was modified by someone else; reload and retry")
		return
	case err != nil:
		logger.Error("failed to update event", zap.String("event_id", id), zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "failed to update event")
		return
	}

	e, err := s.store.GetEvent(r.Context(), id)
	if err != nil {
		logger.Error("failed to reload event", zap.String("event_id", id), zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "failed to fetch event")
		return
	}

	action := "updated"
	if patch.Public.Set {
		action = "unpublished"
		if patch.Public.Value {
			action = "published"
		}
	}
	logger.Info("event updated", zap.String("event_id", id), zap.String("action", action))
	if s.events != nil {
		s.events.EventUpdated(id, action, e.Public)
	}
	writeJSON(w, http.StatusOK, e)
}
