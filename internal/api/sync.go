package api

import (
	"bytes"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/lotusstage/stagesync/internal/sheetsync"
)

const maxBodyBytes = 1 << 20

type previewResponse struct {
	Success bool `json:"success"`
	*sheetsync.PreviewResult
}

type previewFailure struct {
	Success   bool                 `json:"success"`
	Parsed    int                  `json:"parsed"`
	Conflicts []sheetsync.Conflict `json:"conflicts"`
	Errors    []string             `json:"errors"`
}

type applyRequest struct {
	Resolutions json.RawMessage `json:"resolutions"`
}

func (s *Server) handleSyncPreview(w http.ResponseWriter, r *http.Request) {
	logger := loggerFrom(r.Context())

	result, err := s.syncer.Preview(r.Context())
	if err != nil {
		logger.Error("sync preview failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, previewFailure{
			Success:   false,
			Parsed:    0,
			Conflicts: []sheetsync.Conflict{},
			Errors:    []string{err.Error()},
		})
		return
	}
	writeJSON(w, http.StatusOK, previewResponse{Success: true, PreviewResult: result})
}

func (s *Server) handleSyncApply(w http.ResponseWriter, r *http.Request) {
	logger := loggerFrom(r.Context())

	var req applyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	raw := bytes.TrimSpace(req.Resolutions)
	if len(raw) == 0 || raw[0] != '[' {
		writeErr(w, http.StatusBadRequest, "resolutions must be an array")
		return
	}
	var resolutions []sheetsync.Resolution
	if err := json.Unmarshal(raw, &resolutions); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid resolutions: "+err.Error())
		return
	}

	result := s.syncer.Apply(r.Context(), resolutions)
	logger.Info("sync resolutions applied",
		zap.Int("resolutions", len(resolutions)),
		zap.Int("applied", result.Applied),
		zap.Int("errors", len(result.Errors)),
	)
	writeJSON(w, http.StatusOK, result)
}
