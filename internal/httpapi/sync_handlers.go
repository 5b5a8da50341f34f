package httpapi

import (
	"errors"
	"net/http"
	"strings"
)

func (a *API) handleExpiries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"expiries": a.service.Expiries()})
	case http.MethodPost:
		if err := a.coordinator.RefreshExpiries(r.Context()); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"expiries": a.service.Expiries()})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleAutoSync(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		var req struct {
			Enabled *bool `json:"enabled"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if req.Enabled == nil {
			writeError(w, http.StatusBadRequest, errors.New("enabled is required"))
			return
		}
		a.coordinator.SetAutoSync(*req.Enabled)
	default:
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"enabled": a.coordinator.AutoSyncEnabled()})
}

func (a *API) handleFlush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	a.coordinator.Flush()
	writeJSON(w, http.StatusOK, map[string]any{"flushed": true})
}

func (a *API) handleConflict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	conflict, ok := a.coordinator.PendingConflict()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"conflict": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conflict": conflict})
}

// handleConflictAnswer serves POST /api/v1/sync/conflict/{accept|decline}.
func (a *API) handleConflictAnswer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var accept bool
	switch strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/sync/conflict/"), "/") {
	case "accept":
		accept = true
	case "decline":
		accept = false
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown conflict action"))
		return
	}

	var req struct {
		ID string `json:"id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		writeError(w, http.StatusBadRequest, errors.New("conflict id required"))
		return
	}
	if err := a.coordinator.ResolveConflict(req.ID, accept); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": req.ID, "accepted": accept})
}
