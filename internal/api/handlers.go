package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mapmeasure/internal/interaction"
	"mapmeasure/internal/measure"
	"mapmeasure/internal/session"
)

type Handler struct {
	manager *session.Manager
	hub     *session.Hub
	logger  *slog.Logger
}

// session resolves the {sessionID} path parameter and writes the error
// response itself when it cannot.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.manager.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return s, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, measure.ErrInvalidArgument):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrClosed):
		respondError(w, http.StatusServiceUnavailable, "session closed")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		h.logger.Error("request failed", "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) (session.View, bool) {
	s, ok := h.session(w, r)
	if !ok {
		return session.View{}, false
	}
	v, err := s.Snapshot(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return session.View{}, false
	}
	return v, true
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	if v, ok := h.snapshot(w, r); ok {
		respondJSON(w, http.StatusOK, v)
	}
}

func (h *Handler) GetLayers(w http.ResponseWriter, r *http.Request) {
	if v, ok := h.snapshot(w, r); ok {
		respondJSON(w, http.StatusOK, v.Layers)
	}
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	if v, ok := h.snapshot(w, r); ok {
		respondJSON(w, http.StatusOK, v.Status)
	}
}

type toolPayload struct {
	Tool   measure.Tool `json:"tool"`
	Toggle bool         `json:"toggle,omitempty"`
}

func (h *Handler) SetTool(w http.ResponseWriter, r *http.Request) {
	var payload toolPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if !payload.Tool.Valid() {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown tool %q", payload.Tool))
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var ev interaction.Event = interaction.Select{Tool: payload.Tool}
	if payload.Toggle {
		ev = interaction.Toggle{Tool: payload.Tool}
	}
	if err := s.Dispatch(r.Context(), ev); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respondStatus(w, r, s)
}

func (h *Handler) SetView(w http.ResponseWriter, r *http.Request) {
	var view measure.ViewState
	if err := json.NewDecoder(r.Body).Decode(&view); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := (measure.PersistedState{View: view}).Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	changed, err := s.SetView(r.Context(), view)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"view": view, "changed": changed})
}

type locationPayload struct {
	Sample *measure.Fix `json:"sample,omitempty"`
	Error  string       `json:"error,omitempty"`
}

func (h *Handler) PostLocation(w http.ResponseWriter, r *http.Request) {
	var payload locationPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if payload.Sample == nil && payload.Error == "" {
		respondError(w, http.StatusBadRequest, "sample or error required")
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	in := session.Inbound{Type: "geolocation", Sample: payload.Sample, Error: payload.Error}
	if err := session.Apply(r.Context(), s, in); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respondStatus(w, r, s)
}

// PostEvent accepts the same messages as the session websocket.
func (h *Handler) PostEvent(w http.ResponseWriter, r *http.Request) {
	var in session.Inbound
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := session.Apply(r.Context(), s, in); err != nil {
		if errors.Is(err, session.ErrClosed) {
			h.fail(w, r, err)
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.respondStatus(w, r, s)
}

func (h *Handler) DeleteMeasurement(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "measurementID")
	removed, err := s.Remove(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	// a missing id is a no-op, as on the websocket
	respondJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (h *Handler) ClearMeasurements(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	n, err := s.Clear(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"removed": n})
}

func (h *Handler) SessionWebsocket(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.hub.Serve(w, r, s)
}

func (h *Handler) respondStatus(w http.ResponseWriter, r *http.Request, s *session.Session) {
	v, err := s.Snapshot(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, v.Status)
}
