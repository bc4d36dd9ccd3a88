package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mapmeasure/internal/metrics"
	"mapmeasure/internal/session"
)

// Options carries the optional parts of the HTTP surface.
type Options struct {
	// StaticRoot, when set, is served at / for the map client.
	StaticRoot string
	Logger     *slog.Logger
}

// AttachRoutes wires HTTP routes to handlers.
func AttachRoutes(r chi.Router, manager *session.Manager, hub *session.Hub, opts Options) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	handler := &Handler{manager: manager, hub: hub, logger: logger}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/sessions/{sessionID}", func(sr chi.Router) {
		sr.Get("/", handler.GetSession)
		sr.Get("/layers", handler.GetLayers)
		sr.Get("/status", handler.GetStatus)
		sr.Put("/tool", handler.SetTool)
		sr.Put("/view", handler.SetView)
		sr.Post("/location", handler.PostLocation)
		sr.Post("/events", handler.PostEvent)
		sr.Delete("/measurements", handler.ClearMeasurements)
		sr.Delete("/measurements/{measurementID}", handler.DeleteMeasurement)
	})

	r.Get("/ws/sessions/{sessionID}", handler.SessionWebsocket)

	if opts.StaticRoot != "" {
		r.Handle("/*", http.FileServer(http.Dir(opts.StaticRoot)))
	}
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
