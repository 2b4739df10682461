// Package api exposes rebuilds and read views of assumed cable scenarios
// over HTTP.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/paulmach/orb/geojson"

	"github.com/signalsfoundry/assumed-cables/internal/logging"
	"github.com/signalsfoundry/assumed-cables/internal/scenario"
)

// UserIDHeader carries the acting user id set by the fronting gateway.
const UserIDHeader = "X-User-ID"

// Rebuilder runs scenario rebuilds.
type Rebuilder interface {
	Rebuild(ctx context.Context, req scenario.Request) (scenario.Result, error)
	InProgress() bool
}

// Views serves read views of committed scenarios.
type Views interface {
	MapLayer(ctx context.Context, variant int) (*geojson.FeatureCollection, error)
	List(ctx context.Context, variant int) (scenario.Listing, error)
	Export(ctx context.Context, w io.Writer, variant int, delimiter rune) error
	ExportFilename(variant int) string
}

// Envelope is the JSON body of every non-GeoJSON response.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data"`
}

// Handler serves the assumed cable endpoints.
type Handler struct {
	rebuilder Rebuilder
	views     Views
	log       logging.Logger
}

// NewHandler wires the endpoints to their services.
func NewHandler(rebuilder Rebuilder, views Views, log logging.Logger) *Handler {
	if log == nil {
		log = logging.Noop()
	}
	return &Handler{rebuilder: rebuilder, views: views, log: log}
}

// RegisterRoutes mounts the endpoints on router.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/assumed-cables").Subrouter()
	api.HandleFunc("/rebuild", h.Rebuild).Methods(http.MethodPost)
	api.HandleFunc("/geojson", h.GeoJSON).Methods(http.MethodGet)
	api.HandleFunc("/list", h.List).Methods(http.MethodGet)
	api.HandleFunc("/export", h.Export).Methods(http.MethodGet)
	router.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)
}

// NewRouter builds a router with the standard middleware chain.
func NewRouter(h *Handler, log logging.Logger, obs HTTPObserver) *mux.Router {
	router := mux.NewRouter()
	router.Use(RequestIDMiddleware(log), TracingMiddleware(), MetricsMiddleware(obs))
	h.RegisterRoutes(router)
	return router
}

// Rebuild regenerates all scenarios.
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.FromContext(ctx, h.log)

	res, err := h.rebuilder.Rebuild(ctx, scenario.Request{BuiltBy: userID(r)})
	if err != nil {
		code := StatusFor(err)
		if code >= http.StatusInternalServerError {
			log.Error(ctx, "rebuild request failed", logging.Err(err))
		}
		writeJSON(w, code, Envelope{Success: false, Message: clientMessage(err, msgRebuildFailed)})
		return
	}
	var data any = res
	if res.SchemaMissing {
		data = nil
	}
	writeJSON(w, http.StatusOK, Envelope{Success: true, Message: res.Message, Data: data})
}

// GeoJSON returns the map layer of ?variant=N.
func (h *Handler) GeoJSON(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	variant := scenario.ParseVariant(r.URL.Query().Get("variant"))
	fc, err := h.views.MapLayer(ctx, variant)
	if err != nil {
		h.readFailed(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(fc); err != nil {
		logging.FromContext(ctx, h.log).Warn(ctx, "write geojson", logging.Err(err))
	}
}

// List returns the tabular view of ?variant=N.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	variant := scenario.ParseVariant(r.URL.Query().Get("variant"))
	l, err := h.views.List(r.Context(), variant)
	if err != nil {
		h.readFailed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: l})
}

// Export streams the delimited export of ?variant=N&delimiter=X.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	variant := scenario.ParseVariant(q.Get("variant"))
	delimiter := scenario.ParseDelimiter(q.Get("delimiter"))

	// Rendered into memory first so a failure can still produce a status.
	var body strings.Builder
	if err := h.views.Export(r.Context(), &body, variant, delimiter); err != nil {
		h.readFailed(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+h.views.ExportFilename(variant)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body.String())
}

// Health reports liveness and whether a rebuild is running.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: map[string]any{
		"status":              "ok",
		"rebuild_in_progress": h.rebuilder.InProgress(),
	}})
}

func (h *Handler) readFailed(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	logging.FromContext(ctx, h.log).Error(ctx, "read view failed", logging.Err(err))
	writeJSON(w, StatusFor(err), Envelope{Success: false, Message: clientMessage(err, msgReadFailed)})
}

// userID reads the acting user from the gateway header; anything but a
// positive integer means anonymous.
func userID(r *http.Request) *int64 {
	raw := strings.TrimSpace(r.Header.Get(UserIDHeader))
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil
	}
	return &id
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
