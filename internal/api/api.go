// Package api exposes the HTTP control surface of the daemon. It is the
// replacement for a screen UI: clients toggle listening, capture safe words,
// run enrollment, and manage contacts through plain JSON endpoints.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/murmur-app/murmur/internal/capture"
	"github.com/murmur-app/murmur/internal/coordinator"
	"github.com/murmur-app/murmur/internal/enroll"
	"github.com/murmur-app/murmur/internal/health"
	"github.com/murmur-app/murmur/internal/observe"
	"github.com/murmur-app/murmur/internal/record"
	"github.com/murmur-app/murmur/internal/store"
	"github.com/murmur-app/murmur/pkg/types"
)

// Server bundles the handlers of the control API.
type Server struct {
	coord   *coordinator.Coordinator
	capture *capture.Controller
	enroll  *enroll.Controller
	store   *store.Store
	rec     *record.Manager
	health  *health.Handler
	metrics *observe.Metrics
}

// New creates a Server around the given controllers.
func New(coord *coordinator.Coordinator, cap *capture.Controller, enr *enroll.Controller, st *store.Store, rec *record.Manager, h *health.Handler, met *observe.Metrics) *Server {
	if met == nil {
		met = observe.DefaultMetrics()
	}
	return &Server{
		coord:   coord,
		capture: cap,
		enroll:  enr,
		store:   st,
		rec:     rec,
		health:  h,
		metrics: met,
	}
}

// Router builds the full route table, wrapped in the observability
// middleware. Health and metrics endpoints stay outside the middleware so
// probes do not pollute request metrics.
func (s *Server) Router() http.Handler {
	root := mux.NewRouter()

	if s.health != nil {
		s.health.Register(root)
	}
	root.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := root.PathPrefix("/v1").Subrouter()
	api.Use(observe.Middleware(s.metrics))

	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)

	api.HandleFunc("/listening/enable", s.handleEnable).Methods(http.MethodPost)
	api.HandleFunc("/listening/disable", s.handleDisable).Methods(http.MethodPost)

	api.HandleFunc("/safewords", s.handleListSafeWords).Methods(http.MethodGet)
	api.HandleFunc("/safewords/{slot}/capture/start", s.handleCaptureStart).Methods(http.MethodPost)
	api.HandleFunc("/safewords/capture/stop", s.handleCaptureStop).Methods(http.MethodPost)
	api.HandleFunc("/safewords/{slot}", s.handleRemoveSafeWord).Methods(http.MethodDelete)

	api.HandleFunc("/enrollment", s.handleEnrollStatus).Methods(http.MethodGet)
	api.HandleFunc("/enrollment/begin", s.handleEnrollBegin).Methods(http.MethodPost)
	api.HandleFunc("/enrollment/record", s.handleEnrollRecord).Methods(http.MethodPost)

	api.HandleFunc("/contacts", s.handleListContacts).Methods(http.MethodGet)
	api.HandleFunc("/contacts/{id}", s.handlePutContact).Methods(http.MethodPut)
	api.HandleFunc("/contacts/{id}", s.handleDeleteContact).Methods(http.MethodDelete)

	return root
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// writeError maps domain errors to status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, coordinator.ErrPrecondition):
		status = http.StatusPreconditionFailed
	case errors.Is(err, record.ErrSessionActive),
		errors.Is(err, record.ErrNoActiveSession),
		errors.Is(err, capture.ErrWrongSession):
		status = http.StatusConflict
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func slotFromRequest(r *http.Request) (types.Slot, bool) {
	slot := types.Slot(mux.Vars(r)["slot"])
	return slot, slot.IsValid()
}
