package internal

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/etesami/traffic-accident-observer/pkg/event"
	"github.com/etesami/traffic-accident-observer/pkg/observer"

	"github.com/gorilla/mux"
)

// EventLister reads stored accident events.
type EventLister interface {
	RecentEvents(ctx context.Context, sourceID string, limit int) ([]event.Event, error)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type tracksResponse struct {
	SourceID    string                          `json:"source_id"`
	FrameID     int64                           `json:"frame_id"`
	Pedestrians map[int]observer.PedestrianView `json:"pedestrians"`
	Vehicles    map[int]observer.VehicleView    `json:"vehicles"`
}

// NewStatusRouter serves the read-only status API next to the metrics handler.
// events may be nil when no event store is configured.
func NewStatusRouter(s *Server, events EventLister, metrics http.Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", handleHealth).Methods("GET")
	r.HandleFunc("/sources", handleSources(s)).Methods("GET")
	r.HandleFunc("/sources/{id}/tracks", handleTracks(s)).Methods("GET")
	r.HandleFunc("/events", handleEvents(events)).Methods("GET")
	if metrics != nil {
		r.Handle("/metrics", metrics).Methods("GET")
	}
	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("ok"))
}

func handleSources(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		sources := s.Sources()
		if sources == nil {
			sources = []SourceStatus{}
		}
		writeJSON(w, http.StatusOK, sources)
	}
}

func handleTracks(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		f, ok := s.Snapshot(id)
		if !ok {
			sendErrorResponse(w, "not_found", "unknown source "+id, http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, tracksResponse{
			SourceID:    id,
			FrameID:     f.FrameID,
			Pedestrians: f.Pedestrians,
			Vehicles:    f.Vehicles,
		})
	}
}

func handleEvents(events EventLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if events == nil {
			sendErrorResponse(w, "disabled", "event store is not configured", http.StatusNotFound)
			return
		}
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				sendErrorResponse(w, "invalid_request", "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			limit = n
		}
		list, err := events.RecentEvents(r.Context(), r.URL.Query().Get("source"), limit)
		if err != nil {
			sendErrorResponse(w, "store_error", err.Error(), http.StatusInternalServerError)
			return
		}
		if list == nil {
			list = []event.Event{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func sendErrorResponse(w http.ResponseWriter, code, message string, status int) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
