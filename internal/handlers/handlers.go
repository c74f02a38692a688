// Package handlers wires the websocket endpoints and the REST glue
// (health, stats, room existence, demo page) onto the room registry.
package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"LIVE_FEEDBACK/backend/internal/config"
	"LIVE_FEEDBACK/backend/internal/rooms"
	"LIVE_FEEDBACK/backend/internal/services"
)

const apiVersion = "1.0.0"

type Handler struct {
	cfg      *config.Config
	registry *rooms.Registry
	metrics  *services.Metrics
	upgrader websocket.Upgrader
}

func New(cfg *config.Config, registry *rooms.Registry, metrics *services.Metrics) *Handler {
	return &Handler{
		cfg:      cfg,
		registry: registry,
		metrics:  metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Router builds the full route table.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.corsMiddleware)

	r.HandleFunc("/", h.Root).Methods(http.MethodGet)
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/stats", h.Stats).Methods(http.MethodGet)
	r.HandleFunc("/room/{roomID}/exists", h.RoomExists).Methods(http.MethodGet)
	r.HandleFunc("/test", h.TestPage).Methods(http.MethodGet)

	r.HandleFunc("/ws/participant/{roomID}/{participantID}", h.ParticipantWS)
	r.HandleFunc("/ws/supervisor", h.SupervisorWS)

	return r
}

func (h *Handler) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", h.cfg.CORSOrigins)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "Live Feedback System API",
		"description": "Real-time participant attention tracking",
		"version":     apiVersion,
		"endpoints": map[string]string{
			"participant_websocket": "/ws/participant/{room_id}/{participant_id}",
			"supervisor_websocket":  "/ws/supervisor",
			"check_room":            "/room/{room_id}/exists",
			"health":                "/health",
			"stats":                 "/stats",
		},
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	roomCount, _, _ := h.registry.Stats()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "healthy",
		"total_rooms": roomCount,
		"timestamp":   time.Now().Format(time.RFC3339),
	})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	roomCount, participantCount, supervisorCount := h.registry.Stats()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_rooms":        roomCount,
		"total_participants": participantCount,
		"total_supervisors":  supervisorCount,
		"metrics":            h.metrics.Snapshot(),
	})
}

func (h *Handler) RoomExists(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomID"]
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"exists":  h.registry.Exists(roomID),
		"room_id": roomID,
	})
}
