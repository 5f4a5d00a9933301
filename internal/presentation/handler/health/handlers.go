package health

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/hilthontt/convoy/internal/infrastructure/json"
)

// RoomCounter reports how many rooms are live.
type RoomCounter interface {
	Count() int
}

type Handler struct {
	rooms     RoomCounter
	startTime time.Time
	healthy   atomic.Bool
}

func NewHandler(rooms RoomCounter) *Handler {
	h := &Handler{
		rooms:     rooms,
		startTime: time.Now(),
	}
	h.healthy.Store(true)
	return h
}

// MarkUnhealthy flips readiness off, e.g. once shutdown has begun.
func (h *Handler) MarkUnhealthy() {
	h.healthy.Store(false)
}

func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}
	if h.rooms != nil {
		resp.Rooms = h.rooms.Count()
	}

	if !h.healthy.Load() {
		resp.Status = "unhealthy"
		json.Write(w, http.StatusServiceUnavailable, resp)
		return
	}

	json.Write(w, http.StatusOK, resp)
}
