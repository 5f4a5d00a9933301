package rooms

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hilthontt/convoy/internal/domain"
	"github.com/hilthontt/convoy/internal/infrastructure/json"
	"github.com/hilthontt/convoy/internal/infrastructure/logging"
	"github.com/hilthontt/convoy/internal/infrastructure/routing"
	"github.com/hilthontt/convoy/internal/reckoning"
	"github.com/jonboulle/clockwork"
)

// Upgrader serves the room websocket channel.
type Upgrader interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
}

type Handler struct {
	registry domain.RoomRegistry
	core     Upgrader
	reckoner *reckoning.Reckoner
	logger   logging.Logger
	clock    clockwork.Clock
}

func NewHandler(
	registry domain.RoomRegistry,
	core Upgrader,
	reckoner *reckoning.Reckoner,
	logger logging.Logger,
	clock clockwork.Clock,
) *Handler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Handler{
		registry: registry,
		core:     core,
		reckoner: reckoner,
		logger:   logger,
		clock:    clock,
	}
}

// JoinRoomHandler upgrades to the room channel. The room is chosen by the
// first join event on the socket.
func (h *Handler) JoinRoomHandler(w http.ResponseWriter, r *http.Request) {
	h.core.ServeWS(w, r)
}

func (h *Handler) GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	view, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	now := h.clock.Now()
	resp := roomResponse{
		RoomCode:     view.RoomCode,
		OwnerID:      view.OwnerID,
		Destination:  view.Destination,
		PauseLog:     view.PauseLog,
		Participants: make([]participantResponse, 0, len(view.Participants)),
	}
	for _, p := range view.Participants {
		resp.Participants = append(resp.Participants, participantResponse{
			ParticipantView: p,
			LastUpdate:      reckoning.TimeAgo(now, time.UnixMilli(p.TS)),
		})
	}

	json.Write(w, http.StatusOK, resp)
}

// ReckonHandler compares two participants of a room from self's point of view.
func (h *Handler) ReckonHandler(w http.ResponseWriter, r *http.Request) {
	selfID := r.URL.Query().Get("self")
	otherID := r.URL.Query().Get("other")
	if selfID == "" || otherID == "" || selfID == otherID {
		json.WriteBadRequestError(w, "self and other must name two different participants")
		return
	}

	view, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	self, ok := view.Participant(selfID)
	if !ok {
		json.WriteNotFoundError(w, "participant not found: self")
		return
	}
	other, ok := view.Participant(otherID)
	if !ok {
		json.WriteNotFoundError(w, "participant not found: other")
		return
	}
	if !self.HasFix() || !other.HasFix() {
		json.WriteConflictError(w, "both participants need a position fix")
		return
	}

	ctx := r.Context()
	resp := reckonResponse{
		SelfID:    selfID,
		Reckoning: h.reckoner.Reckon(ctx, party(self), party(other)),
	}
	if view.Destination != nil {
		est := h.reckoner.ToDestination(ctx, party(self).Position, routing.Coordinate{
			Lat: view.Destination.Lat,
			Lon: view.Destination.Lon,
		})
		resp.Destination = &est
	}

	json.Write(w, http.StatusOK, resp)
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) (*domain.RoomView, bool) {
	code, err := domain.NewRoomCode(chi.URLParam(r, "roomCode"))
	if err != nil {
		json.WriteValidationError(w, err)
		return nil, false
	}

	view, err := h.registry.Snapshot(r.Context(), code)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			json.WriteNotFoundError(w, "Room not found")
			return nil, false
		}
		h.logInternal(err)
		json.WriteInternalError(w)
		return nil, false
	}
	return view, true
}

func (h *Handler) logInternal(err error) {
	h.logger.Error(logging.Internal, logging.ExternalService, "room snapshot failed", map[logging.ExtraKey]any{
		logging.ErrorMessage: err.Error(),
	})
}

func party(p domain.ParticipantView) reckoning.Party {
	return reckoning.Party{
		ID:       p.ID,
		Name:     p.Name,
		Position: routing.Coordinate{Lat: *p.Lat, Lon: *p.Lon},
	}
}
