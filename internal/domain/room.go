package domain

import (
	"context"
	"errors"
	"strings"

	"github.com/hilthontt/convoy/internal/infrastructure/validate"
)

const (
	PauseLogCapacity = 100
	SnapshotPauseLog = 25
)

var validateRoomCode = validate.Field("roomCode",
	validate.Required(),
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrRoomNotFound        = errors.New("room not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrUnauthorized        = errors.New("unauthorized")
)

// Room is the authoritative state of one room. It is only ever mutated by a
// RoomRegistry while the room's lock is held.
type Room struct {
	Code         string
	OwnerID      string
	Destination  *Destination
	PauseLog     []PauseMessage
	Participants map[string]*Participant

	// join order, used for deterministic owner promotion and snapshot order
	order []string
}

// RoomView is the read-only projection broadcast to every member.
type RoomView struct {
	RoomCode     string            `json:"roomCode"`
	OwnerID      *string           `json:"ownerId"`
	Destination  *Destination      `json:"destination"`
	PauseLog     []PauseMessage    `json:"pauseLog"`
	Participants []ParticipantView `json:"participants"`
}

type RoomRegistry interface {
	Join(ctx context.Context, roomCode string, profile Profile, participantID string) (*RoomView, error)
	UpdatePosition(ctx context.Context, roomCode, participantID string, fix Fix) (*RoomView, error)
	SetDestination(ctx context.Context, roomCode, requesterID string, destination Destination) (*RoomView, error)
	RecordPause(ctx context.Context, roomCode, participantID, text string) (*RoomView, error)
	// Leave reports whether the leaver owned the room, decided under the same
	// lock as the removal.
	Leave(ctx context.Context, roomCode, participantID string) (view *RoomView, wasOwner bool, err error)
	Snapshot(ctx context.Context, roomCode string) (*RoomView, error)
	Count() int
}

// RoomBroadcaster delivers room state to the room's connected members. The
// registry calls it while holding the room lock, so implementations must not
// block.
type RoomBroadcaster interface {
	BroadcastState(view *RoomView)
	BroadcastMessage(roomCode string, msg RoomMessage)
}

// NormalizeRoomCode trims and upper-cases a room code.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NewRoomCode normalises code and rejects empty codes.
func NewRoomCode(code string) (string, error) {
	code = NormalizeRoomCode(code)
	if err := validateRoomCode(code); err != nil {
		return "", &ValidationError{Field: "roomCode", Err: err}
	}
	return code, nil
}

func NewRoom(code string) *Room {
	return &Room{
		Code:         code,
		PauseLog:     make([]PauseMessage, 0, 8),
		Participants: make(map[string]*Participant),
	}
}

func (r *Room) IsOwner(participantID string) bool {
	return r.OwnerID != "" && r.OwnerID == participantID
}

func (r *Room) IsEmpty() bool {
	return len(r.Participants) == 0
}

func (r *Room) FindParticipant(id string) *Participant {
	return r.Participants[id]
}

// AddParticipant inserts p, replacing any participant with the same id. The
// first participant of an ownerless room becomes its owner.
func (r *Room) AddParticipant(p *Participant) {
	if _, exists := r.Participants[p.ID]; !exists {
		r.order = append(r.order, p.ID)
	}
	r.Participants[p.ID] = p

	if r.OwnerID == "" {
		r.OwnerID = p.ID
	}
}

// LeaveAndAutoPromote removes a participant. If the owner left, ownership
// moves to the earliest remaining joiner, or is cleared when nobody is left.
func (r *Room) LeaveAndAutoPromote(id string) error {
	if _, ok := r.Participants[id]; !ok {
		return ErrParticipantNotFound
	}

	delete(r.Participants, id)
	for i, pid := range r.order {
		if pid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	if r.OwnerID == id {
		r.OwnerID = ""
		if len(r.order) > 0 {
			r.OwnerID = r.order[0]
		}
	}
	return nil
}

// AppendPause records a pause and keeps only the newest PauseLogCapacity entries.
func (r *Room) AppendPause(msg PauseMessage) {
	r.PauseLog = append(r.PauseLog, msg)
	if excess := len(r.PauseLog) - PauseLogCapacity; excess > 0 {
		r.PauseLog = append([]PauseMessage(nil), r.PauseLog[excess:]...)
	}
}

// View builds a snapshot that shares no memory with the room.
func (r *Room) View() *RoomView {
	view := &RoomView{
		RoomCode:     r.Code,
		Participants: make([]ParticipantView, 0, len(r.order)),
	}

	if r.OwnerID != "" {
		owner := r.OwnerID
		view.OwnerID = &owner
	}

	if r.Destination != nil {
		dest := *r.Destination
		view.Destination = &dest
	}

	start := 0
	if len(r.PauseLog) > SnapshotPauseLog {
		start = len(r.PauseLog) - SnapshotPauseLog
	}
	view.PauseLog = make([]PauseMessage, len(r.PauseLog)-start)
	copy(view.PauseLog, r.PauseLog[start:])

	for _, id := range r.order {
		if p, ok := r.Participants[id]; ok {
			view.Participants = append(view.Participants, p.View())
		}
	}

	return view
}

// Participant looks up a participant in the snapshot.
func (v *RoomView) Participant(id string) (ParticipantView, bool) {
	for _, p := range v.Participants {
		if p.ID == id {
			return p, true
		}
	}
	return ParticipantView{}, false
}
