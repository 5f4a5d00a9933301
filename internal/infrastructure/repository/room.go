package repository

import (
	"context"
	"sync"

	"github.com/hilthontt/convoy/internal/domain"
	"github.com/jonboulle/clockwork"
)

type roomEntry struct {
	mu   sync.Mutex
	room *domain.Room
	// set once the room has been removed from the table; a goroutine that
	// fetched the entry before removal must not mutate it any further
	closed bool
}

type roomRegistry struct {
	rooms       map[string]*roomEntry // code -> entry
	broadcaster domain.RoomBroadcaster
	clock       clockwork.Clock
	mu          *sync.RWMutex
}

type Option func(*roomRegistry)

func WithClock(clock clockwork.Clock) Option {
	return func(r *roomRegistry) {
		r.clock = clock
	}
}

// NewRoomRegistry returns the process-wide room table. Every mutation runs
// under its room's lock and ends with a broadcast, so two events for the same
// room never interleave while unrelated rooms proceed in parallel.
func NewRoomRegistry(broadcaster domain.RoomBroadcaster, opts ...Option) domain.RoomRegistry {
	r := &roomRegistry{
		rooms:       make(map[string]*roomEntry),
		broadcaster: broadcaster,
		clock:       clockwork.NewRealClock(),
		mu:          &sync.RWMutex{},
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *roomRegistry) now() int64 {
	return r.clock.Now().UnixMilli()
}

// lockExisting returns the locked entry for code, or ErrRoomNotFound.
func (r *roomRegistry) lockExisting(code string) (*roomEntry, error) {
	r.mu.RLock()
	entry, exists := r.rooms[code]
	r.mu.RUnlock()
	if !exists {
		return nil, domain.ErrRoomNotFound
	}

	entry.mu.Lock()
	if entry.closed {
		entry.mu.Unlock()
		return nil, domain.ErrRoomNotFound
	}
	return entry, nil
}

// lockOrCreate returns the locked entry for code, creating the room if absent.
func (r *roomRegistry) lockOrCreate(code string) *roomEntry {
	for {
		r.mu.Lock()
		entry, exists := r.rooms[code]
		if !exists {
			entry = &roomEntry{room: domain.NewRoom(code)}
			r.rooms[code] = entry
		}
		r.mu.Unlock()

		entry.mu.Lock()
		if !entry.closed {
			return entry
		}
		// lost a race with the last leaver; the table no longer holds this entry
		entry.mu.Unlock()
	}
}

func (r *roomRegistry) Join(ctx context.Context, roomCode string, profile domain.Profile, participantID string) (*domain.RoomView, error) {
	code := domain.NormalizeRoomCode(roomCode)
	if code == "" || profile.Name == "" || participantID == "" {
		return nil, domain.ErrInvalidInput
	}

	entry := r.lockOrCreate(code)
	defer entry.mu.Unlock()

	entry.room.AddParticipant(domain.NewParticipant(participantID, profile, r.now()))

	view := entry.room.View()
	r.broadcaster.BroadcastState(view)

	return view, nil
}

func (r *roomRegistry) UpdatePosition(ctx context.Context, roomCode, participantID string, fix domain.Fix) (*domain.RoomView, error) {
	if err := fix.Validate(); err != nil {
		return nil, err
	}

	entry, err := r.lockExisting(domain.NormalizeRoomCode(roomCode))
	if err != nil {
		return nil, err
	}
	defer entry.mu.Unlock()

	participant := entry.room.FindParticipant(participantID)
	if participant == nil {
		return nil, domain.ErrParticipantNotFound
	}

	fix = fix.Sanitized()
	if fix.TS == 0 {
		fix.TS = r.now()
	}
	participant.ApplyFix(fix)

	view := entry.room.View()
	r.broadcaster.BroadcastState(view)

	return view, nil
}

func (r *roomRegistry) SetDestination(ctx context.Context, roomCode, requesterID string, destination domain.Destination) (*domain.RoomView, error) {
	entry, err := r.lockExisting(domain.NormalizeRoomCode(roomCode))
	if err != nil {
		return nil, err
	}
	defer entry.mu.Unlock()

	room := entry.room
	if !room.IsOwner(requesterID) {
		return nil, domain.ErrUnauthorized
	}

	dest := destination
	room.Destination = &dest

	by := ""
	if p := room.FindParticipant(requesterID); p != nil {
		by = p.Name
	}

	view := room.View()
	r.broadcaster.BroadcastState(view)
	r.broadcaster.BroadcastMessage(room.Code, domain.NewDestinationMessage(by, dest, r.now()))

	return view, nil
}

func (r *roomRegistry) RecordPause(ctx context.Context, roomCode, participantID, text string) (*domain.RoomView, error) {
	entry, err := r.lockExisting(domain.NormalizeRoomCode(roomCode))
	if err != nil {
		return nil, err
	}
	defer entry.mu.Unlock()

	room := entry.room

	by := ""
	if p := room.FindParticipant(participantID); p != nil {
		by = p.Name
	}

	msg := domain.NewPauseMessage(by, participantID, text, r.now())
	room.AppendPause(msg)

	view := room.View()
	r.broadcaster.BroadcastMessage(room.Code, msg.RoomMessage())
	r.broadcaster.BroadcastState(view)

	return view, nil
}

// Leave removes the participant. It returns a nil view when the room was
// deleted because nobody is left; in that case nothing is broadcast.
func (r *roomRegistry) Leave(ctx context.Context, roomCode, participantID string) (*domain.RoomView, bool, error) {
	code := domain.NormalizeRoomCode(roomCode)

	entry, err := r.lockExisting(code)
	if err != nil {
		return nil, false, err
	}
	defer entry.mu.Unlock()

	wasOwner := entry.room.IsOwner(participantID)
	if err := entry.room.LeaveAndAutoPromote(participantID); err != nil {
		return nil, false, err
	}

	if entry.room.IsEmpty() {
		entry.closed = true

		r.mu.Lock()
		if r.rooms[code] == entry {
			delete(r.rooms, code)
		}
		r.mu.Unlock()

		return nil, wasOwner, nil
	}

	view := entry.room.View()
	r.broadcaster.BroadcastState(view)

	return view, wasOwner, nil
}

func (r *roomRegistry) Snapshot(ctx context.Context, roomCode string) (*domain.RoomView, error) {
	entry, err := r.lockExisting(domain.NormalizeRoomCode(roomCode))
	if err != nil {
		return nil, err
	}
	defer entry.mu.Unlock()

	return entry.room.View(), nil
}

func (r *roomRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms)
}
