package ws

import (
	"sync"

	"github.com/hilthontt/convoy/internal/domain"
	"github.com/hilthontt/convoy/internal/infrastructure/logging"
	"github.com/hilthontt/convoy/internal/infrastructure/metrics"
)

// RoomManager tracks which connections belong to which room and fans room
// events out to them. It implements domain.RoomBroadcaster; sends never
// block, a full client buffer drops the message for that client only.
type RoomManager struct {
	rooms   map[string]map[string]*Client // roomCode -> clientID -> client
	mu      sync.RWMutex
	logger  logging.Logger
	metrics *metrics.Metrics
}

func NewRoomManager(logger logging.Logger, m *metrics.Metrics) *RoomManager {
	if logger == nil {
		logger = logging.NewNop()
	}

	return &RoomManager{
		rooms:   make(map[string]map[string]*Client),
		logger:  logger,
		metrics: m,
	}
}

func (rm *RoomManager) AddClient(roomCode string, cl *Client) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	clients, ok := rm.rooms[roomCode]
	if !ok {
		clients = make(map[string]*Client)
		rm.rooms[roomCode] = clients
	}
	clients[cl.ID] = cl
}

func (rm *RoomManager) RemoveClient(roomCode string, cl *Client) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	clients, ok := rm.rooms[roomCode]
	if !ok {
		return
	}

	delete(clients, cl.ID)
	if len(clients) == 0 {
		delete(rm.rooms, roomCode)
	}
}

func (rm *RoomManager) ClientCount(roomCode string) int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	return len(rm.rooms[roomCode])
}

func (rm *RoomManager) BroadcastState(view *domain.RoomView) {
	rm.broadcast(view.RoomCode, NewState(view))
}

func (rm *RoomManager) BroadcastMessage(roomCode string, msg domain.RoomMessage) {
	rm.broadcast(roomCode, NewRoomMessage(roomCode, msg))
}

func (rm *RoomManager) broadcast(roomCode string, msg *WSMessage) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	rm.metrics.Broadcast(msg.Type)

	for _, cl := range rm.rooms[roomCode] {
		if cl.Enqueue(msg) {
			continue
		}

		rm.metrics.MessageDropped()
		extra := map[logging.ExtraKey]any{
			logging.RoomCode:    roomCode,
			logging.Participant: cl.ID,
			logging.EventType:   msg.Type,
		}

		// a later snapshot supersedes a lost state frame; a lost room message
		// has no successor, so the client is cut off and must resync
		if msg.Type == EventRoomMessage {
			rm.logger.Warn(logging.Websocket, logging.Dispatch, "client buffer full, closing connection", extra)
			cl.Close()
			continue
		}
		rm.logger.Warn(logging.Websocket, logging.Dispatch, "client buffer full, dropping message", extra)
	}
}
