package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/convoy/internal/domain"
	"github.com/hilthontt/convoy/internal/infrastructure/logging"
	"github.com/hilthontt/convoy/internal/infrastructure/ws"
)

const writeWait = 10 * time.Second

// Frame is a server frame with its payload left undecoded.
type Frame struct {
	Type     string          `json:"type"`
	RoomCode string          `json:"roomCode"`
	Data     json.RawMessage `json:"data"`
}

// Handlers receive decoded server frames. Nil handlers are skipped.
type Handlers struct {
	Welcome     func(participantID string)
	State       func(view *domain.RoomView)
	RoomMessage func(roomCode string, msg domain.RoomMessage)
	Error       func(payload ws.ErrorPayload)
}

type Session struct {
	conn   *websocket.Conn
	logger logging.Logger

	writeMu sync.Mutex

	mu            sync.RWMutex
	closed        bool
	participantID string
	handlers      Handlers
}

// Dial opens the room channel at baseURL (http or ws scheme).
func Dial(ctx context.Context, baseURL string, logger logging.Logger) (*Session, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return nil, ErrMissingBaseURL
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	wsURL := base
	if after, ok := strings.CutPrefix(base, "https://"); ok {
		wsURL = "wss://" + after
	} else if after, ok := strings.CutPrefix(base, "http://"); ok {
		wsURL = "ws://" + after
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, wsURL+"/api/ws", http.Header{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to websocket: %w", err)
	}

	return &Session{conn: conn, logger: logger}, nil
}

func (s *Session) SetHandlers(h Handlers) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = h
}

// ParticipantID is the id assigned by the server's welcome frame.
func (s *Session) ParticipantID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.participantID
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}

func (s *Session) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Listen reads frames until ctx is done or the connection fails.
func (s *Session) Listen(ctx context.Context) error {
	defer s.Close()

	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	for {
		var f Frame
		if err := s.conn.ReadJSON(&f); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return fmt.Errorf("websocket read error: %w", err)
			}
			return err
		}
		s.dispatch(f)
	}
}

func (s *Session) dispatch(f Frame) {
	s.mu.RLock()
	h := s.handlers
	s.mu.RUnlock()

	var err error
	switch f.Type {
	case ws.EventWelcome:
		var p ws.WelcomePayload
		if err = json.Unmarshal(f.Data, &p); err == nil {
			s.mu.Lock()
			s.participantID = p.ParticipantID
			s.mu.Unlock()
			if h.Welcome != nil {
				h.Welcome(p.ParticipantID)
			}
		}
	case ws.EventState:
		var view domain.RoomView
		if err = json.Unmarshal(f.Data, &view); err == nil && h.State != nil {
			h.State(&view)
		}
	case ws.EventRoomMessage:
		var msg domain.RoomMessage
		if err = json.Unmarshal(f.Data, &msg); err == nil && h.RoomMessage != nil {
			h.RoomMessage(f.RoomCode, msg)
		}
	case ws.EventError:
		var p ws.ErrorPayload
		if err = json.Unmarshal(f.Data, &p); err == nil && h.Error != nil {
			h.Error(p)
		}
	default:
		s.logger.Debug(logging.Websocket, logging.Dispatch, "unknown frame type", map[logging.ExtraKey]any{
			logging.EventType: f.Type,
		})
		return
	}

	if err != nil {
		s.logger.Warn(logging.Websocket, logging.Dispatch, "undecodable frame", map[logging.ExtraKey]any{
			logging.EventType:    f.Type,
			logging.ErrorMessage: err.Error(),
		})
	}
}

func (s *Session) send(eventType string, data any) error {
	if s.isClosed() {
		return ErrSessionClosed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(ws.WSMessage{Type: eventType, Data: data})
}

func (s *Session) Join(p ws.JoinPayload) error {
	if strings.TrimSpace(p.RoomCode) == "" {
		return ErrMissingRoomCode
	}
	if strings.TrimSpace(p.Name) == "" {
		return ErrMissingName
	}
	return s.send(ws.EventJoin, p)
}

func (s *Session) SendPosition(fix domain.Fix) error {
	lat, lon := fix.Lat, fix.Lon
	p := ws.PosPayload{
		Lat:      &lat,
		Lon:      &lon,
		SpeedKmh: fix.SpeedKmh,
		Heading:  fix.Heading,
		Accuracy: fix.Accuracy,
	}
	if fix.TS != 0 {
		ts := fix.TS
		p.TS = &ts
	}
	return s.send(ws.EventPos, p)
}

func (s *Session) SetDestination(label string, lat, lon float64) error {
	return s.send(ws.EventSetDestination, ws.DestinationPayload{Label: label, Lat: &lat, Lon: &lon})
}

func (s *Session) Pause(text string) error {
	return s.send(ws.EventPause, ws.PausePayload{Text: text})
}
