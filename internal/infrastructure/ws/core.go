package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hilthontt/convoy/internal/domain"
	"github.com/hilthontt/convoy/internal/infrastructure/events"
	"github.com/hilthontt/convoy/internal/infrastructure/logging"
	"github.com/hilthontt/convoy/internal/infrastructure/metrics"
)

type Options struct {
	SendBuffer     int
	MaxMessageSize int64
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	CheckOrigin    func(r *http.Request) bool
}

func (o Options) timings() pumpTimings {
	t := pumpTimings{
		maxMessageSize: o.MaxMessageSize,
		pingInterval:   o.PingInterval,
		pongWait:       o.PongWait,
		writeWait:      o.WriteWait,
	}
	if t.maxMessageSize <= 0 {
		t.maxMessageSize = 32768
	}
	if t.pongWait <= 0 {
		t.pongWait = 60 * time.Second
	}
	if t.pingInterval <= 0 || t.pingInterval >= t.pongWait {
		t.pingInterval = t.pongWait * 9 / 10
	}
	if t.writeWait <= 0 {
		t.writeWait = 10 * time.Second
	}
	return t
}

// Core turns websocket frames into registry operations. Each connection's
// events are handled in order on its own read loop; the registry serialises
// events per room and broadcasts through the RoomManager.
type Core struct {
	registry  domain.RoomRegistry
	rooms     *RoomManager
	publisher events.Publisher
	logger    logging.Logger
	metrics   *metrics.Metrics
	upgrader  websocket.Upgrader
	opts      Options
	timings   pumpTimings
}

func NewCore(
	registry domain.RoomRegistry,
	rooms *RoomManager,
	publisher events.Publisher,
	logger logging.Logger,
	m *metrics.Metrics,
	opts Options,
) *Core {
	if publisher == nil {
		publisher = events.NewNoopPublisher()
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}

	return &Core{
		registry:  registry,
		rooms:     rooms,
		publisher: publisher,
		logger:    logger,
		metrics:   m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		opts:    opts,
		timings: opts.timings(),
	}
}

// ServeWS upgrades the request and runs the connection until it closes.
func (c *Core) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.Warn(logging.Websocket, logging.Connect, "websocket upgrade failed", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
			logging.ClientIp:     r.RemoteAddr,
		})
		return
	}

	cl := NewClient(conn, uuid.NewString(), c.opts.SendBuffer)
	c.metrics.ConnectionOpened()
	c.logger.Info(logging.Websocket, logging.Connect, "client connected", map[logging.ExtraKey]any{
		logging.Participant: cl.ID,
		logging.ClientIp:    r.RemoteAddr,
	})

	// the request context ends with the handler; connection work outlives
	// middleware timeouts, so it gets its own
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	onError := func(err error) {
		c.logger.Debug(logging.Websocket, logging.Disconnect, "connection error", map[logging.ExtraKey]any{
			logging.Participant:  cl.ID,
			logging.ErrorMessage: err.Error(),
		})
	}

	cl.Enqueue(NewWelcome(cl.ID))
	go cl.writePump(c.timings, onError)

	cl.readPump(c.timings, func(raw []byte) {
		c.HandleFrame(ctx, cl, raw)
	}, onError)

	c.disconnect(ctx, cl)
}

// HandleFrame decodes one inbound frame and applies it. Invalid input and
// unauthorized actions are dropped without a reply; only frames that cannot
// be understood at all are answered with an error event.
func (c *Core) HandleFrame(ctx context.Context, cl *Client, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		cl.Enqueue(NewError(cl.roomCode, "BAD_FRAME", "malformed message"))
		return
	}

	var err error
	switch env.Type {
	case EventJoin:
		var p JoinPayload
		if err = decode(env.Data, &p); err == nil {
			err = c.join(ctx, cl, p)
		}
	case EventPos:
		var p PosPayload
		if err = decode(env.Data, &p); err == nil {
			_, err = c.registry.UpdatePosition(ctx, cl.roomCode, cl.ID, p.Fix())
		}
	case EventSetDestination:
		var p DestinationPayload
		if err = decode(env.Data, &p); err == nil {
			err = c.setDestination(ctx, cl, p)
		}
	case EventPause:
		var p PausePayload
		// a bare pause has no payload and takes the default text
		if len(env.Data) > 0 {
			err = decode(env.Data, &p)
		}
		if err == nil {
			_, err = c.registry.RecordPause(ctx, cl.roomCode, cl.ID, p.Text)
		}
	default:
		cl.Enqueue(NewError(cl.roomCode, "UNKNOWN_EVENT", "unknown event type"))
		return
	}

	if err != nil {
		c.logDropped(cl, env.Type, err)
	}
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return domain.ErrInvalidInput
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &domain.ValidationError{Field: "data", Err: err}
	}
	return nil
}

func (c *Core) join(ctx context.Context, cl *Client, p JoinPayload) error {
	code, err := domain.NewRoomCode(p.RoomCode)
	if err != nil {
		return err
	}
	profile, err := domain.NewProfile(p.Name, p.CarType, p.Color)
	if err != nil {
		return err
	}

	// a connection belongs to one room at a time
	if cl.roomCode != "" && cl.roomCode != code {
		c.leave(ctx, cl)
	}

	// subscribe first so the joiner receives the snapshot its own join produces
	c.rooms.AddClient(code, cl)
	view, err := c.registry.Join(ctx, code, profile, cl.ID)
	if err != nil {
		if cl.roomCode != code {
			c.rooms.RemoveClient(code, cl)
		}
		return err
	}
	rejoin := cl.roomCode == code
	cl.roomCode = code

	c.logger.Info(logging.Room, logging.Join, "participant joined", map[logging.ExtraKey]any{
		logging.RoomCode:    code,
		logging.Participant: cl.ID,
	})

	switch {
	case rejoin:
	case len(view.Participants) == 1:
		_ = c.publisher.PublishRoomCreated(ctx, view, cl.ID)
	default:
		_ = c.publisher.PublishMemberJoined(ctx, view, cl.ID)
	}
	return nil
}

func (c *Core) setDestination(ctx context.Context, cl *Client, p DestinationPayload) error {
	dest, err := p.Destination()
	if err != nil {
		return err
	}

	view, err := c.registry.SetDestination(ctx, cl.roomCode, cl.ID, dest)
	if err != nil {
		return err
	}

	c.logger.Info(logging.Room, logging.Destination, "destination set", map[logging.ExtraKey]any{
		logging.RoomCode:    view.RoomCode,
		logging.Participant: cl.ID,
	})
	_ = c.publisher.PublishDestinationSet(ctx, view, cl.ID)
	return nil
}

func (c *Core) leave(ctx context.Context, cl *Client) {
	code := cl.roomCode
	if code == "" {
		return
	}

	c.rooms.RemoveClient(code, cl)
	cl.roomCode = ""

	view, wasOwner, err := c.registry.Leave(ctx, code, cl.ID)
	if err != nil {
		c.logDropped(cl, "leave", err)
		return
	}

	c.logger.Info(logging.Room, logging.Leave, "participant left", map[logging.ExtraKey]any{
		logging.RoomCode:    code,
		logging.Participant: cl.ID,
	})

	if view == nil {
		_ = c.publisher.PublishRoomDeleted(ctx, code, cl.ID)
		return
	}
	_ = c.publisher.PublishMemberLeft(ctx, view, cl.ID)
	if wasOwner {
		_ = c.publisher.PublishOwnerTransferred(ctx, view, cl.ID)
	}
}

func (c *Core) disconnect(ctx context.Context, cl *Client) {
	c.leave(ctx, cl)
	cl.Close()
	c.metrics.ConnectionClosed()

	c.logger.Info(logging.Websocket, logging.Disconnect, "client disconnected", map[logging.ExtraKey]any{
		logging.Participant: cl.ID,
	})
}

func (c *Core) logDropped(cl *Client, eventType string, err error) {
	extra := map[logging.ExtraKey]any{
		logging.Participant:  cl.ID,
		logging.RoomCode:     cl.roomCode,
		logging.EventType:    eventType,
		logging.ErrorMessage: err.Error(),
	}

	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		c.logger.Debug(logging.Room, logging.Destination, "ignoring unauthorized action", extra)
	case errors.Is(err, domain.ErrBadFix):
		c.logger.Debug(logging.Room, logging.Position, "dropping bad fix", extra)
	default:
		c.logger.Debug(logging.Validation, logging.Dispatch, "dropping event", extra)
	}
}
