package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hilthontt/convoy/internal/domain"
	"github.com/hilthontt/convoy/internal/infrastructure/logging"
	"github.com/hilthontt/convoy/internal/infrastructure/messaging"
)

const publishTimeout = 2 * time.Second

// RoomEventData is the payload of every room lifecycle event. It carries
// membership only, never positions.
type RoomEventData struct {
	RoomCode      string  `json:"roomCode"`
	ParticipantID string  `json:"participantId,omitempty"`
	OwnerID       *string `json:"ownerId"`
	Participants  int     `json:"participants"`
	Destination   string  `json:"destination,omitempty"`
	TS            int64   `json:"ts"`
}

// Publisher announces room lifecycle changes to other services.
type Publisher interface {
	PublishRoomCreated(ctx context.Context, view *domain.RoomView, participantID string) error
	PublishMemberJoined(ctx context.Context, view *domain.RoomView, participantID string) error
	PublishMemberLeft(ctx context.Context, view *domain.RoomView, participantID string) error
	PublishRoomDeleted(ctx context.Context, roomCode, participantID string) error
	PublishDestinationSet(ctx context.Context, view *domain.RoomView, participantID string) error
	PublishOwnerTransferred(ctx context.Context, view *domain.RoomView, previousOwnerID string) error
}

// AmqpPublisher is the subset of RabbitMQ the publisher needs.
type AmqpPublisher interface {
	PublishMessage(ctx context.Context, routingKey string, message messaging.AmqpMessage) error
}

type RoomPublisher struct {
	amqp   AmqpPublisher
	logger logging.Logger
	now    func() time.Time
}

func NewRoomPublisher(amqp AmqpPublisher, logger logging.Logger) *RoomPublisher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &RoomPublisher{amqp: amqp, logger: logger, now: time.Now}
}

func (p *RoomPublisher) publish(ctx context.Context, routingKey string, data RoomEventData) error {
	data.TS = p.now().UnixMilli()

	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}

	ownerID := ""
	if data.OwnerID != nil {
		ownerID = *data.OwnerID
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := p.amqp.PublishMessage(ctx, routingKey, messaging.AmqpMessage{
		ID:      uuid.NewString(),
		OwnerID: ownerID,
		Data:    payload,
	}); err != nil {
		p.logger.Error(logging.RabbitMQ, logging.Publish, "failed to publish room event", map[logging.ExtraKey]any{
			logging.EventType:    routingKey,
			logging.RoomCode:     data.RoomCode,
			logging.ErrorMessage: err.Error(),
		})
		return err
	}
	return nil
}

func fromView(view *domain.RoomView, participantID string) RoomEventData {
	data := RoomEventData{
		RoomCode:      view.RoomCode,
		ParticipantID: participantID,
		OwnerID:       view.OwnerID,
		Participants:  len(view.Participants),
	}
	if view.Destination != nil {
		data.Destination = view.Destination.Label
	}
	return data
}

func (p *RoomPublisher) PublishRoomCreated(ctx context.Context, view *domain.RoomView, participantID string) error {
	return p.publish(ctx, messaging.EventRoomCreated, fromView(view, participantID))
}

func (p *RoomPublisher) PublishMemberJoined(ctx context.Context, view *domain.RoomView, participantID string) error {
	return p.publish(ctx, messaging.EventMemberJoined, fromView(view, participantID))
}

func (p *RoomPublisher) PublishMemberLeft(ctx context.Context, view *domain.RoomView, participantID string) error {
	return p.publish(ctx, messaging.EventMemberLeft, fromView(view, participantID))
}

func (p *RoomPublisher) PublishRoomDeleted(ctx context.Context, roomCode, participantID string) error {
	return p.publish(ctx, messaging.EventRoomDeleted, RoomEventData{RoomCode: roomCode, ParticipantID: participantID})
}

func (p *RoomPublisher) PublishDestinationSet(ctx context.Context, view *domain.RoomView, participantID string) error {
	return p.publish(ctx, messaging.EventDestinationSet, fromView(view, participantID))
}

func (p *RoomPublisher) PublishOwnerTransferred(ctx context.Context, view *domain.RoomView, previousOwnerID string) error {
	return p.publish(ctx, messaging.EventOwnerTransfered, fromView(view, previousOwnerID))
}

type noopPublisher struct{}

// NewNoopPublisher is used when events are disabled.
func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) PublishRoomCreated(context.Context, *domain.RoomView, string) error  { return nil }
func (noopPublisher) PublishMemberJoined(context.Context, *domain.RoomView, string) error { return nil }
func (noopPublisher) PublishMemberLeft(context.Context, *domain.RoomView, string) error   { return nil }
func (noopPublisher) PublishRoomDeleted(context.Context, string, string) error            { return nil }
func (noopPublisher) PublishDestinationSet(context.Context, *domain.RoomView, string) error {
	return nil
}
func (noopPublisher) PublishOwnerTransferred(context.Context, *domain.RoomView, string) error {
	return nil
}
