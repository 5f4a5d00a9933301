package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hilthontt/convoy/internal/infrastructure/logging"
	"github.com/hilthontt/convoy/internal/infrastructure/messaging"
	amqp "github.com/rabbitmq/amqp091-go"
)

type RoomConsumer struct {
	rabbitmq *messaging.RabbitMQ
	logger   logging.Logger
}

func NewRoomConsumer(rabbitmq *messaging.RabbitMQ, logger logging.Logger) *RoomConsumer {
	return &RoomConsumer{
		rabbitmq: rabbitmq,
		logger:   logger,
	}
}

// Listen writes an audit line for every room lifecycle event until ctx ends.
func (c *RoomConsumer) Listen(ctx context.Context) error {
	return c.rabbitmq.ConsumeMessages(ctx, messaging.RoomsQueue, func(ctx context.Context, msg amqp.Delivery) error {
		payload, err := DecodeRoomEvent(msg.Body)
		if err != nil {
			c.logger.Warn(logging.RabbitMQ, logging.Consume, "dropping malformed room event", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
			return err
		}

		c.logger.Info(logging.RabbitMQ, logging.Consume, "room event", map[logging.ExtraKey]any{
			logging.EventType:   msg.RoutingKey,
			logging.RoomCode:    payload.RoomCode,
			logging.Participant: payload.ParticipantID,
			"participants":      payload.Participants,
		})
		return nil
	})
}

func DecodeRoomEvent(body []byte) (RoomEventData, error) {
	var message messaging.AmqpMessage
	if err := json.Unmarshal(body, &message); err != nil {
		return RoomEventData{}, fmt.Errorf("decode envelope: %w", err)
	}

	var payload RoomEventData
	if err := json.Unmarshal(message.Data, &payload); err != nil {
		return RoomEventData{}, fmt.Errorf("decode payload: %w", err)
	}
	return payload, nil
}
