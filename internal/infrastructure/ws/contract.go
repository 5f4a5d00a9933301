package ws

import (
	"encoding/json"
	"math"

	"github.com/hilthontt/convoy/internal/domain"
)

// Envelope is the inbound frame: a type tag and its raw payload.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// WSMessage is the outbound frame.
type WSMessage struct {
	Type     string `json:"type"`
	RoomCode string `json:"roomCode,omitempty"`
	Data     any    `json:"data"`
}

type JoinPayload struct {
	RoomCode string `json:"roomCode"`
	Name     string `json:"name"`
	CarType  string `json:"carType"`
	Color    string `json:"color"`
}

type PosPayload struct {
	Lat      *float64 `json:"lat"`
	Lon      *float64 `json:"lon"`
	SpeedKmh *float64 `json:"speedKmh"`
	Heading  *float64 `json:"heading"`
	Accuracy *float64 `json:"accuracy,omitempty"`
	TS       *int64   `json:"ts,omitempty"`
}

type DestinationPayload struct {
	Label string   `json:"label"`
	Lat   *float64 `json:"lat"`
	Lon   *float64 `json:"lon"`
}

type PausePayload struct {
	Text string `json:"text"`
}

type WelcomePayload struct {
	ParticipantID string `json:"participantId"`
}

type ErrorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func orNaN(f *float64) float64 {
	if f == nil {
		return math.NaN()
	}
	return *f
}

// Fix converts the payload into a fix. Missing coordinates become NaN so the
// fix gate rejects them.
func (p PosPayload) Fix() domain.Fix {
	fix := domain.Fix{
		Lat:      orNaN(p.Lat),
		Lon:      orNaN(p.Lon),
		SpeedKmh: p.SpeedKmh,
		Heading:  p.Heading,
		Accuracy: p.Accuracy,
	}
	if p.TS != nil {
		fix.TS = *p.TS
	}
	return fix
}

func (p DestinationPayload) Destination() (domain.Destination, error) {
	return domain.NewDestination(p.Label, orNaN(p.Lat), orNaN(p.Lon))
}

func NewState(view *domain.RoomView) *WSMessage {
	return &WSMessage{
		Type:     EventState,
		RoomCode: view.RoomCode,
		Data:     view,
	}
}

func NewRoomMessage(roomCode string, msg domain.RoomMessage) *WSMessage {
	return &WSMessage{
		Type:     EventRoomMessage,
		RoomCode: roomCode,
		Data:     msg,
	}
}

func NewWelcome(participantID string) *WSMessage {
	return &WSMessage{
		Type: EventWelcome,
		Data: WelcomePayload{ParticipantID: participantID},
	}
}

func NewError(roomCode, code, message string) *WSMessage {
	return &WSMessage{
		Type:     EventError,
		RoomCode: roomCode,
		Data: ErrorPayload{
			Code:    code,
			Message: message,
		},
	}
}
