package domain

import (
	"fmt"
	"math"
	"strings"
)

const (
	maxLabelLength     = 80
	maxPauseTextLength = 140

	defaultDestinationLabel = "Destination"
	defaultPauseText        = "Taking a break"
	UnknownParticipantName  = "unknown"
	DefaultOwnerName        = "Room owner"
)

type RoomMessageType string

const (
	RoomMessagePause       RoomMessageType = "pause"
	RoomMessageDestination RoomMessageType = "destination"
)

type Destination struct {
	Label string  `json:"label"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
}

type PauseMessage struct {
	By   string `json:"by"`
	ByID string `json:"byId"`
	TS   int64  `json:"ts"`
	Text string `json:"text"`
}

// RoomMessage is a discrete notification sent alongside snapshots.
type RoomMessage struct {
	Type RoomMessageType `json:"type"`
	TS   int64           `json:"ts"`
	By   string          `json:"by"`
	Text string          `json:"text"`
}

func NewDestination(label string, lat, lon float64) (Destination, error) {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return Destination{}, &ValidationError{Field: "destination", Err: ErrNonFiniteCoordinates}
	}

	label = strings.TrimSpace(label)
	if label == "" {
		label = defaultDestinationLabel
	}

	return Destination{
		Label: Truncate(label, maxLabelLength),
		Lat:   lat,
		Lon:   lon,
	}, nil
}

func NewPauseMessage(by, byID, text string, ts int64) PauseMessage {
	if by == "" {
		by = UnknownParticipantName
	}
	if strings.TrimSpace(text) == "" {
		text = defaultPauseText
	}

	return PauseMessage{
		By:   by,
		ByID: byID,
		TS:   ts,
		Text: Truncate(text, maxPauseTextLength),
	}
}

func (p PauseMessage) RoomMessage() RoomMessage {
	return RoomMessage{
		Type: RoomMessagePause,
		TS:   p.TS,
		By:   p.By,
		Text: p.Text,
	}
}

func NewDestinationMessage(by string, dest Destination, ts int64) RoomMessage {
	if by == "" {
		by = DefaultOwnerName
	}

	return RoomMessage{
		Type: RoomMessageDestination,
		TS:   ts,
		By:   by,
		Text: fmt.Sprintf("Destination set: %s", dest.Label),
	}
}
