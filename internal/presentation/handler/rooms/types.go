package rooms

import (
	"github.com/hilthontt/convoy/internal/domain"
	"github.com/hilthontt/convoy/internal/reckoning"
)

type participantResponse struct {
	domain.ParticipantView
	LastUpdate string `json:"lastUpdate"`
}

type roomResponse struct {
	RoomCode     string                `json:"roomCode"`
	OwnerID      *string               `json:"ownerId"`
	Destination  *domain.Destination   `json:"destination"`
	PauseLog     []domain.PauseMessage `json:"pauseLog"`
	Participants []participantResponse `json:"participants"`
}

type reckonResponse struct {
	SelfID      string               `json:"selfId"`
	Reckoning   reckoning.Reckoning  `json:"reckoning"`
	Destination *reckoning.Estimate `json:"destination,omitempty"`
}
