package messaging

// AmqpMessage is the envelope published on the room exchange.
type AmqpMessage struct {
	ID      string `json:"id"`
	OwnerID string `json:"ownerId"`
	Data    []byte `json:"data"`
}

// Routing keys
const (
	EventRoomCreated     = "room.created"
	EventRoomDeleted     = "room.deleted"
	EventMemberJoined    = "member.joined"
	EventMemberLeft      = "member.left"
	EventDestinationSet  = "room.destination_set"
	EventOwnerTransfered = "room.owner_transferred"
)

const (
	RoomsQueue      = "rooms"
	DeadLetterQueue = "dead_letter_queue"
)

var RoomEvents = []string{
	EventRoomCreated,
	EventRoomDeleted,
	EventMemberJoined,
	EventMemberLeft,
	EventDestinationSet,
	EventOwnerTransfered,
}
