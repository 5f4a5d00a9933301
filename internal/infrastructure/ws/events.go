package ws

// client -> server
const (
	EventJoin           = "join"
	EventPos            = "pos"
	EventSetDestination = "setDestination"
	EventPause          = "pause"
)

// server -> client
const (
	EventWelcome     = "welcome"
	EventState       = "state"
	EventRoomMessage = "roomMessage"
	EventError       = "error"
)
