package logging

type Category string
type SubCategory string
type ExtraKey string

const (
	General         Category = "General"
	Internal        Category = "Internal"
	RabbitMQ        Category = "RabbitMQ"
	Validation      Category = "Validation"
	RequestResponse Category = "RequestResponse"
	Prometheus      Category = "Prometheus"
	Websocket       Category = "Websocket"
	Routing         Category = "Routing"
	Room            Category = "Room"
)

const (
	// General
	Startup         SubCategory = "Startup"
	Shutdown        SubCategory = "Shutdown"
	RateLimiting    SubCategory = "RateLimiting"
	ExternalService SubCategory = "ExternalService"

	// Websocket
	Connect    SubCategory = "Connect"
	Disconnect SubCategory = "Disconnect"
	Dispatch   SubCategory = "Dispatch"

	// Room
	Join        SubCategory = "Join"
	Leave       SubCategory = "Leave"
	Position    SubCategory = "Position"
	Destination SubCategory = "Destination"
	Pause       SubCategory = "Pause"

	// Routing
	Upstream  SubCategory = "Upstream"
	Cache     SubCategory = "Cache"
	Reckoning SubCategory = "Reckoning"
	Alert     SubCategory = "Alert"

	// RabbitMQ
	Publish SubCategory = "Publish"
	Consume SubCategory = "Consume"
)

const (
	AppName      ExtraKey = "AppName"
	LoggerName   ExtraKey = "Logger"
	ClientIp     ExtraKey = "ClientIp"
	Method       ExtraKey = "Method"
	StatusCode   ExtraKey = "StatusCode"
	Path         ExtraKey = "Path"
	Latency      ExtraKey = "Latency"
	ErrorMessage ExtraKey = "ErrorMessage"
	RoomCode     ExtraKey = "RoomCode"
	Participant  ExtraKey = "Participant"
	EventType    ExtraKey = "EventType"
)
