package client

import "errors"

var (
	ErrMissingBaseURL  = errors.New("missing required base url")
	ErrMissingRoomCode = errors.New("missing required room code")
	ErrMissingName     = errors.New("missing required name")
	ErrSessionClosed   = errors.New("websocket session is closed")
	ErrStale           = errors.New("result superseded by a newer snapshot")
)
