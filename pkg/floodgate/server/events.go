package server

import (
	"net"

	"github.com/google/uuid"
	"github.com/haveachin/floodgate/pkg/floodgate/identity"
)

const (
	// PreLoginEventTopic is requested before a login is accepted.
	// A handler that replies with an error denies the login.
	PreLoginEventTopic         = "PreLogin"
	LoginEventTopicAsync       = "Login"
	PlayerLeaveEventTopicAsync = "PlayerLeave"
)

// PlayerInfo describes the player behind a connection.
type PlayerInfo struct {
	Username   string
	UUID       uuid.UUID
	RemoteAddr net.Addr
	// Identity is nil for players that did not join through the gateway.
	Identity *identity.Identity
}

type PreLoginEvent struct {
	Player PlayerInfo
}

type LoginEvent struct {
	Player PlayerInfo
}

type PlayerLeaveEvent struct {
	Player PlayerInfo
}
