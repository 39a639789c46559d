package server

import (
	"crypto/md5"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/haveachin/floodgate/pkg/floodgate/injector"
)

var ErrLoginDenied = errors.New("login denied")

type LoginState int

const (
	LoginStateHello LoginState = iota
	LoginStateReadyToAccept
	LoginStateAccepted
)

func (s LoginState) String() string {
	switch s {
	case LoginStateHello:
		return "hello"
	case LoginStateReadyToAccept:
		return "ready to accept"
	default:
		return "accepted"
	}
}

// LoginListener tracks the login phase of a single connection.
type LoginListener struct {
	nm      *NetworkManager
	Profile injector.Profile
	state   LoginState
}

func (l *LoginListener) State() LoginState {
	return l.state
}

// InitUUID sets the UUID of the profile. A spoofed UUID takes precedence
// over the offline UUID of the username.
func (l *LoginListener) InitUUID() {
	if l.nm.spoofedUUID != uuid.Nil {
		l.Profile.UUID = l.nm.spoofedUUID
		return
	}
	l.Profile.UUID = OfflineUUID(l.Profile.Username)
}

// FireLoginEvents asks every pre login handler whether the player may join.
func (l *LoginListener) FireLoginEvents() error {
	if l.nm.bus == nil {
		return nil
	}

	replies := l.nm.bus.Request(PreLoginEvent{
		Player: l.nm.playerInfo(),
	}, PreLoginEventTopic)

	var err error
	for reply := range replies {
		if reply.Err != nil && err == nil {
			err = fmt.Errorf("%w: %v", ErrLoginDenied, reply.Err)
		}
	}
	return err
}

// OfflineUUID returns the name based UUID a server in offline mode assigns to username.
func OfflineUUID(username string) uuid.UUID {
	id := uuid.UUID(md5.Sum([]byte("OfflinePlayer:" + username)))
	id[6] = (id[6] & 0x0f) | 0x30
	id[8] = (id[8] & 0x3f) | 0x80
	return id
}
