package server

import (
	"errors"
	"net"

	"github.com/google/uuid"
	"github.com/haveachin/floodgate/pkg/event"
	"github.com/haveachin/floodgate/pkg/floodgate/identity"
	"github.com/haveachin/floodgate/pkg/floodgate/injector"
	"github.com/haveachin/floodgate/pkg/floodgate/protocol"
)

var errNotHello = errors.New("login listener is past hello")

// Interceptor sees every packet a client sends before the server handles it.
type Interceptor interface {
	Intercept(pk *protocol.Packet) (injector.Verdict, error)
	Detached() bool
}

// NetworkManager holds the state of a single client connection.
type NetworkManager struct {
	conn         *Conn
	bus          event.Bus
	remoteAddr   net.Addr
	spoofedUUID  uuid.UUID
	listener     *LoginListener
	interceptors []Interceptor
	identity     *identity.Identity
}

var _ injector.Host = (*NetworkManager)(nil)

func newNetworkManager(c *Conn, bus event.Bus) *NetworkManager {
	nm := &NetworkManager{
		conn:       c,
		bus:        bus,
		remoteAddr: c.RemoteAddr(),
	}
	nm.listener = &LoginListener{nm: nm}
	return nm
}

func (nm *NetworkManager) AddInterceptor(i Interceptor) {
	nm.interceptors = append(nm.interceptors, i)
}

// intercept passes pk through the interceptor pipeline and drops
// interceptors that finished.
func (nm *NetworkManager) intercept(pk *protocol.Packet) (injector.Verdict, error) {
	verdict := injector.Forward
	var err error
	for _, i := range nm.interceptors {
		verdict, err = i.Intercept(pk)
		if err != nil || verdict == injector.Swallow {
			break
		}
	}

	active := nm.interceptors[:0]
	for _, i := range nm.interceptors {
		if !i.Detached() {
			active = append(active, i)
		}
	}
	nm.interceptors = active

	return verdict, err
}

func (nm *NetworkManager) InstallProfile(id uuid.UUID, username string) injector.Profile {
	nm.listener.Profile = injector.Profile{
		UUID:     id,
		Username: username,
	}
	return nm.listener.Profile
}

func (nm *NetworkManager) AdvanceLogin(p injector.Profile) error {
	if nm.listener.state != LoginStateHello {
		return errNotHello
	}

	nm.listener.Profile = p
	nm.listener.InitUUID()
	return nm.listener.FireLoginEvents()
}

func (nm *NetworkManager) SetReady() error {
	if nm.listener.state != LoginStateHello {
		return errNotHello
	}

	nm.listener.state = LoginStateReadyToAccept
	return nil
}

func (nm *NetworkManager) RemoteAddr() net.Addr {
	return nm.remoteAddr
}

func (nm *NetworkManager) SetRemoteAddr(addr net.Addr) {
	nm.remoteAddr = addr
}

func (nm *NetworkManager) SetSpoofedUUID(id uuid.UUID) {
	nm.spoofedUUID = id
}

func (nm *NetworkManager) Close() error {
	return nm.conn.ForceClose()
}

func (nm *NetworkManager) playerInfo() PlayerInfo {
	return PlayerInfo{
		Username:   nm.listener.Profile.Username,
		UUID:       nm.listener.Profile.UUID,
		RemoteAddr: nm.remoteAddr,
		Identity:   nm.identity,
	}
}
