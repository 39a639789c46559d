package injector

import (
	"net"

	"github.com/google/uuid"
)

// Profile is the game profile a host installs on the login listener of a connection.
type Profile struct {
	UUID     uuid.UUID
	Username string
}

// Host exposes the connection internals of a Java edition server that the
// injector needs to complete a login on behalf of a client.
type Host interface {
	// InstallProfile sets the profile of the login listener of the connection.
	InstallProfile(id uuid.UUID, username string) Profile
	// AdvanceLogin finishes an offline mode login for p like the host does
	// for clients that it authenticated itself.
	AdvanceLogin(p Profile) error
	// SetReady moves the login listener into its ready to accept state.
	SetReady() error

	RemoteAddr() net.Addr
	SetRemoteAddr(addr net.Addr)
	// SetSpoofedUUID sets the UUID the host uses instead of deriving an offline UUID.
	SetSpoofedUUID(id uuid.UUID)

	Close() error
}
