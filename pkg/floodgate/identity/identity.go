package identity

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxUsernameLength is the longest username a Java edition server accepts.
const MaxUsernameLength = 16

// LinkedPlayer is the Java account a Bedrock player linked their account to.
type LinkedPlayer struct {
	Username string
	UUID     uuid.UUID
}

// Identity is the verified profile of a Bedrock player that joined through the gateway.
// It is never modified after it was decoded.
type Identity struct {
	Version         int
	RawUsername     string
	CorrectUsername string
	RawUUID         uuid.UUID
	CorrectUUID     uuid.UUID
	IP              string
	Timestamp       time.Time
	DeviceOS        DeviceOS
	InputMode       InputMode
	LanguageCode    string
	LinkedPlayer    *LinkedPlayer
}

// DeriveConfig controls how the Java facing username is derived from the Bedrock one.
type DeriveConfig struct {
	UsernamePrefix string `mapstructure:"prefix"`
	ReplaceSpaces  bool   `mapstructure:"replaceSpaces"`
}

func DefaultDeriveConfig() DeriveConfig {
	return DeriveConfig{
		UsernamePrefix: ".",
		ReplaceSpaces:  true,
	}
}

// Params are the values the gateway knows about a player.
type Params struct {
	Username     string
	UUID         uuid.UUID
	IP           string
	Timestamp    time.Time
	DeviceOS     DeviceOS
	InputMode    InputMode
	LanguageCode string
	LinkedPlayer *LinkedPlayer
}

// New builds an Identity and derives its Java facing username and UUID.
func New(p Params, cfg DeriveConfig) Identity {
	return Identity{
		Version:         SchemaVersion,
		RawUsername:     p.Username,
		CorrectUsername: DeriveUsername(p.Username, p.LinkedPlayer, cfg),
		RawUUID:         p.UUID,
		CorrectUUID:     DeriveUUID(p.UUID, p.LinkedPlayer),
		IP:              p.IP,
		Timestamp:       p.Timestamp.UTC().Truncate(time.Millisecond),
		DeviceOS:        p.DeviceOS,
		InputMode:       p.InputMode,
		LanguageCode:    p.LanguageCode,
		LinkedPlayer:    p.LinkedPlayer,
	}
}

// IsLinked reports whether the player linked a Java account.
func (id Identity) IsLinked() bool {
	return id.LinkedPlayer != nil
}

// Equal reports whether both identities describe the same player with the same data.
func (id Identity) Equal(other Identity) bool {
	if (id.LinkedPlayer == nil) != (other.LinkedPlayer == nil) {
		return false
	}

	if id.LinkedPlayer != nil && *id.LinkedPlayer != *other.LinkedPlayer {
		return false
	}

	return id.Version == other.Version &&
		id.RawUsername == other.RawUsername &&
		id.CorrectUsername == other.CorrectUsername &&
		id.RawUUID == other.RawUUID &&
		id.CorrectUUID == other.CorrectUUID &&
		id.IP == other.IP &&
		id.Timestamp.Equal(other.Timestamp) &&
		id.DeviceOS == other.DeviceOS &&
		id.InputMode == other.InputMode &&
		id.LanguageCode == other.LanguageCode
}

// DeriveUUID maps the UUID of a Bedrock player to the UUID it uses on Java edition servers.
// Bedrock UUIDs only carry the 64 bit XUID in their least significant half, so the most
// significant half is zeroed. Linked players use the UUID of their Java account.
func DeriveUUID(raw uuid.UUID, linked *LinkedPlayer) uuid.UUID {
	if linked != nil {
		return linked.UUID
	}

	var id uuid.UUID
	copy(id[8:], raw[8:])
	return id
}

// DeriveUsername maps a Bedrock username to a username that cannot collide with Java accounts.
func DeriveUsername(raw string, linked *LinkedPlayer, cfg DeriveConfig) string {
	if linked != nil {
		return linked.Username
	}

	name := cfg.UsernamePrefix + raw
	if cfg.ReplaceSpaces {
		name = strings.ReplaceAll(name, " ", "_")
	}

	if utf8.RuneCountInString(name) <= MaxUsernameLength {
		return name
	}

	return string([]rune(name)[:MaxUsernameLength])
}
