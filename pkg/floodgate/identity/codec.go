package identity

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// Magic is the first field of every identity payload.
	Magic = "^Floodgate^"
	// Separator joins the fields of a payload. It can not appear in any field.
	Separator = "\x00"
	// SchemaVersion is the payload version this package reads and writes.
	SchemaVersion = 1
	// ExpectedLength is the number of fields a SchemaVersion payload has.
	ExpectedLength = 11
)

const (
	fieldMagic = iota
	fieldVersion
	fieldUsername
	fieldUUID
	fieldIP
	fieldTimestamp
	fieldDeviceOS
	fieldInputMode
	fieldLanguageCode
	fieldLinkedUsername
	fieldLinkedUUID
)

// Encode serializes id into its payload form.
// The derived fields are not part of the payload; Decode derives them again.
func Encode(id Identity) string {
	fields := make([]string, ExpectedLength)
	fields[fieldMagic] = Magic
	fields[fieldVersion] = strconv.Itoa(id.Version)
	fields[fieldUsername] = id.RawUsername
	fields[fieldUUID] = id.RawUUID.String()
	fields[fieldIP] = id.IP
	fields[fieldTimestamp] = strconv.FormatInt(id.Timestamp.UnixMilli(), 10)
	fields[fieldDeviceOS] = strconv.Itoa(int(id.DeviceOS))
	fields[fieldInputMode] = strconv.Itoa(int(id.InputMode))
	fields[fieldLanguageCode] = id.LanguageCode
	if id.LinkedPlayer != nil {
		fields[fieldLinkedUsername] = id.LinkedPlayer.Username
		fields[fieldLinkedUUID] = id.LinkedPlayer.UUID.String()
	}
	return strings.Join(fields, Separator)
}

// Decode parses a payload created by Encode and derives the Java facing
// username and UUID with cfg.
func Decode(payload string, cfg DeriveConfig) (Identity, error) {
	fields := strings.Split(payload, Separator)
	if len(fields) != ExpectedLength {
		return Identity{}, &LengthMismatchError{
			Expected: ExpectedLength,
			Actual:   len(fields),
		}
	}

	if fields[fieldMagic] != Magic {
		return Identity{}, fmt.Errorf("%w: missing magic", ErrMalformedPayload)
	}

	version, err := strconv.Atoi(fields[fieldVersion])
	if err != nil || version != SchemaVersion {
		return Identity{}, fmt.Errorf("%w: unsupported version %q", ErrMalformedPayload, fields[fieldVersion])
	}

	username := fields[fieldUsername]
	if strings.TrimSpace(username) == "" {
		return Identity{}, fmt.Errorf("%w: empty username", ErrMalformedPayload)
	}

	rawUUID, err := uuid.Parse(fields[fieldUUID])
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %q", ErrInvalidUniqueID, fields[fieldUUID])
	}

	ip := fields[fieldIP]
	if net.ParseIP(ip) == nil {
		return Identity{}, fmt.Errorf("%w: invalid ip %q", ErrMalformedPayload, ip)
	}

	millis, err := strconv.ParseInt(fields[fieldTimestamp], 10, 64)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: invalid timestamp %q", ErrMalformedPayload, fields[fieldTimestamp])
	}

	deviceOS, err := parseDeviceOS(fields[fieldDeviceOS])
	if err != nil {
		return Identity{}, err
	}

	inputMode, err := parseInputMode(fields[fieldInputMode])
	if err != nil {
		return Identity{}, err
	}

	linked, err := decodeLinkedPlayer(fields[fieldLinkedUsername], fields[fieldLinkedUUID])
	if err != nil {
		return Identity{}, err
	}

	return New(Params{
		Username:     username,
		UUID:         rawUUID,
		IP:           ip,
		Timestamp:    time.UnixMilli(millis),
		DeviceOS:     deviceOS,
		InputMode:    inputMode,
		LanguageCode: fields[fieldLanguageCode],
		LinkedPlayer: linked,
	}, cfg), nil
}

func decodeLinkedPlayer(username, id string) (*LinkedPlayer, error) {
	if username == "" && id == "" {
		return nil, nil
	}

	if username == "" || id == "" {
		return nil, fmt.Errorf("%w: incomplete linked player", ErrMalformedPayload)
	}

	linkedUUID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: linked player %q", ErrInvalidUniqueID, id)
	}

	return &LinkedPlayer{
		Username: username,
		UUID:     linkedUUID,
	}, nil
}
