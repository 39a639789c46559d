package handshake

import (
	"errors"
	"strings"

	"github.com/haveachin/floodgate/pkg/floodgate/envelope"
	"github.com/haveachin/floodgate/pkg/floodgate/identity"
)

const separator = identity.Separator

// OutcomeKind is the result class of evaluating a handshake.
type OutcomeKind int

const (
	NotFloodgateClient OutcomeKind = iota
	Success
	InvalidDataLength
	InvalidPayload
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case InvalidDataLength:
		return "invalid_data_length"
	case InvalidPayload:
		return "invalid_payload"
	default:
		return "not_floodgate_client"
	}
}

// Outcome is the result of evaluating the server address of a handshake.
type Outcome struct {
	Kind     OutcomeKind
	Identity identity.Identity
	// Residual holds every field of the server address except the envelope.
	Residual       []string
	ExpectedLength int
	ActualLength   int
	Err            error
}

// Opener opens envelopes. It is implemented by *envelope.Opener.
type Opener interface {
	Open(env envelope.Envelope) (identity.Identity, error)
}

type Evaluator struct {
	Opener Opener
}

// Handle evaluates the raw server address of a handshake.
func (e Evaluator) Handle(host string) Outcome {
	fields := strings.Split(host, separator)
	if len(fields) < 2 || !envelope.IsEnvelope(fields[1]) {
		return Outcome{Kind: NotFloodgateClient}
	}

	id, err := e.Opener.Open(envelope.Envelope(fields[1]))
	if err != nil {
		var lenErr *identity.LengthMismatchError
		if errors.As(err, &lenErr) {
			return Outcome{
				Kind:           InvalidDataLength,
				ExpectedLength: lenErr.Expected,
				ActualLength:   lenErr.Actual,
				Err:            err,
			}
		}

		return Outcome{
			Kind: InvalidPayload,
			Err:  err,
		}
	}

	residual := make([]string, 0, len(fields)-1)
	residual = append(residual, fields[0])
	residual = append(residual, fields[2:]...)

	return Outcome{
		Kind:     Success,
		Identity: id,
		Residual: residual,
	}
}

// IsForwarded reports whether the residual fields have the shape a forwarding
// hop produces: host, client IP, UUID and optional properties.
func IsForwarded(residual []string) bool {
	return len(residual) == 3 || len(residual) == 4
}

// ForwardedHost builds the server address a forwarding hop would have sent
// for id. The properties field of residual is kept.
func ForwardedHost(residual []string, id identity.Identity) string {
	fields := []string{residual[0], id.IP, id.CorrectUUID.String()}
	if len(residual) > 3 {
		fields = append(fields, residual[3])
	}
	return strings.Join(fields, separator)
}

// RelayHost builds the server address a forwarding hop sends to the next hop.
// The envelope travels in the second field so that the next hop can evaluate it.
func RelayHost(host string, env envelope.Envelope, id identity.Identity) string {
	return strings.Join([]string{host, env.String(), id.IP, id.CorrectUUID.String()}, separator)
}
