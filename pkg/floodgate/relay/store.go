package relay

import (
	"context"

	"github.com/google/uuid"
	"github.com/haveachin/floodgate/pkg/floodgate/envelope"
)

// Store holds the newest envelope per player until the next hop consumes it.
// Implementations must be safe for concurrent use. Writes never fail because
// an entry already exists; the last write wins.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (envelope.Envelope, bool, error)
	Put(ctx context.Context, id uuid.UUID, env envelope.Envelope) error
	Replace(ctx context.Context, id uuid.UUID, env envelope.Envelope) error
	Remove(ctx context.Context, id uuid.UUID) error
}

// Take returns the entry of id and removes it from s.
func Take(ctx context.Context, s Store, id uuid.UUID) (envelope.Envelope, bool, error) {
	env, ok, err := s.Get(ctx, id)
	if err != nil || !ok {
		return "", false, err
	}

	if err := s.Remove(ctx, id); err != nil {
		return "", false, err
	}

	return env, true, nil
}
