package relay

import (
	"context"

	"github.com/google/uuid"
	"github.com/haveachin/floodgate/pkg/floodgate/envelope"
	"github.com/haveachin/floodgate/pkg/floodgate/identity"
	"go.uber.org/zap"
)

// Sealer seals identities. It is implemented by *envelope.Sealer.
type Sealer interface {
	Seal(id identity.Identity) (envelope.Envelope, error)
}

// API is the encrypted data store that forwarding hops and the HTTP API use.
type API struct {
	Store  Store
	Sealer Sealer
	Logger *zap.Logger
}

func (a API) Get(ctx context.Context, id uuid.UUID) (envelope.Envelope, bool, error) {
	return a.Store.Get(ctx, id)
}

func (a API) Put(ctx context.Context, id uuid.UUID, env envelope.Envelope) error {
	return a.Store.Put(ctx, id, env)
}

func (a API) Remove(ctx context.Context, id uuid.UUID) error {
	return a.Store.Remove(ctx, id)
}

// Refresh seals ident and stores it under id.
// If sealing fails the stored entry is left untouched.
func (a API) Refresh(ctx context.Context, id uuid.UUID, ident identity.Identity) error {
	env, err := a.Sealer.Seal(ident)
	if err != nil {
		a.logger().Warn("failed to refresh encrypted data",
			zap.String("uuid", id.String()),
			zap.Error(err),
		)
		return err
	}

	return a.Store.Replace(ctx, id, env)
}

func (a API) logger() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}
