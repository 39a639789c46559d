package floodgate

import (
	"sync"

	"github.com/haveachin/floodgate/pkg/floodgate/handshake"
	"github.com/haveachin/floodgate/pkg/floodgate/injector"
)

// observers fans injector observations out to every registered observer.
type observers struct {
	mu  sync.RWMutex
	obs []injector.Observer
}

func (o *observers) add(obs injector.Observer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.obs = append(o.obs, obs)
}

func (o *observers) ObserveHandshake(kind handshake.OutcomeKind) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, obs := range o.obs {
		obs.ObserveHandshake(kind)
	}
}

func (o *observers) ObserveLogin(forwarded bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, obs := range o.obs {
		obs.ObserveLogin(forwarded)
	}
}
