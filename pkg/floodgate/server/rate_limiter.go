package server

import (
	"encoding/binary"
	"errors"
	"math"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

var ErrRateLimitReached = errors.New("rate limit reached")

type RateLimiterConfig struct {
	RequestLimit int           `mapstructure:"requestLimit"`
	WindowLength time.Duration `mapstructure:"windowLength"`
}

// RateLimiterKeyFunc groups connections that share a limit.
type RateLimiterKeyFunc func(c net.Conn) string

// KeyByIP groups IPv4 clients by address and IPv6 clients by their /64.
func KeyByIP(c net.Conn) string {
	s := c.RemoteAddr().String()
	if ap, err := netip.ParseAddrPort(s); err == nil {
		return subnetKey(ap.Addr())
	}
	if addr, err := netip.ParseAddr(s); err == nil {
		return subnetKey(addr)
	}
	return s
}

func subnetKey(addr netip.Addr) string {
	addr = addr.Unmap()
	if addr.Is4() {
		return addr.String()
	}

	prefix, err := addr.Prefix(64)
	if err != nil {
		return addr.String()
	}
	return prefix.Addr().String()
}

// RateLimiter closes connections once a key opened limit connections within
// the window. The rate is a sliding window estimate built from the hits of
// the current and the previous fixed window.
type RateLimiter struct {
	limit  int
	window time.Duration
	key    RateLimiterKeyFunc
	now    func() time.Time

	mu        sync.Mutex
	hits      map[uint64]*windowHits
	lastSweep time.Time
}

type windowHits struct {
	n       int
	touched time.Time
}

func NewRateLimiter(cfg RateLimiterConfig, key RateLimiterKeyFunc) *RateLimiter {
	return &RateLimiter{
		limit:  cfg.RequestLimit,
		window: cfg.WindowLength,
		key:    key,
		now:    time.Now,
		hits:   map[uint64]*windowHits{},
	}
}

func (rl *RateLimiter) Filter(c net.Conn) error {
	key := rl.key(c)
	now := rl.now().UTC()
	start := now.Truncate(rl.window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.sweep(now)

	curr := rl.hits[windowKey(key, start)]
	prev := rl.hits[windowKey(key, start.Add(-rl.window))]
	if int(math.Round(rl.estimate(now.Sub(start), prev, curr))) >= rl.limit {
		c.Close()
		return ErrRateLimitReached
	}

	if curr == nil {
		curr = &windowHits{}
		rl.hits[windowKey(key, start)] = curr
	}
	curr.n++
	curr.touched = now
	return nil
}

// estimate weights the previous window by the share of it that still
// overlaps the sliding window ending now.
func (rl *RateLimiter) estimate(elapsed time.Duration, prev, curr *windowHits) float64 {
	var rate float64
	if prev != nil {
		rate = float64(prev.n) * float64(rl.window-elapsed) / float64(rl.window)
	}
	if curr != nil {
		rate += float64(curr.n)
	}
	return rate
}

// sweep drops windows that can no longer affect any estimate.
// The caller must hold rl.mu.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.window {
		return
	}
	rl.lastSweep = now

	for k, h := range rl.hits {
		if now.Sub(h.touched) >= 2*rl.window {
			delete(rl.hits, k)
		}
	}
}

func windowKey(key string, start time.Time) uint64 {
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(start.Unix()))

	d := xxhash.New()
	_, _ = d.WriteString(key)
	_, _ = d.Write(ts[:])
	return d.Sum64()
}
