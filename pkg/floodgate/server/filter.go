package server

import "net"

// Filterer rejects a connection by returning an error.
type Filterer interface {
	Filter(c net.Conn) error
}

type FiltersConfig struct {
	RateLimiter *RateLimiterConfig `mapstructure:"rateLimiter"`
}

// Filter is a chain of filterers that stops at the first rejection.
type Filter []Filterer

func NewFilter(cfg FiltersConfig) Filter {
	var f Filter
	if rl := cfg.RateLimiter; rl != nil && rl.RequestLimit > 0 && rl.WindowLength > 0 {
		f = append(f, NewRateLimiter(*rl, KeyByIP))
	}
	return f
}

func (f Filter) Filter(c net.Conn) error {
	for _, filterer := range f {
		if err := filterer.Filter(c); err != nil {
			return err
		}
	}
	return nil
}
