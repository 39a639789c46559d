package server

import (
	"errors"
	"fmt"
	"net"
	"net/netip"

	"github.com/pires/go-proxyproto"
)

var (
	ErrUpstreamNotTrusted = errors.New("upstream not trusted")
	ErrNoTrustedCIDRs     = errors.New("no trusted CIDRs")
	ErrNotTCP             = errors.New("not a tcp address")
)

type ProxyProtocolConfig struct {
	Receive      bool     `mapstructure:"receive"`
	TrustedCIDRs []string `mapstructure:"trustedCIDRs"`
}

// NewProxyProtocolListener wraps l so that upstreams in trustedCIDRs must send
// a PROXY protocol header. Every other upstream is rejected.
func NewProxyProtocolListener(l net.Listener, trustedCIDRs []string) (net.Listener, error) {
	if len(trustedCIDRs) == 0 {
		return nil, ErrNoTrustedCIDRs
	}

	prefixes := make([]netip.Prefix, 0, len(trustedCIDRs))
	for _, cidr := range trustedCIDRs {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			return nil, err
		}
		prefixes = append(prefixes, prefix)
	}

	return &proxyproto.Listener{
		Listener: l,
		Policy:   trustPolicy(prefixes),
	}, nil
}

func trustPolicy(prefixes []netip.Prefix) func(net.Addr) (proxyproto.Policy, error) {
	return func(upstream net.Addr) (proxyproto.Policy, error) {
		tcpAddr, ok := upstream.(*net.TCPAddr)
		if !ok {
			return proxyproto.REJECT, fmt.Errorf("%w: %s", ErrNotTCP, upstream)
		}

		ip, ok := netip.AddrFromSlice(tcpAddr.IP)
		if !ok {
			return proxyproto.REJECT, ErrUpstreamNotTrusted
		}

		ip = ip.Unmap()
		for _, prefix := range prefixes {
			if prefix.Contains(ip) {
				return proxyproto.REQUIRE, nil
			}
		}
		return proxyproto.REJECT, fmt.Errorf("%w: %s", ErrUpstreamNotTrusted, ip)
	}
}

// WriteProxyProtocolHeader writes a v2 header to rc that reports src as the
// origin of the connection.
func WriteProxyProtocolHeader(src net.Addr, rc net.Conn) error {
	dst, ok := rc.RemoteAddr().(*net.TCPAddr)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotTCP, rc.RemoteAddr())
	}

	proto := proxyproto.TCPv6
	if dst.IP.To4() != nil {
		proto = proxyproto.TCPv4
	}

	_, err := (&proxyproto.Header{
		Version:           2,
		Command:           proxyproto.PROXY,
		TransportProtocol: proto,
		SourceAddr:        src,
		DestinationAddr:   dst,
	}).WriteTo(rc)
	return err
}
