package builtin

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"

	"go4.org/netipx"

	"github.com/zalando/gateway/binding"
	"github.com/zalando/gateway/exchange"
	"github.com/zalando/gateway/predicates"
)

type RemoteAddrConfig struct {
	Sources []string `mapstructure:"sources"`
}

func (c *RemoteAddrConfig) Validate() error {
	if len(c.Sources) == 0 {
		return errors.New("at least one source is required")
	}

	return nil
}

type remoteAddrSpec struct{}

// NewRemoteAddr creates the RemoteAddr predicate factory, matching the
// address of the connected client against IP addresses and CIDR ranges:
//
//	RemoteAddr=192.168.1.1/24,10.0.0.7
func NewRemoteAddr() predicates.Spec { return remoteAddrSpec{} }

func (remoteAddrSpec) Name() string                       { return RemoteAddrName }
func (remoteAddrSpec) NewConfig() any                     { return &RemoteAddrConfig{} }
func (remoteAddrSpec) ShortcutFieldOrder() []string       { return []string{"sources"} }
func (remoteAddrSpec) ShortcutType() binding.ShortcutType { return binding.GatherList }

func buildIPSet(sources []string) (*netipx.IPSet, error) {
	var b netipx.IPSetBuilder
	for _, s := range sources {
		s = strings.TrimSpace(s)
		if strings.Contains(s, "/") {
			p, err := netip.ParsePrefix(s)
			if err != nil {
				return nil, fmt.Errorf("invalid source %q: %w", s, err)
			}

			b.AddPrefix(p.Masked())
			continue
		}

		a, err := netip.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("invalid source %q: %w", s, err)
		}

		b.Add(a)
	}

	return b.IPSet()
}

func remoteIP(addr string) (netip.Addr, bool) {
	if h, _, err := net.SplitHostPort(addr); err == nil {
		addr = h
	}

	a, err := netip.ParseAddr(addr)
	if err != nil {
		return netip.Addr{}, false
	}

	return a.Unmap(), true
}

func (s remoteAddrSpec) Apply(config any) (*predicates.Predicate, error) {
	c := config.(*RemoteAddrConfig)
	set, err := buildIPSet(c.Sources)
	if err != nil {
		return nil, err
	}

	return predicates.New(s.Name(), c, func(ex *exchange.Exchange) bool {
		ip, ok := remoteIP(ex.Request.RemoteAddr)
		return ok && set.Contains(ip)
	}), nil
}
