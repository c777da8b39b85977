package builtin

import (
	"errors"
	"net"
	"strings"

	"github.com/zalando/gateway/binding"
	"github.com/zalando/gateway/exchange"
	"github.com/zalando/gateway/predicates"
)

type HostConfig struct {
	Patterns []string `mapstructure:"patterns"`
}

func (c *HostConfig) Validate() error {
	if len(c.Patterns) == 0 {
		return errors.New("at least one pattern is required")
	}

	return nil
}

type hostSpec struct{}

// NewHost creates the Host predicate factory:
//
//	Host=**.somehost.org,{sub}.anotherhost.org
//
// Patterns without a port are matched against the host name only.
func NewHost() predicates.Spec { return hostSpec{} }

func (hostSpec) Name() string                       { return HostName }
func (hostSpec) NewConfig() any                     { return &HostConfig{} }
func (hostSpec) ShortcutFieldOrder() []string       { return []string{"patterns"} }
func (hostSpec) ShortcutType() binding.ShortcutType { return binding.GatherList }

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}

	return host
}

// hasPort tells whether a host pattern names a port. Colons within
// variable captures, like {sub:[a-z]+}, are not port separators.
func hasPort(pattern string) bool {
	return strings.Contains(pattern[strings.LastIndexByte(pattern, '}')+1:], ":")
}

func (s hostSpec) Apply(config any) (*predicates.Predicate, error) {
	c := config.(*HostConfig)
	patterns := make([]*pattern, len(c.Patterns))
	withPort := make([]bool, len(c.Patterns))
	for i, raw := range c.Patterns {
		p, err := compilePattern(raw, '.', true)
		if err != nil {
			return nil, err
		}

		patterns[i] = p
		withPort[i] = hasPort(raw)
	}

	return predicates.New(s.Name(), c, func(ex *exchange.Exchange) bool {
		host := strings.ToLower(ex.Request.Host)
		for i, p := range patterns {
			h := host
			if !withPort[i] {
				h = stripPort(host)
			}

			if vars, ok := p.match(h); ok {
				ex.PutURITemplateVariables(vars)
				return true
			}
		}

		return false
	}), nil
}
