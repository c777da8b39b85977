package builtin

import (
	"errors"
	"strings"

	"github.com/dimfeld/httppath"

	"github.com/zalando/gateway/binding"
	"github.com/zalando/gateway/exchange"
	"github.com/zalando/gateway/predicates"
)

// PathConfig is the config of the Path predicate.
type PathConfig struct {
	Patterns           []string `mapstructure:"patterns"`
	MatchTrailingSlash bool     `mapstructure:"matchTrailingSlash"`
}

func (c *PathConfig) Validate() error {
	if len(c.Patterns) == 0 {
		return errors.New("at least one pattern is required")
	}

	return nil
}

type pathSpec struct{}

// NewPath creates the Path predicate factory:
//
//	Path=/red/{segment},/blue/**
//
// The request path is cleaned before matching. Captured variables are
// stored on the exchange as URI template variables.
func NewPath() predicates.Spec { return pathSpec{} }

func (pathSpec) Name() string                       { return PathName }
func (pathSpec) NewConfig() any                     { return &PathConfig{MatchTrailingSlash: true} }
func (pathSpec) ShortcutFieldOrder() []string       { return []string{"patterns", "matchTrailingSlash"} }
func (pathSpec) ShortcutType() binding.ShortcutType { return binding.GatherListTailFlag }

func (s pathSpec) Apply(config any) (*predicates.Predicate, error) {
	c := config.(*PathConfig)
	patterns := make([]*pattern, len(c.Patterns))
	for i, raw := range c.Patterns {
		p, err := compilePattern(raw, '/', false)
		if err != nil {
			return nil, err
		}

		patterns[i] = p
	}

	return predicates.New(s.Name(), c, func(ex *exchange.Exchange) bool {
		raw := ex.Request.URL.Path
		trailing := len(raw) > 1 && strings.HasSuffix(raw, "/")
		path := httppath.Clean(raw)
		for _, p := range patterns {
			if trailing && !c.MatchTrailingSlash && !strings.HasSuffix(p.raw, "/") {
				continue
			}

			if vars, ok := p.match(path); ok {
				ex.PutURITemplateVariables(vars)
				return true
			}
		}

		return false
	}), nil
}
