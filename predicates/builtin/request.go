package builtin

import (
	"errors"
	"regexp"
	"strings"

	"github.com/zalando/gateway/binding"
	"github.com/zalando/gateway/exchange"
	"github.com/zalando/gateway/predicates"
)

type MethodConfig struct {
	Methods []string `mapstructure:"methods"`
}

func (c *MethodConfig) Validate() error {
	if len(c.Methods) == 0 {
		return errors.New("at least one method is required")
	}

	return nil
}

type methodSpec struct{}

// NewMethod creates the Method predicate factory:
//
//	Method=GET,POST
func NewMethod() predicates.Spec { return methodSpec{} }

func (methodSpec) Name() string                       { return MethodName }
func (methodSpec) NewConfig() any                     { return &MethodConfig{} }
func (methodSpec) ShortcutFieldOrder() []string       { return []string{"methods"} }
func (methodSpec) ShortcutType() binding.ShortcutType { return binding.GatherList }

func (s methodSpec) Apply(config any) (*predicates.Predicate, error) {
	c := config.(*MethodConfig)
	return predicates.New(s.Name(), c, func(ex *exchange.Exchange) bool {
		for _, m := range c.Methods {
			if strings.EqualFold(m, ex.Request.Method) {
				return true
			}
		}

		return false
	}), nil
}

type HeaderConfig struct {
	Header string         `mapstructure:"header"`
	Regexp *regexp.Regexp `mapstructure:"regexp"`
}

func (c *HeaderConfig) Validate() error {
	if c.Header == "" {
		return errors.New("header name is required")
	}

	return nil
}

type headerSpec struct{}

// NewHeader creates the Header predicate factory. Without a regular
// expression, the presence of the header is tested:
//
//	Header=X-Request-Id,\d+
func NewHeader() predicates.Spec { return headerSpec{} }

func (headerSpec) Name() string                       { return HeaderName }
func (headerSpec) NewConfig() any                     { return &HeaderConfig{} }
func (headerSpec) ShortcutFieldOrder() []string       { return []string{"header", "regexp"} }
func (headerSpec) ShortcutType() binding.ShortcutType { return binding.DefaultShortcut }

func matchAny(values []string, rx *regexp.Regexp) bool {
	if rx == nil {
		return len(values) > 0
	}

	for _, v := range values {
		if rx.MatchString(v) {
			return true
		}
	}

	return false
}

func (s headerSpec) Apply(config any) (*predicates.Predicate, error) {
	c := config.(*HeaderConfig)
	return predicates.New(s.Name(), c, func(ex *exchange.Exchange) bool {
		return matchAny(ex.Request.Header.Values(c.Header), c.Regexp)
	}), nil
}

type QueryConfig struct {
	Param  string         `mapstructure:"param"`
	Regexp *regexp.Regexp `mapstructure:"regexp"`
}

func (c *QueryConfig) Validate() error {
	if c.Param == "" {
		return errors.New("param is required")
	}

	return nil
}

type querySpec struct{}

// NewQuery creates the Query predicate factory:
//
//	Query=green
//	Query=red,gree.
func NewQuery() predicates.Spec { return querySpec{} }

func (querySpec) Name() string                       { return QueryName }
func (querySpec) NewConfig() any                     { return &QueryConfig{} }
func (querySpec) ShortcutFieldOrder() []string       { return []string{"param", "regexp"} }
func (querySpec) ShortcutType() binding.ShortcutType { return binding.DefaultShortcut }

func (s querySpec) Apply(config any) (*predicates.Predicate, error) {
	c := config.(*QueryConfig)
	return predicates.New(s.Name(), c, func(ex *exchange.Exchange) bool {
		return matchAny(ex.Request.URL.Query()[c.Param], c.Regexp)
	}), nil
}

type CookieConfig struct {
	Name   string         `mapstructure:"name"`
	Regexp *regexp.Regexp `mapstructure:"regexp"`
}

func (c *CookieConfig) Validate() error {
	if c.Name == "" || c.Regexp == nil {
		return errors.New("cookie name and regexp are required")
	}

	return nil
}

type cookieSpec struct{}

// NewCookie creates the Cookie predicate factory:
//
//	Cookie=chocolate,ch.p
func NewCookie() predicates.Spec { return cookieSpec{} }

func (cookieSpec) Name() string                       { return CookieName }
func (cookieSpec) NewConfig() any                     { return &CookieConfig{} }
func (cookieSpec) ShortcutFieldOrder() []string       { return []string{"name", "regexp"} }
func (cookieSpec) ShortcutType() binding.ShortcutType { return binding.DefaultShortcut }
func (cookieSpec) ValidateArgCount() bool             { return true }

func (s cookieSpec) Apply(config any) (*predicates.Predicate, error) {
	c := config.(*CookieConfig)
	return predicates.New(s.Name(), c, func(ex *exchange.Exchange) bool {
		for _, ck := range ex.Request.Cookies() {
			if ck.Name == c.Name && c.Regexp.MatchString(ck.Value) {
				return true
			}
		}

		return false
	}), nil
}
