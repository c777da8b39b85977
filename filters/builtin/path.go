package builtin

import (
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/zalando/gateway/binding"
	"github.com/zalando/gateway/exchange"
	"github.com/zalando/gateway/filters"
)

// rewriteRequest records the current URL as an original one before f
// modifies the request.
func rewriteRequest(ex *exchange.Exchange, f func(r *http.Request)) {
	u := *ex.Request.URL
	ex.AddOriginalRequestURL(&u)
	ex.MutateRequest(func(r *http.Request) {
		f(r)
		r.RequestURI = r.URL.RequestURI()
	})
}

func setPath(u *url.URL, p string) {
	u.Path = p
	u.RawPath = ""
}

type addRequestParameterSpec struct{}

// NewAddRequestParameter adds a query parameter to the upstream request:
//
//	AddRequestParameter=red,{segment}
func NewAddRequestParameter() filters.Spec { return addRequestParameterSpec{} }

func (addRequestParameterSpec) Name() string                       { return AddRequestParameterName }
func (addRequestParameterSpec) NewConfig() any                     { return &NameValueConfig{} }
func (addRequestParameterSpec) ShortcutFieldOrder() []string       { return []string{"name", "value"} }
func (addRequestParameterSpec) ShortcutType() binding.ShortcutType { return binding.DefaultShortcut }

func (addRequestParameterSpec) Apply(config any) (filters.Handler, error) {
	c := config.(*NameValueConfig)
	value := filters.NewTemplate(c.Value)
	return filters.HandlerFunc(func(ex *exchange.Exchange, next filters.Chain) error {
		v := value.ExecuteLogged(ex.URITemplateVariables())
		ex.MutateRequest(func(r *http.Request) {
			q := r.URL.Query()
			q.Add(c.Name, v)
			r.URL.RawQuery = q.Encode()
			r.RequestURI = r.URL.RequestURI()
		})

		return next.Next(ex)
	}), nil
}

// RewritePathConfig is the config of the RewritePath filter. In the
// replacement, $\ is accepted for $, as used in YAML files.
type RewritePathConfig struct {
	Regexp      *regexp.Regexp `mapstructure:"regexp"`
	Replacement string         `mapstructure:"replacement"`
}

func (c *RewritePathConfig) Validate() error {
	if c.Regexp == nil {
		return errors.New("regexp is required")
	}

	return nil
}

type rewritePathSpec struct{}

// NewRewritePath rewrites the request path with a regular expression:
//
//	RewritePath=/red/?(?<segment>.*),/$\{segment}
func NewRewritePath() filters.Spec { return rewritePathSpec{} }

func (rewritePathSpec) Name() string                       { return RewritePathName }
func (rewritePathSpec) NewConfig() any                     { return &RewritePathConfig{} }
func (rewritePathSpec) ShortcutFieldOrder() []string       { return []string{"regexp", "replacement"} }
func (rewritePathSpec) ShortcutType() binding.ShortcutType { return binding.DefaultShortcut }

func (rewritePathSpec) Apply(config any) (filters.Handler, error) {
	c := config.(*RewritePathConfig)
	replacement := strings.ReplaceAll(c.Replacement, `$\`, "$")
	return filters.HandlerFunc(func(ex *exchange.Exchange, next filters.Chain) error {
		rewriteRequest(ex, func(r *http.Request) {
			setPath(r.URL, c.Regexp.ReplaceAllString(r.URL.Path, replacement))
		})

		return next.Next(ex)
	}), nil
}

type StripPrefixConfig struct {
	Parts int `mapstructure:"parts"`
}

func (c *StripPrefixConfig) Validate() error {
	if c.Parts < 0 {
		return errors.New("parts must not be negative")
	}

	return nil
}

type stripPrefixSpec struct{}

// NewStripPrefix removes the given number of leading path segments:
//
//	StripPrefix=2
func NewStripPrefix() filters.Spec { return stripPrefixSpec{} }

func (stripPrefixSpec) Name() string                       { return StripPrefixName }
func (stripPrefixSpec) NewConfig() any                     { return &StripPrefixConfig{Parts: 1} }
func (stripPrefixSpec) ShortcutFieldOrder() []string       { return []string{"parts"} }
func (stripPrefixSpec) ShortcutType() binding.ShortcutType { return binding.DefaultShortcut }

func stripPrefix(p string, parts int) string {
	segments := strings.Split(strings.TrimPrefix(p, "/"), "/")
	if parts >= len(segments) {
		return "/"
	}

	return "/" + strings.Join(segments[parts:], "/")
}

func (stripPrefixSpec) Apply(config any) (filters.Handler, error) {
	c := config.(*StripPrefixConfig)
	return filters.HandlerFunc(func(ex *exchange.Exchange, next filters.Chain) error {
		rewriteRequest(ex, func(r *http.Request) {
			setPath(r.URL, stripPrefix(r.URL.Path, c.Parts))
		})

		return next.Next(ex)
	}), nil
}

type PrefixPathConfig struct {
	Prefix string `mapstructure:"prefix"`
}

type prefixPathSpec struct{}

// NewPrefixPath prepends a prefix to the request path:
//
//	PrefixPath=/mypath
func NewPrefixPath() filters.Spec { return prefixPathSpec{} }

func (prefixPathSpec) Name() string                       { return PrefixPathName }
func (prefixPathSpec) NewConfig() any                     { return &PrefixPathConfig{} }
func (prefixPathSpec) ShortcutFieldOrder() []string       { return []string{"prefix"} }
func (prefixPathSpec) ShortcutType() binding.ShortcutType { return binding.DefaultShortcut }

func (prefixPathSpec) Apply(config any) (filters.Handler, error) {
	c := config.(*PrefixPathConfig)
	prefix := "/" + strings.Trim(c.Prefix, "/")
	if prefix == "/" {
		prefix = ""
	}

	return filters.HandlerFunc(func(ex *exchange.Exchange, next filters.Chain) error {
		if prefix != "" {
			rewriteRequest(ex, func(r *http.Request) {
				setPath(r.URL, prefix+r.URL.Path)
			})
		}

		return next.Next(ex)
	}), nil
}

type SetPathConfig struct {
	Template string `mapstructure:"template"`
}

type setPathSpec struct{}

// NewSetPath replaces the request path with a template resolved from the
// URI template variables:
//
//	SetPath=/{segment}
func NewSetPath() filters.Spec { return setPathSpec{} }

func (setPathSpec) Name() string                       { return SetPathName }
func (setPathSpec) NewConfig() any                     { return &SetPathConfig{} }
func (setPathSpec) ShortcutFieldOrder() []string       { return []string{"template"} }
func (setPathSpec) ShortcutType() binding.ShortcutType { return binding.DefaultShortcut }

func (setPathSpec) Apply(config any) (filters.Handler, error) {
	t := filters.NewTemplate(config.(*SetPathConfig).Template)
	return filters.HandlerFunc(func(ex *exchange.Exchange, next filters.Chain) error {
		p := t.ExecuteLogged(ex.URITemplateVariables())
		rewriteRequest(ex, func(r *http.Request) {
			setPath(r.URL, p)
		})

		return next.Next(ex)
	}), nil
}
