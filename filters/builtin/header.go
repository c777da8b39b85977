package builtin

import (
	"errors"
	"net/http"

	"github.com/zalando/gateway/binding"
	"github.com/zalando/gateway/exchange"
	"github.com/zalando/gateway/filters"
	"github.com/zalando/gateway/headers"
)

// NameValueConfig is the config of the filters adding or setting a header
// or a query parameter. The value may reference URI template variables.
type NameValueConfig struct {
	Name  string `mapstructure:"name"`
	Value string `mapstructure:"value"`
}

func (c *NameValueConfig) Validate() error {
	if c.Name == "" {
		return errors.New("name is required")
	}

	return nil
}

// NameConfig is the config of the filters removing a header.
type NameConfig struct {
	Name string `mapstructure:"name"`
}

func (c *NameConfig) Validate() error {
	if c.Name == "" {
		return errors.New("name is required")
	}

	return nil
}

type headerMode int

const (
	addHeader headerMode = iota
	setHeader
	removeHeader
)

type headerSpec struct {
	name string
	typ  headers.Type
	mode headerMode
}

type headerFilter struct {
	typ   headers.Type
	mode  headerMode
	key   string
	value *filters.Template
}

// NewAddRequestHeader adds a header to the upstream request:
//
//	AddRequestHeader=X-Request-Red,Blue-{segment}
func NewAddRequestHeader() filters.Spec {
	return &headerSpec{name: AddRequestHeaderName, typ: headers.Request, mode: addHeader}
}

// NewAddResponseHeader adds a header to the client response.
func NewAddResponseHeader() filters.Spec {
	return &headerSpec{name: AddResponseHeaderName, typ: headers.Response, mode: addHeader}
}

// NewSetRequestHeader replaces a header of the upstream request.
func NewSetRequestHeader() filters.Spec {
	return &headerSpec{name: SetRequestHeaderName, typ: headers.Request, mode: setHeader}
}

// NewSetResponseHeader replaces a header of the client response, after the
// upstream response was received.
func NewSetResponseHeader() filters.Spec {
	return &headerSpec{name: SetResponseHeaderName, typ: headers.Response, mode: setHeader}
}

func NewRemoveRequestHeader() filters.Spec {
	return &headerSpec{name: RemoveRequestHeaderName, typ: headers.Request, mode: removeHeader}
}

func NewRemoveResponseHeader() filters.Spec {
	return &headerSpec{name: RemoveResponseHeaderName, typ: headers.Response, mode: removeHeader}
}

func (s *headerSpec) Name() string                       { return s.name }
func (s *headerSpec) ShortcutType() binding.ShortcutType { return binding.DefaultShortcut }

func (s *headerSpec) NewConfig() any {
	if s.mode == removeHeader {
		return &NameConfig{}
	}

	return &NameValueConfig{}
}

func (s *headerSpec) ShortcutFieldOrder() []string {
	if s.mode == removeHeader {
		return []string{"name"}
	}

	return []string{"name", "value"}
}

func (s *headerSpec) Apply(config any) (filters.Handler, error) {
	f := &headerFilter{typ: s.typ, mode: s.mode}
	switch c := config.(type) {
	case *NameConfig:
		f.key = c.Name
	case *NameValueConfig:
		f.key = c.Name
		f.value = filters.NewTemplate(c.Value)
	}

	return f, nil
}

func (f *headerFilter) modify(h http.Header, ex *exchange.Exchange) {
	switch f.mode {
	case addHeader:
		h.Add(f.key, f.value.ExecuteLogged(ex.URITemplateVariables()))
	case setHeader:
		h.Set(f.key, f.value.ExecuteLogged(ex.URITemplateVariables()))
	case removeHeader:
		h.Del(f.key)
	}
}

func (f *headerFilter) Filter(ex *exchange.Exchange, next filters.Chain) error {
	if f.typ == headers.Request {
		ex.MutateRequest(func(r *http.Request) { f.modify(r.Header, ex) })
		return next.Next(ex)
	}

	if f.mode == addHeader {
		f.modify(ex.Response.Header(), ex)
		return next.Next(ex)
	}

	err := next.Next(ex)
	if !ex.Response.IsCommitted() {
		f.modify(ex.Response.Header(), ex)
	}

	return err
}
