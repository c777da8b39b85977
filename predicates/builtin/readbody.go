package builtin

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"regexp"

	"github.com/tidwall/gjson"

	"github.com/zalando/gateway/binding"
	"github.com/zalando/gateway/exchange"
	"github.com/zalando/gateway/predicates"
)

const defaultMaxBodyBytes = 1 << 20

type ReadBodyConfig struct {

	// Path selects a value of a JSON body, in gjson syntax. When empty,
	// the whole body is matched.
	Path string `mapstructure:"path"`

	// Pattern is matched against the selected value. When nil, the
	// selected value only needs to exist.
	Pattern *regexp.Regexp `mapstructure:"pattern"`

	// MaxBytes limits the bytes read. Larger bodies do not match.
	MaxBytes int64 `mapstructure:"maxBytes"`

	// Test replaces Path and Pattern when the predicate is created in
	// code.
	Test func([]byte) bool `mapstructure:"-"`
}

func (c *ReadBodyConfig) Validate() error {
	if c.Path == "" && c.Pattern == nil && c.Test == nil {
		return errors.New("path or pattern is required")
	}

	if c.MaxBytes <= 0 {
		c.MaxBytes = defaultMaxBodyBytes
	}

	return nil
}

type readBodySpec struct{}

// NewReadBody creates the ReadBody predicate factory. The predicate is
// async: it reads the request body, keeps it on the exchange and replaces
// the request body with a replayable one, so later predicates and the
// upstream call still see the full body.
//
//	ReadBody=user.name,^jo.*
func NewReadBody() predicates.Spec { return readBodySpec{} }

func (readBodySpec) Name() string                       { return ReadBodyName }
func (readBodySpec) NewConfig() any                     { return &ReadBodyConfig{MaxBytes: defaultMaxBodyBytes} }
func (readBodySpec) ShortcutFieldOrder() []string       { return []string{"path", "pattern"} }
func (readBodySpec) ShortcutType() binding.ShortcutType { return binding.DefaultShortcut }

func (s readBodySpec) Apply(config any) (*predicates.Predicate, error) {
	c := config.(*ReadBodyConfig)
	if err := c.Validate(); err != nil {
		return nil, err
	}

	return predicates.NewAsync(s.Name(), c, func(ctx context.Context, ex *exchange.Exchange) (bool, error) {
		body, complete, err := cachedBody(ctx, ex, c.MaxBytes)
		if err != nil || !complete {
			return false, err
		}

		return c.match(body), nil
	}), nil
}

// ReadBody creates a body reading predicate from a function.
func ReadBody(test func([]byte) bool) *predicates.Predicate {
	p, _ := readBodySpec{}.Apply(&ReadBodyConfig{Test: test})
	return p
}

func (c *ReadBodyConfig) match(body []byte) bool {
	if c.Test != nil {
		return c.Test(body)
	}

	if c.Path == "" {
		return c.Pattern.Match(body)
	}

	r := gjson.GetBytes(body, c.Path)
	if !r.Exists() {
		return false
	}

	return c.Pattern == nil || c.Pattern.MatchString(r.String())
}

type replayBody struct {
	io.Reader
	io.Closer
}

type readResult struct {
	body []byte
	err  error
}

// cachedBody returns the request body, reading it once per exchange. When
// the body exceeds max, complete is false and the request body is restored
// unchanged.
func cachedBody(ctx context.Context, ex *exchange.Exchange, max int64) (body []byte, complete bool, err error) {
	if b, ok := exchange.Value[[]byte](ex, exchange.CachedRequestBodyKey); ok {
		return b, true, nil
	}

	r := ex.Request
	if r.Body == nil || r.Body == http.NoBody {
		ex.Set(exchange.CachedRequestBodyKey, []byte{})
		return []byte{}, true, nil
	}

	done := make(chan readResult, 1)
	go func() {
		b, err := io.ReadAll(io.LimitReader(r.Body, max+1))
		done <- readResult{b, err}
	}()

	var res readResult
	select {
	case res = <-done:
	case <-ctx.Done():
		r.Body.Close()
		return nil, false, ctx.Err()
	}

	if res.err != nil {
		return nil, false, res.err
	}

	if int64(len(res.body)) > max {
		ex.MutateRequest(func(mr *http.Request) {
			mr.Body = replayBody{io.MultiReader(bytes.NewReader(res.body), r.Body), r.Body}
		})

		return nil, false, nil
	}

	ex.Set(exchange.CachedRequestBodyKey, res.body)
	ex.MutateRequest(func(mr *http.Request) {
		mr.Body = replayBody{bytes.NewReader(res.body), r.Body}
		mr.ContentLength = int64(len(res.body))
	})

	return res.body, true, nil
}
