package builtin

import (
	"errors"
	"time"

	"github.com/zalando/gateway/binding"
	"github.com/zalando/gateway/exchange"
	"github.com/zalando/gateway/predicates"
)

// used by the tests
var now = time.Now

type DatetimeConfig struct {
	Datetime time.Time `mapstructure:"datetime"`
}

func (c *DatetimeConfig) Validate() error {
	if c.Datetime.IsZero() {
		return errors.New("datetime is required")
	}

	return nil
}

type BetweenConfig struct {
	Datetime1 time.Time `mapstructure:"datetime1"`
	Datetime2 time.Time `mapstructure:"datetime2"`
}

func (c *BetweenConfig) Validate() error {
	if c.Datetime1.IsZero() || c.Datetime2.IsZero() {
		return errors.New("datetime1 and datetime2 are required")
	}

	if !c.Datetime1.Before(c.Datetime2) {
		return errors.New("datetime1 must be before datetime2")
	}

	return nil
}

type afterSpec struct{}
type beforeSpec struct{}
type betweenSpec struct{}

// NewAfter creates the After predicate factory, matching requests after an
// RFC 3339 datetime:
//
//	After=2017-01-20T17:42:47.789-07:00
func NewAfter() predicates.Spec { return afterSpec{} }

// NewBefore creates the Before predicate factory.
func NewBefore() predicates.Spec { return beforeSpec{} }

// NewBetween creates the Between predicate factory.
func NewBetween() predicates.Spec { return betweenSpec{} }

func (afterSpec) Name() string                       { return AfterName }
func (afterSpec) NewConfig() any                     { return &DatetimeConfig{} }
func (afterSpec) ShortcutFieldOrder() []string       { return []string{"datetime"} }
func (afterSpec) ShortcutType() binding.ShortcutType { return binding.DefaultShortcut }

func (s afterSpec) Apply(config any) (*predicates.Predicate, error) {
	c := config.(*DatetimeConfig)
	return predicates.New(s.Name(), c, func(*exchange.Exchange) bool {
		return now().After(c.Datetime)
	}), nil
}

func (beforeSpec) Name() string                       { return BeforeName }
func (beforeSpec) NewConfig() any                     { return &DatetimeConfig{} }
func (beforeSpec) ShortcutFieldOrder() []string       { return []string{"datetime"} }
func (beforeSpec) ShortcutType() binding.ShortcutType { return binding.DefaultShortcut }

func (s beforeSpec) Apply(config any) (*predicates.Predicate, error) {
	c := config.(*DatetimeConfig)
	return predicates.New(s.Name(), c, func(*exchange.Exchange) bool {
		return now().Before(c.Datetime)
	}), nil
}

func (betweenSpec) Name() string                       { return BetweenName }
func (betweenSpec) NewConfig() any                     { return &BetweenConfig{} }
func (betweenSpec) ShortcutFieldOrder() []string       { return []string{"datetime1", "datetime2"} }
func (betweenSpec) ShortcutType() binding.ShortcutType { return binding.DefaultShortcut }
func (betweenSpec) ValidateArgCount() bool             { return true }

func (s betweenSpec) Apply(config any) (*predicates.Predicate, error) {
	c := config.(*BetweenConfig)
	return predicates.New(s.Name(), c, func(*exchange.Exchange) bool {
		t := now()
		return t.After(c.Datetime1) && t.Before(c.Datetime2)
	}), nil
}
