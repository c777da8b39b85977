package builtin

import (
	"errors"
	"net/http"
	"slices"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/zalando/gateway/binding"
	"github.com/zalando/gateway/exchange"
	"github.com/zalando/gateway/filters"
)

// CircuitBreakerConfig is the config of the CircuitBreaker filter.
//
// The breaker opens after Failures consecutive failed requests. Failures
// are errors of the rest of the chain and responses with one of
// StatusCodes. After Timeout, HalfOpenRequests trial requests decide
// whether it closes again. When FallbackStatus is set, failed and rejected
// requests are answered with it instead of an error.
type CircuitBreakerConfig struct {
	Name             string        `mapstructure:"name"`
	FallbackStatus   int           `mapstructure:"fallbackStatus"`
	StatusCodes      []int         `mapstructure:"statusCodes"`
	Failures         int           `mapstructure:"failures"`
	Timeout          time.Duration `mapstructure:"timeout"`
	HalfOpenRequests int           `mapstructure:"halfOpenRequests"`
}

func (c *CircuitBreakerConfig) Validate() error {
	switch {
	case c.Failures < 1:
		return errors.New("failures must be at least 1")
	case c.HalfOpenRequests < 1:
		return errors.New("halfOpenRequests must be at least 1")
	case c.FallbackStatus != 0 && (c.FallbackStatus < 100 || c.FallbackStatus > 999):
		return errors.New("invalid fallbackStatus")
	}

	return nil
}

type circuitBreakerSpec struct{}

// NewCircuitBreaker creates a filter protecting the upstream of a route
// with a consecutive failures breaker:
//
//	CircuitBreaker=myBreaker,503
func NewCircuitBreaker() filters.Spec { return circuitBreakerSpec{} }

func (circuitBreakerSpec) Name() string { return CircuitBreakerName }

func (circuitBreakerSpec) NewConfig() any {
	return &CircuitBreakerConfig{
		Failures:         5,
		Timeout:          time.Minute,
		HalfOpenRequests: 1,
	}
}

func (circuitBreakerSpec) ShortcutFieldOrder() []string {
	return []string{"name", "fallbackStatus"}
}

func (circuitBreakerSpec) ShortcutType() binding.ShortcutType { return binding.DefaultShortcut }

type circuitBreaker struct {
	config *CircuitBreakerConfig
	gb     *gobreaker.TwoStepCircuitBreaker
}

func (circuitBreakerSpec) Apply(config any) (filters.Handler, error) {
	c := config.(*CircuitBreakerConfig)
	b := &circuitBreaker{config: c}
	b.gb = gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
		Name:        c.Name,
		MaxRequests: uint32(c.HalfOpenRequests),
		Timeout:     c.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return int(counts.ConsecutiveFailures) >= c.Failures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Infof("circuit breaker %v went from %v to %v", name, from.String(), to.String())
		},
	})

	return b, nil
}

// State returns the current state of the breaker.
func (b *circuitBreaker) State() gobreaker.State { return b.gb.State() }

// fallback answers the request with the fallback status, discarding the
// upstream response. Without a fallback status, err is returned.
func (b *circuitBreaker) fallback(ex *exchange.Exchange, err error) error {
	if b.config.FallbackStatus == 0 || ex.Response.IsCommitted() {
		return err
	}

	log.Debugf("%scircuit breaker %s fallback: %v", ex.LogPrefix(), b.config.Name, err)
	ex.DiscardClientResponse()
	ex.Response.SetStatusCode(b.config.FallbackStatus)
	return nil
}

func (b *circuitBreaker) Filter(ex *exchange.Exchange, next filters.Chain) error {
	done, err := b.gb.Allow()
	if err != nil {
		return b.fallback(ex, filters.NewStatusError(http.StatusServiceUnavailable, err))
	}

	err = next.Next(ex)
	failedStatus := slices.Contains(b.config.StatusCodes, ex.Response.StatusCode())
	done(err == nil && !failedStatus)

	switch {
	case err != nil:
		return b.fallback(ex, err)
	case failedStatus:
		return b.fallback(ex, nil)
	default:
		return nil
	}
}
