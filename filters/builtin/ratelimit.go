package builtin

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/zalando/gateway/binding"
	"github.com/zalando/gateway/exchange"
	"github.com/zalando/gateway/filters"
)

const (
	RemainingHeader       = "X-RateLimit-Remaining"
	ReplenishRateHeader   = "X-RateLimit-Replenish-Rate"
	BurstCapacityHeader   = "X-RateLimit-Burst-Capacity"
	RequestedTokensHeader = "X-RateLimit-Requested-Tokens"

	maxIdleLimiters = 10000
	limiterIdleTime = 10 * time.Minute
)

// RateLimitConfig is the config of the RequestRateLimiter filter.
//
// KeyResolver selects the rate limited key: "remoteAddr" (default), the
// client address, "header:<name>", the value of a request header, or
// "route", one limit shared by all clients of the route.
type RateLimitConfig struct {
	ReplenishRate   float64 `mapstructure:"replenishRate"`
	BurstCapacity   int     `mapstructure:"burstCapacity"`
	RequestedTokens int     `mapstructure:"requestedTokens"`
	KeyResolver     string  `mapstructure:"keyResolver"`
	DenyEmptyKey    bool    `mapstructure:"denyEmptyKey"`
	EmptyKeyStatus  int     `mapstructure:"emptyKeyStatus"`
	IncludeHeaders  bool    `mapstructure:"includeHeaders"`
}

func (c *RateLimitConfig) Validate() error {
	switch {
	case c.ReplenishRate <= 0:
		return errors.New("replenishRate must be positive")
	case c.BurstCapacity < 1:
		return errors.New("burstCapacity must be at least 1")
	case c.RequestedTokens < 1 || c.RequestedTokens > c.BurstCapacity:
		return fmt.Errorf("requestedTokens must be between 1 and %d", c.BurstCapacity)
	}

	_, err := keyResolver(c.KeyResolver)
	return err
}

func remoteAddrKey(ex *exchange.Exchange) string {
	host, _, err := net.SplitHostPort(ex.Request.RemoteAddr)
	if err != nil {
		return ex.Request.RemoteAddr
	}

	return host
}

func keyResolver(name string) (func(*exchange.Exchange) string, error) {
	switch {
	case name == "" || name == "remoteAddr":
		return remoteAddrKey, nil
	case name == "route":
		return func(*exchange.Exchange) string { return "route" }, nil
	case strings.HasPrefix(name, "header:"):
		header := strings.TrimPrefix(name, "header:")
		return func(ex *exchange.Exchange) string { return ex.Request.Header.Get(header) }, nil
	default:
		return nil, fmt.Errorf("unknown key resolver: %s", name)
	}
}

type rateLimitSpec struct{}

// NewRequestRateLimiter limits the request rate per key with a token
// bucket. Requests over the limit are answered with 429:
//
//	RequestRateLimiter=10,20
func NewRequestRateLimiter() filters.Spec { return rateLimitSpec{} }

func (rateLimitSpec) Name() string { return RequestRateLimiterName }

func (rateLimitSpec) NewConfig() any {
	return &RateLimitConfig{
		RequestedTokens: 1,
		DenyEmptyKey:    true,
		EmptyKeyStatus:  http.StatusForbidden,
		IncludeHeaders:  true,
	}
}

func (rateLimitSpec) ShortcutFieldOrder() []string {
	return []string{"replenishRate", "burstCapacity", "keyResolver"}
}

func (rateLimitSpec) ShortcutType() binding.ShortcutType { return binding.DefaultShortcut }

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimit struct {
	config *RateLimitConfig
	key    func(*exchange.Exchange) string

	mu       sync.Mutex
	limiters map[string]*limiterEntry
}

func (rateLimitSpec) Apply(config any) (filters.Handler, error) {
	c := config.(*RateLimitConfig)
	key, err := keyResolver(c.KeyResolver)
	if err != nil {
		return nil, err
	}

	return &rateLimit{config: c, key: key, limiters: make(map[string]*limiterEntry)}, nil
}

// evictIdle drops limiters unused for a while. Called with mu held.
func (l *rateLimit) evictIdle(now time.Time) {
	if len(l.limiters) < maxIdleLimiters {
		return
	}

	for k, e := range l.limiters {
		if now.Sub(e.lastSeen) > limiterIdleTime {
			delete(l.limiters, k)
		}
	}
}

func (l *rateLimit) allow(key string) (bool, int) {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.limiters[key]
	if !ok {
		l.evictIdle(now)
		e = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(l.config.ReplenishRate), l.config.BurstCapacity)}
		l.limiters[key] = e
	}

	e.lastSeen = now
	allowed := e.limiter.AllowN(now, l.config.RequestedTokens)
	return allowed, max(0, int(e.limiter.TokensAt(now)))
}

func (l *rateLimit) Filter(ex *exchange.Exchange, next filters.Chain) error {
	key := l.key(ex)
	if key == "" {
		if l.config.DenyEmptyKey {
			ex.Response.SetStatusCode(l.config.EmptyKeyStatus)
			return nil
		}

		return next.Next(ex)
	}

	allowed, remaining := l.allow(key)
	if l.config.IncludeHeaders {
		h := ex.Response.Header()
		h.Set(RemainingHeader, strconv.Itoa(remaining))
		h.Set(ReplenishRateHeader, strconv.FormatFloat(l.config.ReplenishRate, 'f', -1, 64))
		h.Set(BurstCapacityHeader, strconv.Itoa(l.config.BurstCapacity))
		h.Set(RequestedTokensHeader, strconv.Itoa(l.config.RequestedTokens))
	}

	if !allowed {
		ex.Response.SetStatusCode(http.StatusTooManyRequests)
		return nil
	}

	return next.Next(ex)
}
