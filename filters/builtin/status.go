package builtin

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/zalando/gateway/binding"
	"github.com/zalando/gateway/exchange"
	"github.com/zalando/gateway/filters"
)

// SetStatusConfig is the config of the SetStatus filter. Status is a
// number, including unregistered ones, or a status name like
// UNAUTHORIZED.
type SetStatusConfig struct {
	Status                   string `mapstructure:"status"`
	OriginalStatusHeaderName string `mapstructure:"originalStatusHeaderName"`
}

var statusByName = func() map[string]int {
	m := make(map[string]int)
	for code := 100; code < 600; code++ {
		if text := http.StatusText(code); text != "" {
			name := strings.ToUpper(strings.NewReplacer(" ", "_", "-", "_", "'", "").Replace(text))
			m[name] = code
		}
	}

	return m
}()

func parseStatus(s string) (int, error) {
	s = strings.TrimSpace(s)
	if code, err := strconv.Atoi(s); err == nil {
		if code < 100 || code > 999 {
			return 0, fmt.Errorf("status code out of range: %d", code)
		}

		return code, nil
	}

	if code, ok := statusByName[strings.ToUpper(s)]; ok {
		return code, nil
	}

	return 0, fmt.Errorf("unknown status: %s", s)
}

func (c *SetStatusConfig) Validate() error {
	_, err := parseStatus(c.Status)
	return err
}

type setStatusSpec struct{}

// NewSetStatus sets the status of the client response after the upstream
// response was received:
//
//	SetStatus=401
//	SetStatus=UNAUTHORIZED
func NewSetStatus() filters.Spec { return setStatusSpec{} }

func (setStatusSpec) Name() string                       { return SetStatusName }
func (setStatusSpec) NewConfig() any                     { return &SetStatusConfig{} }
func (setStatusSpec) ShortcutFieldOrder() []string       { return []string{"status"} }
func (setStatusSpec) ShortcutType() binding.ShortcutType { return binding.DefaultShortcut }

func (setStatusSpec) Apply(config any) (filters.Handler, error) {
	c := config.(*SetStatusConfig)
	code, err := parseStatus(c.Status)
	if err != nil {
		return nil, err
	}

	return filters.HandlerFunc(func(ex *exchange.Exchange, next filters.Chain) error {
		err := next.Next(ex)
		if ex.Response.IsCommitted() {
			return err
		}

		if c.OriginalStatusHeaderName != "" && ex.Response.StatusCode() != 0 {
			ex.Response.Header().Set(c.OriginalStatusHeaderName, strconv.Itoa(ex.Response.StatusCode()))
		}

		ex.Response.SetStatusCode(code)
		return err
	}), nil
}
