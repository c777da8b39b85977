package filters

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zalando/gateway/exchange"
)

type orderedHandler struct {
	HandlerFunc
	order int
}

func (h orderedHandler) Order() int { return h.order }

func testExchange() *exchange.Exchange {
	return exchange.New(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
}

func recording(name string, trace *[]string) HandlerFunc {
	return func(ex *exchange.Exchange, next Chain) error {
		*trace = append(*trace, name)
		err := next.Next(ex)
		*trace = append(*trace, "/"+name)
		return err
	}
}

func TestSortByOrder(t *testing.T) {
	var trace []string
	f := []*Filter{
		{Name: "three", Order: 3, Handler: recording("three", &trace)},
		{Name: "one", Order: 1, Handler: recording("one", &trace)},
		{Name: "two", Order: 2, Handler: recording("two", &trace)},
	}

	Sort(f)
	require.NoError(t, Run(testExchange(), f))
	assert.Equal(t, []string{"one", "two", "three", "/three", "/two", "/one"}, trace)
}

func TestSortKeepsDeclarationOrderOnTies(t *testing.T) {
	var trace []string
	f := []*Filter{
		{Name: "a", Order: 1, Handler: recording("a", &trace)},
		{Name: "b", Order: 0, Handler: recording("b", &trace)},
		{Name: "c", Order: 1, Handler: recording("c", &trace)},
		{Name: "d", Order: 1, Handler: recording("d", &trace)},
	}

	Sort(f)
	require.NoError(t, Run(testExchange(), f))
	assert.Equal(t, []string{"b", "a", "c", "d"}, trace[:4])
}

func TestPositioned(t *testing.T) {
	var trace []string
	f := Positioned("plain", 2, recording("plain", &trace))
	assert.Equal(t, 3, f.Order)

	o := Positioned("ordered", 2, orderedHandler{recording("ordered", &trace), -10})
	assert.Equal(t, -10, o.Order)
}

func TestNextAtMostOnce(t *testing.T) {
	var calls int
	twice := HandlerFunc(func(ex *exchange.Exchange, next Chain) error {
		if err := next.Next(ex); err != nil {
			return err
		}

		return next.Next(ex)
	})

	counting := HandlerFunc(func(ex *exchange.Exchange, next Chain) error {
		calls++
		return next.Next(ex)
	})

	err := Run(testExchange(), []*Filter{{Handler: twice}, {Handler: counting}})
	assert.ErrorIs(t, err, ErrChainReentered)
	assert.Equal(t, 1, calls)
}

func TestShortCircuit(t *testing.T) {
	var reached bool
	deny := HandlerFunc(func(ex *exchange.Exchange, _ Chain) error {
		ex.Response.SetStatusCode(http.StatusUnauthorized)
		return nil
	})

	upstream := HandlerFunc(func(ex *exchange.Exchange, next Chain) error {
		reached = true
		return next.Next(ex)
	})

	ex := testExchange()
	require.NoError(t, Run(ex, []*Filter{{Handler: deny}, {Handler: upstream}}))
	assert.False(t, reached)
	assert.Equal(t, http.StatusUnauthorized, ex.Response.StatusCode())
}

func TestErrorsPropagate(t *testing.T) {
	failure := errors.New("upstream failed")
	var responsePhase bool
	outer := HandlerFunc(func(ex *exchange.Exchange, next Chain) error {
		err := next.Next(ex)
		responsePhase = true
		return err
	})

	failing := HandlerFunc(func(*exchange.Exchange, Chain) error { return failure })
	err := Run(testExchange(), []*Filter{{Handler: outer}, {Handler: failing}})
	assert.ErrorIs(t, err, failure)
	assert.True(t, responsePhase)
}

func TestEmptyChain(t *testing.T) {
	assert.NoError(t, Run(testExchange(), nil))
}

func TestErrorStatus(t *testing.T) {
	assert.Equal(t, http.StatusGatewayTimeout, ErrorStatus(NewStatusError(http.StatusGatewayTimeout, errors.New("timeout"))))
	assert.Equal(t, http.StatusServiceUnavailable, ErrorStatus(&NotFoundError{Message: "no instance"}))
	assert.Equal(t, http.StatusNotFound, ErrorStatus(&NotFoundError{Use404: true}))
	assert.Equal(t, http.StatusInternalServerError, ErrorStatus(errors.New("other")))

	wrapped := NewStatusError(http.StatusBadGateway, errors.New("refused"))
	assert.Contains(t, wrapped.Error(), "Bad Gateway")
	assert.Equal(t, 432, ErrorStatus(NewStatusError(432, nil)))
}
