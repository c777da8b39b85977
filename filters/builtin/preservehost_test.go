package builtin

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zalando/gateway/filters/filtertest"
)

func TestPreserveHostHeader(t *testing.T) {
	ex, _ := runFilter(t, "PreserveHostHeader", httptest.NewRequest("GET", "/", nil), &filtertest.Backend{})
	assert.True(t, ex.PreserveHost())
}
