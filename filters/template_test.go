package filters

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTemplate(t *testing.T) {
	for _, tt := range []struct {
		text     string
		vars     map[string]string
		expected string
		ok       bool
	}{
		{"/static", nil, "/static", true},
		{"/users/{id}", map[string]string{"id": "42"}, "/users/42", true},
		{"{a}-{b}", map[string]string{"a": "x", "b": "y"}, "x-y", true},
		{"/users/{id}/{missing}", map[string]string{"id": "42"}, "/users/42/{missing}", false},
		{"/{segment}", map[string]string{"segment": ""}, "/", true},
	} {
		t.Run(tt.text, func(t *testing.T) {
			tpl := NewTemplate(tt.text)
			s, ok := tpl.Execute(tt.vars)
			assert.Equal(t, tt.expected, s)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, tpl.ExecuteLogged(tt.vars))
			assert.Equal(t, tt.text, tpl.String())
		})
	}
}
