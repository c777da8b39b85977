package filters

import (
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"
)

var templateVariable = regexp.MustCompile(`\{([^{}]+)\}`)

// Template is a text with {name} placeholders resolved from the URI
// template variables captured by the route predicates.
type Template struct {
	text  string
	names []string
}

func NewTemplate(text string) *Template {
	t := &Template{text: text}
	for _, m := range templateVariable.FindAllStringSubmatch(text, -1) {
		t.names = append(t.names, m[1])
	}

	return t
}

// Execute expands the placeholders. It returns false when a variable is
// missing, in which case the placeholder is kept.
func (t *Template) Execute(vars map[string]string) (string, bool) {
	if len(t.names) == 0 {
		return t.text, true
	}

	ok := true
	s := templateVariable.ReplaceAllStringFunc(t.text, func(m string) string {
		v, found := vars[strings.Trim(m, "{}")]
		if !found {
			ok = false
			return m
		}

		return v
	})

	return s, ok
}

// ExecuteLogged expands the placeholders and logs missing variables.
func (t *Template) ExecuteLogged(vars map[string]string) string {
	s, ok := t.Execute(vars)
	if !ok {
		log.Warnf("missing URI template variables in %q, available: %v", t.text, vars)
	}

	return s
}

func (t *Template) String() string { return t.text }
