/*
Package routedef contains the raw route definitions consumed by the route
locator.

A definition names its predicates and filters and carries their arguments
as strings. Arguments may be given by name, or positionally in the shortcut
form:

	Path=/foo/{segment},/bar/**
	AddRequestHeader=X-Request-Foo,Bar

Positional arguments are stored under generated keys (_genkey_0,
_genkey_1, ...) that the binding step replaces with the field names declared
by the factory.
*/
package routedef

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"sigs.k8s.io/yaml"
)

// GeneratedKeyPrefix prefixes the keys of positional arguments.
const GeneratedKeyPrefix = "_genkey_"

// GeneratedKey returns the key of the i-th positional argument.
func GeneratedKey(i int) string { return GeneratedKeyPrefix + strconv.Itoa(i) }

// IsGeneratedKey tells whether key is a positional argument key.
func IsGeneratedKey(key string) bool { return strings.HasPrefix(key, GeneratedKeyPrefix) }

// Arg is a single named argument.
type Arg struct {
	Name  string
	Value string
}

// Args is an ordered list of arguments.
type Args []Arg

// Get returns the value of the first argument with the given name.
func (a Args) Get(name string) (string, bool) {
	for _, ai := range a {
		if ai.Name == name {
			return ai.Value, true
		}
	}

	return "", false
}

// Positional creates generated-key arguments from values.
func Positional(values ...string) Args {
	a := make(Args, len(values))
	for i, v := range values {
		a[i] = Arg{Name: GeneratedKey(i), Value: v}
	}

	return a
}

// Spec is the definition of a predicate or a filter.
type Spec struct {
	Name string
	Args Args
}

// Route is a raw route definition.
type Route struct {

	// Id identifies the route. Parse derives one from the definition
	// when missing.
	Id string `json:"id"`

	// URI is the target of the route. The scheme selects the dispatch:
	// http, https, ws, wss, lb, fn, or no for routes answered by the
	// filters alone.
	URI string `json:"uri"`

	// Order of the route, lower values are matched first.
	Order int `json:"order,omitempty"`

	Predicates []*Spec `json:"predicates,omitempty"`
	Filters    []*Spec `json:"filters,omitempty"`

	// Metadata holds opaque values, e.g. connect-timeout and
	// response-timeout in milliseconds.
	Metadata map[string]any `json:"metadata,omitempty"`

	// DisableDefaultFilters excludes the shared default filters from
	// this route.
	DisableDefaultFilters bool `json:"disableDefaultFilters,omitempty"`
}

// ParseSpec parses the shortcut form Name=arg0,arg1. Arguments are trimmed
// and empty ones are dropped. A text without '=' yields a spec without
// arguments.
func ParseSpec(text string) (*Spec, error) {
	text = strings.TrimSpace(text)
	eq := strings.IndexByte(text, '=')
	if eq == 0 || text == "" {
		return nil, fmt.Errorf("unable to parse definition %q, must be of the form name=value", text)
	}

	if eq < 0 {
		return &Spec{Name: text}, nil
	}

	s := &Spec{Name: strings.TrimSpace(text[:eq])}
	var i int
	for _, a := range strings.Split(text[eq+1:], ",") {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}

		s.Args = append(s.Args, Arg{Name: GeneratedKey(i), Value: a})
		i++
	}

	return s, nil
}

// ParsePredicate parses the shortcut form of a predicate, which requires
// the '=' separator.
func ParsePredicate(text string) (*Spec, error) {
	if !strings.Contains(text, "=") {
		return nil, fmt.Errorf("unable to parse predicate %q, must be of the form name=value", text)
	}

	return ParseSpec(text)
}

// String returns the shortcut form when all arguments are positional, and
// Name(key=value, ...) otherwise.
func (s *Spec) String() string {
	if len(s.Args) == 0 {
		return s.Name
	}

	positional := true
	values := make([]string, len(s.Args))
	for i, a := range s.Args {
		values[i] = a.Value
		positional = positional && IsGeneratedKey(a.Name)
	}

	if positional {
		return s.Name + "=" + strings.Join(values, ",")
	}

	named := make([]string, len(s.Args))
	for i, a := range s.Args {
		named[i] = a.Name + "=" + a.Value
	}

	return s.Name + "(" + strings.Join(named, ", ") + ")"
}

type jsonSpec struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

func argValue(v any) string {
	switch vi := v.(type) {
	case string:
		return vi
	case []any:
		s := make([]string, len(vi))
		for i, vii := range vi {
			s[i] = argValue(vii)
		}

		return strings.Join(s, ",")
	case float64:
		return strconv.FormatFloat(vi, 'f', -1, 64)
	default:
		return fmt.Sprint(vi)
	}
}

// generated keys keep their numeric order, named keys follow sorted by name
func sortArgKeys(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		gi, gj := IsGeneratedKey(keys[i]), IsGeneratedKey(keys[j])
		switch {
		case gi && gj:
			ni, _ := strconv.Atoi(strings.TrimPrefix(keys[i], GeneratedKeyPrefix))
			nj, _ := strconv.Atoi(strings.TrimPrefix(keys[j], GeneratedKeyPrefix))
			return ni < nj
		case gi != gj:
			return gi
		default:
			return keys[i] < keys[j]
		}
	})
}

// UnmarshalJSON accepts either the shortcut string form or an object with
// a name and an args object.
func (s *Spec) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		ps, err := ParseSpec(text)
		if err != nil {
			return err
		}

		*s = *ps
		return nil
	}

	var js jsonSpec
	if err := json.Unmarshal(data, &js); err != nil {
		return err
	}

	if js.Name == "" {
		return fmt.Errorf("definition without name: %s", data)
	}

	keys := make([]string, 0, len(js.Args))
	for k := range js.Args {
		keys = append(keys, k)
	}

	sortArgKeys(keys)
	s.Name = js.Name
	s.Args = nil
	for _, k := range keys {
		s.Args = append(s.Args, Arg{Name: k, Value: argValue(js.Args[k])})
	}

	return nil
}

// MarshalJSON writes the object form.
func (s *Spec) MarshalJSON() ([]byte, error) {
	js := jsonSpec{Name: s.Name}
	if len(s.Args) > 0 {
		js.Args = make(map[string]any, len(s.Args))
		for _, a := range s.Args {
			js.Args[a.Name] = a.Value
		}
	}

	return json.Marshal(js)
}

type document struct {
	Routes []*Route `json:"routes"`
}

// Parse reads route definitions from YAML or JSON. The document is either
// a list of routes or an object with a routes field.
func Parse(data []byte) ([]*Route, error) {
	var routes []*Route
	if err := yaml.Unmarshal(data, &routes); err != nil {
		var doc document
		if derr := yaml.Unmarshal(data, &doc); derr != nil {
			return nil, fmt.Errorf("failed to parse route definitions: %w", err)
		}

		routes = doc.Routes
	}

	seen := make(map[string]int)
	for _, r := range routes {
		if r == nil {
			return nil, fmt.Errorf("failed to parse route definitions: empty route")
		}

		if r.Id == "" {
			r.Id = generateID(r, seen)
		}
	}

	return routes, nil
}

// generateID derives the id from the content of the definition, so that
// reparsing an unchanged document yields the same ids.
func generateID(r *Route, seen map[string]int) string {
	b, err := json.Marshal(r)
	if err != nil {
		return uuid.NewString()
	}

	key := string(b)
	n := seen[key]
	seen[key] = n + 1
	return uuid.NewSHA1(uuid.NameSpaceOID, fmt.Appendf(b, "#%d", n)).String()
}

// Print writes route definitions as YAML.
func Print(routes []*Route) ([]byte, error) {
	return yaml.Marshal(document{Routes: routes})
}
