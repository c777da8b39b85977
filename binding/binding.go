/*
Package binding maps the string arguments of a predicate or filter
definition onto the configuration value of its factory.

Positional arguments get the names declared by the factory's shortcut
field order, then the resulting properties are decoded into the config
value with weak typing: numeric and boolean strings, durations, RFC 3339
timestamps, regular expressions and comma separated lists are converted to
the field types.
*/
package binding

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/zalando/gateway/routedef"
)

// ShortcutType selects how positional arguments are normalized.
type ShortcutType int

const (
	// DefaultShortcut assigns the i-th positional argument to the i-th
	// field of the shortcut field order.
	DefaultShortcut ShortcutType = iota

	// GatherList collects every argument into the single field of the
	// shortcut field order.
	GatherList

	// GatherListTailFlag collects the arguments into the first field, and
	// when the last argument is true or false, assigns it to the second.
	GatherListTailFlag
)

// Configurable is implemented by predicate and filter factories.
type Configurable interface {

	// Name is the name used in route definitions.
	Name() string

	// NewConfig returns a pointer to a new config value, or nil when
	// the factory takes no arguments.
	NewConfig() any

	// ShortcutFieldOrder names the config fields addressed by
	// positional arguments.
	ShortcutFieldOrder() []string

	ShortcutType() ShortcutType
}

// ArgCountValidator is implemented by factories that require exactly the
// arguments of their shortcut field order.
type ArgCountValidator interface {
	ValidateArgCount() bool
}

// Validator is implemented by config values that check their own fields.
type Validator interface {
	Validate() error
}

// ErrInvalidArgs is returned for arguments that cannot be bound.
var ErrInvalidArgs = errors.New("invalid arguments")

func invalidArgs(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgs, fmt.Sprintf(format, args...))
}

func allGenerated(args routedef.Args) bool {
	for _, a := range args {
		if !routedef.IsGeneratedKey(a.Name) {
			return false
		}
	}

	return true
}

func normalizeDefault(order []string, args routedef.Args) map[string]any {
	props := make(map[string]any, len(args))
	for i, a := range args {
		key := a.Name
		if routedef.IsGeneratedKey(key) && i < len(order) {
			key = order[i]
		}

		props[key] = a.Value
	}

	return props
}

// Normalize returns the properties addressed by args, with generated keys
// replaced by field names.
func Normalize(c Configurable, args routedef.Args) (map[string]any, error) {
	order := c.ShortcutFieldOrder()
	st := c.ShortcutType()
	if st == DefaultShortcut || !allGenerated(args) {
		return normalizeDefault(order, args), nil
	}

	values := make([]string, len(args))
	for i, a := range args {
		values[i] = a.Value
	}

	switch st {
	case GatherList:
		if len(order) != 1 {
			return nil, invalidArgs("%s: gather list shortcut requires a single field", c.Name())
		}

		return map[string]any{order[0]: values}, nil
	case GatherListTailFlag:
		if len(order) != 2 {
			return nil, invalidArgs("%s: gather list tail flag shortcut requires two fields", c.Name())
		}

		props := make(map[string]any)
		if n := len(values); n > 0 {
			last := values[n-1]
			if strings.EqualFold(last, "true") || strings.EqualFold(last, "false") {
				props[order[1]] = last
				values = values[:n-1]
			}
		}

		props[order[0]] = values
		return props, nil
	default:
		return nil, invalidArgs("%s: unknown shortcut type %d", c.Name(), st)
	}
}

func validateArgCount(c Configurable, args routedef.Args, props map[string]any) error {
	v, ok := c.(ArgCountValidator)
	if !ok || !v.ValidateArgCount() {
		return nil
	}

	order := c.ShortcutFieldOrder()
	if len(order) == 0 {
		return nil
	}

	if len(args) != len(order) {
		return invalidArgs(
			"%s: wrong number of arguments, expected %d %v, found %d",
			c.Name(), len(order), order, len(args),
		)
	}

	for _, name := range order {
		if _, ok := props[name]; !ok {
			return invalidArgs("%s: missing argument %q", c.Name(), name)
		}
	}

	return nil
}

var regexpType = reflect.TypeOf((*regexp.Regexp)(nil))

func stringToRegexp(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != regexpType {
		return data, nil
	}

	return regexp.Compile(data.(string))
}

func decoder(result any) (*mapstructure.Decoder, error) {
	return mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           result,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			stringToRegexp,
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(time.RFC3339),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
}

// Bind creates the config of c from args. The returned value is the one
// created by NewConfig, populated and validated.
func Bind(c Configurable, args routedef.Args) (any, error) {
	props, err := Normalize(c, args)
	if err != nil {
		return nil, err
	}

	if err := validateArgCount(c, args, props); err != nil {
		return nil, err
	}

	config := c.NewConfig()
	if config == nil {
		if len(args) > 0 {
			return nil, invalidArgs("%s: takes no arguments, found %d", c.Name(), len(args))
		}

		return nil, nil
	}

	d, err := decoder(config)
	if err != nil {
		return nil, err
	}

	if err := d.Decode(props); err != nil {
		return nil, invalidArgs("%s: %v", c.Name(), err)
	}

	if v, ok := config.(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, invalidArgs("%s: %v", c.Name(), err)
		}
	}

	return config, nil
}
