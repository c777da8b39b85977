/*
Package function defines the in-process functions a route can dispatch to
with a fn://name URI, and a catalog to look them up by name and by the
content types accepted by the client.

Functions receive the request body converted to their input type, wrapped
in a Message carrying the request headers and the query parameters. They
return a plain value, a Message or a Stream.
*/
package function

import (
	"context"
	"fmt"
	"iter"
	"reflect"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RequestParamHeader is the message header holding the query parameters of
// the request, as a map[string]string.
const RequestParamHeader = "http_request_param"

// Message is the input and, optionally, the output of a function. Header
// names are lower case.
type Message struct {
	Payload any
	Headers map[string]any
}

// Stream is a result produced element by element. Each element is
// written to the client as soon as it is produced.
type Stream iter.Seq2[any, error]

// Handle is a function registered in the catalog.
type Handle interface {
	Name() string

	// Apply calls the function. The payload of in is the raw request
	// body.
	Apply(ctx context.Context, in Message) (any, error)

	// IsSupplier tells that the function takes no input.
	IsSupplier() bool

	// IsConsumer tells that the function produces no output.
	IsConsumer() bool

	// IsRoutingFunction tells that the function delegates to another
	// function of the catalog.
	IsRoutingFunction() bool

	// ContentTypes lists the media types the function produces. Empty
	// means any.
	ContentTypes() []string
}

type kind int

const (
	funcKind kind = iota
	supplierKind
	consumerKind
)

type handle[In, Out any] struct {
	name         string
	kind         kind
	contentTypes []string
	apply        func(context.Context, In, map[string]any) (Out, error)
}

var (
	bytesType   = reflect.TypeFor[[]byte]()
	stringType  = reflect.TypeFor[string]()
	messageType = reflect.TypeFor[Message]()
)

// decode converts a raw payload to In. Byte slices and strings are passed
// through, messages keep the raw payload, anything else is decoded from
// JSON.
func decode[In any](in Message) (In, error) {
	var v In
	raw, _ := in.Payload.([]byte)
	switch reflect.TypeFor[In]() {
	case bytesType:
		return any(raw).(In), nil
	case stringType:
		return any(string(raw)).(In), nil
	case messageType:
		return any(Message{Payload: raw, Headers: in.Headers}).(In), nil
	}

	if len(raw) == 0 {
		return v, nil
	}

	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("failed to decode input: %w", err)
	}

	return v, nil
}

func (h *handle[In, Out]) Name() string            { return h.name }
func (h *handle[In, Out]) IsSupplier() bool        { return h.kind == supplierKind }
func (h *handle[In, Out]) IsConsumer() bool        { return h.kind == consumerKind }
func (h *handle[In, Out]) IsRoutingFunction() bool { return false }
func (h *handle[In, Out]) ContentTypes() []string  { return h.contentTypes }

func (h *handle[In, Out]) Apply(ctx context.Context, in Message) (any, error) {
	var (
		v   In
		err error
	)

	if h.kind != supplierKind {
		v, err = decode[In](in)
		if err != nil {
			return nil, err
		}
	}

	out, err := h.apply(ctx, v, in.Headers)
	if err != nil {
		return nil, err
	}

	if h.kind == consumerKind {
		return nil, nil
	}

	return out, nil
}

// Func creates a function handle. The request body is converted to In.
func Func[In, Out any](name string, f func(context.Context, In) (Out, error), contentTypes ...string) Handle {
	return &handle[In, Out]{
		name:         name,
		contentTypes: contentTypes,
		apply: func(ctx context.Context, in In, _ map[string]any) (Out, error) {
			return f(ctx, in)
		},
	}
}

// Supplier creates a handle of a function without input.
func Supplier[Out any](name string, f func(context.Context) (Out, error), contentTypes ...string) Handle {
	return &handle[struct{}, Out]{
		name:         name,
		kind:         supplierKind,
		contentTypes: contentTypes,
		apply: func(ctx context.Context, _ struct{}, _ map[string]any) (Out, error) {
			return f(ctx)
		},
	}
}

// Consumer creates a handle of a function without output.
func Consumer[In any](name string, f func(context.Context, In) error) Handle {
	return &handle[In, struct{}]{
		name: name,
		kind: consumerKind,
		apply: func(ctx context.Context, in In, _ map[string]any) (struct{}, error) {
			return struct{}{}, f(ctx, in)
		},
	}
}

// Encode converts a function result element to bytes. Byte slices and
// strings are written as they are, other values as JSON.
func Encode(v any) ([]byte, error) {
	switch vv := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return vv, nil
	case string:
		return []byte(vv), nil
	default:
		return json.Marshal(v)
	}
}
