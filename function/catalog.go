package function

import (
	"context"
	"fmt"
	"mime"
	"slices"
	"strings"
	"sync"
)

// DefinitionHeader is the message header naming the function a routing
// function delegates to.
const DefinitionHeader = "function-definition"

// Catalog holds the functions available for fn:// routes.
type Catalog struct {
	mu      sync.RWMutex
	handles map[string]Handle
}

func NewCatalog(h ...Handle) *Catalog {
	c := &Catalog{handles: make(map[string]Handle)}
	for _, hi := range h {
		c.Register(hi)
	}

	return c
}

// Register adds a function, replacing an earlier one with the same name.
func (c *Catalog) Register(h Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handles[h.Name()] = h
}

func mediaType(s string) string {
	t, _, err := mime.ParseMediaType(s)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(s))
	}

	return t
}

func mediaTypeMatches(accepted, produced string) bool {
	a, p := mediaType(accepted), mediaType(produced)
	if a == "*/*" || a == p {
		return true
	}

	if major, ok := strings.CutSuffix(a, "/*"); ok {
		return strings.HasPrefix(p, major+"/")
	}

	return false
}

func accepts(h Handle, accepted []string) bool {
	produced := h.ContentTypes()
	if len(accepted) == 0 || len(produced) == 0 {
		return true
	}

	for _, a := range accepted {
		for _, p := range produced {
			if mediaTypeMatches(a, p) {
				return true
			}
		}
	}

	return false
}

func splitAccepted(accepted []string) []string {
	var result []string
	for _, a := range accepted {
		for _, ai := range strings.Split(a, ",") {
			if ai = strings.TrimSpace(ai); ai != "" {
				result = append(result, ai)
			}
		}
	}

	return result
}

// Lookup returns the named function when it produces one of the accepted
// content types. Names joined by | are composed, the output of each
// function being the input of the next one.
func (c *Catalog) Lookup(name string, acceptedTypes ...string) (Handle, bool) {
	accepted := splitAccepted(acceptedTypes)
	c.mu.RLock()
	defer c.mu.RUnlock()

	var chain []Handle
	for _, n := range strings.Split(name, "|") {
		h, ok := c.handles[strings.TrimSpace(n)]
		if !ok {
			return nil, false
		}

		chain = append(chain, h)
	}

	if len(chain) == 0 || !accepts(chain[len(chain)-1], accepted) {
		return nil, false
	}

	if len(chain) == 1 {
		return chain[0], true
	}

	return composed(chain), true
}

type composed []Handle

func (c composed) Name() string {
	names := make([]string, len(c))
	for i, h := range c {
		names[i] = h.Name()
	}

	return strings.Join(names, "|")
}

func (c composed) IsSupplier() bool        { return c[0].IsSupplier() }
func (c composed) IsConsumer() bool        { return c[len(c)-1].IsConsumer() }
func (c composed) IsRoutingFunction() bool { return slices.ContainsFunc(c, Handle.IsRoutingFunction) }
func (c composed) ContentTypes() []string  { return c[len(c)-1].ContentTypes() }

func (c composed) Apply(ctx context.Context, in Message) (any, error) {
	var out any
	for i, h := range c {
		if i > 0 {
			next := Message{Payload: out, Headers: in.Headers}
			if m, ok := out.(Message); ok {
				next = m
			}

			payload, err := Encode(next.Payload)
			if err != nil {
				return nil, err
			}

			in = Message{Payload: payload, Headers: next.Headers}
		}

		var err error
		if out, err = h.Apply(ctx, in); err != nil {
			return nil, fmt.Errorf("%s: %w", h.Name(), err)
		}
	}

	return out, nil
}

type router struct {
	catalog *Catalog
	name    string
}

// Router creates a routing function that delegates every message to the
// function named by its DefinitionHeader.
func Router(name string, c *Catalog) Handle {
	return router{catalog: c, name: name}
}

func (r router) Name() string          { return r.name }
func (router) IsSupplier() bool        { return false }
func (router) IsConsumer() bool        { return false }
func (router) IsRoutingFunction() bool { return true }
func (router) ContentTypes() []string  { return nil }

func (r router) Apply(ctx context.Context, in Message) (any, error) {
	def, _ := in.Headers[DefinitionHeader].(string)
	if def == "" || def == r.name {
		return nil, fmt.Errorf("no function definition in message header %s", DefinitionHeader)
	}

	h, ok := r.catalog.Lookup(def)
	if !ok {
		return nil, fmt.Errorf("function not found: %s", def)
	}

	return h.Apply(ctx, in)
}
