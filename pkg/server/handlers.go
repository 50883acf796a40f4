package server

import (
	"fmt"
	"sync"

	"github.com/jowharshamshiri/janus/pkg/jsonrpc"
)

// RequestHandler processes one request's args and returns a result
// value to be serialized as the response's `result`, or an error to be
// mapped through the error taxonomy.
type RequestHandler func(args map[string]interface{}) (interface{}, error)

// NewStringHandler adapts a function returning a plain string.
func NewStringHandler(fn func(args map[string]interface{}) (string, error)) RequestHandler {
	return func(args map[string]interface{}) (interface{}, error) { return fn(args) }
}

// NewObjectHandler adapts a function returning an arbitrary JSON-able object.
func NewObjectHandler(fn func(args map[string]interface{}) (map[string]interface{}, error)) RequestHandler {
	return func(args map[string]interface{}) (interface{}, error) { return fn(args) }
}

// NewBoolHandler adapts a function returning a plain boolean.
func NewBoolHandler(fn func(args map[string]interface{}) (bool, error)) RequestHandler {
	return func(args map[string]interface{}) (interface{}, error) { return fn(args) }
}

// NewCustomHandler adapts a function returning any value type T.
func NewCustomHandler[T any](fn func(args map[string]interface{}) (T, error)) RequestHandler {
	return func(args map[string]interface{}) (interface{}, error) { return fn(args) }
}

// handlerRegistry owns the name -> RequestHandler map. Writes happen
// only from the server's configuration path; reads happen from the
// dispatcher.
type handlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]RequestHandler
}

func newHandlerRegistry() *handlerRegistry {
	return &handlerRegistry{handlers: map[string]RequestHandler{}}
}

// Register adds or replaces the handler for name. The name itself must
// already have passed the security Validator's ValidateName at the call
// site.
func (r *handlerRegistry) Register(name string, fn RequestHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = fn
}

// Unregister removes the handler for name, if present.
func (r *handlerRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, name)
}

// Lookup returns the handler for name, and whether one was found.
func (r *handlerRegistry) Lookup(name string) (RequestHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns all registered handler names.
func (r *handlerRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for n := range r.handlers {
		names = append(names, n)
	}
	return names
}

func (r *handlerRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// methodNotFoundError is the canonical reply for an unrouteable request.
func methodNotFoundError(name string) error {
	return jsonrpc.New(jsonrpc.MethodNotFound, fmt.Sprintf("no handler registered for request %q", name))
}
