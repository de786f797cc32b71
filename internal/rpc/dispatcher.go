package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Handler executes one JSON-RPC method call and returns its result payload
// or an error. Streaming methods additionally receive a non-nil Stream and
// are expected to push zero or more events to it before returning; the
// dispatcher still sends Handler's own return value as the final response.
type Handler func(ctx context.Context, conn *ConnState, params json.RawMessage, stream *Stream) (any, error)

// Stream lets a streaming method handler push server-initiated events to
// the calling connection while the call is in flight.
type Stream struct {
	send func(Event)
}

// Send pushes an event to the connection. Safe to call from the handler's
// own goroutine or one it spawns for the lifetime of the call.
func (s *Stream) Send(method string, params any) {
	if s == nil || s.send == nil {
		return
	}
	s.send(Event{Method: method, Params: params})
}

type methodEntry struct {
	scope     Scope
	streaming bool
	handler   Handler
}

// Dispatcher routes JSON-RPC 2.0 requests to registered method handlers,
// enforcing the scope each method declares at registration.
type Dispatcher struct {
	mu      sync.RWMutex
	methods map[string]methodEntry
	logger  *slog.Logger
}

// NewDispatcher creates an empty Dispatcher. Use RegisterMethod /
// RegisterStreamingMethod to populate the namespace before serving
// connections.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{methods: make(map[string]methodEntry), logger: logger}
}

// RegisterMethod wires a request/response method under the given scope.
func (d *Dispatcher) RegisterMethod(name string, scope Scope, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.methods[name] = methodEntry{scope: scope, handler: handler}
}

// RegisterStreamingMethod wires a method whose handler pushes additional
// events to the connection via its Stream before returning.
func (d *Dispatcher) RegisterStreamingMethod(name string, scope Scope, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.methods[name] = methodEntry{scope: scope, streaming: true, handler: handler}
}

// Methods returns the registered method names, for introspection (e.g. a
// welcome frame's feature list).
func (d *Dispatcher) Methods() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.methods))
	for name := range d.methods {
		names = append(names, name)
	}
	return names
}

// Dispatch parses raw as a single JSON-RPC 2.0 request, enforces scope, and
// invokes the matching handler. emit, if non-nil, is wired to the handler's
// Stream so a streaming method can push events ahead of its final response.
func (d *Dispatcher) Dispatch(ctx context.Context, conn *ConnState, raw []byte, emit func(Event)) *Response {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorResponse(nil, CodeParseError, "malformed JSON: "+err.Error())
	}
	if strings.TrimSpace(req.Method) == "" {
		return errorResponse(req.ID, CodeInvalidRequest, "method is required")
	}

	d.mu.RLock()
	entry, ok := d.methods[req.Method]
	d.mu.RUnlock()
	if !ok {
		return errorResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("unknown method %q", req.Method))
	}

	if conn == nil || !conn.Scopes.Has(entry.scope) {
		return errorResponse(req.ID, CodeUnauthorized, fmt.Sprintf("method %q requires scope %q", req.Method, entry.scope))
	}

	var stream *Stream
	if entry.streaming && emit != nil {
		stream = &Stream{send: emit}
	}

	result, err := entry.handler(ctx, conn, req.Params, stream)
	if err != nil {
		return errorResponse(req.ID, rpcErrorCode(err), err.Error())
	}
	return resultResponse(req.ID, result)
}

func rpcErrorCode(err error) int {
	var rpcErr *Error
	if e, ok := err.(*Error); ok {
		rpcErr = e
	}
	if rpcErr != nil {
		return rpcErr.Code
	}
	return CodeInternalError
}

// NotFound builds the standard error for a missing session/tool/model.
func NotFound(what string) error {
	return newError(CodeNotFound, what+" not found")
}

// InvalidParams builds the standard error for a params decode failure.
func InvalidParams(err error) error {
	return newError(CodeInvalidParams, "invalid params: "+err.Error())
}
