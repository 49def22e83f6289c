package backendfake

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/AntonStoeckl/realtime-observable-go/realtime"
)

// Snapshot is a fake notification payload.
type Snapshot struct {
	Val any
}

// Value implements realtime.Snapshot.
func (s Snapshot) Value() any {
	return s.Val
}

// OnCall represents a recorded On call.
type OnCall struct {
	Kind    realtime.EventKind
	Handler realtime.Handler
}

// ReferenceSpy is a realtime.Reference that records listener registration and deregistration.
type ReferenceSpy struct {
	mu       sync.Mutex
	path     string
	onCalls  []OnCall
	offCalls []realtime.EventKind
	handlers map[realtime.EventKind]realtime.Handler
	onErr    error
}

// NewReferenceSpy creates a ReferenceSpy for path.
func NewReferenceSpy(path string) *ReferenceSpy {
	return &ReferenceSpy{
		path:     path,
		handlers: make(map[realtime.EventKind]realtime.Handler),
	}
}

// FailOnWith makes every following On call fail with err.
func (r *ReferenceSpy) FailOnWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onErr = err
}

// Path returns the path the reference was created for.
func (r *ReferenceSpy) Path() string {
	return r.path
}

// On implements realtime.Reference.
func (r *ReferenceSpy) On(kind realtime.EventKind, handler realtime.Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.onCalls = append(r.onCalls, OnCall{Kind: kind, Handler: handler})
	if r.onErr != nil {
		return r.onErr
	}

	r.handlers[kind] = handler

	return nil
}

// Off implements realtime.Reference.
func (r *ReferenceSpy) Off(kind realtime.EventKind) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.offCalls = append(r.offCalls, kind)
	delete(r.handlers, kind)
}

// Trigger fires a notification carrying value to the handler registered for kind.
// It runs the handler on the calling goroutine and reports whether a handler was registered.
func (r *ReferenceSpy) Trigger(kind realtime.EventKind, value any) bool {
	r.mu.Lock()
	handler, ok := r.handlers[kind]
	r.mu.Unlock()

	if !ok {
		return false
	}

	handler(Snapshot{Val: value})

	return true
}

// OnCalls returns a copy of all recorded On calls.
func (r *ReferenceSpy) OnCalls() []OnCall {
	r.mu.Lock()
	defer r.mu.Unlock()

	calls := make([]OnCall, len(r.onCalls))
	copy(calls, r.onCalls)

	return calls
}

// OffCalls returns a copy of all recorded Off calls.
func (r *ReferenceSpy) OffCalls() []realtime.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()

	calls := make([]realtime.EventKind, len(r.offCalls))
	copy(calls, r.offCalls)

	return calls
}

// ClientSpy is a realtime.Client that hands out references and records the looked-up paths.
type ClientSpy struct {
	mu       sync.Mutex
	newRef   func(path string) realtime.Reference
	refCalls []string
	refErr   error
}

// NewClientSpy creates a ClientSpy that returns ref for every path.
func NewClientSpy(ref realtime.Reference) *ClientSpy {
	return &ClientSpy{
		newRef: func(string) realtime.Reference { return ref },
	}
}

// NewClientSpyWithFreshReferences creates a ClientSpy that returns a new ReferenceSpy per lookup.
func NewClientSpyWithFreshReferences() *ClientSpy {
	return &ClientSpy{
		newRef: func(path string) realtime.Reference { return NewReferenceSpy(path) },
	}
}

// FailRefWith makes every following Ref call fail with err.
func (c *ClientSpy) FailRefWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refErr = err
}

// Ref implements realtime.Client.
func (c *ClientSpy) Ref(path string) (realtime.Reference, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.refCalls = append(c.refCalls, path)
	if c.refErr != nil {
		return nil, c.refErr
	}

	return c.newRef(path), nil
}

// RefCalls returns a copy of all paths that were looked up.
func (c *ClientSpy) RefCalls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	calls := make([]string, len(c.refCalls))
	copy(calls, c.refCalls)

	return calls
}

// ClientGetterFor returns a ClientGetter that resolves to client right away.
func ClientGetterFor(client realtime.Client) realtime.ClientGetter {
	return func(context.Context) (realtime.Client, error) {
		return client, nil
	}
}

// FailingClientGetter returns a ClientGetter that always fails with err.
func FailingClientGetter(err error) realtime.ClientGetter {
	return func(context.Context) (realtime.Client, error) {
		return nil, err
	}
}

// GatedClientGetter resolves to its client only after Release was called.
type GatedClientGetter struct {
	client  realtime.Client
	release chan struct{}
	once    sync.Once
	calls   atomic.Int32
}

// NewGatedClientGetter creates a closed gate in front of client.
func NewGatedClientGetter(client realtime.Client) *GatedClientGetter {
	return &GatedClientGetter{
		client:  client,
		release: make(chan struct{}),
	}
}

// Get is the realtime.ClientGetter.
func (g *GatedClientGetter) Get(ctx context.Context) (realtime.Client, error) {
	g.calls.Add(1)

	select {
	case <-g.release:
		return g.client, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release opens the gate for all pending and future calls.
func (g *GatedClientGetter) Release() {
	g.once.Do(func() { close(g.release) })
}

// Calls returns how often Get was called.
func (g *GatedClientGetter) Calls() int {
	return int(g.calls.Load())
}

// Ensure the fakes implement the realtime interfaces.
var (
	_ realtime.Reference = (*ReferenceSpy)(nil)
	_ realtime.Client    = (*ClientSpy)(nil)
	_ realtime.Snapshot  = Snapshot{}
)
