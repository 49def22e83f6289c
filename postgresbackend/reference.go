package postgresbackend

import (
	"fmt"
	"sync"

	"github.com/AntonStoeckl/realtime-observable-go/realtime"
)

// query restricts the children a Reference reports. The zero query reports the complete value.
// Children are always reported in key order, so orderByKey only documents intent.
type query struct {
	orderByKey bool
	limited    bool
	fromEnd    bool
	limit      int
}

// apply reduces value to the window of children selected by q.
// Values without children are returned unchanged. An empty window yields nil.
func (q query) apply(value any) any {
	if !q.limited {
		return value
	}

	children, ok := value.(map[string]any)
	if !ok {
		return value
	}

	keys := orderedChildKeys(children)
	if len(keys) > q.limit {
		if q.fromEnd {
			keys = keys[len(keys)-q.limit:]
		} else {
			keys = keys[:q.limit]
		}
	}

	if len(keys) == 0 {
		return nil
	}

	window := make(map[string]any, len(keys))
	for _, key := range keys {
		window[key] = children[key]
	}

	return window
}

// Reference points at a path of a Client, optionally narrowed to a window of ordered children.
// It implements realtime.Reference. References are cheap; derived references share nothing with their origin.
type Reference struct {
	client *Client
	path   string
	query  query

	mu        sync.Mutex
	listeners map[realtime.EventKind]*listener
}

var _ realtime.Reference = (*Reference)(nil)

func newReference(client *Client, path string, q query) *Reference {
	return &Reference{
		client:    client,
		path:      path,
		query:     q,
		listeners: make(map[realtime.EventKind]*listener),
	}
}

// Path returns the normalized path, "" for the root.
func (r *Reference) Path() string {
	return r.path
}

// Key returns the last path segment, "" for the root.
func (r *Reference) Key() string {
	return lastSegment(r.path)
}

// Child returns a Reference to the relative path beneath r. The query of r is not inherited.
func (r *Reference) Child(relativePath string) *Reference {
	return newReference(r.client, joinPath(r.path, relativePath), query{})
}

// Parent returns a Reference to the parent path, or nil for the root.
func (r *Reference) Parent() *Reference {
	if r.path == "" {
		return nil
	}

	return newReference(r.client, parentPath(r.path), query{})
}

// OrderByKey orders children by key: integer keys first, numerically, then all others lexicographically.
func (r *Reference) OrderByKey() *Reference {
	q := r.query
	q.orderByKey = true

	return newReference(r.client, r.path, q)
}

// LimitToFirst restricts the reference to the first n children in key order.
// A non-positive n is reported by On.
func (r *Reference) LimitToFirst(n int) *Reference {
	q := r.query
	q.limited, q.fromEnd, q.limit = true, false, n

	return newReference(r.client, r.path, q)
}

// LimitToLast restricts the reference to the last n children in key order.
// A non-positive n is reported by On.
func (r *Reference) LimitToLast(n int) *Reference {
	q := r.query
	q.limited, q.fromEnd, q.limit = true, true, n

	return newReference(r.client, r.path, q)
}

// On registers handler for kind. A handler already registered for kind on this Reference is replaced.
// The first notification arrives from a background goroutine after the current value was loaded:
// EventKindValue fires with the current value, EventKindChildAdded once per existing child.
// EventKindChildMoved is not supported.
func (r *Reference) On(kind realtime.EventKind, handler realtime.Handler) error {
	switch kind {
	case realtime.EventKindValue, realtime.EventKindChildAdded, realtime.EventKindChildChanged, realtime.EventKindChildRemoved:
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedEventKind, kind)
	}

	if handler == nil {
		return ErrNilHandler
	}

	if r.query.limited && r.query.limit < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidLimit, r.query.limit)
	}

	l := newListener(r.path, r.query, kind, handler)

	r.mu.Lock()
	previous := r.listeners[kind]
	r.listeners[kind] = l
	r.mu.Unlock()

	if previous != nil {
		r.client.hub.remove(previous)
	}

	if err := r.client.hub.add(l); err != nil {
		r.mu.Lock()
		if r.listeners[kind] == l {
			delete(r.listeners, kind)
		}
		r.mu.Unlock()

		return err
	}

	return nil
}

// Off removes the handler registered for kind. It returns without waiting for a running handler
// and may be called from inside one. A notification already being delivered may still arrive.
func (r *Reference) Off(kind realtime.EventKind) {
	r.mu.Lock()
	l := r.listeners[kind]
	delete(r.listeners, kind)
	r.mu.Unlock()

	if l != nil {
		r.client.hub.remove(l)
	}
}

// MapReference adapts fn to a realtime.ReferenceMapper, for narrowing references of an Observable:
//
//	realtime.WithReferenceMapper(postgresbackend.MapReference(func(ref *postgresbackend.Reference) *postgresbackend.Reference {
//		return ref.OrderByKey().LimitToLast(10)
//	}))
func MapReference(fn func(ref *Reference) *Reference) realtime.ReferenceMapper {
	return func(ref realtime.Reference) (realtime.Reference, error) {
		typed, ok := ref.(*Reference)
		if !ok {
			return nil, fmt.Errorf("%w: %T", ErrForeignReference, ref)
		}

		return fn(typed), nil
	}
}
