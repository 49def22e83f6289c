package realtime

import "context"

// EventKind names the category of change notification a listener is registered for.
type EventKind string

const (
	// EventKindValue fires with the complete current value at a path, and again on every change.
	EventKindValue EventKind = "value"

	// EventKindChildAdded fires once per existing child and then for every new child.
	EventKindChildAdded EventKind = "child_added"

	// EventKindChildChanged fires when the value of an existing child changes.
	EventKindChildChanged EventKind = "child_changed"

	// EventKindChildRemoved fires when a child is removed.
	EventKindChildRemoved EventKind = "child_removed"

	// EventKindChildMoved fires when the sort position of a child changes.
	EventKindChildMoved EventKind = "child_moved"
)

// Snapshot is the payload a backend hands to a Handler.
type Snapshot interface {
	Value() any
}

// Handler receives backend notifications.
type Handler func(snapshot Snapshot)

// Reference identifies a location in the remote data store.
//
// On registers handler for kind. Implementations must not invoke handler synchronously
// from inside On. Off removes the listener registered for kind; it must not wait for
// handlers that are currently running, as a handler may itself trigger Off.
type Reference interface {
	On(kind EventKind, handler Handler) error
	Off(kind EventKind)
}

// Client resolves references by path.
type Client interface {
	Ref(path string) (Reference, error)
}

// ClientGetter resolves the backend client. It is invoked once per Subscribe on a separate goroutine.
type ClientGetter func(ctx context.Context) (Client, error)

// ReferenceMapper is applied to the resolved reference before the listener gets registered,
// e.g. to restrict the reference to a page of children.
type ReferenceMapper func(ref Reference) (Reference, error)

// ValueMapper is applied to every raw value before it is delivered to the subscriber.
type ValueMapper func(raw any) (any, error)

// Callback receives mapped values. isFirst is true for the first delivery of a subscription only.
type Callback[T any] func(value T, isFirst bool)

func identityReference(ref Reference) (Reference, error) {
	return ref, nil
}

func identityValue(raw any) (any, error) {
	return raw, nil
}
