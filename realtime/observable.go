package realtime

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Observable is a cold push stream of the values at one path of a realtime database.
// Every call to Subscribe resolves its own reference and registers its own listener.
type Observable[T any] struct {
	getClient ClientGetter
	path      string
	kind      EventKind
	settings  settings
	active    atomic.Int64
}

// NewObservable creates an Observable for the given path and event kind.
//
// path and kind are passed to the backend as they are; a malformed path or an unknown kind
// only surfaces as a failure of the resolution chain of the individual subscriptions.
// Returns an error if getClient is nil or if one of the options fails.
func NewObservable[T any](getClient ClientGetter, path string, kind EventKind, options ...Option) (*Observable[T], error) {
	if getClient == nil {
		return nil, ErrNilClientGetter
	}

	s := defaultSettings()

	for _, option := range options {
		if err := option(&s); err != nil {
			return nil, err
		}
	}

	return &Observable[T]{
		getClient: getClient,
		path:      path,
		kind:      kind,
		settings:  s,
	}, nil
}

// NewValueObservable creates an Observable for EventKindValue: every delivery carries the
// complete current value at path.
func NewValueObservable[T any](getClient ClientGetter, path string, options ...Option) (*Observable[T], error) {
	return NewObservable[T](getClient, path, EventKindValue, options...)
}

// Path returns the path the Observable subscribes to.
func (o *Observable[T]) Path() string {
	return o.path
}

// EventKind returns the event kind the Observable registers listeners for.
func (o *Observable[T]) EventKind() EventKind {
	return o.kind
}

// ActiveSubscriptions returns the number of subscriptions that currently have a registered listener.
func (o *Observable[T]) ActiveSubscriptions() int64 {
	return o.active.Load()
}

// Subscribe returns a Subscription right away and resolves the reference and registers the
// listener in the background. Values that the backend emits before the listener is registered
// are not delivered.
func (o *Observable[T]) Subscribe(callback Callback[T]) *Subscription {
	sub := newSubscription(o.path, o.kind, o.settings, o.deliverer(callback), o.trackActive)

	sub.settings.observer.incrementCounter(
		o.settings.baseCtx,
		metricSubscriptions,
		map[string]string{labelEventKind: string(o.kind), labelStatus: statusOpened},
	)

	sub.settings.observer.logInfo(
		o.settings.baseCtx,
		logMsgSubscriptionOpened,
		logAttrSubscriptionID, sub.id.String(),
		logAttrPath, o.path,
		logAttrEventKind, string(o.kind),
	)

	go sub.resolve(o.getClient)

	return sub
}

// deliverer converts mapped values to T before handing them to callback.
func (o *Observable[T]) deliverer(callback Callback[T]) func(mapped any, isFirst bool) error {
	return func(mapped any, isFirst bool) error {
		var value T

		if mapped != nil {
			typed, ok := mapped.(T)
			if !ok {
				return fmt.Errorf("%w: got %T, want %T", ErrUnexpectedValueType, mapped, value)
			}

			value = typed
		}

		if callback != nil {
			callback(value, isFirst)
		}

		return nil
	}
}

func (o *Observable[T]) trackActive(ctx context.Context, delta int64) {
	active := o.active.Add(delta)

	o.settings.observer.recordValue(
		ctx,
		metricActiveSubscriptions,
		float64(active),
		map[string]string{labelEventKind: string(o.kind)},
	)
}
