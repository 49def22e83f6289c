// Package realtime adapts references of a realtime remote database into push-based observables.
//
// An Observable is cold and lazy: every call to Subscribe independently resolves the backend
// client, looks up the reference at the configured path, and registers one listener for the
// configured event kind. Subscribe returns immediately; resolution and registration happen on a
// separate goroutine. Unsubscribe is race-free with respect to that goroutine:
//   - called before registration, it prevents registration for good
//   - called after registration, it deregisters the listener exactly once
//
// Every delivered value carries an isFirst flag that is true for the first delivery of a
// subscription only.
//
// Key types:
//   - Client, Reference, Snapshot: the capabilities expected from a backend
//   - Observable: built with NewObservable or NewValueObservable
//   - Subscription: the handle returned by Subscribe
//
// Common usage pattern:
//
//	getClient := func(ctx context.Context) (realtime.Client, error) {
//		return client, nil
//	}
//
//	books, err := realtime.NewValueObservable[[]Book](
//		getClient,
//		"/library/books",
//		realtime.WithValueMapper(realtime.DecodeJSON[[]Book]()),
//		realtime.WithLogger(slog.Default()),
//	)
//	if err != nil {
//		// handle error
//	}
//
//	subscription := books.Subscribe(func(value []Book, isFirst bool) {
//		// render
//	})
//	defer subscription.Unsubscribe()
package realtime
