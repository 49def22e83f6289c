package realtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a Subscription.
type State int

const (
	// StateResolving means the client and reference are still being resolved.
	StateResolving State = iota

	// StateActive means the listener is registered.
	StateActive

	// StateSkipped means Unsubscribe was called before registration, so no listener was registered.
	StateSkipped

	// StateFailed means the resolution chain failed and no listener was registered.
	StateFailed

	// StateDeregistered means the listener was registered and has been removed again.
	StateDeregistered
)

func (s State) String() string {
	switch s {
	case StateResolving:
		return "resolving"
	case StateActive:
		return "active"
	case StateSkipped:
		return "skipped"
	case StateFailed:
		return "failed"
	case StateDeregistered:
		return "deregistered"
	default:
		return "unknown"
	}
}

// Subscription is the handle returned by Observable.Subscribe.
//
// mu guards the check-and-register step of the resolution goroutine against Unsubscribe.
// emitMu serializes deliveries, which keeps isFirst exact.
type Subscription struct {
	id       uuid.UUID
	path     string
	kind     EventKind
	settings settings
	deliver  func(mapped any, isFirst bool) error
	onActive func(ctx context.Context, delta int64)
	resolved chan struct{}

	unsubscribed atomic.Bool

	mu    sync.Mutex
	ref   Reference
	state State
	err   error

	emitMu  sync.Mutex
	isFirst bool
}

func newSubscription(
	path string,
	kind EventKind,
	s settings,
	deliver func(mapped any, isFirst bool) error,
	onActive func(ctx context.Context, delta int64),
) *Subscription {

	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}

	return &Subscription{
		id:       id,
		path:     path,
		kind:     kind,
		settings: s,
		deliver:  deliver,
		onActive: onActive,
		resolved: make(chan struct{}),
		state:    StateResolving,
		isFirst:  true,
	}
}

// ID returns the unique ID of the subscription, as used in logs and spans.
func (s *Subscription) ID() uuid.UUID {
	return s.id
}

// State returns the current lifecycle state.
func (s *Subscription) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Err returns the error that made the resolution chain fail, or nil.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.err
}

// Resolved returns a channel that is closed once the resolution chain has settled,
// i.e. the listener was registered, registration was skipped, or resolution failed.
func (s *Subscription) Resolved() <-chan struct{} {
	return s.resolved
}

// Unsubscribe stops the delivery of values.
//
// Called before the listener is registered, it prevents the registration for good.
// Called afterwards, it deregisters the listener for the same event kind, synchronously.
// Further calls are no-ops.
func (s *Subscription) Unsubscribe() {
	s.mu.Lock()

	if s.unsubscribed.Swap(true) {
		s.mu.Unlock()
		return
	}

	wasActive := s.state == StateActive
	if wasActive {
		s.ref.Off(s.kind)
		s.state = StateDeregistered
	}

	s.mu.Unlock()

	ctx := s.settings.baseCtx

	if wasActive {
		s.onActive(ctx, -1)
	}

	s.settings.observer.incrementCounter(
		ctx,
		metricSubscriptions,
		map[string]string{labelEventKind: string(s.kind), labelStatus: statusClosed},
	)

	s.settings.observer.logInfo(
		ctx,
		logMsgSubscriptionClosed,
		logAttrSubscriptionID, s.id.String(),
		logAttrPath, s.path,
		logAttrEventKind, string(s.kind),
	)
}

// resolve runs the resolution chain and registers the listener unless Unsubscribe came first.
func (s *Subscription) resolve(getClient ClientGetter) {
	defer close(s.resolved)

	obs := s.settings.observer

	ctx, span := obs.startSpan(s.settings.baseCtx, spanNameResolve, map[string]string{
		logAttrPath:           s.path,
		logAttrEventKind:      string(s.kind),
		logAttrSubscriptionID: s.id.String(),
	})

	obs.logDebug(ctx, logMsgResolveStarted, logAttrSubscriptionID, s.id.String(), logAttrPath, s.path)

	start := time.Now()

	ref, errorType, err := s.lookup(ctx, getClient)
	if err != nil {
		s.fail(ctx, span, errorType, err, time.Since(start))
		return
	}

	s.mu.Lock()

	s.ref = ref

	if s.unsubscribed.Load() {
		s.state = StateSkipped
		s.mu.Unlock()

		s.finishResolve(ctx, span, statusCanceled, time.Since(start))
		obs.logDebug(ctx, logMsgRegistrationSkipped, logAttrSubscriptionID, s.id.String())

		return
	}

	if registerErr := ref.On(s.kind, s.handle); registerErr != nil {
		s.mu.Unlock()
		s.fail(ctx, span, errorTypeRegister, errors.Join(ErrRegisteringListenerFailed, registerErr), time.Since(start))

		return
	}

	s.state = StateActive
	s.mu.Unlock()

	s.onActive(ctx, 1)
	s.finishResolve(ctx, span, statusSuccess, time.Since(start))

	obs.logDebug(
		ctx,
		logMsgListenerRegistered,
		logAttrSubscriptionID, s.id.String(),
		logAttrEventKind, string(s.kind),
		logAttrDurationMS, toMilliseconds(time.Since(start)),
	)
}

// lookup resolves the client, looks up the reference and applies the reference mapper.
func (s *Subscription) lookup(ctx context.Context, getClient ClientGetter) (Reference, string, error) {
	client, err := getClient(ctx)
	if err != nil {
		return nil, errorTypeResolveClient, errors.Join(ErrResolvingClientFailed, err)
	}

	ref, err := client.Ref(s.path)
	if err != nil {
		return nil, errorTypeLookupReference, errors.Join(ErrReferenceLookupFailed, err)
	}

	mapped, err := s.settings.mapReference(ref)
	if err != nil {
		return nil, errorTypeMapReference, errors.Join(ErrMappingReferenceFailed, err)
	}

	return mapped, "", nil
}

// fail leaves the subscription inert and reports err.
func (s *Subscription) fail(ctx context.Context, span SpanContext, errorType string, err error, duration time.Duration) {
	s.mu.Lock()
	s.state = StateFailed
	s.err = err
	s.mu.Unlock()

	if span != nil {
		span.AddAttribute(labelErrorType, errorType)
	}

	s.finishResolve(ctx, span, statusError, duration)

	s.settings.observer.logError(
		ctx,
		logMsgResolveFailed,
		logAttrSubscriptionID, s.id.String(),
		logAttrPath, s.path,
		logAttrErrorType, errorType,
		logAttrError, err.Error(),
	)

	s.report(err)
}

func (s *Subscription) finishResolve(ctx context.Context, span SpanContext, status string, duration time.Duration) {
	s.settings.observer.recordDuration(
		ctx,
		metricResolveDuration,
		duration,
		map[string]string{labelEventKind: string(s.kind), labelStatus: status},
	)

	s.settings.observer.finishSpan(span, status, nil)
}

// handle is the Handler registered at the reference.
func (s *Subscription) handle(snapshot Snapshot) {
	if s.unsubscribed.Load() {
		return
	}

	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	if s.unsubscribed.Load() {
		return
	}

	var raw any
	if snapshot != nil {
		raw = snapshot.Value()
	}

	mapped, err := s.settings.mapValue(raw)
	if err != nil {
		s.drop(errorTypeMapValue, errors.Join(ErrMappingValueFailed, err))
		return
	}

	if deliverErr := s.deliver(mapped, s.isFirst); deliverErr != nil {
		s.drop(errorTypeValueType, deliverErr)
		return
	}

	ctx := s.settings.baseCtx

	s.settings.observer.logDebug(
		ctx,
		logMsgNotificationDelivery,
		logAttrSubscriptionID, s.id.String(),
		logAttrIsFirst, s.isFirst,
	)

	s.isFirst = false

	s.settings.observer.incrementCounter(ctx, metricNotifications, map[string]string{labelEventKind: string(s.kind)})
}

// drop reports a notification that could not be delivered. Later notifications are still attempted.
func (s *Subscription) drop(errorType string, err error) {
	ctx := s.settings.baseCtx

	s.settings.observer.incrementCounter(
		ctx,
		metricValueMappingErrors,
		map[string]string{labelEventKind: string(s.kind), labelErrorType: errorType},
	)

	s.settings.observer.logWarn(
		ctx,
		logMsgNotificationDropped,
		logAttrSubscriptionID, s.id.String(),
		logAttrErrorType, errorType,
		logAttrError, err.Error(),
	)

	s.report(err)
}

func (s *Subscription) report(err error) {
	if s.settings.errorHandler != nil {
		s.settings.errorHandler(err)
	}
}
