package realtime

import "errors"

var (
	// ErrNilClientGetter is returned when NewObservable is called without a ClientGetter.
	ErrNilClientGetter = errors.New("client getter must not be nil")

	// ErrNilReferenceMapper is returned when a nil ReferenceMapper is supplied to WithReferenceMapper.
	ErrNilReferenceMapper = errors.New("reference mapper must not be nil")

	// ErrNilValueMapper is returned when a nil ValueMapper is supplied to WithValueMapper.
	ErrNilValueMapper = errors.New("value mapper must not be nil")

	// ErrNilErrorHandler is returned when a nil handler is supplied to WithErrorHandler.
	ErrNilErrorHandler = errors.New("error handler must not be nil")

	// ErrNilBaseContext is returned when a nil context is supplied to WithBaseContext.
	ErrNilBaseContext = errors.New("base context must not be nil")

	// ErrResolvingClientFailed is returned when the ClientGetter fails.
	ErrResolvingClientFailed = errors.New("resolving client failed")

	// ErrReferenceLookupFailed is returned when the client cannot look up the reference at the path.
	ErrReferenceLookupFailed = errors.New("reference lookup failed")

	// ErrMappingReferenceFailed is returned when the ReferenceMapper fails.
	ErrMappingReferenceFailed = errors.New("mapping reference failed")

	// ErrRegisteringListenerFailed is returned when the reference refuses the listener.
	ErrRegisteringListenerFailed = errors.New("registering listener failed")

	// ErrMappingValueFailed is returned when the ValueMapper fails for a notification.
	ErrMappingValueFailed = errors.New("mapping value failed")

	// ErrUnexpectedValueType is returned when a mapped value does not have the observable's value type.
	ErrUnexpectedValueType = errors.New("mapped value has an unexpected type")

	// ErrDecodingJSONFailed is returned by DecodeJSON when the raw value cannot be decoded.
	ErrDecodingJSONFailed = errors.New("decoding json value failed")
)
