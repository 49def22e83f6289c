package postgresbackend

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/AntonStoeckl/realtime-observable-go/realtime"
)

// listener serves one Reference.On registration. Its run loop loads the value whenever the hub
// signals a relevant change and turns the difference to the previous load into notifications.
type listener struct {
	id      uint64
	path    string
	query   query
	kind    realtime.EventKind
	handler realtime.Handler

	wake     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	stopped  atomic.Bool

	// owned by run
	synced   bool
	lastJSON []byte
	children map[string][]byte
}

func newListener(path string, q query, kind realtime.EventKind, handler realtime.Handler) *listener {
	return &listener{
		path:    path,
		query:   q,
		kind:    kind,
		handler: handler,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// signal requests a sync without blocking. Signals arriving during a sync coalesce into one.
func (l *listener) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *listener) stop() {
	l.stopOnce.Do(func() {
		l.stopped.Store(true)
		close(l.done)
	})
}

func (l *listener) run(ctx context.Context, c *Client) {
	attempt := 0

	for {
		if err := l.sync(ctx, c); err != nil {
			if ctx.Err() != nil || l.stopped.Load() || errors.Is(err, ErrClientClosed) {
				return
			}

			delay := c.backoff.delay(attempt)
			c.logWarn(ctx, logMsgSyncFailed,
				logAttrError, err.Error(),
				logAttrPath, l.path,
				logAttrEventKind, string(l.kind),
				logAttrAttempt, attempt+1,
				logAttrDelayMS, toMilliseconds(delay),
			)
			c.incrementCounter(ctx, metricSyncErrors, map[string]string{labelEventKind: string(l.kind)})

			if !sleep(ctx, l.done, delay) {
				return
			}

			attempt++

			continue
		}

		attempt = 0

		select {
		case <-l.wake:
		case <-l.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// sync loads the current value and emits what changed since the previous sync.
func (l *listener) sync(ctx context.Context, c *Client) error {
	value, err := c.load(ctx, operationSync, l.path)
	if err != nil {
		return err
	}

	value = l.query.apply(value)

	if l.kind == realtime.EventKindValue {
		return l.syncValue(value)
	}

	return l.syncChildren(value)
}

func (l *listener) syncValue(value any) error {
	encoded, err := jsonAPI.Marshal(value)
	if err != nil {
		return errors.Join(ErrEncodingValueFailed, err)
	}

	if l.synced && bytes.Equal(encoded, l.lastJSON) {
		return nil
	}

	l.synced, l.lastJSON = true, encoded
	l.emit(&Snapshot{key: lastSegment(l.path), value: value, raw: encoded})

	return nil
}

func (l *listener) syncChildren(value any) error {
	current, err := encodeChildren(value)
	if err != nil {
		return err
	}

	previous, initial := l.children, !l.synced
	l.children, l.synced = current, true

	children, _ := value.(map[string]any)

	switch l.kind {
	case realtime.EventKindChildAdded:
		for _, key := range orderedChildKeys(children) {
			if _, known := previous[key]; initial || !known {
				l.emit(l.childSnapshot(key, children[key], current[key]))
			}
		}

	case realtime.EventKindChildChanged:
		if initial {
			return nil
		}

		for _, key := range orderedChildKeys(children) {
			if before, known := previous[key]; known && !bytes.Equal(before, current[key]) {
				l.emit(l.childSnapshot(key, children[key], current[key]))
			}
		}

	case realtime.EventKindChildRemoved:
		if initial {
			return nil
		}

		removed := make([]string, 0)
		for key := range previous {
			if _, still := current[key]; !still {
				removed = append(removed, key)
			}
		}

		slices.SortFunc(removed, compareKeys)

		for _, key := range removed {
			var last any
			if err := jsonAPI.Unmarshal(previous[key], &last); err != nil {
				return errors.Join(ErrDecodingValueFailed, err)
			}

			l.emit(l.childSnapshot(key, last, previous[key]))
		}
	}

	return nil
}

func (l *listener) childSnapshot(key string, value any, raw []byte) *Snapshot {
	return &Snapshot{key: key, value: value, raw: raw}
}

func (l *listener) emit(snapshot *Snapshot) {
	if l.stopped.Load() {
		return
	}

	l.handler(snapshot)
}
