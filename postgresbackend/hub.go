package postgresbackend

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/AntonStoeckl/realtime-observable-go/postgresbackend/internal/adapters"
)

const sessionCloseTimeout = 5 * time.Second

// changeNotification is the payload published by the table trigger.
type changeNotification struct {
	Path string `json:"path"`
	Op   string `json:"op"`
}

// hub owns the notification session of a Client and fans change notifications out to the listeners
// whose path they affect. Whenever notifications may have been missed, every listener resyncs.
type hub struct {
	client  *Client
	channel string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	listeners map[uint64]*listener
	nextID    uint64
	started   bool
	closed    bool
}

func newHub(client *Client, channel string) *hub {
	ctx, cancel := context.WithCancel(context.Background())

	return &hub{
		client:    client,
		channel:   channel,
		ctx:       ctx,
		cancel:    cancel,
		listeners: make(map[uint64]*listener),
	}
}

// add starts l. The notification session is opened with the first listener.
func (h *hub) add(l *listener) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClientClosed
	}

	h.nextID++
	l.id = h.nextID
	h.listeners[l.id] = l

	if !h.started {
		h.started = true
		h.wg.Add(1)

		go h.run()
	}

	h.wg.Add(1)

	go func() {
		defer h.wg.Done()
		l.run(h.ctx, h.client)
	}()

	h.client.logDebug(h.ctx, logMsgListenerAdded, logAttrPath, l.path, logAttrEventKind, string(l.kind))

	return nil
}

// remove stops l without waiting for its run loop.
func (h *hub) remove(l *listener) {
	l.stop()

	h.mu.Lock()
	delete(h.listeners, l.id)
	h.mu.Unlock()

	h.client.logDebug(h.ctx, logMsgListenerRemoved, logAttrPath, l.path, logAttrEventKind, string(l.kind))
}

func (h *hub) close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}

	h.closed = true
	for id, l := range h.listeners {
		l.stop()
		delete(h.listeners, id)
	}
	h.mu.Unlock()

	h.cancel()
	h.wg.Wait()
}

func (h *hub) listenerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.listeners)
}

// run keeps a notification session open until the hub is closed, reconnecting with backoff.
func (h *hub) run() {
	defer h.wg.Done()

	attempt := 0

	for {
		err := h.session(func() { attempt = 0 })
		if h.ctx.Err() != nil {
			return
		}

		delay := h.client.backoff.delay(attempt)
		h.client.logWarn(h.ctx, logMsgListenerSessionLost,
			logAttrError, err.Error(),
			logAttrChannel, h.channel,
			logAttrAttempt, attempt+1,
			logAttrDelayMS, toMilliseconds(delay),
		)
		h.client.incrementCounter(h.ctx, metricListenerReconnect, map[string]string{
			labelErrorType: contextErrorType(err, "session"),
		})

		if !sleep(h.ctx, nil, delay) {
			return
		}

		attempt++
	}
}

// session runs one LISTEN session. It only returns with an error.
func (h *hub) session(onListening func()) error {
	session, err := h.client.newListener(h.ctx)
	if err != nil {
		return errors.Join(ErrListeningFailed, err)
	}

	defer h.closeSession(session)

	if err = session.Listen(h.ctx, h.channel); err != nil {
		return errors.Join(ErrListeningFailed, err)
	}

	onListening()
	h.client.logInfo(h.ctx, logMsgListening, logAttrChannel, h.channel)

	// changes may have happened between the initial loads of the listeners and now
	h.resync()

	for {
		notification, waitErr := session.WaitForNotification(h.ctx)
		if waitErr != nil {
			return errors.Join(ErrListeningFailed, waitErr)
		}

		if notification.Reconnected {
			h.resync()
			continue
		}

		h.dispatch(notification.Payload)
	}
}

func (h *hub) closeSession(session adapters.Listener) {
	ctx, cancel := context.WithTimeout(context.Background(), sessionCloseTimeout)
	defer cancel()

	if err := session.Close(ctx); err != nil {
		h.client.logWarn(h.ctx, logMsgSessionCloseFailed, logAttrError, err.Error(), logAttrChannel, h.channel)
	}
}

// dispatch wakes every listener whose value the notified change can alter.
func (h *hub) dispatch(payload string) {
	var change changeNotification
	if err := jsonAPI.UnmarshalFromString(payload, &change); err != nil {
		h.client.logWarn(h.ctx, logMsgMalformedPayload, logAttrError, err.Error(), logAttrChannel, h.channel)
		h.resync()

		return
	}

	h.client.logDebug(h.ctx, logMsgNotificationReceived, logAttrPath, change.Path, logAttrOp, change.Op)
	h.client.incrementCounter(h.ctx, metricNotifications, map[string]string{labelOp: change.Op})

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, l := range h.listeners {
		if affects(l.path, change.Path) {
			l.signal()
		}
	}
}

func (h *hub) resync() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, l := range h.listeners {
		l.signal()
	}
}
