package postgresbackend

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/realtime-observable-go/postgresbackend/internal/adapters"
	"github.com/AntonStoeckl/realtime-observable-go/realtime"
	"github.com/AntonStoeckl/realtime-observable-go/testutil/observability/testdoubles"
)

func Test_Listener_Value(t *testing.T) {
	// arrange
	db := newFakeDB()
	db.put("books/dune/title", `"Dune"`)
	sessions := newFakeSessions(newFakeSession())
	client := newTestClient(t, db, sessions)
	recorder := newSnapshotRecorder()

	// act
	require.NoError(t, client.Reference("books").On(realtime.EventKindValue, recorder.handle))

	// assert
	initial := recorder.next(t)
	assert.Equal(t, "books", initial.Key())
	assert.Equal(t, map[string]any{"dune": map[string]any{"title": "Dune"}}, initial.Value())

	session := sessions.waitOpened(t)

	db.put("books/emma/title", `"Emma"`)
	session.notify("books/emma/title", "INSERT")

	changed := recorder.next(t)
	assert.Equal(t, map[string]any{
		"dune": map[string]any{"title": "Dune"},
		"emma": map[string]any{"title": "Emma"},
	}, changed.Value())

	session.notify("books/emma/title", "UPDATE")
	session.notify("authors/herbert", "INSERT")
	recorder.assertQuiet(t)
}

func Test_Listener_Value_MissingPathDeliversNil(t *testing.T) {
	sessions := newFakeSessions(newFakeSession())
	client := newTestClient(t, newFakeDB(), sessions)
	recorder := newSnapshotRecorder()

	require.NoError(t, client.Reference("books").On(realtime.EventKindValue, recorder.handle))

	snapshot := recorder.next(t)
	assert.False(t, snapshot.Exists())
	assert.Nil(t, snapshot.Value())
}

func Test_Listener_Value_AncestorChange(t *testing.T) {
	db := newFakeDB()
	db.put("books/dune/title", `"Dune"`)
	sessions := newFakeSessions(newFakeSession())
	client := newTestClient(t, db, sessions)
	recorder := newSnapshotRecorder()

	require.NoError(t, client.Reference("books/dune/title").On(realtime.EventKindValue, recorder.handle))
	assert.Equal(t, "Dune", recorder.next(t).Value())

	session := sessions.waitOpened(t)
	db.drop("books/dune/title")
	db.put("books", `"replaced"`)
	session.notify("books", "INSERT")

	assert.Nil(t, recorder.next(t).Value())
}

func Test_Listener_ChildEvents(t *testing.T) {
	// arrange
	db := newFakeDB()
	db.put("books/10", `"ten"`)
	db.put("books/2", `"two"`)
	sessions := newFakeSessions(newFakeSession())
	client := newTestClient(t, db, sessions)

	added, changed, removed := newSnapshotRecorder(), newSnapshotRecorder(), newSnapshotRecorder()
	ref := client.Reference("books")

	// act
	require.NoError(t, ref.On(realtime.EventKindChildAdded, added.handle))
	require.NoError(t, ref.On(realtime.EventKindChildChanged, changed.handle))
	require.NoError(t, ref.On(realtime.EventKindChildRemoved, removed.handle))

	// assert
	first := added.next(t)
	assert.Equal(t, "2", first.Key())
	assert.Equal(t, "two", first.Value())
	assert.Equal(t, "10", added.next(t).Key())

	session := sessions.waitOpened(t)

	db.put("books/3", `"three"`)
	session.notify("books/3", "INSERT")
	third := added.next(t)
	assert.Equal(t, "3", third.Key())
	assert.Equal(t, "three", third.Value())

	db.put("books/2", `"TWO"`)
	session.notify("books/2", "UPDATE")
	updated := changed.next(t)
	assert.Equal(t, "2", updated.Key())
	assert.Equal(t, "TWO", updated.Value())

	db.drop("books/10")
	session.notify("books/10", "DELETE")
	gone := removed.next(t)
	assert.Equal(t, "10", gone.Key())
	assert.Equal(t, "ten", gone.Value())

	added.assertQuiet(t)
	changed.assertQuiet(t)
	removed.assertQuiet(t)
}

func Test_Listener_LimitToLast(t *testing.T) {
	db := newFakeDB()
	db.put("messages/1", `"a"`)
	db.put("messages/2", `"b"`)
	db.put("messages/3", `"c"`)
	sessions := newFakeSessions(newFakeSession())
	client := newTestClient(t, db, sessions)
	recorder := newSnapshotRecorder()

	require.NoError(t, client.Reference("messages").OrderByKey().LimitToLast(2).On(realtime.EventKindValue, recorder.handle))
	assert.Equal(t, map[string]any{"2": "b", "3": "c"}, recorder.next(t).Value())

	session := sessions.waitOpened(t)
	db.put("messages/4", `"d"`)
	session.notify("messages/4", "INSERT")

	assert.Equal(t, map[string]any{"3": "c", "4": "d"}, recorder.next(t).Value())
}

func Test_Listener_LimitToFirst_ChildRemovedWhenLeavingWindow(t *testing.T) {
	db := newFakeDB()
	db.put("messages/2", `"b"`)
	db.put("messages/3", `"c"`)
	sessions := newFakeSessions(newFakeSession())
	client := newTestClient(t, db, sessions)
	added, removed := newSnapshotRecorder(), newSnapshotRecorder()

	ref := client.Reference("messages").LimitToFirst(2)
	require.NoError(t, ref.On(realtime.EventKindChildAdded, added.handle))
	require.NoError(t, ref.On(realtime.EventKindChildRemoved, removed.handle))
	assert.Equal(t, "2", added.next(t).Key())
	assert.Equal(t, "3", added.next(t).Key())

	session := sessions.waitOpened(t)
	db.put("messages/1", `"a"`)
	session.notify("messages/1", "INSERT")

	assert.Equal(t, "1", added.next(t).Key())
	assert.Equal(t, "3", removed.next(t).Key())
}

func Test_Reference_On_Validation(t *testing.T) {
	client := newTestClient(t, newFakeDB(), newFakeSessions())
	handler := func(realtime.Snapshot) {}

	assert.ErrorIs(t, client.Reference("books").On(realtime.EventKindChildMoved, handler), ErrUnsupportedEventKind)
	assert.ErrorIs(t, client.Reference("books").On("bogus", handler), ErrUnsupportedEventKind)
	assert.ErrorIs(t, client.Reference("books").On(realtime.EventKindValue, nil), ErrNilHandler)
	assert.ErrorIs(t, client.Reference("books").LimitToFirst(0).On(realtime.EventKindValue, handler), ErrInvalidLimit)
	assert.ErrorIs(t, client.Reference("books").LimitToLast(-1).On(realtime.EventKindValue, handler), ErrInvalidLimit)
	assert.Equal(t, 0, client.hub.listenerCount())
}

func Test_Reference_Off_StopsDelivery(t *testing.T) {
	db := newFakeDB()
	db.put("books", `1`)
	sessions := newFakeSessions(newFakeSession())
	client := newTestClient(t, db, sessions)
	recorder := newSnapshotRecorder()
	ref := client.Reference("books")

	require.NoError(t, ref.On(realtime.EventKindValue, recorder.handle))
	recorder.next(t)
	session := sessions.waitOpened(t)

	ref.Off(realtime.EventKindValue)
	ref.Off(realtime.EventKindValue)

	db.put("books", `2`)
	session.notify("books", "UPDATE")

	recorder.assertQuiet(t)
	assert.Equal(t, 0, client.hub.listenerCount())
}

func Test_Reference_Off_FromInsideHandler(t *testing.T) {
	db := newFakeDB()
	db.put("books", `1`)
	client := newTestClient(t, db, newFakeSessions(newFakeSession()))
	ref := client.Reference("books")
	delivered := make(chan struct{}, 4)

	require.NoError(t, ref.On(realtime.EventKindValue, func(realtime.Snapshot) {
		ref.Off(realtime.EventKindValue)
		delivered <- struct{}{}
	}))

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "handler was not called")
	}

	assert.Eventually(t, func() bool { return client.hub.listenerCount() == 0 }, time.Second, 5*time.Millisecond)
}

func Test_Reference_On_ReplacesHandlerOfSameKind(t *testing.T) {
	db := newFakeDB()
	db.put("books", `1`)
	sessions := newFakeSessions(newFakeSession())
	client := newTestClient(t, db, sessions)
	first, second := newSnapshotRecorder(), newSnapshotRecorder()
	ref := client.Reference("books")

	require.NoError(t, ref.On(realtime.EventKindValue, first.handle))
	first.next(t)
	require.NoError(t, ref.On(realtime.EventKindValue, second.handle))
	second.next(t)

	session := sessions.waitOpened(t)
	db.put("books", `2`)
	session.notify("books", "UPDATE")

	assert.Equal(t, float64(2), second.next(t).Value())
	first.assertQuiet(t)
	assert.Equal(t, 1, client.hub.listenerCount())
}

func Test_Hub_ResyncsAfterReconnectedNotification(t *testing.T) {
	db := newFakeDB()
	db.put("books", `1`)
	sessions := newFakeSessions(newFakeSession())
	client := newTestClient(t, db, sessions)
	recorder := newSnapshotRecorder()

	require.NoError(t, client.Reference("books").On(realtime.EventKindValue, recorder.handle))
	recorder.next(t)
	session := sessions.waitOpened(t)

	db.put("books", `2`)
	session.notifications <- adapters.Notification{Reconnected: true}

	assert.Equal(t, float64(2), recorder.next(t).Value())
}

func Test_Hub_ResyncsOnMalformedPayload(t *testing.T) {
	db := newFakeDB()
	db.put("books", `1`)
	sessions := newFakeSessions(newFakeSession())
	logger := testdoubles.NewContextualLoggerSpy(true)
	client := newTestClient(t, db, sessions, WithContextualLogger(logger))
	recorder := newSnapshotRecorder()

	require.NoError(t, client.Reference("books").On(realtime.EventKindValue, recorder.handle))
	recorder.next(t)
	session := sessions.waitOpened(t)

	db.put("books", `2`)
	session.notifications <- adapters.Notification{Payload: "not json"}

	assert.Equal(t, float64(2), recorder.next(t).Value())
	assert.True(t, logger.HasRecord("warn", logMsgMalformedPayload))
}

func Test_Hub_ReconnectsAndResyncsAfterSessionLoss(t *testing.T) {
	// arrange
	db := newFakeDB()
	db.put("books", `1`)
	firstSession, secondSession := newFakeSession(), newFakeSession()
	sessions := newFakeSessions(firstSession, secondSession)
	metrics := testdoubles.NewMetricsCollectorSpy(true)
	client := newTestClient(t, db, sessions, WithMetrics(metrics))
	recorder := newSnapshotRecorder()

	require.NoError(t, client.Reference("books").On(realtime.EventKindValue, recorder.handle))
	recorder.next(t)
	assert.Same(t, firstSession, sessions.waitOpened(t))

	// act
	db.put("books", `2`)
	firstSession.failures <- errors.New("connection reset")

	// assert
	assert.Same(t, secondSession, sessions.waitOpened(t))
	assert.Equal(t, float64(2), recorder.next(t).Value())
	assert.Eventually(t, firstSession.isClosed, time.Second, 5*time.Millisecond)
	assert.True(t, metrics.HasCounterRecordForMetric(metricListenerReconnect).Assert())
	assert.Equal(t, []string{"realtime_values_changed"}, secondSession.channels)
}

func Test_Hub_KeepsRetryingWhileNoSessionCanBeOpened(t *testing.T) {
	db := newFakeDB()
	sessions := newFakeSessions()
	metrics := testdoubles.NewMetricsCollectorSpy(true)
	client := newTestClient(t, db, sessions, WithMetrics(metrics))
	recorder := newSnapshotRecorder()

	require.NoError(t, client.Reference("books").On(realtime.EventKindValue, recorder.handle))
	recorder.next(t)

	assert.Eventually(t, func() bool {
		return metrics.HasCounterRecordForMetric(metricListenerReconnect).Count() >= 3
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, client.Close())
}

func Test_Listener_RetriesFailedSyncs(t *testing.T) {
	db := newFakeDB()
	db.put("books", `1`)
	db.failQueriesWith(assert.AnError)
	metrics := testdoubles.NewMetricsCollectorSpy(true)
	client := newTestClient(t, db, newFakeSessions(newFakeSession()), WithMetrics(metrics))
	recorder := newSnapshotRecorder()

	require.NoError(t, client.Reference("books").On(realtime.EventKindValue, recorder.handle))

	assert.Eventually(t, func() bool {
		return metrics.HasCounterRecordForMetric(metricSyncErrors).Count() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	db.failQueriesWith(nil)

	assert.Equal(t, float64(1), recorder.next(t).Value())
}

func Test_Client_Close_StopsListenersAndSession(t *testing.T) {
	db := newFakeDB()
	db.put("books", `1`)
	session := newFakeSession()
	sessions := newFakeSessions(session)
	client := newTestClient(t, db, sessions)
	recorder := newSnapshotRecorder()

	require.NoError(t, client.Reference("books").On(realtime.EventKindValue, recorder.handle))
	recorder.next(t)
	sessions.waitOpened(t)

	require.NoError(t, client.Close())

	assert.True(t, session.isClosed())
	assert.Equal(t, 0, client.hub.listenerCount())

	queries := db.queryCount()
	db.put("books", `2`)
	recorder.assertQuiet(t)
	assert.Equal(t, queries, db.queryCount())
}
