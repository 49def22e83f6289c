package postgresbackend

import (
	"context"
	"errors"
	"regexp"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/realtime-observable-go/postgresbackend/internal/adapters"
	"github.com/AntonStoeckl/realtime-observable-go/realtime"
)

var selectedPathPattern = regexp.MustCompile(`"path" = '((?:[^']|'')*)'`)

// fakeDB serves the select statements of the client from an in-memory table.
// Writes are recorded, not applied: tests change the table with put and drop.
type fakeDB struct {
	mu       sync.Mutex
	table    map[string]string
	execs    []string
	queries  int
	queryErr error
	execErr  error
}

func newFakeDB() *fakeDB {
	return &fakeDB{table: make(map[string]string)}
}

func (db *fakeDB) put(path, json string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.table[path] = json
}

func (db *fakeDB) drop(path string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.table, path)
}

func (db *fakeDB) failQueriesWith(err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.queryErr = err
}

func (db *fakeDB) queryCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.queries
}

func (db *fakeDB) executed() []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	return slices.Clone(db.execs)
}

func (db *fakeDB) Query(_ context.Context, query string) (adapters.DBRows, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.queries++
	if db.queryErr != nil {
		return nil, db.queryErr
	}

	path := ""
	if match := selectedPathPattern.FindStringSubmatch(query); match != nil {
		path = strings.ReplaceAll(match[1], "''", "'")
	}

	rows := &fakeRows{}
	for storedPath, json := range db.table {
		if storedPath == path || isDescendant(path, storedPath) {
			rows.rows = append(rows.rows, storedRow{path: storedPath, value: []byte(json)})
		}
	}

	slices.SortFunc(rows.rows, func(a, b storedRow) int { return strings.Compare(a.path, b.path) })

	return rows, nil
}

func (db *fakeDB) Exec(_ context.Context, query string) (adapters.DBResult, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.execs = append(db.execs, query)
	if db.execErr != nil {
		return nil, db.execErr
	}

	return fakeResult{}, nil
}

type fakeRows struct {
	rows []storedRow
	pos  int
}

func (r *fakeRows) Next() bool {
	r.pos++
	return r.pos <= len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.pos-1]
	*(dest[0].(*string)) = row.path
	*(dest[1].(*[]byte)) = row.value

	return nil
}

func (r *fakeRows) Err() error   { return nil }
func (r *fakeRows) Close() error { return nil }

type fakeResult struct{}

func (fakeResult) RowsAffected() (int64, error) { return 1, nil }

// fakeSession is a LISTEN session fed by the test through notify and reconnect.
type fakeSession struct {
	notifications chan adapters.Notification
	failures      chan error

	mu       sync.Mutex
	channels []string
	closed   bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		notifications: make(chan adapters.Notification, 16),
		failures:      make(chan error, 1),
	}
}

func (s *fakeSession) Listen(_ context.Context, channel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels = append(s.channels, channel)

	return nil
}

func (s *fakeSession) WaitForNotification(ctx context.Context) (adapters.Notification, error) {
	select {
	case n := <-s.notifications:
		return n, nil
	case err := <-s.failures:
		return adapters.Notification{}, err
	case <-ctx.Done():
		return adapters.Notification{}, ctx.Err()
	}
}

func (s *fakeSession) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true

	return nil
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSession) notify(path, op string) {
	s.notifications <- adapters.Notification{Payload: `{"path":"` + path + `","op":"` + op + `"}`}
}

// fakeSessions hands out the sessions of the test in order, failing while none is left.
type fakeSessions struct {
	mu       sync.Mutex
	sessions []*fakeSession
	opened   chan *fakeSession
	attempts int
}

func newFakeSessions(sessions ...*fakeSession) *fakeSessions {
	return &fakeSessions{sessions: sessions, opened: make(chan *fakeSession, len(sessions))}
}

var errNoSessionLeft = errors.New("no session left")

func (f *fakeSessions) factory(_ context.Context) (adapters.Listener, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.attempts++
	if len(f.sessions) == 0 {
		return nil, errNoSessionLeft
	}

	session := f.sessions[0]
	f.sessions = f.sessions[1:]
	f.opened <- session

	return session, nil
}

func (f *fakeSessions) waitOpened(t *testing.T) *fakeSession {
	t.Helper()

	select {
	case session := <-f.opened:
		return session
	case <-time.After(2 * time.Second):
		require.FailNow(t, "notification session was not opened in time")
		return nil
	}
}

func newTestClient(t *testing.T, db *fakeDB, sessions *fakeSessions, options ...Option) *Client {
	t.Helper()

	options = append([]Option{WithReconnectBackoff(time.Millisecond, 5*time.Millisecond)}, options...)
	client, err := newClient(db, sessions.factory, options...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client
}

// snapshotRecorder collects delivered snapshots and lets tests wait for them.
type snapshotRecorder struct {
	snapshots chan *Snapshot
}

func newSnapshotRecorder() *snapshotRecorder {
	return &snapshotRecorder{snapshots: make(chan *Snapshot, 64)}
}

func (r *snapshotRecorder) handle(snapshot realtime.Snapshot) {
	r.snapshots <- snapshot.(*Snapshot)
}

func (r *snapshotRecorder) next(t *testing.T) *Snapshot {
	t.Helper()

	select {
	case snapshot := <-r.snapshots:
		return snapshot
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no snapshot delivered in time")
		return nil
	}
}

func (r *snapshotRecorder) assertQuiet(t *testing.T) {
	t.Helper()

	select {
	case snapshot := <-r.snapshots:
		require.FailNow(t, "unexpected snapshot", "key %q value %v", snapshot.Key(), snapshot.Value())
	case <-time.After(50 * time.Millisecond):
	}
}
