package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeBackend struct {
	mu       sync.Mutex
	list     []Notification
	count    int
	listErr  error
	countErr error
	ackErr   error
	// holdList, when set, makes list fetches signal and then block until
	// the caller's context ends, so the result lands mid-teardown.
	holdList chan struct{}

	listCalls int
	markReads []string
	markAlls  int
	deletes   []string
}

func (b *fakeBackend) ListNotifications(ctx context.Context) ([]Notification, error) {
	b.mu.Lock()
	b.listCalls++
	hold := b.holdList
	err := b.listErr
	list := append([]Notification(nil), b.list...)
	b.mu.Unlock()

	if hold != nil {
		select {
		case hold <- struct{}{}:
		default:
		}
		<-ctx.Done()
	}
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (b *fakeBackend) UnreadCount(ctx context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.countErr != nil {
		return 0, b.countErr
	}
	return b.count, nil
}

func (b *fakeBackend) MarkRead(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.markReads = append(b.markReads, id)
	return b.ackErr
}

func (b *fakeBackend) MarkAllRead(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.markAlls++
	return b.ackErr
}

func (b *fakeBackend) DeleteNotification(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deletes = append(b.deletes, id)
	return b.ackErr
}

func (b *fakeBackend) markReadCalls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.markReads...)
}

func (b *fakeBackend) listCallCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listCalls
}

func newTestCenter(backend *fakeBackend) *Center {
	dialer := &scriptDialer{}
	return NewCenter(backend, dialer.dial,
		WithReconcileInterval(time.Hour),
		WithChannelOptions(WithReconnectRange(time.Hour, time.Hour)),
	)
}

func TestCenterInitialLoad(t *testing.T) {
	backend := &fakeBackend{
		list: []Notification{
			{ID: "n3", Title: "newest"},
			{ID: "n2", Title: "older", Read: true},
			{ID: "n1", Title: "oldest", Read: true},
		},
		count: 1,
	}
	center := newTestCenter(backend)
	center.Start(context.Background())
	defer center.Stop()

	eventually(t, func() bool { return len(center.Feed().List()) == 3 }, "initial list applied")
	if center.Feed().Unread() != 1 {
		t.Fatalf("authoritative unread count expected, got %d", center.Feed().Unread())
	}
}

func TestCenterInitialLoadFallback(t *testing.T) {
	backend := &fakeBackend{listErr: errors.New("service unavailable")}
	center := newTestCenter(backend)
	center.Start(context.Background())
	defer center.Stop()

	eventually(t, func() bool { return len(center.Feed().List()) == 2 }, "fallback list seeded")
	// The fallback unread count is computed locally, not trusted from a
	// partial result.
	if center.Feed().Unread() != 1 {
		t.Fatalf("expected locally computed unread of 1, got %d", center.Feed().Unread())
	}
}

func TestCenterOptimisticMarkReadSurvivesAckFailure(t *testing.T) {
	backend := &fakeBackend{
		list:   []Notification{{ID: "n1", Title: "x"}},
		count:  1,
		ackErr: errors.New("backend down"),
	}
	center := newTestCenter(backend)
	center.Start(context.Background())
	defer center.Stop()

	eventually(t, func() bool { return len(center.Feed().List()) == 1 }, "initial load")

	center.MarkAsRead("n1")

	if center.Feed().Unread() != 0 {
		t.Fatalf("local mutation applies immediately, unread=%d", center.Feed().Unread())
	}
	eventually(t, func() bool { return len(backend.markReadCalls()) == 1 }, "acknowledgment attempted")

	// The failed acknowledgment must not roll the local state back.
	time.Sleep(20 * time.Millisecond)
	list := center.Feed().List()
	if len(list) != 1 || !list[0].Read {
		t.Fatalf("optimistic state must be kept on ack failure: %+v", list)
	}
}

func TestCenterMarkAllAndDelete(t *testing.T) {
	backend := &fakeBackend{
		list:  []Notification{{ID: "n2"}, {ID: "n1"}},
		count: 2,
	}
	center := newTestCenter(backend)
	center.Start(context.Background())
	defer center.Stop()

	eventually(t, func() bool { return len(center.Feed().List()) == 2 }, "initial load")

	center.MarkAllAsRead()
	if center.Feed().Unread() != 0 {
		t.Fatalf("mark-all zeroes the counter, got %d", center.Feed().Unread())
	}
	eventually(t, func() bool {
		backend.mu.Lock()
		defer backend.mu.Unlock()
		return backend.markAlls == 1
	}, "mark-all acknowledged")

	center.DeleteNotification("n2")
	if got := len(center.Feed().List()); got != 1 {
		t.Fatalf("delete removes the entry, got %d", got)
	}
	eventually(t, func() bool {
		backend.mu.Lock()
		defer backend.mu.Unlock()
		return len(backend.deletes) == 1 && backend.deletes[0] == "n2"
	}, "delete acknowledged")
}

func TestReconcilePreservesUnacknowledgedMutations(t *testing.T) {
	backend := &fakeBackend{
		list:   []Notification{{ID: "n2", Title: "y"}, {ID: "n1", Title: "x"}},
		count:  2,
		ackErr: errors.New("backend down"),
	}
	dialer := &scriptDialer{}
	center := NewCenter(backend, dialer.dial,
		WithReconcileInterval(20*time.Millisecond),
		WithChannelOptions(WithReconnectRange(time.Hour, time.Hour)),
	)
	center.Start(context.Background())
	defer center.Stop()

	eventually(t, func() bool { return len(center.Feed().List()) == 2 }, "initial load")

	center.MarkAsRead("n1")
	center.DeleteNotification("n2")
	if center.Feed().Unread() != 0 {
		t.Fatalf("local mutations apply immediately, unread=%d", center.Feed().Unread())
	}

	// The backend never accepts the acknowledgments, so its snapshot
	// still carries both entries unread. Let at least two reconcile
	// cycles run past the initial load.
	start := backend.listCallCount()
	eventually(t, func() bool { return backend.listCallCount() >= start+2 }, "reconcile cycles ran")

	list := center.Feed().List()
	if len(list) != 1 || list[0].ID != "n1" {
		t.Fatalf("reconcile must not resurrect the deleted entry: %+v", list)
	}
	if !list[0].Read {
		t.Fatalf("reconcile must not resurrect the read entry as unread")
	}
	if center.Feed().Unread() != 0 {
		t.Fatalf("unread counter regressed to %d", center.Feed().Unread())
	}
}

func TestStopDiscardsLateInitialLoad(t *testing.T) {
	backend := &fakeBackend{
		list:     []Notification{{ID: "n1"}, {ID: "n2"}},
		count:    2,
		holdList: make(chan struct{}, 1),
	}
	center := newTestCenter(backend)
	center.Start(context.Background())

	select {
	case <-backend.holdList:
	case <-time.After(2 * time.Second):
		t.Fatalf("initial load never started")
	}
	// Teardown while the fetch is in flight; the result resolves during
	// Stop and must be discarded.
	center.Stop()

	if got := len(center.Feed().List()); got != 0 {
		t.Fatalf("late load result must not apply after teardown, got %d entries", got)
	}
	if center.Feed().Unread() != 0 {
		t.Fatalf("late unread count must not apply after teardown, got %d", center.Feed().Unread())
	}
}

func TestStartAfterStopIsNoOp(t *testing.T) {
	backend := &fakeBackend{list: []Notification{{ID: "n1"}}, count: 1}
	center := newTestCenter(backend)

	center.Stop()
	center.Start(context.Background())

	time.Sleep(20 * time.Millisecond)
	if backend.listCallCount() != 0 {
		t.Fatalf("stopped center must not start background work")
	}
	if state := center.Channel().State(); state != StateDisconnected {
		t.Fatalf("stopped center must stay disconnected, got %s", state)
	}
}

func TestCenterStopIsIdempotentAndStopsWork(t *testing.T) {
	backend := &fakeBackend{}
	center := newTestCenter(backend)
	center.Start(context.Background())

	center.Stop()
	center.Stop()

	if state := center.Channel().State(); state != StateDisconnected {
		t.Fatalf("expected disconnected channel after stop, got %s", state)
	}
}
