package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"novacore.dev/internal/ids"
)

// Backend is the notification REST boundary the center acknowledges
// local mutations against and reconciles from.
type Backend interface {
	ListNotifications(ctx context.Context) ([]Notification, error)
	UnreadCount(ctx context.Context) (int, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) error
	DeleteNotification(ctx context.Context, id string) error
}

type commandKind int

const (
	cmdMarkRead commandKind = iota
	cmdMarkAllRead
	cmdDelete
)

// command is one queued backend acknowledgment for an optimistic local
// mutation. Failures are logged and the local state is kept.
type command struct {
	id             string
	kind           commandKind
	notificationID string
}

const (
	ackQueueSize      = 64
	ackTimeout        = 10 * time.Second
	defaultReconcile  = 2 * time.Minute
	initialLoadWindow = 15 * time.Second
)

// Center owns the notification surface for one identity session: the
// bounded feed, the realtime channel, the optimistic acknowledgment
// queue and the periodic reconciliation against the backend.
type Center struct {
	backend Backend
	feed    *Feed
	channel *Channel
	alerter Alerter
	alerts  *AlertManager
	log     *zap.SugaredLogger

	reconcileEvery time.Duration
	limiter        *rate.Limiter
	channelOpts    []ChannelOption

	acks   chan command
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Local mutations whose backend acknowledgment has not succeeded
	// yet. Reconciliation re-applies these onto every authoritative
	// snapshot so a slow or failed acknowledgment cannot resurrect an
	// already-dismissed notification.
	pendingMu      sync.Mutex
	pendingReads   map[string]struct{}
	pendingDeletes map[string]struct{}
	pendingAllRead bool

	startOnce sync.Once
	stopOnce  sync.Once
	stopped   atomic.Bool
}

// CenterOption configures a Center.
type CenterOption func(*Center)

// WithCenterLogger sets the logger for the center and its channel.
func WithCenterLogger(log *zap.SugaredLogger) CenterOption {
	return func(c *Center) {
		if log != nil {
			c.log = log.Named("notify")
		}
	}
}

// WithAlerter enables native alerting through the given facility.
func WithAlerter(a Alerter) CenterOption {
	return func(c *Center) {
		c.alerter = a
	}
}

// WithReconcileInterval overrides the reconciliation fetch period.
func WithReconcileInterval(d time.Duration) CenterOption {
	return func(c *Center) {
		if d > 0 {
			c.reconcileEvery = d
		}
	}
}

// WithChannelOptions forwards options to the underlying channel.
func WithChannelOptions(opts ...ChannelOption) CenterOption {
	return func(c *Center) {
		c.channelOpts = append(c.channelOpts, opts...)
	}
}

// NewCenter builds an idle center over the backend and transport;
// Start brings it up.
func NewCenter(backend Backend, dial Dialer, opts ...CenterOption) *Center {
	c := &Center{
		backend:        backend,
		feed:           NewFeed(),
		log:            zap.NewNop().Sugar(),
		reconcileEvery: defaultReconcile,
		acks:           make(chan command, ackQueueSize),
		pendingReads:   make(map[string]struct{}),
		pendingDeletes: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.limiter = rate.NewLimiter(rate.Every(c.reconcileEvery), 1)
	if c.alerter != nil {
		c.alerts = NewAlertManager(c.alerter, c.log)
	}

	chOpts := []ChannelOption{WithChannelLogger(c.log)}
	if c.alerts != nil {
		chOpts = append(chOpts, WithAlerts(c.alerts))
	}
	chOpts = append(chOpts, c.channelOpts...)
	c.channel = NewChannel(dial, c.feed, chOpts...)
	return c
}

// Start brings the center up: opportunistic alert permission request,
// initial load, realtime channel, acknowledgment worker and
// reconciliation loop. Idempotent, and a no-op once Stop has run: the
// lifecycle is start-once, stop-once.
func (c *Center) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		if c.stopped.Load() {
			return
		}
		runCtx, cancel := context.WithCancel(ctx)
		c.cancel = cancel

		if c.alerts != nil {
			c.alerts.RequestPermissionOnce(runCtx)
		}

		c.wg.Add(4)
		go func() {
			defer c.wg.Done()
			c.initialLoad(runCtx)
		}()
		go func() {
			defer c.wg.Done()
			c.channel.Run(runCtx)
		}()
		go func() {
			defer c.wg.Done()
			c.ackLoop(runCtx)
		}()
		go func() {
			defer c.wg.Done()
			c.reconcileLoop(runCtx)
		}()
	})
}

// Stop cancels all center work and waits for it to drain. Any pending
// reconnect timer is cancelled; results of in-flight fetches arriving
// after Stop are discarded.
func (c *Center) Stop() {
	c.stopOnce.Do(func() {
		c.stopped.Store(true)
		if c.cancel != nil {
			c.cancel()
		}
		c.wg.Wait()
	})
}

// Feed exposes the read-only view of the owned feed.
func (c *Center) Feed() *Feed { return c.feed }

// Channel exposes the connection state for UI display.
func (c *Center) Channel() *Channel { return c.channel }

// MarkAsRead marks the entry read locally and enqueues the backend
// acknowledgment. The local mutation is kept even if the backend call
// later fails: a transient network fault must not resurrect an
// already-dismissed notification.
func (c *Center) MarkAsRead(id string) {
	c.feed.MarkRead(id)
	c.pendingMu.Lock()
	c.pendingReads[id] = struct{}{}
	c.pendingMu.Unlock()
	c.enqueue(command{id: ids.New(), kind: cmdMarkRead, notificationID: id})
}

// MarkAllAsRead marks every entry read and zeroes the counter, then
// acknowledges in the background with the same optimistic policy.
func (c *Center) MarkAllAsRead() {
	c.feed.MarkAllRead()
	c.pendingMu.Lock()
	c.pendingAllRead = true
	c.pendingMu.Unlock()
	c.enqueue(command{id: ids.New(), kind: cmdMarkAllRead})
}

// DeleteNotification removes the entry locally and acknowledges in the
// background with the same optimistic policy.
func (c *Center) DeleteNotification(id string) {
	c.feed.Delete(id)
	c.pendingMu.Lock()
	c.pendingDeletes[id] = struct{}{}
	c.pendingMu.Unlock()
	c.enqueue(command{id: ids.New(), kind: cmdDelete, notificationID: id})
}

// RequestAlertPermission is the explicit settings action for asking the
// host again.
func (c *Center) RequestAlertPermission(ctx context.Context) {
	if c.alerts != nil {
		c.alerts.RequestPermission(ctx)
	}
}

func (c *Center) enqueue(cmd command) {
	select {
	case c.acks <- cmd:
	default:
		c.log.Warnw("ack queue full, dropping acknowledgment",
			"command", cmd.id, "notification", cmd.notificationID)
	}
}

// initialLoad fetches the authoritative list and unread count in
// parallel. If either fails the feed is seeded with the fixed fallback
// list and the unread count computed locally, so the surface is never
// empty or broken.
func (c *Center) initialLoad(ctx context.Context) {
	loadCtx, cancel := context.WithTimeout(ctx, initialLoadWindow)
	defer cancel()

	var (
		wg       sync.WaitGroup
		list     []Notification
		count    int
		listErr  error
		countErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		list, listErr = c.backend.ListNotifications(loadCtx)
	}()
	go func() {
		defer wg.Done()
		count, countErr = c.backend.UnreadCount(loadCtx)
	}()
	wg.Wait()

	if ctx.Err() != nil {
		// Torn down mid-load; never apply to a dead surface.
		return
	}

	if listErr != nil || countErr != nil {
		c.log.Warnw("initial notification load failed, seeding fallback",
			"list_err", listErr, "count_err", countErr)
		fallback := fallbackNotifications()
		unread := 0
		for _, n := range fallback {
			if !n.Read {
				unread++
			}
		}
		c.feed.Replace(fallback, unread)
		return
	}
	list, count = c.overlayPending(list, count)
	c.feed.Replace(list, count)
}

func (c *Center) ackLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-c.acks:
			c.acknowledge(ctx, cmd)
		}
	}
}

func (c *Center) acknowledge(ctx context.Context, cmd command) {
	ackCtx, cancel := context.WithTimeout(ctx, ackTimeout)
	defer cancel()

	var err error
	switch cmd.kind {
	case cmdMarkRead:
		err = c.backend.MarkRead(ackCtx, cmd.notificationID)
	case cmdMarkAllRead:
		err = c.backend.MarkAllRead(ackCtx)
	case cmdDelete:
		err = c.backend.DeleteNotification(ackCtx, cmd.notificationID)
	}
	if err != nil {
		// Optimistic policy: keep the local state. The mutation stays
		// pending, so reconciliation keeps re-applying it.
		c.log.Warnw("acknowledgment failed, keeping local state",
			"command", cmd.id, "notification", cmd.notificationID, "err", err)
		return
	}
	c.clearPending(cmd)
}

func (c *Center) clearPending(cmd command) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	switch cmd.kind {
	case cmdMarkRead:
		delete(c.pendingReads, cmd.notificationID)
	case cmdMarkAllRead:
		c.pendingAllRead = false
	case cmdDelete:
		delete(c.pendingDeletes, cmd.notificationID)
	}
}

// overlayPending re-applies unacknowledged local mutations onto an
// authoritative snapshot before it replaces the feed. The server is
// only trusted for an entry once its acknowledgment has landed.
func (c *Center) overlayPending(list []Notification, unread int) ([]Notification, int) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	if len(c.pendingReads) == 0 && len(c.pendingDeletes) == 0 && !c.pendingAllRead {
		return list, unread
	}

	out := make([]Notification, 0, len(list))
	for _, n := range list {
		if _, ok := c.pendingDeletes[n.ID]; ok {
			if !n.Read {
				unread--
			}
			continue
		}
		_, markedRead := c.pendingReads[n.ID]
		if (markedRead || c.pendingAllRead) && !n.Read {
			n.Read = true
			unread--
		}
		out = append(out, n)
	}
	if c.pendingAllRead || unread < 0 {
		unread = 0
	}
	return out, unread
}

// reconcileLoop periodically refetches the authoritative feed so local
// optimistic state cannot diverge forever. The limiter bounds fetch
// frequency regardless of ticker adjustments.
func (c *Center) reconcileLoop(ctx context.Context) {
	ticker := time.NewTicker(c.reconcileEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.limiter.Wait(ctx); err != nil {
				return
			}
			c.reconcile(ctx)
		}
	}
}

func (c *Center) reconcile(ctx context.Context) {
	list, err := c.backend.ListNotifications(ctx)
	if err != nil {
		c.log.Debugw("reconcile list fetch failed", "err", err)
		return
	}
	count, err := c.backend.UnreadCount(ctx)
	if err != nil {
		c.log.Debugw("reconcile count fetch failed", "err", err)
		return
	}
	if ctx.Err() != nil {
		return
	}
	list, count = c.overlayPending(list, count)
	c.feed.Replace(list, count)
}

// fallbackNotifications is the fixed seed used when the initial load
// fails.
func fallbackNotifications() []Notification {
	now := time.Now().UTC()
	return []Notification{
		{
			ID:        "fallback-welcome",
			Title:     "Welcome to NovaCore",
			Message:   "Your notification feed will appear here.",
			Category:  CategorySystem,
			Priority:  PriorityNormal,
			CreatedAt: now,
		},
		{
			ID:        "fallback-offline",
			Title:     "Working offline",
			Message:   "We could not reach the notification service. Recent items will sync once the connection recovers.",
			Category:  CategorySystem,
			Priority:  PriorityNormal,
			CreatedAt: now,
			Read:      true,
		},
	}
}
