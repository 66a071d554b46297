package notify

import (
	"context"
	"sync"

	"novacore.dev/internal/obs"
)

// MaxEntries caps the in-memory feed at the most recent notifications.
const MaxEntries = 20

// Feed is the bounded, newest-first in-memory notification collection.
// It is owned by one Center; other components only read it, either via
// List/Unread or through Subscribe.
type Feed struct {
	mu      sync.RWMutex
	entries []Notification
	unread  int
	subs    map[int]chan Notification
	next    int
}

// NewFeed returns an empty feed.
func NewFeed() *Feed {
	return &Feed{subs: make(map[int]chan Notification)}
}

// Push prepends a received notification, truncates to MaxEntries and
// increments the unread counter by exactly one. The increment is
// intentionally independent of the payload's read flag: the push event
// itself is what the counter tracks.
func (f *Feed) Push(n Notification) {
	f.mu.Lock()
	f.entries = append([]Notification{n}, f.entries...)
	if len(f.entries) > MaxEntries {
		f.entries = f.entries[:MaxEntries]
	}
	f.unread++
	f.publishUnread()
	for _, ch := range f.subs {
		select {
		case ch <- n:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
	f.mu.Unlock()
}

// Replace swaps in an authoritative snapshot (initial load or
// reconciliation). The list is assumed newest-first; unread is floored
// at zero.
func (f *Feed) Replace(list []Notification, unread int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(list) > MaxEntries {
		list = list[:MaxEntries]
	}
	f.entries = append([]Notification(nil), list...)
	if unread < 0 {
		unread = 0
	}
	f.unread = unread
	f.publishUnread()
}

// MarkRead sets the read flag on the matching entry and decrements the
// unread counter, floored at zero. Idempotent: an already-read entry
// leaves the counter untouched. Returns whether the entry transitioned.
func (f *Feed) MarkRead(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.entries {
		if f.entries[i].ID != id {
			continue
		}
		if f.entries[i].Read {
			return false
		}
		f.entries[i].Read = true
		f.decUnread()
		return true
	}
	return false
}

// MarkAllRead sets every entry read and zeroes the counter.
func (f *Feed) MarkAllRead() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.entries {
		f.entries[i].Read = true
	}
	f.unread = 0
	f.publishUnread()
}

// Delete removes the matching entry. Deleting an unread entry decrements
// the counter, floored at zero. Returns whether an entry was removed.
func (f *Feed) Delete(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.entries {
		if f.entries[i].ID != id {
			continue
		}
		wasUnread := !f.entries[i].Read
		f.entries = append(f.entries[:i], f.entries[i+1:]...)
		if wasUnread {
			f.decUnread()
		}
		return true
	}
	return false
}

// List returns a copy of the feed, newest first.
func (f *Feed) List() []Notification {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]Notification(nil), f.entries...)
}

// Unread returns the current unread counter.
func (f *Feed) Unread() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.unread
}

// Subscribe registers a subscriber that receives every pushed
// notification. The channel is closed when the context ends.
func (f *Feed) Subscribe(ctx context.Context) <-chan Notification {
	ch := make(chan Notification, 16)

	f.mu.Lock()
	id := f.next
	f.next++
	f.subs[id] = ch
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.subs, id)
		close(ch)
		f.mu.Unlock()
	}()

	return ch
}

func (f *Feed) decUnread() {
	if f.unread > 0 {
		f.unread--
	}
	f.publishUnread()
}

func (f *Feed) publishUnread() {
	obs.FeedUnread.Set(float64(f.unread))
}
