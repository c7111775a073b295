package client

import (
	"sort"
	"sync"

	"github.com/surajs41/RideEasy-Rental/internal/models"
)

// Inbox is the merged notification view of one client session. Push
// deliveries, catch-up fetches and manual refreshes all go through Merge,
// which is idempotent and order-independent.
type Inbox struct {
	mu     sync.RWMutex
	byID   map[string]models.Notification
	sorted []models.Notification
	unread int
}

func NewInbox() *Inbox {
	return &Inbox{byID: make(map[string]models.Notification)}
}

// Merge adds notifications not seen before and returns how many were new.
// A known id only ever gains is_read, it is never un-read.
func (i *Inbox) Merge(notifications ...models.Notification) int {
	i.mu.Lock()
	defer i.mu.Unlock()

	added := 0
	changed := false
	for _, n := range notifications {
		existing, ok := i.byID[n.ID]
		if !ok {
			i.byID[n.ID] = n
			added++
			changed = true
			continue
		}
		if n.IsRead && !existing.IsRead {
			existing.IsRead = true
			i.byID[n.ID] = existing
			changed = true
		}
	}

	if changed {
		i.rebuild()
	}
	return added
}

// MarkRead flags id as read locally. It reports false for unknown ids.
func (i *Inbox) MarkRead(id string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	n, ok := i.byID[id]
	if !ok {
		return false
	}
	if !n.IsRead {
		n.IsRead = true
		i.byID[id] = n
		i.rebuild()
	}
	return true
}

// List returns a copy, newest first.
func (i *Inbox) List() []models.Notification {
	i.mu.RLock()
	defer i.mu.RUnlock()

	out := make([]models.Notification, len(i.sorted))
	copy(out, i.sorted)
	return out
}

func (i *Inbox) Get(id string) (models.Notification, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	n, ok := i.byID[id]
	return n, ok
}

func (i *Inbox) UnreadCount() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.unread
}

func (i *Inbox) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.byID)
}

// arrival order means nothing: racing producers may push out of persist order
func (i *Inbox) rebuild() {
	i.sorted = i.sorted[:0]
	i.unread = 0
	for _, n := range i.byID {
		i.sorted = append(i.sorted, n)
		if !n.IsRead {
			i.unread++
		}
	}
	sort.Slice(i.sorted, func(a, b int) bool {
		na, nb := i.sorted[a], i.sorted[b]
		if !na.CreatedAt.Equal(nb.CreatedAt) {
			return na.CreatedAt.After(nb.CreatedAt)
		}
		return na.ID > nb.ID
	})
}
