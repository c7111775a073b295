package client

import "time"

// Backoff doubles the reconnect delay from Min up to Max. Reset after a
// connection has synced.
type Backoff struct {
	Min time.Duration
	Max time.Duration

	next time.Duration
}

func DefaultBackoff() *Backoff {
	return &Backoff{Min: time.Second, Max: 30 * time.Second}
}

func (b *Backoff) Next() time.Duration {
	if b.next < b.Min {
		b.next = b.Min
	}
	d := b.next
	b.next *= 2
	if b.next > b.Max {
		b.next = b.Max
	}
	return d
}

func (b *Backoff) Reset() {
	b.next = 0
}
