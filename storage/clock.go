package storage

import (
	"sync/atomic"
	"time"
)

var lastOccurredAt int64

// nextOccurredAt returns a strictly increasing wall-clock timestamp so two
// events appended by this process never share an occurred_at value. The
// authoritative ordering key stays the event row's insertion order; this
// only keeps the recorded timestamps collision-free.
func nextOccurredAt() time.Time {
	for {
		now := time.Now().UnixNano()
		last := atomic.LoadInt64(&lastOccurredAt)
		if now <= last {
			now = last + 1
		}
		if atomic.CompareAndSwapInt64(&lastOccurredAt, last, now) {
			return time.Unix(0, now).UTC()
		}
	}
}
