package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the civil-date format used for day-scoped listings and
// snapshot keys.
const DateLayout = "2006-01-02"

// EventKind is the state recorded by a single task event.
type EventKind string

const (
	KindUnchecked EventKind = "Unchecked"
	KindChecked   EventKind = "Checked"
	KindDeleted   EventKind = "Deleted"
)

// ParseEventKind validates a client-supplied state name.
func ParseEventKind(raw string) (EventKind, error) {
	switch kind := EventKind(raw); kind {
	case KindUnchecked, KindChecked, KindDeleted:
		return kind, nil
	}
	return "", fmt.Errorf("unknown event kind %q", raw)
}

// TaskRow is one task/event pair read from the event log. TaskSeq and
// EventSeq carry the storage insertion order of the task and event rows;
// EventSeq, not OccurredAt, decides which event is current.
type TaskRow struct {
	TaskID     uuid.UUID
	TaskSeq    int64
	Content    string
	CreatedAt  time.Time
	EventSeq   int64
	Kind       EventKind
	OccurredAt time.Time
}

// ViewItem is one rendered task in a view snapshot.
type ViewItem struct {
	TaskID  uuid.UUID `json:"id"`
	Content string    `json:"content"`
}

// ViewSnapshot is the grouped, rendering-ready representation of one
// account's current tasks for a single day. Snapshots are built whole and
// replaced whole; they are never patched in place.
type ViewSnapshot struct {
	Date      string     `json:"date"`
	Checked   []ViewItem `json:"checked"`
	Unchecked []ViewItem `json:"unchecked"`
}
