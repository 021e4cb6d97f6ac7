package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Reduce collapses raw event-log rows into the current state per task: for
// each task id the event with the highest insertion order wins, so timestamp
// collisions cannot resurrect an older state. Tasks whose current state is
// Deleted are dropped. The result holds exactly one row per surviving task,
// ordered by task creation time with insertion order as tie-break.
func Reduce(rows []TaskRow) []TaskRow {
	latest := make(map[uuid.UUID]TaskRow, len(rows))
	for _, row := range rows {
		current, ok := latest[row.TaskID]
		if !ok || row.EventSeq > current.EventSeq {
			latest[row.TaskID] = row
		}
	}

	out := make([]TaskRow, 0, len(latest))
	for _, row := range latest {
		if row.Kind == KindDeleted {
			continue
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].TaskSeq < out[j].TaskSeq
	})
	return out
}

// Group splits already-reduced rows into the checked/unchecked sequences of
// a view snapshot for the given day. Content is passed through render so the
// snapshot is ready for display.
func Group(rows []TaskRow, day time.Time, render func(string) string) ViewSnapshot {
	snapshot := ViewSnapshot{
		Date:      day.Format(DateLayout),
		Checked:   []ViewItem{},
		Unchecked: []ViewItem{},
	}
	for _, row := range rows {
		item := ViewItem{TaskID: row.TaskID, Content: render(row.Content)}
		if row.Kind == KindChecked {
			snapshot.Checked = append(snapshot.Checked, item)
		} else {
			snapshot.Unchecked = append(snapshot.Unchecked, item)
		}
	}
	return snapshot
}
