package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestParseEventKind(t *testing.T) {
	valid := []string{"Unchecked", "Checked", "Deleted"}
	for _, raw := range valid {
		kind, err := ParseEventKind(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if string(kind) != raw {
			t.Fatalf("expected kind %q, got %q", raw, kind)
		}
	}

	for _, raw := range []string{"", "checked", "Done", "DELETED"} {
		if _, err := ParseEventKind(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestReduceLastInsertedEventWins(t *testing.T) {
	taskID := uuid.New()
	created := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	sameInstant := created.Add(time.Minute)

	// Both transitions carry the same occurred_at; insertion order must
	// decide which one is current.
	rows := []TaskRow{
		{TaskID: taskID, TaskSeq: 1, Content: "a", CreatedAt: created, EventSeq: 1, Kind: KindUnchecked, OccurredAt: created},
		{TaskID: taskID, TaskSeq: 1, Content: "a", CreatedAt: created, EventSeq: 3, Kind: KindUnchecked, OccurredAt: sameInstant},
		{TaskID: taskID, TaskSeq: 1, Content: "a", CreatedAt: created, EventSeq: 2, Kind: KindChecked, OccurredAt: sameInstant},
	}

	out := Reduce(rows)
	if len(out) != 1 {
		t.Fatalf("expected one row per task, got %d", len(out))
	}
	if out[0].Kind != KindUnchecked {
		t.Fatalf("expected last-inserted event to win, got %q", out[0].Kind)
	}
	if out[0].EventSeq != 3 {
		t.Fatalf("expected event seq 3, got %d", out[0].EventSeq)
	}
}

func TestReduceExcludesDeleted(t *testing.T) {
	kept := uuid.New()
	deleted := uuid.New()
	created := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)

	rows := []TaskRow{
		{TaskID: kept, TaskSeq: 1, CreatedAt: created, EventSeq: 1, Kind: KindUnchecked},
		{TaskID: deleted, TaskSeq: 2, CreatedAt: created.Add(time.Second), EventSeq: 2, Kind: KindUnchecked},
		{TaskID: deleted, TaskSeq: 2, CreatedAt: created.Add(time.Second), EventSeq: 3, Kind: KindDeleted},
	}

	out := Reduce(rows)
	if len(out) != 1 {
		t.Fatalf("expected deleted task to be dropped, got %d rows", len(out))
	}
	if out[0].TaskID != kept {
		t.Fatalf("unexpected surviving task: %s", out[0].TaskID)
	}
}

func TestReduceEventsAfterDeletedStayInvisible(t *testing.T) {
	taskID := uuid.New()
	created := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)

	// The store accepts appends after Deleted; listings must still treat
	// the task by its latest event only.
	rows := []TaskRow{
		{TaskID: taskID, TaskSeq: 1, CreatedAt: created, EventSeq: 1, Kind: KindUnchecked},
		{TaskID: taskID, TaskSeq: 1, CreatedAt: created, EventSeq: 2, Kind: KindDeleted},
		{TaskID: taskID, TaskSeq: 1, CreatedAt: created, EventSeq: 3, Kind: KindChecked},
	}

	out := Reduce(rows)
	if len(out) != 1 || out[0].Kind != KindChecked {
		t.Fatalf("expected task resurrected as Checked, got %#v", out)
	}
}

func TestReduceOrdersByCreation(t *testing.T) {
	base := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	first := uuid.New()
	second := uuid.New()
	third := uuid.New()

	rows := []TaskRow{
		{TaskID: third, TaskSeq: 3, CreatedAt: base.Add(2 * time.Second), EventSeq: 5, Kind: KindUnchecked},
		{TaskID: first, TaskSeq: 1, CreatedAt: base, EventSeq: 1, Kind: KindUnchecked},
		// Same creation instant as first; insertion order breaks the tie.
		{TaskID: second, TaskSeq: 2, CreatedAt: base, EventSeq: 3, Kind: KindChecked},
	}

	out := Reduce(rows)
	if len(out) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(out))
	}
	want := []uuid.UUID{first, second, third}
	for i, id := range want {
		if out[i].TaskID != id {
			t.Fatalf("row %d: expected %s, got %s", i, id, out[i].TaskID)
		}
	}
}

func TestGroupSplitsAndRenders(t *testing.T) {
	day := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	checked := uuid.New()
	unchecked := uuid.New()

	rows := []TaskRow{
		{TaskID: checked, TaskSeq: 1, Content: "done thing", Kind: KindChecked},
		{TaskID: unchecked, TaskSeq: 2, Content: "open thing", Kind: KindUnchecked},
	}

	snapshot := Group(rows, day, func(s string) string { return "<" + s + ">" })

	if snapshot.Date != "2026-08-31" {
		t.Fatalf("unexpected snapshot date: %s", snapshot.Date)
	}
	if len(snapshot.Checked) != 1 || snapshot.Checked[0].TaskID != checked {
		t.Fatalf("unexpected checked group: %#v", snapshot.Checked)
	}
	if snapshot.Checked[0].Content != "<done thing>" {
		t.Fatalf("expected rendered content, got %q", snapshot.Checked[0].Content)
	}
	if len(snapshot.Unchecked) != 1 || snapshot.Unchecked[0].TaskID != unchecked {
		t.Fatalf("unexpected unchecked group: %#v", snapshot.Unchecked)
	}
}

func TestGroupEmptyInputHasEmptyGroups(t *testing.T) {
	snapshot := Group(nil, time.Now(), func(s string) string { return s })
	if snapshot.Checked == nil || snapshot.Unchecked == nil {
		t.Fatal("expected non-nil groups for an empty snapshot")
	}
	if len(snapshot.Checked) != 0 || len(snapshot.Unchecked) != 0 {
		t.Fatalf("expected empty groups, got %#v", snapshot)
	}
}
