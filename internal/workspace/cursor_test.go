package workspace

import "testing"

func TestCursorTableThreeStates(t *testing.T) {
	table := NewCursorTable()

	if status, _ := table.Status("projects"); status != CursorUnknown {
		t.Fatalf("expected unknown before any load, got %v", status)
	}
	if !table.CanLoadMore("projects") {
		t.Fatalf("expected unknown cursor to allow a first attempt")
	}

	token := "cursor-abc"
	table.Store("projects", &token)
	if status, got := table.Status("projects"); status != CursorToken || got != "cursor-abc" {
		t.Fatalf("expected stored token, got status=%v token=%q", status, got)
	}
	if !table.CanLoadMore("projects") {
		t.Fatalf("expected token cursor to allow more loads")
	}

	table.Store("projects", nil)
	if status, _ := table.Status("projects"); status != CursorExhausted {
		t.Fatalf("expected exhausted after nil token, got %v", status)
	}
	if table.CanLoadMore("projects") {
		t.Fatalf("expected exhausted cursor to refuse more loads")
	}
}

func TestCursorTableEmptyTokenMeansExhausted(t *testing.T) {
	table := NewCursorTable()
	empty := ""
	table.Store("p1", &empty)
	if table.CanLoadMore("p1") {
		t.Fatalf("expected empty next-token to normalize to exhausted")
	}
}

func TestCursorTableResetReturnsToUnknown(t *testing.T) {
	table := NewCursorTable()
	table.MarkExhausted("p1")
	table.Reset("p1")
	if status, _ := table.Status("p1"); status != CursorUnknown {
		t.Fatalf("expected reset key to be unknown, got %v", status)
	}

	table.MarkExhausted("p1")
	table.MarkExhausted("p2")
	table.ResetAll()
	if !table.CanLoadMore("p1") || !table.CanLoadMore("p2") {
		t.Fatalf("expected all keys unknown after ResetAll")
	}
}
