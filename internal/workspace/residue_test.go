package workspace

import "testing"

func TestResidueLedgerRecordOverwritesAndClears(t *testing.T) {
	ledger := NewResidueLedger()

	ledger.Record("a1", Residue{ResidueTags: "garbage"})
	if !ledger.Has("a1", ResidueTags) {
		t.Fatalf("expected tags residue to be recorded")
	}

	ledger.Record("a1", Residue{ResidueRelations: []any{"x"}})
	if ledger.Has("a1", ResidueTags) {
		t.Fatalf("expected record to overwrite the whole residue map")
	}
	if !ledger.Has("a1", ResidueRelations) {
		t.Fatalf("expected relations residue after overwrite")
	}

	ledger.Record("a1", nil)
	if ledger.Fields("a1") != nil {
		t.Fatalf("expected empty record to clear the entry")
	}
}

func TestResidueLedgerFieldLifecycle(t *testing.T) {
	ledger := NewResidueLedger()

	ledger.SetField("a1", ResidueTags, 42)
	ledger.SetField("a1", ResidueRelations, "broken")
	ledger.ClearField("a1", ResidueTags)

	fields := ledger.Fields("a1")
	if len(fields) != 1 {
		t.Fatalf("expected one remaining field, got %v", fields)
	}
	if fields[ResidueRelations] != "broken" {
		t.Fatalf("expected relations residue to survive, got %v", fields)
	}

	ledger.ClearField("a1", ResidueRelations)
	if ledger.Fields("a1") != nil {
		t.Fatalf("expected entry removed once all fields cleared")
	}
	// Clearing an unknown artifact is a no-op, not a panic.
	ledger.ClearField("missing", ResidueTags)
}

func TestResidueLedgerDeleteAndReset(t *testing.T) {
	ledger := NewResidueLedger()
	ledger.SetField("a1", ResidueTags, 1)
	ledger.SetField("a2", ResidueTags, 2)

	ledger.Delete("a1")
	if ledger.Fields("a1") != nil {
		t.Fatalf("expected a1 residue gone after delete")
	}
	if !ledger.Has("a2", ResidueTags) {
		t.Fatalf("expected a2 residue untouched by delete of a1")
	}

	ledger.Reset()
	if ledger.Fields("a2") != nil {
		t.Fatalf("expected reset to clear everything")
	}
}

func TestResidueLedgerFieldsReturnsCopy(t *testing.T) {
	ledger := NewResidueLedger()
	ledger.SetField("a1", ResidueTags, "raw")

	fields := ledger.Fields("a1")
	fields[ResidueTags] = "mutated"

	if got := ledger.Fields("a1")[ResidueTags]; got != "raw" {
		t.Fatalf("expected ledger to be isolated from caller mutation, got %v", got)
	}
}
