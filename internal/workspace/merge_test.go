package workspace

import (
	"reflect"
	"testing"
)

func project(id, title string) Project {
	return Project{ID: id, OwnerID: "u1", Title: title, Status: ProjectActive, Tags: []string{}}
}

func TestMergeByIDAppendsUnseenAndOverwritesInPlace(t *testing.T) {
	existing := []Project{project("p1", "one"), project("p2", "two")}
	incoming := []Project{project("p2", "two updated"), project("p3", "three")}

	merged := MergeByID(existing, incoming)

	if len(merged) != 3 {
		t.Fatalf("expected 3 entities, got %d", len(merged))
	}
	if merged[0].ID != "p1" || merged[1].ID != "p2" || merged[2].ID != "p3" {
		t.Fatalf("unexpected order: %s %s %s", merged[0].ID, merged[1].ID, merged[2].ID)
	}
	if merged[1].Title != "two updated" {
		t.Fatalf("expected p2 to be overwritten in place, got title %q", merged[1].Title)
	}
}

func TestMergeByIDIsIdempotent(t *testing.T) {
	a := []Project{project("p1", "one"), project("p2", "two")}
	b := []Project{project("p2", "two v2"), project("p4", "four")}

	once := MergeByID(a, b)
	twice := MergeByID(once, b)

	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("merging the same batch twice changed the result:\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestMergeByIDNeverProducesDuplicates(t *testing.T) {
	a := []Project{project("p1", "one"), project("p1", "one dup"), project("p2", "two")}
	b := []Project{project("p2", "two v2"), project("p2", "two v3"), project("p1", "one v2")}

	merged := MergeByID(a, b)

	seen := map[string]bool{}
	for _, entity := range merged {
		if seen[entity.ID] {
			t.Fatalf("duplicate id %s in merge result", entity.ID)
		}
		seen[entity.ID] = true
	}
	if merged[0].Title != "one v2" {
		t.Fatalf("expected last write for p1 to win, got %q", merged[0].Title)
	}
	if merged[1].Title != "two v3" {
		t.Fatalf("expected last write for p2 to win, got %q", merged[1].Title)
	}
}

func TestMergeByIDEmptyInputs(t *testing.T) {
	if got := MergeByID[Project](nil, nil); len(got) != 0 {
		t.Fatalf("expected empty result, got %d entities", len(got))
	}
	only := []Project{project("p1", "one")}
	if got := MergeByID(nil, only); len(got) != 1 || got[0].ID != "p1" {
		t.Fatalf("expected incoming-only merge to keep batch order, got %+v", got)
	}
	if got := MergeByID(only, nil); len(got) != 1 || got[0].ID != "p1" {
		t.Fatalf("expected existing-only merge to be unchanged, got %+v", got)
	}
}
