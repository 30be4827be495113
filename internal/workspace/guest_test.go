package workspace

import (
	"reflect"
	"testing"
)

func TestSeedGuestWorkspaceIsDeterministic(t *testing.T) {
	first := SeedGuestWorkspace("visitor-7")
	second := SeedGuestWorkspace("visitor-7")

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical workspaces for the same owner id")
	}
}

func TestSeedGuestWorkspaceOwnershipIsConsistent(t *testing.T) {
	seeded := SeedGuestWorkspace("visitor-7")

	if seeded.Profile.ID != "visitor-7" {
		t.Fatalf("expected profile owned by seed owner, got %q", seeded.Profile.ID)
	}
	if len(seeded.Projects) == 0 {
		t.Fatalf("expected seeded projects")
	}
	projectIDs := map[string]bool{}
	for _, project := range seeded.Projects {
		if project.OwnerID != "visitor-7" {
			t.Fatalf("project %s has wrong owner %q", project.ID, project.OwnerID)
		}
		if project.Tags == nil {
			t.Fatalf("project %s has nil tags", project.ID)
		}
		projectIDs[project.ID] = true
	}
	for projectID, artifacts := range seeded.Artifacts {
		if !projectIDs[projectID] {
			t.Fatalf("artifact collection %s has no owning project", projectID)
		}
		for _, artifact := range artifacts {
			if artifact.OwnerID != "visitor-7" || artifact.ProjectID != projectID {
				t.Fatalf("artifact %s has inconsistent ownership: %+v", artifact.ID, artifact)
			}
			if artifact.Tags == nil || artifact.Relations == nil || artifact.Data == nil {
				t.Fatalf("artifact %s is not pre-normalized: %+v", artifact.ID, artifact)
			}
		}
	}
}

func TestSeedGuestWorkspaceDistinctOwnersGetDistinctIDs(t *testing.T) {
	a := SeedGuestWorkspace("owner-a")
	b := SeedGuestWorkspace("owner-b")
	if a.Projects[0].ID == b.Projects[0].ID {
		t.Fatalf("expected owner-scoped ids, both got %s", a.Projects[0].ID)
	}
}

func TestGuestSessionNeverTouchesRemote(t *testing.T) {
	session, err := NewSession(SessionOptions{OwnerID: "visitor-7", Guest: true})
	if err != nil {
		t.Fatalf("new guest session failed: %v", err)
	}
	defer session.Close()

	if session.CanLoadMore(ProjectsCollection) {
		t.Fatalf("expected seeded project list to be exhausted")
	}
	for _, project := range session.Projects() {
		if session.CanLoadMore(project.ID) {
			t.Fatalf("expected seeded artifact list %s to be exhausted", project.ID)
		}
	}
}
