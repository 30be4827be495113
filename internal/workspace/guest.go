package workspace

import "fmt"

// GuestWorkspace is the complete offline workspace materialized when no
// remote identity is available.
type GuestWorkspace struct {
	Profile   UserProfile
	Projects  []Project
	Artifacts map[string][]Artifact
}

// SeedGuestWorkspace deterministically builds a demo workspace owned by
// ownerID. Same input, same output: ids are derived from the owner id
// and a position index, and every entity is pre-normalized. Nothing
// seeded here ever reaches the remote path.
func SeedGuestWorkspace(ownerID string) GuestWorkspace {
	valeID := guestID(ownerID, "proj", 1)
	cityID := guestID(ownerID, "proj", 2)

	projects := []Project{
		{
			ID:      valeID,
			OwnerID: ownerID,
			Title:   "The Ashen Vale",
			Summary: "A slow-burn fantasy about a valley that remembers its dead.",
			Status:  ProjectActive,
			Tags:    []string{"fantasy", "worldbuilding"},
		},
		{
			ID:      cityID,
			OwnerID: ownerID,
			Title:   "Clockwork Reverie",
			Summary: "Notes toward a city of brass automata and borrowed time.",
			Status:  ProjectIdea,
			Tags:    []string{"steampunk"},
		},
	}

	artifacts := map[string][]Artifact{
		valeID: {
			{
				ID:        guestID(ownerID, "art", 1),
				OwnerID:   ownerID,
				ProjectID: valeID,
				Type:      ArtifactConlang,
				Title:     "Veldrani Lexicon",
				Summary:   "Working vocabulary for the valley tongue.",
				Status:    "drafting",
				Tags:      []string{"language"},
				Relations: []Relation{},
				Data: map[string]any{
					"lexemes": []any{
						map[string]any{"lemma": "ashar", "gloss": "ember", "partOfSpeech": "noun"},
						map[string]any{"lemma": "velu", "gloss": "to remember", "partOfSpeech": "verb"},
						map[string]any{"lemma": "drani", "gloss": "valley-born", "partOfSpeech": "adjective"},
					},
				},
			},
			{
				ID:        guestID(ownerID, "art", 2),
				OwnerID:   ownerID,
				ProjectID: valeID,
				Type:      ArtifactCharacter,
				Title:     "Mara Venn",
				Summary:   "Last archivist of the burned monastery.",
				Status:    "developing",
				Tags:      []string{"protagonist"},
				Relations: []Relation{
					{TargetID: guestID(ownerID, "art", 3), Kind: "resides-in"},
				},
				Data: map[string]any{
					"age":        34,
					"motivation": "restore the lost registry of names",
				},
			},
			{
				ID:        guestID(ownerID, "art", 3),
				OwnerID:   ownerID,
				ProjectID: valeID,
				Type:      ArtifactLocation,
				Title:     "The Cindral Reach",
				Summary:   "Terraced ruins above the ash line.",
				Status:    "sketched",
				Tags:      []string{},
				Relations: []Relation{},
				Data:      map[string]any{"climate": "alpine, ash-fall seasons"},
			},
			{
				ID:        guestID(ownerID, "art", 4),
				OwnerID:   ownerID,
				ProjectID: valeID,
				Type:      ArtifactStory,
				Title:     "Emberfall, Chapter One",
				Summary:   "Mara finds a name the valley refuses to give back.",
				Status:    "first draft",
				Tags:      []string{"chapter"},
				Relations: []Relation{
					{TargetID: guestID(ownerID, "art", 2), Kind: "features"},
				},
				Data: map[string]any{"wordCount": 2140},
			},
			{
				ID:        guestID(ownerID, "art", 5),
				OwnerID:   ownerID,
				ProjectID: valeID,
				Type:      ArtifactTask,
				Title:     "Map the ash line",
				Summary:   "Decide how far the memory effect extends.",
				Status:    "todo",
				Tags:      []string{},
				Relations: []Relation{},
				Data:      map[string]any{"done": false, "priority": "high"},
			},
		},
		cityID: {
			{
				ID:        guestID(ownerID, "art", 6),
				OwnerID:   ownerID,
				ProjectID: cityID,
				Type:      ArtifactWiki,
				Title:     "Premise",
				Summary:   "Automata wind down unless fed spent hours.",
				Status:    "stub",
				Tags:      []string{},
				Relations: []Relation{},
				Data:      map[string]any{"body": "Every citizen tithes an hour a day to the Great Escapement."},
			},
			{
				ID:        guestID(ownerID, "art", 7),
				OwnerID:   ownerID,
				ProjectID: cityID,
				Type:      ArtifactTask,
				Title:     "Name the city",
				Summary:   "",
				Status:    "todo",
				Tags:      []string{},
				Relations: []Relation{},
				Data:      map[string]any{"done": false, "priority": "low"},
			},
		},
	}

	profile := UserProfile{
		ID:                ownerID,
		Email:             "guest@quill.local",
		DisplayName:       "Guest Writer",
		XP:                120,
		StreakCount:       3,
		BestStreak:        5,
		LastActiveDate:    "",
		Achievements:      []string{"first-project", "wordsmith-i"},
		ClaimedQuestlines: []string{"getting-started"},
		Settings: ProfileSettings{
			Theme:  "dusk",
			AITips: true,
		},
	}

	return GuestWorkspace{
		Profile:   profile,
		Projects:  projects,
		Artifacts: artifacts,
	}
}

func guestID(ownerID, kind string, index int) string {
	return fmt.Sprintf("guest-%s-%s-%d", ownerID, kind, index)
}
