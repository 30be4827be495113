package workspace

// ProjectStatus is the closed lifecycle enum for projects. Artifact
// statuses are deliberately free text; different artifact types carry
// different status vocabularies.
type ProjectStatus string

const (
	ProjectIdea     ProjectStatus = "idea"
	ProjectActive   ProjectStatus = "active"
	ProjectPaused   ProjectStatus = "paused"
	ProjectArchived ProjectStatus = "archived"
)

// DefaultProjectStatus is substituted when a remote payload omits or
// corrupts the status field.
const DefaultProjectStatus = ProjectIdea

type ArtifactType string

const (
	ArtifactStory     ArtifactType = "story"
	ArtifactCharacter ArtifactType = "character"
	ArtifactTask      ArtifactType = "task"
	ArtifactConlang   ArtifactType = "conlang"
	ArtifactWiki      ArtifactType = "wiki"
	ArtifactLocation  ArtifactType = "location"
	ArtifactTimeline  ArtifactType = "timeline"
	ArtifactScene     ArtifactType = "scene"
	ArtifactFaction   ArtifactType = "faction"
)

const DefaultArtifactType = ArtifactStory

type Project struct {
	ID      string        `json:"id"`
	OwnerID string        `json:"ownerId"`
	Title   string        `json:"title"`
	Summary string        `json:"summary"`
	Status  ProjectStatus `json:"status"`
	Tags    []string      `json:"tags"`
}

func (p Project) EntityID() string { return p.ID }

// Relation is a directed edge to another artifact. Target ids are not
// required to resolve; dangling relations are tolerated.
type Relation struct {
	TargetID string `json:"targetId"`
	Kind     string `json:"kind"`
}

type Artifact struct {
	ID        string         `json:"id"`
	OwnerID   string         `json:"ownerId"`
	ProjectID string         `json:"projectId"`
	Type      ArtifactType   `json:"type"`
	Title     string         `json:"title"`
	Summary   string         `json:"summary"`
	Status    string         `json:"status"`
	Tags      []string       `json:"tags"`
	Relations []Relation     `json:"relations"`
	Data      map[string]any `json:"data"`
}

func (a Artifact) EntityID() string { return a.ID }

type ProfileSettings struct {
	Theme  string `json:"theme"`
	AITips bool   `json:"aiTips"`
}

type UserProfile struct {
	ID                string          `json:"id"`
	Email             string          `json:"email"`
	DisplayName       string          `json:"displayName"`
	AvatarURL         string          `json:"avatarUrl,omitempty"`
	XP                int             `json:"xp"`
	StreakCount       int             `json:"streakCount"`
	BestStreak        int             `json:"bestStreak"`
	LastActiveDate    string          `json:"lastActiveDate,omitempty"`
	Achievements      []string        `json:"achievements"`
	ClaimedQuestlines []string        `json:"claimedQuestlines"`
	Settings          ProfileSettings `json:"settings"`
}

// Progress returns the streak snapshot view of the profile, the only
// shape the Progress Engine operates on.
func (p UserProfile) Progress() ProgressSnapshot {
	return ProgressSnapshot{
		StreakCount:    p.StreakCount,
		BestStreak:     p.BestStreak,
		LastActiveDate: p.LastActiveDate,
	}
}

type ProjectDraft struct {
	Title   string        `json:"title"`
	Summary string        `json:"summary,omitempty"`
	Status  ProjectStatus `json:"status,omitempty"`
	Tags    []string      `json:"tags,omitempty"`
}

type ArtifactDraft struct {
	Type      ArtifactType   `json:"type"`
	Title     string         `json:"title"`
	Summary   string         `json:"summary,omitempty"`
	Status    string         `json:"status,omitempty"`
	Tags      []string       `json:"tags,omitempty"`
	Relations []Relation     `json:"relations,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Patch types carry only changed fields. A nil pointer means "leave the
// remote value alone"; the JSON encoding drops unset fields so a partial
// update never resends unrelated state.

type ProjectPatch struct {
	Title   *string        `json:"title,omitempty"`
	Summary *string        `json:"summary,omitempty"`
	Status  *ProjectStatus `json:"status,omitempty"`
	Tags    *[]string      `json:"tags,omitempty"`
}

func (p ProjectPatch) IsZero() bool {
	return p.Title == nil && p.Summary == nil && p.Status == nil && p.Tags == nil
}

type ArtifactPatch struct {
	Title     *string        `json:"title,omitempty"`
	Summary   *string        `json:"summary,omitempty"`
	Status    *string        `json:"status,omitempty"`
	Tags      *[]string      `json:"tags,omitempty"`
	Relations *[]Relation    `json:"relations,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

func (p ArtifactPatch) IsZero() bool {
	return p.Title == nil && p.Summary == nil && p.Status == nil &&
		p.Tags == nil && p.Relations == nil && p.Data == nil
}

type ProfilePatch struct {
	DisplayName       *string          `json:"displayName,omitempty"`
	AvatarURL         *string          `json:"avatarUrl,omitempty"`
	Achievements      *[]string        `json:"achievements,omitempty"`
	ClaimedQuestlines *[]string        `json:"claimedQuestlines,omitempty"`
	Settings          *ProfileSettings `json:"settings,omitempty"`
}

func (p ProfilePatch) IsZero() bool {
	return p.DisplayName == nil && p.AvatarURL == nil &&
		p.Achievements == nil && p.ClaimedQuestlines == nil && p.Settings == nil
}
