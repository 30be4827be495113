package workspace

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Field contracts for the two quarantinable artifact fields, expressed
// as JSON Schema so validation and repair stay decoupled: a value that
// fails its schema is replaced by the typed default and the raw value
// is preserved as residue.
const tagsSchemaJSON = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "array",
	"items": {"type": "string"}
}`

const relationsSchemaJSON = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "array",
	"items": {
		"type": "object",
		"required": ["targetId", "kind"],
		"properties": {
			"targetId": {"type": "string"},
			"kind": {"type": "string"}
		}
	}
}`

var (
	tagsSchema      = mustCompileSchema("tags.schema.json", tagsSchemaJSON)
	relationsSchema = mustCompileSchema("relations.schema.json", relationsSchemaJSON)
)

func mustCompileSchema(name, source string) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(source))
	if err != nil {
		panic(fmt.Sprintf("workspace: invalid %s: %v", name, err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, doc); err != nil {
		panic(fmt.Sprintf("workspace: register %s: %v", name, err))
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("workspace: compile %s: %v", name, err))
	}
	return schema
}

// NormalizeArtifact validates and repairs a raw artifact payload into
// the canonical shape. It never fails: scalar fields fall back to
// type-appropriate defaults, and a tags or relations value that
// violates its contract is replaced by an empty collection and
// returned as residue so the raw value is not silently destroyed.
func NormalizeArtifact(raw map[string]any, fallbackOwner string) (Artifact, Residue) {
	artifact := Artifact{
		ID:        toString(raw["id"]),
		OwnerID:   toString(raw["ownerId"]),
		ProjectID: toString(raw["projectId"]),
		Type:      normalizeArtifactType(raw["type"]),
		Title:     toString(raw["title"]),
		Summary:   toString(raw["summary"]),
		Status:    toString(raw["status"]),
		Tags:      []string{},
		Relations: []Relation{},
		Data:      map[string]any{},
	}
	if artifact.OwnerID == "" {
		artifact.OwnerID = fallbackOwner
	}
	if payload, ok := raw["data"].(map[string]any); ok {
		artifact.Data = payload
	}

	residue := Residue{}
	if rawTags, present := raw["tags"]; present && rawTags != nil {
		if err := tagsSchema.Validate(rawTags); err != nil {
			residue[ResidueTags] = rawTags
		} else {
			artifact.Tags = toStringSlice(rawTags)
		}
	}
	if rawRelations, present := raw["relations"]; present && rawRelations != nil {
		if err := relationsSchema.Validate(rawRelations); err != nil {
			residue[ResidueRelations] = rawRelations
		} else {
			artifact.Relations = toRelations(rawRelations)
		}
	}
	if len(residue) == 0 {
		residue = nil
	}
	return artifact, residue
}

// NormalizeProject repairs a raw project payload. Project tags follow
// the same array-of-strings contract but carry no residue; the ledger
// is an artifact-level structure.
func NormalizeProject(raw map[string]any, fallbackOwner string) Project {
	project := Project{
		ID:      toString(raw["id"]),
		OwnerID: toString(raw["ownerId"]),
		Title:   toString(raw["title"]),
		Summary: toString(raw["summary"]),
		Status:  normalizeProjectStatus(raw["status"]),
		Tags:    []string{},
	}
	if project.OwnerID == "" {
		project.OwnerID = fallbackOwner
	}
	if rawTags := raw["tags"]; rawTags != nil {
		if err := tagsSchema.Validate(rawTags); err == nil {
			project.Tags = toStringSlice(rawTags)
		}
	}
	return project
}

// NormalizeProfile repairs a raw profile payload. XP and streak
// counters clamp at zero; sets default to empty slices.
func NormalizeProfile(raw map[string]any, fallbackID string) UserProfile {
	profile := UserProfile{
		ID:                toString(raw["id"]),
		Email:             toString(raw["email"]),
		DisplayName:       toString(raw["displayName"]),
		AvatarURL:         toString(raw["avatarUrl"]),
		XP:                clampNonNegative(toInt(raw["xp"])),
		StreakCount:       clampNonNegative(toInt(raw["streakCount"])),
		BestStreak:        clampNonNegative(toInt(raw["bestStreak"])),
		LastActiveDate:    toString(raw["lastActiveDate"]),
		Achievements:      []string{},
		ClaimedQuestlines: []string{},
	}
	if profile.ID == "" {
		profile.ID = fallbackID
	}
	if rawAchievements := raw["achievements"]; rawAchievements != nil {
		if err := tagsSchema.Validate(rawAchievements); err == nil {
			profile.Achievements = toStringSlice(rawAchievements)
		}
	}
	if rawClaimed := raw["claimedQuestlines"]; rawClaimed != nil {
		if err := tagsSchema.Validate(rawClaimed); err == nil {
			profile.ClaimedQuestlines = toStringSlice(rawClaimed)
		}
	}
	if settings, ok := raw["settings"].(map[string]any); ok {
		profile.Settings = ProfileSettings{
			Theme:  toString(settings["theme"]),
			AITips: toBool(settings["aiTips"]),
		}
	}
	return profile
}

func normalizeArtifactType(v any) ArtifactType {
	switch ArtifactType(strings.ToLower(toString(v))) {
	case ArtifactStory:
		return ArtifactStory
	case ArtifactCharacter:
		return ArtifactCharacter
	case ArtifactTask:
		return ArtifactTask
	case ArtifactConlang:
		return ArtifactConlang
	case ArtifactWiki:
		return ArtifactWiki
	case ArtifactLocation:
		return ArtifactLocation
	case ArtifactTimeline:
		return ArtifactTimeline
	case ArtifactScene:
		return ArtifactScene
	case ArtifactFaction:
		return ArtifactFaction
	default:
		return DefaultArtifactType
	}
}

func normalizeProjectStatus(v any) ProjectStatus {
	switch ProjectStatus(strings.ToLower(toString(v))) {
	case ProjectIdea:
		return ProjectIdea
	case ProjectActive:
		return ProjectActive
	case ProjectPaused:
		return ProjectPaused
	case ProjectArchived:
		return ProjectArchived
	default:
		return DefaultProjectStatus
	}
}

// dedupeTags collapses duplicates while preserving first-seen order.
// Tag sets are order-irrelevant but stable output keeps merges
// deterministic.
func dedupeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}

func toBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func clampNonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func toStringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		if typed, ok := v.([]string); ok {
			return dedupeTags(typed)
		}
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, toString(item))
	}
	return dedupeTags(out)
}

func toRelations(v any) []Relation {
	items, ok := v.([]any)
	if !ok {
		if typed, ok := v.([]Relation); ok {
			return append([]Relation(nil), typed...)
		}
		return []Relation{}
	}
	out := make([]Relation, 0, len(items))
	for _, item := range items {
		edge, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, Relation{
			TargetID: toString(edge["targetId"]),
			Kind:     toString(edge["kind"]),
		})
	}
	return out
}
