// Package quill implements the reference workspace store served by the
// Quill API. It is the authority the client engine reconciles against:
// it mints canonical ids, recomputes XP and streak state on grant, and
// publishes an activity feed for live subscribers.
package quill

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/quillworks/quill/internal/workspace"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrNotImplemented = errors.New("not implemented")
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Event is one entry in a user's activity feed.
type Event struct {
	EventID       string `json:"eventId"`
	Type          string `json:"type"`
	UserID        string `json:"userId"`
	EntityID      string `json:"entityId,omitempty"`
	ProjectID     string `json:"projectId,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
	Timestamp     string `json:"timestamp"`
}

type EventFeed struct {
	Events     []Event `json:"events"`
	NextCursor *string `json:"nextCursor"`
}

type ProjectPage struct {
	Projects      []workspace.Project `json:"projects"`
	NextPageToken *string             `json:"nextPageToken"`
}

type ArtifactPage struct {
	Artifacts     []workspace.Artifact `json:"artifacts"`
	NextPageToken *string              `json:"nextPageToken"`
}

type PageRequest struct {
	PageSize  int
	PageToken string
}

// userState is one user's slice of the store. Projects and artifact
// lists keep creation order; that order is the pagination order.
type userState struct {
	Profile   workspace.UserProfile           `json:"profile"`
	Projects  []workspace.Project             `json:"projects"`
	Artifacts map[string][]workspace.Artifact `json:"artifacts"`
	Events    []Event                         `json:"events"`
}

type persistedState struct {
	IDCounter    uint64                `json:"idCounter"`
	EventCounter uint64                `json:"eventCounter"`
	Users        map[string]*userState `json:"users"`
}

// StateBackend persists store snapshots. Implementations must treat
// Load returning (nil, nil) as "no prior state".
type StateBackend interface {
	Load() (*persistedState, error)
	Save(state *persistedState) error
}

type stateBackendCloser interface {
	Close() error
}

type StoreOptions struct {
	// StateFile, when set and no StateBackend is given, selects the JSON
	// file backend.
	StateFile    string
	StateBackend StateBackend
	// MaxStoredEvents caps each user's activity history. Oldest entries
	// are dropped first.
	MaxStoredEvents int
	// Now overrides the clock for streak accounting and event stamps.
	Now func() time.Time
}

type Store struct {
	mu           sync.RWMutex
	users        map[string]*userState
	idCounter    uint64
	eventCounter uint64

	stateBackend    StateBackend
	maxStoredEvents int
	now             func() time.Time

	subMu       sync.Mutex
	subCounter  uint64
	subscribers map[string]map[uint64]chan Event
}

func NewStore() *Store {
	return NewStoreWithOptions(StoreOptions{})
}

func NewStoreWithOptions(opts StoreOptions) *Store {
	maxEvents := opts.MaxStoredEvents
	if maxEvents <= 0 {
		maxEvents = 1000
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	stateBackend := opts.StateBackend
	if stateBackend == nil && strings.TrimSpace(opts.StateFile) != "" {
		stateBackend = NewJSONFileStateBackend(opts.StateFile)
	}
	s := &Store{
		users:           map[string]*userState{},
		stateBackend:    stateBackend,
		maxStoredEvents: maxEvents,
		now:             now,
		subscribers:     map[string]map[uint64]chan Event{},
	}
	_ = s.loadFromBackend()
	return s
}

func (s *Store) Close() error {
	s.subMu.Lock()
	for _, subs := range s.subscribers {
		for _, ch := range subs {
			close(ch)
		}
	}
	s.subscribers = map[string]map[uint64]chan Event{}
	s.subMu.Unlock()
	if closer, ok := s.stateBackend.(stateBackendCloser); ok {
		return closer.Close()
	}
	return nil
}

func (s *Store) loadFromBackend() error {
	if s.stateBackend == nil {
		return nil
	}
	snapshot, err := s.stateBackend.Load()
	if err != nil || snapshot == nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idCounter = snapshot.IDCounter
	s.eventCounter = snapshot.EventCounter
	if snapshot.Users != nil {
		s.users = snapshot.Users
	}
	for _, user := range s.users {
		if user.Artifacts == nil {
			user.Artifacts = map[string][]workspace.Artifact{}
		}
	}
	return nil
}

// persistLocked snapshots store state to the backend. Callers hold the
// write lock. Persistence failures do not fail the mutation; the store
// stays authoritative in memory.
func (s *Store) persistLocked() {
	if s.stateBackend == nil {
		return
	}
	_ = s.stateBackend.Save(&persistedState{
		IDCounter:    s.idCounter,
		EventCounter: s.eventCounter,
		Users:        s.users,
	})
}

// userLocked returns userID's state, creating an empty workspace with a
// default profile on first touch. Callers hold the write lock.
func (s *Store) userLocked(userID string) *userState {
	if user, ok := s.users[userID]; ok {
		return user
	}
	user := &userState{
		Profile: workspace.UserProfile{
			ID:                userID,
			Achievements:      []string{},
			ClaimedQuestlines: []string{},
		},
		Artifacts: map[string][]workspace.Artifact{},
	}
	s.users[userID] = user
	return user
}

func (s *Store) mintID(prefix string) string {
	s.idCounter++
	return fmt.Sprintf("%s_%08d", prefix, s.idCounter)
}

func (s *Store) GetProfile(userID string) (workspace.UserProfile, error) {
	if strings.TrimSpace(userID) == "" {
		return workspace.UserProfile{}, fmt.Errorf("%w: user id required", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userLocked(userID).Profile, nil
}

func (s *Store) UpdateProfile(userID string, patch workspace.ProfilePatch) (workspace.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.userLocked(userID)
	if patch.DisplayName != nil {
		user.Profile.DisplayName = *patch.DisplayName
	}
	if patch.AvatarURL != nil {
		user.Profile.AvatarURL = *patch.AvatarURL
	}
	if patch.Achievements != nil {
		user.Profile.Achievements = append([]string(nil), *patch.Achievements...)
	}
	if patch.ClaimedQuestlines != nil {
		user.Profile.ClaimedQuestlines = append([]string(nil), *patch.ClaimedQuestlines...)
	}
	if patch.Settings != nil {
		user.Profile.Settings = *patch.Settings
	}
	s.appendEventLocked(user, "profile.updated", userID, "", "")
	s.persistLocked()
	return user.Profile, nil
}

// GrantXP applies an XP delta and recomputes the streak against the
// server clock. The returned profile is the canonical one clients
// converge to; client-side streak math is advisory only.
func (s *Store) GrantXP(userID string, delta int) (workspace.UserProfile, error) {
	if delta == 0 {
		return s.GetProfile(userID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.userLocked(userID)
	user.Profile.XP = workspace.AddXP(user.Profile.XP, delta)
	if delta > 0 {
		progress := workspace.AdvanceStreak(user.Profile.Progress(), workspace.DateKey(s.now()))
		user.Profile.StreakCount = progress.StreakCount
		user.Profile.BestStreak = progress.BestStreak
		user.Profile.LastActiveDate = progress.LastActiveDate
	}
	s.appendEventLocked(user, "profile.xp", userID, "", "")
	s.persistLocked()
	return user.Profile, nil
}

func (s *Store) ListProjects(userID string, page PageRequest) (ProjectPage, error) {
	size, err := normalizePageSize(page.PageSize)
	if err != nil {
		return ProjectPage{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return ProjectPage{Projects: []workspace.Project{}}, nil
	}
	start, err := pageStart(len(user.Projects), page.PageToken, func(i int) string {
		return user.Projects[i].ID
	})
	if err != nil {
		return ProjectPage{}, err
	}
	end := start + size
	if end > len(user.Projects) {
		end = len(user.Projects)
	}
	out := ProjectPage{Projects: append([]workspace.Project{}, user.Projects[start:end]...)}
	if end < len(user.Projects) {
		next := user.Projects[end-1].ID
		out.NextPageToken = &next
	}
	return out, nil
}

func (s *Store) CreateProject(userID string, draft workspace.ProjectDraft) (workspace.Project, error) {
	if strings.TrimSpace(draft.Title) == "" {
		return workspace.Project{}, fmt.Errorf("%w: project title required", ErrInvalidInput)
	}
	status := draft.Status
	switch status {
	case workspace.ProjectIdea, workspace.ProjectActive, workspace.ProjectPaused, workspace.ProjectArchived:
	case "":
		status = workspace.DefaultProjectStatus
	default:
		return workspace.Project{}, fmt.Errorf("%w: unknown project status %q", ErrInvalidInput, draft.Status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.userLocked(userID)
	project := workspace.Project{
		ID:      s.mintID("prj"),
		OwnerID: userID,
		Title:   strings.TrimSpace(draft.Title),
		Summary: draft.Summary,
		Status:  status,
		Tags:    normalizeTags(draft.Tags),
	}
	user.Projects = append(user.Projects, project)
	s.appendEventLocked(user, "project.created", userID, project.ID, project.ID)
	s.persistLocked()
	return project, nil
}

func (s *Store) UpdateProject(userID, projectID string, patch workspace.ProjectPatch) (workspace.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return workspace.Project{}, fmt.Errorf("%w: project %s", ErrNotFound, projectID)
	}
	for i := range user.Projects {
		if user.Projects[i].ID != projectID {
			continue
		}
		project := &user.Projects[i]
		if patch.Title != nil {
			if strings.TrimSpace(*patch.Title) == "" {
				return workspace.Project{}, fmt.Errorf("%w: project title required", ErrInvalidInput)
			}
			project.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Summary != nil {
			project.Summary = *patch.Summary
		}
		if patch.Status != nil {
			switch *patch.Status {
			case workspace.ProjectIdea, workspace.ProjectActive, workspace.ProjectPaused, workspace.ProjectArchived:
				project.Status = *patch.Status
			default:
				return workspace.Project{}, fmt.Errorf("%w: unknown project status %q", ErrInvalidInput, *patch.Status)
			}
		}
		if patch.Tags != nil {
			project.Tags = normalizeTags(*patch.Tags)
		}
		s.appendEventLocked(user, "project.updated", userID, projectID, projectID)
		s.persistLocked()
		return *project, nil
	}
	return workspace.Project{}, fmt.Errorf("%w: project %s", ErrNotFound, projectID)
}

// DeleteProject removes the project and all of its artifacts.
func (s *Store) DeleteProject(userID, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("%w: project %s", ErrNotFound, projectID)
	}
	for i := range user.Projects {
		if user.Projects[i].ID != projectID {
			continue
		}
		user.Projects = append(user.Projects[:i], user.Projects[i+1:]...)
		delete(user.Artifacts, projectID)
		s.appendEventLocked(user, "project.deleted", userID, projectID, projectID)
		s.persistLocked()
		return nil
	}
	return fmt.Errorf("%w: project %s", ErrNotFound, projectID)
}

func (s *Store) ListArtifacts(userID, projectID string, page PageRequest) (ArtifactPage, error) {
	size, err := normalizePageSize(page.PageSize)
	if err != nil {
		return ArtifactPage{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok || !hasProjectLocked(user, projectID) {
		return ArtifactPage{}, fmt.Errorf("%w: project %s", ErrNotFound, projectID)
	}
	list := user.Artifacts[projectID]
	start, err := pageStart(len(list), page.PageToken, func(i int) string {
		return list[i].ID
	})
	if err != nil {
		return ArtifactPage{}, err
	}
	end := start + size
	if end > len(list) {
		end = len(list)
	}
	out := ArtifactPage{Artifacts: append([]workspace.Artifact{}, list[start:end]...)}
	if end < len(list) {
		next := list[end-1].ID
		out.NextPageToken = &next
	}
	return out, nil
}

// CreateArtifacts accepts the batch create contract: all drafts are
// validated before any is applied, so a bad draft rejects the batch.
func (s *Store) CreateArtifacts(userID, projectID string, drafts []workspace.ArtifactDraft) ([]workspace.Artifact, error) {
	if len(drafts) == 0 {
		return nil, fmt.Errorf("%w: empty artifact batch", ErrInvalidInput)
	}
	for i, draft := range drafts {
		if strings.TrimSpace(draft.Title) == "" {
			return nil, fmt.Errorf("%w: draft %d missing title", ErrInvalidInput, i)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok || !hasProjectLocked(user, projectID) {
		return nil, fmt.Errorf("%w: project %s", ErrNotFound, projectID)
	}
	created := make([]workspace.Artifact, 0, len(drafts))
	for _, draft := range drafts {
		artifactType := draft.Type
		if artifactType == "" {
			artifactType = workspace.DefaultArtifactType
		}
		data := draft.Data
		if data == nil {
			data = map[string]any{}
		}
		artifact := workspace.Artifact{
			ID:        s.mintID("art"),
			OwnerID:   userID,
			ProjectID: projectID,
			Type:      artifactType,
			Title:     strings.TrimSpace(draft.Title),
			Summary:   draft.Summary,
			Status:    draft.Status,
			Tags:      normalizeTags(draft.Tags),
			Relations: append([]workspace.Relation{}, draft.Relations...),
			Data:      data,
		}
		user.Artifacts[projectID] = append(user.Artifacts[projectID], artifact)
		created = append(created, artifact)
		s.appendEventLocked(user, "artifact.created", userID, artifact.ID, projectID)
	}
	s.persistLocked()
	return created, nil
}

func (s *Store) UpdateArtifact(userID, artifactID string, patch workspace.ArtifactPatch) (workspace.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return workspace.Artifact{}, fmt.Errorf("%w: artifact %s", ErrNotFound, artifactID)
	}
	projectID, index := findArtifactLocked(user, artifactID)
	if index < 0 {
		return workspace.Artifact{}, fmt.Errorf("%w: artifact %s", ErrNotFound, artifactID)
	}
	artifact := &user.Artifacts[projectID][index]
	if patch.Title != nil {
		if strings.TrimSpace(*patch.Title) == "" {
			return workspace.Artifact{}, fmt.Errorf("%w: artifact title required", ErrInvalidInput)
		}
		artifact.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Summary != nil {
		artifact.Summary = *patch.Summary
	}
	if patch.Status != nil {
		artifact.Status = *patch.Status
	}
	if patch.Tags != nil {
		artifact.Tags = normalizeTags(*patch.Tags)
	}
	if patch.Relations != nil {
		artifact.Relations = append([]workspace.Relation{}, *patch.Relations...)
	}
	if patch.Data != nil {
		artifact.Data = patch.Data
	}
	s.appendEventLocked(user, "artifact.updated", userID, artifactID, projectID)
	s.persistLocked()
	return *artifact, nil
}

func (s *Store) DeleteArtifact(userID, artifactID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("%w: artifact %s", ErrNotFound, artifactID)
	}
	projectID, index := findArtifactLocked(user, artifactID)
	if index < 0 {
		return fmt.Errorf("%w: artifact %s", ErrNotFound, artifactID)
	}
	list := user.Artifacts[projectID]
	user.Artifacts[projectID] = append(list[:index], list[index+1:]...)
	s.appendEventLocked(user, "artifact.deleted", userID, artifactID, projectID)
	s.persistLocked()
	return nil
}

// ListEvents pages a user's activity history, oldest first. The cursor
// is the last event id of the previous page.
func (s *Store) ListEvents(userID, cursor string, limit int) (EventFeed, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return EventFeed{Events: []Event{}}, nil
	}
	start, err := pageStart(len(user.Events), cursor, func(i int) string {
		return user.Events[i].EventID
	})
	if err != nil {
		return EventFeed{}, err
	}
	end := start + limit
	if end > len(user.Events) {
		end = len(user.Events)
	}
	feed := EventFeed{Events: append([]Event{}, user.Events[start:end]...)}
	if end < len(user.Events) {
		next := user.Events[end-1].EventID
		feed.NextCursor = &next
	}
	return feed, nil
}

// Subscribe registers a live event channel for userID. The returned
// cancel function must be called exactly once; slow subscribers drop
// events rather than block mutations.
func (s *Store) Subscribe(userID string) (<-chan Event, func()) {
	ch := make(chan Event, 16)
	s.subMu.Lock()
	s.subCounter++
	id := s.subCounter
	if s.subscribers[userID] == nil {
		s.subscribers[userID] = map[uint64]chan Event{}
	}
	s.subscribers[userID][id] = ch
	s.subMu.Unlock()

	cancel := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if subs, ok := s.subscribers[userID]; ok {
			if sub, live := subs[id]; live {
				delete(subs, id)
				close(sub)
			}
			if len(subs) == 0 {
				delete(s.subscribers, userID)
			}
		}
	}
	return ch, cancel
}

func (s *Store) appendEventLocked(user *userState, eventType, userID, entityID, projectID string) {
	s.eventCounter++
	event := Event{
		EventID:   fmt.Sprintf("evt_%08d", s.eventCounter),
		Type:      eventType,
		UserID:    userID,
		EntityID:  entityID,
		ProjectID: projectID,
		Timestamp: s.now().UTC().Format(time.RFC3339Nano),
	}
	user.Events = append(user.Events, event)
	if overflow := len(user.Events) - s.maxStoredEvents; overflow > 0 {
		user.Events = append([]Event(nil), user.Events[overflow:]...)
	}

	s.subMu.Lock()
	for _, ch := range s.subscribers[userID] {
		select {
		case ch <- event:
		default:
		}
	}
	s.subMu.Unlock()
}

func hasProjectLocked(user *userState, projectID string) bool {
	for i := range user.Projects {
		if user.Projects[i].ID == projectID {
			return true
		}
	}
	return false
}

func findArtifactLocked(user *userState, artifactID string) (projectID string, index int) {
	for pid, list := range user.Artifacts {
		for i := range list {
			if list[i].ID == artifactID {
				return pid, i
			}
		}
	}
	return "", -1
}

func normalizePageSize(size int) (int, error) {
	switch {
	case size < 0:
		return 0, fmt.Errorf("%w: negative page size", ErrInvalidInput)
	case size == 0:
		return DefaultPageSize, nil
	case size > MaxPageSize:
		return MaxPageSize, nil
	default:
		return size, nil
	}
}

// pageStart resolves a last-seen-id token to the index the next page
// starts at. An unknown token is an input error: paging an id that was
// deleted mid-scan should surface, not silently restart.
func pageStart(length int, token string, idAt func(int) string) (int, error) {
	if strings.TrimSpace(token) == "" {
		return 0, nil
	}
	for i := 0; i < length; i++ {
		if idAt(i) == token {
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown page token %q", ErrInvalidInput, token)
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := map[string]bool{}
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}
