package workspace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrClosed = errors.New("session closed")
	// ErrLoadInFlight is returned when a load for the same collection
	// key is already running. Callers racing the single-flight token
	// should treat this as "someone else is fetching".
	ErrLoadInFlight   = errors.New("load already in flight")
	ErrNoSuchProject  = errors.New("project not found")
	ErrNoSuchArtifact = errors.New("artifact not found")
)

type Logger interface {
	Printf(format string, args ...any)
}

// MutationPhase tracks a mutation through the optimistic pipeline.
type MutationPhase string

const (
	// MutationApplied: the local apply committed, remote attempt not started.
	MutationApplied MutationPhase = "applied"
	// MutationReconciling: the remote attempt is in flight.
	MutationReconciling MutationPhase = "reconciling"
	// MutationReconciled: local state converged to the server response,
	// or the session runs in guest mode and the local apply is
	// authoritative.
	MutationReconciled MutationPhase = "reconciled"
	// MutationFailed: the remote attempt failed. The optimistic local
	// state stays in place; the edit is visible but not persisted.
	MutationFailed MutationPhase = "failed"
)

// Mutation is the observable handle for one pipeline run.
type Mutation struct {
	mu    sync.Mutex
	phase MutationPhase
	err   error
	done  chan struct{}
}

func newMutation() *Mutation {
	return &Mutation{phase: MutationApplied, done: make(chan struct{})}
}

func (m *Mutation) Phase() MutationPhase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Err returns the remote failure, if any. Only meaningful once the
// mutation is finished.
func (m *Mutation) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Wait blocks until reconciliation finishes or ctx is done. It returns
// the reconciliation error, not a rollback: failed mutations keep their
// optimistic local state.
func (m *Mutation) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.done:
		return m.Err()
	}
}

func (m *Mutation) startReconcile() {
	m.mu.Lock()
	m.phase = MutationReconciling
	m.mu.Unlock()
}

func (m *Mutation) finish(phase MutationPhase, err error) {
	m.mu.Lock()
	m.phase = phase
	m.err = err
	m.mu.Unlock()
	close(m.done)
}

type SessionOptions struct {
	// OwnerID identifies the workspace owner. Required.
	OwnerID string
	// Client reaches the remote store. Ignored in guest mode.
	Client RemoteClient
	// Guest selects fully offline operation with a seeded workspace.
	Guest    bool
	PageSize int
	Logger   Logger
	// Now overrides the clock, used by streak accounting. Defaults to
	// time.Now.
	Now func() time.Time
}

// Session owns the in-memory copy of one identity's workspace and is
// the only writer of its collections, ledger, and cursor table. It is
// constructed per identity change and torn down with Close on sign-out.
type Session struct {
	mu       sync.Mutex
	owner    string
	client   RemoteClient
	guest    bool
	pageSize int
	logger   Logger
	now      func() time.Time

	// epoch invalidates in-flight remote results after Close. There is
	// no cancellation of the calls themselves; stale results are simply
	// never committed.
	epoch  int
	closed bool

	profile   UserProfile
	projects  []Project
	artifacts map[string][]Artifact
	residue   *ResidueLedger
	cursors   *CursorTable
	loading   map[string]bool
	localSeq  int
}

func NewSession(opts SessionOptions) (*Session, error) {
	if opts.OwnerID == "" {
		return nil, fmt.Errorf("owner id is required")
	}
	if !opts.Guest && opts.Client == nil {
		return nil, fmt.Errorf("client is required outside guest mode")
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 50
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Session{
		owner:     opts.OwnerID,
		client:    opts.Client,
		guest:     opts.Guest,
		pageSize:  opts.PageSize,
		logger:    opts.Logger,
		now:       opts.Now,
		artifacts: map[string][]Artifact{},
		residue:   NewResidueLedger(),
		cursors:   NewCursorTable(),
		loading:   map[string]bool{},
		profile:   UserProfile{ID: opts.OwnerID, Achievements: []string{}, ClaimedQuestlines: []string{}},
	}
	if opts.Guest {
		seeded := SeedGuestWorkspace(opts.OwnerID)
		s.profile = seeded.Profile
		s.projects = seeded.Projects
		s.artifacts = seeded.Artifacts
		s.cursors.MarkExhausted(ProjectsCollection)
		for _, project := range seeded.Projects {
			s.cursors.MarkExhausted(project.ID)
		}
	}
	return s, nil
}

// Guest reports whether the session runs fully offline.
func (s *Session) Guest() bool { return s.guest }

// Close tears the session down: in-flight remote results become
// no-ops, and the ledger and cursor table are invalidated.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.epoch++
	s.projects = nil
	s.artifacts = map[string][]Artifact{}
	s.residue.Reset()
	s.cursors.ResetAll()
	s.loading = map[string]bool{}
}

// Accessors return copies; callers never share the session's backing
// slices.

func (s *Session) Projects() []Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Project(nil), s.projects...)
}

func (s *Session) Artifacts(projectID string) []Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Artifact(nil), s.artifacts[projectID]...)
}

func (s *Session) Profile() UserProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

func (s *Session) ResidueFields(artifactID string) Residue {
	return s.residue.Fields(artifactID)
}

func (s *Session) CanLoadMore(collectionKey string) bool {
	return s.cursors.CanLoadMore(collectionKey)
}

// LoadInFlight exposes the single-flight token for a collection key.
func (s *Session) LoadInFlight(collectionKey string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading[collectionKey]
}

// LoadProfile fetches the remote profile and replaces the local copy.
// Guest sessions are already complete; the call is a no-op there.
func (s *Session) LoadProfile(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.guest {
		s.mu.Unlock()
		return nil
	}
	epoch := s.epoch
	s.mu.Unlock()

	raw, err := s.client.FetchProfile(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return nil
	}
	s.profile = NormalizeProfile(raw, s.owner)
	return nil
}

// LoadProjects fetches the next page of the global project list. With
// reset, the first page is fetched fresh and replaces the collection on
// success; prior state survives any failure.
func (s *Session) LoadProjects(ctx context.Context, reset bool) error {
	return s.loadPage(ctx, ProjectsCollection, reset, func(ctx context.Context, token string) (pageResult, error) {
		page, err := s.client.ListProjects(ctx, PageRequest{PageSize: s.pageSize, PageToken: token})
		if err != nil {
			return pageResult{}, err
		}
		return pageResult{rawEntities: page.Projects, next: page.NextPageToken}, nil
	}, s.commitProjectPage)
}

// LoadArtifacts fetches the next page of one project's artifact list.
func (s *Session) LoadArtifacts(ctx context.Context, projectID string, reset bool) error {
	return s.loadPage(ctx, projectID, reset, func(ctx context.Context, token string) (pageResult, error) {
		page, err := s.client.ListArtifacts(ctx, projectID, PageRequest{PageSize: s.pageSize, PageToken: token})
		if err != nil {
			return pageResult{}, err
		}
		return pageResult{rawEntities: page.Artifacts, next: page.NextPageToken}, nil
	}, func(key string, result pageResult, reset bool) {
		s.commitArtifactPage(key, result, reset)
	})
}

type pageResult struct {
	rawEntities []map[string]any
	next        *string
}

type pageFetch func(ctx context.Context, token string) (pageResult, error)
type pageCommit func(collectionKey string, result pageResult, reset bool)

func (s *Session) loadPage(ctx context.Context, key string, reset bool, fetch pageFetch, commit pageCommit) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.guest {
		s.mu.Unlock()
		return nil
	}
	if s.loading[key] {
		s.mu.Unlock()
		return ErrLoadInFlight
	}
	token := ""
	if !reset {
		status, stored := s.cursors.Status(key)
		if status == CursorExhausted {
			s.mu.Unlock()
			return nil
		}
		token = stored
	}
	s.loading[key] = true
	epoch := s.epoch
	s.mu.Unlock()

	result, err := fetch(ctx, token)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.loading, key)
	if err != nil {
		// Prior collection and cursor state stay untouched; a failed
		// page fetch must never corrupt pagination.
		s.logf("load %s failed: %v", key, err)
		return err
	}
	if s.epoch != epoch {
		return nil
	}
	commit(key, result, reset)
	s.cursors.Store(key, result.next)
	return nil
}

func (s *Session) commitProjectPage(_ string, result pageResult, reset bool) {
	incoming := make([]Project, 0, len(result.rawEntities))
	for _, raw := range result.rawEntities {
		incoming = append(incoming, NormalizeProject(raw, s.owner))
	}
	if reset {
		s.projects = MergeByID(nil, incoming)
		return
	}
	s.projects = MergeByID(s.projects, incoming)
}

func (s *Session) commitArtifactPage(projectID string, result pageResult, reset bool) {
	incoming := make([]Artifact, 0, len(result.rawEntities))
	for _, raw := range result.rawEntities {
		artifact, residue := NormalizeArtifact(raw, s.owner)
		if artifact.ProjectID == "" {
			artifact.ProjectID = projectID
		}
		s.residue.Record(artifact.ID, residue)
		incoming = append(incoming, artifact)
	}
	if reset {
		s.artifacts[projectID] = MergeByID(nil, incoming)
		return
	}
	s.artifacts[projectID] = MergeByID(s.artifacts[projectID], incoming)
}

// CreateProject applies the draft locally and returns the optimistic
// project immediately; reconciliation converges the entry to the
// server's canonical entity in the background.
func (s *Session) CreateProject(ctx context.Context, draft ProjectDraft) (Project, *Mutation, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Project{}, nil, ErrClosed
	}
	project := Project{
		ID:      s.mintLocalID("project"),
		OwnerID: s.owner,
		Title:   draft.Title,
		Summary: draft.Summary,
		Status:  draft.Status,
		Tags:    dedupeTags(draft.Tags),
	}
	if project.Status == "" {
		project.Status = DefaultProjectStatus
	}
	s.projects = MergeByID(s.projects, []Project{project})
	// A locally created project has nothing remote to page in.
	s.cursors.MarkExhausted(project.ID)
	mutation := newMutation()
	localID := project.ID
	epoch := s.epoch
	s.mu.Unlock()

	if s.guest {
		mutation.finish(MutationReconciled, nil)
		return project, mutation, nil
	}

	mutation.startReconcile()
	go func() {
		raw, err := s.client.CreateProject(ctx, draft)
		if err != nil {
			s.logf("create project %s not persisted: %v", localID, err)
			mutation.finish(MutationFailed, err)
			return
		}
		s.mu.Lock()
		if s.epoch == epoch {
			canonical := NormalizeProject(raw, s.owner)
			s.replaceProject(localID, canonical)
		}
		s.mu.Unlock()
		mutation.finish(MutationReconciled, nil)
	}()
	return project, mutation, nil
}

// replaceProject swaps the entity stored under oldID for canonical,
// keeping its position and migrating the artifact collection and its
// cursor when the server assigned a new id.
func (s *Session) replaceProject(oldID string, canonical Project) {
	for i := range s.projects {
		if s.projects[i].ID == oldID {
			s.projects[i] = canonical
			break
		}
	}
	if canonical.ID == oldID {
		return
	}
	if list, ok := s.artifacts[oldID]; ok {
		for i := range list {
			list[i].ProjectID = canonical.ID
		}
		s.artifacts[canonical.ID] = list
		delete(s.artifacts, oldID)
	}
	s.cursors.Reset(oldID)
	s.cursors.MarkExhausted(canonical.ID)
}

func (s *Session) UpdateProject(ctx context.Context, projectID string, patch ProjectPatch) (*Mutation, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	found := false
	for i := range s.projects {
		if s.projects[i].ID != projectID {
			continue
		}
		applyProjectPatch(&s.projects[i], patch)
		found = true
		break
	}
	if !found {
		s.mu.Unlock()
		return nil, ErrNoSuchProject
	}
	mutation := newMutation()
	epoch := s.epoch
	s.mu.Unlock()

	if s.guest {
		mutation.finish(MutationReconciled, nil)
		return mutation, nil
	}

	mutation.startReconcile()
	go func() {
		raw, err := s.client.UpdateProject(ctx, projectID, patch)
		if err != nil {
			s.logf("update project %s not persisted: %v", projectID, err)
			mutation.finish(MutationFailed, err)
			return
		}
		s.mu.Lock()
		if s.epoch == epoch {
			canonical := NormalizeProject(raw, s.owner)
			s.projects = MergeByID(s.projects, []Project{canonical})
		}
		s.mu.Unlock()
		mutation.finish(MutationReconciled, nil)
	}()
	return mutation, nil
}

// DeleteProject removes the project and its artifacts from every local
// index immediately. A failed remote delete leaves the local removal in
// place; the user's intent is not silently reverted.
func (s *Session) DeleteProject(ctx context.Context, projectID string) (*Mutation, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	index := -1
	for i := range s.projects {
		if s.projects[i].ID == projectID {
			index = i
			break
		}
	}
	if index < 0 {
		s.mu.Unlock()
		return nil, ErrNoSuchProject
	}
	s.projects = append(s.projects[:index], s.projects[index+1:]...)
	for _, artifact := range s.artifacts[projectID] {
		s.residue.Delete(artifact.ID)
	}
	delete(s.artifacts, projectID)
	s.cursors.Reset(projectID)
	mutation := newMutation()
	s.mu.Unlock()

	if s.guest {
		mutation.finish(MutationReconciled, nil)
		return mutation, nil
	}

	mutation.startReconcile()
	go func() {
		if err := s.client.DeleteProject(ctx, projectID); err != nil {
			s.logf("delete project %s not persisted: %v", projectID, err)
			mutation.finish(MutationFailed, err)
			return
		}
		mutation.finish(MutationReconciled, nil)
	}()
	return mutation, nil
}

// CreateArtifacts is the primary create contract: a batch of drafts
// for one project. Single create is a batch of one. Optimistic ids are
// minted locally and swapped for the server's ids on reconciliation.
func (s *Session) CreateArtifacts(ctx context.Context, projectID string, drafts []ArtifactDraft) ([]Artifact, *Mutation, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, nil, ErrClosed
	}
	created := make([]Artifact, 0, len(drafts))
	localIDs := make([]string, 0, len(drafts))
	for _, draft := range drafts {
		artifact := Artifact{
			ID:        s.mintLocalID("artifact"),
			OwnerID:   s.owner,
			ProjectID: projectID,
			Type:      draft.Type,
			Title:     draft.Title,
			Summary:   draft.Summary,
			Status:    draft.Status,
			Tags:      dedupeTags(draft.Tags),
			Relations: append([]Relation(nil), draft.Relations...),
			Data:      draft.Data,
		}
		if artifact.Type == "" {
			artifact.Type = DefaultArtifactType
		}
		if artifact.Data == nil {
			artifact.Data = map[string]any{}
		}
		created = append(created, artifact)
		localIDs = append(localIDs, artifact.ID)
	}
	s.artifacts[projectID] = MergeByID(s.artifacts[projectID], created)
	mutation := newMutation()
	epoch := s.epoch
	s.mu.Unlock()

	if s.guest {
		mutation.finish(MutationReconciled, nil)
		return created, mutation, nil
	}

	mutation.startReconcile()
	go func() {
		rawCreated, err := s.client.CreateArtifacts(ctx, projectID, drafts)
		if err != nil {
			s.logf("create %d artifact(s) in %s not persisted: %v", len(drafts), projectID, err)
			mutation.finish(MutationFailed, err)
			return
		}
		s.mu.Lock()
		if s.epoch == epoch {
			s.reconcileCreatedArtifacts(projectID, localIDs, rawCreated)
		}
		s.mu.Unlock()
		mutation.finish(MutationReconciled, nil)
	}()
	return created, mutation, nil
}

func (s *Session) reconcileCreatedArtifacts(projectID string, localIDs []string, rawCreated []map[string]any) {
	list := s.artifacts[projectID]
	extra := make([]Artifact, 0)
	for i, raw := range rawCreated {
		canonical, residue := NormalizeArtifact(raw, s.owner)
		if canonical.ProjectID == "" {
			canonical.ProjectID = projectID
		}
		s.residue.Record(canonical.ID, residue)
		replaced := false
		if i < len(localIDs) {
			for j := range list {
				if list[j].ID == localIDs[i] {
					list[j] = canonical
					replaced = true
					break
				}
			}
		}
		if !replaced {
			extra = append(extra, canonical)
		}
	}
	s.artifacts[projectID] = MergeByID(list, extra)
}

func (s *Session) UpdateArtifact(ctx context.Context, artifactID string, patch ArtifactPatch) (*Mutation, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	projectID, index := s.findArtifact(artifactID)
	if index < 0 {
		s.mu.Unlock()
		return nil, ErrNoSuchArtifact
	}
	applyArtifactPatch(&s.artifacts[projectID][index], patch)
	// A valid client value supersedes whatever invalid raw value the
	// server last sent for that field.
	if patch.Tags != nil {
		s.residue.ClearField(artifactID, ResidueTags)
	}
	if patch.Relations != nil {
		s.residue.ClearField(artifactID, ResidueRelations)
	}
	mutation := newMutation()
	epoch := s.epoch
	s.mu.Unlock()

	if s.guest {
		mutation.finish(MutationReconciled, nil)
		return mutation, nil
	}

	mutation.startReconcile()
	go func() {
		raw, err := s.client.UpdateArtifact(ctx, artifactID, patch)
		if err != nil {
			s.logf("update artifact %s not persisted: %v", artifactID, err)
			mutation.finish(MutationFailed, err)
			return
		}
		s.mu.Lock()
		if s.epoch == epoch {
			canonical, residue := NormalizeArtifact(raw, s.owner)
			// The artifact may have been deleted while the update was in
			// flight; recording residue then would resurrect ledger state
			// for an entity that no longer exists.
			if pid, idx := s.findArtifact(artifactID); idx >= 0 {
				if canonical.ProjectID == "" {
					canonical.ProjectID = pid
				}
				s.artifacts[pid][idx] = canonical
				s.residue.Record(canonical.ID, residue)
			}
		}
		s.mu.Unlock()
		mutation.finish(MutationReconciled, nil)
	}()
	return mutation, nil
}

// DeleteArtifact removes the artifact by id alone. The parent
// collection is located by scanning; no reverse index is maintained.
func (s *Session) DeleteArtifact(ctx context.Context, artifactID string) (*Mutation, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	projectID, index := s.findArtifact(artifactID)
	if index < 0 {
		s.mu.Unlock()
		return nil, ErrNoSuchArtifact
	}
	list := s.artifacts[projectID]
	s.artifacts[projectID] = append(list[:index], list[index+1:]...)
	s.residue.Delete(artifactID)
	mutation := newMutation()
	s.mu.Unlock()

	if s.guest {
		mutation.finish(MutationReconciled, nil)
		return mutation, nil
	}

	mutation.startReconcile()
	go func() {
		if err := s.client.DeleteArtifact(ctx, artifactID); err != nil {
			s.logf("delete artifact %s not persisted: %v", artifactID, err)
			mutation.finish(MutationFailed, err)
			return
		}
		mutation.finish(MutationReconciled, nil)
	}()
	return mutation, nil
}

// GrantXP applies an XP delta optimistically, advancing the streak
// locally for positive deltas. The server recomputes streaks; its
// profile response is authoritative on reconciliation.
func (s *Session) GrantXP(ctx context.Context, delta int) (UserProfile, *Mutation, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return UserProfile{}, nil, ErrClosed
	}
	s.profile.XP = AddXP(s.profile.XP, delta)
	if delta > 0 {
		progress := AdvanceStreak(s.profile.Progress(), DateKey(s.now()))
		s.profile.StreakCount = progress.StreakCount
		s.profile.BestStreak = progress.BestStreak
		s.profile.LastActiveDate = progress.LastActiveDate
	}
	optimistic := s.profile
	mutation := newMutation()
	epoch := s.epoch
	s.mu.Unlock()

	if s.guest {
		mutation.finish(MutationReconciled, nil)
		return optimistic, mutation, nil
	}

	mutation.startReconcile()
	go func() {
		raw, err := s.client.GrantXP(ctx, delta)
		if err != nil {
			s.logf("xp grant (%+d) not persisted: %v", delta, err)
			mutation.finish(MutationFailed, err)
			return
		}
		s.mu.Lock()
		if s.epoch == epoch {
			s.profile = NormalizeProfile(raw, s.owner)
		}
		s.mu.Unlock()
		mutation.finish(MutationReconciled, nil)
	}()
	return optimistic, mutation, nil
}

func (s *Session) UpdateProfile(ctx context.Context, patch ProfilePatch) (*Mutation, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	applyProfilePatch(&s.profile, patch)
	mutation := newMutation()
	epoch := s.epoch
	s.mu.Unlock()

	if s.guest {
		mutation.finish(MutationReconciled, nil)
		return mutation, nil
	}

	mutation.startReconcile()
	go func() {
		raw, err := s.client.UpdateProfile(ctx, patch)
		if err != nil {
			s.logf("profile update not persisted: %v", err)
			mutation.finish(MutationFailed, err)
			return
		}
		s.mu.Lock()
		if s.epoch == epoch {
			s.profile = NormalizeProfile(raw, s.owner)
		}
		s.mu.Unlock()
		mutation.finish(MutationReconciled, nil)
	}()
	return mutation, nil
}

// findArtifact scans all collections for artifactID. Callers hold the
// session mutex.
func (s *Session) findArtifact(artifactID string) (projectID string, index int) {
	for pid, list := range s.artifacts {
		for i := range list {
			if list[i].ID == artifactID {
				return pid, i
			}
		}
	}
	return "", -1
}

// mintLocalID mints a session-unique optimistic id. Callers hold the
// session mutex.
func (s *Session) mintLocalID(kind string) string {
	s.localSeq++
	return fmt.Sprintf("local-%s-%d", kind, s.localSeq)
}

func (s *Session) logf(format string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Printf(format, args...)
}

func applyProjectPatch(project *Project, patch ProjectPatch) {
	if patch.Title != nil {
		project.Title = *patch.Title
	}
	if patch.Summary != nil {
		project.Summary = *patch.Summary
	}
	if patch.Status != nil {
		project.Status = *patch.Status
	}
	if patch.Tags != nil {
		project.Tags = dedupeTags(*patch.Tags)
	}
}

func applyArtifactPatch(artifact *Artifact, patch ArtifactPatch) {
	if patch.Title != nil {
		artifact.Title = *patch.Title
	}
	if patch.Summary != nil {
		artifact.Summary = *patch.Summary
	}
	if patch.Status != nil {
		artifact.Status = *patch.Status
	}
	if patch.Tags != nil {
		artifact.Tags = dedupeTags(*patch.Tags)
	}
	if patch.Relations != nil {
		artifact.Relations = append([]Relation(nil), *patch.Relations...)
	}
	if patch.Data != nil {
		artifact.Data = patch.Data
	}
}

func applyProfilePatch(profile *UserProfile, patch ProfilePatch) {
	if patch.DisplayName != nil {
		profile.DisplayName = *patch.DisplayName
	}
	if patch.AvatarURL != nil {
		profile.AvatarURL = *patch.AvatarURL
	}
	if patch.Achievements != nil {
		profile.Achievements = dedupeTags(*patch.Achievements)
	}
	if patch.ClaimedQuestlines != nil {
		profile.ClaimedQuestlines = dedupeTags(*patch.ClaimedQuestlines)
	}
	if patch.Settings != nil {
		profile.Settings = *patch.Settings
	}
}
