// Package httpapi serves the Quill workspace API: profile and progress
// endpoints, paginated project and artifact collections, and the
// activity feed consumed by live dashboards.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/quillworks/quill/internal/quill"
	"github.com/quillworks/quill/internal/workspace"
)

type ServerConfig struct {
	JWTSecret       string
	RateLimitMax    int
	RateLimitWindow time.Duration
	MaxBodyBytes    int64
}

type Server struct {
	store       *quill.Store
	cfg         ServerConfig
	rateLimiter *rateLimiter
}

type rateLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	max     int
	entries map[string]rateEntry
}

type rateEntry struct {
	count   int
	resetAt time.Time
}

func NewServer(store *quill.Store) *Server {
	return NewServerWithConfig(store, ServerConfig{})
}

func NewServerWithConfig(store *quill.Store, cfg ServerConfig) *Server {
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-secret"
	}
	if cfg.RateLimitMax < 0 {
		cfg.RateLimitMax = 0
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = time.Minute
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	var limiter *rateLimiter
	if cfg.RateLimitMax > 0 {
		limiter = &rateLimiter{
			window:  cfg.RateLimitWindow,
			max:     cfg.RateLimitMax,
			entries: map[string]rateEntry{},
		}
	}
	return &Server{
		store:       store,
		cfg:         cfg,
		rateLimiter: limiter,
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/health" && r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	if (r.URL.Path == "/" || r.URL.Path == "/dashboard") && r.Method == http.MethodGet {
		s.handleDashboard(w, r)
		return
	}

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "v1" {
		writeError(w, http.StatusNotFound, "not_found", "route not found", getCorrelationID(r))
		return
	}

	var requiredScope string
	var route string
	switch {
	case len(parts) == 2 && parts[1] == "profile" && r.Method == http.MethodGet:
		requiredScope = ScopeWorkspaceRead
		route = "profile_get"
	case len(parts) == 2 && parts[1] == "profile" && r.Method == http.MethodPatch:
		requiredScope = ScopeWorkspaceWrite
		route = "profile_patch"
	case len(parts) == 3 && parts[1] == "profile" && parts[2] == "xp" && r.Method == http.MethodPost:
		requiredScope = ScopeWorkspaceWrite
		route = "xp_grant"
	case len(parts) == 2 && parts[1] == "projects" && r.Method == http.MethodGet:
		requiredScope = ScopeWorkspaceRead
		route = "projects_list"
	case len(parts) == 2 && parts[1] == "projects" && r.Method == http.MethodPost:
		requiredScope = ScopeWorkspaceWrite
		route = "project_create"
	case len(parts) == 3 && parts[1] == "projects" && r.Method == http.MethodPatch:
		requiredScope = ScopeWorkspaceWrite
		route = "project_patch"
	case len(parts) == 3 && parts[1] == "projects" && r.Method == http.MethodDelete:
		requiredScope = ScopeWorkspaceWrite
		route = "project_delete"
	case len(parts) == 4 && parts[1] == "projects" && parts[3] == "artifacts" && r.Method == http.MethodGet:
		requiredScope = ScopeWorkspaceRead
		route = "artifacts_list"
	case len(parts) == 4 && parts[1] == "projects" && parts[3] == "artifacts" && r.Method == http.MethodPost:
		requiredScope = ScopeWorkspaceWrite
		route = "artifacts_create"
	case len(parts) == 3 && parts[1] == "artifacts" && r.Method == http.MethodPatch:
		requiredScope = ScopeWorkspaceWrite
		route = "artifact_patch"
	case len(parts) == 3 && parts[1] == "artifacts" && r.Method == http.MethodDelete:
		requiredScope = ScopeWorkspaceWrite
		route = "artifact_delete"
	case len(parts) == 2 && parts[1] == "activity" && r.Method == http.MethodGet:
		requiredScope = ScopeWorkspaceRead
		route = "activity"
	case len(parts) == 3 && parts[1] == "activity" && parts[2] == "ws" && r.Method == http.MethodGet:
		requiredScope = ScopeWorkspaceRead
		route = "activity_ws"
	default:
		writeError(w, http.StatusNotFound, "not_found", "route not found", getCorrelationID(r))
		return
	}

	claims, authErr := authorizeBearer(bearerHeader(r), s.cfg.JWTSecret, requiredScope, time.Now().UTC())
	if authErr != nil {
		writeError(w, authErr.status, authErr.code, authErr.message, getCorrelationID(r))
		return
	}

	// The websocket upgrade carries no correlation header and manages
	// its own lifecycle.
	if route == "activity_ws" {
		s.handleActivityWS(w, r, claims.UserID)
		return
	}

	correlationID := getCorrelationID(r)
	if correlationID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "missing X-Correlation-Id header", "")
		return
	}
	if s.rateLimiter != nil {
		if !s.rateLimiter.allow(claims.UserID, time.Now().UTC()) {
			retryAfter := int(math.Ceil(s.rateLimiter.window.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded", correlationID)
			return
		}
	}

	switch route {
	case "profile_get":
		s.handleProfileGet(w, claims.UserID, correlationID)
	case "profile_patch":
		s.handleProfilePatch(w, r, claims.UserID, correlationID)
	case "xp_grant":
		s.handleXPGrant(w, r, claims.UserID, correlationID)
	case "projects_list":
		s.handleProjectsList(w, r, claims.UserID, correlationID)
	case "project_create":
		s.handleProjectCreate(w, r, claims.UserID, correlationID)
	case "project_patch":
		s.handleProjectPatch(w, r, claims.UserID, parts[2], correlationID)
	case "project_delete":
		s.handleProjectDelete(w, claims.UserID, parts[2], correlationID)
	case "artifacts_list":
		s.handleArtifactsList(w, r, claims.UserID, parts[2], correlationID)
	case "artifacts_create":
		s.handleArtifactsCreate(w, r, claims.UserID, parts[2], correlationID)
	case "artifact_patch":
		s.handleArtifactPatch(w, r, claims.UserID, parts[2], correlationID)
	case "artifact_delete":
		s.handleArtifactDelete(w, claims.UserID, parts[2], correlationID)
	case "activity":
		s.handleActivity(w, r, claims.UserID, correlationID)
	default:
		writeError(w, http.StatusNotFound, "not_found", "route not found", correlationID)
	}
}

func (s *Server) handleProfileGet(w http.ResponseWriter, userID, correlationID string) {
	profile, err := s.store.GetProfile(userID)
	if err != nil {
		writeStoreError(w, err, correlationID)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleProfilePatch(w http.ResponseWriter, r *http.Request, userID, correlationID string) {
	var patch workspace.ProfilePatch
	if !s.decodeJSONBody(w, r, correlationID, &patch) {
		return
	}
	profile, err := s.store.UpdateProfile(userID, patch)
	if err != nil {
		writeStoreError(w, err, correlationID)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleXPGrant(w http.ResponseWriter, r *http.Request, userID, correlationID string) {
	var body struct {
		Delta *int `json:"delta"`
	}
	if !s.decodeJSONBody(w, r, correlationID, &body) {
		return
	}
	if body.Delta == nil {
		writeError(w, http.StatusBadRequest, "bad_request", "missing delta field", correlationID)
		return
	}
	profile, err := s.store.GrantXP(userID, *body.Delta)
	if err != nil {
		writeStoreError(w, err, correlationID)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleProjectsList(w http.ResponseWriter, r *http.Request, userID, correlationID string) {
	page, err := s.store.ListProjects(userID, pageRequestFromQuery(r))
	if err != nil {
		writeStoreError(w, err, correlationID)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleProjectCreate(w http.ResponseWriter, r *http.Request, userID, correlationID string) {
	var draft workspace.ProjectDraft
	if !s.decodeJSONBody(w, r, correlationID, &draft) {
		return
	}
	project, err := s.store.CreateProject(userID, draft)
	if err != nil {
		writeStoreError(w, err, correlationID)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (s *Server) handleProjectPatch(w http.ResponseWriter, r *http.Request, userID, projectID, correlationID string) {
	var patch workspace.ProjectPatch
	if !s.decodeJSONBody(w, r, correlationID, &patch) {
		return
	}
	project, err := s.store.UpdateProject(userID, projectID, patch)
	if err != nil {
		writeStoreError(w, err, correlationID)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) handleProjectDelete(w http.ResponseWriter, userID, projectID, correlationID string) {
	if err := s.store.DeleteProject(userID, projectID); err != nil {
		writeStoreError(w, err, correlationID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": projectID})
}

func (s *Server) handleArtifactsList(w http.ResponseWriter, r *http.Request, userID, projectID, correlationID string) {
	page, err := s.store.ListArtifacts(userID, projectID, pageRequestFromQuery(r))
	if err != nil {
		writeStoreError(w, err, correlationID)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleArtifactsCreate(w http.ResponseWriter, r *http.Request, userID, projectID, correlationID string) {
	var body struct {
		Drafts []workspace.ArtifactDraft `json:"drafts"`
	}
	if !s.decodeJSONBody(w, r, correlationID, &body) {
		return
	}
	created, err := s.store.CreateArtifacts(userID, projectID, body.Drafts)
	if err != nil {
		writeStoreError(w, err, correlationID)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"artifacts": created})
}

func (s *Server) handleArtifactPatch(w http.ResponseWriter, r *http.Request, userID, artifactID, correlationID string) {
	var patch workspace.ArtifactPatch
	if !s.decodeJSONBody(w, r, correlationID, &patch) {
		return
	}
	artifact, err := s.store.UpdateArtifact(userID, artifactID, patch)
	if err != nil {
		writeStoreError(w, err, correlationID)
		return
	}
	writeJSON(w, http.StatusOK, artifact)
}

func (s *Server) handleArtifactDelete(w http.ResponseWriter, userID, artifactID, correlationID string) {
	if err := s.store.DeleteArtifact(userID, artifactID); err != nil {
		writeStoreError(w, err, correlationID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": artifactID})
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request, userID, correlationID string) {
	limit := parseBoundedInt(r.URL.Query().Get("limit"), 50, 1, 200)
	feed, err := s.store.ListEvents(userID, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		writeStoreError(w, err, correlationID)
		return
	}
	writeJSON(w, http.StatusOK, feed)
}

// bearerHeader resolves the credential for a request. Websocket clients
// cannot set headers from browsers, so the access_token query parameter
// is accepted as a fallback.
func bearerHeader(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		return header
	}
	if token := r.URL.Query().Get("access_token"); token != "" {
		return "Bearer " + token
	}
	return ""
}

func pageRequestFromQuery(r *http.Request) quill.PageRequest {
	return quill.PageRequest{
		PageSize:  parseBoundedInt(r.URL.Query().Get("pageSize"), 0, 1, quill.MaxPageSize),
		PageToken: r.URL.Query().Get("pageToken"),
	}
}

func getCorrelationID(r *http.Request) string {
	return r.Header.Get("X-Correlation-Id")
}

func writeStoreError(w http.ResponseWriter, err error, correlationID string) {
	switch {
	case errors.Is(err, quill.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error(), correlationID)
	case errors.Is(err, quill.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "bad_request", err.Error(), correlationID)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error(), correlationID)
	}
}

func (s *Server) readRequestBody(w http.ResponseWriter, r *http.Request, correlationID string) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body exceeds configured limit", correlationID)
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "bad_request", "failed to read request body", correlationID)
		return nil, false
	}
	return body, true
}

func (s *Server) decodeJSONBody(w http.ResponseWriter, r *http.Request, correlationID string, dst any) bool {
	body, ok := s.readRequestBody(w, r, correlationID)
	if !ok {
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json body", correlationID)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message, correlationID string) {
	writeJSON(w, status, map[string]any{
		"code":          code,
		"message":       message,
		"correlationId": correlationID,
	})
}

func (r *rateLimiter) allow(key string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[key]
	if !ok || now.After(entry.resetAt) {
		r.entries[key] = rateEntry{
			count:   1,
			resetAt: now.Add(r.window),
		}
		return true
	}
	if entry.count >= r.max {
		return false
	}
	entry.count++
	r.entries[key] = entry
	return true
}

func parseBoundedInt(raw string, fallback, min, max int) int {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	if parsed < min {
		return fallback
	}
	if parsed > max {
		return max
	}
	return parsed
}
