package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/quillworks/quill/internal/quill"
	"github.com/quillworks/quill/internal/workspace"
)

type request struct {
	method  string
	path    string
	headers map[string]string
	body    any
}

func doRequest(t *testing.T, server http.Handler, req request) *httptest.ResponseRecorder {
	t.Helper()
	var bodyReader *bytes.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		bodyReader = bytes.NewReader(payload)
	} else {
		bodyReader = bytes.NewReader(nil)
	}
	httpReq := httptest.NewRequest(req.method, req.path, bodyReader)
	for key, value := range req.headers {
		httpReq.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httpReq)
	return rec
}

func mustTestJWT(t *testing.T, secret, userID string, scopes []string, ttl time.Duration) string {
	t.Helper()
	token, err := SignToken(secret, userID, scopes, ttl, time.Now().UTC())
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func authedHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization":    "Bearer " + token,
		"X-Correlation-Id": "corr_test",
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := NewServer(quill.NewStore())
	resp := doRequest(t, server, request{method: http.MethodGet, path: "/health"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestDashboardServed(t *testing.T) {
	server := NewServer(quill.NewStore())
	resp := doRequest(t, server, request{method: http.MethodGet, path: "/"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if contentType := resp.Header().Get("Content-Type"); !strings.HasPrefix(contentType, "text/html") {
		t.Fatalf("expected html dashboard, got %q", contentType)
	}
}

func TestAuthRequired(t *testing.T) {
	server := NewServer(quill.NewStore())

	resp := doRequest(t, server, request{method: http.MethodGet, path: "/v1/profile"})
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.Code)
	}

	readOnly := mustTestJWT(t, "dev-secret", "u1", []string{ScopeWorkspaceRead}, time.Hour)
	resp = doRequest(t, server, request{
		method:  http.MethodPost,
		path:    "/v1/projects",
		headers: authedHeaders(readOnly),
		body:    workspace.ProjectDraft{Title: "nope"},
	})
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for missing write scope, got %d", resp.Code)
	}

	expired := mustTestJWT(t, "dev-secret", "u1", []string{ScopeWorkspaceRead}, time.Nanosecond)
	time.Sleep(2 * time.Millisecond)
	resp = doRequest(t, server, request{
		method:  http.MethodGet,
		path:    "/v1/profile",
		headers: authedHeaders(expired),
	})
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", resp.Code)
	}

	wrongSecret := mustTestJWT(t, "other-secret", "u1", []string{ScopeWorkspaceRead}, time.Hour)
	resp = doRequest(t, server, request{
		method:  http.MethodGet,
		path:    "/v1/profile",
		headers: authedHeaders(wrongSecret),
	})
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad signature, got %d", resp.Code)
	}
}

func TestCorrelationIDRequired(t *testing.T) {
	server := NewServer(quill.NewStore())
	token := mustTestJWT(t, "dev-secret", "u1", []string{ScopeWorkspaceRead}, time.Hour)

	resp := doRequest(t, server, request{
		method:  http.MethodGet,
		path:    "/v1/profile",
		headers: map[string]string{"Authorization": "Bearer " + token},
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without correlation id, got %d", resp.Code)
	}
}

func TestProfileLifecycle(t *testing.T) {
	server := NewServer(quill.NewStore())
	token := mustTestJWT(t, "dev-secret", "u1", []string{ScopeWorkspaceRead, ScopeWorkspaceWrite}, time.Hour)

	resp := doRequest(t, server, request{
		method:  http.MethodGet,
		path:    "/v1/profile",
		headers: authedHeaders(token),
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", resp.Code, resp.Body.String())
	}
	var profile workspace.UserProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if profile.ID != "u1" || profile.XP != 0 {
		t.Fatalf("unexpected fresh profile: %+v", profile)
	}

	name := "Rowan"
	resp = doRequest(t, server, request{
		method:  http.MethodPatch,
		path:    "/v1/profile",
		headers: authedHeaders(token),
		body:    workspace.ProfilePatch{DisplayName: &name},
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 on patch, got %d", resp.Code)
	}

	resp = doRequest(t, server, request{
		method:  http.MethodPost,
		path:    "/v1/profile/xp",
		headers: authedHeaders(token),
		body:    map[string]int{"delta": 30},
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 on grant, got %d (%s)", resp.Code, resp.Body.String())
	}
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if profile.XP != 30 || profile.StreakCount != 1 || profile.DisplayName != "Rowan" {
		t.Fatalf("unexpected profile after grant: %+v", profile)
	}

	resp = doRequest(t, server, request{
		method:  http.MethodPost,
		path:    "/v1/profile/xp",
		headers: authedHeaders(token),
		body:    map[string]string{"note": "no delta"},
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing delta, got %d", resp.Code)
	}
}

func TestProjectAndArtifactLifecycle(t *testing.T) {
	server := NewServer(quill.NewStore())
	token := mustTestJWT(t, "dev-secret", "u1", []string{ScopeWorkspaceRead, ScopeWorkspaceWrite}, time.Hour)

	resp := doRequest(t, server, request{
		method:  http.MethodPost,
		path:    "/v1/projects",
		headers: authedHeaders(token),
		body:    workspace.ProjectDraft{Title: "The Ashen Vale", Status: workspace.ProjectActive},
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", resp.Code, resp.Body.String())
	}
	var project workspace.Project
	if err := json.NewDecoder(resp.Body).Decode(&project); err != nil {
		t.Fatalf("decode project: %v", err)
	}

	resp = doRequest(t, server, request{
		method:  http.MethodGet,
		path:    "/v1/projects?pageSize=10",
		headers: authedHeaders(token),
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var page quill.ProjectPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if len(page.Projects) != 1 || page.Projects[0].ID != project.ID || page.NextPageToken != nil {
		t.Fatalf("unexpected project page: %+v", page)
	}

	resp = doRequest(t, server, request{
		method:  http.MethodPost,
		path:    "/v1/projects/" + project.ID + "/artifacts",
		headers: authedHeaders(token),
		body: map[string]any{
			"drafts": []workspace.ArtifactDraft{
				{Type: workspace.ArtifactCharacter, Title: "Mara Venn"},
				{Type: workspace.ArtifactTask, Title: "Outline act one"},
			},
		},
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", resp.Code, resp.Body.String())
	}
	var createEnvelope struct {
		Artifacts []workspace.Artifact `json:"artifacts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&createEnvelope); err != nil {
		t.Fatalf("decode create envelope: %v", err)
	}
	if len(createEnvelope.Artifacts) != 2 {
		t.Fatalf("expected 2 created artifacts, got %+v", createEnvelope.Artifacts)
	}

	summary := "reluctant cartographer"
	resp = doRequest(t, server, request{
		method:  http.MethodPatch,
		path:    "/v1/artifacts/" + createEnvelope.Artifacts[0].ID,
		headers: authedHeaders(token),
		body:    workspace.ArtifactPatch{Summary: &summary},
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 on patch, got %d (%s)", resp.Code, resp.Body.String())
	}

	resp = doRequest(t, server, request{
		method:  http.MethodDelete,
		path:    "/v1/artifacts/" + createEnvelope.Artifacts[1].ID,
		headers: authedHeaders(token),
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 on delete, got %d", resp.Code)
	}

	resp = doRequest(t, server, request{
		method:  http.MethodGet,
		path:    "/v1/projects/" + project.ID + "/artifacts",
		headers: authedHeaders(token),
	})
	var artifactPage quill.ArtifactPage
	if err := json.NewDecoder(resp.Body).Decode(&artifactPage); err != nil {
		t.Fatalf("decode artifact page: %v", err)
	}
	if len(artifactPage.Artifacts) != 1 || artifactPage.Artifacts[0].Summary != summary {
		t.Fatalf("unexpected artifact page: %+v", artifactPage.Artifacts)
	}

	resp = doRequest(t, server, request{
		method:  http.MethodDelete,
		path:    "/v1/projects/" + project.ID,
		headers: authedHeaders(token),
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 on project delete, got %d", resp.Code)
	}
	resp = doRequest(t, server, request{
		method:  http.MethodDelete,
		path:    "/v1/projects/" + project.ID,
		headers: authedHeaders(token),
	})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on double delete, got %d", resp.Code)
	}
}

func TestValidationErrorsMapTo400(t *testing.T) {
	server := NewServer(quill.NewStore())
	token := mustTestJWT(t, "dev-secret", "u1", []string{ScopeWorkspaceWrite}, time.Hour)

	resp := doRequest(t, server, request{
		method:  http.MethodPost,
		path:    "/v1/projects",
		headers: authedHeaders(token),
		body:    workspace.ProjectDraft{Title: "  "},
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank title, got %d", resp.Code)
	}
	var errPayload struct {
		Code          string `json:"code"`
		CorrelationID string `json:"correlationId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&errPayload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if errPayload.Code != "bad_request" || errPayload.CorrelationID != "corr_test" {
		t.Fatalf("unexpected error payload: %+v", errPayload)
	}
}

func TestWorkspacesIsolatedByTokenSubject(t *testing.T) {
	server := NewServer(quill.NewStore())
	owner := mustTestJWT(t, "dev-secret", "u1", []string{ScopeWorkspaceRead, ScopeWorkspaceWrite}, time.Hour)
	stranger := mustTestJWT(t, "dev-secret", "u2", []string{ScopeWorkspaceRead, ScopeWorkspaceWrite}, time.Hour)

	resp := doRequest(t, server, request{
		method:  http.MethodPost,
		path:    "/v1/projects",
		headers: authedHeaders(owner),
		body:    workspace.ProjectDraft{Title: "private"},
	})
	var project workspace.Project
	if err := json.NewDecoder(resp.Body).Decode(&project); err != nil {
		t.Fatalf("decode project: %v", err)
	}

	resp = doRequest(t, server, request{
		method:  http.MethodDelete,
		path:    "/v1/projects/" + project.ID,
		headers: authedHeaders(stranger),
	})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign project, got %d", resp.Code)
	}
}

func TestRateLimitEnforced(t *testing.T) {
	server := NewServerWithConfig(quill.NewStore(), ServerConfig{
		RateLimitMax:    2,
		RateLimitWindow: time.Minute,
	})
	token := mustTestJWT(t, "dev-secret", "u1", []string{ScopeWorkspaceRead}, time.Hour)

	for i := 0; i < 2; i++ {
		resp := doRequest(t, server, request{
			method:  http.MethodGet,
			path:    "/v1/profile",
			headers: authedHeaders(token),
		})
		if resp.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, resp.Code)
		}
	}
	resp := doRequest(t, server, request{
		method:  http.MethodGet,
		path:    "/v1/profile",
		headers: authedHeaders(token),
	})
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.Code)
	}
	if resp.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header on 429")
	}
}

func TestActivityFeedEndpoint(t *testing.T) {
	server := NewServer(quill.NewStore())
	token := mustTestJWT(t, "dev-secret", "u1", []string{ScopeWorkspaceRead, ScopeWorkspaceWrite}, time.Hour)

	doRequest(t, server, request{
		method:  http.MethodPost,
		path:    "/v1/projects",
		headers: authedHeaders(token),
		body:    workspace.ProjectDraft{Title: "vale"},
	})

	resp := doRequest(t, server, request{
		method:  http.MethodGet,
		path:    "/v1/activity",
		headers: authedHeaders(token),
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var feed quill.EventFeed
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		t.Fatalf("decode feed: %v", err)
	}
	if len(feed.Events) != 1 || feed.Events[0].Type != "project.created" {
		t.Fatalf("unexpected feed: %+v", feed.Events)
	}
}

func TestActivityWebSocketStreams(t *testing.T) {
	store := quill.NewStore()
	defer store.Close()
	server := httptest.NewServer(NewServer(store))
	defer server.Close()

	token := mustTestJWT(t, "dev-secret", "u1", []string{ScopeWorkspaceRead, ScopeWorkspaceWrite}, time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/activity/ws?access_token=" + token
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	if _, err := store.CreateProject("u1", workspace.ProjectDraft{Title: "vale"}); err != nil {
		t.Fatalf("create project: %v", err)
	}

	var event quill.Event
	if err := wsjson.Read(ctx, conn, &event); err != nil {
		t.Fatalf("read websocket event: %v", err)
	}
	if event.Type != "project.created" || event.UserID != "u1" {
		t.Fatalf("unexpected live event: %+v", event)
	}
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	server := httptest.NewServer(NewServer(quill.NewStore()))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/activity/ws?access_token=garbage"
	if _, _, err := websocket.Dial(ctx, wsURL, nil); err == nil {
		t.Fatalf("expected dial to fail without valid token")
	}
}
