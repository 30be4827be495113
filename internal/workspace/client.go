package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

var (
	// ErrNotConfigured is returned by every remote call when no API
	// base URL is configured. Guest sessions never reach the remote
	// path at all.
	ErrNotConfigured = errors.New("remote api not configured")
	// ErrUnauthorized is returned when the credential collaborator
	// yields no usable token. The call is never attempted.
	ErrUnauthorized = errors.New("credential unavailable")
)

type HTTPError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("http %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// TokenSource supplies the opaque bearer credential. Acquisition and
// refresh belong to the authentication collaborator; the engine only
// consumes the result.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource wraps a fixed credential.
type StaticTokenSource string

func (s StaticTokenSource) Token(ctx context.Context) (string, error) {
	return string(s), nil
}

type PageRequest struct {
	PageSize  int
	PageToken string
}

// Pages decode entities as raw maps so every remote payload passes
// through the Entity Normalizer before touching session state.
type ProjectPage struct {
	Projects      []map[string]any `json:"projects"`
	NextPageToken *string          `json:"nextPageToken"`
}

type ArtifactPage struct {
	Artifacts     []map[string]any `json:"artifacts"`
	NextPageToken *string          `json:"nextPageToken"`
}

// RemoteClient is the public contract of the remote workspace API.
type RemoteClient interface {
	FetchProfile(ctx context.Context) (map[string]any, error)
	UpdateProfile(ctx context.Context, patch ProfilePatch) (map[string]any, error)
	GrantXP(ctx context.Context, delta int) (map[string]any, error)

	ListProjects(ctx context.Context, page PageRequest) (ProjectPage, error)
	CreateProject(ctx context.Context, draft ProjectDraft) (map[string]any, error)
	UpdateProject(ctx context.Context, projectID string, patch ProjectPatch) (map[string]any, error)
	DeleteProject(ctx context.Context, projectID string) error

	ListArtifacts(ctx context.Context, projectID string, page PageRequest) (ArtifactPage, error)
	CreateArtifacts(ctx context.Context, projectID string, drafts []ArtifactDraft) ([]map[string]any, error)
	UpdateArtifact(ctx context.Context, artifactID string, patch ArtifactPatch) (map[string]any, error)
	DeleteArtifact(ctx context.Context, artifactID string) error
}

type HTTPClient struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// NewHTTPClient builds a client against baseURL. An empty baseURL is
// allowed at construction so unconfigured environments can still build
// a session; every call then fails fast with ErrNotConfigured.
func NewHTTPClient(baseURL string, tokens TokenSource, httpClient *http.Client) *HTTPClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPClient{
		baseURL:    baseURL,
		tokens:     tokens,
		httpClient: httpClient,
		maxRetries: 3,
		baseDelay:  100 * time.Millisecond,
		maxDelay:   2 * time.Second,
	}
}

func (c *HTTPClient) FetchProfile(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.doJSON(ctx, http.MethodGet, "/v1/profile", nil, &out)
	return out, err
}

func (c *HTTPClient) UpdateProfile(ctx context.Context, patch ProfilePatch) (map[string]any, error) {
	var out map[string]any
	err := c.doJSON(ctx, http.MethodPatch, "/v1/profile", patch, &out)
	return out, err
}

func (c *HTTPClient) GrantXP(ctx context.Context, delta int) (map[string]any, error) {
	var out map[string]any
	err := c.doJSON(ctx, http.MethodPost, "/v1/profile/xp", map[string]any{"delta": delta}, &out)
	return out, err
}

func (c *HTTPClient) ListProjects(ctx context.Context, page PageRequest) (ProjectPage, error) {
	var out ProjectPage
	err := c.doJSON(ctx, http.MethodGet, "/v1/projects?"+pageQuery(page), nil, &out)
	return out, err
}

func (c *HTTPClient) CreateProject(ctx context.Context, draft ProjectDraft) (map[string]any, error) {
	var out map[string]any
	err := c.doJSON(ctx, http.MethodPost, "/v1/projects", draft, &out)
	return out, err
}

func (c *HTTPClient) UpdateProject(ctx context.Context, projectID string, patch ProjectPatch) (map[string]any, error) {
	var out map[string]any
	err := c.doJSON(ctx, http.MethodPatch, "/v1/projects/"+url.PathEscape(projectID), patch, &out)
	return out, err
}

func (c *HTTPClient) DeleteProject(ctx context.Context, projectID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/projects/"+url.PathEscape(projectID), nil, nil)
}

func (c *HTTPClient) ListArtifacts(ctx context.Context, projectID string, page PageRequest) (ArtifactPage, error) {
	var out ArtifactPage
	path := fmt.Sprintf("/v1/projects/%s/artifacts?%s", url.PathEscape(projectID), pageQuery(page))
	err := c.doJSON(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *HTTPClient) CreateArtifacts(ctx context.Context, projectID string, drafts []ArtifactDraft) ([]map[string]any, error) {
	var out struct {
		Artifacts []map[string]any `json:"artifacts"`
	}
	path := fmt.Sprintf("/v1/projects/%s/artifacts", url.PathEscape(projectID))
	body := map[string]any{"drafts": drafts}
	if err := c.doJSON(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	return out.Artifacts, nil
}

func (c *HTTPClient) UpdateArtifact(ctx context.Context, artifactID string, patch ArtifactPatch) (map[string]any, error) {
	var out map[string]any
	err := c.doJSON(ctx, http.MethodPatch, "/v1/artifacts/"+url.PathEscape(artifactID), patch, &out)
	return out, err
}

func (c *HTTPClient) DeleteArtifact(ctx context.Context, artifactID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/artifacts/"+url.PathEscape(artifactID), nil, nil)
}

func pageQuery(page PageRequest) string {
	q := url.Values{}
	if page.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(page.PageSize))
	}
	if page.PageToken != "" {
		q.Set("pageToken", page.PageToken)
	}
	return q.Encode()
}

func (c *HTTPClient) doJSON(ctx context.Context, method, requestPath string, body, out any) error {
	if c.baseURL == "" {
		return ErrNotConfigured
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if strings.TrimSpace(token) == "" {
		return ErrUnauthorized
	}

	var bodyBytes []byte
	if body != nil {
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}
	for attempt := 0; ; attempt++ {
		var bodyReader io.Reader
		if bodyBytes != nil {
			bodyReader = bytes.NewReader(bodyBytes)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, bodyReader)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
		req.Header.Set("X-Correlation-Id", correlationID())
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if attempt < c.maxRetries {
				if waitErr := waitWithContext(ctx, c.retryDelay(attempt+1, "")); waitErr != nil {
					return waitErr
				}
				continue
			}
			return err
		}
		payloadBytes, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return readErr
		}

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			if out == nil || len(payloadBytes) == 0 {
				return nil
			}
			return json.Unmarshal(payloadBytes, out)
		}

		if (resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode <= 599)) && attempt < c.maxRetries {
			if waitErr := waitWithContext(ctx, c.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
				return waitErr
			}
			continue
		}

		var errPayload struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(payloadBytes, &errPayload)
		httpErr := &HTTPError{
			StatusCode: resp.StatusCode,
			Code:       errPayload.Code,
			Message:    errPayload.Message,
		}
		if resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%w: %v", ErrUnauthorized, httpErr)
		}
		return httpErr
	}
}

func (c *HTTPClient) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	maxDelay := c.maxDelay
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}
	if retryAfter := parseRetryAfter(retryAfterHeader); retryAfter > 0 {
		if retryAfter > maxDelay {
			return maxDelay
		}
		return retryAfter
	}
	delay := c.baseDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if ts, err := time.Parse(time.RFC1123, header); err == nil {
		delta := time.Until(ts)
		if delta > 0 {
			return delta
		}
	}
	return 0
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var correlationSeq atomic.Uint64

// correlationID is unique per process even when the clock does not
// advance between calls.
func correlationID() string {
	return fmt.Sprintf("sess_%d_%d", time.Now().UnixNano(), correlationSeq.Add(1))
}
