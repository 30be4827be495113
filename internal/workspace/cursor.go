package workspace

import "sync"

// ProjectsCollection is the cursor key for the global project list.
// Artifact collections are keyed by their project id.
const ProjectsCollection = "projects"

type CursorStatus int

const (
	// CursorUnknown means the collection has never been loaded.
	CursorUnknown CursorStatus = iota
	// CursorToken means more pages exist behind an opaque token.
	CursorToken
	// CursorExhausted means a load response omitted the next-page
	// token; there is nothing more to fetch.
	CursorExhausted
)

// CursorTable tracks pagination state per collection key. The
// unknown/exhausted distinction is load-bearing: callers must be able
// to tell "never tried" from "no more pages".
type CursorTable struct {
	mu     sync.Mutex
	states map[string]cursorState
}

type cursorState struct {
	token     string
	exhausted bool
}

func NewCursorTable() *CursorTable {
	return &CursorTable{states: map[string]cursorState{}}
}

// Status returns the cursor state for key and, for CursorToken, the
// token to resume from.
func (t *CursorTable) Status(key string) (CursorStatus, string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.states[key]
	switch {
	case !ok:
		return CursorUnknown, ""
	case state.exhausted:
		return CursorExhausted, ""
	default:
		return CursorToken, state.token
	}
}

// Store records the next-page token returned by a successful load. A
// nil token marks the collection exhausted.
func (t *CursorTable) Store(key string, next *string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if next == nil || *next == "" {
		t.states[key] = cursorState{exhausted: true}
		return
	}
	t.states[key] = cursorState{token: *next}
}

// MarkExhausted records that key has no more pages. Guest collections
// are seeded complete and never fetch.
func (t *CursorTable) MarkExhausted(key string) {
	t.Store(key, nil)
}

// Reset forgets everything known about key, returning it to
// CursorUnknown.
func (t *CursorTable) Reset(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.states, key)
}

func (t *CursorTable) ResetAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states = map[string]cursorState{}
}

// CanLoadMore reports whether a load attempt for key could yield data:
// true for an unknown cursor (optimistically allow the first attempt)
// or a stored token, false only once the collection is exhausted.
func (t *CursorTable) CanLoadMore(key string) bool {
	status, _ := t.Status(key)
	return status != CursorExhausted
}
