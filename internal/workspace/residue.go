package workspace

import "sync"

// Residue field names. Only the two collection-valued artifact fields
// are quarantined; scalar fields always repair to a default without
// information loss worth preserving.
const (
	ResidueTags      = "tags"
	ResidueRelations = "relations"
)

// Residue maps a field name to the last-seen raw value that failed
// validation for that field.
type Residue map[string]any

// ResidueLedger records, per artifact, raw field values the server sent
// that the client could not interpret. It exists so "the server sent
// something unparseable" stays distinguishable from "the field is
// legitimately empty", and so a later valid client edit can supersede
// the quarantined value without inspecting it. It carries no validation
// logic of its own.
type ResidueLedger struct {
	mu         sync.Mutex
	byArtifact map[string]Residue
}

func NewResidueLedger() *ResidueLedger {
	return &ResidueLedger{byArtifact: map[string]Residue{}}
}

// Record replaces the stored residue for artifactID. An empty residue
// clears the entry.
func (l *ResidueLedger) Record(artifactID string, residue Residue) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(residue) == 0 {
		delete(l.byArtifact, artifactID)
		return
	}
	stored := make(Residue, len(residue))
	for field, raw := range residue {
		stored[field] = raw
	}
	l.byArtifact[artifactID] = stored
}

func (l *ResidueLedger) SetField(artifactID, field string, raw any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	residue, ok := l.byArtifact[artifactID]
	if !ok {
		residue = Residue{}
		l.byArtifact[artifactID] = residue
	}
	residue[field] = raw
}

func (l *ResidueLedger) ClearField(artifactID, field string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	residue, ok := l.byArtifact[artifactID]
	if !ok {
		return
	}
	delete(residue, field)
	if len(residue) == 0 {
		delete(l.byArtifact, artifactID)
	}
}

// Delete removes all residue for a deleted artifact.
func (l *ResidueLedger) Delete(artifactID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.byArtifact, artifactID)
}

// Reset clears the ledger. Used on identity change and sign-out.
func (l *ResidueLedger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byArtifact = map[string]Residue{}
}

// Fields returns a copy of the residue for artifactID, or nil when the
// artifact has none.
func (l *ResidueLedger) Fields(artifactID string) Residue {
	l.mu.Lock()
	defer l.mu.Unlock()
	residue, ok := l.byArtifact[artifactID]
	if !ok {
		return nil
	}
	out := make(Residue, len(residue))
	for field, raw := range residue {
		out[field] = raw
	}
	return out
}

func (l *ResidueLedger) Has(artifactID, field string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	residue, ok := l.byArtifact[artifactID]
	if !ok {
		return false
	}
	_, ok = residue[field]
	return ok
}
