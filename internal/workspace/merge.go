package workspace

// Entity is anything the Merge Engine can reconcile by identity.
type Entity interface {
	EntityID() string
}

// MergeByID reconciles an existing collection with an incoming batch.
// Entities already present keep their original position and are
// overwritten in place; unseen entities are appended in batch order.
// The result never contains two entities with the same id, and merging
// the same batch twice yields the same result.
func MergeByID[E Entity](existing, incoming []E) []E {
	merged := make([]E, 0, len(existing)+len(incoming))
	index := make(map[string]int, len(existing))
	for _, entity := range existing {
		id := entity.EntityID()
		if at, ok := index[id]; ok {
			merged[at] = entity
			continue
		}
		index[id] = len(merged)
		merged = append(merged, entity)
	}
	for _, entity := range incoming {
		id := entity.EntityID()
		if at, ok := index[id]; ok {
			merged[at] = entity
			continue
		}
		index[id] = len(merged)
		merged = append(merged, entity)
	}
	return merged
}
