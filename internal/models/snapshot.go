package models

// Snapshot is an opaque serialized entity payload. Content entities (tables,
// relationships, dependencies, areas, custom types), diagram filters and user
// settings are all stored as snapshots; the storage layer never interprets
// anything beyond the "id" field.
type Snapshot map[string]any

// ID returns the snapshot's "id" field, or "" when absent.
func (s Snapshot) ID() string {
	id, _ := s["id"].(string)
	return id
}

// Merge returns a new snapshot with fields from patch overwriting fields in s.
// Absent fields are preserved (shallow replace semantics).
func (s Snapshot) Merge(patch Snapshot) Snapshot {
	merged := make(Snapshot, len(s)+len(patch))
	for k, v := range s {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	return merged
}

// Clone returns a shallow copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
