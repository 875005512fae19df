package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diagramdb/internal/auth"
)

// stubStore satisfies Store without doing anything; Select only needs
// distinguishable values.
type stubStore struct {
	Store
	name string
}

func TestSelect(t *testing.T) {
	remote := &stubStore{name: "remote"}
	local := &stubStore{name: "local"}
	user := &auth.Identity{ID: "u1"}

	tests := []struct {
		name          string
		remoteEnabled bool
		user          *auth.Identity
		want          Store
	}{
		{"signed in with remote backend", true, user, remote},
		{"signed out", true, nil, local},
		{"remote backend disabled", false, user, local},
		{"disabled and signed out", false, nil, local},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Select(remote, local, tt.remoteEnabled, tt.user)
			assert.Same(t, tt.want, got)
		})
	}
}

func TestSelect_NilRemoteFallsBack(t *testing.T) {
	local := &stubStore{name: "local"}
	got := Select(nil, local, true, &auth.Identity{ID: "u1"})
	assert.Same(t, Store(local), got)
}

func TestTableFor(t *testing.T) {
	for _, kind := range Kinds() {
		table, err := TableFor(kind)
		require.NoError(t, err)
		assert.NotEmpty(t, table)
	}

	_, err := TableFor(ContentKind("bogus"))
	require.Error(t, err)
}

func TestListOptions_Any(t *testing.T) {
	assert.False(t, ListOptions{}.Any())
	assert.True(t, ListOptions{IncludeAreas: true}.Any())
}

func TestDiagramPatch_Empty(t *testing.T) {
	assert.True(t, DiagramPatch{}.Empty())

	id := "renamed"
	assert.True(t, DiagramPatch{ID: &id}.Empty(), "a rename alone is not an attribute change")

	name := "n"
	assert.False(t, DiagramPatch{Name: &name}.Empty())
	assert.False(t, DiagramPatch{ClearDatabaseEdition: true}.Empty())
}
