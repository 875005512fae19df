package storage

import "diagramdb/internal/auth"

// Select picks the active backend for the given auth state: the remote store
// when the remote backend is enabled and a signed-in user exists, otherwise
// the local embedded store. Callers re-evaluate on every auth change and
// swap the backend wholesale; no in-flight state migrates.
func Select(remote, local Store, remoteEnabled bool, user *auth.Identity) Store {
	if remoteEnabled && user != nil && remote != nil {
		return remote
	}
	return local
}
