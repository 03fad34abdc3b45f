package badger

import "github.com/poiesic/harvest/storage"

// NewMemoryStore returns a Store backed by an in-memory database. Tests in
// other packages use it instead of a temp dir.
func NewMemoryStore() (storage.Store, error) {
	backend, err := OpenBackend("", nil)
	if err != nil {
		return nil, err
	}
	return newStore(backend)
}
