package storage

import (
	"github.com/dgraph-io/badger/v4"
)

// OpenBadger opens the simulated chain database. An empty path opens an
// in-memory instance.
func OpenBadger(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	return badger.Open(opts)
}
