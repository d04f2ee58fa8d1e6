// Package registry holds the ordered set of tracked contracts as a single
// snapshot value that is only ever swapped, never edited in place.
package registry

import (
	"errors"
	"fmt"

	"go.uber.org/atomic"

	"github.com/zanwyyy/contractsync/model"
)

// ErrDuplicateName is returned by AppendUnique when the name is taken.
var ErrDuplicateName = errors.New("contract name already tracked")

// Listener is called with every snapshot the store installs.
type Listener func(model.Registry)

// Store is the single owner of the current registry snapshot.
//
// Readers get deep copies; writers hand in a full replacement. The pointer
// swap is the only synchronization.
type Store struct {
	current   atomic.Pointer[model.Registry]
	listeners []Listener
}

type Option func(*Store)

// WithListener registers fn to observe installed snapshots.
func WithListener(fn Listener) Option {
	return func(s *Store) {
		if fn != nil {
			s.listeners = append(s.listeners, fn)
		}
	}
}

// NewStore creates an empty, never-synced registry at version 0.
func NewStore(opts ...Option) *Store {
	s := &Store{}
	for _, o := range opts {
		o(s)
	}
	s.current.Store(&model.Registry{})
	return s
}

// Get returns the current snapshot. The caller owns the copy.
func (s *Store) Get() model.Registry {
	return s.current.Load().Clone()
}

func (s *Store) Version() uint64 {
	return s.current.Load().Version
}

// Replace installs r unconditionally and returns what was installed.
// The installed version is always one past the one it replaced.
func (s *Store) Replace(r model.Registry) model.Registry {
	for {
		cur := s.current.Load()
		next := r.Clone()
		next.Version = cur.Version + 1
		if s.current.CompareAndSwap(cur, &next) {
			s.notify(next)
			return next.Clone()
		}
	}
}

// CompareAndReplace installs r only while the current version is still
// expected. On mismatch it returns the newer snapshot and false.
func (s *Store) CompareAndReplace(expected uint64, r model.Registry) (model.Registry, bool) {
	cur := s.current.Load()
	if cur.Version != expected {
		return cur.Clone(), false
	}
	next := r.Clone()
	next.Version = expected + 1
	if !s.current.CompareAndSwap(cur, &next) {
		return s.current.Load().Clone(), false
	}
	s.notify(next)
	return next.Clone(), true
}

// Append adds a never-synced record at the end of the registry.
// Names are not checked: whoever creates records owns that rule.
func (s *Store) Append(c model.Contract) model.Registry {
	rec := c.Clone()
	rec.Utxos = nil
	for {
		cur := s.current.Load()
		next := cur.Clone()
		next.Contracts = append(next.Contracts, rec)
		if installed, ok := s.CompareAndReplace(cur.Version, next); ok {
			return installed
		}
	}
}

// AppendUnique is Append that refuses a name already present. The check is
// repeated against every snapshot the swap is attempted on.
func (s *Store) AppendUnique(c model.Contract) (model.Registry, error) {
	rec := c.Clone()
	rec.Utxos = nil
	for {
		cur := s.current.Load()
		if cur.Index(rec.Name) >= 0 {
			return cur.Clone(), fmt.Errorf("%w: %s", ErrDuplicateName, rec.Name)
		}
		next := cur.Clone()
		next.Contracts = append(next.Contracts, rec)
		if installed, ok := s.CompareAndReplace(cur.Version, next); ok {
			return installed, nil
		}
	}
}

func (s *Store) notify(r model.Registry) {
	for _, fn := range s.listeners {
		fn(r.Clone())
	}
}
