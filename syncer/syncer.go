// Package syncer keeps every tracked contract's UTXO snapshot in line with
// the active provider.
//
// Both refresh paths read one registry snapshot, query the provider, build a
// complete replacement and install it in one step. Nothing is ever edited in
// place, and nothing is installed unless every query it depends on succeeded.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/zanwyyy/contractsync/metrics"
	"github.com/zanwyyy/contractsync/model"
	"github.com/zanwyyy/contractsync/provider"
)

// ErrProvider wraps every provider failure surfaced by a refresh.
var ErrProvider = errors.New("provider query failed")

// Registry is the snapshot store the synchronizer reads from and installs into.
type Registry interface {
	Get() model.Registry
	Replace(r model.Registry) model.Registry
	CompareAndReplace(expected uint64, r model.Registry) (model.Registry, bool)
}

type Synchronizer struct {
	store          Registry
	log            zerolog.Logger
	policy         Policy
	maxConcurrency int
	onState        StateFunc
}

type Option func(*Synchronizer)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Synchronizer) { s.log = l }
}

// WithPolicy selects how finished refreshes are installed.
func WithPolicy(p Policy) Option {
	return func(s *Synchronizer) { s.policy = p }
}

// WithMaxConcurrency caps in-flight queries of a bulk refresh. 0 = one per contract.
func WithMaxConcurrency(n int) Option {
	return func(s *Synchronizer) {
		if n > 0 {
			s.maxConcurrency = n
		}
	}
}

// WithStateHook observes every state transition of every refresh.
func WithStateHook(fn StateFunc) Option {
	return func(s *Synchronizer) { s.onState = fn }
}

func New(store Registry, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		store:  store,
		log:    zerolog.Nop(),
		policy: PolicyVersioned,
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With().Str("component", "syncer").Logger()
	return s
}

// RefreshContract brings the named contract's UTXOs up to date and leaves
// every other record as it was.
//
// An unknown name is not an error: nothing is queried and OutcomeNoop is
// returned. A provider failure is returned wrapped in ErrProvider and the
// registry is left untouched.
func (s *Synchronizer) RefreshContract(ctx context.Context, p provider.Provider, name string) (Outcome, error) {
	start := time.Now()

	snap := s.store.Get()
	i := snap.Index(name)
	if i < 0 {
		s.log.Debug().Str("contract", name).Msg("refresh skipped, contract not tracked")
		return s.done(KindSingle, name, start, OutcomeNoop), nil
	}
	c := snap.Contracts[i]

	s.transition(KindSingle, name, StateFetching)
	utxos, err := p.GetUtxos(ctx, c.Address)
	if err != nil {
		s.transition(KindSingle, name, StateFailed)
		s.done(KindSingle, name, start, OutcomeFailed)
		return OutcomeFailed, fmt.Errorf("%w: refresh %q (%s) via %s: %w", ErrProvider, name, c.Address, p.Name(), err)
	}

	next := snap.WithUtxosAt(i, utxos)

	s.transition(KindSingle, name, StateInstalling)
	installed, outcome := s.install(snap.Version, next)

	s.log.Debug().
		Str("contract", name).
		Int("utxos", len(utxos)).
		Uint64("base_version", snap.Version).
		Uint64("version", installed.Version).
		Stringer("outcome", outcome).
		Msg("contract refreshed")

	return s.done(KindSingle, name, start, outcome), nil
}

// RefreshAll re-queries every tracked contract concurrently and installs
// one snapshot holding all the results, in registry order.
//
// If any query fails the whole refresh fails: the error names every failed
// contract and no record is updated, not even those whose query succeeded.
func (s *Synchronizer) RefreshAll(ctx context.Context, p provider.Provider) (Outcome, error) {
	start := time.Now()

	snap := s.store.Get()
	if snap.Empty() {
		s.log.Debug().Msg("bulk refresh skipped, registry empty")
		return s.done(KindBulk, "", start, OutcomeNoop), nil
	}

	s.transition(KindBulk, "", StateFetching)
	results, err := s.fetchAll(ctx, p, snap.Contracts)
	if err != nil {
		s.transition(KindBulk, "", StateFailed)
		s.done(KindBulk, "", start, OutcomeFailed)
		return OutcomeFailed, fmt.Errorf("%w: bulk refresh of %d contracts via %s: %w", ErrProvider, snap.Len(), p.Name(), err)
	}

	next := snap.WithAllUtxos(results)

	s.transition(KindBulk, "", StateInstalling)
	installed, outcome := s.install(snap.Version, next)

	s.log.Debug().
		Int("contracts", snap.Len()).
		Uint64("base_version", snap.Version).
		Uint64("version", installed.Version).
		Stringer("outcome", outcome).
		Dur("took", time.Since(start)).
		Msg("all contracts refreshed")

	return s.done(KindBulk, "", start, outcome), nil
}

// fetchAll issues one query per contract and waits for all of them.
// results[i] belongs to contracts[i].
func (s *Synchronizer) fetchAll(ctx context.Context, p provider.Provider, contracts []model.Contract) ([][]model.UTXO, error) {
	results := make([][]model.UTXO, len(contracts))

	wp := pool.New().WithErrors()
	if s.maxConcurrency > 0 {
		wp = wp.WithMaxGoroutines(s.maxConcurrency)
	}

	for i, c := range contracts {
		wp.Go(func() error {
			utxos, err := p.GetUtxos(ctx, c.Address)
			if err != nil {
				return fmt.Errorf("contract %q (%s): %w", c.Name, c.Address, err)
			}
			results[i] = utxos
			return nil
		})
	}

	if err := wp.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Synchronizer) install(base uint64, next model.Registry) (model.Registry, Outcome) {
	if s.policy == PolicyLastWriterWins {
		installed := s.store.Replace(next)
		s.observe(installed)
		return installed, OutcomeInstalled
	}

	installed, ok := s.store.CompareAndReplace(base, next)
	if !ok {
		// someone installed a newer snapshot while we were fetching
		return installed, OutcomeSuperseded
	}
	s.observe(installed)
	return installed, OutcomeInstalled
}

func (s *Synchronizer) observe(r model.Registry) {
	metrics.RegistryVersion.Set(float64(r.Version))
	metrics.RegistryContracts.Set(float64(r.Len()))
}

func (s *Synchronizer) transition(kind Kind, name string, state State) {
	if s.onState != nil {
		s.onState(kind, name, state)
	}
}

func (s *Synchronizer) done(kind Kind, name string, start time.Time, outcome Outcome) Outcome {
	s.transition(kind, name, StateIdle)
	metrics.ObserveDuration(metrics.RefreshDuration.WithLabelValues(kind.String()), start)
	metrics.RefreshOutcomes.WithLabelValues(kind.String(), outcome.String()).Inc()
	return outcome
}
