// Package provider answers "which outputs are unspent at this address".
//
// Every backend, simulated or live, satisfies the same one-method capability
// so callers never branch on which one is active.
package provider

import (
	"context"
	"errors"
	"time"

	"github.com/zanwyyy/contractsync/metrics"
	"github.com/zanwyyy/contractsync/model"
)

var (
	// ErrUnavailable marks a provider that could not be reached.
	ErrUnavailable = errors.New("provider unavailable")
	// ErrBadResponse marks a reply that could not be decoded.
	ErrBadResponse = errors.New("provider returned a malformed response")
)

type Provider interface {
	// GetUtxos returns the current unspent outputs of address. The caller
	// owns the returned slice.
	GetUtxos(ctx context.Context, address string) ([]model.UTXO, error)
	// Name identifies the backend in logs and metrics.
	Name() string
}

// Func adapts a function to Provider.
type Func func(ctx context.Context, address string) ([]model.UTXO, error)

func (f Func) GetUtxos(ctx context.Context, address string) ([]model.UTXO, error) {
	return f(ctx, address)
}

func (f Func) Name() string { return "func" }

// Instrumented records latency and failures of the wrapped provider.
type Instrumented struct {
	next Provider
}

func Instrument(p Provider) *Instrumented {
	return &Instrumented{next: p}
}

func (i *Instrumented) Name() string {
	return i.next.Name()
}

// Unwrap returns the wrapped provider.
func (i *Instrumented) Unwrap() Provider {
	return i.next
}

func (i *Instrumented) GetUtxos(ctx context.Context, address string) ([]model.UTXO, error) {
	start := time.Now()
	defer metrics.ObserveDuration(metrics.ProviderQueryDuration.WithLabelValues(i.next.Name()), start)

	utxos, err := i.next.GetUtxos(ctx, address)
	if err != nil {
		metrics.ProviderQueryErrors.WithLabelValues(i.next.Name()).Inc()
		return nil, err
	}
	return utxos, nil
}
