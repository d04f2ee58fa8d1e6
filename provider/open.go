package provider

import (
	"fmt"
	"io"
	"net/http"

	"github.com/zanwyyy/contractsync/config"
	"github.com/zanwyyy/contractsync/storage"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

var nopCloser = closerFunc(func() error { return nil })

// Open builds the provider described by cfg, instrumented and, when
// cfg.CacheTTL > 0, cached. The closer releases backend resources.
func Open(cfg config.Provider) (Provider, io.Closer, error) {
	var (
		base   Provider
		closer io.Closer = nopCloser
	)

	switch cfg.Kind {
	case config.KindMemory, "":
		base = NewMemory()

	case config.KindBadger:
		db, err := storage.OpenBadger(cfg.BadgerPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open badger %s: %w", cfg.BadgerPath, err)
		}
		base = NewBadger(db)
		closer = db

	case config.KindRedis:
		r := NewRedis(cfg.RedisAddr)
		base = r
		closer = r

	case config.KindEsplora:
		e, err := NewEsplora(cfg.EsploraURL,
			WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
			WithMaxTries(cfg.MaxTries),
		)
		if err != nil {
			return nil, nil, err
		}
		base = e

	default:
		return nil, nil, fmt.Errorf("unknown provider kind %q", cfg.Kind)
	}

	return NewCached(Instrument(base), cfg.CacheTTL), closer, nil
}

// Base strips decorators added by Open.
func Base(p Provider) Provider {
	for {
		u, ok := p.(interface{ Unwrap() Provider })
		if !ok {
			return p
		}
		p = u.Unwrap()
	}
}
