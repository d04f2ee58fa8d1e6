package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zanwyyy/contractsync/config"
	"github.com/zanwyyy/contractsync/model"
)

func TestCachedZeroTTLIsPassThrough(t *testing.T) {
	m := NewMemory()
	assert.Same(t, m, NewCached(m, 0))
}

func TestCachedServesRepeatQueries(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Add("a1", model.UTXO{Txid: "t", Satoshis: 1}))
	c := NewCached(m, time.Minute)
	ctx := context.Background()

	first, err := c.GetUtxos(ctx, "a1")
	require.NoError(t, err)
	first[0].Satoshis = 100

	second, err := c.GetUtxos(ctx, "a1")
	require.NoError(t, err)

	assert.Equal(t, int64(1), m.Calls())
	assert.Equal(t, int64(1), second[0].Satoshis)
}

func TestCachedDoesNotCacheErrors(t *testing.T) {
	m := NewMemory()
	m.Fail("a1", errors.New("down"))
	c := NewCached(m, time.Minute)
	ctx := context.Background()

	_, err := c.GetUtxos(ctx, "a1")
	require.Error(t, err)

	m.Fail("a1", nil)
	got, err := c.GetUtxos(ctx, "a1")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, int64(2), m.Calls())
}

func TestCachedInvalidate(t *testing.T) {
	m := NewMemory()
	c := NewCached(m, time.Minute).(*Cached)
	ctx := context.Background()

	_, err := c.GetUtxos(ctx, "a1")
	require.NoError(t, err)
	require.NoError(t, m.Add("a1", model.UTXO{Txid: "t"}))

	c.Invalidate("a1")
	got, err := c.GetUtxos(ctx, "a1")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	c.Purge()
	_, err = c.GetUtxos(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), m.Calls())
}

func TestOpenMemoryAndBase(t *testing.T) {
	p, closer, err := Open(config.Provider{Kind: config.KindMemory, CacheTTL: time.Second})
	require.NoError(t, err)
	defer closer.Close()

	assert.IsType(t, &Cached{}, p)
	assert.IsType(t, &Memory{}, Base(p))
	assert.Equal(t, "memory", p.Name())
}

func TestOpenInMemoryBadger(t *testing.T) {
	p, closer, err := Open(config.Provider{Kind: config.KindBadger})
	require.NoError(t, err)
	defer closer.Close()

	assert.IsType(t, &Instrumented{}, p)
	assert.IsType(t, &Badger{}, Base(p))
}

func TestOpenUnknownKind(t *testing.T) {
	_, _, err := Open(config.Provider{Kind: "smoke-signals"})
	assert.Error(t, err)
}
