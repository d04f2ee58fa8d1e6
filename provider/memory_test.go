package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zanwyyy/contractsync/model"
)

func TestMemoryReturnsInsertionOrder(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Add("a1", model.UTXO{Txid: "t2", Vout: 0, Satoshis: 2}))
	require.NoError(t, m.Add("a1", model.UTXO{Txid: "t1", Vout: 3, Satoshis: 1}))
	require.NoError(t, m.Add("a2", model.UTXO{Txid: "t3", Vout: 0, Satoshis: 9}))

	got, err := m.GetUtxos(context.Background(), "a1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "t2", got[0].Txid)
	assert.Equal(t, "t1", got[1].Txid)
	assert.Equal(t, int64(1), m.Calls())

	unknown, err := m.GetUtxos(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, unknown)
	assert.Empty(t, unknown)
}

func TestMemoryRejectsDuplicateOutpoint(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Add("a1", model.UTXO{Txid: "t", Vout: 0}))
	assert.Error(t, m.Add("a1", model.UTXO{Txid: "t", Vout: 0}))
}

func TestMemorySpend(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Add("a1", model.UTXO{Txid: "t", Vout: 0}))
	require.NoError(t, m.Add("a1", model.UTXO{Txid: "t", Vout: 1}))

	require.NoError(t, m.Spend("a1", "t", 0))
	assert.Error(t, m.Spend("a1", "t", 0))

	got, err := m.GetUtxos(context.Background(), "a1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint32(1), got[0].Vout)
}

func TestMemorySetReplacesAddress(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Add("a1", model.UTXO{Txid: "old"}))

	m.Set("a1", []model.UTXO{{Txid: "new", Satoshis: 7}})

	got, err := m.GetUtxos(context.Background(), "a1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].Txid)
}

func TestMemoryResultIsACopy(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Add("a1", model.UTXO{Txid: "t", Satoshis: 5, Token: &model.TokenDetails{Amount: "1"}}))

	first, err := m.GetUtxos(context.Background(), "a1")
	require.NoError(t, err)
	first[0].Satoshis = 0
	first[0].Token.Amount = "999"

	second, err := m.GetUtxos(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), second[0].Satoshis)
	assert.Equal(t, "1", second[0].Token.Amount)
}

func TestMemoryFail(t *testing.T) {
	m := NewMemory()
	boom := errors.New("boom")
	m.Fail("a1", boom)

	_, err := m.GetUtxos(context.Background(), "a1")
	assert.ErrorIs(t, err, boom)

	m.Fail("a1", nil)
	_, err = m.GetUtxos(context.Background(), "a1")
	assert.NoError(t, err)
}

func TestMemoryHonoursCancelledContext(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.GetUtxos(ctx, "a1")
	assert.ErrorIs(t, err, context.Canceled)
}
