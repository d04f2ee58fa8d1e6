package provider

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/atomic"

	"github.com/zanwyyy/contractsync/model"
)

// Memory is the deterministic simulated network: a UTXO set kept in RAM with
// a per-address index. Outputs come back in insertion order.
type Memory struct {
	mu sync.RWMutex

	// primary storage: "txid:vout" -> UTXO
	utxos map[string]model.UTXO

	// secondary index: address -> ordered "txid:vout" keys
	addrIndex map[string][]string

	// injected failures, for exercising error paths
	failures map[string]error

	calls atomic.Int64
}

func NewMemory() *Memory {
	return &Memory{
		utxos:     make(map[string]model.UTXO),
		addrIndex: make(map[string][]string),
		failures:  make(map[string]error),
	}
}

func (m *Memory) Name() string { return "memory" }

// Add credits address with u. Adding an outpoint twice is an error.
func (m *Memory) Add(address string, u model.UTXO) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := u.Outpoint()

	// prevent overwrite
	if _, exists := m.utxos[key]; exists {
		return fmt.Errorf("utxo already exists: %s", key)
	}

	m.utxos[key] = u.Clone()
	m.addrIndex[address] = append(m.addrIndex[address], key)
	return nil
}

// Spend removes one outpoint from address.
func (m *Memory) Spend(address, txid string, vout uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := model.UTXO{Txid: txid, Vout: vout}.Outpoint()
	if _, exists := m.utxos[key]; !exists {
		return fmt.Errorf("utxo not found: %s", key)
	}
	delete(m.utxos, key)
	m.addrIndex[address] = removeKey(m.addrIndex[address], key)
	if len(m.addrIndex[address]) == 0 {
		delete(m.addrIndex, address)
	}
	return nil
}

// Set replaces everything known about address.
func (m *Memory) Set(address string, utxos []model.UTXO) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range m.addrIndex[address] {
		delete(m.utxos, key)
	}
	keys := make([]string, 0, len(utxos))
	for _, u := range utxos {
		key := u.Outpoint()
		m.utxos[key] = u.Clone()
		keys = append(keys, key)
	}
	m.addrIndex[address] = keys
}

// Fail makes every query for address return err until cleared with nil.
func (m *Memory) Fail(address string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err == nil {
		delete(m.failures, address)
		return
	}
	m.failures[address] = err
}

// Calls counts GetUtxos invocations, failed ones included.
func (m *Memory) Calls() int64 {
	return m.calls.Load()
}

func (m *Memory) GetUtxos(ctx context.Context, address string) ([]model.UTXO, error) {
	m.calls.Inc()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.failures[address]; err != nil {
		return nil, err
	}

	keys := m.addrIndex[address]
	res := make([]model.UTXO, 0, len(keys))
	for _, key := range keys {
		if u, ok := m.utxos[key]; ok {
			res = append(res, u.Clone())
		}
	}
	return res, nil
}

func removeKey(slice []string, k string) []string {
	for i, s := range slice {
		if s == k {
			return append(slice[:i:i], slice[i+1:]...)
		}
	}
	return slice
}
