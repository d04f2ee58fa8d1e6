package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zanwyyy/contractsync/model"
)

func TestNewStoreIsEmpty(t *testing.T) {
	s := NewStore()

	r := s.Get()
	assert.True(t, r.Empty())
	assert.Equal(t, uint64(0), r.Version)
}

func TestReplaceBumpsVersion(t *testing.T) {
	s := NewStore()

	r := model.Registry{Version: 42, Contracts: []model.Contract{model.NewContract("a", "a1", "")}}
	installed := s.Replace(r)

	assert.Equal(t, uint64(1), installed.Version)
	assert.Equal(t, uint64(1), s.Version())
	assert.Equal(t, "a", s.Get().Contracts[0].Name)
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewStore()
	s.Replace(model.Registry{Contracts: []model.Contract{
		model.NewContract("a", "a1", "").WithUtxos([]model.UTXO{{Txid: "t", Satoshis: 5}}),
	}})

	r := s.Get()
	r.Contracts[0].Utxos[0].Satoshis = 99
	r.Contracts[0].Name = "changed"

	again := s.Get()
	assert.Equal(t, int64(5), again.Contracts[0].Utxos[0].Satoshis)
	assert.Equal(t, "a", again.Contracts[0].Name)
}

func TestReplaceDoesNotAliasInput(t *testing.T) {
	s := NewStore()
	in := model.Registry{Contracts: []model.Contract{
		model.NewContract("a", "a1", "").WithUtxos([]model.UTXO{{Txid: "t", Satoshis: 5}}),
	}}
	s.Replace(in)

	in.Contracts[0].Utxos[0].Satoshis = 7

	assert.Equal(t, int64(5), s.Get().Contracts[0].Utxos[0].Satoshis)
}

func TestCompareAndReplace(t *testing.T) {
	s := NewStore()
	base := s.Get()

	_, ok := s.CompareAndReplace(base.Version, model.Registry{Contracts: []model.Contract{model.NewContract("a", "a1", "")}})
	require.True(t, ok)

	newer, ok := s.CompareAndReplace(base.Version, model.Registry{})
	assert.False(t, ok)
	assert.Equal(t, uint64(1), newer.Version)
	assert.Equal(t, 1, s.Get().Len())
}

func TestAppendAddsUnsyncedRecord(t *testing.T) {
	s := NewStore()

	s.Append(model.NewContract("a", "a1", "").WithUtxos([]model.UTXO{{Txid: "t"}}))
	r := s.Append(model.NewContract("b", "a2", ""))

	require.Equal(t, 2, r.Len())
	assert.Equal(t, "a", r.Contracts[0].Name)
	assert.Equal(t, "b", r.Contracts[1].Name)
	assert.False(t, r.Contracts[0].Synced())
	assert.Equal(t, uint64(2), r.Version)
}

func TestConcurrentAppendKeepsEveryRecord(t *testing.T) {
	s := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Append(model.NewContract(string(rune('A'+i)), "addr", ""))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, s.Get().Len())
	assert.Equal(t, uint64(50), s.Version())
}

func TestAppendUniqueRejectsTakenName(t *testing.T) {
	s := NewStore()

	_, err := s.AppendUnique(model.NewContract("escrow", "a1", ""))
	require.NoError(t, err)

	r, err := s.AppendUnique(model.NewContract("escrow", "a2", ""))
	assert.ErrorIs(t, err, ErrDuplicateName)
	assert.Equal(t, uint64(1), r.Version)
	assert.Equal(t, 1, s.Get().Len())
}

func TestConcurrentAppendUniqueKeepsNamesUnique(t *testing.T) {
	s := NewStore()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// ten names, five writers each
			name := string(rune('A' + i%10))
			if _, err := s.AppendUnique(model.NewContract(name, "addr", "")); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, ErrDuplicateName)
			}
		}(i)
	}
	wg.Wait()

	r := s.Get()
	assert.Equal(t, 10, wins)
	assert.Equal(t, 10, r.Len())
	seen := map[string]bool{}
	for _, c := range r.Contracts {
		assert.False(t, seen[c.Name], "duplicate %s", c.Name)
		seen[c.Name] = true
	}
}

func TestListenerSeesInstalledSnapshots(t *testing.T) {
	var seen []uint64
	s := NewStore(WithListener(func(r model.Registry) {
		seen = append(seen, r.Version)
	}))

	s.Replace(model.Registry{})
	s.CompareAndReplace(0, model.Registry{})
	s.CompareAndReplace(1, model.Registry{})

	assert.Equal(t, []uint64{1, 2}, seen)
}
