package model

// Contract is one tracked contract and its last-known UTXO snapshot.
//
// Utxos is nil until the first completed sync. After that it is always
// non-nil, possibly empty.
type Contract struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	Artifact string `json:"artifact,omitempty"`
	Utxos    []UTXO `json:"utxos"`
}

// NewContract builds a record that has never been synced.
func NewContract(name, address, artifact string) Contract {
	return Contract{Name: name, Address: address, Artifact: artifact}
}

func (c Contract) Synced() bool {
	return c.Utxos != nil
}

// Clone returns an independent copy of the record.
func (c Contract) Clone() Contract {
	out := c
	out.Utxos = CloneUTXOs(c.Utxos)
	return out
}

// WithUtxos returns a new record equal to c except for its UTXO list.
// A nil list is stored as an empty one: the record has been synced.
func (c Contract) WithUtxos(utxos []UTXO) Contract {
	out := c
	if utxos == nil {
		out.Utxos = []UTXO{}
		return out
	}
	out.Utxos = CloneUTXOs(utxos)
	return out
}

// Balance sums the satoshis of the current snapshot.
func (c Contract) Balance() int64 {
	var total int64
	for _, u := range c.Utxos {
		total += u.Satoshis
	}
	return total
}
