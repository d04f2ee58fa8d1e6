package model

// Registry is one immutable point-in-time value of the tracked contracts.
// Order is display order. Version is assigned by the store on install.
type Registry struct {
	Version   uint64     `json:"version"`
	Contracts []Contract `json:"contracts"`
}

func (r Registry) Len() int {
	return len(r.Contracts)
}

func (r Registry) Empty() bool {
	return len(r.Contracts) == 0
}

// Index returns the position of the first record with the given name, or -1.
func (r Registry) Index(name string) int {
	for i, c := range r.Contracts {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Find returns a copy of the named record.
func (r Registry) Find(name string) (Contract, bool) {
	i := r.Index(name)
	if i < 0 {
		return Contract{}, false
	}
	return r.Contracts[i].Clone(), true
}

// Clone copies every record so the result shares nothing with r.
func (r Registry) Clone() Registry {
	out := Registry{Version: r.Version}
	if r.Contracts == nil {
		return out
	}
	out.Contracts = make([]Contract, len(r.Contracts))
	for i, c := range r.Contracts {
		out.Contracts[i] = c.Clone()
	}
	return out
}

// WithUtxosAt builds a new registry where record i carries utxos and every
// other record is copied unchanged.
func (r Registry) WithUtxosAt(i int, utxos []UTXO) Registry {
	out := Registry{Version: r.Version, Contracts: make([]Contract, len(r.Contracts))}
	for j, c := range r.Contracts {
		if j == i {
			out.Contracts[j] = c.WithUtxos(utxos)
			continue
		}
		out.Contracts[j] = c.Clone()
	}
	return out
}

// WithAllUtxos builds a new registry where record i carries results[i].
// len(results) must equal r.Len().
func (r Registry) WithAllUtxos(results [][]UTXO) Registry {
	out := Registry{Version: r.Version, Contracts: make([]Contract, len(r.Contracts))}
	for i, c := range r.Contracts {
		out.Contracts[i] = c.WithUtxos(results[i])
	}
	return out
}

// Addresses lists record addresses in registry order.
func (r Registry) Addresses() []string {
	out := make([]string, len(r.Contracts))
	for i, c := range r.Contracts {
		out[i] = c.Address
	}
	return out
}
