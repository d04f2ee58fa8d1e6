package model

import "fmt"

// UTXO is one unspent output as reported by a provider for an address.
// The synchronizer stores and replaces whole lists of these and never looks inside.
type UTXO struct {
	Txid     string        `json:"txid"`
	Vout     uint32        `json:"vout"`
	Satoshis int64         `json:"satoshis"`
	Token    *TokenDetails `json:"token,omitempty"`
}

// TokenDetails describes a CashToken carried by an output.
type TokenDetails struct {
	Category string `json:"category"`
	Amount   string `json:"amount"`
	NFT      *NFT   `json:"nft,omitempty"`
}

type NFT struct {
	Capability string `json:"capability"`
	Commitment string `json:"commitment"`
}

// Outpoint returns the "txid:vout" key used by the stores.
func (u UTXO) Outpoint() string {
	return fmt.Sprintf("%s:%d", u.Txid, u.Vout)
}

// Clone returns a copy that shares no pointers with u.
func (u UTXO) Clone() UTXO {
	out := u
	if u.Token != nil {
		tok := *u.Token
		if u.Token.NFT != nil {
			nft := *u.Token.NFT
			tok.NFT = &nft
		}
		out.Token = &tok
	}
	return out
}

// CloneUTXOs copies a UTXO list element by element.
// nil stays nil so "never synced" survives a copy.
func CloneUTXOs(in []UTXO) []UTXO {
	if in == nil {
		return nil
	}
	out := make([]UTXO, len(in))
	for i, u := range in {
		out[i] = u.Clone()
	}
	return out
}
