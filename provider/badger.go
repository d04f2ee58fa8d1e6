package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"

	"github.com/zanwyyy/contractsync/helper"
	"github.com/zanwyyy/contractsync/model"
)

// Badger is a simulated chain persisted on disk, so a scenario survives
// restarts of the demo driver.
//
// Keys:
//
//	utxo:<txid>:<vout>            -> JSON model.UTXO
//	addr:<address>/<txid>:<vout>  -> empty
type Badger struct {
	db *badger.DB
}

func NewBadger(db *badger.DB) *Badger {
	return &Badger{db: db}
}

func (b *Badger) Name() string { return "badger" }

func utxoKey(outpoint string) []byte {
	return []byte("utxo:" + outpoint)
}

func addrPrefix(address string) []byte {
	return []byte("addr:" + address + "/")
}

func addrKey(address, outpoint string) []byte {
	return append(addrPrefix(address), outpoint...)
}

// Put credits address with u in a single transaction.
func (b *Badger) Put(address string, u model.UTXO) error {
	val, err := json.Marshal(u)
	if err != nil {
		return err
	}
	op := u.Outpoint()

	return b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(utxoKey(op), val); err != nil {
			return err
		}
		return txn.Set(addrKey(address, op), []byte{})
	})
}

// Delete spends one outpoint of address. Missing keys are ignored.
func (b *Badger) Delete(address, txid string, vout uint32) error {
	op := model.UTXO{Txid: txid, Vout: vout}.Outpoint()

	return b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(utxoKey(op)); err != nil {
			return err
		}
		return txn.Delete(addrKey(address, op))
	})
}

// GetUtxos scans the address index and loads each output it points to.
// Index entries whose output is gone are skipped.
func (b *Badger) GetUtxos(ctx context.Context, address string) ([]model.UTXO, error) {
	prefix := addrPrefix(address)
	result := []model.UTXO{}

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false // index values are empty
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			op, err := helper.SplitIndexKey(string(it.Item().Key()))
			if err != nil {
				return fmt.Errorf("%w: %v", ErrBadResponse, err)
			}

			item, err := txn.Get(utxoKey(op))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}

			var u model.UTXO
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &u)
			}); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrBadResponse, op, err)
			}
			result = append(result, u)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger get utxos %s: %w", address, err)
	}
	return result, nil
}
