package provider

import (
	"context"
	"fmt"
	"sort"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/zanwyyy/contractsync/model"
)

// Redis serves UTXOs that another process (an indexer, a test harness)
// keeps in redis:
//
//	utxo:<txid>:<vout>  -> JSON model.UTXO
//	addr:<address>      -> set of "utxo:<txid>:<vout>"
type Redis struct {
	rdb redis.UniversalClient
}

func NewRedis(addr string) *Redis {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return &Redis{rdb: rdb}
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(rdb redis.UniversalClient) *Redis {
	return &Redis{rdb: rdb}
}

func (r *Redis) Name() string { return "redis" }

func (r *Redis) Close() error {
	return r.rdb.Close()
}

func redisUtxoKey(outpoint string) string {
	return "utxo:" + outpoint
}

func redisAddrKey(addr string) string {
	return "addr:" + addr
}

// Put credits address with u (atomic pipeline).
func (r *Redis) Put(ctx context.Context, address string, u model.UTXO) error {
	b, err := json.Marshal(u)
	if err != nil {
		return err
	}
	key := redisUtxoKey(u.Outpoint())

	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, key, b, 0)
	pipe.SAdd(ctx, redisAddrKey(address), key)
	_, err = pipe.Exec(ctx)
	return err
}

// Delete spends one outpoint of address (atomic pipeline).
func (r *Redis) Delete(ctx context.Context, address, txid string, vout uint32) error {
	key := redisUtxoKey(model.UTXO{Txid: txid, Vout: vout}.Outpoint())

	pipe := r.rdb.TxPipeline()
	pipe.SRem(ctx, redisAddrKey(address), key)
	pipe.Del(ctx, key)
	_, err := pipe.Exec(ctx)
	return err
}

// GetUtxos reads the address set and fetches all members in one MGET.
// Results are sorted by key so repeated calls agree on order.
func (r *Redis) GetUtxos(ctx context.Context, address string) ([]model.UTXO, error) {
	keys, err := r.rdb.SMembers(ctx, redisAddrKey(address)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: redis smembers %s: %v", ErrUnavailable, address, err)
	}
	if len(keys) == 0 {
		return []model.UTXO{}, nil
	}
	sort.Strings(keys)

	vals, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: redis mget %s: %v", ErrUnavailable, address, err)
	}

	res := make([]model.UTXO, 0, len(vals))
	for i, v := range vals {
		// member whose value was deleted
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s: unexpected %T", ErrBadResponse, keys[i], v)
		}
		var u model.UTXO
		if err := json.Unmarshal([]byte(s), &u); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrBadResponse, keys[i], err)
		}
		res = append(res, u)
	}
	return res, nil
}
