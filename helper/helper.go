package helper

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrBadOutpoint = errors.New("malformed outpoint")

// ParseOutpoint splits "txid:vout". A leading "utxo:" prefix is accepted.
func ParseOutpoint(s string) (string, uint32, error) {
	s = strings.TrimPrefix(s, "utxo:")
	i := strings.LastIndexByte(s, ':')
	if i <= 0 || i == len(s)-1 {
		return "", 0, fmt.Errorf("%w: %q", ErrBadOutpoint, s)
	}
	vout, err := strconv.ParseUint(s[i+1:], 10, 32)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %q: %v", ErrBadOutpoint, s, err)
	}
	return s[:i], uint32(vout), nil
}

// SplitIndexKey returns the outpoint part of "addr:<address>/<txid>:<vout>".
func SplitIndexKey(key string) (string, error) {
	i := strings.LastIndexByte(key, '/')
	if i < 0 {
		return "", fmt.Errorf("%w: index key %q", ErrBadOutpoint, key)
	}
	op := key[i+1:]
	if _, _, err := ParseOutpoint(op); err != nil {
		return "", err
	}
	return op, nil
}

// RedactURL keeps scheme and host of an endpoint for logging.
func RedactURL(raw string) string {
	if i := strings.Index(raw, "@"); i >= 0 {
		if j := strings.Index(raw, "://"); j >= 0 && j < i {
			return raw[:j+3] + raw[i+1:]
		}
	}
	return raw
}
