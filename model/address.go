package model

import (
	"encoding/hex"

	"github.com/minio/sha256-simd"
	"golang.org/x/crypto/ripemd160"
)

// Hash160 = SHA256 then RIPEMD160 (like Bitcoin)
func Hash160(data []byte) []byte {
	sha := sha256.Sum256(data)
	rip := ripemd160.New()
	_, _ = rip.Write(sha[:])
	return rip.Sum(nil)
}

// ContractAddress derives the address a compiled contract is paid to:
// network prefix + hex(hash160(bytecode)).
func ContractAddress(bytecode []byte, network string) string {
	h := hex.EncodeToString(Hash160(bytecode))
	if network == "" {
		return h
	}
	return network + ":" + h
}

// LockingScript builds the P2SH script for a contract address hash.
func LockingScript(bytecode []byte) string {
	script := []byte{
		0xa9, // OP_HASH160
		0x14, // PUSHDATA 20 bytes
	}
	script = append(script, Hash160(bytecode)...)
	script = append(script, 0x87) // OP_EQUAL
	return hex.EncodeToString(script)
}
