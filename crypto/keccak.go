package crypto

import (
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/oksanaphmn/kakarot/core/types"
	"golang.org/x/crypto/sha3"
)

// Keccak256 calculates the Keccak-256 hash of the given data.
func Keccak256(data ...[]byte) []byte {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	return d.Sum(nil)
}

// Keccak256Hash calculates Keccak-256 and returns it as a types.Hash.
func Keccak256Hash(data ...[]byte) types.Hash {
	return types.BytesToHash(Keccak256(data...))
}

// CreateAddress derives the address a CREATE deployment lands on:
// the last 20 bytes of keccak256(rlp([sender, nonce])).
func CreateAddress(sender types.Address, nonce uint64) types.Address {
	enc, _ := rlp.EncodeToBytes([]interface{}{sender, nonce})
	return types.BytesToAddress(Keccak256(enc)[12:])
}

// Create2Address derives the address a CREATE2 deployment lands on:
// the last 20 bytes of keccak256(0xff ++ sender ++ salt ++ keccak256(initcode)).
func Create2Address(sender types.Address, salt types.Hash, initCodeHash []byte) types.Address {
	return types.BytesToAddress(Keccak256([]byte{0xff}, sender.Bytes(), salt.Bytes(), initCodeHash)[12:])
}
