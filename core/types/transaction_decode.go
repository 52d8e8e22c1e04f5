package types

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

var (
	ErrTxTypeNotSupported = errors.New("transaction type not supported")
	ErrInvalidSig         = errors.New("invalid transaction v, r, s values")
)

// DecodeTransaction decodes a raw transaction from its canonical wire
// encoding: a type-prefixed envelope for typed transactions, a bare RLP
// list for legacy ones. Gas and fee fields are decoded at full width so
// admission validation can reject out-of-range values itself.
func DecodeTransaction(raw []byte) (*Transaction, error) {
	if len(raw) == 0 {
		return nil, errors.New("empty transaction payload")
	}
	if raw[0] > 0x7f {
		// Bare RLP list: legacy transaction.
		var dec legacyTxRLP
		if err := rlp.DecodeBytes(raw, &dec); err != nil {
			return nil, err
		}
		return NewTx(&LegacyTx{
			Nonce:    dec.Nonce,
			GasPrice: dec.GasPrice,
			Gas:      dec.Gas,
			To:       dec.To,
			Value:    dec.Value,
			Data:     dec.Data,
			V:        dec.V,
			R:        dec.R,
			S:        dec.S,
		}), nil
	}
	// Typed envelope: first byte is the type, the rest the RLP payload.
	switch raw[0] {
	case AccessListTxType:
		var dec accessListTxRLP
		if err := rlp.DecodeBytes(raw[1:], &dec); err != nil {
			return nil, err
		}
		return NewTx(&AccessListTx{
			ChainID:    dec.ChainID,
			Nonce:      dec.Nonce,
			GasPrice:   dec.GasPrice,
			Gas:        dec.Gas,
			To:         dec.To,
			Value:      dec.Value,
			Data:       dec.Data,
			AccessList: dec.AccessList,
			V:          dec.V,
			R:          dec.R,
			S:          dec.S,
		}), nil
	case DynamicFeeTxType:
		var dec dynamicFeeTxRLP
		if err := rlp.DecodeBytes(raw[1:], &dec); err != nil {
			return nil, err
		}
		return NewTx(&DynamicFeeTx{
			ChainID:    dec.ChainID,
			Nonce:      dec.Nonce,
			GasTipCap:  dec.GasTipCap,
			GasFeeCap:  dec.GasFeeCap,
			Gas:        dec.Gas,
			To:         dec.To,
			Value:      dec.Value,
			Data:       dec.Data,
			AccessList: dec.AccessList,
			V:          dec.V,
			R:          dec.R,
			S:          dec.S,
		}), nil
	default:
		return nil, fmt.Errorf("%w: type %#x", ErrTxTypeNotSupported, raw[0])
	}
}

type legacyTxRLP struct {
	Nonce    uint64
	GasPrice *big.Int
	Gas      *big.Int
	To       *Address `rlp:"nil"`
	Value    *big.Int
	Data     []byte
	V, R, S  *big.Int
}

type accessListTxRLP struct {
	ChainID    *big.Int
	Nonce      uint64
	GasPrice   *big.Int
	Gas        *big.Int
	To         *Address `rlp:"nil"`
	Value      *big.Int
	Data       []byte
	AccessList AccessList
	V, R, S    *big.Int
}

type dynamicFeeTxRLP struct {
	ChainID    *big.Int
	Nonce      uint64
	GasTipCap  *big.Int
	GasFeeCap  *big.Int
	Gas        *big.Int
	To         *Address `rlp:"nil"`
	Value      *big.Int
	Data       []byte
	AccessList AccessList
	V, R, S    *big.Int
}

// SigHash returns the hash the transaction signature commits to.
func (tx *Transaction) SigHash() (Hash, error) {
	switch inner := tx.inner.(type) {
	case *LegacyTx:
		chainID := deriveChainID(inner.V)
		var payload []byte
		var err error
		if chainID != nil {
			payload, err = rlp.EncodeToBytes([]interface{}{
				inner.Nonce, inner.GasPrice, inner.Gas, inner.To,
				inner.Value, inner.Data, chainID, uint(0), uint(0),
			})
		} else {
			payload, err = rlp.EncodeToBytes([]interface{}{
				inner.Nonce, inner.GasPrice, inner.Gas, inner.To,
				inner.Value, inner.Data,
			})
		}
		if err != nil {
			return Hash{}, err
		}
		return BytesToHash(crypto.Keccak256(payload)), nil
	case *AccessListTx:
		payload, err := rlp.EncodeToBytes([]interface{}{
			inner.ChainID, inner.Nonce, inner.GasPrice, inner.Gas,
			inner.To, inner.Value, inner.Data, inner.AccessList,
		})
		if err != nil {
			return Hash{}, err
		}
		return BytesToHash(crypto.Keccak256(append([]byte{AccessListTxType}, payload...))), nil
	case *DynamicFeeTx:
		payload, err := rlp.EncodeToBytes([]interface{}{
			inner.ChainID, inner.Nonce, inner.GasTipCap, inner.GasFeeCap,
			inner.Gas, inner.To, inner.Value, inner.Data, inner.AccessList,
		})
		if err != nil {
			return Hash{}, err
		}
		return BytesToHash(crypto.Keccak256(append([]byte{DynamicFeeTxType}, payload...))), nil
	default:
		return Hash{}, ErrTxTypeNotSupported
	}
}

// RecoverSender recovers the signer address from the transaction signature
// and caches it on the transaction.
func (tx *Transaction) RecoverSender() (Address, error) {
	if from := tx.from.Load(); from != nil {
		return *from, nil
	}
	v, r, s := tx.rawSignature()
	if v == nil || r == nil || s == nil {
		return Address{}, ErrInvalidSig
	}
	recovery, err := tx.recoveryID(v)
	if err != nil {
		return Address{}, err
	}
	if r.BitLen() > 256 || s.BitLen() > 256 {
		return Address{}, ErrInvalidSig
	}
	hash, err := tx.SigHash()
	if err != nil {
		return Address{}, err
	}
	sig := make([]byte, 65)
	r.FillBytes(sig[:32])
	s.FillBytes(sig[32:64])
	sig[64] = recovery
	pub, err := crypto.Ecrecover(hash.Bytes(), sig)
	if err != nil {
		return Address{}, err
	}
	if len(pub) == 0 || pub[0] != 4 {
		return Address{}, errors.New("invalid public key")
	}
	var addr Address
	copy(addr[:], crypto.Keccak256(pub[1:])[12:])
	tx.SetSender(addr)
	return addr, nil
}

func (tx *Transaction) rawSignature() (v, r, s *big.Int) {
	switch inner := tx.inner.(type) {
	case *LegacyTx:
		return inner.V, inner.R, inner.S
	case *AccessListTx:
		return inner.V, inner.R, inner.S
	case *DynamicFeeTx:
		return inner.V, inner.R, inner.S
	}
	return nil, nil, nil
}

// recoveryID normalizes the signature V value to a 0/1 recovery id.
func (tx *Transaction) recoveryID(v *big.Int) (byte, error) {
	if tx.Type() != LegacyTxType {
		// Typed transactions carry the parity bit directly.
		if v.BitLen() > 1 {
			return 0, ErrInvalidSig
		}
		return byte(v.Uint64()), nil
	}
	if chainID := deriveChainID(v); chainID != nil {
		// EIP-155: v = chainID*2 + 35 + parity.
		x := new(big.Int).Sub(v, new(big.Int).Lsh(chainID, 1))
		x.Sub(x, big.NewInt(35))
		if x.BitLen() > 1 {
			return 0, ErrInvalidSig
		}
		return byte(x.Uint64()), nil
	}
	// Homestead: v = 27 + parity.
	u := v.Uint64()
	if u != 27 && u != 28 {
		return 0, ErrInvalidSig
	}
	return byte(u - 27), nil
}
