package types

import (
	"math/big"
	"sync/atomic"
)

// Transaction type constants.
const (
	LegacyTxType     = 0x00
	AccessListTxType = 0x01
	DynamicFeeTxType = 0x02
)

// Transaction represents an Ethereum transaction. It is immutable once
// decoded; accessors return copies of mutable fields.
type Transaction struct {
	inner TxData
	from  atomic.Pointer[Address] // cached sender address
}

// NewTx wraps the given transaction data in a Transaction.
func NewTx(inner TxData) *Transaction {
	return &Transaction{inner: inner.copy()}
}

// SetSender caches the sender address on the transaction.
func (tx *Transaction) SetSender(addr Address) {
	a := addr
	tx.from.Store(&a)
}

// Sender returns the cached sender address, or nil if not yet set.
func (tx *Transaction) Sender() *Address {
	return tx.from.Load()
}

// TxData is the underlying data of a transaction.
type TxData interface {
	txType() byte
	chainID() *big.Int
	accessList() AccessList
	data() []byte
	gas() *big.Int
	gasPrice() *big.Int
	gasTipCap() *big.Int
	gasFeeCap() *big.Int
	value() *big.Int
	nonce() uint64
	to() *Address

	copy() TxData
}

// AccessList is a list of address-slot pairs accessed by a transaction.
type AccessList []AccessTuple

// AccessTuple is a single address and its accessed storage slots.
type AccessTuple struct {
	Address     Address
	StorageKeys []Hash
}

// StorageKeys returns the total number of storage keys across all tuples.
func (al AccessList) StorageKeys() int {
	n := 0
	for _, tuple := range al {
		n += len(tuple.StorageKeys)
	}
	return n
}

// Type returns the transaction type.
func (tx *Transaction) Type() byte { return tx.inner.txType() }

// ChainID returns the chain id of the transaction, or nil for legacy
// transactions without replay protection.
func (tx *Transaction) ChainID() *big.Int { return tx.inner.chainID() }

// Nonce returns the sender nonce of the transaction.
func (tx *Transaction) Nonce() uint64 { return tx.inner.nonce() }

// GasBig returns the gas limit as decoded, without any width clamping.
// Admission validation rejects values that do not fit in 64 bits.
func (tx *Transaction) GasBig() *big.Int { return tx.inner.gas() }

// Gas returns the gas limit of the transaction. Only meaningful after the
// validator has established the field fits in 64 bits.
func (tx *Transaction) Gas() uint64 { return tx.inner.gas().Uint64() }

// GasPrice returns the (legacy) gas price of the transaction.
func (tx *Transaction) GasPrice() *big.Int { return tx.inner.gasPrice() }

// GasTipCap returns the max priority fee per gas.
func (tx *Transaction) GasTipCap() *big.Int { return tx.inner.gasTipCap() }

// GasFeeCap returns the max fee per gas.
func (tx *Transaction) GasFeeCap() *big.Int { return tx.inner.gasFeeCap() }

// Value returns the amount of native token transferred by the transaction.
func (tx *Transaction) Value() *big.Int { return tx.inner.value() }

// To returns the recipient address, or nil for contract creation.
func (tx *Transaction) To() *Address { return tx.inner.to() }

// Data returns the input data of the transaction.
func (tx *Transaction) Data() []byte { return tx.inner.data() }

// AccessList returns the access list of the transaction (nil for legacy).
func (tx *Transaction) AccessList() AccessList { return tx.inner.accessList() }

// Protected reports whether the transaction is replay-protected: typed
// transactions always are, legacy ones only with an EIP-155 V value.
func (tx *Transaction) Protected() bool {
	if tx.Type() != LegacyTxType {
		return true
	}
	return tx.inner.chainID() != nil
}

// LegacyTx represents a legacy (type 0x00) transaction.
type LegacyTx struct {
	Nonce    uint64
	GasPrice *big.Int
	Gas      *big.Int
	To       *Address
	Value    *big.Int
	Data     []byte
	V, R, S  *big.Int
}

func (tx *LegacyTx) txType() byte           { return LegacyTxType }
func (tx *LegacyTx) chainID() *big.Int      { return deriveChainID(tx.V) }
func (tx *LegacyTx) accessList() AccessList { return nil }
func (tx *LegacyTx) data() []byte           { return tx.Data }
func (tx *LegacyTx) gas() *big.Int          { return tx.Gas }
func (tx *LegacyTx) gasPrice() *big.Int     { return tx.GasPrice }
func (tx *LegacyTx) gasTipCap() *big.Int    { return tx.GasPrice }
func (tx *LegacyTx) gasFeeCap() *big.Int    { return tx.GasPrice }
func (tx *LegacyTx) value() *big.Int        { return tx.Value }
func (tx *LegacyTx) nonce() uint64          { return tx.Nonce }
func (tx *LegacyTx) to() *Address           { return tx.To }

func (tx *LegacyTx) copy() TxData {
	return &LegacyTx{
		Nonce:    tx.Nonce,
		GasPrice: copyBig(tx.GasPrice),
		Gas:      copyBig(tx.Gas),
		To:       copyAddressPtr(tx.To),
		Value:    copyBig(tx.Value),
		Data:     copyBytes(tx.Data),
		V:        copyBig(tx.V),
		R:        copyBig(tx.R),
		S:        copyBig(tx.S),
	}
}

// AccessListTx represents an EIP-2930 (type 0x01) transaction.
type AccessListTx struct {
	ChainID    *big.Int
	Nonce      uint64
	GasPrice   *big.Int
	Gas        *big.Int
	To         *Address
	Value      *big.Int
	Data       []byte
	AccessList AccessList
	V, R, S    *big.Int
}

func (tx *AccessListTx) txType() byte           { return AccessListTxType }
func (tx *AccessListTx) chainID() *big.Int      { return tx.ChainID }
func (tx *AccessListTx) accessList() AccessList { return tx.AccessList }
func (tx *AccessListTx) data() []byte           { return tx.Data }
func (tx *AccessListTx) gas() *big.Int          { return tx.Gas }
func (tx *AccessListTx) gasPrice() *big.Int     { return tx.GasPrice }
func (tx *AccessListTx) gasTipCap() *big.Int    { return tx.GasPrice }
func (tx *AccessListTx) gasFeeCap() *big.Int    { return tx.GasPrice }
func (tx *AccessListTx) value() *big.Int        { return tx.Value }
func (tx *AccessListTx) nonce() uint64          { return tx.Nonce }
func (tx *AccessListTx) to() *Address           { return tx.To }

func (tx *AccessListTx) copy() TxData {
	return &AccessListTx{
		ChainID:    copyBig(tx.ChainID),
		Nonce:      tx.Nonce,
		GasPrice:   copyBig(tx.GasPrice),
		Gas:        copyBig(tx.Gas),
		To:         copyAddressPtr(tx.To),
		Value:      copyBig(tx.Value),
		Data:       copyBytes(tx.Data),
		AccessList: copyAccessList(tx.AccessList),
		V:          copyBig(tx.V),
		R:          copyBig(tx.R),
		S:          copyBig(tx.S),
	}
}

// DynamicFeeTx represents an EIP-1559 (type 0x02) transaction.
type DynamicFeeTx struct {
	ChainID    *big.Int
	Nonce      uint64
	GasTipCap  *big.Int // max priority fee per gas
	GasFeeCap  *big.Int // max fee per gas
	Gas        *big.Int
	To         *Address
	Value      *big.Int
	Data       []byte
	AccessList AccessList
	V, R, S    *big.Int
}

func (tx *DynamicFeeTx) txType() byte           { return DynamicFeeTxType }
func (tx *DynamicFeeTx) chainID() *big.Int      { return tx.ChainID }
func (tx *DynamicFeeTx) accessList() AccessList { return tx.AccessList }
func (tx *DynamicFeeTx) data() []byte           { return tx.Data }
func (tx *DynamicFeeTx) gas() *big.Int          { return tx.Gas }
func (tx *DynamicFeeTx) gasPrice() *big.Int     { return tx.GasFeeCap }
func (tx *DynamicFeeTx) gasTipCap() *big.Int    { return tx.GasTipCap }
func (tx *DynamicFeeTx) gasFeeCap() *big.Int    { return tx.GasFeeCap }
func (tx *DynamicFeeTx) value() *big.Int        { return tx.Value }
func (tx *DynamicFeeTx) nonce() uint64          { return tx.Nonce }
func (tx *DynamicFeeTx) to() *Address           { return tx.To }

func (tx *DynamicFeeTx) copy() TxData {
	return &DynamicFeeTx{
		ChainID:    copyBig(tx.ChainID),
		Nonce:      tx.Nonce,
		GasTipCap:  copyBig(tx.GasTipCap),
		GasFeeCap:  copyBig(tx.GasFeeCap),
		Gas:        copyBig(tx.Gas),
		To:         copyAddressPtr(tx.To),
		Value:      copyBig(tx.Value),
		Data:       copyBytes(tx.Data),
		AccessList: copyAccessList(tx.AccessList),
		V:          copyBig(tx.V),
		R:          copyBig(tx.R),
		S:          copyBig(tx.S),
	}
}

// deriveChainID derives the chain id from an EIP-155 legacy V value.
// Returns nil for unprotected (V = 27/28) signatures.
func deriveChainID(v *big.Int) *big.Int {
	if v == nil || v.BitLen() <= 8 {
		if v != nil {
			u := v.Uint64()
			if u != 27 && u != 28 && u != 0 && u != 1 {
				return new(big.Int).SetUint64((u - 35) / 2)
			}
		}
		return nil
	}
	x := new(big.Int).Sub(v, big.NewInt(35))
	return x.Rsh(x, 1)
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func copyAddressPtr(a *Address) *Address {
	if a == nil {
		return nil
	}
	cpy := *a
	return &cpy
}

func copyAccessList(al AccessList) AccessList {
	if al == nil {
		return nil
	}
	out := make(AccessList, len(al))
	for i, tuple := range al {
		out[i].Address = tuple.Address
		out[i].StorageKeys = make([]Hash, len(tuple.StorageKeys))
		copy(out[i].StorageKeys, tuple.StorageKeys)
	}
	return out
}
