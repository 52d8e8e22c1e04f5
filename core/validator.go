package core

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/oksanaphmn/kakarot/core/types"
	"github.com/oksanaphmn/kakarot/core/vm"
)

// ValidationContext is the host-supplied tuple a raw transaction is
// checked against.
type ValidationContext struct {
	ChainID       *big.Int
	BlockGasLimit uint64
	BaseFee       *big.Int
	SenderNonce   uint64
	SenderBalance *big.Int
}

// maxFeeBits bounds fee fields at 2^128-1. Larger values decode fine but
// are rejected during admission.
const maxFeeBits = 128

// DecodeAndValidate decodes raw transaction bytes and runs the admission
// checks. It is a pure function of its inputs; no state is touched.
func DecodeAndValidate(raw []byte, ctx ValidationContext) (*types.Transaction, error) {
	tx, err := types.DecodeTransaction(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeTransaction, err)
	}
	if err := ValidateTransaction(tx, ctx); err != nil {
		return nil, err
	}
	return tx, nil
}

// ValidateTransaction runs the ordered admission checks. Each check is
// evaluated only after all prior ones pass; the first failure's error is
// returned.
func ValidateTransaction(tx *types.Transaction, ctx ValidationContext) error {
	// Typed transactions carry an explicit chain id. Legacy transactions
	// only bind one when EIP-155 protected.
	if tx.Type() != types.LegacyTxType || tx.Protected() {
		if tx.ChainID() == nil || tx.ChainID().Cmp(ctx.ChainID) != 0 {
			return ErrInvalidChainID
		}
	}

	if tx.GasBig().BitLen() > 64 {
		return ErrGasLimitTooHigh
	}
	feeCap := tx.GasFeeCap()
	if feeCap.BitLen() > maxFeeBits {
		return ErrMaxFeeTooHigh
	}
	tipCap := tx.GasTipCap()
	if tipCap.BitLen() > maxFeeBits {
		return ErrPriorityFeeTooHigh
	}

	if tx.Type() == types.DynamicFeeTxType && tipCap.Cmp(feeCap) > 0 {
		return ErrPriorityFeeOverMaxFee
	}

	if tx.Nonce() != ctx.SenderNonce {
		return ErrInvalidNonce
	}

	if tx.Gas() > ctx.BlockGasLimit {
		return ErrGasLimitExceedsBlock
	}

	if EffectiveGasPrice(tx, ctx.BaseFee).Cmp(ctx.BaseFee) < 0 {
		return ErrMaxFeeTooLow
	}

	// Pessimistic upper bound: value + gasLimit * maxFee, with explicit
	// overflow detection. An overflowing bound can never be covered.
	cost, overflow := maxTransactionCost(tx)
	balance, bof := uint256.FromBig(ctx.SenderBalance)
	if overflow || bof || balance.Cmp(cost) < 0 {
		return ErrInsufficientFunds
	}
	return nil
}

func maxTransactionCost(tx *types.Transaction) (*uint256.Int, bool) {
	value, overflow := uint256.FromBig(tx.Value())
	if overflow {
		return nil, true
	}
	feeCap, overflow := uint256.FromBig(tx.GasFeeCap())
	if overflow {
		return nil, true
	}
	gasFee, overflow := new(uint256.Int).MulOverflow(feeCap, uint256.NewInt(tx.Gas()))
	if overflow {
		return nil, true
	}
	cost, overflow := new(uint256.Int).AddOverflow(value, gasFee)
	return cost, overflow
}

// EffectiveGasPrice is the price actually paid per gas unit: the flat
// price for legacy and access-list transactions, min(feeCap, baseFee+tip)
// for fee-market ones.
func EffectiveGasPrice(tx *types.Transaction, baseFee *big.Int) *big.Int {
	if tx.Type() != types.DynamicFeeTxType {
		return new(big.Int).Set(tx.GasPrice())
	}
	effective := new(big.Int).Add(baseFee, tx.GasTipCap())
	if effective.Cmp(tx.GasFeeCap()) > 0 {
		effective.Set(tx.GasFeeCap())
	}
	return effective
}

// IntrinsicGas is the gas charged before the first opcode executes: the
// base transaction cost, per-byte calldata cost, access list entries, and
// for creations the per-word init code charge (EIP-3860).
func IntrinsicGas(data []byte, accessList types.AccessList, isCreate bool) uint64 {
	gas := vm.TxGas
	if isCreate {
		gas = vm.TxGasContractCreation
		words := uint64(len(data)+31) / 32
		gas += words * vm.InitCodeWordGas
	}
	for _, b := range data {
		if b == 0 {
			gas += vm.TxDataZeroGas
		} else {
			gas += vm.TxDataNonZeroGas
		}
	}
	gas += uint64(len(accessList)) * vm.TxAccessListAddressGas
	gas += uint64(accessList.StorageKeys()) * vm.TxAccessListStorageKeyGas
	return gas
}
