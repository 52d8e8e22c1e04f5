package core

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksanaphmn/kakarot/core/types"
	"github.com/oksanaphmn/kakarot/core/vm"
)

var recipient = types.HexToAddress("0x3535353535353535353535353535353535353535")

func validCtx() ValidationContext {
	return ValidationContext{
		ChainID:       big.NewInt(1),
		BlockGasLimit: 10_000_000,
		BaseFee:       big.NewInt(10),
		SenderNonce:   5,
		SenderBalance: new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil),
	}
}

func validDynamicTx() *types.DynamicFeeTx {
	return &types.DynamicFeeTx{
		ChainID:   big.NewInt(1),
		Nonce:     5,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(20),
		Gas:       big.NewInt(100_000),
		To:        &recipient,
		Value:     big.NewInt(0),
	}
}

func TestValidateAccepts(t *testing.T) {
	tx := types.NewTx(validDynamicTx())
	require.NoError(t, ValidateTransaction(tx, validCtx()))
}

func TestValidateChainID(t *testing.T) {
	inner := validDynamicTx()
	inner.ChainID = big.NewInt(2)
	err := ValidateTransaction(types.NewTx(inner), validCtx())
	assert.ErrorIs(t, err, ErrInvalidChainID)
	assert.EqualError(t, err, "Invalid chain id")
}

func TestValidateUnprotectedLegacySkipsChainID(t *testing.T) {
	// Pre-EIP-155 signatures carry no chain id and must not be rejected
	// for it.
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    5,
		GasPrice: big.NewInt(20),
		Gas:      big.NewInt(21_000),
		To:       &recipient,
		Value:    big.NewInt(0),
		V:        big.NewInt(27),
		R:        big.NewInt(1),
		S:        big.NewInt(1),
	})
	require.NoError(t, ValidateTransaction(tx, validCtx()))
}

func TestValidateProtectedLegacyChainID(t *testing.T) {
	// V = 39 encodes chain id 2 under EIP-155.
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    5,
		GasPrice: big.NewInt(20),
		Gas:      big.NewInt(21_000),
		To:       &recipient,
		Value:    big.NewInt(0),
		V:        big.NewInt(39),
		R:        big.NewInt(1),
		S:        big.NewInt(1),
	})
	err := ValidateTransaction(tx, validCtx())
	assert.ErrorIs(t, err, ErrInvalidChainID)
}

func TestValidateGasLimitWidth(t *testing.T) {
	inner := validDynamicTx()
	inner.Gas = new(big.Int).Lsh(big.NewInt(1), 65)
	err := ValidateTransaction(types.NewTx(inner), validCtx())
	assert.ErrorIs(t, err, ErrGasLimitTooHigh)
	assert.EqualError(t, err, "Gas limit too high")
}

func TestValidateFeeCapWidth(t *testing.T) {
	inner := validDynamicTx()
	inner.GasFeeCap = new(big.Int).Lsh(big.NewInt(1), 129)
	err := ValidateTransaction(types.NewTx(inner), validCtx())
	assert.ErrorIs(t, err, ErrMaxFeeTooHigh)
	assert.EqualError(t, err, "Max fee per gas too high")
}

func TestValidateTipCapWidth(t *testing.T) {
	inner := validDynamicTx()
	inner.GasTipCap = new(big.Int).Lsh(big.NewInt(1), 129)
	err := ValidateTransaction(types.NewTx(inner), validCtx())
	assert.ErrorIs(t, err, ErrPriorityFeeTooHigh)
	assert.EqualError(t, err, "Max priority fee per gas too high")
}

func TestValidateTipOverFeeCap(t *testing.T) {
	inner := validDynamicTx()
	inner.GasTipCap = big.NewInt(30)
	err := ValidateTransaction(types.NewTx(inner), validCtx())
	assert.ErrorIs(t, err, ErrPriorityFeeOverMaxFee)
	assert.EqualError(t, err, "Max priority fee greater than max fee per gas")
}

func TestValidateNonce(t *testing.T) {
	inner := validDynamicTx()
	inner.Nonce = 6
	err := ValidateTransaction(types.NewTx(inner), validCtx())
	assert.ErrorIs(t, err, ErrInvalidNonce)
	assert.EqualError(t, err, "Invalid nonce")
}

func TestValidateBlockGasLimit(t *testing.T) {
	inner := validDynamicTx()
	inner.Gas = big.NewInt(10_000_001)
	err := ValidateTransaction(types.NewTx(inner), validCtx())
	assert.ErrorIs(t, err, ErrGasLimitExceedsBlock)
	assert.EqualError(t, err, "Transaction gas_limit > Block gas_limit")
}

func TestValidateFeeCapBelowBaseFee(t *testing.T) {
	inner := validDynamicTx()
	inner.GasFeeCap = big.NewInt(9)
	inner.GasTipCap = big.NewInt(0)
	err := ValidateTransaction(types.NewTx(inner), validCtx())
	assert.ErrorIs(t, err, ErrMaxFeeTooLow)
	assert.EqualError(t, err, "Max fee per gas too low")
}

func TestValidateInsufficientFunds(t *testing.T) {
	ctx := validCtx()
	ctx.SenderBalance = big.NewInt(100)
	err := ValidateTransaction(types.NewTx(validDynamicTx()), ctx)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.EqualError(t, err, "Not enough ETH to pay msg.value + max gas fees")
}

func TestValidateCostOverflowRejected(t *testing.T) {
	// gasLimit * feeCap exceeds 2^256; the bound can never be covered.
	inner := validDynamicTx()
	inner.Gas = new(big.Int).SetUint64(1 << 63)
	inner.GasFeeCap = new(big.Int).Lsh(big.NewInt(1), 127)
	ctx := validCtx()
	ctx.BlockGasLimit = 1 << 63
	err := ValidateTransaction(types.NewTx(inner), ctx)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestValidateOrder(t *testing.T) {
	// A transaction violating both the chain id and the nonce check
	// reports the chain id failure, which runs first.
	inner := validDynamicTx()
	inner.ChainID = big.NewInt(2)
	inner.Nonce = 99
	err := ValidateTransaction(types.NewTx(inner), validCtx())
	assert.ErrorIs(t, err, ErrInvalidChainID)
}

func TestDecodeAndValidateRejectsGarbage(t *testing.T) {
	_, err := DecodeAndValidate([]byte{0xff, 0x00, 0x01}, validCtx())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDecodeTransaction)
}

func TestEffectiveGasPrice(t *testing.T) {
	legacy := types.NewTx(&types.LegacyTx{
		GasPrice: big.NewInt(50),
		Gas:      big.NewInt(21_000),
		Value:    big.NewInt(0),
	})
	assert.Equal(t, big.NewInt(50), EffectiveGasPrice(legacy, big.NewInt(10)))

	dynamic := types.NewTx(&types.DynamicFeeTx{
		ChainID:   big.NewInt(1),
		GasTipCap: big.NewInt(2),
		GasFeeCap: big.NewInt(100),
		Gas:       big.NewInt(21_000),
		Value:     big.NewInt(0),
	})
	// baseFee + tip below the cap.
	assert.Equal(t, big.NewInt(12), EffectiveGasPrice(dynamic, big.NewInt(10)))
	// Capped by maxFeePerGas.
	assert.Equal(t, big.NewInt(100), EffectiveGasPrice(dynamic, big.NewInt(99)))
}

func TestIntrinsicGas(t *testing.T) {
	assert.Equal(t, vm.TxGas, IntrinsicGas(nil, nil, false))

	// One zero and one nonzero calldata byte.
	assert.Equal(t, vm.TxGas+vm.TxDataZeroGas+vm.TxDataNonZeroGas,
		IntrinsicGas([]byte{0x00, 0x01}, nil, false))

	// Creation charges the higher base plus the per-word init code cost.
	data := make([]byte, 33) // 2 words
	want := vm.TxGasContractCreation + 2*vm.InitCodeWordGas + 33*vm.TxDataZeroGas
	assert.Equal(t, want, IntrinsicGas(data, nil, true))

	al := types.AccessList{{Address: recipient, StorageKeys: []types.Hash{{}, {}}}}
	want = vm.TxGas + vm.TxAccessListAddressGas + 2*vm.TxAccessListStorageKeyGas
	assert.Equal(t, want, IntrinsicGas(nil, al, false))
}
