package core

import "errors"

// Admission errors. The messages are fixed strings pinned by conformance
// tests; do not reword them.
var (
	ErrInvalidChainID        = errors.New("Invalid chain id")
	ErrInvalidNonce          = errors.New("Invalid nonce")
	ErrGasLimitTooHigh       = errors.New("Gas limit too high")
	ErrMaxFeeTooHigh         = errors.New("Max fee per gas too high")
	ErrPriorityFeeTooHigh    = errors.New("Max priority fee per gas too high")
	ErrPriorityFeeOverMaxFee = errors.New("Max priority fee greater than max fee per gas")
	ErrGasLimitExceedsBlock  = errors.New("Transaction gas_limit > Block gas_limit")
	ErrMaxFeeTooLow          = errors.New("Max fee per gas too low")
	ErrInsufficientFunds     = errors.New("Not enough ETH to pay msg.value + max gas fees")
)

// Authorization and lifecycle errors.
var (
	ErrNotOwner           = errors.New("Ownable: caller is not the owner")
	ErrPaused             = errors.New("Pausable: paused")
	ErrChainIDInitialized = errors.New("Kakarot: chain_id already initialized")
	ErrIntrinsicGasTooLow = errors.New("intrinsic gas exceeds gas limit")
	ErrDecodeTransaction  = errors.New("failed to decode transaction")
)
