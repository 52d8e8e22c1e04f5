// Package core ties the execution engine together: transaction admission,
// the executor entrypoints, and the owner-gated chain settings.
package core

import (
	"fmt"
	"math/big"

	"github.com/oksanaphmn/kakarot/bridge"
	"github.com/oksanaphmn/kakarot/core/state"
	"github.com/oksanaphmn/kakarot/core/types"
	"github.com/oksanaphmn/kakarot/core/vm"
	"github.com/oksanaphmn/kakarot/crypto"
	"github.com/oksanaphmn/kakarot/log"
)

var _ vm.StateDB = (*state.StateDB)(nil)

// ExecutionResult is the outcome of running a message or transaction.
type ExecutionResult struct {
	UsedGas         uint64
	RefundedGas     uint64
	Err             error
	ReturnData      []byte
	ContractAddress types.Address // set for contract creation
	Logs            []*types.Log
	StateDiff       state.Diff // populated by SendRawTransaction
}

// Unwrap returns the execution error, if any.
func (r *ExecutionResult) Unwrap() error {
	return r.Err
}

// Failed returns whether the execution resulted in an error.
func (r *ExecutionResult) Failed() bool {
	return r.Err != nil
}

// Return returns the return data from a successful execution.
func (r *ExecutionResult) Return() []byte {
	if r.Failed() {
		return nil
	}
	return r.ReturnData
}

// Revert returns the revert reason from a reverted execution.
func (r *ExecutionResult) Revert() []byte {
	if r.Err == vm.ErrExecutionReverted {
		return r.ReturnData
	}
	return nil
}

// Message is a call or creation request. A nil To means contract
// creation.
type Message struct {
	From       types.Address
	To         *types.Address
	Value      *big.Int
	Data       []byte
	GasLimit   uint64
	AccessList types.AccessList
}

// Executor runs messages and raw transactions against a StateDB, with
// block-level parameters read from Settings.
type Executor struct {
	settings  *Settings
	statedb   *state.StateDB
	directory *bridge.AccountDirectory
	logger    *log.Logger

	// Host-supplied block fields not kept in the config store.
	BlockNumber *big.Int
	Time        uint64
	GetHash     vm.GetHashFunc
}

func NewExecutor(settings *Settings, statedb *state.StateDB, directory *bridge.AccountDirectory) *Executor {
	return &Executor{
		settings:    settings,
		statedb:     statedb,
		directory:   directory,
		logger:      log.Default().Module("core"),
		BlockNumber: new(big.Int),
	}
}

func (ex *Executor) blockContext() vm.BlockContext {
	return vm.BlockContext{
		GetHash:     ex.GetHash,
		BlockNumber: ex.BlockNumber,
		Time:        ex.Time,
		Coinbase:    ex.settings.Coinbase(),
		GasLimit:    ex.settings.BlockGasLimit(),
		BaseFee:     ex.settings.BaseFee(),
		PrevRandao:  ex.settings.PrevRandao(),
		BlobBaseFee: big.NewInt(1),
	}
}

func (ex *Executor) newEVM(origin types.Address, gasPrice *big.Int) *vm.EVM {
	txCtx := vm.TxContext{Origin: origin, GasPrice: gasPrice}
	config := vm.Config{ChainID: ex.settings.ChainID()}
	return vm.NewEVM(ex.blockContext(), txCtx, ex.statedb, config)
}

// Call runs a message without admission validation or fee accounting and
// discards all state changes afterwards. A creation message returns the
// 20-byte deployed address as return data.
func (ex *Executor) Call(msg Message) (*ExecutionResult, error) {
	if ex.settings.Paused() {
		return nil, ErrPaused
	}

	snapshot := ex.statedb.Snapshot()
	defer ex.statedb.RevertToSnapshot(snapshot)

	intrinsic := IntrinsicGas(msg.Data, msg.AccessList, msg.To == nil)
	if msg.GasLimit < intrinsic {
		return nil, ErrIntrinsicGasTooLow
	}
	gas := msg.GasLimit - intrinsic

	evm := ex.newEVM(msg.From, new(big.Int))
	evm.PreWarmAccessList(msg.From, msg.To, msg.AccessList)

	value := msg.Value
	if value == nil {
		value = new(big.Int)
	}

	var (
		ret          []byte
		gasLeft      uint64
		vmerr        error
		contractAddr types.Address
	)
	if msg.To == nil {
		nonce := ex.statedb.GetNonce(msg.From)
		contractAddr = crypto.CreateAddress(msg.From, nonce)
		ex.statedb.SetNonce(msg.From, nonce+1)
		ret, gasLeft, vmerr = evm.CreateAt(msg.From, contractAddr, msg.Data, gas, value)
		if vmerr == nil {
			ret = contractAddr.Bytes()
		}
	} else {
		ex.statedb.SetNonce(msg.From, ex.statedb.GetNonce(msg.From)+1)
		ret, gasLeft, vmerr = evm.Call(msg.From, *msg.To, msg.Data, gas, value)
	}

	gasUsed := msg.GasLimit - gasLeft
	refund := capRefund(ex.statedb.GetRefund(), gasUsed)
	gasUsed -= refund

	return &ExecutionResult{
		UsedGas:         gasUsed,
		RefundedGas:     refund,
		Err:             vmerr,
		ReturnData:      ret,
		ContractAddress: contractAddr,
		Logs:            ex.statedb.Logs(),
	}, nil
}

// SendRawTransaction decodes, validates and executes a raw transaction,
// then settles fees with the coinbase, sweeps destructed accounts and
// commits the post-state diff.
func (ex *Executor) SendRawTransaction(raw []byte) (*ExecutionResult, error) {
	if ex.settings.Paused() {
		return nil, ErrPaused
	}

	tx, err := types.DecodeTransaction(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeTransaction, err)
	}
	sender, err := tx.RecoverSender()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeTransaction, err)
	}

	ctx := ValidationContext{
		ChainID:       ex.settings.ChainID(),
		BlockGasLimit: ex.settings.BlockGasLimit(),
		BaseFee:       ex.settings.BaseFee(),
		SenderNonce:   ex.statedb.GetNonce(sender),
		SenderBalance: ex.statedb.GetBalance(sender),
	}
	if err := ValidateTransaction(tx, ctx); err != nil {
		return nil, err
	}

	gasPrice := EffectiveGasPrice(tx, ex.settings.BaseFee())
	nonce := ex.statedb.GetNonce(sender)

	// If intrinsic gas cannot be covered the transaction is still
	// included: the nonce advances and the full gas limit is charged,
	// but execution never starts.
	intrinsic := IntrinsicGas(tx.Data(), tx.AccessList(), tx.To() == nil)
	if intrinsic > tx.Gas() {
		ex.statedb.SetNonce(sender, nonce+1)
		return ex.settle(tx.Gas(), 0, ErrIntrinsicGasTooLow, nil, types.Address{}, sender, gasPrice)
	}
	gas := tx.Gas() - intrinsic

	evm := ex.newEVM(sender, gasPrice)
	evm.PreWarmAccessList(sender, tx.To(), tx.AccessList())

	ex.statedb.SetNonce(sender, nonce+1)

	var (
		ret          []byte
		gasLeft      uint64
		vmerr        error
		contractAddr types.Address
	)
	if tx.To() == nil {
		contractAddr = crypto.CreateAddress(sender, nonce)
		ret, gasLeft, vmerr = evm.CreateAt(sender, contractAddr, tx.Data(), gas, tx.Value())
	} else {
		ret, gasLeft, vmerr = evm.Call(sender, *tx.To(), tx.Data(), gas, tx.Value())
	}

	gasUsed := tx.Gas() - gasLeft
	refund := capRefund(ex.statedb.GetRefund(), gasUsed)
	gasUsed -= refund

	ex.materialize(sender)
	if vmerr == nil && tx.To() == nil {
		ex.materialize(contractAddr)
	}

	ex.logger.Debug("transaction executed",
		"sender", sender.Hex(),
		"gasUsed", gasUsed,
		"reverted", vmerr != nil)

	return ex.settle(gasUsed, refund, vmerr, ret, contractAddr, sender, gasPrice)
}

// settle debits the fee, credits the coinbase, and commits the diff.
func (ex *Executor) settle(gasUsed, refund uint64, vmerr error, ret []byte, contractAddr, sender types.Address, gasPrice *big.Int) (*ExecutionResult, error) {
	fee := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(gasUsed))
	ex.statedb.SubBalance(sender, fee)
	ex.statedb.AddBalance(ex.settings.Coinbase(), fee)

	logs := ex.statedb.Logs()
	diff, err := ex.statedb.Commit()
	if err != nil {
		return nil, err
	}

	return &ExecutionResult{
		UsedGas:         gasUsed,
		RefundedGas:     refund,
		Err:             vmerr,
		ReturnData:      ret,
		ContractAddress: contractAddr,
		Logs:            logs,
		StateDiff:       diff,
	}, nil
}

// materialize records the bridge entry for an address the first time it
// participates in a transaction.
func (ex *Executor) materialize(addr types.Address) {
	if ex.directory == nil || ex.directory.Registered(addr) {
		return
	}
	if err := ex.directory.Register(ex.directory.Resolve(addr), addr); err != nil {
		ex.logger.Warn("account registration failed", "address", addr.Hex(), "err", err)
	}
}

func capRefund(refund, gasUsed uint64) uint64 {
	if max := gasUsed / vm.MaxRefundQuotient; refund > max {
		return max
	}
	return refund
}
