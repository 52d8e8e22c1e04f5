package vm

import (
	"errors"
	"math/big"

	"github.com/oksanaphmn/kakarot/core/types"
	"github.com/oksanaphmn/kakarot/crypto"
)

// GetHashFunc returns the hash of the block with the given number.
type GetHashFunc func(uint64) types.Hash

// BlockContext provides the EVM with block-level information.
type BlockContext struct {
	GetHash     GetHashFunc
	BlockNumber *big.Int
	Time        uint64
	Coinbase    types.Address
	GasLimit    uint64
	BaseFee     *big.Int
	PrevRandao  types.Hash
	BlobBaseFee *big.Int
}

// TxContext provides the EVM with transaction-level information.
type TxContext struct {
	Origin     types.Address
	GasPrice   *big.Int
	BlobHashes []types.Hash
}

// StateDB gives the EVM access to world state. The interface lives in the
// vm package to avoid a circular import with core/state; state.StateDB
// satisfies it.
type StateDB interface {
	CreateAccount(addr types.Address)
	CreateContract(addr types.Address)
	GetBalance(addr types.Address) *big.Int
	AddBalance(addr types.Address, amount *big.Int)
	SubBalance(addr types.Address, amount *big.Int)
	GetNonce(addr types.Address) uint64
	SetNonce(addr types.Address, nonce uint64)
	GetCode(addr types.Address) []byte
	SetCode(addr types.Address, code []byte)
	GetCodeHash(addr types.Address) types.Hash
	GetCodeSize(addr types.Address) int

	GetState(addr types.Address, key types.Hash) types.Hash
	SetState(addr types.Address, key types.Hash, value types.Hash)
	GetCommittedState(addr types.Address, key types.Hash) types.Hash

	GetTransientState(addr types.Address, key types.Hash) types.Hash
	SetTransientState(addr types.Address, key types.Hash, value types.Hash)

	SelfDestruct(addr types.Address)
	HasSelfDestructed(addr types.Address) bool
	CreatedInTransaction(addr types.Address) bool

	Exist(addr types.Address) bool
	Empty(addr types.Address) bool

	Snapshot() int
	RevertToSnapshot(id int)

	AddLog(log *types.Log)

	AddRefund(gas uint64)
	SubRefund(gas uint64)
	GetRefund() uint64

	AddAddressToAccessList(addr types.Address)
	AddSlotToAccessList(addr types.Address, slot types.Hash)
	AddressInAccessList(addr types.Address) bool
	SlotInAccessList(addr types.Address, slot types.Hash) (addressOk bool, slotOk bool)
}

// Config holds EVM configuration options.
type Config struct {
	MaxCallDepth int
	ChainID      *big.Int
}

// EVM executes contract bytecode against a StateDB within a block and
// transaction context.
type EVM struct {
	Context   BlockContext
	TxContext TxContext
	Config    Config
	StateDB   StateDB

	depth       int
	readOnly    bool
	jumpTable   JumpTable
	precompiles map[types.Address]PrecompiledContract
	returnData  []byte // output of the most recent child call in this frame
	callGasTemp uint64 // forwarded gas computed by the call gas functions
}

// NewEVM creates a new EVM instance.
func NewEVM(blockCtx BlockContext, txCtx TxContext, stateDB StateDB, config Config) *EVM {
	if config.MaxCallDepth == 0 {
		config.MaxCallDepth = 1024
	}
	if config.ChainID == nil {
		config.ChainID = new(big.Int)
	}
	return &EVM{
		Context:   blockCtx,
		TxContext: txCtx,
		Config:    config,
		StateDB:   stateDB,
		jumpTable: NewJumpTable(),
	}
}

// SetPrecompiles replaces the EVM's precompile map.
func (evm *EVM) SetPrecompiles(p map[types.Address]PrecompiledContract) {
	evm.precompiles = p
}

// Depth returns the current call depth.
func (evm *EVM) Depth() int {
	return evm.depth
}

func (evm *EVM) precompile(addr types.Address) (PrecompiledContract, bool) {
	m := evm.precompiles
	if m == nil {
		m = PrecompiledContracts
	}
	p, ok := m[addr]
	return p, ok
}

// runPrecompile executes a precompiled contract. A failing precompile
// keeps its gas charge but behaves like a reverting call: the remaining
// gas goes back to the caller.
func runPrecompile(p PrecompiledContract, input []byte, gas uint64) ([]byte, uint64, error) {
	gasCost := p.RequiredGas(input)
	if gas < gasCost {
		return nil, 0, ErrOutOfGas
	}
	gas -= gasCost
	output, err := p.Run(input)
	if err != nil {
		return nil, gas, ErrExecutionReverted
	}
	return output, gas, nil
}

// PreWarmAccessList warms the addresses and slots that are accessible at
// no cold cost from the first instruction: sender, recipient, coinbase,
// every precompile, and the transaction's declared access list.
func (evm *EVM) PreWarmAccessList(sender types.Address, to *types.Address, list types.AccessList) {
	evm.StateDB.AddAddressToAccessList(sender)
	if to != nil {
		evm.StateDB.AddAddressToAccessList(*to)
	}
	evm.StateDB.AddAddressToAccessList(evm.Context.Coinbase)
	for addr := range PrecompiledContracts {
		evm.StateDB.AddAddressToAccessList(addr)
	}
	for _, tuple := range list {
		evm.StateDB.AddAddressToAccessList(tuple.Address)
		for _, slot := range tuple.StorageKeys {
			evm.StateDB.AddSlotToAccessList(tuple.Address, slot)
		}
	}
}

// Run executes the contract bytecode in the interpreter loop until it
// halts, reverts, or fails.
func (evm *EVM) Run(contract *Contract, input []byte) ([]byte, error) {
	contract.Input = input
	evm.returnData = nil

	var (
		pc    uint64
		stack = NewStack()
		mem   = NewMemory()
	)

	for {
		op := contract.GetOp(pc)
		operation := evm.jumpTable[op]
		if operation == nil || operation.execute == nil {
			return nil, ErrInvalidOpCode
		}

		sLen := stack.Len()
		if sLen < operation.minStack {
			return nil, ErrStackUnderflow
		}
		if sLen > operation.maxStack {
			return nil, ErrStackOverflow
		}

		if evm.readOnly && operation.writes {
			return nil, ErrWriteProtection
		}

		if operation.constantGas > 0 {
			if !contract.UseGas(operation.constantGas) {
				return nil, ErrOutOfGas
			}
		}

		// Size and charge memory before the dynamic gas function runs, so
		// dynamic costs can assume memory is already expanded.
		var memSize uint64
		if operation.memorySize != nil {
			size, overflow := operation.memorySize(stack)
			if overflow {
				return nil, ErrGasUintOverflow
			}
			if size > 0 {
				if size > (^uint64(0))-31 {
					return nil, ErrGasUintOverflow
				}
				memSize = ((size + 31) / 32) * 32
				if uint64(mem.Len()) < memSize {
					expansionCost, ok := MemoryCost(uint64(mem.Len()), memSize)
					if !ok {
						return nil, ErrGasUintOverflow
					}
					if !contract.UseGas(expansionCost) {
						return nil, ErrOutOfGas
					}
					mem.Resize(memSize)
				}
			}
		}

		if operation.dynamicGas != nil {
			cost, err := operation.dynamicGas(evm, contract, stack, mem, memSize)
			if err != nil {
				return nil, err
			}
			if !contract.UseGas(cost) {
				return nil, ErrOutOfGas
			}
		}

		ret, err := operation.execute(&pc, evm, contract, mem, stack)
		if err != nil {
			if errors.Is(err, ErrExecutionReverted) {
				return ret, err
			}
			return nil, err
		}

		if operation.halts {
			return ret, nil
		}
		if operation.jumps {
			continue
		}
		pc++
	}
}

// Call executes a message call to addr with the given input, gas and value.
// It returns the output, the gas left, and an error if the call failed. A
// failed call (other than a revert) consumes all gas passed to it.
func (evm *EVM) Call(caller, addr types.Address, input []byte, gas uint64, value *big.Int) ([]byte, uint64, error) {
	if evm.depth > evm.Config.MaxCallDepth {
		return nil, gas, ErrMaxCallDepthExceeded
	}
	if value != nil && value.Sign() > 0 {
		if evm.readOnly {
			return nil, gas, ErrWriteProtection
		}
		if evm.StateDB.GetBalance(caller).Cmp(value) < 0 {
			return nil, gas, ErrInsufficientBalance
		}
	}

	snapshot := evm.StateDB.Snapshot()
	p, isPrecompile := evm.precompile(addr)

	if !evm.StateDB.Exist(addr) {
		if !isPrecompile && (value == nil || value.Sign() == 0) {
			// Calling a nonexistent account with no value leaves state
			// untouched.
			return nil, gas, nil
		}
		evm.StateDB.CreateAccount(addr)
	}
	if value != nil && value.Sign() > 0 {
		evm.StateDB.SubBalance(caller, value)
		evm.StateDB.AddBalance(addr, value)
	}

	var (
		ret     []byte
		gasLeft uint64
		err     error
	)
	if isPrecompile {
		ret, gasLeft, err = runPrecompile(p, input, gas)
	} else {
		code := evm.StateDB.GetCode(addr)
		if len(code) == 0 {
			return nil, gas, nil
		}
		contract := NewContract(caller, addr, value, gas)
		contract.SetCallCode(&addr, evm.StateDB.GetCodeHash(addr), code)

		evm.depth++
		ret, err = evm.Run(contract, input)
		evm.depth--
		gasLeft = contract.Gas
	}

	if err != nil {
		evm.StateDB.RevertToSnapshot(snapshot)
		if !errors.Is(err, ErrExecutionReverted) {
			gasLeft = 0
		}
	}
	return ret, gasLeft, err
}

// CallCode executes addr's code in the caller's own storage context.
func (evm *EVM) CallCode(caller, addr types.Address, input []byte, gas uint64, value *big.Int) ([]byte, uint64, error) {
	if evm.depth > evm.Config.MaxCallDepth {
		return nil, gas, ErrMaxCallDepthExceeded
	}
	// Value is not transferred, but the caller must still be able to cover it.
	if value != nil && value.Sign() > 0 && evm.StateDB.GetBalance(caller).Cmp(value) < 0 {
		return nil, gas, ErrInsufficientBalance
	}

	snapshot := evm.StateDB.Snapshot()

	var (
		ret     []byte
		gasLeft uint64
		err     error
	)
	if p, isPrecompile := evm.precompile(addr); isPrecompile {
		ret, gasLeft, err = runPrecompile(p, input, gas)
	} else {
		code := evm.StateDB.GetCode(addr)
		if len(code) == 0 {
			return nil, gas, nil
		}
		contract := NewContract(caller, caller, value, gas)
		contract.Code = code
		contract.CodeHash = evm.StateDB.GetCodeHash(addr)

		evm.depth++
		ret, err = evm.Run(contract, input)
		evm.depth--
		gasLeft = contract.Gas
	}

	if err != nil {
		evm.StateDB.RevertToSnapshot(snapshot)
		if !errors.Is(err, ErrExecutionReverted) {
			gasLeft = 0
		}
	}
	return ret, gasLeft, err
}

// DelegateCall executes addr's code in the caller's context, preserving
// the parent frame's caller and value.
func (evm *EVM) DelegateCall(parentCaller, caller, addr types.Address, input []byte, gas uint64, value *big.Int) ([]byte, uint64, error) {
	if evm.depth > evm.Config.MaxCallDepth {
		return nil, gas, ErrMaxCallDepthExceeded
	}

	snapshot := evm.StateDB.Snapshot()

	var (
		ret     []byte
		gasLeft uint64
		err     error
	)
	if p, isPrecompile := evm.precompile(addr); isPrecompile {
		ret, gasLeft, err = runPrecompile(p, input, gas)
	} else {
		code := evm.StateDB.GetCode(addr)
		if len(code) == 0 {
			return nil, gas, nil
		}
		contract := NewContract(parentCaller, caller, value, gas)
		contract.Code = code
		contract.CodeHash = evm.StateDB.GetCodeHash(addr)

		evm.depth++
		ret, err = evm.Run(contract, input)
		evm.depth--
		gasLeft = contract.Gas
	}

	if err != nil {
		evm.StateDB.RevertToSnapshot(snapshot)
		if !errors.Is(err, ErrExecutionReverted) {
			gasLeft = 0
		}
	}
	return ret, gasLeft, err
}

// StaticCall executes a read-only message call. State-modifying opcodes
// fail with ErrWriteProtection for the duration of the call.
func (evm *EVM) StaticCall(caller, addr types.Address, input []byte, gas uint64) ([]byte, uint64, error) {
	if evm.depth > evm.Config.MaxCallDepth {
		return nil, gas, ErrMaxCallDepthExceeded
	}

	snapshot := evm.StateDB.Snapshot()

	var (
		ret     []byte
		gasLeft uint64
		err     error
	)
	if p, isPrecompile := evm.precompile(addr); isPrecompile {
		ret, gasLeft, err = runPrecompile(p, input, gas)
	} else {
		code := evm.StateDB.GetCode(addr)
		if len(code) == 0 {
			return nil, gas, nil
		}
		contract := NewContract(caller, addr, new(big.Int), gas)
		contract.Code = code
		contract.CodeHash = evm.StateDB.GetCodeHash(addr)

		prevReadOnly := evm.readOnly
		evm.readOnly = true
		evm.depth++
		ret, err = evm.Run(contract, input)
		evm.depth--
		evm.readOnly = prevReadOnly
		gasLeft = contract.Gas
	}

	if err != nil {
		evm.StateDB.RevertToSnapshot(snapshot)
		if !errors.Is(err, ErrExecutionReverted) {
			gasLeft = 0
		}
	}
	return ret, gasLeft, err
}

// Create deploys a contract at keccak(rlp([caller, nonce]))[12:].
func (evm *EVM) Create(caller types.Address, code []byte, gas uint64, value *big.Int) ([]byte, types.Address, uint64, error) {
	nonce := evm.StateDB.GetNonce(caller)
	if nonce+1 < nonce {
		return nil, types.Address{}, gas, ErrNonceUintOverflow
	}
	contractAddr := crypto.CreateAddress(caller, nonce)
	return evm.create(caller, code, gas, value, contractAddr, true)
}

// Create2 deploys a contract at keccak(0xff ++ caller ++ salt ++ keccak(code))[12:].
func (evm *EVM) Create2(caller types.Address, code []byte, gas uint64, value *big.Int, salt *big.Int) ([]byte, types.Address, uint64, error) {
	contractAddr := crypto.Create2Address(caller, types.BigToHash(salt), crypto.Keccak256(code))
	return evm.create(caller, code, gas, value, contractAddr, true)
}

// CreateAt deploys initcode at a precomputed address without bumping the
// caller's nonce. Used for top-level deployment transactions, where the
// admission layer already charged intrinsic costs and derived the address.
func (evm *EVM) CreateAt(caller, contractAddr types.Address, code []byte, gas uint64, value *big.Int) ([]byte, uint64, error) {
	ret, _, gasLeft, err := evm.create(caller, code, gas, value, contractAddr, false)
	return ret, gasLeft, err
}

func (evm *EVM) create(caller types.Address, code []byte, gas uint64, value *big.Int, contractAddr types.Address, bumpNonce bool) ([]byte, types.Address, uint64, error) {
	if evm.depth > evm.Config.MaxCallDepth {
		return nil, types.Address{}, gas, ErrMaxCallDepthExceeded
	}
	if evm.readOnly {
		return nil, types.Address{}, gas, ErrWriteProtection
	}
	if len(code) > MaxInitCodeSize {
		return nil, types.Address{}, gas, ErrMaxInitCodeSizeExceeded
	}
	if value != nil && value.Sign() > 0 && evm.StateDB.GetBalance(caller).Cmp(value) < 0 {
		return nil, types.Address{}, gas, ErrInsufficientBalance
	}

	if bumpNonce {
		evm.StateDB.SetNonce(caller, evm.StateDB.GetNonce(caller)+1)
	}
	// The new address is warm from this point even if deployment fails.
	evm.StateDB.AddAddressToAccessList(contractAddr)

	// Deploying onto an account with code or a used nonce fails and
	// consumes all gas.
	contractHash := evm.StateDB.GetCodeHash(contractAddr)
	if evm.StateDB.GetNonce(contractAddr) != 0 ||
		(contractHash != (types.Hash{}) && contractHash != types.EmptyCodeHash) {
		return nil, types.Address{}, 0, ErrContractAddressCollision
	}

	snapshot := evm.StateDB.Snapshot()

	evm.StateDB.CreateAccount(contractAddr)
	evm.StateDB.CreateContract(contractAddr)
	evm.StateDB.SetNonce(contractAddr, 1)
	if value != nil && value.Sign() > 0 {
		evm.StateDB.SubBalance(caller, value)
		evm.StateDB.AddBalance(contractAddr, value)
	}

	contract := NewContract(caller, contractAddr, value, gas)
	contract.Code = code
	contract.CodeHash = crypto.Keccak256Hash(code)

	evm.depth++
	ret, err := evm.Run(contract, nil)
	evm.depth--
	gasLeft := contract.Gas

	if err == nil {
		switch {
		case len(ret) > MaxCodeSize:
			err = ErrMaxCodeSizeExceeded
		default:
			depositCost := uint64(len(ret)) * CreateDataGas
			if !contract.UseGas(depositCost) {
				err = ErrOutOfGas
			} else {
				gasLeft = contract.Gas
				evm.StateDB.SetCode(contractAddr, ret)
			}
		}
	}

	if err != nil {
		evm.StateDB.RevertToSnapshot(snapshot)
		if !errors.Is(err, ErrExecutionReverted) {
			gasLeft = 0
		}
		return ret, types.Address{}, gasLeft, err
	}
	return ret, contractAddr, gasLeft, nil
}

// gasEIP2929AccountCheck reports the extra cold-access gas for addr,
// warming it as a side effect. Warm accesses cost nothing extra; the
// jump table charges WarmStorageReadCost as the constant gas.
func gasEIP2929AccountCheck(evm *EVM, addr types.Address) uint64 {
	if evm.StateDB.AddressInAccessList(addr) {
		return 0
	}
	evm.StateDB.AddAddressToAccessList(addr)
	return ColdAccountAccessCost - WarmStorageReadCost
}

// gasEIP2929SlotCheck reports the extra cold-access gas for (addr, slot),
// warming the slot as a side effect.
func gasEIP2929SlotCheck(evm *EVM, addr types.Address, slot types.Hash) uint64 {
	if _, slotWarm := evm.StateDB.SlotInAccessList(addr, slot); slotWarm {
		return 0
	}
	evm.StateDB.AddSlotToAccessList(addr, slot)
	return ColdSloadCost - WarmStorageReadCost
}
