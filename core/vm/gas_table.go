package vm

import (
	"math/big"

	"github.com/oksanaphmn/kakarot/core/types"
)

// maxMemorySize is the largest memory extent for which the quadratic cost
// still fits comfortably in uint64 arithmetic. Anything beyond it costs
// more gas than can exist, so it is treated as an overflow.
const maxMemorySize = 0x1FFFFFFFE0

// toWordSize rounds a byte size up to the number of 32-byte words.
func toWordSize(size uint64) uint64 {
	if size == 0 {
		return 0
	}
	return (size + 31) / 32
}

// memoryCost is the total cost of a memory of the given byte size:
// 3 per word plus words^2/512.
func memoryCost(size uint64) uint64 {
	words := toWordSize(size)
	return words*MemoryGas + words*words/512
}

// MemoryCost returns the expansion cost of growing memory from oldSize to
// newSize bytes. The second return is false when newSize is too large to
// meter.
func MemoryCost(oldSize, newSize uint64) (uint64, bool) {
	if newSize <= oldSize {
		return 0, true
	}
	if newSize > maxMemorySize {
		return 0, false
	}
	return memoryCost(newSize) - memoryCost(oldSize), true
}

// callGas applies the EIP-150 rule: at most 63/64 of the remaining gas may
// be forwarded to a child call.
func callGas(availableGas uint64, requested *big.Int) uint64 {
	gas := availableGas - availableGas/CallGasFraction
	if !requested.IsUint64() || gas < requested.Uint64() {
		return gas
	}
	return requested.Uint64()
}

func gasKeccak256(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	size, overflow := bigUint64WithOverflow(stack.Back(1))
	if overflow {
		return 0, ErrGasUintOverflow
	}
	return toWordSize(size) * Keccak256WordGas, nil
}

// gasCopy covers CALLDATACOPY, CODECOPY, RETURNDATACOPY and MCOPY: 3 gas
// per copied word on top of the constant cost.
func gasCopy(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	size, overflow := bigUint64WithOverflow(stack.Back(2))
	if overflow {
		return 0, ErrGasUintOverflow
	}
	return toWordSize(size) * CopyGas, nil
}

func gasExtCodeCopy(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	addr := types.BigToAddress(stack.Back(0))
	size, overflow := bigUint64WithOverflow(stack.Back(3))
	if overflow {
		return 0, ErrGasUintOverflow
	}
	return gasEIP2929AccountCheck(evm, addr) + toWordSize(size)*CopyGas, nil
}

func gasExp(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	expByteLen := uint64((stack.Back(1).BitLen() + 7) / 8)
	return expByteLen * ExpByteGas, nil
}

func gasSload(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	slot := types.BigToHash(stack.Back(0))
	return gasEIP2929SlotCheck(evm, contract.Address, slot), nil
}

func gasAccountAccess(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	addr := types.BigToAddress(stack.Back(0))
	return gasEIP2929AccountCheck(evm, addr), nil
}

// gasSstore implements the EIP-2200 storage schedule with EIP-2929 cold
// costs and EIP-3529 refunds.
func gasSstore(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	// EIP-2200 reentrancy sentry: SSTORE needs more than the call stipend
	// left.
	if contract.Gas <= SstoreSentryGas {
		return 0, ErrOutOfGas
	}
	var (
		slot    = types.BigToHash(stack.Back(0))
		value   = types.BigToHash(stack.Back(1))
		current = evm.StateDB.GetState(contract.Address, slot)
		cost    = uint64(0)
	)
	if _, slotWarm := evm.StateDB.SlotInAccessList(contract.Address, slot); !slotWarm {
		cost = ColdSloadCost
		evm.StateDB.AddSlotToAccessList(contract.Address, slot)
	}
	if current == value {
		return cost + WarmStorageReadCost, nil
	}
	original := evm.StateDB.GetCommittedState(contract.Address, slot)
	if original == current {
		if original == (types.Hash{}) {
			return cost + SstoreSetGas, nil
		}
		if value == (types.Hash{}) {
			evm.StateDB.AddRefund(SstoreClearsRefund)
		}
		return cost + SstoreResetGas, nil
	}
	// Dirty slot: cheap write, refund bookkeeping only.
	if original != (types.Hash{}) {
		if current == (types.Hash{}) {
			evm.StateDB.SubRefund(SstoreClearsRefund)
		} else if value == (types.Hash{}) {
			evm.StateDB.AddRefund(SstoreClearsRefund)
		}
	}
	if original == value {
		if original == (types.Hash{}) {
			evm.StateDB.AddRefund(SstoreSetGas - WarmStorageReadCost)
		} else {
			evm.StateDB.AddRefund(SstoreResetGas - WarmStorageReadCost)
		}
	}
	return cost + WarmStorageReadCost, nil
}

// makeGasLog returns the dynamic gas function for LOGn: 375 per topic plus
// 8 per byte of data (the 375 base is the constant cost).
func makeGasLog(numTopics uint64) gasFunc {
	return func(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
		size, overflow := bigUint64WithOverflow(stack.Back(1))
		if overflow {
			return 0, ErrGasUintOverflow
		}
		gas := numTopics * LogTopicGas
		dataGas := size * LogDataGas
		if dataGas/LogDataGas != size {
			return 0, ErrGasUintOverflow
		}
		return gas + dataGas, nil
	}
}

// gasCreate charges the EIP-3860 initcode word cost.
func gasCreate(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	size, overflow := bigUint64WithOverflow(stack.Back(2))
	if overflow || size > MaxInitCodeSize {
		return 0, ErrGasUintOverflow
	}
	return toWordSize(size) * InitCodeWordGas, nil
}

// gasCreate2 additionally charges the hashing of the initcode used for
// address derivation.
func gasCreate2(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	size, overflow := bigUint64WithOverflow(stack.Back(2))
	if overflow || size > MaxInitCodeSize {
		return 0, ErrGasUintOverflow
	}
	return toWordSize(size) * (InitCodeWordGas + Keccak256WordGas), nil
}

// gasCall meters CALL: cold account access, value transfer surcharge, new
// account surcharge, and the EIP-150 capped forwarded gas. The forwarded
// amount is stashed in evm.callGasTemp for the instruction.
func gasCall(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	addr := types.BigToAddress(stack.Back(1))
	gas := gasEIP2929AccountCheck(evm, addr)
	if stack.Back(2).Sign() != 0 {
		gas += CallValueTransferGas
		if evm.StateDB.Empty(addr) {
			gas += CallNewAccountGas
		}
	}
	if contract.Gas < gas {
		return 0, ErrOutOfGas
	}
	evm.callGasTemp = callGas(contract.Gas-gas, stack.Back(0))
	return gas + evm.callGasTemp, nil
}

func gasCallCode(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	addr := types.BigToAddress(stack.Back(1))
	gas := gasEIP2929AccountCheck(evm, addr)
	if stack.Back(2).Sign() != 0 {
		gas += CallValueTransferGas
	}
	if contract.Gas < gas {
		return 0, ErrOutOfGas
	}
	evm.callGasTemp = callGas(contract.Gas-gas, stack.Back(0))
	return gas + evm.callGasTemp, nil
}

func gasDelegateOrStaticCall(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	addr := types.BigToAddress(stack.Back(1))
	gas := gasEIP2929AccountCheck(evm, addr)
	if contract.Gas < gas {
		return 0, ErrOutOfGas
	}
	evm.callGasTemp = callGas(contract.Gas-gas, stack.Back(0))
	return gas + evm.callGasTemp, nil
}

// gasSelfdestruct charges the cold beneficiary access and the new-account
// surcharge when funds move to a nonexistent account. Since EIP-3529 there
// is no refund.
func gasSelfdestruct(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	var gas uint64
	beneficiary := types.BigToAddress(stack.Back(0))
	if !evm.StateDB.AddressInAccessList(beneficiary) {
		evm.StateDB.AddAddressToAccessList(beneficiary)
		gas = ColdAccountAccessCost
	}
	if evm.StateDB.Empty(beneficiary) && evm.StateDB.GetBalance(contract.Address).Sign() != 0 {
		gas += CallNewAccountGas
	}
	return gas, nil
}
