package vm

import "math/big"

// executionFunc runs a single opcode against the current frame.
type executionFunc func(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error)

// gasFunc computes the dynamic gas of an operation. Memory expansion is
// metered separately by the interpreter loop before gasFunc runs.
type gasFunc func(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error)

// memorySizeFunc returns the highest memory byte an operation touches.
// The bool return reports overflow, which the interpreter treats as
// unpayable gas.
type memorySizeFunc func(stack *Stack) (uint64, bool)

// operation holds the execution metadata of a single opcode.
type operation struct {
	execute     executionFunc
	constantGas uint64
	dynamicGas  gasFunc
	minStack    int // items the operation pops
	maxStack    int // max stack length for the pushes to still fit
	memorySize  memorySizeFunc
	halts       bool // STOP, RETURN, REVERT, SELFDESTRUCT, INVALID
	jumps       bool // JUMP, JUMPI manage pc themselves
	writes      bool // fails under STATICCALL
}

// JumpTable maps every opcode byte to its operation definition.
type JumpTable [256]*operation

func minStack(pops, pushes int) int {
	return pops
}

func maxStack(pops, pushes int) int {
	return StackLimit + pops - pushes
}

// --- memory size functions ---

func bigUint64WithOverflow(v *big.Int) (uint64, bool) {
	if v.Sign() < 0 || !v.IsUint64() {
		return 0, true
	}
	return v.Uint64(), false
}

func safeAdd(a, b uint64) (uint64, bool) {
	sum := a + b
	return sum, sum < a
}

// memoryExtent computes offset+size from the given stack positions; a zero
// size needs no memory at all.
func memoryExtent(stack *Stack, offsetPos, sizePos int) (uint64, bool) {
	size, overflow := bigUint64WithOverflow(stack.Back(sizePos))
	if overflow {
		return 0, true
	}
	if size == 0 {
		return 0, false
	}
	offset, overflow := bigUint64WithOverflow(stack.Back(offsetPos))
	if overflow {
		return 0, true
	}
	end, overflow := safeAdd(offset, size)
	return end, overflow
}

func memoryMload(stack *Stack) (uint64, bool) {
	offset, overflow := bigUint64WithOverflow(stack.Back(0))
	if overflow {
		return 0, true
	}
	return safeAdd(offset, 32)
}

func memoryMstore(stack *Stack) (uint64, bool) {
	return memoryMload(stack)
}

func memoryMstore8(stack *Stack) (uint64, bool) {
	offset, overflow := bigUint64WithOverflow(stack.Back(0))
	if overflow {
		return 0, true
	}
	return safeAdd(offset, 1)
}

func memoryKeccak256(stack *Stack) (uint64, bool) {
	return memoryExtent(stack, 0, 1)
}

func memoryReturn(stack *Stack) (uint64, bool) {
	return memoryExtent(stack, 0, 1)
}

func memoryLog(stack *Stack) (uint64, bool) {
	return memoryExtent(stack, 0, 1)
}

func memoryCopy(stack *Stack) (uint64, bool) {
	return memoryExtent(stack, 0, 2)
}

func memoryExtcodecopy(stack *Stack) (uint64, bool) {
	return memoryExtent(stack, 1, 3)
}

func memoryCreate(stack *Stack) (uint64, bool) {
	return memoryExtent(stack, 1, 2)
}

// memoryMcopy needs max(dst, src) + size.
func memoryMcopy(stack *Stack) (uint64, bool) {
	dstEnd, overflow := memoryExtent(stack, 0, 2)
	if overflow {
		return 0, true
	}
	srcEnd, overflow := memoryExtent(stack, 1, 2)
	if overflow {
		return 0, true
	}
	if dstEnd > srcEnd {
		return dstEnd, false
	}
	return srcEnd, false
}

// memoryCall covers CALL and CALLCODE: max of the argument and return
// regions. Stack: gas, addr, value, argsOff, argsLen, retOff, retLen.
func memoryCall(stack *Stack) (uint64, bool) {
	argsEnd, overflow := memoryExtent(stack, 3, 4)
	if overflow {
		return 0, true
	}
	retEnd, overflow := memoryExtent(stack, 5, 6)
	if overflow {
		return 0, true
	}
	if argsEnd > retEnd {
		return argsEnd, false
	}
	return retEnd, false
}

// memoryDelegateCall covers DELEGATECALL and STATICCALL, which have no
// value word on the stack.
func memoryDelegateCall(stack *Stack) (uint64, bool) {
	argsEnd, overflow := memoryExtent(stack, 2, 3)
	if overflow {
		return 0, true
	}
	retEnd, overflow := memoryExtent(stack, 4, 5)
	if overflow {
		return 0, true
	}
	if argsEnd > retEnd {
		return argsEnd, false
	}
	return retEnd, false
}

// NewJumpTable returns the Cancun instruction set.
func NewJumpTable() JumpTable {
	var tbl JumpTable

	tbl[STOP] = &operation{execute: opStop, minStack: minStack(0, 0), maxStack: maxStack(0, 0), halts: true}
	tbl[ADD] = &operation{execute: opAdd, constantGas: GasFastestStep, minStack: minStack(2, 1), maxStack: maxStack(2, 1)}
	tbl[MUL] = &operation{execute: opMul, constantGas: GasFastStep, minStack: minStack(2, 1), maxStack: maxStack(2, 1)}
	tbl[SUB] = &operation{execute: opSub, constantGas: GasFastestStep, minStack: minStack(2, 1), maxStack: maxStack(2, 1)}
	tbl[DIV] = &operation{execute: opDiv, constantGas: GasFastStep, minStack: minStack(2, 1), maxStack: maxStack(2, 1)}
	tbl[SDIV] = &operation{execute: opSdiv, constantGas: GasFastStep, minStack: minStack(2, 1), maxStack: maxStack(2, 1)}
	tbl[MOD] = &operation{execute: opMod, constantGas: GasFastStep, minStack: minStack(2, 1), maxStack: maxStack(2, 1)}
	tbl[SMOD] = &operation{execute: opSmod, constantGas: GasFastStep, minStack: minStack(2, 1), maxStack: maxStack(2, 1)}
	tbl[ADDMOD] = &operation{execute: opAddmod, constantGas: GasMidStep, minStack: minStack(3, 1), maxStack: maxStack(3, 1)}
	tbl[MULMOD] = &operation{execute: opMulmod, constantGas: GasMidStep, minStack: minStack(3, 1), maxStack: maxStack(3, 1)}
	tbl[EXP] = &operation{execute: opExp, constantGas: GasSlowStep, dynamicGas: gasExp, minStack: minStack(2, 1), maxStack: maxStack(2, 1)}
	tbl[SIGNEXTEND] = &operation{execute: opSignExtend, constantGas: GasFastStep, minStack: minStack(2, 1), maxStack: maxStack(2, 1)}

	tbl[LT] = &operation{execute: opLt, constantGas: GasFastestStep, minStack: minStack(2, 1), maxStack: maxStack(2, 1)}
	tbl[GT] = &operation{execute: opGt, constantGas: GasFastestStep, minStack: minStack(2, 1), maxStack: maxStack(2, 1)}
	tbl[SLT] = &operation{execute: opSlt, constantGas: GasFastestStep, minStack: minStack(2, 1), maxStack: maxStack(2, 1)}
	tbl[SGT] = &operation{execute: opSgt, constantGas: GasFastestStep, minStack: minStack(2, 1), maxStack: maxStack(2, 1)}
	tbl[EQ] = &operation{execute: opEq, constantGas: GasFastestStep, minStack: minStack(2, 1), maxStack: maxStack(2, 1)}
	tbl[ISZERO] = &operation{execute: opIsZero, constantGas: GasFastestStep, minStack: minStack(1, 1), maxStack: maxStack(1, 1)}
	tbl[AND] = &operation{execute: opAnd, constantGas: GasFastestStep, minStack: minStack(2, 1), maxStack: maxStack(2, 1)}
	tbl[OR] = &operation{execute: opOr, constantGas: GasFastestStep, minStack: minStack(2, 1), maxStack: maxStack(2, 1)}
	tbl[XOR] = &operation{execute: opXor, constantGas: GasFastestStep, minStack: minStack(2, 1), maxStack: maxStack(2, 1)}
	tbl[NOT] = &operation{execute: opNot, constantGas: GasFastestStep, minStack: minStack(1, 1), maxStack: maxStack(1, 1)}
	tbl[BYTE] = &operation{execute: opByte, constantGas: GasFastestStep, minStack: minStack(2, 1), maxStack: maxStack(2, 1)}
	tbl[SHL] = &operation{execute: opSHL, constantGas: GasFastestStep, minStack: minStack(2, 1), maxStack: maxStack(2, 1)}
	tbl[SHR] = &operation{execute: opSHR, constantGas: GasFastestStep, minStack: minStack(2, 1), maxStack: maxStack(2, 1)}
	tbl[SAR] = &operation{execute: opSAR, constantGas: GasFastestStep, minStack: minStack(2, 1), maxStack: maxStack(2, 1)}

	tbl[KECCAK256] = &operation{execute: opKeccak256, constantGas: Keccak256Gas, dynamicGas: gasKeccak256, minStack: minStack(2, 1), maxStack: maxStack(2, 1), memorySize: memoryKeccak256}

	tbl[ADDRESS] = &operation{execute: opAddress, constantGas: GasQuickStep, minStack: minStack(0, 1), maxStack: maxStack(0, 1)}
	tbl[BALANCE] = &operation{execute: opBalance, constantGas: WarmStorageReadCost, dynamicGas: gasAccountAccess, minStack: minStack(1, 1), maxStack: maxStack(1, 1)}
	tbl[ORIGIN] = &operation{execute: opOrigin, constantGas: GasQuickStep, minStack: minStack(0, 1), maxStack: maxStack(0, 1)}
	tbl[CALLER] = &operation{execute: opCaller, constantGas: GasQuickStep, minStack: minStack(0, 1), maxStack: maxStack(0, 1)}
	tbl[CALLVALUE] = &operation{execute: opCallValue, constantGas: GasQuickStep, minStack: minStack(0, 1), maxStack: maxStack(0, 1)}
	tbl[CALLDATALOAD] = &operation{execute: opCalldataLoad, constantGas: GasFastestStep, minStack: minStack(1, 1), maxStack: maxStack(1, 1)}
	tbl[CALLDATASIZE] = &operation{execute: opCalldataSize, constantGas: GasQuickStep, minStack: minStack(0, 1), maxStack: maxStack(0, 1)}
	tbl[CALLDATACOPY] = &operation{execute: opCalldataCopy, constantGas: GasFastestStep, dynamicGas: gasCopy, minStack: minStack(3, 0), maxStack: maxStack(3, 0), memorySize: memoryCopy}
	tbl[CODESIZE] = &operation{execute: opCodeSize, constantGas: GasQuickStep, minStack: minStack(0, 1), maxStack: maxStack(0, 1)}
	tbl[CODECOPY] = &operation{execute: opCodeCopy, constantGas: GasFastestStep, dynamicGas: gasCopy, minStack: minStack(3, 0), maxStack: maxStack(3, 0), memorySize: memoryCopy}
	tbl[GASPRICE] = &operation{execute: opGasPrice, constantGas: GasQuickStep, minStack: minStack(0, 1), maxStack: maxStack(0, 1)}
	tbl[EXTCODESIZE] = &operation{execute: opExtcodesize, constantGas: WarmStorageReadCost, dynamicGas: gasAccountAccess, minStack: minStack(1, 1), maxStack: maxStack(1, 1)}
	tbl[EXTCODECOPY] = &operation{execute: opExtcodecopy, constantGas: WarmStorageReadCost, dynamicGas: gasExtCodeCopy, minStack: minStack(4, 0), maxStack: maxStack(4, 0), memorySize: memoryExtcodecopy}
	tbl[RETURNDATASIZE] = &operation{execute: opReturndataSize, constantGas: GasQuickStep, minStack: minStack(0, 1), maxStack: maxStack(0, 1)}
	tbl[RETURNDATACOPY] = &operation{execute: opReturndataCopy, constantGas: GasFastestStep, dynamicGas: gasCopy, minStack: minStack(3, 0), maxStack: maxStack(3, 0), memorySize: memoryCopy}
	tbl[EXTCODEHASH] = &operation{execute: opExtcodehash, constantGas: WarmStorageReadCost, dynamicGas: gasAccountAccess, minStack: minStack(1, 1), maxStack: maxStack(1, 1)}

	tbl[BLOCKHASH] = &operation{execute: opBlockhash, constantGas: GasExtStep, minStack: minStack(1, 1), maxStack: maxStack(1, 1)}
	tbl[COINBASE] = &operation{execute: opCoinbase, constantGas: GasQuickStep, minStack: minStack(0, 1), maxStack: maxStack(0, 1)}
	tbl[TIMESTAMP] = &operation{execute: opTimestamp, constantGas: GasQuickStep, minStack: minStack(0, 1), maxStack: maxStack(0, 1)}
	tbl[NUMBER] = &operation{execute: opNumber, constantGas: GasQuickStep, minStack: minStack(0, 1), maxStack: maxStack(0, 1)}
	tbl[PREVRANDAO] = &operation{execute: opPrevRandao, constantGas: GasQuickStep, minStack: minStack(0, 1), maxStack: maxStack(0, 1)}
	tbl[GASLIMIT] = &operation{execute: opGasLimit, constantGas: GasQuickStep, minStack: minStack(0, 1), maxStack: maxStack(0, 1)}
	tbl[CHAINID] = &operation{execute: opChainID, constantGas: GasQuickStep, minStack: minStack(0, 1), maxStack: maxStack(0, 1)}
	tbl[SELFBALANCE] = &operation{execute: opSelfBalance, constantGas: GasFastStep, minStack: minStack(0, 1), maxStack: maxStack(0, 1)}
	tbl[BASEFEE] = &operation{execute: opBaseFee, constantGas: GasQuickStep, minStack: minStack(0, 1), maxStack: maxStack(0, 1)}
	tbl[BLOBHASH] = &operation{execute: opBlobHash, constantGas: BlobHashGas, minStack: minStack(1, 1), maxStack: maxStack(1, 1)}
	tbl[BLOBBASEFEE] = &operation{execute: opBlobBaseFee, constantGas: BlobBaseFeeGas, minStack: minStack(0, 1), maxStack: maxStack(0, 1)}

	tbl[POP] = &operation{execute: opPop, constantGas: GasQuickStep, minStack: minStack(1, 0), maxStack: maxStack(1, 0)}
	tbl[MLOAD] = &operation{execute: opMload, constantGas: GasFastestStep, minStack: minStack(1, 1), maxStack: maxStack(1, 1), memorySize: memoryMload}
	tbl[MSTORE] = &operation{execute: opMstore, constantGas: GasFastestStep, minStack: minStack(2, 0), maxStack: maxStack(2, 0), memorySize: memoryMstore}
	tbl[MSTORE8] = &operation{execute: opMstore8, constantGas: GasFastestStep, minStack: minStack(2, 0), maxStack: maxStack(2, 0), memorySize: memoryMstore8}
	tbl[SLOAD] = &operation{execute: opSload, constantGas: WarmStorageReadCost, dynamicGas: gasSload, minStack: minStack(1, 1), maxStack: maxStack(1, 1)}
	tbl[SSTORE] = &operation{execute: opSstore, dynamicGas: gasSstore, minStack: minStack(2, 0), maxStack: maxStack(2, 0), writes: true}
	tbl[JUMP] = &operation{execute: opJump, constantGas: GasMidStep, minStack: minStack(1, 0), maxStack: maxStack(1, 0), jumps: true}
	tbl[JUMPI] = &operation{execute: opJumpi, constantGas: GasSlowStep, minStack: minStack(2, 0), maxStack: maxStack(2, 0), jumps: true}
	tbl[PC] = &operation{execute: opPc, constantGas: GasQuickStep, minStack: minStack(0, 1), maxStack: maxStack(0, 1)}
	tbl[MSIZE] = &operation{execute: opMsize, constantGas: GasQuickStep, minStack: minStack(0, 1), maxStack: maxStack(0, 1)}
	tbl[GAS] = &operation{execute: opGas, constantGas: GasQuickStep, minStack: minStack(0, 1), maxStack: maxStack(0, 1)}
	tbl[JUMPDEST] = &operation{execute: opJumpdest, constantGas: JumpdestGas, minStack: minStack(0, 0), maxStack: maxStack(0, 0)}
	tbl[TLOAD] = &operation{execute: opTload, constantGas: TloadGas, minStack: minStack(1, 1), maxStack: maxStack(1, 1)}
	tbl[TSTORE] = &operation{execute: opTstore, constantGas: TstoreGas, minStack: minStack(2, 0), maxStack: maxStack(2, 0), writes: true}
	tbl[MCOPY] = &operation{execute: opMcopy, constantGas: GasFastestStep, dynamicGas: gasCopy, minStack: minStack(3, 0), maxStack: maxStack(3, 0), memorySize: memoryMcopy}

	tbl[PUSH0] = &operation{execute: opPush0, constantGas: GasQuickStep, minStack: minStack(0, 1), maxStack: maxStack(0, 1)}
	for i := 1; i <= 32; i++ {
		tbl[PUSH1+OpCode(i-1)] = &operation{
			execute:     makePush(uint64(i)),
			constantGas: GasFastestStep,
			minStack:    minStack(0, 1),
			maxStack:    maxStack(0, 1),
		}
	}
	for i := 1; i <= 16; i++ {
		tbl[DUP1+OpCode(i-1)] = &operation{
			execute:     makeDup(i),
			constantGas: GasFastestStep,
			minStack:    minStack(i, i+1),
			maxStack:    maxStack(i, i+1),
		}
	}
	for i := 1; i <= 16; i++ {
		tbl[SWAP1+OpCode(i-1)] = &operation{
			execute:     makeSwap(i),
			constantGas: GasFastestStep,
			minStack:    minStack(i+1, i+1),
			maxStack:    maxStack(i+1, i+1),
		}
	}
	for i := 0; i <= 4; i++ {
		tbl[LOG0+OpCode(i)] = &operation{
			execute:     makeLog(i),
			constantGas: LogGas,
			dynamicGas:  makeGasLog(uint64(i)),
			minStack:    minStack(2+i, 0),
			maxStack:    maxStack(2+i, 0),
			memorySize:  memoryLog,
			writes:      true,
		}
	}

	tbl[CREATE] = &operation{execute: opCreate, constantGas: CreateGas, dynamicGas: gasCreate, minStack: minStack(3, 1), maxStack: maxStack(3, 1), memorySize: memoryCreate, writes: true}
	tbl[CALL] = &operation{execute: opCall, constantGas: WarmStorageReadCost, dynamicGas: gasCall, minStack: minStack(7, 1), maxStack: maxStack(7, 1), memorySize: memoryCall}
	tbl[CALLCODE] = &operation{execute: opCallCode, constantGas: WarmStorageReadCost, dynamicGas: gasCallCode, minStack: minStack(7, 1), maxStack: maxStack(7, 1), memorySize: memoryCall}
	tbl[RETURN] = &operation{execute: opReturn, minStack: minStack(2, 0), maxStack: maxStack(2, 0), memorySize: memoryReturn, halts: true}
	tbl[DELEGATECALL] = &operation{execute: opDelegateCall, constantGas: WarmStorageReadCost, dynamicGas: gasDelegateOrStaticCall, minStack: minStack(6, 1), maxStack: maxStack(6, 1), memorySize: memoryDelegateCall}
	tbl[CREATE2] = &operation{execute: opCreate2, constantGas: CreateGas, dynamicGas: gasCreate2, minStack: minStack(4, 1), maxStack: maxStack(4, 1), memorySize: memoryCreate, writes: true}
	tbl[STATICCALL] = &operation{execute: opStaticCall, constantGas: WarmStorageReadCost, dynamicGas: gasDelegateOrStaticCall, minStack: minStack(6, 1), maxStack: maxStack(6, 1), memorySize: memoryDelegateCall}
	tbl[REVERT] = &operation{execute: opRevert, minStack: minStack(2, 0), maxStack: maxStack(2, 0), memorySize: memoryReturn, halts: true}
	tbl[INVALID] = &operation{execute: opInvalid, minStack: minStack(0, 0), maxStack: maxStack(0, 0), halts: true}
	tbl[SELFDESTRUCT] = &operation{execute: opSelfdestruct, constantGas: SelfdestructGas, dynamicGas: gasSelfdestruct, minStack: minStack(1, 0), maxStack: maxStack(1, 0), halts: true, writes: true}

	return tbl
}
