package vm

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"github.com/oksanaphmn/kakarot/core/state"
	"github.com/oksanaphmn/kakarot/core/types"
	"github.com/oksanaphmn/kakarot/crypto"
)

func newTestEVM() (*EVM, *state.StateDB, *state.MemoryBackend) {
	backend := state.NewMemoryBackend()
	db := state.New(backend)
	evm := NewEVM(BlockContext{
		BlockNumber: big.NewInt(1),
		Time:        1000,
		GasLimit:    30_000_000,
		BaseFee:     new(big.Int),
	}, TxContext{}, db, Config{ChainID: big.NewInt(1)})
	return evm, db, backend
}

var (
	testCaller   = types.HexToAddress("0x1000000000000000000000000000000000000001")
	testContract = types.HexToAddress("0x2000000000000000000000000000000000000002")
)

func deploy(backend *state.MemoryBackend, code []byte) {
	backend.SetCode(testContract, code)
}

func TestRunArithmetic(t *testing.T) {
	evm, _, backend := newTestEVM()
	// 2 + 3, stored to memory and returned as one word.
	deploy(backend, []byte{
		byte(PUSH1), 2,
		byte(PUSH1), 3,
		byte(ADD),
		byte(PUSH1), 0,
		byte(MSTORE),
		byte(PUSH1), 32,
		byte(PUSH1), 0,
		byte(RETURN),
	})

	ret, gasLeft, err := evm.Call(testCaller, testContract, nil, 100_000, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := new(big.Int).SetBytes(ret); got.Cmp(big.NewInt(5)) != 0 {
		t.Errorf("returned %v, want 5", got)
	}
	// 6 constant-gas ops at 3 each, MSTORE at 3, one word of memory at 3.
	if used := uint64(100_000) - gasLeft; used != 24 {
		t.Errorf("gas used = %d, want 24", used)
	}
}

func TestMemoryExpansionGas(t *testing.T) {
	evm, _, backend := newTestEVM()
	deploy(backend, []byte{
		byte(PUSH2), 0x02, 0x00,
		byte(MLOAD),
		byte(STOP),
	})

	_, gasLeft, err := evm.Call(testCaller, testContract, nil, 100_000, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// MLOAD at offset 512 grows memory to 17 words: 3*17 linear, no
	// quadratic term yet. Plus PUSH2 and MLOAD at 3 each.
	if used := uint64(100_000) - gasLeft; used != 57 {
		t.Errorf("gas used = %d, want 57", used)
	}
}

func TestSstoreColdSet(t *testing.T) {
	evm, db, backend := newTestEVM()
	deploy(backend, []byte{
		byte(PUSH1), 1,
		byte(PUSH1), 0,
		byte(SSTORE),
		byte(STOP),
	})

	_, gasLeft, err := evm.Call(testCaller, testContract, nil, 100_000, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Cold slot access (2100) plus zero-to-nonzero set (20000), plus two
	// PUSH1.
	if used := uint64(100_000) - gasLeft; used != 22106 {
		t.Errorf("gas used = %d, want 22106", used)
	}
	if got := db.GetState(testContract, types.Hash{}); got != types.BigToHash(big.NewInt(1)) {
		t.Errorf("slot = %v, want 1", got)
	}
}

func TestSstoreClearRefund(t *testing.T) {
	evm, db, backend := newTestEVM()
	deploy(backend, []byte{
		byte(PUSH1), 0,
		byte(PUSH1), 0,
		byte(SSTORE),
		byte(STOP),
	})
	backend.SetStorage(testContract, types.Hash{}, types.BigToHash(big.NewInt(1)))

	_, gasLeft, err := evm.Call(testCaller, testContract, nil, 100_000, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Cold slot (2100) plus nonzero-to-zero reset (2900), plus two PUSH1.
	if used := uint64(100_000) - gasLeft; used != 5006 {
		t.Errorf("gas used = %d, want 5006", used)
	}
	if refund := db.GetRefund(); refund != SstoreClearsRefund {
		t.Errorf("refund = %d, want %d", refund, SstoreClearsRefund)
	}
}

func TestStaticCallWriteProtection(t *testing.T) {
	evm, db, backend := newTestEVM()
	deploy(backend, []byte{
		byte(PUSH1), 1,
		byte(PUSH1), 0,
		byte(SSTORE),
		byte(STOP),
	})

	_, gasLeft, err := evm.StaticCall(testCaller, testContract, nil, 100_000)
	if !errors.Is(err, ErrWriteProtection) {
		t.Fatalf("error = %v, want ErrWriteProtection", err)
	}
	if gasLeft != 0 {
		t.Errorf("gasLeft = %d, want 0 (halting failure consumes the frame's gas)", gasLeft)
	}
	if got := db.GetState(testContract, types.Hash{}); got != (types.Hash{}) {
		t.Errorf("slot modified under static context: %v", got)
	}
}

func TestRevertReturnsDataAndGas(t *testing.T) {
	evm, _, backend := newTestEVM()
	deploy(backend, []byte{
		byte(PUSH1), 0x42,
		byte(PUSH1), 0,
		byte(MSTORE),
		byte(PUSH1), 32,
		byte(PUSH1), 0,
		byte(REVERT),
	})

	ret, gasLeft, err := evm.Call(testCaller, testContract, nil, 100_000, nil)
	if !errors.Is(err, ErrExecutionReverted) {
		t.Fatalf("error = %v, want ErrExecutionReverted", err)
	}
	if got := new(big.Int).SetBytes(ret); got.Cmp(big.NewInt(0x42)) != 0 {
		t.Errorf("revert data = %v, want 0x42", got)
	}
	if gasLeft == 0 {
		t.Error("revert should return unused gas to the caller")
	}
}

func TestInvalidOpcodeConsumesAllGas(t *testing.T) {
	evm, _, backend := newTestEVM()
	deploy(backend, []byte{byte(INVALID)})

	_, gasLeft, err := evm.Call(testCaller, testContract, nil, 100_000, nil)
	if !errors.Is(err, ErrInvalidOpCode) {
		t.Fatalf("error = %v, want ErrInvalidOpCode", err)
	}
	if gasLeft != 0 {
		t.Errorf("gasLeft = %d, want 0", gasLeft)
	}
}

func TestInvalidJump(t *testing.T) {
	evm, _, backend := newTestEVM()
	// Jump target 3 is not a JUMPDEST.
	deploy(backend, []byte{byte(PUSH1), 3, byte(JUMP), byte(STOP)})

	_, _, err := evm.Call(testCaller, testContract, nil, 100_000, nil)
	if !errors.Is(err, ErrInvalidJump) {
		t.Fatalf("error = %v, want ErrInvalidJump", err)
	}
}

func TestJumpOverPushData(t *testing.T) {
	evm, _, backend := newTestEVM()
	// The byte at offset 2 is PUSH1 immediate data, not a JUMPDEST, even
	// though its value is 0x5b.
	deploy(backend, []byte{byte(PUSH1), 0x5b, byte(PUSH1), 2, byte(JUMP)})

	_, _, err := evm.Call(testCaller, testContract, nil, 100_000, nil)
	if !errors.Is(err, ErrInvalidJump) {
		t.Fatalf("error = %v, want ErrInvalidJump (push data is not code)", err)
	}
}

func TestTransientStorage(t *testing.T) {
	evm, db, backend := newTestEVM()
	deploy(backend, []byte{
		byte(PUSH1), 5,
		byte(PUSH1), 0,
		byte(TSTORE),
		byte(PUSH1), 0,
		byte(TLOAD),
		byte(PUSH1), 0,
		byte(MSTORE),
		byte(PUSH1), 32,
		byte(PUSH1), 0,
		byte(RETURN),
	})

	ret, _, err := evm.Call(testCaller, testContract, nil, 100_000, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := new(big.Int).SetBytes(ret); got.Cmp(big.NewInt(5)) != 0 {
		t.Errorf("TLOAD returned %v, want 5", got)
	}
	// Transient writes never reach persistent storage.
	if got := db.GetState(testContract, types.Hash{}); got != (types.Hash{}) {
		t.Errorf("persistent slot = %v, want zero", got)
	}
}

func TestCallDepthLimit(t *testing.T) {
	evm, _, backend := newTestEVM()
	deploy(backend, []byte{byte(STOP)})

	evm.depth = 1024
	_, gasLeft, err := evm.Call(testCaller, testContract, nil, 50_000, nil)
	if !errors.Is(err, ErrMaxCallDepthExceeded) {
		t.Fatalf("error = %v, want ErrMaxCallDepthExceeded", err)
	}
	if gasLeft != 50_000 {
		t.Errorf("gasLeft = %d, want all gas returned", gasLeft)
	}
}

func TestCallInsufficientBalance(t *testing.T) {
	evm, _, backend := newTestEVM()
	deploy(backend, []byte{byte(STOP)})

	_, gasLeft, err := evm.Call(testCaller, testContract, nil, 50_000, big.NewInt(1))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("error = %v, want ErrInsufficientBalance", err)
	}
	if gasLeft != 50_000 {
		t.Errorf("gasLeft = %d, want all gas returned", gasLeft)
	}
}

func TestValueTransferToFreshAccount(t *testing.T) {
	evm, db, _ := newTestEVM()
	db.AddBalance(testCaller, big.NewInt(100))

	recipient := types.HexToAddress("0x3000000000000000000000000000000000000003")
	_, _, err := evm.Call(testCaller, recipient, nil, 50_000, big.NewInt(40))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := db.GetBalance(recipient); got.Cmp(big.NewInt(40)) != 0 {
		t.Errorf("recipient balance = %v, want 40", got)
	}
	if got := db.GetBalance(testCaller); got.Cmp(big.NewInt(60)) != 0 {
		t.Errorf("caller balance = %v, want 60", got)
	}
}

func TestCreate2AddressDerivation(t *testing.T) {
	evm, db, _ := newTestEVM()
	salt := big.NewInt(0xbeef)

	_, addr, _, err := evm.Create2(testCaller, nil, 100_000, nil, salt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := crypto.Create2Address(testCaller, types.BigToHash(salt), crypto.Keccak256(nil))
	if addr != want {
		t.Errorf("created at %v, want %v", addr, want)
	}
	if nonce := db.GetNonce(addr); nonce != 1 {
		t.Errorf("new contract nonce = %d, want 1", nonce)
	}
}

func TestCreateRevertsOversizedCode(t *testing.T) {
	evm, _, _ := newTestEVM()
	// Init code returning MaxCodeSize+1 bytes of zeroed memory.
	initCode := []byte{
		byte(PUSH3), 0x00, 0x60, 0x01, // 24577
		byte(PUSH1), 0,
		byte(RETURN),
	}

	_, _, _, err := evm.Create(testCaller, initCode, 10_000_000, nil)
	if !errors.Is(err, ErrMaxCodeSizeExceeded) {
		t.Fatalf("error = %v, want ErrMaxCodeSizeExceeded", err)
	}
}

func TestSelfdestructPreexistingAccount(t *testing.T) {
	evm, db, backend := newTestEVM()
	beneficiary := types.HexToAddress("0x4000000000000000000000000000000000000004")
	code := append([]byte{byte(PUSH20)}, beneficiary.Bytes()...)
	code = append(code, byte(SELFDESTRUCT))
	deploy(backend, code)
	backend.SetAccount(testContract, types.Account{
		Nonce:    1,
		Balance:  big.NewInt(77),
		CodeHash: crypto.Keccak256(code),
	})

	_, _, err := evm.Call(testCaller, testContract, nil, 100_000, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := db.GetBalance(beneficiary); got.Cmp(big.NewInt(77)) != 0 {
		t.Errorf("beneficiary balance = %v, want 77", got)
	}
	// Not created in this transaction, so the account survives.
	if db.HasSelfDestructed(testContract) {
		t.Error("pre-existing account must not be scheduled for deletion")
	}
}

func TestNestedCallRevertIsolated(t *testing.T) {
	evm, db, backend := newTestEVM()
	// Inner contract stores then reverts.
	inner := types.HexToAddress("0x5000000000000000000000000000000000000005")
	backend.SetCode(inner, []byte{
		byte(PUSH1), 1,
		byte(PUSH1), 0,
		byte(SSTORE),
		byte(PUSH1), 0,
		byte(PUSH1), 0,
		byte(REVERT),
	})
	// Outer contract calls inner, then stores the call's status word.
	outer := []byte{
		byte(PUSH1), 0, // retLen
		byte(PUSH1), 0, // retOff
		byte(PUSH1), 0, // argsLen
		byte(PUSH1), 0, // argsOff
		byte(PUSH1), 0, // value
		byte(PUSH20),
	}
	outer = append(outer, inner.Bytes()...)
	outer = append(outer,
		byte(PUSH3), 0xff, 0xff, 0xff, // gas
		byte(CALL),
		byte(PUSH1), 0,
		byte(SSTORE),
		byte(STOP),
	)
	deploy(backend, outer)

	_, _, err := evm.Call(testCaller, testContract, nil, 200_000, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The failed inner call pushed 0.
	if got := db.GetState(testContract, types.Hash{}); got != (types.Hash{}) {
		t.Errorf("status slot = %v, want 0", got)
	}
	// The inner contract's reverted store is gone.
	if got := db.GetState(inner, types.Hash{}); got != (types.Hash{}) {
		t.Errorf("inner slot = %v, want 0 after revert", got)
	}
}

func TestReturnDataBuffer(t *testing.T) {
	evm, _, backend := newTestEVM()
	// Inner returns 0x2a as one word.
	inner := types.HexToAddress("0x5000000000000000000000000000000000000005")
	backend.SetCode(inner, []byte{
		byte(PUSH1), 0x2a,
		byte(PUSH1), 0,
		byte(MSTORE),
		byte(PUSH1), 32,
		byte(PUSH1), 0,
		byte(RETURN),
	})
	// Outer STATICCALLs inner and re-returns the copied return data.
	outer := []byte{
		byte(PUSH1), 32, // retLen
		byte(PUSH1), 0, // retOff
		byte(PUSH1), 0, // argsLen
		byte(PUSH1), 0, // argsOff
		byte(PUSH20),
	}
	outer = append(outer, inner.Bytes()...)
	outer = append(outer,
		byte(PUSH3), 0xff, 0xff, 0xff,
		byte(STATICCALL),
		byte(POP),
		byte(PUSH1), 32,
		byte(PUSH1), 0,
		byte(RETURN),
	)
	deploy(backend, outer)

	ret, _, err := evm.Call(testCaller, testContract, nil, 200_000, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := types.BigToHash(big.NewInt(0x2a))
	if !bytes.Equal(ret, want.Bytes()) {
		t.Errorf("return data = %x, want %x", ret, want.Bytes())
	}
}

func TestPrecompileCallThroughEVM(t *testing.T) {
	evm, _, _ := newTestEVM()
	identity := types.BytesToAddress([]byte{4})

	input := []byte("round trip")
	ret, _, err := evm.Call(testCaller, identity, input, 100_000, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(ret, input) {
		t.Errorf("identity returned %q, want %q", ret, input)
	}
}

func TestPrecompileFailureRevertsWithGas(t *testing.T) {
	evm, _, _ := newTestEVM()
	blake2f := types.BytesToAddress([]byte{9})

	// A malformed input makes the contract fail after its (zero) gas
	// charge; the frame reverts and keeps the caller's remaining gas.
	ret, gasLeft, err := evm.Call(testCaller, blake2f, make([]byte, 10), 100_000, nil)
	if !errors.Is(err, ErrExecutionReverted) {
		t.Fatalf("error = %v, want ErrExecutionReverted", err)
	}
	if gasLeft != 100_000 {
		t.Errorf("gasLeft = %d, want 100000", gasLeft)
	}
	if len(ret) != 0 {
		t.Errorf("return data = %x, want empty", ret)
	}
}

func TestPreWarmAccessList(t *testing.T) {
	evm, db, _ := newTestEVM()
	to := testContract
	slot := types.BigToHash(big.NewInt(7))
	list := types.AccessList{{Address: to, StorageKeys: []types.Hash{slot}}}

	evm.PreWarmAccessList(testCaller, &to, list)

	if !db.AddressInAccessList(testCaller) {
		t.Error("sender not warmed")
	}
	if !db.AddressInAccessList(to) {
		t.Error("recipient not warmed")
	}
	if _, slotOk := db.SlotInAccessList(to, slot); !slotOk {
		t.Error("declared slot not warmed")
	}
	if !db.AddressInAccessList(types.BytesToAddress([]byte{1})) {
		t.Error("precompiles should be warm")
	}
}
