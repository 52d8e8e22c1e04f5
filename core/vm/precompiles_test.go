package vm

import (
	"bytes"
	"encoding/hex"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/oksanaphmn/kakarot/core/types"
)

func precompileAt(t *testing.T, addr string) PrecompiledContract {
	t.Helper()
	p, ok := PrecompiledContracts[types.HexToAddress(addr)]
	if !ok {
		t.Fatalf("no precompile at %s", addr)
	}
	return p
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex: %v", err)
	}
	return b
}

func TestEcrecoverRoundTrip(t *testing.T) {
	p := precompileAt(t, "0x01")

	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	hash := ethcrypto.Keccak256([]byte("message"))
	sig, err := ethcrypto.Sign(hash, key)
	if err != nil {
		t.Fatal(err)
	}

	input := make([]byte, 128)
	copy(input[0:32], hash)
	input[63] = 27 + sig[64]
	copy(input[64:96], sig[:32])
	copy(input[96:128], sig[32:64])

	out, err := p.Run(input)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(out) != 32 {
		t.Fatalf("output length = %d, want 32", len(out))
	}
	want := ethcrypto.PubkeyToAddress(key.PublicKey)
	if !bytes.Equal(out[12:], want[:]) {
		t.Errorf("recovered %x, want %x", out[12:], want)
	}
	if got := p.RequiredGas(input); got != EcrecoverGas {
		t.Errorf("gas = %d, want %d", got, EcrecoverGas)
	}
}

func TestEcrecoverMalformed(t *testing.T) {
	p := precompileAt(t, "0x01")

	// An invalid recovery id yields empty output, not a failure.
	input := make([]byte, 128)
	input[63] = 29
	out, err := p.Run(input)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out != nil {
		t.Errorf("output = %x, want empty", out)
	}
}

func TestSha256Precompile(t *testing.T) {
	p := precompileAt(t, "0x02")

	out, err := p.Run(nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := mustHex(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855")
	if !bytes.Equal(out, want) {
		t.Errorf("sha256(\"\") = %x, want %x", out, want)
	}
	if got := p.RequiredGas(nil); got != Sha256BaseGas {
		t.Errorf("gas = %d, want %d", got, Sha256BaseGas)
	}
	if got := p.RequiredGas(make([]byte, 33)); got != Sha256BaseGas+2*Sha256PerWordGas {
		t.Errorf("gas for 33 bytes = %d, want %d", got, Sha256BaseGas+2*Sha256PerWordGas)
	}
}

func TestRipemd160Precompile(t *testing.T) {
	p := precompileAt(t, "0x03")

	out, err := p.Run(nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// Digest is left-padded to 32 bytes.
	want := mustHex(t, "0000000000000000000000009c1185a5c5e9fc54612808977ee8f548b2258d31")
	if !bytes.Equal(out, want) {
		t.Errorf("ripemd160(\"\") = %x, want %x", out, want)
	}
}

func TestIdentityPrecompile(t *testing.T) {
	p := precompileAt(t, "0x04")

	input := []byte("echo")
	out, err := p.Run(input)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !bytes.Equal(out, input) {
		t.Errorf("output = %x, want %x", out, input)
	}
	if got := p.RequiredGas(input); got != IdentityBaseGas+IdentityPerWordGas {
		t.Errorf("gas = %d, want %d", got, IdentityBaseGas+IdentityPerWordGas)
	}
}

func TestModExp(t *testing.T) {
	p := precompileAt(t, "0x05")

	// 3^2 mod 5 = 4, one byte each.
	input := make([]byte, 96, 99)
	input[31] = 1
	input[63] = 1
	input[95] = 1
	input = append(input, 0x03, 0x02, 0x05)

	out, err := p.Run(input)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !bytes.Equal(out, []byte{0x04}) {
		t.Errorf("output = %x, want 04", out)
	}
	if got := p.RequiredGas(input); got != ModExpMinGas {
		t.Errorf("gas = %d, want minimum %d", got, ModExpMinGas)
	}
}

func TestModExpZeroModulus(t *testing.T) {
	p := precompileAt(t, "0x05")

	input := make([]byte, 96, 98)
	input[31] = 1
	input[95] = 1
	input = append(input, 0x03, 0x00)

	out, err := p.Run(input)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !bytes.Equal(out, []byte{0x00}) {
		t.Errorf("output = %x, want 00", out)
	}
}

func TestModExpOversizedLength(t *testing.T) {
	p := precompileAt(t, "0x05")

	input := make([]byte, 96)
	input[0] = 1 // baseLen = 2^248
	if got := p.RequiredGas(input); got != maxGasUint64 {
		t.Errorf("gas = %d, want %d", got, uint64(maxGasUint64))
	}
	if _, err := p.Run(input); err == nil {
		t.Error("expected length overflow error")
	}
}

func TestModExpGasProductOverflowClamped(t *testing.T) {
	p := precompileAt(t, "0x05")

	// baseLen 0, expLen 33, modLen 2^31 with a high leading exponent bit:
	// words = 2^28, multiplication complexity = 2^56, iteration count
	// 248+8 = 256, so the product is exactly 2^64 and would wrap to the
	// minimum charge if multiplied unchecked.
	input := make([]byte, 96+33)
	input[63] = 33
	input[92] = 0x80
	input[96] = 0x01

	if got := p.RequiredGas(input); got != maxGasUint64 {
		t.Errorf("gas = %d, want %d", got, uint64(maxGasUint64))
	}
}

func TestBn256AddInfinity(t *testing.T) {
	p := precompileAt(t, "0x06")

	out, err := p.Run(make([]byte, 128))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !bytes.Equal(out, make([]byte, 64)) {
		t.Errorf("infinity + infinity = %x, want zero point", out)
	}
	if got := p.RequiredGas(nil); got != Bn256AddGas {
		t.Errorf("gas = %d, want %d", got, Bn256AddGas)
	}
}

func TestBn256ScalarMulInfinity(t *testing.T) {
	p := precompileAt(t, "0x07")

	out, err := p.Run(make([]byte, 96))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !bytes.Equal(out, make([]byte, 64)) {
		t.Errorf("0 * infinity = %x, want zero point", out)
	}
}

func TestBn256PairingEmpty(t *testing.T) {
	p := precompileAt(t, "0x08")

	out, err := p.Run(nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !bytes.Equal(out, true32Byte) {
		t.Errorf("empty pairing = %x, want true", out)
	}
	if got := p.RequiredGas(make([]byte, 384)); got != Bn256PairingBaseGas+2*Bn256PairingPerPointGas {
		t.Errorf("gas = %d", got)
	}
}

func TestBn256PairingBadLength(t *testing.T) {
	p := precompileAt(t, "0x08")
	if _, err := p.Run(make([]byte, 100)); err == nil {
		t.Error("expected input length error")
	}
}

func TestBlake2F(t *testing.T) {
	p := precompileAt(t, "0x09")

	// EIP-152 test vector: 12 rounds over the "abc" block equals
	// unkeyed BLAKE2b-512("abc").
	input := mustHex(t,
		"0000000c48c9bdf267e6096a3ba7ca8485ae67bb2bf894fe72f36e3cf1361d5f3af54fa5"+
			"d182e6ad7f520e511f6c3e2b8c68059b6bbd41fbabd9831f79217e1319cde05b"+
			"6162630000000000000000000000000000000000000000000000000000000000"+
			"0000000000000000000000000000000000000000000000000000000000000000"+
			"0000000000000000000000000000000000000000000000000000000000000000"+
			"0000000000000000000000000000000000000000000000000000000000000000"+
			"0300000000000000"+"0000000000000000"+"01")
	out, err := p.Run(input)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := mustHex(t,
		"ba80a53f981c4d0d6a2797b69f12f6e94c212f14685ac4b74b12bb6fdbffa2d1"+
			"7d87c5392aab792dc252d5de4533cc9518d38aa8dbf1925ab92386edd4009923")
	if !bytes.Equal(out, want) {
		t.Errorf("output = %x, want %x", out, want)
	}
	if got := p.RequiredGas(input); got != 12 {
		t.Errorf("gas = %d, want 12", got)
	}
}

func TestBlake2FBadInput(t *testing.T) {
	p := precompileAt(t, "0x09")

	if _, err := p.Run(make([]byte, 212)); err == nil {
		t.Error("expected input length error")
	}

	input := make([]byte, blake2FInputLength)
	input[212] = 2
	if _, err := p.Run(input); err == nil {
		t.Error("expected final block indicator error")
	}
}

func TestPointEvaluationBadLength(t *testing.T) {
	p := precompileAt(t, "0x0a")

	if _, err := p.Run(make([]byte, 100)); err == nil {
		t.Error("expected input length error")
	}
	if got := p.RequiredGas(nil); got != PointEvaluationGas {
		t.Errorf("gas = %d, want %d", got, PointEvaluationGas)
	}
}
