package vm

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"math/big"
	"math/bits"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/crypto/blake2b"
	"github.com/ethereum/go-ethereum/crypto/bn256"
	"golang.org/x/crypto/ripemd160"

	"github.com/oksanaphmn/kakarot/core/types"
	"github.com/oksanaphmn/kakarot/crypto"
)

// PrecompiledContract is the interface for native contracts reachable at
// the reserved low addresses.
type PrecompiledContract interface {
	RequiredGas(input []byte) uint64
	Run(input []byte) ([]byte, error)
}

// PrecompiledContracts holds the Cancun precompile set, 0x01 through 0x0a.
var PrecompiledContracts = map[types.Address]PrecompiledContract{
	types.BytesToAddress([]byte{1}):    &ecrecover{},
	types.BytesToAddress([]byte{2}):    &sha256hash{},
	types.BytesToAddress([]byte{3}):    &ripemd160hash{},
	types.BytesToAddress([]byte{4}):    &dataCopy{},
	types.BytesToAddress([]byte{5}):    &bigModExp{},
	types.BytesToAddress([]byte{6}):    &bn256Add{},
	types.BytesToAddress([]byte{7}):    &bn256ScalarMul{},
	types.BytesToAddress([]byte{8}):    &bn256Pairing{},
	types.BytesToAddress([]byte{9}):    &blake2F{},
	types.BytesToAddress([]byte{0x0a}): &kzgPointEvaluation{},
}

// IsPrecompiledContract reports whether addr hosts a precompile.
func IsPrecompiledContract(addr types.Address) bool {
	_, ok := PrecompiledContracts[addr]
	return ok
}

// ecrecover implements the signature recovery contract at 0x01.
type ecrecover struct{}

func (c *ecrecover) RequiredGas(input []byte) uint64 {
	return EcrecoverGas
}

func (c *ecrecover) Run(input []byte) ([]byte, error) {
	input = padRight(input, 128)

	hash := input[0:32]
	v := new(big.Int).SetBytes(input[32:64])
	r := new(big.Int).SetBytes(input[64:96])
	s := new(big.Int).SetBytes(input[96:128])

	// Malformed signatures yield empty output, not an error.
	if v.BitLen() > 8 {
		return nil, nil
	}
	vByte := byte(v.Uint64())
	if vByte != 27 && vByte != 28 {
		return nil, nil
	}
	if !ethcrypto.ValidateSignatureValues(vByte-27, r, s, true) {
		return nil, nil
	}

	sig := make([]byte, 65)
	r.FillBytes(sig[:32])
	s.FillBytes(sig[32:64])
	sig[64] = vByte - 27

	pub, err := ethcrypto.Ecrecover(hash, sig)
	if err != nil {
		return nil, nil
	}

	addr := crypto.Keccak256(pub[1:])
	result := make([]byte, 32)
	copy(result[12:], addr[12:])
	return result, nil
}

// sha256hash implements the SHA-256 contract at 0x02.
type sha256hash struct{}

func (c *sha256hash) RequiredGas(input []byte) uint64 {
	return Sha256BaseGas + Sha256PerWordGas*wordCount(len(input))
}

func (c *sha256hash) Run(input []byte) ([]byte, error) {
	h := sha256.Sum256(input)
	return h[:], nil
}

// ripemd160hash implements the RIPEMD-160 contract at 0x03.
type ripemd160hash struct{}

func (c *ripemd160hash) RequiredGas(input []byte) uint64 {
	return Ripemd160BaseGas + Ripemd160PerWordGas*wordCount(len(input))
}

func (c *ripemd160hash) Run(input []byte) ([]byte, error) {
	h := ripemd160.New()
	h.Write(input)
	digest := h.Sum(nil)

	result := make([]byte, 32)
	copy(result[12:], digest)
	return result, nil
}

// dataCopy implements the identity contract at 0x04.
type dataCopy struct{}

func (c *dataCopy) RequiredGas(input []byte) uint64 {
	return IdentityBaseGas + IdentityPerWordGas*wordCount(len(input))
}

func (c *dataCopy) Run(input []byte) ([]byte, error) {
	out := make([]byte, len(input))
	copy(out, input)
	return out, nil
}

// bigModExp implements modular exponentiation at 0x05 with EIP-2565
// pricing.
type bigModExp struct{}

func (c *bigModExp) RequiredGas(input []byte) uint64 {
	header := padRight(input, 96)

	baseLen := new(big.Int).SetBytes(header[0:32])
	expLen := new(big.Int).SetBytes(header[32:64])
	modLen := new(big.Int).SetBytes(header[64:96])
	if baseLen.BitLen() > 32 || expLen.BitLen() > 32 || modLen.BitLen() > 32 {
		return maxGasUint64
	}
	bLen, eLen, mLen := baseLen.Uint64(), expLen.Uint64(), modLen.Uint64()

	var body []byte
	if len(input) > 96 {
		body = input[96:]
	}
	adjExpLen := adjustedExpLen(eLen, bLen, body)

	maxLen := bLen
	if mLen > maxLen {
		maxLen = mLen
	}
	words := (maxLen + 7) / 8
	multComplexity := words * words

	// Lengths up to 2^32 make the product overflow uint64; an overflowed
	// charge is unpayable, so clamp instead of wrapping.
	hi, gas := bits.Mul64(multComplexity, maxUint64(adjExpLen, 1))
	if hi != 0 {
		return maxGasUint64
	}
	gas /= 3
	if gas < ModExpMinGas {
		gas = ModExpMinGas
	}
	return gas
}

func (c *bigModExp) Run(input []byte) ([]byte, error) {
	header := padRight(input, 96)

	baseLen := new(big.Int).SetBytes(header[0:32])
	expLen := new(big.Int).SetBytes(header[32:64])
	modLen := new(big.Int).SetBytes(header[64:96])
	if baseLen.BitLen() > 32 || expLen.BitLen() > 32 || modLen.BitLen() > 32 {
		return nil, errors.New("modexp: length overflow")
	}
	bLen, eLen, mLen := baseLen.Uint64(), expLen.Uint64(), modLen.Uint64()

	if bLen == 0 && mLen == 0 {
		return nil, nil
	}

	var body []byte
	if len(input) > 96 {
		body = input[96:]
	}
	base := getDataSlice(body, 0, bLen)
	exp := getDataSlice(body, bLen, eLen)
	mod := getDataSlice(body, bLen+eLen, mLen)

	modVal := new(big.Int).SetBytes(mod)
	if modVal.Sign() == 0 {
		return make([]byte, mLen), nil
	}

	result := new(big.Int).Exp(new(big.Int).SetBytes(base), new(big.Int).SetBytes(exp), modVal)

	out := make([]byte, mLen)
	result.FillBytes(out)
	return out, nil
}

// newCurvePoint unmarshals a 64-byte G1 point.
func newCurvePoint(blob []byte) (*bn256.G1, error) {
	p := new(bn256.G1)
	if _, err := p.Unmarshal(blob); err != nil {
		return nil, err
	}
	return p, nil
}

// newTwistPoint unmarshals a 128-byte G2 point.
func newTwistPoint(blob []byte) (*bn256.G2, error) {
	p := new(bn256.G2)
	if _, err := p.Unmarshal(blob); err != nil {
		return nil, err
	}
	return p, nil
}

// bn256Add implements alt_bn128 point addition at 0x06 (EIP-196, priced
// per EIP-1108).
type bn256Add struct{}

func (c *bn256Add) RequiredGas(input []byte) uint64 {
	return Bn256AddGas
}

func (c *bn256Add) Run(input []byte) ([]byte, error) {
	input = padRight(input, 128)
	x, err := newCurvePoint(input[0:64])
	if err != nil {
		return nil, err
	}
	y, err := newCurvePoint(input[64:128])
	if err != nil {
		return nil, err
	}
	res := new(bn256.G1)
	res.Add(x, y)
	return res.Marshal(), nil
}

// bn256ScalarMul implements alt_bn128 scalar multiplication at 0x07.
type bn256ScalarMul struct{}

func (c *bn256ScalarMul) RequiredGas(input []byte) uint64 {
	return Bn256ScalarMulGas
}

func (c *bn256ScalarMul) Run(input []byte) ([]byte, error) {
	input = padRight(input, 96)
	p, err := newCurvePoint(input[0:64])
	if err != nil {
		return nil, err
	}
	res := new(bn256.G1)
	res.ScalarMult(p, new(big.Int).SetBytes(input[64:96]))
	return res.Marshal(), nil
}

// bn256Pairing implements the alt_bn128 pairing check at 0x08 (EIP-197).
type bn256Pairing struct{}

func (c *bn256Pairing) RequiredGas(input []byte) uint64 {
	k := uint64(len(input)) / 192
	return Bn256PairingBaseGas + Bn256PairingPerPointGas*k
}

var (
	true32Byte  = append(make([]byte, 31), 1)
	false32Byte = make([]byte, 32)
)

func (c *bn256Pairing) Run(input []byte) ([]byte, error) {
	if len(input)%192 != 0 {
		return nil, errors.New("bn256 pairing: invalid input length")
	}
	var (
		cs []*bn256.G1
		ts []*bn256.G2
	)
	for i := 0; i < len(input); i += 192 {
		g1, err := newCurvePoint(input[i : i+64])
		if err != nil {
			return nil, err
		}
		g2, err := newTwistPoint(input[i+64 : i+192])
		if err != nil {
			return nil, err
		}
		cs = append(cs, g1)
		ts = append(ts, g2)
	}
	if bn256.PairingCheck(cs, ts) {
		return true32Byte, nil
	}
	return false32Byte, nil
}

// blake2F implements the BLAKE2b compression contract at 0x09 (EIP-152).
type blake2F struct{}

const blake2FInputLength = 213

func (c *blake2F) RequiredGas(input []byte) uint64 {
	if len(input) != blake2FInputLength {
		return 0
	}
	return uint64(binary.BigEndian.Uint32(input[:4]))
}

func (c *blake2F) Run(input []byte) ([]byte, error) {
	if len(input) != blake2FInputLength {
		return nil, errors.New("blake2f: invalid input length")
	}
	if input[212] != 0 && input[212] != 1 {
		return nil, errors.New("blake2f: invalid final block indicator")
	}

	rounds := binary.BigEndian.Uint32(input[:4])
	final := input[212] == 1

	var (
		h [8]uint64
		m [16]uint64
		t [2]uint64
	)
	for i := 0; i < 8; i++ {
		h[i] = binary.LittleEndian.Uint64(input[4+i*8:])
	}
	for i := 0; i < 16; i++ {
		m[i] = binary.LittleEndian.Uint64(input[68+i*8:])
	}
	t[0] = binary.LittleEndian.Uint64(input[196:204])
	t[1] = binary.LittleEndian.Uint64(input[204:212])

	blake2b.F(&h, m, t, final, rounds)

	output := make([]byte, 64)
	for i := 0; i < 8; i++ {
		binary.LittleEndian.PutUint64(output[i*8:], h[i])
	}
	return output, nil
}

// kzgPointEvaluation implements the EIP-4844 point evaluation contract
// at 0x0a.
type kzgPointEvaluation struct{}

const (
	blobVerifyInputLength    = 192
	blobCommitmentVersionKZG = byte(0x01)
)

var (
	fieldElementsPerBlob = big.NewInt(4096)
	blsModulus, _        = new(big.Int).SetString("52435875175126190479447740508185965837690552500527637822603658699938581184513", 10)
	errBlobVerifyKZG     = errors.New("kzg: proof verification failed")
)

func (c *kzgPointEvaluation) RequiredGas(input []byte) uint64 {
	return PointEvaluationGas
}

func (c *kzgPointEvaluation) Run(input []byte) ([]byte, error) {
	if len(input) != blobVerifyInputLength {
		return nil, errors.New("kzg: invalid input length")
	}

	// versioned_hash(32) | z(32) | y(32) | commitment(48) | proof(48)
	if input[0] != blobCommitmentVersionKZG {
		return nil, errors.New("kzg: invalid versioned hash version")
	}

	var (
		z          [32]byte
		y          [32]byte
		commitment [48]byte
		proof      [48]byte
	)
	copy(z[:], input[32:64])
	copy(y[:], input[64:96])
	copy(commitment[:], input[96:144])
	copy(proof[:], input[144:192])

	if crypto.KZGToVersionedHash(commitment) != types.BytesToHash(input[:32]) {
		return nil, errors.New("kzg: commitment does not match versioned hash")
	}

	if err := crypto.VerifyKZGProof(commitment, z, y, proof); err != nil {
		return nil, errBlobVerifyKZG
	}

	output := make([]byte, 64)
	fieldElementsPerBlob.FillBytes(output[:32])
	blsModulus.FillBytes(output[32:])
	return output, nil
}

const maxGasUint64 = (1 << 64) - 1

// wordCount returns the number of 32-byte words needed to hold size bytes.
func wordCount(size int) uint64 {
	return uint64((size + 31) / 32)
}

// padRight zero-pads data on the right to at least minLen bytes.
func padRight(data []byte, minLen int) []byte {
	if len(data) >= minLen {
		return data
	}
	padded := make([]byte, minLen)
	copy(padded, data)
	return padded
}

// getDataSlice extracts length bytes of data starting at offset,
// zero-padding past the end.
func getDataSlice(data []byte, offset, length uint64) []byte {
	if length == 0 {
		return nil
	}
	result := make([]byte, length)
	if offset < uint64(len(data)) {
		end := offset + length
		if end > uint64(len(data)) {
			end = uint64(len(data))
		}
		copy(result, data[offset:end])
	}
	return result
}

// adjustedExpLen computes the EIP-2565 iteration count.
func adjustedExpLen(expLen, baseLen uint64, data []byte) uint64 {
	if expLen <= 32 {
		exp := new(big.Int).SetBytes(getDataSlice(data, baseLen, expLen))
		if exp.Sign() == 0 {
			return 0
		}
		return uint64(exp.BitLen() - 1)
	}
	firstExp := new(big.Int).SetBytes(getDataSlice(data, baseLen, 32))
	adj := uint64(0)
	if firstExp.Sign() > 0 {
		adj = uint64(firstExp.BitLen() - 1)
	}
	return adj + 8*(expLen-32)
}

// maxUint64 returns the larger of a and b.
func maxUint64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
