package crypto

import (
	"crypto/sha256"
	"sync"

	goethkzg "github.com/crate-crypto/go-eth-kzg"
	"github.com/oksanaphmn/kakarot/core/types"
)

var (
	kzgCtxOnce sync.Once
	kzgCtx     *goethkzg.Context
	kzgCtxErr  error
)

// kzgContext lazily loads the embedded trusted setup. Loading takes a
// noticeable amount of time, so it only happens on first use.
func kzgContext() (*goethkzg.Context, error) {
	kzgCtxOnce.Do(func() {
		kzgCtx, kzgCtxErr = goethkzg.NewContext4096Secure()
	})
	return kzgCtx, kzgCtxErr
}

// VerifyKZGProof checks that the committed polynomial evaluates to y at
// point z, given an opening proof.
func VerifyKZGProof(commitment [48]byte, z, y [32]byte, proof [48]byte) error {
	ctx, err := kzgContext()
	if err != nil {
		return err
	}
	return ctx.VerifyKZGProof(
		goethkzg.KZGCommitment(commitment),
		goethkzg.Scalar(z),
		goethkzg.Scalar(y),
		goethkzg.KZGProof(proof),
	)
}

// KZGToVersionedHash converts a commitment to its versioned hash:
// sha256 of the commitment with the first byte replaced by the version.
func KZGToVersionedHash(commitment [48]byte) types.Hash {
	h := sha256.Sum256(commitment[:])
	h[0] = 0x01
	return types.BytesToHash(h[:])
}
