package bridge

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksanaphmn/kakarot/core/types"
	"github.com/oksanaphmn/kakarot/crypto"
)

var (
	testClassHash = types.HexToHash("0x0102030405060708")
	testSalt      = types.HexToHash("0x6b6b7274")

	testAddr  = types.HexToAddress("0xe1cb04a0fa36ddd16a06ea828007e35e1a3cbc37")
	otherAddr = types.HexToAddress("0x3535353535353535353535353535353535353535")
)

func newTestDirectory() *AccountDirectory {
	return NewAccountDirectory(testClassHash, testSalt)
}

func TestResolveDeterministic(t *testing.T) {
	d := newTestDirectory()

	id1 := d.Resolve(testAddr)
	id2 := d.Resolve(testAddr)
	assert.Equal(t, id1, id2)
	assert.NotEqual(t, BackendID{}, id1)

	// The derivation is keccak(classHash || addr || salt).
	buf := append(append(append([]byte{}, testClassHash[:]...), testAddr[:]...), testSalt[:]...)
	var want BackendID
	copy(want[:], crypto.Keccak256(buf))
	assert.Equal(t, want, id1)

	assert.NotEqual(t, id1, d.Resolve(otherAddr))
}

func TestResolveDependsOnParameters(t *testing.T) {
	d := newTestDirectory()
	other := NewAccountDirectory(types.HexToHash("0xffff"), testSalt)
	assert.NotEqual(t, d.Resolve(testAddr), other.Resolve(testAddr))
}

func TestRegisterAndLookup(t *testing.T) {
	d := newTestDirectory()

	assert.False(t, d.Registered(testAddr))
	_, ok := d.Lookup(testAddr)
	assert.False(t, ok)

	id := d.Resolve(testAddr)
	require.NoError(t, d.Register(id, testAddr))

	assert.True(t, d.Registered(testAddr))
	got, ok := d.Lookup(testAddr)
	assert.True(t, ok)
	assert.Equal(t, id, got)
}

func TestRegisterTwiceFails(t *testing.T) {
	d := newTestDirectory()

	id := d.Resolve(testAddr)
	require.NoError(t, d.Register(id, testAddr))

	err := d.Register(id, testAddr)
	require.Error(t, err)
	assert.EqualError(t, err, "Kakarot: account already registered")
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
}

func TestRegisterWrongCaller(t *testing.T) {
	d := newTestDirectory()

	expected := d.Resolve(testAddr)
	wrong := d.Resolve(otherAddr)

	err := d.Register(wrong, testAddr)
	require.Error(t, err)
	assert.EqualError(t, err, fmt.Sprintf("Kakarot: Caller should be %s, got %s", expected, wrong))
	assert.False(t, d.Registered(testAddr))
}

func TestDeploymentAddressCreate(t *testing.T) {
	got := DeploymentAddress(testAddr, big.NewInt(0), nil, false)
	assert.Equal(t, crypto.CreateAddress(testAddr, 0), got)

	// Distinct nonces land on distinct addresses.
	assert.NotEqual(t, got, DeploymentAddress(testAddr, big.NewInt(1), nil, false))
}

func TestDeploymentAddressCreate2(t *testing.T) {
	initCode := []byte{0x60, 0x00, 0x60, 0x00, 0xf3}
	salt := big.NewInt(7)

	got := DeploymentAddress(testAddr, salt, crypto.Keccak256(initCode), true)
	want := crypto.Create2Address(testAddr, types.BigToHash(salt), crypto.Keccak256(initCode))
	assert.Equal(t, want, got)
}
