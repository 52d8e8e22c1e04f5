package crypto

import (
	"encoding/hex"
	"testing"

	"github.com/oksanaphmn/kakarot/core/types"
)

func TestKeccak256EmptyInput(t *testing.T) {
	got := hex.EncodeToString(Keccak256())
	want := "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"
	if got != want {
		t.Fatalf("keccak256(\"\") = %s, want %s", got, want)
	}
}

func TestKeccak256MultiChunk(t *testing.T) {
	// Split writes must hash the same as the concatenation.
	whole := Keccak256([]byte("hello world"))
	split := Keccak256([]byte("hello "), []byte("world"))
	if types.BytesToHash(whole) != types.BytesToHash(split) {
		t.Fatal("chunked hashing diverged from whole-input hashing")
	}
	want := "47173285a8d7341e5e972fc677286384f802f8ef42a5ec5f03bbfa254cb01fad"
	if got := hex.EncodeToString(whole); got != want {
		t.Fatalf("keccak256(\"hello world\") = %s, want %s", got, want)
	}
}

func TestCreateAddress(t *testing.T) {
	sender := types.HexToAddress("0x970e8128ab834e8eac17ab8e3812f010678cf791")
	tests := []struct {
		nonce uint64
		want  types.Address
	}{
		{0, types.HexToAddress("0x333c3310824b7c685133f2bedb2ca4b8b4df633d")},
		{1, types.HexToAddress("0x8bda78331c916a08481428e4b07c96d3e916d165")},
		{2, types.HexToAddress("0xc9ddedf451bc62ce88bf9292afb13df35b670699")},
	}
	for _, tc := range tests {
		if got := CreateAddress(sender, tc.nonce); got != tc.want {
			t.Errorf("CreateAddress(nonce=%d) = %s, want %s", tc.nonce, got, tc.want)
		}
	}
}

func TestCreate2Address(t *testing.T) {
	// First example vector from EIP-1014.
	got := Create2Address(types.Address{}, types.Hash{}, Keccak256([]byte{0x00}))
	want := types.HexToAddress("0x4D1A2e2bB4F88F0250f26Ffff098B0b30B26BF38")
	if got != want {
		t.Fatalf("Create2Address = %s, want %s", got, want)
	}
}
