package types

import (
	"bytes"
	"encoding/hex"
	"math/big"
	"testing"
)

// Signed example transaction from the EIP-155 specification: nonce 9,
// gas price 20 gwei, gas 21000, value 1 ether, chain id 1, signed with
// the private key 0x4646...46.
const eip155RawHex = "f86c098504a817c800825208943535353535353535353535353535353535353535880de0b6b3a76400008025a028ef61340bd939bc2195fe537567866003e1a15d3c71ff63e1590620aa636276a067cbe9d8997f761aecb703304b3800ccf555c9f3dc64214b297fb1966a3b6d83"

func mustDecodeHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex fixture: %v", err)
	}
	return b
}

func TestDecodeLegacyTransaction(t *testing.T) {
	tx, err := DecodeTransaction(mustDecodeHex(t, eip155RawHex))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if tx.Type() != LegacyTxType {
		t.Fatalf("type = %d, want legacy", tx.Type())
	}
	if tx.Nonce() != 9 {
		t.Errorf("nonce = %d, want 9", tx.Nonce())
	}
	if tx.Gas() != 21000 {
		t.Errorf("gas = %d, want 21000", tx.Gas())
	}
	if want := big.NewInt(20000000000); tx.GasPrice().Cmp(want) != 0 {
		t.Errorf("gas price = %v, want %v", tx.GasPrice(), want)
	}
	if want := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil); tx.Value().Cmp(want) != 0 {
		t.Errorf("value = %v, want %v", tx.Value(), want)
	}
	if to := tx.To(); to == nil || *to != HexToAddress("0x3535353535353535353535353535353535353535") {
		t.Errorf("to = %v", to)
	}
	if tx.ChainID() == nil || tx.ChainID().Cmp(big.NewInt(1)) != 0 {
		t.Errorf("chain id = %v, want 1", tx.ChainID())
	}
	if !tx.Protected() {
		t.Error("transaction should be replay-protected")
	}
}

func TestRecoverSenderEIP155(t *testing.T) {
	tx, err := DecodeTransaction(mustDecodeHex(t, eip155RawHex))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	from, err := tx.RecoverSender()
	if err != nil {
		t.Fatalf("sender recovery failed: %v", err)
	}
	want := HexToAddress("0x9d8A62f656a8d1615C1294fd71e9CFb3E4855A4F")
	if from != want {
		t.Fatalf("sender = %s, want %s", from, want)
	}
	// The sender must now be cached on the transaction.
	if cached := tx.Sender(); cached == nil || *cached != want {
		t.Fatalf("cached sender = %v, want %s", cached, want)
	}
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	if _, err := DecodeTransaction([]byte{0x05, 0xc0}); err == nil {
		t.Fatal("expected error for unknown transaction type")
	}
	if _, err := DecodeTransaction(nil); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

func TestDeriveChainID(t *testing.T) {
	tests := []struct {
		v    int64
		want *big.Int
	}{
		{27, nil},
		{28, nil},
		{37, big.NewInt(1)},
		{38, big.NewInt(1)},
		{2709, big.NewInt(1337)},
	}
	for _, tc := range tests {
		got := deriveChainID(big.NewInt(tc.v))
		if tc.want == nil {
			if got != nil {
				t.Errorf("deriveChainID(%d) = %v, want nil", tc.v, got)
			}
			continue
		}
		if got == nil || got.Cmp(tc.want) != 0 {
			t.Errorf("deriveChainID(%d) = %v, want %v", tc.v, got, tc.want)
		}
	}
}

func TestTxDataCopyIsDeep(t *testing.T) {
	orig := &DynamicFeeTx{
		ChainID:   big.NewInt(1),
		Nonce:     7,
		GasTipCap: big.NewInt(2),
		GasFeeCap: big.NewInt(100),
		Gas:       big.NewInt(50000),
		Value:     big.NewInt(0),
		Data:      []byte{0xde, 0xad},
		AccessList: AccessList{{
			Address:     HexToAddress("0x0000000000000000000000000000000000000001"),
			StorageKeys: []Hash{BigToHash(big.NewInt(42))},
		}},
		V: big.NewInt(0), R: big.NewInt(1), S: big.NewInt(1),
	}
	tx := NewTx(orig)
	orig.GasFeeCap.SetInt64(999)
	orig.Data[0] = 0x00
	orig.AccessList[0].StorageKeys[0] = Hash{}

	if tx.GasFeeCap().Cmp(big.NewInt(100)) != 0 {
		t.Error("fee cap aliases the caller's value")
	}
	if !bytes.Equal(tx.Data(), []byte{0xde, 0xad}) {
		t.Error("data aliases the caller's slice")
	}
	if tx.AccessList()[0].StorageKeys[0] != BigToHash(big.NewInt(42)) {
		t.Error("access list aliases the caller's slice")
	}
	if tx.AccessList().StorageKeys() != 1 {
		t.Errorf("storage keys = %d, want 1", tx.AccessList().StorageKeys())
	}
}
