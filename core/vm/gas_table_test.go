package vm

import (
	"math/big"
	"testing"
)

func TestToWordSize(t *testing.T) {
	cases := []struct{ size, want uint64 }{
		{0, 0},
		{1, 1},
		{32, 1},
		{33, 2},
		{1024, 32},
	}
	for _, c := range cases {
		if got := toWordSize(c.size); got != c.want {
			t.Errorf("toWordSize(%d) = %d, want %d", c.size, got, c.want)
		}
	}
}

func TestMemoryCost(t *testing.T) {
	// First word costs 3; 1024 bytes cost 32*3 + 32*32/512 = 98.
	if cost, ok := MemoryCost(0, 32); !ok || cost != 3 {
		t.Errorf("MemoryCost(0, 32) = %d, %v", cost, ok)
	}
	if cost, ok := MemoryCost(0, 1024); !ok || cost != 98 {
		t.Errorf("MemoryCost(0, 1024) = %d, %v", cost, ok)
	}
	// Expansion is charged incrementally.
	if cost, ok := MemoryCost(32, 1024); !ok || cost != 95 {
		t.Errorf("MemoryCost(32, 1024) = %d, %v", cost, ok)
	}
	// Shrinking costs nothing.
	if cost, ok := MemoryCost(1024, 32); !ok || cost != 0 {
		t.Errorf("MemoryCost(1024, 32) = %d, %v", cost, ok)
	}
	if _, ok := MemoryCost(0, maxMemorySize+1); ok {
		t.Error("expected overflow for oversized memory")
	}
}

func TestCallGasRule(t *testing.T) {
	// At most 63/64 of the available gas may be forwarded.
	if got := callGas(6400, big.NewInt(10_000)); got != 6300 {
		t.Errorf("callGas(6400, 10000) = %d, want 6300", got)
	}
	if got := callGas(6400, big.NewInt(1000)); got != 1000 {
		t.Errorf("callGas(6400, 1000) = %d, want 1000", got)
	}
	huge := new(big.Int).Lsh(big.NewInt(1), 80)
	if got := callGas(6400, huge); got != 6300 {
		t.Errorf("callGas(6400, 2^80) = %d, want 6300", got)
	}
}
