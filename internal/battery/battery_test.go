package battery

import (
	"context"
	"testing"
)

func TestMockReaderReturnsPlausiblePercent(t *testing.T) {
	r := NewMockReader()
	st, err := r.Read(context.Background())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if st.Percent < 20 || st.Percent > 100 {
		t.Fatalf("Percent = %d, want in [20,100]", st.Percent)
	}
}

func TestNewI2CReaderDefaultsAddress(t *testing.T) {
	r := NewI2CReader("", 0).(*i2cReader)
	if r.addr != defaultI2CAddr {
		t.Fatalf("addr = %#x, want %#x", r.addr, defaultI2CAddr)
	}
}

func TestNewI2CReaderPreservesExplicitAddress(t *testing.T) {
	r := NewI2CReader("1", 0x10).(*i2cReader)
	if r.addr != 0x10 {
		t.Fatalf("addr = %#x, want 0x10", r.addr)
	}
}

func TestNewReaderPicksAReader(t *testing.T) {
	if NewReader("", 0) == nil {
		t.Fatalf("NewReader returned nil")
	}
}
