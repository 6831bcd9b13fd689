package swap

import (
	"math/big"
	"testing"
)

func TestToBaseUnitsExactConversion(t *testing.T) {
	got, err := ToBaseUnits("1.5", 6)
	if err != nil {
		t.Fatalf("ToBaseUnits: %v", err)
	}
	want := big.NewInt(1_500_000)
	if got.Cmp(want) != 0 {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestToBaseUnitsRejectsNonExact(t *testing.T) {
	if _, err := ToBaseUnits("1.23456789", 6); err == nil {
		t.Fatal("expected an error for an amount needing more precision than decimals allows")
	}
}

func TestToBaseUnitsRejectsZeroAndNegative(t *testing.T) {
	if _, err := ToBaseUnits("0", 6); err == nil {
		t.Fatal("expected an error for a zero amount")
	}
	if _, err := ToBaseUnits("-1", 6); err == nil {
		t.Fatal("expected an error for a negative amount")
	}
}

func TestToBaseUnitsRejectsGarbage(t *testing.T) {
	if _, err := ToBaseUnits("not-a-number", 6); err == nil {
		t.Fatal("expected an error for an unparseable amount")
	}
}

func TestFromBaseUnitsRoundTrip(t *testing.T) {
	raw := big.NewInt(1_500_000)
	human := FromBaseUnits(raw, 6)
	back, err := ToBaseUnits(human, 6)
	if err != nil {
		t.Fatalf("ToBaseUnits: %v", err)
	}
	if back.Cmp(raw) != 0 {
		t.Fatalf("round trip mismatch: got %s, want %s", back, raw)
	}
}

func TestFormatAmountClampsPrecision(t *testing.T) {
	// decimals=0 should still show at least 2 display digits.
	got := FormatAmount(big.NewInt(5), 0)
	if got != "5.00" {
		t.Fatalf("got %q, want 5.00", got)
	}
}

func TestFormatAmountNilIsZero(t *testing.T) {
	if got := FormatAmountPrecision(nil, 6, 2); got != "0" {
		t.Fatalf("got %q, want 0", got)
	}
}

func TestFormatBpsTrimsTrailingZeros(t *testing.T) {
	if got := FormatBps(50); got != "0.5%" {
		t.Fatalf("got %q, want 0.5%%", got)
	}
	if got := FormatBps(0); got != "0%" {
		t.Fatalf("got %q, want 0%%", got)
	}
	if got := FormatBps(10_000); got != "100%" {
		t.Fatalf("got %q, want 100%%", got)
	}
}
