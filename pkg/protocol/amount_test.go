package protocol

import (
	"math/big"
	"testing"
)

func TestScaleAmount(t *testing.T) {
	cases := []struct {
		name     string
		amount   string
		decimals int
		want     string
		wantErr  bool
	}{
		{"simple", "0.01", 6, "10000", false},
		{"whole", "5", 6, "5000000", false},
		{"max fractional digits", "0.000001", 6, "1", false},
		{"zero", "0", 6, "", true},
		{"negative", "-1", 6, "", true},
		{"too many fractional digits", "0.0000001", 6, "", true},
		{"garbage", "not-a-number", 6, "", true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := ScaleAmount(c.amount, c.decimals)
			if c.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != c.want {
				t.Errorf("ScaleAmount(%q, %d) = %s, want %s", c.amount, c.decimals, got, c.want)
			}
		})
	}
}

func TestDisplayAmountRoundTrip(t *testing.T) {
	amounts := []string{"0.01", "5", "0.000001", "123.456789", "1"}
	for _, a := range amounts {
		smallest, err := ScaleAmount(a, 6)
		if err != nil {
			t.Fatalf("ScaleAmount(%q) failed: %v", a, err)
		}
		got := DisplayAmount(smallest, 6)
		if got != a {
			t.Errorf("round trip: ScaleAmount(%q) -> DisplayAmount = %q, want %q", a, got, a)
		}
	}
}

func TestDisplayAmountNil(t *testing.T) {
	if DisplayAmount(nil, 6) != "0" {
		t.Errorf("expected 0 for nil amount")
	}
}

func TestScaleAmountOverflowGuard(t *testing.T) {
	// typical stablecoin amounts stay well under 2^96; a very large amount
	// should still scale without panicking.
	big96 := new(big.Int).Lsh(big.NewInt(1), 95).String()
	_, err := ScaleAmount(big96, 0)
	if err != nil {
		t.Fatalf("unexpected error scaling large integer amount: %v", err)
	}
}
