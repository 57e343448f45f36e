package redis

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestNullRoundTrip(t *testing.T) {
	tests := []struct {
		in    decimal.NullDecimal
		wire  string
		valid bool
	}{
		{decimal.NullDecimal{}, "", false},
		{decimal.NewNullDecimal(decimal.RequireFromString("0.450")), "0.45", true},
	}
	for _, tc := range tests {
		s := nullString(tc.in)
		if s != tc.wire {
			t.Fatalf("nullString = %q, want %q", s, tc.wire)
		}
		got, err := parseNull(s)
		if err != nil {
			t.Fatalf("parseNull(%q): %v", s, err)
		}
		if got.Valid != tc.valid || (tc.valid && !got.Decimal.Equal(tc.in.Decimal)) {
			t.Fatalf("parseNull(%q) = %+v", s, got)
		}
	}
	if _, err := parseNull("abc"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestKeyPrefix(t *testing.T) {
	qc := NewQuoteCache(&Client{prefix: "polyarb:"})
	if got := qc.quoteKey("123"); got != "polyarb:quote:123" {
		t.Fatalf("key = %q", got)
	}
}
