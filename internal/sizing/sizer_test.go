package sizing

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/cryptogyan1/polyarb/internal/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func opp(total, profit string) domain.ArbitrageOpportunity {
	return domain.ArbitrageOpportunity{TotalCost: d(total), ExpectedProfit: d(profit)}
}

func newSizer(t *testing.T, p domain.SizingPolicy) *Sizer {
	t.Helper()
	s, err := NewSizer(p, d("1"))
	if err != nil {
		t.Fatalf("NewSizer: %v", err)
	}
	return s
}

func TestPercentagePolicy(t *testing.T) {
	s := newSizer(t, domain.SizingPolicy{Mode: domain.SizingPercentage, Fraction: d("0.10")})

	got := s.Size(d("100"), opp("0.95", "0.05"))
	if got.Skip {
		t.Fatalf("unexpected skip: %s", got.Reason)
	}
	if !got.Spend.Equal(d("10")) {
		t.Errorf("spend = %s, want 10", got.Spend)
	}
	if !got.Units.Equal(d("10")) {
		t.Errorf("units = %s, want 10", got.Units)
	}
	if !got.Committed.Equal(d("9.5")) {
		t.Errorf("committed = %s, want 9.5", got.Committed)
	}
}

func TestDynamicPolicy(t *testing.T) {
	s := newSizer(t, domain.SizingPolicy{Mode: domain.SizingDynamic})

	spend := s.Spend(d("1000"), d("0.05"))
	if !spend.Equal(d("10.5")) {
		t.Fatalf("spend = %s, want 10.5", spend)
	}

	// The 25% ceiling only binds for absurd edges.
	capped := s.Spend(d("1000"), d("30"))
	if !capped.Equal(d("250")) {
		t.Fatalf("capped spend = %s, want 250", capped)
	}
}

func TestFixedAndFreePolicies(t *testing.T) {
	tests := []struct {
		name    string
		policy  domain.SizingPolicy
		balance string
		want    string
	}{
		{"fixed ignores balance", domain.SizingPolicy{Mode: domain.SizingFixed, FixedAmount: d("5")}, "1000", "5"},
		{"free uses whole balance", domain.SizingPolicy{Mode: domain.SizingFree}, "42.5", "42.5"},
		{"free honours cap", domain.SizingPolicy{Mode: domain.SizingFree, FreeCap: d("100")}, "500", "100"},
		{"free cap above balance", domain.SizingPolicy{Mode: domain.SizingFree, FreeCap: d("100")}, "60", "60"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSizer(t, tt.policy)
			if got := s.Spend(d(tt.balance), d("0.05")); !got.Equal(d(tt.want)) {
				t.Fatalf("spend = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestUnitsAreFloored(t *testing.T) {
	s := newSizer(t, domain.SizingPolicy{Mode: domain.SizingFixed, FixedAmount: d("5")})

	got := s.Size(d("100"), opp("0.97", "0.03"))
	// 5 / 0.97 = 5.15...
	if !got.Units.Equal(d("5")) {
		t.Fatalf("units = %s, want 5", got.Units)
	}
}

func TestSkipBelowMinimum(t *testing.T) {
	s := newSizer(t, domain.SizingPolicy{Mode: domain.SizingPercentage, Fraction: d("0.10")})

	got := s.Size(d("5"), opp("0.95", "0.05"))
	if !got.Skip {
		t.Fatalf("expected skip for spend %s", got.Spend)
	}
	if !got.Units.IsZero() {
		t.Errorf("units = %s, want 0", got.Units)
	}

	zero := s.Size(decimal.Zero, opp("0.95", "0.05"))
	if !zero.Skip {
		t.Fatal("expected skip for empty balance")
	}
}

func TestUnknownModeRejected(t *testing.T) {
	if _, err := NewSizer(domain.SizingPolicy{Mode: "kelly"}, d("1")); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
