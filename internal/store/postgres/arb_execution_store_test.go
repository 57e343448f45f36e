package postgres

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cryptogyan1/polyarb/internal/domain"
)

func TestParseDecimals(t *testing.T) {
	var price, size decimal.Decimal
	err := parseDecimals(
		decimalField{"price", "0.450000", &price},
		decimalField{"size", "10.5", &size},
	)
	if err != nil {
		t.Fatalf("parseDecimals: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("0.45")) || !size.Equal(decimal.RequireFromString("10.5")) {
		t.Fatalf("price=%s size=%s", price, size)
	}

	if err := parseDecimals(decimalField{"units", "", &size}); err == nil {
		t.Fatal("expected error for empty value")
	}
}

func TestStatusOf(t *testing.T) {
	if got := statusOf(domain.ArbExecution{}); got != domain.ArbExecNone {
		t.Fatalf("empty status = %q", got)
	}
	if got := statusOf(domain.ArbExecution{Status: domain.ArbExecPartial}); got != domain.ArbExecPartial {
		t.Fatalf("status = %q", got)
	}
}

func TestNullTime(t *testing.T) {
	if nullTime(time.Time{}) != nil {
		t.Fatal("zero time should be NULL")
	}
	now := time.Now()
	if p := nullTime(now); p == nil || !p.Equal(now) {
		t.Fatal("non-zero time lost")
	}
}

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  ClientConfig
		want string
	}{
		{"explicit", ClientConfig{DSN: "postgres://x"}, "postgres://x"},
		{"defaults", ClientConfig{Host: "db", User: "u", Password: "p", Database: "arb"}, "postgres://u:p@db:5432/arb?sslmode=disable"},
		{"ssl", ClientConfig{Host: "db", Port: 6543, User: "u", Password: "p", Database: "arb", SSLMode: "require"}, "postgres://u:p@db:6543/arb?sslmode=require"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := DSN(tc.cfg); got != tc.want {
				t.Fatalf("DSN = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	data, err := migrationsFS.ReadFile("migrations/001_executions.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("empty migration")
	}
}
