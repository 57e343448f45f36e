package executor

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// usdcDecimals is the fixed-point scale of on-chain USDC amounts.
const usdcDecimals = 6

// BalanceReader reads the USDC balance of a wallet in base units.
type BalanceReader interface {
	BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
}

// BalanceState is the last observed USDC balance of the trading wallet. It
// is the only mutable state shared between executions and is always
// refreshed from the chain before sizing.
type BalanceState struct {
	reader BalanceReader
	wallet common.Address

	mu   sync.Mutex
	last decimal.Decimal
}

// NewBalanceState creates a balance view of wallet.
func NewBalanceState(reader BalanceReader, wallet common.Address) *BalanceState {
	return &BalanceState{reader: reader, wallet: wallet, last: decimal.Zero}
}

// Refresh reads the balance from the chain and stores it. The mutex is held
// across the read so concurrent refreshes are serialized.
func (b *BalanceState) Refresh(ctx context.Context) (decimal.Decimal, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	raw, err := b.reader.BalanceOf(ctx, b.wallet)
	if err != nil {
		return b.last, fmt.Errorf("executor/balance: refresh: %w", err)
	}
	b.last = FromBaseUnits(raw)
	return b.last, nil
}

// FromBaseUnits converts a USDC base-unit amount to dollars.
func FromBaseUnits(v *big.Int) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -usdcDecimals)
}

// ToBaseUnits converts dollars to USDC base units, rounding up so a
// requirement is never understated.
func ToBaseUnits(v decimal.Decimal) *big.Int {
	return v.Shift(usdcDecimals).Ceil().BigInt()
}
