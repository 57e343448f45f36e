package crypto

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	"github.com/cryptogyan1/polyarb/internal/domain"
)

const (
	// amountDecimals is the fixed-point scale of USDC and CTF share amounts.
	amountDecimals = 6

	MinOrderValidity     = time.Minute
	MaxOrderValidity     = time.Hour
	DefaultOrderValidity = 5 * time.Minute
)

// LegParams describes one order to build.
type LegParams struct {
	TokenID string
	Side    domain.OrderSide
	Price   decimal.Decimal
	Size    decimal.Decimal // shares
}

// OrderBuilderConfig configures how orders are populated.
type OrderBuilderConfig struct {
	Maker         string // funder (proxy or EOA) address
	SignatureType int    // domain.SignatureType*
	FeeRateBps    int64
	Validity      time.Duration // clamped to [MinOrderValidity, MaxOrderValidity]
}

// OrderBuilder turns leg parameters into signed exchange orders. Every call
// to Build produces a new salt and a strictly increasing nonce.
type OrderBuilder struct {
	signer    *Signer
	maker     common.Address
	sigType   int
	feeRate   *big.Int
	validity  time.Duration
	lastNonce atomic.Int64
	now       func() time.Time
}

// NewOrderBuilder creates a builder that signs with signer. An empty Maker
// means the signer trades from its own address.
func NewOrderBuilder(signer *Signer, cfg OrderBuilderConfig) (*OrderBuilder, error) {
	maker := signer.Address()
	if cfg.Maker != "" {
		if !common.IsHexAddress(cfg.Maker) {
			return nil, fmt.Errorf("crypto/order: invalid maker address %q", cfg.Maker)
		}
		maker = common.HexToAddress(cfg.Maker)
	}

	validity := cfg.Validity
	switch {
	case validity <= 0:
		validity = DefaultOrderValidity
	case validity < MinOrderValidity:
		validity = MinOrderValidity
	case validity > MaxOrderValidity:
		validity = MaxOrderValidity
	}

	return &OrderBuilder{
		signer:   signer,
		maker:    maker,
		sigType:  cfg.SignatureType,
		feeRate:  big.NewInt(cfg.FeeRateBps),
		validity: validity,
		now:      time.Now,
	}, nil
}

// Maker returns the funder address orders are placed for.
func (b *OrderBuilder) Maker() common.Address { return b.maker }

// Build populates and signs one order.
func (b *OrderBuilder) Build(p LegParams) (domain.SignedOrder, error) {
	if !p.Price.IsPositive() || !p.Size.IsPositive() {
		return domain.SignedOrder{}, fmt.Errorf("crypto/order: %w: price=%s size=%s", domain.ErrInvalidOrder, p.Price, p.Size)
	}
	tokenID, err := TokenIDFromString(p.TokenID)
	if err != nil {
		return domain.SignedOrder{}, err
	}
	salt, err := randomSalt()
	if err != nil {
		return domain.SignedOrder{}, err
	}

	notional := toBaseUnits(p.Price.Mul(p.Size))
	shares := toBaseUnits(p.Size)
	makerAmt, takerAmt := notional, shares
	if p.Side == domain.OrderSideSell {
		makerAmt, takerAmt = shares, notional
	}

	now := b.now()
	o := domain.SignedOrder{
		Salt:          salt,
		Maker:         b.maker.Hex(),
		Signer:        b.signer.Address().Hex(),
		Taker:         common.Address{}.Hex(),
		TokenID:       tokenID,
		MakerAmount:   makerAmt,
		TakerAmount:   takerAmt,
		Expiration:    big.NewInt(now.Add(b.validity).Unix()),
		Nonce:         big.NewInt(b.nextNonce(now)),
		FeeRateBps:    new(big.Int).Set(b.feeRate),
		Side:          p.Side,
		SignatureType: b.sigType,
	}
	if err := b.signer.SignOrder(&o); err != nil {
		return domain.SignedOrder{}, err
	}
	return o, nil
}

// nextNonce returns a timestamp-derived nonce that never repeats within the
// process, even when two orders are built in the same nanosecond.
func (b *OrderBuilder) nextNonce(now time.Time) int64 {
	for {
		last := b.lastNonce.Load()
		n := now.UnixNano()
		if n <= last {
			n = last + 1
		}
		if b.lastNonce.CompareAndSwap(last, n) {
			return n
		}
	}
}

// TokenIDFromString converts an outcome token identifier to its uint256
// form. CLOB token ids are decimal strings; anything else is hashed.
func TokenIDFromString(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("crypto/order: %w: empty token id", domain.ErrInvalidOrder)
	}
	if n, ok := new(big.Int).SetString(s, 10); ok && n.Sign() >= 0 && n.BitLen() <= 256 {
		return n, nil
	}
	return new(big.Int).SetBytes(ethcrypto.Keccak256([]byte(s))), nil
}

func toBaseUnits(v decimal.Decimal) *big.Int {
	return v.Shift(amountDecimals).Truncate(0).BigInt()
}

func randomSalt() (*big.Int, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return nil, fmt.Errorf("crypto/order: generating salt: %w", err)
	}
	return new(big.Int).SetUint64(binary.BigEndian.Uint64(buf[:])), nil
}
