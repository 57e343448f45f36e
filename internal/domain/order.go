package domain

import "math/big"

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Uint8 returns the on-chain side discriminator (0 = BUY, 1 = SELL).
func (s OrderSide) Uint8() uint8 {
	if s == OrderSideSell {
		return 1
	}
	return 0
}

// Wire returns the CLOB API spelling ("BUY" / "SELL").
func (s OrderSide) Wire() string {
	if s == OrderSideSell {
		return "SELL"
	}
	return "BUY"
}

// OrderType indicates the time-in-force policy.
type OrderType string

const (
	OrderTypeGTC OrderType = "GTC" // Good-Till-Cancelled
	OrderTypeGTD OrderType = "GTD" // Good-Till-Date
	OrderTypeFOK OrderType = "FOK" // Fill-Or-Kill
)

// Signature types understood by the CTF exchange.
const (
	SignatureTypeEOA        = 0
	SignatureTypePolyProxy  = 1
	SignatureTypeGnosisSafe = 2
)

// SignedOrder is one fully populated CTF exchange order plus its EIP-712
// signature. A SignedOrder is built for exactly one leg and submitted once.
type SignedOrder struct {
	Salt          *big.Int
	Maker         string // funder / proxy wallet
	Signer        string // EOA that produced Signature
	Taker         string // zero address: open order
	TokenID       *big.Int
	MakerAmount   *big.Int
	TakerAmount   *big.Int
	Expiration    *big.Int
	Nonce         *big.Int
	FeeRateBps    *big.Int
	Side          OrderSide
	SignatureType int
	Signature     string // 0x-prefixed 65-byte hex
}

// LegStatus is the reported outcome of one submitted leg.
type LegStatus string

const (
	LegAccepted      LegStatus = "accepted"
	LegRejected      LegStatus = "rejected"
	LegNetworkError  LegStatus = "network_error"
	LegSigningFailed LegStatus = "signing_failed"
	LegSimulated     LegStatus = "simulated"
)

// OrderResult is the exchange's answer to an order submission.
type OrderResult struct {
	Success bool
	OrderID string
	Status  string
	Message string
}
