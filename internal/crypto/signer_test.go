package crypto

import (
	"encoding/hex"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	"github.com/cryptogyan1/polyarb/internal/domain"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

const testProxy = "0x1111111111111111111111111111111111111111"

func newTestBuilder(t *testing.T) (*OrderBuilder, *Signer) {
	t.Helper()
	s, err := NewSigner("0x"+testKey, ExchangeDomain(PolygonChainID, CTFExchangeAddress))
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	b, err := NewOrderBuilder(s, OrderBuilderConfig{Maker: testProxy})
	if err != nil {
		t.Fatalf("NewOrderBuilder: %v", err)
	}
	return b, s
}

func recoverSigner(t *testing.T, digest []byte, sigHex string) common.Address {
	t.Helper()
	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	if len(sig) != 65 {
		t.Fatalf("signature length = %d, want 65", len(sig))
	}
	if sig[64] != 27 && sig[64] != 28 {
		t.Fatalf("v = %d, want 27 or 28", sig[64])
	}
	sig[64] -= 27
	pub, err := ethcrypto.SigToPub(digest, sig)
	if err != nil {
		t.Fatalf("SigToPub: %v", err)
	}
	return ethcrypto.PubkeyToAddress(*pub)
}

func TestBuildSignsRecoverableOrder(t *testing.T) {
	b, s := newTestBuilder(t)

	o, err := b.Build(LegParams{
		TokenID: "71321045679252212594626385532706912750332728571942532289631379312455583992563",
		Side:    domain.OrderSideBuy,
		Price:   decimal.RequireFromString("0.45"),
		Size:    decimal.RequireFromString("10"),
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	digest, err := OrderDigest(s.Domain().Separator(), o)
	if err != nil {
		t.Fatalf("OrderDigest: %v", err)
	}
	if got := recoverSigner(t, digest, o.Signature); got != s.Address() {
		t.Fatalf("recovered %s, want %s", got.Hex(), s.Address().Hex())
	}

	if o.Maker != common.HexToAddress(testProxy).Hex() {
		t.Errorf("maker = %s, want proxy", o.Maker)
	}
	if o.Signer != s.Address().Hex() {
		t.Errorf("signer = %s, want %s", o.Signer, s.Address().Hex())
	}
	if o.Taker != (common.Address{}).Hex() {
		t.Errorf("taker = %s, want zero address", o.Taker)
	}
	if o.FeeRateBps.Sign() != 0 {
		t.Errorf("fee = %s, want 0", o.FeeRateBps)
	}
}

func TestBuildAmountsBySide(t *testing.T) {
	b, _ := newTestBuilder(t)
	price := decimal.RequireFromString("0.45")
	size := decimal.RequireFromString("10")

	buy, err := b.Build(LegParams{TokenID: "123", Side: domain.OrderSideBuy, Price: price, Size: size})
	if err != nil {
		t.Fatalf("Build buy: %v", err)
	}
	if buy.MakerAmount.Cmp(big.NewInt(4_500_000)) != 0 || buy.TakerAmount.Cmp(big.NewInt(10_000_000)) != 0 {
		t.Errorf("buy amounts = %s/%s, want 4500000/10000000", buy.MakerAmount, buy.TakerAmount)
	}

	sell, err := b.Build(LegParams{TokenID: "123", Side: domain.OrderSideSell, Price: price, Size: size})
	if err != nil {
		t.Fatalf("Build sell: %v", err)
	}
	if sell.MakerAmount.Cmp(big.NewInt(10_000_000)) != 0 || sell.TakerAmount.Cmp(big.NewInt(4_500_000)) != 0 {
		t.Errorf("sell amounts = %s/%s, want 10000000/4500000", sell.MakerAmount, sell.TakerAmount)
	}
	if sell.Side.Uint8() != 1 || buy.Side.Uint8() != 0 {
		t.Errorf("side discriminators = %d/%d", buy.Side.Uint8(), sell.Side.Uint8())
	}
}

func TestBuildUniqueNonceAndSalt(t *testing.T) {
	b, _ := newTestBuilder(t)
	fixed := time.Unix(1_700_000_000, 0)
	b.now = func() time.Time { return fixed }

	params := LegParams{TokenID: "42", Side: domain.OrderSideBuy, Price: decimal.RequireFromString("0.5"), Size: decimal.NewFromInt(2)}
	first, err := b.Build(params)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	second, err := b.Build(params)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if second.Nonce.Cmp(first.Nonce) <= 0 {
		t.Errorf("nonce did not increase: %s then %s", first.Nonce, second.Nonce)
	}
	if first.Salt.Cmp(second.Salt) == 0 {
		t.Errorf("salt reused: %s", first.Salt)
	}
	if first.Signature == second.Signature {
		t.Error("two orders share a signature")
	}
	if want := fixed.Add(DefaultOrderValidity).Unix(); first.Expiration.Int64() != want {
		t.Errorf("expiration = %s, want %d", first.Expiration, want)
	}
}

func TestBuildRejectsBadInput(t *testing.T) {
	b, _ := newTestBuilder(t)

	if _, err := b.Build(LegParams{TokenID: "1", Side: domain.OrderSideBuy, Price: decimal.Zero, Size: decimal.NewFromInt(1)}); err == nil {
		t.Error("expected error for zero price")
	}
	if _, err := b.Build(LegParams{TokenID: "", Side: domain.OrderSideBuy, Price: decimal.RequireFromString("0.5"), Size: decimal.NewFromInt(1)}); err == nil {
		t.Error("expected error for empty token id")
	}
}

func TestValidityIsClamped(t *testing.T) {
	s, err := NewSigner(testKey, ExchangeDomain(PolygonChainID, CTFExchangeAddress))
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	for _, tt := range []struct {
		in, want time.Duration
	}{
		{0, DefaultOrderValidity},
		{time.Second, MinOrderValidity},
		{24 * time.Hour, MaxOrderValidity},
		{30 * time.Minute, 30 * time.Minute},
	} {
		b, err := NewOrderBuilder(s, OrderBuilderConfig{Validity: tt.in})
		if err != nil {
			t.Fatalf("NewOrderBuilder: %v", err)
		}
		if b.validity != tt.want {
			t.Errorf("validity(%s) = %s, want %s", tt.in, b.validity, tt.want)
		}
	}
}

func TestTokenIDFromString(t *testing.T) {
	n, err := TokenIDFromString("12345")
	if err != nil || n.Cmp(big.NewInt(12345)) != 0 {
		t.Fatalf("decimal id = %v, %v", n, err)
	}

	h, err := TokenIDFromString("0xdeadbeef-not-decimal")
	if err != nil {
		t.Fatalf("hashed id: %v", err)
	}
	want := new(big.Int).SetBytes(ethcrypto.Keccak256([]byte("0xdeadbeef-not-decimal")))
	if h.Cmp(want) != 0 {
		t.Fatalf("hashed id = %s, want %s", h, want)
	}
}

func TestDomainSeparatorDependsOnContract(t *testing.T) {
	a := ExchangeDomain(PolygonChainID, CTFExchangeAddress).Separator()
	b := ExchangeDomain(PolygonChainID, "0x0000000000000000000000000000000000000001").Separator()
	c := ExchangeDomain(80002, CTFExchangeAddress).Separator()
	if string(a) == string(b) || string(a) == string(c) {
		t.Fatal("domain separator ignores verifying contract or chain id")
	}
}

func TestSignAuthMessageRecoverable(t *testing.T) {
	s, err := NewSigner(testKey, ExchangeDomain(PolygonChainID, CTFExchangeAddress))
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	sig, err := s.SignAuthMessage(1_700_000_000, 0)
	if err != nil {
		t.Fatalf("SignAuthMessage: %v", err)
	}
	if len(strings.TrimPrefix(sig, "0x")) != 130 {
		t.Fatalf("signature hex length = %d, want 130", len(strings.TrimPrefix(sig, "0x")))
	}
}
