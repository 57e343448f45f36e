package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/cryptogyan1/polyarb/internal/domain"
)

// Polygon mainnet deployment of the CTF exchange.
const (
	PolygonChainID      = 137
	ExchangeDomainName  = "Polymarket CTF Exchange"
	ExchangeDomainVer   = "1"
	CTFExchangeAddress  = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"
	clobAuthDomainName  = "ClobAuthDomain"
	clobAuthAttestation = "This message attests that I control the given wallet"
)

// --------------------------------------------------------------------------
// EIP-712 type hashes (pre-computed keccak256 of the canonical type strings).
// --------------------------------------------------------------------------

var (
	eip712DomainTypeHash = ethcrypto.Keccak256(
		[]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"),
	)

	// The auth domain has no verifying contract.
	eip712AuthDomainTypeHash = ethcrypto.Keccak256(
		[]byte("EIP712Domain(string name,string version,uint256 chainId)"),
	)

	clobAuthTypeHash = ethcrypto.Keccak256(
		[]byte("ClobAuth(address address,string timestamp,uint256 nonce,string message)"),
	)

	orderTypeHash = ethcrypto.Keccak256(
		[]byte("Order(uint256 salt,address maker,address signer,address taker,uint256 tokenId,uint256 makerAmount,uint256 takerAmount,uint256 expiration,uint256 nonce,uint256 feeRateBps,uint8 side,uint8 signatureType)"),
	)
)

// Domain is an EIP-712 signing domain.
type Domain struct {
	Name              string
	Version           string
	ChainID           int64
	VerifyingContract common.Address
}

// ExchangeDomain returns the order-signing domain of the CTF exchange at
// the given address.
func ExchangeDomain(chainID int64, exchange string) Domain {
	return Domain{
		Name:              ExchangeDomainName,
		Version:           ExchangeDomainVer,
		ChainID:           chainID,
		VerifyingContract: common.HexToAddress(exchange),
	}
}

// Separator returns keccak256(abi.encode(typeHash, name, version, chainId, verifyingContract)).
func (d Domain) Separator() []byte {
	return ethcrypto.Keccak256(
		concatBytes(
			eip712DomainTypeHash,
			ethcrypto.Keccak256([]byte(d.Name)),
			ethcrypto.Keccak256([]byte(d.Version)),
			bigIntTo32Bytes(big.NewInt(d.ChainID)),
			common.LeftPadBytes(d.VerifyingContract.Bytes(), 32),
		),
	)
}

// Signer holds the trading key and signs exchange orders and CLOB auth
// messages. It is safe for concurrent use.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	domain     Domain
	orderSep   []byte // cached exchange domain separator
	authSep    []byte // cached ClobAuth domain separator
}

// NewSigner creates a Signer from a hex-encoded secp256k1 private key.
func NewSigner(privateKeyHex string, d Domain) (*Signer, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}

	return &Signer{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
		domain:     d,
		orderSep:   d.Separator(),
		authSep: ethcrypto.Keccak256(
			concatBytes(
				eip712AuthDomainTypeHash,
				ethcrypto.Keccak256([]byte(clobAuthDomainName)),
				ethcrypto.Keccak256([]byte("1")),
				bigIntTo32Bytes(big.NewInt(d.ChainID)),
			),
		),
	}, nil
}

// Address returns the Ethereum address derived from the signer's private key.
func (s *Signer) Address() common.Address {
	return s.address
}

// PrivateKey exposes the key for transaction signing (approvals).
func (s *Signer) PrivateKey() *ecdsa.PrivateKey {
	return s.privateKey
}

// Domain returns the order-signing domain.
func (s *Signer) Domain() Domain {
	return s.domain
}

// SignAuthMessage signs the ClobAuth message used to create or derive CLOB
// API credentials (L1 authentication).
func (s *Signer) SignAuthMessage(timestamp, nonce int64) (string, error) {
	structHash := ethcrypto.Keccak256(
		concatBytes(
			clobAuthTypeHash,
			common.LeftPadBytes(s.address.Bytes(), 32),
			ethcrypto.Keccak256([]byte(strconv.FormatInt(timestamp, 10))),
			bigIntTo32Bytes(big.NewInt(nonce)),
			ethcrypto.Keccak256([]byte(clobAuthAttestation)),
		),
	)

	return s.signDigest(eip712Hash(s.authSep, structHash))
}

// SignOrder computes the EIP-712 digest of o under the exchange domain and
// stores the signature in o.Signature.
func (s *Signer) SignOrder(o *domain.SignedOrder) error {
	digest, err := OrderDigest(s.orderSep, *o)
	if err != nil {
		return err
	}
	sig, err := s.signDigest(digest)
	if err != nil {
		return err
	}
	o.Signature = sig
	return nil
}

// OrderDigest returns the EIP-712 digest of o for the given domain separator.
func OrderDigest(domainSep []byte, o domain.SignedOrder) ([]byte, error) {
	structHash, err := orderStructHash(o)
	if err != nil {
		return nil, err
	}
	return eip712Hash(domainSep, structHash), nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// eip712Hash computes the final EIP-712 digest:
//
//	keccak256("\x19\x01" || domainSeparator || structHash)
func eip712Hash(domainSep, structHash []byte) []byte {
	return ethcrypto.Keccak256(
		concatBytes(
			[]byte{0x19, 0x01},
			domainSep,
			structHash,
		),
	)
}

// signDigest signs a 32-byte digest using secp256k1 and returns the
// hex-encoded signature (r || s || v, 65 bytes).
func (s *Signer) signDigest(digest []byte) (string, error) {
	sig, err := ethcrypto.Sign(digest, s.privateKey)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: %w: %v", domain.ErrSigningFailed, err)
	}

	// go-ethereum returns v in {0,1}; the exchange expects v in {27,28}.
	if sig[64] < 27 {
		sig[64] += 27
	}

	return "0x" + hex.EncodeToString(sig), nil
}

func orderStructHash(o domain.SignedOrder) ([]byte, error) {
	fields := []struct {
		name string
		v    *big.Int
	}{
		{"salt", o.Salt},
		{"tokenId", o.TokenID},
		{"makerAmount", o.MakerAmount},
		{"takerAmount", o.TakerAmount},
		{"expiration", o.Expiration},
		{"nonce", o.Nonce},
		{"feeRateBps", o.FeeRateBps},
	}
	for _, f := range fields {
		if f.v == nil || f.v.Sign() < 0 {
			return nil, fmt.Errorf("crypto/signer: %w: %s missing or negative", domain.ErrInvalidOrder, f.name)
		}
	}
	for _, a := range []string{o.Maker, o.Signer, o.Taker} {
		if !common.IsHexAddress(a) {
			return nil, fmt.Errorf("crypto/signer: %w: bad address %q", domain.ErrInvalidOrder, a)
		}
	}

	return ethcrypto.Keccak256(
		concatBytes(
			orderTypeHash,
			bigIntTo32Bytes(o.Salt),
			common.LeftPadBytes(common.HexToAddress(o.Maker).Bytes(), 32),
			common.LeftPadBytes(common.HexToAddress(o.Signer).Bytes(), 32),
			common.LeftPadBytes(common.HexToAddress(o.Taker).Bytes(), 32),
			bigIntTo32Bytes(o.TokenID),
			bigIntTo32Bytes(o.MakerAmount),
			bigIntTo32Bytes(o.TakerAmount),
			bigIntTo32Bytes(o.Expiration),
			bigIntTo32Bytes(o.Nonce),
			bigIntTo32Bytes(o.FeeRateBps),
			bigIntTo32Bytes(big.NewInt(int64(o.Side.Uint8()))),
			bigIntTo32Bytes(big.NewInt(int64(o.SignatureType))),
		),
	), nil
}

// bigIntTo32Bytes returns a 32-byte big-endian representation of n.
func bigIntTo32Bytes(n *big.Int) []byte {
	return common.LeftPadBytes(n.Bytes(), 32)
}

// concatBytes concatenates multiple byte slices into one.
func concatBytes(slices ...[]byte) []byte {
	total := 0
	for _, s := range slices {
		total += len(s)
	}
	buf := make([]byte, 0, total)
	for _, s := range slices {
		buf = append(buf, s...)
	}
	return buf
}
