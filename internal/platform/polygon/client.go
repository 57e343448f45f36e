// Package polygon is the on-chain side of the bot: USDC balance and
// allowance, CTF operator approval, and wallet code probing on Polygon.
package polygon

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/cryptogyan1/polyarb/internal/domain"
)

// Polygon mainnet token contracts.
const (
	USDCAddress = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"
	CTFAddress  = "0x4D97DCd97eC945f40cF65F87097ACe5EA0476045"
)

// Config configures a Client.
type Config struct {
	RPCURL    string
	ChainID   int64
	USDC      string // defaults to USDCAddress
	CTF       string // defaults to CTFAddress
	TxTimeout time.Duration
}

// Client implements the chain operations over an ethclient connection.
// Write methods sign with the configured key and wait for the receipt.
type Client struct {
	eth       *ethclient.Client
	chainID   *big.Int
	key       *ecdsa.PrivateKey
	usdc      common.Address
	ctf       common.Address
	erc20     abi.ABI
	erc1155   abi.ABI
	txTimeout time.Duration
	logger    *slog.Logger
}

// Dial connects to the RPC endpoint and verifies the chain id. key may be nil
// for a read-only client; write methods then fail.
func Dial(ctx context.Context, cfg Config, key *ecdsa.PrivateKey, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.RPCURL) == "" {
		return nil, errors.New("polygon: rpc url is empty")
	}
	erc20, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		return nil, fmt.Errorf("polygon: parse erc20 abi: %w", err)
	}
	erc1155, err := abi.JSON(strings.NewReader(erc1155ABIJSON))
	if err != nil {
		return nil, fmt.Errorf("polygon: parse erc1155 abi: %w", err)
	}

	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("polygon: dial: %w", err)
	}
	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("polygon: chain id: %w", err)
	}
	if cfg.ChainID != 0 && chainID.Int64() != cfg.ChainID {
		eth.Close()
		return nil, fmt.Errorf("polygon: rpc is on chain %s, expected %d", chainID, cfg.ChainID)
	}

	c := &Client{
		eth:       eth,
		chainID:   chainID,
		key:       key,
		usdc:      common.HexToAddress(orDefault(cfg.USDC, USDCAddress)),
		ctf:       common.HexToAddress(orDefault(cfg.CTF, CTFAddress)),
		erc20:     erc20,
		erc1155:   erc1155,
		txTimeout: cfg.TxTimeout,
		logger:    logger.With(slog.String("component", "polygon")),
	}
	if c.txTimeout <= 0 {
		c.txTimeout = 2 * time.Minute
	}
	return c, nil
}

// Close releases the RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// BalanceOf returns the USDC balance of owner in base units.
func (c *Client) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	return c.callUint256(ctx, c.usdc, c.erc20, "balanceOf", owner)
}

// Allowance returns the USDC allowance owner granted to spender.
func (c *Client) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	return c.callUint256(ctx, c.usdc, c.erc20, "allowance", owner, spender)
}

// IsApprovedForAll reports whether operator may move owner's CTF positions.
func (c *Client) IsApprovedForAll(ctx context.Context, owner, operator common.Address) (bool, error) {
	vals, err := c.call(ctx, c.ctf, c.erc1155, "isApprovedForAll", owner, operator)
	if err != nil {
		return false, err
	}
	ok, isBool := vals[0].(bool)
	if !isBool {
		return false, fmt.Errorf("polygon: isApprovedForAll: unexpected type %T", vals[0])
	}
	return ok, nil
}

// IsContract reports whether code is deployed at addr.
func (c *Client) IsContract(ctx context.Context, addr common.Address) (bool, error) {
	code, err := c.eth.CodeAt(ctx, addr, nil)
	if err != nil {
		return false, fmt.Errorf("polygon: code at %s: %w: %v", addr.Hex(), domain.ErrNetwork, err)
	}
	return len(code) > 0, nil
}

// Approve sets the USDC allowance for spender and waits for the receipt.
func (c *Client) Approve(ctx context.Context, spender common.Address, amount *big.Int) (common.Hash, error) {
	return c.transact(ctx, c.usdc, c.erc20, "approve", spender, amount)
}

// SetApprovalForAll sets CTF operator approval and waits for the receipt.
func (c *Client) SetApprovalForAll(ctx context.Context, operator common.Address, approved bool) (common.Hash, error) {
	return c.transact(ctx, c.ctf, c.erc1155, "setApprovalForAll", operator, approved)
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

func (c *Client) call(ctx context.Context, to common.Address, contractABI abi.ABI, method string, args ...any) ([]any, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("polygon: pack %s: %w", method, err)
	}
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("polygon: call %s: %w: %v", method, domain.ErrNetwork, err)
	}
	vals, err := contractABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("polygon: unpack %s: %w", method, err)
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("polygon: %s returned no values", method)
	}
	return vals, nil
}

func (c *Client) callUint256(ctx context.Context, to common.Address, contractABI abi.ABI, method string, args ...any) (*big.Int, error) {
	vals, err := c.call(ctx, to, contractABI, method, args...)
	if err != nil {
		return nil, err
	}
	n, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("polygon: %s: unexpected type %T", method, vals[0])
	}
	return n, nil
}

func (c *Client) transact(ctx context.Context, to common.Address, contractABI abi.ABI, method string, args ...any) (common.Hash, error) {
	if c.key == nil {
		return common.Hash{}, errors.New("polygon: client has no signing key")
	}
	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("polygon: transactor: %w", err)
	}
	opts.Context = ctx

	contract := bind.NewBoundContract(to, contractABI, c.eth, c.eth, c.eth)
	tx, err := contract.Transact(opts, method, args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("polygon: send %s: %w", method, err)
	}
	c.logger.Info("transaction sent",
		slog.String("method", method),
		slog.String("to", to.Hex()),
		slog.String("tx", tx.Hash().Hex()),
	)

	waitCtx, cancel := context.WithTimeout(ctx, c.txTimeout)
	defer cancel()
	receipt, err := bind.WaitMined(waitCtx, c.eth, tx)
	if err != nil {
		return tx.Hash(), fmt.Errorf("polygon: wait %s %s: %w", method, tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return tx.Hash(), fmt.Errorf("polygon: %s %s reverted in block %s", method, tx.Hash().Hex(), receipt.BlockNumber)
	}
	return tx.Hash(), nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
