package readiness

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cryptogyan1/polyarb/internal/domain"
)

var (
	wallet   = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	exchange = common.HexToAddress("0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E")
)

// fakeChain is an in-memory ChainClient. Approvals mutate its state the way
// a mined transaction would.
type fakeChain struct {
	mu         sync.Mutex
	balance    *big.Int
	allowance  *big.Int
	approved   bool
	isContract bool

	approveErr    error
	approveCalls  int
	setAllCalls   int
	codeProbes    int
	ignoreApprove bool // approve "succeeds" without changing state
}

func (f *fakeChain) BalanceOf(context.Context, common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.balance), nil
}

func (f *fakeChain) Allowance(context.Context, common.Address, common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.allowance), nil
}

func (f *fakeChain) Approve(_ context.Context, _ common.Address, amount *big.Int) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.approveCalls++
	if f.approveErr != nil {
		return common.Hash{}, f.approveErr
	}
	if !f.ignoreApprove {
		f.allowance = new(big.Int).Set(amount)
	}
	return common.HexToHash("0x01"), nil
}

func (f *fakeChain) IsApprovedForAll(context.Context, common.Address, common.Address) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.approved, nil
}

func (f *fakeChain) SetApprovalForAll(_ context.Context, _ common.Address, approved bool) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setAllCalls++
	f.approved = approved
	return common.HexToHash("0x02"), nil
}

func (f *fakeChain) IsContract(context.Context, common.Address) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codeProbes++
	return f.isContract, nil
}

func newGate(chain ChainClient, auto bool) *Gate {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewGate(chain, Config{Wallet: wallet, Exchange: exchange, AutoRemediate: auto}, logger)
}

func usdc(n int64) *big.Int { return big.NewInt(n * 1_000_000) }

func TestCheckReadyWallet(t *testing.T) {
	chain := &fakeChain{balance: usdc(50), allowance: usdc(1000), approved: true}
	res, err := newGate(chain, true).Check(context.Background(), usdc(20))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !res.Ready || res.Err() != nil {
		t.Fatalf("expected ready, got %+v", res)
	}
	if chain.approveCalls+chain.setAllCalls != 0 {
		t.Fatal("ready wallet must not send transactions")
	}
}

func TestCheckInsufficientBalance(t *testing.T) {
	chain := &fakeChain{balance: usdc(5), allowance: usdc(1000), approved: true}
	res, err := newGate(chain, true).Check(context.Background(), usdc(20))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Ready || res.Reason != domain.ReasonInsufficientBalance {
		t.Fatalf("expected insufficient balance, got %+v", res)
	}
	if res.Available.Cmp(usdc(5)) != 0 || res.Required.Cmp(usdc(20)) != 0 {
		t.Fatalf("available/required = %s/%s", res.Available, res.Required)
	}
	if !errors.Is(res.Err(), domain.ErrInsufficientBalance) {
		t.Fatalf("Err() = %v, want ErrInsufficientBalance", res.Err())
	}
	if chain.codeProbes != 0 {
		t.Fatal("balance failure should short-circuit before the wallet probe")
	}
}

func TestContractWalletNeedsManualApproval(t *testing.T) {
	chain := &fakeChain{balance: usdc(50), allowance: big.NewInt(10), approved: true, isContract: true}
	res, err := newGate(chain, true).Check(context.Background(), usdc(20))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Ready {
		t.Fatal("contract wallet without allowance must not be ready")
	}
	if res.Reason != domain.ReasonAllowanceMissing || res.Remediation != domain.RemediationManual {
		t.Fatalf("reason/remediation = %s/%s", res.Reason, res.Remediation)
	}
	if res.WalletKind != domain.WalletContract {
		t.Fatalf("wallet kind = %s", res.WalletKind)
	}
	if chain.approveCalls != 0 || chain.setAllCalls != 0 {
		t.Fatal("gate sent a transaction for a contract wallet")
	}
	if !errors.Is(res.Err(), domain.ErrAllowanceMissing) {
		t.Fatalf("Err() = %v, want ErrAllowanceMissing", res.Err())
	}
}

func TestContractWalletMissingOperatorApproval(t *testing.T) {
	chain := &fakeChain{balance: usdc(50), allowance: usdc(1000), approved: false, isContract: true}
	res, err := newGate(chain, true).Check(context.Background(), usdc(20))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Ready || res.Reason != domain.ReasonApprovalMissing || res.Remediation != domain.RemediationManual {
		t.Fatalf("unexpected result %+v", res)
	}
	if !errors.Is(res.Err(), domain.ErrApprovalMissing) {
		t.Fatalf("Err() = %v, want ErrApprovalMissing", res.Err())
	}
}

func TestEOAAutoRemediates(t *testing.T) {
	chain := &fakeChain{balance: usdc(50), allowance: big.NewInt(10), approved: false}
	res, err := newGate(chain, true).Check(context.Background(), usdc(20))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !res.Ready || !res.Remediated {
		t.Fatalf("expected remediated ready result, got %+v", res)
	}
	if chain.approveCalls != 1 || chain.setAllCalls != 1 {
		t.Fatalf("approve/setApprovalForAll calls = %d/%d, want 1/1", chain.approveCalls, chain.setAllCalls)
	}
	if len(res.TxHashes) != 2 {
		t.Fatalf("tx hashes = %v", res.TxHashes)
	}
}

func TestEOARemediationFailure(t *testing.T) {
	chain := &fakeChain{balance: usdc(50), allowance: big.NewInt(0), approved: true, approveErr: errors.New("out of gas")}
	res, err := newGate(chain, true).Check(context.Background(), usdc(20))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Ready || res.Remediation != domain.RemediationAuto || res.Cause == nil {
		t.Fatalf("expected failed auto remediation, got %+v", res)
	}
	if !errors.Is(res.Err(), domain.ErrAllowanceMissing) {
		t.Fatalf("Err() = %v, want ErrAllowanceMissing", res.Err())
	}
}

func TestEOARemediationNotEffective(t *testing.T) {
	chain := &fakeChain{balance: usdc(50), allowance: big.NewInt(0), approved: true, ignoreApprove: true}
	res, err := newGate(chain, true).Check(context.Background(), usdc(20))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Ready || res.Cause == nil || res.Reason != domain.ReasonAllowanceMissing {
		t.Fatalf("expected re-verification failure, got %+v", res)
	}
}

func TestEOAAutoRemediationDisabled(t *testing.T) {
	chain := &fakeChain{balance: usdc(50), allowance: big.NewInt(0), approved: true}
	res, err := newGate(chain, false).Check(context.Background(), usdc(20))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Ready || res.Remediation != domain.RemediationAuto {
		t.Fatalf("unexpected result %+v", res)
	}
	if chain.approveCalls != 0 {
		t.Fatal("approval sent with auto remediation disabled")
	}
}

func TestWalletKindProbedOnce(t *testing.T) {
	chain := &fakeChain{balance: usdc(50), allowance: usdc(1000), approved: true}
	g := newGate(chain, true)
	for i := 0; i < 3; i++ {
		if _, err := g.Check(context.Background(), usdc(1)); err != nil {
			t.Fatalf("Check: %v", err)
		}
	}
	if chain.codeProbes != 1 {
		t.Fatalf("code probes = %d, want 1", chain.codeProbes)
	}
}

func TestStatusIsReadOnly(t *testing.T) {
	chain := &fakeChain{balance: usdc(7), allowance: big.NewInt(10), approved: false}
	g := newGate(chain, true)

	st, err := g.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Wallet != wallet || st.Kind != domain.WalletEOA {
		t.Fatalf("status = %+v", st)
	}
	if st.Balance.Cmp(usdc(7)) != 0 || st.Allowance.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("balance/allowance = %s/%s", st.Balance, st.Allowance)
	}
	if st.Authorized(g.MinAllowance()) {
		t.Fatal("should not be authorized")
	}
	if chain.approveCalls != 0 || chain.setAllCalls != 0 {
		t.Fatal("Status sent a transaction")
	}
}
