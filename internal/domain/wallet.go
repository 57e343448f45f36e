package domain

// WalletKind distinguishes a key-controlled account from a smart-contract
// wallet such as a Gnosis Safe or Polymarket proxy.
type WalletKind string

const (
	WalletEOA      WalletKind = "eoa"
	WalletContract WalletKind = "contract"
)

// CanSelfApprove reports whether the bot's key can send approval
// transactions on behalf of the wallet.
func (k WalletKind) CanSelfApprove() bool { return k == WalletEOA }
