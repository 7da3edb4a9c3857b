package ark

import "github.com/arkwallet/arkwalletd/internal/arkerr"

// The error taxonomy of spec.md §7 lives in internal/arkerr so that
// internal/arkscript (which internal/ark itself depends on) can construct
// these same types without an import cycle. These aliases let every other
// package keep spelling them ark.ConfigError, ark.ErrCancelled, etc.
type (
	ConfigError      = arkerr.ConfigError
	ProviderError    = arkerr.ProviderError
	ProtocolError    = arkerr.ProtocolError
	SettlementFailed = arkerr.SettlementFailed
)

var (
	ErrNotInitialized    = arkerr.ErrNotInitialized
	ErrInsufficientFunds = arkerr.ErrInsufficientFunds
	ErrAmountBelowDust   = arkerr.ErrAmountBelowDust
	ErrAmountNonPositive = arkerr.ErrAmountNonPositive
	ErrCancelled         = arkerr.ErrCancelled
)
