package errors

import stderrors "errors"

// Ledger platform failures. Any of them aborts the instruction that hit it.
var (
	ErrInsufficientFunds = stderrors.New("ledger: insufficient funds")
	ErrBalanceOverflow   = stderrors.New("ledger: balance overflow")
	ErrAccountExists     = stderrors.New("ledger: account already in use")
	ErrAccountNotFound   = stderrors.New("ledger: account not found")
	ErrInvalidAuthority  = stderrors.New("ledger: invalid authority")
	ErrAssetMismatch     = stderrors.New("ledger: asset mismatch")
	ErrHoldingNotEmpty   = stderrors.New("ledger: holding account not empty")
	ErrAssetExists       = stderrors.New("ledger: asset already minted")
)
