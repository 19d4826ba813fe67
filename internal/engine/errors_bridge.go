package engine

import (
	"errors"

	"crashcore/internal/ledger"
)

// translateLedgerErr maps a plain error returned by internal/ledger
// into this package's typed taxonomy. ledger has no dependency on
// engine (see internal/ledger's package doc), so this translation
// happens here, at the call site, rather than inside ledger itself.
func translateLedgerErr(err error, fallback Code, msg string) *Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ledger.ErrInsufficientBalance) {
		return New(CodeInsufficientBalance, "insufficient balance")
	}
	return Wrap(fallback, msg, err)
}
