package domain

import "errors"

// ErrLedgerCorrupt reports a ledger file that exists but cannot be decoded.
var ErrLedgerCorrupt = errors.New("processed ledger is corrupt")
