package domain

import "time"

// Wallet is a per-user balance ledger with a frozen (held) sub-balance.
type Wallet struct {
	ID            string
	UserID        string
	Balance       Money
	FrozenBalance Money
	Currency      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
