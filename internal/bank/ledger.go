package bank

import (
	"errors"
	"sync"
)

var (
	// ErrInsufficientFunds is returned when a transfer exceeds the
	// sender's balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrUnknownAccount is returned when the sender has never been funded.
	ErrUnknownAccount = errors.New("unknown account")
)

// Ledger is an in-memory value ledger. It stands in for the settlement
// layer that actually holds participant funds: deposits fund an
// account, transfers move value between accounts atomically.
type Ledger struct {
	mu       sync.RWMutex
	balances map[string]uint64
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{balances: make(map[string]uint64)}
}

// Deposit credits amount to the account, creating it if needed.
func (l *Ledger) Deposit(account string, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[account] += amount
}

// Transfer moves amount from one account to another. The ledger is
// left unchanged on any error.
func (l *Ledger) Transfer(from, to string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	balance, exists := l.balances[from]
	if !exists {
		return ErrUnknownAccount
	}
	if balance < amount {
		return ErrInsufficientFunds
	}
	l.balances[from] = balance - amount
	l.balances[to] += amount
	return nil
}

// Balance returns the current balance of an account. Unknown accounts
// have a zero balance.
func (l *Ledger) Balance(account string) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[account]
}
