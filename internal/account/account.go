// Package account holds the consolidated balance and append-only
// transaction ledger closed trades post to. Grounded on
// original_source/include/account.h; the persistence hook after each
// closing transaction is modeled on the teacher's internal/db.Logger
// fire-and-forget audit-insert idiom (wired concretely in internal/store).
package account

import (
	"sync"

	"btfast/internal/calendar"
	"btfast/internal/event"
)

// Transaction is an immutable, closed round-trip trade.
type Transaction struct {
	Ticket       string
	StrategyName string
	Symbol       string
	Side         event.Action // Buy (long) or SellShort (short), the entry action
	Quantity     int
	EntryTime    calendar.DateTime
	ExitTime     calendar.DateTime
	EntryPrice   float64
	ExitPrice    float64
	MAETicks     float64
	MFETicks     float64
	BarsInTrade  int
	NetPL        float64
	CumulativePL float64
	TickValue    float64 // the instrument's tick_value at the time of the trade, for avg_ticks
}

// Account is the running balance plus its append-only transaction history.
// Balance advances only on closing fills, matching spec §4.5/§4.8.
type Account struct {
	mu             sync.Mutex
	InitialBalance float64
	balance        float64
	transactions   []Transaction
	onTransaction  func(Transaction)
}

// New constructs an Account seeded at initialBalance.
func New(initialBalance float64) *Account {
	return &Account{InitialBalance: initialBalance, balance: initialBalance}
}

// OnTransaction registers a hook invoked synchronously after each
// transaction is appended — the persistence seam internal/store's
// StrategyStore implementations attach to, mirroring the teacher's
// fire-and-forget db.Logger.LogTrade call after a fill.
func (a *Account) OnTransaction(fn func(Transaction)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onTransaction = fn
}

// AddTransaction appends a closed trade, updates the running balance by its
// net PnL, and stamps its cumulative PnL. The invariant
// Σ net_pl == balance − initial_balance holds after every call.
func (a *Account) AddTransaction(t Transaction) {
	a.mu.Lock()
	a.balance += t.NetPL
	t.CumulativePL = a.balance - a.InitialBalance
	a.transactions = append(a.transactions, t)
	hook := a.onTransaction
	a.mu.Unlock()
	if hook != nil {
		hook(t)
	}
}

// Balance returns the current running balance.
func (a *Account) Balance() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance
}

// Transactions returns a defensive copy of the transaction history, in
// append order.
func (a *Account) Transactions() []Transaction {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Transaction, len(a.transactions))
	copy(out, a.transactions)
	return out
}

// LargestLoss returns the most negative net_pl across history, or 0 if no
// losing trades exist.
func (a *Account) LargestLoss() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	var worst float64
	for _, t := range a.transactions {
		if t.NetPL < worst {
			worst = t.NetPL
		}
	}
	return worst
}

// Reset clears the transaction history and restores the initial balance,
// used between independent optimization/validation runs sharing a worker.
func (a *Account) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.balance = a.InitialBalance
	a.transactions = nil
}
