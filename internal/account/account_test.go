package account

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddTransactionUpdatesBalanceLaw(t *testing.T) {
	a := New(10000)
	a.AddTransaction(Transaction{Ticket: "T1", NetPL: 50})
	a.AddTransaction(Transaction{Ticket: "T2", NetPL: -20})
	a.AddTransaction(Transaction{Ticket: "T3", NetPL: 5})

	var sum float64
	for _, tx := range a.Transactions() {
		sum += tx.NetPL
	}
	assert.Equal(t, a.Balance()-a.InitialBalance, sum)
}

func TestCumulativePLTracksRunningBalance(t *testing.T) {
	a := New(1000)
	a.AddTransaction(Transaction{NetPL: 10})
	a.AddTransaction(Transaction{NetPL: 20})
	txs := a.Transactions()
	require.Len(t, txs, 2)
	assert.Equal(t, 10.0, txs[0].CumulativePL)
	assert.Equal(t, 30.0, txs[1].CumulativePL)
}

func TestEmptyTransactionsZeroLaw(t *testing.T) {
	a := New(5000)
	assert.Equal(t, 5000.0, a.Balance())
	assert.Empty(t, a.Transactions())
	assert.Equal(t, 0.0, a.LargestLoss())
}

func TestOnTransactionHookFires(t *testing.T) {
	a := New(1000)
	var seen []string
	a.OnTransaction(func(tx Transaction) { seen = append(seen, tx.Ticket) })
	a.AddTransaction(Transaction{Ticket: "T1", NetPL: 1})
	a.AddTransaction(Transaction{Ticket: "T2", NetPL: -1})
	assert.Equal(t, []string{"T1", "T2"}, seen)
}

func TestResetRestoresInitialBalance(t *testing.T) {
	a := New(2000)
	a.AddTransaction(Transaction{NetPL: 500})
	a.Reset()
	assert.Equal(t, 2000.0, a.Balance())
	assert.Empty(t, a.Transactions())
}

func TestLargestLoss(t *testing.T) {
	a := New(1000)
	a.AddTransaction(Transaction{NetPL: 50})
	a.AddTransaction(Transaction{NetPL: -75})
	a.AddTransaction(Transaction{NetPL: -30})
	assert.Equal(t, -75.0, a.LargestLoss())
}
