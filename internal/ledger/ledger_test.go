package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rishav/rinha-ledger/internal/wire"
)

func TestApplyTransactionCredit(t *testing.T) {
	c := wire.Customer{ID: 1, Limit: 1000, Total: 0}
	err := ApplyTransaction(&c, wire.NewTransaction(500, 'c', "pix", "t1"))
	require.NoError(t, err)
	require.EqualValues(t, 500, c.Total)
	require.EqualValues(t, 1, c.NTransactions)
}

func TestApplyTransactionDebitWithinLimit(t *testing.T) {
	c := wire.Customer{ID: 1, Limit: 1000, Total: 500}
	err := ApplyTransaction(&c, wire.NewTransaction(1500, 'd', "rent", "t1"))
	require.NoError(t, err)
	require.EqualValues(t, -1000, c.Total)
}

func TestApplyTransactionDebitExceedsLimitLeavesTotalUnchanged(t *testing.T) {
	c := wire.Customer{ID: 1, Limit: 1000, Total: 500}
	err := ApplyTransaction(&c, wire.NewTransaction(1501, 'd', "rent", "t1"))
	require.ErrorIs(t, err, ErrLimitExceeded)
	require.EqualValues(t, 500, c.Total)
	require.EqualValues(t, 0, c.NTransactions)
}

func TestApplyTransactionInvalidTipo(t *testing.T) {
	c := wire.Customer{ID: 1, Limit: 1000, Total: 0}
	err := ApplyTransaction(&c, wire.NewTransaction(1, 'x', "d", "t1"))
	require.ErrorIs(t, err, ErrInvalidTipo)
	require.EqualValues(t, 0, c.NTransactions)
}

func TestRingGrowsThenWraps(t *testing.T) {
	c := wire.Customer{ID: 1, Limit: 1 << 30, Total: 0}
	for i := 0; i < 12; i++ {
		require.NoError(t, ApplyTransaction(&c, wire.NewTransaction(int32(i+1), 'c', "d", "t")))
	}
	require.EqualValues(t, wire.MaxTransactions, c.NTransactions)

	// After 12 credits, the ring (capacity 10) must hold transactions
	// 3..12 in insertion order, with OldestIndex naming the slot that
	// would be overwritten next (transaction #3, at slot 2).
	require.EqualValues(t, 2, c.OldestIndex)
	ordered := OrderedTransactions(c)
	require.Len(t, ordered, 10)
	require.EqualValues(t, 12, ordered[0].Valor) // newest first
	require.EqualValues(t, 3, ordered[9].Valor)  // oldest survivor last
}

func TestOrderedTransactionsBeforeRingIsFull(t *testing.T) {
	c := wire.Customer{ID: 1, Limit: 1 << 30, Total: 0}
	require.NoError(t, ApplyTransaction(&c, wire.NewTransaction(1, 'c', "a", "t1")))
	require.NoError(t, ApplyTransaction(&c, wire.NewTransaction(2, 'd', "b", "t2")))
	ordered := OrderedTransactions(c)
	require.Len(t, ordered, 2)
	require.EqualValues(t, 2, ordered[0].Valor)
	require.EqualValues(t, 1, ordered[1].Valor)
}

func TestStoreSeedReadUpdate(t *testing.T) {
	dir := t.TempDir()
	store := Open(dir)
	require.NoError(t, store.Seed())
	defer store.Close()

	c, err := store.Read(1)
	require.NoError(t, err)
	require.EqualValues(t, 100000, c.Limit)
	require.EqualValues(t, 0, c.Total)
	require.EqualValues(t, 0, c.NTransactions)

	updated, err := store.Update(1, wire.NewTransaction(1000, 'c', "desc", "t1"))
	require.NoError(t, err)
	require.EqualValues(t, 1000, updated.Total)

	reread, err := store.Read(1)
	require.NoError(t, err)
	require.EqualValues(t, 1000, reread.Total)
	require.EqualValues(t, 1, reread.NTransactions)
}

func TestStoreUpdateUnknownCustomer(t *testing.T) {
	dir := t.TempDir()
	store := Open(dir)
	require.NoError(t, store.Seed())
	defer store.Close()

	_, err := store.Update(7, wire.NewTransaction(1, 'c', "x", "t"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStoreUpdateLimitExceededDoesNotPersist(t *testing.T) {
	dir := t.TempDir()
	store := Open(dir)
	require.NoError(t, store.Seed())
	defer store.Close()

	_, err := store.Update(1, wire.NewTransaction(999999, 'd', "too much", "t"))
	require.ErrorIs(t, err, ErrLimitExceeded)

	c, err := store.Read(1)
	require.NoError(t, err)
	require.EqualValues(t, 0, c.Total)
	require.EqualValues(t, 0, c.NTransactions)
}
