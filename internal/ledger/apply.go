package ledger

import (
	"errors"

	"github.com/rishav/rinha-ledger/internal/wire"
)

// Sentinel errors for the apply-transaction algorithm (§4.2). Callers
// (internal/storageproto) map these to response error digits.
var (
	// ErrNotFound means the customer id has no backing record.
	ErrNotFound = errors.New("ledger: customer not found")
	// ErrLimitExceeded means a debit would drive total below -limit.
	ErrLimitExceeded = errors.New("ledger: limit exceeded")
	// ErrInvalidTipo means the transaction's tipo byte is neither 'c' nor 'd'.
	ErrInvalidTipo = errors.New("ledger: invalid tipo")
)

// ApplyTransaction mutates c in place per §4.2's apply-transaction
// algorithm: adjust the balance (enforcing the limit invariant on
// debits), then append to the 10-slot ring, overwriting the oldest
// entry once it is full.
//
// On ErrLimitExceeded or ErrInvalidTipo, c is left unmodified — the
// ring is only appended to after the balance update succeeds.
func ApplyTransaction(c *wire.Customer, t wire.Transaction) error {
	switch t.Tipo {
	case 'd':
		newTotal := c.Total - t.Valor
		if -newTotal > c.Limit {
			return ErrLimitExceeded
		}
		c.Total = newTotal
	case 'c':
		c.Total += t.Valor
	default:
		return ErrInvalidTipo
	}

	appendToRing(c, t)
	return nil
}

// appendToRing implements the fixed-capacity circular buffer of the
// 10 most recent transactions. While n_transactions < 10 it is just an
// append; once full, it overwrites the slot named by OldestIndex and
// advances that pointer with plain modulo arithmetic (capacity 10 is
// not a power of two). There is exactly one writer and no concurrent
// claims to coordinate.
func appendToRing(c *wire.Customer, t wire.Transaction) {
	if c.NTransactions < wire.MaxTransactions {
		c.Transactions[c.NTransactions] = t
		c.NTransactions++
		return
	}
	c.Transactions[c.OldestIndex] = t
	c.OldestIndex = (c.OldestIndex + 1) % wire.MaxTransactions
}

// OrderedTransactions returns the customer's transactions newest-first,
// per the extrato ordering rule in §4.7: start at
// (oldest_index - 1) mod n_transactions and walk backward.
func OrderedTransactions(c wire.Customer) []wire.Transaction {
	n := c.NTransactions
	if n == 0 {
		return nil
	}
	out := make([]wire.Transaction, 0, n)
	i := c.OldestIndex
	for j := int32(0); j < n; j++ {
		i = (i - 1 + n) % n
		out = append(out, c.Transactions[i])
	}
	return out
}
