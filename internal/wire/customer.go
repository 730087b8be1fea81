package wire

import (
	"bytes"
	"fmt"
)

// Field widths, fixed by the on-disk/on-wire layout (§4.1).
const (
	MaxTransactions = 10
	DescriptionSize = 32
	DateSize        = 32

	// TransactionSize is valor(4) + tipo(1) + descricao(32) + realizada_em(32).
	TransactionSize = Uint32Size + 1 + DescriptionSize + DateSize

	// CustomerHeaderSize is id|limit|total|n_transactions|oldest_index, 4 bytes each.
	CustomerHeaderSize = 5 * Uint32Size

	// MaxCustomerSize is the header plus a full ring of transactions, i.e.
	// the size every user{id}.bin file occupies once it has 10 entries.
	MaxCustomerSize = CustomerHeaderSize + MaxTransactions*TransactionSize
)

// Transaction is a single credit or debit entry in a customer's ring.
// Descricao and RealizadaEm are fixed-width, zero-padded spans rather
// than Go strings so that Encode/Decode are byte-exact with the format
// in SPEC_FULL.md §3.
type Transaction struct {
	Valor       int32
	Tipo        byte
	Descricao   [DescriptionSize]byte
	RealizadaEm [DateSize]byte
}

// NewTransaction builds a Transaction from plain strings, zero-padding
// descricao and realizadaEm into their fixed-width spans. Callers are
// responsible for validating lengths before calling this (the wire
// format silently truncates, it does not reject).
func NewTransaction(valor int32, tipo byte, descricao, realizadaEm string) Transaction {
	var t Transaction
	t.Valor = valor
	t.Tipo = tipo
	copy(t.Descricao[:], descricao)
	copy(t.RealizadaEm[:], realizadaEm)
	return t
}

// DescricaoString returns the descricao span trimmed at its first zero
// pad byte.
func (t Transaction) DescricaoString() string {
	return trimZero(t.Descricao[:])
}

// RealizadaEmString returns the realizada_em span trimmed at its first
// zero pad byte.
func (t Transaction) RealizadaEmString() string {
	return trimZero(t.RealizadaEm[:])
}

func trimZero(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

// Encode appends the transaction's wire representation to dst and
// returns the extended slice.
func (t Transaction) Encode(dst []byte) []byte {
	var hdr [Uint32Size]byte
	PutInt32LE(hdr[:], t.Valor)
	dst = append(dst, hdr[:]...)
	dst = append(dst, t.Tipo)
	dst = append(dst, t.Descricao[:]...)
	dst = append(dst, t.RealizadaEm[:]...)
	return dst
}

// DecodeTransaction reads one TransactionSize-byte record from src.
func DecodeTransaction(src []byte) (Transaction, error) {
	if len(src) < TransactionSize {
		return Transaction{}, fmt.Errorf("wire: short transaction record: have %d bytes, want %d", len(src), TransactionSize)
	}
	var t Transaction
	t.Valor = Int32LE(src[0:4])
	t.Tipo = src[4]
	copy(t.Descricao[:], src[5:5+DescriptionSize])
	copy(t.RealizadaEm[:], src[5+DescriptionSize:5+DescriptionSize+DateSize])
	return t, nil
}

// Customer is the full per-account ledger record: identity, limit,
// running total, and a 10-slot ring of the most recent transactions.
//
// Invariants (enforced by internal/ledger, not here — this type is a
// pure data carrier plus codec):
//   - total >= -limit after any successful debit.
//   - if NTransactions < MaxTransactions, OldestIndex == 0 and slots
//     [0, NTransactions) are valid.
//   - if NTransactions == MaxTransactions, OldestIndex names the slot
//     to be overwritten next.
type Customer struct {
	ID            int32
	Limit         int32
	Total         int32
	NTransactions int32
	OldestIndex   int32
	Transactions  [MaxTransactions]Transaction
}

// Encode returns the customer's wire/disk representation: the fixed
// header followed by exactly NTransactions transaction records (never
// the full 10, unless the ring is already full).
func (c Customer) Encode() []byte {
	buf := make([]byte, 0, CustomerHeaderSize+int(c.NTransactions)*TransactionSize)
	var hdr [CustomerHeaderSize]byte
	PutInt32LE(hdr[0:4], c.ID)
	PutInt32LE(hdr[4:8], c.Limit)
	PutInt32LE(hdr[8:12], c.Total)
	PutInt32LE(hdr[12:16], c.NTransactions)
	PutInt32LE(hdr[16:20], c.OldestIndex)
	buf = append(buf, hdr[:]...)
	for i := int32(0); i < c.NTransactions; i++ {
		buf = c.Transactions[i].Encode(buf)
	}
	return buf
}

// DecodeCustomer parses a customer record previously produced by
// Encode. src may be longer than the encoded record (e.g. a fixed-size
// disk file padded to MaxCustomerSize); only the prefix that
// NTransactions demands is consumed.
func DecodeCustomer(src []byte) (Customer, error) {
	if len(src) < CustomerHeaderSize {
		return Customer{}, fmt.Errorf("wire: short customer header: have %d bytes, want %d", len(src), CustomerHeaderSize)
	}
	var c Customer
	c.ID = Int32LE(src[0:4])
	c.Limit = Int32LE(src[4:8])
	c.Total = Int32LE(src[8:12])
	c.NTransactions = Int32LE(src[12:16])
	c.OldestIndex = Int32LE(src[16:20])

	if c.NTransactions < 0 || c.NTransactions > MaxTransactions {
		return Customer{}, fmt.Errorf("wire: n_transactions out of range: %d", c.NTransactions)
	}

	offset := CustomerHeaderSize
	for i := int32(0); i < c.NTransactions; i++ {
		if len(src) < offset+TransactionSize {
			return Customer{}, fmt.Errorf("wire: short transaction %d: have %d bytes, want %d", i, len(src)-offset, TransactionSize)
		}
		t, err := DecodeTransaction(src[offset : offset+TransactionSize])
		if err != nil {
			return Customer{}, err
		}
		c.Transactions[i] = t
		offset += TransactionSize
	}
	return c, nil
}
