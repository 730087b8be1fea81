// Package storageproto implements the line-oriented binary protocol
// between the API process and the storage process (§4.3). It owns
// request parsing, dispatch into internal/ledger, and response
// framing; it does not own any I/O — internal/storageserver calls
// Handle once per readable request buffer.
package storageproto

import (
	"errors"

	"github.com/rishav/rinha-ledger/internal/ledger"
	"github.com/rishav/rinha-ledger/internal/wire"
)

// Opcodes, the first byte of every request.
const (
	OpCreate = 'c'
	OpRead   = 'r'
	OpUpdate = 'u'
	OpClose  = '0'
)

// Error digits: the first byte of every non-'0' response is '1'..'4',
// the negation of one of these kinds.
const (
	digitGenericError  = '1'
	digitNotFound      = '2'
	digitLimitExceeded = '3'
	digitInvalidTipo   = '4'
)

// CloseResponse is sent verbatim in reply to the close opcode,
// including its trailing NUL — the original C source sends
// sizeof("0 close") bytes, which is 8, not 7.
var CloseResponse = []byte{'0', ' ', 'c', 'l', 'o', 's', 'e', 0}

// unknownResponse answers any unrecognized opcode.
var unknownResponse = []byte("1 - Unknown request\n\n")

// Dispatcher applies requests to a ledger.Store and frames responses.
type Dispatcher struct {
	Store *ledger.Store

	// Now returns the ingest timestamp stamped onto every newly applied
	// transaction's realizada_em field. Overridable in tests.
	Now func() string
}

// NewDispatcher builds a Dispatcher backed by store, using wall-clock
// RFC3339 timestamps.
func NewDispatcher(store *ledger.Store) *Dispatcher {
	return &Dispatcher{Store: store, Now: defaultNow}
}

// Handle parses and applies req, returning the framed response and
// whether the connection should be closed afterward (true only for the
// close opcode).
func (d *Dispatcher) Handle(req []byte) (resp []byte, shouldClose bool) {
	if len(req) == 0 {
		return unknownResponse, false
	}

	switch req[0] {
	case OpClose:
		return CloseResponse, true
	case OpCreate:
		return d.handleCreate(req), false
	case OpRead:
		return d.handleRead(req), false
	case OpUpdate:
		return d.handleUpdate(req), false
	default:
		return unknownResponse, false
	}
}

// handleCreate implements the 'c' opcode: 'c' ' ' id(4B) limit(4B).
// Response is a single byte: '0' on success, '1' otherwise.
func (d *Dispatcher) handleCreate(req []byte) []byte {
	if len(req) < 10 {
		return []byte{digitGenericError}
	}
	id := wire.Int32LE(req[2:6])
	limit := wire.Int32LE(req[6:10])

	err := d.Store.Write(wire.Customer{ID: id, Limit: limit})
	if err != nil {
		return []byte{digitGenericError}
	}
	return []byte{'0'}
}

// handleRead implements the 'r' opcode: 'r' ' ' id_digit.
// Response is a 2-byte header (digit + space), plus the serialized
// customer on success.
func (d *Dispatcher) handleRead(req []byte) []byte {
	id, ok := idDigit(req, 2)
	if !ok {
		return []byte{digitGenericError, ' '}
	}

	c, err := d.Store.Read(id)
	if err != nil {
		return []byte{errDigit(err), ' '}
	}
	resp := []byte{'0', ' '}
	return append(resp, c.Encode()...)
}

// handleUpdate implements the 'u' opcode:
// 'u' ' ' id_digit ' ' tipo ' ' valor(4B) ' ' descricao(32B).
// Response is a 2-byte header (digit + space), plus the serialized
// customer on success.
func (d *Dispatcher) handleUpdate(req []byte) []byte {
	const headerLen = 11 + wire.DescriptionSize
	if len(req) < headerLen {
		return []byte{digitGenericError, ' '}
	}
	id, ok := idDigit(req, 2)
	if !ok {
		return []byte{digitGenericError, ' '}
	}
	tipo := req[4]
	valor := wire.Int32LE(req[6:10])

	var tx wire.Transaction
	tx.Valor = valor
	tx.Tipo = tipo
	copy(tx.Descricao[:], req[11:11+wire.DescriptionSize])
	copy(tx.RealizadaEm[:], d.Now())

	c, err := d.Store.Update(id, tx)
	if err != nil {
		return []byte{errDigit(err), ' '}
	}
	resp := []byte{'0', ' '}
	return append(resp, c.Encode()...)
}

// idDigit extracts a '0'..'9' ASCII digit at req[pos] and returns it as
// an int32 customer id.
func idDigit(req []byte, pos int) (int32, bool) {
	if len(req) <= pos {
		return 0, false
	}
	d := req[pos]
	if d < '0' || d > '9' {
		return 0, false
	}
	return int32(d - '0'), true
}

// EncodeReadRequest builds a client-side 'r' request for a single-digit
// customer id (0-9), the form the API process sends upstream.
func EncodeReadRequest(id int32) []byte {
	return []byte{OpRead, ' ', byte('0' + id)}
}

// EncodeUpdateRequest builds a client-side 'u' request.
func EncodeUpdateRequest(id int32, tipo byte, valor int32, descricao string) []byte {
	req := make([]byte, 11+wire.DescriptionSize)
	req[0] = OpUpdate
	req[1] = ' '
	req[2] = byte('0' + id)
	req[3] = ' '
	req[4] = tipo
	req[5] = ' '
	wire.PutInt32LE(req[6:10], valor)
	req[10] = ' '
	copy(req[11:], descricao)
	return req
}

// DecodeResponse parses a storage response: the 2-byte header (result
// digit + space) and, on success, the trailing Customer record. ok is
// false when resp is too short to even contain the header.
func DecodeResponse(resp []byte) (digit byte, customer wire.Customer, ok bool, err error) {
	if len(resp) < 2 {
		return 0, wire.Customer{}, false, nil
	}
	digit = resp[0]
	if digit != '0' {
		return digit, wire.Customer{}, true, nil
	}
	customer, err = wire.DecodeCustomer(resp[2:])
	if err != nil {
		return digit, wire.Customer{}, true, err
	}
	return digit, customer, true, nil
}

func errDigit(err error) byte {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return digitNotFound
	case errors.Is(err, ledger.ErrLimitExceeded):
		return digitLimitExceeded
	case errors.Is(err, ledger.ErrInvalidTipo):
		return digitInvalidTipo
	default:
		return digitGenericError
	}
}
