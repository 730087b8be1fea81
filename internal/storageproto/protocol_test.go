package storageproto

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rishav/rinha-ledger/internal/ledger"
	"github.com/rishav/rinha-ledger/internal/wire"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	store := ledger.Open(t.TempDir())
	require.NoError(t, store.Seed())
	t.Cleanup(func() { _ = store.Close() })
	d := NewDispatcher(store)
	d.Now = func() string { return "fixed-time" }
	return d
}

func buildCreateRequest(id, limit int32) []byte {
	req := make([]byte, 10)
	req[0] = OpCreate
	req[1] = ' '
	wire.PutInt32LE(req[2:6], id)
	wire.PutInt32LE(req[6:10], limit)
	return req
}

func buildReadRequest(id byte) []byte {
	return []byte{OpRead, ' ', id}
}

func buildUpdateRequest(id byte, tipo byte, valor int32, descricao string) []byte {
	req := make([]byte, 11+wire.DescriptionSize)
	req[0] = OpUpdate
	req[1] = ' '
	req[2] = id
	req[3] = ' '
	req[4] = tipo
	req[5] = ' '
	wire.PutInt32LE(req[6:10], valor)
	req[10] = ' '
	copy(req[11:], descricao)
	return req
}

func TestHandleClose(t *testing.T) {
	d := newTestDispatcher(t)
	resp, shouldClose := d.Handle([]byte{OpClose})
	require.True(t, shouldClose)
	require.Equal(t, CloseResponse, resp)
}

func TestHandleUnknownOpcode(t *testing.T) {
	d := newTestDispatcher(t)
	resp, shouldClose := d.Handle([]byte{'z'})
	require.False(t, shouldClose)
	require.Equal(t, unknownResponse, resp)
}

func TestHandleCreate(t *testing.T) {
	d := newTestDispatcher(t)
	resp, _ := d.Handle(buildCreateRequest(6, 5000))
	require.Equal(t, []byte{'0'}, resp)

	readResp, _ := d.Handle(buildReadRequest('6'))
	require.Equal(t, byte('0'), readResp[0])
	c, err := wire.DecodeCustomer(readResp[2:])
	require.NoError(t, err)
	require.EqualValues(t, 5000, c.Limit)
}

func TestHandleReadSeeded(t *testing.T) {
	d := newTestDispatcher(t)
	resp, shouldClose := d.Handle(buildReadRequest('1'))
	require.False(t, shouldClose)
	require.Equal(t, byte('0'), resp[0])
	require.Equal(t, byte(' '), resp[1])

	c, err := wire.DecodeCustomer(resp[2:])
	require.NoError(t, err)
	require.EqualValues(t, 100000, c.Limit)
	require.EqualValues(t, 0, c.Total)
}

func TestHandleReadUnknownCustomer(t *testing.T) {
	d := newTestDispatcher(t)
	resp, _ := d.Handle(buildReadRequest('7'))
	require.Equal(t, []byte{digitNotFound, ' '}, resp)
}

func TestHandleUpdateCreditThenDebit(t *testing.T) {
	d := newTestDispatcher(t)

	resp, _ := d.Handle(buildUpdateRequest('1', 'c', 1000, "deposit"))
	require.Equal(t, byte('0'), resp[0])
	c, err := wire.DecodeCustomer(resp[2:])
	require.NoError(t, err)
	require.EqualValues(t, 1000, c.Total)
	require.Equal(t, "fixed-time", c.Transactions[0].RealizadaEmString())

	resp, _ = d.Handle(buildUpdateRequest('1', 'd', 2000, "rent"))
	require.Equal(t, byte('0'), resp[0])
	c, err = wire.DecodeCustomer(resp[2:])
	require.NoError(t, err)
	require.EqualValues(t, -1000, c.Total)
}

func TestHandleUpdateLimitExceeded(t *testing.T) {
	d := newTestDispatcher(t)
	resp, _ := d.Handle(buildUpdateRequest('1', 'd', 999999, "too much"))
	require.Equal(t, []byte{digitLimitExceeded, ' '}, resp)
}

func TestHandleUpdateInvalidTipo(t *testing.T) {
	d := newTestDispatcher(t)
	resp, _ := d.Handle(buildUpdateRequest('1', 'x', 1, "bad"))
	require.Equal(t, []byte{digitInvalidTipo, ' '}, resp)
}

func TestHandleUpdateUnknownCustomer(t *testing.T) {
	d := newTestDispatcher(t)
	resp, _ := d.Handle(buildUpdateRequest('9', 'c', 1, "x"))
	require.Equal(t, []byte{digitNotFound, ' '}, resp)
}
