package storageserver

import (
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/rishav/rinha-ledger/internal/ledger"
	"github.com/rishav/rinha-ledger/internal/storageproto"
	"github.com/rishav/rinha-ledger/internal/wire"
)

// startTestServer boots a Server on an OS-assigned port in a
// background goroutine and returns the port; shutdown is registered
// with t.Cleanup. The
// test dials in with the stdlib net package deliberately — it plays
// the role of an ordinary TCP client, unaware the far end is an epoll
// reactor rather than Go's own netpoller.
func startTestServer(t *testing.T) int {
	t.Helper()
	store := ledger.Open(t.TempDir())
	require.NoError(t, store.Seed())

	srv, err := New(zerolog.Nop(), 0, store)
	require.NoError(t, err)
	port := srv.Port()

	go func() { _ = srv.Run() }()
	t.Cleanup(func() {
		srv.Close()
		_ = store.Close()
	})
	return port
}

func dial(t *testing.T, port int) net.Conn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", "127.0.0.1:"+strconv.Itoa(port), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readResponse(t *testing.T, conn net.Conn, size int) []byte {
	t.Helper()
	buf := make([]byte, size)
	_, err := io.ReadFull(conn, buf)
	require.NoError(t, err)
	return buf
}

func TestStorageServerReadSeededCustomer(t *testing.T) {
	port := startTestServer(t)
	conn := dial(t, port)

	_, err := conn.Write([]byte{storageproto.OpRead, ' ', '1'})
	require.NoError(t, err)

	header := readResponse(t, conn, 2)
	require.Equal(t, byte('0'), header[0])
	require.Equal(t, byte(' '), header[1])

	// A freshly seeded customer has no transactions yet, so the
	// response body is just the fixed header.
	body := readResponse(t, conn, wire.CustomerHeaderSize)
	c, err := wire.DecodeCustomer(body)
	require.NoError(t, err)
	require.EqualValues(t, 100000, c.Limit)
}

func TestStorageServerKeepsConnectionAliveAcrossRequests(t *testing.T) {
	port := startTestServer(t)
	conn := dial(t, port)

	req := make([]byte, 11+wire.DescriptionSize)
	req[0] = storageproto.OpUpdate
	req[1] = ' '
	req[2] = '1'
	req[3] = ' '
	req[4] = 'c'
	req[5] = ' '
	wire.PutInt32LE(req[6:10], 500)
	req[10] = ' '
	copy(req[11:], "deposit")

	_, err := conn.Write(req)
	require.NoError(t, err)
	header := readResponse(t, conn, 2)
	require.Equal(t, byte('0'), header[0])
	body := readResponse(t, conn, wire.CustomerHeaderSize+wire.TransactionSize)
	c, err := wire.DecodeCustomer(body)
	require.NoError(t, err)
	require.EqualValues(t, 500, c.Total)

	// Same TCP connection, second request: proves keep-alive.
	_, err = conn.Write([]byte{storageproto.OpRead, ' ', '1'})
	require.NoError(t, err)
	header = readResponse(t, conn, 2)
	require.Equal(t, byte('0'), header[0])
	body = readResponse(t, conn, wire.CustomerHeaderSize+wire.TransactionSize)
	c, err = wire.DecodeCustomer(body)
	require.NoError(t, err)
	require.EqualValues(t, 500, c.Total)
}

func TestStorageServerClosesOnCloseOpcode(t *testing.T) {
	port := startTestServer(t)
	conn := dial(t, port)

	_, err := conn.Write([]byte{storageproto.OpClose})
	require.NoError(t, err)
	resp := readResponse(t, conn, len(storageproto.CloseResponse))
	require.Equal(t, storageproto.CloseResponse, resp)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	n, err := conn.Read(make([]byte, 1))
	require.Equal(t, 0, n)
	require.Equal(t, io.EOF, err)
}
