package wire

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestInt32LERoundTrip(t *testing.T) {
	values := []int32{0, 1, -1, 100000, -100000, 2147483647, -2147483648}
	for _, v := range values {
		var buf [4]byte
		PutInt32LE(buf[:], v)
		require.Equal(t, v, Int32LE(buf[:]))
	}
}

func TestTransactionRoundTrip(t *testing.T) {
	tx := NewTransaction(1000, 'c', "salary", "2026-07-31T00:00:00Z")
	encoded := tx.Encode(nil)
	require.Len(t, encoded, TransactionSize)

	decoded, err := DecodeTransaction(encoded)
	require.NoError(t, err)
	require.Equal(t, tx, decoded)
	require.Equal(t, "salary", decoded.DescricaoString())
}

func TestCustomerRoundTrip(t *testing.T) {
	c := Customer{
		ID:            1,
		Limit:         100000,
		Total:         -2500,
		NTransactions: 2,
		OldestIndex:   0,
	}
	c.Transactions[0] = NewTransaction(1000, 'c', "first", "t1")
	c.Transactions[1] = NewTransaction(3500, 'd', "second", "t2")

	encoded := c.Encode()
	require.Len(t, encoded, CustomerHeaderSize+2*TransactionSize)

	decoded, err := DecodeCustomer(encoded)
	require.NoError(t, err)

	if diff := cmp.Diff(c, decoded); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestCustomerRoundTripFullRing(t *testing.T) {
	c := Customer{ID: 2, Limit: 80000, Total: 0, NTransactions: MaxTransactions, OldestIndex: 3}
	for i := 0; i < MaxTransactions; i++ {
		c.Transactions[i] = NewTransaction(int32(i+1), 'c', "d", "t")
	}
	decoded, err := DecodeCustomer(c.Encode())
	require.NoError(t, err)
	require.Equal(t, c, decoded)
}

func TestDecodeCustomerRejectsShortHeader(t *testing.T) {
	_, err := DecodeCustomer(make([]byte, CustomerHeaderSize-1))
	require.Error(t, err)
}

func TestDecodeCustomerRejectsOutOfRangeCount(t *testing.T) {
	buf := make([]byte, CustomerHeaderSize)
	PutInt32LE(buf[12:16], MaxTransactions+1)
	_, err := DecodeCustomer(buf)
	require.Error(t, err)
}
