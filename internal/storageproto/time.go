package storageproto

import "time"

// defaultNow produces the ingest timestamp stamped onto transactions
// applied through the 'u' opcode (§3: realizada_em is "produced at
// ingest time by the storage process", not supplied by the client).
func defaultNow() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
