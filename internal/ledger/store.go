// Package ledger implements the storage process's per-customer state:
// durable files under data/, the balance/limit invariant, and the
// bounded ring of recent transactions (§4.2).
package ledger

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rishav/rinha-ledger/internal/wire"
)

// MaxCustomers bounds the id space; ids are single digits, 0..9.
const MaxCustomers = 10

// SeedLimits is the reproducible init list from §4.2: customers 1..5
// with these limits, total 0, empty ring.
var SeedLimits = [5]int32{100000, 80000, 1000000, 10000000, 500000}

// fileTemplate names each customer's backing file, mirroring the C
// source's userFileTemplate ("data/user%d.bin").
const fileTemplate = "user%d.bin"

// Store owns one cached *os.File per customer id, opened lazily and
// never closed mid-run. Because the storage process is a single
// goroutine driving one epoll loop, every Store method runs to
// completion before the next readiness event is dispatched — the
// read-modify-write in Update is a critical section purely by virtue
// of that scheduling model, no mutex required.
type Store struct {
	dir   string
	files [MaxCustomers]*os.File
}

// Open prepares a Store rooted at dir. It does not itself create the
// data directory or seed files; call MkdirAll/Seed explicitly so
// callers control the reset behavior described in §6.
func Open(dir string) *Store {
	return &Store{dir: dir}
}

// Seed (re)creates the five initial customer records described in
// §4.2's initialization seed. Existing files are overwritten from
// offset 0; they are not truncated, and any bytes past the new record
// are ignored on read.
func (s *Store) Seed() error {
	for i, limit := range SeedLimits {
		c := wire.Customer{
			ID:    int32(i + 1),
			Limit: limit,
			Total: 0,
		}
		if err := s.Write(c); err != nil {
			return fmt.Errorf("ledger: seeding customer %d: %w", c.ID, err)
		}
	}
	return nil
}

func (s *Store) path(id int32) string {
	return filepath.Join(s.dir, fmt.Sprintf(fileTemplate, id))
}

// fileFor returns the cached handle for id, opening (but not
// creating) it on first use. Returns ErrNotFound if no file exists for
// this id yet.
func (s *Store) fileFor(id int32) (*os.File, error) {
	if id < 0 || int(id) >= MaxCustomers {
		return nil, ErrNotFound
	}
	if f := s.files[id]; f != nil {
		return f, nil
	}
	f, err := os.OpenFile(s.path(id), os.O_RDWR, 0o644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	s.files[id] = f
	return f, nil
}

// Read loads the customer record for id. Returns ErrNotFound if the
// file does not exist.
func (s *Store) Read(id int32) (wire.Customer, error) {
	f, err := s.fileFor(id)
	if err != nil {
		return wire.Customer{}, err
	}
	return readCustomer(f)
}

// Write overwrites the full customer record from offset 0 and flushes.
// Used at seed time and for resets — never for ordinary transaction
// application, which goes through Update.
func (s *Store) Write(c wire.Customer) error {
	id := c.ID
	if id < 0 || int(id) >= MaxCustomers {
		return fmt.Errorf("ledger: customer id %d out of range", id)
	}
	f := s.files[id]
	if f == nil {
		created, err := os.OpenFile(s.path(id), os.O_CREATE|os.O_RDWR, 0o644)
		if err != nil {
			return err
		}
		s.files[id] = created
		f = created
	}
	return writeCustomer(f, c)
}

// Update applies transaction t to customer id: read, apply (§4.2's
// algorithm, enforcing the limit invariant), write back, flush. On any
// failure short of a successful apply, the on-disk record is left
// untouched.
func (s *Store) Update(id int32, t wire.Transaction) (wire.Customer, error) {
	f, err := s.fileFor(id)
	if err != nil {
		return wire.Customer{}, err
	}
	c, err := readCustomer(f)
	if err != nil {
		return wire.Customer{}, err
	}
	if err := ApplyTransaction(&c, t); err != nil {
		return wire.Customer{}, err
	}
	if err := writeCustomer(f, c); err != nil {
		return wire.Customer{}, err
	}
	return c, nil
}

// Close closes every cached file handle. Called once, at process
// shutdown.
func (s *Store) Close() error {
	var firstErr error
	for i, f := range s.files {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("ledger: closing user%d.bin: %w", i, err)
		}
		s.files[i] = nil
	}
	return firstErr
}

func readCustomer(f *os.File) (wire.Customer, error) {
	if _, err := f.Seek(0, 0); err != nil {
		return wire.Customer{}, err
	}
	buf := make([]byte, wire.MaxCustomerSize)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return wire.Customer{}, err
	}
	return wire.DecodeCustomer(buf[:n])
}

func writeCustomer(f *os.File, c wire.Customer) error {
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	if _, err := f.Write(c.Encode()); err != nil {
		return err
	}
	// No Sync() call here: os.File.Write already reaches the OS without
	// the userspace buffering the C source's fflush undoes, but neither
	// side fsyncs, so the last in-flight update can still be lost on a
	// crash. See SPEC_FULL.md §9.
	return nil
}
