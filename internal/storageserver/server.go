// Package storageserver composes internal/reactor with
// internal/storageproto into the storage process's event loop (C5).
// Per SPEC_FULL.md §4.5: each client connection alternates between the
// read set and the write set, one recv/send per readiness event, and
// is kept alive across multiple requests until it sends the close
// opcode or disconnects.
package storageserver

import (
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/rishav/rinha-ledger/internal/ledger"
	"github.com/rishav/rinha-ledger/internal/netutil"
	"github.com/rishav/rinha-ledger/internal/reactor"
	"github.com/rishav/rinha-ledger/internal/storageproto"
)

const socketReadSize = 8 * 1024

// conn holds the per-connection state the FSM needs between readiness
// events. It is deliberately tiny: the storage side only ever reads a
// request, computes a response, and writes it back.
type conn struct {
	fd         int
	writing    bool
	resp       []byte
	respOff    int
	closeAfter bool
}

// Server is the storage process's single-threaded reactor loop.
type Server struct {
	log        zerolog.Logger
	reactor    *reactor.Reactor
	dispatcher *storageproto.Dispatcher
	listenFD   int
	port       int
	conns      map[int]*conn
}

// New builds a Server listening on port and backed by store. Passing
// port 0 lets the OS assign one; call Port to read it back (used by
// tests and by a supervisor that wants to log the bound address).
func New(log zerolog.Logger, port int, store *ledger.Store) (*Server, error) {
	r, err := reactor.New(1024)
	if err != nil {
		return nil, err
	}
	listenFD, err := netutil.Listen(port, 1024)
	if err != nil {
		r.Close()
		return nil, err
	}
	if err := r.Add(listenFD, int32(listenFD), true, false); err != nil {
		netutil.Close(listenFD)
		r.Close()
		return nil, err
	}
	boundPort := port
	if port == 0 {
		addr, err := unix.Getsockname(listenFD)
		if err != nil {
			netutil.Close(listenFD)
			r.Close()
			return nil, err
		}
		boundPort = addr.(*unix.SockaddrInet4).Port
	}
	return &Server{
		log:        log,
		reactor:    r,
		dispatcher: storageproto.NewDispatcher(store),
		listenFD:   listenFD,
		port:       boundPort,
		conns:      make(map[int]*conn),
	}, nil
}

// Port returns the bound listening port.
func (s *Server) Port() int {
	return s.port
}

// Close tears down the listening socket, the reactor, and every open
// client connection. It does not drain in-flight requests.
func (s *Server) Close() {
	for fd := range s.conns {
		netutil.Close(fd)
	}
	netutil.Close(s.listenFD)
	s.reactor.Close()
}

// Run drives the event loop until Close is called from another
// goroutine, or Wait returns a fatal error.
func (s *Server) Run() error {
	for {
		events, err := s.reactor.Wait(-1)
		if err != nil {
			return err
		}
		for _, ev := range events {
			fd := int(ev.UserData)
			if fd == s.listenFD {
				s.acceptLoop()
				continue
			}
			c, ok := s.conns[fd]
			if !ok {
				continue
			}
			if ev.Error || ev.Hangup {
				s.closeConn(c)
				continue
			}
			if ev.Readable && !c.writing {
				s.handleReadable(c)
			}
			if ev.Writable && c.writing {
				s.handleWritable(c)
			}
		}
	}
}

func (s *Server) acceptLoop() {
	for {
		fd, err := netutil.Accept(s.listenFD)
		if err != nil {
			if !netutil.IsTemporary(err) {
				s.log.Warn().Err(err).Msg("accept failed")
			}
			return
		}
		c := &conn{fd: fd}
		if err := s.reactor.Add(fd, int32(fd), true, false); err != nil {
			s.log.Warn().Err(err).Msg("epoll add failed, dropping connection")
			netutil.Close(fd)
			continue
		}
		s.conns[fd] = c
	}
}

func (s *Server) handleReadable(c *conn) {
	buf := make([]byte, socketReadSize)
	n, err := unix.Read(c.fd, buf)
	if err != nil {
		if netutil.IsTemporary(err) {
			return
		}
		s.closeConn(c)
		return
	}
	if n == 0 {
		s.closeConn(c)
		return
	}

	resp, shouldClose := s.dispatcher.Handle(buf[:n])
	c.resp = resp
	c.respOff = 0
	c.closeAfter = shouldClose
	c.writing = true
	if err := s.reactor.SetInterest(c.fd, int32(c.fd), false, true); err != nil {
		s.closeConn(c)
	}
}

func (s *Server) handleWritable(c *conn) {
	n, err := unix.Write(c.fd, c.resp[c.respOff:])
	if err != nil {
		if netutil.IsTemporary(err) {
			return
		}
		s.closeConn(c)
		return
	}
	c.respOff += n
	if c.respOff < len(c.resp) {
		return
	}

	if c.closeAfter {
		s.closeConn(c)
		return
	}

	c.writing = false
	c.resp = nil
	c.respOff = 0
	if err := s.reactor.SetInterest(c.fd, int32(c.fd), true, false); err != nil {
		s.closeConn(c)
	}
}

func (s *Server) closeConn(c *conn) {
	s.reactor.Remove(c.fd)
	netutil.Close(c.fd)
	delete(s.conns, c.fd)
}
