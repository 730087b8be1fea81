package apiserver

import (
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/rishav/rinha-ledger/internal/ledger"
	"github.com/rishav/rinha-ledger/internal/netutil"
	"github.com/rishav/rinha-ledger/internal/reactor"
	"github.com/rishav/rinha-ledger/internal/storageproto"
)

const (
	socketReadSize = 8 * 1024
)

// state names the FSM's phases, per §4.6.
type state int

const (
	readingRequest state = iota
	writingDB
	readingDB
	writingResponse
	closing
)

// conn is one client connection's FSM state, including its paired
// upstream db_fd once opened.
type conn struct {
	clientFD int
	dbFD     int // -1 until lazily dialed

	st state

	parsed ParsedRequest

	dbReq    []byte
	dbReqOff int
	dbResp   []byte

	httpResp    []byte
	httpRespOff int
}

// Server is the API process's single-threaded reactor loop. It
// terminates one client-facing HTTP connection into a request/response
// pair per storage round trip — no HTTP keep-alive on the client side
// (§6), and no pooling of storage sockets (one dial per request).
type Server struct {
	log         zerolog.Logger
	reactor     *reactor.Reactor
	listenFD    int
	port        int
	storagePort int
	conns       map[int]*conn // keyed by clientFD
	byDBFD      map[int]*conn // keyed by dbFD, while one is open
	nowFn       func() string
}

// New builds a Server listening on port, forwarding storage requests
// to 127.0.0.1:storagePort. Passing port 0 lets the OS assign one; call
// Port to read it back.
func New(log zerolog.Logger, port, storagePort int, nowFn func() string) (*Server, error) {
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
		log:         log,
		reactor:     r,
		listenFD:    listenFD,
		port:        boundPort,
		storagePort: storagePort,
		conns:       make(map[int]*conn),
		byDBFD:      make(map[int]*conn),
		nowFn:       nowFn,
	}, nil
}

// Port returns the bound listening port.
func (s *Server) Port() int {
	return s.port
}

// Close tears down the listener, the reactor, and every open
// connection (both client and storage sides), without draining
// in-flight work.
func (s *Server) Close() {
	for _, c := range s.conns {
		netutil.Close(c.clientFD)
		if c.dbFD >= 0 {
			netutil.Close(c.dbFD)
		}
	}
	netutil.Close(s.listenFD)
	s.reactor.Close()
}

// Run drives the event loop until Wait returns a fatal error.
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
			if c, ok := s.conns[fd]; ok {
				s.stepClient(c, ev)
				continue
			}
			if c, ok := s.byDBFD[fd]; ok {
				s.stepDB(c, ev)
				continue
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
		c := &conn{clientFD: fd, dbFD: -1, st: readingRequest}
		if err := s.reactor.Add(fd, int32(fd), true, false); err != nil {
			s.log.Warn().Err(err).Msg("epoll add failed, dropping connection")
			netutil.Close(fd)
			continue
		}
		s.conns[fd] = c
	}
}

// stepClient handles readiness on a connection's client_fd: either a
// new request arriving (READING_REQUEST) or the final response going
// out (WRITING_RESPONSE).
func (s *Server) stepClient(c *conn, ev reactor.Event) {
	if ev.Error || ev.Hangup {
		s.closeConn(c)
		return
	}
	switch c.st {
	case readingRequest:
		if !ev.Readable {
			return
		}
		s.readRequest(c)
	case writingResponse:
		if !ev.Writable {
			return
		}
		s.writeResponse(c)
	}
}

func (s *Server) readRequest(c *conn) {
	buf := make([]byte, socketReadSize)
	n, err := unix.Read(c.clientFD, buf)
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

	c.parsed = ParseRequest(buf[:n])
	if c.parsed.Err != 0 {
		s.bufferErrorResponse(c, c.parsed.Err)
		return
	}

	if c.parsed.IsExtrato {
		c.dbReq = storageproto.EncodeReadRequest(c.parsed.CustomerID)
	} else {
		c.dbReq = storageproto.EncodeUpdateRequest(c.parsed.CustomerID, c.parsed.Tipo, c.parsed.Valor, c.parsed.Descricao)
	}
	c.dbReqOff = 0
	s.dialDB(c)
}

// dialDB opens db_fd lazily (§4.6 invariant 2) and moves the
// connection into WRITING_DB once the non-blocking connect is issued.
func (s *Server) dialDB(c *conn) {
	fd, err := netutil.DialLoopback(s.storagePort)
	if err != nil {
		s.bufferErrorResponse(c, 500)
		return
	}
	c.dbFD = fd
	c.st = writingDB
	s.byDBFD[fd] = c
	if err := s.reactor.Add(fd, int32(fd), false, true); err != nil {
		s.failUpstream(c)
		return
	}
	// Drop client_fd's interest to neither while the db round trip is in
	// flight — invariant 1: at most one interest active per connection.
	// client_fd stays registered with epoll (added once at accept) so
	// every later transition can use SetInterest rather than re-Add.
	if err := s.reactor.SetInterest(c.clientFD, int32(c.clientFD), false, false); err != nil {
		s.failUpstream(c)
	}
}

// stepDB handles readiness on a connection's db_fd: completing the
// connect and sending the request (WRITING_DB), or reading the reply
// (READING_DB).
func (s *Server) stepDB(c *conn, ev reactor.Event) {
	if ev.Error || ev.Hangup {
		s.failUpstream(c)
		return
	}
	switch c.st {
	case writingDB:
		if !ev.Writable {
			return
		}
		s.writeDB(c)
	case readingDB:
		if !ev.Readable {
			return
		}
		s.readDB(c)
	}
}

func (s *Server) writeDB(c *conn) {
	if c.dbReqOff == 0 {
		if err := netutil.ConnectError(c.dbFD); err != nil {
			s.failUpstream(c)
			return
		}
	}
	n, err := unix.Write(c.dbFD, c.dbReq[c.dbReqOff:])
	if err != nil {
		if netutil.IsTemporary(err) {
			return
		}
		s.failUpstream(c)
		return
	}
	c.dbReqOff += n
	if c.dbReqOff < len(c.dbReq) {
		return
	}
	c.st = readingDB
	if err := s.reactor.SetInterest(c.dbFD, int32(c.dbFD), true, false); err != nil {
		s.failUpstream(c)
	}
}

func (s *Server) readDB(c *conn) {
	buf := make([]byte, socketReadSize)
	n, err := unix.Read(c.dbFD, buf)
	if err != nil {
		if netutil.IsTemporary(err) {
			return
		}
		s.failUpstream(c)
		return
	}
	if n == 0 {
		s.failUpstream(c)
		return
	}
	c.dbResp = buf[:n]
	s.closeDBSide(c)
	s.translateStorageReply(c)
}

// translateStorageReply maps a storage response into an HTTP response
// per §7's status table, then moves the connection to WRITING_RESPONSE.
func (s *Server) translateStorageReply(c *conn) {
	digit, customer, ok, err := storageproto.DecodeResponse(c.dbResp)
	if !ok || err != nil {
		s.bufferErrorResponse(c, 500)
		return
	}
	if digit != '0' {
		s.bufferErrorResponse(c, storageDigitStatus(digit))
		return
	}

	var body []byte
	var bodyErr error
	if c.parsed.IsExtrato {
		ordered := ledger.OrderedTransactions(customer)
		body, bodyErr = BuildExtratoBody(customer, ordered, s.nowFn())
	} else {
		body, bodyErr = BuildTransacaoBody(customer)
	}
	if bodyErr != nil {
		s.bufferErrorResponse(c, 500)
		return
	}
	s.bufferSuccessResponse(c, body)
}

// storageDigitStatus maps a non-success storage digit to an HTTP
// status per §7 (NotFound->404, LimitExceeded/InvalidTipo->422, other->500).
func storageDigitStatus(digit byte) int {
	switch digit {
	case '2':
		return 404
	case '3', '4':
		return 422
	default:
		return 500
	}
}

func (s *Server) bufferSuccessResponse(c *conn, body []byte) {
	c.httpResp = BuildHTTPResponse(200, body)
	s.enterWritingResponse(c)
}

func (s *Server) bufferErrorResponse(c *conn, status int) {
	c.httpResp = BuildHTTPResponse(status, nil)
	s.enterWritingResponse(c)
}

func (s *Server) enterWritingResponse(c *conn) {
	c.httpRespOff = 0
	c.st = writingResponse
	if err := s.reactor.SetInterest(c.clientFD, int32(c.clientFD), false, true); err != nil {
		s.closeConn(c)
		return
	}
}

func (s *Server) writeResponse(c *conn) {
	n, err := unix.Write(c.clientFD, c.httpResp[c.httpRespOff:])
	if err != nil {
		if netutil.IsTemporary(err) {
			return
		}
		s.closeConn(c)
		return
	}
	c.httpRespOff += n
	if c.httpRespOff < len(c.httpResp) {
		return
	}
	// No client-side keep-alive (§6): every response ends the connection.
	s.closeConn(c)
}

// failUpstream handles a storage-side failure (§4.6 error policy): the
// db_fd is torn down and the client gets a 500.
func (s *Server) failUpstream(c *conn) {
	s.closeDBSide(c)
	s.bufferErrorResponse(c, 500)
}

func (s *Server) closeDBSide(c *conn) {
	if c.dbFD < 0 {
		return
	}
	s.reactor.Remove(c.dbFD)
	delete(s.byDBFD, c.dbFD)
	netutil.Close(c.dbFD)
	c.dbFD = -1
}

// closeConn implements the CLOSING state (§4.6 invariant 4): both
// client_fd and db_fd are closed.
func (s *Server) closeConn(c *conn) {
	c.st = closing
	s.closeDBSide(c)
	s.reactor.Remove(c.clientFD)
	netutil.Close(c.clientFD)
	delete(s.conns, c.clientFD)
}
