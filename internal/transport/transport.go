// Package transport serves remote clients over one UDP socket.
//
// A single goroutine blocks on the socket and turns each datagram into a
// request.  Every request is authenticated and dispatched on its own
// goroutine, so clients never wait for one another; responses go
// through a bounded outbox drained by a fixed pool of senders.  Delivery
// is fire-and-forget, and responses to different clients, or to
// concurrent requests of one client, may leave in any order.
package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"flatctl/internal/auth"
	ferrors "flatctl/internal/errors"
	"flatctl/internal/metrics"
	"flatctl/internal/protocol"
	"flatctl/internal/retry"
	"flatctl/internal/wire"
	"flatctl/util"
)

// Diagnostic probe tokens.  They are answered outside the frame protocol.
const (
	ProbeToken  = "echo"
	ProbeOK     = "OK"
	ProbeReject = "NO"
)

// LoginCommand is the one command accepted without valid credentials.
const LoginCommand = "log_in"

// Handler resolves one remote request.  It runs on the request's own
// goroutine.
type Handler func(req protocol.Request) protocol.Response

// Config tunes a Server.
type Config struct {
	// Address is the UDP address to bind, e.g. "127.0.0.1:4040".
	Address string
	// Senders is the number of goroutines writing responses.
	Senders int
	// Outbox bounds the number of encoded responses waiting for a sender.
	Outbox int
	// ClientTTL is how long a silent client keeps its id.
	ClientTTL time.Duration
	// Bind says how long Listen waits for a busy address.  The zero
	// value tries once.
	Bind retry.Policy
}

type outbound struct {
	addr *net.UDPAddr
	data []byte
}

// Server is the remote surface.
type Server struct {
	cfg     Config
	users   auth.Authenticator
	handle  Handler
	log     *util.Logger
	metrics *metrics.Collector

	conn     *net.UDPConn
	clients  *clients
	outbox   chan outbound
	stopped  chan struct{}
	stopOnce sync.Once
	inflight sync.WaitGroup
}

// NewServer returns a server that authenticates with users and resolves
// requests with handle.  Call Listen, then Serve.
func NewServer(cfg Config, users auth.Authenticator, handle Handler, logger *util.Logger, m *metrics.Collector) *Server {
	if cfg.Senders < 1 {
		cfg.Senders = 1
	}
	if cfg.Outbox < 1 {
		cfg.Outbox = 64
	}
	if cfg.ClientTTL <= 0 {
		cfg.ClientTTL = 10 * time.Minute
	}
	return &Server{
		cfg:     cfg,
		users:   users,
		handle:  handle,
		log:     logger.Named("udp"),
		metrics: m,
		clients: newClients(cfg.ClientTTL, m),
		outbox:  make(chan outbound, cfg.Outbox),
		stopped: make(chan struct{}),
	}
}

// Listen binds the socket, retrying while the address is busy.
func (s *Server) Listen(ctx context.Context) error {
	ua, err := net.ResolveUDPAddr("udp", s.cfg.Address)
	if err != nil {
		return ferrors.Wrap("resolve", s.cfg.Address, err)
	}
	return retry.Bind(ctx, s.cfg.Bind, s.log, s.cfg.Address, func() error {
		conn, err := net.ListenUDP("udp", ua)
		if err != nil {
			return ferrors.Wrap("listen", s.cfg.Address, err)
		}
		s.conn = conn
		s.log.Info("listening on %s (udp)", conn.LocalAddr())
		return nil
	})
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Serve runs the receive loop and the sender pool until ctx is done.
// In-flight requests are allowed to finish before Serve returns.
func (s *Server) Serve(ctx context.Context) error {
	if s.conn == nil {
		return fmt.Errorf("serve: not listening")
	}
	go s.clients.start()
	defer s.clients.stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		s.stop()
		s.conn.Close()
		return nil
	})
	g.Go(func() error { return s.receive(gctx) })
	for i := 0; i < s.cfg.Senders; i++ {
		g.Go(func() error { return s.sender(gctx) })
	}

	err := g.Wait()
	s.inflight.Wait()
	return err
}

func (s *Server) stop() {
	s.stopOnce.Do(func() { close(s.stopped) })
}

func (s *Server) receive(ctx context.Context) error {
	for {
		bufp := util.GetBuf()
		n, addr, err := s.conn.ReadFromUDP(*bufp)
		if err != nil {
			util.PutBuf(bufp)
			if ctx.Err() != nil {
				return nil
			}
			if util.IsClosedConn(err) {
				return ferrors.Wrap("receive", s.cfg.Address, err)
			}
			s.log.Warn("receive: %v", err)
			s.metrics.RecordError(err.Error())
			continue
		}
		s.metrics.DatagramReceived(n)
		s.datagram(addr, (*bufp)[:n])
		util.PutBuf(bufp)
	}
}

// datagram handles one inbound datagram.  The decoded frame owns copies
// of its fields, so data may be reused once datagram returns.
func (s *Server) datagram(addr *net.UDPAddr, data []byte) {
	id := s.clients.resolve(addr)
	frame, err := wire.DecodeRequest(data)
	if err != nil {
		s.probe(addr, data, err)
		return
	}

	req := frame.Request(id)
	s.log.Debug("client %d (%s): %s %q", id, addr, req.Kind, req.Content)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.serveRequest(req)
	}()
}

// probe answers the plain-text liveness check, which must be exactly
// ProbeToken.  Response frames are dropped silently so two servers never
// answer each other; anything else gets a NO.  Write errors are ignored.
func (s *Server) probe(addr *net.UDPAddr, data []byte, decodeErr error) {
	s.metrics.DatagramDropped()
	if ft, ok := wire.PeekType(data); ok && ft == wire.FrameResponse {
		s.log.Debug("ignoring a response frame from %s", addr)
		return
	}
	reply := ProbeReject
	if string(data) == ProbeToken {
		reply = ProbeOK
	} else {
		s.log.Debug("undecodable datagram from %s: %v", addr, decodeErr)
	}
	s.conn.WriteToUDP([]byte(reply), addr) //nolint:errcheck
}

func (s *Server) serveRequest(req protocol.Request) {
	name, _ := req.Split()
	if name != LoginCommand {
		cred := req.Remote.Credentials
		ok, err := s.users.Authenticate(cred.Name, cred.Secret)
		if err != nil || !ok {
			if err != nil {
				s.log.Warn("checking credentials of %q: %v", cred.Name, err)
			}
			s.metrics.AuthFailure()
			s.Send(protocol.Fail(req, protocol.NewCommand, protocol.AuthFailure, ferrors.ErrAuthFailed.Error()))
			return
		}
	}
	s.Send(s.handle(req))
}

// Send encodes resp and queues it for the client it is addressed to.
// Local responses and responses to forgotten clients are dropped.  A
// response too large for one datagram is replaced by a notice.
func (s *Server) Send(resp protocol.Response) {
	if resp.Remote == nil {
		s.log.Debug("not sending a local %s response", resp.Kind)
		return
	}
	addr, ok := s.clients.addr(resp.Remote.ClientID)
	if !ok {
		s.log.Verbose("client %d is gone, dropping %s response", resp.Remote.ClientID, resp.Kind)
		s.metrics.DatagramDropped()
		return
	}

	frame := wire.ResponseFrameOf(resp)
	data, err := wire.EncodeResponse(frame)
	if ferrors.Is(err, ferrors.ErrFrameTooLarge) {
		s.log.Verbose("client %d: %v", resp.Remote.ClientID, err)
		frame.Payload = protocol.StringPayload(fmt.Sprintf(
			"the %s response does not fit in one %d-byte datagram", resp.Kind, wire.MaxFrameSize))
		data, err = wire.EncodeResponse(frame)
	}
	if err != nil {
		s.log.Error("encoding response for client %d: %v", resp.Remote.ClientID, err)
		s.metrics.RecordError(err.Error())
		return
	}

	select {
	case s.outbox <- outbound{addr: addr, data: data}:
	case <-s.stopped:
		s.metrics.DatagramDropped()
	}
}

func (s *Server) sender(ctx context.Context) error {
	for {
		select {
		case out := <-s.outbox:
			n, err := s.conn.WriteToUDP(out.data, out.addr)
			if err != nil {
				s.log.Debug("send to %s: %v", out.addr, err)
				s.metrics.DatagramDropped()
				continue
			}
			s.metrics.ResponseSent(n)
		case <-ctx.Done():
			return nil
		}
	}
}

// Close releases the socket of a server that was never served.  Serve
// closes it on its own.
func (s *Server) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	if util.IsClosedConn(err) {
		return nil
	}
	return err
}
