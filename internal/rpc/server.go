package rpc

import (
	"context"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yanun0323/logs"

	"vblock/internal/block"
	"vblock/internal/errors"
	"vblock/internal/obs"
	"vblock/internal/wire"
	"vblock/pkg/exception"
	"vblock/pkg/udp"
)

const (
	defaultReadTimeout = 500 * time.Millisecond
	defaultStaleAfter  = 5 * time.Second
	maxDatagram        = 64 << 10
)

// Factory builds the object behind a fresh handle from the caller's coerced CREATE arguments.
type Factory func(ctx context.Context, caller net.Addr, args []wire.Value) (block.Block, error)

// Option customizes a Server.
type Option func(*Server)

// WithDebug makes FAILURE replies carry the server-side error text.
func WithDebug(enabled bool) Option {
	return func(s *Server) { s.debug = enabled }
}

// WithReadTimeout bounds each socket wait so shutdown is noticed promptly.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.readTimeout = d
		}
	}
}

// WithStaleAfter drops partially received messages from senders quiet for longer than d.
func WithStaleAfter(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.staleAfter = d
		}
	}
}

func WithDatagramSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.size = n
		}
	}
}

func WithMetrics(m *obs.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

type entry struct {
	obj    block.Block
	caller string
}

type partial struct {
	r    *wire.Reassembler
	last time.Time
}

// Server owns the handle registry and answers requests on one UDP socket.
// Requests are served one at a time by the goroutine running Serve.
type Server struct {
	udp     *udp.Server
	factory Factory
	methods map[string]method

	debug       bool
	readTimeout time.Duration
	staleAfter  time.Duration
	size        int
	metrics     *obs.Metrics

	mu      sync.Mutex
	objects map[string]entry
	partial map[string]*partial
}

// NewServer creates a server for address. Call Listen, then Serve.
func NewServer(address string, factory Factory, opts ...Option) (*Server, error) {
	if factory == nil {
		return nil, exception.ErrNilFactory
	}
	u, err := udp.NewServer(address)
	if err != nil {
		return nil, err
	}

	s := &Server{
		udp:         u,
		factory:     factory,
		methods:     blockMethods,
		readTimeout: defaultReadTimeout,
		staleAfter:  defaultStaleAfter,
		size:        wire.DatagramSize,
		objects:     make(map[string]entry),
		partial:     make(map[string]*partial),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Server) Listen() error {
	if s == nil {
		return exception.ErrNilServer
	}
	return s.udp.Listen()
}

// Addr is the bound address once listening.
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.udp.Addr()
}

// Handles reports how many objects are alive.
func (s *Server) Handles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// Close unblocks Serve by closing the socket.
func (s *Server) Close() error {
	if s == nil {
		return exception.ErrNilServer
	}
	return s.udp.Close()
}

// Serve answers requests until ctx is done or the server is closed. Every live object is
// released before it returns.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return exception.ErrNilServer
	}
	conn, err := s.udp.Conn()
	if err != nil {
		return err
	}
	defer s.releaseAll()

	logs.Infof("rpc server listening on %s", s.Addr())
	buf := make([]byte, maxDatagram)
	for {
		if ctx.Err() != nil {
			logs.Infof("rpc server on %s stopped", s.Addr())
			return nil
		}

		if err := conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return errors.Wrap(err, "set read deadline")
		}

		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				s.purgeStale(time.Now())
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return errors.Wrap(err, "read datagram")
		}
		s.metrics.AddDatagrams(1)

		msg, ok := s.feed(addr.String(), buf[:n])
		if !ok {
			continue
		}
		s.handle(ctx, conn, addr, msg)
	}
}

// feed reassembles per sender so interleaved clients cannot corrupt each other.
func (s *Server) feed(key string, chunk []byte) ([]byte, bool) {
	p, ok := s.partial[key]
	if !ok {
		p = &partial{r: wire.NewReassembler(s.size)}
		s.partial[key] = p
	}
	msg, done := p.r.Feed(chunk)
	if !done {
		p.last = time.Now()
		return nil, false
	}
	delete(s.partial, key)
	return msg, true
}

func (s *Server) purgeStale(now time.Time) {
	for key, p := range s.partial {
		if now.Sub(p.last) > s.staleAfter {
			logs.Warnf("drop %d stale bytes from %s", p.r.Pending(), key)
			delete(s.partial, key)
			s.metrics.IncStaleChunks()
		}
	}
}

func (s *Server) handle(ctx context.Context, conn *net.UDPConn, addr *net.UDPAddr, raw []byte) {
	start := time.Now()

	req, err := wire.DecodeMessage(raw)
	if err != nil {
		s.metrics.IncMalformed()
		logs.Warnf("malformed request from %s, err: %+v", addr, err)
		s.reply(conn, addr, s.failure(err))
		return
	}

	reply := s.dispatch(ctx, addr, req)
	s.reply(conn, addr, reply)
	s.metrics.ObserveRequest(req.Type, time.Since(start))
}

func (s *Server) dispatch(ctx context.Context, addr *net.UDPAddr, req wire.Message) wire.Message {
	switch req.Type {
	case wire.TypeCreate:
		return s.create(ctx, addr, req)
	case wire.TypeCall:
		return s.call(ctx, req)
	case wire.TypeDestroy:
		return s.destroy(req)
	default:
		return s.failure(errors.Wrapf(exception.ErrUnknownMessageType, "%s is not a request", req.Type))
	}
}

func (s *Server) create(ctx context.Context, addr *net.UDPAddr, req wire.Message) wire.Message {
	args, err := wire.CoerceArgs(req.Payload)
	if err != nil {
		return s.failure(errors.Wrap(err, "create"))
	}

	obj, err := s.factory(ctx, addr, args)
	if err != nil {
		if obj != nil {
			release(obj)
		}
		return s.failure(errors.Wrap(err, "create"))
	}

	handle := s.newHandle()
	payload, err := wire.EncodeResult(nil, wire.Scalar(wire.StringValue(handle)))
	if err != nil {
		release(obj)
		return s.failure(errors.Wrap(err, "create"))
	}

	s.mu.Lock()
	s.objects[handle] = entry{obj: obj, caller: addr.String()}
	s.mu.Unlock()

	logs.Infof("created %s for %s", handle, addr)
	return wire.Message{Type: wire.TypeSuccess, Payload: payload}
}

func (s *Server) call(ctx context.Context, req wire.Message) wire.Message {
	s.mu.Lock()
	e, ok := s.objects[req.Handle]
	s.mu.Unlock()
	if !ok {
		return s.failure(errors.Wrapf(exception.ErrUnknownHandle, "%s", req.Handle))
	}

	m, ok := s.methods[req.Method]
	if !ok {
		return s.failure(errors.Wrapf(exception.ErrUnknownMethod, "%s", req.Method))
	}

	args, err := wire.CoerceArgs(req.Payload)
	if err != nil {
		return s.failure(errors.Wrap(err, req.Method))
	}

	res, err := m(ctx, e.obj, newArgReader(args))
	if err != nil {
		return s.failure(errors.Wrap(err, req.Method))
	}
	return s.success(res)
}

func (s *Server) destroy(req wire.Message) wire.Message {
	s.mu.Lock()
	e, ok := s.objects[req.Handle]
	delete(s.objects, req.Handle)
	s.mu.Unlock()
	if !ok {
		return s.failure(errors.Wrapf(exception.ErrUnknownHandle, "%s", req.Handle))
	}

	release(e.obj)
	logs.Infof("destroyed %s of %s", req.Handle, e.caller)
	return wire.Message{Type: wire.TypeSuccess}
}

func (s *Server) success(res wire.Result) wire.Message {
	if res.IsEmpty() {
		return wire.Message{Type: wire.TypeSuccess}
	}

	payload, err := wire.EncodeResult(nil, res)
	if err != nil {
		return s.failure(err)
	}
	if res.Shape == wire.ShapeRecord {
		return wire.Message{Type: wire.TypeSuccessTyped, Payload: payload}
	}
	return wire.Message{Type: wire.TypeSuccess, Payload: payload}
}

func (s *Server) failure(err error) wire.Message {
	logs.Debugf("request failed, err: %+v", err)
	reply := wire.Message{Type: wire.TypeFailure}
	if s.debug {
		reply.Payload = []byte(err.Error())
	}
	return reply
}

func (s *Server) reply(conn *net.UDPConn, addr *net.UDPAddr, reply wire.Message) {
	b, err := reply.Encode()
	if err != nil {
		logs.Errorf("encode %s reply, err: %+v", reply.Type, err)
		b = []byte{byte(wire.TypeFailure)}
		reply.Type = wire.TypeFailure
	}

	n, err := wire.Send(func(chunk []byte) error {
		_, err := conn.WriteToUDP(chunk, addr)
		return err
	}, b, s.size)
	s.metrics.AddDatagrams(n)
	if err != nil {
		logs.Warnf("send %s reply to %s, err: %+v", reply.Type, addr, err)
		return
	}
	s.metrics.IncReply(reply.Type)
}

// newHandle returns a handle that is not in use.
func (s *Server) newHandle() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		h := uuid.NewString()
		if _, ok := s.objects[h]; !ok {
			return h
		}
	}
}

func (s *Server) releaseAll() {
	s.mu.Lock()
	objects := s.objects
	s.objects = make(map[string]entry)
	s.mu.Unlock()

	for h, e := range objects {
		release(e.obj)
		logs.Infof("released %s of %s on shutdown", h, e.caller)
	}
}

func release(obj block.Block) {
	c, ok := obj.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		logs.Warnf("release object, err: %+v", err)
	}
}
