package rpc

import (
	"context"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"vblock/internal/errors"
	"vblock/internal/wire"
	"vblock/pkg/exception"
	"vblock/pkg/udp"
)

const (
	defaultCallTimeout = 2 * time.Second
	drainWait          = 5 * time.Millisecond
)

// ProxyOption customizes a Proxy.
type ProxyOption func(*Proxy)

// WithCallTimeout bounds how long one request waits for its reply.
func WithCallTimeout(d time.Duration) ProxyOption {
	return func(p *Proxy) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithProxyDatagramSize(n int) ProxyOption {
	return func(p *Proxy) {
		if n > 0 {
			p.size = n
		}
	}
}

// Proxy owns one remote object. It keeps at most one request in flight.
type Proxy struct {
	conn    *net.UDPConn
	addr    string
	timeout time.Duration
	size    int
	buf     []byte

	mu        sync.Mutex
	handle    string
	destroyed bool
	dirty     bool
}

// Dial connects a proxy to the server at address. No request is sent until Create.
func Dial(address string, opts ...ProxyOption) (*Proxy, error) {
	c, err := udp.NewClient(address)
	if err != nil {
		return nil, err
	}
	conn, err := c.Dial()
	if err != nil {
		return nil, errors.Wrapf(exception.ErrConnClosed, "dial %s: %v", address, err)
	}

	p := &Proxy{
		conn:    conn,
		addr:    c.Addr(),
		timeout: defaultCallTimeout,
		size:    wire.DatagramSize,
		buf:     make([]byte, maxDatagram),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Handle returns the remote handle, empty before Create.
func (p *Proxy) Handle() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handle
}

// Create asks the server to build the remote object.
func (p *Proxy) Create(ctx context.Context, args ...wire.Arg) error {
	if err := wire.CheckArgs(args); err != nil {
		return err
	}
	payload, err := wire.EncodeArgs(args)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed {
		return exception.ErrProxyDestroyed
	}
	if p.handle != "" {
		return exception.ErrProxyCreated
	}

	reply, err := p.roundTrip(ctx, wire.Message{Type: wire.TypeCreate, Payload: payload})
	if err != nil {
		return errors.Wrapf(err, "create(%s)", formatArgs(args))
	}

	switch reply.Type {
	case wire.TypeSuccess:
		res, err := wire.DecodeResult(reply.Payload)
		if err != nil {
			return errors.Wrap(err, "create")
		}
		if res.Shape != wire.ShapeScalar || res.Scalar.Kind != wire.KindString || res.Scalar.Str == "" {
			return errors.Wrap(exception.ErrUnexpectedType, "create reply carries no handle")
		}
		p.handle = res.Scalar.Str
		return nil
	case wire.TypeFailure:
		return failureError("create", args, reply)
	default:
		return errors.Wrapf(exception.ErrUnexpectedType, "create answered with %s", reply.Type)
	}
}

// Call invokes method on the remote object. A bare SUCCESS comes back as Bool(true).
func (p *Proxy) Call(ctx context.Context, method string, args ...wire.Arg) (wire.Result, error) {
	res, bare, err := p.call(ctx, method, args...)
	if err != nil {
		return wire.Result{}, err
	}
	if bare {
		return wire.Scalar(wire.BoolValue(true)), nil
	}
	return res, nil
}

// call reports a bare SUCCESS separately so typed callers can map it to their zero value.
func (p *Proxy) call(ctx context.Context, method string, args ...wire.Arg) (wire.Result, bool, error) {
	if err := wire.CheckDelimiter(method); err != nil {
		return wire.Result{}, false, err
	}
	if err := wire.CheckArgs(args); err != nil {
		return wire.Result{}, false, err
	}
	payload, err := wire.EncodeArgs(args)
	if err != nil {
		return wire.Result{}, false, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed {
		return wire.Result{}, false, exception.ErrProxyDestroyed
	}
	if p.handle == "" {
		return wire.Result{}, false, exception.ErrProxyNotCreated
	}

	reply, err := p.roundTrip(ctx, wire.Message{
		Type:    wire.TypeCall,
		Handle:  p.handle,
		Method:  method,
		Payload: payload,
	})
	if err != nil {
		return wire.Result{}, false, errors.Wrapf(err, "%s(%s)", method, formatArgs(args))
	}

	switch reply.Type {
	case wire.TypeSuccess:
		if len(reply.Payload) == 0 {
			return wire.Result{}, true, nil
		}
		res, err := wire.DecodeResult(reply.Payload)
		if err != nil {
			return wire.Result{}, false, errors.Wrap(err, method)
		}
		return res, false, nil
	case wire.TypeSuccessTyped:
		res, err := wire.DecodeResult(reply.Payload)
		if err != nil {
			return wire.Result{}, false, errors.Wrap(err, method)
		}
		if res.Shape != wire.ShapeRecord {
			return wire.Result{}, false, errors.Wrapf(exception.ErrUnexpectedType, "%s: typed reply without record", method)
		}
		return res, false, nil
	case wire.TypeFailure:
		return wire.Result{}, false, failureError(method, args, reply)
	default:
		return wire.Result{}, false, errors.Wrapf(exception.ErrUnexpectedType, "%s answered with %s", method, reply.Type)
	}
}

// Destroy releases the remote object. The proxy is unusable afterwards even if the request
// fails; a FAILURE reply during teardown is ignored and repeated calls are no-ops.
func (p *Proxy) Destroy(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed {
		return nil
	}
	p.destroyed = true
	if p.handle == "" {
		return nil
	}

	_, err := p.roundTrip(ctx, wire.Message{Type: wire.TypeDestroy, Handle: p.handle})
	if err != nil {
		return errors.Wrapf(err, "destroy %s", p.handle)
	}
	return nil
}

// Close destroys the remote object, waiting at most one call timeout, and closes the socket.
func (p *Proxy) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	err := p.Destroy(ctx)
	if cerr := p.conn.Close(); cerr != nil && err == nil && !errors.Is(cerr, net.ErrClosed) {
		err = cerr
	}
	return err
}

// roundTrip sends req and waits for one reply. p.mu must be held.
func (p *Proxy) roundTrip(ctx context.Context, req wire.Message) (wire.Message, error) {
	b, err := req.Encode()
	if err != nil {
		return wire.Message{}, err
	}
	if err := ctx.Err(); err != nil {
		return wire.Message{}, err
	}
	if p.dirty {
		p.drain()
	}

	deadline := time.Now().Add(p.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := p.conn.SetReadDeadline(deadline); err != nil {
		return wire.Message{}, errors.Wrapf(exception.ErrConnClosed, "%v", err)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = p.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	if _, err := wire.Send(func(chunk []byte) error {
		_, err := p.conn.Write(chunk)
		return err
	}, b, p.size); err != nil {
		return wire.Message{}, errors.Wrapf(exception.ErrSendFailed, "%s to %s: %v", req.Type, p.addr, err)
	}

	r := wire.NewReassembler(p.size)
	for {
		n, err := p.conn.Read(p.buf)
		if err != nil {
			p.dirty = true
			switch {
			case ctx.Err() != nil:
				return wire.Message{}, ctx.Err()
			case errors.Is(err, os.ErrDeadlineExceeded):
				return wire.Message{}, errors.Wrapf(exception.ErrReceiveTimeout, "%s from %s", req.Type, p.addr)
			case errors.Is(err, net.ErrClosed):
				return wire.Message{}, exception.ErrConnClosed
			default:
				return wire.Message{}, errors.Wrapf(exception.ErrCommunication, "read from %s: %v", p.addr, err)
			}
		}
		if msg, done := r.Feed(p.buf[:n]); done {
			return wire.DecodeMessage(msg)
		}
	}
}

// drain discards replies that arrived after an earlier request gave up waiting.
func (p *Proxy) drain() {
	p.dirty = false
	if err := p.conn.SetReadDeadline(time.Now().Add(drainWait)); err != nil {
		return
	}
	for {
		if _, err := p.conn.Read(p.buf); err != nil {
			return
		}
	}
}

func failureError(method string, args []wire.Arg, reply wire.Message) error {
	if len(reply.Payload) != 0 {
		return errors.Wrapf(exception.ErrFailureStatus, "%s(%s): %s", method, formatArgs(args), reply.Payload)
	}
	return errors.Wrapf(exception.ErrFailureStatus, "%s(%s)", method, formatArgs(args))
}

func formatArgs(args []wire.Arg) string {
	lits := make([]string, 0, len(args))
	for _, a := range args {
		lits = append(lits, a.Literal)
	}
	return strings.Join(lits, ", ")
}
