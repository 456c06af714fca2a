// Package rpc implements request/response RPC over a gorilla websocket.
// Both ends of a connection are symmetrical peers: each registers handlers
// for the methods it serves and performs calls on the other side.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/appointment-assistant/sessionsync/internal/config"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	ErrConnectionClosed = errors.New("rpc: connection closed")
	ErrResponseTimeout  = errors.New("rpc: response timeout")
)

// Handler serves one inbound request. The returned string is sent back as
// the response payload.
type Handler func(ctx context.Context, payload string) (string, error)

type Options struct {
	ResponseTimeout time.Duration
	PingInterval    time.Duration
	PongTimeout     time.Duration
	WriteTimeout    time.Duration
	InboundRate     float64
	InboundBurst    int
	MaxPayloadBytes int64
}

// OptionsFrom maps the rpc config section to peer options.
func OptionsFrom(cfg config.RPCConfig) Options {
	return Options{
		ResponseTimeout: cfg.ResponseTimeout,
		PingInterval:    cfg.PingInterval,
		PongTimeout:     cfg.PongTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		InboundRate:     cfg.InboundRate,
		InboundBurst:    cfg.InboundBurst,
		MaxPayloadBytes: cfg.MaxPayloadBytes,
	}
}

func (o Options) withDefaults() Options {
	d := OptionsFrom(config.Default().RPC)
	if o.ResponseTimeout <= 0 {
		o.ResponseTimeout = d.ResponseTimeout
	}
	if o.PingInterval <= 0 {
		o.PingInterval = d.PingInterval
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = d.PongTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	if o.MaxPayloadBytes <= 0 {
		o.MaxPayloadBytes = d.MaxPayloadBytes
	}
	return o
}

// Peer is one end of an RPC websocket. Inbound requests are served
// concurrently, one goroutine each. All writes go through a single write
// pump.
type Peer struct {
	conn    *websocket.Conn
	opts    Options
	log     *zap.Logger
	limiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc

	send chan []byte
	done chan struct{}

	mu       sync.Mutex
	handlers map[string]Handler
	pending  map[string]chan Message

	closeOnce sync.Once
	closeErr  error
	inflight  sync.WaitGroup
}

// NewPeer wraps conn. Call Run to start reading and writing.
func NewPeer(conn *websocket.Conn, opts Options, logger *zap.Logger) *Peer {
	opts = opts.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Peer{
		conn:     conn,
		opts:     opts,
		log:      logger,
		ctx:      ctx,
		cancel:   cancel,
		send:     make(chan []byte, 64),
		done:     make(chan struct{}),
		handlers: make(map[string]Handler),
		pending:  make(map[string]chan Message),
	}
	if opts.InboundRate > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(opts.InboundRate), max(opts.InboundBurst, 1))
	}
	return p
}

// RegisterRPCMethod binds h to method, replacing any previous handler.
func (p *Peer) RegisterRPCMethod(method string, h Handler) {
	p.mu.Lock()
	p.handlers[method] = h
	p.mu.Unlock()
}

// UnregisterRPCMethod removes the handler for method. It is a no-op when
// nothing is registered.
func (p *Peer) UnregisterRPCMethod(method string) {
	p.mu.Lock()
	delete(p.handlers, method)
	p.mu.Unlock()
}

func (p *Peer) handler(method string) (Handler, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.handlers[method]
	return h, ok
}

// Done is closed once the peer has shut down.
func (p *Peer) Done() <-chan struct{} {
	return p.done
}

// Err returns the reason the peer shut down, or nil while it is running.
func (p *Peer) Err() error {
	select {
	case <-p.done:
		return p.closeErr
	default:
		return nil
	}
}

// Run reads frames until the connection fails or ctx is done. It always
// closes the peer before returning.
func (p *Peer) Run(ctx context.Context) error {
	go p.writePump()
	go func() {
		select {
		case <-ctx.Done():
			p.shutdown(ctx.Err())
		case <-p.done:
		}
	}()

	p.conn.SetReadLimit(p.opts.MaxPayloadBytes)
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(p.opts.PongTimeout))
	})
	_ = p.conn.SetReadDeadline(time.Now().Add(p.opts.PongTimeout))

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			p.shutdown(err)
			p.inflight.Wait()
			return p.closeErr
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			p.log.Warn("dropping malformed frame", zap.Error(err))
			continue
		}

		switch msg.Type {
		case MsgRequest:
			p.serve(msg)
		case MsgResponse:
			p.resolve(msg)
		default:
			p.log.Warn("dropping frame of unknown type", zap.String("type", string(msg.Type)))
		}
	}
}

// Close shuts the peer down. Pending calls fail with ErrConnectionClosed.
func (p *Peer) Close() error {
	p.shutdown(ErrConnectionClosed)
	return nil
}

func (p *Peer) shutdown(reason error) {
	p.closeOnce.Do(func() {
		if reason == nil {
			reason = ErrConnectionClosed
		}
		p.closeErr = reason
		p.cancel()
		close(p.done)
		_ = p.conn.Close()
	})
}

func (p *Peer) serve(req Message) {
	if p.limiter != nil && !p.limiter.Allow() {
		p.reply(req.ID, "", &Error{Code: CodeRateLimited, Message: "rate limited"})
		return
	}

	h, ok := p.handler(req.Method)
	if !ok {
		p.log.Debug("unsupported method", zap.String("method", req.Method))
		p.reply(req.ID, "", &Error{Code: CodeUnsupportedMethod, Message: "unsupported method"})
		return
	}

	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				p.log.Error("rpc handler panic", zap.String("method", req.Method), zap.Any("panic", r))
				p.reply(req.ID, "", &Error{Code: CodeApplicationError, Message: fmt.Sprint(r)})
			}
		}()

		resp, err := h(p.ctx, req.Payload)
		if err != nil {
			p.reply(req.ID, "", &Error{Code: CodeApplicationError, Message: err.Error()})
			return
		}
		p.reply(req.ID, resp, nil)
	}()
}

func (p *Peer) reply(id, payload string, rpcErr *Error) {
	msg := Message{Type: MsgResponse, ID: id, Payload: payload, Error: rpcErr}
	if err := p.enqueue(context.Background(), msg); err != nil {
		p.log.Debug("response not sent", zap.String("id", id), zap.Error(err))
	}
}

func (p *Peer) resolve(resp Message) {
	p.mu.Lock()
	ch, ok := p.pending[resp.ID]
	delete(p.pending, resp.ID)
	p.mu.Unlock()
	if !ok {
		p.log.Debug("response for unknown request", zap.String("id", resp.ID))
		return
	}
	ch <- resp
}

// Perform calls method on the remote peer and waits for its response, at
// most ResponseTimeout.
func (p *Peer) Perform(ctx context.Context, method, payload string) (string, error) {
	id := uuid.NewString()
	ch := make(chan Message, 1)

	p.mu.Lock()
	p.pending[id] = ch
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.pending, id)
		p.mu.Unlock()
	}()

	req := Message{Type: MsgRequest, ID: id, Method: method, Payload: payload}
	if err := p.enqueue(ctx, req); err != nil {
		return "", err
	}

	timer := time.NewTimer(p.opts.ResponseTimeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return "", resp.Error
		}
		return resp.Payload, nil
	case <-timer.C:
		return "", fmt.Errorf("%s: %w", method, ErrResponseTimeout)
	case <-ctx.Done():
		return "", ctx.Err()
	case <-p.done:
		return "", ErrConnectionClosed
	}
}

func (p *Peer) enqueue(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msg.Type, err)
	}
	if int64(len(data)) > p.opts.MaxPayloadBytes {
		return &Error{Code: CodePayloadTooLarge, Message: "payload too large"}
	}
	select {
	case p.send <- data:
		return nil
	case <-p.done:
		return ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// writePump owns every write on the connection, including pings.
func (p *Peer) writePump() {
	ticker := time.NewTicker(p.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case data := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(p.opts.WriteTimeout))
			if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				p.shutdown(err)
				return
			}
		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(p.opts.WriteTimeout))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				p.shutdown(err)
				return
			}
		case <-p.done:
			return
		}
	}
}
