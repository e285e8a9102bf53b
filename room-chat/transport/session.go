// Package transport wraps a websocket as a named-event channel.
//
// Received events, including the synthetic connect and disconnect events, are
// queued in receipt order and handed to their handlers one at a time.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Transport-level events delivered through On.
const (
	EventConnect    = "connect"
	EventDisconnect = "disconnect"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 30 * time.Second
	sendBufferSize = 64
	queueSize      = 256
	readLimit      = 1 << 20
)

var (
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected")
	ErrClosed           = errors.New("transport closed")
)

// Handler receives the raw payload of an event. Connect and disconnect
// handlers receive a nil payload.
type Handler func(payload json.RawMessage)

// Executor runs a queued handler invocation. It is called from the dispatch
// goroutine, one call at a time, in delivery order.
type Executor func(fn func())

// Option configures a Session.
type Option func(*Session)

// WithExecutor hands every handler invocation to exec instead of running it
// on the dispatch goroutine.
func WithExecutor(exec Executor) Option {
	return func(s *Session) { s.exec = exec }
}

// WithDialer overrides the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(s *Session) { s.dialer = d }
}

// WithHeader sets extra headers on the websocket handshake.
func WithHeader(h http.Header) Option {
	return func(s *Session) { s.header = h }
}

// Session is a reconnectable event channel to a single relay URL.
type Session struct {
	url    string
	dialer *websocket.Dialer
	header http.Header
	exec   Executor

	hmu      sync.RWMutex
	handlers map[string][]Handler

	// lifecycle orders connection changes with the events they enqueue.
	lifecycle sync.Mutex
	active    atomic.Pointer[conn]

	queue     chan func()
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a disconnected session for url and starts its dispatcher.
func New(url string, opts ...Option) *Session {
	s := &Session{
		url:      url,
		dialer:   websocket.DefaultDialer,
		exec:     func(fn func()) { fn() },
		handlers: map[string][]Handler{},
		queue:    make(chan func(), queueSize),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.dispatch()
	return s
}

// On registers h for event. Handlers for the same event run in registration order.
func (s *Session) On(event string, h Handler) {
	s.hmu.Lock()
	s.handlers[event] = append(s.handlers[event], h)
	s.hmu.Unlock()
}

// Connected reports whether a connection is active.
func (s *Session) Connected() bool {
	return s.active.Load() != nil
}

// Connect dials the relay. It fails with ErrAlreadyConnected if a
// connection is active.
func (s *Session) Connect(ctx context.Context) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if s.active.Load() != nil {
		return ErrAlreadyConnected
	}

	ws, _, err := s.dialer.DialContext(ctx, s.url, s.header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.url, err)
	}
	c := newConn(s, ws)
	s.active.Store(c)
	log.Info().Str("conn_id", c.id).Str("url", s.url).Msg("[transport] connected")
	s.enqueue(EventConnect, nil)

	go c.readLoop()
	go c.writeLoop()
	return nil
}

// Disconnect closes the active connection, if any. The disconnect event is
// delivered once per connection.
func (s *Session) Disconnect() {
	if c := s.active.Load(); c != nil {
		c.close()
	}
}

// Close disconnects and stops the dispatcher. Pending events are discarded.
func (s *Session) Close() error {
	s.Disconnect()
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

// Send encodes payload and queues it on the active connection.
// Without a connection it reports ErrNotConnected and drops the event.
func (s *Session) Send(event string, payload any) error {
	c := s.active.Load()
	if c == nil {
		log.Warn().Str("event", event).Msg("[transport] send dropped: not connected")
		return ErrNotConnected
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	frame, err := json.Marshal(Envelope{Type: event, Payload: body})
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	c.push(frame)
	return nil
}

func (s *Session) enqueue(event string, payload json.RawMessage) {
	s.push(func() { s.deliver(event, payload) })
}

// enqueueFrom queues a frame read from c. Frames that reach the head of the
// queue after c's disconnect has been delivered are dropped.
func (s *Session) enqueueFrom(c *conn, event string, payload json.RawMessage) {
	s.push(func() {
		if c.ended.Load() {
			log.Debug().Str("conn_id", c.id).Str("event", event).Msg("[transport] drop frame from ended connection")
			return
		}
		s.deliver(event, payload)
	})
}

func (s *Session) push(fn func()) {
	select {
	case s.queue <- fn:
	case <-s.done:
	}
}

func (s *Session) deliver(event string, payload json.RawMessage) {
	s.hmu.RLock()
	hs := append([]Handler(nil), s.handlers[event]...)
	s.hmu.RUnlock()
	if len(hs) == 0 {
		log.Debug().Str("event", event).Msg("[transport] no handler")
		return
	}
	for _, h := range hs {
		h(payload)
	}
}

func (s *Session) dispatch() {
	for {
		select {
		case fn := <-s.queue:
			s.exec(fn)
		case <-s.done:
			return
		}
	}
}

// detach clears c as the active connection and queues its disconnect event.
func (s *Session) detach(c *conn) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	s.active.CompareAndSwap(c, nil)
	log.Info().Str("conn_id", c.id).Msg("[transport] disconnected")
	s.push(func() {
		c.ended.Store(true)
		s.deliver(EventDisconnect, nil)
	})
}

// conn is one logical websocket connection.
type conn struct {
	id      string
	session *Session
	ws      *websocket.Conn
	send    chan []byte
	quit    chan struct{}
	closed  atomic.Bool
	// ended is set once the disconnect event has been delivered.
	ended   atomic.Bool
}

func newConn(s *Session, ws *websocket.Conn) *conn {
	return &conn{
		id:      uuid.NewString(),
		session: s,
		ws:      ws,
		send:    make(chan []byte, sendBufferSize),
		quit:    make(chan struct{}),
	}
}

func (c *conn) readLoop() {
	defer c.close()
	c.ws.SetReadLimit(readLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				log.Debug().Err(err).Str("conn_id", c.id).Msg("[transport] read message")
			}
			return
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
			log.Debug().Err(err).Str("conn_id", c.id).Msg("[transport] skip malformed frame")
			continue
		}
		if c.closed.Load() {
			continue
		}
		c.session.enqueueFrom(c, env.Type, env.Payload)
	}
}

func (c *conn) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()
	for {
		select {
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Debug().Err(err).Str("conn_id", c.id).Msg("[transport] write frame")
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.quit:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *conn) push(frame []byte) {
	select {
	case c.send <- frame:
	default:
		// drop oldest to avoid blocking the caller
		select {
		case <-c.send:
			log.Debug().Str("conn_id", c.id).Msg("[transport] send buffer full; dropped oldest frame")
		default:
		}
		select {
		case c.send <- frame:
		default:
		}
	}
}

func (c *conn) close() {
	if c.closed.Swap(true) {
		return
	}
	close(c.quit)
	c.session.detach(c)
	go func() {
		// let writeLoop send the close frame before tearing down the socket
		time.Sleep(100 * time.Millisecond)
		_ = c.ws.Close()
	}()
}
