// Package relaytest runs a scripted websocket relay for tests.
//
// Every client frame is recorded and handed to an optional reply function,
// and tests can push arbitrary events to the connected clients.
package relaytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/gosuda/portal-chat/room-chat/transport"
)

// Reply reacts to a received event. Push sends to the originating client.
type Reply func(ev transport.Envelope, push func(event string, payload any))

// Server is an in-process relay endpoint.
type Server struct {
	t    testing.TB
	http *httptest.Server

	// gorilla connections allow one concurrent writer.
	writeMu sync.Mutex

	mu       sync.Mutex
	conns    map[*websocket.Conn]struct{}
	onAccept func(push func(event string, payload any))
	reply    Reply
	header   http.Header

	received chan transport.Envelope
}

// New starts a relay and registers its shutdown with t.Cleanup.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		t:        t,
		conns:    map[*websocket.Conn]struct{}{},
		received: make(chan transport.Envelope, 256),
	}
	r := chi.NewRouter()
	r.Get("/ws", s.handleWS)
	s.http = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// URL returns the ws:// address of the relay endpoint.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.http.URL, "http") + "/ws"
}

// OnAccept runs fn for every new client before its frames are read.
func (s *Server) OnAccept(fn func(push func(event string, payload any))) {
	s.mu.Lock()
	s.onAccept = fn
	s.mu.Unlock()
}

// OnEvent installs the reply function.
func (s *Server) OnEvent(fn Reply) {
	s.mu.Lock()
	s.reply = fn
	s.mu.Unlock()
}

// Push sends an event to every connected client.
func (s *Server) Push(event string, payload any) {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		s.write(c, event, payload)
	}
}

// Next waits for the next client frame.
func (s *Server) Next(timeout time.Duration) (transport.Envelope, bool) {
	select {
	case ev := <-s.received:
		return ev, true
	case <-time.After(timeout):
		return transport.Envelope{}, false
	}
}

// Header returns the handshake headers of the most recent client.
func (s *Server) Header() http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.header.Clone()
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// DropAll closes every client connection from the server side.
func (s *Server) DropAll() {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		_ = c.Close()
	}
}

// Close drops all clients and stops the HTTP server.
func (s *Server) Close() {
	s.DropAll()
	s.http.Close()
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	s.mu.Lock()
	s.header = r.Header.Clone()
	s.mu.Unlock()
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	push := func(event string, payload any) { s.write(c, event, payload) }

	s.mu.Lock()
	onAccept := s.onAccept
	s.mu.Unlock()
	if onAccept != nil {
		onAccept(push)
	}
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
		_ = c.Close()
	}()
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		var ev transport.Envelope
		if err := json.Unmarshal(data, &ev); err != nil {
			s.t.Logf("relaytest: bad frame %q: %v", data, err)
			continue
		}
		select {
		case s.received <- ev:
		default:
			s.t.Logf("relaytest: received buffer full, dropping %s", ev.Type)
		}
		s.mu.Lock()
		reply := s.reply
		s.mu.Unlock()
		if reply != nil {
			reply(ev, push)
		}
	}
}

func (s *Server) write(c *websocket.Conn, event string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		s.t.Errorf("relaytest: encode %s: %v", event, err)
		return
	}
	frame, _ := json.Marshal(transport.Envelope{Type: event, Payload: body})
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = c.WriteMessage(websocket.TextMessage, frame)
}
