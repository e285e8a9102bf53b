package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/portal-chat/room-chat/identity"
	"github.com/gosuda/portal-chat/room-chat/protocol"
	"github.com/gosuda/portal-chat/room-chat/session"
	"github.com/gosuda/portal-chat/room-chat/transport"
)

type loopback struct {
	handlers map[string][]transport.Handler
	sent     []string
}

func (l *loopback) On(event string, h transport.Handler) {
	l.handlers[event] = append(l.handlers[event], h)
}

func (l *loopback) Send(event string, payload any) error {
	l.sent = append(l.sent, event)
	return nil
}

func (l *loopback) emit(event string, payload any) {
	raw, _ := json.Marshal(payload)
	for _, h := range l.handlers[event] {
		h(raw)
	}
}

func newTestModel(t *testing.T) (*model, *loopback) {
	t.Helper()
	lb := &loopback{handlers: map[string][]transport.Handler{}}
	id, err := identity.Load(identity.NewMemoryStore(), func() string { return "me" })
	require.NoError(t, err)

	m := newModel()
	m.bind(session.New(lb, id, session.Options{OnChange: m.onChange}))
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 20})

	lb.emit(transport.EventConnect, nil)
	lb.emit(protocol.EventRoomJoined, protocol.RoomJoined{Room: "General"})
	return m, lb
}

func (l *loopback) say(n int) {
	for i := 0; i < n; i++ {
		l.emit(protocol.EventMessage, map[string]any{
			"message": map[string]string{"username": "bob", "messageText": fmt.Sprintf("line %d", i)},
		})
	}
}

func TestViewFollowsNewMessagesAtBottom(t *testing.T) {
	m, lb := newTestModel(t)
	lb.say(40)
	assert.True(t, m.viewport.AtBottom())
	assert.Contains(t, m.viewport.View(), "line 39")
}

func TestViewKeepsPositionWhenScrolledUp(t *testing.T) {
	m, lb := newTestModel(t)
	lb.say(40)

	m.Update(tea.KeyMsg{Type: tea.KeyPgUp})
	offset := m.viewport.YOffset
	require.False(t, m.viewport.AtBottom())

	lb.say(1)
	assert.Equal(t, offset, m.viewport.YOffset)

	m.Update(tea.KeyMsg{Type: tea.KeyPgDown})
	m.Update(tea.KeyMsg{Type: tea.KeyPgDown})
	m.Update(tea.KeyMsg{Type: tea.KeyPgDown})
	require.True(t, m.viewport.AtBottom())
	lb.say(1)
	assert.True(t, m.viewport.AtBottom())
}

func TestViewStripsEscapeSequences(t *testing.T) {
	m, lb := newTestModel(t)
	lb.emit(protocol.EventMessage, map[string]any{
		"message": map[string]string{"username": "eve", "messageText": "\x1b]0;pwned\x07hello\x1b[2J"},
	})
	content := m.renderTimeline()
	assert.Contains(t, content, "hello")
	assert.NotContains(t, content, "pwned")
	assert.NotContains(t, content, "\x1b[2J")
}

func TestViewMessageInput(t *testing.T) {
	m, lb := newTestModel(t)
	for _, r := range "hi there" {
		m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, []string{protocol.EventMessage}, lb.sent)
	assert.Empty(t, m.msgInput.Value())
}

func TestViewRoomInputJoinsSuggestion(t *testing.T) {
	m, lb := newTestModel(t)
	lb.emit(protocol.EventRooms, protocol.Rooms{Rooms: []string{"General", "Dev"}})

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, focusRoom, m.focus)
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("de")})
	assert.True(t, strings.Contains(m.View(), "Dev"))

	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, []string{protocol.EventJoinRoom}, lb.sent)
	assert.Empty(t, m.roomInput.Value())
	cands, _, _ := m.ctrl.Suggestions()
	assert.Empty(t, cands)
}

func TestViewRename(t *testing.T) {
	m, lb := newTestModel(t)
	m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	require.Equal(t, focusName, m.focus)
	m.nameInput.SetValue("alice")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, "alice", m.ctrl.Username())
	assert.Equal(t, []string{protocol.EventNewUsername}, lb.sent)
	assert.Equal(t, focusMessage, m.focus)
	assert.Contains(t, m.renderHeader(), "as alice")
}

func TestViewRunMsg(t *testing.T) {
	m, _ := newTestModel(t)
	ran := false
	m.Update(runMsg(func() { ran = true }))
	assert.True(t, ran)
}
