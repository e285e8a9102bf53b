// Package session binds transport events to the client's room, timeline and
// suggestion state and forwards user intents to the relay.
//
// A Controller is not safe for concurrent use. Transport handlers and user
// intents must run on one goroutine; transport.WithExecutor is the hook for that.
package session

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/portal-chat/room-chat/autocomplete"
	"github.com/gosuda/portal-chat/room-chat/identity"
	"github.com/gosuda/portal-chat/room-chat/protocol"
	"github.com/gosuda/portal-chat/room-chat/rooms"
	"github.com/gosuda/portal-chat/room-chat/timeline"
	"github.com/gosuda/portal-chat/room-chat/transport"
)

// DefaultRoom is the room a relay joins new connections to.
const DefaultRoom = "General"

// Transport is the subset of *transport.Session the controller uses.
type Transport interface {
	On(event string, h transport.Handler)
	Send(event string, payload any) error
}

// State is the connection/room state of the session.
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateInRoom
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateInRoom:
		return "in-room"
	default:
		return "unknown"
	}
}

// Change flags what a handler or intent touched.
type Change uint8

const (
	ChangeConnection Change = 1 << iota
	ChangeRooms
	ChangeRoom
	ChangeTimeline
	ChangeSuggestions
	ChangeIdentity
	// ChangeFollow asks the view to scroll to the newest message.
	ChangeFollow
)

// Has reports whether all bits of o are set.
func (c Change) Has(o Change) bool {
	return c&o == o
}

// Options configures a Controller.
type Options struct {
	// DefaultRoom labels the view on connect. Empty means DefaultRoom.
	DefaultRoom string
	// AssumeDefaultJoin treats DefaultRoom as joined on connect, for relays
	// that auto-join without sending room_joined.
	AssumeDefaultJoin bool
	// ScrollEpsilon is the bottom-detection tolerance.
	ScrollEpsilon float64
	// OnChange is called synchronously after each state change.
	OnChange func(Change)
}

// Controller is the client session state machine.
type Controller struct {
	transport Transport
	identity  *identity.Identity
	directory *rooms.Directory
	suggest   *autocomplete.Engine
	timeline  *timeline.Timeline
	follow    *timeline.Follower

	opts      Options
	connected bool
	label     string
	// switching is set between clear_room_history and room_joined, while the
	// relay replays the next room's history.
	switching bool
}

// New creates a controller and registers its handlers on t.
func New(t Transport, id *identity.Identity, opts Options) *Controller {
	if opts.DefaultRoom == "" {
		opts.DefaultRoom = DefaultRoom
	}
	c := &Controller{
		transport: t,
		identity:  id,
		directory: rooms.NewDirectory(t),
		suggest:   autocomplete.New(),
		timeline:  timeline.New(),
		follow:    timeline.NewFollower(opts.ScrollEpsilon),
		opts:      opts,
	}
	t.On(transport.EventConnect, func(json.RawMessage) { c.handleConnect() })
	t.On(transport.EventDisconnect, func(json.RawMessage) { c.handleDisconnect() })
	t.On(protocol.EventRooms, c.handleRooms)
	t.On(protocol.EventRoomJoined, c.handleRoomJoined)
	t.On(protocol.EventClearRoomHistory, func(json.RawMessage) { c.handleClearHistory() })
	t.On(protocol.EventMessage, c.handleMessage)
	return c
}

func (c *Controller) notify(ch Change) {
	if c.opts.OnChange != nil && ch != 0 {
		c.opts.OnChange(ch)
	}
}

func (c *Controller) handleConnect() {
	c.connected = true
	c.switching = false
	c.label = c.opts.DefaultRoom
	// A new connection is a new relay session: whatever was joined or shown
	// before belongs to the old one.
	c.directory.ResetCurrent()
	c.timeline.Clear()
	c.follow.Reset()
	if c.opts.AssumeDefaultJoin {
		c.directory.SetCurrent(c.opts.DefaultRoom)
	}
	log.Info().Str("room", c.label).Msg("[chat] connected")
	c.notify(ChangeConnection | ChangeRoom | ChangeTimeline)
}

func (c *Controller) handleDisconnect() {
	c.connected = false
	c.switching = false
	log.Info().Msg("[chat] disconnected")
	c.notify(ChangeConnection)
}

func (c *Controller) handleRooms(payload json.RawMessage) {
	var ev protocol.Rooms
	if err := json.Unmarshal(payload, &ev); err != nil {
		log.Debug().Err(err).Msg("[chat] bad rooms payload")
		return
	}
	if ev.Rooms == nil {
		return
	}
	c.directory.ReplaceAll(ev.Rooms)
	ch := ChangeRooms
	if c.suggest.Refresh(ev.Rooms) {
		ch |= ChangeSuggestions
	}
	c.notify(ch)
}

func (c *Controller) handleRoomJoined(payload json.RawMessage) {
	if !c.connected {
		log.Debug().Msg("[chat] room_joined while disconnected")
		return
	}
	var ev protocol.RoomJoined
	if err := json.Unmarshal(payload, &ev); err != nil || ev.Room == "" {
		log.Debug().Err(err).Msg("[chat] bad room_joined payload")
		return
	}
	c.directory.SetCurrent(ev.Room)
	c.label = ev.Room
	c.switching = false
	log.Info().Str("room", ev.Room).Msg("[chat] joined room")
	c.notify(ChangeRoom)
}

func (c *Controller) handleClearHistory() {
	log.Debug().Int("messages", c.timeline.Len()).Msg("[chat] clear room history")
	c.timeline.Clear()
	c.follow.Reset()
	c.switching = true
	c.notify(ChangeTimeline)
}

func (c *Controller) handleMessage(payload json.RawMessage) {
	in, err := protocol.DecodeMessage(payload)
	if err != nil {
		log.Debug().Err(err).Msg("[chat] bad message payload")
		return
	}
	var m timeline.Message
	if in.IsSystem() {
		m = timeline.Message{Text: in.System, System: true}
	} else {
		if !c.accepts(in.Chat.Room) {
			log.Debug().Str("room", in.Chat.Room).Msg("[chat] dropped message for inactive room")
			return
		}
		m = timeline.Message{Author: in.Chat.Username, Text: in.Chat.MessageText}
	}
	follow := c.follow.AtBottom()
	c.timeline.Append(m)
	ch := ChangeTimeline
	if follow && c.InputEnabled() {
		ch |= ChangeFollow
	}
	c.notify(ch)
}

// accepts reports whether a chat message for room belongs in the timeline.
func (c *Controller) accepts(room string) bool {
	if c.switching {
		return true
	}
	cur, ok := c.directory.Current()
	if !c.connected || !ok {
		return false
	}
	return room == "" || room == cur
}

// SendMessage sends text to the current room. It reports whether anything
// was sent.
func (c *Controller) SendMessage(text string) bool {
	text = strings.TrimSpace(text)
	room, ok := c.directory.Current()
	if text == "" || !c.connected || !ok {
		return false
	}
	msg := protocol.OutgoingMessage{Message: protocol.ChatMessage{
		MessageText: text,
		Room:        room,
		Username:    c.identity.Name(),
	}}
	return c.send(protocol.EventMessage, msg)
}

// JoinRoom asks the relay to switch rooms. Joining the current room is a no-op.
func (c *Controller) JoinRoom(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	if cur, ok := c.directory.Current(); ok && cur == name {
		return false
	}
	if !c.directory.Contains(name) {
		log.Debug().Str("room", name).Msg("[chat] joining a room missing from the list")
	}
	return c.sent(c.directory.RequestJoin(name), protocol.EventJoinRoom)
}

// CreateRoom asks the relay to create and join name and hides the suggestions.
func (c *Controller) CreateRoom(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	c.suggest.Reset()
	c.notify(ChangeSuggestions)
	return c.sent(c.directory.RequestCreate(name), protocol.EventCreateRoom)
}

// RefreshRooms asks the relay to push the room list.
func (c *Controller) RefreshRooms() bool {
	return c.sent(c.directory.RequestList(), protocol.EventListRooms)
}

// Rename changes the display name, persists it and tells the relay without
// waiting for an answer.
func (c *Controller) Rename(name string) bool {
	clean, err := c.identity.Rename(name)
	if errors.Is(err, identity.ErrBlankName) {
		return false
	}
	if err != nil {
		log.Warn().Err(err).Msg("[chat] rename not persisted")
	}
	c.notify(ChangeIdentity | ChangeTimeline)
	c.send(protocol.EventNewUsername, protocol.NewUsername{Username: clean})
	return true
}

// RoomInput feeds the room input text to autocomplete.
func (c *Controller) RoomInput(text string) {
	c.suggest.Update(text, c.directory.Names())
	c.notify(ChangeSuggestions)
}

// SuggestDown moves the suggestion selection down.
func (c *Controller) SuggestDown() {
	c.suggest.Down()
	c.notify(ChangeSuggestions)
}

// SuggestUp moves the suggestion selection up.
func (c *Controller) SuggestUp() {
	c.suggest.Up()
	c.notify(ChangeSuggestions)
}

// DismissSuggestions hides suggestions, as on a click outside the input.
func (c *Controller) DismissSuggestions() {
	c.suggest.Dismiss()
	c.notify(ChangeSuggestions)
}

// SelectSuggestion joins the i-th suggestion, as on a click.
func (c *Controller) SelectSuggestion(i int) bool {
	cands := c.suggest.Candidates()
	if i < 0 || i >= len(cands) {
		return false
	}
	c.suggest.Reset()
	c.notify(ChangeSuggestions)
	return c.JoinRoom(cands[i])
}

// SubmitRoom handles Enter in the room input with raw as its text.
func (c *Controller) SubmitRoom(raw string) autocomplete.Action {
	act := c.suggest.Resolve(raw)
	switch act.Kind {
	case autocomplete.ActionJoin:
		c.JoinRoom(act.Room)
	case autocomplete.ActionCreate:
		c.CreateRoom(act.Room)
	}
	c.suggest.Reset()
	c.notify(ChangeSuggestions)
	return act
}

// ScrollChanged records the view's scroll position for scroll-follow.
func (c *Controller) ScrollChanged(offset, viewport, content float64) {
	c.follow.Observe(offset, viewport, content)
}

func (c *Controller) send(event string, payload any) bool {
	return c.sent(c.transport.Send(event, payload), event)
}

func (c *Controller) sent(err error, event string) bool {
	if err != nil {
		log.Debug().Err(err).Str("event", event).Msg("[chat] send failed")
		return false
	}
	return true
}

// State returns the current session state.
func (c *Controller) State() State {
	if !c.connected {
		return StateDisconnected
	}
	if _, ok := c.directory.Current(); ok {
		return StateInRoom
	}
	return StateConnected
}

func (c *Controller) Connected() bool {
	return c.connected
}

// CurrentRoom returns the server-confirmed room, if any.
func (c *Controller) CurrentRoom() (string, bool) {
	return c.directory.Current()
}

// RoomLabel is the room name shown in the header.
func (c *Controller) RoomLabel() string {
	return c.label
}

// InputEnabled reports whether message sending is possible.
func (c *Controller) InputEnabled() bool {
	return c.State() == StateInRoom
}

// Rooms returns the known rooms in server order.
func (c *Controller) Rooms() []string {
	return c.directory.Names()
}

// Messages returns the timeline, oldest first.
func (c *Controller) Messages() []timeline.Message {
	return c.timeline.Entries()
}

// Suggestions returns the candidates and the selected index, if any.
func (c *Controller) Suggestions() ([]string, int, bool) {
	i, ok := c.suggest.Selected()
	return c.suggest.Candidates(), i, ok
}

// Username returns the local display name.
func (c *Controller) Username() string {
	return c.identity.Name()
}

// IsOwn reports whether m was written under the current display name.
func (c *Controller) IsOwn(m timeline.Message) bool {
	return m.IsOwn(c.identity.Name())
}
