// Package protocol defines the named events exchanged with the chat relay
// and the payloads they carry.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Events sent by the client.
const (
	EventNewUsername = "new_username"
	EventCreateRoom  = "create_room"
	EventJoinRoom    = "join_room"
	EventListRooms   = "list_rooms"
	EventMessage     = "message"
)

// Events pushed by the server. EventMessage is shared with the client side.
const (
	EventRooms            = "rooms"
	EventClearRoomHistory = "clear_room_history"
	EventRoomJoined       = "room_joined"
)

var errEmptyMessage = errors.New("message payload has no message")

// NewUsername is the payload of new_username.
type NewUsername struct {
	Username string `json:"username"`
}

// RoomRequest is the payload of create_room and join_room.
type RoomRequest struct {
	RoomName string `json:"room_name"`
}

// ListRooms is the (empty) payload of list_rooms.
type ListRooms struct{}

// OutgoingMessage is the payload of a client message event.
type OutgoingMessage struct {
	Message ChatMessage `json:"message"`
}

// ChatMessage is a user-authored line. Room is optional on pushes.
type ChatMessage struct {
	MessageText string `json:"messageText"`
	Room        string `json:"room,omitempty"`
	Username    string `json:"username"`
}

// Rooms is the payload of a rooms push. A nil Rooms means the field was absent.
type Rooms struct {
	Rooms []string `json:"rooms"`
}

// RoomJoined is the payload of room_joined.
type RoomJoined struct {
	Room string `json:"room"`
}

// Incoming is a decoded server message event: either a chat line or a
// bare system string.
type Incoming struct {
	Chat   *ChatMessage
	System string
}

// IsSystem reports whether the server sent a plain status line.
func (in Incoming) IsSystem() bool {
	return in.Chat == nil
}

// DecodeMessage decodes `{"message": {...}}` or `{"message": "text"}`.
func DecodeMessage(raw json.RawMessage) (Incoming, error) {
	var env struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return Incoming{}, err
	}
	body := bytes.TrimSpace(env.Message)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return Incoming{}, errEmptyMessage
	}
	if body[0] == '"' {
		var text string
		if err := json.Unmarshal(body, &text); err != nil {
			return Incoming{}, err
		}
		return Incoming{System: text}, nil
	}
	var chat ChatMessage
	if err := json.Unmarshal(body, &chat); err != nil {
		return Incoming{}, err
	}
	return Incoming{Chat: &chat}, nil
}
