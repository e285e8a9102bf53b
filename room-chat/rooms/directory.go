// Package rooms mirrors the server's room list and the joined room.
package rooms

import (
	"github.com/gosuda/portal-chat/room-chat/protocol"
)

// Sender forwards a named event to the server.
type Sender interface {
	Send(event string, payload any) error
}

// Directory is a cache of server-pushed room state. Request methods only
// forward to the server; the cache changes when the server pushes back.
type Directory struct {
	sender  Sender
	names   []string
	current string
	joined  bool
}

func NewDirectory(sender Sender) *Directory {
	return &Directory{sender: sender}
}

// ReplaceAll makes names the complete known room set, in the given order.
func (d *Directory) ReplaceAll(names []string) {
	d.names = append(make([]string, 0, len(names)), names...)
}

// Names returns a copy of the known rooms in server order.
func (d *Directory) Names() []string {
	out := make([]string, len(d.names))
	copy(out, d.names)
	return out
}

// Contains reports whether name is in the last pushed set.
func (d *Directory) Contains(name string) bool {
	for _, n := range d.names {
		if n == name {
			return true
		}
	}
	return false
}

// SetCurrent records a server-confirmed join. Unknown names are accepted.
func (d *Directory) SetCurrent(name string) {
	d.current = name
	d.joined = true
}

// ResetCurrent forgets the joined room when a new connection starts.
func (d *Directory) ResetCurrent() {
	d.current = ""
	d.joined = false
}

// Current returns the joined room, if any.
func (d *Directory) Current() (string, bool) {
	return d.current, d.joined
}

func (d *Directory) RequestCreate(name string) error {
	return d.sender.Send(protocol.EventCreateRoom, protocol.RoomRequest{RoomName: name})
}

func (d *Directory) RequestJoin(name string) error {
	return d.sender.Send(protocol.EventJoinRoom, protocol.RoomRequest{RoomName: name})
}

// RequestList asks the server to push the room list again.
func (d *Directory) RequestList() error {
	return d.sender.Send(protocol.EventListRooms, protocol.ListRooms{})
}
