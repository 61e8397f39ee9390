package services

import (
	"sync"

	"github.com/hellodits/dee-POS-sub002/internal/core/domain"
	"github.com/hellodits/dee-POS-sub002/internal/core/ports"
	"github.com/samber/lo"
)

// RoomDirectory is the membership table. Rooms are a derived view: a room
// appears with its first member and is deleted with its last.
type RoomDirectory struct {
	mu      sync.RWMutex
	members map[domain.RoomID]map[domain.ConnectionID]struct{}
	rooms   map[domain.ConnectionID]map[domain.RoomID]struct{}
}

var _ ports.RoomDirectory = (*RoomDirectory)(nil)

// NewRoomDirectory creates an empty directory.
func NewRoomDirectory() *RoomDirectory {
	return &RoomDirectory{
		members: make(map[domain.RoomID]map[domain.ConnectionID]struct{}),
		rooms:   make(map[domain.ConnectionID]map[domain.RoomID]struct{}),
	}
}

// Join adds conn to room. Joining twice is a no-op.
func (d *RoomDirectory) Join(room domain.RoomID, conn domain.ConnectionID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	set, ok := d.members[room]
	if !ok {
		set = make(map[domain.ConnectionID]struct{})
		d.members[room] = set
	}
	set[conn] = struct{}{}

	joined, ok := d.rooms[conn]
	if !ok {
		joined = make(map[domain.RoomID]struct{})
		d.rooms[conn] = joined
	}
	joined[room] = struct{}{}
}

// Leave removes conn from room. Leaving a room never joined is a no-op.
func (d *RoomDirectory) Leave(room domain.RoomID, conn domain.ConnectionID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.leaveLocked(room, conn)
}

func (d *RoomDirectory) leaveLocked(room domain.RoomID, conn domain.ConnectionID) {
	if set, ok := d.members[room]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(d.members, room)
		}
	}
	if joined, ok := d.rooms[conn]; ok {
		delete(joined, room)
		if len(joined) == 0 {
			delete(d.rooms, conn)
		}
	}
}

// MembersOf returns a snapshot of the room's members. The snapshot is not
// updated by later joins or leaves.
func (d *RoomDirectory) MembersOf(room domain.RoomID) []domain.ConnectionID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return lo.Keys(d.members[room])
}

// RoomsOf returns a snapshot of the rooms conn belongs to.
func (d *RoomDirectory) RoomsOf(conn domain.ConnectionID) []domain.RoomID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return lo.Keys(d.rooms[conn])
}

// LeaveAll removes conn from every room in one step and returns the rooms it left.
func (d *RoomDirectory) LeaveAll(conn domain.ConnectionID) []domain.RoomID {
	d.mu.Lock()
	defer d.mu.Unlock()

	left := lo.Keys(d.rooms[conn])
	for _, room := range left {
		d.leaveLocked(room, conn)
	}
	return left
}

// RoomCount is the number of non-empty rooms.
func (d *RoomDirectory) RoomCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.members)
}
