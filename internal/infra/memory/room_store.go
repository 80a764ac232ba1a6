package memory

import (
	"sync"

	"live-event-service/internal/app"
)

// RoomStore is an in-memory implementation of app.RoomRepository.
type RoomStore struct {
	mu    sync.RWMutex
	rooms map[string]*app.Room
}

func NewRoomStore() *RoomStore {
	return &RoomStore{
		rooms: make(map[string]*app.Room),
	}
}

func (s *RoomStore) GetOrCreate(eventID string) *app.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok := s.rooms[eventID]; ok {
		return room
	}
	room := app.NewRoom(eventID)
	s.rooms[eventID] = room
	return room
}

func (s *RoomStore) Get(eventID string) (*app.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[eventID]
	return room, ok
}

func (s *RoomStore) DeleteIfEmpty(eventID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[eventID]
	if !ok {
		return
	}
	if room.IsEmpty() {
		delete(s.rooms, eventID)
	}
}
