package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"live-event-service/internal/app"
)

// RoomStore is a Redis-aware implementation of app.RoomRepository.
// Notes:
//   - Rooms stay in a local in-memory map because the broadcast path and
//     the activity runtime are in-process state.
//   - Redis marks room liveness, which lets an operator (or a future
//     cross-instance router) see which events currently have a live room.
type RoomStore struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.RWMutex
	rooms  map[string]*app.Room
}

func NewRoomStore(client *redis.Client, ttl time.Duration) *RoomStore {
	return &RoomStore{
		client: client,
		ttl:    ttl,
		rooms:  make(map[string]*app.Room),
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
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(eventID), "1", s.ttl).Err()
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
		_ = s.client.Del(context.Background(), s.key(eventID)).Err()
	}
}

func (s *RoomStore) key(eventID string) string {
	return "event:room:" + eventID
}
