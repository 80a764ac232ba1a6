package memory

import "testing"

func TestRoomStoreReusesRooms(t *testing.T) {
	store := NewRoomStore()

	room := store.GetOrCreate("event-1")
	if room == nil || room.EventID() != "event-1" {
		t.Fatalf("room = %v", room)
	}
	if again := store.GetOrCreate("event-1"); again != room {
		t.Fatal("expected the same room instance")
	}

	got, ok := store.Get("event-1")
	if !ok || got != room {
		t.Fatal("Get did not return the created room")
	}
	if _, ok := store.Get("event-2"); ok {
		t.Fatal("unexpected room for event-2")
	}
}

func TestRoomStoreDeletesEmptyRooms(t *testing.T) {
	store := NewRoomStore()
	store.GetOrCreate("event-1")

	store.DeleteIfEmpty("event-1")
	if _, ok := store.Get("event-1"); ok {
		t.Fatal("empty room should be deleted")
	}

	// deleting a missing room is a no-op
	store.DeleteIfEmpty("event-1")
}
