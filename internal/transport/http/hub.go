package http

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// outboundMessage is the server->client envelope.
type outboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Hub is the session registry: it maps event rooms to their live
// connections and participants, and fans engine broadcasts out to them.
// Fan-out enqueues into each client's bounded send buffer and never blocks;
// a client whose buffer is full is dropped so it cannot stall the room.
type Hub struct {
	mu     sync.Mutex
	rooms  map[string]map[string]*Client // eventID -> clientID -> client
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[string]*Client),
		logger: logger,
	}
}

// Register adds a client to its event room.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.rooms[c.eventID] == nil {
		h.rooms[c.eventID] = make(map[string]*Client)
	}
	h.rooms[c.eventID][c.id] = c
	h.mu.Unlock()
	h.logger.Debug("client joined room",
		zap.String("client_id", c.id),
		zap.String("event_id", c.eventID),
		zap.String("participant_id", c.participantID))
}

// Unregister removes a client and closes its send channel exactly once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	h.removeLocked(c)
	h.mu.Unlock()
}

func (h *Hub) removeLocked(c *Client) {
	room, ok := h.rooms[c.eventID]
	if !ok {
		return
	}
	if _, present := room[c.id]; !present {
		return
	}
	delete(room, c.id)
	if len(room) == 0 {
		delete(h.rooms, c.eventID)
	}
	c.closeSend()
	h.logger.Debug("client left room",
		zap.String("client_id", c.id),
		zap.String("event_id", c.eventID))
}

// Broadcast implements app.Broadcaster for the whole room.
func (h *Hub) Broadcast(eventID, event string, payload any) {
	msg, err := encode(event, payload)
	if err != nil {
		h.logger.Warn("broadcast encode failed", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.rooms[eventID] {
		if !c.enqueue(msg) {
			// Client cannot keep up with the room; disconnect it rather
			// than let it block everyone else.
			h.logger.Warn("dropping slow client",
				zap.String("client_id", c.id),
				zap.String("event_id", eventID))
			h.removeLocked(c)
		}
	}
}

// SendTo implements app.Broadcaster for a single participant. A participant
// reconnecting mid-operation may have more than one live connection; all of
// them get the message.
func (h *Hub) SendTo(eventID, participantID, event string, payload any) {
	msg, err := encode(event, payload)
	if err != nil {
		h.logger.Warn("unicast encode failed", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.rooms[eventID] {
		if c.participantID != participantID {
			continue
		}
		if !c.enqueue(msg) {
			h.removeLocked(c)
		}
	}
}

// RoomSize returns the number of live connections in an event room.
func (h *Hub) RoomSize(eventID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[eventID])
}

// ParticipantConnections counts live connections for one participant.
func (h *Hub) ParticipantConnections(eventID, participantID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, c := range h.rooms[eventID] {
		if c.participantID == participantID {
			n++
		}
	}
	return n
}

func encode(event string, payload any) (outboundMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return outboundMessage{}, err
	}
	return outboundMessage{Type: event, Payload: data}, nil
}
