package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"live-event-service/internal/app"
	"live-event-service/internal/domain"
)

const joinTimeout = 10 * time.Second

// WSHandler upgrades HTTP requests to websockets and wires them into the
// orchestrator. The first inbound message must be join-event; after that
// the connection accepts submit-answer, vote, and enter.
type WSHandler struct {
	orch       *app.Orchestrator
	hub        *Hub
	upgrader   websocket.Upgrader
	sendBuffer int
	logger     *zap.Logger
}

func NewWSHandler(orch *app.Orchestrator, hub *Hub, sendBuffer int, logger *zap.Logger) *WSHandler {
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	return &WSHandler{
		orch: orch,
		hub:  hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		sendBuffer: sendBuffer,
		logger:     logger,
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	EventID         string `json:"eventId"`
	ParticipantName string `json:"participantName"`
	ParticipantID   string `json:"participantId,omitempty"` // set on reconnect
}

type joinedPayload struct {
	Participant domain.Participant `json:"participant"`
	Snapshot    app.Snapshot       `json:"snapshot"`
}

type answerPayload struct {
	ActivityID     string `json:"activityId"`
	QuestionID     string `json:"questionId"`
	AnswerID       string `json:"answerId"`
	ResponseTimeMs int64  `json:"responseTime"`
}

type votePayload struct {
	ActivityID string   `json:"activityId"`
	OptionIDs  []string `json:"optionIds"`
}

type enterPayload struct {
	ActivityID string `json:"activityId"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS runs one connection: join handshake, register, then the read loop.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(joinTimeout))

	var first inboundMessage
	if err := conn.ReadJSON(&first); err != nil {
		return
	}
	if first.Type != "join-event" {
		_ = conn.WriteJSON(mustEncode("error", errorPayload{Message: "first message must be join-event"}))
		return
	}
	var join joinPayload
	if err := json.Unmarshal(first.Payload, &join); err != nil || join.EventID == "" || join.ParticipantName == "" {
		_ = conn.WriteJSON(mustEncode("error", errorPayload{Message: "join-event requires eventId and participantName"}))
		return
	}

	participant, snapshot, err := h.orch.Join(r.Context(), join.EventID, join.ParticipantID, join.ParticipantName)
	if err != nil {
		_ = conn.WriteJSON(mustEncode("error", errorPayload{Message: err.Error()}))
		return
	}

	client := &Client{
		id:            uuid.New().String(),
		eventID:       join.EventID,
		participantID: participant.ID,
		conn:          conn,
		send:          make(chan outboundMessage, h.sendBuffer),
		logger:        h.logger,
	}
	h.hub.Register(client)
	go client.writePump()
	defer func() {
		h.hub.Unregister(client)
		if h.hub.ParticipantConnections(join.EventID, participant.ID) == 0 {
			h.orch.Leave(r.Context(), join.EventID, participant.ID)
		}
	}()

	h.reply(client, "joined", joinedPayload{Participant: participant, Snapshot: snapshot})

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		h.dispatch(r, client, participant.ID, inbound)
	}
}

// dispatch handles one inbound message. Failures surface as an error event
// to the offending connection only; nothing is broadcast for rejections.
func (h *WSHandler) dispatch(r *http.Request, client *Client, participantID string, inbound inboundMessage) {
	switch inbound.Type {
	case "submit-answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			h.reply(client, "error", errorPayload{Message: "invalid submit-answer payload"})
			return
		}
		result, err := h.orch.SubmitAnswer(r.Context(), client.eventID, participantID, domain.AnswerSubmission{
			ActivityID:     payload.ActivityID,
			QuestionID:     payload.QuestionID,
			OptionID:       payload.AnswerID,
			ResponseTimeMs: payload.ResponseTimeMs,
		})
		if err != nil {
			h.reply(client, "error", errorPayload{Message: err.Error()})
			return
		}
		h.reply(client, "answer-result", result)
	case "vote":
		var payload votePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			h.reply(client, "error", errorPayload{Message: "invalid vote payload"})
			return
		}
		if _, err := h.orch.SubmitVote(r.Context(), client.eventID, payload.ActivityID, participantID, payload.OptionIDs); err != nil {
			h.reply(client, "error", errorPayload{Message: err.Error()})
		}
	case "enter":
		var payload enterPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			h.reply(client, "error", errorPayload{Message: "invalid enter payload"})
			return
		}
		if err := h.orch.EnterRaffle(r.Context(), client.eventID, payload.ActivityID, participantID); err != nil {
			h.reply(client, "error", errorPayload{Message: err.Error()})
		}
	default:
		h.reply(client, "error", errorPayload{Message: "unsupported message type"})
	}
}

func (h *WSHandler) reply(client *Client, event string, payload any) {
	msg, err := encode(event, payload)
	if err != nil {
		h.logger.Warn("reply encode failed", zap.String("event", event), zap.Error(err))
		return
	}
	if !client.enqueue(msg) {
		h.hub.Unregister(client)
	}
}

func mustEncode(event string, payload any) outboundMessage {
	msg, _ := encode(event, payload)
	return msg
}
