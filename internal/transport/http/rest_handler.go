package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"live-event-service/internal/app"
	"live-event-service/internal/domain"
)

// RESTHandler exposes the engine operations that arrive over plain HTTP:
// the snapshot read used by reconnecting clients, the vote/enter mutations
// (which share the authoritative path with their websocket twins), and the
// organizer controls. Organizer identity arrives in the X-Organizer-ID
// header; authenticating it is the gateway's job, not the engine's.
type RESTHandler struct {
	orch   *app.Orchestrator
	logger *zap.Logger
}

func NewRESTHandler(orch *app.Orchestrator, logger *zap.Logger) *RESTHandler {
	return &RESTHandler{orch: orch, logger: logger}
}

// Mount attaches all routes to the mux.
func (h *RESTHandler) Mount(mux *http.ServeMux) {
	mux.HandleFunc("GET /events/{eventID}/activity", h.snapshot)
	mux.HandleFunc("POST /events/{eventID}/activities/{activityID}/votes", h.vote)
	mux.HandleFunc("POST /events/{eventID}/activities/{activityID}/entries", h.enter)

	mux.HandleFunc("POST /events/{eventID}/activities/{activityID}/activate", h.activate)
	mux.HandleFunc("POST /events/{eventID}/activities/{activityID}/deactivate", h.deactivate)
	mux.HandleFunc("POST /events/{eventID}/activities/{activityID}/questions/next", h.displayQuestion)
	mux.HandleFunc("POST /events/{eventID}/activities/{activityID}/questions/end", h.endQuestion)
	mux.HandleFunc("POST /events/{eventID}/activities/{activityID}/end", h.endActivity)
	mux.HandleFunc("POST /events/{eventID}/activities/{activityID}/draw", h.draw)
}

func (h *RESTHandler) snapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.orch.Snapshot(r.PathValue("eventID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

type voteRequest struct {
	ParticipantID string   `json:"participantId"`
	OptionIDs     []string `json:"optionIds"`
}

func (h *RESTHandler) vote(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorPayload{Message: "invalid vote body"})
		return
	}
	results, err := h.orch.SubmitVote(r.Context(), r.PathValue("eventID"), r.PathValue("activityID"), req.ParticipantID, req.OptionIDs)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, results)
}

type enterRequest struct {
	ParticipantID string `json:"participantId"`
}

func (h *RESTHandler) enter(w http.ResponseWriter, r *http.Request) {
	var req enterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorPayload{Message: "invalid entry body"})
		return
	}
	if err := h.orch.EnterRaffle(r.Context(), r.PathValue("eventID"), r.PathValue("activityID"), req.ParticipantID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RESTHandler) activate(w http.ResponseWriter, r *http.Request) {
	act, err := h.orch.Activate(r.Context(), organizerID(r), r.PathValue("eventID"), r.PathValue("activityID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, act)
}

func (h *RESTHandler) deactivate(w http.ResponseWriter, r *http.Request) {
	h.run(w, h.orch.Deactivate(r.Context(), organizerID(r), r.PathValue("eventID"), r.PathValue("activityID")))
}

func (h *RESTHandler) displayQuestion(w http.ResponseWriter, r *http.Request) {
	question, err := h.orch.DisplayQuestion(r.Context(), organizerID(r), r.PathValue("eventID"), r.PathValue("activityID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, question)
}

func (h *RESTHandler) endQuestion(w http.ResponseWriter, r *http.Request) {
	h.run(w, h.orch.EndQuestion(r.Context(), organizerID(r), r.PathValue("eventID"), r.PathValue("activityID")))
}

// endActivity routes to the engine end matching the active activity type.
func (h *RESTHandler) endActivity(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventID")
	activityID := r.PathValue("activityID")
	act, ok := h.orch.ActiveActivity(eventID)
	if !ok || act.ID != activityID {
		h.writeError(w, domain.ErrInvalidState)
		return
	}
	var err error
	switch act.Type {
	case domain.ActivityQuiz:
		err = h.orch.EndQuiz(r.Context(), organizerID(r), eventID, activityID)
	case domain.ActivityPoll:
		err = h.orch.EndPoll(r.Context(), organizerID(r), eventID, activityID)
	case domain.ActivityRaffle:
		err = h.orch.EndRaffle(r.Context(), organizerID(r), eventID, activityID)
	}
	h.run(w, err)
}

type drawRequest struct {
	Count int `json:"count"`
}

func (h *RESTHandler) draw(w http.ResponseWriter, r *http.Request) {
	var req drawRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	winners, err := h.orch.DrawWinners(r.Context(), organizerID(r), r.PathValue("eventID"), r.PathValue("activityID"), req.Count)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, winners)
}

func (h *RESTHandler) run(w http.ResponseWriter, err error) {
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func organizerID(r *http.Request) string {
	return r.Header.Get("X-Organizer-ID")
}

func (h *RESTHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("write response failed", zap.Error(err))
	}
}

func (h *RESTHandler) writeError(w http.ResponseWriter, err error) {
	h.writeJSON(w, statusFor(err), errorPayload{Message: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrEventNotFound),
		errors.Is(err, domain.ErrActivityNotFound),
		errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrOptionNotFound),
		errors.Is(err, domain.ErrParticipantNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrDuplicateAnswer),
		errors.Is(err, domain.ErrDuplicateVote),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrQuestionClosed),
		errors.Is(err, domain.ErrOutOfQuestions),
		errors.Is(err, domain.ErrMultipleChoicesNotAllowed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
