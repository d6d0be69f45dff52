package http

import (
	"net/http"
	"strconv"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/auth"
	"live-quiz-service/internal/domain"

	"github.com/go-chi/chi/v5"
)

type handlers struct {
	service *app.SessionService
	now     func() time.Time
}

type healthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "UP", Service: serviceName, Timestamp: h.now()})
}

type authStatusResponse struct {
	Authenticated bool   `json:"authenticated"`
	Subject       string `json:"subject,omitempty"`
	Role          string `json:"role,omitempty"`
}

// authStatus is public: it reports whether the request carried a valid token.
func (h *handlers) authStatus(w http.ResponseWriter, r *http.Request) {
	resp := authStatusResponse{}
	if p, ok := auth.FromContext(r.Context()); ok {
		resp = authStatusResponse{Authenticated: true, Subject: p.Subject, Role: p.Role}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, domain.ErrUnauthenticated)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"subject": p.Subject, "role": p.Role})
}

type startRequest struct {
	QuizID        string `json:"quizId"`
	AllowLateJoin bool   `json:"allowLateJoin"`
}

func (h *handlers) startSession(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.QuizID == "" {
		writeFailure(w, http.StatusBadRequest, "quizId is required")
		return
	}
	principal, _ := auth.FromContext(r.Context())
	snap, err := h.service.Start(r.Context(), principal, req.QuizID, app.StartOptions{AllowLateJoin: req.AllowLateJoin})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (h *handlers) advance(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.FromContext(r.Context())
	res, err := h.service.Advance(r.Context(), principal, chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) end(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.FromContext(r.Context())
	snap, err := h.service.End(r.Context(), principal, chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *handlers) roundAnswers(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		writeFailure(w, http.StatusBadRequest, "invalid round index")
		return
	}
	principal, _ := auth.FromContext(r.Context())
	answers, err := h.service.RoundAnswers(r.Context(), principal, chi.URLParam(r, "sessionID"), index)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answers)
}

type joinRequest struct {
	DisplayName string `json:"displayName"`
}

func (h *handlers) join(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	player, err := h.service.Join(r.Context(), chi.URLParam(r, "sessionID"), req.DisplayName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, player)
}

type answerRequest struct {
	PlayerID    string `json:"playerId"`
	OptionIndex *int   `json:"optionIndex"`
}

func (h *handlers) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.PlayerID == "" || req.OptionIndex == nil {
		writeFailure(w, http.StatusBadRequest, "playerId and optionIndex are required")
		return
	}
	answer, err := h.service.SubmitAnswer(r.Context(), chi.URLParam(r, "sessionID"), req.PlayerID, *req.OptionIndex)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, answer)
}

func (h *handlers) leaderboard(w http.ResponseWriter, r *http.Request) {
	lb, err := h.service.Leaderboard(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

func (h *handlers) currentRound(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.CurrentRound(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *handlers) state(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Snapshot(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *handlers) playerAnswers(w http.ResponseWriter, r *http.Request) {
	history, err := h.service.PlayerAnswers(r.Context(), chi.URLParam(r, "sessionID"), chi.URLParam(r, "playerID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *handlers) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.service.ListSessions(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}
