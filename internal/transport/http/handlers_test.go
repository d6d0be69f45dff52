package http

import (
	"encoding/json"
	"net/http"
	"testing"

	"live-quiz-service/internal/domain"
)

func TestHealth(t *testing.T) {
	env := newTestServer(t)
	resp := env.do(t, http.MethodGet, "/api/public/health", "", nil, http.StatusOK)
	var health healthResponse
	if err := json.Unmarshal(resp.Data, &health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || health.Status != "UP" || health.Service != serviceName || health.Timestamp.IsZero() {
		t.Fatalf("unexpected health %+v", health)
	}

	res, err := http.Get(env.server.URL + "/healthz")
	if err != nil || res.StatusCode != http.StatusOK {
		t.Fatalf("healthz: %v %v", res, err)
	}
	res.Body.Close()
}

func TestRESTSessionFlow(t *testing.T) {
	env := newTestServer(t)

	env.do(t, http.MethodPost, "/api/quizmaster/sessions", "", map[string]any{"quizId": "quiz-1"}, http.StatusUnauthorized)
	sessionID := env.startSession(t, env.masterToken)

	alice := env.join(t, sessionID, "Alice")
	env.join(t, sessionID, "Bob")
	env.do(t, http.MethodPost, "/api/player/sessions/"+sessionID+"/join", "", map[string]any{"displayName": "alice"}, http.StatusConflict)
	env.do(t, http.MethodPost, "/api/player/sessions/"+sessionID+"/join", "", map[string]any{"displayName": ""}, http.StatusBadRequest)

	env.do(t, http.MethodGet, "/api/player/sessions/"+sessionID+"/round", "", nil, http.StatusNotFound)
	env.do(t, http.MethodPost, "/api/player/sessions/"+sessionID+"/answers", "", map[string]any{"playerId": alice, "optionIndex": 1}, http.StatusConflict)

	env.do(t, http.MethodPost, "/api/quizmaster/sessions/"+sessionID+"/advance", env.otherToken, nil, http.StatusForbidden)
	resp := env.do(t, http.MethodPost, "/api/quizmaster/sessions/"+sessionID+"/advance", env.masterToken, nil, http.StatusOK)
	var adv domain.AdvanceResult
	_ = json.Unmarshal(resp.Data, &adv)
	if adv.Round == nil || adv.Round.Index != 0 || adv.Round.Options[1].Correct != nil {
		t.Fatalf("unexpected advance result %s", resp.Data)
	}

	env.do(t, http.MethodPost, "/api/player/sessions/"+sessionID+"/answers", "", map[string]any{"playerId": alice, "optionIndex": 9}, http.StatusBadRequest)
	env.do(t, http.MethodPost, "/api/player/sessions/"+sessionID+"/answers", "", map[string]any{"playerId": alice}, http.StatusBadRequest)
	env.do(t, http.MethodPost, "/api/player/sessions/"+sessionID+"/answers", "", map[string]any{"playerId": "ghost", "optionIndex": 1}, http.StatusNotFound)
	env.do(t, http.MethodPost, "/api/player/sessions/"+sessionID+"/answers", "", map[string]any{"playerId": alice, "optionIndex": 1}, http.StatusAccepted)
	env.do(t, http.MethodPost, "/api/player/sessions/"+sessionID+"/answers", "", map[string]any{"playerId": alice, "optionIndex": 0}, http.StatusConflict)

	env.do(t, http.MethodPost, "/api/quizmaster/sessions/"+sessionID+"/advance", env.masterToken, nil, http.StatusOK)

	resp = env.do(t, http.MethodGet, "/api/player/sessions/"+sessionID+"/leaderboard", "", nil, http.StatusOK)
	var lb domain.Leaderboard
	_ = json.Unmarshal(resp.Data, &lb)
	if len(lb.Entries) != 2 || lb.Entries[0].PlayerID != alice || lb.Entries[0].Score < 10 || lb.Entries[1].Score != 0 {
		t.Fatalf("unexpected leaderboard %s", resp.Data)
	}

	resp = env.do(t, http.MethodGet, "/api/player/sessions/"+sessionID+"/players/"+alice+"/answers", "", nil, http.StatusOK)
	var history domain.PlayerAnswers
	_ = json.Unmarshal(resp.Data, &history)
	if len(history.Answers) != 1 || history.Total != lb.Entries[0].Score {
		t.Fatalf("unexpected history %s", resp.Data)
	}

	env.do(t, http.MethodGet, "/api/quizmaster/sessions/"+sessionID+"/rounds/0/answers", env.otherToken, nil, http.StatusForbidden)
	resp = env.do(t, http.MethodGet, "/api/quizmaster/sessions/"+sessionID+"/rounds/0/answers", env.masterToken, nil, http.StatusOK)
	var answers []domain.Answer
	_ = json.Unmarshal(resp.Data, &answers)
	if len(answers) != 2 {
		t.Fatalf("expected real and synthesized answers, got %s", resp.Data)
	}
	env.do(t, http.MethodGet, "/api/quizmaster/sessions/"+sessionID+"/rounds/x/answers", env.masterToken, nil, http.StatusBadRequest)

	env.do(t, http.MethodGet, "/api/admin/sessions", env.masterToken, nil, http.StatusForbidden)
	resp = env.do(t, http.MethodGet, "/api/admin/sessions", env.adminToken, nil, http.StatusOK)
	var sessions []domain.SessionSnapshot
	_ = json.Unmarshal(resp.Data, &sessions)
	if len(sessions) != 1 {
		t.Fatalf("expected one session, got %s", resp.Data)
	}

	resp = env.do(t, http.MethodPost, "/api/quizmaster/sessions/"+sessionID+"/end", env.masterToken, nil, http.StatusOK)
	var ended domain.SessionSnapshot
	_ = json.Unmarshal(resp.Data, &ended)
	if ended.Status != domain.SessionCompleted {
		t.Fatalf("expected completed, got %s", ended.Status)
	}
	env.do(t, http.MethodPost, "/api/player/sessions/"+sessionID+"/join", "", map[string]any{"displayName": "Late"}, http.StatusConflict)
}

func TestStartErrorsMapToStatuses(t *testing.T) {
	env := newTestServer(t)
	env.do(t, http.MethodPost, "/api/quizmaster/sessions", env.masterToken, map[string]any{"quizId": "missing"}, http.StatusNotFound)
	env.do(t, http.MethodPost, "/api/quizmaster/sessions", env.masterToken, map[string]any{"quizId": "broken"}, http.StatusUnprocessableEntity)
	env.do(t, http.MethodPost, "/api/quizmaster/sessions", env.masterToken, map[string]any{}, http.StatusBadRequest)
	env.do(t, http.MethodPost, "/api/quizmaster/sessions", env.masterToken, map[string]any{"quizId": "quiz-1", "bogus": true}, http.StatusBadRequest)
	env.do(t, http.MethodGet, "/api/player/sessions/nope/state", "", nil, http.StatusNotFound)
	env.do(t, http.MethodGet, "/api/auth/me", "", nil, http.StatusUnauthorized)

	var status authStatusResponse
	resp := env.do(t, http.MethodGet, "/api/auth/status", "", nil, http.StatusOK)
	if err := json.Unmarshal(resp.Data, &status); err != nil || status.Authenticated {
		t.Fatalf("expected anonymous status, got %s err=%v", resp.Data, err)
	}
	resp = env.do(t, http.MethodGet, "/api/auth/status", env.masterToken, nil, http.StatusOK)
	if err := json.Unmarshal(resp.Data, &status); err != nil || !status.Authenticated || status.Subject != "master-1" || status.Role != "quizmaster" {
		t.Fatalf("expected quizmaster status, got %s", resp.Data)
	}
	resp = env.do(t, http.MethodGet, "/api/auth/me", env.adminToken, nil, http.StatusOK)
	if !resp.Success {
		t.Fatalf("expected success envelope")
	}
}
