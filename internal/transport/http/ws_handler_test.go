package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/auth"
	"live-quiz-service/internal/broadcast"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"

	"github.com/gorilla/websocket"
)

func TestWebSocketAnswerFlow(t *testing.T) {
	env := newTestServer(t)
	sessionID := env.startSession(t, env.masterToken)
	playerID := env.join(t, sessionID, "Alice")

	u := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/player/sessions/" + sessionID + "/ws?playerId=" + playerID
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	first := readNext(t, conn)
	if first.Type != "snapshot" {
		t.Fatalf("expected snapshot first, got %s", first.Type)
	}
	var snap domain.SessionSnapshot
	if err := json.Unmarshal(first.Payload, &snap); err != nil || snap.ID != sessionID || len(snap.Leaderboard.Entries) != 1 {
		t.Fatalf("unexpected snapshot %s err=%v", first.Payload, err)
	}

	if err := conn.WriteJSON(map[string]any{"type": "ping"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	readUntil(t, conn, "pong")

	env.do(t, http.MethodPost, "/api/quizmaster/sessions/"+sessionID+"/advance", env.masterToken, nil, http.StatusOK)
	opened := readUntil(t, conn, "round_opened")
	if opened.Version <= snap.Version {
		t.Fatalf("event version %d not after snapshot %d", opened.Version, snap.Version)
	}

	if err := conn.WriteJSON(map[string]any{"type": "answer", "payload": map[string]any{"optionIndex": 1}}); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	seen := map[string]bool{}
	for !(seen["answer_accepted"] && seen["round_scored"]) {
		seen[readNext(t, conn).Type] = true
	}

	if err := conn.WriteJSON(map[string]any{"type": "answer", "payload": map[string]any{"optionIndex": 1}}); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	if msg := readUntil(t, conn, "error"); !strings.Contains(string(msg.Payload), domain.ErrInvalidState.Error()) {
		t.Fatalf("expected invalid state error, got %s", msg.Payload)
	}
}

func TestWebSocketRejectsUnknownPlayer(t *testing.T) {
	env := newTestServer(t)
	sessionID := env.startSession(t, env.masterToken)

	u := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/player/sessions/" + sessionID + "/ws?playerId=ghost"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial failure")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", resp)
	}
}

func TestWebSocketChecksOrigin(t *testing.T) {
	env := newTestServer(t)
	sessionID := env.startSession(t, env.masterToken)
	u := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/player/sessions/" + sessionID + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(u, http.Header{"Origin": {"http://evil.example"}})
	if err == nil {
		t.Fatalf("expected foreign origin to be rejected")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", resp)
	}

	conn, _, err := websocket.DefaultDialer.Dial(u, http.Header{"Origin": {"http://localhost:5173"}})
	if err != nil {
		t.Fatalf("dial from allowed origin: %v", err)
	}
	defer conn.Close()
	if msg := readNext(t, conn); msg.Type != "snapshot" {
		t.Fatalf("expected snapshot, got %s", msg.Type)
	}
}

func TestAllowOrigins(t *testing.T) {
	check := allowOrigins([]string{"http://localhost:5173/", " https://quiz.example "})
	cases := map[string]bool{
		"":                       true,
		"http://localhost:5173":  true,
		"HTTPS://QUIZ.EXAMPLE":   true,
		"http://localhost:3000":  false,
		"https://quiz.example.x": false,
	}
	for origin, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		if got := check(req); got != want {
			t.Fatalf("origin %q: expected %v, got %v", origin, want, got)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "http://anything.example")
	if !allowOrigins([]string{"*"})(req) {
		t.Fatalf("expected wildcard to accept any origin")
	}
}

type wsMessage struct {
	Type    string          `json:"type"`
	Version uint64          `json:"version"`
	Payload json.RawMessage `json:"payload"`
}

func readNext(t *testing.T, conn *websocket.Conn) wsMessage {
	t.Helper()
	var msg wsMessage
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	return msg
}

func readUntil(t *testing.T, conn *websocket.Conn, typ string) wsMessage {
	t.Helper()
	for i := 0; i < 20; i++ {
		if msg := readNext(t, conn); msg.Type == typ {
			return msg
		}
	}
	t.Fatalf("never received %s", typ)
	return wsMessage{}
}

type testServer struct {
	server      *httptest.Server
	masterToken string
	otherToken  string
	adminToken  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	hub := broadcast.NewHub()
	dispatcher := broadcast.NewDispatcher(hub)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = dispatcher.Run(ctx) }()
	t.Cleanup(cancel)

	quizzes := memory.NewQuizRepository(memory.NewStaticQuizLoader(sampleQuizzes()), time.Minute)
	service := app.NewSessionService(memory.NewSessionStore(), quizzes, dispatcher)
	authn := auth.NewAuthenticator("test-secret")

	server := httptest.NewServer(NewRouter(RouterConfig{
		Service:     service,
		Hub:         hub,
		Auth:        authn,
		CORSOrigins: []string{"http://localhost:5173"},
	}))
	t.Cleanup(server.Close)

	issue := func(sub, role string) string {
		tok, err := authn.Issue(sub, role, time.Hour)
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}
		return tok
	}
	return &testServer{
		server:      server,
		masterToken: issue("master-1", auth.RoleQuizmaster),
		otherToken:  issue("master-2", auth.RoleQuizmaster),
		adminToken:  issue("root", auth.RoleAdmin),
	}
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (s *testServer) do(t *testing.T, method, path, token string, body any, wantStatus int) apiResponse {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, s.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out apiResponse
	_ = json.NewDecoder(resp.Body).Decode(&out)
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: expected %d, got %d (%s)", method, path, wantStatus, resp.StatusCode, out.Message)
	}
	return out
}

func (s *testServer) startSession(t *testing.T, token string) string {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/api/quizmaster/sessions", token, map[string]any{"quizId": "quiz-1"}, http.StatusCreated)
	var snap domain.SessionSnapshot
	if err := json.Unmarshal(resp.Data, &snap); err != nil || snap.ID == "" {
		t.Fatalf("decode session: %v", err)
	}
	return snap.ID
}

func (s *testServer) join(t *testing.T, sessionID, name string) string {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/api/player/sessions/"+sessionID+"/join", "", map[string]any{"displayName": name}, http.StatusCreated)
	var player domain.Player
	if err := json.Unmarshal(resp.Data, &player); err != nil || player.ID == "" {
		t.Fatalf("decode player: %v", err)
	}
	return player.ID
}

func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:    "quiz-1",
			Title: "Warm-up",
			Questions: []domain.Question{
				{
					ID:        "q1",
					Text:      "What is 2 + 2?",
					TimeLimit: 30,
					Options: []domain.Option{
						{Text: "3"},
						{Text: "4", Correct: true},
						{Text: "5"},
					},
				},
				{
					ID:        "q2",
					Text:      "What is 3 + 3?",
					TimeLimit: 30,
					Options: []domain.Option{
						{Text: "6", Correct: true},
						{Text: "9"},
					},
				},
			},
		},
		"broken": {
			ID:        "broken",
			Questions: []domain.Question{{ID: "q1", Text: "?", TimeLimit: 0, Options: []domain.Option{{Text: "a", Correct: true}}}},
		},
	}
}
