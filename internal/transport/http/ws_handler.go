package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/broadcast"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	service  *app.SessionService
	hub      *broadcast.Hub
	upgrader websocket.Upgrader
}

// NewWSHandler accepts handshakes from the given browser origins. Requests
// without an Origin header (non-browser clients) are always accepted.
func NewWSHandler(service *app.SessionService, hub *broadcast.Hub, origins []string) *WSHandler {
	return &WSHandler{
		service: service,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     allowOrigins(origins),
		},
	}
}

func allowOrigins(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(origins))
	wildcard := false
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			wildcard = true
		}
		allowed[strings.ToLower(o)] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || wildcard {
			return true
		}
		_, ok := allowed[strings.ToLower(strings.TrimRight(origin, "/"))]
		return ok
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	OptionIndex *int `json:"optionIndex"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Version uint64 `json:"version,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS streams a session to one viewer: a snapshot first, then every
// event newer than the snapshot. Players identified by playerId may also
// answer over the socket; without it the connection is watch-only.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	playerID := r.URL.Query().Get("playerId")

	if playerID != "" {
		if _, err := h.service.Player(r.Context(), sessionID, playerID); err != nil {
			writeError(w, err)
			return
		}
	}

	// subscribe before the snapshot so nothing falls in between
	events, cancel := h.hub.Subscribe(sessionID)
	defer cancel()

	snapshot, err := h.service.Snapshot(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	// only this goroutine writes to conn
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	send <- outboundMessage{Type: "snapshot", Version: snapshot.Version, Payload: snapshot}

	go func() {
		defer close(eventsDone)
		last := snapshot.Version
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				if event.Version <= last {
					continue
				}
				last = event.Version
				select {
				case send <- outboundMessage{Type: string(event.Type), Version: event.Version, Payload: event.Payload}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	reply := func(msg outboundMessage) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "ping":
			reply(outboundMessage{Type: "pong"})
		case "answer":
			if playerID == "" {
				reply(errorMessage(errors.New("playerId is required to answer")))
				continue
			}
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.OptionIndex == nil {
				reply(errorMessage(errors.New("invalid answer payload")))
				continue
			}
			answer, err := h.service.SubmitAnswer(r.Context(), sessionID, playerID, *payload.OptionIndex)
			if err != nil {
				reply(errorMessage(err))
				continue
			}
			reply(outboundMessage{Type: "answer_accepted", Payload: answer})
		default:
			reply(errorMessage(errors.New("unsupported message type")))
		}
	}

	close(closeSignals)
	<-eventsDone
	close(send)
	<-writerDone
}

func errorMessage(err error) outboundMessage {
	return outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}}
}
