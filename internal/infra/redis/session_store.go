package redis

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/engine"

	"github.com/redis/go-redis/v9"
)

// SessionStore keeps live sessions in process and marks each one in Redis
// (quiz:session:{id} -> quiz id) so other instances and operators can see
// which sessions exist. Timers and locks stay local to the owning process.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration

	mu       sync.RWMutex
	sessions map[string]*engine.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*engine.Session),
	}
}

func (s *SessionStore) Put(ctx context.Context, session *engine.Session) error {
	if err := s.client.Set(ctx, sessionKey(session.ID()), session.QuizID(), s.ttl).Err(); err != nil {
		return fmt.Errorf("mark session %s: %w", session.ID(), err)
	}
	s.mu.Lock()
	s.sessions[session.ID()] = session
	s.mu.Unlock()
	return nil
}

func (s *SessionStore) Get(_ context.Context, sessionID string) (*engine.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	_, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	if !ok {
		return domain.ErrSessionNotFound
	}
	return s.client.Del(ctx, sessionKey(sessionID), versionKey(sessionID)).Err()
}

func (s *SessionStore) List(_ context.Context) ([]*engine.Session, error) {
	s.mu.RLock()
	out := make([]*engine.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

func sessionKey(sessionID string) string {
	return "quiz:session:" + sessionID
}

func versionKey(sessionID string) string {
	return sessionKey(sessionID) + ":version"
}

func eventsChannel(sessionID string) string {
	return sessionKey(sessionID) + ":events"
}
