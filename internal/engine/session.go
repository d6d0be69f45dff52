package engine

import (
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"live-quiz-service/internal/domain"

	"github.com/google/uuid"
)

// MaxDisplayNameLength bounds player nicknames.
const MaxDisplayNameLength = 50

// Publisher receives session events. Implementations must only enqueue:
// Publish is called while the session lock is held.
type Publisher interface {
	Publish(event domain.Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(domain.Event)

func (f PublisherFunc) Publish(event domain.Event) { f(event) }

// Option configures a Session.
type Option func(*Session)

func WithClock(clock Clock) Option { return func(s *Session) { s.clock = clock } }

func WithPublisher(p Publisher) Option { return func(s *Session) { s.publisher = p } }

// WithLateJoin allows players to join after the first round.
func WithLateJoin(allow bool) Option { return func(s *Session) { s.allowLateJoin = allow } }

func WithIDGenerator(next func() string) Option { return func(s *Session) { s.newID = next } }

// Session is one running playthrough of a quiz. A single RWMutex guards the
// roster, cursor, current round and version: submissions share the read lock
// so players never wait on each other, transitions take the write lock.
type Session struct {
	id            string
	quiz          domain.Quiz
	masterID      string
	clock         Clock
	publisher     Publisher
	newID         func() string
	allowLateJoin bool

	mu        sync.RWMutex
	status    domain.SessionStatus
	version   uint64
	cursor    int
	round     *Round
	rounds    []*Round
	players   map[string]*domain.Player
	order     []*domain.Player
	names     map[string]string
	seq       int
	startedAt time.Time
	updatedAt time.Time
	endedAt   time.Time
}

// NewSession creates a session in the lobby. No round is open until the first Advance.
func NewSession(quiz domain.Quiz, masterID string, opts ...Option) (*Session, error) {
	if len(quiz.Questions) == 0 {
		return nil, domain.ErrEmptyQuiz
	}
	s := &Session{
		quiz:     quiz,
		masterID: masterID,
		clock:    SystemClock{},
		newID:    uuid.NewString,
		status:   domain.SessionLobby,
		cursor:   -1,
		players:  make(map[string]*domain.Player),
		names:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.id = s.newID()
	s.startedAt = s.clock.Now()
	s.updatedAt = s.startedAt
	return s, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) QuizID() string { return s.quiz.ID }

func (s *Session) MasterID() string { return s.masterID }

// Status returns the lifecycle status, the last activity time and, once completed, the end time.
func (s *Session) Status() (status domain.SessionStatus, updatedAt, endedAt time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status, s.updatedAt, s.endedAt
}

// Join adds a player by display name.
func (s *Session) Join(displayName string) (domain.Player, error) {
	name := strings.TrimSpace(displayName)
	if name == "" || utf8.RuneCountInString(name) > MaxDisplayNameLength {
		return domain.Player{}, domain.ErrInvalidName
	}
	key := strings.ToLower(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == domain.SessionCompleted {
		return domain.Player{}, domain.ErrInvalidState
	}
	if s.cursor > 0 && !s.allowLateJoin {
		return domain.Player{}, domain.ErrSessionNotJoinable
	}
	if _, taken := s.names[key]; taken {
		return domain.Player{}, domain.ErrDuplicateName
	}

	s.seq++
	player := &domain.Player{
		ID:          s.newID(),
		DisplayName: name,
		JoinedAt:    s.clock.Now(),
		Seq:         s.seq,
	}
	s.players[player.ID] = player
	s.order = append(s.order, player)
	s.names[key] = player.ID
	if s.round != nil {
		s.round.AddParticipant(player.ID)
	}

	s.emitLocked(domain.EventPlayerJoined, *player)
	return *player, nil
}

// Submit records a player's answer for the current round. When the last
// expected player answers, the round is closed and scored right away.
func (s *Session) Submit(playerID string, optionIndex int) (domain.Answer, error) {
	s.mu.RLock()
	if _, ok := s.players[playerID]; !ok {
		s.mu.RUnlock()
		return domain.Answer{}, domain.ErrUnknownPlayer
	}
	round := s.round
	if s.status != domain.SessionRunning || round == nil {
		s.mu.RUnlock()
		return domain.Answer{}, domain.ErrInvalidState
	}
	answer, allAnswered, err := round.Submit(playerID, optionIndex)
	s.mu.RUnlock()
	if err != nil {
		return domain.Answer{}, err
	}

	if allAnswered {
		s.finishRound(round, domain.CloseAllAnswered)
	}
	return answer, nil
}

// Advance closes and scores the current round if needed, then opens the next
// one. Once the questions are exhausted it completes the session; further
// calls report Complete without changing anything.
func (s *Session) Advance() (domain.AdvanceResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == domain.SessionCompleted {
		return domain.AdvanceResult{Complete: true}, nil
	}

	var result domain.AdvanceResult
	if s.round != nil {
		s.closeAndScoreLocked(s.round, domain.CloseForced)
		if summary, ok := s.round.Summary(); ok {
			result.Summary = &summary
		}
	}

	next := s.cursor + 1
	if next >= len(s.quiz.Questions) {
		s.completeLocked(domain.EventSessionCompleted)
		result.Complete = true
		result.Completed = true
		return result, nil
	}

	participants := make([]string, 0, len(s.order))
	for _, p := range s.order {
		participants = append(participants, p.ID)
	}
	round := NewRound(s.newID(), next, len(s.quiz.Questions), s.quiz.Questions[next], participants, s.clock)
	round.Open(func() { s.finishRound(round, domain.CloseDeadline) })

	s.round = round
	s.rounds = append(s.rounds, round)
	s.cursor = next
	s.status = domain.SessionRunning

	view := round.View()
	s.emitLocked(domain.EventRoundOpened, view)
	result.Round = &view
	return result, nil
}

// End stops the session early on the quiz master's request. The open round,
// if any, is closed and scored first. Ending a completed session is a no-op.
func (s *Session) End() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == domain.SessionCompleted {
		return false
	}
	if s.round != nil {
		s.closeAndScoreLocked(s.round, domain.CloseSessionEnded)
	}
	s.completeLocked(domain.EventSessionEnded)
	return true
}

// finishRound is the deadline and all-answered path. It is a no-op when the
// round was already closed and scored by another trigger.
func (s *Session) finishRound(round *Round, reason domain.CloseReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeAndScoreLocked(round, reason)
}

func (s *Session) closeAndScoreLocked(round *Round, reason domain.CloseReason) {
	if round.Close(reason) {
		s.emitLocked(domain.EventRoundClosed, round.View())
	}
	summary, ok := round.Score()
	if !ok {
		return
	}
	for _, a := range summary.Answers {
		player, ok := s.players[a.PlayerID]
		if !ok {
			continue
		}
		if a.Score != nil {
			player.Score += *a.Score
		}
		if a.Answered() {
			player.AnswerCount++
		}
	}
	s.emitLocked(domain.EventRoundScored, domain.RoundScoredPayload{
		Summary:     summary,
		Leaderboard: s.leaderboardLocked(),
	})
}

func (s *Session) completeLocked(eventType domain.EventType) {
	s.status = domain.SessionCompleted
	s.endedAt = s.clock.Now()
	s.emitLocked(eventType, s.leaderboardLocked())
}

func (s *Session) emitLocked(eventType domain.EventType, payload any) {
	s.version++
	s.updatedAt = s.clock.Now()
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(domain.Event{
		SessionID: s.id,
		Type:      eventType,
		Version:   s.version,
		Payload:   payload,
		At:        s.updatedAt,
	})
}

// Leaderboard returns players by score, ties broken by earliest join.
func (s *Session) Leaderboard() domain.Leaderboard {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.leaderboardLocked()
}

func (s *Session) leaderboardLocked() domain.Leaderboard {
	players := make([]*domain.Player, len(s.order))
	copy(players, s.order)
	sort.SliceStable(players, func(i, j int) bool {
		pi, pj := players[i], players[j]
		if pi.Score != pj.Score {
			return pi.Score > pj.Score
		}
		if !pi.JoinedAt.Equal(pj.JoinedAt) {
			return pi.JoinedAt.Before(pj.JoinedAt)
		}
		return pi.Seq < pj.Seq
	})

	entries := make([]domain.LeaderboardEntry, 0, len(players))
	for i, p := range players {
		entries = append(entries, domain.LeaderboardEntry{
			Rank:        i + 1,
			PlayerID:    p.ID,
			DisplayName: p.DisplayName,
			Score:       p.Score,
			AnswerCount: p.AnswerCount,
		})
	}
	return domain.Leaderboard{
		SessionID: s.id,
		Version:   s.version,
		Entries:   entries,
		UpdatedAt: s.updatedAt,
	}
}

// CurrentRound returns the view of the most recent round, if any.
func (s *Session) CurrentRound() (domain.RoundView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.round == nil {
		return domain.RoundView{}, false
	}
	return s.round.View(), true
}

// Player returns a copy of one roster entry.
func (s *Session) Player(playerID string) (domain.Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[playerID]
	if !ok {
		return domain.Player{}, false
	}
	return *p, true
}

// Snapshot returns the full observable state at the current version.
func (s *Session) Snapshot() domain.SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := domain.SessionSnapshot{
		ID:            s.id,
		QuizID:        s.quiz.ID,
		QuizTitle:     s.quiz.Title,
		MasterID:      s.masterID,
		Status:        s.status,
		Version:       s.version,
		Cursor:        s.cursor,
		TotalRounds:   len(s.quiz.Questions),
		AllowLateJoin: s.allowLateJoin,
		Leaderboard:   s.leaderboardLocked(),
		StartedAt:     s.startedAt,
		UpdatedAt:     s.updatedAt,
	}
	if s.round != nil {
		view := s.round.View()
		snap.Round = &view
	}
	if !s.endedAt.IsZero() {
		ended := s.endedAt
		snap.EndedAt = &ended
	}
	return snap
}

// PlayerAnswers returns a player's answers across all rounds so far.
func (s *Session) PlayerAnswers(playerID string) (domain.PlayerAnswers, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	player, ok := s.players[playerID]
	if !ok {
		return domain.PlayerAnswers{}, domain.ErrUnknownPlayer
	}
	out := domain.PlayerAnswers{Player: *player, Answers: []domain.Answer{}}
	for _, r := range s.rounds {
		a, ok := r.AnswerFor(playerID)
		if !ok {
			continue
		}
		out.Answers = append(out.Answers, a)
		if a.Score != nil {
			out.Total += *a.Score
		}
	}
	return out, nil
}

// RoundAnswers returns the answers recorded for the round at index.
func (s *Session) RoundAnswers(index int) ([]domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.rounds) {
		return nil, domain.ErrUnknownRound
	}
	return s.rounds[index].Answers(), nil
}

// Results returns the final leaderboard and every round's answers.
func (s *Session) Results() (domain.SessionSnapshot, [][]domain.Answer) {
	snap := s.Snapshot()
	s.mu.RLock()
	defer s.mu.RUnlock()
	answers := make([][]domain.Answer, len(s.rounds))
	for i, r := range s.rounds {
		answers[i] = r.Answers()
	}
	return snap, answers
}
