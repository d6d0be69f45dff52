package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"live-quiz-service/internal/auth"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/engine"
)

// SessionRepository abstracts where live sessions are kept (in-memory, Redis-marked, etc).
type SessionRepository interface {
	Put(ctx context.Context, session *engine.Session) error
	Get(ctx context.Context, sessionID string) (*engine.Session, error)
	Delete(ctx context.Context, sessionID string) error
	List(ctx context.Context) ([]*engine.Session, error)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// Archiver persists the final results of a completed session. It must
// tolerate being called more than once for the same session.
type Archiver interface {
	ArchiveSession(ctx context.Context, snapshot domain.SessionSnapshot, rounds [][]domain.Answer) error
}

// ImageResolver turns a stored image reference into a URL players can load.
type ImageResolver interface {
	ResolveImage(ctx context.Context, ref string) (string, error)
}

type StartOptions struct {
	AllowLateJoin bool
}

// ServiceOption configures a SessionService.
type ServiceOption func(*SessionService)

func WithArchiver(a Archiver) ServiceOption { return func(s *SessionService) { s.archiver = a } }

func WithImageResolver(r ImageResolver) ServiceOption {
	return func(s *SessionService) { s.images = r }
}

// WithLateJoinDefault allows late joins for every session, not only those started with AllowLateJoin.
func WithLateJoinDefault(allow bool) ServiceOption {
	return func(s *SessionService) { s.lateJoin = allow }
}

func WithClock(c engine.Clock) ServiceOption { return func(s *SessionService) { s.clock = c } }

// WithIDGenerator is used by tests for stable session and player ids.
func WithIDGenerator(next func() string) ServiceOption {
	return func(s *SessionService) { s.newID = next }
}

// SessionService contains the live quiz use cases.
type SessionService struct {
	sessions  SessionRepository
	quizzes   QuizRepository
	publisher engine.Publisher
	archiver  Archiver
	images    ImageResolver
	clock     engine.Clock
	newID     func() string
	lateJoin  bool
}

func NewSessionService(sessions SessionRepository, quizzes QuizRepository, publisher engine.Publisher, opts ...ServiceOption) *SessionService {
	s := &SessionService{
		sessions:  sessions,
		quizzes:   quizzes,
		publisher: publisher,
		clock:     engine.SystemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start creates a session for quizID owned by the calling quiz master.
func (s *SessionService) Start(ctx context.Context, principal auth.Principal, quizID string, opts StartOptions) (domain.SessionSnapshot, error) {
	if principal.Subject == "" {
		return domain.SessionSnapshot{}, domain.ErrUnauthenticated
	}
	if !principal.HasRole(auth.RoleQuizmaster, auth.RoleAdmin) {
		return domain.SessionSnapshot{}, domain.ErrForbidden
	}

	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	if !quiz.Playable() {
		return domain.SessionSnapshot{}, fmt.Errorf("%w: quiz %s is still a draft", domain.ErrInvalidQuiz, quizID)
	}
	if err := domain.ValidateQuiz(quiz); err != nil {
		return domain.SessionSnapshot{}, err
	}
	quiz, err = s.resolveImages(ctx, quiz)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}

	engineOpts := []engine.Option{
		engine.WithClock(s.clock),
		engine.WithLateJoin(opts.AllowLateJoin || s.lateJoin),
	}
	if s.publisher != nil {
		engineOpts = append(engineOpts, engine.WithPublisher(s.publisher))
	}
	if s.newID != nil {
		engineOpts = append(engineOpts, engine.WithIDGenerator(s.newID))
	}
	session, err := engine.NewSession(quiz, principal.Subject, engineOpts...)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	if err := s.sessions.Put(ctx, session); err != nil {
		return domain.SessionSnapshot{}, fmt.Errorf("store session: %w", err)
	}
	log.Printf("session %s started for quiz %s by %s", session.ID(), quizID, principal.Subject)
	return session.Snapshot(), nil
}

// resolveImages works on a copy so cached quizzes keep their raw refs.
func (s *SessionService) resolveImages(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	if s.images == nil {
		return quiz, nil
	}
	questions := make([]domain.Question, len(quiz.Questions))
	copy(questions, quiz.Questions)
	for i := range questions {
		if questions[i].ImageRef == "" {
			continue
		}
		url, err := s.images.ResolveImage(ctx, questions[i].ImageRef)
		if err != nil {
			return domain.Quiz{}, fmt.Errorf("resolve image for question %s: %w", questions[i].ID, err)
		}
		questions[i].ImageRef = url
	}
	quiz.Questions = questions
	return quiz, nil
}

// Join registers a player by display name.
func (s *SessionService) Join(ctx context.Context, sessionID, displayName string) (domain.Player, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return domain.Player{}, err
	}
	return session.Join(displayName)
}

// SubmitAnswer records a player's answer for the open round.
func (s *SessionService) SubmitAnswer(ctx context.Context, sessionID, playerID string, optionIndex int) (domain.Answer, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return domain.Answer{}, err
	}
	return session.Submit(playerID, optionIndex)
}

// Advance closes the current round and opens the next one. The first call
// that completes the session archives its results.
func (s *SessionService) Advance(ctx context.Context, principal auth.Principal, sessionID string) (domain.AdvanceResult, error) {
	session, err := s.controlled(ctx, principal, sessionID)
	if err != nil {
		return domain.AdvanceResult{}, err
	}
	result, err := session.Advance()
	if err != nil {
		return domain.AdvanceResult{}, err
	}
	if result.Completed {
		log.Printf("session %s completed", session.ID())
		s.archive(ctx, session)
	}
	return result, nil
}

// End stops a session early. Ending an already completed session returns its
// final state unchanged.
func (s *SessionService) End(ctx context.Context, principal auth.Principal, sessionID string) (domain.SessionSnapshot, error) {
	session, err := s.controlled(ctx, principal, sessionID)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	if session.End() {
		log.Printf("session %s ended by %s", session.ID(), principal.Subject)
		s.archive(ctx, session)
	}
	return session.Snapshot(), nil
}

func (s *SessionService) Leaderboard(ctx context.Context, sessionID string) (domain.Leaderboard, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return session.Leaderboard(), nil
}

// CurrentRound returns ErrUnknownRound while the session is still in the lobby.
func (s *SessionService) CurrentRound(ctx context.Context, sessionID string) (domain.RoundView, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return domain.RoundView{}, err
	}
	view, ok := session.CurrentRound()
	if !ok {
		return domain.RoundView{}, domain.ErrUnknownRound
	}
	return view, nil
}

func (s *SessionService) Snapshot(ctx context.Context, sessionID string) (domain.SessionSnapshot, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	return session.Snapshot(), nil
}

// Player returns one roster entry.
func (s *SessionService) Player(ctx context.Context, sessionID, playerID string) (domain.Player, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return domain.Player{}, err
	}
	player, ok := session.Player(playerID)
	if !ok {
		return domain.Player{}, domain.ErrUnknownPlayer
	}
	return player, nil
}

func (s *SessionService) PlayerAnswers(ctx context.Context, sessionID, playerID string) (domain.PlayerAnswers, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return domain.PlayerAnswers{}, err
	}
	return session.PlayerAnswers(playerID)
}

// RoundAnswers exposes every answer of one round, including correctness, so
// it is reserved for the session's quiz master.
func (s *SessionService) RoundAnswers(ctx context.Context, principal auth.Principal, sessionID string, index int) ([]domain.Answer, error) {
	session, err := s.controlled(ctx, principal, sessionID)
	if err != nil {
		return nil, err
	}
	return session.RoundAnswers(index)
}

// ListSessions returns a snapshot of every known session.
func (s *SessionService) ListSessions(ctx context.Context) ([]domain.SessionSnapshot, error) {
	sessions, err := s.sessions.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.SessionSnapshot, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, session.Snapshot())
	}
	return out, nil
}

// ReapResult counts what one Reap pass did.
type ReapResult struct {
	Ended   int
	Removed int
}

// Reap ends sessions with no activity for idleTimeout and drops completed
// sessions that ended more than retention ago. Zero durations disable the
// corresponding step.
func (s *SessionService) Reap(ctx context.Context, idleTimeout, retention time.Duration) (ReapResult, error) {
	sessions, err := s.sessions.List(ctx)
	if err != nil {
		return ReapResult{}, err
	}
	now := s.clock.Now()
	var res ReapResult
	for _, session := range sessions {
		status, updatedAt, endedAt := session.Status()
		switch {
		case status != domain.SessionCompleted && idleTimeout > 0 && now.Sub(updatedAt) >= idleTimeout:
			if session.End() {
				res.Ended++
				log.Printf("session %s ended after %s idle", session.ID(), idleTimeout)
				s.archive(ctx, session)
			}
		case status == domain.SessionCompleted && retention > 0 && now.Sub(endedAt) >= retention:
			if err := s.sessions.Delete(ctx, session.ID()); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
				log.Printf("remove session %s: %v", session.ID(), err)
				continue
			}
			res.Removed++
		}
	}
	return res, nil
}

func (s *SessionService) controlled(ctx context.Context, principal auth.Principal, sessionID string) (*engine.Session, error) {
	if principal.Subject == "" {
		return nil, domain.ErrUnauthenticated
	}
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !principal.CanControl(session.MasterID()) {
		return nil, domain.ErrForbidden
	}
	return session, nil
}

// archive is best-effort: live state stays authoritative if the store is down.
func (s *SessionService) archive(ctx context.Context, session *engine.Session) {
	if s.archiver == nil {
		return
	}
	snapshot, rounds := session.Results()
	if err := s.archiver.ArchiveSession(ctx, snapshot, rounds); err != nil {
		log.Printf("archive session %s: %v", session.ID(), err)
	}
}
