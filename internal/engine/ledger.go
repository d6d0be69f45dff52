package engine

import (
	"sync"
	"time"

	"live-quiz-service/internal/domain"
)

// Ledger is the authoritative record of answers for one round. It enforces at
// most one answer per player; the check and insert happen under one lock.
type Ledger struct {
	roundID    string
	roundIndex int

	mu           sync.Mutex
	sealed       bool
	seq          int
	submitted    int
	participants []string
	expected     map[string]struct{}
	byPlayer     map[string]*domain.Answer
	ordered      []*domain.Answer
}

// NewLedger creates an empty ledger for the given round and expected players.
func NewLedger(roundID string, roundIndex int, participants []string) *Ledger {
	l := &Ledger{
		roundID:    roundID,
		roundIndex: roundIndex,
		expected:   make(map[string]struct{}, len(participants)),
		byPlayer:   make(map[string]*domain.Answer, len(participants)),
	}
	for _, id := range participants {
		l.addParticipantLocked(id)
	}
	return l
}

// AddParticipant registers a player who joined after the round was created.
func (l *Ledger) AddParticipant(playerID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.addParticipantLocked(playerID)
}

func (l *Ledger) addParticipantLocked(playerID string) {
	if _, ok := l.expected[playerID]; ok {
		return
	}
	l.expected[playerID] = struct{}{}
	l.participants = append(l.participants, playerID)
}

// Record stores a player's answer.
func (l *Ledger) Record(playerID, roundID string, optionIndex int, responseTimeMs int64, at time.Time) (domain.Answer, error) {
	if roundID != l.roundID {
		return domain.Answer{}, domain.ErrUnknownRound
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.sealed {
		return domain.Answer{}, domain.ErrRoundNotOpen
	}
	if _, ok := l.expected[playerID]; !ok {
		return domain.Answer{}, domain.ErrUnknownPlayer
	}
	if _, ok := l.byPlayer[playerID]; ok {
		return domain.Answer{}, domain.ErrDuplicateAnswer
	}

	l.seq++
	latency := responseTimeMs
	answer := &domain.Answer{
		PlayerID:       playerID,
		RoundID:        l.roundID,
		RoundIndex:     l.roundIndex,
		OptionIndex:    optionIndex,
		ResponseTimeMs: &latency,
		Seq:            l.seq,
		SubmittedAt:    at,
	}
	l.byPlayer[playerID] = answer
	l.ordered = append(l.ordered, answer)
	l.submitted++
	return copyAnswer(answer), nil
}

// Seal stops the ledger from accepting further answers.
func (l *Ledger) Seal() {
	l.mu.Lock()
	l.sealed = true
	l.mu.Unlock()
}

// Count returns the number of player-submitted answers and expected participants.
func (l *Ledger) Count() (answered, expected int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.submitted, len(l.expected)
}

// FillMissing appends a null answer for every participant who did not answer.
// It only applies to a sealed ledger and is safe to call more than once.
func (l *Ledger) FillMissing(at time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.sealed {
		return 0
	}
	filled := 0
	for _, id := range l.participants {
		if _, ok := l.byPlayer[id]; ok {
			continue
		}
		l.seq++
		answer := &domain.Answer{
			PlayerID:    id,
			RoundID:     l.roundID,
			RoundIndex:  l.roundIndex,
			OptionIndex: -1,
			Seq:         l.seq,
			SubmittedAt: at,
		}
		l.byPlayer[id] = answer
		l.ordered = append(l.ordered, answer)
		filled++
	}
	return filled
}

// ApplyScores grades every stored answer with fn.
func (l *Ledger) ApplyScores(fn func(a domain.Answer) (correct bool, score int)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, a := range l.ordered {
		correct, score := fn(*a)
		a.Correct = correct
		s := score
		a.Score = &s
	}
}

// AnswersFor returns the round's answers in arrival order.
func (l *Ledger) AnswersFor(roundID string) ([]domain.Answer, error) {
	if roundID != l.roundID {
		return nil, domain.ErrUnknownRound
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Answer, 0, len(l.ordered))
	for _, a := range l.ordered {
		out = append(out, copyAnswer(a))
	}
	return out, nil
}

// AnswerFor returns a single player's answer, if any.
func (l *Ledger) AnswerFor(playerID string) (domain.Answer, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.byPlayer[playerID]
	if !ok {
		return domain.Answer{}, false
	}
	return copyAnswer(a), true
}

func copyAnswer(a *domain.Answer) domain.Answer {
	out := *a
	if a.ResponseTimeMs != nil {
		v := *a.ResponseTimeMs
		out.ResponseTimeMs = &v
	}
	if a.Score != nil {
		v := *a.Score
		out.Score = &v
	}
	return out
}
