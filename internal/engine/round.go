package engine

import (
	"sync"
	"time"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/scoring"
)

// Round drives one question through pending, open, closed and scored. Every
// transition is guarded by mu, so racing callers see exactly one success.
type Round struct {
	id       string
	index    int
	total    int
	question domain.Question
	clock    Clock
	ledger   *Ledger

	mu          sync.RWMutex
	state       domain.RoundState
	openedAt    time.Time
	deadline    time.Time
	closedAt    time.Time
	closeReason domain.CloseReason
	timer       Timer
	summary     *domain.RoundSummary
}

// NewRound creates a pending round for question index of total.
func NewRound(id string, index, total int, question domain.Question, participants []string, clock Clock) *Round {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Round{
		id:       id,
		index:    index,
		total:    total,
		question: question,
		clock:    clock,
		ledger:   NewLedger(id, index, participants),
		state:    domain.RoundPending,
	}
}

func (r *Round) ID() string { return r.id }

func (r *Round) Index() int { return r.index }

// State returns the current lifecycle state.
func (r *Round) State() domain.RoundState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Open moves a pending round to open and schedules onDeadline after the
// question's time limit. Opening twice is a no-op.
func (r *Round) Open(onDeadline func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != domain.RoundPending {
		return false
	}
	r.state = domain.RoundOpen
	r.openedAt = r.clock.Now()
	limit := time.Duration(r.question.TimeLimit) * time.Second
	r.deadline = r.openedAt.Add(limit)
	if onDeadline != nil && limit > 0 {
		r.timer = r.clock.AfterFunc(limit, onDeadline)
	}
	return true
}

// AddParticipant lets a player who joined mid-round answer it.
func (r *Round) AddParticipant(playerID string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.state == domain.RoundPending || r.state == domain.RoundOpen {
		r.ledger.AddParticipant(playerID)
	}
}

// Submit records an answer while the round is open and before its deadline.
// allAnswered reports whether every participant has now answered.
func (r *Round) Submit(playerID string, optionIndex int) (answer domain.Answer, allAnswered bool, err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.clock.Now()
	if r.state != domain.RoundOpen || !now.Before(r.deadline) {
		return domain.Answer{}, false, domain.ErrInvalidState
	}
	if optionIndex < 0 || optionIndex >= len(r.question.Options) {
		return domain.Answer{}, false, domain.ErrOptionNotFound
	}

	latency := now.Sub(r.openedAt).Milliseconds()
	answer, err = r.ledger.Record(playerID, r.id, optionIndex, latency, now)
	if err != nil {
		return domain.Answer{}, false, err
	}
	answered, expected := r.ledger.Count()
	return answer, answered >= expected, nil
}

// Close moves an open round to closed. Only the first trigger wins; it stops
// the deadline timer and seals the ledger.
func (r *Round) Close(reason domain.CloseReason) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != domain.RoundOpen {
		return false
	}
	r.state = domain.RoundClosed
	r.closedAt = r.clock.Now()
	r.closeReason = reason
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.ledger.Seal()
	return true
}

// Score grades a closed round exactly once. Players who never answered get a
// synthesized null answer scored 0.
func (r *Round) Score() (domain.RoundSummary, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != domain.RoundClosed {
		return domain.RoundSummary{}, false
	}

	r.ledger.FillMissing(r.closedAt)
	q := r.question
	r.ledger.ApplyScores(func(a domain.Answer) (bool, int) {
		correct := a.OptionIndex >= 0 && a.OptionIndex < len(q.Options) && q.Options[a.OptionIndex].Correct
		return correct, scoring.Score(correct, a.ResponseTimeMs, q.TimeLimit)
	})

	answers, _ := r.ledger.AnswersFor(r.id)
	summary := scoring.Summarize(answers)
	summary.RoundID = r.id
	summary.RoundIndex = r.index
	r.summary = &summary
	r.state = domain.RoundScored
	return summary, true
}

// Summary returns the aggregate once the round is scored.
func (r *Round) Summary() (domain.RoundSummary, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.summary == nil {
		return domain.RoundSummary{}, false
	}
	return *r.summary, true
}

// Answers returns the round's answers in arrival order.
func (r *Round) Answers() []domain.Answer {
	answers, _ := r.ledger.AnswersFor(r.id)
	return answers
}

// AnswerFor returns one player's answer in this round.
func (r *Round) AnswerFor(playerID string) (domain.Answer, bool) {
	return r.ledger.AnswerFor(playerID)
}

// View projects the round for participants; option correctness is revealed only after scoring.
func (r *Round) View() domain.RoundView {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reveal := r.state == domain.RoundScored
	options := make([]domain.OptionView, len(r.question.Options))
	for i, opt := range r.question.Options {
		options[i] = domain.OptionView{Index: i, Text: opt.Text}
		if reveal {
			correct := opt.Correct
			options[i].Correct = &correct
		}
	}
	answered, expected := r.ledger.Count()
	view := domain.RoundView{
		ID:          r.id,
		Index:       r.index,
		Total:       r.total,
		QuestionID:  r.question.ID,
		Text:        r.question.Text,
		ImageURL:    r.question.ImageRef,
		TimeLimit:   r.question.TimeLimit,
		Options:     options,
		State:       r.state,
		CloseReason: r.closeReason,
		Answered:    answered,
		Expected:    expected,
	}
	if !r.openedAt.IsZero() {
		opened, deadline := r.openedAt, r.deadline
		view.OpenedAt, view.Deadline = &opened, &deadline
	}
	if !r.closedAt.IsZero() {
		closed := r.closedAt
		view.ClosedAt = &closed
	}
	return view
}
