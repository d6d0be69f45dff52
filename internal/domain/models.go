package domain

import "time"

// QuizStatus tracks the authoring lifecycle of a quiz.
type QuizStatus string

const (
	QuizDraft     QuizStatus = "draft"
	QuizLive      QuizStatus = "live"
	QuizCompleted QuizStatus = "completed"
)

// Option represents a possible answer for a question.
type Option struct {
	Text    string `json:"text" validate:"required"`
	Correct bool   `json:"correct"`
}

// Question models an MCQ question with exactly one correct option.
type Question struct {
	ID        string   `json:"id" validate:"required"`
	QuizID    string   `json:"quizId,omitempty"`
	Text      string   `json:"text" validate:"required"`
	ImageRef  string   `json:"imageRef,omitempty"`
	TimeLimit int      `json:"timeLimit" validate:"gt=0"` // seconds
	Options   []Option `json:"options" validate:"min=2,dive"`
}

// CorrectIndex returns the index of the correct option, or -1.
func (q Question) CorrectIndex() int {
	for i, opt := range q.Options {
		if opt.Correct {
			return i
		}
	}
	return -1
}

// Quiz is an ordered collection of questions.
type Quiz struct {
	ID          string     `json:"id" validate:"required"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	OwnerID     string     `json:"ownerId,omitempty"`
	Status      QuizStatus `json:"status,omitempty"`
	Questions   []Question `json:"questions" validate:"dive"`
}

// Player is a participant of one session and their accumulated score.
type Player struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	Score       int       `json:"score"`
	AnswerCount int       `json:"answerCount"`
	JoinedAt    time.Time `json:"joinedAt"`
	Seq         int       `json:"-"`
}

// Answer is one player's response in one round. A nil ResponseTimeMs means the
// player did not answer before the round closed; Score stays nil until the round is scored.
type Answer struct {
	PlayerID       string    `json:"playerId"`
	RoundID        string    `json:"roundId"`
	RoundIndex     int       `json:"roundIndex"`
	OptionIndex    int       `json:"optionIndex"`
	ResponseTimeMs *int64    `json:"responseTimeMs"`
	Correct        bool      `json:"correct"`
	Score          *int      `json:"score"`
	Seq            int       `json:"seq"`
	SubmittedAt    time.Time `json:"submittedAt"`
}

// Answered reports whether the answer was submitted by the player rather than synthesized.
func (a Answer) Answered() bool {
	return a.ResponseTimeMs != nil
}

// RoundState is the lifecycle state of a single round.
type RoundState string

const (
	RoundPending RoundState = "pending"
	RoundOpen    RoundState = "open"
	RoundClosed  RoundState = "closed"
	RoundScored  RoundState = "scored"
)

// CloseReason records which trigger closed a round.
type CloseReason string

const (
	CloseDeadline     CloseReason = "deadline"
	CloseAllAnswered  CloseReason = "all_answered"
	CloseForced       CloseReason = "forced"
	CloseSessionEnded CloseReason = "session_ended"
)

// OptionView is what participants see of an option.
type OptionView struct {
	Index   int    `json:"index"`
	Text    string `json:"text"`
	Correct *bool  `json:"correct,omitempty"`
}

// RoundView is a participant-safe projection of a round. Correctness flags are
// only included once the round has been scored.
type RoundView struct {
	ID          string       `json:"id"`
	Index       int          `json:"index"`
	Total       int          `json:"total"`
	QuestionID  string       `json:"questionId"`
	Text        string       `json:"text"`
	ImageURL    string       `json:"imageUrl,omitempty"`
	TimeLimit   int          `json:"timeLimit"`
	Options     []OptionView `json:"options"`
	State       RoundState   `json:"state"`
	OpenedAt    *time.Time   `json:"openedAt,omitempty"`
	Deadline    *time.Time   `json:"deadline,omitempty"`
	ClosedAt    *time.Time   `json:"closedAt,omitempty"`
	CloseReason CloseReason  `json:"closeReason,omitempty"`
	Answered    int          `json:"answered"`
	Expected    int          `json:"expected"`
}

// RoundSummary is the aggregate computed when a round is scored.
type RoundSummary struct {
	RoundID          string   `json:"roundId"`
	RoundIndex       int      `json:"roundIndex"`
	Answered         int      `json:"answered"`
	Correct          int      `json:"correct"`
	AverageLatencyMs int64    `json:"averageLatencyMs"`
	TotalAwarded     int      `json:"totalAwarded"`
	Answers          []Answer `json:"answers"`
}

// LeaderboardEntry is a snapshot-friendly view of a player.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
	AnswerCount int    `json:"answerCount"`
}

// Leaderboard captures the ordered scoreboard for a quiz session.
type Leaderboard struct {
	SessionID string             `json:"sessionId"`
	Version   uint64             `json:"version"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// SessionStatus is the lifecycle state of a running session.
type SessionStatus string

const (
	SessionLobby     SessionStatus = "lobby"
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
)

// SessionSnapshot is the full observable state of a session at one version.
type SessionSnapshot struct {
	ID            string        `json:"id"`
	QuizID        string        `json:"quizId"`
	QuizTitle     string        `json:"quizTitle"`
	MasterID      string        `json:"masterId"`
	Status        SessionStatus `json:"status"`
	Version       uint64        `json:"version"`
	Cursor        int           `json:"cursor"`
	TotalRounds   int           `json:"totalRounds"`
	AllowLateJoin bool          `json:"allowLateJoin"`
	Round         *RoundView    `json:"round,omitempty"`
	Leaderboard   Leaderboard   `json:"leaderboard"`
	StartedAt     time.Time     `json:"startedAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
	EndedAt       *time.Time    `json:"endedAt,omitempty"`
}

// AdvanceResult is returned by advancing a session: either the newly opened
// round, or Complete once the question sequence is exhausted.
type AdvanceResult struct {
	Round    *RoundView    `json:"round,omitempty"`
	Summary  *RoundSummary `json:"summary,omitempty"`
	Complete bool          `json:"complete"`

	// Completed is set only on the call that moved the session to completed.
	Completed bool `json:"-"`
}

// PlayerAnswers is one player's answer history with their running total.
type PlayerAnswers struct {
	Player  Player   `json:"player"`
	Answers []Answer `json:"answers"`
	Total   int      `json:"total"`
}
