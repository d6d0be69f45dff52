package postgres

import (
	"context"
	"fmt"
	"time"

	"live-quiz-service/internal/domain"

	"github.com/uptrace/bun"
)

type sessionResult struct {
	bun.BaseModel `bun:"table:session_results"`

	ID          string    `bun:"id,pk"`
	QuizID      string    `bun:"quiz_id,notnull"`
	QuizTitle   string    `bun:"quiz_title"`
	MasterID    string    `bun:"master_id,notnull"`
	Status      string    `bun:"status,notnull"`
	TotalRounds int       `bun:"total_rounds"`
	PlayedRound int       `bun:"played_rounds"`
	Version     int64     `bun:"version"`
	StartedAt   time.Time `bun:"started_at"`
	EndedAt     time.Time `bun:"ended_at"`
}

type playerResult struct {
	bun.BaseModel `bun:"table:player_results"`

	SessionID   string `bun:"session_id,pk"`
	PlayerID    string `bun:"player_id,pk"`
	DisplayName string `bun:"display_name,notnull"`
	Rank        int    `bun:"rank"`
	Score       int    `bun:"score"`
	AnswerCount int    `bun:"answer_count"`
}

type answerResult struct {
	bun.BaseModel `bun:"table:answer_results"`

	SessionID      string    `bun:"session_id,pk"`
	RoundIndex     int       `bun:"round_index,pk"`
	PlayerID       string    `bun:"player_id,pk"`
	RoundID        string    `bun:"round_id,notnull"`
	OptionIndex    int       `bun:"option_index"`
	ResponseTimeMs *int64    `bun:"response_time_ms"`
	Correct        bool      `bun:"correct"`
	Score          int       `bun:"score"`
	Seq            int       `bun:"seq"`
	SubmittedAt    time.Time `bun:"submitted_at"`
}

// Archive stores the outcome of completed sessions. Writes are idempotent:
// rows that already exist are left untouched.
type Archive struct {
	db *bun.DB
}

func NewArchive(db *bun.DB) *Archive {
	return &Archive{db: db}
}

func (a *Archive) ArchiveSession(ctx context.Context, snap domain.SessionSnapshot, rounds [][]domain.Answer) error {
	session := sessionResult{
		ID:          snap.ID,
		QuizID:      snap.QuizID,
		QuizTitle:   snap.QuizTitle,
		MasterID:    snap.MasterID,
		Status:      string(snap.Status),
		TotalRounds: snap.TotalRounds,
		PlayedRound: len(rounds),
		Version:     int64(snap.Version),
		StartedAt:   snap.StartedAt,
		EndedAt:     snap.UpdatedAt,
	}
	if snap.EndedAt != nil {
		session.EndedAt = *snap.EndedAt
	}

	players := make([]playerResult, 0, len(snap.Leaderboard.Entries))
	for _, e := range snap.Leaderboard.Entries {
		players = append(players, playerResult{
			SessionID:   snap.ID,
			PlayerID:    e.PlayerID,
			DisplayName: e.DisplayName,
			Rank:        e.Rank,
			Score:       e.Score,
			AnswerCount: e.AnswerCount,
		})
	}

	var answers []answerResult
	for _, round := range rounds {
		for _, ans := range round {
			row := answerResult{
				SessionID:      snap.ID,
				RoundIndex:     ans.RoundIndex,
				PlayerID:       ans.PlayerID,
				RoundID:        ans.RoundID,
				OptionIndex:    ans.OptionIndex,
				ResponseTimeMs: ans.ResponseTimeMs,
				Correct:        ans.Correct,
				Seq:            ans.Seq,
				SubmittedAt:    ans.SubmittedAt,
			}
			if ans.Score != nil {
				row.Score = *ans.Score
			}
			answers = append(answers, row)
		}
	}

	return a.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&session).On("CONFLICT (id) DO NOTHING").Exec(ctx); err != nil {
			return fmt.Errorf("insert session result: %w", err)
		}
		if len(players) > 0 {
			if _, err := tx.NewInsert().Model(&players).On("CONFLICT (session_id, player_id) DO NOTHING").Exec(ctx); err != nil {
				return fmt.Errorf("insert player results: %w", err)
			}
		}
		if len(answers) > 0 {
			if _, err := tx.NewInsert().Model(&answers).On("CONFLICT (session_id, round_index, player_id) DO NOTHING").Exec(ctx); err != nil {
				return fmt.Errorf("insert answer results: %w", err)
			}
		}
		return nil
	})
}

// SessionStanding is one archived leaderboard row.
type SessionStanding struct {
	PlayerID    string
	DisplayName string
	Rank        int
	Score       int
}

// Standings returns the archived final leaderboard of a session.
func (a *Archive) Standings(ctx context.Context, sessionID string) ([]SessionStanding, error) {
	var rows []playerResult
	if err := a.db.NewSelect().Model(&rows).Where("session_id = ?", sessionID).Order("rank ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("select standings: %w", err)
	}
	out := make([]SessionStanding, 0, len(rows))
	for _, r := range rows {
		out = append(out, SessionStanding{PlayerID: r.PlayerID, DisplayName: r.DisplayName, Rank: r.Rank, Score: r.Score})
	}
	return out, nil
}
