// Package scoring turns graded answers into points.
package scoring

import "live-quiz-service/internal/domain"

const (
	// MaxScore is awarded for a correct answer at 0 ms.
	MaxScore = 100
	// MinScore is awarded for a correct answer at or beyond the time limit.
	MinScore = 10
)

// Score computes the points for one answer. A nil responseTimeMs means the
// player never answered and always scores 0. Points decay linearly from
// MaxScore to MinScore over the question's time limit.
func Score(correct bool, responseTimeMs *int64, timeLimitSeconds int) int {
	if !correct || responseTimeMs == nil {
		return 0
	}
	if timeLimitSeconds <= 0 {
		return MaxScore
	}

	limitMs := int64(timeLimitSeconds) * 1000
	elapsed := *responseTimeMs
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > limitMs {
		elapsed = limitMs
	}
	// floor(Max - p) == Max - ceil(p) for the non-negative penalty p
	penalty := (int64(MaxScore-MinScore)*elapsed + limitMs - 1) / limitMs
	return MaxScore - int(penalty)
}

// Summarize aggregates scored answers of one round.
func Summarize(answers []domain.Answer) domain.RoundSummary {
	var (
		summary   domain.RoundSummary
		latencyMs int64
	)
	for _, a := range answers {
		if a.Answered() {
			summary.Answered++
			latencyMs += *a.ResponseTimeMs
		}
		if a.Correct && a.Answered() {
			summary.Correct++
		}
		if a.Score != nil {
			summary.TotalAwarded += *a.Score
		}
	}
	if summary.Answered > 0 {
		summary.AverageLatencyMs = latencyMs / int64(summary.Answered)
	}
	summary.Answers = answers
	return summary
}
