package engine_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/engine"
	"live-quiz-service/internal/engine/enginetest"
)

func TestRoundLifecycle(t *testing.T) {
	clock := enginetest.NewFakeClock(time.Unix(0, 0))
	round := engine.NewRound("r1", 0, 1, tenSecondQuestion(), []string{"a", "b"}, clock)

	if _, _, err := round.Submit("a", 1); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("pending round must reject answers, got %v", err)
	}
	if round.Close(domain.CloseForced) {
		t.Fatalf("pending round must not close")
	}
	if _, ok := round.Score(); ok {
		t.Fatalf("pending round must not score")
	}

	var fired int32
	if !round.Open(func() { atomic.AddInt32(&fired, 1) }) {
		t.Fatalf("expected open")
	}
	if round.Open(nil) {
		t.Fatalf("double open must be a no-op")
	}

	clock.Advance(2 * time.Second)
	answer, all, err := round.Submit("a", 1)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if all {
		t.Fatalf("not everyone answered yet")
	}
	if *answer.ResponseTimeMs != 2000 {
		t.Fatalf("expected latency 2000, got %d", *answer.ResponseTimeMs)
	}
	if _, _, err := round.Submit("b", 7); !errors.Is(err, domain.ErrOptionNotFound) {
		t.Fatalf("expected option not found, got %v", err)
	}

	if !round.Close(domain.CloseForced) {
		t.Fatalf("expected close")
	}
	if round.Close(domain.CloseDeadline) {
		t.Fatalf("second close must be a no-op")
	}
	if clock.Pending() != 0 {
		t.Fatalf("forced close must cancel the deadline timer")
	}
	clock.Advance(20 * time.Second)
	if atomic.LoadInt32(&fired) != 0 {
		t.Fatalf("cancelled timer fired")
	}

	summary, ok := round.Score()
	if !ok {
		t.Fatalf("expected score")
	}
	if _, ok := round.Score(); ok {
		t.Fatalf("second score must be a no-op")
	}
	if round.Open(nil) || round.Close(domain.CloseForced) {
		t.Fatalf("scored round must not move backward")
	}
	if round.State() != domain.RoundScored {
		t.Fatalf("expected scored, got %s", round.State())
	}

	if len(summary.Answers) != 2 {
		t.Fatalf("expected real + synthesized answer, got %d", len(summary.Answers))
	}
	if *summary.Answers[0].Score != 82 || !summary.Answers[0].Correct {
		t.Fatalf("expected a to score 82, got %+v", summary.Answers[0])
	}
	if summary.Answers[1].PlayerID != "b" || *summary.Answers[1].Score != 0 || summary.Answers[1].Answered() {
		t.Fatalf("expected null answer for b, got %+v", summary.Answers[1])
	}
	if summary.Answered != 1 || summary.Correct != 1 || summary.TotalAwarded != 82 || summary.AverageLatencyMs != 2000 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestRoundDeadlineRejectsLateAnswers(t *testing.T) {
	clock := enginetest.NewFakeClock(time.Unix(0, 0))
	round := engine.NewRound("r1", 0, 1, tenSecondQuestion(), []string{"a"}, clock)
	closed := make(chan struct{}, 1)
	round.Open(func() {
		if round.Close(domain.CloseDeadline) {
			closed <- struct{}{}
		}
	})

	clock.Advance(10 * time.Second)
	select {
	case <-closed:
	default:
		t.Fatalf("deadline did not close the round")
	}
	if _, _, err := round.Submit("a", 1); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state after deadline, got %v", err)
	}
	if view := round.View(); view.CloseReason != domain.CloseDeadline {
		t.Fatalf("expected deadline close reason, got %s", view.CloseReason)
	}
}

func TestRoundViewHidesCorrectnessUntilScored(t *testing.T) {
	clock := enginetest.NewFakeClock(time.Unix(0, 0))
	round := engine.NewRound("r1", 0, 3, tenSecondQuestion(), nil, clock)
	round.Open(nil)

	view := round.View()
	for _, opt := range view.Options {
		if opt.Correct != nil {
			t.Fatalf("correctness leaked while open")
		}
	}
	if view.Deadline == nil || !view.Deadline.Equal(time.Unix(10, 0)) {
		t.Fatalf("unexpected deadline %v", view.Deadline)
	}

	round.Close(domain.CloseForced)
	round.Score()
	view = round.View()
	if view.Options[1].Correct == nil || !*view.Options[1].Correct {
		t.Fatalf("expected correctness revealed after scoring")
	}
}

func TestRoundConcurrentCloseSingleWinner(t *testing.T) {
	round := engine.NewRound("r1", 0, 1, tenSecondQuestion(), []string{"a"}, engine.SystemClock{})
	round.Open(nil)

	var (
		wg   sync.WaitGroup
		wins int32
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if round.Close(domain.CloseForced) {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one close, got %d", wins)
	}
}

func tenSecondQuestion() domain.Question {
	return domain.Question{
		ID:        "q1",
		Text:      "What is 2 + 2?",
		TimeLimit: 10,
		Options: []domain.Option{
			{Text: "3"},
			{Text: "4", Correct: true},
			{Text: "5"},
		},
	}
}
