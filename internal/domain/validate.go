package domain

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Playable reports whether a quiz may be started. Drafts are still being
// authored; an empty status counts as live.
func (q Quiz) Playable() bool {
	return q.Status != QuizDraft
}

// ValidateQuiz checks that quiz content can be played: every question has a
// positive time limit, at least two options and exactly one correct option.
func ValidateQuiz(quiz Quiz) error {
	if len(quiz.Questions) == 0 {
		return ErrEmptyQuiz
	}
	if err := validate.Struct(quiz); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidQuiz, err)
	}
	for i, q := range quiz.Questions {
		correct := 0
		for _, opt := range q.Options {
			if opt.Correct {
				correct++
			}
		}
		if correct != 1 {
			return fmt.Errorf("%w: question %d (%s) has %d correct options", ErrInvalidQuiz, i, q.ID, correct)
		}
	}
	return nil
}
