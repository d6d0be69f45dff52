package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a quiz session has not been started or was already removed.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrOptionNotFound indicates a submitted option index is out of range.
	ErrOptionNotFound = errors.New("option not found")

	// ErrEmptyQuiz is returned when starting a session for a quiz without questions.
	ErrEmptyQuiz = errors.New("quiz has no questions")
	// ErrInvalidQuiz wraps content validation failures.
	ErrInvalidQuiz = errors.New("invalid quiz")

	// ErrInvalidState means the operation is not valid for the current round or session state.
	ErrInvalidState = errors.New("invalid state for operation")
	// ErrRoundNotOpen is returned by the answer ledger once its round stopped accepting answers.
	ErrRoundNotOpen = errors.New("round is not open")
	// ErrDuplicateAnswer is returned for a second answer by the same player in the same round.
	ErrDuplicateAnswer = errors.New("player already answered this round")
	// ErrUnknownPlayer is returned when a player id is not part of the session or round.
	ErrUnknownPlayer = errors.New("unknown player")
	// ErrUnknownRound is returned when a round id or index does not exist in the session.
	ErrUnknownRound = errors.New("unknown round")

	// ErrDuplicateName is returned when a display name is already taken in the session.
	ErrDuplicateName = errors.New("display name already in use")
	// ErrInvalidName is returned for empty or overlong display names.
	ErrInvalidName = errors.New("invalid display name")
	// ErrSessionNotJoinable is returned for late joins when the session disallows them.
	ErrSessionNotJoinable = errors.New("session is no longer joinable")

	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("forbidden")
)
