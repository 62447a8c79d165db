package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz does not exist in the question bank.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrAttemptNotFound indicates an unknown attempt ID.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates a submitted option ID is invalid.
	ErrOptionNotFound = errors.New("option not found")
	// ErrUserNotFound indicates the reward target user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrAttemptFinished rejects submissions against a completed attempt.
	ErrAttemptFinished = errors.New("attempt already finished")
	// ErrQuestionOutOfOrder rejects a submission whose question is not the
	// one at the attempt's current position.
	ErrQuestionOutOfOrder = errors.New("question submitted out of order")
	// ErrQuizAttempted blocks deletion of a quiz that has attempts.
	ErrQuizAttempted = errors.New("quiz has attempts and cannot be deleted")
)
