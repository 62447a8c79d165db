package app

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"planet-quiz-service/internal/domain"
)

// QuestionBank is the read-only port to quiz content (cache/backing store).
type QuestionBank interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	ListQuestionIDs(ctx context.Context, quizID string) ([]string, error)
	CountQuestions(ctx context.Context, quizID string) (int, error)
	GetOption(ctx context.Context, optionID string) (domain.Option, error)
}

// AttemptTx exposes the storage primitives available while an attempt is
// held under its per-attempt lock. Everything invoked through it commits or
// rolls back as one unit with the surrounding Mutate call.
type AttemptTx interface {
	// Attempt returns the locked attempt as of transaction start.
	Attempt() domain.Attempt
	AppendDetail(ctx context.Context, detail domain.AttemptDetail) error
	// AdvanceIndex increments the progress cursor by one and returns the
	// new value.
	AdvanceIndex(ctx context.Context) (int, error)
	Details(ctx context.Context) ([]domain.AttemptDetail, error)
	// CountOtherCompletions counts the user's finished attempts at the same
	// quiz, excluding the attempt under mutation.
	CountOtherCompletions(ctx context.Context) (int, error)
	Finalize(ctx context.Context, score float64, xpEarned int, finishedAt time.Time) error
	GetUser(ctx context.Context, userID string) (domain.User, error)
	UpdateUser(ctx context.Context, user domain.User) error
	// HighestLevelAtOrBelow returns the highest-numbered level whose minXp
	// does not exceed xp, or ok=false when no level qualifies.
	HighestLevelAtOrBelow(ctx context.Context, xp int) (domain.Level, bool, error)
}

// AttemptStore persists attempts and their answer details.
type AttemptStore interface {
	Create(ctx context.Context, attempt domain.Attempt) (domain.Attempt, error)
	Get(ctx context.Context, attemptID string) (domain.Attempt, error)
	// CompletedQuizIDs lists the distinct quizzes the user has finished.
	CompletedQuizIDs(ctx context.Context, userID string) ([]string, error)
	// Mutate runs fn while the attempt is exclusively locked; fn's effects
	// are committed only if it returns nil.
	Mutate(ctx context.Context, attemptID string, fn func(ctx context.Context, tx AttemptTx) error) error
}

// AttemptService drives an attempt from start through each answer submission
// to completion, scoring and reward issuance.
type AttemptService struct {
	attempts AttemptStore
	bank     QuestionBank
	now      func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewAttemptService(attempts AttemptStore, bank QuestionBank) *AttemptService {
	return NewAttemptServiceWithRand(attempts, bank, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewAttemptServiceWithRand injects the shuffle randomness source for
// deterministic tests.
func NewAttemptServiceWithRand(attempts AttemptStore, bank QuestionBank, rnd *rand.Rand) *AttemptService {
	return &AttemptService{
		attempts: attempts,
		bank:     bank,
		now:      time.Now,
		rnd:      rnd,
	}
}

// Start creates a new in-progress attempt with a freshly shuffled question
// order. A quiz with no questions yields an attempt that is already finished
// with score 0. The shuffled order is returned so the caller can render
// questions in exactly that sequence; it is also recoverable via Resume.
func (s *AttemptService) Start(ctx context.Context, userID, quizID string) (domain.Attempt, []string, error) {
	if _, err := s.bank.GetQuiz(ctx, quizID); err != nil {
		return domain.Attempt{}, nil, err
	}

	ids, err := s.bank.ListQuestionIDs(ctx, quizID)
	if err != nil {
		return domain.Attempt{}, nil, err
	}
	order := s.shuffle(ids)

	attempt := domain.Attempt{
		UserID:         userID,
		QuizID:         quizID,
		QuestionsOrder: order,
		CurrentIndex:   0,
		Score:          0,
		XpEarned:       0,
		StartedAt:      s.now(),
	}
	if len(order) == 0 {
		finished := attempt.StartedAt
		attempt.FinishedAt = &finished
	}

	created, err := s.attempts.Create(ctx, attempt)
	if err != nil {
		return domain.Attempt{}, nil, err
	}
	return created, order, nil
}

// Resume returns the persisted attempt and its stored question order without
// mutating any state.
func (s *AttemptService) Resume(ctx context.Context, attemptID string) (domain.Attempt, []string, error) {
	attempt, err := s.attempts.Get(ctx, attemptID)
	if err != nil {
		return domain.Attempt{}, nil, err
	}
	return attempt, attempt.QuestionsOrder, nil
}

// SubmitAnswer records one answer and advances the attempt. The detail
// append, cursor increment and (on the final question) scoring, reward and
// user XP mutation all commit atomically; any failure leaves the attempt
// exactly as it was, so the caller can retry the same submission.
func (s *AttemptService) SubmitAnswer(ctx context.Context, attemptID, questionID, selectedOptionID string) (domain.AnswerResult, error) {
	var result domain.AnswerResult

	err := s.attempts.Mutate(ctx, attemptID, func(ctx context.Context, tx AttemptTx) error {
		attempt := tx.Attempt()
		if attempt.Finished() || attempt.CurrentIndex >= len(attempt.QuestionsOrder) {
			return domain.ErrAttemptFinished
		}
		if attempt.QuestionsOrder[attempt.CurrentIndex] != questionID {
			return domain.ErrQuestionOutOfOrder
		}

		option, err := s.bank.GetOption(ctx, selectedOptionID)
		if err != nil {
			return err
		}

		if err := tx.AppendDetail(ctx, domain.AttemptDetail{
			AttemptID:        attemptID,
			QuestionID:       questionID,
			SelectedOptionID: selectedOptionID,
			IsCorrect:        option.Correct,
		}); err != nil {
			return err
		}

		index, err := tx.AdvanceIndex(ctx)
		if err != nil {
			return err
		}

		total, err := s.bank.CountQuestions(ctx, attempt.QuizID)
		if err != nil {
			return err
		}

		result = domain.AnswerResult{
			IsCorrect:    option.Correct,
			CurrentIndex: index,
		}
		if index < total {
			return nil
		}

		return s.finish(ctx, tx, attempt, total, &result)
	})
	if err != nil {
		return domain.AnswerResult{}, err
	}
	return result, nil
}

// finish runs the InProgress -> Finished transition inside the submit
// transaction: score from the persisted details, gate the reward, finalize
// the attempt and apply XP/level to the user.
func (s *AttemptService) finish(ctx context.Context, tx AttemptTx, attempt domain.Attempt, total int, result *domain.AnswerResult) error {
	details, err := tx.Details(ctx)
	if err != nil {
		return err
	}
	correct := countCorrect(details)
	score := Score(correct, total)

	quiz, err := s.bank.GetQuiz(ctx, attempt.QuizID)
	if err != nil {
		return err
	}
	previous, err := tx.CountOtherCompletions(ctx)
	if err != nil {
		return err
	}
	decision := decideReward(quiz.RewardXp, correct, total, previous)

	if err := tx.Finalize(ctx, score, decision.XpEarned, s.now()); err != nil {
		return err
	}

	if decision.XpEarned > 0 {
		if err := s.grantXp(ctx, tx, attempt.UserID, decision.XpEarned); err != nil {
			return err
		}
	}

	result.IsFinished = true
	result.Score = &score
	xp := decision.XpEarned
	result.XpEarned = &xp
	return nil
}

// grantXp adds the earned XP to the user's total and promotes their level to
// the highest threshold the new total clears. The level never moves down; if
// no level row qualifies the current level is kept.
func (s *AttemptService) grantXp(ctx context.Context, tx AttemptTx, userID string, xp int) error {
	user, err := tx.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	user.TotalXp += xp
	if level, ok, err := tx.HighestLevelAtOrBelow(ctx, user.TotalXp); err != nil {
		return err
	} else if ok {
		user.Level = level.Level
	}
	return tx.UpdateUser(ctx, user)
}

// CompletedQuizIDs lists the distinct quizzes the user has finished at least
// one attempt of.
func (s *AttemptService) CompletedQuizIDs(ctx context.Context, userID string) ([]string, error) {
	return s.attempts.CompletedQuizIDs(ctx, userID)
}

func (s *AttemptService) shuffle(ids []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return shuffleIDs(s.rnd, ids)
}
