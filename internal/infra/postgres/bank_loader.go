package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"planet-quiz-service/internal/domain"
)

// BankLoader reads quiz content from Postgres. It backs the cached question
// banks; the attempt store never writes through it.
type BankLoader struct {
	pool *pgxpool.Pool
}

func NewBankLoader(pool *pgxpool.Pool) *BankLoader {
	return &BankLoader{pool: pool}
}

func (l *BankLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var quiz domain.Quiz
	err := l.pool.QueryRow(ctx,
		`SELECT id, planet_id, title, description, reward_xp, min_level FROM quizzes WHERE id=$1`,
		quizID,
	).Scan(&quiz.ID, &quiz.PlanetID, &quiz.Title, &quiz.Description, &quiz.RewardXp, &quiz.MinLevel)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}

	questions, err := l.loadQuestions(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	quiz.Questions = questions
	return quiz, nil
}

func (l *BankLoader) loadQuestions(ctx context.Context, quizID string) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT id, quiz_id, content, COALESCE(media_url, '') FROM questions WHERE quiz_id=$1 ORDER BY id`,
		quizID,
	)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	index := make(map[string]int)
	for rows.Next() {
		var q domain.Question
		if err := rows.Scan(&q.ID, &q.QuizID, &q.Content, &q.MediaURL); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		index[q.ID] = len(questions)
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}

	optRows, err := l.pool.Query(ctx,
		`SELECT o.id, o.question_id, o.content, o.is_correct
		 FROM question_options o
		 JOIN questions q ON q.id = o.question_id
		 WHERE q.quiz_id=$1 ORDER BY o.id`,
		quizID,
	)
	if err != nil {
		return nil, fmt.Errorf("load options: %w", err)
	}
	defer optRows.Close()

	for optRows.Next() {
		var opt domain.Option
		if err := optRows.Scan(&opt.ID, &opt.QuestionID, &opt.Content, &opt.Correct); err != nil {
			return nil, fmt.Errorf("scan option: %w", err)
		}
		if i, ok := index[opt.QuestionID]; ok {
			questions[i].Options = append(questions[i].Options, opt)
		}
	}
	if err := optRows.Err(); err != nil {
		return nil, fmt.Errorf("load options: %w", err)
	}
	return questions, nil
}

func (l *BankLoader) LoadOption(ctx context.Context, optionID string) (domain.Option, error) {
	var opt domain.Option
	err := l.pool.QueryRow(ctx,
		`SELECT id, question_id, content, is_correct FROM question_options WHERE id=$1`,
		optionID,
	).Scan(&opt.ID, &opt.QuestionID, &opt.Content, &opt.Correct)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Option{}, domain.ErrOptionNotFound
	}
	if err != nil {
		return domain.Option{}, fmt.Errorf("load option: %w", err)
	}
	return opt, nil
}
