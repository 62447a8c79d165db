package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"planet-quiz-service/internal/app"
	"planet-quiz-service/internal/domain"
)

// AttemptStore is the Postgres implementation of app.AttemptStore. Mutate
// takes a FOR UPDATE lock on the attempt row, so concurrent submissions
// against the same attempt serialize on the database and the whole submit
// path (detail insert, cursor increment, finalize, user XP) commits as one
// transaction.
type AttemptStore struct {
	db *bun.DB
}

func NewAttemptStore(db *bun.DB) *AttemptStore {
	return &AttemptStore{db: db}
}

func (s *AttemptStore) Create(ctx context.Context, attempt domain.Attempt) (domain.Attempt, error) {
	attempt.ID = uuid.NewString()
	row := attemptRowFrom(attempt)
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return domain.Attempt{}, fmt.Errorf("insert attempt: %w", err)
	}
	return attempt, nil
}

func (s *AttemptStore) Get(ctx context.Context, attemptID string) (domain.Attempt, error) {
	var row attemptRow
	err := s.db.NewSelect().Model(&row).Where("qa.id = ?", attemptID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("select attempt: %w", err)
	}
	return row.toDomain(), nil
}

func (s *AttemptStore) CompletedQuizIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := s.db.NewSelect().
		Model((*attemptRow)(nil)).
		ColumnExpr("DISTINCT quiz_id").
		Where("user_id = ?", userID).
		Where("finished_at IS NOT NULL").
		OrderExpr("quiz_id").
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("select completed quizzes: %w", err)
	}
	return ids, nil
}

func (s *AttemptStore) Mutate(ctx context.Context, attemptID string, fn func(ctx context.Context, tx app.AttemptTx) error) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var row attemptRow
		err := tx.NewSelect().Model(&row).Where("qa.id = ?", attemptID).For("UPDATE").Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrAttemptNotFound
		}
		if err != nil {
			return fmt.Errorf("lock attempt: %w", err)
		}
		return fn(ctx, &pgTx{tx: tx, attempt: row.toDomain()})
	})
}

// DeleteQuiz removes a quiz with its questions and options in one
// transaction. Quizzes that have been attempted are immutable and refuse
// deletion.
func (s *AttemptStore) DeleteQuiz(ctx context.Context, quizID string) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Table("quizzes").Where("id = ?", quizID).Exists(ctx)
		if err != nil {
			return fmt.Errorf("check quiz: %w", err)
		}
		if !exists {
			return domain.ErrQuizNotFound
		}

		attempts, err := tx.NewSelect().Model((*attemptRow)(nil)).Where("quiz_id = ?", quizID).Count(ctx)
		if err != nil {
			return fmt.Errorf("count attempts: %w", err)
		}
		if attempts > 0 {
			return domain.ErrQuizAttempted
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM question_options WHERE question_id IN (SELECT id FROM questions WHERE quiz_id = ?)`,
			quizID,
		); err != nil {
			return fmt.Errorf("delete options: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE quiz_id = ?`, quizID); err != nil {
			return fmt.Errorf("delete questions: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM quizzes WHERE id = ?`, quizID); err != nil {
			return fmt.Errorf("delete quiz: %w", err)
		}
		return nil
	})
}

// pgTx adapts a bun transaction to app.AttemptTx.
type pgTx struct {
	tx      bun.Tx
	attempt domain.Attempt
}

func (t *pgTx) Attempt() domain.Attempt {
	return t.attempt
}

func (t *pgTx) AppendDetail(ctx context.Context, detail domain.AttemptDetail) error {
	row := detailRow{
		ID:               uuid.NewString(),
		AttemptID:        detail.AttemptID,
		QuestionID:       detail.QuestionID,
		SelectedOptionID: detail.SelectedOptionID,
		IsCorrect:        detail.IsCorrect,
	}
	if _, err := t.tx.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("insert detail: %w", err)
	}
	return nil
}

func (t *pgTx) AdvanceIndex(ctx context.Context) (int, error) {
	var index int
	err := t.tx.QueryRowContext(ctx,
		`UPDATE quiz_attempts SET current_index = current_index + 1 WHERE id = ? RETURNING current_index`,
		t.attempt.ID,
	).Scan(&index)
	if err != nil {
		return 0, fmt.Errorf("advance index: %w", err)
	}
	t.attempt.CurrentIndex = index
	return index, nil
}

func (t *pgTx) Details(ctx context.Context) ([]domain.AttemptDetail, error) {
	var rows []detailRow
	err := t.tx.NewSelect().Model(&rows).Where("attempt_id = ?", t.attempt.ID).OrderExpr("created_at, id").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select details: %w", err)
	}
	details := make([]domain.AttemptDetail, 0, len(rows))
	for _, row := range rows {
		details = append(details, row.toDomain())
	}
	return details, nil
}

func (t *pgTx) CountOtherCompletions(ctx context.Context) (int, error) {
	count, err := t.tx.NewSelect().
		Model((*attemptRow)(nil)).
		Where("user_id = ?", t.attempt.UserID).
		Where("quiz_id = ?", t.attempt.QuizID).
		Where("finished_at IS NOT NULL").
		Where("qa.id != ?", t.attempt.ID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count completions: %w", err)
	}
	return count, nil
}

func (t *pgTx) Finalize(ctx context.Context, score float64, xpEarned int, finishedAt time.Time) error {
	_, err := t.tx.NewUpdate().
		Model((*attemptRow)(nil)).
		Set("score = ?", score).
		Set("xp_earned = ?", xpEarned).
		Set("finished_at = ?", finishedAt).
		Where("id = ?", t.attempt.ID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("finalize attempt: %w", err)
	}
	return nil
}

func (t *pgTx) GetUser(ctx context.Context, userID string) (domain.User, error) {
	var row userRow
	err := t.tx.NewSelect().Model(&row).Where("u.id = ?", userID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("select user: %w", err)
	}
	return domain.User{ID: row.ID, Username: row.Username, TotalXp: row.TotalXp, Level: row.Level}, nil
}

func (t *pgTx) UpdateUser(ctx context.Context, user domain.User) error {
	_, err := t.tx.NewUpdate().
		Model((*userRow)(nil)).
		Set("total_xp = ?", user.TotalXp).
		Set("level = ?", user.Level).
		Where("id = ?", user.ID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (t *pgTx) HighestLevelAtOrBelow(ctx context.Context, xp int) (domain.Level, bool, error) {
	var row levelRow
	err := t.tx.NewSelect().
		Model(&row).
		Where("min_xp <= ?", xp).
		OrderExpr("l.level DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Level{}, false, nil
	}
	if err != nil {
		return domain.Level{}, false, fmt.Errorf("select level: %w", err)
	}
	return domain.Level{Level: row.Level, MinXp: row.MinXp, RankName: row.RankName}, true, nil
}
