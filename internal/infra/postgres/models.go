package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"planet-quiz-service/internal/domain"
)

type attemptRow struct {
	bun.BaseModel `bun:"table:quiz_attempts,alias:qa"`

	ID             string     `bun:"id,pk"`
	UserID         string     `bun:"user_id"`
	QuizID         string     `bun:"quiz_id"`
	QuestionsOrder []string   `bun:"questions_order,array"`
	CurrentIndex   int        `bun:"current_index"`
	Score          float64    `bun:"score"`
	XpEarned       int        `bun:"xp_earned"`
	StartedAt      time.Time  `bun:"started_at"`
	FinishedAt     *time.Time `bun:"finished_at"`
}

func (r attemptRow) toDomain() domain.Attempt {
	return domain.Attempt{
		ID:             r.ID,
		UserID:         r.UserID,
		QuizID:         r.QuizID,
		QuestionsOrder: r.QuestionsOrder,
		CurrentIndex:   r.CurrentIndex,
		Score:          r.Score,
		XpEarned:       r.XpEarned,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
	}
}

func attemptRowFrom(a domain.Attempt) attemptRow {
	return attemptRow{
		ID:             a.ID,
		UserID:         a.UserID,
		QuizID:         a.QuizID,
		QuestionsOrder: a.QuestionsOrder,
		CurrentIndex:   a.CurrentIndex,
		Score:          a.Score,
		XpEarned:       a.XpEarned,
		StartedAt:      a.StartedAt,
		FinishedAt:     a.FinishedAt,
	}
}

type detailRow struct {
	bun.BaseModel `bun:"table:attempt_details,alias:ad"`

	ID               string    `bun:"id,pk"`
	AttemptID        string    `bun:"attempt_id"`
	QuestionID       string    `bun:"question_id"`
	SelectedOptionID string    `bun:"selected_option_id"`
	IsCorrect        bool      `bun:"is_correct"`
	CreatedAt        time.Time `bun:"created_at,nullzero,default:now()"`
}

func (r detailRow) toDomain() domain.AttemptDetail {
	return domain.AttemptDetail{
		ID:               r.ID,
		AttemptID:        r.AttemptID,
		QuestionID:       r.QuestionID,
		SelectedOptionID: r.SelectedOptionID,
		IsCorrect:        r.IsCorrect,
	}
}

type userRow struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID       string `bun:"id,pk"`
	Username string `bun:"username"`
	TotalXp  int    `bun:"total_xp"`
	Level    int    `bun:"level"`
}

type levelRow struct {
	bun.BaseModel `bun:"table:levels,alias:l"`

	Level    int    `bun:"level,pk"`
	MinXp    int    `bun:"min_xp"`
	RankName string `bun:"rank_name"`
}
