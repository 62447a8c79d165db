package domain

import "time"

// Quiz carries the attempt-relevant metadata of a quiz. Content lives with
// its questions; the reward fields drive XP issuance on completion.
type Quiz struct {
	ID          string `json:"id"`
	PlanetID    string `json:"planetId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	RewardXp    int    `json:"rewardXp"`
	MinLevel    int    `json:"minLevel"`

	Questions []Question `json:"questions,omitempty"`
}

// Question belongs to exactly one quiz and owns its options.
type Question struct {
	ID       string   `json:"id"`
	QuizID   string   `json:"quizId"`
	Content  string   `json:"content"`
	MediaURL string   `json:"mediaUrl,omitempty"`
	Options  []Option `json:"options,omitempty"`
}

// Option is a candidate answer. Exactly one option per question should be
// marked correct; this is not structurally enforced.
type Option struct {
	ID         string `json:"id"`
	QuestionID string `json:"questionId"`
	Content    string `json:"content"`
	Correct    bool   `json:"correct"`
}

// Attempt is one user's run through a quiz. QuestionsOrder is fixed at start
// and defines the only valid submission order; CurrentIndex advances by
// exactly one per accepted answer and never decreases.
type Attempt struct {
	ID             string     `json:"id"`
	UserID         string     `json:"userId"`
	QuizID         string     `json:"quizId"`
	QuestionsOrder []string   `json:"questionsOrder"`
	CurrentIndex   int        `json:"currentIndex"`
	Score          float64    `json:"score"`
	XpEarned       int        `json:"xpEarned"`
	StartedAt      time.Time  `json:"startedAt"`
	FinishedAt     *time.Time `json:"finishedAt,omitempty"`
}

// Finished reports whether the attempt has reached the end of its order.
func (a Attempt) Finished() bool {
	return a.FinishedAt != nil
}

// AttemptDetail snapshots one answered question. Append-only: correctness is
// captured at submission time and never recomputed.
type AttemptDetail struct {
	ID               string `json:"id"`
	AttemptID        string `json:"attemptId"`
	QuestionID       string `json:"questionId"`
	SelectedOptionID string `json:"selectedOptionId"`
	IsCorrect        bool   `json:"isCorrect"`
}

// User holds the reward-facing slice of a user record. TotalXp and Level only
// ever increase through the attempt path.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	TotalXp  int    `json:"totalXp"`
	Level    int    `json:"level"`
}

// Level maps a minimum XP threshold to a level number.
type Level struct {
	Level    int    `json:"level"`
	MinXp    int    `json:"minXp"`
	RankName string `json:"rankName,omitempty"`
}

// AnswerResult is the outcome of a single submission. Score and XpEarned are
// only meaningful when IsFinished is true.
type AnswerResult struct {
	IsCorrect    bool     `json:"isCorrect"`
	CurrentIndex int      `json:"currentIndex"`
	IsFinished   bool     `json:"isFinished"`
	Score        *float64 `json:"score,omitempty"`
	XpEarned     *int     `json:"xpEarned,omitempty"`
}
