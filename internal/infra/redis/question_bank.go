package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"planet-quiz-service/internal/domain"
)

// BankLoader fetches quiz content from a backing store (e.g., Postgres).
type BankLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	LoadOption(ctx context.Context, optionID string) (domain.Option, error)
}

// QuestionBank caches quiz content in Redis and falls back to a loader on
// cache miss. Layout:
//
//	SET  quiz:{quizID}:qids    JSON array of question IDs (fixed order)
//	HSET quiz:{quizID}:meta    rewardXp / minLevel / title
//	SET  option:{optionID}     "1" or "0" correctness flag
type QuestionBank struct {
	client *redis.Client
	loader BankLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionBank(client *redis.Client, loader BankLoader, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *QuestionBank) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	meta, err := b.client.HGetAll(ctx, b.metaKey(quizID)).Result()
	if err == nil && len(meta) > 0 {
		return quizFromMeta(quizID, meta), nil
	}

	quiz, err := b.fill(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	// Questions are not returned in this cached form; callers use
	// ListQuestionIDs and GetOption for content access.
	quiz.Questions = nil
	return quiz, nil
}

func (b *QuestionBank) ListQuestionIDs(ctx context.Context, quizID string) ([]string, error) {
	raw, err := b.client.Get(ctx, b.qidsKey(quizID)).Result()
	if err == nil && raw != "" {
		var ids []string
		if err := json.Unmarshal([]byte(raw), &ids); err == nil {
			return ids, nil
		}
	}

	quiz, err := b.fill(ctx, quizID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(quiz.Questions))
	for _, q := range quiz.Questions {
		ids = append(ids, q.ID)
	}
	return ids, nil
}

func (b *QuestionBank) CountQuestions(ctx context.Context, quizID string) (int, error) {
	ids, err := b.ListQuestionIDs(ctx, quizID)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (b *QuestionBank) GetOption(ctx context.Context, optionID string) (domain.Option, error) {
	raw, err := b.client.Get(ctx, b.optionKey(optionID)).Result()
	if err == nil && raw != "" {
		return domain.Option{ID: optionID, Correct: raw == "1"}, nil
	}

	result, err, _ := b.sf.Do("option:"+optionID, func() (interface{}, error) {
		option, err := b.loader.LoadOption(ctx, optionID)
		if err != nil {
			return domain.Option{}, err
		}
		_ = b.client.Set(ctx, b.optionKey(optionID), flag(option.Correct), b.ttlWithJitter()).Err()
		return option, nil
	})
	if err != nil {
		return domain.Option{}, err
	}
	return result.(domain.Option), nil
}

// fill loads the quiz from the backing store and primes all of its cache
// keys in one pipeline. Concurrent misses for the same quiz collapse into a
// single load.
func (b *QuestionBank) fill(ctx context.Context, quizID string) (domain.Quiz, error) {
	result, err, _ := b.sf.Do("quiz:"+quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		raw, err := b.client.Get(ctx, b.qidsKey(quizID)).Result()
		if err == nil && raw != "" {
			meta, _ := b.client.HGetAll(ctx, b.metaKey(quizID)).Result()
			var ids []string
			if err := json.Unmarshal([]byte(raw), &ids); err == nil {
				return quizWithIDs(quizFromMeta(quizID, meta), ids), nil
			}
		}

		quiz, err := b.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}

		ids := make([]string, 0, len(quiz.Questions))
		for _, q := range quiz.Questions {
			ids = append(ids, q.ID)
		}
		encoded, err := json.Marshal(ids)
		if err != nil {
			return domain.Quiz{}, err
		}

		ttl := b.ttlWithJitter()
		pipe := b.client.Pipeline()
		pipe.Set(ctx, b.qidsKey(quizID), encoded, ttl)
		pipe.HSet(ctx, b.metaKey(quizID),
			"rewardXp", quiz.RewardXp,
			"minLevel", quiz.MinLevel,
			"title", quiz.Title,
		)
		for _, q := range quiz.Questions {
			for _, opt := range q.Options {
				pipe.Set(ctx, b.optionKey(opt.ID), flag(opt.Correct), ttl)
			}
		}
		if ttl > 0 {
			pipe.Expire(ctx, b.metaKey(quizID), ttl)
		}
		_, _ = pipe.Exec(ctx)

		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (b *QuestionBank) qidsKey(quizID string) string {
	return "quiz:" + quizID + ":qids"
}

func (b *QuestionBank) metaKey(quizID string) string {
	return "quiz:" + quizID + ":meta"
}

func (b *QuestionBank) optionKey(optionID string) string {
	return "option:" + optionID
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}

func quizFromMeta(quizID string, meta map[string]string) domain.Quiz {
	quiz := domain.Quiz{ID: quizID, Title: meta["title"]}
	quiz.RewardXp = atoi(meta["rewardXp"])
	quiz.MinLevel = atoi(meta["minLevel"])
	return quiz
}

func quizWithIDs(quiz domain.Quiz, ids []string) domain.Quiz {
	questions := make([]domain.Question, 0, len(ids))
	for _, id := range ids {
		questions = append(questions, domain.Question{ID: id, QuizID: quiz.ID})
	}
	quiz.Questions = questions
	return quiz
}

func flag(correct bool) string {
	if correct {
		return "1"
	}
	return "0"
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
