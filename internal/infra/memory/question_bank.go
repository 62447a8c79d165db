package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"planet-quiz-service/internal/domain"
)

// BankLoader fetches quiz content from a backing store (e.g., Postgres).
// LoadQuiz returns the quiz with its questions and options attached.
type BankLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	LoadOption(ctx context.Context, optionID string) (domain.Option, error)
}

// QuestionBank caches quiz content with TTL to avoid repeated DB hits.
// Option lookups are cached separately since submissions arrive with an
// option ID only.
type QuestionBank struct {
	loader BankLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu      sync.RWMutex
	quizzes map[string]cachedQuiz
	options map[string]cachedOption
}

type cachedQuiz struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

type cachedOption struct {
	option    domain.Option
	expiresAt time.Time
}

func NewQuestionBank(loader BankLoader, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		loader:  loader,
		ttl:     ttl,
		clock:   time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		quizzes: make(map[string]cachedQuiz),
		options: make(map[string]cachedOption),
	}
}

func (b *QuestionBank) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	return b.getQuiz(ctx, quizID)
}

func (b *QuestionBank) ListQuestionIDs(ctx context.Context, quizID string) ([]string, error) {
	quiz, err := b.getQuiz(ctx, quizID)
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
	quiz, err := b.getQuiz(ctx, quizID)
	if err != nil {
		return 0, err
	}
	return len(quiz.Questions), nil
}

func (b *QuestionBank) GetOption(ctx context.Context, optionID string) (domain.Option, error) {
	now := b.clock()

	b.mu.RLock()
	if entry, ok := b.options[optionID]; ok && entry.expiresAt.After(now) {
		b.mu.RUnlock()
		return entry.option, nil
	}
	b.mu.RUnlock()

	result, err, _ := b.sf.Do("option:"+optionID, func() (interface{}, error) {
		option, err := b.loader.LoadOption(ctx, optionID)
		if err != nil {
			return domain.Option{}, err
		}
		b.mu.Lock()
		b.options[optionID] = cachedOption{option: option, expiresAt: b.clock().Add(b.ttlWithJitter())}
		b.mu.Unlock()
		return option, nil
	})
	if err != nil {
		return domain.Option{}, err
	}
	return result.(domain.Option), nil
}

func (b *QuestionBank) getQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	now := b.clock()

	b.mu.RLock()
	if entry, ok := b.quizzes[quizID]; ok && entry.expiresAt.After(now) {
		b.mu.RUnlock()
		return entry.quiz, nil
	}
	b.mu.RUnlock()

	result, err, _ := b.sf.Do("quiz:"+quizID, func() (interface{}, error) {
		now := b.clock()
		b.mu.RLock()
		if entry, ok := b.quizzes[quizID]; ok && entry.expiresAt.After(now) {
			b.mu.RUnlock()
			return entry.quiz, nil
		}
		b.mu.RUnlock()

		quiz, err := b.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}

		b.mu.Lock()
		expires := now.Add(b.ttlWithJitter())
		b.quizzes[quizID] = cachedQuiz{quiz: quiz, expiresAt: expires}
		// Options ride along with the quiz load.
		for _, q := range quiz.Questions {
			for _, opt := range q.Options {
				b.options[opt.ID] = cachedOption{option: opt, expiresAt: expires}
			}
		}
		b.mu.Unlock()
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}

// StaticBankLoader is a loader backed by an in-memory map (tests/demos).
type StaticBankLoader struct {
	mu      sync.RWMutex
	quizzes map[string]domain.Quiz
}

func NewStaticBankLoader(quizzes map[string]domain.Quiz) *StaticBankLoader {
	return &StaticBankLoader{quizzes: quizzes}
}

func (l *StaticBankLoader) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if quiz, ok := l.quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

func (l *StaticBankLoader) LoadOption(_ context.Context, optionID string) (domain.Option, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, quiz := range l.quizzes {
		for _, q := range quiz.Questions {
			for _, opt := range q.Options {
				if opt.ID == optionID {
					return opt, nil
				}
			}
		}
	}
	return domain.Option{}, domain.ErrOptionNotFound
}

// SetOptionCorrect flips an option's correctness flag in place. Tests use it
// to verify recorded answers keep their snapshot.
func (l *StaticBankLoader) SetOptionCorrect(optionID string, correct bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for quizID, quiz := range l.quizzes {
		for qi := range quiz.Questions {
			for oi := range quiz.Questions[qi].Options {
				if quiz.Questions[qi].Options[oi].ID == optionID {
					quiz.Questions[qi].Options[oi].Correct = correct
					l.quizzes[quizID] = quiz
					return
				}
			}
		}
	}
}
