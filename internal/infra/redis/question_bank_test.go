package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"planet-quiz-service/internal/domain"
	"planet-quiz-service/internal/infra/memory"
)

func TestQuestionBankCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	loader := &countingLoader{
		BankLoader: memory.NewStaticBankLoader(map[string]domain.Quiz{
			"quiz-1": sampleQuiz(),
		}),
	}
	bank := NewQuestionBank(client, loader, time.Minute)

	ids, err := bank.ListQuestionIDs(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("list question ids: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %v", ids)
	}
	if loader.quizCalls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.quizCalls)
	}
	if !mr.Exists("quiz:quiz-1:qids") || !mr.Exists("quiz:quiz-1:meta") {
		t.Fatalf("expected quiz keys primed in redis")
	}

	// Second call should hit cache, loader not incremented.
	if _, err := bank.ListQuestionIDs(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("cached list: %v", err)
	}
	if n, _ := bank.CountQuestions(context.Background(), "quiz-1"); n != 2 {
		t.Fatalf("expected count 2, got %d", n)
	}
	if loader.quizCalls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.quizCalls)
	}
}

func TestQuestionBankServesMetaAndOptions(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	loader := &countingLoader{
		BankLoader: memory.NewStaticBankLoader(map[string]domain.Quiz{
			"quiz-1": sampleQuiz(),
		}),
	}
	bank := NewQuestionBank(client, loader, time.Minute)

	quiz, err := bank.GetQuiz(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if quiz.RewardXp != 50 || quiz.MinLevel != 1 {
		t.Fatalf("unexpected quiz meta: %+v", quiz)
	}

	// Options were primed by the quiz fill; no loader call needed.
	option, err := bank.GetOption(context.Background(), "o1")
	if err != nil {
		t.Fatalf("get option: %v", err)
	}
	if !option.Correct {
		t.Fatalf("expected o1 correct, got %+v", option)
	}
	if loader.optionCalls != 0 {
		t.Fatalf("expected option from cache, loader calls=%d", loader.optionCalls)
	}

	// Unknown entities fall through to the loader's NotFound.
	if _, err := bank.GetQuiz(context.Background(), "missing"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
	if _, err := bank.GetOption(context.Background(), "missing"); !errors.Is(err, domain.ErrOptionNotFound) {
		t.Fatalf("expected option not found, got %v", err)
	}
}

type countingLoader struct {
	BankLoader
	quizCalls   int
	optionCalls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	l.quizCalls++
	return l.BankLoader.LoadQuiz(ctx, quizID)
}

func (l *countingLoader) LoadOption(ctx context.Context, optionID string) (domain.Option, error) {
	l.optionCalls++
	return l.BankLoader.LoadOption(ctx, optionID)
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:       "quiz-1",
		Title:    "Saturn basics",
		RewardXp: 50,
		MinLevel: 1,
		Questions: []domain.Question{
			{
				ID:      "q1",
				QuizID:  "quiz-1",
				Content: "What are Saturn's rings mostly made of?",
				Options: []domain.Option{
					{ID: "o1", QuestionID: "q1", Content: "Ice", Correct: true},
					{ID: "o2", QuestionID: "q1", Content: "Rock", Correct: false},
				},
			},
			{
				ID:      "q2",
				QuizID:  "quiz-1",
				Content: "Which moon of Saturn has a dense atmosphere?",
				Options: []domain.Option{
					{ID: "o3", QuestionID: "q2", Content: "Titan", Correct: true},
					{ID: "o4", QuestionID: "q2", Content: "Rhea", Correct: false},
				},
			},
		},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
