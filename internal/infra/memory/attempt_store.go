package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"planet-quiz-service/internal/app"
	"planet-quiz-service/internal/domain"
)

// AttemptStore is an in-memory implementation of app.AttemptStore. Mutations
// run under a per-attempt mutex and are staged on copies, so a failing
// transaction leaves the attempt, its details and the user untouched.
type AttemptStore struct {
	users *UserStore

	mu       sync.RWMutex
	attempts map[string]domain.Attempt
	details  map[string][]domain.AttemptDetail
	locks    map[string]*sync.Mutex
}

func NewAttemptStore(users *UserStore) *AttemptStore {
	return &AttemptStore{
		users:    users,
		attempts: make(map[string]domain.Attempt),
		details:  make(map[string][]domain.AttemptDetail),
		locks:    make(map[string]*sync.Mutex),
	}
}

func (s *AttemptStore) Create(_ context.Context, attempt domain.Attempt) (domain.Attempt, error) {
	attempt.ID = uuid.NewString()
	attempt.QuestionsOrder = append([]string(nil), attempt.QuestionsOrder...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[attempt.ID] = attempt
	s.locks[attempt.ID] = &sync.Mutex{}
	return attempt, nil
}

func (s *AttemptStore) Get(_ context.Context, attemptID string) (domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.attempts[attemptID]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return attempt, nil
}

// Details returns the recorded answers for an attempt in submission order.
func (s *AttemptStore) Details(_ context.Context, attemptID string) ([]domain.AttemptDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.attempts[attemptID]; !ok {
		return nil, domain.ErrAttemptNotFound
	}
	return append([]domain.AttemptDetail(nil), s.details[attemptID]...), nil
}

func (s *AttemptStore) CompletedQuizIDs(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, attempt := range s.attempts {
		if attempt.UserID != userID || !attempt.Finished() {
			continue
		}
		if _, ok := seen[attempt.QuizID]; ok {
			continue
		}
		seen[attempt.QuizID] = struct{}{}
		ids = append(ids, attempt.QuizID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *AttemptStore) Mutate(ctx context.Context, attemptID string, fn func(ctx context.Context, tx app.AttemptTx) error) error {
	s.mu.RLock()
	lock, ok := s.locks[attemptID]
	s.mu.RUnlock()
	if !ok {
		return domain.ErrAttemptNotFound
	}

	// Serializes concurrent submissions against the same attempt.
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	attempt := s.attempts[attemptID]
	s.mu.RUnlock()

	tx := &memTx{store: s, attempt: attempt}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[attemptID] = tx.attempt
	for i := range tx.newDetails {
		tx.newDetails[i].ID = uuid.NewString()
	}
	s.details[attemptID] = append(s.details[attemptID], tx.newDetails...)
	if tx.user != nil {
		s.users.Put(*tx.user)
	}
	return nil
}

// memTx stages mutations against copies until Mutate commits them.
type memTx struct {
	store      *AttemptStore
	attempt    domain.Attempt
	newDetails []domain.AttemptDetail
	user       *domain.User
}

func (t *memTx) Attempt() domain.Attempt {
	return t.attempt
}

func (t *memTx) AppendDetail(_ context.Context, detail domain.AttemptDetail) error {
	t.newDetails = append(t.newDetails, detail)
	return nil
}

func (t *memTx) AdvanceIndex(_ context.Context) (int, error) {
	t.attempt.CurrentIndex++
	return t.attempt.CurrentIndex, nil
}

func (t *memTx) Details(_ context.Context) ([]domain.AttemptDetail, error) {
	t.store.mu.RLock()
	committed := append([]domain.AttemptDetail(nil), t.store.details[t.attempt.ID]...)
	t.store.mu.RUnlock()
	return append(committed, t.newDetails...), nil
}

func (t *memTx) CountOtherCompletions(_ context.Context) (int, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	count := 0
	for _, other := range t.store.attempts {
		if other.ID == t.attempt.ID {
			continue
		}
		if other.UserID == t.attempt.UserID && other.QuizID == t.attempt.QuizID && other.Finished() {
			count++
		}
	}
	return count, nil
}

func (t *memTx) Finalize(_ context.Context, score float64, xpEarned int, finishedAt time.Time) error {
	t.attempt.Score = score
	t.attempt.XpEarned = xpEarned
	t.attempt.FinishedAt = &finishedAt
	return nil
}

func (t *memTx) GetUser(_ context.Context, userID string) (domain.User, error) {
	if t.user != nil && t.user.ID == userID {
		return *t.user, nil
	}
	user, ok := t.store.users.Get(userID)
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

func (t *memTx) UpdateUser(_ context.Context, user domain.User) error {
	t.user = &user
	return nil
}

func (t *memTx) HighestLevelAtOrBelow(_ context.Context, xp int) (domain.Level, bool, error) {
	level, ok := t.store.users.HighestLevelAtOrBelow(xp)
	return level, ok, nil
}
