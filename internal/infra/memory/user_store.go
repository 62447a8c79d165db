package memory

import (
	"sync"

	"planet-quiz-service/internal/domain"
)

// UserStore keeps users and the level threshold table in memory.
type UserStore struct {
	mu     sync.RWMutex
	users  map[string]domain.User
	levels []domain.Level
}

func NewUserStore(levels []domain.Level) *UserStore {
	return &UserStore{
		users:  make(map[string]domain.User),
		levels: levels,
	}
}

func (s *UserStore) Put(user domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
}

func (s *UserStore) Get(userID string) (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	return user, ok
}

// HighestLevelAtOrBelow returns the highest-numbered level whose minXp does
// not exceed xp. Ties on minXp resolve to the larger level number.
func (s *UserStore) HighestLevelAtOrBelow(xp int) (domain.Level, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best domain.Level
	found := false
	for _, level := range s.levels {
		if level.MinXp > xp {
			continue
		}
		if !found || level.Level > best.Level {
			best = level
			found = true
		}
	}
	return best, found
}
