package state

import (
	"context"
	"sync"
	"time"

	"github.com/yungbote/neurobridge-adaptive/internal/modules/learning/bandit"
)

type memoryStore struct {
	mu     sync.Mutex
	states map[string]bandit.State
	now    func() time.Time
}

// NewMemoryStore keeps bandit state in process. Updates for all keys are
// serialized by one mutex.
func NewMemoryStore() bandit.Store {
	return &memoryStore{states: map[string]bandit.State{}, now: time.Now}
}

func (s *memoryStore) Get(ctx context.Context, key string) (bandit.State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[key]
	if !ok {
		return bandit.State{}, false, nil
	}
	return st.Clone(), true, nil
}

func (s *memoryStore) Update(ctx context.Context, key string, fn func(*bandit.State) error) (bandit.State, error) {
	if err := ctx.Err(); err != nil {
		return bandit.State{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.states[key].Clone()
	if err := fn(&st); err != nil {
		return bandit.State{}, err
	}
	st.UpdatedAt = s.now()
	s.states[key] = st
	return st.Clone(), nil
}

func (s *memoryStore) Reset(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, key)
	return nil
}
