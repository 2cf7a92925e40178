package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"habittracker/internal/model"
)

// MemoryStore 进程内存储，实现与 PostgreSQL 仓库相同的方法。
// 用于本地运行（storage.driver: memory）和测试，不写 outbox。
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[int]model.User
	habits     map[int]model.Habit
	nextUserID int
	nextID     int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  make(map[int]model.User),
		habits: make(map[int]model.Habit),
	}
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func (s *MemoryStore) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, taken := lo.FindKeyBy(s.users, func(_ int, existing model.User) bool {
		return strings.EqualFold(existing.Email, u.Email)
	})
	if taken {
		return ErrEmailTaken
	}

	s.nextUserID++
	u.ID = s.nextUserID
	u.CreatedAt = time.Now()
	s.users[u.ID] = *u
	return nil
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := lo.Find(lo.Values(s.users), func(u model.User) bool {
		return strings.EqualFold(u.Email, email)
	})
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *MemoryStore) FindByID(_ context.Context, id int) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *MemoryStore) List(_ context.Context, q HabitQuery) ([]model.Habit, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(q.Search)
	matched := lo.Filter(lo.Values(s.habits), func(h model.Habit, _ int) bool {
		if !q.Scope.Match(&h) {
			return false
		}
		return search == "" || strings.Contains(strings.ToLower(h.Action), search)
	})

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch q.OrderBy {
		case OrderByTime:
			if a.Time != b.Time {
				return a.Time < b.Time
			}
		case OrderByTimeDesc:
			if a.Time != b.Time {
				return a.Time > b.Time
			}
		}
		return a.ID < b.ID
	})

	total := len(matched)
	if q.Offset < 0 || q.Offset >= total {
		return []model.Habit{}, total, nil
	}
	page := matched[q.Offset:]
	if q.Limit > 0 && len(page) > q.Limit {
		page = page[:q.Limit]
	}
	return page, total, nil
}

func (s *MemoryStore) GetByID(_ context.Context, id int) (*model.Habit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.habits[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &h, nil
}

func (s *MemoryStore) Exists(_ context.Context, id int) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.habits[id]
	return ok, nil
}

func (s *MemoryStore) Create(_ context.Context, h *model.Habit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	now := time.Now()
	h.ID = s.nextID
	h.CreatedAt = now
	h.UpdatedAt = now
	s.habits[h.ID] = *h
	return nil
}

func (s *MemoryStore) Update(_ context.Context, h *model.Habit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.habits[h.ID]
	if !ok {
		return ErrNotFound
	}
	h.OwnerID = existing.OwnerID
	h.CreatedAt = existing.CreatedAt
	h.UpdatedAt = time.Now()
	s.habits[h.ID] = *h
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, h *model.Habit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.habits[h.ID]; !ok {
		return ErrNotFound
	}
	delete(s.habits, h.ID)

	// 与外键 ON DELETE SET NULL 保持一致
	for id, other := range s.habits {
		if other.RelatedHabitID != nil && *other.RelatedHabitID == h.ID {
			other.RelatedHabitID = nil
			s.habits[id] = other
		}
	}
	return nil
}

// Count 当前习惯总数
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.habits)
}
