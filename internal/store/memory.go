package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jchoi-dev/account-service/internal/models"
)

// Memory is an in-process UserStore/ActivityStore used by tests and
// the local profile. It mirrors the Postgres implementation's
// semantics, including unique email/nickname constraints.
type Memory struct {
	mu         sync.RWMutex
	nextID     int64
	nextActID  int64
	users      map[int64]*models.User
	activities []models.Activity
}

var (
	_ UserStore     = (*Memory)(nil)
	_ ActivityStore = (*Memory)(nil)
)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		nextID:    1,
		nextActID: 1,
		users:     make(map[int64]*models.User),
	}
}

func (m *Memory) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrConflict
		}
		if u.Nickname != "" && existing.Nickname == u.Nickname {
			return ErrConflict
		}
	}

	now := time.Now()
	u.ID = m.nextID
	m.nextID++
	u.CreatedAt = now
	u.UpdatedAt = now

	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *Memory) FindByID(_ context.Context, id int64) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *Memory) FindByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ExistsByEmail(_ context.Context, email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) ExistsByNickname(_ context.Context, nickname string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Nickname == nickname {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) Update(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[u.ID]; !ok {
		return ErrNotFound
	}
	for id, existing := range m.users {
		if id == u.ID {
			continue
		}
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrConflict
		}
		if u.Nickname != "" && existing.Nickname == u.Nickname {
			return ErrConflict
		}
	}

	u.UpdatedAt = time.Now()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *Memory) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *Memory) Record(_ context.Context, a *models.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a.ID = m.nextActID
	m.nextActID++
	a.CreatedAt = time.Now()
	m.activities = append(m.activities, *a)
	return nil
}

func (m *Memory) ListByUser(_ context.Context, userID int64, limit int) ([]models.Activity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	var out []models.Activity
	for _, a := range m.activities {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
