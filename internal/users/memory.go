package users

import (
	"context"
	"sync"
	"time"

	"github.com/tubeline/user-service/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryUserRepository is an in-process UserRepository used by tests and by
// local runs without MongoDB. It enforces the same unique username/email
// constraint as the Mongo indexes.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	store map[string]*models.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{store: make(map[string]*models.User)}
}

func clone(u *models.User) *models.User {
	cp := *u
	return &cp
}

func (m *MemoryUserRepository) FindByIdentifier(ctx context.Context, l Lookup) (*models.User, error) {
	if l.empty() {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.store {
		if (l.ID != "" && u.ID == l.ID) || (l.Username != "" && u.Username == l.Username) || (l.Email != "" && u.Email == l.Email) {
			return clone(u), nil
		}
	}
	return nil, nil
}

func (m *MemoryUserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.store[id]; ok {
		return clone(u), nil
	}
	return nil, nil
}

func (m *MemoryUserRepository) FindProfileByID(ctx context.Context, id string) (*models.User, error) {
	u, err := m.FindByID(ctx, id)
	if err != nil || u == nil {
		return u, err
	}
	return u.Public(), nil
}

func (m *MemoryUserRepository) taken(exceptID, username, email string) bool {
	for id, u := range m.store {
		if id == exceptID {
			continue
		}
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			return true
		}
	}
	return false
}

func (m *MemoryUserRepository) Create(ctx context.Context, u *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.taken("", u.Username, u.Email) {
		return nil, ErrDuplicate
	}
	stored := clone(u)
	stored.ID = primitive.NewObjectID().Hex()
	stored.RefreshToken = ""
	stored.CreatedAt = time.Now().UTC()
	stored.UpdatedAt = stored.CreatedAt
	m.store[stored.ID] = stored
	return clone(stored), nil
}

func (m *MemoryUserRepository) UpdateFields(ctx context.Context, id string, upd Update) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[id]
	if !ok {
		return nil, nil
	}
	if upd.Email != nil && m.taken(id, "", *upd.Email) {
		return nil, ErrDuplicate
	}
	assign := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	assign(&u.FullName, upd.FullName)
	assign(&u.Email, upd.Email)
	assign(&u.Password, upd.Password)
	assign(&u.Avatar, upd.Avatar)
	assign(&u.AvatarID, upd.AvatarID)
	assign(&u.CoverImage, upd.CoverImage)
	assign(&u.CoverImageID, upd.CoverImageID)
	u.UpdatedAt = time.Now().UTC()
	return clone(u), nil
}

func (m *MemoryUserRepository) RefreshToken(ctx context.Context, id string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.store[id]; ok {
		return u.RefreshToken, nil
	}
	return "", nil
}

func (m *MemoryUserRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[id]
	if !ok {
		return ErrNotFound
	}
	u.RefreshToken = token
	return nil
}

func (m *MemoryUserRepository) SwapRefreshToken(ctx context.Context, id, expected, next string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[id]
	if !ok || expected == "" || u.RefreshToken != expected {
		return false, nil
	}
	u.RefreshToken = next
	return true, nil
}

func (m *MemoryUserRepository) ClearRefreshToken(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.store[id]; ok {
		u.RefreshToken = ""
	}
	return nil
}
