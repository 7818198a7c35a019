package memory

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/jbergloda1/swha-backend/domain/entities"
	"github.com/jbergloda1/swha-backend/domain/repositories"
)

// UserRepository is an in-memory implementation of repositories.UserRepository.
// Records are copied on the way in and out so callers never share state.
type UserRepository struct {
	mu        sync.RWMutex
	users     map[string]*entities.User // id -> user
	usernames map[string]string         // username -> id
	emails    map[string]string         // email -> id
}

var _ repositories.UserRepository = (*UserRepository)(nil)

// NewUserRepository creates an empty in-memory user repository
func NewUserRepository() *UserRepository {
	return &UserRepository{
		users:     make(map[string]*entities.User),
		usernames: make(map[string]string),
		emails:    make(map[string]string),
	}
}

func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	if user == nil || user.ID == "" {
		return errors.New("user ID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[user.ID]; exists {
		return repositories.ErrDuplicate
	}
	if _, taken := r.usernames[user.Username]; taken {
		return repositories.ErrDuplicate
	}
	if _, taken := r.emails[strings.ToLower(user.Email)]; taken {
		return repositories.ErrDuplicate
	}

	stored := *user
	r.users[user.ID] = &stored
	r.usernames[user.Username] = user.ID
	r.emails[strings.ToLower(user.Email)] = user.ID
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*entities.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(id)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*entities.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(r.usernames[username])
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(r.emails[strings.ToLower(email)])
}

func (r *UserRepository) Update(ctx context.Context, user *entities.User) error {
	if user == nil || user.ID == "" {
		return errors.New("user ID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.users[user.ID]
	if !ok {
		return repositories.ErrNotFound
	}

	email := strings.ToLower(user.Email)
	if owner, taken := r.usernames[user.Username]; taken && owner != user.ID {
		return repositories.ErrDuplicate
	}
	if owner, taken := r.emails[email]; taken && owner != user.ID {
		return repositories.ErrDuplicate
	}

	delete(r.usernames, existing.Username)
	delete(r.emails, strings.ToLower(existing.Email))

	stored := *user
	r.users[user.ID] = &stored
	r.usernames[user.Username] = user.ID
	r.emails[email] = user.ID
	return nil
}

// lookup must be called with the lock held
func (r *UserRepository) lookup(id string) (*entities.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *user
	return &copied, nil
}
