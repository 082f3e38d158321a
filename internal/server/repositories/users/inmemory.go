package users

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/dmitrijs2005/bookauth/internal/common"
	"github.com/dmitrijs2005/bookauth/internal/server/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type memUser struct {
	user models.User
	hash []byte
}

// InMemoryRepository is a Repository kept in process memory.
type InMemoryRepository struct {
	mu      sync.RWMutex
	byID    map[string]*memUser
	byEmail map[string]string
	cost    int
}

// NewInMemoryRepository returns an empty store. cost is the bcrypt cost;
// zero means bcrypt.DefaultCost.
func NewInMemoryRepository(cost int) *InMemoryRepository {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &InMemoryRepository{
		byID:    make(map[string]*memUser),
		byEmail: make(map[string]string),
		cost:    cost,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *InMemoryRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[normalizeEmail(email)]
	if !ok {
		return models.User{}, common.ErrorNotFound
	}
	return models.User{ID: id, Email: r.byID[id].user.Email}, nil
}

func (r *InMemoryRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return models.User{}, common.ErrorNotFound
	}
	return models.User{ID: u.user.ID, Email: u.user.Email}, nil
}

func (r *InMemoryRepository) GetRoles(ctx context.Context, userID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[userID]
	if !ok {
		return nil, nil
	}
	roles := slices.Clone(u.user.Roles)
	slices.Sort(roles)
	return roles, nil
}

func (r *InMemoryRepository) Create(ctx context.Context, reg models.Registration, roles ...string) (models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), r.cost)
	if err != nil {
		return models.User{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	email := normalizeEmail(reg.Email)
	if _, ok := r.byEmail[email]; ok {
		return models.User{}, common.ErrAlreadyExists
	}
	u := models.User{ID: uuid.NewString(), Email: email, Roles: slices.Clone(roles)}
	r.byID[u.ID] = &memUser{user: u, hash: hash}
	r.byEmail[email] = u.ID
	return u, nil
}

func (r *InMemoryRepository) VerifyPassword(ctx context.Context, userID, password string) (bool, error) {
	r.mu.RLock()
	u, ok := r.byID[userID]
	r.mu.RUnlock()
	if !ok {
		return false, common.ErrorNotFound
	}
	return checkPassword(string(u.hash), password)
}
