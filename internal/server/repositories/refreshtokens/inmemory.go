package refreshtokens

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/bookauth/internal/common"
	"github.com/dmitrijs2005/bookauth/internal/server/models"
)

// InMemoryRepository keeps records in maps guarded by a mutex. The lock is
// held for each whole operation, which makes Retire a true compare-and-set.
type InMemoryRepository struct {
	mu      sync.Mutex
	byID    map[string]*models.RefreshToken
	byToken map[string]string
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		byID:    make(map[string]*models.RefreshToken),
		byToken: make(map[string]string),
	}
}

func (r *InMemoryRepository) Add(ctx context.Context, t *models.RefreshToken) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byToken[t.Token]; ok {
		return common.ErrConflict
	}
	if _, ok := r.byID[t.ID]; ok {
		return common.ErrConflict
	}
	cp := *t
	r.byID[t.ID] = &cp
	r.byToken[t.Token] = t.ID
	return nil
}

func (r *InMemoryRepository) GetByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byToken[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *r.byID[id]
	return &cp, nil
}

func (r *InMemoryRepository) Update(ctx context.Context, t *models.RefreshToken) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[t.ID]
	if !ok {
		return common.ErrorNotFound
	}
	stored.IsUsed = stored.IsUsed || t.IsUsed
	stored.IsRevoked = stored.IsRevoked || t.IsRevoked
	return nil
}

func (r *InMemoryRepository) Retire(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[id]
	if !ok || !stored.Redeemable() {
		return common.ErrConflict
	}
	stored.IsUsed = true
	stored.IsRevoked = true
	return nil
}

func (r *InMemoryRepository) Revoke(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[id]
	if !ok || stored.IsRevoked {
		return common.ErrConflict
	}
	stored.IsRevoked = true
	return nil
}

func (r *InMemoryRepository) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, t := range r.byID {
		if t.UserID == userID && !t.IsRevoked {
			t.IsRevoked = true
			n++
		}
	}
	return n, nil
}
