package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/bookauth/internal/common"
	"github.com/dmitrijs2005/bookauth/internal/dbx"
	"github.com/dmitrijs2005/bookauth/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Add(ctx context.Context, t *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, jwt_id, user_id, token, is_used, is_revoked, issued_at, expired_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := r.db.ExecContext(ctx, query,
		t.ID, t.JwtID, t.UserID, t.Token, t.IsUsed, t.IsRevoked, t.IssuedAt, t.ExpiredAt); err != nil {
		return dbx.Wrap("insert refresh token", err)
	}
	return nil
}

func (r *PostgresRepository) GetByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	query := `
		SELECT id, jwt_id, user_id, token, is_used, is_revoked, issued_at, expired_at
		FROM refresh_tokens
		WHERE token = $1
	`
	t := &models.RefreshToken{}
	if err := r.db.QueryRowContext(ctx, query, token).Scan(
		&t.ID, &t.JwtID, &t.UserID, &t.Token, &t.IsUsed, &t.IsRevoked, &t.IssuedAt, &t.ExpiredAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, dbx.Wrap("select refresh token", err)
	}
	return t, nil
}

func (r *PostgresRepository) Update(ctx context.Context, t *models.RefreshToken) error {
	query := `
		UPDATE refresh_tokens
		SET is_used = is_used OR $2, is_revoked = is_revoked OR $3
		WHERE id = $1
	`
	n, err := r.exec(ctx, "update refresh token", query, t.ID, t.IsUsed, t.IsRevoked)
	if err != nil {
		return err
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) Retire(ctx context.Context, id string) error {
	query := `
		UPDATE refresh_tokens
		SET is_used = TRUE, is_revoked = TRUE
		WHERE id = $1 AND is_used = FALSE AND is_revoked = FALSE
	`
	return r.compareAndSet(ctx, "retire refresh token", query, id)
}

func (r *PostgresRepository) Revoke(ctx context.Context, id string) error {
	query := `
		UPDATE refresh_tokens
		SET is_revoked = TRUE
		WHERE id = $1 AND is_revoked = FALSE
	`
	return r.compareAndSet(ctx, "revoke refresh token", query, id)
}

func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET is_revoked = TRUE
		WHERE user_id = $1 AND is_revoked = FALSE
	`
	return r.exec(ctx, "revoke user refresh tokens", query, userID)
}

func (r *PostgresRepository) compareAndSet(ctx context.Context, op, query, id string) error {
	n, err := r.exec(ctx, op, query, id)
	if err != nil {
		return err
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrConflict
	default:
		return fmt.Errorf("%s: unexpected rows affected: %d", op, n)
	}
}

func (r *PostgresRepository) exec(ctx context.Context, op, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, dbx.Wrap(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: rows affected error: %w", op, err)
	}
	return n, nil
}
