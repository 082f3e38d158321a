package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/bookauth/internal/common"
	"github.com/dmitrijs2005/bookauth/internal/dbx"
	"github.com/dmitrijs2005/bookauth/internal/server/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type userRow struct {
	ID           string `gorm:"primaryKey"`
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	CreatedAt    time.Time
}

func (userRow) TableName() string { return "users" }

func (u userRow) toModel() models.User {
	return models.User{ID: u.ID, Email: u.Email}
}

// PostgresRepository implements Repository with gorm over a dbx.DBTX, so it
// joins whatever transaction the handle belongs to.
type PostgresRepository struct {
	db      *gorm.DB
	openErr error
	cost    int
}

// NewPostgresRepository binds a gorm session to db. cost is the bcrypt
// cost; zero means bcrypt.DefaultCost.
func NewPostgresRepository(db dbx.DBTX, cost int) *PostgresRepository {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	return &PostgresRepository{db: gdb, openErr: err, cost: cost}
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return r.first(ctx, "lower(email) = lower(?)", strings.TrimSpace(email))
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *PostgresRepository) GetRoles(ctx context.Context, userID string) ([]string, error) {
	if r.openErr != nil {
		return nil, r.openErr
	}
	var roles []string
	err := r.db.WithContext(ctx).
		Table("user_roles").
		Joins("JOIN roles ON roles.id = user_roles.role_id").
		Where("user_roles.user_id = ?", userID).
		Order("roles.name").
		Pluck("roles.name", &roles).Error
	if err != nil {
		return nil, dbx.Wrap("select roles", err)
	}
	return roles, nil
}

func (r *PostgresRepository) Create(ctx context.Context, reg models.Registration, roles ...string) (models.User, error) {
	if r.openErr != nil {
		return models.User{}, r.openErr
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), r.cost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	row := userRow{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(reg.Email)),
		PasswordHash: string(hash),
		FirstName:    reg.FirstName,
		LastName:     reg.LastName,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if dbx.IsUniqueViolation(err) {
			return models.User{}, common.ErrAlreadyExists
		}
		return models.User{}, dbx.Wrap("insert user", err)
	}

	if len(roles) > 0 {
		err := r.db.WithContext(ctx).Exec(
			`INSERT INTO user_roles (user_id, role_id) SELECT ?, id FROM roles WHERE name IN ? ON CONFLICT DO NOTHING`,
			row.ID, roles,
		).Error
		if err != nil {
			return models.User{}, dbx.Wrap("assign roles", err)
		}
	}

	u := row.toModel()
	u.Roles = append([]string(nil), roles...)
	return u, nil
}

func (r *PostgresRepository) VerifyPassword(ctx context.Context, userID, password string) (bool, error) {
	if r.openErr != nil {
		return false, r.openErr
	}
	var row userRow
	err := r.db.WithContext(ctx).Select("password_hash").Where("id = ?", userID).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, common.ErrorNotFound
		}
		return false, dbx.Wrap("select password hash", err)
	}
	return checkPassword(row.PasswordHash, password)
}

func (r *PostgresRepository) first(ctx context.Context, query string, arg any) (models.User, error) {
	if r.openErr != nil {
		return models.User{}, r.openErr
	}
	var row userRow
	if err := r.db.WithContext(ctx).Where(query, arg).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, common.ErrorNotFound
		}
		return models.User{}, dbx.Wrap("select user", err)
	}
	return row.toModel(), nil
}

func checkPassword(hash, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("compare password: %w", err)
	}
}
