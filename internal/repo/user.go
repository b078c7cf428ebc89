package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/crucial707/audit-search/internal/models"
)

// ErrUserNotFound is returned when no principal matches.
var ErrUserNotFound = errors.New("user not found")

// ==========================
// UserRepo
// ==========================
type UserRepo struct {
	DB         *sql.DB
	loginField string
}

// ==========================
// Constructor
// ==========================
func NewUserRepo(db *sql.DB, loginField string) *UserRepo {
	if !LoginFields[loginField] {
		loginField = "username"
	}
	return &UserRepo{DB: db, loginField: loginField}
}

// LoginField is the principal column used as the login.
func (r *UserRepo) LoginField() string { return r.loginField }

const userColumns = `id, username, email, first_name, last_name, COALESCE(password_hash, ''), is_staff`

// ==========================
// Create User
// ==========================
func (r *UserRepo) Create(ctx context.Context, u models.User) (*models.User, error) {
	var hash any
	if u.PasswordHash != "" {
		hash = u.PasswordHash
	}
	query := `
		INSERT INTO auth_user (username, email, first_name, last_name, password_hash, is_staff)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	if err := r.DB.QueryRowContext(ctx, query, u.Username, u.Email, u.FirstName, u.LastName, hash, u.IsStaff).Scan(&u.ID); err != nil {
		return nil, err
	}
	return &u, nil
}

// ==========================
// Get By ID
// ==========================
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM auth_user WHERE id = $1`, id)
}

// ==========================
// Get By Login
// ==========================
func (r *UserRepo) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM auth_user WHERE `+r.loginField+` = $1`, login)
}

func (r *UserRepo) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	u := &models.User{}
	err := r.DB.QueryRowContext(ctx, query, arg).
		Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash, &u.IsStaff)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}
