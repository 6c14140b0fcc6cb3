package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"ato_controller/internal/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

var _ Authorization = (*UserRepository)(nil)

// ErrNoUser is returned by writes addressed to an operator that does not exist.
var ErrNoUser = errors.New("no such user")

const (
	insertUserSQL           = `INSERT INTO users (username, password_hash) VALUES (?, ?)`
	selectUserByUsernameSQL = `SELECT id, username, password_hash FROM users WHERE username = ?`
	selectUserByIDSQL       = `SELECT id, username, password_hash FROM users WHERE id = ?`
	updatePasswordSQL       = `UPDATE users SET password_hash = ? WHERE id = ?`
	countUsersSQL           = `SELECT COUNT(*) FROM users`
)

// Create inserts a new user and returns its ID.
func (r *UserRepository) Create(username, passwordHash string) (int, error) {
	res, err := r.db.Exec(insertUserSQL, username, passwordHash)
	if err != nil {
		return 0, fmt.Errorf("insert user %q: %w", username, err)
	}
	lastID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id for user %q: %w", username, err)
	}
	return int(lastID), nil
}

// GetByUsername fetches a user by username. Returns (nil, nil) if not found.
func (r *UserRepository) GetByUsername(username string) (*models.User, error) {
	u, err := scanUser(r.db.QueryRow(selectUserByUsernameSQL, username))
	if err != nil {
		return nil, fmt.Errorf("select user %q: %w", username, err)
	}
	return u, nil
}

// GetByID is GetByUsername keyed by the id carried in operator tokens.
func (r *UserRepository) GetByID(id int) (*models.User, error) {
	u, err := scanUser(r.db.QueryRow(selectUserByIDSQL, id))
	if err != nil {
		return nil, fmt.Errorf("select user %d: %w", id, err)
	}
	return u, nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// UpdatePassword replaces the stored hash of operator id.
func (r *UserRepository) UpdatePassword(id int, hash string) error {
	res, err := r.db.Exec(updatePasswordSQL, hash, id)
	if err != nil {
		return fmt.Errorf("update password of user %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update password of user %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("update password of user %d: %w", id, ErrNoUser)
	}
	return nil
}

// Count returns the number of operator accounts.
func (r *UserRepository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow(countUsersSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}
