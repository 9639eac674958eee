package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/gitvault/internal/domain/model"
	"github.com/ericfisherdev/gitvault/internal/domain/port/driven"
)

var _ driven.UserStore = (*UserRepo)(nil)

// UserRepo is the SQLite implementation of the UserStore port.
type UserRepo struct {
	db *DB
}

// NewUserRepo creates a new UserRepo backed by the given DB.
func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{db: db}
}

// Create inserts the user unless the owner already has an envelope. The
// existing salt is never replaced: doing so would orphan every stored token.
func (r *UserRepo) Create(ctx context.Context, user model.User) (bool, error) {
	const query = `INSERT INTO users (owner_id, encryption_salt_ciphertext, created_at) VALUES (?, ?, ?)
		ON CONFLICT(owner_id) DO NOTHING`

	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	result, err := r.db.Writer.ExecContext(ctx, query, user.OwnerID, user.EncryptionSaltCiphertext, formatTime(createdAt))
	if err != nil {
		return false, fmt.Errorf("create user %s: %w", user.OwnerID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check rows affected: %w", err)
	}
	return rows == 1, nil
}

// FindByOwnerID returns nil, nil when the owner is unknown.
func (r *UserRepo) FindByOwnerID(ctx context.Context, ownerID string) (*model.User, error) {
	const query = `SELECT owner_id, encryption_salt_ciphertext, created_at FROM users WHERE owner_id = ?`

	var user model.User
	var createdAt string
	err := r.db.Reader.QueryRowContext(ctx, query, ownerID).Scan(&user.OwnerID, &user.EncryptionSaltCiphertext, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", ownerID, err)
	}

	user.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &user, nil
}
