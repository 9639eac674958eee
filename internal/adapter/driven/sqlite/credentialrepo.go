package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/gitvault/internal/domain/model"
	"github.com/ericfisherdev/gitvault/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port.
// It stores ciphertext only; the application layer encrypts before Save.
type CredentialRepo struct {
	db  *DB
	now func() time.Time
}

// NewCredentialRepo creates a new CredentialRepo backed by the given DB.
func NewCredentialRepo(db *DB) *CredentialRepo {
	return &CredentialRepo{db: db, now: time.Now}
}

const credentialColumns = `id, owner_id, label, provider, token_ciphertext, token_fingerprint, masked_token, provider_username, created_at, updated_at`

// Save inserts the credential with a fresh UUID. A second token with the same
// fingerprint for the same owner and provider yields ErrCredentialExists.
func (r *CredentialRepo) Save(ctx context.Context, nc model.NewCredential) (*model.Credential, error) {
	now := r.now().UTC()
	cred := model.Credential{
		ID:               uuid.NewString(),
		OwnerID:          nc.OwnerID,
		Label:            nc.Label,
		Provider:         nc.Provider,
		TokenCiphertext:  nc.TokenCiphertext,
		TokenFingerprint: nc.TokenFingerprint,
		MaskedToken:      nc.MaskedToken,
		ProviderUsername: nc.ProviderUsername,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	const query = `INSERT INTO credentials (` + credentialColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.Writer.ExecContext(ctx, query,
		cred.ID, cred.OwnerID, cred.Label, string(cred.Provider), cred.TokenCiphertext,
		cred.TokenFingerprint, cred.MaskedToken, cred.ProviderUsername,
		formatTime(cred.CreatedAt), formatTime(cred.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("save credential %q: %w", cred.Label, driven.ErrCredentialExists)
		}
		return nil, fmt.Errorf("save credential %q: %w", cred.Label, err)
	}

	return &cred, nil
}

// FindByID returns nil, nil when no credential has that id.
func (r *CredentialRepo) FindByID(ctx context.Context, id string) (*model.Credential, error) {
	const query = `SELECT ` + credentialColumns + ` FROM credentials WHERE id = ?`

	cred, err := scanCredential(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get credential %s: %w", id, err)
	}
	return cred, nil
}

// FindByOwner returns the owner's credentials newest first. Total counts every
// credential matching the same provider filter, not just this page.
func (r *CredentialRepo) FindByOwner(ctx context.Context, offset, limit int, ownerID string, provider model.ProviderTag) (model.CredentialPage, error) {
	offset, limit = clampWindow(offset, limit)
	page := model.CredentialPage{Items: []model.Credential{}}

	where := `WHERE owner_id = ?`
	args := []any{ownerID}
	if provider != "" {
		where += ` AND provider = ?`
		args = append(args, string(provider))
	}

	if err := r.db.Reader.QueryRowContext(ctx, `SELECT COUNT(*) FROM credentials `+where, args...).Scan(&page.Total); err != nil {
		return model.CredentialPage{}, fmt.Errorf("count credentials: %w", err)
	}

	query := `SELECT ` + credentialColumns + ` FROM credentials ` + where + ` ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`
	rows, err := r.db.Reader.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return model.CredentialPage{}, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return model.CredentialPage{}, fmt.Errorf("scan credential: %w", err)
		}
		page.Items = append(page.Items, *cred)
	}
	if err := rows.Err(); err != nil {
		return model.CredentialPage{}, fmt.Errorf("iterate credentials: %w", err)
	}

	return page, nil
}

// DeleteByIDAndOwner removes the credential only when ownerID owns it.
func (r *CredentialRepo) DeleteByIDAndOwner(ctx context.Context, id, ownerID string) (int64, error) {
	const query = `DELETE FROM credentials WHERE id = ? AND owner_id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return 0, fmt.Errorf("delete credential %s: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w", err)
	}
	return rows, nil
}

func scanCredential(s scanner) (*model.Credential, error) {
	var cred model.Credential
	var provider, createdAt, updatedAt string

	err := s.Scan(
		&cred.ID, &cred.OwnerID, &cred.Label, &provider, &cred.TokenCiphertext,
		&cred.TokenFingerprint, &cred.MaskedToken, &cred.ProviderUsername, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	cred.Provider = model.ProviderTag(provider)

	if cred.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if cred.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &cred, nil
}
