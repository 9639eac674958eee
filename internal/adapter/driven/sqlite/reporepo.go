package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/gitvault/internal/domain/model"
	"github.com/ericfisherdev/gitvault/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RepoStore = (*RepoRepo)(nil)

// RepoRepo is the SQLite implementation of the RepoStore port interface.
type RepoRepo struct {
	db *DB
}

// NewRepoRepo creates a new RepoRepo backed by the given DB.
func NewRepoRepo(db *DB) *RepoRepo {
	return &RepoRepo{db: db}
}

const repoColumns = `id, owner_id, credential_id, provider, provider_repo_id, name, full_name, description,
	url, default_branch, forks_count, stars_count, size_kb, private, languages, provider_created_at, added_at`

// Add inserts a new repository. Importing the same provider repository twice
// for one owner fails with ErrRepoAlreadyExists.
func (r *RepoRepo) Add(ctx context.Context, repo model.Repository) (*model.Repository, error) {
	if repo.ID == "" {
		repo.ID = uuid.NewString()
	}
	if repo.AddedAt.IsZero() {
		repo.AddedAt = time.Now()
	}
	repo.AddedAt = repo.AddedAt.UTC()
	if repo.Languages == nil {
		repo.Languages = []string{}
	}

	langs, err := json.Marshal(repo.Languages)
	if err != nil {
		return nil, fmt.Errorf("encode languages: %w", err)
	}

	var providerCreated any
	if repo.ProviderCreatedAt != nil {
		providerCreated = formatTime(*repo.ProviderCreatedAt)
	}

	const query = `INSERT INTO repositories (` + repoColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.Writer.ExecContext(ctx, query,
		repo.ID, repo.OwnerID, repo.CredentialID, string(repo.Provider), repo.ProviderRepoID,
		repo.Name, repo.FullName, repo.Description, repo.URL, repo.DefaultBranch,
		repo.ForksCount, repo.StarsCount, repo.SizeKB, repo.Private, string(langs),
		providerCreated, formatTime(repo.AddedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("add repository %s: %w", repo.FullName, driven.ErrRepoAlreadyExists)
		}
		return nil, fmt.Errorf("add repository %s: %w", repo.FullName, err)
	}

	return &repo, nil
}

// GetByIDAndOwner returns nil, nil when the repository is absent or belongs
// to another owner.
func (r *RepoRepo) GetByIDAndOwner(ctx context.Context, id, ownerID string) (*model.Repository, error) {
	const query = `SELECT ` + repoColumns + ` FROM repositories WHERE id = ? AND owner_id = ?`

	repo, err := scanRepository(r.db.Reader.QueryRowContext(ctx, query, id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get repository %s: %w", id, err)
	}

	return repo, nil
}

// ListByOwner returns the owner's repositories, most recently added first.
func (r *RepoRepo) ListByOwner(ctx context.Context, offset, limit int, ownerID string) (model.RepositoryPage, error) {
	offset, limit = clampWindow(offset, limit)
	page := model.RepositoryPage{Items: []model.Repository{}}

	if err := r.db.Reader.QueryRowContext(ctx, `SELECT COUNT(*) FROM repositories WHERE owner_id = ?`, ownerID).Scan(&page.Total); err != nil {
		return model.RepositoryPage{}, fmt.Errorf("count repositories: %w", err)
	}

	const query = `SELECT ` + repoColumns + ` FROM repositories WHERE owner_id = ? ORDER BY added_at DESC, rowid DESC LIMIT ? OFFSET ?`
	rows, err := r.db.Reader.QueryContext(ctx, query, ownerID, limit, offset)
	if err != nil {
		return model.RepositoryPage{}, fmt.Errorf("list repositories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		repo, err := scanRepository(rows)
		if err != nil {
			return model.RepositoryPage{}, fmt.Errorf("scan repository: %w", err)
		}
		page.Items = append(page.Items, *repo)
	}

	if err := rows.Err(); err != nil {
		return model.RepositoryPage{}, fmt.Errorf("iterate repositories: %w", err)
	}

	return page, nil
}

func scanRepository(s scanner) (*model.Repository, error) {
	var repo model.Repository
	var provider, langs, addedAt string
	var description, providerCreated sql.NullString

	err := s.Scan(
		&repo.ID, &repo.OwnerID, &repo.CredentialID, &provider, &repo.ProviderRepoID,
		&repo.Name, &repo.FullName, &description, &repo.URL, &repo.DefaultBranch,
		&repo.ForksCount, &repo.StarsCount, &repo.SizeKB, &repo.Private, &langs,
		&providerCreated, &addedAt,
	)
	if err != nil {
		return nil, err
	}
	repo.Provider = model.ProviderTag(provider)

	if description.Valid {
		desc := description.String
		repo.Description = &desc
	}

	repo.Languages = []string{}
	if err := json.Unmarshal([]byte(langs), &repo.Languages); err != nil {
		return nil, fmt.Errorf("decode languages: %w", err)
	}

	if providerCreated.Valid {
		created, err := parseTime(providerCreated.String)
		if err != nil {
			return nil, fmt.Errorf("parse provider_created_at: %w", err)
		}
		repo.ProviderCreatedAt = &created
	}

	repo.AddedAt, err = parseTime(addedAt)
	if err != nil {
		return nil, fmt.Errorf("parse added_at: %w", err)
	}

	return &repo, nil
}
