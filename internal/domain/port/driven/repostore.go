package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/gitvault/internal/domain/model"
)

// ErrRepoAlreadyExists indicates the owner already imported the same provider
// repository.
var ErrRepoAlreadyExists = errors.New("repository already exists")

// RepoStore defines the driven port for imported repository persistence.
type RepoStore interface {
	// Add inserts the repository, assigning ID and AddedAt when zero.
	// Returns ErrRepoAlreadyExists on a uniqueness violation.
	Add(ctx context.Context, repo model.Repository) (*model.Repository, error)

	// GetByIDAndOwner returns nil, nil when absent or owned by someone else.
	GetByIDAndOwner(ctx context.Context, id, ownerID string) (*model.Repository, error)

	ListByOwner(ctx context.Context, offset, limit int, ownerID string) (model.RepositoryPage, error)
}
