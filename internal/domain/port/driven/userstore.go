package driven

import (
	"context"

	"github.com/ericfisherdev/gitvault/internal/domain/model"
)

// UserStore defines the driven port for the per-user secret envelope.
type UserStore interface {
	// Create stores the user if absent. It reports whether a row was created;
	// an existing user is left untouched.
	Create(ctx context.Context, user model.User) (bool, error)

	// FindByOwnerID returns nil, nil when the owner has no envelope.
	FindByOwnerID(ctx context.Context, ownerID string) (*model.User, error)
}
