package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/gitvault/internal/domain/model"
)

// ErrCredentialExists is returned by CredentialStore.Save when the owner
// already stored the same token for the same provider.
var ErrCredentialExists = errors.New("credential already exists")

// CredentialStore defines the driven port for credential persistence. It only
// ever sees ciphertext; encryption happens before Save is called.
type CredentialStore interface {
	// Save persists a new credential and returns it with ID and timestamps
	// populated. Returns ErrCredentialExists on a uniqueness violation.
	Save(ctx context.Context, cred model.NewCredential) (*model.Credential, error)

	// FindByID returns nil, nil when no credential has that id.
	FindByID(ctx context.Context, id string) (*model.Credential, error)

	// FindByOwner returns one page of the owner's credentials, newest first,
	// and the total for the same provider filter. An empty provider means all.
	FindByOwner(ctx context.Context, offset, limit int, ownerID string, provider model.ProviderTag) (model.CredentialPage, error)

	// DeleteByIDAndOwner returns how many rows were removed (0 or 1).
	DeleteByIDAndOwner(ctx context.Context, id, ownerID string) (int64, error)
}
