package driven

import (
	"context"

	"github.com/ericfisherdev/gitvault/internal/domain/model"
)

// ProviderClient is an authenticated client for one provider's REST API.
// Users and repositories come back in the provider's native shape and are
// turned into model types by the matching ResponseNormalizer.
//
// Every failure is an *apperror.AppError classified as provider auth,
// provider unavailable or not found. Error text never contains the token.
type ProviderClient interface {
	GetAuthenticatedUser(ctx context.Context) (any, error)

	// GetRepository accepts a provider-native numeric id or a namespace/name path.
	GetRepository(ctx context.Context, identifier string) (any, error)

	// GetRepositoryLanguages returns language name to share. The share unit
	// is provider specific (bytes on GitHub, percent on GitLab); only the
	// ordering is meaningful across providers.
	GetRepositoryLanguages(ctx context.Context, identifier string) (map[string]float64, error)

	// ListUserRepositories clamps page to >= 1 and perPage to [1,100] before
	// calling the provider.
	ListUserRepositories(ctx context.Context, page, perPage int) ([]any, model.Pagination, error)
}

// ClientFactory builds a ProviderClient bound to one token.
type ClientFactory interface {
	NewClient(token string) ProviderClient
}

// ResponseNormalizer converts a provider's user and repository payloads into
// model types. It accepts the provider SDK's native object or a flattened
// map[string]any and fails with apperror.ErrUnsupportedShape otherwise.
type ResponseNormalizer interface {
	NormalizeUser(raw any) (*model.ProviderUser, error)
	NormalizeRepo(raw any, languages map[string]float64) (*model.NormalizedRepo, error)
}
