package github

import (
	"strconv"

	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/gitvault/internal/adapter/driven/payload"
	"github.com/ericfisherdev/gitvault/internal/apperror"
	"github.com/ericfisherdev/gitvault/internal/domain/model"
	"github.com/ericfisherdev/gitvault/internal/domain/port/driven"
)

var _ driven.ResponseNormalizer = Normalizer{}

// Normalizer maps *github.User and *github.Repository, or their flattened
// JSON form, onto model types.
type Normalizer struct{}

// NormalizeUser accepts *github.User or map[string]any. A nil user yields an
// empty ProviderUser; the caller decides whether that is acceptable.
func (Normalizer) NormalizeUser(raw any) (*model.ProviderUser, error) {
	switch u := raw.(type) {
	case *gh.User:
		id := ""
		if u.GetID() > 0 {
			id = strconv.FormatInt(u.GetID(), 10)
		}
		return &model.ProviderUser{
			ID:       id,
			Username: u.GetLogin(),
			Name:     u.GetName(),
			Email:    u.GetEmail(),
		}, nil
	case map[string]any:
		return &model.ProviderUser{
			ID:       payload.ID(u, "id"),
			Username: payload.String(u, "login"),
			Name:     payload.String(u, "name"),
			Email:    payload.String(u, "email"),
		}, nil
	default:
		return nil, apperror.UnsupportedShape(providerName, raw)
	}
}

// NormalizeRepo accepts *github.Repository or map[string]any. Visibility is
// GitHub's own private flag.
func (Normalizer) NormalizeRepo(raw any, languages map[string]float64) (*model.NormalizedRepo, error) {
	switch r := raw.(type) {
	case *gh.Repository:
		if r == nil {
			return nil, apperror.UnsupportedShape(providerName, raw)
		}
		return mapRepository(r, languages), nil
	case map[string]any:
		return mapRepositoryPayload(r, languages), nil
	default:
		return nil, apperror.UnsupportedShape(providerName, raw)
	}
}

// mapRepository uses GetXxx() helpers exclusively to avoid nil pointer panics.
func mapRepository(r *gh.Repository, languages map[string]float64) *model.NormalizedRepo {
	repo := &model.NormalizedRepo{
		Name:          r.GetName(),
		FullName:      r.GetFullName(),
		URL:           r.GetHTMLURL(),
		DefaultBranch: r.GetDefaultBranch(),
		ForksCount:    payload.NonNegative(r.GetForksCount()),
		StarsCount:    payload.NonNegative(r.GetStargazersCount()),
		SizeKB:        int64(payload.NonNegative(r.GetSize())),
		Private:       r.GetPrivate(),
		Languages:     payload.Languages(languages),
	}
	if r.GetID() > 0 {
		repo.ID = strconv.FormatInt(r.GetID(), 10)
	}
	if r.Description != nil {
		desc := r.GetDescription()
		repo.Description = &desc
	}
	if r.CreatedAt != nil && !r.GetCreatedAt().IsZero() {
		created := r.GetCreatedAt().Time
		repo.CreatedAt = &created
	}
	return repo
}

func mapRepositoryPayload(m map[string]any, languages map[string]float64) *model.NormalizedRepo {
	return &model.NormalizedRepo{
		ID:            payload.ID(m, "id"),
		Name:          payload.String(m, "name"),
		FullName:      payload.String(m, "full_name"),
		Description:   payload.OptString(m, "description"),
		URL:           payload.FirstString(m, "html_url", "url"),
		DefaultBranch: payload.String(m, "default_branch"),
		ForksCount:    payload.Int(m, "forks_count"),
		StarsCount:    payload.Int(m, "stargazers_count"),
		SizeKB:        payload.Int64(m, "size"),
		CreatedAt:     payload.Time(m, "created_at"),
		Private:       payload.Bool(m, "private"),
		Languages:     payload.Languages(languages),
	}
}
