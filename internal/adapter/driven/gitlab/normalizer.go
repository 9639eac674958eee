package gitlab

import (
	"strconv"

	gl "github.com/xanzy/go-gitlab"

	"github.com/ericfisherdev/gitvault/internal/adapter/driven/payload"
	"github.com/ericfisherdev/gitvault/internal/apperror"
	"github.com/ericfisherdev/gitvault/internal/domain/model"
	"github.com/ericfisherdev/gitvault/internal/domain/port/driven"
)

var _ driven.ResponseNormalizer = Normalizer{}

// Normalizer maps *gitlab.User and *gitlab.Project, or their flattened JSON
// form, onto model types.
type Normalizer struct{}

// NormalizeUser accepts *gitlab.User or map[string]any.
func (Normalizer) NormalizeUser(raw any) (*model.ProviderUser, error) {
	switch u := raw.(type) {
	case *gl.User:
		if u == nil {
			return &model.ProviderUser{}, nil
		}
		id := ""
		if u.ID > 0 {
			id = strconv.Itoa(u.ID)
		}
		return &model.ProviderUser{ID: id, Username: u.Username, Name: u.Name, Email: u.Email}, nil
	case map[string]any:
		return &model.ProviderUser{
			ID:       payload.ID(u, "id"),
			Username: payload.String(u, "username"),
			Name:     payload.String(u, "name"),
			Email:    payload.String(u, "email"),
		}, nil
	default:
		return nil, apperror.UnsupportedShape(providerName, raw)
	}
}

// NormalizeRepo accepts *gitlab.Project or map[string]any.
func (Normalizer) NormalizeRepo(raw any, languages map[string]float64) (*model.NormalizedRepo, error) {
	switch p := raw.(type) {
	case *gl.Project:
		if p == nil {
			return nil, apperror.UnsupportedShape(providerName, raw)
		}
		return mapProject(p, languages), nil
	case map[string]any:
		return mapProjectPayload(p, languages), nil
	default:
		return nil, apperror.UnsupportedShape(providerName, raw)
	}
}

func mapProject(p *gl.Project, languages map[string]float64) *model.NormalizedRepo {
	repo := &model.NormalizedRepo{
		Name:          p.Name,
		FullName:      p.PathWithNamespace,
		URL:           p.WebURL,
		DefaultBranch: p.DefaultBranch,
		ForksCount:    payload.NonNegative(p.ForksCount),
		StarsCount:    payload.NonNegative(p.StarCount),
		Private:       isPrivate(string(p.Visibility)),
		Languages:     payload.Languages(languages),
	}
	if p.ID > 0 {
		repo.ID = strconv.Itoa(p.ID)
	}
	if p.Description != "" {
		desc := p.Description
		repo.Description = &desc
	}
	if p.CreatedAt != nil && !p.CreatedAt.IsZero() {
		created := *p.CreatedAt
		repo.CreatedAt = &created
	}
	if p.Statistics != nil {
		repo.SizeKB = bytesToKB(p.Statistics.StorageSize)
	}
	return repo
}

func mapProjectPayload(m map[string]any, languages map[string]float64) *model.NormalizedRepo {
	repo := &model.NormalizedRepo{
		ID:            payload.ID(m, "id"),
		Name:          payload.String(m, "name"),
		FullName:      payload.String(m, "path_with_namespace"),
		URL:           payload.String(m, "web_url"),
		DefaultBranch: payload.String(m, "default_branch"),
		ForksCount:    payload.Int(m, "forks_count"),
		StarsCount:    payload.Int(m, "star_count"),
		CreatedAt:     payload.Time(m, "created_at"),
		Private:       isPrivate(payload.String(m, "visibility")),
		Languages:     payload.Languages(languages),
	}
	if desc := payload.OptString(m, "description"); desc != nil && *desc != "" {
		repo.Description = desc
	}
	if stats := payload.Map(m, "statistics"); stats != nil {
		repo.SizeKB = bytesToKB(payload.Int64(stats, "storage_size"))
	}
	return repo
}

// isPrivate treats GitLab "internal" projects as non-public alongside
// "private". Only "public" (or an unknown value) is exposed as public.
func isPrivate(visibility string) bool {
	switch gl.VisibilityValue(visibility) {
	case gl.PrivateVisibility, gl.InternalVisibility:
		return true
	}
	return false
}

func bytesToKB(n int64) int64 {
	return payload.NonNegative(n) / 1024
}
