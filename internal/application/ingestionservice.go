package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/ericfisherdev/gitvault/internal/apperror"
	"github.com/ericfisherdev/gitvault/internal/domain/model"
	"github.com/ericfisherdev/gitvault/internal/domain/port/driven"
)

// IngestionService fetches repositories through a stored git label, records
// imported ones and schedules their analysis.
type IngestionService struct {
	vault     *VaultService
	registry  *Registry
	repos     driven.RepoStore
	jobs      driven.JobQueue
	metrics   *Metrics
	queueName string
	priority  int
	logger    *slog.Logger
}

// NewIngestionService creates an IngestionService. Analysis jobs go to
// queueName with the given priority.
func NewIngestionService(
	vault *VaultService,
	registry *Registry,
	repos driven.RepoStore,
	jobs driven.JobQueue,
	metrics *Metrics,
	queueName string,
	priority int,
) *IngestionService {
	return &IngestionService{
		vault:     vault,
		registry:  registry,
		repos:     repos,
		jobs:      jobs,
		metrics:   metrics,
		queueName: queueName,
		priority:  priority,
		logger:    slog.Default(),
	}
}

// FetchProviderRepos lists the repositories visible to the credential's
// token. An empty listing is returned as a zero total and a non-nil slice.
func (s *IngestionService) FetchProviderRepos(ctx context.Context, ownerID, credentialID string, page, perPage int) (model.RepoListing, error) {
	listing := model.RepoListing{Items: []model.NormalizedRepo{}}

	err := s.vault.UseToken(ctx, ownerID, credentialID, func(cred *model.Credential, token string) error {
		client, normalizer, err := s.components(cred.Provider, token)
		if err != nil {
			return err
		}

		raws, pagination, err := client.ListUserRepositories(ctx, page, perPage)
		if err != nil {
			s.logger.Warn("list repositories failed", "provider", cred.Provider, "credential_id", cred.ID, "error", causeOf(err))
			return providerError(cred.Provider, err)
		}

		for _, raw := range raws {
			repo, err := normalizer.NormalizeRepo(raw, nil)
			if err != nil {
				return s.internal("normalize repository", err)
			}
			listing.Items = append(listing.Items, *repo)
		}
		listing.Pagination = pagination
		listing.TotalCount = pagination.TotalCount
		return nil
	})
	if err != nil {
		return model.RepoListing{}, err
	}

	if len(listing.Items) == 0 {
		listing.TotalCount = 0
	}
	return listing, nil
}

// AddSingleRepo fetches one repository and its languages through the
// credential and stores it for the owner.
func (s *IngestionService) AddSingleRepo(ctx context.Context, ownerID, credentialID, pathOrID string) (*model.Repository, error) {
	pathOrID = strings.TrimSpace(pathOrID)
	if pathOrID == "" {
		return nil, apperror.Validation("repo", "repository path or id is required")
	}

	var stored *model.Repository
	err := s.vault.UseToken(ctx, ownerID, credentialID, func(cred *model.Credential, token string) error {
		client, normalizer, err := s.components(cred.Provider, token)
		if err != nil {
			return err
		}

		raw, err := client.GetRepository(ctx, pathOrID)
		if err != nil {
			return providerError(cred.Provider, err)
		}
		normalized, err := normalizer.NormalizeRepo(raw, nil)
		if err != nil {
			return s.internal("normalize repository", err)
		}

		// The resolved path saves providers a second lookup for numeric ids.
		langRef := normalized.FullName
		if langRef == "" {
			langRef = pathOrID
		}
		languages, err := client.GetRepositoryLanguages(ctx, langRef)
		if err != nil {
			return providerError(cred.Provider, err)
		}
		if normalized, err = normalizer.NormalizeRepo(raw, languages); err != nil {
			return s.internal("normalize repository", err)
		}

		stored, err = s.repos.Add(ctx, model.Repository{
			OwnerID:           ownerID,
			CredentialID:      cred.ID,
			Provider:          cred.Provider,
			ProviderRepoID:    normalized.ID,
			Name:              normalized.Name,
			FullName:          normalized.FullName,
			Description:       normalized.Description,
			URL:               normalized.URL,
			DefaultBranch:     normalized.DefaultBranch,
			ForksCount:        normalized.ForksCount,
			StarsCount:        normalized.StarsCount,
			SizeKB:            normalized.SizeKB,
			Private:           normalized.Private,
			Languages:         normalized.Languages,
			ProviderCreatedAt: normalized.CreatedAt,
		})
		if err != nil {
			if errors.Is(err, driven.ErrRepoAlreadyExists) {
				return apperror.Conflict("repository", err)
			}
			return s.internal("add repository", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("repository added", "id", stored.ID, "full_name", stored.FullName, "owner_id", ownerID)
	return stored, nil
}

// ListRepos returns one page of the owner's imported repositories.
func (s *IngestionService) ListRepos(ctx context.Context, ownerID string, offset, limit int) (model.RepositoryPage, error) {
	offset, limit = clampList(offset, limit)

	page, err := s.repos.ListByOwner(ctx, offset, limit, ownerID)
	if err != nil {
		return model.RepositoryPage{}, s.internal("list repositories", err)
	}
	if page.Items == nil {
		page.Items = []model.Repository{}
	}
	return page, nil
}

// ScheduleAnalysis enqueues an analysis job for an imported repository and
// returns the job id without waiting for the job. The payload carries the
// stored token ciphertext; the worker decrypts it with the same global secret.
func (s *IngestionService) ScheduleAnalysis(ctx context.Context, ownerID, repoID string) (string, error) {
	repo, err := s.repos.GetByIDAndOwner(ctx, repoID, ownerID)
	if err != nil {
		return "", s.internal("find repository", err)
	}
	if repo == nil {
		return "", apperror.NotFound("repository")
	}

	cred, err := s.vault.Get(ctx, repo.CredentialID, ownerID)
	if err != nil {
		return "", err
	}

	job := model.JobEnvelope{
		JobType: model.JobTypeRepositoryAnalysis,
		Payload: model.AnalysisPayload{
			Branch:      repo.DefaultBranch,
			RepoID:      repo.ProviderRepoID,
			TokenID:     cred.ID,
			TokenValue:  cred.TokenCiphertext,
			GitProvider: cred.Provider,
			UserID:      ownerID,
			Priority:    s.priority,
			ContextID:   uuid.NewString(),
		},
	}

	jobID, err := s.jobs.Enqueue(ctx, s.queueName, job, s.priority, ownerID)
	if err != nil {
		return "", s.internal("enqueue analysis", err)
	}
	s.metrics.jobEnqueued(cred.Provider)

	s.logger.Info("analysis scheduled", "job_id", jobID, "repo_id", repo.ID, "owner_id", ownerID)
	return jobID, nil
}

func (s *IngestionService) components(provider model.ProviderTag, token string) (driven.ProviderClient, driven.ResponseNormalizer, error) {
	factory, normalizer := s.registry.GetComponents(provider)
	if factory == nil || normalizer == nil {
		return nil, nil, apperror.UnsupportedProvider(string(provider))
	}
	return instrument(factory.NewClient(token), provider, s.metrics), normalizer, nil
}

func (s *IngestionService) internal(op string, err error) error {
	s.logger.Error("ingestion operation failed", "op", op, "error", err)
	return apperror.Internal(err)
}
