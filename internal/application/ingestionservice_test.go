package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/gitvault/internal/apperror"
	"github.com/ericfisherdev/gitvault/internal/domain/model"
)

// addLabel stores a credential for testOwner and resets the call counter.
func addLabel(t *testing.T, f *fixture) *model.Credential {
	t.Helper()

	cred, err := f.vault.Add(context.Background(), testOwner, "work", model.ProviderGitHub, testToken)
	require.NoError(t, err)

	f.github.mu.Lock()
	f.github.calls = 0
	f.github.tokens = nil
	f.github.mu.Unlock()
	return cred
}

func TestFetchProviderRepos_Empty(t *testing.T) {
	f := newFixture(t)
	cred := addLabel(t, f)
	f.github.page = model.Pagination{CurrentPage: 1, PerPage: 30, TotalPages: 1}

	listing, err := f.ingestion.FetchProviderRepos(context.Background(), testOwner, cred.ID, 1, 30)
	require.NoError(t, err)
	assert.Equal(t, 0, listing.TotalCount)
	require.NotNil(t, listing.Items)
	assert.Empty(t, listing.Items)
}

func TestFetchProviderRepos_EmptyLaterPage(t *testing.T) {
	f := newFixture(t)
	cred := addLabel(t, f)
	f.github.page = model.Pagination{CurrentPage: 2, PerPage: 30, TotalCount: 30, TotalPages: 1, HasPrev: true}

	listing, err := f.ingestion.FetchProviderRepos(context.Background(), testOwner, cred.ID, 2, 30)
	require.NoError(t, err)
	assert.Equal(t, 0, listing.TotalCount)
	require.NotNil(t, listing.Items)
	assert.Empty(t, listing.Items)
}

func TestFetchProviderRepos(t *testing.T) {
	f := newFixture(t)
	cred := addLabel(t, f)
	f.github.items = []any{
		map[string]any{"id": "1", "full_name": "octocat/one"},
		map[string]any{"id": "2", "full_name": "octocat/two"},
	}
	f.github.page = model.Pagination{CurrentPage: 1, PerPage: 2, TotalCount: 5, TotalPages: 3, HasNext: true}

	listing, err := f.ingestion.FetchProviderRepos(context.Background(), testOwner, cred.ID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, listing.TotalCount)
	require.Len(t, listing.Items, 2)
	assert.Equal(t, "octocat/two", listing.Items[1].FullName)
	assert.True(t, listing.Pagination.HasNext)
	assert.Equal(t, []string{testToken}, f.github.tokens, "client built with the decrypted token")
}

func TestFetchProviderRepos_NotFound(t *testing.T) {
	f := newFixture(t)
	cred := addLabel(t, f)

	_, err := f.ingestion.FetchProviderRepos(context.Background(), "stranger", cred.ID, 1, 30)
	assert.ErrorIs(t, err, apperror.ErrNotFound, "unknown owner")

	_, _, err = f.vault.RegisterUser(context.Background(), "owner-2")
	require.NoError(t, err)
	_, err = f.ingestion.FetchProviderRepos(context.Background(), "owner-2", cred.ID, 1, 30)
	assert.ErrorIs(t, err, apperror.ErrNotFound, "credential of another owner")

	_, err = f.ingestion.FetchProviderRepos(context.Background(), testOwner, "missing", 1, 30)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	assert.Equal(t, 0, f.github.callCount())
}

func TestFetchProviderRepos_ProviderFailure(t *testing.T) {
	f := newFixture(t)
	cred := addLabel(t, f)
	f.github.listErr = apperror.ProviderUnavailable("github", "unable to list repositories", nil)

	_, err := f.ingestion.FetchProviderRepos(context.Background(), testOwner, cred.ID, 1, 30)
	assert.ErrorIs(t, err, apperror.ErrProviderUnavailable)
}

func TestAddSingleRepo(t *testing.T) {
	f := newFixture(t)
	cred := addLabel(t, f)
	f.github.repo = map[string]any{"id": "1296269", "full_name": "octocat/Hello-World"}
	f.github.languages = map[string]float64{"Go": 100}

	repo, err := f.ingestion.AddSingleRepo(context.Background(), testOwner, cred.ID, "octocat/Hello-World")
	require.NoError(t, err)
	assert.Equal(t, cred.ID, repo.CredentialID)
	assert.Equal(t, "1296269", repo.ProviderRepoID)
	assert.Equal(t, model.ProviderGitHub, repo.Provider)
	assert.Equal(t, []string{"Go"}, repo.Languages)
	assert.Equal(t, 2, f.github.callCount(), "repository plus languages")
	assert.Equal(t, []string{"octocat/Hello-World"}, f.github.langRefs)

	_, err = f.ingestion.AddSingleRepo(context.Background(), testOwner, cred.ID, "octocat/Hello-World")
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestAddSingleRepo_NumericIDUsesResolvedPath(t *testing.T) {
	f := newFixture(t)
	cred := addLabel(t, f)
	f.github.repo = map[string]any{"id": "1296269", "full_name": "octocat/Hello-World"}
	f.github.languages = map[string]float64{"C": 10}

	_, err := f.ingestion.AddSingleRepo(context.Background(), testOwner, cred.ID, "1296269")
	require.NoError(t, err)
	assert.Equal(t, 2, f.github.callCount())
	assert.Equal(t, []string{"octocat/Hello-World"}, f.github.langRefs)
}

func TestAddSingleRepo_Validation(t *testing.T) {
	f := newFixture(t)
	cred := addLabel(t, f)

	_, err := f.ingestion.AddSingleRepo(context.Background(), testOwner, cred.ID, "  ")
	assert.ErrorIs(t, err, apperror.ErrValidation)
	assert.Equal(t, 0, f.github.callCount())
}

func TestAddSingleRepo_ProviderNotFound(t *testing.T) {
	f := newFixture(t)
	cred := addLabel(t, f)
	f.github.repoErr = &apperror.AppError{Kind: apperror.ErrNotFound, Message: "repository not found"}

	_, err := f.ingestion.AddSingleRepo(context.Background(), testOwner, cred.ID, "octocat/missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.Empty(t, f.repos.repos)
}

func TestScheduleAnalysis(t *testing.T) {
	f := newFixture(t)
	cred := addLabel(t, f)
	f.github.repo = map[string]any{"id": "1296269", "full_name": "octocat/Hello-World"}

	repo, err := f.ingestion.AddSingleRepo(context.Background(), testOwner, cred.ID, "octocat/Hello-World")
	require.NoError(t, err)

	jobID, err := f.ingestion.ScheduleAnalysis(context.Background(), testOwner, repo.ID)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)

	require.Len(t, f.jobs.jobs, 1)
	queued := f.jobs.jobs[0]
	assert.Equal(t, testQueue, queued.queue)
	assert.Equal(t, testPriority, queued.priority)
	assert.Equal(t, testOwner, queued.ownerID)
	assert.Equal(t, model.JobTypeRepositoryAnalysis, queued.job.JobType)

	payload := queued.job.Payload
	assert.Equal(t, "main", payload.Branch)
	assert.Equal(t, "1296269", payload.RepoID)
	assert.Equal(t, cred.ID, payload.TokenID)
	assert.Equal(t, cred.TokenCiphertext, payload.TokenValue, "ciphertext is forwarded, never plaintext")
	assert.NotEqual(t, testToken, payload.TokenValue)
	assert.Equal(t, model.ProviderGitHub, payload.GitProvider)
	assert.Equal(t, testOwner, payload.UserID)
	assert.NotEmpty(t, payload.ContextID)
}

func TestScheduleAnalysis_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.ingestion.ScheduleAnalysis(context.Background(), testOwner, "repo-404")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.Empty(t, f.jobs.jobs)
}

func TestListRepos_Empty(t *testing.T) {
	f := newFixture(t)

	page, err := f.ingestion.ListRepos(context.Background(), testOwner, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
	assert.NotNil(t, page.Items)
}
