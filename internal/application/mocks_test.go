package application

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/gitvault/internal/cipher"
	"github.com/ericfisherdev/gitvault/internal/domain/model"
	"github.com/ericfisherdev/gitvault/internal/domain/port/driven"
)

// --- Store fakes ---

type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]model.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[string]model.User{}}
}

func (f *fakeUserStore) Create(_ context.Context, user model.User) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.OwnerID]; ok {
		return false, nil
	}
	f.users[user.OwnerID] = user
	return true, nil
}

func (f *fakeUserStore) FindByOwnerID(_ context.Context, ownerID string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[ownerID]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

type fakeCredentialStore struct {
	mu        sync.Mutex
	creds     []model.Credential
	saveCalls int
	saveErr   error
	nextID    int
}

func (f *fakeCredentialStore) Save(_ context.Context, nc model.NewCredential) (*model.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveCalls++
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	for _, c := range f.creds {
		if c.OwnerID == nc.OwnerID && c.Provider == nc.Provider && c.TokenFingerprint == nc.TokenFingerprint {
			return nil, fmt.Errorf("save credential: %w", driven.ErrCredentialExists)
		}
	}
	f.nextID++
	cred := model.Credential{
		ID:               fmt.Sprintf("cred-%d", f.nextID),
		OwnerID:          nc.OwnerID,
		Label:            nc.Label,
		Provider:         nc.Provider,
		TokenCiphertext:  nc.TokenCiphertext,
		TokenFingerprint: nc.TokenFingerprint,
		MaskedToken:      nc.MaskedToken,
		ProviderUsername: nc.ProviderUsername,
	}
	f.creds = append(f.creds, cred)
	return &cred, nil
}

func (f *fakeCredentialStore) FindByID(_ context.Context, id string) (*model.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.creds {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeCredentialStore) FindByOwner(_ context.Context, offset, limit int, ownerID string, provider model.ProviderTag) (model.CredentialPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []model.Credential
	for _, c := range f.creds {
		if c.OwnerID == ownerID && (provider == "" || c.Provider == provider) {
			matched = append(matched, c)
		}
	}
	page := model.CredentialPage{Total: len(matched)}
	if offset < len(matched) {
		end := min(offset+limit, len(matched))
		page.Items = matched[offset:end]
	}
	return page, nil
}

func (f *fakeCredentialStore) DeleteByIDAndOwner(_ context.Context, id, ownerID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.creds {
		if c.ID == id && c.OwnerID == ownerID {
			f.creds = append(f.creds[:i], f.creds[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

type fakeRepoStore struct {
	mu     sync.Mutex
	repos  []model.Repository
	nextID int
}

func (f *fakeRepoStore) Add(_ context.Context, repo model.Repository) (*model.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.repos {
		if r.OwnerID == repo.OwnerID && r.Provider == repo.Provider && r.ProviderRepoID == repo.ProviderRepoID {
			return nil, fmt.Errorf("add repository: %w", driven.ErrRepoAlreadyExists)
		}
	}
	f.nextID++
	repo.ID = fmt.Sprintf("repo-%d", f.nextID)
	f.repos = append(f.repos, repo)
	return &repo, nil
}

func (f *fakeRepoStore) GetByIDAndOwner(_ context.Context, id, ownerID string) (*model.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.repos {
		if r.ID == id && r.OwnerID == ownerID {
			return &r, nil
		}
	}
	return nil, nil
}

func (f *fakeRepoStore) ListByOwner(_ context.Context, offset, limit int, ownerID string) (model.RepositoryPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []model.Repository
	for _, r := range f.repos {
		if r.OwnerID == ownerID {
			matched = append(matched, r)
		}
	}
	page := model.RepositoryPage{Total: len(matched)}
	if offset < len(matched) {
		page.Items = matched[offset:min(offset+limit, len(matched))]
	}
	return page, nil
}

type enqueuedJob struct {
	queue    string
	job      model.JobEnvelope
	priority int
	ownerID  string
}

type fakeJobQueue struct {
	mu   sync.Mutex
	jobs []enqueuedJob
	err  error
}

func (f *fakeJobQueue) Enqueue(_ context.Context, queueName string, job model.JobEnvelope, priority int, ownerID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.jobs = append(f.jobs, enqueuedJob{queue: queueName, job: job, priority: priority, ownerID: ownerID})
	return fmt.Sprintf("job-%d", len(f.jobs)), nil
}

// --- Provider fakes ---

// fakeProvider is a ClientFactory whose clients serve canned responses and
// count calls. tokens records every token a client was built with.
type fakeProvider struct {
	mu        sync.Mutex
	tokens    []string
	calls     int
	user      any
	userErr   error
	repo      any
	repoErr   error
	languages map[string]float64
	langRefs  []string
	items     []any
	page      model.Pagination
	listErr   error
}

func (f *fakeProvider) NewClient(token string) driven.ProviderClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
	return &fakeClient{p: f}
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeClient struct {
	p *fakeProvider
}

func (c *fakeClient) hit() {
	c.p.mu.Lock()
	c.p.calls++
	c.p.mu.Unlock()
}

func (c *fakeClient) GetAuthenticatedUser(context.Context) (any, error) {
	c.hit()
	return c.p.user, c.p.userErr
}

func (c *fakeClient) GetRepository(context.Context, string) (any, error) {
	c.hit()
	return c.p.repo, c.p.repoErr
}

func (c *fakeClient) GetRepositoryLanguages(_ context.Context, identifier string) (map[string]float64, error) {
	c.hit()
	c.p.mu.Lock()
	c.p.langRefs = append(c.p.langRefs, identifier)
	c.p.mu.Unlock()
	return c.p.languages, nil
}

func (c *fakeClient) ListUserRepositories(_ context.Context, page, perPage int) ([]any, model.Pagination, error) {
	c.hit()
	return c.p.items, c.p.page, c.p.listErr
}

// mapNormalizer reads flattened map payloads only.
type mapNormalizer struct{}

func (mapNormalizer) NormalizeUser(raw any) (*model.ProviderUser, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected %T", raw)
	}
	login, _ := m["login"].(string)
	return &model.ProviderUser{Username: login}, nil
}

func (mapNormalizer) NormalizeRepo(raw any, languages map[string]float64) (*model.NormalizedRepo, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected %T", raw)
	}
	id, _ := m["id"].(string)
	name, _ := m["full_name"].(string)
	names := []string{}
	for lang := range languages {
		names = append(names, lang)
	}
	return &model.NormalizedRepo{ID: id, FullName: name, DefaultBranch: "main", Languages: names}, nil
}

// --- Fixture ---

const (
	testOwner    = "owner-1"
	testToken    = "ghp_1234567890abcdef"
	testSecret   = "test-global-secret"
	testQueue    = "analysis"
	testPriority = 5
)

type fixture struct {
	cipher    *cipher.Cipher
	users     *fakeUserStore
	creds     *fakeCredentialStore
	repos     *fakeRepoStore
	jobs      *fakeJobQueue
	github    *fakeProvider
	vault     *VaultService
	ingestion *IngestionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	c, err := cipher.New(testSecret)
	require.NoError(t, err)

	f := &fixture{
		cipher: c,
		users:  newFakeUserStore(),
		creds:  &fakeCredentialStore{},
		repos:  &fakeRepoStore{},
		jobs:   &fakeJobQueue{},
		github: &fakeProvider{user: map[string]any{"login": "octocat"}},
	}

	registry := NewRegistry(map[model.ProviderTag]ProviderComponents{
		model.ProviderGitHub: {Factory: f.github, Normalizer: mapNormalizer{}},
	})
	f.vault = NewVaultService(f.users, f.creds, c, registry, nil)
	f.ingestion = NewIngestionService(f.vault, registry, f.repos, f.jobs, nil, testQueue, testPriority)

	_, _, err = f.vault.RegisterUser(context.Background(), testOwner)
	require.NoError(t, err)

	return f
}

// saltFor opens the owner's envelope the way the services do.
func (f *fixture) saltFor(t *testing.T, ownerID string) string {
	t.Helper()

	user, err := f.users.FindByOwnerID(context.Background(), ownerID)
	require.NoError(t, err)
	require.NotNil(t, user)

	salt, err := f.cipher.Decrypt(user.EncryptionSaltCiphertext)
	require.NoError(t, err)
	return salt
}
