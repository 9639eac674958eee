// Package github implements the ProviderClient and ResponseNormalizer ports
// for GitHub using the go-github library.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/gitvault/internal/adapter/driven/payload"
	"github.com/ericfisherdev/gitvault/internal/apperror"
	"github.com/ericfisherdev/gitvault/internal/domain/model"
	"github.com/ericfisherdev/gitvault/internal/domain/port/driven"
)

const providerName = "github"

// Compile-time interface satisfaction checks.
var (
	_ driven.ProviderClient = (*Client)(nil)
	_ driven.ClientFactory  = (*Factory)(nil)
)

// Client implements driven.ProviderClient for one GitHub token.
type Client struct {
	gh *gh.Client
}

// NewClient creates a client for api.github.com. httpClient carries the
// per-call timeout; it is shared across tokens.
func NewClient(httpClient *http.Client, token string) *Client {
	return &Client{gh: gh.NewClient(httpClient).WithAuthToken(token)}
}

// NewClientWithBaseURL creates a client against a GitHub Enterprise API root
// or an httptest server.
func NewClientWithBaseURL(httpClient *http.Client, baseURL, token string) (*Client, error) {
	u, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	return newClient(httpClient, u, token), nil
}

func newClient(httpClient *http.Client, baseURL *url.URL, token string) *Client {
	client := gh.NewClient(httpClient).WithAuthToken(token)
	if baseURL != nil {
		u := *baseURL
		client.BaseURL = &u
	}
	return &Client{gh: client}
}

func parseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("parsing base URL %q: scheme and host are required", raw)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u, nil
}

// Factory builds Clients that share one http.Client and base URL.
type Factory struct {
	httpClient *http.Client
	baseURL    *url.URL
}

// NewFactory validates baseURL up front; an empty baseURL means api.github.com.
func NewFactory(httpClient *http.Client, baseURL string) (*Factory, error) {
	f := &Factory{httpClient: httpClient}
	if baseURL != "" {
		u, err := parseBaseURL(baseURL)
		if err != nil {
			return nil, err
		}
		f.baseURL = u
	}
	return f, nil
}

// NewClient binds a Client to token.
func (f *Factory) NewClient(token string) driven.ProviderClient {
	return newClient(f.httpClient, f.baseURL, token)
}

// GetAuthenticatedUser calls GET /user and returns the *github.User.
func (c *Client) GetAuthenticatedUser(ctx context.Context) (any, error) {
	user, resp, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		return nil, classify("unable to fetch user", resp, err)
	}
	logRateLimit(resp, "user")
	return user, nil
}

// GetRepository resolves identifier as a numeric repository id or an
// owner/repo path and returns the *github.Repository.
func (c *Client) GetRepository(ctx context.Context, identifier string) (any, error) {
	return c.getRepository(ctx, identifier)
}

func (c *Client) getRepository(ctx context.Context, identifier string) (*gh.Repository, error) {
	identifier = strings.TrimSpace(identifier)

	var (
		repo *gh.Repository
		resp *gh.Response
		err  error
	)
	if id, ok := numericID(identifier); ok {
		repo, resp, err = c.gh.Repositories.GetByID(ctx, id)
	} else {
		owner, name, splitErr := splitRepo(identifier)
		if splitErr != nil {
			return nil, splitErr
		}
		repo, resp, err = c.gh.Repositories.Get(ctx, owner, name)
	}
	if err != nil {
		return nil, classify("unable to fetch repository", resp, err)
	}
	logRateLimit(resp, "repository")
	return repo, nil
}

// GetRepositoryLanguages calls GET /repos/{owner}/{repo}/languages. A numeric
// identifier is first resolved to its full name.
func (c *Client) GetRepositoryLanguages(ctx context.Context, identifier string) (map[string]float64, error) {
	fullName := strings.TrimSpace(identifier)
	if _, ok := numericID(fullName); ok {
		repo, err := c.getRepository(ctx, fullName)
		if err != nil {
			return nil, err
		}
		fullName = repo.GetFullName()
	}

	owner, name, err := splitRepo(fullName)
	if err != nil {
		return nil, err
	}

	langs, resp, err := c.gh.Repositories.ListLanguages(ctx, owner, name)
	if err != nil {
		return nil, classify("unable to fetch repository languages", resp, err)
	}
	logRateLimit(resp, "languages")

	shares := make(map[string]float64, len(langs))
	for lang, bytes := range langs {
		shares[lang] = float64(payload.NonNegative(bytes))
	}
	return shares, nil
}

// ListUserRepositories calls GET /user/repos for one page. GitHub does not
// report a total for this endpoint, so it is reconstructed from the Link
// header; see pagination.
func (c *Client) ListUserRepositories(ctx context.Context, page, perPage int) ([]any, model.Pagination, error) {
	page, perPage = payload.ClampPage(page, perPage)

	opts := &gh.RepositoryListByAuthenticatedUserOptions{
		Sort:        "updated",
		ListOptions: gh.ListOptions{Page: page, PerPage: perPage},
	}

	repos, resp, err := c.gh.Repositories.ListByAuthenticatedUser(ctx, opts)
	if err != nil {
		return nil, model.Pagination{}, classify("unable to list repositories", resp, err)
	}
	logRateLimit(resp, "user/repos")

	items := make([]any, 0, len(repos))
	for _, r := range repos {
		items = append(items, r)
	}

	var nextPage, lastPage int
	if resp != nil {
		nextPage, lastPage = resp.NextPage, resp.LastPage
	}
	return items, pagination(page, perPage, len(repos), nextPage, lastPage), nil
}

// pagination estimates total_count from the Link header and derives the rest
// from it. On the last page the count is exact; otherwise it is the upper
// bound implied by rel="last". An empty page past the end says nothing about
// earlier pages, so only rel="last" counts there.
func pagination(page, perPage, count, nextPage, lastPage int) model.Pagination {
	var totalCount int
	switch {
	case count == 0 && page > 1:
		totalCount = lastPage * perPage
	case nextPage == 0:
		totalCount = (page-1)*perPage + count
	case lastPage > 0:
		totalCount = lastPage * perPage
	default:
		totalCount = nextPage * perPage
	}

	totalPages := (totalCount + perPage - 1) / perPage

	p := model.Pagination{
		CurrentPage: page,
		PerPage:     perPage,
		TotalCount:  totalCount,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrev:     page > 1,
	}
	if p.HasNext {
		p.NextPage = payload.IntPtr(page + 1)
	}
	if p.HasPrev {
		p.PrevPage = payload.IntPtr(page - 1)
	}
	return p
}

// classify maps a go-github failure onto the provider error taxonomy. The
// go-github error is kept as the cause for server-side logs only.
func classify(message string, resp *gh.Response, err error) error {
	var rateErr *gh.RateLimitError
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return apperror.ProviderUnavailable(providerName, message+": rate limited", err)
	}

	status := 0
	if resp != nil && resp.Response != nil {
		status = resp.StatusCode
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperror.ProviderAuth(providerName, message, err)
	case status == http.StatusNotFound:
		return &apperror.AppError{Kind: apperror.ErrNotFound, Message: fmt.Sprintf("%s: %s: not found", providerName, message), Cause: err}
	default:
		return apperror.ProviderUnavailable(providerName, message, err)
	}
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

func numericID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// splitRepo splits a "owner/repo" string into its two components.
func splitRepo(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" || strings.Contains(parts[1], "/") {
		return "", "", apperror.Validation("repo", fmt.Sprintf("invalid repository %q: expected owner/repo or numeric id", fullName))
	}
	return parts[0], parts[1], nil
}
