// Package gitlab implements the ProviderClient and ResponseNormalizer ports
// for GitLab REST v4 using the go-gitlab library.
package gitlab

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	gl "github.com/xanzy/go-gitlab"

	"github.com/ericfisherdev/gitvault/internal/adapter/driven/payload"
	"github.com/ericfisherdev/gitvault/internal/apperror"
	"github.com/ericfisherdev/gitvault/internal/domain/model"
	"github.com/ericfisherdev/gitvault/internal/domain/port/driven"
)

const providerName = "gitlab"

// Compile-time interface satisfaction checks.
var (
	_ driven.ProviderClient = (*Client)(nil)
	_ driven.ClientFactory  = (*Factory)(nil)
)

// Client implements driven.ProviderClient for one GitLab token. Requests
// authenticate with the PRIVATE-TOKEN header.
type Client struct {
	gl *gl.Client
}

// NewClient creates a client. An empty baseURL means gitlab.com; the
// /api/v4 suffix is added when missing. go-gitlab's own retry loop is turned
// off so a failed call surfaces once.
func NewClient(httpClient *http.Client, baseURL, token string) (*Client, error) {
	client, err := gl.NewClient(token, clientOptions(httpClient, baseURL)...)
	if err != nil {
		return nil, fmt.Errorf("creating gitlab client: %w", err)
	}
	return &Client{gl: client}, nil
}

func clientOptions(httpClient *http.Client, baseURL string) []gl.ClientOptionFunc {
	opts := []gl.ClientOptionFunc{gl.WithoutRetries()}
	if httpClient != nil {
		opts = append(opts, gl.WithHTTPClient(httpClient))
	}
	if baseURL != "" {
		opts = append(opts, gl.WithBaseURL(baseURL))
	}
	return opts
}

// Factory builds Clients that share one http.Client and base URL.
type Factory struct {
	httpClient *http.Client
	baseURL    string
}

// NewFactory validates the options once so NewClient cannot fail later.
func NewFactory(httpClient *http.Client, baseURL string) (*Factory, error) {
	if _, err := NewClient(httpClient, baseURL, ""); err != nil {
		return nil, err
	}
	return &Factory{httpClient: httpClient, baseURL: baseURL}, nil
}

// NewClient binds a Client to token.
func (f *Factory) NewClient(token string) driven.ProviderClient {
	client, err := NewClient(f.httpClient, f.baseURL, token)
	if err != nil {
		// Unreachable after NewFactory validated the same options.
		return brokenClient{err: err}
	}
	return client
}

// GetAuthenticatedUser calls GET /api/v4/user and returns the *gitlab.User.
func (c *Client) GetAuthenticatedUser(ctx context.Context) (any, error) {
	user, resp, err := c.gl.Users.CurrentUser(gl.WithContext(ctx))
	if err != nil {
		return nil, classify("unable to fetch user", resp, err)
	}
	return user, nil
}

// GetRepository calls GET /api/v4/projects/{id} with statistics so storage
// size is populated. identifier is a numeric project id or a namespace path.
func (c *Client) GetRepository(ctx context.Context, identifier string) (any, error) {
	pid, err := projectID(identifier)
	if err != nil {
		return nil, err
	}

	project, resp, err := c.gl.Projects.GetProject(pid, &gl.GetProjectOptions{Statistics: gl.Ptr(true)}, gl.WithContext(ctx))
	if err != nil {
		return nil, classify("unable to fetch repository", resp, err)
	}
	return project, nil
}

// GetRepositoryLanguages calls GET /api/v4/projects/{id}/languages. GitLab
// reports percentages rather than bytes.
func (c *Client) GetRepositoryLanguages(ctx context.Context, identifier string) (map[string]float64, error) {
	pid, err := projectID(identifier)
	if err != nil {
		return nil, err
	}

	langs, resp, err := c.gl.Projects.GetProjectLanguages(pid, gl.WithContext(ctx))
	if err != nil {
		return nil, classify("unable to fetch repository languages", resp, err)
	}

	shares := make(map[string]float64)
	if langs != nil {
		for lang, pct := range *langs {
			shares[lang] = float64(pct)
		}
	}
	return shares, nil
}

// ListUserRepositories lists projects the token's user is a member of with at
// least Developer access.
func (c *Client) ListUserRepositories(ctx context.Context, page, perPage int) ([]any, model.Pagination, error) {
	page, perPage = payload.ClampPage(page, perPage)

	opts := &gl.ListProjectsOptions{
		ListOptions:    gl.ListOptions{Page: page, PerPage: perPage},
		Membership:     gl.Ptr(true),
		MinAccessLevel: gl.Ptr(gl.DeveloperPermissions),
	}

	projects, resp, err := c.gl.Projects.ListProjects(opts, gl.WithContext(ctx))
	if err != nil {
		return nil, model.Pagination{}, classify("unable to list repositories", resp, err)
	}

	items := make([]any, 0, len(projects))
	for _, p := range projects {
		items = append(items, p)
	}

	return items, pagination(page, perPage, len(projects), resp), nil
}

// pagination reads the X-Total, X-Total-Pages, X-Next-Page and X-Prev-Page
// headers go-gitlab already parsed. Missing headers degrade to a single page
// with no neighbours. GitLab drops the totals for large collections but keeps
// X-Next-Page; the totals are then lower bounds that include the next page.
func pagination(page, perPage, count int, resp *gl.Response) model.Pagination {
	p := model.Pagination{
		CurrentPage: page,
		PerPage:     perPage,
		TotalCount:  count,
		TotalPages:  1,
	}
	if resp == nil {
		return p
	}

	if resp.TotalItems > 0 {
		p.TotalCount = resp.TotalItems
	}
	if resp.TotalPages > 0 {
		p.TotalPages = resp.TotalPages
	}
	p.NextPage = payload.IntPtr(resp.NextPage)
	p.PrevPage = payload.IntPtr(resp.PreviousPage)
	p.HasNext = p.NextPage != nil
	p.HasPrev = p.PrevPage != nil

	if p.HasNext {
		if resp.TotalPages == 0 {
			p.TotalPages = max(page+1, resp.NextPage)
		}
		if resp.TotalItems == 0 {
			p.TotalCount = (page-1)*perPage + count
		}
	}
	return p
}

// projectID passes numeric ids through as ints; go-gitlab escapes path ids.
func projectID(identifier string) (any, error) {
	identifier = strings.Trim(strings.TrimSpace(identifier), "/")
	if id, err := strconv.Atoi(identifier); err == nil && id > 0 {
		return id, nil
	}

	parts := strings.Split(identifier, "/")
	if len(parts) < 2 {
		return nil, apperror.Validation("repo", fmt.Sprintf("invalid project %q: expected namespace/name or numeric id", identifier))
	}
	for _, part := range parts {
		if part == "" {
			return nil, apperror.Validation("repo", fmt.Sprintf("invalid project %q: empty path segment", identifier))
		}
	}
	return identifier, nil
}

// classify maps a go-gitlab failure onto the provider error taxonomy.
func classify(message string, resp *gl.Response, err error) error {
	status := 0
	if resp != nil && resp.Response != nil {
		status = resp.StatusCode
	} else {
		var errResp *gl.ErrorResponse
		if errors.As(err, &errResp) && errResp.Response != nil {
			status = errResp.Response.StatusCode
		}
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperror.ProviderAuth(providerName, message, err)
	case status == http.StatusNotFound:
		return &apperror.AppError{Kind: apperror.ErrNotFound, Message: fmt.Sprintf("%s: %s: not found", providerName, message), Cause: err}
	default:
		if status == http.StatusTooManyRequests {
			slog.Warn("gitlab rate limited", "status", status)
		}
		return apperror.ProviderUnavailable(providerName, message, err)
	}
}

// brokenClient reports a construction failure on every call.
type brokenClient struct {
	err error
}

func (b brokenClient) GetAuthenticatedUser(context.Context) (any, error) {
	return nil, apperror.ProviderUnavailable(providerName, "client not configured", b.err)
}

func (b brokenClient) GetRepository(context.Context, string) (any, error) {
	return nil, apperror.ProviderUnavailable(providerName, "client not configured", b.err)
}

func (b brokenClient) GetRepositoryLanguages(context.Context, string) (map[string]float64, error) {
	return nil, apperror.ProviderUnavailable(providerName, "client not configured", b.err)
}

func (b brokenClient) ListUserRepositories(context.Context, int, int) ([]any, model.Pagination, error) {
	return nil, model.Pagination{}, apperror.ProviderUnavailable(providerName, "client not configured", b.err)
}
