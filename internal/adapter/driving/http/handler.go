// Package httphandler is the REST driving adapter for the vault and
// ingestion services.
package httphandler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ericfisherdev/gitvault/internal/apperror"
	"github.com/ericfisherdev/gitvault/internal/domain/model"
)

const (
	maxBodyBytes   = 1 << 20
	defaultPerPage = 30
)

// CredentialVault is the subset of application.VaultService the handler uses.
type CredentialVault interface {
	RegisterUser(ctx context.Context, ownerID string) (*model.User, bool, error)
	Add(ctx context.Context, ownerID, label string, provider model.ProviderTag, token string) (*model.Credential, error)
	Get(ctx context.Context, id, ownerID string) (*model.Credential, error)
	List(ctx context.Context, ownerID string, offset, limit int, provider model.ProviderTag) (model.CredentialPage, error)
	Delete(ctx context.Context, id, ownerID string) (int64, error)
}

// RepositoryIngestion is the subset of application.IngestionService the handler uses.
type RepositoryIngestion interface {
	FetchProviderRepos(ctx context.Context, ownerID, credentialID string, page, perPage int) (model.RepoListing, error)
	AddSingleRepo(ctx context.Context, ownerID, credentialID, pathOrID string) (*model.Repository, error)
	ListRepos(ctx context.Context, ownerID string, offset, limit int) (model.RepositoryPage, error)
	ScheduleAnalysis(ctx context.Context, ownerID, repoID string) (string, error)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	vault     CredentialVault
	ingestion RepositoryIngestion
	db        Pinger
	logger    *slog.Logger
}

// NewHandler creates a Handler. db may be nil, in which case health always
// reports ok.
func NewHandler(vault CredentialVault, ingestion RepositoryIngestion, db Pinger, logger *slog.Logger) *Handler {
	return &Handler{
		vault:     vault,
		ingestion: ingestion,
		db:        db,
		logger:    logger,
	}
}

// NewServeMux registers every route. API routes require a bearer token;
// health and metrics do not. gatherer may be nil to omit /metrics.
func NewServeMux(h *Handler, authn *Authenticator, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	authed := func(fn http.HandlerFunc) http.Handler {
		return authMiddleware(authn, logger, fn)
	}

	mux.Handle("POST /api/v1/me", authed(h.RegisterUser))
	mux.Handle("POST /api/v1/git-labels", authed(h.AddCredential))
	mux.Handle("GET /api/v1/git-labels", authed(h.ListCredentials))
	mux.Handle("GET /api/v1/git-labels/{id}", authed(h.GetCredential))
	mux.Handle("DELETE /api/v1/git-labels/{id}", authed(h.DeleteCredential))
	mux.Handle("GET /api/v1/git-labels/{id}/repos", authed(h.FetchProviderRepos))
	mux.Handle("POST /api/v1/repos", authed(h.AddRepo))
	mux.Handle("GET /api/v1/repos", authed(h.ListRepos))
	mux.Handle("POST /api/v1/repos/{id}/analysis", authed(h.ScheduleAnalysis))
	mux.HandleFunc("GET /api/v1/health", h.Health)
	if gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// RegisterUser creates the caller's secret envelope if needed.
func (h *Handler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := OwnerID(r.Context())

	user, created, err := h.vault.RegisterUser(r.Context(), ownerID)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, UserResponse{
		OwnerID:   user.OwnerID,
		Created:   created,
		CreatedAt: formatTime(user.CreatedAt),
	})
}

// AddCredential validates and stores a new git label.
func (h *Handler) AddCredential(w http.ResponseWriter, r *http.Request) {
	var req AddCredentialRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ownerID, _ := OwnerID(r.Context())

	cred, err := h.vault.Add(r.Context(), ownerID, req.Label, model.ProviderTag(req.Provider), req.Token)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCredentialResponse(*cred))
}

// ListCredentials returns one page of the caller's git labels.
func (h *Handler) ListCredentials(w http.ResponseWriter, r *http.Request) {
	offset, ok := intQuery(w, r, "offset", 0)
	if !ok {
		return
	}
	limit, ok := intQuery(w, r, "limit", 0)
	if !ok {
		return
	}
	ownerID, _ := OwnerID(r.Context())
	provider := model.ProviderTag(r.URL.Query().Get("provider"))

	page, err := h.vault.List(r.Context(), ownerID, offset, limit, provider)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	resp := CredentialListResponse{Items: make([]CredentialResponse, 0, len(page.Items)), Total: page.Total}
	for _, c := range page.Items {
		resp.Items = append(resp.Items, toCredentialResponse(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetCredential returns one git label in masked form.
func (h *Handler) GetCredential(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := OwnerID(r.Context())

	cred, err := h.vault.Get(r.Context(), r.PathValue("id"), ownerID)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toCredentialResponse(*cred))
}

// DeleteCredential removes a git label. Deleting nothing is a 404.
func (h *Handler) DeleteCredential(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := OwnerID(r.Context())

	n, err := h.vault.Delete(r.Context(), r.PathValue("id"), ownerID)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	if n == 0 {
		writeAppError(w, h.logger, apperror.NotFound("git label"))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// FetchProviderRepos lists repositories visible through a git label.
func (h *Handler) FetchProviderRepos(w http.ResponseWriter, r *http.Request) {
	page, ok := intQuery(w, r, "page", 1)
	if !ok {
		return
	}
	perPage, ok := intQuery(w, r, "per_page", defaultPerPage)
	if !ok {
		return
	}
	ownerID, _ := OwnerID(r.Context())

	listing, err := h.ingestion.FetchProviderRepos(r.Context(), ownerID, r.PathValue("id"), page, perPage)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	resp := ProviderRepoListResponse{
		Total:      listing.TotalCount,
		Items:      make([]NormalizedRepoResponse, 0, len(listing.Items)),
		Pagination: toPaginationResponse(listing.Pagination),
	}
	for _, repo := range listing.Items {
		resp.Items = append(resp.Items, toNormalizedRepoResponse(repo))
	}
	writeJSON(w, http.StatusOK, resp)
}

// AddRepo imports one repository through a git label.
func (h *Handler) AddRepo(w http.ResponseWriter, r *http.Request) {
	var req AddRepoRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.GitLabelID == "" {
		writeAppError(w, h.logger, apperror.Validation("git_label_id", "git_label_id is required"))
		return
	}
	ownerID, _ := OwnerID(r.Context())

	repo, err := h.ingestion.AddSingleRepo(r.Context(), ownerID, req.GitLabelID, req.Repo)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toRepositoryResponse(*repo))
}

// ListRepos returns the caller's imported repositories.
func (h *Handler) ListRepos(w http.ResponseWriter, r *http.Request) {
	offset, ok := intQuery(w, r, "offset", 0)
	if !ok {
		return
	}
	limit, ok := intQuery(w, r, "limit", 0)
	if !ok {
		return
	}
	ownerID, _ := OwnerID(r.Context())

	page, err := h.ingestion.ListRepos(r.Context(), ownerID, offset, limit)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	resp := RepositoryListResponse{Items: make([]RepositoryResponse, 0, len(page.Items)), Total: page.Total}
	for _, repo := range page.Items {
		resp.Items = append(resp.Items, toRepositoryResponse(repo))
	}
	writeJSON(w, http.StatusOK, resp)
}

// ScheduleAnalysis queues an analysis job and answers 202 with its id.
func (h *Handler) ScheduleAnalysis(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := OwnerID(r.Context())

	jobID, err := h.ingestion.ScheduleAnalysis(r.Context(), ownerID, r.PathValue("id"))
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusAccepted, AnalysisResponse{JobID: jobID})
}

// Health reports whether the service and its database are reachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Time: formatTime(time.Now())}

	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			h.logger.Error("health check failed", "error", err)
			resp.Status = "unavailable"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// decodeBody reads a JSON body of at most maxBodyBytes into v. It writes a
// 400 and returns false on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// intQuery parses an optional integer query parameter.
func intQuery(w http.ResponseWriter, r *http.Request, key string, fallback int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid " + key, Field: key})
		return 0, false
	}
	return n, true
}
