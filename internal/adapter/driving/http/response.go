package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ericfisherdev/gitvault/internal/apperror"
	"github.com/ericfisherdev/gitvault/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"service unavailable"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeAppError maps the error taxonomy onto a status code. Internal and
// decryption failures are logged with their cause and reported opaquely.
func writeAppError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		logger.Error("request failed", "error", err)
		writeError(w, status, "service unavailable")
		return
	}

	resp := errorResponse{Error: err.Error()}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		resp.Error = appErr.Message
		resp.Field = appErr.Field
	}
	writeJSON(w, status, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperror.ErrValidation), errors.Is(err, apperror.ErrUnsupportedProvider):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperror.ErrProviderAuth):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperror.ErrProviderUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// AddCredentialRequest is the JSON body for creating a git label.
type AddCredentialRequest struct {
	Label    string `json:"label"`
	Provider string `json:"provider"`
	Token    string `json:"token"`
}

// CredentialResponse is the display form of a git label. It never carries
// the token or its ciphertext.
type CredentialResponse struct {
	ID               string `json:"id"`
	Label            string `json:"label"`
	Provider         string `json:"provider"`
	MaskedToken      string `json:"masked_token"`
	ProviderUsername string `json:"provider_username"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

// CredentialListResponse is one page of git labels.
type CredentialListResponse struct {
	Items []CredentialResponse `json:"items"`
	Total int                  `json:"total"`
}

// NormalizedRepoResponse is a provider repository as listed through a git label.
type NormalizedRepoResponse struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	FullName      string   `json:"full_name"`
	Description   *string  `json:"description"`
	URL           string   `json:"url"`
	DefaultBranch string   `json:"default_branch"`
	ForksCount    int      `json:"forks_count"`
	StarsCount    int      `json:"stars_count"`
	SizeKB        int64    `json:"size"`
	CreatedAt     *string  `json:"created_at"`
	Private       bool     `json:"private"`
	Languages     []string `json:"languages"`
}

// PaginationResponse is the provider-independent pagination descriptor.
type PaginationResponse struct {
	CurrentPage int  `json:"current_page"`
	PerPage     int  `json:"per_page"`
	TotalCount  int  `json:"total_count"`
	TotalPages  int  `json:"total_pages"`
	HasNext     bool `json:"has_next"`
	HasPrev     bool `json:"has_prev"`
	NextPage    *int `json:"next_page"`
	PrevPage    *int `json:"prev_page"`
}

// ProviderRepoListResponse is the body of the provider repository listing.
type ProviderRepoListResponse struct {
	Total      int                      `json:"total"`
	Items      []NormalizedRepoResponse `json:"items"`
	Pagination PaginationResponse       `json:"pagination"`
}

// AddRepoRequest is the JSON body for importing one repository.
type AddRepoRequest struct {
	GitLabelID string `json:"git_label_id"`
	Repo       string `json:"repo"`
}

// RepositoryResponse is an imported repository.
type RepositoryResponse struct {
	ID                string   `json:"id"`
	GitLabelID        string   `json:"git_label_id"`
	Provider          string   `json:"provider"`
	ProviderRepoID    string   `json:"provider_repo_id"`
	Name              string   `json:"name"`
	FullName          string   `json:"full_name"`
	Description       *string  `json:"description"`
	URL               string   `json:"url"`
	DefaultBranch     string   `json:"default_branch"`
	ForksCount        int      `json:"forks_count"`
	StarsCount        int      `json:"stars_count"`
	SizeKB            int64    `json:"size"`
	Private           bool     `json:"private"`
	Languages         []string `json:"languages"`
	ProviderCreatedAt *string  `json:"provider_created_at"`
	AddedAt           string   `json:"added_at"`
}

// RepositoryListResponse is one page of imported repositories.
type RepositoryListResponse struct {
	Items []RepositoryResponse `json:"items"`
	Total int                  `json:"total"`
}

// AnalysisResponse acknowledges a queued analysis job.
type AnalysisResponse struct {
	JobID string `json:"job_id"`
}

// UserResponse is the result of owner registration.
type UserResponse struct {
	OwnerID   string `json:"owner_id"`
	Created   bool   `json:"created"`
	CreatedAt string `json:"created_at"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatOptTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func toCredentialResponse(c model.Credential) CredentialResponse {
	return CredentialResponse{
		ID:               c.ID,
		Label:            c.Label,
		Provider:         string(c.Provider),
		MaskedToken:      c.MaskedToken,
		ProviderUsername: c.ProviderUsername,
		CreatedAt:        formatTime(c.CreatedAt),
		UpdatedAt:        formatTime(c.UpdatedAt),
	}
}

func toNormalizedRepoResponse(r model.NormalizedRepo) NormalizedRepoResponse {
	return NormalizedRepoResponse{
		ID:            r.ID,
		Name:          r.Name,
		FullName:      r.FullName,
		Description:   r.Description,
		URL:           r.URL,
		DefaultBranch: r.DefaultBranch,
		ForksCount:    r.ForksCount,
		StarsCount:    r.StarsCount,
		SizeKB:        r.SizeKB,
		CreatedAt:     formatOptTime(r.CreatedAt),
		Private:       r.Private,
		Languages:     nonNilStrings(r.Languages),
	}
}

func toPaginationResponse(p model.Pagination) PaginationResponse {
	return PaginationResponse{
		CurrentPage: p.CurrentPage,
		PerPage:     p.PerPage,
		TotalCount:  p.TotalCount,
		TotalPages:  p.TotalPages,
		HasNext:     p.HasNext,
		HasPrev:     p.HasPrev,
		NextPage:    p.NextPage,
		PrevPage:    p.PrevPage,
	}
}

func toRepositoryResponse(r model.Repository) RepositoryResponse {
	return RepositoryResponse{
		ID:                r.ID,
		GitLabelID:        r.CredentialID,
		Provider:          string(r.Provider),
		ProviderRepoID:    r.ProviderRepoID,
		Name:              r.Name,
		FullName:          r.FullName,
		Description:       r.Description,
		URL:               r.URL,
		DefaultBranch:     r.DefaultBranch,
		ForksCount:        r.ForksCount,
		StarsCount:        r.StarsCount,
		SizeKB:            r.SizeKB,
		Private:           r.Private,
		Languages:         nonNilStrings(r.Languages),
		ProviderCreatedAt: formatOptTime(r.ProviderCreatedAt),
		AddedAt:           formatTime(r.AddedAt),
	}
}
