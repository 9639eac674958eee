package application

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ericfisherdev/gitvault/internal/apperror"
	"github.com/ericfisherdev/gitvault/internal/domain/model"
	"github.com/ericfisherdev/gitvault/internal/domain/port/driven"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	ProviderRequestsTotal   *prometheus.CounterVec
	ProviderRequestDuration *prometheus.HistogramVec
	CredentialsTotal        *prometheus.CounterVec
	JobsEnqueuedTotal       *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ProviderRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gitvault",
			Subsystem: "provider",
			Name:      "requests_total",
			Help:      "Total provider API calls.",
		}, []string{"provider", "operation", "outcome"}),

		ProviderRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gitvault",
			Subsystem: "provider",
			Name:      "request_duration_seconds",
			Help:      "Provider API call duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"provider", "operation"}),

		CredentialsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gitvault",
			Name:      "credentials_total",
			Help:      "Credential operations by outcome.",
		}, []string{"operation", "outcome"}),

		JobsEnqueuedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gitvault",
			Name:      "jobs_enqueued_total",
			Help:      "Analysis jobs handed to the queue.",
		}, []string{"provider"}),
	}

	reg.MustRegister(
		m.ProviderRequestsTotal,
		m.ProviderRequestDuration,
		m.CredentialsTotal,
		m.JobsEnqueuedTotal,
	)

	return m
}

func (m *Metrics) observeProvider(provider model.ProviderTag, operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.ProviderRequestsTotal.WithLabelValues(string(provider), operation, outcome(err)).Inc()
	m.ProviderRequestDuration.WithLabelValues(string(provider), operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) credentialOp(operation string, err error) {
	if m == nil {
		return
	}
	m.CredentialsTotal.WithLabelValues(operation, outcome(err)).Inc()
}

func (m *Metrics) jobEnqueued(provider model.ProviderTag) {
	if m == nil {
		return
	}
	m.JobsEnqueuedTotal.WithLabelValues(string(provider)).Inc()
}

// outcome turns an error into a low-cardinality label value.
func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, apperror.ErrValidation):
		return "validation"
	case errors.Is(err, apperror.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return "conflict"
	case errors.Is(err, apperror.ErrProviderAuth):
		return "provider_auth"
	case errors.Is(err, apperror.ErrProviderUnavailable):
		return "provider_unavailable"
	case errors.Is(err, apperror.ErrUnsupportedProvider):
		return "unsupported_provider"
	case errors.Is(err, apperror.ErrDecryption):
		return "decryption"
	default:
		return "error"
	}
}

// instrumentedClient records a counter and latency sample per provider call.
type instrumentedClient struct {
	next     driven.ProviderClient
	provider model.ProviderTag
	metrics  *Metrics
}

func instrument(next driven.ProviderClient, provider model.ProviderTag, m *Metrics) driven.ProviderClient {
	if m == nil {
		return next
	}
	return &instrumentedClient{next: next, provider: provider, metrics: m}
}

func (c *instrumentedClient) GetAuthenticatedUser(ctx context.Context) (any, error) {
	start := time.Now()
	user, err := c.next.GetAuthenticatedUser(ctx)
	c.metrics.observeProvider(c.provider, "get_user", start, err)
	return user, err
}

func (c *instrumentedClient) GetRepository(ctx context.Context, identifier string) (any, error) {
	start := time.Now()
	repo, err := c.next.GetRepository(ctx, identifier)
	c.metrics.observeProvider(c.provider, "get_repository", start, err)
	return repo, err
}

func (c *instrumentedClient) GetRepositoryLanguages(ctx context.Context, identifier string) (map[string]float64, error) {
	start := time.Now()
	langs, err := c.next.GetRepositoryLanguages(ctx, identifier)
	c.metrics.observeProvider(c.provider, "get_languages", start, err)
	return langs, err
}

func (c *instrumentedClient) ListUserRepositories(ctx context.Context, page, perPage int) ([]any, model.Pagination, error) {
	start := time.Now()
	items, p, err := c.next.ListUserRepositories(ctx, page, perPage)
	c.metrics.observeProvider(c.provider, "list_repositories", start, err)
	return items, p, err
}
