package driven

import (
	"context"

	"github.com/ericfisherdev/gitvault/internal/domain/model"
)

// JobQueue accepts job descriptions for asynchronous workers. Enqueue returns
// as soon as the job is durable; it never waits for the job to run.
type JobQueue interface {
	Enqueue(ctx context.Context, queueName string, job model.JobEnvelope, priority int, ownerID string) (string, error)
}
