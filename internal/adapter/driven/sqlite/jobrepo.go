package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/gitvault/internal/domain/model"
	"github.com/ericfisherdev/gitvault/internal/domain/port/driven"
)

var _ driven.JobQueue = (*JobRepo)(nil)

// JobRepo is a durable job queue backed by the jobs table. Workers claim rows
// by queue, status and priority in a separate process; this one only inserts.
type JobRepo struct {
	db *DB
}

// NewJobRepo creates a new JobRepo backed by the given DB.
func NewJobRepo(db *DB) *JobRepo {
	return &JobRepo{db: db}
}

// Enqueue stores the job as queued and returns its id.
func (r *JobRepo) Enqueue(ctx context.Context, queueName string, job model.JobEnvelope, priority int, ownerID string) (string, error) {
	body, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("encode job: %w", err)
	}

	id := uuid.NewString()
	const query = `INSERT INTO jobs (id, queue, job_type, priority, owner_id, payload, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.Writer.ExecContext(ctx, query,
		id, queueName, string(job.JobType), priority, ownerID, string(body),
		string(model.JobStatusQueued), formatTime(time.Now()),
	)
	if err != nil {
		return "", fmt.Errorf("enqueue %s job: %w", job.JobType, err)
	}

	return id, nil
}
