package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/ericfisherdev/gitvault/internal/domain/model"
)

// setupTestDB creates a named shared in-memory SQLite database for testing.
// Writer and reader connections share the same in-memory database via cache=shared.
// A unique name derived from t.Name() ensures isolation between parallel tests.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	// Percent-encode the test name so it's a safe SQLite URI filename component
	// and cannot be misinterpreted as query parameters in the "file:%s?..." DSN.
	safeName := url.PathEscape(t.Name())
	// WAL mode is not applicable to in-memory databases; omit journal_mode pragma.
	dsn := fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=cache_size(-64000)",
		safeName,
	)

	writer, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("create test db writer: %v", err)
	}
	writer.SetMaxOpenConns(1)
	if err := writer.PingContext(context.Background()); err != nil {
		_ = writer.Close()
		t.Fatalf("ping test db writer: %v", err)
	}

	reader, err := sql.Open("sqlite", dsn)
	if err != nil {
		_ = writer.Close()
		t.Fatalf("create test db reader: %v", err)
	}
	reader.SetMaxOpenConns(4)
	if err := reader.PingContext(context.Background()); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		t.Fatalf("ping test db reader: %v", err)
	}

	db := &DB{Writer: writer, Reader: reader, path: dsn}

	if err := RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		t.Fatalf("run migrations: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })

	return db
}

// seedUser inserts an owner so credential rows satisfy the foreign key.
func seedUser(t *testing.T, db *DB, ownerID string) {
	t.Helper()

	_, err := NewUserRepo(db).Create(context.Background(), model.User{OwnerID: ownerID, EncryptionSaltCiphertext: "salt-" + ownerID})
	if err != nil {
		t.Fatalf("seed user %s: %v", ownerID, err)
	}
}

// queuedJob is a jobs row as the analysis worker reads it.
type queuedJob struct {
	ID        string
	Queue     string
	Priority  int
	OwnerID   string
	Status    model.JobStatus
	Envelope  model.JobEnvelope
	CreatedAt time.Time
}

// listQueued returns queued jobs for queueName, highest priority first.
func listQueued(t *testing.T, db *DB, queueName string) []queuedJob {
	t.Helper()

	const query = `SELECT id, queue, priority, owner_id, status, payload, created_at FROM jobs
		WHERE queue = ? AND status = ? ORDER BY priority DESC, created_at`

	rows, err := db.Reader.QueryContext(context.Background(), query, queueName, string(model.JobStatusQueued))
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	defer rows.Close()

	jobs := []queuedJob{}
	for rows.Next() {
		var job queuedJob
		var status, body, createdAt string
		if err := rows.Scan(&job.ID, &job.Queue, &job.Priority, &job.OwnerID, &status, &body, &createdAt); err != nil {
			t.Fatalf("scan job: %v", err)
		}
		job.Status = model.JobStatus(status)
		if err := json.Unmarshal([]byte(body), &job.Envelope); err != nil {
			t.Fatalf("decode job %s: %v", job.ID, err)
		}
		if job.CreatedAt, err = parseTime(createdAt); err != nil {
			t.Fatalf("parse created_at: %v", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("iterate jobs: %v", err)
	}
	return jobs
}
