package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/fetchstore/internal/platform/logger"
	"github.com/phrazzld/fetchstore/internal/redact"
	"github.com/phrazzld/fetchstore/internal/store"
	"github.com/phrazzld/fetchstore/internal/task"
)

// PostgresTaskStore implements task.TaskStore on the tasks table. Rows read
// back for recovery are turned into executable tasks by the rehydrator.
type PostgresTaskStore struct {
	db         store.DBTX
	rehydrator task.TaskRehydrator
}

// NewPostgresTaskStore creates a new PostgresTaskStore
func NewPostgresTaskStore(db store.DBTX, rehydrator task.TaskRehydrator) *PostgresTaskStore {
	return &PostgresTaskStore{
		db:         db,
		rehydrator: rehydrator,
	}
}

// SaveTask inserts the task in the pending state
func (s *PostgresTaskStore) SaveTask(ctx context.Context, t task.Task) error {
	log := logger.FromContext(ctx)

	query := `
		INSERT INTO tasks (id, type, payload, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
	`

	payload := t.Payload()
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	_, err := s.db.ExecContext(ctx, query,
		t.ID(),
		t.Type(),
		payload,
		task.TaskStatusPending,
		time.Now().UTC(),
	)
	if err != nil {
		log.Error("failed to save task",
			"task_id", t.ID(),
			"task_type", t.Type(),
			"error", redact.Error(err))
		return store.NewStoreError("task", "save", "failed to save task", MapError(err))
	}

	return nil
}

// UpdateTaskStatus updates the status of a task
func (s *PostgresTaskStore) UpdateTaskStatus(
	ctx context.Context,
	taskID uuid.UUID,
	status task.TaskStatus,
	errorMsg string,
) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE tasks
		SET status = $1, error_message = NULLIF($2, ''), updated_at = $3
		WHERE id = $4
	`

	result, err := s.db.ExecContext(ctx, query, status, errorMsg, time.Now().UTC(), taskID)
	if err != nil {
		log.Error("failed to update task status",
			"task_id", taskID,
			"status", status,
			"error", redact.Error(err))
		return store.NewStoreError("task", "update", "failed to update task status", MapError(err))
	}

	if err := CheckRowsAffected(result, "task"); err != nil {
		if store.IsNotFoundError(err) {
			return fmt.Errorf("%w: %s", task.ErrTaskNotFound, taskID)
		}
		return err
	}

	return nil
}

// GetTask returns the stored record of a task
func (s *PostgresTaskStore) GetTask(ctx context.Context, taskID uuid.UUID) (task.TaskRecord, error) {
	query := `
		SELECT id, type, payload, status, error_message, created_at, updated_at
		FROM tasks
		WHERE id = $1
	`

	record, err := scanTaskRecord(s.db.QueryRowContext(ctx, query, taskID))
	if err != nil {
		if IsNotFoundError(err) {
			return task.TaskRecord{}, fmt.Errorf("%w: %s", task.ErrTaskNotFound, taskID)
		}
		return task.TaskRecord{}, store.NewStoreError("task", "get", "failed to load task", MapError(err))
	}
	return record, nil
}

// GetPendingTasks retrieves all tasks with "pending" status, oldest first
func (s *PostgresTaskStore) GetPendingTasks(ctx context.Context) ([]task.Task, error) {
	return s.getTasksByStatus(ctx, task.TaskStatusPending, 0)
}

// GetProcessingTasks retrieves tasks with "processing" status, oldest first
func (s *PostgresTaskStore) GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]task.Task, error) {
	return s.getTasksByStatus(ctx, task.TaskStatusProcessing, olderThan)
}

func (s *PostgresTaskStore) getTasksByStatus(
	ctx context.Context,
	status task.TaskStatus,
	olderThan time.Duration,
) ([]task.Task, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT id, type, payload, status, error_message, created_at, updated_at
		FROM tasks
		WHERE status = $1
		ORDER BY created_at ASC
	`
	args := []any{status}
	if olderThan > 0 {
		query = `
			SELECT id, type, payload, status, error_message, created_at, updated_at
			FROM tasks
			WHERE status = $1 AND updated_at < $2
			ORDER BY created_at ASC
		`
		args = append(args, time.Now().UTC().Add(-olderThan))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query tasks by status", "status", status, "error", redact.Error(err))
		return nil, store.NewStoreError("task", "list", "failed to query tasks by status", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var records []task.TaskRecord
	for rows.Next() {
		record, err := scanTaskRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}

	tasks := make([]task.Task, 0, len(records))
	for _, record := range records {
		t, err := s.rehydrate(record)
		if err != nil {
			// A row no factory understands would be recovered forever; park it.
			log.Error("failed to rehydrate task, marking it failed",
				"task_id", record.ID,
				"task_type", record.Type,
				"error", err)
			if updateErr := s.UpdateTaskStatus(ctx, record.ID, task.TaskStatusFailed, err.Error()); updateErr != nil {
				log.Error("failed to mark unreadable task as failed",
					"task_id", record.ID,
					"error", updateErr)
			}
			continue
		}
		tasks = append(tasks, t)
	}

	return tasks, nil
}

func (s *PostgresTaskStore) rehydrate(record task.TaskRecord) (task.Task, error) {
	if s.rehydrator == nil {
		return nil, errors.New("no task rehydrator configured")
	}
	return s.rehydrator.Rehydrate(record.ID, record.Type, record.Payload)
}

// WithTx returns a store bound to the given transaction
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) task.TaskStore {
	return &PostgresTaskStore{
		db:         tx,
		rehydrator: s.rehydrator,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTaskRecord(row rowScanner) (task.TaskRecord, error) {
	var (
		record       task.TaskRecord
		status       string
		errorMessage sql.NullString
	)
	if err := row.Scan(
		&record.ID,
		&record.Type,
		&record.Payload,
		&status,
		&errorMessage,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return task.TaskRecord{}, err
	}
	record.Status = task.TaskStatus(status)
	record.ErrorMessage = errorMessage.String
	return record, nil
}

var _ task.TaskStore = (*PostgresTaskStore)(nil)
