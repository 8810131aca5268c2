package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"ffui/internal/config"
)

// Store persists jobs in SQLite so the queue survives daemon restarts.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the queue database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.QueueDatabasePath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

const jobColumns = "id, filename, job_type, source, status, progress, queue_position, " +
	"input_path, output_path, original_size_mb, output_size_mb, preset, " +
	"created_at_ms, file_created_ms, file_modified_ms, start_time_ms, end_time_ms, " +
	"processing_started_ms, elapsed_ms, " +
	"estimated_seconds, command, media_info_json, preview_path, preview_revision, " +
	"failure_reason, skip_reason, log_head_json, log_tail, warnings_json, batch_id, " +
	"wait_metadata_json"

// Upsert writes a job, replacing any existing row with the same id.
// The job's QueueOrder is persisted as its scheduling position.
func (s *Store) Upsert(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return upsertJobTx(ctx, tx, job)
	})
}

// UpsertAll writes a batch of jobs in one transaction.
func (s *Store) UpsertAll(ctx context.Context, jobs []*Job) error {
	if len(jobs) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, job := range jobs {
			if job == nil {
				continue
			}
			if err := upsertJobTx(ctx, tx, job); err != nil {
				return err
			}
		}
		return nil
	})
}

// Replace rewrites the entire jobs table from the given set in one
// transaction. Used when the in-memory queue is the source of truth and rows
// for removed jobs must go away too.
func (s *Store) Replace(ctx context.Context, jobs []*Job) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM jobs`); err != nil {
			return fmt.Errorf("clear jobs: %w", err)
		}
		for _, job := range jobs {
			if job == nil {
				continue
			}
			if err := upsertJobTx(ctx, tx, job); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes jobs by id and reports how many rows went away.
func (s *Store) Delete(ctx context.Context, ids ...string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := makePlaceholders(len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("delete jobs: %w", err)
	}
	return res.RowsAffected()
}

// GetByID fetches a job by identifier. Returns nil when absent.
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// FindByInputPath returns the first job whose input resolves to the given
// path, used to dedupe scanner submissions.
func (s *Store) FindByInputPath(ctx context.Context, inputPath string) (*Job, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE input_path = ? ORDER BY created_at_ms LIMIT 1`,
		inputPath,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by input path: %w", err)
	}
	return job, nil
}

// LoadAll returns every persisted job, scheduling queue first in position
// order, then the rest in enqueue order.
func (s *Store) LoadAll(ctx context.Context) ([]*Job, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs
         ORDER BY queue_position IS NULL, queue_position, created_at_ms`,
	)
	if err != nil {
		return nil, fmt.Errorf("load jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// ClearTerminal removes completed, failed, skipped, and cancelled jobs.
func (s *Store) ClearTerminal(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM jobs WHERE status IN (?, ?, ?, ?)`,
		StatusCompleted, StatusFailed, StatusSkipped, StatusCancelled,
	)
	if err != nil {
		return 0, fmt.Errorf("clear terminal jobs: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes all jobs from the queue.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func upsertJobTx(ctx context.Context, tx *sql.Tx, job *Job) error {
	mediaJSON, err := marshalColumn(job.Media)
	if err != nil {
		return fmt.Errorf("marshal media info: %w", err)
	}
	waitJSON, err := marshalColumn(job.WaitMetadata)
	if err != nil {
		return fmt.Errorf("marshal wait metadata: %w", err)
	}
	logHeadJSON, err := marshalColumn(job.LogHead)
	if err != nil {
		return fmt.Errorf("marshal log head: %w", err)
	}
	warningsJSON, err := marshalColumn(job.Warnings)
	if err != nil {
		return fmt.Errorf("marshal warnings: %w", err)
	}

	_, err = tx.ExecContext(
		ctx,
		`INSERT OR REPLACE INTO jobs (
            id, filename, job_type, source, status, progress, queue_position,
            input_path, output_path, original_size_mb, output_size_mb, preset,
            created_at_ms, file_created_ms, file_modified_ms, start_time_ms, end_time_ms,
            processing_started_ms, elapsed_ms,
            estimated_seconds, command, media_info_json, preview_path, preview_revision,
            failure_reason, skip_reason, log_head_json, log_tail, warnings_json, batch_id,
            wait_metadata_json, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.Filename,
		job.Type,
		job.Source,
		job.Status,
		job.Progress,
		nullableUint(job.QueueOrder),
		nullableString(job.InputPath),
		nullableString(job.OutputPath),
		job.OriginalSizeMB,
		nullableFloat(job.OutputSizeMB),
		nullableString(job.Preset),
		job.CreatedAtMs,
		nullableInt(job.CreatedTimeMs),
		nullableInt(job.ModifiedTimeMs),
		nullableInt(job.StartTimeMs),
		nullableInt(job.EndTimeMs),
		nullableInt(job.ProcessingStartedMs),
		nullableInt(job.ElapsedMs),
		nullableFloat(job.EstimatedSeconds),
		nullableString(job.Command),
		nullableString(mediaJSON),
		nullableString(job.PreviewPath),
		job.PreviewRevision,
		nullableString(job.FailureReason),
		nullableString(job.SkipReason),
		nullableString(logHeadJSON),
		nullableString(job.LogTail),
		nullableString(warningsJSON),
		nullableString(job.BatchID),
		nullableString(waitJSON),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert job %s: %w", job.ID, err)
	}
	return nil
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id                  string
		filename            string
		jobType             string
		source              string
		statusStr           string
		progress            float64
		queuePosition       sql.NullInt64
		inputPath           sql.NullString
		outputPath          sql.NullString
		originalSizeMB      float64
		outputSizeMB        sql.NullFloat64
		preset              sql.NullString
		createdAtMs         int64
		fileCreatedMs       sql.NullInt64
		fileModifiedMs      sql.NullInt64
		startTimeMs         sql.NullInt64
		endTimeMs           sql.NullInt64
		processingStartedMs sql.NullInt64
		elapsedMs           sql.NullInt64
		estimatedSeconds    sql.NullFloat64
		command             sql.NullString
		mediaJSON           sql.NullString
		previewPath         sql.NullString
		previewRevision     int64
		failureReason       sql.NullString
		skipReason          sql.NullString
		logHeadJSON         sql.NullString
		logTail             sql.NullString
		warningsJSON        sql.NullString
		batchID             sql.NullString
		waitJSON            sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&filename,
		&jobType,
		&source,
		&statusStr,
		&progress,
		&queuePosition,
		&inputPath,
		&outputPath,
		&originalSizeMB,
		&outputSizeMB,
		&preset,
		&createdAtMs,
		&fileCreatedMs,
		&fileModifiedMs,
		&startTimeMs,
		&endTimeMs,
		&processingStartedMs,
		&elapsedMs,
		&estimatedSeconds,
		&command,
		&mediaJSON,
		&previewPath,
		&previewRevision,
		&failureReason,
		&skipReason,
		&logHeadJSON,
		&logTail,
		&warningsJSON,
		&batchID,
		&waitJSON,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:             id,
		Filename:       filename,
		Type:           JobType(jobType),
		Source:         JobSource(source),
		Status:         Status(statusStr),
		Progress:       progress,
		InputPath:      inputPath.String,
		OutputPath:     outputPath.String,
		OriginalSizeMB: originalSizeMB,
		Preset:         preset.String,
		CreatedAtMs:    createdAtMs,
		Command:        command.String,
		PreviewPath:    previewPath.String,
		FailureReason:  failureReason.String,
		SkipReason:     skipReason.String,
		LogTail:        logTail.String,
		BatchID:        batchID.String,
	}
	if previewRevision > 0 {
		job.PreviewRevision = uint64(previewRevision)
	}
	if queuePosition.Valid && queuePosition.Int64 >= 0 {
		pos := uint64(queuePosition.Int64)
		job.QueueOrder = &pos
	}
	if outputSizeMB.Valid {
		job.OutputSizeMB = &outputSizeMB.Float64
	}
	if fileCreatedMs.Valid {
		job.CreatedTimeMs = &fileCreatedMs.Int64
	}
	if fileModifiedMs.Valid {
		job.ModifiedTimeMs = &fileModifiedMs.Int64
	}
	if startTimeMs.Valid {
		job.StartTimeMs = &startTimeMs.Int64
	}
	if endTimeMs.Valid {
		job.EndTimeMs = &endTimeMs.Int64
	}
	if processingStartedMs.Valid {
		job.ProcessingStartedMs = &processingStartedMs.Int64
	}
	if elapsedMs.Valid {
		job.ElapsedMs = &elapsedMs.Int64
	}
	if estimatedSeconds.Valid {
		job.EstimatedSeconds = &estimatedSeconds.Float64
	}
	if err := unmarshalColumn(mediaJSON, &job.Media); err != nil {
		return nil, fmt.Errorf("decode media info for %s: %w", id, err)
	}
	if err := unmarshalColumn(waitJSON, &job.WaitMetadata); err != nil {
		return nil, fmt.Errorf("decode wait metadata for %s: %w", id, err)
	}
	if err := unmarshalColumn(logHeadJSON, &job.LogHead); err != nil {
		return nil, fmt.Errorf("decode log head for %s: %w", id, err)
	}
	if err := unmarshalColumn(warningsJSON, &job.Warnings); err != nil {
		return nil, fmt.Errorf("decode warnings for %s: %w", id, err)
	}
	return job, nil
}

func marshalColumn(value any) (string, error) {
	switch v := value.(type) {
	case *MediaInfo:
		if v == nil {
			return "", nil
		}
	case *WaitMetadata:
		if v == nil {
			return "", nil
		}
	case []string:
		if len(v) == 0 {
			return "", nil
		}
	case []JobWarning:
		if len(v) == 0 {
			return "", nil
		}
	}
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalColumn(column sql.NullString, target any) error {
	if !column.Valid || column.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(column.String), target)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableUint(value *uint64) any {
	if value == nil {
		return nil
	}
	return int64(*value)
}

func nullableFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
