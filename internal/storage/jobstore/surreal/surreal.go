// Package surreal implements jobstore.Store on top of SurrealDB, grounded
// on the teacher's surrealdb.JobQueueStore two-step select-then-conditional-
// update claim pattern, generalized from a status guard to a version guard.
package surreal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/madara-alliance/orchestrator-go/internal/common"
	"github.com/madara-alliance/orchestrator-go/internal/models"
	"github.com/madara-alliance/orchestrator-go/internal/orcherrors"
	"github.com/madara-alliance/orchestrator-go/internal/storage/jobstore"
)

const jobTable = "orchestrator_job"

const jobSelectFields = "id, internal_id, job_type, status, external_id, metadata, version, created_at, updated_at"

// Store is a SurrealDB-backed jobstore.Store.
type Store struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// Connect opens a SurrealDB connection per cfg and signs in.
func Connect(ctx context.Context, cfg common.DatabaseConfig, logger *common.Logger) (*Store, error) {
	db, err := surrealdb.New(cfg.Address)
	if err != nil {
		return nil, orcherrors.DatabaseError(fmt.Errorf("connect to surrealdb: %w", err))
	}
	if cfg.Username != "" {
		if _, err := db.SignIn(ctx, map[string]any{"user": cfg.Username, "pass": cfg.Password}); err != nil {
			return nil, orcherrors.DatabaseError(fmt.Errorf("sign in to surrealdb: %w", err))
		}
	}
	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		return nil, orcherrors.DatabaseError(fmt.Errorf("select namespace/database: %w", err))
	}

	s := &Store{db: db, logger: logger}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Setup connects to SurrealDB and idempotently provisions the job table and
// its indexes, then disconnects. It is the standalone counterpart to the
// schema step Connect also runs on every startup, exposed for the `setup`
// CLI command so operators can provision ahead of the first `run`.
func Setup(ctx context.Context, cfg common.DatabaseConfig, logger *common.Logger) error {
	store, err := Connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	store.db.Close(ctx)
	return nil
}

// ensureSchema defines the job table and its indexes, run once at startup
// (and by the setup CLI command).
func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", jobTable),
		fmt.Sprintf("DEFINE INDEX IF NOT EXISTS idx_job_type_internal_id ON TABLE %s FIELDS job_type, internal_id UNIQUE", jobTable),
		fmt.Sprintf("DEFINE INDEX IF NOT EXISTS idx_job_type_status ON TABLE %s FIELDS job_type, status", jobTable),
	}
	for _, stmt := range stmts {
		if _, err := surrealdb.Query[any](ctx, s.db, stmt, nil); err != nil {
			return orcherrors.DatabaseError(fmt.Errorf("define schema: %w", err))
		}
	}
	return nil
}

func recordID(id string) surrealmodels.RecordID {
	return surrealmodels.NewRecordID(jobTable, id)
}

func newJobID() string {
	return uuid.New().String()
}

func (s *Store) Create(ctx context.Context, job *models.Job) error {
	if job.ID == "" {
		job.ID = newJobID()
	}
	now := time.Now()
	job.Version = 1
	job.CreatedAt = now
	job.UpdatedAt = now

	existing, err := s.GetByInternalID(ctx, job.JobType, job.InternalID)
	if err == nil && existing != nil {
		return &orcherrors.Duplicate{InternalID: job.InternalID, Type: string(job.JobType)}
	}

	sql := `CREATE $rid SET
		internal_id = $internal_id, job_type = $job_type, status = $status,
		external_id = $external_id, metadata = $metadata, version = $version,
		created_at = $created_at, updated_at = $updated_at`
	vars := map[string]any{
		"rid":         recordID(job.ID),
		"internal_id": job.InternalID,
		"job_type":    job.JobType,
		"status":      job.Status,
		"external_id": job.ExternalID,
		"metadata":    job.Metadata,
		"version":     job.Version,
		"created_at":  job.CreatedAt,
		"updated_at":  job.UpdatedAt,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return orcherrors.DatabaseError(fmt.Errorf("create job: %w", err))
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*models.Job, error) {
	sql := "SELECT " + jobSelectFields + " FROM $rid"
	vars := map[string]any{"rid": recordID(id)}
	jobs, err := s.queryJobs(ctx, sql, vars)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, &orcherrors.NotFound{ID: id}
	}
	return jobs[0], nil
}

func (s *Store) GetByInternalID(ctx context.Context, jobType models.JobType, internalID string) (*models.Job, error) {
	sql := "SELECT " + jobSelectFields + " FROM " + jobTable + " WHERE job_type = $job_type AND internal_id = $internal_id LIMIT 1"
	vars := map[string]any{"job_type": jobType, "internal_id": internalID}
	jobs, err := s.queryJobs(ctx, sql, vars)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, &orcherrors.NotFound{ID: internalID}
	}
	return jobs[0], nil
}

func (s *Store) Update(ctx context.Context, job *models.Job) error {
	newVersion := job.Version + 1
	now := time.Now()

	sql := `UPDATE $rid SET
		status = $status, external_id = $external_id, metadata = $metadata,
		version = $new_version, updated_at = $updated_at
		WHERE version = $expected_version`
	vars := map[string]any{
		"rid":             recordID(job.ID),
		"status":          job.Status,
		"external_id":     job.ExternalID,
		"metadata":        job.Metadata,
		"new_version":     newVersion,
		"updated_at":      now,
		"expected_version": job.Version,
	}

	result, err := surrealdb.Query[[]models.Job](ctx, s.db, sql, vars)
	if err != nil {
		return orcherrors.DatabaseError(fmt.Errorf("update job: %w", err))
	}
	if result == nil || len(*result) == 0 || len((*result)[0].Result) == 0 {
		return orcherrors.ErrVersionConflict
	}

	job.Version = newVersion
	job.UpdatedAt = now
	return nil
}

func (s *Store) List(ctx context.Context, filter jobstore.ListFilter) ([]*models.Job, error) {
	sql := "SELECT " + jobSelectFields + " FROM " + jobTable
	vars := map[string]any{}
	var clauses []string
	if filter.JobType != "" {
		clauses = append(clauses, "job_type = $job_type")
		vars["job_type"] = filter.JobType
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = $status")
		vars["status"] = filter.Status
	}
	if len(clauses) > 0 {
		sql += " WHERE " + clauses[0]
		for _, c := range clauses[1:] {
			sql += " AND " + c
		}
	}
	sql += " ORDER BY updated_at DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	sql += " LIMIT $limit"
	vars["limit"] = limit
	return s.queryJobs(ctx, sql, vars)
}

func (s *Store) GetWithoutSuccessor(ctx context.Context, jobType models.JobType, fromStatuses []models.JobStatus, successorType models.JobType) ([]*models.Job, error) {
	sql := "SELECT " + jobSelectFields + " FROM " + jobTable + ` WHERE job_type = $job_type AND status IN $statuses
		AND internal_id NOT IN (SELECT VALUE internal_id FROM ` + jobTable + ` WHERE job_type = $successor_type)
		ORDER BY created_at ASC`
	vars := map[string]any{
		"job_type":       jobType,
		"statuses":       fromStatuses,
		"successor_type": successorType,
	}
	return s.queryJobs(ctx, sql, vars)
}

func (s *Store) CountByStatus(ctx context.Context, jobType models.JobType, statuses []models.JobStatus) (map[models.JobStatus]int, error) {
	sql := "SELECT status, count() AS cnt FROM " + jobTable + " WHERE job_type = $job_type AND status IN $statuses GROUP BY status"
	vars := map[string]any{"job_type": jobType, "statuses": statuses}

	type row struct {
		Status models.JobStatus `json:"status"`
		Cnt    int              `json:"cnt"`
	}
	results, err := surrealdb.Query[[]row](ctx, s.db, sql, vars)
	if err != nil {
		return nil, orcherrors.DatabaseError(fmt.Errorf("count by status: %w", err))
	}

	counts := make(map[models.JobStatus]int, len(statuses))
	for _, st := range statuses {
		counts[st] = 0
	}
	if results != nil && len(*results) > 0 {
		for _, r := range (*results)[0].Result {
			counts[r.Status] = r.Cnt
		}
	}
	return counts, nil
}

func (s *Store) queryJobs(ctx context.Context, sql string, vars map[string]any) ([]*models.Job, error) {
	results, err := surrealdb.Query[[]models.Job](ctx, s.db, sql, vars)
	if err != nil {
		return nil, orcherrors.DatabaseError(fmt.Errorf("query jobs: %w", err))
	}
	if results == nil || len(*results) == 0 {
		return nil, nil
	}
	rows := (*results)[0].Result
	out := make([]*models.Job, 0, len(rows))
	for i := range rows {
		j := rows[i]
		out = append(out, &j)
	}
	return out, nil
}
