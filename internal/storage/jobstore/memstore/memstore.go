// Package memstore is an in-memory jobstore.Store used by unit tests and
// local/dev runs, grounded on the teacher's in-process map-backed stores.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/madara-alliance/orchestrator-go/internal/models"
	"github.com/madara-alliance/orchestrator-go/internal/orcherrors"
	"github.com/madara-alliance/orchestrator-go/internal/storage/jobstore"
)

// Store is a mutex-guarded map implementation of jobstore.Store.
type Store struct {
	mu   sync.Mutex
	jobs map[string]*models.Job
	byKey map[string]string // jobType|internalID -> id
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		jobs:  make(map[string]*models.Job),
		byKey: make(map[string]string),
	}
}

func key(jobType models.JobType, internalID string) string {
	return string(jobType) + "|" + internalID
}

func (s *Store) Create(_ context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(job.JobType, job.InternalID)
	if _, exists := s.byKey[k]; exists {
		return &orcherrors.Duplicate{InternalID: job.InternalID, Type: string(job.JobType)}
	}
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	now := time.Now()
	job.Version = 1
	job.CreatedAt = now
	job.UpdatedAt = now

	s.jobs[job.ID] = job.Clone()
	s.byKey[k] = job.ID
	return nil
}

func (s *Store) Get(_ context.Context, id string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, &orcherrors.NotFound{ID: id}
	}
	return job.Clone(), nil
}

func (s *Store) GetByInternalID(_ context.Context, jobType models.JobType, internalID string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byKey[key(jobType, internalID)]
	if !ok {
		return nil, &orcherrors.NotFound{ID: internalID}
	}
	return s.jobs[id].Clone(), nil
}

func (s *Store) Update(_ context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.jobs[job.ID]
	if !ok {
		return &orcherrors.NotFound{ID: job.ID}
	}
	if existing.Version != job.Version {
		return orcherrors.ErrVersionConflict
	}

	updated := job.Clone()
	updated.Version = existing.Version + 1
	updated.UpdatedAt = time.Now()
	s.jobs[job.ID] = updated

	job.Version = updated.Version
	job.UpdatedAt = updated.UpdatedAt
	return nil
}

func (s *Store) List(_ context.Context, filter jobstore.ListFilter) ([]*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Job
	for _, job := range s.jobs {
		if filter.JobType != "" && job.JobType != filter.JobType {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		out = append(out, job.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) GetWithoutSuccessor(_ context.Context, jobType models.JobType, fromStatuses []models.JobStatus, successorType models.JobType) ([]*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	statusSet := make(map[models.JobStatus]bool, len(fromStatuses))
	for _, st := range fromStatuses {
		statusSet[st] = true
	}

	var out []*models.Job
	for _, job := range s.jobs {
		if job.JobType != jobType || !statusSet[job.Status] {
			continue
		}
		if _, hasSuccessor := s.byKey[key(successorType, job.InternalID)]; hasSuccessor {
			continue
		}
		out = append(out, job.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CountByStatus(_ context.Context, jobType models.JobType, statuses []models.JobStatus) (map[models.JobStatus]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[models.JobStatus]int, len(statuses))
	want := make(map[models.JobStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
		counts[st] = 0
	}
	for _, job := range s.jobs {
		if job.JobType == jobType && want[job.Status] {
			counts[job.Status]++
		}
	}
	return counts, nil
}
