package httpapi

import (
	"errors"
	"net/http"

	"github.com/madara-alliance/orchestrator-go/internal/models"
	"github.com/madara-alliance/orchestrator-go/internal/orcherrors"
	"github.com/madara-alliance/orchestrator-go/internal/storage/jobstore"
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleJobByID serves GET /jobs/{id}.
func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	id := pathTail(r.URL.Path, "/jobs/")
	if id == "" {
		s.handleJobList(w, r)
		return
	}

	job, err := s.store.Get(r.Context(), id)
	if err != nil {
		var notFound *orcherrors.NotFound
		if errors.As(err, &notFound) {
			WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// handleJobList serves GET /jobs?type=&status=.
func (s *Server) handleJobList(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	filter := jobstore.ListFilter{
		JobType: models.JobType(q.Get("type")),
		Status:  models.JobStatus(q.Get("status")),
	}

	jobs, err := s.store.List(r.Context(), filter)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs})
}
