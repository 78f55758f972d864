package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"cicd-demo/pkg/task"
)

const maxBodyBytes = 1 << 20

// taskRequest is the body of POST and PUT. Server-managed fields (id and
// timestamps) are not part of it and are ignored when sent.
type taskRequest struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Status      string        `json:"status"`
	Priority    task.Priority `json:"priority"`
}

func (req taskRequest) toTask() (task.Task, error) {
	t := task.Task{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
	}
	if req.Status != "" {
		status, err := task.ParseStatus(req.Status)
		if err != nil {
			return task.Task{}, err
		}
		t.Status = status
	}
	return t, nil
}

func (s *Server) decodeTask(w http.ResponseWriter, r *http.Request) (task.Task, bool) {
	var req taskRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return task.Task{}, false
	}
	t, err := req.toTask()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return task.Task{}, false
	}
	return t, true
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid task id: "+r.PathValue("id"))
		return 0, false
	}
	return id, true
}

func (s *Server) handleTaskList(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.tasks.FindAll(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, nonNil(tasks))
}

func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	t, found, err := s.tasks.FindByID(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !found {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleTaskByStatus(w http.ResponseWriter, r *http.Request) {
	status, err := task.ParseStatus(r.PathValue("status"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tasks, err := s.tasks.FindByStatus(r.Context(), status)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, nonNil(tasks))
}

func (s *Server) handleTaskActive(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.tasks.FindActive(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, nonNil(tasks))
}

func (s *Server) handleTaskStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.tasks.Statistics(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleTaskCreate(w http.ResponseWriter, r *http.Request) {
	in, ok := s.decodeTask(w, r)
	if !ok {
		return
	}
	created, err := s.tasks.Create(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleTaskUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	patch, ok := s.decodeTask(w, r)
	if !ok {
		return
	}
	updated, found, err := s.tasks.Update(r.Context(), id, patch)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !found {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleTaskDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	deleted, err := s.tasks.Delete(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !deleted {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// nonNil makes empty lists encode as [] rather than null.
func nonNil(tasks []task.Task) []task.Task {
	if tasks == nil {
		return []task.Task{}
	}
	return tasks
}
