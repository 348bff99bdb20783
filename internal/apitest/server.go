// Package apitest provides an in-memory Paperspace jobs API for tests.
package apitest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/3leaps/pspace/pkg/job"
)

// APIKey is the key the fake server accepts.
const APIKey = "test-api-key"

// CreateRequest captures a createJob call.
type CreateRequest struct {
	Query     map[string]string
	Workspace []byte
	FileName  string
}

// Server is a fake jobs + logs API. Zero value is not usable; call New.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	jobs      map[string]*job.Record
	order     []string
	logs      map[string][]string
	artifacts map[string]map[string][]byte
	nextID    int

	pageLimit int

	creates []CreateRequest

	calls map[string]int
}

// New starts a fake server. Callers must Close it.
func New() *Server {
	s := &Server{
		jobs:      map[string]*job.Record{},
		logs:      map[string][]string{},
		artifacts: map[string]map[string][]byte{},
		calls:     map[string]int{},
	}

	r := chi.NewRouter()
	r.Use(s.auth)
	r.Post("/jobs/createJob", s.handleCreate)
	r.Get("/jobs/getJobs", s.handleList)
	r.Get("/jobs/getJob", s.handleShow)
	r.Post("/jobs/{id}/stop", s.handleStop)
	r.Get("/jobs/logs", s.handleLogs)
	r.Get("/jobs/artifactsList", s.handleArtifactsList)
	r.Get("/download/{id}/{file}", s.handleDownload)

	s.Server = httptest.NewServer(r)
	return s
}

// AddJob registers a job record. Jobs list in insertion order.
func (s *Server) AddJob(rec job.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[rec.ID]; !ok {
		s.order = append(s.order, rec.ID)
	}
	r := rec
	s.jobs[rec.ID] = &r
}

// SetState changes a job's state (and optionally its finish time).
func (s *Server) SetState(id string, state job.State, finished string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.jobs[id]; ok {
		r.State = state
		if finished != "" {
			r.DtFinished = finished
		}
	}
}

// SetPageLimit caps lines per logs call regardless of the requested limit.
func (s *Server) SetPageLimit(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageLimit = n
}

// AppendLogs adds log messages to a job.
func (s *Server) AppendLogs(id string, messages ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[id] = append(s.logs[id], messages...)
}

// AddArtifact registers an artifact file for a job.
func (s *Server) AddArtifact(id, file string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.artifacts[id] == nil {
		s.artifacts[id] = map[string][]byte{}
	}
	s.artifacts[id][file] = content
}

// Creates returns every createJob call served so far.
func (s *Server) Creates() []CreateRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CreateRequest(nil), s.creates...)
}

// Calls returns how many times an operation was served.
func (s *Server) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Job returns a copy of a job record.
func (s *Server) Job(id string) (job.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.jobs[id]
	if !ok {
		return job.Record{}, false
	}
	return *r, true
}

func (s *Server) count(op string) {
	s.mu.Lock()
	s.calls[op]++
	s.mu.Unlock()
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/download/") && r.Header.Get("x-api-key") != APIKey {
			writeError(w, http.StatusUnauthorized, "Invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	s.count("create")

	req := CreateRequest{Query: map[string]string{}}
	for k := range r.URL.Query() {
		req.Query[k] = r.URL.Query().Get(k)
	}
	if err := r.ParseMultipartForm(32 << 20); err == nil {
		if f, hdr, err := r.FormFile("file"); err == nil {
			req.FileName = hdr.Filename
			req.Workspace, _ = io.ReadAll(f)
			_ = f.Close()
		}
	}

	if req.Query["machineType"] == "" {
		writeError(w, http.StatusBadRequest, "machineType is required")
		return
	}

	s.mu.Lock()
	s.creates = append(s.creates, req)
	s.nextID++
	id := fmt.Sprintf("js%04d", s.nextID)
	rec := &job.Record{
		ID:          id,
		Name:        "job " + strconv.Itoa(s.nextID),
		State:       job.StatePending,
		Entrypoint:  req.Query["command"],
		Project:     req.Query["project"],
		MachineType: req.Query["machineType"],
		Container:   req.Query["container"],
		DtCreated:   "2019-04-22T18:00:00.000Z",
	}
	s.jobs[id] = rec
	s.order = append(s.order, id)
	out := *rec
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	s.count("list")
	project := r.URL.Query().Get("project")
	state := r.URL.Query().Get("state")

	s.mu.Lock()
	out := make([]job.Record, 0, len(s.order))
	for _, id := range s.order {
		rec := s.jobs[id]
		if project != "" && rec.Project != project {
			continue
		}
		if state != "" && string(rec.State) != state {
			continue
		}
		out = append(out, *rec)
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleShow(w http.ResponseWriter, r *http.Request) {
	s.count("show")
	id := r.URL.Query().Get("jobId")

	s.mu.Lock()
	rec, ok := s.jobs[id]
	var out job.Record
	if ok {
		out = *rec
	}
	s.mu.Unlock()

	if !ok {
		// The service answers unknown ids with 200 and an error record.
		writeJSON(w, http.StatusOK, map[string]any{
			"error": map[string]any{"name": "Error", "status": 404, "message": "Job not found"},
		})
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.count("stop")
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	rec, ok := s.jobs[id]
	if ok && job.IsDone(rec.State) {
		s.mu.Unlock()
		writeError(w, http.StatusBadRequest, "Job is not running")
		return
	}
	if ok {
		rec.State = job.StateCancelled
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	s.count("logs")
	id := r.URL.Query().Get("jobId")
	start, _ := strconv.Atoi(r.URL.Query().Get("line"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	s.mu.Lock()
	if s.pageLimit > 0 && (limit <= 0 || s.pageLimit < limit) {
		limit = s.pageLimit
	}
	all := s.logs[id]
	s.mu.Unlock()

	out := []job.LogLine{}
	for i := start; i < len(all); i++ {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, job.LogLine{Line: i + 1, Timestamp: "2019-04-22T18:00:00.000Z", Message: all[i]})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleArtifactsList(w http.ResponseWriter, r *http.Request) {
	s.count("artifactsList")
	id := r.URL.Query().Get("jobId")

	s.mu.Lock()
	files := s.artifacts[id]
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]job.Artifact, 0, len(names))
	for _, name := range names {
		out = append(out, job.Artifact{
			File: name,
			Size: int64(len(files[name])),
			URL:  s.URL + "/download/" + id + "/" + name,
		})
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	s.count("download")
	id := chi.URLParam(r, "id")
	file := chi.URLParam(r, "file")

	s.mu.Lock()
	content, ok := s.artifacts[id][file]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(content)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{"name": "Error", "status": status, "message": message},
	})
}
