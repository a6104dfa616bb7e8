package compare

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/branchsnap/branchsnap/gitexec"
	"github.com/branchsnap/branchsnap/snapshot"
)

// Routes mounts the comparison API onto r.
func (s *Service) Routes(r chi.Router) {
	r.Post("/comparisons", s.handleCreate)
	r.Get("/comparisons", s.handleList)
	r.Get("/comparisons/{id}", s.handleGet)
	r.Post("/comparisons/{id}/recollect", s.handleRecollect)
	r.Delete("/comparisons/{id}", s.handleDelete)
	r.Get("/comparisons/{id}/commits", s.handleCommits)
	r.Get("/comparisons/{id}/diffs", s.handleDiffs)
	r.Get("/comparisons/{id}/diffs/file", s.handleFileDiff)
	r.Get("/comparisons/{id}/events", s.handleEvents)
}

// snapshotView is the JSON projection of a snapshot row.
type snapshotView struct {
	ID            string `json:"id"`
	State         string `json:"state"`
	RealSize      string `json:"real_size,omitempty"`
	Size          int    `json:"size"`
	CommitCount   int    `json:"commit_count"`
	BaseCommitSHA string `json:"base_commit_sha,omitempty"`
	HeadCommitSHA string `json:"head_commit_sha,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

func viewOf(r *http.Request, snap *snapshot.Snapshot) *snapshotView {
	if snap == nil {
		return nil
	}
	v := &snapshotView{
		ID:            snap.ID,
		State:         string(snap.State),
		RealSize:      snap.RealSize,
		Size:          snap.Size(r.Context()),
		CommitCount:   len(snap.Commits()),
		BaseCommitSHA: snap.BaseCommitSHA,
		CreatedAt:     snap.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     snap.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if head := snap.LastCommit(); head != nil {
		v.HeadCommitSHA = head.SHA
	}
	return v
}

func (s *Service) handleCreate(w http.ResponseWriter, r *http.Request) {
	var p CreateParams
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		jsonErr(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req, snap, err := s.Create(r.Context(), p)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"request":  req,
		"snapshot": viewOf(r, snap),
	})
}

func (s *Service) handleList(w http.ResponseWriter, r *http.Request) {
	reqs, err := s.List(r.Context())
	if err != nil {
		s.writeErr(w, err)
		return
	}
	if reqs == nil {
		reqs = []Request{}
	}
	writeJSON(w, http.StatusOK, reqs)
}

func (s *Service) handleGet(w http.ResponseWriter, r *http.Request) {
	req, snap, err := s.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"request":  req,
		"snapshot": viewOf(r, snap),
	})
}

func (s *Service) handleRecollect(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Recollect(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(r, snap))
}

func (s *Service) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleCommits(w http.ResponseWriter, r *http.Request) {
	_, snap, err := s.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	commits := []gitexec.Commit{}
	if snap != nil {
		commits = snap.Commits()
	}
	writeJSON(w, http.StatusOK, commits)
}

func (s *Service) handleDiffs(w http.ResponseWriter, r *http.Request) {
	_, snap, err := s.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}

	var diffs []gitexec.FileDiff
	if snap != nil {
		opts := gitexec.DiffOptions{
			IgnoreWhitespace: queryBool(r, "ignore_whitespace"),
		}
		diffs, err = snap.Diffs(r.Context(), opts)
		if err != nil {
			s.writeErr(w, err)
			return
		}
	}
	if diffs == nil {
		diffs = []gitexec.FileDiff{}
	}
	writeJSON(w, http.StatusOK, diffs)
}

func (s *Service) handleFileDiff(w http.ResponseWriter, r *http.Request) {
	body, err := s.FileDiff(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("path"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/x-diff; charset=utf-8")
	w.Write([]byte(body))
}

func (s *Service) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	evts, err := s.Events(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, evts)
}

// writeErr maps service and backend errors onto HTTP statuses.
func (s *Service) writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		jsonErr(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrRepoOutsideRoot):
		jsonErr(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, gitexec.ErrRefResolutionFailed):
		jsonErr(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, gitexec.ErrBackendUnavailable):
		s.logger.Error("backend unavailable", "error", err)
		jsonErr(w, "backend unavailable", http.StatusBadGateway)
	default:
		s.logger.Error("internal error", "error", err)
		jsonErr(w, "internal error", http.StatusInternalServerError)
	}
}

func queryBool(r *http.Request, name string) bool {
	switch r.URL.Query().Get(name) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func jsonErr(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}
