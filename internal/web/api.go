package web

import (
	"net/http"

	"github.com/felixgeelhaar/blackbird/internal/domain"
	"github.com/felixgeelhaar/blackbird/internal/gate"
)

// LessonsResponse is the body of GET /api/v1/lessons
type LessonsResponse struct {
	Lessons []domain.LessonNode `json:"lessons"`
	Codes   []string            `json:"codes"`
}

// MeResponse is the body of GET /api/v1/me
type MeResponse struct {
	Username string          `json:"username"`
	Progress domain.Progress `json:"progress"`
}

func (s *Server) handleAPILessons(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, LessonsResponse{
		Lessons: s.lessons.Forest(),
		Codes:   s.lessons.Codes(),
	})
}

func (s *Server) handleAPISession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(owner(r), r.PathValue("session"))
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleAPIMe(w http.ResponseWriter, r *http.Request) {
	id := gate.FromContext(r.Context())
	resp := MeResponse{Username: id.Username, Progress: domain.Progress{Username: id.Username}}

	if s.progress != nil {
		p, err := s.progress.Summary(r.Context(), id.Username)
		if err != nil {
			WriteDomainError(w, r, err)
			return
		}
		resp.Progress = p
	}
	WriteJSON(w, http.StatusOK, resp)
}
