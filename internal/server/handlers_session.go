package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// CreateSessionRequest is the body of POST /session.
type CreateSessionRequest struct {
	Directory string `json:"directory" validate:"required"`
	ParentID  string `json:"parentID,omitempty" validate:"omitempty,startswith=ses_"`
}

// listSessions handles GET /session
func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.runtime.ListSessions(r.Context())
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

// createSession handles POST /session
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	session, err := s.runtime.CreateSession(r.Context(), req.Directory, req.ParentID)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

// getSession handles GET /session/{sessionID}
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.runtime.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// deleteSession handles DELETE /session/{sessionID}
func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.runtime.DeleteSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		writeCoreError(w, err)
		return
	}
	writeSuccess(w)
}

// getChildren handles GET /session/{sessionID}/children
func (s *Server) getChildren(w http.ResponseWriter, r *http.Request) {
	children, err := s.runtime.SessionChildren(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, children)
}
