package http

import (
	"net/http"
	"strings"

	"doordashboard/internal/core"
	"doordashboard/internal/log"
)

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseSessionFilter(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	page, err := s.deps.Dashboard.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, page)
}

// handleCreateSession appends one raw session record. The record is stored
// as sent apart from the id it is stamped with.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	raw, err := ParseSessionRecord(w, r)
	if err != nil {
		writeServiceError(w, r, log.OpAppend, err)
		return
	}
	appended, err := s.deps.Sessions.Append(r.Context(), raw)
	if err != nil {
		writeServiceError(w, r, log.OpAppend, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/sessions/id/"+appended.ID).
		Body(appended).
		Write(w)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	index, err := ParseIndex(r.PathValue("index"))
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if err := s.deps.Sessions.Delete(r.Context(), index); err != nil {
		writeServiceError(w, r, log.OpDelete, err)
		return
	}
	writeJSON(w, map[string]any{"deleted": index})
}

func (s *Server) handleDeleteSessionByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		BadRequestError("session id is required").Write(w)
		return
	}
	if err := s.deps.Sessions.DeleteByID(r.Context(), id); err != nil {
		writeServiceError(w, r, log.OpDelete, err)
		return
	}
	writeJSON(w, map[string]any{core.FieldID: id, "deleted": true})
}
