package http

import (
	"net/http"

	"doordashboard/internal/auth"
	"doordashboard/internal/log"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	grant, err := s.deps.Auth.Register(r.Context(), p.Get("username"), p.Get("password"), p.Get("email"), false)
	if err != nil {
		writeServiceError(w, r, log.OpRegister, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(grant).Write(w)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	grant, err := s.deps.Auth.Login(r.Context(), p.Get("username"), p.Get("password"))
	if err != nil {
		writeServiceError(w, r, log.OpLogin, err)
		return
	}
	writeJSON(w, grant)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())
	user, err := s.deps.Auth.Me(r.Context(), claims)
	if err != nil {
		writeServiceError(w, r, log.OpLogin, err)
		return
	}
	writeJSON(w, user)
}
