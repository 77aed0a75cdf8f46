package api

import (
	"net/http"

	"github.com/openshelf/openshelf-server/internal/http/response"
	"github.com/openshelf/openshelf-server/internal/service"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	resp, err := s.authService.Register(r.Context(), req)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Created(w, resp, s.logger)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	resp, err := s.authService.Login(r.Context(), req)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	// Never echo the password hash.
	resp.User.PasswordHash = ""
	response.Success(w, resp, s.logger)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req service.RefreshRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	resp, err := s.authService.Refresh(r.Context(), req)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	resp.User.PasswordHash = ""
	response.Success(w, resp, s.logger)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req service.RefreshRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if err := s.authService.Logout(r.Context(), req.RefreshToken); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}

func (s *Server) handleGetCurrentUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.currentUser(r)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	user.PasswordHash = ""
	response.Success(w, user, s.logger)
}
