package api

import (
	"net/http"

	"github.com/openshelf/openshelf-server/internal/domain"
	"github.com/openshelf/openshelf-server/internal/http/response"
	"github.com/openshelf/openshelf-server/internal/service"
)

func scrubUsers(users []*domain.User) []*domain.User {
	for _, u := range users {
		u.PasswordHash = ""
	}
	return users
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	role := domain.Role(r.URL.Query().Get("role"))

	users, err := s.membership.ListUsers(r.Context(), role)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, scrubUsers(users), s.logger)
}

func (s *Server) handleListPendingUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.membership.ListPendingUsers(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, scrubUsers(users), s.logger)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.membership.GetUser(r.Context(), urlParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	user.PasswordHash = ""
	response.Success(w, user, s.logger)
}

func (s *Server) handleApproveUser(w http.ResponseWriter, r *http.Request) {
	approver, err := s.currentUser(r)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	user, err := s.membership.ApproveUser(r.Context(), urlParam(r, "id"), approver)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	user.PasswordHash = ""
	response.Success(w, user, s.logger)
}

func (s *Server) handleRejectUser(w http.ResponseWriter, r *http.Request) {
	actor, err := s.currentUser(r)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	if err := s.membership.RejectUser(r.Context(), urlParam(r, "id"), actor); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}

func (s *Server) handleSetTier(w http.ResponseWriter, r *http.Request) {
	var req service.SetTierRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	user, err := s.membership.SetTier(r.Context(), urlParam(r, "id"), req)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	user.PasswordHash = ""
	response.Success(w, user, s.logger)
}

func (s *Server) handleSetBorrowLimit(w http.ResponseWriter, r *http.Request) {
	var req service.SetBorrowLimitRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	user, err := s.membership.SetBorrowLimit(r.Context(), urlParam(r, "id"), req)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	user.PasswordHash = ""
	response.Success(w, user, s.logger)
}
