package api

import (
	"net/http"

	"github.com/openshelf/openshelf-server/internal/http/response"
	"github.com/openshelf/openshelf-server/internal/service"
)

func (s *Server) handleCreatePriorityRequest(w http.ResponseWriter, r *http.Request) {
	var input service.CreateRequestInput
	if !s.decodeBody(w, r, &input) {
		return
	}

	// Students queue for themselves; staff may queue on a student's behalf.
	claims := claimsFrom(r.Context())
	if input.StudentID == "" || !claims.IsStaff() {
		input.StudentID = claims.UserID
	}

	request, err := s.priority.CreateRequest(r.Context(), input)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Created(w, request, s.logger)
}

func (s *Server) handleCancelPriorityRequest(w http.ResponseWriter, r *http.Request) {
	actor, err := s.currentUser(r)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	if err := s.priority.CancelRequest(r.Context(), urlParam(r, "id"), actor); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}

func (s *Server) handleListMyRequests(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	requests, err := s.priority.MyRequests(r.Context(), claims.UserID)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, requests, s.logger)
}

func (s *Server) handleGlobalQueue(w http.ResponseWriter, r *http.Request) {
	queue, err := s.priority.GlobalQueue(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, queue, s.logger)
}
