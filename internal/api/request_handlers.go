package api

import (
	"net/http"

	"github.com/openshelf/openshelf-server/internal/http/response"
	"github.com/openshelf/openshelf-server/internal/service"
)

func (s *Server) handleCreateBorrowRequest(w http.ResponseWriter, r *http.Request) {
	var input service.CreateBorrowRequestInput
	if !s.decodeBody(w, r, &input) {
		return
	}

	// Students request for themselves; staff may file on a student's behalf.
	claims := claimsFrom(r.Context())
	if input.StudentID == "" || !claims.IsStaff() {
		input.StudentID = claims.UserID
	}

	request, err := s.requests.CreateRequest(r.Context(), input)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Created(w, request, s.logger)
}

func (s *Server) handleListBorrowRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := s.requests.ListRequests(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, requests, s.logger)
}

func (s *Server) handleListMyBorrowRequests(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	requests, err := s.requests.MyRequests(r.Context(), claims.UserID)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, requests, s.logger)
}

func (s *Server) handleApproveBorrowRequest(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	result, err := s.requests.Approve(r.Context(), urlParam(r, "id"), claims.UserID)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, result, s.logger)
}

func (s *Server) handleRejectBorrowRequest(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	request, err := s.requests.Reject(r.Context(), urlParam(r, "id"), claims.UserID)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, request, s.logger)
}
