package api

import (
	"net/http"

	"github.com/openshelf/openshelf-server/internal/http/response"
	"github.com/openshelf/openshelf-server/internal/service"
)

func (s *Server) handleIssueBook(w http.ResponseWriter, r *http.Request) {
	var req service.IssueBookRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	claims := claimsFrom(r.Context())
	record, err := s.circulation.IssueBook(r.Context(), req, claims.UserID)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Created(w, record, s.logger)
}

func (s *Server) handleReturnBook(w http.ResponseWriter, r *http.Request) {
	result, err := s.circulation.ReturnBook(r.Context(), urlParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, result, s.logger)
}

func (s *Server) handleGetBorrowRecord(w http.ResponseWriter, r *http.Request) {
	record, err := s.circulation.GetBorrowRecord(r.Context(), urlParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, record, s.logger)
}

func (s *Server) handleListOverdue(w http.ResponseWriter, r *http.Request) {
	records, err := s.circulation.ListOverdue(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, records, s.logger)
}

func (s *Server) handleListMyBorrows(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	activeOnly := r.URL.Query().Get("active") == "true"

	records, err := s.circulation.ListStudentBorrows(r.Context(), claims.UserID, activeOnly)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, records, s.logger)
}
