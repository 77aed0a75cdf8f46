package api

import (
	"net/http"

	"github.com/openshelf/openshelf-server/internal/errors"
	"github.com/openshelf/openshelf-server/internal/http/response"
	"github.com/openshelf/openshelf-server/internal/service"
)

func (s *Server) handlePayFine(w http.ResponseWriter, r *http.Request) {
	var req service.PayFineRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	fineID := urlParam(r, "id")
	claims := claimsFrom(r.Context())

	// Members pay their own fines; staff can take payment for anyone.
	if !claims.IsStaff() {
		fine, err := s.fines.GetFine(r.Context(), fineID)
		if err != nil {
			response.HandleError(w, err, s.logger)
			return
		}
		if fine.MemberID != claims.UserID {
			response.HandleError(w, errors.Forbidden("You can only pay your own fines."), s.logger)
			return
		}
	}

	fine, err := s.fines.PayFine(r.Context(), fineID, req)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, fine, s.logger)
}

func (s *Server) handleGetFine(w http.ResponseWriter, r *http.Request) {
	fine, err := s.fines.GetFine(r.Context(), urlParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, fine, s.logger)
}

func (s *Server) handleListFines(w http.ResponseWriter, r *http.Request) {
	fines, err := s.fines.ListFines(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, fines, s.logger)
}

func (s *Server) handleListMyFines(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	unpaidOnly := r.URL.Query().Get("unpaid") == "true"

	fines, err := s.fines.ListMemberFines(r.Context(), claims.UserID, unpaidOnly)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, fines, s.logger)
}

func (s *Server) handleListUserFines(w http.ResponseWriter, r *http.Request) {
	unpaidOnly := r.URL.Query().Get("unpaid") == "true"

	fines, err := s.fines.ListMemberFines(r.Context(), urlParam(r, "id"), unpaidOnly)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, fines, s.logger)
}

func (s *Server) handleRecalculateUserFines(w http.ResponseWriter, r *http.Request) {
	userID := urlParam(r, "id")
	if err := s.fines.RecalculateMemberTotals(r.Context(), userID); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	user, err := s.membership.GetUser(r.Context(), userID)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	user.PasswordHash = ""
	response.Success(w, user, s.logger)
}

func (s *Server) handleCreateFineConfig(w http.ResponseWriter, r *http.Request) {
	var req service.CreateFineConfigRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	cfg, err := s.fines.CreateFineConfig(r.Context(), req)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Created(w, cfg, s.logger)
}

func (s *Server) handleListFineConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.fines.ListFineConfigs(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, configs, s.logger)
}

func (s *Server) handleDeactivateFineConfig(w http.ResponseWriter, r *http.Request) {
	if err := s.fines.DeactivateFineConfig(r.Context(), urlParam(r, "id")); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}
