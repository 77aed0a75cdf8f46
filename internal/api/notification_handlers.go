package api

import (
	"net/http"

	"github.com/openshelf/openshelf-server/internal/http/response"
)

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	unreadOnly := r.URL.Query().Get("unread") == "true"

	notifications, err := s.notifications.List(r.Context(), claims.UserID, unreadOnly)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, notifications, s.logger)
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	if err := s.notifications.MarkRead(r.Context(), claims.UserID, urlParam(r, "id")); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}
