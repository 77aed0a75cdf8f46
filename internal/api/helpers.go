package api

import (
	"encoding/json/v2"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openshelf/openshelf-server/internal/errors"
	"github.com/openshelf/openshelf-server/internal/http/response"
)

var errUnauthenticated = errors.Unauthorized("Authentication required")

// decodeBody reads a JSON request body into dst. Writes the error response
// itself and returns false when the body is malformed.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.UnmarshalRead(r.Body, dst); err != nil {
		response.BadRequest(w, "Invalid JSON body", s.logger)
		return false
	}
	return true
}

// urlParam returns a chi URL parameter.
func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}
