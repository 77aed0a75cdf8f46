package api

import (
	"net/http"
	"strconv"

	"github.com/openshelf/openshelf-server/internal/http/response"
	"github.com/openshelf/openshelf-server/internal/search"
	"github.com/openshelf/openshelf-server/internal/service"
)

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	var req service.CreateBookRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	book, err := s.catalog.CreateBook(r.Context(), req)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Created(w, book, s.logger)
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.catalog.ListBooks(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, books, s.logger)
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	book, err := s.catalog.GetBook(r.Context(), urlParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, book, s.logger)
}

func (s *Server) handleUpdateBook(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateBookRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	book, err := s.catalog.UpdateBook(r.Context(), urlParam(r, "id"), req)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, book, s.logger)
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.DeleteBook(r.Context(), urlParam(r, "id")); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}

func (s *Server) handleRestockBook(w http.ResponseWriter, r *http.Request) {
	var req service.RestockRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	book, err := s.catalog.RestockBook(r.Context(), urlParam(r, "id"), req)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, book, s.logger)
}

func (s *Server) handleSearchBooks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	params := search.DefaultParams()
	params.Query = q.Get("q")
	params.Category = q.Get("category")
	params.ISBN = q.Get("isbn")
	params.AvailableOnly = q.Get("available") == "true"
	params.SortBy = q.Get("sort")
	params.SortOrder = q.Get("order")
	params.IncludeFacets = q.Get("facets") == "true"

	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 {
		params.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil && offset >= 0 {
		params.Offset = offset
	}

	result, err := s.catalog.Search(r.Context(), params)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, result, s.logger)
}

func (s *Server) handleGetBookQueue(w http.ResponseWriter, r *http.Request) {
	queue, err := s.priority.BookQueue(r.Context(), urlParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, queue, s.logger)
}

func (s *Server) handleListBookBorrows(w http.ResponseWriter, r *http.Request) {
	records, err := s.circulation.ListBookBorrows(r.Context(), urlParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, records, s.logger)
}
