// Package api provides the HTTP API server and handlers for the OpenShelf application.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/openshelf/openshelf-server/internal/service"
	"github.com/openshelf/openshelf-server/internal/store/sqlite"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	store         *sqlite.Store
	authService   *service.AuthService
	membership    *service.MembershipService
	catalog       *service.CatalogService
	circulation   *service.CirculationService
	priority      *service.PriorityService
	requests      *service.RequestService
	fines         *service.FineService
	notifications *service.NotificationService
	router        *chi.Mux
	logger        *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(
	store *sqlite.Store,
	authService *service.AuthService,
	membership *service.MembershipService,
	catalog *service.CatalogService,
	circulation *service.CirculationService,
	priority *service.PriorityService,
	requests *service.RequestService,
	fines *service.FineService,
	notifications *service.NotificationService,
	logger *slog.Logger,
) *Server {
	s := &Server{
		store:         store,
		authService:   authService,
		membership:    membership,
		catalog:       catalog,
		circulation:   circulation,
		priority:      priority,
		requests:      requests,
		fines:         fines,
		notifications: notifications,
		router:        chi.NewRouter(),
		logger:        logger,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures the middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Health check.
	s.router.Get("/health", s.handleHealthCheck)

	// Login attempts are rate limited by client IP.
	authLimiter := NewRateLimiter(20, time.Minute, 5)

	// API v1.
	s.router.Route("/api/v1", func(r chi.Router) {
		// Auth endpoints (public).
		r.Route("/auth", func(r chi.Router) {
			r.Use(RateLimitMiddleware(authLimiter, s.logger))
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
			r.Post("/refresh", s.handleRefresh)
			r.Post("/logout", s.handleLogout)
		})

		// Current user.
		r.Route("/me", func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/", s.handleGetCurrentUser)
			r.Get("/borrows", s.handleListMyBorrows)
			r.Get("/requests", s.handleListMyRequests)
			r.Get("/borrow-requests", s.handleListMyBorrowRequests)
			r.Get("/fines", s.handleListMyFines)
			r.Get("/notifications", s.handleListNotifications)
			r.Post("/notifications/{id}/read", s.handleMarkNotificationRead)
		})

		// Catalog.
		r.Route("/books", func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/", s.handleListBooks)
			r.Get("/search", s.handleSearchBooks)
			r.Get("/{id}", s.handleGetBook)
			r.Get("/{id}/queue", s.handleGetBookQueue)

			r.Group(func(r chi.Router) {
				r.Use(s.requireStaff)
				r.Post("/", s.handleCreateBook)
				r.Put("/{id}", s.handleUpdateBook)
				r.Delete("/{id}", s.handleDeleteBook)
				r.Post("/{id}/restock", s.handleRestockBook)
				r.Get("/{id}/borrows", s.handleListBookBorrows)
			})
		})

		// Circulation desk (staff only).
		r.Route("/borrows", func(r chi.Router) {
			r.Use(s.requireAuth, s.requireStaff)
			r.Post("/", s.handleIssueBook)
			r.Get("/overdue", s.handleListOverdue)
			r.Get("/{id}", s.handleGetBorrowRecord)
			r.Post("/{id}/return", s.handleReturnBook)
		})

		// Priority queue.
		r.Route("/requests", func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Post("/", s.handleCreatePriorityRequest)
			r.Delete("/{id}", s.handleCancelPriorityRequest)
			r.With(s.requireStaff).Get("/", s.handleGlobalQueue)
		})

		// Borrow requests (request-then-approve flow).
		r.Route("/borrow-requests", func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Post("/", s.handleCreateBorrowRequest)

			r.Group(func(r chi.Router) {
				r.Use(s.requireStaff)
				r.Get("/", s.handleListBorrowRequests)
				r.Post("/{id}/approve", s.handleApproveBorrowRequest)
				r.Post("/{id}/reject", s.handleRejectBorrowRequest)
			})
		})

		// Fines.
		r.Route("/fines", func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Post("/{id}/pay", s.handlePayFine)

			r.Group(func(r chi.Router) {
				r.Use(s.requireStaff)
				r.Get("/", s.handleListFines)
				r.Get("/{id}", s.handleGetFine)
			})
		})

		// Fine policies (admin only).
		r.Route("/fine-configs", func(r chi.Router) {
			r.Use(s.requireAuth, s.requireAdmin)
			r.Post("/", s.handleCreateFineConfig)
			r.Get("/", s.handleListFineConfigs)
			r.Post("/{id}/deactivate", s.handleDeactivateFineConfig)
		})

		// User administration.
		r.Route("/users", func(r chi.Router) {
			r.Use(s.requireAuth, s.requireStaff)
			r.Get("/", s.handleListUsers)
			r.Get("/pending", s.handleListPendingUsers)
			r.Get("/{id}", s.handleGetUser)
			r.Get("/{id}/fines", s.handleListUserFines)
			r.Post("/{id}/fines/recalculate", s.handleRecalculateUserFines)

			r.Group(func(r chi.Router) {
				r.Use(s.requireAdmin)
				r.Post("/{id}/approve", s.handleApproveUser)
				r.Post("/{id}/reject", s.handleRejectUser)
				r.Put("/{id}/tier", s.handleSetTier)
				r.Put("/{id}/borrow-limit", s.handleSetBorrowLimit)
			})
		})
	})
}
