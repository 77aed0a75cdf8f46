package providers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/openshelf/openshelf-server/internal/api"
	"github.com/openshelf/openshelf-server/internal/config"
	"github.com/openshelf/openshelf-server/internal/logger"
	"github.com/openshelf/openshelf-server/internal/service"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	authService := do.MustInvoke[*service.AuthService](i)
	membership := do.MustInvoke[*service.MembershipService](i)
	catalog := do.MustInvoke[*service.CatalogService](i)
	circulation := do.MustInvoke[*service.CirculationService](i)
	priority := do.MustInvoke[*service.PriorityService](i)
	requests := do.MustInvoke[*service.RequestService](i)
	fines := do.MustInvoke[*service.FineService](i)
	notifications := do.MustInvoke[*service.NotificationService](i)

	handler := api.NewServer(
		storeHandle.Store,
		authService,
		membership,
		catalog,
		circulation,
		priority,
		requests,
		fines,
		notifications,
		log.Logger,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: server}, nil
}
