// Package di provides dependency injection configuration for the OpenShelf server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/openshelf/openshelf-server/internal/auth"
	"github.com/openshelf/openshelf-server/internal/config"
	"github.com/openshelf/openshelf-server/internal/di/providers"
	"github.com/openshelf/openshelf-server/internal/logger"
	"github.com/openshelf/openshelf-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideAuthKey)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideCatalogIndex)

	// Auth layer
	do.Provide(injector, providers.ProvideTokenService)

	// Business services
	do.Provide(injector, providers.ProvideMailer)
	do.Provide(injector, providers.ProvideNotificationService)
	do.Provide(injector, providers.ProvideCatalogService)
	do.Provide(injector, providers.ProvideFineService)
	do.Provide(injector, providers.ProvideCirculationService)
	do.Provide(injector, providers.ProvidePriorityService)
	do.Provide(injector, providers.ProvideRequestService)
	do.Provide(injector, providers.ProvideAuthService)
	do.Provide(injector, providers.ProvideMembershipService)

	// Workers
	do.Provide(injector, providers.ProvideSessionCleanupJob)
	do.Provide(injector, providers.ProvideStartupReindex)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle
// management. This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[providers.AuthKey](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)
	_ = do.MustInvoke[*auth.TokenService](injector)

	// Business services
	_ = do.MustInvoke[*service.NotificationService](injector)
	_ = do.MustInvoke[*service.CatalogService](injector)
	_ = do.MustInvoke[*service.FineService](injector)
	_ = do.MustInvoke[*service.CirculationService](injector)
	_ = do.MustInvoke[*service.PriorityService](injector)
	_ = do.MustInvoke[*service.RequestService](injector)
	_ = do.MustInvoke[*service.AuthService](injector)
	_ = do.MustInvoke[*service.MembershipService](injector)

	// Workers
	_ = do.MustInvoke[*providers.SessionCleanupJob](injector)
	_ = do.MustInvoke[*providers.ReindexJob](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
