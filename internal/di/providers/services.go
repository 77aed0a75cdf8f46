package providers

import (
	"github.com/samber/do/v2"

	"github.com/openshelf/openshelf-server/internal/auth"
	"github.com/openshelf/openshelf-server/internal/config"
	"github.com/openshelf/openshelf-server/internal/logger"
	"github.com/openshelf/openshelf-server/internal/notify"
	"github.com/openshelf/openshelf-server/internal/service"
)

// ProvideMailer provides the outgoing mail transport. With no SMTP host
// configured this is a no-op and notifications are database-only.
func ProvideMailer(i do.Injector) (notify.Mailer, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.SMTP.Host == "" {
		log.Info("SMTP not configured, email delivery disabled")
	}
	return notify.NewMailer(cfg.SMTP), nil
}

// ProvideNotificationService provides the notification service.
func ProvideNotificationService(i do.Injector) (*service.NotificationService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	mailer := do.MustInvoke[notify.Mailer](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewNotificationService(storeHandle.Store, mailer, log.Logger), nil
}

// ProvideCatalogService provides the catalog service.
func ProvideCatalogService(i do.Injector) (*service.CatalogService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewCatalogService(storeHandle.Store, indexHandle.CatalogIndex, log.Logger), nil
}

// ProvideFineService provides the fine ledger service.
func ProvideFineService(i do.Injector) (*service.FineService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewFineService(storeHandle.Store, log.Logger), nil
}

// ProvideCirculationService provides the issue/return orchestrator.
func ProvideCirculationService(i do.Injector) (*service.CirculationService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	fines := do.MustInvoke[*service.FineService](i)
	notifications := do.MustInvoke[*service.NotificationService](i)
	catalog := do.MustInvoke[*service.CatalogService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewCirculationService(
		storeHandle.Store, fines, notifications, catalog, cfg.Circulation, log.Logger,
	), nil
}

// ProvidePriorityService provides the priority queue service.
func ProvidePriorityService(i do.Injector) (*service.PriorityService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewPriorityService(storeHandle.Store, log.Logger), nil
}

// ProvideRequestService provides the request-then-approve borrowing flow.
func ProvideRequestService(i do.Injector) (*service.RequestService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	circulation := do.MustInvoke[*service.CirculationService](i)
	notifications := do.MustInvoke[*service.NotificationService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewRequestService(storeHandle.Store, circulation, notifications, log.Logger), nil
}

// ProvideAuthService provides the authentication service.
func ProvideAuthService(i do.Injector) (*service.AuthService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tokens := do.MustInvoke[*auth.TokenService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAuthService(storeHandle.Store, tokens, log.Logger), nil
}

// ProvideMembershipService provides the account administration service.
func ProvideMembershipService(i do.Injector) (*service.MembershipService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	notifications := do.MustInvoke[*service.NotificationService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewMembershipService(storeHandle.Store, notifications, log.Logger), nil
}
