package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/openshelf/openshelf-server/internal/logger"
	"github.com/openshelf/openshelf-server/internal/service"
)

// SessionCleanupJob runs periodic expired-session cleanup.
type SessionCleanupJob struct {
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (j *SessionCleanupJob) Shutdown() error {
	j.cancel()
	return nil
}

// ProvideSessionCleanupJob provides the periodic session cleanup job.
func ProvideSessionCleanupJob(i do.Injector) (*SessionCleanupJob, error) {
	authService := do.MustInvoke[*service.AuthService](i)
	log := do.MustInvoke[*logger.Logger](i)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		// Initial cleanup on startup.
		authService.PurgeExpiredSessions(ctx)

		for {
			select {
			case <-ticker.C:
				authService.PurgeExpiredSessions(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info("Session cleanup job started")

	return &SessionCleanupJob{cancel: cancel}, nil
}

// ReindexJob rebuilds the search index from the catalog at startup so the
// index never drifts from the database across restarts.
type ReindexJob struct{}

// ProvideStartupReindex rebuilds the search index when it is out of step
// with the catalog.
func ProvideStartupReindex(i do.Injector) (*ReindexJob, error) {
	catalog := do.MustInvoke[*service.CatalogService](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	docCount, err := indexHandle.DocumentCount()
	if err != nil {
		return nil, err
	}

	books, err := catalog.ListBooks(context.Background())
	if err != nil {
		return nil, err
	}

	if int(docCount) != len(books) {
		log.Info("Search index out of step with catalog, rebuilding",
			"indexed", docCount,
			"books", len(books),
		)
		if err := catalog.ReindexAll(context.Background()); err != nil {
			return nil, err
		}
	}

	return &ReindexJob{}, nil
}
