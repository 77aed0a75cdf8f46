package service

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openshelf/openshelf-server/internal/auth"
	"github.com/openshelf/openshelf-server/internal/config"
	"github.com/openshelf/openshelf-server/internal/domain"
	"github.com/openshelf/openshelf-server/internal/notify"
	"github.com/openshelf/openshelf-server/internal/search"
	"github.com/openshelf/openshelf-server/internal/store/sqlite"
)

// testKeyHex is a fixed PASETO v4 symmetric key for tests.
const testKeyHex = "0000000000000000000000000000000000000000000000000000000000000000"

type testEnv struct {
	store         *sqlite.Store
	mailer        *notify.MemoryMailer
	notifications *NotificationService
	catalog       *CatalogService
	fines         *FineService
	circulation   *CirculationService
	priority      *PriorityService
	requests      *RequestService
	auth          *AuthService
	membership    *MembershipService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	logger := slog.New(slog.DiscardHandler)

	store, err := sqlite.Open(filepath.Join(dir, "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	index, err := search.NewCatalogIndex(search.Options{DataPath: dir, Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	tokens, err := auth.NewTokenService(testKeyHex, 15*time.Minute, 720*time.Hour)
	require.NoError(t, err)

	mailer := &notify.MemoryMailer{}
	notifications := NewNotificationService(store, mailer, logger)
	catalog := NewCatalogService(store, index, logger)
	fines := NewFineService(store, logger)
	circulation := NewCirculationService(store, fines, notifications, catalog, config.CirculationConfig{
		DefaultLoanDuration: 5 * time.Minute,
		LowStockThreshold:   2,
	}, logger)

	return &testEnv{
		store:         store,
		mailer:        mailer,
		notifications: notifications,
		catalog:       catalog,
		fines:         fines,
		circulation:   circulation,
		priority:      NewPriorityService(store, logger),
		requests:      NewRequestService(store, circulation, notifications, logger),
		auth:          NewAuthService(store, tokens, logger),
		membership:    NewMembershipService(store, notifications, logger),
	}
}

func (e *testEnv) createUser(t *testing.T, id string, role domain.Role, approved bool) *domain.User {
	t.Helper()

	now := time.Now()
	u := &domain.User{
		Record:       domain.Record{ID: id, CreatedAt: now, UpdatedAt: now},
		Name:         id,
		Email:        id + "@example.com",
		PasswordHash: "x",
		Role:         role,
		IsApproved:   approved,
		Tier:         domain.TierBasic,
	}
	require.NoError(t, e.store.CreateUser(context.Background(), u))
	return u
}

func (e *testEnv) createBook(t *testing.T, title string, total int) *domain.Book {
	t.Helper()

	book, err := e.catalog.CreateBook(context.Background(), CreateBookRequest{
		Title:       title,
		Author:      "Author",
		TotalCopies: total,
	})
	require.NoError(t, err)
	require.Equal(t, total, book.AvailableCopies)
	return book
}

func (e *testEnv) activeFinePolicy(t *testing.T, perDay int64, graceMinutes int, cap *int64) *domain.FineConfig {
	t.Helper()

	cfg, err := e.fines.CreateFineConfig(context.Background(), CreateFineConfigRequest{
		Name:           "standard",
		FinePerDay:     perDay,
		GraceMinutes:   graceMinutes,
		MaxFinePerItem: cap,
	})
	require.NoError(t, err)
	return cfg
}
