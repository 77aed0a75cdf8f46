// Package main provides a tool to seed the database with an initial admin
// account, a default fine policy, and optionally a small sample catalog.
//
// Usage:
//
//	DB_PATH=~/OpenShelf/openshelf.db go run ./cmd/seed
//	DB_PATH=~/OpenShelf/openshelf.db go run ./cmd/seed --sample-books
//
// Admin credentials come from ADMIN_EMAIL and ADMIN_PASSWORD; defaults are
// printed so a fresh install is usable immediately.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/openshelf/openshelf-server/internal/auth"
	"github.com/openshelf/openshelf-server/internal/domain"
	"github.com/openshelf/openshelf-server/internal/id"
	"github.com/openshelf/openshelf-server/internal/store/sqlite"
)

var sampleBooks = flag.Bool("sample-books", false, "Also create a small sample catalog")

func main() {
	flag.Parse()

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = os.ExpandEnv("$HOME/OpenShelf/openshelf.db")
	}

	fmt.Printf("Opening database at: %s\n", dbPath)

	s, err := sqlite.Open(dbPath, nil)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()

	ensureAdminExists(ctx, s)
	ensureFinePolicyExists(ctx, s)

	if *sampleBooks {
		createSampleBooks(ctx, s)
	}

	fmt.Println("\nSeeding complete!")
}

// ensureAdminExists creates the root admin account unless one with the
// configured email already exists.
func ensureAdminExists(ctx context.Context, s *sqlite.Store) {
	email := os.Getenv("ADMIN_EMAIL")
	if email == "" {
		email = "admin@openshelf.local"
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "changeme-now"
	}

	if existing, _ := s.GetUserByEmail(ctx, email); existing != nil {
		fmt.Printf("Admin %s already exists, skipping\n", email)
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		log.Fatalf("Failed to hash admin password: %v", err)
	}

	now := time.Now()
	admin := &domain.User{
		Record: domain.Record{
			ID:        id.MustGenerate("user"),
			CreatedAt: now,
			UpdatedAt: now,
		},
		Name:         "Admin",
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		IsApproved:   true,
		ApprovedAt:   &now,
		Tier:         domain.TierPremium,
	}

	if err := s.CreateUser(ctx, admin); err != nil {
		log.Fatalf("Failed to create admin: %v", err)
	}

	fmt.Printf("Admin created with email %s and password %s\n", email, password)
	if os.Getenv("ADMIN_PASSWORD") == "" {
		fmt.Println("Change this password after first login.")
	}
}

// ensureFinePolicyExists creates the default overdue policy when no active
// policy is configured.
func ensureFinePolicyExists(ctx context.Context, s *sqlite.Store) {
	if existing, _ := s.GetActiveFineConfig(ctx); existing != nil {
		fmt.Printf("Active fine policy %q already exists, skipping\n", existing.Name)
		return
	}

	now := time.Now()
	cfg := &domain.FineConfig{
		Record: domain.Record{
			ID:        id.MustGenerate("cfg"),
			CreatedAt: now,
			UpdatedAt: now,
		},
		Name:         "Standard",
		FinePerDay:   50,
		GraceMinutes: 5,
		IsActive:     true,
	}

	if err := s.CreateFineConfig(ctx, cfg); err != nil {
		log.Fatalf("Failed to create fine policy: %v", err)
	}

	fmt.Printf("Created fine policy %q (%d per day, %d minute grace)\n",
		cfg.Name, cfg.FinePerDay, cfg.GraceMinutes)
}

// seedCatalog lists the titles created by --sample-books.
var seedCatalog = []struct {
	title    string
	author   string
	category string
	isbn     string
	copies   int
}{
	{"The Pragmatic Programmer", "David Thomas", "Software", "9780135957059", 3},
	{"Structure and Interpretation of Computer Programs", "Harold Abelson", "Software", "9780262510875", 2},
	{"The Design of Everyday Things", "Don Norman", "Design", "9780465050659", 2},
	{"A Short History of Nearly Everything", "Bill Bryson", "Science", "9780767908184", 4},
	{"The Left Hand of Darkness", "Ursula K. Le Guin", "Fiction", "9780441478125", 1},
}

// createSampleBooks creates a handful of titles for trying out the catalog.
func createSampleBooks(ctx context.Context, s *sqlite.Store) {
	fmt.Println("\n=== Creating Sample Books ===")

	now := time.Now()
	for _, entry := range seedCatalog {
		book := &domain.Book{
			Record: domain.Record{
				ID:        id.MustGenerate("book"),
				CreatedAt: now,
				UpdatedAt: now,
			},
			Title:           entry.title,
			Author:          entry.author,
			Category:        entry.category,
			ISBN:            entry.isbn,
			TotalCopies:     entry.copies,
			AvailableCopies: entry.copies,
		}

		if err := s.CreateBook(ctx, book); err != nil {
			log.Printf("  Failed to create book %q: %v", entry.title, err)
			continue
		}
		fmt.Printf("  Created book: %s (%d copies)\n", entry.title, entry.copies)
	}

	fmt.Println("=== Sample Books Created ===")
}
