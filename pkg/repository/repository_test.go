package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/secmon-lab/msghub/pkg/domain/interfaces"
	"github.com/secmon-lab/msghub/pkg/repository/firestore"
	"github.com/secmon-lab/msghub/pkg/repository/memory"
	"github.com/secmon-lab/msghub/pkg/repository/sql"
)

type repoFactory func(t *testing.T) interfaces.Repository

func newMemoryRepository(t *testing.T) interfaces.Repository {
	return memory.New()
}

func newSQLiteRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	path := filepath.Join(t.TempDir(), "msghub.db")
	repo, err := sql.New(context.Background(), sql.DriverSQLite, path)
	if err != nil {
		t.Fatalf("failed to create sqlite repository: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("failed to close sqlite repository: %v", err)
		}
	})
	return repo
}

func newMySQLRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("TEST_MYSQL_DSN not set")
	}

	repo, err := sql.New(context.Background(), sql.DriverMySQL, dsn)
	if err != nil {
		t.Fatalf("failed to create mysql repository: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("failed to close mysql repository: %v", err)
		}
	})
	return repo
}

func newFirestoreRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	if projectID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID not set")
	}

	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")
	if databaseID == "" {
		t.Skip("TEST_FIRESTORE_DATABASE_ID not set")
	}

	ctx := context.Background()
	prefix := fmt.Sprintf("test_%d", time.Now().UnixNano())
	repo, err := firestore.New(ctx, projectID, databaseID, firestore.WithCollectionPrefix(prefix))
	if err != nil {
		t.Fatalf("failed to create firestore repository: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("failed to close firestore repository: %v", err)
		}
	})
	return repo
}

func isNotFound(err error) bool {
	return errors.Is(err, memory.ErrNotFound) ||
		errors.Is(err, firestore.ErrNotFound) ||
		errors.Is(err, sql.ErrNotFound)
}

// runAllBackends runs a contract test against every repository implementation
func runAllBackends(t *testing.T, run func(t *testing.T, newRepo repoFactory)) {
	backends := []struct {
		name    string
		newRepo repoFactory
	}{
		{name: "Memory", newRepo: newMemoryRepository},
		{name: "SQLite", newRepo: newSQLiteRepository},
		{name: "MySQL", newRepo: newMySQLRepository},
		{name: "Firestore", newRepo: newFirestoreRepository},
	}

	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			run(t, b.newRepo)
		})
	}
}
