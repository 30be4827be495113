package quill

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/quillworks/quill/internal/workspace"
)

var postgresIntegrationCounter uint64

func TestPostgresIntegrationStateBackendRoundTrip(t *testing.T) {
	dsn := postgresIntegrationDSN(t)

	backend, err := NewPostgresStateBackend(dsn)
	if err != nil {
		t.Fatalf("new postgres state backend: %v", err)
	}
	pg, ok := backend.(*PostgresStateBackend)
	if !ok {
		t.Fatalf("expected *PostgresStateBackend, got %T", backend)
	}
	pg.tableName = postgresIntegrationTableName("quill_state_it")
	pg.stateKey = "it"
	t.Cleanup(func() {
		_ = pg.Close()
		postgresIntegrationDropTable(t, dsn, pg.tableName)
	})

	snapshot, err := backend.Load()
	if err != nil {
		t.Fatalf("initial load failed: %v", err)
	}
	if snapshot != nil {
		t.Fatalf("expected nil initial snapshot, got %+v", snapshot)
	}

	saved := &persistedState{
		IDCounter:    7,
		EventCounter: 11,
		Users:        map[string]*userState{},
	}
	if err := backend.Save(saved); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := backend.Load()
	if err != nil {
		t.Fatalf("load after save failed: %v", err)
	}
	if loaded == nil {
		t.Fatalf("expected non-nil snapshot after save")
	}
	if loaded.IDCounter != 7 || loaded.EventCounter != 11 {
		t.Fatalf("unexpected loaded counters: %+v", loaded)
	}

	loaded.IDCounter = 12
	if err := backend.Save(loaded); err != nil {
		t.Fatalf("second save failed: %v", err)
	}
	reloaded, err := backend.Load()
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded == nil || reloaded.IDCounter != 12 {
		t.Fatalf("expected idCounter 12 after update, got %+v", reloaded)
	}
}

func TestPostgresIntegrationStoreRestartPersistence(t *testing.T) {
	dsn := postgresIntegrationDSN(t)
	tableName := postgresIntegrationTableName("quill_store_it")

	openStore := func() (*Store, func()) {
		backend, err := NewPostgresStateBackend(dsn)
		if err != nil {
			t.Fatalf("new postgres state backend: %v", err)
		}
		pg := backend.(*PostgresStateBackend)
		pg.tableName = tableName
		store := NewStoreWithOptions(StoreOptions{StateBackend: backend})
		return store, func() { _ = store.Close() }
	}

	store, closeStore := openStore()
	t.Cleanup(func() { postgresIntegrationDropTable(t, dsn, tableName) })

	project, err := store.CreateProject("u1", workspace.ProjectDraft{Title: "ashen vale"})
	if err != nil {
		t.Fatalf("create project failed: %v", err)
	}
	closeStore()

	reopened, closeReopened := openStore()
	defer closeReopened()

	page, err := reopened.ListProjects("u1", PageRequest{})
	if err != nil {
		t.Fatalf("list after restart failed: %v", err)
	}
	if len(page.Projects) != 1 || page.Projects[0].ID != project.ID {
		t.Fatalf("expected project to survive restart, got %+v", page.Projects)
	}
}

func postgresIntegrationDSN(t *testing.T) string {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("QUILL_TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("set QUILL_TEST_POSTGRES_DSN to run Postgres integration tests")
	}
	return dsn
}

func postgresIntegrationTableName(prefix string) string {
	n := atomic.AddUint64(&postgresIntegrationCounter, 1)
	return fmt.Sprintf("%s_%d_%d", prefix, time.Now().UnixNano(), n)
}

func postgresIntegrationDropTable(t *testing.T, dsn, tableName string) {
	t.Helper()
	if strings.TrimSpace(dsn) == "" || strings.TrimSpace(tableName) == "" {
		return
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open postgres for cleanup failed: %v", err)
	}
	defer db.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	query := fmt.Sprintf("DROP TABLE IF EXISTS %s", postgresQuoteIdentifier(tableName))
	if _, err := db.ExecContext(ctx, query); err != nil {
		t.Fatalf("drop cleanup table %q failed: %v", tableName, err)
	}
}
