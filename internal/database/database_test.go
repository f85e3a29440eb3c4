package database

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestMigrateURL(t *testing.T) {
	tests := []struct {
		dsn     string
		want    string
		wantErr bool
	}{
		{"postgres://cm:secret@db:5432/catalog?sslmode=disable", "pgx5://cm:secret@db:5432/catalog?sslmode=disable", false},
		{"postgresql://cm@localhost/catalog", "pgx5://cm@localhost/catalog", false},
		{"pgx5://cm@localhost/catalog", "pgx5://cm@localhost/catalog", false},
		{"host=db user=cm dbname=catalog", "", true},
		{"mysql://cm@localhost/catalog", "", true},
	}

	for _, tt := range tests {
		got, err := migrateURL(tt.dsn)
		if tt.wantErr {
			if err == nil {
				t.Errorf("migrateURL(%q): ожидалась ошибка, получено %q", tt.dsn, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("migrateURL(%q): неожиданная ошибка: %v", tt.dsn, err)
			continue
		}
		if got != tt.want {
			t.Errorf("migrateURL(%q) = %q, ожидалось %q", tt.dsn, got, tt.want)
		}
	}
}

// setupTestDB запускает PostgreSQL в Docker-контейнере через testcontainers.
// Возвращает DSN.
func setupTestDB(t *testing.T) string {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("catalog_test"),
		postgres.WithUsername("catalog"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Не удалось получить DSN контейнера: %v", err)
	}
	return dsn
}

func TestMigrateAndConnect(t *testing.T) {
	dsn := setupTestDB(t)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if err := Migrate(dsn, logger); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	// Повторное применение не должно давать ошибку
	if err := Migrate(dsn, logger); err != nil {
		t.Fatalf("повторный Migrate: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := Connect(ctx, dsn, logger)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer pool.Close()

	var exists bool
	err = pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'catalog_snapshot')`,
	).Scan(&exists)
	if err != nil {
		t.Fatalf("проверка таблицы: %v", err)
	}
	if !exists {
		t.Error("таблица catalog_snapshot не создана")
	}

	status, msg := NewReadinessChecker(pool).CheckReady()
	if status != "ok" {
		t.Errorf("CheckReady() = %q (%s), ожидался ok", status, msg)
	}
}
