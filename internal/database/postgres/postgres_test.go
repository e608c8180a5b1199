//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kozaktomas/face-attendance/internal/config"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	cfg := &config.DatabaseConfig{
		URL:          dbURL,
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(ctx, cfg)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	// Run migrations
	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

func TestAttendanceRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewAttendanceRepository(pool)
	at := time.Date(2026, 3, 2, 8, 15, 4, 0, time.UTC)

	t.Run("InsertAndList", func(t *testing.T) {
		if _, err := repo.Insert(ctx, "alice", at, "s1"); err != nil {
			t.Fatalf("Failed to insert: %v", err)
		}
		if _, err := repo.Insert(ctx, "alice", at.Add(time.Second), "s2"); err != nil {
			t.Fatalf("Failed to insert duplicate identity: %v", err)
		}

		rows, err := repo.List(ctx)
		if err != nil {
			t.Fatalf("Failed to list: %v", err)
		}
		if len(rows) != 2 {
			t.Fatalf("Expected 2 rows, got %d", len(rows))
		}
		if rows[0].Identity != "alice" || !rows[0].MarkedAt.Equal(at) {
			t.Errorf("Unexpected first row %+v", rows[0])
		}
		if rows[1].SessionID != "s2" {
			t.Errorf("Expected session s2, got %s", rows[1].SessionID)
		}
	})
}

func TestEmbeddingRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewEmbeddingRepository(pool)
	mod := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("SaveAndGet", func(t *testing.T) {
		embedding := make([]float32, 128)
		for i := range embedding {
			embedding[i] = float32(i) / 128.0
		}

		err := repo.Save(ctx, StoredEmbedding{
			Path: "alice/1.jpg", Model: "dlib", Size: 1024, ModTime: mod,
			Identity: "alice", HasFace: true, Embedding: embedding,
		})
		if err != nil {
			t.Fatalf("Failed to save embedding: %v", err)
		}

		got, err := repo.Get(ctx, "alice/1.jpg", "dlib")
		if err != nil {
			t.Fatalf("Failed to get embedding: %v", err)
		}
		if got == nil {
			t.Fatal("Expected embedding, got nil")
		}
		if len(got.Embedding) != 128 {
			t.Errorf("Expected 128 dims, got %d", len(got.Embedding))
		}
		if got.Size != 1024 || !got.ModTime.Equal(mod) {
			t.Errorf("Unexpected size/mod_time %d %v", got.Size, got.ModTime)
		}
	})

	t.Run("NoFaceRow", func(t *testing.T) {
		err := repo.Save(ctx, StoredEmbedding{Path: "bob/blurry.jpg", Model: "dlib", Size: 10, ModTime: mod, Identity: "bob"})
		if err != nil {
			t.Fatalf("Failed to save: %v", err)
		}

		got, err := repo.Get(ctx, "bob/blurry.jpg", "dlib")
		if err != nil {
			t.Fatalf("Failed to get: %v", err)
		}
		if got == nil || got.HasFace || got.Embedding != nil {
			t.Errorf("Expected cached no-face row, got %+v", got)
		}
	})

	t.Run("Missing", func(t *testing.T) {
		got, err := repo.Get(ctx, "alice/1.jpg", "insightface")
		if err != nil {
			t.Fatalf("Failed to get: %v", err)
		}
		if got != nil {
			t.Errorf("Expected nil for other model, got %+v", got)
		}
	})

	t.Run("Prune", func(t *testing.T) {
		n, err := repo.Prune(ctx, "dlib", []string{"alice/1.jpg"})
		if err != nil {
			t.Fatalf("Failed to prune: %v", err)
		}
		if n != 1 {
			t.Errorf("Expected 1 pruned row, got %d", n)
		}
		count, err := repo.Count(ctx, "dlib")
		if err != nil {
			t.Fatalf("Failed to count: %v", err)
		}
		if count != 1 {
			t.Errorf("Expected 1 remaining row, got %d", count)
		}
	})
}

func TestMigrations(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()

	// Check migrations were applied
	applied, err := pool.MigrationsApplied(ctx)
	if err != nil {
		t.Fatalf("Failed to get applied migrations: %v", err)
	}

	expectedMigrations := []string{
		"001_attendance.sql",
		"002_face_embeddings.sql",
	}

	if len(applied) != len(expectedMigrations) {
		t.Errorf("Expected %d migrations, got %d", len(expectedMigrations), len(applied))
	}

	for i, expected := range expectedMigrations {
		if i < len(applied) && applied[i] != expected {
			t.Errorf("Migration %d: expected '%s', got '%s'", i, expected, applied[i])
		}
	}

	// Running again is a no-op
	if err := pool.Migrate(ctx); err != nil {
		t.Errorf("Second migrate failed: %v", err)
	}
}
