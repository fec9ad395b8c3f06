package db

import (
	"context"
	"os"
	"testing"
)

func TestNewWithInvalidURL(t *testing.T) {
	_, err := New(context.Background(), "postgres://invalid:5432/nonexistent?connect_timeout=1")
	if err == nil {
		t.Fatal("expected error for invalid database URL, got nil")
	}
}

func TestNewWithMalformedURL(t *testing.T) {
	_, err := New(context.Background(), "::not a url::")
	if err == nil {
		t.Fatal("expected parse error, got nil")
	}
}

func TestMigrateMissingDirectory(t *testing.T) {
	_, err := Migrate("postgres://invalid:5432/nonexistent?connect_timeout=1", t.TempDir()+"/missing", Up, 0)
	if err == nil {
		t.Fatal("expected error for missing migrations directory")
	}
}

func TestMigrateUpDown(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	version, err := Migrate(url, "../../migrations", Up, 0)
	if err != nil {
		t.Fatalf("up: %v", err)
	}
	if version == 0 {
		t.Fatal("expected a schema version after migrating up")
	}

	db, err := New(t.Context(), url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer db.Close()

	var exists bool
	err = db.Pool.QueryRow(t.Context(), `SELECT to_regclass('public.producto') IS NOT NULL`).Scan(&exists)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if !exists {
		t.Fatal("producto table missing after migration")
	}

	if _, err := Migrate(url, "../../migrations", Down, 1); err != nil {
		t.Fatalf("down: %v", err)
	}
	if _, err := Migrate(url, "../../migrations", Up, 0); err != nil {
		t.Fatalf("re-up: %v", err)
	}
}
