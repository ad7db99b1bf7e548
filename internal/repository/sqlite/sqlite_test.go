package sqlite

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"camwatch/internal/model"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "db_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	db, err := New(filepath.Join(tempDir, "data", "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDatabase_CreatesDirectory(t *testing.T) {
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "nested", "camwatch.db")

	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file should exist")
	}
}

func TestHistoryRepository_CRUD(t *testing.T) {
	repo := NewHistoryRepository(newTestDB(t))
	base := time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)

	entries := []model.HistoryEntry{
		{ID: "b", StreamID: "cam1", Class: "person", Confidence: 0.9, Timestamp: base.Add(time.Minute),
			Region: model.Region{X: 1, Y: 2, Width: 30, Height: 40}, ImagePath: "b.jpg", Replaces: "a"},
		{ID: "a", StreamID: "cam1", Class: "person", Confidence: 0.8, Timestamp: base, ImagePath: "a.jpg"},
	}
	for i := range entries {
		if err := repo.Insert(&entries[i]); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	all, err := repo.GetAll()
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(all) != 2 || all[0].ID != "a" || all[1].ID != "b" {
		t.Fatalf("expected oldest first, got %+v", all)
	}

	got, err := repo.GetByID("b")
	if err != nil || got == nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Region != entries[0].Region || got.Replaces != "a" || !got.Timestamp.Equal(entries[0].Timestamp) {
		t.Errorf("round trip mismatch: %+v", got)
	}

	missing, err := repo.GetByID("nope")
	if err != nil || missing != nil {
		t.Errorf("GetByID(missing) = %v, %v", missing, err)
	}

	if err := repo.Delete("a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := repo.Delete("a"); err != nil {
		t.Fatalf("second Delete failed: %v", err)
	}
	if n, _ := repo.Count(); n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}

	if err := repo.DeleteAll(); err != nil {
		t.Fatalf("DeleteAll failed: %v", err)
	}
	if n, _ := repo.Count(); n != 0 {
		t.Errorf("Count after DeleteAll = %d", n)
	}
}

func TestIgnoreRepository_CRUD(t *testing.T) {
	repo := NewIgnoreRepository(newTestDB(t))
	now := time.Date(2025, 1, 4, 8, 0, 0, 0, time.UTC)

	e := model.IgnoreEntry{ID: "ig1", StreamID: "cam1", Class: "cat",
		Region: model.Region{X: 5, Y: 6, Width: 70, Height: 80}, CreatedAt: now, SourceID: "h1"}
	if err := repo.Insert(&e); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := repo.Insert(&e); err == nil {
		t.Error("expected duplicate id to fail")
	}

	all, err := repo.GetAll()
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(all) != 1 || all[0].Region != e.Region || all[0].SourceID != "h1" || !all[0].CreatedAt.Equal(now) {
		t.Fatalf("unexpected entries %+v", all)
	}

	if err := repo.Delete("ig1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	all, _ = repo.GetAll()
	if len(all) != 0 {
		t.Errorf("entry not deleted")
	}
}
