package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"parc-go/internal/config"
	"parc-go/internal/database"
	"parc-go/internal/testutil"
)

// testConfig returns a config rooted in a temp dir with the classifier
// disabled, so plain fixture files flow through the whole pipeline.
func testConfig(t *testing.T) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.NewConfig(base)
	cfg.Filter.Enabled = false
	cfg.PartialHash.MinFileSize = 1 << 20
	cfg.FileEndings = []string{".png"}
	cfg.BatchSize = 2
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()

	a, err := NewApp(cfg)
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

// newBoundTestApp initializes a fresh archive for cfg and opens an App
// over it.
func newBoundTestApp(t *testing.T, cfg *config.Config, name string) *App {
	t.Helper()

	location := filepath.Join(t.TempDir(), "archive")
	if _, err := InitArchive(cfg, name, "", location); err != nil {
		t.Fatalf("InitArchive() error = %v", err)
	}
	return newTestApp(t, cfg)
}

func TestInitArchive(t *testing.T) {
	t.Run("creates database and binding", func(t *testing.T) {
		cfg := testConfig(t)
		location := filepath.Join(t.TempDir(), "archive")

		b, err := InitArchive(cfg, "family", "family photos", location)
		if err != nil {
			t.Fatalf("InitArchive() error = %v", err)
		}

		if b.DatabaseName != "family" {
			t.Errorf("DatabaseName = %q, want %q", b.DatabaseName, "family")
		}
		if _, err := os.Stat(location); err != nil {
			t.Errorf("archive location not created: %v", err)
		}
		if _, err := os.Stat(cfg.DatabasePath); err != nil {
			t.Errorf("index database not created: %v", err)
		}
	})

	t.Run("refuses an existing bound database", func(t *testing.T) {
		cfg := testConfig(t)
		if _, err := InitArchive(cfg, "first", "", filepath.Join(t.TempDir(), "archive")); err != nil {
			t.Fatalf("InitArchive() error = %v", err)
		}

		if _, err := InitArchive(cfg, "second", "", t.TempDir()); err == nil {
			t.Fatal("InitArchive() expected error for existing database")
		}
	})

	t.Run("refuses an existing unbound database", func(t *testing.T) {
		cfg := testConfig(t)

		// Opening an App creates the database file without binding it.
		a := newTestApp(t, cfg)
		a.Close()

		if _, err := InitArchive(cfg, "late", "", t.TempDir()); err == nil {
			t.Fatal("InitArchive() expected error for pre-existing database file")
		}
	})
}

func TestApp_ArchiveInfo_Unbound(t *testing.T) {
	cfg := testConfig(t)
	a := newTestApp(t, cfg)

	if _, err := a.ArchiveInfo(); err == nil {
		t.Fatal("ArchiveInfo() expected error for unbound index")
	}
}

func TestApp_Run_EndToEnd(t *testing.T) {
	cfg := testConfig(t)
	a := newBoundTestApp(t, cfg, "e2e")

	binding, err := a.ArchiveInfo()
	if err != nil {
		t.Fatalf("ArchiveInfo() error = %v", err)
	}
	location := binding.ArchiveLocation

	src := t.TempDir()
	testutil.WritePNG(t, filepath.Join(src, "one.png"), 20, 20)
	testutil.WritePNG(t, filepath.Join(src, "two.png"), 30, 30)
	// Byte-identical copy of one.png: a duplicate.
	data, err := os.ReadFile(filepath.Join(src, "one.png"))
	if err != nil {
		t.Fatal(err)
	}
	testutil.WriteFile(t, filepath.Join(src, "copy.png"), data)

	summary, err := a.Run(context.Background(), []string{src})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Unique != 2 {
		t.Errorf("Unique = %d, want 2", summary.Unique)
	}
	if summary.Duplicates != 1 {
		t.Errorf("Duplicates = %d, want 1", summary.Duplicates)
	}

	// Archived files land under the date partition and keep their bytes.
	for _, af := range summary.ArchivedFiles {
		got, err := os.ReadFile(af.ArchivedPath)
		if err != nil {
			t.Errorf("reading archived file %s: %v", af.ArchivedPath, err)
			continue
		}
		want, err := os.ReadFile(af.SourcePath)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != string(want) {
			t.Errorf("archived bytes differ from source for %s", af.SourcePath)
		}
		rel, err := filepath.Rel(location, af.ArchivedPath)
		if err != nil || strings.HasPrefix(rel, "..") {
			t.Errorf("archived path %q not under archive location", af.ArchivedPath)
		}
	}

	// Second run over the same sources: everything is a duplicate.
	summary2, err := a.Run(context.Background(), []string{src})
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if summary2.Unique != 0 {
		t.Errorf("second run Unique = %d, want 0", summary2.Unique)
	}
	if summary2.Duplicates != 3 {
		t.Errorf("second run Duplicates = %d, want 3", summary2.Duplicates)
	}

	stats, err := a.Stats()
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Binding.TotalPhotos != 2 {
		t.Errorf("TotalPhotos = %d, want 2", stats.Binding.TotalPhotos)
	}
}

func TestApp_BackupIndex(t *testing.T) {
	cfg := testConfig(t)
	a := newBoundTestApp(t, cfg, "backup-me")

	dest := filepath.Join(t.TempDir(), "snapshot.db")
	got, err := a.BackupIndex(dest)
	if err != nil {
		t.Fatalf("BackupIndex() error = %v", err)
	}

	// The snapshot is a complete index: the binding survives.
	snap, err := database.NewSQLiteIndex(got)
	if err != nil {
		t.Fatalf("opening backup: %v", err)
	}
	defer snap.Close()

	b, err := snap.Binding()
	if err != nil {
		t.Fatalf("Binding() on backup error = %v", err)
	}
	if b == nil || b.DatabaseName != "backup-me" {
		t.Errorf("backup binding = %+v, want database name backup-me", b)
	}

	// An existing target is never overwritten.
	if _, err := a.BackupIndex(dest); err == nil {
		t.Fatal("BackupIndex() expected error for existing target")
	}
}

func TestApp_SetVideoArchive(t *testing.T) {
	cfg := testConfig(t)
	a := newBoundTestApp(t, cfg, "vids")

	videoDir := filepath.Join(t.TempDir(), "videos")
	if err := a.SetVideoArchive(videoDir); err != nil {
		t.Fatalf("SetVideoArchive() error = %v", err)
	}
	if _, err := os.Stat(videoDir); err != nil {
		t.Errorf("video location not created: %v", err)
	}

	b, err := a.ArchiveInfo()
	if err != nil {
		t.Fatalf("ArchiveInfo() error = %v", err)
	}
	if !b.SeparateVideoArchive {
		t.Error("SeparateVideoArchive = false, want true")
	}

	if err := a.SetVideoArchive(""); err != nil {
		t.Fatalf("SetVideoArchive(\"\") error = %v", err)
	}
	b, err = a.ArchiveInfo()
	if err != nil {
		t.Fatalf("ArchiveInfo() error = %v", err)
	}
	if b.SeparateVideoArchive {
		t.Error("SeparateVideoArchive = true after disable, want false")
	}
}

func TestApp_RelocateArchive(t *testing.T) {
	t.Run("fails on unbound index", func(t *testing.T) {
		a := newTestApp(t, testConfig(t))

		if _, err := a.RelocateArchive(t.TempDir()); err == nil {
			t.Fatal("RelocateArchive() expected error for unbound index")
		}
	})

	t.Run("rebinds to an existing directory", func(t *testing.T) {
		cfg := testConfig(t)
		a := newBoundTestApp(t, cfg, "move-me")

		if _, err := a.RelocateArchive(filepath.Join(t.TempDir(), "missing")); err == nil {
			t.Fatal("RelocateArchive() expected error for nonexistent location")
		}

		newHome := t.TempDir()
		got, err := a.RelocateArchive(newHome)
		if err != nil {
			t.Fatalf("RelocateArchive() error = %v", err)
		}

		b, err := a.ArchiveInfo()
		if err != nil {
			t.Fatalf("ArchiveInfo() error = %v", err)
		}
		if b.ArchiveLocation != got {
			t.Errorf("ArchiveLocation = %q, want %q", b.ArchiveLocation, got)
		}
	})
}

func TestApp_RunID(t *testing.T) {
	cfg := testConfig(t)
	a := newTestApp(t, cfg)
	b := newTestApp(t, testConfig(t))

	if a.RunID() == "" {
		t.Error("RunID() is empty")
	}
	if a.RunID() == b.RunID() {
		t.Error("two apps share a run ID")
	}
}
