package discover

import (
	"path/filepath"
	"testing"

	"parc-go/internal/archive"
	"parc-go/internal/testutil"
)

func TestNewScanner_NormalizesEndings(t *testing.T) {
	s := NewScanner([]string{"JPG", ".PNG", " .heic ", ""}, false, archive.NewNopLogger())

	want := []string{".jpg", ".png", ".heic"}
	if len(s.Endings) != len(want) {
		t.Fatalf("len(Endings) = %d, want %d", len(s.Endings), len(want))
	}
	for i, e := range want {
		if s.Endings[i] != e {
			t.Errorf("Endings[%d] = %q, want %q", i, s.Endings[i], e)
		}
	}
}

func TestScanner_Discover(t *testing.T) {
	t.Run("flat scan ignores subdirectories", func(t *testing.T) {
		dir := t.TempDir()
		testutil.WritePNG(t, filepath.Join(dir, "top.png"), 10, 10)
		testutil.WritePNG(t, filepath.Join(dir, "sub", "nested.png"), 10, 10)

		s := NewScanner([]string{".png"}, false, archive.NewNopLogger())
		got, err := s.Discover([]string{dir})
		if err != nil {
			t.Fatalf("Discover() error = %v", err)
		}

		if len(got) != 1 {
			t.Fatalf("len(Discover()) = %d, want 1", len(got))
		}
		if filepath.Base(got[0]) != "top.png" {
			t.Errorf("Discover()[0] = %q, want top.png", got[0])
		}
	})

	t.Run("recursive scan includes subdirectories", func(t *testing.T) {
		dir := t.TempDir()
		testutil.WritePNG(t, filepath.Join(dir, "top.png"), 10, 10)
		testutil.WritePNG(t, filepath.Join(dir, "sub", "deeper", "nested.png"), 10, 10)

		s := NewScanner([]string{".png"}, true, archive.NewNopLogger())
		got, err := s.Discover([]string{dir})
		if err != nil {
			t.Fatalf("Discover() error = %v", err)
		}
		if len(got) != 2 {
			t.Errorf("len(Discover()) = %d, want 2", len(got))
		}
	})

	t.Run("allow list is case insensitive", func(t *testing.T) {
		dir := t.TempDir()
		testutil.WritePNG(t, filepath.Join(dir, "UPPER.PNG"), 10, 10)
		testutil.WriteFile(t, filepath.Join(dir, "notes.txt"), []byte("notes"))

		s := NewScanner([]string{".png"}, false, archive.NewNopLogger())
		got, err := s.Discover([]string{dir})
		if err != nil {
			t.Fatalf("Discover() error = %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("len(Discover()) = %d, want 1 (only the PNG)", len(got))
		}
	})

	t.Run("empty allow list accepts every file", func(t *testing.T) {
		dir := t.TempDir()
		testutil.WriteFile(t, filepath.Join(dir, "anything.xyz"), []byte("data"))

		s := NewScanner(nil, false, archive.NewNopLogger())
		got, err := s.Discover([]string{dir})
		if err != nil {
			t.Fatalf("Discover() error = %v", err)
		}
		if len(got) != 1 {
			t.Errorf("len(Discover()) = %d, want 1", len(got))
		}
	})

	t.Run("overlapping sources deduplicate", func(t *testing.T) {
		dir := t.TempDir()
		testutil.WritePNG(t, filepath.Join(dir, "a.png"), 10, 10)

		s := NewScanner([]string{".png"}, false, archive.NewNopLogger())
		got, err := s.Discover([]string{dir, dir})
		if err != nil {
			t.Fatalf("Discover() error = %v", err)
		}
		if len(got) != 1 {
			t.Errorf("len(Discover()) = %d for duplicated source, want 1", len(got))
		}
	})

	t.Run("no sources is an error", func(t *testing.T) {
		s := NewScanner(nil, false, archive.NewNopLogger())
		if _, err := s.Discover(nil); err == nil {
			t.Fatal("Discover() expected error for empty sources")
		}
	})

	t.Run("one failing root does not abort the scan", func(t *testing.T) {
		dir := t.TempDir()
		testutil.WritePNG(t, filepath.Join(dir, "a.png"), 10, 10)

		s := NewScanner([]string{".png"}, false, archive.NewNopLogger())
		got, err := s.Discover([]string{filepath.Join(dir, "does-not-exist"), dir})
		if err != nil {
			t.Fatalf("Discover() error = %v", err)
		}
		if len(got) != 1 {
			t.Errorf("len(Discover()) = %d, want 1 from the healthy root", len(got))
		}
	})

	t.Run("all roots failing is an error", func(t *testing.T) {
		s := NewScanner(nil, false, archive.NewNopLogger())
		if _, err := s.Discover([]string{"/nonexistent-one", "/nonexistent-two"}); err == nil {
			t.Fatal("Discover() expected error when every root fails")
		}
	})

	t.Run("results are sorted", func(t *testing.T) {
		dir := t.TempDir()
		testutil.WritePNG(t, filepath.Join(dir, "c.png"), 10, 10)
		testutil.WritePNG(t, filepath.Join(dir, "a.png"), 10, 10)
		testutil.WritePNG(t, filepath.Join(dir, "b.png"), 10, 10)

		s := NewScanner([]string{".png"}, false, archive.NewNopLogger())
		got, err := s.Discover([]string{dir})
		if err != nil {
			t.Fatalf("Discover() error = %v", err)
		}
		for i := 1; i < len(got); i++ {
			if got[i-1] >= got[i] {
				t.Errorf("Discover() not sorted: %q before %q", got[i-1], got[i])
			}
		}
	})
}

func TestScanner_Discover_CorrectsExtensions(t *testing.T) {
	// A PNG masquerading as .jpg is renamed before the allow-list check,
	// so it is discovered under its true type.
	dir := t.TempDir()
	testutil.WritePNG(t, filepath.Join(dir, "mislabeled.jpg"), 10, 10)

	s := NewScanner([]string{".png"}, false, archive.NewNopLogger())
	got, err := s.Discover([]string{dir})
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("len(Discover()) = %d, want 1", len(got))
	}
	if filepath.Base(got[0]) != "mislabeled.png" {
		t.Errorf("Discover()[0] = %q, want corrected mislabeled.png", got[0])
	}
}
