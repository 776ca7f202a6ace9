package archive

import (
	"os"
	"path/filepath"
	"testing"

	"parc-go/internal/testutil"
)

func testOrganizer(t *testing.T, groupByYear, groupByDay, move bool) (*Organizer, string) {
	t.Helper()

	root := t.TempDir()
	o := &Organizer{
		PhotoRoot:   root,
		GroupByYear: groupByYear,
		GroupByDay:  groupByDay,
		Move:        move,
		logger:      NewNopLogger(),
	}
	return o, root
}

func TestOrganizer_DestinationDir(t *testing.T) {
	date := Date{Year: "2021", Month: "03", Day: "14"}

	tests := []struct {
		name        string
		groupByYear bool
		groupByDay  bool
		want        string
	}{
		{"year and day", true, true, "2021/03/14"},
		{"year only", true, false, "2021/03"},
		{"day only", false, true, "2021-03/14"},
		{"neither", false, false, "2021-03"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, root := testOrganizer(t, tt.groupByYear, tt.groupByDay, false)
			got := o.DestinationDir(date, ".jpg")
			if want := filepath.Join(root, filepath.FromSlash(tt.want)); got != want {
				t.Errorf("DestinationDir() = %q, want %q", got, want)
			}
		})
	}
}

func TestOrganizer_DestinationDir_VideoRouting(t *testing.T) {
	date := Date{Year: "2021", Month: "03", Day: "14"}

	t.Run("videos go to the video root when separate", func(t *testing.T) {
		o, _ := testOrganizer(t, true, true, false)
		o.VideoRoot = t.TempDir()
		o.SeparateVideoArchive = true

		got := o.DestinationDir(date, ".MOV")
		if want := filepath.Join(o.VideoRoot, "2021", "03", "14"); got != want {
			t.Errorf("DestinationDir(.MOV) = %q, want %q", got, want)
		}

		// Photos stay under the photo root.
		got = o.DestinationDir(date, ".jpg")
		if want := filepath.Join(o.PhotoRoot, "2021", "03", "14"); got != want {
			t.Errorf("DestinationDir(.jpg) = %q, want %q", got, want)
		}
	})

	t.Run("videos stay with photos when not separate", func(t *testing.T) {
		o, root := testOrganizer(t, true, true, false)

		got := o.DestinationDir(date, ".mp4")
		if want := filepath.Join(root, "2021", "03", "14"); got != want {
			t.Errorf("DestinationDir(.mp4) = %q, want %q", got, want)
		}
	})
}

func TestOrganizer_Place(t *testing.T) {
	date := Date{Year: "2021", Month: "03", Day: "14"}

	t.Run("copies into the date directory", func(t *testing.T) {
		o, root := testOrganizer(t, true, true, false)
		src := filepath.Join(t.TempDir(), "a.jpg")
		testutil.WriteFile(t, src, []byte("photo content"))

		p, err := o.Place(src, date)
		if err != nil {
			t.Fatalf("Place() error = %v", err)
		}

		want := filepath.Join(root, "2021", "03", "14", "a.jpg")
		if p.Path != want {
			t.Errorf("Place().Path = %q, want %q", p.Path, want)
		}
		if p.AlreadyPresent || p.Renamed {
			t.Errorf("Place() = %+v, want plain copy", p)
		}

		got, err := os.ReadFile(want)
		if err != nil {
			t.Fatalf("reading archived file: %v", err)
		}
		if string(got) != "photo content" {
			t.Errorf("archived content = %q, want %q", got, "photo content")
		}

		// Copy mode leaves the source in place.
		if _, err := os.Stat(src); err != nil {
			t.Errorf("source removed in copy mode: %v", err)
		}
	})

	t.Run("move removes the source", func(t *testing.T) {
		o, _ := testOrganizer(t, true, true, true)
		src := filepath.Join(t.TempDir(), "a.jpg")
		testutil.WriteFile(t, src, []byte("photo content"))

		if _, err := o.Place(src, date); err != nil {
			t.Fatalf("Place() error = %v", err)
		}
		if _, err := os.Stat(src); !os.IsNotExist(err) {
			t.Errorf("source still present after move, stat err = %v", err)
		}
	})

	t.Run("identical file already archived skips the write", func(t *testing.T) {
		o, root := testOrganizer(t, true, true, false)
		src := filepath.Join(t.TempDir(), "a.jpg")
		testutil.WriteFile(t, src, []byte("same bytes"))
		target := filepath.Join(root, "2021", "03", "14", "a.jpg")
		testutil.WriteFile(t, target, []byte("same bytes"))

		before, err := os.Stat(target)
		if err != nil {
			t.Fatal(err)
		}

		p, err := o.Place(src, date)
		if err != nil {
			t.Fatalf("Place() error = %v", err)
		}
		if !p.AlreadyPresent {
			t.Error("Place().AlreadyPresent = false, want true")
		}
		if p.Path != target {
			t.Errorf("Place().Path = %q, want %q", p.Path, target)
		}

		after, err := os.Stat(target)
		if err != nil {
			t.Fatal(err)
		}
		if !after.ModTime().Equal(before.ModTime()) {
			t.Error("target was rewritten for an identical file")
		}
	})

	t.Run("identical file in move mode still removes source", func(t *testing.T) {
		o, root := testOrganizer(t, true, true, true)
		src := filepath.Join(t.TempDir(), "a.jpg")
		testutil.WriteFile(t, src, []byte("same bytes"))
		testutil.WriteFile(t, filepath.Join(root, "2021", "03", "14", "a.jpg"), []byte("same bytes"))

		p, err := o.Place(src, date)
		if err != nil {
			t.Fatalf("Place() error = %v", err)
		}
		if !p.AlreadyPresent {
			t.Error("Place().AlreadyPresent = false, want true")
		}
		if _, err := os.Stat(src); !os.IsNotExist(err) {
			t.Errorf("source still present after move, stat err = %v", err)
		}
	})

	t.Run("name collision with different content gets a suffix", func(t *testing.T) {
		o, root := testOrganizer(t, true, true, false)
		src := filepath.Join(t.TempDir(), "a.jpg")
		testutil.WriteFile(t, src, []byte("new content"))
		testutil.WriteFile(t, filepath.Join(root, "2021", "03", "14", "a.jpg"), []byte("old content"))

		p, err := o.Place(src, date)
		if err != nil {
			t.Fatalf("Place() error = %v", err)
		}
		if !p.Renamed {
			t.Error("Place().Renamed = false, want true")
		}
		want := filepath.Join(root, "2021", "03", "14", "a_1.jpg")
		if p.Path != want {
			t.Errorf("Place().Path = %q, want %q", p.Path, want)
		}

		// Both versions survive.
		old, err := os.ReadFile(filepath.Join(root, "2021", "03", "14", "a.jpg"))
		if err != nil || string(old) != "old content" {
			t.Errorf("original overwritten: content=%q err=%v", old, err)
		}
	})

	t.Run("suffix increments past taken names", func(t *testing.T) {
		o, root := testOrganizer(t, true, true, false)
		dir := filepath.Join(root, "2021", "03", "14")
		testutil.WriteFile(t, filepath.Join(dir, "a.jpg"), []byte("v0"))
		testutil.WriteFile(t, filepath.Join(dir, "a_1.jpg"), []byte("v1"))

		src := filepath.Join(t.TempDir(), "a.jpg")
		testutil.WriteFile(t, src, []byte("v2"))

		p, err := o.Place(src, date)
		if err != nil {
			t.Fatalf("Place() error = %v", err)
		}
		if want := filepath.Join(dir, "a_2.jpg"); p.Path != want {
			t.Errorf("Place().Path = %q, want %q", p.Path, want)
		}
	})
}

func TestIsVideoExtension(t *testing.T) {
	tests := []struct {
		ext  string
		want bool
	}{
		{".mov", true},
		{".MOV", true},
		{".mp4", true},
		{".avi", true},
		{".mkv", true},
		{".jpg", false},
		{".heic", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsVideoExtension(tt.ext); got != tt.want {
			t.Errorf("IsVideoExtension(%q) = %v, want %v", tt.ext, got, tt.want)
		}
	}
}

func TestSentinelDate(t *testing.T) {
	d := SentinelDate()
	if d.Year != "1000" || d.Month != "01" || d.Day != "01" {
		t.Errorf("SentinelDate() = %+v, want 1000-01-01", d)
	}
	if got := d.String(); got != "1000-01-01" {
		t.Errorf("SentinelDate().String() = %q, want %q", got, "1000-01-01")
	}
}
