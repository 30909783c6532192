package downloads

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
	"toolshed/internal/config"
	"toolshed/internal/models"
)

func testConfig(t *testing.T) config.DownloadsConfig {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default().Downloads
	cfg.WatchPath = filepath.Join(root, "Downloads")
	cfg.SortedPath = filepath.Join(root, "Downloads", "Sorted")
	cfg.HistoryFile = filepath.Join(root, "history.json")
	cfg.StabilityThresholdMs = 50
	cfg.PollIntervalMs = 10
	return cfg
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestCategorize(t *testing.T) {
	categories := config.Categories{
		{Name: "archives", Extensions: []string{".zip"}},
		{Name: "images", Extensions: []string{".png", ".zip"}},
	}
	tests := []struct {
		name string
		want string
	}{
		{"photo.PNG", "images"},
		{"bundle.zip", "archives"},
		{"notes", OtherCategory},
		{"movie.mkv", OtherCategory},
	}
	for _, tt := range tests {
		if got := Categorize(tt.name, categories); got != tt.want {
			t.Errorf("Categorize(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestShouldIgnore(t *testing.T) {
	ignored := []string{".crdownload", ".part"}
	if !ShouldIgnore("big.iso.CRDOWNLOAD", ignored) {
		t.Error("partial download should be ignored")
	}
	if ShouldIgnore("big.iso", ignored) {
		t.Error("finished download should not be ignored")
	}
}

func TestSorterSort(t *testing.T) {
	cfg := testConfig(t)
	history := OpenHistory(cfg.HistoryFile, nil)
	sorter := NewSorter(cfg, history, nil)
	if err := sorter.Prepare(); err != nil {
		t.Fatal(err)
	}

	writeFile(t, filepath.Join(cfg.SortedPath, "images", "cat.png"), "old cat")
	src := filepath.Join(cfg.WatchPath, "cat.png")
	writeFile(t, src, "new cat")

	entry, err := sorter.Sort(src)
	if err != nil {
		t.Fatal(err)
	}
	if entry == nil {
		t.Fatal("Expected a history entry")
	}

	want := filepath.Join(cfg.SortedPath, "images", "cat_1.png")
	if entry.SortedPath != want {
		t.Errorf("Expected %s, got %s", want, entry.SortedPath)
	}
	if entry.Hash == nil || len(*entry.Hash) != 64 {
		t.Errorf("Expected a sha256 hash, got %v", entry.Hash)
	}
	if entry.Size != int64(len("new cat")) {
		t.Errorf("unexpected size %d", entry.Size)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source should have been moved")
	}

	stats := sorter.Stats()
	if stats.TotalSorted != 1 || stats.ByCategory["images"] != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}

	recent := history.Recent(0)
	if len(recent) != 1 || recent[0].Filename != "cat.png" || recent[0].Timestamp == "" {
		t.Errorf("unexpected history %+v", recent)
	}
}

func TestSorterSkips(t *testing.T) {
	cfg := testConfig(t)
	cfg.DuplicateCheckEnabled = false
	sorter := NewSorter(cfg, nil, nil)
	if err := sorter.Prepare(); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{
		filepath.Join(cfg.WatchPath, ".hidden.png"),
		filepath.Join(cfg.WatchPath, "movie.mkv.part"),
		filepath.Join(cfg.SortedPath, "images", "done.png"),
	} {
		writeFile(t, path, "x")
		entry, err := sorter.Sort(path)
		if err != nil || entry != nil {
			t.Errorf("%s should be skipped, got %+v (%v)", path, entry, err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("%s should not have moved", path)
		}
	}

	path := filepath.Join(cfg.WatchPath, "readme")
	writeFile(t, path, "x")
	entry, err := sorter.Sort(path)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Category != OtherCategory || entry.Hash != nil {
		t.Errorf("Expected unhashed 'other' entry, got %+v", entry)
	}
}

func TestHistoryCapAndPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	h := OpenHistory(path, nil)
	for i := 0; i < MaxHistoryEntries+5; i++ {
		h.Add(models.HistoryEntry{Filename: fmt.Sprintf("file-%d", i)})
	}
	h.Add(models.HistoryEntry{Filename: "newest"})

	reopened := OpenHistory(path, nil)
	all := reopened.Recent(MaxHistoryEntries * 2)
	if len(all) != MaxHistoryEntries {
		t.Fatalf("Expected %d entries, got %d", MaxHistoryEntries, len(all))
	}
	if all[0].Filename != "newest" {
		t.Errorf("newest entry should be first, got %s", all[0].Filename)
	}
	if got := len(reopened.Recent(0)); got != DefaultHistoryLimit {
		t.Errorf("Expected default limit %d, got %d", DefaultHistoryLimit, got)
	}

	reopened.Clear()
	if got := len(OpenHistory(path, nil).Recent(10)); got != 0 {
		t.Errorf("Expected empty history after clear, got %d", got)
	}
}

func TestListAndDeleteFiles(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, filepath.Join(cfg.SortedPath, "images", "a.png"), "a")
	writeFile(t, filepath.Join(cfg.SortedPath, "other", "b"), "bb")
	writeFile(t, filepath.Join(cfg.SortedPath, "unconfigured", "c"), "c")

	all, err := ListFiles(cfg.SortedPath, cfg.Categories, "all")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("Expected 2 files from known categories, got %+v", all)
	}

	images, err := ListFiles(cfg.SortedPath, cfg.Categories, "images")
	if err != nil {
		t.Fatal(err)
	}
	if len(images) != 1 || images[0].Name != "a.png" || images[0].Size != 1 {
		t.Errorf("unexpected image listing %+v", images)
	}

	if _, err := ListFiles(cfg.SortedPath, cfg.Categories, "../etc"); !errors.Is(err, ErrInvalidName) {
		t.Errorf("Expected ErrInvalidName, got %v", err)
	}

	if err := DeleteFile(cfg.SortedPath, "images", "../other/b"); !errors.Is(err, ErrInvalidName) {
		t.Errorf("Expected ErrInvalidName for traversal, got %v", err)
	}
	if err := DeleteFile(cfg.SortedPath, "images", "missing.png"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := DeleteFile(cfg.SortedPath, "images", "a.png"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(cfg.SortedPath, "images", "a.png")); !os.IsNotExist(err) {
		t.Error("file should be deleted")
	}
}

func waitFor(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", path)
}

func TestWatcherSortsExistingAndNewFiles(t *testing.T) {
	cfg := testConfig(t)
	sorter := NewSorter(cfg, OpenHistory(cfg.HistoryFile, nil), nil)
	if err := sorter.Prepare(); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(cfg.WatchPath, "existing.pdf"), "pdf")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewWatcher(sorter, nil).Run(ctx) }()

	waitFor(t, filepath.Join(cfg.SortedPath, "documents", "existing.pdf"))

	writeFile(t, filepath.Join(cfg.WatchPath, "song.mp3"), "la")
	waitFor(t, filepath.Join(cfg.SortedPath, "audio", "song.mp3"))

	writeFile(t, filepath.Join(cfg.WatchPath, "nested", "clip.mp4"), "video")
	waitFor(t, filepath.Join(cfg.SortedPath, "videos", "clip.mp4"))

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("watcher returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}

	if got := sorter.Stats().TotalSorted; got != 3 {
		t.Errorf("Expected 3 sorted files, got %d", got)
	}
}

func TestWaitStableCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	writeFile(t, path, "x")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := waitStable(ctx, path, time.Hour, time.Millisecond); err == nil {
		t.Error("Expected an error when cancelled")
	}
}
