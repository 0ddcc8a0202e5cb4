package watch

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestDebouncer_CollectsBurst(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	var mu sync.Mutex
	var got [][]string
	d.SetCallback(func(files []string) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, files)
	})

	d.Add("main.py")
	d.Add("requirements.txt")
	d.Add("main.py")

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("Expected 1 callback, got %d", len(got))
	}
	files := got[0]
	sort.Strings(files)
	if len(files) != 2 || files[0] != "main.py" || files[1] != "requirements.txt" {
		t.Errorf("Expected deduplicated files, got %v", files)
	}
}

func TestDebouncer_ResetsTimerOnAdd(t *testing.T) {
	d := NewDebouncer(80 * time.Millisecond)
	defer d.Stop()

	var mu sync.Mutex
	calls := 0
	d.SetCallback(func(files []string) {
		mu.Lock()
		defer mu.Unlock()
		calls++
	})

	d.Add("a.py")
	time.Sleep(40 * time.Millisecond)
	d.Add("b.py")
	time.Sleep(40 * time.Millisecond)

	mu.Lock()
	if calls != 0 {
		mu.Unlock()
		t.Fatal("Expected no callback while changes keep arriving")
	}
	mu.Unlock()

	time.Sleep(150 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("Expected 1 callback after burst settled, got %d", calls)
	}
}

func TestFileWatcher_MatchesPattern(t *testing.T) {
	fw := &FileWatcher{patterns: DefaultPatterns}

	tests := []struct {
		path string
		want bool
	}{
		{"app/main.py", true},
		{"requirements.txt", true},
		{"dockhand.yml", true},
		{"notes.md", false},
		{"app/static/logo.png", false},
	}

	for _, tt := range tests {
		if got := fw.matchesPattern(tt.path); got != tt.want {
			t.Errorf("matchesPattern(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestFileWatcher_ShouldIgnore(t *testing.T) {
	fw := &FileWatcher{ignored: []string{"*.tmp"}}

	tests := []struct {
		path string
		want bool
	}{
		{".dockhand/Containerfile", true},
		{"app/__pycache__/main.cpython-311.pyc", true},
		{".env", true},
		{"scratch.tmp", true},
		{"app/main.py", false},
	}

	for _, tt := range tests {
		if got := fw.shouldIgnore(tt.path); got != tt.want {
			t.Errorf("shouldIgnore(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestFileWatcher_TriggersOnChange(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "app"), 0o755); err != nil {
		t.Fatal(err)
	}

	changed := make(chan []string, 1)
	fw, err := NewFileWatcher(dir, nil, nil, zap.NewNop(), func(files []string) error {
		select {
		case changed <- files:
		default:
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	if err := fw.Start(); err != nil {
		t.Fatalf("Failed to start watcher: %v", err)
	}
	defer fw.Stop()

	path := filepath.Join(dir, "app", "main.py")
	if err := os.WriteFile(path, []byte("app = None\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case files := <-changed:
		if len(files) == 0 {
			t.Error("Expected changed files in callback")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Timed out waiting for change callback")
	}
}

func TestFileWatcher_IgnoresWorkDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ".dockhand"), 0o755); err != nil {
		t.Fatal(err)
	}

	changed := make(chan []string, 1)
	fw, err := NewFileWatcher(dir, nil, nil, zap.NewNop(), func(files []string) error {
		changed <- files
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	if err := fw.Start(); err != nil {
		t.Fatalf("Failed to start watcher: %v", err)
	}
	defer fw.Stop()

	path := filepath.Join(dir, ".dockhand", "history.db")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case files := <-changed:
		t.Fatalf("Expected no callback for work directory, got %v", files)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestFileWatcher_StopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	fw, err := NewFileWatcher(dir, nil, nil, zap.NewNop(), func([]string) error { return nil })
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	if err := fw.Start(); err != nil {
		t.Fatalf("Failed to start watcher: %v", err)
	}

	if err := fw.Stop(); err != nil {
		t.Errorf("First stop failed: %v", err)
	}
	if err := fw.Stop(); err != nil {
		t.Errorf("Second stop failed: %v", err)
	}
}
