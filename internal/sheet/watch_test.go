package sheet

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func waitChange(t *testing.T, w *Watcher, timeout time.Duration) bool {
	t.Helper()
	select {
	case _, ok := <-w.Changes():
		return ok
	case <-time.After(timeout):
		return false
	}
}

func TestWatcher_StartStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.yaml")
	w, err := NewWatcher(path, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}

	if w.IsRunning() {
		t.Error("watcher running before Start()")
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if !w.IsRunning() {
		t.Error("watcher not running after Start()")
	}
	if err := w.Start(); err == nil {
		t.Error("second Start() expected error")
	}

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if w.IsRunning() {
		t.Error("watcher running after Stop()")
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop() failed: %v", err)
	}
	if _, ok := <-w.Changes(); ok {
		t.Error("Changes() not closed after Stop()")
	}
}

func TestWatcher_ReportsWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schedule.yaml")
	if err := os.WriteFile(path, []byte("values: []\n"), 0644); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(path, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer w.Stop()

	// Several quick writes settle into a single notification.
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte("values: [[Date, Time, Location]]\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if !waitChange(t, w, 2*time.Second) {
		t.Fatal("no change reported after write")
	}
	select {
	case <-w.Changes():
		t.Error("burst of writes reported more than once")
	case <-time.After(200 * time.Millisecond):
	}

	// Save-by-rename is reported too.
	tmp := filepath.Join(dir, ".schedule.yaml.tmp")
	if err := os.WriteFile(tmp, []byte("values: []\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}
	if !waitChange(t, w, 2*time.Second) {
		t.Fatal("no change reported after rename")
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schedule.yaml")

	w, err := NewWatcher(path, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0644); err != nil {
		t.Fatal(err)
	}
	if waitChange(t, w, 200*time.Millisecond) {
		t.Error("change reported for an unrelated file")
	}
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w, err := NewWatcher(filepath.Join(t.TempDir(), "nope", "schedule.yaml"), 0)
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	defer w.Stop()
	if err := w.Start(); err == nil {
		t.Error("Start() on a missing directory expected error")
	}
}
