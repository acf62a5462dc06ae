package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func startWatcher(t *testing.T, w *Watcher) (stop func() error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	done := make(chan error, 1)

	go func() { done <- w.Run(ctx, ready) }()

	select {
	case <-ready:
	case err := <-done:
		cancel()
		t.Fatalf("Run() exited early: %v", err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("watcher never became ready")
	}

	return func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("Run() did not return after cancel")
			return nil
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWatcher_DebouncesBurstIntoOneRerun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "echonull.yaml")
	if err := os.WriteFile(path, []byte("sweep:\n  runs: 1\n"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	var calls atomic.Int32
	w := &Watcher{
		Path:     path,
		Debounce: 200 * time.Millisecond,
		OnChange: func(context.Context) error {
			calls.Add(1)
			return nil
		},
	}
	stop := startWatcher(t, w)

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("sweep:\n  runs: 2\n"), 0644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	waitFor(t, func() bool { return calls.Load() >= 1 })
	// Give a second rerun a chance to (wrongly) fire.
	time.Sleep(400 * time.Millisecond)

	if err := stop(); err != nil {
		t.Errorf("Run() error = %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("OnChange called %d times, want 1", got)
	}
	if w.Reruns() != 1 {
		t.Errorf("Reruns() = %d, want 1", w.Reruns())
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "echonull.yaml")
	if err := os.WriteFile(path, []byte("{}"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	var calls atomic.Int32
	w := &Watcher{
		Path:     path,
		Debounce: 50 * time.Millisecond,
		OnChange: func(context.Context) error {
			calls.Add(1)
			return nil
		},
	}
	stop := startWatcher(t, w)

	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	time.Sleep(300 * time.Millisecond)

	if err := stop(); err != nil {
		t.Errorf("Run() error = %v", err)
	}
	if got := calls.Load(); got != 0 {
		t.Errorf("OnChange called %d times for an unrelated file", got)
	}
}

func TestWatcher_KeepsGoingAfterFailedRerun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "echonull.yaml")
	if err := os.WriteFile(path, []byte("{}"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	var calls atomic.Int32
	w := &Watcher{
		Path:     path,
		Debounce: 50 * time.Millisecond,
		OnChange: func(context.Context) error {
			calls.Add(1)
			return os.ErrInvalid
		},
	}
	stop := startWatcher(t, w)

	os.WriteFile(path, []byte("a"), 0644)
	waitFor(t, func() bool { return calls.Load() == 1 })
	os.WriteFile(path, []byte("b"), 0644)
	waitFor(t, func() bool { return calls.Load() == 2 })

	if err := stop(); err != nil {
		t.Errorf("Run() error = %v", err)
	}
}

func TestWatcher_RequiresOnChange(t *testing.T) {
	w := &Watcher{Path: filepath.Join(t.TempDir(), "x.yaml")}
	if err := w.Run(context.Background(), nil); err == nil {
		t.Error("Run() without OnChange should fail")
	}
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w := &Watcher{
		Path:     filepath.Join(t.TempDir(), "missing", "x.yaml"),
		OnChange: func(context.Context) error { return nil },
	}
	if err := w.Run(context.Background(), nil); err == nil {
		t.Error("Run() on a missing directory should fail")
	}
}
