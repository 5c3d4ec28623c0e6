package filelock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestNewFileLock(t *testing.T) {
	tmpDir := t.TempDir()
	lockPath := filepath.Join(tmpDir, "test.lock")

	lock := NewFileLock(lockPath)
	if lock == nil {
		t.Fatal("NewFileLock should not return nil")
	}
	if lock.Path() != lockPath {
		t.Errorf("Expected lock path %s, got %s", lockPath, lock.Path())
	}
}

func TestLockCreatesParentDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	lockPath := filepath.Join(tmpDir, "nested", "locks", "test.lock")

	lock := NewFileLock(lockPath)
	if err := lock.Lock(); err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	if err := lock.Unlock(); err != nil {
		t.Fatalf("Failed to release lock: %v", err)
	}
}

func TestLockPathForIsStableAndOutsideTarget(t *testing.T) {
	lockDir := t.TempDir()
	a := LockPathFor(lockDir, "pkg/module.py")
	b := LockPathFor(lockDir, "./pkg/../pkg/module.py")
	if a != b {
		t.Errorf("equivalent targets should share a lock: %s vs %s", a, b)
	}
	if filepath.Dir(a) != lockDir {
		t.Errorf("lock should live in lockDir, got %s", a)
	}
	if LockPathFor(lockDir, "pkg/other.py") == a {
		t.Error("different targets must not share a lock")
	}
}

func TestConcurrentLocking(t *testing.T) {
	tmpDir := t.TempDir()
	lockPath := filepath.Join(tmpDir, "test.lock")

	const goroutines = 5
	const iterations = 10

	counterPath := filepath.Join(tmpDir, "counter.txt")
	os.WriteFile(counterPath, []byte("0"), 0644)

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()

			for j := 0; j < iterations; j++ {
				lock := NewFileLock(lockPath)
				if err := lock.Lock(); err != nil {
					t.Errorf("Failed to acquire lock: %v", err)
					return
				}

				data, err := os.ReadFile(counterPath)
				if err != nil {
					t.Errorf("Failed to read counter: %v", err)
					lock.Unlock()
					return
				}

				var counter int
				fmt.Sscanf(string(data), "%d", &counter)
				time.Sleep(1 * time.Millisecond)
				counter++

				if err := os.WriteFile(counterPath, []byte(fmt.Sprintf("%d", counter)), 0644); err != nil {
					t.Errorf("Failed to write counter: %v", err)
					lock.Unlock()
					return
				}

				if err := lock.Unlock(); err != nil {
					t.Errorf("Failed to release lock: %v", err)
					return
				}
			}
		}()
	}

	wg.Wait()

	data, err := os.ReadFile(counterPath)
	if err != nil {
		t.Fatalf("Failed to read final counter: %v", err)
	}
	var finalCounter int
	fmt.Sscanf(string(data), "%d", &finalCounter)

	if expected := goroutines * iterations; finalCounter != expected {
		t.Errorf("Expected counter %d, got %d (race condition detected)", expected, finalCounter)
	}
}

func TestTryLockWithBackoffTimesOut(t *testing.T) {
	tmpDir := t.TempDir()
	lockPath := filepath.Join(tmpDir, "held.lock")

	holder := NewFileLock(lockPath)
	if err := holder.Lock(); err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	defer holder.Unlock()

	contender := NewFileLock(lockPath)
	start := time.Now()
	err := contender.TryLockWithBackoff(context.Background(), 3, 5*time.Millisecond)
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("Expected ErrLockTimeout, got %v", err)
	}
	// 5ms + 10ms of backoff between three attempts
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Errorf("Expected exponential backoff to wait at least 15ms, waited %v", elapsed)
	}
}

func TestTryLockWithBackoffAcquiresAfterRelease(t *testing.T) {
	tmpDir := t.TempDir()
	lockPath := filepath.Join(tmpDir, "released.lock")

	holder := NewFileLock(lockPath)
	if err := holder.Lock(); err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	go func() {
		time.Sleep(20 * time.Millisecond)
		holder.Unlock()
	}()

	contender := NewFileLock(lockPath)
	if err := contender.TryLockWithBackoff(context.Background(), 8, 5*time.Millisecond); err != nil {
		t.Fatalf("Expected lock after release, got %v", err)
	}
	contender.Unlock()
}

func TestLockWithTimeout(t *testing.T) {
	tmpDir := t.TempDir()
	lockPath := filepath.Join(tmpDir, "planning.lock")

	first := NewFileLock(lockPath)
	if err := first.LockWithTimeout(context.Background(), 100*time.Millisecond, 5*time.Millisecond); err != nil {
		t.Fatalf("First lock should succeed: %v", err)
	}
	defer first.Unlock()

	second := NewFileLock(lockPath)
	err := second.LockWithTimeout(context.Background(), 30*time.Millisecond, 5*time.Millisecond)
	if !errors.Is(err, ErrLockTimeout) {
		t.Errorf("Expected ErrLockTimeout, got %v", err)
	}
}

func TestAtomicWrite(t *testing.T) {
	tmpDir := t.TempDir()
	targetPath := filepath.Join(tmpDir, "sub", "test.py")

	content := []byte("import os\n")
	if err := AtomicWrite(targetPath, content); err != nil {
		t.Fatalf("AtomicWrite failed: %v", err)
	}

	readContent, err := os.ReadFile(targetPath)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(readContent) != string(content) {
		t.Errorf("Expected content %q, got %q", string(content), string(readContent))
	}
}

func TestAtomicWritePreservesMode(t *testing.T) {
	tmpDir := t.TempDir()
	targetPath := filepath.Join(tmpDir, "script.py")
	if err := os.WriteFile(targetPath, []byte("old"), 0755); err != nil {
		t.Fatal(err)
	}

	if err := AtomicWrite(targetPath, []byte("new")); err != nil {
		t.Fatalf("AtomicWrite failed: %v", err)
	}

	info, err := os.Stat(targetPath)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0755 {
		t.Errorf("Expected mode 0755 to be preserved, got %v", info.Mode().Perm())
	}
}

func TestAtomicWriteNoTempFileLeftBehind(t *testing.T) {
	tmpDir := t.TempDir()
	targetPath := filepath.Join(tmpDir, "test.txt")

	if err := AtomicWrite(targetPath, []byte("data")); err != nil {
		t.Fatalf("AtomicWrite failed: %v", err)
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != "test.txt" {
			t.Errorf("Unexpected leftover file %s", e.Name())
		}
	}
}

func TestLockAndWrite(t *testing.T) {
	tmpDir := t.TempDir()
	lockDir := filepath.Join(tmpDir, "locks")
	targetPath := filepath.Join(tmpDir, "module.py")

	err := LockAndWrite(context.Background(), lockDir, targetPath, []byte("x = 1\n"), 3, time.Millisecond)
	if err != nil {
		t.Fatalf("LockAndWrite failed: %v", err)
	}

	data, err := os.ReadFile(targetPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "x = 1\n" {
		t.Errorf("Unexpected content %q", string(data))
	}
}

func TestLockAndWriteContended(t *testing.T) {
	tmpDir := t.TempDir()
	lockDir := filepath.Join(tmpDir, "locks")
	targetPath := filepath.Join(tmpDir, "module.py")

	holder := NewFileLock(LockPathFor(lockDir, targetPath))
	if err := holder.Lock(); err != nil {
		t.Fatal(err)
	}
	defer holder.Unlock()

	err := LockAndWrite(context.Background(), lockDir, targetPath, []byte("x = 1\n"), 2, time.Millisecond)
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("Expected ErrLockTimeout, got %v", err)
	}
	if _, statErr := os.Stat(targetPath); !os.IsNotExist(statErr) {
		t.Error("No write should happen without the lock")
	}
}
