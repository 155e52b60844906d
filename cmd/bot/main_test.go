package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

// startOwner runs a process that stands in for another bot holding the lock.
// It is reaped as soon as it exits so the lock sees it as dead.
func startOwner(t *testing.T, script string) (int, <-chan struct{}) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	cmd := exec.Command("sh", "-c", script)
	if err := cmd.Start(); err != nil {
		t.Fatalf("failed to start owner: %v", err)
	}
	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		<-done
	})
	// Let the shell install its traps before it gets signalled.
	time.Sleep(100 * time.Millisecond)
	return cmd.Process.Pid, done
}

func writeLock(t *testing.T, path string, pid int) {
	t.Helper()
	if err := os.WriteFile(path, []byte(fmt.Sprintf("%d\n", pid)), 0o644); err != nil {
		t.Fatalf("failed to write lock: %v", err)
	}
}

func lockPid(t *testing.T, path string) int {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read lock: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		t.Fatalf("lock holds no pid: %q", b)
	}
	return pid
}

func TestAcquireLock(t *testing.T) {
	prev := lockRetryInterval
	lockRetryInterval = 20 * time.Millisecond
	t.Cleanup(func() { lockRetryInterval = prev })

	tests := []struct {
		name    string
		owner   string // shell script of a running owner, empty for none
		dead    bool   // owner has already exited
		restart bool
		wantErr string
	}{
		{name: "free lock"},
		{name: "dead owner", owner: "exit 0", dead: true},
		{name: "running owner", owner: "exec sleep 30", wantErr: "another bot running"},
		{name: "restart interrupts owner", owner: "exec sleep 30", restart: true},
		{name: "owner ignores interrupt", owner: `trap "" INT; exec sleep 30`, restart: true, wantErr: "did not release"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bot.lock")
			if tt.owner != "" {
				pid, exited := startOwner(t, tt.owner)
				if tt.dead {
					select {
					case <-exited:
					case <-time.After(5 * time.Second):
						t.Fatal("owner did not exit")
					}
				}
				writeLock(t, path, pid)
			}

			flock, err := acquireLock(context.Background(), path, tt.restart, 500*time.Millisecond)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("acquireLock failed: %v", err)
			}
			defer flock.Unlock()
			if pid := lockPid(t, path); pid != os.Getpid() {
				t.Errorf("Expected lock owned by %d, got %d", os.Getpid(), pid)
			}
		})
	}
}

func TestWaitTimeout(t *testing.T) {
	tests := []struct {
		name  string
		takes time.Duration
		limit time.Duration
		want  bool
	}{
		{"round finishes in time", 10 * time.Millisecond, time.Second, true},
		{"round overruns", time.Second, 50 * time.Millisecond, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			release := make(chan struct{})
			defer close(release)
			wait := func() {
				select {
				case <-time.After(tt.takes):
				case <-release:
				}
			}
			if got := waitTimeout(wait, tt.limit); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}
