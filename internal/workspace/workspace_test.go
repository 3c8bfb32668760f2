package workspace

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ripclip/ripclip/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestManager_Acquire(t *testing.T) {
	mgr, err := NewManager(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	ws, err := mgr.Acquire()
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer ws.Release()

	info, err := os.Stat(ws.Path())
	if err != nil {
		t.Fatalf("workspace directory missing: %v", err)
	}
	if !info.IsDir() {
		t.Error("workspace path is not a directory")
	}

	entries, err := os.ReadDir(ws.Path())
	if err != nil {
		t.Fatalf("read workspace: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("new workspace has %d entries, want 0", len(entries))
	}
}

func TestManager_AcquireUniquePaths(t *testing.T) {
	mgr, err := NewManager(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		ws, err := mgr.Acquire()
		if err != nil {
			t.Fatalf("Acquire %d failed: %v", i, err)
		}
		defer ws.Release()

		if seen[ws.Path()] {
			t.Fatalf("duplicate workspace path %q", ws.Path())
		}
		seen[ws.Path()] = true
	}
}

func TestManager_AcquireRootDenied(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}

	root := filepath.Join(t.TempDir(), "readonly")
	if err := os.Mkdir(root, 0o500); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}

	mgr := &Manager{root: root, logger: testLogger()}
	_, err := mgr.Acquire()
	if err == nil {
		t.Fatal("Acquire should fail in read-only root")
	}
	if !errors.Is(err, domain.ErrWorkspaceCreate) {
		t.Errorf("error = %v, want ErrWorkspaceCreate", err)
	}
}

func TestManager_ActiveCount(t *testing.T) {
	mgr, err := NewManager(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	count, err := mgr.ActiveCount()
	if err != nil {
		t.Fatalf("ActiveCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("ActiveCount = %d, want 0", count)
	}

	first, err := mgr.Acquire()
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	second, err := mgr.Acquire()
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer second.Release()

	// Stray files and foreign directories under the root don't count.
	if err := os.WriteFile(filepath.Join(mgr.Root(), "stray.mp4"), []byte("x"), 0o600); err != nil {
		t.Fatalf("write stray file: %v", err)
	}
	if err := os.Mkdir(filepath.Join(mgr.Root(), "lost+found"), 0o700); err != nil {
		t.Fatalf("mkdir foreign dir: %v", err)
	}

	count, err = mgr.ActiveCount()
	if err != nil {
		t.Fatalf("ActiveCount failed: %v", err)
	}
	if count != 2 {
		t.Errorf("ActiveCount = %d, want 2", count)
	}

	first.Release()

	count, err = mgr.ActiveCount()
	if err != nil {
		t.Fatalf("ActiveCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("ActiveCount = %d, want 1 after release", count)
	}
}

func TestManager_CreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "workspaces")

	if _, err := NewManager(root, testLogger()); err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	info, err := os.Stat(root)
	if err != nil {
		t.Fatalf("root missing: %v", err)
	}
	if !info.IsDir() {
		t.Error("root is not a directory")
	}
}

func TestWorkspace_ArtifactPath(t *testing.T) {
	ws := &Workspace{path: "/tmp/ripclip/ws_abc", logger: testLogger()}

	got := ws.ArtifactPath(7)
	want := filepath.Join("/tmp/ripclip/ws_abc", "7.mp4")
	if got != want {
		t.Errorf("ArtifactPath(7) = %q, want %q", got, want)
	}
	if !strings.HasPrefix(got, ws.Path()) {
		t.Error("artifact path should be inside the workspace")
	}
}

func TestWorkspace_ReleaseRemovesContents(t *testing.T) {
	mgr, err := NewManager(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	ws, err := mgr.Acquire()
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	artifact := ws.ArtifactPath(1)
	if err := os.WriteFile(artifact, []byte("video bytes"), 0o600); err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	ws.Release()

	if _, err := os.Stat(artifact); !os.IsNotExist(err) {
		t.Error("artifact should be removed after release")
	}
	if _, err := os.Stat(ws.Path()); !os.IsNotExist(err) {
		t.Error("workspace directory should be removed after release")
	}
}

func TestWorkspace_ReleaseIdempotent(t *testing.T) {
	mgr, err := NewManager(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	ws, err := mgr.Acquire()
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	ws.Release()
	// Second and third calls must not panic or error even though the
	// directory is already gone.
	ws.Release()
	ws.Release()

	if _, err := os.Stat(ws.Path()); !os.IsNotExist(err) {
		t.Error("workspace directory should stay removed")
	}
}

func TestWorkspace_ReleaseToleratesExternalRemoval(t *testing.T) {
	mgr, err := NewManager(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	ws, err := mgr.Acquire()
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	// Something else already removed the directory.
	if err := os.RemoveAll(ws.Path()); err != nil {
		t.Fatalf("remove workspace: %v", err)
	}

	ws.Release()
}
