// Package workspace manages ephemeral per-request scratch directories.
//
// Every download gets its own directory under a shared temp root, holding
// exactly one media file for the lifetime of the request. Release is
// idempotent and must run on every exit path.
package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ripclip/ripclip/internal/domain"
)

// dirPrefix marks directories under the root as managed workspaces.
const dirPrefix = "ws_"

// Manager creates uniquely named workspaces under a common root.
type Manager struct {
	root   string
	logger *slog.Logger
}

// NewManager ensures the root directory exists and returns a manager.
func NewManager(root string, logger *slog.Logger) (*Manager, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}
	return &Manager{root: root, logger: logger}, nil
}

// Root returns the directory workspaces are created under.
func (m *Manager) Root() string {
	return m.root
}

// Acquire creates an empty, uniquely named workspace directory.
func (m *Manager) Acquire() (*Workspace, error) {
	path := filepath.Join(m.root, dirPrefix+uuid.NewString())
	if err := os.Mkdir(path, 0o700); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrWorkspaceCreate, err)
	}
	return &Workspace{path: path, logger: m.logger}, nil
}

// ActiveCount reports how many workspaces currently exist under the root.
func (m *Manager) ActiveCount() (int, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), dirPrefix) {
			count++
		}
	}
	return count, nil
}

// Workspace is one ephemeral scratch directory.
type Workspace struct {
	path    string
	logger  *slog.Logger
	release sync.Once
}

// Path returns the workspace directory.
func (w *Workspace) Path() string {
	return w.path
}

// ArtifactPath returns the path of the workspace's single media file,
// named by the video's listing index.
func (w *Workspace) ArtifactPath(index int) string {
	return filepath.Join(w.path, fmt.Sprintf("%d.mp4", index))
}

// Release removes the workspace directory and everything in it. Safe to
// call more than once; only the first call removes anything. Removal
// failures are logged and swallowed so cleanup never masks the primary
// result.
func (w *Workspace) Release() {
	w.release.Do(func() {
		if err := os.RemoveAll(w.path); err != nil {
			w.logger.Warn("workspace removal failed", "path", w.path, "error", err)
			return
		}
		w.logger.Debug("workspace removed", "path", w.path)
	})
}
