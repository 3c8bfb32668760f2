package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ripclip/ripclip/internal/domain"
	"github.com/ripclip/ripclip/internal/history"
	"github.com/ripclip/ripclip/internal/service"
	"github.com/ripclip/ripclip/internal/stream"
	"github.com/ripclip/ripclip/internal/workspace"
)

// testLogger returns a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockGateway is a test implementation of extractor.Gateway.
type mockGateway struct {
	mu sync.Mutex

	meta    *domain.VideoMetadata
	metaErr error

	listing *domain.Listing
	listErr error

	downloadErr error
	artifact    []byte // written to destPath on successful Download

	listCalls int
}

func (m *mockGateway) FetchMetadata(ctx context.Context, url string) (*domain.VideoMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.metaErr != nil {
		return nil, m.metaErr
	}
	meta := *m.meta
	return &meta, nil
}

func (m *mockGateway) FetchList(ctx context.Context, url string) (*domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.listing, nil
}

func (m *mockGateway) Download(ctx context.Context, url, destPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.downloadErr != nil {
		return m.downloadErr
	}
	if m.artifact != nil {
		return os.WriteFile(destPath, m.artifact, 0o600)
	}
	return nil
}

// newTestService builds a real media service over a mock extractor.
// journal may be nil to disable history.
func newTestService(t *testing.T, gw *mockGateway, journal *history.Journal) (*service.MediaService, *workspace.Manager) {
	t.Helper()

	mgr, err := workspace.NewManager(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	cfg := service.MediaServiceConfig{MaxProfileEntries: 100, RetryDelay: time.Millisecond}
	return service.NewMediaService(gw, mgr, nil, journal, cfg, testLogger()), mgr
}

// newMediaHandler wraps a service in a handler with a 50MB advertised cap.
func newMediaHandler(svc *service.MediaService) *MediaHandler {
	return NewMediaHandler(svc, stream.NewResponder(0, testLogger()), 50, testLogger())
}

// testJournal opens a throwaway journal backed by a temp database.
func testJournal(t *testing.T) *history.Journal {
	t.Helper()

	j, err := history.NewJournal(filepath.Join(t.TempDir(), "history.db"), 30, testLogger())
	if err != nil {
		t.Fatalf("NewJournal() error = %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

// errorMessage decodes the error field of a JSON error response.
func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body["error"]
}

// waitForEntries polls the journal until it holds want entries or the
// deadline passes. Journal writes happen on background goroutines.
func waitForEntries(t *testing.T, j *history.Journal, want int) []history.Entry {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		entries, total, err := j.Recent(context.Background(), 50, 0)
		if err != nil {
			t.Fatalf("Recent() error = %v", err)
		}
		if total >= want {
			return entries
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("journal never reached %d entries", want)
	return nil
}

var (
	errGatewayDown = errors.New("extractor exploded")
	errClientGone  = errors.New("client gone")
)
