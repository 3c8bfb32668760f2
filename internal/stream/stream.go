// Package stream transfers downloaded artifacts to callers in fixed-size
// chunks and releases the owning workspace when the transfer ends.
package stream

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/ripclip/ripclip/internal/domain"
	"github.com/ripclip/ripclip/internal/workspace"
)

const defaultChunkSize = 1 << 20 // 1MB

// Responder copies artifacts without loading them into memory.
type Responder struct {
	chunkSize int
	logger    *slog.Logger
}

// NewResponder creates a responder with the given chunk size.
func NewResponder(chunkSize int, logger *slog.Logger) *Responder {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &Responder{chunkSize: chunkSize, logger: logger}
}

// Stream copies the artifact to dst chunk by chunk. The workspace is
// released exactly once on every path: normal completion, missing
// artifact, or a failed write (client disconnects included). When dst
// implements http.Flusher, every chunk is flushed as it is written.
//
// Returns the number of bytes written to dst. A missing artifact is
// reported as ErrArtifactMissing before any byte is written.
func (r *Responder) Stream(dst io.Writer, ws *workspace.Workspace, artifactPath string) (int64, error) {
	defer ws.Release()

	f, err := os.Open(artifactPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: %v", domain.ErrArtifactMissing, err)
		}
		return 0, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	flusher, _ := dst.(http.Flusher)

	var written int64
	buf := make([]byte, r.chunkSize)
	for {
		n, readErr := io.ReadFull(f, buf)
		if n > 0 {
			wn, writeErr := dst.Write(buf[:n])
			written += int64(wn)
			if writeErr != nil {
				return written, fmt.Errorf("write chunk: %w", writeErr)
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		// io.EOF means a clean end on a chunk boundary; ErrUnexpectedEOF
		// means the final chunk was partial. Both end the stream.
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			r.logger.Debug("artifact streamed", "path", artifactPath, "bytes", written)
			return written, nil
		}
		if readErr != nil {
			return written, fmt.Errorf("read artifact: %w", readErr)
		}
	}
}
