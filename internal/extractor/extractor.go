// Package extractor wraps the yt-dlp binary behind a narrow gateway
// interface. The service layer depends only on the interface; tests
// substitute fakes.
package extractor

import (
	"context"

	"github.com/ripclip/ripclip/internal/domain"
)

// Gateway is the extraction contract the service layer depends on.
type Gateway interface {
	// FetchMetadata returns preview metadata for a single video.
	// No filesystem side effects.
	FetchMetadata(ctx context.Context, url string) (*domain.VideoMetadata, error)

	// FetchList returns a profile's flattened video listing.
	// No filesystem side effects.
	FetchList(ctx context.Context, url string) (*domain.Listing, error)

	// Download writes at most one artifact to destPath, or fails leaving
	// no usable artifact behind.
	Download(ctx context.Context, url, destPath string) error
}
