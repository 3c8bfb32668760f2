package domain

import "errors"

// Domain errors.
var (
	// ErrInvalidURL is returned when a URL cannot be parsed or uses an unsupported scheme.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrBlockedURL is returned when a URL targets loopback, link-local, or private addresses.
	ErrBlockedURL = errors.New("URL targets blocked address")

	// ErrUnsupportedPlatform is returned when no supported platform matches the URL.
	ErrUnsupportedPlatform = errors.New("unsupported platform")

	// ErrVideoUnavailable is returned when the platform reports the video as private or removed.
	ErrVideoUnavailable = errors.New("video unavailable")

	// ErrExtractionFailed is returned when metadata extraction fails.
	ErrExtractionFailed = errors.New("metadata extraction failed")

	// ErrDownloadFailed is returned when the video download fails.
	ErrDownloadFailed = errors.New("video download failed")

	// ErrDownloadTimeout is returned when the download times out.
	ErrDownloadTimeout = errors.New("video download timed out")

	// ErrWorkspaceCreate is returned when a scratch directory cannot be created.
	ErrWorkspaceCreate = errors.New("workspace creation failed")

	// ErrArtifactMissing is returned when a download reports success without producing a file.
	ErrArtifactMissing = errors.New("downloaded file missing")

	// ErrUnknownFilter is returned when a requested pixel filter is not recognized.
	ErrUnknownFilter = errors.New("unknown pixel filter")

	// ErrFilterUnavailable is returned when filtering is requested but ffmpeg is not installed.
	ErrFilterUnavailable = errors.New("pixel filters unavailable")

	// ErrTranscodeFailed is returned when pixel filter transcoding fails.
	ErrTranscodeFailed = errors.New("pixel filter transcoding failed")

	// ErrHistoryDisabled is returned when the download journal is not configured.
	ErrHistoryDisabled = errors.New("history journal disabled")
)

// FetchError wraps an error with the operation and URL that produced it.
type FetchError struct {
	Op  string
	URL string
	Err error
}

func (e *FetchError) Error() string {
	if e.URL != "" {
		return e.Op + " [" + e.URL + "]: " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a new FetchError.
func NewFetchError(op, url string, err error) *FetchError {
	return &FetchError{
		Op:  op,
		URL: url,
		Err: err,
	}
}
