package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ripclip/ripclip/internal/domain"
)

// Config holds settings for the yt-dlp runner.
type Config struct {
	// BinPath is the yt-dlp executable, looked up in PATH when relative.
	BinPath string

	// SocketTimeout bounds each network operation inside yt-dlp.
	SocketTimeout time.Duration

	// MaxFileMB caps downloads; also used in the format selector.
	MaxFileMB int

	// LaunchRate and LaunchBurst pace subprocess spawns. The platforms
	// rate limit aggressively, so extraction bursts are smoothed here
	// rather than surfaced as backend failures.
	LaunchRate  float64
	LaunchBurst int

	// UserAgent is sent with every platform request.
	UserAgent string
}

// YtDlp runs the yt-dlp binary.
type YtDlp struct {
	bin       string
	timeout   time.Duration
	maxFileMB int
	userAgent string
	pace      *rate.Limiter
	logger    *slog.Logger
}

var _ Gateway = (*YtDlp)(nil)

// NewYtDlp locates the yt-dlp binary and configures the runner.
func NewYtDlp(cfg Config, logger *slog.Logger) (*YtDlp, error) {
	bin := cfg.BinPath
	if bin == "" {
		bin = "yt-dlp"
	}

	resolved, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp not found in PATH: %w", err)
	}

	launchRate := cfg.LaunchRate
	if launchRate <= 0 {
		launchRate = 4
	}
	burst := cfg.LaunchBurst
	if burst <= 0 {
		burst = 1
	}

	return &YtDlp{
		bin:       resolved,
		timeout:   cfg.SocketTimeout,
		maxFileMB: cfg.MaxFileMB,
		userAgent: cfg.UserAgent,
		pace:      rate.NewLimiter(rate.Limit(launchRate), burst),
		logger:    logger,
	}, nil
}

// Version returns the yt-dlp version string.
func (y *YtDlp) Version(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, y.bin, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("get yt-dlp version: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// FetchMetadata dumps a single video's JSON without downloading it.
func (y *YtDlp) FetchMetadata(ctx context.Context, url string) (*domain.VideoMetadata, error) {
	payload, err := y.dumpJSON(ctx, url, false)
	if err != nil {
		return nil, err
	}
	return payload.metadata(), nil
}

// FetchList dumps a profile's flat playlist JSON without downloading.
func (y *YtDlp) FetchList(ctx context.Context, url string) (*domain.Listing, error) {
	payload, err := y.dumpJSON(ctx, url, true)
	if err != nil {
		return nil, err
	}
	return payload.listing(), nil
}

// Download fetches the best format under the size cap into destPath.
func (y *YtDlp) Download(ctx context.Context, url, destPath string) error {
	if err := y.pace.Wait(ctx); err != nil {
		return err
	}

	args := y.commonArgs()
	args = append(args,
		"--format", fmt.Sprintf("best[filesize<%dM]/best", y.maxFileMB),
		"--merge-output-format", "mp4",
		"--no-playlist",
		"--output", destPath,
		url,
	)

	cmd := exec.CommandContext(ctx, y.bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	y.logger.Info("downloading video", "url", url)
	start := time.Now()
	if err := cmd.Run(); err != nil {
		return y.classify(ctx, "download", url, stderr.String(), err)
	}
	y.logger.Info("download finished", "url", url, "duration", time.Since(start))

	return nil
}

func (y *YtDlp) dumpJSON(ctx context.Context, url string, flat bool) (*videoPayload, error) {
	if err := y.pace.Wait(ctx); err != nil {
		return nil, err
	}

	args := y.commonArgs()
	args = append(args, "--dump-single-json", "--skip-download")
	if flat {
		args = append(args, "--flat-playlist")
	} else {
		args = append(args, "--no-playlist")
	}
	args = append(args, url)

	cmd := exec.CommandContext(ctx, y.bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	y.logger.Debug("extracting metadata", "url", url, "flat", flat)
	if err := cmd.Run(); err != nil {
		return nil, y.classify(ctx, "extract", url, stderr.String(), err)
	}

	var payload videoPayload
	if err := json.Unmarshal(stdout.Bytes(), &payload); err != nil {
		return nil, domain.NewFetchError("extract", url,
			fmt.Errorf("%w: parse yt-dlp output: %v", domain.ErrExtractionFailed, err))
	}

	return &payload, nil
}

func (y *YtDlp) commonArgs() []string {
	args := []string{
		"--no-warnings",
		"--no-check-certificates",
		"--socket-timeout", strconv.Itoa(int(y.timeout.Seconds())),
		"--user-agent", y.userAgent,
	}
	if y.maxFileMB > 0 {
		args = append(args, "--max-filesize", fmt.Sprintf("%dM", y.maxFileMB))
	}
	return args
}

// classify maps a yt-dlp failure onto a domain error using the stderr
// tail. yt-dlp reports user-level failures ("Private video", "Video
// unavailable") as plain ERROR lines rather than distinct exit codes.
func (y *YtDlp) classify(ctx context.Context, op, url, stderr string, runErr error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return domain.NewFetchError(op, url, domain.ErrDownloadTimeout)
	}

	tail := stderrTail(stderr, 300)
	detail := tail
	if detail == "" {
		detail = runErr.Error()
	}

	lower := strings.ToLower(detail)
	var kind error
	switch {
	case strings.Contains(lower, "unavailable"),
		strings.Contains(lower, "private"),
		strings.Contains(lower, "removed"),
		strings.Contains(lower, "does not exist"):
		kind = domain.ErrVideoUnavailable
	case op == "download":
		kind = domain.ErrDownloadFailed
	default:
		kind = domain.ErrExtractionFailed
	}

	y.logger.Warn("yt-dlp failed", "op", op, "url", url, "stderr", tail, "error", runErr)
	return domain.NewFetchError(op, url, fmt.Errorf("%w: %s", kind, detail))
}

// stderrTail keeps the last n bytes with whitespace collapsed; yt-dlp
// prints the decisive ERROR line last.
func stderrTail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		s = s[len(s)-n:]
	}
	return strings.Join(strings.Fields(s), " ")
}

// videoPayload is the subset of yt-dlp's JSON dump this service reads.
type videoPayload struct {
	Title      string         `json:"title"`
	Uploader   string         `json:"uploader"`
	Channel    string         `json:"channel"`
	Duration   *float64       `json:"duration"`
	ViewCount  *int64         `json:"view_count"`
	UploadDate string         `json:"upload_date"`
	Entries    []entryPayload `json:"entries"`
}

type entryPayload struct {
	URL        string   `json:"url"`
	WebpageURL string   `json:"webpage_url"`
	Title      string   `json:"title"`
	Duration   *float64 `json:"duration"`
	ViewCount  *int64   `json:"view_count"`
}

func (p *videoPayload) metadata() *domain.VideoMetadata {
	title := p.Title
	if title == "" {
		title = "Untitled Video"
	}

	uploader := p.Uploader
	if uploader == "" {
		uploader = p.Channel
	}
	if uploader == "" {
		uploader = "Unknown"
	}

	var uploadDate *string
	if p.UploadDate != "" {
		date := p.UploadDate
		uploadDate = &date
	}

	return &domain.VideoMetadata{
		Title:      title,
		Uploader:   uploader,
		Duration:   p.Duration,
		ViewCount:  p.ViewCount,
		UploadDate: uploadDate,
	}
}

// listing maps every raw entry, including ones without a usable URL:
// paging happens upstream on absolute positions, so dropping entries
// here would shift indices.
func (p *videoPayload) listing() *domain.Listing {
	uploader := p.Uploader
	if uploader == "" {
		uploader = p.Channel
	}

	listing := &domain.Listing{
		Title:    p.Title,
		Uploader: uploader,
	}

	for _, e := range p.Entries {
		url := e.URL
		if url == "" {
			url = e.WebpageURL
		}
		listing.Entries = append(listing.Entries, domain.ListingEntry{
			URL:       url,
			Title:     e.Title,
			Duration:  e.Duration,
			ViewCount: e.ViewCount,
		})
	}

	return listing
}
