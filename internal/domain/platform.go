package domain

import (
	"net/url"
	"strings"
)

// Platform identifies a supported video platform.
type Platform string

// String returns the string representation of the Platform.
func (p Platform) String() string {
	return string(p)
}

const (
	PlatformTikTok    Platform = "TikTok"
	PlatformYouTube   Platform = "YouTube"
	PlatformInstagram Platform = "Instagram"
	PlatformFacebook  Platform = "Facebook"
	PlatformTwitter   Platform = "Twitter"
	PlatformLikee     Platform = "Likee"
)

// platformHosts maps recognized hostnames to their platform. Subdomains
// match by suffix (www.tiktok.com, m.youtube.com).
var platformHosts = map[string]Platform{
	"tiktok.com":    PlatformTikTok,
	"youtube.com":   PlatformYouTube,
	"youtu.be":      PlatformYouTube,
	"instagram.com": PlatformInstagram,
	"facebook.com":  PlatformFacebook,
	"fb.watch":      PlatformFacebook,
	"twitter.com":   PlatformTwitter,
	"x.com":         PlatformTwitter,
	"likee.video":   PlatformLikee,
}

// blockedFragments mark a URL as targeting internal infrastructure.
// Checked as substrings of the lowercased raw URL before any parsing,
// so encoded or embedded addresses are caught too.
var blockedFragments = []string{
	"localhost", "127.0.0.1", "0.0.0.0", "192.168.",
	"10.0.", "172.16.", "169.254.", "::1", "file://",
}

// SupportedPlatforms returns the display names of all supported platforms.
func SupportedPlatforms() []string {
	return []string{"TikTok", "YouTube", "Instagram", "Facebook", "Twitter", "Likee"}
}

// Detect parses a raw URL and identifies its platform.
//
// The scheme must be http or https. URLs containing loopback, link-local,
// or private-range fragments are rejected with ErrBlockedURL. Hosts that
// match no platform entry (exactly or as a subdomain) are rejected with
// ErrUnsupportedPlatform.
func Detect(rawURL string) (Platform, error) {
	if rawURL == "" {
		return "", ErrInvalidURL
	}

	lower := strings.ToLower(rawURL)
	for _, fragment := range blockedFragments {
		if strings.Contains(lower, fragment) {
			return "", ErrBlockedURL
		}
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", ErrInvalidURL
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", ErrInvalidURL
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return "", ErrInvalidURL
	}

	for domain, platform := range platformHosts {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return platform, nil
		}
	}

	return "", ErrUnsupportedPlatform
}
