package domain

// VideoMetadata describes a single video for preview responses.
//
// Duration, ViewCount, and UploadDate are pointers because platforms
// frequently omit them; absent values serialize as null rather than zero.
type VideoMetadata struct {
	Platform   Platform `json:"platform"`
	Title      string   `json:"title"`
	Uploader   string   `json:"uploader"`
	Duration   *float64 `json:"duration"`
	ViewCount  *int64   `json:"view_count"`
	UploadDate *string  `json:"upload_date"`
	URL        string   `json:"url"`
}

// ListingEntry is one raw entry from a flat profile extraction.
type ListingEntry struct {
	URL       string
	Title     string
	Duration  *float64
	ViewCount *int64
}

// Listing is the flattened result of a profile extraction before paging.
type Listing struct {
	Title    string
	Uploader string
	Entries  []ListingEntry
}

// VideoEntry is one video in a profile page. Index is absolute across the
// full listing, starting at 1, so it can be passed back to the download
// endpoint unchanged.
type VideoEntry struct {
	Index     int      `json:"index"`
	URL       string   `json:"url"`
	Title     string   `json:"title"`
	Duration  *float64 `json:"duration"`
	ViewCount *int64   `json:"view_count"`
}

// ProfilePage is one page of a profile's video listing.
type ProfilePage struct {
	Profile  string       `json:"profile"`
	Platform Platform     `json:"platform"`
	Page     int          `json:"page"`
	Limit    int          `json:"limit"`
	Total    int          `json:"total"`
	HasNext  bool         `json:"has_next"`
	Videos   []VideoEntry `json:"videos"`
}
