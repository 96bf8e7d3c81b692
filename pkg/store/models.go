package store

import "time"

// Session is one top-level harvest invocation
type Session struct {
	ID        int64
	Query     string
	TotalURLs int
	CreatedAt time.Time
}

// SourceURL is a referrer page discovered by a search
type SourceURL struct {
	ID          int64
	SessionID   int64
	URL         string
	Domain      string
	Visited     bool
	ImagesFound int
	Error       string
}

// Image is a saved, unique picture
type Image struct {
	ID             int64
	SourceURLID    int64
	ImageURL       string
	Fingerprint    string
	PerceptualHash string
	FilePath       string
	FileSize       int64
	Width          int
	Height         int
	IsRelevant     bool
	RelevanceScore float64
	ContentType    string
	DownloadedAt   time.Time
}

// HashedImage pairs a stored file with its perceptual hash
type HashedImage struct {
	ID       int64
	FilePath string
	ImageURL string
	Hash     string
}

// DomainYield counts how much one referrer domain produced
type DomainYield struct {
	Domain string
	URLs   int
	Images int
}

// Stats summarises the whole store
type Stats struct {
	Sessions   int
	URLs       int
	Visited    int
	Errored    int
	Images     int
	Bytes      int64
	TopDomains []DomainYield
}

// SessionSummary is a session with its URL and image counts
type SessionSummary struct {
	Session
	Visited int
	Images  int
}
