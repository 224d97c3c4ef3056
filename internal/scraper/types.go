// Package scraper implements article discovery, fetching, and parsing for the
// news site, along with the run-state tracking that external status consumers
// read.
package scraper

import "time"

// ImageKind distinguishes the two cut sources an image can come from.
type ImageKind string

// Image kinds stored on Article.Images.
const (
	ImageKindMain      ImageKind = "main"
	ImageKindThumbnail ImageKind = "thumbnail"
)

// Image describes one rendition of an article image.
type Image struct {
	URL         string    `json:"url"`
	Width       int       `json:"width"`
	AspectRatio string    `json:"aspect_ratio"`
	Kind        ImageKind `json:"kind"`
}

// Tags groups the named tag lists attached to an article.
type Tags struct {
	Topics       []string `json:"topics"`
	Teams        []string `json:"teams"`
	Players      []string `json:"players"`
	Contributors []string `json:"contributors"`
	Leagues      []string `json:"leagues"`
}

// SocialShares maps platforms to share counts or URLs as published.
type SocialShares struct {
	Facebook string `json:"facebook"`
	Twitter  string `json:"twitter"`
}

// Article is one parsed news item. URL is the stable identity; the store
// upserts on it. Title and Content must both be non-empty for the article to
// count as successfully scraped.
type Article struct {
	URL          string            `json:"url"`
	Title        string            `json:"title"`
	Subheadline  string            `json:"subheadline"`
	Content      string            `json:"content"`
	Date         string            `json:"date"`
	Section      string            `json:"section"`
	Images       []Image           `json:"images"`
	Tags         Tags              `json:"tags"`
	SocialShares SocialShares      `json:"social_shares"`
	Author       map[string]string `json:"author"`

	// LastUpdated is reconciled at ingestion time: the source-provided Date
	// string when it parses, the ingestion clock otherwise.
	LastUpdated time.Time `json:"last_updated"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
	UpdatedAt   time.Time `json:"updated_at,omitzero"`
}

// Usable reports whether the article passes the title/content guard.
func (a *Article) Usable() bool {
	return a != nil && a.Title != "" && a.Content != ""
}
