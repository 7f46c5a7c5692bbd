package evidence

import (
	"context"
	"errors"
)

// ErrQuotaExceeded is returned by a SearchBackend whose plan has run out of
// searches. It is reported distinctly so the prompt can ask for manual checks.
var ErrQuotaExceeded = errors.New("search quota exceeded")

// SearchBackend performs web and reverse-image searches.
type SearchBackend interface {
	ReverseImage(ctx context.Context, imageURL string) (*ReverseImageResult, error)
	Web(ctx context.Context, query string, num int) ([]SearchResult, error)
}

// Image is a downloaded image payload.
type Image struct {
	URL      string
	MIMEType string
	Data     []byte
}

// SearchResult is one organic web result.
type SearchResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Link    string `json:"link"`
}

// ImageHit is one page where a reverse-searched image appears.
type ImageHit struct {
	Title  string `json:"title"`
	Link   string `json:"link"`
	Source string `json:"source,omitempty"`
}

// ReverseImageResult is the structured part of a reverse-image search.
type ReverseImageResult struct {
	ImageResults        []ImageHit `json:"image_results"`
	InlineImages        int        `json:"inline_images"`
	KnowledgeGraphTitle string     `json:"knowledge_graph_title,omitempty"`
	GoogleUIURL         string     `json:"google_ui_url,omitempty"`
}

// LookupStatus is the outcome of a single reverse-image lookup.
type LookupStatus string

const (
	LookupFound         LookupStatus = "found"
	LookupQuotaExceeded LookupStatus = "quota_exceeded"
	LookupFailed        LookupStatus = "failed"
)

// ReverseImageOutcome pairs a lookup status with its result, if any.
type ReverseImageOutcome struct {
	Status LookupStatus
	Result *ReverseImageResult
}

// ImageEvidence is everything gathered for one listing image.
type ImageEvidence struct {
	URL     string
	Image   *Image // nil when the download failed
	Reverse ReverseImageOutcome
	Summary string
}

// Evidence is the full evidence bundle for a product.
type Evidence struct {
	Images       []ImageEvidence
	WebResults   []SearchResult
	ImageSummary string
	WebSummary   string
}

// Payloads returns the successfully downloaded images in listing order.
func (e Evidence) Payloads() []Image {
	var out []Image
	for _, ie := range e.Images {
		if ie.Image != nil {
			out = append(out, *ie.Image)
		}
	}
	return out
}
