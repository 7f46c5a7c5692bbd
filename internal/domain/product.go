package domain

import "time"

// FlagThreshold is the highest product trust score that still flags a
// listing for moderation.
const FlagThreshold = 40

// DefaultAverageRating is the aggregate shown for a product with no reviews.
const DefaultAverageRating = 5.0

// Product is a marketplace listing.
type Product struct {
	ID                  string    `json:"id"`
	OwnerID             string    `json:"owner_id"`
	Name                string    `json:"name"`
	Description         string    `json:"description"`
	Brand               string    `json:"brand,omitempty"`
	Price               float64   `json:"price"`
	Category            string    `json:"category"`
	Images              []string  `json:"images"`
	Ratings             Ratings   `json:"ratings"`
	Analysis            *Analysis `json:"analysis"`
	IsFlagged           bool      `json:"is_flagged"`
	ApprovedByModerator bool      `json:"approved_by_moderator"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// ShouldFlag reports whether a product with the given trust score must be
// held for moderation.
func ShouldFlag(trustScore int) bool {
	return trustScore <= FlagThreshold
}

// ApplyAnalysis stores a and sets the flag from its trust score.
func (p *Product) ApplyAnalysis(a Analysis) {
	p.Analysis = &a
	p.IsFlagged = ShouldFlag(a.TrustScore)
}

// Approve clears the flag after a moderator has looked at the listing.
func (p *Product) Approve() {
	p.ApprovedByModerator = true
	p.IsFlagged = false
}

// Ratings is a product's aggregate review rating maintained as a running mean.
type Ratings struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// NewRatings returns the aggregate of a product with no reviews.
func NewRatings() Ratings {
	return Ratings{Average: DefaultAverageRating}
}

// Add folds one more rating into the mean.
func (r Ratings) Add(rating int) Ratings {
	n := float64(r.Count)
	return Ratings{
		Average: clampAverage((r.Average*n + float64(rating)) / (n + 1)),
		Count:   r.Count + 1,
	}
}

// Remove takes one rating out of the mean. Removing the last rating resets
// the average to DefaultAverageRating.
func (r Ratings) Remove(rating int) Ratings {
	if r.Count <= 1 {
		return NewRatings()
	}
	n := float64(r.Count)
	return Ratings{
		Average: clampAverage((r.Average*n - float64(rating)) / (n - 1)),
		Count:   r.Count - 1,
	}
}

func clampAverage(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 5:
		return 5
	default:
		return v
	}
}
