package domain

import "time"

// Review is a buyer review of a product. ReviewerName is copied from the
// author's display name at submission time and is what uniqueness is keyed on.
type Review struct {
	ID                  string    `json:"id"`
	ProductID           string    `json:"product_id"`
	ReviewerID          string    `json:"reviewer_id"`
	ReviewerName        string    `json:"reviewer_name"`
	Rating              int       `json:"rating"`
	Comment             string    `json:"comment"`
	TrustScore          int       `json:"trust_score"`
	IsFlagged           bool      `json:"is_flagged"`
	ApprovedByModerator bool      `json:"approved_by_moderator"`
	Reasons             []string  `json:"reasons"`
	AnalysisError       string    `json:"analysis_error,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// ApplyVerdict copies the authenticity assessment onto the review.
func (r *Review) ApplyVerdict(v ReviewVerdict) {
	r.IsFlagged = v.IsFake
	r.TrustScore = v.Confidence
	r.Reasons = v.Reasons
	r.AnalysisError = v.Error
}

// Approve clears the flag after a moderator has looked at the review.
func (r *Review) Approve() {
	r.ApprovedByModerator = true
	r.IsFlagged = false
}
