package domain

import "time"

// Trust penalties applied to a seller when moderation dismisses their content.
const (
	ReviewDismissPenalty  = 1
	ProductDismissPenalty = 20
)

// DefaultUserTrustScore is the trust score of a new account.
const DefaultUserTrustScore = 100

// User is a marketplace account. Only the fields the trust ledger needs are
// modelled; credentials are managed elsewhere.
type User struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	DisplayName     string    `json:"display_name"`
	PasswordHash    string    `json:"-"`
	ListedProducts  []string  `json:"listed_products"`
	TrustScore      int       `json:"trust_score"`
	TrustBadge      string    `json:"trust_badge"`
	FlaggedProducts int       `json:"flagged_products"`
	CreatedAt       time.Time `json:"created_at"`
}

// Seller is the public profile shown next to a listing.
type Seller struct {
	ID              string   `json:"id"`
	DisplayName     string   `json:"display_name"`
	TrustScore      int      `json:"trust_score"`
	TrustBadge      string   `json:"trust_badge"`
	FlaggedProducts int      `json:"flagged_products"`
	ListedProducts  []string `json:"listed_products"`
}

// Public strips private fields from u.
func (u User) Public() Seller {
	listed := u.ListedProducts
	if listed == nil {
		listed = []string{}
	}
	return Seller{
		ID:              u.ID,
		DisplayName:     u.DisplayName,
		TrustScore:      u.TrustScore,
		TrustBadge:      u.TrustBadge,
		FlaggedProducts: u.FlaggedProducts,
		ListedProducts:  listed,
	}
}

// TrustBadge grades a user trust score: A from 80, B from 60, C from 40,
// D from 20, F below.
func TrustBadge(score int) string {
	switch {
	case score >= 80:
		return "A"
	case score >= 60:
		return "B"
	case score >= 40:
		return "C"
	case score >= 20:
		return "D"
	default:
		return "F"
	}
}

// DecreaseTrust subtracts penalty from score without going below zero.
func DecreaseTrust(score, penalty int) int {
	return max(score-penalty, 0)
}
