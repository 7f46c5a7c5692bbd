package domain

import "time"

// DescriptionQuality grades a listing description.
type DescriptionQuality string

const (
	QualityGood    DescriptionQuality = "Good"
	QualityAverage DescriptionQuality = "Average"
	QualityPoor    DescriptionQuality = "Poor"
	QualityUnknown DescriptionQuality = "Unknown"
)

// PriceStatus compares the listed price against market evidence.
type PriceStatus string

const (
	PriceReasonable  PriceStatus = "Reasonable"
	PriceSlightlyOff PriceStatus = "Slightly Off"
	PriceTooLow      PriceStatus = "Too Low"
	PriceTooHigh     PriceStatus = "Too High"
	PriceUnknown     PriceStatus = "Unknown"
)

// ImageAuthenticity classifies the listing photos.
type ImageAuthenticity string

const (
	ImageAuthentic  ImageAuthenticity = "Authentic"
	ImageStockPhoto ImageAuthenticity = "Stock Photo"
	ImageSuspicious ImageAuthenticity = "Suspicious"
	ImageNoImages   ImageAuthenticity = "No Images"
	ImageUnknown    ImageAuthenticity = "Unknown"
)

// BrandStatus reports whether a brand could be established for the listing.
// BrandUnknown is only produced by a failed analysis.
type BrandStatus string

const (
	BrandPresent    BrandStatus = "Present"
	BrandUnverified BrandStatus = "Unverified"
	BrandMissing    BrandStatus = "Missing"
	BrandUnknown    BrandStatus = "Unknown"
)

// Analysis is the trust assessment embedded in a Product.
type Analysis struct {
	ProductID    string       `json:"product_id"`
	ProductName  string       `json:"product_name"`
	TrustScore   int          `json:"trust_score"`
	Summary      string       `json:"summary"`
	RedFlags     []string     `json:"red_flags"`
	Verification Verification `json:"verification"`
	AnalyzedAt   time.Time    `json:"analyzed_at"`
	// Error is set when the analysis is a fallback.
	Error string `json:"error,omitempty"`
}

// Verification groups the four sub-checks.
type Verification struct {
	DescriptionCheck DescriptionCheck `json:"description_check"`
	PriceCheck       PriceCheck       `json:"price_check"`
	ImageCheck       ImageCheck       `json:"image_check"`
	BrandCheck       BrandCheck       `json:"brand_check"`
}

type DescriptionCheck struct {
	IsConsistent bool               `json:"is_consistent"`
	Quality      DescriptionQuality `json:"quality"`
	Findings     string             `json:"findings"`
}

type PriceCheck struct {
	Status   PriceStatus `json:"status"`
	Findings string      `json:"findings"`
}

type ImageCheck struct {
	Authenticity ImageAuthenticity `json:"authenticity"`
	Findings     string            `json:"findings"`
}

type BrandCheck struct {
	Status   BrandStatus `json:"status"`
	Findings string      `json:"findings"`
}

// ReviewVerdict is the authenticity assessment of a review.
type ReviewVerdict struct {
	IsFake     bool     `json:"is_fake"`
	Confidence int      `json:"confidence"`
	Reasons    []string `json:"reasons"`
	Error      string   `json:"error,omitempty"`
}

// FakeConfidenceThreshold is the confidence below which a review is fake.
const FakeConfidenceThreshold = 40

// IsFakeConfidence derives fakeness from the genuineness confidence.
func IsFakeConfidence(confidence int) bool {
	return confidence < FakeConfidenceThreshold
}
