package analysis

import "github.com/trustmecro/trust-service/internal/domain"

// Policy holds the scores produced when analysis cannot run. Products and
// reviews deliberately differ when the model is not configured: a product
// scores UnconfiguredProductScore and is flagged for a human, while a review
// is waved through with full confidence.
type Policy struct {
	FallbackProductScore         int
	UnconfiguredProductScore     int
	FallbackReviewConfidence     int
	UnconfiguredReviewConfidence int
}

// DefaultPolicy returns the fail-open defaults.
func DefaultPolicy() Policy {
	return Policy{
		FallbackProductScore:         100,
		UnconfiguredProductScore:     0,
		FallbackReviewConfidence:     100,
		UnconfiguredReviewConfidence: 100,
	}
}

const (
	analysisFailedFinding = "Analysis failed."
	analysisFailedReason  = "Analysis failed"
	genericRedFlag        = "An error occurred during analysis."
	unconfiguredSummary   = "Analysis service is not properly configured."
	unconfiguredRedFlag   = "GEMINI_API_KEY is not configured"
	unconfiguredFinding   = "Analysis not configured."
)

func unknownVerification(finding string) domain.Verification {
	return domain.Verification{
		DescriptionCheck: domain.DescriptionCheck{IsConsistent: false, Quality: domain.QualityUnknown, Findings: finding},
		PriceCheck:       domain.PriceCheck{Status: domain.PriceUnknown, Findings: finding},
		ImageCheck:       domain.ImageCheck{Authenticity: domain.ImageUnknown, Findings: finding},
		BrandCheck:       domain.BrandCheck{Status: domain.BrandUnknown, Findings: finding},
	}
}

// ProductFallback is the analysis stored when the pipeline fails.
func (p Policy) ProductFallback(product *domain.Product, err error) domain.Analysis {
	return domain.Analysis{
		ProductID:    product.ID,
		ProductName:  product.Name,
		TrustScore:   p.FallbackProductScore,
		Summary:      "Analysis failed: " + err.Error(),
		RedFlags:     []string{genericRedFlag},
		Verification: unknownVerification(analysisFailedFinding),
		Error:        err.Error(),
	}
}

// ProductUnconfigured is the analysis stored when no model is configured.
func (p Policy) ProductUnconfigured(product *domain.Product, err error) domain.Analysis {
	return domain.Analysis{
		ProductID:    product.ID,
		ProductName:  product.Name,
		TrustScore:   p.UnconfiguredProductScore,
		Summary:      unconfiguredSummary,
		RedFlags:     []string{unconfiguredRedFlag},
		Verification: unknownVerification(unconfiguredFinding),
		Error:        err.Error(),
	}
}

// ReviewFallback is the verdict stored when the pipeline fails.
func (p Policy) ReviewFallback(err error) domain.ReviewVerdict {
	return reviewVerdict(p.FallbackReviewConfidence, err)
}

// ReviewUnconfigured is the verdict stored when no model is configured.
func (p Policy) ReviewUnconfigured(err error) domain.ReviewVerdict {
	return reviewVerdict(p.UnconfiguredReviewConfidence, err)
}

func reviewVerdict(confidence int, err error) domain.ReviewVerdict {
	return domain.ReviewVerdict{
		IsFake:     domain.IsFakeConfidence(confidence),
		Confidence: confidence,
		Reasons:    []string{analysisFailedReason},
		Error:      err.Error(),
	}
}
