package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/trustmecro/trust-service/internal/domain"
)

// ErrInvalidResult is returned when model output does not fit the schema.
var ErrInvalidResult = errors.New("invalid analysis result")

type productResult struct {
	TrustScore   *float64 `json:"trustScore"`
	Summary      string   `json:"summary"`
	RedFlags     []string `json:"redFlags"`
	Verification struct {
		DescriptionCheck struct {
			IsConsistent bool   `json:"isConsistent"`
			Quality      string `json:"quality"`
			Findings     string `json:"findings"`
		} `json:"descriptionCheck"`
		PriceCheck struct {
			Status   string `json:"status"`
			Findings string `json:"findings"`
		} `json:"priceCheck"`
		ImageCheck struct {
			Authenticity string `json:"authenticity"`
			Findings     string `json:"findings"`
		} `json:"imageCheck"`
		BrandCheck struct {
			Status   string `json:"status"`
			Findings string `json:"findings"`
		} `json:"brandCheck"`
	} `json:"verification"`
}

// NormalizeProduct converts a model answer into an Analysis stamped with the
// product identity and time. A missing trustScore is an error; unrecognised
// enumeration values become Unknown.
func NormalizeProduct(raw json.RawMessage, product *domain.Product, now time.Time) (domain.Analysis, error) {
	var res productResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return domain.Analysis{}, fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}
	if res.TrustScore == nil {
		return domain.Analysis{}, fmt.Errorf("%w: missing trustScore", ErrInvalidResult)
	}

	redFlags := res.RedFlags
	if redFlags == nil {
		redFlags = []string{}
	}

	v := res.Verification
	return domain.Analysis{
		ProductID:   product.ID,
		ProductName: product.Name,
		TrustScore:  clampScore(*res.TrustScore),
		Summary:     res.Summary,
		RedFlags:    redFlags,
		Verification: domain.Verification{
			DescriptionCheck: domain.DescriptionCheck{
				IsConsistent: v.DescriptionCheck.IsConsistent,
				Quality:      oneOf(v.DescriptionCheck.Quality, domain.QualityUnknown, domain.QualityGood, domain.QualityAverage, domain.QualityPoor),
				Findings:     v.DescriptionCheck.Findings,
			},
			PriceCheck: domain.PriceCheck{
				Status:   oneOf(v.PriceCheck.Status, domain.PriceUnknown, domain.PriceReasonable, domain.PriceSlightlyOff, domain.PriceTooLow, domain.PriceTooHigh),
				Findings: v.PriceCheck.Findings,
			},
			ImageCheck: domain.ImageCheck{
				Authenticity: oneOf(v.ImageCheck.Authenticity, domain.ImageUnknown, domain.ImageAuthentic, domain.ImageStockPhoto, domain.ImageSuspicious, domain.ImageNoImages),
				Findings:     v.ImageCheck.Findings,
			},
			BrandCheck: domain.BrandCheck{
				Status:   oneOf(v.BrandCheck.Status, domain.BrandUnknown, domain.BrandPresent, domain.BrandUnverified, domain.BrandMissing),
				Findings: v.BrandCheck.Findings,
			},
		},
		AnalyzedAt: now,
	}, nil
}

var reviewKeys = map[string]bool{"isFake": true, "confidence": true, "reasons": true}

// NormalizeReview converts a model answer into a ReviewVerdict. The answer
// must carry exactly isFake, confidence and reasons with the right types.
// IsFake is recomputed from confidence; the model's own value is ignored.
func NormalizeReview(raw json.RawMessage) (domain.ReviewVerdict, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return domain.ReviewVerdict{}, fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}
	for key := range fields {
		if !reviewKeys[key] {
			return domain.ReviewVerdict{}, fmt.Errorf("%w: unexpected key %s", ErrInvalidResult, key)
		}
	}

	var (
		isFake     bool
		confidence float64
		reasons    []string
	)
	if err := decodeField(fields, "isFake", &isFake); err != nil {
		return domain.ReviewVerdict{}, err
	}
	if err := decodeField(fields, "confidence", &confidence); err != nil {
		return domain.ReviewVerdict{}, err
	}
	if err := decodeField(fields, "reasons", &reasons); err != nil {
		return domain.ReviewVerdict{}, err
	}
	if reasons == nil {
		reasons = []string{}
	}

	score := clampScore(confidence)
	return domain.ReviewVerdict{
		IsFake:     domain.IsFakeConfidence(score),
		Confidence: score,
		Reasons:    reasons,
	}, nil
}

func decodeField(fields map[string]json.RawMessage, key string, dst any) error {
	raw, ok := fields[key]
	if !ok || string(raw) == "null" {
		return fmt.Errorf("%w: missing %s", ErrInvalidResult, key)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidResult, key, err)
	}
	return nil
}

func clampScore(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Max(0, math.Min(100, math.Round(v))))
}

func oneOf[T ~string](got string, fallback T, allowed ...T) T {
	for _, a := range allowed {
		if string(a) == got {
			return a
		}
	}
	return fallback
}
