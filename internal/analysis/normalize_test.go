package analysis

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustmecro/trust-service/internal/domain"
)

func TestNormalizeProduct(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := &domain.Product{ID: "p-1", Name: "Phone X"}
	raw := json.RawMessage(`{
		"trustScore": 62.6,
		"summary": "ok",
		"redFlags": ["Only stock images"],
		"verification": {
			"descriptionCheck": {"isConsistent": true, "quality": "Average", "findings": "d"},
			"priceCheck": {"status": "Slightly Off", "findings": "p"},
			"imageCheck": {"authenticity": "Stock Photo", "findings": "i"},
			"brandCheck": {"status": "Present", "findings": "b"}
		}
	}`)

	got, err := NormalizeProduct(raw, p, now)
	require.NoError(t, err)
	assert.Equal(t, "p-1", got.ProductID)
	assert.Equal(t, "Phone X", got.ProductName)
	assert.Equal(t, 63, got.TrustScore)
	assert.Equal(t, now, got.AnalyzedAt)
	assert.Equal(t, []string{"Only stock images"}, got.RedFlags)
	assert.True(t, got.Verification.DescriptionCheck.IsConsistent)
	assert.Equal(t, domain.QualityAverage, got.Verification.DescriptionCheck.Quality)
	assert.Equal(t, domain.PriceSlightlyOff, got.Verification.PriceCheck.Status)
	assert.Equal(t, domain.ImageStockPhoto, got.Verification.ImageCheck.Authenticity)
	assert.Equal(t, domain.BrandPresent, got.Verification.BrandCheck.Status)
	assert.Empty(t, got.Error)
}

func TestNormalizeProduct_Coercion(t *testing.T) {
	p := &domain.Product{ID: "p-1"}

	got, err := NormalizeProduct(json.RawMessage(`{"trustScore": 140, "verification": {"priceCheck": {"status": "Cheap"}, "brandCheck": {"status": "present"}}}`), p, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 100, got.TrustScore)
	assert.Equal(t, []string{}, got.RedFlags)
	assert.Equal(t, domain.PriceUnknown, got.Verification.PriceCheck.Status)
	assert.Equal(t, domain.BrandUnknown, got.Verification.BrandCheck.Status)
	assert.Equal(t, domain.QualityUnknown, got.Verification.DescriptionCheck.Quality)
	assert.Equal(t, domain.ImageUnknown, got.Verification.ImageCheck.Authenticity)

	got, err = NormalizeProduct(json.RawMessage(`{"trustScore": -3}`), p, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, got.TrustScore)
}

func TestNormalizeProduct_Invalid(t *testing.T) {
	p := &domain.Product{ID: "p-1"}
	for _, raw := range []string{`{"summary": "no score"}`, `{"trustScore": "high"}`, `[1,2]`} {
		_, err := NormalizeProduct(json.RawMessage(raw), p, time.Now())
		assert.ErrorIs(t, err, ErrInvalidResult, raw)
	}
}

func TestNormalizeReview(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantFake bool
		wantConf int
	}{
		{name: "model agrees", raw: `{"isFake": true, "confidence": 12, "reasons": ["a"]}`, wantFake: true, wantConf: 12},
		{name: "model says fake but confident genuine", raw: `{"isFake": true, "confidence": 85, "reasons": ["a"]}`, wantFake: false, wantConf: 85},
		{name: "model says genuine but low confidence", raw: `{"isFake": false, "confidence": 39, "reasons": ["a"]}`, wantFake: true, wantConf: 39},
		{name: "boundary is genuine", raw: `{"isFake": true, "confidence": 40, "reasons": ["a"]}`, wantFake: false, wantConf: 40},
		{name: "fractional rounds", raw: `{"isFake": false, "confidence": 39.6, "reasons": ["a"]}`, wantFake: false, wantConf: 40},
		{name: "clamped high", raw: `{"isFake": false, "confidence": 250, "reasons": []}`, wantFake: false, wantConf: 100},
		{name: "clamped low", raw: `{"isFake": false, "confidence": -5, "reasons": []}`, wantFake: true, wantConf: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeReview(json.RawMessage(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.wantFake, got.IsFake)
			assert.Equal(t, tt.wantConf, got.Confidence)
			assert.Equal(t, got.Confidence < domain.FakeConfidenceThreshold, got.IsFake)
			assert.NotNil(t, got.Reasons)
		})
	}
}

func TestNormalizeReview_Invalid(t *testing.T) {
	for _, raw := range []string{
		`{"confidence": 50, "reasons": []}`,
		`{"isFake": false, "reasons": []}`,
		`{"isFake": false, "confidence": 50}`,
		`{"isFake": "no", "confidence": 50, "reasons": []}`,
		`{"isFake": false, "confidence": "50", "reasons": []}`,
		`{"isFake": false, "confidence": 50, "reasons": "bad"}`,
		`{"isFake": false, "confidence": null, "reasons": []}`,
		`{"isFake": false, "confidence": 70, "reasons": ["a"], "explanation": "x"}`,
		`"text"`,
	} {
		_, err := NormalizeReview(json.RawMessage(raw))
		assert.ErrorIs(t, err, ErrInvalidResult, raw)
	}
}
