package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/trustmecro/trust-service/internal/domain"
	"github.com/trustmecro/trust-service/internal/evidence"
	"github.com/trustmecro/trust-service/internal/llm"
	"github.com/trustmecro/trust-service/internal/prompt"
)

type mockInvoker struct {
	mock.Mock
	configured bool
}

func (m *mockInvoker) Configured() bool { return m.configured }

func (m *mockInvoker) Invoke(ctx context.Context, text string, images []llm.Image) (json.RawMessage, error) {
	args := m.Called(ctx, text, images)
	if r := args.Get(0); r != nil {
		return r.(json.RawMessage), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockGatherer struct {
	mock.Mock
}

func (m *mockGatherer) Gather(ctx context.Context, name string, imageURLs []string) evidence.Evidence {
	return m.Called(ctx, name, imageURLs).Get(0).(evidence.Evidence)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newBuilder(t *testing.T) *prompt.Builder {
	t.Helper()
	b, err := prompt.NewBuilder(prompt.DefaultSettings())
	require.NoError(t, err)
	return b
}

func emptyEvidence() evidence.Evidence {
	return evidence.Evidence{
		ImageSummary: evidence.SummarizeImages(nil),
		WebSummary:   evidence.SummarizeWeb(nil),
	}
}

func TestProductAnalyzer_ScenarioA(t *testing.T) {
	g := new(mockGatherer)
	inv := &mockInvoker{configured: true}
	p := &domain.Product{ID: "p-1", Name: "Plain Kettle", Price: 1000, Ratings: domain.NewRatings()}

	g.On("Gather", mock.Anything, "Plain Kettle", []string(nil)).Return(emptyEvidence())
	inv.On("Invoke", mock.Anything, mock.MatchedBy(func(text string) bool {
		return assert.Contains(t, text, "No Images Data") &&
			assert.Contains(t, text, "No Google Search results found.") &&
			assert.Contains(t, text, "- Brand: Not specified")
	}), []llm.Image{}).Return(json.RawMessage(`{"trustScore": 35, "summary": "Tentative due to insufficient data.", "redFlags": ["Brand missing"]}`), nil)

	a := NewProductAnalyzer(g, newBuilder(t), inv, DefaultPolicy(), discardLogger())
	res := a.Analyze(context.Background(), p, nil)

	assert.Equal(t, 35, res.TrustScore)
	assert.GreaterOrEqual(t, res.TrustScore, 0)
	assert.LessOrEqual(t, res.TrustScore, 100)
	assert.Equal(t, "p-1", res.ProductID)
	assert.False(t, res.AnalyzedAt.IsZero())
	assert.Empty(t, res.Error)

	p.ApplyAnalysis(res)
	assert.True(t, p.IsFlagged)
	g.AssertExpectations(t)
	inv.AssertExpectations(t)
}

func TestProductAnalyzer_PassesImagesAndSeller(t *testing.T) {
	g := new(mockGatherer)
	inv := &mockInvoker{configured: true}
	p := &domain.Product{ID: "p-2", Name: "Phone X", Images: []string{"https://img/1", "https://img/2"}}
	seller := &domain.User{DisplayName: "Ravi", TrustScore: 55}

	g.On("Gather", mock.Anything, "Phone X", p.Images).Return(evidence.Evidence{
		Images: []evidence.ImageEvidence{
			{URL: "https://img/1", Image: &evidence.Image{MIMEType: "image/png", Data: []byte("png")}},
			{URL: "https://img/2"},
		},
		ImageSummary: "images",
		WebSummary:   "web",
	})
	inv.On("Invoke", mock.Anything, mock.MatchedBy(func(text string) bool {
		return assert.Contains(t, text, "- Name: Ravi\n- Platform trust score: 55/100")
	}), []llm.Image{{MIMEType: "image/png", Data: []byte("png")}}).Return(json.RawMessage(`{"trustScore": 90}`), nil)

	res := NewProductAnalyzer(g, newBuilder(t), inv, DefaultPolicy(), discardLogger()).Analyze(context.Background(), p, seller)
	assert.Equal(t, 90, res.TrustScore)
	inv.AssertExpectations(t)
}

func TestProductAnalyzer_FailOpen(t *testing.T) {
	tests := []struct {
		name   string
		result json.RawMessage
		err    error
	}{
		{name: "invoke error", err: errors.New("generate (multimodal): upstream 500")},
		{name: "parse error", err: llm.ErrNoJSON},
		{name: "schema error", result: json.RawMessage(`{"summary": "no score"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := new(mockGatherer)
			inv := &mockInvoker{configured: true}
			p := &domain.Product{ID: "p-3", Name: "Phone X"}

			g.On("Gather", mock.Anything, mock.Anything, mock.Anything).Return(emptyEvidence())
			if tt.err != nil {
				inv.On("Invoke", mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.err)
			} else {
				inv.On("Invoke", mock.Anything, mock.Anything, mock.Anything).Return(tt.result, nil)
			}

			res := NewProductAnalyzer(g, newBuilder(t), inv, DefaultPolicy(), discardLogger()).Analyze(context.Background(), p, nil)

			assert.Equal(t, 100, res.TrustScore)
			assert.Contains(t, res.Summary, "Analysis failed: ")
			assert.Equal(t, []string{"An error occurred during analysis."}, res.RedFlags)
			assert.NotEmpty(t, res.Error)
			assert.Equal(t, "p-3", res.ProductID)
			assert.False(t, res.AnalyzedAt.IsZero())

			v := res.Verification
			assert.False(t, v.DescriptionCheck.IsConsistent)
			assert.Equal(t, domain.QualityUnknown, v.DescriptionCheck.Quality)
			assert.Equal(t, domain.PriceUnknown, v.PriceCheck.Status)
			assert.Equal(t, domain.ImageUnknown, v.ImageCheck.Authenticity)
			assert.Equal(t, domain.BrandUnknown, v.BrandCheck.Status)
			assert.Equal(t, "Analysis failed.", v.PriceCheck.Findings)

			p.ApplyAnalysis(res)
			assert.False(t, p.IsFlagged)
		})
	}
}

func TestProductAnalyzer_Unconfigured(t *testing.T) {
	g := new(mockGatherer)
	inv := &mockInvoker{configured: false}
	p := &domain.Product{ID: "p-4", Name: "Phone X"}

	res := NewProductAnalyzer(g, newBuilder(t), inv, DefaultPolicy(), discardLogger()).Analyze(context.Background(), p, nil)

	assert.Equal(t, 0, res.TrustScore)
	assert.Equal(t, "Analysis service is not properly configured.", res.Summary)
	assert.Equal(t, []string{"GEMINI_API_KEY is not configured"}, res.RedFlags)
	assert.NotEmpty(t, res.Error)

	p.ApplyAnalysis(res)
	assert.True(t, p.IsFlagged)
	g.AssertNotCalled(t, "Gather", mock.Anything, mock.Anything, mock.Anything)
	inv.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything, mock.Anything)
}

func TestReviewAnalyzer(t *testing.T) {
	inv := &mockInvoker{configured: true}
	inv.On("Invoke", mock.Anything, mock.MatchedBy(func(text string) bool {
		return assert.Contains(t, text, `Review: "Great phone"`) && assert.Contains(t, text, "- rating: 5")
	}), []llm.Image(nil)).Return(json.RawMessage(`{"isFake": false, "confidence": 20, "reasons": ["Too polished"]}`), nil)

	v := NewReviewAnalyzer(newBuilder(t), inv, DefaultPolicy(), discardLogger()).
		Analyze(context.Background(), ReviewInput{Comment: "Great phone", Rating: 5})

	assert.True(t, v.IsFake)
	assert.Equal(t, 20, v.Confidence)
	assert.Equal(t, []string{"Too polished"}, v.Reasons)
	inv.AssertExpectations(t)
}

func TestReviewAnalyzer_FailOpen(t *testing.T) {
	for _, result := range []json.RawMessage{nil, json.RawMessage(`{"isFake": true}`)} {
		inv := &mockInvoker{configured: true}
		if result == nil {
			inv.On("Invoke", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))
		} else {
			inv.On("Invoke", mock.Anything, mock.Anything, mock.Anything).Return(result, nil)
		}

		v := NewReviewAnalyzer(newBuilder(t), inv, DefaultPolicy(), discardLogger()).
			Analyze(context.Background(), ReviewInput{Comment: "meh", Rating: 3})

		assert.False(t, v.IsFake)
		assert.Equal(t, 100, v.Confidence)
		assert.Equal(t, []string{"Analysis failed"}, v.Reasons)
		assert.NotEmpty(t, v.Error)
	}
}

func TestPolicy_UnconfiguredAsymmetry(t *testing.T) {
	inv := &mockInvoker{configured: false}
	b := newBuilder(t)

	product := NewProductAnalyzer(new(mockGatherer), b, inv, DefaultPolicy(), discardLogger()).
		Analyze(context.Background(), &domain.Product{ID: "p"}, nil)
	review := NewReviewAnalyzer(b, inv, DefaultPolicy(), discardLogger()).
		Analyze(context.Background(), ReviewInput{Comment: "x"})

	assert.Equal(t, 0, product.TrustScore)
	assert.True(t, domain.ShouldFlag(product.TrustScore))
	assert.Equal(t, 100, review.Confidence)
	assert.False(t, review.IsFake)
}
