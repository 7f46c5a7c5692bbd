// Package evidence collects external signals about a product listing: the
// listing images themselves, reverse-image search hits and web search results.
package evidence

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/trustmecro/trust-service/pkg/logger"
	"github.com/trustmecro/trust-service/pkg/tracing"
)

// WebResultCount is the number of organic results requested per product.
const WebResultCount = 5

// Fetcher downloads a single image.
type Fetcher interface {
	Fetch(ctx context.Context, imageURL string) (*Image, error)
}

// GathererConfig bounds each lookup.
type GathererConfig struct {
	FetchTimeout  time.Duration
	SearchTimeout time.Duration
	// Concurrency caps parallel lookups for one product; 0 means unlimited.
	Concurrency int
}

// Gatherer runs all lookups for a product concurrently. A failed lookup
// degrades to an absent or failed entry and never fails the whole gather.
type Gatherer struct {
	fetcher Fetcher
	search  SearchBackend
	cfg     GathererConfig
	logger  *slog.Logger
}

// NewGatherer creates a Gatherer. search may be nil when no search provider
// is configured.
func NewGatherer(fetcher Fetcher, search SearchBackend, cfg GathererConfig, logger *slog.Logger) *Gatherer {
	return &Gatherer{fetcher: fetcher, search: search, cfg: cfg, logger: logger}
}

// WebQuery is the search phrase used for a product name.
func WebQuery(productName string) string {
	return productName + " India price and specs"
}

// Gather collects evidence for a product. Image entries keep the order of
// imageURLs.
func (g *Gatherer) Gather(ctx context.Context, productName string, imageURLs []string) Evidence {
	ctx, span := tracing.StartSpan(ctx, "evidence", "evidence.Gather")
	defer tracing.End(span, nil)

	images := make([]ImageEvidence, len(imageURLs))
	var web []SearchResult

	var eg errgroup.Group
	if g.cfg.Concurrency > 0 {
		eg.SetLimit(g.cfg.Concurrency)
	}
	for i, u := range imageURLs {
		images[i].URL = u
		eg.Go(func() error {
			images[i].Image = g.FetchImage(ctx, u)
			return nil
		})
		eg.Go(func() error {
			images[i].Reverse = g.ReverseImageSearch(ctx, u)
			return nil
		})
	}
	eg.Go(func() error {
		web = g.WebSearch(ctx, productName)
		return nil
	})
	_ = eg.Wait()

	for i := range images {
		images[i].Summary = SummarizeReverseImage(images[i].URL, images[i].Reverse)
	}

	return Evidence{
		Images:       images,
		WebResults:   web,
		ImageSummary: SummarizeImages(images),
		WebSummary:   SummarizeWeb(web),
	}
}

// FetchImage downloads one image, returning nil on any failure.
func (g *Gatherer) FetchImage(ctx context.Context, imageURL string) *Image {
	ctx, cancel := withTimeout(ctx, g.cfg.FetchTimeout)
	defer cancel()

	img, err := g.fetcher.Fetch(ctx, imageURL)
	if err != nil {
		evidenceLookups.WithLabelValues("image", "failed").Inc()
		g.log(ctx).WarnContext(ctx, "image fetch failed",
			slog.String("image_url", imageURL),
			slog.String("error", err.Error()),
		)
		return nil
	}
	evidenceLookups.WithLabelValues("image", "found").Inc()
	return img
}

// ReverseImageSearch looks imageURL up, reporting quota exhaustion distinctly.
func (g *Gatherer) ReverseImageSearch(ctx context.Context, imageURL string) ReverseImageOutcome {
	if g.search == nil {
		evidenceLookups.WithLabelValues("reverse_image", "unconfigured").Inc()
		return ReverseImageOutcome{Status: LookupFailed}
	}
	ctx, cancel := withTimeout(ctx, g.cfg.SearchTimeout)
	defer cancel()

	res, err := g.search.ReverseImage(ctx, imageURL)
	switch {
	case errors.Is(err, ErrQuotaExceeded):
		evidenceLookups.WithLabelValues("reverse_image", string(LookupQuotaExceeded)).Inc()
		g.log(ctx).WarnContext(ctx, "reverse image search quota exceeded", slog.String("image_url", imageURL))
		return ReverseImageOutcome{Status: LookupQuotaExceeded}
	case err != nil:
		evidenceLookups.WithLabelValues("reverse_image", string(LookupFailed)).Inc()
		g.log(ctx).WarnContext(ctx, "reverse image search failed",
			slog.String("image_url", imageURL),
			slog.String("error", err.Error()),
		)
		return ReverseImageOutcome{Status: LookupFailed}
	}
	evidenceLookups.WithLabelValues("reverse_image", string(LookupFound)).Inc()
	return ReverseImageOutcome{Status: LookupFound, Result: res}
}

// WebSearch returns up to WebResultCount results, or nil on failure.
func (g *Gatherer) WebSearch(ctx context.Context, productName string) []SearchResult {
	if g.search == nil {
		evidenceLookups.WithLabelValues("web", "unconfigured").Inc()
		return nil
	}
	ctx, cancel := withTimeout(ctx, g.cfg.SearchTimeout)
	defer cancel()

	res, err := g.search.Web(ctx, WebQuery(productName), WebResultCount)
	if err != nil {
		evidenceLookups.WithLabelValues("web", "failed").Inc()
		g.log(ctx).WarnContext(ctx, "web search failed",
			slog.String("product_name", productName),
			slog.String("error", err.Error()),
		)
		return nil
	}
	evidenceLookups.WithLabelValues("web", "found").Inc()
	return res
}

func (g *Gatherer) log(ctx context.Context) *slog.Logger {
	return logger.WithContext(ctx, g.logger)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
