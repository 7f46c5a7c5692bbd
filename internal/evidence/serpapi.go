package evidence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/trustmecro/trust-service/pkg/httpclient"
)

// DefaultSerpAPIURL is the SerpAPI search endpoint.
const DefaultSerpAPIURL = "https://serpapi.com/search.json"

const serpProvider = "serpapi"

// SerpAPIConfig configures the SerpAPI search backend.
type SerpAPIConfig struct {
	APIKey  string
	BaseURL string
	// RPS caps outbound requests per second; 0 disables limiting.
	RPS float64
}

// SerpAPI implements SearchBackend against serpapi.com.
type SerpAPI struct {
	client  httpclient.Doer
	baseURL string
	apiKey  string
	limiter *rate.Limiter
}

// NewSerpAPI returns nil when no API key is configured.
func NewSerpAPI(client httpclient.Doer, cfg SerpAPIConfig) *SerpAPI {
	if cfg.APIKey == "" {
		return nil
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultSerpAPIURL
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), 1)
	}
	return &SerpAPI{client: client, baseURL: base, apiKey: cfg.APIKey, limiter: limiter}
}

// NewSerpAPIClient builds the outbound chain for SerpAPI. Quota answers are
// neither retried nor counted against the breaker, so exhaustion keeps
// surfacing as ErrQuotaExceeded. A nil hc uses a pooled transport.
func NewSerpAPIClient(hc *http.Client, logger *slog.Logger) *httpclient.CircuitBreakerClient {
	cfg := httpclient.DefaultConfig()
	cfg.RetryRateLimited = false

	base := httpclient.New(cfg)
	if hc != nil {
		base = httpclient.NewWithHTTPClient(hc, cfg)
	}

	cbCfg := httpclient.DefaultCircuitBreakerConfig(serpProvider)
	cbCfg.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(classify(err), ErrQuotaExceeded)
	}
	return httpclient.NewCircuitBreakerClient(base, cbCfg, logger)
}

type serpImageResult struct {
	Title  string `json:"title"`
	Link   string `json:"link"`
	Source string `json:"source"`
}

type serpResponse struct {
	Error          string            `json:"error"`
	ImageResults   []serpImageResult `json:"image_results"`
	InlineImages   []json.RawMessage `json:"inline_images"`
	OrganicResults []SearchResult    `json:"organic_results"`
	KnowledgeGraph *struct {
		Title string `json:"title"`
	} `json:"knowledge_graph"`
	GoogleReverseImageURL string `json:"google_reverse_image_url"`
	SearchMetadata        struct {
		GoogleReverseImageURL string `json:"google_reverse_image_url"`
	} `json:"search_metadata"`
}

// ReverseImage runs a Google reverse-image search for imageURL.
func (s *SerpAPI) ReverseImage(ctx context.Context, imageURL string) (*ReverseImageResult, error) {
	q := url.Values{}
	q.Set("engine", "google_reverse_image")
	q.Set("image_url", imageURL)
	q.Set("no_cache", "true")

	body, err := s.search(ctx, q)
	if err != nil {
		return nil, err
	}

	out := &ReverseImageResult{
		InlineImages: len(body.InlineImages),
		GoogleUIURL:  body.GoogleReverseImageURL,
	}
	if out.GoogleUIURL == "" {
		out.GoogleUIURL = body.SearchMetadata.GoogleReverseImageURL
	}
	if body.KnowledgeGraph != nil {
		out.KnowledgeGraphTitle = body.KnowledgeGraph.Title
	}
	for _, r := range body.ImageResults {
		out.ImageResults = append(out.ImageResults, ImageHit(r))
	}
	return out, nil
}

// Web runs a Google web search and returns up to num organic results.
func (s *SerpAPI) Web(ctx context.Context, query string, num int) ([]SearchResult, error) {
	q := url.Values{}
	q.Set("engine", "google")
	q.Set("q", query)
	q.Set("num", strconv.Itoa(num))

	body, err := s.search(ctx, q)
	if err != nil {
		return nil, err
	}
	results := body.OrganicResults
	if len(results) > num {
		results = results[:num]
	}
	return results, nil
}

func (s *SerpAPI) search(ctx context.Context, q url.Values) (*serpResponse, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("serpapi rate limit: %w", err)
	}
	q.Set("api_key", s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create serpapi request: %w", err)
	}
	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return nil, classify(err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, classify(httpclient.ParseResponseError(resp, serpProvider))
	}
	defer func() { _ = resp.Body.Close() }()

	var body serpResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode serpapi response: %w", err)
	}
	if body.Error != "" {
		// An empty result set is reported as an error string with status 200.
		if strings.Contains(body.Error, "hasn't returned any results") {
			return &serpResponse{}, nil
		}
		return nil, classify(&httpclient.ProviderError{Provider: serpProvider, Status: resp.StatusCode, Message: body.Error})
	}
	return &body, nil
}

func classify(err error) error {
	var pe *httpclient.ProviderError
	if errors.As(err, &pe) && isQuotaMessage(pe.Message) {
		return fmt.Errorf("%w: %s", ErrQuotaExceeded, pe.Message)
	}
	return err
}

func isQuotaMessage(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "monthly searches") || strings.Contains(m, "run out of searches")
}
