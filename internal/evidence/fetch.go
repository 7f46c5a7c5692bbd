package evidence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/trustmecro/trust-service/pkg/httpclient"
)

// DefaultMaxImageBytes caps a single image download.
const DefaultMaxImageBytes int64 = 8 << 20

var (
	ErrNotImage      = errors.New("response is not an image")
	ErrImageTooLarge = errors.New("image exceeds size limit")
)

// ImageFetcher downloads listing images for the model.
type ImageFetcher struct {
	client   httpclient.Doer
	maxBytes int64
}

// NewImageFetcher creates an ImageFetcher. maxBytes <= 0 uses the default.
func NewImageFetcher(client httpclient.Doer, maxBytes int64) *ImageFetcher {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	return &ImageFetcher{client: client, maxBytes: maxBytes}
}

// Fetch downloads imageURL. The declared content type must be image/*;
// a missing or generic type is resolved by sniffing the payload.
func (f *ImageFetcher) Fetch(ctx context.Context, imageURL string) (*Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create image request: %w", err)
	}
	resp, err := f.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image: unexpected status %d", resp.StatusCode)
	}

	declared := mediaType(resp.Header.Get("Content-Type"))
	if declared != "" && declared != "application/octet-stream" && !isImageType(declared) {
		return nil, fmt.Errorf("%w: %s", ErrNotImage, declared)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, ErrImageTooLarge
	}

	if !isImageType(declared) {
		declared = mediaType(mimetype.Detect(data).String())
		if !isImageType(declared) {
			return nil, fmt.Errorf("%w: sniffed %s", ErrNotImage, declared)
		}
	}

	return &Image{URL: imageURL, MIMEType: declared, Data: data}, nil
}

func mediaType(header string) string {
	if header == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(header))
	}
	return mt
}

func isImageType(mt string) bool {
	return strings.HasPrefix(mt, "image/")
}
