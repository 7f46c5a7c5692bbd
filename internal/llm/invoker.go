// Package llm submits analysis prompts to a generative model and extracts the
// JSON object from its free-text answer.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/trustmecro/trust-service/pkg/logger"
	"github.com/trustmecro/trust-service/pkg/tracing"
)

// ErrNotConfigured is returned when no model backend is available, typically
// because no API key was supplied.
var ErrNotConfigured = errors.New("generative model not configured")

// imageProblem matches backend errors that justify a text-only retry.
var imageProblem = regexp.MustCompile(`(?i)invalid|format|image`)

// Image is an inline image attachment.
type Image struct {
	MIMEType string
	Data     []byte
}

// Backend generates free text for a prompt with optional image attachments.
type Backend interface {
	Generate(ctx context.Context, prompt string, images []Image) (string, error)
}

// Invoker calls a Backend under a timeout and parses the JSON answer.
type Invoker struct {
	backend Backend
	timeout time.Duration
	logger  *slog.Logger
}

// NewInvoker creates an Invoker. backend may be nil, in which case every call
// fails with ErrNotConfigured.
func NewInvoker(backend Backend, timeout time.Duration, logger *slog.Logger) *Invoker {
	return &Invoker{backend: backend, timeout: timeout, logger: logger}
}

// Configured reports whether a backend is present.
func (i *Invoker) Configured() bool {
	return i != nil && i.backend != nil
}

// Invoke submits prompt with images and returns the first JSON object in the
// answer. When a multimodal call fails with an image or format complaint it
// is retried once without images. All other failures are returned.
func (i *Invoker) Invoke(ctx context.Context, prompt string, images []Image) (raw json.RawMessage, err error) {
	if !i.Configured() {
		return nil, ErrNotConfigured
	}

	ctx, span := tracing.StartSpan(ctx, "llm", "llm.Invoke")
	defer func() { tracing.End(span, err) }()

	text, err := i.generate(ctx, prompt, images, "multimodal")
	if err != nil && len(images) > 0 && imageProblem.MatchString(err.Error()) {
		logger.WithContext(ctx, i.logger).WarnContext(ctx, "multimodal generation rejected, retrying text-only",
			slog.Int("images", len(images)),
			slog.String("error", err.Error()),
		)
		text, err = i.generate(ctx, prompt, nil, "text_only")
	}
	if err != nil {
		return nil, err
	}

	raw, err = ExtractJSON(text)
	if err != nil {
		modelCalls.WithLabelValues("parse_error").Inc()
		return nil, fmt.Errorf("parse model response: %w", err)
	}
	return raw, nil
}

func (i *Invoker) generate(ctx context.Context, prompt string, images []Image, mode string) (string, error) {
	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := i.backend.Generate(ctx, prompt, images)
	modelDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	if err != nil {
		modelCalls.WithLabelValues(mode + "_error").Inc()
		return "", fmt.Errorf("generate (%s): %w", mode, err)
	}
	modelCalls.WithLabelValues(mode + "_ok").Inc()
	return text, nil
}
