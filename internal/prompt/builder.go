// Package prompt renders the instruction documents sent to the generative
// model. Rendering is pure: equal inputs always produce byte-identical output.
package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"math"
	"strconv"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const (
	notSpecified  = "Not specified"
	noDescription = "No description provided"
	notProvided   = "Not provided"
)

// Settings are the numeric constants stated in the product prompt.
type Settings struct {
	Weights Weights
	// FXRate is local currency units per USD.
	FXRate float64
	// PriceTolerance is the accepted fractional deviation, e.g. 0.20.
	PriceTolerance float64
}

// DefaultSettings returns the standard weights, 1 USD = 80 INR and ±20%.
func DefaultSettings() Settings {
	return Settings{Weights: DefaultWeights(), FXRate: 80, PriceTolerance: 0.20}
}

// ProductInput is everything rendered into a product prompt.
type ProductInput struct {
	Name        string
	Brand       string
	Description string
	Category    string
	Price       float64
	SellerName  string
	// SellerTrustScore is nil when the seller is unknown.
	SellerTrustScore *int
	ImageSummary     string
	WebSummary       string
}

// ReviewInput is everything rendered into a review prompt.
type ReviewInput struct {
	Text            string
	ProductCategory string
	// Rating is 1-5; 0 means not provided.
	Rating int
}

// Builder renders product and review prompts.
type Builder struct {
	settings Settings
	product  *template.Template
	review   *template.Template
}

// NewBuilder parses the embedded templates and validates settings.
func NewBuilder(s Settings) (*Builder, error) {
	if err := s.Weights.Validate(); err != nil {
		return nil, fmt.Errorf("prompt weights: %w", err)
	}
	if s.FXRate <= 0 {
		return nil, fmt.Errorf("prompt fx rate must be positive")
	}
	if s.PriceTolerance <= 0 || s.PriceTolerance >= 1 {
		return nil, fmt.Errorf("prompt price tolerance must be in (0,1)")
	}

	product, err := template.ParseFS(templateFS, "templates/product.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse product template: %w", err)
	}
	review, err := template.ParseFS(templateFS, "templates/review.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse review template: %w", err)
	}
	return &Builder{settings: s, product: product, review: review}, nil
}

type productView struct {
	Name, Brand, Description, Category string
	Price                              string
	Seller                             string
	SellerTrust                        string
	ImageSummary, WebSummary           string
	FXRate                             string
	TolerancePct                       string
	LowFactor, HighFactor              string
	Weights                            []weightRow
	Formula                            string
}

// Product renders the product trust-analysis prompt.
func (b *Builder) Product(in ProductInput) (string, error) {
	tol := b.settings.PriceTolerance
	rows := b.settings.Weights.rows()

	terms := make([]string, 0, len(rows))
	for _, r := range rows {
		terms = append(terms, r.Name+"_subscore*"+r.Weight)
	}

	view := productView{
		Name:         orDefault(in.Name, notSpecified),
		Brand:        orDefault(in.Brand, notSpecified),
		Description:  orDefault(in.Description, noDescription),
		Category:     orDefault(in.Category, notSpecified),
		Price:        fmt.Sprintf("%.2f", in.Price),
		Seller:       orDefault(in.SellerName, notSpecified),
		SellerTrust:  notProvided,
		ImageSummary: in.ImageSummary,
		WebSummary:   in.WebSummary,
		FXRate:       formatNumber(b.settings.FXRate),
		TolerancePct: formatNumber(tol * 100),
		LowFactor:    formatNumber(1 - tol),
		HighFactor:   formatNumber(1 + tol),
		Weights:      rows,
		Formula:      strings.Join(terms, " + "),
	}
	if in.SellerTrustScore != nil {
		view.SellerTrust = strconv.Itoa(*in.SellerTrustScore) + "/100"
	}
	return render(b.product, view)
}

type reviewView struct {
	Text, Category, Rating string
}

// Review renders the review authenticity prompt.
func (b *Builder) Review(in ReviewInput) (string, error) {
	view := reviewView{
		Text:     in.Text,
		Category: orDefault(in.ProductCategory, notSpecified),
		Rating:   notProvided,
	}
	if in.Rating > 0 {
		view.Rating = strconv.Itoa(in.Rating)
	}
	return render(b.review, view)
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// formatNumber prints f with at most four decimals and no trailing zeros.
func formatNumber(f float64) string {
	return strconv.FormatFloat(math.Round(f*1e4)/1e4, 'f', -1, 64)
}
