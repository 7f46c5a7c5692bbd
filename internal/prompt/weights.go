package prompt

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Check names a weighted sub-check of the product trust score.
type Check string

const (
	CheckDescription Check = "description"
	CheckPrice       Check = "price"
	CheckImage       Check = "image"
	CheckSeller      Check = "seller"
	CheckBrand       Check = "brand"
)

// Checks lists every sub-check in the order it is presented to the model.
var Checks = []Check{CheckDescription, CheckPrice, CheckImage, CheckSeller, CheckBrand}

var checkLabels = map[Check]string{
	CheckDescription: "Description Check",
	CheckPrice:       "Price Check",
	CheckImage:       "Image Check",
	CheckSeller:      "Seller Check",
	CheckBrand:       "Brand Check",
}

const weightSumTolerance = 0.001

// Weights maps each sub-check to its share of the trust score.
type Weights map[string]float64

// DefaultWeights returns the standard weighting.
func DefaultWeights() Weights {
	return Weights{
		string(CheckDescription): 0.10,
		string(CheckPrice):       0.25,
		string(CheckImage):       0.30,
		string(CheckSeller):      0.15,
		string(CheckBrand):       0.20,
	}
}

// Validate requires exactly the known checks, each non-negative, summing to 1.
func (w Weights) Validate() error {
	var unknown []string
	for k := range w {
		if _, ok := checkLabels[Check(k)]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown weight keys: %s", strings.Join(unknown, ", "))
	}

	var sum float64
	for _, c := range Checks {
		v, ok := w[string(c)]
		if !ok {
			return fmt.Errorf("missing weight for %q", c)
		}
		if v < 0 {
			return fmt.Errorf("weight for %q must not be negative", c)
		}
		sum += v
	}
	if math.Abs(sum-1) > weightSumTolerance {
		return fmt.Errorf("weights must sum to 1, got %.3f", sum)
	}
	return nil
}

type weightRow struct {
	Name   string
	Label  string
	Weight string
}

func (w Weights) rows() []weightRow {
	rows := make([]weightRow, 0, len(Checks))
	for _, c := range Checks {
		rows = append(rows, weightRow{
			Name:   string(c),
			Label:  checkLabels[c],
			Weight: formatWeight(w[string(c)]),
		})
	}
	return rows
}

// formatWeight keeps at least two decimals so the usual table reads 0.10,
// 0.25, ... while finer weights such as 0.125 print in full.
func formatWeight(f float64) string {
	s := formatNumber(f)
	dot := strings.IndexByte(s, '.')
	switch {
	case dot < 0:
		return s + ".00"
	case len(s)-dot-1 < 2:
		return s + "0"
	}
	return s
}
