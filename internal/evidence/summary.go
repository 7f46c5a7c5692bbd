package evidence

import (
	"fmt"
	"net/url"
	"strings"
)

// Fixed markers rendered into prompts when evidence is absent.
const (
	NoImagesData        = "No Images Data"
	NoWebResults        = "No Google Search results found."
	NoReverseResults    = "No reverse image results found."
	reverseResultsShown = 3
)

// ManualCheckURL is the Google reverse-image page for imageURL.
func ManualCheckURL(imageURL string) string {
	return "https://images.google.com/searchbyimage?image_url=" + url.QueryEscape(imageURL)
}

// SummarizeReverseImage renders one image's reverse-search outcome.
func SummarizeReverseImage(imageURL string, o ReverseImageOutcome) string {
	switch o.Status {
	case LookupQuotaExceeded:
		return "Quota exceeded. Check manually: " + ManualCheckURL(imageURL)
	case LookupFound:
		if o.Result != nil {
			break
		}
		fallthrough
	default:
		return "Failed. Check manually: " + ManualCheckURL(imageURL)
	}

	r := o.Result
	var lines []string
	if len(r.ImageResults) > 0 {
		lines = append(lines, "Top image results:")
		for i, hit := range r.ImageResults[:min(len(r.ImageResults), reverseResultsShown)] {
			title := hit.Title
			if title == "" {
				title = "Untitled"
			}
			lines = append(lines, fmt.Sprintf("%d. %s - %s", i+1, title, hit.Link))
		}
	}
	if r.InlineImages > 0 {
		lines = append(lines, fmt.Sprintf("Inline similar images (%d)", r.InlineImages))
	}
	if r.KnowledgeGraphTitle != "" {
		lines = append(lines, "Knowledge Graph: "+r.KnowledgeGraphTitle)
	}
	if r.GoogleUIURL != "" {
		lines = append(lines, "Google UI: "+r.GoogleUIURL)
	}
	if len(lines) == 0 {
		return NoReverseResults
	}
	return strings.Join(lines, "\n")
}

// SummarizeImages joins per-image summaries, or returns NoImagesData.
func SummarizeImages(images []ImageEvidence) string {
	if len(images) == 0 {
		return NoImagesData
	}
	blocks := make([]string, 0, len(images))
	for _, ie := range images {
		blocks = append(blocks, fmt.Sprintf("Image: %s\nReverse image search findings:\n%s", ie.URL, ie.Summary))
	}
	return strings.Join(blocks, "\n\n")
}

// SummarizeWeb renders numbered web results, or NoWebResults.
func SummarizeWeb(results []SearchResult) string {
	if len(results) == 0 {
		return NoWebResults
	}
	lines := make([]string, 0, len(results))
	for i, r := range results {
		lines = append(lines, fmt.Sprintf("%d. %s\n   Snippet: %s\n   Link: %s", i+1, r.Title, r.Snippet, r.Link))
	}
	return strings.Join(lines, "\n")
}
