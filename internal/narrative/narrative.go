// Package narrative turns scores and environmental data into short
// language-model written analyses. Scoring never depends on it.
package narrative

import (
	"context"
	"time"
)

// Placeholder is returned whenever a narrative cannot be generated.
const Placeholder = "AI analysis temporarily unavailable. Please try again later."

// NoAirQualityData is returned when there are no readings to describe.
const NoAirQualityData = "No air quality data available for analysis."

// Prompt is one generation request.
type Prompt struct {
	// Subject identifies what is described, e.g. "barangay:12".
	Subject     string
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Summarizer is a language-model backend.
type Summarizer interface {
	Summarize(ctx context.Context, p Prompt) (string, error)
}

// Result is a generated narrative.
type Result struct {
	Text        string    `json:"text"`
	Provider    string    `json:"provider"`
	Cached      bool      `json:"cached"`
	Fallback    bool      `json:"fallback"`
	GeneratedAt time.Time `json:"generated_at"`
}
