package vision

import (
	"context"
	"fmt"
	"io"
)

// AnalysisPrompt is the shared prompt used by all vision adapters. The model
// is asked for strict JSON so the response can be mapped to AnalysisResult.
const AnalysisPrompt = `You are analyzing a photo of discarded food to estimate its monetary value.
Identify every distinct food item visible as waste. Respond with ONLY a JSON object
(no prose, no code fences) in exactly this shape:
{
  "items": [
    {"name": "...", "category": "fruits|vegetables|grains|protein|dairy|prepared|beverages|other",
     "estimated_amount": "e.g. half a plate, 200g", "condition": "e.g. untouched, partially eaten, spoiled",
     "estimated_value": 0.0}
  ],
  "total_estimated_value": 0.0,
  "estimated_waste": {"weight": "e.g. ~300g", "percentage": "e.g. ~40% of the serving"},
  "confidence": 0.0,
  "uncertainty_disclaimer": "...",
  "needs_better_photo": false,
  "notes": "..."
}
Values are US dollars. If the photo shows no food waste, return an empty items list.`

// Analyzer turns image bytes into a structured waste analysis.
type Analyzer interface {
	Analyze(ctx context.Context, r io.Reader, mimeType string) (*AnalysisResult, error)
}

// AnalysisResult is the validated record produced from a vision model
// response. Defensive defaulting happens once, in ParseResponse; consumers
// can rely on every field being well-formed.
type AnalysisResult struct {
	Items                 []Item         `json:"items"`
	TotalEstimatedValue   float64        `json:"total_estimated_value"`
	EstimatedWaste        EstimatedWaste `json:"estimated_waste"`
	Confidence            float64        `json:"confidence"`
	UncertaintyDisclaimer string         `json:"uncertainty_disclaimer,omitempty"`
	NeedsBetterPhoto      bool           `json:"needs_better_photo"`
	Notes                 string         `json:"notes,omitempty"`
	RawResponse           string         `json:"-"`
}

// Item is one identified food item.
type Item struct {
	Name            string  `json:"name"`
	Category        string  `json:"category"`
	EstimatedAmount string  `json:"estimated_amount,omitempty"`
	Condition       string  `json:"condition"`
	EstimatedValue  float64 `json:"estimated_value"`
}

// EstimatedWaste is the model's free-text weight/percentage summary.
type EstimatedWaste struct {
	Weight     string `json:"weight,omitempty"`
	Percentage string `json:"percentage,omitempty"`
}

// ErrorKind classifies a collaborator failure; the distinction drives the
// caller's remediation (wait, reconfigure, or retry later).
type ErrorKind string

const (
	KindMissingCredential   ErrorKind = "missing_credential"
	KindQuotaExceeded       ErrorKind = "quota_exceeded"
	KindRateLimited         ErrorKind = "rate_limited"
	KindAccessDenied        ErrorKind = "access_denied"
	KindInvalidInput        ErrorKind = "invalid_input"
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"
	KindMalformedResponse   ErrorKind = "malformed_response"
)

// Error is a typed vision collaborator failure.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("vision: %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("vision: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }
