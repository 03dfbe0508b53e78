package vision

import (
	"encoding/json"
	"strings"
)

// rawResult mirrors the duck-typed JSON shape models actually produce.
// Mapping to AnalysisResult plus defaulting happens exactly once, here.
type rawResult struct {
	Items []struct {
		Name            string   `json:"name"`
		Category        string   `json:"category"`
		EstimatedAmount string   `json:"estimated_amount"`
		Condition       string   `json:"condition"`
		EstimatedValue  *float64 `json:"estimated_value"`
	} `json:"items"`
	TotalEstimatedValue *float64 `json:"total_estimated_value"`
	EstimatedWaste      struct {
		Weight     string `json:"weight"`
		Percentage string `json:"percentage"`
	} `json:"estimated_waste"`
	Confidence            *float64 `json:"confidence"`
	UncertaintyDisclaimer string   `json:"uncertainty_disclaimer"`
	NeedsBetterPhoto      bool     `json:"needs_better_photo"`
	Notes                 string   `json:"notes"`
}

// ParseResponse maps a model response onto a validated AnalysisResult.
// Models wrap JSON in prose or code fences often enough that the parser
// extracts the outermost object before decoding. A response with no JSON
// object, or one that does not decode, is a malformed-response failure.
func ParseResponse(raw string) (*AnalysisResult, error) {
	payload, ok := extractObject(raw)
	if !ok {
		return nil, &Error{Kind: KindMalformedResponse, Message: "no JSON object in model response"}
	}

	var r rawResult
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, &Error{Kind: KindMalformedResponse, Message: "model response is not valid JSON", Err: err}
	}

	out := &AnalysisResult{
		EstimatedWaste: EstimatedWaste{
			Weight:     strings.TrimSpace(r.EstimatedWaste.Weight),
			Percentage: strings.TrimSpace(r.EstimatedWaste.Percentage),
		},
		UncertaintyDisclaimer: strings.TrimSpace(r.UncertaintyDisclaimer),
		NeedsBetterPhoto:      r.NeedsBetterPhoto,
		Notes:                 strings.TrimSpace(r.Notes),
		RawResponse:           raw,
	}

	out.Items = make([]Item, 0, len(r.Items))
	for _, ri := range r.Items {
		name := strings.TrimSpace(ri.Name)
		if name == "" {
			continue
		}
		item := Item{
			Name:            name,
			Category:        defaultString(ri.Category, "unknown"),
			EstimatedAmount: strings.TrimSpace(ri.EstimatedAmount),
			Condition:       defaultString(ri.Condition, "unknown"),
		}
		if ri.EstimatedValue != nil && *ri.EstimatedValue > 0 {
			item.EstimatedValue = *ri.EstimatedValue
		}
		out.Items = append(out.Items, item)
	}

	if r.TotalEstimatedValue != nil && *r.TotalEstimatedValue > 0 {
		out.TotalEstimatedValue = *r.TotalEstimatedValue
	} else {
		for _, it := range out.Items {
			out.TotalEstimatedValue += it.EstimatedValue
		}
	}

	if r.Confidence != nil {
		out.Confidence = clamp01(*r.Confidence)
	}

	return out, nil
}

// extractObject returns the substring spanning the first '{' through the last
// '}', which tolerates code fences and surrounding prose.
func extractObject(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

func defaultString(s, fallback string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	return s
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
