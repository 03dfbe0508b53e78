package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponseFullShape(t *testing.T) {
	raw := `{
		"items": [
			{"name": "Grilled chicken", "category": "protein", "estimated_amount": "half a breast", "condition": "partially eaten", "estimated_value": 3.5},
			{"name": "White rice", "category": "grains", "estimated_amount": "1 cup", "condition": "untouched", "estimated_value": 1.25}
		],
		"total_estimated_value": 4.75,
		"estimated_waste": {"weight": "~250g", "percentage": "~40% of the serving"},
		"confidence": 0.8,
		"uncertainty_disclaimer": "Values are rough estimates.",
		"needs_better_photo": false,
		"notes": "Plate mostly finished."
	}`

	result, err := ParseResponse(raw)
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	assert.Equal(t, "Grilled chicken", result.Items[0].Name)
	assert.Equal(t, "protein", result.Items[0].Category)
	assert.InDelta(t, 4.75, result.TotalEstimatedValue, 1e-9)
	assert.Equal(t, "~250g", result.EstimatedWaste.Weight)
	assert.InDelta(t, 0.8, result.Confidence, 1e-9)
	assert.Equal(t, raw, result.RawResponse)
}

func TestParseResponseStripsCodeFence(t *testing.T) {
	raw := "Here is the analysis:\n```json\n{\"items\": [{\"name\": \"Toast\", \"estimated_value\": 0.5}], \"confidence\": 0.6}\n```"

	result, err := ParseResponse(raw)
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "Toast", result.Items[0].Name)
}

func TestParseResponseAppliesDefaults(t *testing.T) {
	raw := `{"items": [
		{"name": "Mystery stew"},
		{"name": "  "},
		{"name": "Soda", "estimated_value": -2}
	]}`

	result, err := ParseResponse(raw)
	require.NoError(t, err)
	require.Len(t, result.Items, 2) // blank name dropped

	assert.Equal(t, "unknown", result.Items[0].Category)
	assert.Equal(t, "unknown", result.Items[0].Condition)
	assert.Zero(t, result.Items[0].EstimatedValue)
	assert.Zero(t, result.Items[1].EstimatedValue) // negative clamped
	assert.Zero(t, result.Confidence)
}

func TestParseResponseTotalFallsBackToItemSum(t *testing.T) {
	raw := `{"items": [
		{"name": "Apple", "estimated_value": 0.7},
		{"name": "Yogurt", "estimated_value": 1.3}
	]}`

	result, err := ParseResponse(raw)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, result.TotalEstimatedValue, 1e-9)
}

func TestParseResponseClampsConfidence(t *testing.T) {
	result, err := ParseResponse(`{"items": [], "confidence": 1.7}`)
	require.NoError(t, err)
	assert.Equal(t, 1.0, result.Confidence)
}

func TestParseResponseMalformed(t *testing.T) {
	for _, raw := range []string{"no json here", "{broken", ""} {
		_, err := ParseResponse(raw)
		var verr *Error
		require.ErrorAs(t, err, &verr, "input %q", raw)
		assert.Equal(t, KindMalformedResponse, verr.Kind)
	}
}
