package stats

import (
	"fmt"
	"sort"
	"strings"

	"wastewatch/internal/domain"
)

const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Suggestion is one rule-derived recommendation.
type Suggestion struct {
	Type             string  `json:"type"`
	Priority         string  `json:"priority"`
	Message          string  `json:"message"`
	EstimatedSavings float64 `json:"estimated_savings,omitempty"`
}

// Thresholds for the aggregate rule set.
const (
	portionFrequencyThreshold  = 5
	categoryFrequencyThreshold = 10
	categoryValueThreshold     = 50.0
	categorySavingsShare       = 0.3
	trendRatioThreshold        = 1.2
	trendRecentDays            = 3
)

// FromSnapshot applies the aggregate rule set to a statistics snapshot.
// Deterministic for a given snapshot: no randomness, no learned model. The
// result is sorted high > medium > low, stable within a tier.
func FromSnapshot(s *Snapshot) []Suggestion {
	suggestions := []Suggestion{}

	if len(s.TopItems) > 0 && s.TopItems[0].Frequency >= portionFrequencyThreshold {
		top := s.TopItems[0]
		suggestions = append(suggestions, Suggestion{
			Type:     "portion_adjustment",
			Priority: PriorityHigh,
			Message: fmt.Sprintf("%q has been wasted %d times. Consider preparing or ordering smaller portions.",
				top.Name, top.Frequency),
			EstimatedSavings: top.TotalValue,
		})
	}

	for _, c := range s.CategoryStats {
		if c.Frequency >= categoryFrequencyThreshold && c.TotalValue > categoryValueThreshold {
			suggestions = append(suggestions, Suggestion{
				Type:     "menu_review",
				Priority: PriorityMedium,
				Message: fmt.Sprintf("The %s category accounts for $%.2f of waste across %d items. Review how much of it you buy or serve.",
					c.Category, c.TotalValue, c.Frequency),
				EstimatedSavings: c.TotalValue * categorySavingsShare,
			})
		}
	}

	if alert, ok := trendAlert(s.DailyStats); ok {
		suggestions = append(suggestions, alert)
	}

	suggestions = append(suggestions, Suggestion{
		Type:     "best_practice",
		Priority: PriorityLow,
		Message:  "Photograph waste right after meals and review weekly totals to spot patterns early.",
	})

	sortByPriority(suggestions)
	return suggestions
}

// trendAlert fires when the mean of the last 3 daily buckets exceeds 1.2x
// the all-time daily mean, provided the all-time mean is positive.
func trendAlert(daily []DailyStat) (Suggestion, bool) {
	if len(daily) == 0 {
		return Suggestion{}, false
	}

	var allTotal float64
	for _, d := range daily {
		allTotal += d.TotalValue
	}
	allMean := allTotal / float64(len(daily))
	if allMean <= 0 {
		return Suggestion{}, false
	}

	recent := daily
	if len(recent) > trendRecentDays {
		recent = recent[:trendRecentDays] // daily is sorted newest first
	}
	var recentTotal float64
	for _, d := range recent {
		recentTotal += d.TotalValue
	}
	recentMean := recentTotal / float64(len(recent))

	if recentMean <= allMean*trendRatioThreshold {
		return Suggestion{}, false
	}

	increase := (recentMean/allMean - 1) * 100
	return Suggestion{
		Type:     "trend_alert",
		Priority: PriorityHigh,
		Message: fmt.Sprintf("Waste over the last %d days is up %.0f%% against your average daily value. Check what changed recently.",
			trendRecentDays, increase),
	}, true
}

// Thresholds for the recent-entries rule set.
const (
	recentEntryWindow = 3
	recentValueNudge  = 5.0
)

var spoilageKeywords = []string{"spoiled", "expired", "stale"}

// FromRecentEntries is the entry-level strategy: it looks only at the most
// recent 3 raw entries and applies a smaller rule set, intended for quick
// feedback right after an upload. Fewer than 3 entries produce nothing.
func FromRecentEntries(entries []*domain.EntryWithItems) []Suggestion {
	if len(entries) < recentEntryWindow {
		return []Suggestion{}
	}
	recent := entries[:recentEntryWindow] // callers pass newest first

	suggestions := []Suggestion{}

	if name, count := mostRepeatedItem(recent); count >= 2 {
		suggestions = append(suggestions, Suggestion{
			Type:     "portion_adjustment",
			Priority: PriorityHigh,
			Message:  fmt.Sprintf("%q appeared in %d of your last %d logs. Try a smaller serving next time.", name, count, recentEntryWindow),
		})
	}

	if name, ok := spoiledItem(recent); ok {
		suggestions = append(suggestions, Suggestion{
			Type:     "storage_review",
			Priority: PriorityMedium,
			Message:  fmt.Sprintf("%q was logged as spoiled or past its date. Buy smaller quantities or store it more visibly.", name),
		})
	}

	if len(suggestions) == 0 {
		if name, value, ok := topValueItem(recent); ok {
			suggestions = append(suggestions, Suggestion{
				Type:             "value_focus",
				Priority:         PriorityMedium,
				Message:          fmt.Sprintf("%q was your most expensive recent waste at $%.2f. Start portion changes there.", name, value),
				EstimatedSavings: value,
			})
		}
	}

	var recentTotal float64
	for _, e := range recent {
		recentTotal += e.TotalEstimatedValue
	}
	if recentTotal >= recentValueNudge {
		suggestions = append(suggestions, Suggestion{
			Type:     "best_practice",
			Priority: PriorityLow,
			Message:  fmt.Sprintf("Your last %d logs add up to $%.2f. Planning portions before cooking usually cuts this in half.", recentEntryWindow, recentTotal),
		})
	}

	sortByPriority(suggestions)
	return suggestions
}

// mostRepeatedItem returns the item name (lower-cased for matching, reported
// with its first-seen spelling) occurring in the greatest number of the
// recent entries.
func mostRepeatedItem(entries []*domain.EntryWithItems) (string, int) {
	counts := make(map[string]int)
	display := make(map[string]string)
	for _, e := range entries {
		seen := make(map[string]bool)
		for _, it := range e.Items {
			key := strings.ToLower(it.Name)
			if seen[key] {
				continue // count once per entry
			}
			seen[key] = true
			counts[key]++
			if _, ok := display[key]; !ok {
				display[key] = it.Name
			}
		}
	}

	var bestKey string
	var bestCount int
	for key, count := range counts {
		if count > bestCount || (count == bestCount && key < bestKey) {
			bestKey, bestCount = key, count
		}
	}
	return display[bestKey], bestCount
}

func spoiledItem(entries []*domain.EntryWithItems) (string, bool) {
	for _, e := range entries {
		for _, it := range e.Items {
			condition := strings.ToLower(it.Condition)
			for _, kw := range spoilageKeywords {
				if strings.Contains(condition, kw) {
					return it.Name, true
				}
			}
		}
	}
	return "", false
}

func topValueItem(entries []*domain.EntryWithItems) (string, float64, bool) {
	var name string
	var value float64
	var found bool
	for _, e := range entries {
		for _, it := range e.Items {
			if !found || it.EstimatedValue > value {
				name, value, found = it.Name, it.EstimatedValue, true
			}
		}
	}
	return name, value, found
}

var priorityRank = map[string]int{
	PriorityHigh:   0,
	PriorityMedium: 1,
	PriorityLow:    2,
}

func sortByPriority(suggestions []Suggestion) {
	sort.SliceStable(suggestions, func(i, j int) bool {
		return priorityRank[suggestions[i].Priority] < priorityRank[suggestions[j].Priority]
	})
}
