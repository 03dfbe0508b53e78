// Package reconcile makes repeated photographs of the same physical waste
// report the same monetary value, so re-uploads and multiple-angle shots do
// not inflate statistics with spurious variance.
package reconcile

import (
	"fmt"
	"math"
	"strings"

	"wastewatch/internal/domain"
	"wastewatch/internal/vision"
)

// Result is a consistency-adjusted analysis: the (possibly value-aligned)
// item list, the resolved total, and the provenance of any alignment.
type Result struct {
	Items        []vision.Item
	Total        float64
	Note         string
	PriorEntryID int64
}

// Reconcile aligns a fresh analysis against an optional prior entry matched
// by identical image hash. With no prior, the total is the item sum rounded
// to the nearest $0.10. With a prior, item values are aligned by
// case-insensitive name, and a positive prior total is preserved exactly.
func Reconcile(fresh []vision.Item, prior *domain.EntryWithItems) Result {
	items := make([]vision.Item, len(fresh))
	copy(items, fresh)

	if prior == nil {
		return Result{Items: items, Total: roundToDime(sumValues(items))}
	}

	byName := make(map[string]domain.WasteItem, len(prior.Items))
	for _, it := range prior.Items {
		byName[strings.ToLower(it.Name)] = it
	}

	for i := range items {
		if priorItem, ok := byName[strings.ToLower(items[i].Name)]; ok {
			items[i].EstimatedValue = priorItem.EstimatedValue
		}
	}

	if prior.TotalEstimatedValue > 0 {
		return Result{
			Items:        items,
			Total:        prior.TotalEstimatedValue,
			Note:         fmt.Sprintf("Values aligned with earlier analysis of the same image (entry #%d)", prior.ID),
			PriorEntryID: prior.ID,
		}
	}

	return Result{
		Items:        items,
		Total:        roundToDime(sumValues(items)),
		PriorEntryID: prior.ID,
	}
}

func sumValues(items []vision.Item) float64 {
	var total float64
	for _, it := range items {
		total += it.EstimatedValue
	}
	return total
}

// roundToDime rounds to the nearest $0.10.
func roundToDime(v float64) float64 {
	return math.Round(v*10) / 10
}
