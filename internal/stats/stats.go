// Package stats derives aggregate views and rule-based recommendations from
// stored waste history. Everything here is a pure function of its inputs;
// snapshots are recomputed on every call rather than cached.
package stats

import (
	"sort"
	"time"

	"wastewatch/internal/domain"
)

// topItemLimit bounds the topItems ranking.
const topItemLimit = 10

// trendWindowDays is the trailing window for daily statistics.
const trendWindowDays = 30

type Overall struct {
	TotalEntries int     `json:"total_entries"`
	TotalValue   float64 `json:"total_value"`
	AvgValue     float64 `json:"avg_value"`
}

type ItemStat struct {
	Name       string  `json:"name"`
	Frequency  int     `json:"frequency"`
	TotalValue float64 `json:"total_value"`
	AvgValue   float64 `json:"avg_value"`
}

type DailyStat struct {
	Date       string  `json:"date"`
	Entries    int     `json:"entries"`
	TotalValue float64 `json:"total_value"`
}

type CategoryStat struct {
	Category   string  `json:"category"`
	Frequency  int     `json:"frequency"`
	TotalValue float64 `json:"total_value"`
}

// Snapshot is the derived aggregate view of the current store state.
type Snapshot struct {
	Overall       Overall        `json:"overall"`
	TopItems      []ItemStat     `json:"top_items"`
	DailyStats    []DailyStat    `json:"daily_stats"`
	CategoryStats []CategoryStat `json:"category_stats"`
}

// Compute builds a snapshot from the full entry history. The daily trend is
// restricted to entries within the trailing 30 days of now, boundary
// inclusive; dates are taken from each entry's local calendar date.
func Compute(entries []*domain.EntryWithItems, now time.Time) *Snapshot {
	s := &Snapshot{
		TopItems:      []ItemStat{},
		DailyStats:    []DailyStat{},
		CategoryStats: []CategoryStat{},
	}

	s.Overall.TotalEntries = len(entries)
	for _, e := range entries {
		s.Overall.TotalValue += e.TotalEstimatedValue
	}
	if s.Overall.TotalEntries > 0 {
		s.Overall.AvgValue = s.Overall.TotalValue / float64(s.Overall.TotalEntries)
	}

	s.TopItems = topItems(entries)
	s.DailyStats = dailyStats(entries, now)
	s.CategoryStats = categoryStats(entries)
	return s
}

// topItems groups items by case-sensitive name, ranked by frequency.
func topItems(entries []*domain.EntryWithItems) []ItemStat {
	byName := make(map[string]*ItemStat)
	for _, e := range entries {
		for _, it := range e.Items {
			st, ok := byName[it.Name]
			if !ok {
				st = &ItemStat{Name: it.Name}
				byName[it.Name] = st
			}
			st.Frequency++
			st.TotalValue += it.EstimatedValue
		}
	}

	out := make([]ItemStat, 0, len(byName))
	for _, st := range byName {
		st.AvgValue = st.TotalValue / float64(st.Frequency)
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Frequency != out[j].Frequency {
			return out[i].Frequency > out[j].Frequency
		}
		return out[i].Name < out[j].Name
	})

	if len(out) > topItemLimit {
		out = out[:topItemLimit]
	}
	return out
}

// dailyStats buckets entries by calendar date within the trailing window,
// newest date first.
func dailyStats(entries []*domain.EntryWithItems, now time.Time) []DailyStat {
	cutoff := now.AddDate(0, 0, -trendWindowDays)

	byDate := make(map[string]*DailyStat)
	for _, e := range entries {
		if e.Timestamp.Before(cutoff) {
			continue
		}
		date := e.Timestamp.Format("2006-01-02")
		st, ok := byDate[date]
		if !ok {
			st = &DailyStat{Date: date}
			byDate[date] = st
		}
		st.Entries++
		st.TotalValue += e.TotalEstimatedValue
	}

	out := make([]DailyStat, 0, len(byDate))
	for _, st := range byDate {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out
}

// categoryStats groups items by category, highest total value first.
func categoryStats(entries []*domain.EntryWithItems) []CategoryStat {
	byCategory := make(map[string]*CategoryStat)
	for _, e := range entries {
		for _, it := range e.Items {
			category := it.Category
			if category == "" {
				category = "unknown"
			}
			st, ok := byCategory[category]
			if !ok {
				st = &CategoryStat{Category: category}
				byCategory[category] = st
			}
			st.Frequency++
			st.TotalValue += it.EstimatedValue
		}
	}

	out := make([]CategoryStat, 0, len(byCategory))
	for _, st := range byCategory {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalValue != out[j].TotalValue {
			return out[i].TotalValue > out[j].TotalValue
		}
		return out[i].Category < out[j].Category
	})
	return out
}
