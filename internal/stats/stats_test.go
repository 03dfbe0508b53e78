package stats

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wastewatch/internal/domain"
)

var statsNow = time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)

func entry(id int64, ts time.Time, total float64, items ...domain.WasteItem) *domain.EntryWithItems {
	return &domain.EntryWithItems{
		WasteEntry: domain.WasteEntry{ID: id, Timestamp: ts, TotalEstimatedValue: total},
		Items:      items,
	}
}

func TestComputeEmptyHistory(t *testing.T) {
	s := Compute(nil, statsNow)

	assert.Zero(t, s.Overall.TotalEntries)
	assert.Zero(t, s.Overall.TotalValue)
	assert.Zero(t, s.Overall.AvgValue)
	assert.Empty(t, s.TopItems)
	assert.Empty(t, s.DailyStats)
	assert.Empty(t, s.CategoryStats)
}

func TestComputeOverall(t *testing.T) {
	entries := []*domain.EntryWithItems{
		entry(1, statsNow, 4.0),
		entry(2, statsNow, 6.0),
	}

	s := Compute(entries, statsNow)
	assert.Equal(t, 2, s.Overall.TotalEntries)
	assert.InDelta(t, 10.0, s.Overall.TotalValue, 1e-9)
	assert.InDelta(t, 5.0, s.Overall.AvgValue, 1e-9)
}

func TestComputeTopItems(t *testing.T) {
	entries := []*domain.EntryWithItems{
		entry(1, statsNow, 0,
			domain.WasteItem{Name: "Rice", Category: "grains", EstimatedValue: 1.0},
			domain.WasteItem{Name: "Chicken", Category: "protein", EstimatedValue: 3.0},
		),
		entry(2, statsNow, 0,
			domain.WasteItem{Name: "Rice", Category: "grains", EstimatedValue: 2.0},
		),
	}

	s := Compute(entries, statsNow)
	require.Len(t, s.TopItems, 2)
	assert.Equal(t, "Rice", s.TopItems[0].Name)
	assert.Equal(t, 2, s.TopItems[0].Frequency)
	assert.InDelta(t, 3.0, s.TopItems[0].TotalValue, 1e-9)
	assert.InDelta(t, 1.5, s.TopItems[0].AvgValue, 1e-9)
	assert.Equal(t, "Chicken", s.TopItems[1].Name)
}

func TestComputeTopItemsCaseSensitiveAndCapped(t *testing.T) {
	var entries []*domain.EntryWithItems
	for i := 0; i < 12; i++ {
		entries = append(entries, entry(int64(i+1), statsNow, 0,
			domain.WasteItem{Name: fmt.Sprintf("Item %02d", i), EstimatedValue: 1},
		))
	}
	// Different case is a different item.
	entries = append(entries,
		entry(20, statsNow, 0, domain.WasteItem{Name: "rice"}),
		entry(21, statsNow, 0, domain.WasteItem{Name: "Rice"}),
	)

	s := Compute(entries, statsNow)
	assert.Len(t, s.TopItems, 10)
	for _, st := range s.TopItems {
		assert.Equal(t, 1, st.Frequency)
	}
}

func TestComputeDailyStatsWindow(t *testing.T) {
	entries := []*domain.EntryWithItems{
		entry(1, statsNow.AddDate(0, 0, -31), 9.0), // outside window
		entry(2, statsNow.AddDate(0, 0, -30), 4.0), // exactly at the boundary: included
		entry(3, statsNow.AddDate(0, 0, -1), 2.0),
		entry(4, statsNow.AddDate(0, 0, -1).Add(time.Hour), 3.0), // same day as entry 3
		entry(5, statsNow, 1.0),
	}

	s := Compute(entries, statsNow)
	require.Len(t, s.DailyStats, 3)

	// Newest date first.
	assert.Equal(t, statsNow.Format("2006-01-02"), s.DailyStats[0].Date)
	assert.Equal(t, 1, s.DailyStats[0].Entries)

	assert.Equal(t, statsNow.AddDate(0, 0, -1).Format("2006-01-02"), s.DailyStats[1].Date)
	assert.Equal(t, 2, s.DailyStats[1].Entries)
	assert.InDelta(t, 5.0, s.DailyStats[1].TotalValue, 1e-9)

	assert.Equal(t, statsNow.AddDate(0, 0, -30).Format("2006-01-02"), s.DailyStats[2].Date)
}

func TestComputeCategoryStats(t *testing.T) {
	entries := []*domain.EntryWithItems{
		entry(1, statsNow, 0,
			domain.WasteItem{Name: "Steak", Category: "protein", EstimatedValue: 9.0},
			domain.WasteItem{Name: "Beans", Category: "vegetables", EstimatedValue: 1.0},
			domain.WasteItem{Name: "Mystery", Category: "", EstimatedValue: 2.0},
		),
		entry(2, statsNow, 0,
			domain.WasteItem{Name: "Peas", Category: "vegetables", EstimatedValue: 1.5},
		),
	}

	s := Compute(entries, statsNow)
	require.Len(t, s.CategoryStats, 3)

	// Sorted by total value descending.
	assert.Equal(t, "protein", s.CategoryStats[0].Category)
	assert.Equal(t, "vegetables", s.CategoryStats[1].Category)
	assert.Equal(t, 2, s.CategoryStats[1].Frequency)
	assert.InDelta(t, 2.5, s.CategoryStats[1].TotalValue, 1e-9)
	assert.Equal(t, "unknown", s.CategoryStats[2].Category)
}
