package domain

import "time"

// WasteEntry is one logged waste event: a single photograph and the monetary
// estimate derived from it. JSON tags double as the durable store format and
// the API wire format.
type WasteEntry struct {
	ID                  int64     `json:"id"`
	ImagePath           string    `json:"image_path"`
	Timestamp           time.Time `json:"timestamp"`
	TotalEstimatedValue float64   `json:"total_estimated_value"`
	EstimatedWeight     string    `json:"estimated_weight,omitempty"`
	Notes               string    `json:"notes,omitempty"`
	ImageHash           string    `json:"image_hash,omitempty"`
	DuplicateOfEntryID  int64     `json:"duplicate_of_entry_id,omitempty"`
	ConsistencyNote     string    `json:"consistency_note,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// WasteItem is a single food item identified within an entry.
type WasteItem struct {
	ID              int64   `json:"id"`
	WasteEntryID    int64   `json:"waste_entry_id"`
	Name            string  `json:"name"`
	Category        string  `json:"category"`
	EstimatedAmount string  `json:"estimated_amount,omitempty"`
	Condition       string  `json:"condition"`
	EstimatedValue  float64 `json:"estimated_value"`
}

// EntryWithItems joins an entry with its line items for reads.
type EntryWithItems struct {
	WasteEntry
	Items []WasteItem `json:"items"`
}
