package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"wastewatch/internal/domain"
)

// Store is the single source of truth for waste entries and their items.
// Canonical state lives in memory; every mutation synchronously rewrites the
// whole durable image, so mutations are serialized behind one writer lock.
type Store struct {
	mu     sync.RWMutex
	path   string
	logger *slog.Logger

	entries map[int64]*domain.WasteEntry
	items   map[int64]*domain.WasteItem

	nextEntryID int64
	nextItemID  int64
}

// image is the durable store format: one structured record holding both
// tables and their id counters.
type image struct {
	Entries     []*domain.WasteEntry `json:"entries"`
	Items       []*domain.WasteItem  `json:"items"`
	NextEntryID int64                `json:"next_entry_id"`
	NextItemID  int64                `json:"next_item_id"`
}

// ListFilter bounds a List call. Limit <= 0 means no limit. Time bounds are
// inclusive and apply to the entry timestamp.
type ListFilter struct {
	Limit     int
	StartTime *time.Time
	EndTime   *time.Time
}

// Open loads the durable image at path, or starts empty when the file is
// missing. A corrupt image is logged and treated as empty rather than
// failing startup.
func Open(path string, logger *slog.Logger) (*Store, error) {
	s := &Store{
		path:        path,
		logger:      logger,
		entries:     make(map[int64]*domain.WasteEntry),
		items:       make(map[int64]*domain.WasteItem),
		nextEntryID: 1,
		nextItemID:  1,
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, &domain.PersistenceError{Op: "read store file", Err: err}
	}

	var img image
	if err := json.Unmarshal(data, &img); err != nil {
		logger.Warn("store file is corrupt, starting empty", "path", path, "error", err)
		return s, nil
	}

	for _, e := range img.Entries {
		s.entries[e.ID] = e
	}
	for _, it := range img.Items {
		s.items[it.ID] = it
	}

	// Older images may lack counters; recompute as max id + 1.
	s.nextEntryID = img.NextEntryID
	s.nextItemID = img.NextItemID
	if s.nextEntryID == 0 {
		s.nextEntryID = maxEntryID(s.entries) + 1
	}
	if s.nextItemID == 0 {
		s.nextItemID = maxItemID(s.items) + 1
	}

	return s, nil
}

func maxEntryID(entries map[int64]*domain.WasteEntry) int64 {
	var m int64
	for id := range entries {
		if id > m {
			m = id
		}
	}
	return m
}

func maxItemID(items map[int64]*domain.WasteItem) int64 {
	var m int64
	for id := range items {
		if id > m {
			m = id
		}
	}
	return m
}

// Append persists a new entry with its items, assigning ids from the
// independent entry and item sequences. On a persistence failure nothing is
// applied: the in-memory state and both counters stay at the last durably
// written state.
func (s *Store) Append(ctx context.Context, entry domain.WasteEntry, items []domain.WasteItem) (*domain.EntryWithItems, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.ID = s.nextEntryID
	entry.CreatedAt = time.Now().UTC()

	stored := make([]*domain.WasteItem, 0, len(items))
	for i := range items {
		it := items[i]
		it.ID = s.nextItemID + int64(i)
		it.WasteEntryID = entry.ID
		stored = append(stored, &it)
	}

	s.entries[entry.ID] = &entry
	for _, it := range stored {
		s.items[it.ID] = it
	}
	s.nextEntryID++
	s.nextItemID += int64(len(items))

	if err := s.persistLocked(); err != nil {
		// Roll back so the counters never advance past the durable state.
		delete(s.entries, entry.ID)
		for _, it := range stored {
			delete(s.items, it.ID)
		}
		s.nextEntryID = entry.ID
		s.nextItemID -= int64(len(items))
		return nil, err
	}

	return s.joinLocked(&entry), nil
}

// List returns entries with their items joined, sorted by timestamp
// descending (highest id first on equal timestamps).
func (s *Store) List(ctx context.Context, filter ListFilter) ([]*domain.EntryWithItems, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*domain.WasteEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if filter.StartTime != nil && e.Timestamp.Before(*filter.StartTime) {
			continue
		}
		if filter.EndTime != nil && e.Timestamp.After(*filter.EndTime) {
			continue
		}
		matched = append(matched, e)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].Timestamp.After(matched[j].Timestamp)
		}
		return matched[i].ID > matched[j].ID
	})

	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	out := make([]*domain.EntryWithItems, 0, len(matched))
	for _, e := range matched {
		out = append(out, s.joinLocked(e))
	}
	return out, nil
}

// GetByID returns one entry with items, or nil when the id is unknown.
func (s *Store) GetByID(ctx context.Context, id int64) (*domain.EntryWithItems, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, nil
	}
	return s.joinLocked(e), nil
}

// FindMostRecentByHash resolves the entry with the given image hash and the
// most recent timestamp; on a timestamp tie the highest id wins. Returns nil
// when no entry carries the hash.
func (s *Store) FindMostRecentByHash(ctx context.Context, hash string) (*domain.EntryWithItems, error) {
	if hash == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *domain.WasteEntry
	for _, e := range s.entries {
		if e.ImageHash != hash {
			continue
		}
		if best == nil ||
			e.Timestamp.After(best.Timestamp) ||
			(e.Timestamp.Equal(best.Timestamp) && e.ID > best.ID) {
			best = e
		}
	}
	if best == nil {
		return nil, nil
	}
	return s.joinLocked(best), nil
}

// DeleteByID removes the entry and cascades to its items.
func (s *Store) DeleteByID(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return &domain.NotFoundError{ID: id}
	}

	removed := make([]*domain.WasteItem, 0)
	for itemID, it := range s.items {
		if it.WasteEntryID == id {
			removed = append(removed, it)
			delete(s.items, itemID)
		}
	}
	delete(s.entries, id)

	if err := s.persistLocked(); err != nil {
		s.entries[id] = entry
		for _, it := range removed {
			s.items[it.ID] = it
		}
		return err
	}
	return nil
}

// ClearAll removes every entry and item and resets both id sequences to
// their initial values.
func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prevEntries, prevItems := s.entries, s.items
	prevNextEntry, prevNextItem := s.nextEntryID, s.nextItemID

	s.entries = make(map[int64]*domain.WasteEntry)
	s.items = make(map[int64]*domain.WasteItem)
	s.nextEntryID = 1
	s.nextItemID = 1

	if err := s.persistLocked(); err != nil {
		s.entries, s.items = prevEntries, prevItems
		s.nextEntryID, s.nextItemID = prevNextEntry, prevNextItem
		return err
	}
	return nil
}

func (s *Store) joinLocked(e *domain.WasteEntry) *domain.EntryWithItems {
	out := &domain.EntryWithItems{WasteEntry: *e, Items: []domain.WasteItem{}}
	for _, it := range s.items {
		if it.WasteEntryID == e.ID {
			out.Items = append(out.Items, *it)
		}
	}
	sort.Slice(out.Items, func(i, j int) bool { return out.Items[i].ID < out.Items[j].ID })
	return out
}

// persistLocked rewrites the whole durable image. The write is atomic at the
// file level: content goes to a temp file in the same directory which is then
// renamed over the store file, so a crash never leaves a half-written image.
func (s *Store) persistLocked() error {
	img := image{
		Entries:     make([]*domain.WasteEntry, 0, len(s.entries)),
		Items:       make([]*domain.WasteItem, 0, len(s.items)),
		NextEntryID: s.nextEntryID,
		NextItemID:  s.nextItemID,
	}
	for _, e := range s.entries {
		img.Entries = append(img.Entries, e)
	}
	for _, it := range s.items {
		img.Items = append(img.Items, it)
	}
	sort.Slice(img.Entries, func(i, j int) bool { return img.Entries[i].ID < img.Entries[j].ID })
	sort.Slice(img.Items, func(i, j int) bool { return img.Items[i].ID < img.Items[j].ID })

	data, err := json.MarshalIndent(&img, "", "  ")
	if err != nil {
		return &domain.PersistenceError{Op: "encode store image", Err: err}
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return &domain.PersistenceError{Op: "create temp store file", Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return &domain.PersistenceError{Op: "write store file", Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return &domain.PersistenceError{Op: "close store file", Err: err}
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return &domain.PersistenceError{Op: "replace store file", Err: err}
	}
	return nil
}

// Path returns the durable image location, for logging.
func (s *Store) Path() string { return s.path }
