package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"time"

	"wastewatch/internal/domain"
	"wastewatch/internal/photostore"
	"wastewatch/internal/reconcile"
	"wastewatch/internal/stats"
	"wastewatch/internal/store"
	"wastewatch/internal/vision"
)

// entryRepository is the subset of store.Store that WasteService requires.
type entryRepository interface {
	Append(ctx context.Context, entry domain.WasteEntry, items []domain.WasteItem) (*domain.EntryWithItems, error)
	List(ctx context.Context, filter store.ListFilter) ([]*domain.EntryWithItems, error)
	GetByID(ctx context.Context, id int64) (*domain.EntryWithItems, error)
	FindMostRecentByHash(ctx context.Context, hash string) (*domain.EntryWithItems, error)
	DeleteByID(ctx context.Context, id int64) error
	ClearAll(ctx context.Context) error
}

// WasteService orchestrates ingestion and all reads over the waste history.
type WasteService struct {
	store    entryRepository
	analyzer vision.Analyzer
	images   photostore.PhotoStore
	logger   *slog.Logger
	now      func() time.Time
}

func NewWasteService(
	st entryRepository,
	analyzer vision.Analyzer,
	images photostore.PhotoStore,
	logger *slog.Logger,
) *WasteService {
	return &WasteService{
		store:    st,
		analyzer: analyzer,
		images:   images,
		logger:   logger,
		now:      time.Now,
	}
}

// IngestResult pairs the (reconciled) analysis with the persisted record.
type IngestResult struct {
	Analysis *vision.AnalysisResult `json:"analysis"`
	Entry    *domain.EntryWithItems `json:"entry"`
}

// Ingest runs the full pipeline: hash the image, store it, run the vision
// collaborator, reconcile against a prior upload of the same image, and
// persist the entry with its items. Collaborator and store failures pass
// through untranslated so the boundary can classify them; the stored image
// is rolled back when a later step fails.
func (s *WasteService) Ingest(ctx context.Context, imageData []byte, mimeType string, loggedAt time.Time) (*IngestResult, error) {
	if len(imageData) == 0 {
		return nil, &domain.ValidationError{Msg: "image is empty"}
	}
	if loggedAt.IsZero() {
		loggedAt = s.now()
	}

	sum := sha256.Sum256(imageData)
	hash := hex.EncodeToString(sum[:])
	s.logger.Info("ingest started", "mime_type", mimeType, "bytes", len(imageData), "image_hash", hash[:12])

	storageKey, err := s.images.Save(ctx, "entry", mimeType, bytes.NewReader(imageData))
	if err != nil {
		return nil, &domain.PersistenceError{Op: "save image", Err: err}
	}

	analysis, err := s.analyzer.Analyze(ctx, bytes.NewReader(imageData), mimeType)
	if err != nil {
		s.rollbackImage(ctx, storageKey)
		return nil, err
	}
	s.logger.Info("vision analysis complete",
		"items_detected", len(analysis.Items),
		"confidence", analysis.Confidence,
		"needs_better_photo", analysis.NeedsBetterPhoto,
	)

	prior, err := s.store.FindMostRecentByHash(ctx, hash)
	if err != nil {
		s.rollbackImage(ctx, storageKey)
		return nil, err
	}
	if prior != nil {
		s.logger.Info("duplicate image detected", "prior_entry_id", prior.ID)
	}

	rec := reconcile.Reconcile(analysis.Items, prior)
	analysis.Items = rec.Items
	analysis.TotalEstimatedValue = rec.Total

	entry := domain.WasteEntry{
		ImagePath:           storageKey,
		Timestamp:           loggedAt,
		TotalEstimatedValue: rec.Total,
		EstimatedWeight:     weightSummary(analysis.EstimatedWaste),
		Notes:               analysis.Notes,
		ImageHash:           hash,
		DuplicateOfEntryID:  rec.PriorEntryID,
		ConsistencyNote:     rec.Note,
	}

	items := make([]domain.WasteItem, 0, len(rec.Items))
	for _, it := range rec.Items {
		items = append(items, domain.WasteItem{
			Name:            it.Name,
			Category:        it.Category,
			EstimatedAmount: it.EstimatedAmount,
			Condition:       it.Condition,
			EstimatedValue:  it.EstimatedValue,
		})
	}

	persisted, err := s.store.Append(ctx, entry, items)
	if err != nil {
		s.rollbackImage(ctx, storageKey)
		return nil, err
	}

	s.logger.Info("ingest complete", "entry_id", persisted.ID, "total_value", persisted.TotalEstimatedValue)
	return &IngestResult{Analysis: analysis, Entry: persisted}, nil
}

// weightSummary flattens the model's weight/percentage estimate into a
// single display string.
func weightSummary(w vision.EstimatedWaste) string {
	switch {
	case w.Weight != "" && w.Percentage != "":
		return fmt.Sprintf("%s (%s)", w.Weight, w.Percentage)
	case w.Weight != "":
		return w.Weight
	default:
		return w.Percentage
	}
}

func (s *WasteService) rollbackImage(ctx context.Context, storageKey string) {
	if err := s.images.Delete(ctx, storageKey); err != nil {
		s.logger.Error("failed to roll back stored image", "storage_key", storageKey, "error", err)
	}
}

// History lists entries with items, newest first.
func (s *WasteService) History(ctx context.Context, limit int, start, end *time.Time) ([]*domain.EntryWithItems, error) {
	return s.store.List(ctx, store.ListFilter{Limit: limit, StartTime: start, EndTime: end})
}

// Entry fetches a single entry with items; nil when the id is unknown.
func (s *WasteService) Entry(ctx context.Context, id int64) (*domain.EntryWithItems, error) {
	return s.store.GetByID(ctx, id)
}

// Image streams the stored source photo for an entry.
func (s *WasteService) Image(ctx context.Context, id int64) (io.ReadCloser, string, error) {
	entry, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if entry == nil {
		return nil, "", &domain.NotFoundError{ID: id}
	}
	reader, mimeType, err := s.images.Get(ctx, entry.ImagePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", &domain.NotFoundError{ID: id}
		}
		return nil, "", err
	}
	return reader, mimeType, nil
}

// Statistics recomputes the aggregate snapshot from the full history.
func (s *WasteService) Statistics(ctx context.Context) (*stats.Snapshot, error) {
	entries, err := s.store.List(ctx, store.ListFilter{})
	if err != nil {
		return nil, err
	}
	return stats.Compute(entries, s.now()), nil
}

// Suggestions applies the aggregate rule set to the current statistics.
func (s *WasteService) Suggestions(ctx context.Context) ([]stats.Suggestion, error) {
	snapshot, err := s.Statistics(ctx)
	if err != nil {
		return nil, err
	}
	return stats.FromSnapshot(snapshot), nil
}

// RecentSuggestions applies the quick, entry-level rule set to the last
// three raw entries.
func (s *WasteService) RecentSuggestions(ctx context.Context) ([]stats.Suggestion, error) {
	entries, err := s.store.List(ctx, store.ListFilter{Limit: 3})
	if err != nil {
		return nil, err
	}
	return stats.FromRecentEntries(entries), nil
}

// DeleteEntry removes one entry and its items, plus the stored image.
func (s *WasteService) DeleteEntry(ctx context.Context, id int64) error {
	entry, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if entry == nil {
		return &domain.NotFoundError{ID: id}
	}

	if err := s.store.DeleteByID(ctx, id); err != nil {
		return err
	}

	if entry.ImagePath != "" {
		if err := s.images.Delete(ctx, entry.ImagePath); err != nil {
			s.logger.Error("failed to delete stored image", "storage_key", entry.ImagePath, "error", err)
		}
	}
	return nil
}

// ClearAll wipes every entry, item, and both id counters.
func (s *WasteService) ClearAll(ctx context.Context) error {
	entries, err := s.store.List(ctx, store.ListFilter{})
	if err != nil {
		return err
	}

	if err := s.store.ClearAll(ctx); err != nil {
		return err
	}

	for _, e := range entries {
		if e.ImagePath == "" {
			continue
		}
		if err := s.images.Delete(ctx, e.ImagePath); err != nil {
			s.logger.Error("failed to delete stored image", "storage_key", e.ImagePath, "error", err)
		}
	}
	return nil
}
