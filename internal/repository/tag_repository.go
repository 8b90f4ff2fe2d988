package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"finance-workspace/internal/model"
)

// TagRepository manages cached tags and their links to records.
type TagRepository struct {
	db *gorm.DB
}

func NewTagRepository(db *gorm.DB) *TagRepository {
	return &TagRepository{db: db}
}

func (r *TagRepository) Upsert(ctx context.Context, t *model.Tag) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(t).Error
	if err != nil {
		return fmt.Errorf("upsert tag %s: %w", t.ID, err)
	}
	return nil
}

// Link attaches tags to a record. Existing links are kept.
func (r *TagRepository) Link(ctx context.Context, recordID string, tagIDs ...string) error {
	if len(tagIDs) == 0 {
		return nil
	}
	links := make([]model.RecordTag, 0, len(tagIDs))
	for _, id := range tagIDs {
		links = append(links, model.RecordTag{RecordID: recordID, TagID: id})
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&links).Error
	if err != nil {
		return fmt.Errorf("link tags to record %s: %w", recordID, err)
	}
	return nil
}

// TagsOf returns the tag ids linked to a record, sorted.
func (r *TagRepository) TagsOf(ctx context.Context, recordID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&model.RecordTag{}).
		Where("record_id = ?", recordID).Order("tag_id ASC").Pluck("tag_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("tags of record %s: %w", recordID, err)
	}
	return ids, nil
}

// ClearAll removes every tag and link.
func (r *TagRepository) ClearAll(ctx context.Context) error {
	db := r.db.WithContext(ctx)
	if err := db.Exec("DELETE FROM record_tags").Error; err != nil {
		return fmt.Errorf("clear record tags: %w", err)
	}
	if err := db.Exec("DELETE FROM tags").Error; err != nil {
		return fmt.Errorf("clear tags: %w", err)
	}
	return nil
}
