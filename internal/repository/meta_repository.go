package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"finance-workspace/internal/model"
)

// SchemaVersionKey is the meta key holding the applied migration version.
const SchemaVersionKey = "schema_version"

// MetaRepository reads and writes cache metadata.
type MetaRepository struct {
	db *gorm.DB
}

func NewMetaRepository(db *gorm.DB) *MetaRepository {
	return &MetaRepository{db: db}
}

// Get returns the value for key and whether it was present.
func (r *MetaRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var m model.Meta
	err := r.db.WithContext(ctx).Where("key = ?", key).Take(&m).Error
	switch {
	case err == nil:
		return m.Value, true, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return "", false, nil
	default:
		return "", false, fmt.Errorf("get meta %q: %w", key, err)
	}
}

func (r *MetaRepository) Set(ctx context.Context, key, value string) error {
	m := model.Meta{Key: key, Value: value}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&m).Error
	if err != nil {
		return fmt.Errorf("set meta %q: %w", key, err)
	}
	return nil
}

// SchemaVersion returns the recorded schema version, 0 for a fresh cache.
func (r *MetaRepository) SchemaVersion(ctx context.Context) (int, error) {
	v, ok, err := r.Get(ctx, SchemaVersionKey)
	if err != nil || !ok {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse schema version %q: %w", v, err)
	}
	return n, nil
}
