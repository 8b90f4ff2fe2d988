package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"finance-workspace/internal/model"
)

// CategoryRepository manages cached categories.
type CategoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// CategoryExpense is the expense total of one category id. Name and Color
// are nil when the id is empty or does not match a cached category.
type CategoryExpense struct {
	CategoryID *string
	Name       *string
	Color      *string
	Amount     decimal.Decimal
}

func (r *CategoryRepository) Upsert(ctx context.Context, c *model.Category) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(c).Error
	if err != nil {
		return fmt.Errorf("upsert category %s: %w", c.ID, err)
	}
	return nil
}

func (r *CategoryRepository) Insert(ctx context.Context, c *model.Category) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("insert category %s: %w", c.ID, err)
	}
	return nil
}

func (r *CategoryRepository) Delete(ctx context.Context, id string) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Category{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete category %s: %w", id, res.Error)
	}
	return res.RowsAffected, nil
}

// FindByID returns nil, nil when the category is not cached.
func (r *CategoryRepository) FindByID(ctx context.Context, id string) (*model.Category, error) {
	var c model.Category
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&c).Error
	switch {
	case err == nil:
		return &c, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("find category %s: %w", id, err)
	}
}

func (r *CategoryRepository) ListAll(ctx context.Context) ([]model.Category, error) {
	var categories []model.Category
	if err := r.db.WithContext(ctx).Order("type ASC, name ASC, id ASC").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

func (r *CategoryRepository) CountReferences(ctx context.Context, id string) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Record{}).Where("category_id = ?", id).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count references to category %s: %w", id, err)
	}
	return n, nil
}

// ExpensesByCategory sums expense records with timestamp >= since, grouped
// by category id. Rows come back in order of first appearance by category id.
func (r *CategoryRepository) ExpensesByCategory(ctx context.Context, since int64) ([]CategoryExpense, error) {
	const q = `
SELECT r.category_id AS category_id, c.name AS name, c.color AS color, r.amount AS amount
FROM records r
LEFT JOIN categories c ON c.id = r.category_id
WHERE r.type = 'expense' AND r.timestamp >= ?
ORDER BY r.category_id`

	var expenses []CategoryExpense
	if err := r.db.WithContext(ctx).Raw(q, since).Scan(&expenses).Error; err != nil {
		return nil, fmt.Errorf("expenses by category: %w", err)
	}

	type groupKey struct {
		id    string
		valid bool
	}
	index := make(map[groupKey]int)
	var rows []CategoryExpense
	for _, e := range expenses {
		key := groupKey{valid: e.CategoryID != nil}
		if key.valid {
			key.id = *e.CategoryID
		}
		i, ok := index[key]
		if !ok {
			index[key] = len(rows)
			rows = append(rows, e)
			continue
		}
		rows[i].Amount = rows[i].Amount.Add(e.Amount)
	}
	return rows, nil
}

func (r *CategoryRepository) ClearAll(ctx context.Context) error {
	if err := r.db.WithContext(ctx).Exec("DELETE FROM categories").Error; err != nil {
		return fmt.Errorf("clear categories: %w", err)
	}
	return nil
}
