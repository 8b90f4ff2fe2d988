package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"finance-workspace/internal/apperr"
	"finance-workspace/internal/model"
	"finance-workspace/internal/repository"
	"finance-workspace/internal/workspace"
)

// CategoryInput represents data required to create a category.
type CategoryInput struct {
	Name  string
	Type  model.CategoryType
	Icon  string
	Color string
}

// CategoryUpdate changes the fields that are not nil.
type CategoryUpdate struct {
	ID       string
	Name     *string
	Icon     *string
	Color    *string
	IsActive *bool
}

// CategoryService manages user categories in both stores.
type CategoryService struct {
	store *workspace.Store
	cache *repository.Cache
	log   zerolog.Logger
	mu    sync.Mutex
	now   func() time.Time
	newID func() string
}

func NewCategoryService(store *workspace.Store, cache *repository.Cache, log zerolog.Logger) *CategoryService {
	return &CategoryService{
		store: store,
		cache: cache,
		log:   log.With().Str("component", "categories").Logger(),
		now:   time.Now,
		newID: uuid.NewString,
	}
}

func (s *CategoryService) CreateCategory(ctx context.Context, input CategoryInput) (string, error) {
	const op = "create category"
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return "", apperr.Invalid(op, "name is required")
	}
	if !input.Type.Valid() {
		return "", apperr.Invalid(op, "unknown category type %q", input.Type)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, err := s.store.LoadCategories()
	if err != nil {
		return "", err
	}
	for _, c := range prev.Categories {
		if strings.EqualFold(c.Name, name) && c.Type == string(input.Type) {
			return "", apperr.AlreadyExists(op, "%s category %q", input.Type, name)
		}
	}

	item := workspace.CategoryItem{
		ID:            s.newID(),
		Name:          name,
		Type:          string(input.Type),
		Icon:          strings.TrimSpace(input.Icon),
		Color:         strings.TrimSpace(input.Color),
		CreatedByUser: true,
		IsActive:      true,
		CreatedAt:     s.now().Unix(),
	}
	next := workspace.CategoriesConfig{Categories: append(append([]workspace.CategoryItem{}, prev.Categories...), item)}
	err = pairedWrite(ctx, s.cache, s.log, op,
		func(tx *gorm.DB) (bool, error) {
			c := item.Model()
			return true, repository.NewCategoryRepository(tx).Insert(ctx, &c)
		},
		func() error { return s.store.SaveCategories(next) },
		func() error { return s.store.SaveCategories(prev) },
	)
	if err != nil {
		return "", err
	}
	return item.ID, nil
}

func (s *CategoryService) UpdateCategory(ctx context.Context, input CategoryUpdate) error {
	const op = "update category"
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, err := s.store.LoadCategories()
	if err != nil {
		return err
	}
	idx := prev.Find(input.ID)
	if idx < 0 {
		return apperr.NotFound(op, "category %q", input.ID)
	}

	item := prev.Categories[idx]
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return apperr.Invalid(op, "name is required")
		}
		item.Name = name
	}
	if input.Icon != nil {
		item.Icon = strings.TrimSpace(*input.Icon)
	}
	if input.Color != nil {
		item.Color = strings.TrimSpace(*input.Color)
	}
	if input.IsActive != nil {
		item.IsActive = *input.IsActive
	}

	next := workspace.CategoriesConfig{Categories: append([]workspace.CategoryItem{}, prev.Categories...)}
	next.Categories[idx] = item
	return pairedWrite(ctx, s.cache, s.log, op,
		func(tx *gorm.DB) (bool, error) {
			c := item.Model()
			return true, repository.NewCategoryRepository(tx).Upsert(ctx, &c)
		},
		func() error { return s.store.SaveCategories(next) },
		func() error { return s.store.SaveCategories(prev) },
	)
}

// DeleteCategoryIfUnreferenced mirrors DeleteAccountIfUnreferenced for
// categories.
func (s *CategoryService) DeleteCategoryIfUnreferenced(ctx context.Context, id string) (bool, error) {
	const op = "delete category"
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, err := s.store.LoadCategories()
	if err != nil {
		return false, err
	}
	next := workspace.CategoriesConfig{Categories: make([]workspace.CategoryItem, 0, len(prev.Categories))}
	for _, c := range prev.Categories {
		if c.ID != id {
			next.Categories = append(next.Categories, c)
		}
	}

	deleted := false
	err = pairedWrite(ctx, s.cache, s.log, op,
		func(tx *gorm.DB) (bool, error) {
			repo := repository.NewCategoryRepository(tx)
			refs, err := repo.CountReferences(ctx, id)
			if err != nil || refs > 0 {
				return false, err
			}
			affected, err := repo.Delete(ctx, id)
			if err != nil || affected == 0 {
				return false, err
			}
			deleted = true
			return true, nil
		},
		func() error { return s.store.SaveCategories(next) },
		func() error { return s.store.SaveCategories(prev) },
	)
	if err != nil {
		return false, err
	}
	return deleted, nil
}
