package service

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"finance-workspace/internal/apperr"
	"finance-workspace/internal/model"
	"finance-workspace/internal/repository"
	"finance-workspace/internal/workspace"
)

// RecordInput represents data required to add a record. A zero Timestamp
// means now.
type RecordInput struct {
	Type        model.RecordType
	Amount      decimal.Decimal
	AccountID   string
	ToAccountID string
	CategoryID  string
	Description string
	Timestamp   time.Time
	Tags        []string
}

// RecordService adds records to both stores.
type RecordService struct {
	store *workspace.Store
	cache *repository.Cache
	log   zerolog.Logger
	now   func() time.Time
	newID func() string
}

func NewRecordService(store *workspace.Store, cache *repository.Cache, log zerolog.Logger) *RecordService {
	return &RecordService{
		store: store,
		cache: cache,
		log:   log.With().Str("component", "records").Logger(),
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// CreateRecord writes records/<id>.json and its cache row. The source and
// destination accounts must exist.
func (s *RecordService) CreateRecord(ctx context.Context, input RecordInput) (string, error) {
	const op = "create record"
	ts := input.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	item := workspace.RecordItem{
		ID:        s.newID(),
		Type:      string(input.Type),
		Timestamp: ts.Unix(),
		Amount:    input.Amount.InexactFloat64(),
		AccountID: strings.TrimSpace(input.AccountID),
		Tags:      input.Tags,
	}
	item.ToAccountID = optional(input.ToAccountID)
	item.CategoryID = optional(input.CategoryID)
	item.Description = optional(input.Description)
	if err := item.Validate(); err != nil {
		return "", apperr.Invalid(op, "%v", err)
	}

	path := s.store.RecordPath(item.ID)
	err := pairedWrite(ctx, s.cache, s.log, op,
		func(tx *gorm.DB) (bool, error) {
			accounts := repository.NewAccountRepository(tx)
			for _, id := range []*string{&item.AccountID, item.ToAccountID} {
				if id == nil {
					continue
				}
				acc, err := accounts.FindByID(ctx, *id)
				if err != nil {
					return false, err
				}
				if acc == nil {
					return false, apperr.NotFound(op, "account %q", *id)
				}
			}
			rec := item.Model(s.store.Root())
			if err := repository.NewRecordRepository(tx).Upsert(ctx, &rec); err != nil {
				return false, err
			}
			return true, repository.NewTagRepository(tx).Link(ctx, rec.ID, item.Tags...)
		},
		func() error {
			_, err := s.store.WriteRecord(item)
			return err
		},
		func() error {
			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			return nil
		},
	)
	if err != nil {
		return "", err
	}
	return item.ID, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
