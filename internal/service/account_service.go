package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"finance-workspace/internal/apperr"
	"finance-workspace/internal/model"
	"finance-workspace/internal/repository"
	"finance-workspace/internal/workspace"
)

// AccountInput represents data required to create an account. An empty
// Currency means the workspace currency.
type AccountInput struct {
	Name           string
	Type           model.AccountType
	Currency       string
	InitialBalance decimal.Decimal
	CreditLimit    *decimal.Decimal
}

// AccountUpdate changes the fields that are not nil.
type AccountUpdate struct {
	ID             string
	Name           *string
	Type           *model.AccountType
	Currency       *string
	InitialBalance *decimal.Decimal
	CreditLimit    *decimal.Decimal
	// ClearCreditLimit removes the limit. It cannot be combined with CreditLimit.
	ClearCreditLimit bool
	IsActive         *bool
}

// AccountService creates, updates and deletes accounts in both stores.
type AccountService struct {
	store *workspace.Store
	cache *repository.Cache
	log   zerolog.Logger
	mu    sync.Mutex
	now   func() time.Time
	newID func() string
}

func NewAccountService(store *workspace.Store, cache *repository.Cache, log zerolog.Logger) *AccountService {
	return &AccountService{
		store: store,
		cache: cache,
		log:   log.With().Str("component", "accounts").Logger(),
		now:   time.Now,
		newID: uuid.NewString,
	}
}

func (s *AccountService) CreateAccount(ctx context.Context, input AccountInput) (string, error) {
	const op = "create account"
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return "", apperr.Invalid(op, "name is required")
	}
	if !input.Type.Valid() {
		return "", apperr.Invalid(op, "unknown account type %q", input.Type)
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = s.workspaceCurrency()
	}
	if err := validateCurrency(op, currency); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, err := s.store.LoadAccounts()
	if err != nil {
		return "", err
	}

	item := workspace.AccountItem{
		ID:             s.newID(),
		Name:           name,
		Type:           string(input.Type),
		Currency:       currency,
		InitialBalance: input.InitialBalance.InexactFloat64(),
		IsActive:       true,
		CreatedAt:      s.now().Unix(),
	}
	if input.CreditLimit != nil {
		limit := input.CreditLimit.InexactFloat64()
		item.CreditLimit = &limit
	}

	next := workspace.AccountsConfig{Accounts: append(append([]workspace.AccountItem{}, prev.Accounts...), item)}
	err = pairedWrite(ctx, s.cache, s.log, op,
		func(tx *gorm.DB) (bool, error) {
			acc := item.Model()
			return true, repository.NewAccountRepository(tx).Insert(ctx, &acc)
		},
		func() error { return s.store.SaveAccounts(next) },
		func() error { return s.store.SaveAccounts(prev) },
	)
	if err != nil {
		return "", err
	}
	s.log.Info().Str("account", item.ID).Str("name", item.Name).Msg("account created")
	return item.ID, nil
}

// UpdateAccount applies the non-nil fields of input to an existing account.
func (s *AccountService) UpdateAccount(ctx context.Context, input AccountUpdate) error {
	const op = "update account"
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, err := s.store.LoadAccounts()
	if err != nil {
		return err
	}
	idx := prev.Find(input.ID)
	if idx < 0 {
		return apperr.NotFound(op, "account %q", input.ID)
	}

	item := prev.Accounts[idx]
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return apperr.Invalid(op, "name is required")
		}
		item.Name = name
	}
	if input.Type != nil {
		if !input.Type.Valid() {
			return apperr.Invalid(op, "unknown account type %q", *input.Type)
		}
		item.Type = string(*input.Type)
	}
	if input.Currency != nil {
		currency := strings.ToUpper(strings.TrimSpace(*input.Currency))
		if err := validateCurrency(op, currency); err != nil {
			return err
		}
		item.Currency = currency
	}
	if input.InitialBalance != nil {
		item.InitialBalance = input.InitialBalance.InexactFloat64()
	}
	switch {
	case input.ClearCreditLimit && input.CreditLimit != nil:
		return apperr.Invalid(op, "credit limit cannot be both set and cleared")
	case input.ClearCreditLimit:
		item.CreditLimit = nil
	case input.CreditLimit != nil:
		limit := input.CreditLimit.InexactFloat64()
		item.CreditLimit = &limit
	}
	if input.IsActive != nil {
		item.IsActive = *input.IsActive
	}

	next := workspace.AccountsConfig{Accounts: append([]workspace.AccountItem{}, prev.Accounts...)}
	next.Accounts[idx] = item
	return pairedWrite(ctx, s.cache, s.log, op,
		func(tx *gorm.DB) (bool, error) {
			acc := item.Model()
			repo := repository.NewAccountRepository(tx)
			ok, err := repo.Update(ctx, &acc)
			if err != nil || ok {
				return true, err
			}
			return true, repo.Upsert(ctx, &acc)
		},
		func() error { return s.store.SaveAccounts(next) },
		func() error { return s.store.SaveAccounts(prev) },
	)
}

// DeleteAccountIfUnreferenced deletes the account when no record uses it.
// It returns false, nil when records reference the account or when the cache
// has no such account; neither store is changed then.
func (s *AccountService) DeleteAccountIfUnreferenced(ctx context.Context, id string) (bool, error) {
	const op = "delete account"
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, err := s.store.LoadAccounts()
	if err != nil {
		return false, err
	}
	next := workspace.AccountsConfig{Accounts: make([]workspace.AccountItem, 0, len(prev.Accounts))}
	for _, a := range prev.Accounts {
		if a.ID != id {
			next.Accounts = append(next.Accounts, a)
		}
	}

	deleted := false
	err = pairedWrite(ctx, s.cache, s.log, op,
		func(tx *gorm.DB) (bool, error) {
			repo := repository.NewAccountRepository(tx)
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
		func() error { return s.store.SaveAccounts(next) },
		func() error { return s.store.SaveAccounts(prev) },
	)
	if err != nil {
		return false, err
	}
	if deleted {
		s.log.Info().Str("account", id).Msg("account deleted")
	}
	return deleted, nil
}

func (s *AccountService) workspaceCurrency() string {
	app, err := s.store.LoadApp()
	if err != nil || app.Currency == "" {
		return workspace.DefaultCurrency
	}
	return strings.ToUpper(app.Currency)
}

func validateCurrency(op, code string) error {
	if code == "" || money.GetCurrency(code) == nil {
		return apperr.Invalid(op, "unknown currency %q", code)
	}
	return nil
}
