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

// AccountRepository manages cached accounts.
type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// AccountBalance is an account row together with the net of its income and
// expense records.
type AccountBalance struct {
	ID             string
	Name           string
	Type           model.AccountType
	Currency       string
	InitialBalance decimal.Decimal
	CreditLimit    decimal.NullDecimal
	IsActive       bool
	CreatedAt      int64
	Movement       decimal.Decimal
}

// Balance is the initial balance plus the record movement.
func (a AccountBalance) Balance() decimal.Decimal {
	return a.InitialBalance.Add(a.Movement)
}

// Upsert inserts the account or overwrites every column of an existing one.
func (r *AccountRepository) Upsert(ctx context.Context, acc *model.Account) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(acc).Error
	if err != nil {
		return fmt.Errorf("upsert account %s: %w", acc.ID, err)
	}
	return nil
}

// Insert fails if an account with the same id exists.
func (r *AccountRepository) Insert(ctx context.Context, acc *model.Account) error {
	if err := r.db.WithContext(ctx).Create(acc).Error; err != nil {
		return fmt.Errorf("insert account %s: %w", acc.ID, err)
	}
	return nil
}

// Update rewrites every column of an existing account and reports whether a
// row matched.
func (r *AccountRepository) Update(ctx context.Context, acc *model.Account) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Account{}).Where("id = ?", acc.ID).
		Select("*").Omit("id").Updates(acc)
	if res.Error != nil {
		return false, fmt.Errorf("update account %s: %w", acc.ID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Delete removes the account and returns the number of deleted rows.
func (r *AccountRepository) Delete(ctx context.Context, id string) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Account{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete account %s: %w", id, res.Error)
	}
	return res.RowsAffected, nil
}

// FindByID returns nil, nil when the account is not cached.
func (r *AccountRepository) FindByID(ctx context.Context, id string) (*model.Account, error) {
	var acc model.Account
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&acc).Error
	switch {
	case err == nil:
		return &acc, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("find account %s: %w", id, err)
	}
}

func (r *AccountRepository) ListAll(ctx context.Context) ([]model.Account, error) {
	var accounts []model.Account
	if err := r.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

// ListWithBalances returns every account with the movement of the records
// whose source is that account. Transfers do not move balances.
func (r *AccountRepository) ListWithBalances(ctx context.Context) ([]AccountBalance, error) {
	accounts, err := r.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	amounts, err := movingAmounts(ctx, r.db)
	if err != nil {
		return nil, fmt.Errorf("list account balances: %w", err)
	}

	movement := make(map[string]decimal.Decimal, len(accounts))
	for _, a := range amounts {
		movement[a.AccountID] = movement[a.AccountID].Add(a.Signed())
	}

	rows := make([]AccountBalance, 0, len(accounts))
	for _, acc := range accounts {
		rows = append(rows, AccountBalance{
			ID:             acc.ID,
			Name:           acc.Name,
			Type:           acc.Type,
			Currency:       acc.Currency,
			InitialBalance: acc.InitialBalance,
			CreditLimit:    acc.CreditLimit,
			IsActive:       acc.IsActive,
			CreatedAt:      acc.CreatedAt,
			Movement:       movement[acc.ID],
		})
	}
	return rows, nil
}

// CountReferences counts records that use the account as source or destination.
func (r *AccountRepository) CountReferences(ctx context.Context, id string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Record{}).
		Where("account_id = ? OR to_account_id = ?", id, id).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count references to account %s: %w", id, err)
	}
	return n, nil
}

func (r *AccountRepository) SumInitialBalances(ctx context.Context) (decimal.Decimal, error) {
	var balances []decimal.Decimal
	err := r.db.WithContext(ctx).Model(&model.Account{}).Pluck("initial_balance", &balances).Error
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum initial balances: %w", err)
	}
	sum := decimal.Zero
	for _, b := range balances {
		sum = sum.Add(b)
	}
	return sum, nil
}

// ClearAll removes every cached account. Records must be cleared first.
func (r *AccountRepository) ClearAll(ctx context.Context) error {
	if err := r.db.WithContext(ctx).Exec("DELETE FROM accounts").Error; err != nil {
		return fmt.Errorf("clear accounts: %w", err)
	}
	return nil
}
