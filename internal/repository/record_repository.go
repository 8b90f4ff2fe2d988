package repository

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"finance-workspace/internal/model"
)

// RecordRepository manages cached records.
type RecordRepository struct {
	db *gorm.DB
}

func NewRecordRepository(db *gorm.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// RecordRow is a record joined with its source account, optional destination
// account and optional category. Columns of a missing join are nil.
type RecordRow struct {
	ID          string
	Type        model.RecordType
	Timestamp   int64
	Amount      decimal.Decimal
	Description *string

	AccountID             string
	AccountName           string
	AccountType           model.AccountType
	AccountCurrency       string
	AccountInitialBalance decimal.Decimal
	AccountCreditLimit    decimal.NullDecimal
	AccountIsActive       bool
	AccountCreatedAt      int64

	ToAccountID             *string
	ToAccountName           *string
	ToAccountType           *string
	ToAccountCurrency       *string
	ToAccountInitialBalance decimal.NullDecimal
	ToAccountCreditLimit    decimal.NullDecimal
	ToAccountIsActive       *bool
	ToAccountCreatedAt      *int64

	CategoryID       *string
	CategoryName     *string
	CategoryType     *string
	CategoryIcon     *string
	CategoryColor    *string
	CategoryIsActive *bool
}

// Totals holds the raw income and expense sums over every record.
type Totals struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
}

func (r *RecordRepository) Upsert(ctx context.Context, rec *model.Record) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(rec).Error
	if err != nil {
		return fmt.Errorf("upsert record %s: %w", rec.ID, err)
	}
	return nil
}

func (r *RecordRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Record{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// Page returns up to limit records, newest first, ties broken by id.
func (r *RecordRepository) Page(ctx context.Context, limit, offset int) ([]RecordRow, error) {
	const q = `
SELECT r.id, r.type, r.timestamp, r.amount, r.description,
       a.id AS account_id, a.name AS account_name, a.type AS account_type,
       a.currency AS account_currency, a.initial_balance AS account_initial_balance,
       a.credit_limit AS account_credit_limit, a.is_active AS account_is_active,
       a.created_at AS account_created_at,
       t.id AS to_account_id, t.name AS to_account_name, t.type AS to_account_type,
       t.currency AS to_account_currency, t.initial_balance AS to_account_initial_balance,
       t.credit_limit AS to_account_credit_limit, t.is_active AS to_account_is_active,
       t.created_at AS to_account_created_at,
       c.id AS category_id, c.name AS category_name, c.type AS category_type,
       c.icon AS category_icon, c.color AS category_color, c.is_active AS category_is_active
FROM records r
JOIN accounts a ON a.id = r.account_id
LEFT JOIN accounts t ON t.id = r.to_account_id
LEFT JOIN categories c ON c.id = r.category_id
ORDER BY r.timestamp DESC, r.id ASC
LIMIT ? OFFSET ?`

	var rows []RecordRow
	if err := r.db.WithContext(ctx).Raw(q, limit, offset).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("page records: %w", err)
	}
	return rows, nil
}

// Totals sums income and expense amounts. Transfers are not counted.
func (r *RecordRepository) Totals(ctx context.Context) (Totals, error) {
	amounts, err := movingAmounts(ctx, r.db)
	if err != nil {
		return Totals{}, fmt.Errorf("record totals: %w", err)
	}
	t := Totals{Income: decimal.Zero, Expense: decimal.Zero}
	for _, a := range amounts {
		switch a.Type {
		case model.RecordIncome:
			t.Income = t.Income.Add(a.Amount)
		case model.RecordExpense:
			t.Expense = t.Expense.Add(a.Amount)
		}
	}
	return t, nil
}

// recordAmount is the part of a record that moves a balance.
type recordAmount struct {
	AccountID string
	Type      model.RecordType
	Amount    decimal.Decimal
}

// Signed is the amount as seen by the source account.
func (a recordAmount) Signed() decimal.Decimal {
	switch a.Type {
	case model.RecordIncome:
		return a.Amount
	case model.RecordExpense:
		return a.Amount.Neg()
	}
	return decimal.Zero
}

// movingAmounts loads the amounts of every income and expense record.
// Amounts are decimal strings and are added in Go, never by SQLite.
func movingAmounts(ctx context.Context, db *gorm.DB) ([]recordAmount, error) {
	var rows []recordAmount
	err := db.WithContext(ctx).Model(&model.Record{}).
		Select("account_id", "type", "amount").
		Where("type IN ?", []model.RecordType{model.RecordIncome, model.RecordExpense}).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ClearAll removes every record; tag links go with them.
func (r *RecordRepository) ClearAll(ctx context.Context) error {
	if err := r.db.WithContext(ctx).Exec("DELETE FROM records").Error; err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	return nil
}
