package service

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"finance-workspace/internal/apperr"
	"finance-workspace/internal/model"
	"finance-workspace/internal/repository"
)

// UncategorizedName labels expenses with no known category.
const UncategorizedName = "Uncategorized"

const secondsPerDay = 86400

// DashboardStats are the workspace-wide totals.
type DashboardStats struct {
	TotalBalance decimal.Decimal
	TotalIncome  decimal.Decimal
	TotalExpense decimal.Decimal
}

// AccountSummary is an account with its derived balance.
type AccountSummary struct {
	ID             string
	Name           string
	Type           model.AccountType
	Currency       string
	InitialBalance decimal.Decimal
	CreditLimit    decimal.NullDecimal
	IsActive       bool
	CreatedAt      int64
	Balance        decimal.Decimal
}

// CategorySummary is the category snapshot attached to a record view.
type CategorySummary struct {
	ID       string
	Name     string
	Type     model.CategoryType
	Icon     string
	Color    string
	IsActive bool
}

// CategoryPercentage is one slice of the expense breakdown. CategoryID is
// empty for the uncategorized slice.
type CategoryPercentage struct {
	CategoryID string
	Name       string
	Color      string
	Amount     decimal.Decimal
	Percentage float64
}

// RecordView is a record with the current snapshots of what it references.
type RecordView struct {
	ID          string
	Type        model.RecordType
	Timestamp   int64
	Amount      decimal.Decimal
	Currency    string
	Description *string
	Account     AccountSummary
	ToAccount   *AccountSummary
	Category    *CategorySummary
}

// Pagination is one page of a listing.
type Pagination[T any] struct {
	Items       []T
	TotalItems  int64
	CurrentPage int
	Size        int
	TotalPages  int64
}

// LedgerService answers read-only queries against the cache.
type LedgerService struct {
	cache *repository.Cache
	now   func() time.Time
}

func NewLedgerService(cache *repository.Cache) *LedgerService {
	return &LedgerService{cache: cache, now: time.Now}
}

// WithClock replaces the time source used for windowed queries.
func (s *LedgerService) WithClock(now func() time.Time) *LedgerService {
	s.now = now
	return s
}

// CalculateOverallStats sums initial balances, income and expense over the
// whole workspace. Transfers are ignored.
func (s *LedgerService) CalculateOverallStats(ctx context.Context) (DashboardStats, error) {
	var stats DashboardStats
	err := s.cache.Run(ctx, func(db *gorm.DB) error {
		initial, err := repository.NewAccountRepository(db).SumInitialBalances(ctx)
		if err != nil {
			return err
		}
		totals, err := repository.NewRecordRepository(db).Totals(ctx)
		if err != nil {
			return err
		}
		stats = DashboardStats{
			TotalBalance: initial.Add(totals.Income).Sub(totals.Expense),
			TotalIncome:  totals.Income,
			TotalExpense: totals.Expense,
		}
		return nil
	})
	if err != nil {
		return DashboardStats{}, apperr.Database("calculate stats", err)
	}
	return stats, nil
}

// GetAccountsWithBalances lists accounts by creation time with their balances.
func (s *LedgerService) GetAccountsWithBalances(ctx context.Context) ([]AccountSummary, error) {
	var rows []repository.AccountBalance
	err := s.cache.Run(ctx, func(db *gorm.DB) error {
		var err error
		rows, err = repository.NewAccountRepository(db).ListWithBalances(ctx)
		return err
	})
	if err != nil {
		return nil, apperr.Database("list accounts", err)
	}

	out := make([]AccountSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, AccountSummary{
			ID:             r.ID,
			Name:           r.Name,
			Type:           r.Type,
			Currency:       r.Currency,
			InitialBalance: r.InitialBalance,
			CreditLimit:    r.CreditLimit,
			IsActive:       r.IsActive,
			CreatedAt:      r.CreatedAt,
			Balance:        r.Balance(),
		})
	}
	return out, nil
}

// GetExpensesByCategory breaks down expenses of the last days days by
// category. The window starts at now-days*86400 inclusive. Expenses without a
// known category share one Uncategorized row.
func (s *LedgerService) GetExpensesByCategory(ctx context.Context, days int) ([]CategoryPercentage, error) {
	if days < 0 {
		return nil, apperr.Invalid("expenses by category", "days must not be negative, got %d", days)
	}
	since := s.now().Unix() - int64(days)*secondsPerDay

	var rows []repository.CategoryExpense
	err := s.cache.Run(ctx, func(db *gorm.DB) error {
		var err error
		rows, err = repository.NewCategoryRepository(db).ExpensesByCategory(ctx, since)
		return err
	})
	if err != nil {
		return nil, apperr.Database("expenses by category", err)
	}
	return breakdown(rows), nil
}

func breakdown(rows []repository.CategoryExpense) []CategoryPercentage {
	var (
		out           []CategoryPercentage
		uncategorized decimal.Decimal
		total         decimal.Decimal
	)
	for _, r := range rows {
		total = total.Add(r.Amount)
		if r.CategoryID == nil || r.Name == nil {
			uncategorized = uncategorized.Add(r.Amount)
			continue
		}
		item := CategoryPercentage{CategoryID: *r.CategoryID, Name: *r.Name, Amount: r.Amount}
		if r.Color != nil {
			item.Color = *r.Color
		}
		out = append(out, item)
	}
	if !uncategorized.IsZero() {
		out = append(out, CategoryPercentage{Name: UncategorizedName, Amount: uncategorized})
	}

	for i := range out {
		if total.IsZero() {
			out[i].Percentage = 0
			continue
		}
		out[i].Percentage = out[i].Amount.Div(total).Mul(decimal.NewFromInt(100)).InexactFloat64()
	}

	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// GetPaginatedRecords returns one page of records, newest first. A page
// below 1 or a non-positive size yields no items.
func (s *LedgerService) GetPaginatedRecords(ctx context.Context, page, size int) (Pagination[RecordView], error) {
	result := Pagination[RecordView]{Items: []RecordView{}, CurrentPage: page, Size: size}

	var rows []repository.RecordRow
	err := s.cache.Run(ctx, func(db *gorm.DB) error {
		repo := repository.NewRecordRepository(db)
		total, err := repo.Count(ctx)
		if err != nil {
			return err
		}
		result.TotalItems = total
		if size <= 0 || page < 1 {
			return nil
		}
		rows, err = repo.Page(ctx, size, (page-1)*size)
		return err
	})
	if err != nil {
		return Pagination[RecordView]{}, apperr.Database("list records", err)
	}

	result.TotalPages = totalPages(result.TotalItems, size)
	for _, r := range rows {
		result.Items = append(result.Items, toRecordView(r))
	}
	return result, nil
}

func totalPages(items int64, size int) int64 {
	if size <= 0 {
		return 0
	}
	return (items + int64(size) - 1) / int64(size)
}

// ListCategories returns every cached category ordered by type and name.
func (s *LedgerService) ListCategories(ctx context.Context) ([]model.Category, error) {
	var categories []model.Category
	err := s.cache.Run(ctx, func(db *gorm.DB) error {
		var err error
		categories, err = repository.NewCategoryRepository(db).ListAll(ctx)
		return err
	})
	if err != nil {
		return nil, apperr.Database("list categories", err)
	}
	return categories, nil
}

func toRecordView(r repository.RecordRow) RecordView {
	view := RecordView{
		ID:          r.ID,
		Type:        r.Type,
		Timestamp:   r.Timestamp,
		Amount:      r.Amount,
		Currency:    r.AccountCurrency,
		Description: r.Description,
		Account: AccountSummary{
			ID:             r.AccountID,
			Name:           r.AccountName,
			Type:           r.AccountType,
			Currency:       r.AccountCurrency,
			InitialBalance: r.AccountInitialBalance,
			CreditLimit:    r.AccountCreditLimit,
			IsActive:       r.AccountIsActive,
			CreatedAt:      r.AccountCreatedAt,
			Balance:        r.AccountInitialBalance,
		},
	}
	if r.ToAccountID != nil {
		to := AccountSummary{
			ID:             *r.ToAccountID,
			Name:           deref(r.ToAccountName),
			Type:           model.AccountType(deref(r.ToAccountType)),
			Currency:       deref(r.ToAccountCurrency),
			InitialBalance: r.ToAccountInitialBalance.Decimal,
			CreditLimit:    r.ToAccountCreditLimit,
			Balance:        r.ToAccountInitialBalance.Decimal,
		}
		if r.ToAccountIsActive != nil {
			to.IsActive = *r.ToAccountIsActive
		}
		if r.ToAccountCreatedAt != nil {
			to.CreatedAt = *r.ToAccountCreatedAt
		}
		view.ToAccount = &to
	}
	if r.CategoryID != nil {
		cat := CategorySummary{
			ID:    *r.CategoryID,
			Name:  deref(r.CategoryName),
			Type:  model.CategoryType(deref(r.CategoryType)),
			Icon:  deref(r.CategoryIcon),
			Color: deref(r.CategoryColor),
		}
		if r.CategoryIsActive != nil {
			cat.IsActive = *r.CategoryIsActive
		}
		view.Category = &cat
	}
	return view
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
