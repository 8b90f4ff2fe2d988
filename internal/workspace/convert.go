package workspace

import (
	"github.com/shopspring/decimal"

	"finance-workspace/internal/model"
)

// Model converts the document entry into its cache row.
func (a AccountItem) Model() model.Account {
	acc := model.Account{
		ID:             a.ID,
		Name:           a.Name,
		Type:           model.AccountType(a.Type),
		Currency:       a.Currency,
		InitialBalance: decimal.NewFromFloat(a.InitialBalance),
		IsActive:       a.IsActive,
		CreatedAt:      a.CreatedAt,
	}
	if a.CreditLimit != nil {
		acc.CreditLimit = decimal.NewNullDecimal(decimal.NewFromFloat(*a.CreditLimit))
	}
	return acc
}

func (c CategoryItem) Model() model.Category {
	return model.Category{
		ID:       c.ID,
		Name:     c.Name,
		Type:     model.CategoryType(c.Type),
		Icon:     c.Icon,
		Color:    c.Color,
		IsActive: c.IsActive,
	}
}

func (t TagItem) Model() model.Tag {
	return model.Tag{ID: t.ID, Name: t.Name, CreatedAt: t.CreatedAt}
}

// Model converts the record document into its cache row; root locates the
// canonical file.
func (r RecordItem) Model(root string) model.Record {
	rec := model.Record{
		ID:          r.ID,
		Type:        model.RecordType(r.Type),
		Timestamp:   r.Timestamp,
		Amount:      decimal.NewFromFloat(r.Amount),
		AccountID:   r.AccountID,
		Description: r.Description,
		FilePath:    RecordPath(root, r.ID),
	}
	if r.ToAccountID != nil && *r.ToAccountID != "" {
		to := *r.ToAccountID
		rec.ToAccountID = &to
	}
	if r.CategoryID != nil && *r.CategoryID != "" {
		cat := *r.CategoryID
		rec.CategoryID = &cat
	}
	return rec
}
