package workspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"finance-workspace/internal/model"
)

// VersionConfig is .finance/version.json.
type VersionConfig struct {
	SchemaVersion int    `json:"schema_version"`
	CreatedAt     int64  `json:"created_at"`
	AppVersion    string `json:"app_version"`
}

// AppConfig is .finance/app.json: workspace-wide preferences.
type AppConfig struct {
	Currency  string `json:"currency"`
	Language  string `json:"language"`
	Theme     string `json:"theme"`
	WeekStart string `json:"week_start"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

type CategoryItem struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	Icon          string `json:"icon"`
	Color         string `json:"color"`
	CreatedByUser bool   `json:"created_by_user"`
	IsActive      bool   `json:"is_active"`
	CreatedAt     int64  `json:"created_at"`
}

// CategoriesConfig is .finance/categories.json.
type CategoriesConfig struct {
	Categories []CategoryItem `json:"categories"`
}

type AccountItem struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Type           string   `json:"type"`
	Currency       string   `json:"currency"`
	InitialBalance float64  `json:"initial_balance"`
	CreditLimit    *float64 `json:"credit_limit"`
	IsActive       bool     `json:"is_active"`
	CreatedAt      int64    `json:"created_at"`
}

// AccountsConfig is .finance/accounts.json.
type AccountsConfig struct {
	Accounts []AccountItem `json:"accounts"`
}

// Find returns the index of the account with the given id, or -1.
func (c *AccountsConfig) Find(id string) int {
	for i := range c.Accounts {
		if c.Accounts[i].ID == id {
			return i
		}
	}
	return -1
}

// Find returns the index of the category with the given id, or -1.
func (c *CategoriesConfig) Find(id string) int {
	for i := range c.Categories {
		if c.Categories[i].ID == id {
			return i
		}
	}
	return -1
}

type TagItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"`
}

// TagsConfig is .finance/tags.json, stored as a bare array.
type TagsConfig []TagItem

// RecordItem is the content of one records/<id>.json file.
type RecordItem struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Timestamp   int64           `json:"timestamp"`
	Amount      float64         `json:"amount"`
	AccountID   string          `json:"account_id"`
	ToAccountID *string         `json:"to_account_id,omitempty"`
	CategoryID  *string         `json:"category_id,omitempty"`
	Description *string         `json:"description,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

var (
	ErrMissingID      = errors.New("missing id")
	ErrMissingAccount = errors.New("missing account_id")
	ErrNegativeAmount = errors.New("amount must not be negative")
)

// Validate checks the record against the canonical schema.
func (r RecordItem) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return ErrMissingID
	}
	if !model.RecordType(r.Type).Valid() {
		return fmt.Errorf("unknown record type %q", r.Type)
	}
	if r.Amount < 0 {
		return ErrNegativeAmount
	}
	if strings.TrimSpace(r.AccountID) == "" {
		return ErrMissingAccount
	}
	hasDest := r.ToAccountID != nil && *r.ToAccountID != ""
	switch {
	case model.RecordType(r.Type) == model.RecordTransfer && !hasDest:
		return errors.New("transfer without to_account_id")
	case model.RecordType(r.Type) != model.RecordTransfer && hasDest:
		return fmt.Errorf("%s record with to_account_id", r.Type)
	}
	return nil
}
