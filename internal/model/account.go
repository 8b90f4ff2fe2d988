package model

import "github.com/shopspring/decimal"

// AccountType enumerates the kinds of money containers a workspace tracks.
type AccountType string

const (
	AccountCash   AccountType = "cash"
	AccountDebit  AccountType = "debit"
	AccountCredit AccountType = "credit"
	AccountOther  AccountType = "other"
)

// Valid reports whether t is one of the known account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountCash, AccountDebit, AccountCredit, AccountOther:
		return true
	}
	return false
}

// Account is the cached row of an account from accounts.json.
type Account struct {
	ID             string              `gorm:"primaryKey"`
	Name           string              `gorm:"not null"`
	Type           AccountType         `gorm:"not null"`
	Currency       string              `gorm:"not null"`
	InitialBalance decimal.Decimal     `gorm:"type:text;not null"`
	CreditLimit    decimal.NullDecimal `gorm:"type:text"`
	IsActive       bool                `gorm:"not null"`
	CreatedAt      int64               `gorm:"not null;autoCreateTime:false"`
}

func (Account) TableName() string { return "accounts" }
