package model

import "github.com/shopspring/decimal"

// RecordType is the direction of a transaction. The amount is always a
// non-negative magnitude; the sign comes from the type.
type RecordType string

const (
	RecordIncome   RecordType = "income"
	RecordExpense  RecordType = "expense"
	RecordTransfer RecordType = "transfer"
)

func (t RecordType) Valid() bool {
	switch t {
	case RecordIncome, RecordExpense, RecordTransfer:
		return true
	}
	return false
}

// Record is the denormalized cache row of one records/<id>.json file.
type Record struct {
	ID          string          `gorm:"primaryKey"`
	Type        RecordType      `gorm:"not null"`
	Timestamp   int64           `gorm:"not null;index"`
	Amount      decimal.Decimal `gorm:"type:text;not null"`
	AccountID   string          `gorm:"not null;index"`
	ToAccountID *string         `gorm:"index"`
	CategoryID  *string         `gorm:"index"`
	Description *string
	FilePath    string `gorm:"not null"`
}

func (Record) TableName() string { return "records" }

// RecordTag links a record to a tag.
type RecordTag struct {
	RecordID string `gorm:"primaryKey"`
	TagID    string `gorm:"primaryKey"`
}

func (RecordTag) TableName() string { return "record_tags" }
