package model

// CategoryType says which kind of record a category classifies.
type CategoryType string

const (
	CategoryExpense  CategoryType = "expense"
	CategoryIncome   CategoryType = "income"
	CategoryTransfer CategoryType = "transfer"
)

func (t CategoryType) Valid() bool {
	switch t {
	case CategoryExpense, CategoryIncome, CategoryTransfer:
		return true
	}
	return false
}

// Category groups records for reporting (food, salary, etc.).
type Category struct {
	ID       string       `gorm:"primaryKey"`
	Name     string       `gorm:"not null"`
	Type     CategoryType `gorm:"not null"`
	Icon     string
	Color    string
	IsActive bool `gorm:"not null"`
}

func (Category) TableName() string { return "categories" }
