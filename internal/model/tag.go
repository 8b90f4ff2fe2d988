package model

// Tag is a free label attached to records.
type Tag struct {
	ID        string `gorm:"primaryKey"`
	Name      string `gorm:"not null"`
	CreatedAt int64  `gorm:"not null;autoCreateTime:false"`
}

func (Tag) TableName() string { return "tags" }

// Meta is a key/value row describing the cache itself.
type Meta struct {
	Key   string `gorm:"primaryKey"`
	Value string `gorm:"not null"`
}

func (Meta) TableName() string { return "meta" }
