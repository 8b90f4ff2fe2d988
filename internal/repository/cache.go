package repository

import (
	"context"
	"sync"

	"gorm.io/gorm"
)

// Cache serializes every access to the workspace's SQLite cache.
type Cache struct {
	db *gorm.DB
	mu sync.Mutex
}

func NewCache(db *gorm.DB) *Cache {
	return &Cache{db: db}
}

// Run calls fn with exclusive access to the database.
func (c *Cache) Run(ctx context.Context, fn func(db *gorm.DB) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn(c.db.WithContext(ctx))
}

// Transaction calls fn inside one transaction with exclusive access. The
// transaction commits when fn returns nil and rolls back otherwise; a failed
// commit is returned as the error.
func (c *Cache) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db.WithContext(ctx).Transaction(fn)
}

// Close releases the underlying connection.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
