// Package testutil builds throwaway workspaces and caches for tests.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"finance-workspace/internal/repository"
	"finance-workspace/internal/workspace"
)

// Epoch is the creation time stamped into fixture workspaces.
var Epoch = time.Unix(1_700_000_000, 0)

// DecimalEqual compares decimals by value in cmp.Diff.
var DecimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

// Workspace is a scaffolded workspace inside t.TempDir().
type Workspace struct {
	Root  string
	Store *workspace.Store
	t     testing.TB
}

// NewWorkspace scaffolds a workspace named "ws" with the default documents.
func NewWorkspace(t testing.TB) *Workspace {
	t.Helper()
	return NewNamedWorkspace(t, "ws")
}

// NewNamedWorkspace scaffolds a workspace whose directory is called name.
func NewNamedWorkspace(t testing.TB, name string) *Workspace {
	t.Helper()
	root := filepath.Join(t.TempDir(), name)
	if err := workspace.Init(root, Epoch); err != nil {
		t.Fatalf("init workspace: %v", err)
	}
	return &Workspace{Root: root, Store: workspace.NewStore(root), t: t}
}

// SetAccounts replaces accounts.json.
func (w *Workspace) SetAccounts(items ...workspace.AccountItem) *Workspace {
	w.t.Helper()
	if err := w.Store.SaveAccounts(workspace.AccountsConfig{Accounts: items}); err != nil {
		w.t.Fatalf("save accounts: %v", err)
	}
	return w
}

// SetCategories replaces categories.json.
func (w *Workspace) SetCategories(items ...workspace.CategoryItem) *Workspace {
	w.t.Helper()
	if err := w.Store.SaveCategories(workspace.CategoriesConfig{Categories: items}); err != nil {
		w.t.Fatalf("save categories: %v", err)
	}
	return w
}

// SetTags replaces tags.json.
func (w *Workspace) SetTags(items ...workspace.TagItem) *Workspace {
	w.t.Helper()
	path := filepath.Join(w.Root, workspace.FinanceDir, workspace.TagsFile)
	if err := workspace.SaveJSON(path, workspace.TagsConfig(items)); err != nil {
		w.t.Fatalf("save tags: %v", err)
	}
	return w
}

// AddRecords writes each record to its canonical file.
func (w *Workspace) AddRecords(recs ...workspace.RecordItem) *Workspace {
	w.t.Helper()
	for _, rec := range recs {
		if _, err := w.Store.WriteRecord(rec); err != nil {
			w.t.Fatalf("write record %s: %v", rec.ID, err)
		}
	}
	return w
}

// WriteRecordFile writes raw bytes into records/<name>.
func (w *Workspace) WriteRecordFile(name, content string) string {
	w.t.Helper()
	path := filepath.Join(w.Store.RecordsDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		w.t.Fatal(err)
	}
	return path
}

// RemoveRecord deletes records/<id>.json.
func (w *Workspace) RemoveRecord(id string) {
	w.t.Helper()
	if err := os.Remove(w.Store.RecordPath(id)); err != nil {
		w.t.Fatal(err)
	}
}

// Account builds an active account document.
func Account(id string, initial float64, createdAt int64) workspace.AccountItem {
	return workspace.AccountItem{
		ID: id, Name: id, Type: "cash", Currency: "COP",
		InitialBalance: initial, IsActive: true, CreatedAt: createdAt,
	}
}

// Category builds an active category document.
func Category(id, kind string) workspace.CategoryItem {
	return workspace.CategoryItem{ID: id, Name: id, Type: kind, IsActive: true}
}

// Income, Expense and Transfer build record documents.
func Income(id, account string, amount float64, ts int64) workspace.RecordItem {
	return workspace.RecordItem{ID: id, Type: "income", AccountID: account, Amount: amount, Timestamp: ts}
}

func Expense(id, account string, amount float64, ts int64, category string) workspace.RecordItem {
	rec := workspace.RecordItem{ID: id, Type: "expense", AccountID: account, Amount: amount, Timestamp: ts}
	if category != "" {
		rec.CategoryID = &category
	}
	return rec
}

func Transfer(id, from, to string, amount float64, ts int64) workspace.RecordItem {
	return workspace.RecordItem{ID: id, Type: "transfer", AccountID: from, ToAccountID: &to, Amount: amount, Timestamp: ts}
}

// OpenCache opens a migrated cache at path, closed at test cleanup.
func OpenCache(t testing.TB, path string) *repository.Cache {
	t.Helper()
	db, err := repository.NewDB(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	cache := repository.NewCache(db)
	t.Cleanup(func() { cache.Close() })
	return cache
}

// Dump returns every row of every cache table, ordered, for equality checks.
func Dump(t testing.TB, cache *repository.Cache) map[string][]map[string]any {
	t.Helper()
	tables := []struct{ name, order string }{
		{"accounts", "id"},
		{"categories", "id"},
		{"tags", "id"},
		{"records", "id"},
		{"record_tags", "record_id, tag_id"},
	}
	out := make(map[string][]map[string]any, len(tables))
	err := cache.Run(context.Background(), func(db *gorm.DB) error {
		for _, tbl := range tables {
			var rows []map[string]any
			if err := db.Table(tbl.name).Order(tbl.order).Find(&rows).Error; err != nil {
				return err
			}
			out[tbl.name] = rows
		}
		return nil
	})
	if err != nil {
		t.Fatalf("dump cache: %v", err)
	}
	return out
}
