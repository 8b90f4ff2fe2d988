package workspace

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"finance-workspace/internal/apperr"
)

func strPtr(s string) *string { return &s }

func TestInit_CreatesLayout(t *testing.T) {
	root := filepath.Join(t.TempDir(), "Finanzas")
	now := time.Unix(1_700_000_000, 0)

	if err := Init(root, now); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	for _, p := range []string{
		filepath.Join(FinanceDir, VersionFile),
		filepath.Join(FinanceDir, AppFile),
		filepath.Join(FinanceDir, CategoriesFile),
		filepath.Join(FinanceDir, AccountsFile),
		filepath.Join(FinanceDir, BudgetsFile),
		filepath.Join(FinanceDir, TagsFile),
		RecordsDir,
		AttachmentsDir,
	} {
		if _, err := os.Stat(filepath.Join(root, p)); err != nil {
			t.Errorf("missing %s: %v", p, err)
		}
	}

	store := NewStore(root)
	accounts, err := store.LoadAccounts()
	if err != nil {
		t.Fatalf("LoadAccounts() error = %v", err)
	}
	want := AccountsConfig{Accounts: []AccountItem{{
		ID: "acc_cash", Name: "Efectivo", Type: "cash", Currency: "COP", IsActive: true, CreatedAt: now.Unix(),
	}}}
	if diff := cmp.Diff(want, accounts); diff != "" {
		t.Errorf("accounts mismatch (-want +got):\n%s", diff)
	}

	cats, err := store.LoadCategories()
	if err != nil {
		t.Fatalf("LoadCategories() error = %v", err)
	}
	if len(cats.Categories) != 16 {
		t.Errorf("expected 16 default categories, got %d", len(cats.Categories))
	}

	tags, err := store.LoadTags()
	if err != nil || len(tags) != 0 {
		t.Errorf("LoadTags() = %v, %v; want empty", tags, err)
	}

	if err := Check(root); err != nil {
		t.Errorf("Check() error = %v", err)
	}
}

func TestInit_AlreadyExists(t *testing.T) {
	root := t.TempDir()

	err := Init(root, time.Now())
	if !apperr.Is(err, apperr.KindAlreadyExists) {
		t.Fatalf("Init() error = %v, want AlreadyExists", err)
	}
}

func TestInit_RollbackOnFailure(t *testing.T) {
	root := filepath.Join(t.TempDir(), "ws")

	calls := 0
	writeDoc = func(path string, v any) error {
		calls++
		if calls == 3 {
			return apperr.IO("write "+filepath.Base(path), errors.New("disk full"))
		}
		return SaveJSON(path, v)
	}
	t.Cleanup(func() { writeDoc = SaveJSON })

	err := Init(root, time.Now())
	if !apperr.Is(err, apperr.KindIO) {
		t.Fatalf("Init() error = %v, want KindIO", err)
	}
	if _, err := os.Stat(root); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected %s to be removed, stat err = %v", root, err)
	}
}

func TestCheck_RejectsPlainDirectory(t *testing.T) {
	err := Check(t.TempDir())
	if !apperr.Is(err, apperr.KindIO) {
		t.Fatalf("Check() error = %v, want KindIO", err)
	}
}

func TestLoadJSON_Errors(t *testing.T) {
	dir := t.TempDir()

	var v AccountsConfig
	err := LoadJSON(filepath.Join(dir, "missing.json"), &v)
	if !apperr.Is(err, apperr.KindIO) || !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("missing file: err = %v", err)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"accounts": [`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := LoadJSON(bad, &v); !apperr.Is(err, apperr.KindConfig) {
		t.Errorf("corrupt file: err = %v, want KindConfig", err)
	}
}

func TestSaveJSON_ReplacesWholeDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, AccountsFile)
	first := AccountsConfig{Accounts: []AccountItem{{ID: "a"}, {ID: "b"}}}
	second := AccountsConfig{Accounts: []AccountItem{{ID: "a"}}}
	if err := SaveJSON(path, first); err != nil {
		t.Fatal(err)
	}
	if err := SaveJSON(path, second); err != nil {
		t.Fatal(err)
	}

	var got AccountsConfig
	if err := LoadJSON(path, &got); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(second, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected no temp files left, got %d entries", len(entries))
	}
}

func TestRecordFiles(t *testing.T) {
	root := filepath.Join(t.TempDir(), "ws")
	if err := Init(root, time.Now()); err != nil {
		t.Fatal(err)
	}
	store := NewStore(root)

	for _, rec := range []RecordItem{
		{ID: "r2", Type: "expense", Amount: 5, AccountID: "acc_cash"},
		{ID: "r1", Type: "income", Amount: 10, AccountID: "acc_cash"},
	} {
		if _, err := store.WriteRecord(rec); err != nil {
			t.Fatalf("WriteRecord(%s) error = %v", rec.ID, err)
		}
	}
	if err := os.WriteFile(filepath.Join(store.RecordsDir(), "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	files, err := store.RecordFiles()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{store.RecordPath("r1"), store.RecordPath("r2")}
	if diff := cmp.Diff(want, files); diff != "" {
		t.Errorf("RecordFiles mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordItemValidate(t *testing.T) {
	tests := []struct {
		name    string
		rec     RecordItem
		wantErr bool
	}{
		{"income", RecordItem{ID: "r", Type: "income", Amount: 1, AccountID: "a"}, false},
		{"zero expense", RecordItem{ID: "r", Type: "expense", AccountID: "a"}, false},
		{"transfer", RecordItem{ID: "r", Type: "transfer", Amount: 1, AccountID: "a", ToAccountID: strPtr("b")}, false},
		{"missing id", RecordItem{Type: "income", AccountID: "a"}, true},
		{"unknown type", RecordItem{ID: "r", Type: "refund", AccountID: "a"}, true},
		{"negative", RecordItem{ID: "r", Type: "income", Amount: -1, AccountID: "a"}, true},
		{"no account", RecordItem{ID: "r", Type: "income"}, true},
		{"transfer without destination", RecordItem{ID: "r", Type: "transfer", AccountID: "a"}, true},
		{"expense with destination", RecordItem{ID: "r", Type: "expense", AccountID: "a", ToAccountID: strPtr("b")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rec.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
