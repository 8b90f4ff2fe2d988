package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"finance-workspace/internal/model"
)

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func openTestDB(t *testing.T, path string) *gorm.DB {
	t.Helper()
	db, err := NewDB(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func closeDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	if err := sqlDB.Close(); err != nil {
		t.Fatal(err)
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func strPtr(s string) *string { return &s }

func seed(t *testing.T, db *gorm.DB) {
	t.Helper()
	ctx := context.Background()
	accounts := NewAccountRepository(db)
	for _, acc := range []model.Account{
		{ID: "A", Name: "Wallet", Type: model.AccountCash, Currency: "COP", InitialBalance: dec("100"), IsActive: true, CreatedAt: 1},
		{ID: "B", Name: "Bank", Type: model.AccountDebit, Currency: "USD", InitialBalance: dec("0"), IsActive: true, CreatedAt: 2},
	} {
		acc := acc
		if err := accounts.Upsert(ctx, &acc); err != nil {
			t.Fatal(err)
		}
	}
	if err := NewCategoryRepository(db).Upsert(ctx, &model.Category{ID: "food", Name: "Food", Type: model.CategoryExpense, Color: "#f00", IsActive: true}); err != nil {
		t.Fatal(err)
	}
	records := NewRecordRepository(db)
	for _, rec := range []model.Record{
		{ID: "r1", Type: model.RecordIncome, Timestamp: 100, Amount: dec("50"), AccountID: "A", FilePath: "/ws/records/r1.json"},
		{ID: "r2", Type: model.RecordExpense, Timestamp: 200, Amount: dec("20"), AccountID: "A", CategoryID: strPtr("food"), FilePath: "/ws/records/r2.json"},
		{ID: "r3", Type: model.RecordTransfer, Timestamp: 200, Amount: dec("10"), AccountID: "A", ToAccountID: strPtr("B"), FilePath: "/ws/records/r3.json"},
		{ID: "r4", Type: model.RecordExpense, Timestamp: 50, Amount: dec("5.5"), AccountID: "B", FilePath: "/ws/records/r4.json"},
	} {
		rec := rec
		if err := records.Upsert(ctx, &rec); err != nil {
			t.Fatal(err)
		}
	}
}

func TestNewDB_Pragmas(t *testing.T) {
	db := openTestDB(t, filepath.Join(t.TempDir(), "cache", "cache.sqlite"))

	var fk int
	if err := db.Raw("PRAGMA foreign_keys").Row().Scan(&fk); err != nil || fk != 1 {
		t.Errorf("foreign_keys = %d, %v; want 1", fk, err)
	}
	var mode string
	if err := db.Raw("PRAGMA journal_mode").Row().Scan(&mode); err != nil || mode != "wal" {
		t.Errorf("journal_mode = %q, %v; want wal", mode, err)
	}
	v, err := NewMetaRepository(db).SchemaVersion(context.Background())
	if err != nil || v != CurrentSchemaVersion {
		t.Errorf("SchemaVersion() = %d, %v; want %d", v, err, CurrentSchemaVersion)
	}
}

func TestNewDB_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.sqlite")
	db, err := NewDB(path, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	seed(t, db)
	closeDB(t, db)

	db = openTestDB(t, path)
	n, err := NewRecordRepository(db).Count(context.Background())
	if err != nil || n != 4 {
		t.Errorf("Count() = %d, %v; want 4", n, err)
	}
}

func TestNewDB_NewerSchemaIsRecreated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.sqlite")
	db, err := NewDB(path, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	seed(t, db)
	if err := NewMetaRepository(db).Set(context.Background(), SchemaVersionKey, "99"); err != nil {
		t.Fatal(err)
	}
	closeDB(t, db)

	db = openTestDB(t, path)
	ctx := context.Background()
	n, err := NewRecordRepository(db).Count(ctx)
	if err != nil || n != 0 {
		t.Errorf("Count() = %d, %v; want empty cache", n, err)
	}
	if v, _ := NewMetaRepository(db).SchemaVersion(ctx); v != CurrentSchemaVersion {
		t.Errorf("SchemaVersion() = %d, want %d", v, CurrentSchemaVersion)
	}
}

func TestNewDB_UpgradesRealMoneyColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.sqlite")
	db, err := NewDB(path, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	seed(t, db)
	if err := NewMetaRepository(db).Set(context.Background(), SchemaVersionKey, "1"); err != nil {
		t.Fatal(err)
	}
	closeDB(t, db)

	db = openTestDB(t, path)
	var colType string
	err = db.Raw("SELECT type FROM pragma_table_info('records') WHERE name = 'amount'").Row().Scan(&colType)
	if err != nil || colType != "TEXT" {
		t.Errorf("records.amount type = %q, %v; want TEXT", colType, err)
	}
	if n, _ := NewRecordRepository(db).Count(context.Background()); n != 0 {
		t.Errorf("Count() = %d after upgrade, want an empty cache to reindex", n)
	}
}

func TestAccountRepository_ListWithBalances(t *testing.T) {
	db := openTestDB(t, filepath.Join(t.TempDir(), "cache.sqlite"))
	seed(t, db)

	rows, err := NewAccountRepository(db).ListWithBalances(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]string{}
	for _, r := range rows {
		got[r.ID] = r.Balance().String()
	}
	want := map[string]string{"A": "130", "B": "-5.5"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("balances mismatch (-want +got):\n%s", diff)
	}
	if rows[0].ID != "A" || rows[1].ID != "B" {
		t.Errorf("order = %s,%s; want A,B", rows[0].ID, rows[1].ID)
	}
	if rows[0].CreditLimit.Valid {
		t.Errorf("credit limit should be NULL, got %v", rows[0].CreditLimit)
	}
}

func TestAggregates_FractionalAmounts(t *testing.T) {
	tests := []struct {
		name        string
		initial     string
		records     []model.Record
		wantBalance string
		wantIncome  string
		wantExpense string
	}{
		{
			name:    "tenths",
			initial: "100.1",
			records: []model.Record{
				{ID: "i1", Type: model.RecordIncome, Timestamp: 1, Amount: dec("0.1")},
				{ID: "i2", Type: model.RecordIncome, Timestamp: 2, Amount: dec("0.2")},
				{ID: "e1", Type: model.RecordExpense, Timestamp: 3, Amount: dec("0.05"), CategoryID: strPtr("food")},
			},
			wantBalance: "100.35",
			wantIncome:  "0.3",
			wantExpense: "0.05",
		},
		{
			name:    "expenses only",
			initial: "0.3",
			records: []model.Record{
				{ID: "e1", Type: model.RecordExpense, Timestamp: 1, Amount: dec("0.1"), CategoryID: strPtr("food")},
				{ID: "e2", Type: model.RecordExpense, Timestamp: 2, Amount: dec("0.2"), CategoryID: strPtr("food")},
			},
			wantBalance: "0",
			wantIncome:  "0",
			wantExpense: "0.3",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := openTestDB(t, filepath.Join(t.TempDir(), "cache.sqlite"))
			ctx := context.Background()
			acc := model.Account{ID: "A", Name: "Wallet", Type: model.AccountCash, Currency: "USD", InitialBalance: dec(tt.initial), IsActive: true, CreatedAt: 1}
			if err := NewAccountRepository(db).Upsert(ctx, &acc); err != nil {
				t.Fatal(err)
			}
			if err := NewCategoryRepository(db).Upsert(ctx, &model.Category{ID: "food", Name: "Food", Type: model.CategoryExpense, IsActive: true}); err != nil {
				t.Fatal(err)
			}
			for _, rec := range tt.records {
				rec := rec
				rec.AccountID = "A"
				rec.FilePath = "/ws/records/" + rec.ID + ".json"
				if err := NewRecordRepository(db).Upsert(ctx, &rec); err != nil {
					t.Fatal(err)
				}
			}

			rows, err := NewAccountRepository(db).ListWithBalances(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(rows) != 1 || rows[0].Balance().String() != tt.wantBalance {
				t.Errorf("ListWithBalances() = %+v, want balance %s", rows, tt.wantBalance)
			}

			totals, err := NewRecordRepository(db).Totals(ctx)
			if err != nil {
				t.Fatal(err)
			}
			want := Totals{Income: dec(tt.wantIncome), Expense: dec(tt.wantExpense)}
			if diff := cmp.Diff(want, totals, decimalEqual); diff != "" {
				t.Errorf("Totals() mismatch (-want +got):\n%s", diff)
			}

			sum, err := NewAccountRepository(db).SumInitialBalances(ctx)
			if err != nil || sum.String() != tt.initial {
				t.Errorf("SumInitialBalances() = %v, %v; want %s", sum, err, tt.initial)
			}

			expenses, err := NewCategoryRepository(db).ExpensesByCategory(ctx, 0)
			if err != nil {
				t.Fatal(err)
			}
			if len(expenses) != 1 || expenses[0].Amount.String() != tt.wantExpense {
				t.Errorf("ExpensesByCategory() = %+v, want food %s", expenses, tt.wantExpense)
			}
		})
	}
}

func TestRecords_AmountStoredAsDecimalText(t *testing.T) {
	db := openTestDB(t, filepath.Join(t.TempDir(), "cache.sqlite"))
	seed(t, db)

	var kind, amount string
	err := db.Raw("SELECT typeof(amount), amount FROM records WHERE id = 'r4'").Row().Scan(&kind, &amount)
	if err != nil {
		t.Fatal(err)
	}
	if kind != "text" || amount != "5.5" {
		t.Errorf("stored amount = %s %q, want text \"5.5\"", kind, amount)
	}

	if err := db.Exec("UPDATE records SET amount = '-1' WHERE id = 'r4'").Error; err == nil {
		t.Error("negative amount accepted")
	}
}

func TestAccountRepository_References(t *testing.T) {
	db := openTestDB(t, filepath.Join(t.TempDir(), "cache.sqlite"))
	seed(t, db)
	ctx := context.Background()
	repo := NewAccountRepository(db)

	for id, want := range map[string]int64{"A": 3, "B": 2, "C": 0} {
		n, err := repo.CountReferences(ctx, id)
		if err != nil || n != want {
			t.Errorf("CountReferences(%s) = %d, %v; want %d", id, n, err, want)
		}
	}

	if _, err := repo.Delete(ctx, "B"); err == nil {
		t.Error("Delete(B) succeeded; foreign key should refuse a referenced account")
	}
	n, err := repo.Delete(ctx, "missing")
	if err != nil || n != 0 {
		t.Errorf("Delete(missing) = %d, %v; want 0, nil", n, err)
	}
}

func TestAccountRepository_Update(t *testing.T) {
	db := openTestDB(t, filepath.Join(t.TempDir(), "cache.sqlite"))
	seed(t, db)
	ctx := context.Background()
	repo := NewAccountRepository(db)

	acc, err := repo.FindByID(ctx, "A")
	if err != nil || acc == nil {
		t.Fatalf("FindByID(A) = %v, %v", acc, err)
	}
	acc.Name = "Pocket"
	acc.IsActive = false
	acc.CreditLimit = decimal.NewNullDecimal(dec("300"))
	ok, err := repo.Update(ctx, acc)
	if err != nil || !ok {
		t.Fatalf("Update() = %v, %v", ok, err)
	}
	got, _ := repo.FindByID(ctx, "A")
	if diff := cmp.Diff(acc, got, decimalEqual); diff != "" {
		t.Errorf("account mismatch (-want +got):\n%s", diff)
	}

	ok, err = repo.Update(ctx, &model.Account{ID: "nope", Name: "x", Type: model.AccountCash, Currency: "COP"})
	if err != nil || ok {
		t.Errorf("Update(nope) = %v, %v; want false, nil", ok, err)
	}
	if missing, err := repo.FindByID(ctx, "nope"); err != nil || missing != nil {
		t.Errorf("FindByID(nope) = %v, %v; want nil, nil", missing, err)
	}
}

func TestRecordRepository_TotalsAndPage(t *testing.T) {
	db := openTestDB(t, filepath.Join(t.TempDir(), "cache.sqlite"))
	seed(t, db)
	ctx := context.Background()
	repo := NewRecordRepository(db)

	totals, err := repo.Totals(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !totals.Income.Equal(dec("50")) || !totals.Expense.Equal(dec("25.5")) {
		t.Errorf("Totals() = %v/%v; want 50/25.5", totals.Income, totals.Expense)
	}

	rows, err := repo.Page(ctx, 3, 0)
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	if diff := cmp.Diff([]string{"r2", "r3", "r1"}, ids); diff != "" {
		t.Errorf("page order mismatch (-want +got):\n%s", diff)
	}

	transfer := rows[1]
	if transfer.ToAccountName == nil || *transfer.ToAccountName != "Bank" {
		t.Errorf("transfer destination = %v, want Bank", transfer.ToAccountName)
	}
	if transfer.CategoryID != nil {
		t.Errorf("transfer category = %v, want nil", *transfer.CategoryID)
	}
	if rows[0].CategoryName == nil || *rows[0].CategoryName != "Food" {
		t.Errorf("expense category = %v, want Food", rows[0].CategoryName)
	}
	if rows[0].AccountCurrency != "COP" {
		t.Errorf("account currency = %q, want COP", rows[0].AccountCurrency)
	}

	rest, err := repo.Page(ctx, 3, 3)
	if err != nil || len(rest) != 1 || rest[0].ID != "r4" {
		t.Errorf("second page = %v, %v; want [r4]", rest, err)
	}
}

func TestRecordRepository_EmptyTotals(t *testing.T) {
	db := openTestDB(t, filepath.Join(t.TempDir(), "cache.sqlite"))

	totals, err := NewRecordRepository(db).Totals(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !totals.Income.IsZero() || !totals.Expense.IsZero() {
		t.Errorf("Totals() = %+v, want zeros", totals)
	}
	sum, err := NewAccountRepository(db).SumInitialBalances(context.Background())
	if err != nil || !sum.IsZero() {
		t.Errorf("SumInitialBalances() = %v, %v; want 0", sum, err)
	}
}

func TestCategoryRepository_ExpensesByCategory(t *testing.T) {
	db := openTestDB(t, filepath.Join(t.TempDir(), "cache.sqlite"))
	seed(t, db)

	rows, err := NewCategoryRepository(db).ExpensesByCategory(context.Background(), 60)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1 (r4 is outside the window)", len(rows))
	}
	if rows[0].Name == nil || *rows[0].Name != "Food" || !rows[0].Amount.Equal(dec("20")) {
		t.Errorf("row = %+v, want Food 20", rows[0])
	}

	rows, err = NewCategoryRepository(db).ExpensesByCategory(context.Background(), 0)
	if err != nil || len(rows) != 2 {
		t.Fatalf("ExpensesByCategory(0) = %v, %v; want 2 rows", rows, err)
	}
}

func TestTagRepository_LinksCascade(t *testing.T) {
	db := openTestDB(t, filepath.Join(t.TempDir(), "cache.sqlite"))
	seed(t, db)
	ctx := context.Background()
	tags := NewTagRepository(db)

	for _, id := range []string{"t1", "t2"} {
		if err := tags.Upsert(ctx, &model.Tag{ID: id, Name: id, CreatedAt: 1}); err != nil {
			t.Fatal(err)
		}
	}
	if err := tags.Link(ctx, "r1", "t2", "t1"); err != nil {
		t.Fatal(err)
	}
	if err := tags.Link(ctx, "r1", "t1"); err != nil {
		t.Fatalf("relinking should be a no-op: %v", err)
	}
	got, err := tags.TagsOf(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"t1", "t2"}, got); diff != "" {
		t.Errorf("TagsOf mismatch (-want +got):\n%s", diff)
	}

	if err := NewRecordRepository(db).ClearAll(ctx); err != nil {
		t.Fatal(err)
	}
	var links int64
	db.Model(&model.RecordTag{}).Count(&links)
	if links != 0 {
		t.Errorf("record_tags has %d rows after clearing records, want 0", links)
	}
}

func TestCache_Transaction_RollsBack(t *testing.T) {
	db := openTestDB(t, filepath.Join(t.TempDir(), "cache.sqlite"))
	cache := NewCache(db)
	ctx := context.Background()

	errBoom := errors.New("boom")
	err := cache.Transaction(ctx, func(tx *gorm.DB) error {
		acc := model.Account{ID: "X", Name: "x", Type: model.AccountCash, Currency: "COP", CreatedAt: 1}
		if err := NewAccountRepository(tx).Insert(ctx, &acc); err != nil {
			return err
		}
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("Transaction() error = %v, want %v", err, errBoom)
	}

	var found *model.Account
	err = cache.Run(ctx, func(db *gorm.DB) error {
		var err error
		found, err = NewAccountRepository(db).FindByID(ctx, "X")
		return err
	})
	if err != nil || found != nil {
		t.Errorf("account X after rollback = %v, %v; want nil", found, err)
	}
}
