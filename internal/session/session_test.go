package session

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"finance-workspace/internal/apperr"
	"finance-workspace/internal/testutil"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(filepath.Join(t.TempDir(), "appdata"), zerolog.Nop())
	t.Cleanup(func() { m.Close() })
	return m
}

func TestInitFullWorkspace(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "Personal")

	if err := m.InitFullWorkspace(ctx, root); err != nil {
		t.Fatalf("InitFullWorkspace() error = %v", err)
	}

	sess, err := m.Current()
	if err != nil {
		t.Fatal(err)
	}
	if sess.Root != root || sess.Name != "Personal" {
		t.Errorf("session = %s (%s)", sess.Root, sess.Name)
	}
	if _, err := os.Stat(sess.Paths.CacheFile()); err != nil {
		t.Errorf("cache file missing: %v", err)
	}
	wantCache := filepath.Join(m.appData, "workspaces", "Personal", "cache", "cache.sqlite")
	if sess.Paths.CacheFile() != wantCache {
		t.Errorf("cache file = %s, want %s", sess.Paths.CacheFile(), wantCache)
	}

	accounts, err := sess.Ledger.GetAccountsWithBalances(ctx)
	if err != nil || len(accounts) != 1 || accounts[0].ID != "acc_cash" {
		t.Errorf("accounts = %+v, %v; want the default cash account", accounts, err)
	}

	got, err := m.Context()
	if err != nil {
		t.Fatal(err)
	}
	want := WorkspaceContext{Name: "Personal", Path: root, Currency: "COP", Theme: "system"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("context mismatch (-want +got):\n%s", diff)
	}
}

func TestInitFullWorkspace_AlreadyExists(t *testing.T) {
	m := newManager(t)
	err := m.InitFullWorkspace(context.Background(), t.TempDir())
	if !apperr.Is(err, apperr.KindAlreadyExists) {
		t.Fatalf("error = %v, want AlreadyExists", err)
	}
	if _, err := m.Current(); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("Current() error = %v, want NotFound", err)
	}
}

func TestInitFullWorkspace_RollsBackOnLocalStorageFailure(t *testing.T) {
	dir := t.TempDir()
	appData := filepath.Join(dir, "appdata")
	if err := os.WriteFile(appData, []byte("not a directory"), 0o644); err != nil {
		t.Fatal(err)
	}
	m := NewManager(appData, zerolog.Nop())
	root := filepath.Join(dir, "ws")

	err := m.InitFullWorkspace(context.Background(), root)
	if !apperr.Is(err, apperr.KindIO) {
		t.Fatalf("error = %v, want IO", err)
	}
	if _, err := os.Stat(root); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("workspace %s should be removed, stat err = %v", root, err)
	}
}

func TestOpenAndReindex_RejectsNonWorkspace(t *testing.T) {
	m := newManager(t)
	err := m.OpenAndReindex(context.Background(), t.TempDir())
	if !apperr.Is(err, apperr.KindIO) {
		t.Fatalf("error = %v, want IO", err)
	}
}

func TestOpenAndReindex_SwitchClosesPrevious(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()
	first := testutil.NewNamedWorkspace(t, "first")
	second := testutil.NewNamedWorkspace(t, "second").
		SetAccounts(testutil.Account("A", 0, 1)).
		AddRecords(testutil.Income("r1", "A", 10, 1))

	if err := m.OpenAndReindex(ctx, first.Root); err != nil {
		t.Fatal(err)
	}
	old, _ := m.Current()

	if err := m.OpenAndReindex(ctx, second.Root); err != nil {
		t.Fatal(err)
	}
	cur, _ := m.Current()
	if cur == old || cur.Root != second.Root {
		t.Fatalf("current session = %s, want %s", cur.Root, second.Root)
	}
	stats, err := cur.Ledger.CalculateOverallStats(ctx)
	if err != nil || stats.TotalIncome.IntPart() != 10 {
		t.Errorf("stats = %+v, %v; want income 10", stats, err)
	}

	err = old.Cache.Run(ctx, func(db *gorm.DB) error { return db.Exec("SELECT 1").Error })
	if err == nil {
		t.Error("previous session cache should be closed")
	}
}

func TestReindex_PicksUpExternalChanges(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()
	ws := testutil.NewWorkspace(t)
	if err := m.OpenAndReindex(ctx, ws.Root); err != nil {
		t.Fatal(err)
	}

	ws.AddRecords(testutil.Expense("e1", "acc_cash", 7, 1, "cat_food"))
	report, err := m.Reindex(ctx)
	if err != nil || report.Indexed != 1 {
		t.Fatalf("Reindex() = %+v, %v; want 1 indexed", report, err)
	}
	sess, _ := m.Current()
	stats, _ := sess.Ledger.CalculateOverallStats(ctx)
	if stats.TotalExpense.IntPart() != 7 {
		t.Errorf("total expense = %v, want 7", stats.TotalExpense)
	}
}

func TestOpenLast(t *testing.T) {
	appData := filepath.Join(t.TempDir(), "appdata")
	ctx := context.Background()
	ws := testutil.NewWorkspace(t)

	m := NewManager(appData, zerolog.Nop())
	if err := m.OpenLast(ctx); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("OpenLast() on fresh app data error = %v, want NotFound", err)
	}
	if err := m.OpenAndReindex(ctx, ws.Root); err != nil {
		t.Fatal(err)
	}
	m.Close()

	again := NewManager(appData, zerolog.Nop())
	t.Cleanup(func() { again.Close() })
	if err := again.OpenLast(ctx); err != nil {
		t.Fatalf("OpenLast() error = %v", err)
	}
	sess, _ := again.Current()
	if sess.Root != ws.Root {
		t.Errorf("reopened %s, want %s", sess.Root, ws.Root)
	}
}

func TestPruneTemp(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	old := filepath.Join(dir, "old.tmp")
	fresh := filepath.Join(dir, "fresh.tmp")
	for _, p := range []string{old, fresh} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	stale := now.Add(-48 * time.Hour)
	if err := os.Chtimes(old, stale, stale); err != nil {
		t.Fatal(err)
	}

	n, err := PruneTemp(dir, 24*time.Hour, now)
	if err != nil || n != 1 {
		t.Fatalf("PruneTemp() = %d, %v; want 1", n, err)
	}
	if _, err := os.Stat(old); !errors.Is(err, fs.ErrNotExist) {
		t.Error("old file kept")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh file removed")
	}

	if n, err := PruneTemp(filepath.Join(dir, "missing"), time.Hour, now); err != nil || n != 0 {
		t.Errorf("PruneTemp(missing) = %d, %v", n, err)
	}
}
