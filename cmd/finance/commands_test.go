package main

import (
	"flag"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"finance-workspace/internal/model"
	"finance-workspace/internal/service"
)

func TestAccountUpdateOnlySetFlags(t *testing.T) {
	c := &accountUpdateCmd{}
	f := flag.NewFlagSet("account-update", flag.ContinueOnError)
	c.SetFlags(f)
	if err := f.Parse([]string{"-id", "acc_1", "-name", "Wallet", "-limit", "500", "-active=false"}); err != nil {
		t.Fatal(err)
	}

	got, err := c.update(setFlags(f))
	if err != nil {
		t.Fatalf("update() error = %v", err)
	}
	if got.ID != "acc_1" || got.Name == nil || *got.Name != "Wallet" {
		t.Errorf("id/name = %q/%v", got.ID, got.Name)
	}
	if got.Type != nil || got.Currency != nil || got.InitialBalance != nil {
		t.Errorf("unset flags leaked into the update: %+v", got)
	}
	if got.CreditLimit == nil || !got.CreditLimit.Equal(decimal.NewFromInt(500)) {
		t.Errorf("CreditLimit = %v, want 500", got.CreditLimit)
	}
	if got.IsActive == nil || *got.IsActive {
		t.Errorf("IsActive = %v, want false", got.IsActive)
	}
}

func TestAccountUpdateClearLimit(t *testing.T) {
	c := &accountUpdateCmd{}
	f := flag.NewFlagSet("account-update", flag.ContinueOnError)
	c.SetFlags(f)
	if err := f.Parse([]string{"-id", "acc_1", "-clear-limit"}); err != nil {
		t.Fatal(err)
	}

	got, err := c.update(setFlags(f))
	if err != nil {
		t.Fatalf("update() error = %v", err)
	}
	if !got.ClearCreditLimit || got.CreditLimit != nil {
		t.Errorf("ClearCreditLimit = %v, CreditLimit = %v; want true, nil", got.ClearCreditLimit, got.CreditLimit)
	}
}

func TestAccountUpdateRejectsBadBalance(t *testing.T) {
	c := &accountUpdateCmd{}
	f := flag.NewFlagSet("account-update", flag.ContinueOnError)
	c.SetFlags(f)
	if err := f.Parse([]string{"-id", "acc_1", "-balance", "lots"}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.update(setFlags(f)); err == nil {
		t.Fatal("expected an error for a non-numeric balance")
	}
}

func TestRecordAddInput(t *testing.T) {
	c := &recordAddCmd{}
	f := flag.NewFlagSet("record-add", flag.ContinueOnError)
	c.SetFlags(f)
	args := []string{"-amount", "12.50", "-account", "acc_cash", "-category", "cat_food",
		"-date", "2024-03-05", "-tags", " trip, ,work"}
	if err := f.Parse(args); err != nil {
		t.Fatal(err)
	}

	got, err := c.input()
	if err != nil {
		t.Fatalf("input() error = %v", err)
	}
	want := service.RecordInput{
		Type:       model.RecordExpense,
		Amount:     decimal.RequireFromString("12.50"),
		AccountID:  "acc_cash",
		CategoryID: "cat_food",
		Timestamp:  time.Date(2024, 3, 5, 0, 0, 0, 0, time.Local),
		Tags:       []string{"trip", "work"},
	}
	opts := cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })
	if diff := cmp.Diff(want, got, opts); diff != "" {
		t.Errorf("input mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordAddInputErrors(t *testing.T) {
	tests := []struct {
		name string
		cmd  recordAddCmd
	}{
		{"missing amount", recordAddCmd{kind: "expense"}},
		{"bad date", recordAddCmd{kind: "expense", amount: "1", date: "05/03/2024"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.cmd.input(); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
