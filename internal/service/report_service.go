package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"finance-workspace/internal/workspace"
)

// ReportService builds human-readable summaries for daily notifications.
type ReportService struct {
	ledger     *LedgerService
	store      *workspace.Store
	windowDays int
}

func NewReportService(ledger *LedgerService, store *workspace.Store, windowDays int) *ReportService {
	return &ReportService{ledger: ledger, store: store, windowDays: windowDays}
}

// Summary renders totals, account balances and the expense breakdown as
// Telegram HTML.
func (s *ReportService) Summary(ctx context.Context, now time.Time) (string, error) {
	stats, err := s.ledger.CalculateOverallStats(ctx)
	if err != nil {
		return "", err
	}
	accounts, err := s.ledger.GetAccountsWithBalances(ctx)
	if err != nil {
		return "", err
	}
	expenses, err := s.ledger.GetExpensesByCategory(ctx, s.windowDays)
	if err != nil {
		return "", err
	}
	currency := s.currency()

	var builder strings.Builder
	builder.WriteString("📊 <b>Finance report</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", now.Format("2006-01-02")))

	builder.WriteString(fmt.Sprintf("💰 Balance: <b>%s</b>\n", html.EscapeString(FormatAmount(stats.TotalBalance, currency))))
	builder.WriteString(fmt.Sprintf("⬆️ Income: %s\n", html.EscapeString(FormatAmount(stats.TotalIncome, currency))))
	builder.WriteString(fmt.Sprintf("⬇️ Expense: %s\n", html.EscapeString(FormatAmount(stats.TotalExpense, currency))))

	builder.WriteString("\n🏦 <b>Accounts</b>\n")
	if len(accounts) == 0 {
		builder.WriteString("— no accounts yet\n")
	}
	for _, acc := range accounts {
		builder.WriteString(FormatAccountLine(acc))
	}

	builder.WriteString(fmt.Sprintf("\n🧾 <b>Expenses, last %d days</b>\n", s.windowDays))
	if len(expenses) == 0 {
		builder.WriteString("— no expenses in this period\n")
	}
	for _, e := range expenses {
		builder.WriteString(FormatExpenseLine(e, currency))
	}

	return strings.TrimSpace(builder.String()), nil
}

func (s *ReportService) currency() string {
	if s.store == nil {
		return workspace.DefaultCurrency
	}
	app, err := s.store.LoadApp()
	if err != nil || app.Currency == "" {
		return workspace.DefaultCurrency
	}
	return app.Currency
}

// FormatAccountLine renders one account as an HTML list line.
func FormatAccountLine(acc AccountSummary) string {
	var sb strings.Builder
	icon := "🟢"
	if !acc.IsActive {
		icon = "⚪️"
	} else if acc.Balance.IsNegative() {
		icon = "🔴"
	}
	sb.WriteString(fmt.Sprintf("%s %s: <b>%s</b>", icon,
		html.EscapeString(strings.TrimSpace(acc.Name)),
		html.EscapeString(FormatAmount(acc.Balance, acc.Currency))))
	if acc.CreditLimit.Valid {
		sb.WriteString(fmt.Sprintf(" <i>(limit %s)</i>", html.EscapeString(FormatAmount(acc.CreditLimit.Decimal, acc.Currency))))
	}
	sb.WriteByte('\n')
	return sb.String()
}

// FormatExpenseLine renders one expense slice as an HTML list line.
func FormatExpenseLine(e CategoryPercentage, currency string) string {
	return fmt.Sprintf("• %s: %s (%.1f%%)\n",
		html.EscapeString(e.Name),
		html.EscapeString(FormatAmount(e.Amount, currency)),
		e.Percentage)
}
