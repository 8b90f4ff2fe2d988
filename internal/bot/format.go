package bot

import (
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"finance-workspace/internal/apperr"
	"finance-workspace/internal/model"
	"finance-workspace/internal/service"
)

var errBadNumber = errors.New("not a valid number")

func escape(s string) string {
	return html.EscapeString(s)
}

// parsePage reads the optional /records argument; empty means the first page.
func parsePage(args string) (int, error) {
	args = strings.TrimSpace(args)
	if args == "" {
		return 1, nil
	}
	page, err := strconv.Atoi(args)
	if err != nil || page < 1 {
		return 0, errBadNumber
	}
	return page, nil
}

// parseDays reads the optional /expenses argument; empty means fallback.
func parseDays(args string, fallback int) (int, error) {
	args = strings.TrimSpace(args)
	if args == "" {
		return fallback, nil
	}
	days, err := strconv.Atoi(args)
	if err != nil || days < 0 || days > maxExpenseWindowDays {
		return 0, errBadNumber
	}
	return days, nil
}

func parseKind(text string) (model.AccountType, bool) {
	kind := model.AccountType(strings.ToLower(strings.TrimSpace(text)))
	return kind, kind.Valid()
}

func parseCurrency(text string) (string, bool) {
	code := strings.ToUpper(strings.TrimSpace(text))
	if code == "" || money.GetCurrency(code) == nil {
		return "", false
	}
	return code, true
}

// parseAmount accepts "1250.75", "1250,75" and "1 250.75".
func parseAmount(text string) (decimal.Decimal, error) {
	clean := strings.ReplaceAll(strings.TrimSpace(text), " ", "")
	if strings.Count(clean, ",") == 1 && !strings.Contains(clean, ".") {
		clean = strings.Replace(clean, ",", ".", 1)
	}
	amount, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, errBadNumber
	}
	return amount, nil
}

func isSkipInput(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	return lower == strings.ToLower(btnSkip) || lower == "skip" || lower == "-"
}

func isCancelDialogInput(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), btnCancelDialog)
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

// describeError turns a typed error into a chat reply.
func describeError(err error) string {
	var icon string
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		icon = "🔍"
	case apperr.KindInvalid, apperr.KindAlreadyExists:
		icon = "⚠️"
	default:
		icon = "❌"
	}
	return fmt.Sprintf("%s %s", icon, escape(err.Error()))
}

func formatStats(stats service.DashboardStats, currency string) string {
	var builder strings.Builder
	builder.WriteString("📊 <b>Overview</b>\n")
	builder.WriteString(fmt.Sprintf("💰 Balance: <b>%s</b>\n", escape(service.FormatAmount(stats.TotalBalance, currency))))
	builder.WriteString(fmt.Sprintf("⬆️ Income: %s\n", escape(service.FormatAmount(stats.TotalIncome, currency))))
	builder.WriteString(fmt.Sprintf("⬇️ Expense: %s", escape(service.FormatAmount(stats.TotalExpense, currency))))
	return builder.String()
}

func recordIcon(t model.RecordType) string {
	switch t {
	case model.RecordIncome:
		return "⬆️"
	case model.RecordExpense:
		return "⬇️"
	default:
		return "🔁"
	}
}

// formatRecordLine renders a record as "icon date · amount · account → to · category".
func formatRecordLine(rec service.RecordView, loc *time.Location) string {
	var sb strings.Builder
	date := time.Unix(rec.Timestamp, 0).In(loc).Format("2006-01-02")
	sb.WriteString(fmt.Sprintf("%s %s · <b>%s</b> · %s", recordIcon(rec.Type), date,
		escape(service.FormatAmount(rec.Amount, rec.Currency)),
		escape(rec.Account.Name)))
	if rec.ToAccount != nil {
		sb.WriteString(" → " + escape(rec.ToAccount.Name))
	}
	if rec.Category != nil {
		sb.WriteString(" · " + escape(rec.Category.Name))
	}
	sb.WriteByte('\n')
	if rec.Description != nil && strings.TrimSpace(*rec.Description) != "" {
		sb.WriteString(fmt.Sprintf("   <i>%s</i>\n", escape(shortTitle(*rec.Description, 60))))
	}
	return sb.String()
}

func formatCategories(categories []model.Category) string {
	var builder strings.Builder
	builder.WriteString("📂 <b>Categories</b>")
	var current model.CategoryType
	for _, cat := range categories {
		if cat.Type != current {
			current = cat.Type
			builder.WriteString(fmt.Sprintf("\n<b>%s</b>\n", escape(sectionTitle(string(cat.Type)))))
		}
		line := fmt.Sprintf("%s %s", cat.Icon, escape(cat.Name))
		if !cat.IsActive {
			line += " <i>(inactive)</i>"
		}
		builder.WriteString("• " + strings.TrimSpace(line) + "\n")
	}
	return strings.TrimSpace(builder.String())
}

func sectionTitle(s string) string {
	if s == "" {
		return "Other"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func formatReindexReport(indexed, skipped int, took time.Duration) string {
	text := fmt.Sprintf("🔄 Reindexed %d records in %s.", indexed, took.Round(time.Millisecond))
	if skipped > 0 {
		text += fmt.Sprintf("\n⚠️ %d files were skipped, see the logs.", skipped)
	}
	return text
}

func confirmKeyboard(accountID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(btnConfirm, cbConfirmPrefix+accountID),
			tgbotapi.NewInlineKeyboardButtonData(btnCancel, cbCancelPrefix+accountID),
		),
	)
}

// pageKeyboard returns previous/next buttons, or false when there is one page.
func pageKeyboard(page int, total int64) (tgbotapi.InlineKeyboardMarkup, bool) {
	var row []tgbotapi.InlineKeyboardButton
	if page > 1 {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("◀️ Newer", fmt.Sprintf("%s%d", cbPagePrefix, page-1)))
	}
	if int64(page) < total {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("Older ▶️", fmt.Sprintf("%s%d", cbPagePrefix, page+1)))
	}
	if len(row) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	return tgbotapi.NewInlineKeyboardMarkup(row), true
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelStats),
			tgbotapi.NewKeyboardButton(menuLabelAccounts),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelRecords),
			tgbotapi.NewKeyboardButton(menuLabelExpenses),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelNewAccount),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSkip),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func kindKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(string(model.AccountCash)),
			tgbotapi.NewKeyboardButton(string(model.AccountDebit)),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(string(model.AccountCredit)),
			tgbotapi.NewKeyboardButton(string(model.AccountOther)),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}
