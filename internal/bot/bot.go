package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"finance-workspace/internal/apperr"
	"finance-workspace/internal/config"
	"finance-workspace/internal/model"
	"finance-workspace/internal/service"
	"finance-workspace/internal/session"
	"finance-workspace/internal/workspace"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageName
	stageKind
	stageCurrency
	stageBalance
	stageCreditLimit
)

const (
	cbDeletePrefix  = "delete:"
	cbConfirmPrefix = "confirm:"
	cbCancelPrefix  = "cancel:"
	cbPagePrefix    = "page:"
)

const (
	btnSkip               = "⏭️ Skip"
	btnConfirm            = "✅ Delete"
	btnCancel             = "↩️ Keep"
	btnCancelDialog       = "⏪ Cancel input"
	menuLabelStats        = "📊 Stats"
	menuLabelAccounts     = "🏦 Accounts"
	menuLabelRecords      = "🧾 Records"
	menuLabelExpenses     = "🥧 Expenses"
	menuLabelNewAccount   = "➕ New account"
	menuLabelHelp         = "ℹ️ Help"
	recordsPageSize       = 10
	maxExpenseWindowDays  = 3650
	defaultAccountPreview = 24
)

type conversationState struct {
	stage conversationStage
	input service.AccountInput
}

// Bot serves the open workspace over Telegram.
type Bot struct {
	api           *tgbotapi.BotAPI
	sessions      *session.Manager
	config        *config.Config
	log           zerolog.Logger
	loc           *time.Location
	conversations map[int64]*conversationState
	confirmations map[int64]string
	subscribers   map[int64]struct{}
	mu            sync.Mutex
}

func New(cfg *config.Config, sessions *session.Manager, loc *time.Location, log zerolog.Logger) (*Bot, error) {
	if err := cfg.RequireTelegram(); err != nil {
		return nil, err
	}
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log = log.With().Str("component", "bot").Logger()
	log.Info().Str("account", api.Self.UserName).Msg("bot authorized")

	return &Bot{
		api:           api,
		sessions:      sessions,
		config:        cfg,
		log:           log,
		loc:           loc,
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]string),
		subscribers:   make(map[int64]struct{}),
	}, nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info().Msg("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				b.log.Error().Err(err).Msg("handle callback")
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				b.log.Error().Err(err).Msg("handle message")
			}
		}
	}

	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}
	if !b.config.Allowed(msg.From.ID) {
		b.log.Warn().Int64("user", msg.From.ID).Msg("rejected user outside the allow-list")
		return b.sendText(msg.Chat.ID, "⛔ This bot is private.")
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		b.log.Info().Int64("user", msg.From.ID).Str("command", msg.Command()).Str("args", msg.CommandArguments()).Msg("command")
		return b.handleCommand(ctx, msg)
	}

	if b.hasConversation(msg.From.ID) {
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(msg.Chat.ID, "I did not get that. Try /help for the list of commands.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(msg)
	case "help":
		return b.handleHelp(msg)
	case "stats":
		return b.handleStats(ctx, msg.Chat.ID)
	case "accounts":
		return b.handleAccounts(ctx, msg.Chat.ID)
	case "records":
		page, err := parsePage(msg.CommandArguments())
		if err != nil {
			return b.sendText(msg.Chat.ID, "Page must be a positive number, e.g. /records 2")
		}
		return b.sendRecordsPage(ctx, msg.Chat.ID, page)
	case "expenses":
		return b.handleExpenses(ctx, msg)
	case "categories":
		return b.handleCategories(ctx, msg.Chat.ID)
	case "newaccount":
		return b.startNewAccountConversation(msg)
	case "delete":
		return b.handleDelete(ctx, msg)
	case "reindex":
		return b.handleReindex(ctx, msg.Chat.ID)
	case "cancel":
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleStart(msg *tgbotapi.Message) error {
	b.subscribe(msg.Chat.ID)

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}

	text := fmt.Sprintf(
		"👋 Hi, %s!\n<b>I keep an eye on your finance workspace.</b>\n"+
			"You will get a daily report here.\n\n"+helpText,
		escape(name),
	)
	return b.sendText(msg.Chat.ID, text)
}

const helpText = "Commands:\n" +
	"• /stats — balance, income and expense\n" +
	"• /accounts — accounts with balances\n" +
	"• /records [page] — latest records\n" +
	"• /expenses [days] — expenses by category\n" +
	"• /categories — category list\n" +
	"• /newaccount — add an account step by step\n" +
	"• /delete &lt;account-id&gt; — delete an unused account\n" +
	"• /reindex — rebuild the cache from the workspace files\n" +
	"• /cancel — cancel the current input"

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	return b.sendText(msg.Chat.ID, "ℹ️ <b>Help</b>\n"+helpText)
}

func (b *Bot) handleStats(ctx context.Context, chatID int64) error {
	sess, err := b.sessions.Current()
	if err != nil {
		return b.sendError(chatID, err)
	}
	stats, err := sess.Ledger.CalculateOverallStats(ctx)
	if err != nil {
		return b.sendError(chatID, err)
	}
	return b.sendText(chatID, formatStats(stats, b.currency(sess)))
}

func (b *Bot) handleAccounts(ctx context.Context, chatID int64) error {
	sess, err := b.sessions.Current()
	if err != nil {
		return b.sendError(chatID, err)
	}
	accounts, err := sess.Ledger.GetAccountsWithBalances(ctx)
	if err != nil {
		return b.sendError(chatID, err)
	}
	if len(accounts) == 0 {
		return b.sendText(chatID, "No accounts yet. Add one with /newaccount.")
	}

	var builder strings.Builder
	builder.WriteString("🏦 <b>Accounts</b>\n")
	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, acc := range accounts {
		builder.WriteString(service.FormatAccountLine(acc))
		builder.WriteString(fmt.Sprintf("   <code>%s</code>\n", escape(acc.ID)))
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 "+shortTitle(acc.Name, defaultAccountPreview), cbDeletePrefix+acc.ID),
		))
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	_, err = b.api.Send(msg)
	return err
}

func (b *Bot) sendRecordsPage(ctx context.Context, chatID int64, page int) error {
	sess, err := b.sessions.Current()
	if err != nil {
		return b.sendError(chatID, err)
	}
	result, err := sess.Ledger.GetPaginatedRecords(ctx, page, recordsPageSize)
	if err != nil {
		return b.sendError(chatID, err)
	}
	if result.TotalItems == 0 {
		return b.sendText(chatID, "No records yet.")
	}
	if len(result.Items) == 0 {
		return b.sendText(chatID, fmt.Sprintf("Page %d is empty, there are %d pages.", page, result.TotalPages))
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("🧾 <b>Records</b> · page %d of %d\n\n", result.CurrentPage, result.TotalPages))
	for _, rec := range result.Items {
		builder.WriteString(formatRecordLine(rec, b.loc))
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	msg.ParseMode = tgbotapi.ModeHTML
	if kb, ok := pageKeyboard(result.CurrentPage, result.TotalPages); ok {
		msg.ReplyMarkup = kb
	}
	_, err = b.api.Send(msg)
	return err
}

func (b *Bot) handleExpenses(ctx context.Context, msg *tgbotapi.Message) error {
	days, err := parseDays(msg.CommandArguments(), b.config.ExpenseWindowDays)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Days must be a number from 0 to %d, e.g. /expenses 7", maxExpenseWindowDays))
	}
	sess, err := b.sessions.Current()
	if err != nil {
		return b.sendError(msg.Chat.ID, err)
	}
	expenses, err := sess.Ledger.GetExpensesByCategory(ctx, days)
	if err != nil {
		return b.sendError(msg.Chat.ID, err)
	}
	if len(expenses) == 0 {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("No expenses in the last %d days.", days))
	}

	currency := b.currency(sess)
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("🥧 <b>Expenses, last %d days</b>\n", days))
	for _, e := range expenses {
		builder.WriteString(service.FormatExpenseLine(e, currency))
	}
	return b.sendText(msg.Chat.ID, strings.TrimSpace(builder.String()))
}

func (b *Bot) handleCategories(ctx context.Context, chatID int64) error {
	sess, err := b.sessions.Current()
	if err != nil {
		return b.sendError(chatID, err)
	}
	categories, err := sess.Ledger.ListCategories(ctx)
	if err != nil {
		return b.sendError(chatID, err)
	}
	if len(categories) == 0 {
		return b.sendText(chatID, "No categories in this workspace.")
	}
	return b.sendText(chatID, formatCategories(categories))
}

func (b *Bot) handleReindex(ctx context.Context, chatID int64) error {
	report, err := b.sessions.Reindex(ctx)
	if err != nil {
		return b.sendError(chatID, err)
	}
	return b.sendText(chatID, formatReindexReport(report.Indexed, len(report.Skipped), report.Duration))
}

func (b *Bot) startNewAccountConversation(msg *tgbotapi.Message) error {
	if _, err := b.sessions.Current(); err != nil {
		return b.sendError(msg.Chat.ID, err)
	}
	b.log.Info().Int64("user", msg.From.ID).Msg("start new account conversation")
	b.setConversation(msg.From.ID, &conversationState{stage: stageName})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 New account.\n<b>Step 1:</b> what is it called?", cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageName:
		if text == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "The name cannot be empty.", cancelKeyboard())
		}
		state.input.Name = text
		state.stage = stageKind
		return b.sendWithReplyMarkup(msg.Chat.ID, "<b>Step 2:</b> pick the account kind.", kindKeyboard())
	case stageKind:
		kind, ok := parseKind(text)
		if !ok {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Pick one of the buttons: cash, debit, credit or other.", kindKeyboard())
		}
		state.input.Type = kind
		state.stage = stageCurrency
		return b.sendWithReplyMarkup(msg.Chat.ID, "<b>Step 3:</b> currency code, e.g. <code>USD</code> (or «Skip» for the workspace currency).", skipKeyboard())
	case stageCurrency:
		if !isSkipInput(text) {
			code, ok := parseCurrency(text)
			if !ok {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Unknown currency. Use an ISO code like <code>EUR</code> or «Skip».", skipKeyboard())
			}
			state.input.Currency = code
		}
		state.stage = stageBalance
		return b.sendWithReplyMarkup(msg.Chat.ID, "<b>Step 4:</b> initial balance, e.g. <code>150000</code> or <code>-20.5</code> (or «Skip» for zero).", skipKeyboard())
	case stageBalance:
		if !isSkipInput(text) {
			amount, err := parseAmount(text)
			if err != nil {
				return b.sendWithReplyMarkup(msg.Chat.ID, "That is not a number. Try <code>1250.75</code>.", skipKeyboard())
			}
			state.input.InitialBalance = amount
		}
		if state.input.Type == model.AccountCredit {
			state.stage = stageCreditLimit
			return b.sendWithReplyMarkup(msg.Chat.ID, "<b>Step 5:</b> credit limit (or «Skip»).", skipKeyboard())
		}
		err := b.finishAccountCreation(ctx, msg.Chat.ID, state.input)
		b.clearConversation(msg.From.ID)
		return err
	case stageCreditLimit:
		if !isSkipInput(text) {
			limit, err := parseAmount(text)
			if err != nil || limit.IsNegative() {
				return b.sendWithReplyMarkup(msg.Chat.ID, "The limit must be a non-negative number.", skipKeyboard())
			}
			state.input.CreditLimit = &limit
		}
		err := b.finishAccountCreation(ctx, msg.Chat.ID, state.input)
		b.clearConversation(msg.From.ID)
		return err
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Input reset. Start again with /newaccount.")
	}
}

func (b *Bot) finishAccountCreation(ctx context.Context, chatID int64, input service.AccountInput) error {
	sess, err := b.sessions.Current()
	if err != nil {
		return b.sendError(chatID, err)
	}
	id, err := sess.Accounts.CreateAccount(ctx, input)
	if err != nil {
		return b.sendError(chatID, err)
	}

	b.log.Info().Str("account", id).Str("type", string(input.Type)).Msg("account created")

	currency := input.Currency
	if currency == "" {
		currency = b.currency(sess)
	}
	var summary strings.Builder
	summary.WriteString("✅ <b>Account saved</b>\n")
	summary.WriteString(fmt.Sprintf("• <b>ID:</b> <code>%s</code>\n", escape(id)))
	summary.WriteString(fmt.Sprintf("• <b>Name:</b> %s\n", escape(input.Name)))
	summary.WriteString(fmt.Sprintf("• <b>Kind:</b> %s\n", input.Type))
	summary.WriteString(fmt.Sprintf("• <b>Initial balance:</b> %s\n", escape(service.FormatAmount(input.InitialBalance, currency))))
	if input.CreditLimit != nil {
		summary.WriteString(fmt.Sprintf("• <b>Credit limit:</b> %s\n", escape(service.FormatAmount(*input.CreditLimit, currency))))
	}
	return b.sendText(chatID, strings.TrimSpace(summary.String()))
}

func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) error {
	id := strings.TrimSpace(msg.CommandArguments())
	if id == "" {
		return b.sendText(msg.Chat.ID, "Give the account id: /delete acc_cash")
	}
	return b.askDeleteConfirmation(ctx, msg.Chat.ID, msg.From.ID, id)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.Warn().Err(err).Msg("callback ack")
	}
	if !b.config.Allowed(cb.From.ID) {
		return nil
	}

	data := cb.Data
	chatID := cb.Message.Chat.ID
	b.log.Info().Int64("user", cb.From.ID).Str("data", data).Msg("callback")

	switch {
	case strings.HasPrefix(data, cbDeletePrefix):
		return b.askDeleteConfirmation(ctx, chatID, cb.From.ID, strings.TrimPrefix(data, cbDeletePrefix))
	case strings.HasPrefix(data, cbConfirmPrefix):
		id := strings.TrimPrefix(data, cbConfirmPrefix)
		if !b.takeConfirmation(cb.From.ID, id) {
			return b.sendText(chatID, "This confirmation has expired. Run /delete again.")
		}
		return b.deleteAccount(ctx, chatID, id)
	case strings.HasPrefix(data, cbCancelPrefix):
		b.clearConfirmation(cb.From.ID)
		return b.sendText(chatID, "↩️ Nothing was deleted.")
	case strings.HasPrefix(data, cbPagePrefix):
		page, err := parsePage(strings.TrimPrefix(data, cbPagePrefix))
		if err != nil {
			return nil
		}
		return b.sendRecordsPage(ctx, chatID, page)
	default:
		return nil
	}
}

func (b *Bot) askDeleteConfirmation(ctx context.Context, chatID, userID int64, id string) error {
	sess, err := b.sessions.Current()
	if err != nil {
		return b.sendError(chatID, err)
	}
	accounts, err := sess.Ledger.GetAccountsWithBalances(ctx)
	if err != nil {
		return b.sendError(chatID, err)
	}
	name := ""
	for _, acc := range accounts {
		if acc.ID == id {
			name = acc.Name
			break
		}
	}
	if name == "" {
		return b.sendText(chatID, fmt.Sprintf("🔍 Account <code>%s</code> not found.", escape(id)))
	}

	b.setConfirmation(userID, id)
	text := fmt.Sprintf("Delete account «%s» (<code>%s</code>)?\nAccounts that still have records are kept.", escape(name), escape(id))
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard(id))
}

func (b *Bot) deleteAccount(ctx context.Context, chatID int64, id string) error {
	sess, err := b.sessions.Current()
	if err != nil {
		return b.sendError(chatID, err)
	}
	deleted, err := sess.Accounts.DeleteAccountIfUnreferenced(ctx, id)
	if err != nil {
		return b.sendError(chatID, err)
	}
	if !deleted {
		return b.sendText(chatID, "🔒 The account still has records, so it was kept.")
	}
	b.log.Info().Str("account", id).Msg("account deleted")
	return b.sendText(chatID, fmt.Sprintf("🗑 Account <code>%s</code> deleted.", escape(id)))
}

// SendDailyReports sends the workspace summary to every chat that ran /start.
func (b *Bot) SendDailyReports(ctx context.Context) error {
	chats := b.subscriberIDs()
	if len(chats) == 0 {
		return nil
	}
	sess, err := b.sessions.Current()
	if err != nil {
		return err
	}
	text, err := service.NewReportService(sess.Ledger, sess.Store, b.config.ExpenseWindowDays).Summary(ctx, time.Now().In(b.loc))
	if err != nil {
		return err
	}
	for _, chatID := range chats {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := b.sendText(chatID, text); err != nil {
			b.log.Error().Err(err).Int64("chat", chatID).Msg("send daily report")
		}
	}
	return nil
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelStats):
		return true, b.handleStats(ctx, msg.Chat.ID)
	case strings.ToLower(menuLabelAccounts):
		return true, b.handleAccounts(ctx, msg.Chat.ID)
	case strings.ToLower(menuLabelRecords):
		return true, b.sendRecordsPage(ctx, msg.Chat.ID, 1)
	case strings.ToLower(menuLabelExpenses):
		return true, b.handleExpenses(ctx, msg)
	case strings.ToLower(menuLabelNewAccount):
		return true, b.startNewAccountConversation(msg)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

func (b *Bot) currency(sess *session.Session) string {
	app, err := sess.Store.LoadApp()
	if err != nil || app.Currency == "" {
		return workspace.DefaultCurrency
	}
	return app.Currency
}

func (b *Bot) sendError(chatID int64, err error) error {
	if apperr.KindOf(err) == apperr.KindDatabase || apperr.KindOf(err) == apperr.KindIO {
		b.log.Error().Err(err).Int64("chat", chatID).Msg("request failed")
	}
	return b.sendText(chatID, describeError(err))
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) subscribe(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[chatID] = struct{}{}
}

func (b *Bot) subscriberIDs() []int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]int64, 0, len(b.subscribers))
	for id := range b.subscribers {
		ids = append(ids, id)
	}
	return ids
}

func (b *Bot) setConfirmation(userID int64, accountID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[userID] = accountID
}

// takeConfirmation consumes the pending deletion if it targets accountID.
func (b *Bot) takeConfirmation(userID int64, accountID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	pending, ok := b.confirmations[userID]
	if !ok || pending != accountID {
		return false
	}
	delete(b.confirmations, userID)
	return true
}

func (b *Bot) clearConfirmation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, userID)
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) hasConversation(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conversations[userID]
	return ok
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}
