package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"finance-workspace/internal/config"
	"finance-workspace/internal/logger"
	"finance-workspace/internal/model"
	"finance-workspace/internal/service"
	"finance-workspace/internal/session"
	"finance-workspace/internal/workspace"
)

// app is handed to every subcommand through Execute's variadic args.
type app struct {
	cfg      config.Config
	sessions *session.Manager
}

func appFrom(args []interface{}) *app {
	return args[0].(*app)
}

// current opens the configured workspace, or the last one, and returns it.
func (a *app) current(ctx context.Context) (*session.Session, error) {
	var err error
	if a.cfg.Workspace != "" {
		err = a.sessions.OpenAndReindex(ctx, a.cfg.Workspace)
	} else {
		err = a.sessions.OpenLast(ctx)
	}
	if err != nil {
		return nil, err
	}
	return a.sessions.Current()
}

func (a *app) currency(sess *session.Session) string {
	doc, err := sess.Store.LoadApp()
	if err != nil || doc.Currency == "" {
		return workspace.DefaultCurrency
	}
	return doc.Currency
}

func fail(ctx context.Context, msg string, err error) subcommands.ExitStatus {
	log := logger.FromContext(ctx)
	log.Error().Err(err).Msg(msg)
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	return subcommands.ExitFailure
}

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
}

type initCmd struct{}

func (*initCmd) Name() string     { return "init" }
func (*initCmd) Synopsis() string { return "create a new workspace and open it" }
func (*initCmd) Usage() string {
	return `finance init <path>

  Creates the workspace directory with default categories and a cash
  account, builds its cache and makes it the last opened workspace.
  The directory must not exist yet.
`
}
func (*initCmd) SetFlags(*flag.FlagSet) {}

func (*initCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return subcommands.ExitUsageError
	}
	a := appFrom(args)
	if err := a.sessions.InitFullWorkspace(ctx, f.Arg(0)); err != nil {
		return fail(ctx, "init workspace", err)
	}
	sess, _ := a.sessions.Current()
	fmt.Printf("Workspace %q created at %s\n", sess.Name, sess.Root)
	return subcommands.ExitSuccess
}

type openCmd struct{}

func (*openCmd) Name() string     { return "open" }
func (*openCmd) Synopsis() string { return "open an existing workspace and rebuild its cache" }
func (*openCmd) Usage() string {
	return `finance open <path>

  Rebuilds the cache of the workspace at path from its files and remembers
  it as the last opened workspace.
`
}
func (*openCmd) SetFlags(*flag.FlagSet) {}

func (*openCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return subcommands.ExitUsageError
	}
	a := appFrom(args)
	if err := a.sessions.OpenAndReindex(ctx, f.Arg(0)); err != nil {
		return fail(ctx, "open workspace", err)
	}
	sess, _ := a.sessions.Current()
	fmt.Printf("Workspace %q opened\n", sess.Name)
	return subcommands.ExitSuccess
}

type reindexCmd struct{}

func (*reindexCmd) Name() string     { return "reindex" }
func (*reindexCmd) Synopsis() string { return "rebuild the cache and list skipped files" }
func (*reindexCmd) Usage() string {
	return `finance reindex

  Rebuilds the cache of the current workspace from its files.
`
}
func (*reindexCmd) SetFlags(*flag.FlagSet) {}

func (*reindexCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a := appFrom(args)
	if _, err := a.current(ctx); err != nil {
		return fail(ctx, "open workspace", err)
	}
	report, err := a.sessions.Reindex(ctx)
	if err != nil {
		return fail(ctx, "reindex", err)
	}
	fmt.Printf("Indexed %d records in %s\n", report.Indexed, report.Duration.Round(time.Millisecond))
	for _, s := range report.Skipped {
		fmt.Printf("  skipped %s: %s\n", s.Path, s.Reason)
	}
	return subcommands.ExitSuccess
}

type contextCmd struct{}

func (*contextCmd) Name() string     { return "context" }
func (*contextCmd) Synopsis() string { return "show the last opened workspace" }
func (*contextCmd) Usage() string {
	return `finance context

  Prints the name, path, currency and theme of the last opened workspace
  without touching its cache.
`
}
func (*contextCmd) SetFlags(*flag.FlagSet) {}

func (*contextCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	wc, err := appFrom(args).sessions.Context()
	if err != nil {
		return fail(ctx, "workspace context", err)
	}
	w := newTable()
	fmt.Fprintf(w, "name\t%s\n", wc.Name)
	fmt.Fprintf(w, "path\t%s\n", wc.Path)
	fmt.Fprintf(w, "currency\t%s\n", wc.Currency)
	fmt.Fprintf(w, "theme\t%s\n", wc.Theme)
	w.Flush()
	return subcommands.ExitSuccess
}

type statsCmd struct{}

func (*statsCmd) Name() string           { return "stats" }
func (*statsCmd) Synopsis() string       { return "show total balance, income and expense" }
func (*statsCmd) Usage() string          { return "finance stats\n" }
func (*statsCmd) SetFlags(*flag.FlagSet) {}

func (*statsCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a := appFrom(args)
	sess, err := a.current(ctx)
	if err != nil {
		return fail(ctx, "open workspace", err)
	}
	stats, err := sess.Ledger.CalculateOverallStats(ctx)
	if err != nil {
		return fail(ctx, "stats", err)
	}
	cur := a.currency(sess)
	w := newTable()
	fmt.Fprintf(w, "Balance\t%s\n", service.FormatAmount(stats.TotalBalance, cur))
	fmt.Fprintf(w, "Income\t%s\n", service.FormatAmount(stats.TotalIncome, cur))
	fmt.Fprintf(w, "Expense\t%s\n", service.FormatAmount(stats.TotalExpense, cur))
	w.Flush()
	return subcommands.ExitSuccess
}

type accountsCmd struct{}

func (*accountsCmd) Name() string           { return "accounts" }
func (*accountsCmd) Synopsis() string       { return "list accounts with their balances" }
func (*accountsCmd) Usage() string          { return "finance accounts\n" }
func (*accountsCmd) SetFlags(*flag.FlagSet) {}

func (*accountsCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	sess, err := appFrom(args).current(ctx)
	if err != nil {
		return fail(ctx, "open workspace", err)
	}
	accounts, err := sess.Ledger.GetAccountsWithBalances(ctx)
	if err != nil {
		return fail(ctx, "list accounts", err)
	}
	w := newTable()
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tBALANCE\tLIMIT\tACTIVE")
	for _, acc := range accounts {
		limit := "-"
		if acc.CreditLimit.Valid {
			limit = service.FormatAmount(acc.CreditLimit.Decimal, acc.Currency)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\n", acc.ID, acc.Name, acc.Type,
			service.FormatAmount(acc.Balance, acc.Currency), limit, acc.IsActive)
	}
	w.Flush()
	return subcommands.ExitSuccess
}

type recordsCmd struct {
	page int
	size int
}

func (*recordsCmd) Name() string     { return "records" }
func (*recordsCmd) Synopsis() string { return "list records, newest first" }
func (*recordsCmd) Usage() string    { return "finance records [-page N] [-size N]\n" }
func (c *recordsCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.page, "page", 1, "Page number, starting at 1.")
	f.IntVar(&c.size, "size", 20, "Records per page.")
}

func (c *recordsCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	sess, err := appFrom(args).current(ctx)
	if err != nil {
		return fail(ctx, "open workspace", err)
	}
	page, err := sess.Ledger.GetPaginatedRecords(ctx, c.page, c.size)
	if err != nil {
		return fail(ctx, "list records", err)
	}
	w := newTable()
	fmt.Fprintln(w, "DATE\tTYPE\tAMOUNT\tACCOUNT\tCATEGORY\tDESCRIPTION")
	for _, rec := range page.Items {
		account := rec.Account.Name
		if rec.ToAccount != nil {
			account += " -> " + rec.ToAccount.Name
		}
		category := "-"
		if rec.Category != nil {
			category = rec.Category.Name
		}
		desc := ""
		if rec.Description != nil {
			desc = *rec.Description
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			time.Unix(rec.Timestamp, 0).Format("2006-01-02 15:04"), rec.Type,
			service.FormatAmount(rec.Amount, rec.Currency), account, category, desc)
	}
	w.Flush()
	fmt.Printf("page %d of %d, %d records\n", page.CurrentPage, page.TotalPages, page.TotalItems)
	return subcommands.ExitSuccess
}

type expensesCmd struct {
	days int
}

func (*expensesCmd) Name() string     { return "expenses" }
func (*expensesCmd) Synopsis() string { return "break recent expenses down by category" }
func (*expensesCmd) Usage() string    { return "finance expenses [-days N]\n" }
func (c *expensesCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.days, "days", 0, "Window in days. Defaults to EXPENSE_WINDOW_DAYS.")
}

func (c *expensesCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a := appFrom(args)
	days := c.days
	if days == 0 {
		days = a.cfg.ExpenseWindowDays
	}
	sess, err := a.current(ctx)
	if err != nil {
		return fail(ctx, "open workspace", err)
	}
	expenses, err := sess.Ledger.GetExpensesByCategory(ctx, days)
	if err != nil {
		return fail(ctx, "expenses", err)
	}
	cur := a.currency(sess)
	w := newTable()
	fmt.Fprintln(w, "CATEGORY\tAMOUNT\tSHARE")
	for _, e := range expenses {
		fmt.Fprintf(w, "%s\t%s\t%.1f%%\n", e.Name, service.FormatAmount(e.Amount, cur), e.Percentage)
	}
	w.Flush()
	return subcommands.ExitSuccess
}

type categoriesCmd struct{}

func (*categoriesCmd) Name() string           { return "categories" }
func (*categoriesCmd) Synopsis() string       { return "list categories" }
func (*categoriesCmd) Usage() string          { return "finance categories\n" }
func (*categoriesCmd) SetFlags(*flag.FlagSet) {}

func (*categoriesCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	sess, err := appFrom(args).current(ctx)
	if err != nil {
		return fail(ctx, "open workspace", err)
	}
	categories, err := sess.Ledger.ListCategories(ctx)
	if err != nil {
		return fail(ctx, "list categories", err)
	}
	w := newTable()
	fmt.Fprintln(w, "ID\tTYPE\tNAME\tACTIVE")
	for _, c := range categories {
		fmt.Fprintf(w, "%s\t%s\t%s %s\t%t\n", c.ID, c.Type, c.Icon, c.Name, c.IsActive)
	}
	w.Flush()
	return subcommands.ExitSuccess
}

type accountCreateCmd struct {
	name     string
	kind     string
	currency string
	balance  string
	limit    string
}

func (*accountCreateCmd) Name() string     { return "account-create" }
func (*accountCreateCmd) Synopsis() string { return "add an account" }
func (*accountCreateCmd) Usage() string {
	return `finance account-create -name <name> [-type cash|debit|credit|other] [-currency XYZ] [-balance N] [-limit N]
`
}
func (c *accountCreateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "name", "", "Account name.")
	f.StringVar(&c.kind, "type", string(model.AccountCash), "Account type.")
	f.StringVar(&c.currency, "currency", "", "ISO currency code. Defaults to the workspace currency.")
	f.StringVar(&c.balance, "balance", "0", "Initial balance.")
	f.StringVar(&c.limit, "limit", "", "Credit limit.")
}

func (c *accountCreateCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	balance, err := decimal.NewFromString(c.balance)
	if err != nil {
		return fail(ctx, "parse -balance", err)
	}
	input := service.AccountInput{
		Name:           c.name,
		Type:           model.AccountType(c.kind),
		Currency:       c.currency,
		InitialBalance: balance,
	}
	if c.limit != "" {
		limit, err := decimal.NewFromString(c.limit)
		if err != nil {
			return fail(ctx, "parse -limit", err)
		}
		input.CreditLimit = &limit
	}

	sess, err := appFrom(args).current(ctx)
	if err != nil {
		return fail(ctx, "open workspace", err)
	}
	id, err := sess.Accounts.CreateAccount(ctx, input)
	if err != nil {
		return fail(ctx, "create account", err)
	}
	fmt.Println(id)
	return subcommands.ExitSuccess
}

type accountUpdateCmd struct {
	id       string
	name     string
	kind     string
	currency string
	balance  string
	limit    string
	noLimit  bool
	active   bool
}

func (*accountUpdateCmd) Name() string     { return "account-update" }
func (*accountUpdateCmd) Synopsis() string { return "change fields of an account" }
func (*accountUpdateCmd) Usage() string {
	return `finance account-update -id <id> [-name ..] [-type ..] [-currency ..] [-balance ..] [-limit ..|-clear-limit] [-active=false]

  Only the flags given on the command line are changed.
`
}
func (c *accountUpdateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "Account id.")
	f.StringVar(&c.name, "name", "", "New name.")
	f.StringVar(&c.kind, "type", "", "New type.")
	f.StringVar(&c.currency, "currency", "", "New currency code.")
	f.StringVar(&c.balance, "balance", "", "New initial balance.")
	f.StringVar(&c.limit, "limit", "", "New credit limit.")
	f.BoolVar(&c.noLimit, "clear-limit", false, "Remove the credit limit.")
	f.BoolVar(&c.active, "active", true, "Whether the account is active.")
}

func (c *accountUpdateCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if c.id == "" {
		return subcommands.ExitUsageError
	}
	input, err := c.update(setFlags(f))
	if err != nil {
		return fail(ctx, "parse flags", err)
	}
	sess, err := appFrom(args).current(ctx)
	if err != nil {
		return fail(ctx, "open workspace", err)
	}
	if err := sess.Accounts.UpdateAccount(ctx, input); err != nil {
		return fail(ctx, "update account", err)
	}
	fmt.Printf("Account %s updated\n", c.id)
	return subcommands.ExitSuccess
}

// update builds an AccountUpdate from the flags that were set.
func (c *accountUpdateCmd) update(set map[string]bool) (service.AccountUpdate, error) {
	input := service.AccountUpdate{ID: c.id}
	if set["name"] {
		input.Name = &c.name
	}
	if set["type"] {
		kind := model.AccountType(c.kind)
		input.Type = &kind
	}
	if set["currency"] {
		input.Currency = &c.currency
	}
	if set["balance"] {
		balance, err := decimal.NewFromString(c.balance)
		if err != nil {
			return input, fmt.Errorf("-balance: %w", err)
		}
		input.InitialBalance = &balance
	}
	if set["limit"] {
		limit, err := decimal.NewFromString(c.limit)
		if err != nil {
			return input, fmt.Errorf("-limit: %w", err)
		}
		input.CreditLimit = &limit
	}
	input.ClearCreditLimit = set["clear-limit"] && c.noLimit
	if set["active"] {
		input.IsActive = &c.active
	}
	return input, nil
}

func setFlags(f *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	f.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	return set
}

type accountDeleteCmd struct{}

func (*accountDeleteCmd) Name() string           { return "account-delete" }
func (*accountDeleteCmd) Synopsis() string       { return "delete an account that no record uses" }
func (*accountDeleteCmd) Usage() string          { return "finance account-delete <id>\n" }
func (*accountDeleteCmd) SetFlags(*flag.FlagSet) {}

func (*accountDeleteCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return subcommands.ExitUsageError
	}
	sess, err := appFrom(args).current(ctx)
	if err != nil {
		return fail(ctx, "open workspace", err)
	}
	deleted, err := sess.Accounts.DeleteAccountIfUnreferenced(ctx, f.Arg(0))
	if err != nil {
		return fail(ctx, "delete account", err)
	}
	if !deleted {
		fmt.Fprintf(os.Stderr, "Account %s was kept: it is missing or still has records\n", f.Arg(0))
		return subcommands.ExitFailure
	}
	fmt.Printf("Account %s deleted\n", f.Arg(0))
	return subcommands.ExitSuccess
}

type categoryCreateCmd struct {
	name  string
	kind  string
	icon  string
	color string
}

func (*categoryCreateCmd) Name() string     { return "category-create" }
func (*categoryCreateCmd) Synopsis() string { return "add a category" }
func (*categoryCreateCmd) Usage() string {
	return "finance category-create -name <name> [-type expense|income|transfer] [-icon ..] [-color #rrggbb]\n"
}
func (c *categoryCreateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "name", "", "Category name.")
	f.StringVar(&c.kind, "type", string(model.CategoryExpense), "Category type.")
	f.StringVar(&c.icon, "icon", "", "Icon, usually an emoji.")
	f.StringVar(&c.color, "color", "", "Display color.")
}

func (c *categoryCreateCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	sess, err := appFrom(args).current(ctx)
	if err != nil {
		return fail(ctx, "open workspace", err)
	}
	id, err := sess.Categories.CreateCategory(ctx, service.CategoryInput{
		Name:  c.name,
		Type:  model.CategoryType(c.kind),
		Icon:  c.icon,
		Color: c.color,
	})
	if err != nil {
		return fail(ctx, "create category", err)
	}
	fmt.Println(id)
	return subcommands.ExitSuccess
}

type categoryDeleteCmd struct{}

func (*categoryDeleteCmd) Name() string           { return "category-delete" }
func (*categoryDeleteCmd) Synopsis() string       { return "delete a category that no record uses" }
func (*categoryDeleteCmd) Usage() string          { return "finance category-delete <id>\n" }
func (*categoryDeleteCmd) SetFlags(*flag.FlagSet) {}

func (*categoryDeleteCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return subcommands.ExitUsageError
	}
	sess, err := appFrom(args).current(ctx)
	if err != nil {
		return fail(ctx, "open workspace", err)
	}
	deleted, err := sess.Categories.DeleteCategoryIfUnreferenced(ctx, f.Arg(0))
	if err != nil {
		return fail(ctx, "delete category", err)
	}
	if !deleted {
		fmt.Fprintf(os.Stderr, "Category %s was kept: it is missing or still has records\n", f.Arg(0))
		return subcommands.ExitFailure
	}
	fmt.Printf("Category %s deleted\n", f.Arg(0))
	return subcommands.ExitSuccess
}

type recordAddCmd struct {
	kind        string
	amount      string
	account     string
	to          string
	category    string
	description string
	date        string
	tags        string
}

func (*recordAddCmd) Name() string     { return "record-add" }
func (*recordAddCmd) Synopsis() string { return "add an income, expense or transfer" }
func (*recordAddCmd) Usage() string {
	return `finance record-add -type expense -amount 12.50 -account <id> [-category <id>] [-to <id>] [-desc ..] [-date 2006-01-02] [-tags a,b]
`
}
func (c *recordAddCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.kind, "type", string(model.RecordExpense), "Record type: income, expense or transfer.")
	f.StringVar(&c.amount, "amount", "", "Amount, always positive.")
	f.StringVar(&c.account, "account", "", "Source account id.")
	f.StringVar(&c.to, "to", "", "Destination account id, transfers only.")
	f.StringVar(&c.category, "category", "", "Category id.")
	f.StringVar(&c.description, "desc", "", "Free text description.")
	f.StringVar(&c.date, "date", "", "Date in YYYY-MM-DD. Defaults to now.")
	f.StringVar(&c.tags, "tags", "", "Comma separated tag ids.")
}

func (c *recordAddCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	input, err := c.input()
	if err != nil {
		return fail(ctx, "parse flags", err)
	}
	sess, err := appFrom(args).current(ctx)
	if err != nil {
		return fail(ctx, "open workspace", err)
	}
	id, err := sess.Records.CreateRecord(ctx, input)
	if err != nil {
		return fail(ctx, "add record", err)
	}
	fmt.Println(id)
	return subcommands.ExitSuccess
}

func (c *recordAddCmd) input() (service.RecordInput, error) {
	amount, err := decimal.NewFromString(c.amount)
	if err != nil {
		return service.RecordInput{}, fmt.Errorf("-amount: %w", err)
	}
	input := service.RecordInput{
		Type:        model.RecordType(c.kind),
		Amount:      amount,
		AccountID:   c.account,
		ToAccountID: c.to,
		CategoryID:  c.category,
		Description: c.description,
	}
	if c.date != "" {
		ts, err := time.ParseInLocation("2006-01-02", c.date, time.Local)
		if err != nil {
			return service.RecordInput{}, fmt.Errorf("-date: %w", err)
		}
		input.Timestamp = ts
	}
	for _, tag := range strings.Split(c.tags, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			input.Tags = append(input.Tags, tag)
		}
	}
	return input, nil
}
