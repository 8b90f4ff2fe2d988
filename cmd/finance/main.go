// Command finance manages a finance workspace from the terminal.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/google/subcommands"

	"finance-workspace/internal/config"
	"finance-workspace/internal/logger"
	"finance-workspace/internal/session"
)

var workspaceFlag = flag.String("workspace", "", "Workspace directory. Defaults to FINANCE_WORKSPACE, then the last opened workspace.")

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	register(commander)

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	log := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	if *workspaceFlag != "" {
		cfg.Workspace = *workspaceFlag
	}

	sessions := session.NewManager(cfg.AppDataDir, log)
	ctx = logger.WithContext(ctx, log)

	status := commander.Execute(ctx, &app{cfg: cfg, sessions: sessions})
	if err := sessions.Close(); err != nil {
		log.Warn().Err(err).Msg("close workspace")
	}
	os.Exit(int(status))
}

func register(c *subcommands.Commander) {
	c.Register(&initCmd{}, "workspace")
	c.Register(&openCmd{}, "workspace")
	c.Register(&reindexCmd{}, "workspace")
	c.Register(&contextCmd{}, "workspace")

	c.Register(&statsCmd{}, "reports")
	c.Register(&accountsCmd{}, "reports")
	c.Register(&recordsCmd{}, "reports")
	c.Register(&expensesCmd{}, "reports")
	c.Register(&categoriesCmd{}, "reports")

	c.Register(&accountCreateCmd{}, "accounts")
	c.Register(&accountUpdateCmd{}, "accounts")
	c.Register(&accountDeleteCmd{}, "accounts")

	c.Register(&categoryCreateCmd{}, "categories")
	c.Register(&categoryDeleteCmd{}, "categories")

	c.Register(&recordAddCmd{}, "records")
}
