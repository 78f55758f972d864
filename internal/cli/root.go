// Package cli implements the cicd-demo command line: the HTTP server and
// task administration commands.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"cicd-demo/internal/config"
	"cicd-demo/internal/logging"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

// app carries state shared by one command tree.
type app struct {
	v       *viper.Viper
	cfgFile string
}

// NewRootCmd builds the command tree. Each call gets its own viper
// instance, so trees do not share flag or config state.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "cicd-demo",
		Short: "Task management REST service",
		Long: `cicd-demo serves a small task-management REST API with health and
info endpoints. Without a subcommand it starts the HTTP server.

Configuration is read from --config (YAML), CICD_DEMO_* environment
variables and flags. PORT and DATABASE_URL are honoured as well.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.cfgFile, "config", "c", "", "config file (YAML)")
	pf.String("store", "", "task store driver: memory, file or postgres")
	pf.String("store-path", "", "YAML document used by the file store")
	pf.String("database-url", "", "PostgreSQL connection string")
	pf.String("log-level", "", "log level: debug, info, warn or error")
	_ = a.v.BindPFlag("store.driver", pf.Lookup("store"))
	_ = a.v.BindPFlag("store.path", pf.Lookup("store-path"))
	_ = a.v.BindPFlag("store.database_url", pf.Lookup("database-url"))
	_ = a.v.BindPFlag("logging.level", pf.Lookup("log-level"))

	root.AddCommand(
		a.newServeCmd(),
		a.newMigrateCmd(),
		a.newTaskCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().ExecuteContext(context.Background())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cicd-demo %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
		},
	}
}

// config resolves defaults, the config file, environment and flags.
func (a *app) config() (*config.Config, error) {
	config.SetDefaults(a.v)
	if err := config.ReadFile(a.v, a.cfgFile); err != nil {
		return nil, err
	}
	return config.Load(a.v)
}

// setup loads the configuration and builds the logger it describes.
func (a *app) setup() (*config.Config, *slog.Logger, func() error, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, nil, nil, err
	}
	logger, closeLog, err := logging.Open(cfg.Logging.File, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, closeLog, nil
}
