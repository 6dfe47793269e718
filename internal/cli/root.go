// Package cli wires configuration, sources and the weekly job into the
// timesheet command line.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"timesheet/internal/config"
	appLog "timesheet/internal/log"
	"timesheet/internal/render"
)

// version will be set by main
var version = "dev"

// SetVersion sets the version reported by `timesheet version`.
func SetVersion(v string) {
	version = v
}

// app carries the persistent flag values shared by every subcommand.
type app struct {
	configPath string
	envFile    string
	logLevel   string
}

// load reads .env, then the config file, and validates the result.
func (a *app) load() (*config.Config, error) {
	if err := config.LoadDotEnv(a.envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", a.configPath, err)
	}
	return cfg, nil
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "timesheet",
		Short: "Totals a week of calendar time per work category into a CSV log",
		Long: `timesheet reads last week's calendar events from an ICS feed, Google Calendar
or Exchange, sorts them into work categories by their "CODE:" title prefix and
appends one row per week to a CSV time-tracking log.

Running timesheet with no subcommand is the same as "timesheet run".`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			appLog.SetLevel(appLog.ParseLevel(a.logLevel))
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "timesheet.yaml", "Path to config file (YAML or JSON)")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "Path to a .env file loaded before the config")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "Log level: debug, info, warn, error")

	root.AddCommand(newRunCmd(a))
	root.AddCommand(newScheduleCmd(a))
	root.AddCommand(newServeCmd(a))
	root.AddCommand(newHistoryCmd(a))
	root.AddCommand(newAuthCmd(a))
	root.AddCommand(newVersionCmd())
	return root
}

// withDefaultCommand runs `run` when no subcommand is given. Flags alone
// (e.g. `timesheet --dry-run`) also select `run`.
func withDefaultCommand(root *cobra.Command, args []string) []string {
	if len(args) == 0 {
		return []string{"run"}
	}
	for _, arg := range args {
		switch arg {
		case "-h", "--help", "help", "completion":
			return args
		}
	}
	if cmd, _, err := root.Find(args); err == nil && cmd != root {
		return args
	}
	return append([]string{"run"}, args...)
}

// Execute is the main entry point for the CLI application. It returns the
// process exit code.
func Execute() int {
	root := NewRootCmd()
	root.SetArgs(withDefaultCommand(root, os.Args[1:]))
	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}

// useColor enables styling only when w is an interactive terminal.
func useColor(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && render.IsTerminal(f)
}
