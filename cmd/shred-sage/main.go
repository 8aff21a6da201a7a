package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"shred-sage/internal/config"
	"shred-sage/internal/exitcodes"
)

const defaultConfigPath = "/etc/shred-sage/config.yaml"

type rootOpts struct {
	configPath string
	logLevel   string
}

// exitError carries the process exit code for a command failure
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withExit(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

func exitCodeFor(err error) int {
	if err == nil {
		return exitcodes.Success
	}
	var e *exitError
	if errors.As(err, &e) {
		return e.code
	}
	return exitcodes.RuntimeError
}

func newRootCmd() *cobra.Command {
	opts := &rootOpts{}

	rootCmd := &cobra.Command{
		Use:   "shred-sage",
		Short: "Secure deletion with GNU shred",
		Long: `shred-sage securely deletes files by driving GNU shred, reporting
per-pass progress, and can run as a daemon that shreds aged print and
fax spool files.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "config file path")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return withExit(exitcodes.InvalidConfig, err)
	})

	rootCmd.AddCommand(
		newShredCmd(opts),
		newDaemonCmd(opts),
		newHistoryCmd(opts),
	)

	return rootCmd
}

// loadConfig reads the config file. A missing file at the default path is
// only an error when required; otherwise defaults apply.
func (o *rootOpts) loadConfig(cmd *cobra.Command, required bool) (*config.Config, bool, error) {
	explicit := cmd.Flags().Changed("config")
	if !explicit && !required {
		if _, err := os.Stat(o.configPath); os.IsNotExist(err) {
			return config.Default(), false, nil
		}
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, false, withExit(exitcodes.InvalidConfig, errors.Errorf("loading config %s: %w", o.configPath, err))
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	return cfg, true, nil
}

func main() {
	err := newRootCmd().ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error:"), err)
	}
	os.Exit(exitCodeFor(err))
}
