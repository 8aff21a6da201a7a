package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"shred-sage/internal/config"
	"shred-sage/internal/database"
	"shred-sage/internal/exitcodes"
	"shred-sage/internal/logging"
	"shred-sage/internal/safety"
	"shred-sage/internal/scan"
	"shred-sage/internal/shredder"
)

type shredOpts struct {
	utility    string
	iterations uint
	force      bool
	size       string
	keep       bool
	noZero     bool
	debug      bool
	dryRun     bool
	quiet      bool
}

func newShredCmd(root *rootOpts) *cobra.Command {
	o := &shredOpts{}

	cmd := &cobra.Command{
		Use:   "shred [files...]",
		Short: "Securely delete files",
		Long: `Shred overwrites each file with GNU shred, shows progress per pass and
rename, and removes the file unless --keep is given. Protected system
paths are refused before the utility is started.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, loaded, err := root.loadConfig(cmd, false)
			if err != nil {
				return err
			}
			o.apply(cmd, cfg)
			return runShred(cmd, cfg, loaded, o, args)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.utility, "utility", "", "path to the shred executable")
	f.UintVarP(&o.iterations, "iterations", "n", 3, "overwrite passes")
	f.BoolVarP(&o.force, "force", "f", false, "change permissions to allow writing")
	f.StringVarP(&o.size, "size", "s", "", "shred this many bytes (suffixes like K, M, G accepted)")
	f.BoolVar(&o.keep, "keep", false, "overwrite without removing the file")
	f.BoolVar(&o.noZero, "no-zero", false, "skip the final pass of zeros")
	f.BoolVar(&o.debug, "debug", false, "log the utility invocation")
	f.BoolVar(&o.dryRun, "dry-run", false, "validate and report without shredding")
	f.BoolVarP(&o.quiet, "quiet", "q", false, "suppress progress lines")

	return cmd
}

// apply overrides the config's shred block with flags the user set
func (o *shredOpts) apply(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("utility") {
		cfg.Shred.UtilityPath = o.utility
	}
	if f.Changed("iterations") {
		n := o.iterations
		cfg.Shred.Iterations = &n
	}
	if f.Changed("force") {
		force := o.force
		cfg.Shred.Force = &force
	}
	if f.Changed("size") {
		cfg.Shred.Size = o.size
	}
	if o.keep {
		remove := false
		cfg.Shred.Remove = &remove
	}
	if o.noZero {
		zero := false
		cfg.Shred.Zero = &zero
	}
	if o.debug {
		debug := true
		cfg.Shred.Debug = &debug
		cfg.Logging.Level = "debug"
	}
}

func runShred(cmd *cobra.Command, cfg *config.Config, loaded bool, o *shredOpts, files []string) error {
	out := cmd.OutOrStdout()
	logger := logging.NewWriter(cmd.ErrOrStderr(), logging.ParseLevel(cfg.Logging.Level))

	// One-shot mode has no spool roots, only the protected list
	validator := safety.NewValidator(nil, cfg.ProtectedPaths)
	for _, f := range files {
		if err := validator.ValidateShredTarget(f); err != nil {
			fmt.Fprintf(out, "%s %s: %v\n", color.RedString("✗"), f, err)
			return withExit(exitcodes.SafetyViolation, errors.Errorf("refusing to shred %s: %w", f, err))
		}
	}

	// History is recorded only when a config file asked for it
	var db *database.HistoryDB
	if loaded && cfg.DatabasePath != "" {
		var err error
		db, err = database.NewHistoryDB(cfg.DatabasePath)
		if err != nil {
			logger.Warn().Err(err).Str("path", cfg.DatabasePath).Msg("history disabled")
		} else {
			defer db.Close()
		}
	}
	runID := uuid.New().String()

	if o.dryRun {
		for _, f := range files {
			fmt.Fprintf(out, "%s would shred %s\n", color.YellowString("•"), f)
			recordHistory(db, logger, runID, database.ActionDryRun, f, 0, nil)
		}
		return nil
	}

	s := shredder.New(cfg.ShredderConfig(), shredder.WithLogger(logger))
	if !s.PathExists() {
		logger.Warn().Str("utility", s.Config().UtilityPath).Msg("shred utility not found")
	}

	sizes := make(map[string]int64, len(files))
	for _, f := range files {
		if info, err := os.Stat(f); err == nil {
			sizes[f] = info.Size()
		}
	}

	start := time.Now()
	type result struct {
		err   error
		files []string
	}
	done := make(chan result, 1)
	passes := make(map[string]int)

	s.ShredFunc(cmd.Context(), files, func(p shredder.Progress) {
		if p.Action == shredder.Overwriting {
			passes[filepath.Join(p.Directory, p.FileName)]++
		}
		if !o.quiet {
			printProgress(out, p)
		}
	}, func(err error, files []string) {
		done <- result{err: err, files: files}
	})
	res := <-done
	elapsed := time.Since(start)

	for _, f := range res.files {
		rec := database.ShredRecord{
			Passes:     passes[filepath.Clean(f)],
			DurationMs: elapsed.Milliseconds(),
		}
		action := database.ActionShred
		if res.err != nil {
			action = database.ActionError
			rec.ExitCode = shredder.ExitCode(res.err)
			rec.ErrorMessage = res.err.Error()
		}
		recordHistory(db, logger, runID, action, f, sizes[f], &rec)
	}

	if res.err != nil {
		fmt.Fprintf(out, "%s %v\n", color.RedString("✗"), res.err)
		switch {
		case shredder.IsInputError(res.err):
			return withExit(exitcodes.InvalidConfig, res.err)
		case shredder.IsUtilityError(res.err):
			return withExit(exitcodes.UtilityFailure, res.err)
		default:
			return withExit(exitcodes.RuntimeError, res.err)
		}
	}

	fmt.Fprintf(out, "%s shredded %d file(s) in %s\n",
		color.GreenString("✓"), len(res.files), elapsed.Round(time.Millisecond))
	return nil
}

func printProgress(w io.Writer, p shredder.Progress) {
	switch p.Action {
	case shredder.Overwriting:
		fmt.Fprintf(w, "  %s %-12s %5.1f%%  %s/%s\n",
			color.CyanString("⟳"), p.Action, p.Fraction*100, p.Directory, p.FileName)
	case shredder.Renaming:
		fmt.Fprintf(w, "  %s %-12s %5.1f%%  %s/%s\n",
			color.YellowString("↻"), p.Action, p.Fraction*100, p.Directory, p.FileName)
	}
}

func recordHistory(db *database.HistoryDB, logger zerolog.Logger, runID, action, path string, size int64, base *database.ShredRecord) {
	if db == nil {
		return
	}
	rec := database.ShredRecord{}
	if base != nil {
		rec = *base
	}
	rec.RunID = runID
	rec.Action = action
	rec.Path = path
	rec.Size = size
	rec.PrimaryReason = scan.ReasonManual
	if err := db.RecordShred(rec); err != nil {
		logger.Error().Err(err).Str("path", path).Msg("failed to record history")
	}
}
