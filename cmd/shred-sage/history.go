package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"shred-sage/internal/database"
	"shred-sage/internal/exitcodes"
)

type historyOpts struct {
	dbPath      string
	recent      int
	action      string
	pathPattern string
	runID       string
	stats       bool
	days        int
	prune       int
	dbStats     bool
	jsonOutput  bool
}

func newHistoryCmd(root *rootOpts) *cobra.Command {
	o := &historyOpts{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Query the shred history database",
		Example: `  shred-sage history --recent 10            # 10 most recent records
  shred-sage history --stats --days 7        # statistics for the last week
  shred-sage history --action ERROR          # failed shreds only
  shred-sage history --path '/var/spool/%'   # records under a spool
  shred-sage history --run <run-id>          # every file of one purge run
  shred-sage history --prune 90              # drop records older than 90 days`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.dbPath == "" {
				cfg, _, err := root.loadConfig(cmd, false)
				if err != nil {
					return err
				}
				o.dbPath = cfg.DatabasePath
			}
			return runHistory(cmd, o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.dbPath, "db", "", "history database path (default from config)")
	f.IntVar(&o.recent, "recent", 0, "show N most recent records")
	f.StringVar(&o.action, "action", "", "filter by action (SHRED, DRY_RUN, SKIP, ERROR)")
	f.StringVar(&o.pathPattern, "path", "", "filter by path pattern (SQL LIKE syntax)")
	f.StringVar(&o.runID, "run", "", "show every record of one run")
	f.BoolVar(&o.stats, "stats", false, "show statistics")
	f.IntVar(&o.days, "days", 30, "number of days for statistics")
	f.IntVar(&o.prune, "prune", 0, "delete records older than N days and vacuum")
	f.BoolVar(&o.dbStats, "db-stats", false, "show database size and record span")
	f.BoolVar(&o.jsonOutput, "json", false, "output in JSON format")

	return cmd
}

func runHistory(cmd *cobra.Command, o *historyOpts) error {
	out := cmd.OutOrStdout()

	db, err := database.NewHistoryDB(o.dbPath)
	if err != nil {
		return withExit(exitcodes.RuntimeError, errors.Errorf("opening history %s: %w", o.dbPath, err))
	}
	defer db.Close()

	var records []database.ShredRecord
	var title string

	switch {
	case o.prune > 0:
		deleted, err := db.DeleteOldRecords(o.prune)
		if err != nil {
			return errors.Errorf("pruning history: %w", err)
		}
		if err := db.Vacuum(); err != nil {
			return errors.Errorf("vacuuming history: %w", err)
		}
		fmt.Fprintf(out, "Deleted %d record(s) older than %d days\n", deleted, o.prune)
		return nil
	case o.stats:
		stats, err := db.GetShredStats(o.days)
		if err != nil {
			return errors.Errorf("getting statistics: %w", err)
		}
		if o.jsonOutput {
			return writeJSON(out, stats)
		}
		printStats(out, stats, o.days)
		return nil
	case o.dbStats:
		stats, err := db.GetDatabaseStats()
		if err != nil {
			return errors.Errorf("getting database statistics: %w", err)
		}
		return writeJSON(out, stats)
	case o.recent > 0:
		records, err = db.GetRecentShreds(o.recent)
	case o.action != "":
		title = fmt.Sprintf("Records with action: %s", o.action)
		records, err = db.GetShredsByAction(o.action)
	case o.pathPattern != "":
		title = fmt.Sprintf("Records matching path pattern: %s", o.pathPattern)
		records, err = db.GetShredsByPath(o.pathPattern)
	case o.runID != "":
		title = fmt.Sprintf("Run %s", o.runID)
		records, err = db.GetShredsByRun(o.runID)
	default:
		return withExit(exitcodes.InvalidConfig, errors.New("choose one of --recent, --action, --path, --run, --stats, --db-stats or --prune"))
	}
	if err != nil {
		return errors.Errorf("querying history: %w", err)
	}

	if o.jsonOutput {
		return writeJSON(out, records)
	}
	if title != "" {
		fmt.Fprintf(out, "%s\n\n", title)
	}
	printRecords(out, records)
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printStats(w io.Writer, stats *database.ShredStats, days int) {
	fmt.Fprintf(w, "Shred Statistics (Last %d days)\n", days)
	fmt.Fprintf(w, "Period: %s to %s\n\n", stats.StartDate.Format("2006-01-02"), stats.EndDate.Format("2006-01-02"))
	fmt.Fprintf(w, "Runs:             %d\n", stats.TotalRuns)
	fmt.Fprintf(w, "Files Shredded:   %d\n", stats.TotalShredded)
	fmt.Fprintf(w, "Dry Run:          %d\n", stats.TotalDryRun)
	fmt.Fprintf(w, "Skipped:          %d\n", stats.TotalSkipped)
	fmt.Fprintf(w, "Errors:           %d\n", stats.TotalErrors)
	fmt.Fprintf(w, "Bytes Shredded:   %s\n", formatBytes(stats.TotalBytes))
	fmt.Fprintf(w, "Average Duration: %.0fms\n\n", stats.AverageDurationMs)

	printCounts(w, "By Reason:", stats.ByReason)
	printCounts(w, "By Action:", stats.ByAction)
}

func printCounts(w io.Writer, heading string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintln(w, heading)
	for _, k := range keys {
		label := k
		if label == "" {
			label = "-"
		}
		fmt.Fprintf(w, "  %-15s %d\n", label, counts[k])
	}
	fmt.Fprintln(w)
}

func printRecords(out io.Writer, records []database.ShredRecord) {
	if len(records) == 0 {
		fmt.Fprintln(out, "No records found")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTimestamp\tAction\tReason\tPasses\tSize\tPath")
	_, _ = fmt.Fprintln(w, "--\t---------\t------\t------\t------\t----\t----")

	for _, r := range records {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\t%s\n",
			r.ID, r.Timestamp.Format("2006-01-02 15:04:05"), actionLabel(r.Action),
			r.PrimaryReason, r.Passes, formatBytes(r.Size), r.Path)
	}
	_ = w.Flush()
}

func actionLabel(action string) string {
	switch action {
	case database.ActionShred:
		return color.GreenString(action)
	case database.ActionError:
		return color.RedString(action)
	case database.ActionSkip, database.ActionDryRun:
		return color.YellowString(action)
	default:
		return action
	}
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
