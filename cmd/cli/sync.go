package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pun-archive/internal/ingest"
)

var syncHorizon string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Download every missing day up to the horizon and merge it into the dataset",
	RunE:  runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncHorizon, "horizon", "", "Last date to fetch (default: tomorrow in Europe/Rome)")
}

func runSync(cmd *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	horizon, err := dateFlag("horizon", syncHorizon)
	if err != nil {
		return err
	}
	if horizon.IsZero() {
		horizon = ingest.DefaultHorizon(time.Now())
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, err := a.syncer().Run(ctx, horizon)
	if rep != nil {
		printReport(rep)
	}
	if err != nil {
		return err
	}
	if len(rep.Failed) > 0 {
		return fmt.Errorf("%d of %d ranges failed", len(rep.Failed), len(rep.Ranges))
	}
	return nil
}

var importYear int

var importCmd = &cobra.Command{
	Use:   "import [file...]",
	Short: "Merge downloaded GME payloads (zip or xml), or a yearly archive with --year",
	RunE:  runImport,
}

func init() {
	importCmd.Flags().IntVar(&importYear, "year", 0, "Download and merge the yearly archive of this year")
}

func runImport(cmd *cobra.Command, args []string) error {
	if importYear == 0 && len(args) == 0 {
		return fmt.Errorf("pass payload files or --year")
	}
	a, err := loadApp()
	if err != nil {
		return err
	}
	s := a.syncer()

	if importYear != 0 {
		payload, err := a.client().FetchYear(cmd.Context(), importYear)
		if err != nil {
			return err
		}
		rep, err := s.Import(fmt.Sprintf("Anno%d.zip", importYear), payload)
		if err != nil {
			return err
		}
		printReport(rep)
	}
	for _, p := range args {
		payload, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rep, err := s.Import(filepath.Base(p), payload)
		if err != nil {
			return err
		}
		printReport(rep)
	}
	return nil
}

func printReport(rep *ingest.RunReport) {
	if !rep.Horizon.IsZero() {
		fmt.Printf("horizon:    %s\n", rep.Horizon)
	}
	for _, r := range rep.Ranges {
		fmt.Printf("range:      %s (%d days)\n", r, r.Days())
	}
	for _, f := range rep.Failed {
		fmt.Printf("failed:     %s: %v\n", f.Range, f.Err)
	}
	for _, e := range rep.DecodeErrors {
		fmt.Printf("decode:     %v\n", e)
	}
	for _, e := range rep.InvalidRecords {
		fmt.Printf("invalid:    %v\n", e)
	}
	for _, e := range rep.Unresolved {
		fmt.Printf("unresolved: %v\n", e)
	}
	for _, c := range rep.Conflicts {
		fmt.Printf("conflict:   %s kept %.6g discarded %.6g\n", c.Key, c.Existing, c.Incoming)
	}
	for _, v := range rep.Violations {
		fmt.Printf("incomplete: %v\n", v)
	}
	fmt.Printf("added=%d unchanged=%d total=%d artifacts=%d persisted=%v\n",
		rep.Added, rep.Unchanged, rep.Total, len(rep.Artifacts), rep.Persisted)
}
