package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pun-archive/internal/ingest"
)

var gapsHorizon string

var gapsCmd = &cobra.Command{
	Use:   "gaps",
	Short: "List the date ranges missing from the archive",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		horizon, err := dateFlag("horizon", gapsHorizon)
		if err != nil {
			return err
		}
		if horizon.IsZero() {
			horizon = ingest.DefaultHorizon(time.Now())
		}
		ranges, err := a.syncer().Gaps(horizon)
		if err != nil {
			return err
		}
		if len(ranges) == 0 {
			fmt.Printf("archive complete up to %s\n", horizon)
			return nil
		}
		days := 0
		for _, r := range ranges {
			days += r.Days()
			fmt.Printf("%s\t%d\n", r, r.Days())
		}
		fmt.Printf("%d ranges, %d days missing up to %s\n", len(ranges), days, horizon)
		return nil
	},
}

func init() {
	gapsCmd.Flags().StringVar(&gapsHorizon, "horizon", "", "Last date considered (default: tomorrow in Europe/Rome)")
}
