package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pun-archive/internal/analysis"
)

var (
	statsFrom    string
	statsTo      string
	statsBands   []string
	statsMonthly bool
	statsPeak    int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarise prices by band (F1/F2/F3)",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsFrom, "from", "", "First date (YYYY-MM-DD)")
	statsCmd.Flags().StringVar(&statsTo, "to", "", "Last date (YYYY-MM-DD)")
	statsCmd.Flags().StringSliceVar(&statsBands, "band", nil, "Only these bands (F1,F2,F3)")
	statsCmd.Flags().BoolVar(&statsMonthly, "monthly", false, "Also print per-month band means")
	statsCmd.Flags().IntVar(&statsPeak, "peak", 0, "Also print the N most expensive weekday/hour slots")
}

func runStats(_ *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	f, err := filterFlags(statsFrom, statsTo, statsBands)
	if err != nil {
		return err
	}
	records, err := loadEnriched(a, f)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("no records in the selected window")
		return nil
	}

	s := analysis.Summarize(records, analysis.Filter{})
	fmt.Printf("window %s .. %s\n", s.From, s.To)
	fmt.Printf("%-8s %-8s %-10s %-10s %-10s %-10s %-10s\n", "band", "count", "mean", "min", "max", "p05", "p95")
	printStats := func(name string, p analysis.PriceStats) {
		fmt.Printf("%-8s %-8d %-10.2f %-10.2f %-10.2f %-10.2f %-10.2f\n", name, p.Count, p.Mean, p.Min, p.Max, p.P05, p.P95)
	}
	for _, b := range s.Bands {
		if b.Count == 0 {
			continue
		}
		printStats(string(b.Band), b.PriceStats)
	}
	printStats("all", s.Overall)

	if statsMonthly {
		fmt.Println()
		fmt.Printf("%-8s %-6s %-8s %-10s\n", "month", "band", "count", "mean")
		for _, m := range analysis.MonthlyMeans(records, analysis.Filter{}) {
			fmt.Printf("%04d-%02d  %-6s %-8d %-10.2f\n", m.Year, int(m.Month), m.Band, m.Count, m.Mean)
		}
	}

	if statsPeak > 0 {
		ranked := analysis.RankByMean(analysis.WeeklyProfile(records, analysis.Filter{}))
		if statsPeak < len(ranked) {
			ranked = ranked[:statsPeak]
		}
		fmt.Println()
		fmt.Printf("%-4s %-10s %-6s %-10s\n", "rank", "weekday", "hour", "mean")
		for i, c := range ranked {
			fmt.Printf("%-4d %-10s %02d:00  %-10.2f\n", i+1, c.Weekday, c.Hour, c.Mean)
		}
	}
	return nil
}
