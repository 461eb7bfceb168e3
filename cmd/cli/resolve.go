package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"pun-archive/internal/calendar"
	"pun-archive/internal/model"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <date> [hour]",
	Short: "Show the local time, DST flag and band of a market hour, or of every hour of a date",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(_ *cobra.Command, args []string) error {
		date, err := model.ParseDate(args[0])
		if err != nil {
			return err
		}
		holidays := calendar.ItalianHolidays(date.Year)
		n := calendar.HoursInDay(date)

		hours := make([]int, 0, n)
		if len(args) == 2 {
			h, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("hour must be an integer: %w", err)
			}
			hours = append(hours, h)
		} else {
			for h := 1; h <= n; h++ {
				hours = append(hours, h)
			}
		}

		fmt.Printf("%s has %d market hours\n", date, n)
		for _, h := range hours {
			res, err := calendar.Resolve(date, h)
			if err != nil {
				return err
			}
			fmt.Printf("%2d  %s  dst=%-5v %s\n", h, res.Local.Format(time.RFC3339), res.DST, calendar.Classify(date, h, holidays))
		}
		return nil
	},
}
