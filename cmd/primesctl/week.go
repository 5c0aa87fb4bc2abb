package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/primes-api/pkg/isoweek"
)

const displayLayout = "02/01/2006"

func newWeekCmd() *cobra.Command {
	var tz string
	cmd := &cobra.Command{
		Use:   "week [YYYY-MM-DD]",
		Short: "Print the ISO week containing a date (today by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var day isoweek.Date
			if len(args) == 1 {
				parsed, err := isoweek.ParseDate(args[0])
				if err != nil {
					return err
				}
				day = parsed
			} else {
				loc, err := time.LoadLocation(tz)
				if err != nil {
					return fmt.Errorf("load timezone %q: %w", tz, err)
				}
				day = isoweek.Today(time.Now().In(loc))
			}
			printWeek(cmd, isoweek.KeyOf(day))
			return nil
		},
	}
	cmd.Flags().StringVar(&tz, "tz", "Europe/Paris", "timezone used for today")
	return cmd
}

func newShiftCmd() *cobra.Command {
	var fixed53 bool
	cmd := &cobra.Command{
		Use:   "shift YYYY-Www DELTA",
		Short: "Move a week by DELTA weeks, crossing years as needed",
		// DELTA may be negative; pflag would read "-1" as a shorthand.
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, raw []string) error {
			args, help, err := splitShiftArgs(raw, &fixed53)
			if err != nil {
				return err
			}
			if help {
				return cmd.Help()
			}
			if len(args) != 2 {
				return fmt.Errorf("accepts 2 arg(s), received %d", len(args))
			}
			key, err := isoweek.ParseWeekKey(args[0])
			if err != nil {
				return err
			}
			delta, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid delta %q: %w", args[1], err)
			}
			mode := isoweek.WrapActual
			if fixed53 {
				mode = isoweek.WrapFixed53
			}
			printWeek(cmd, isoweek.ShiftWeek(key, delta, mode))
			return nil
		},
	}
	cmd.Flags().BoolVar(&fixed53, "fixed53", false, "wrap at week 53 for every year")
	return cmd
}

// splitShiftArgs separates --fixed53 and help flags from positionals. Anything after "--"
// and any signed integer is positional.
func splitShiftArgs(raw []string, fixed53 *bool) ([]string, bool, error) {
	args := make([]string, 0, len(raw))
	for i, arg := range raw {
		switch {
		case arg == "--":
			return append(args, raw[i+1:]...), false, nil
		case arg == "-h" || arg == "--help":
			return nil, true, nil
		case arg == "--fixed53":
			*fixed53 = true
		case strings.HasPrefix(arg, "--fixed53="):
			v, err := strconv.ParseBool(strings.TrimPrefix(arg, "--fixed53="))
			if err != nil {
				return nil, false, fmt.Errorf("invalid argument %q for \"--fixed53\" flag: %w", arg, err)
			}
			*fixed53 = v
		case strings.HasPrefix(arg, "-") && len(arg) > 1:
			if _, err := strconv.Atoi(arg); err != nil {
				return nil, false, fmt.Errorf("unknown flag: %s", arg)
			}
			args = append(args, arg)
		default:
			args = append(args, arg)
		}
	}
	return args, false, nil
}

func printWeek(cmd *cobra.Command, key isoweek.WeekKey) {
	start, end := isoweek.Range(key)
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s → %s\n", key, start.Format(displayLayout), end.AddDays(-1).Format(displayLayout))
}
