package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "primesctl",
		Short: "Operator tooling for the primes API",
		Long: `primesctl works on the same configuration as the API server (.env and environment).

Available commands:
  week      - Print the ISO week of a date
  shift     - Move an ISO week forwards or backwards
  hash-code - Hash an admin code for ADMIN_CODE_HASH
  seed      - Load agents and prime types from a YAML file`,
		SilenceUsage: true,
	}
	root.AddCommand(newWeekCmd(), newShiftCmd(), newHashCodeCmd(), newSeedCmd())
	return root
}
