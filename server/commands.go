package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"choretrack/internal/chores"
	"choretrack/internal/config"
	"choretrack/internal/seed"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		// store.Open migrates.
		_, log, st, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer log.Sync()
		defer st.Close()
		log.Info("migrations applied", zap.String("driver", st.Driver()))
		return nil
	},
}

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load a family definition into an empty database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, log, st, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer log.Sync()
		defer st.Close()

		fam, err := seed.Default()
		if seedFile != "" {
			fam, err = seed.Load(seedFile)
		}
		if err != nil {
			return err
		}
		seeded, err := seed.Apply(cmd.Context(), st, fam)
		if err != nil {
			return err
		}
		if !seeded {
			fmt.Fprintln(cmd.OutOrStdout(), "database already has users, nothing seeded")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d users, %d templates\n", len(fam.Users), len(fam.Templates))
		return nil
	},
}

var clearTasksCmd = &cobra.Command{
	Use:   "clear-tasks",
	Short: "Delete every task instance",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, log, st, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer log.Sync()
		defer st.Close()

		n, err := st.DeleteAllInstances(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d task instances\n", n)
		return nil
	},
}

var statsMonth string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print monthly completion statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, st, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer log.Sync()
		defer st.Close()

		m, err := resolveMonth(cfg, statsMonth)
		if err != nil {
			return err
		}
		report, err := monthReport(cmd.Context(), st, m)
		if err != nil {
			return err
		}
		return printReport(cmd.OutOrStdout(), report)
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "", "family YAML file (default: built-in family)")
	statsCmd.Flags().StringVar(&statsMonth, "month", "", "month as YYYY-MM (default: current)")
}

func resolveMonth(cfg config.Config, v string) (chores.Month, error) {
	if v != "" {
		return chores.ParseMonth(v)
	}
	loc, err := cfg.Location()
	if err != nil {
		return chores.Month{}, err
	}
	return chores.DayOf(time.Now(), loc).Month(), nil
}

func printReport(w io.Writer, r statsReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Month %s\n", r.Month)
	fmt.Fprintln(tw, "USER\tDONE\tREQUIRED\tMOVES\tRATE")
	for _, s := range r.Users {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.0f%%\n", s.User.Name, s.Done, s.Required, s.Moves, s.CompletionRate)
	}
	if r.Champion != nil {
		fmt.Fprintf(tw, "champion\t%s\n", r.Champion.User.Name)
	}
	if r.Outsider != nil {
		fmt.Fprintf(tw, "outsider\t%s\n", r.Outsider.User.Name)
	}
	return tw.Flush()
}
