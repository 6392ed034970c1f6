package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/arv-anshul/hockey/lib/configutil"
	"github.com/arv-anshul/hockey/lib/telemetry"
	"github.com/arv-anshul/hockey/services/harvest"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	verbose    *bool
	domain     *string
	dataDir    *string
	configPath *string
	views      *string
)

func init() {
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging.")
	domain = rootCmd.Flags().String("domain", "", "Override the scraped host.")
	dataDir = rootCmd.Flags().String("data", "", "Override the output data directory.")
	views = rootCmd.Flags().String("views", "", "Competitions views to crawl: upcoming, previous, inprogress or all.")
	configPath = rootCmd.Flags().String("config", "config.json5", "Path to the configuration file.")
}

var rootCmd = &cobra.Command{
	Use:   "hockey <competition id>",
	Short: "hockey scrapes competitions, teams, matches and players off an altiusrt results site.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		competitionID, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("competition id must be an integer, got %q", args[0])
		}

		telemetry.InitSlog(*verbose)

		// a missing config file just means defaults plus flags
		cfg, err := configutil.ReadConfig[harvest.Config](*configPath)
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("read config: %w", err)
		}
		if *domain != "" {
			cfg.Domain = *domain
		}
		if *dataDir != "" {
			cfg.DataDir = *dataDir
		}
		if *views != "" {
			cfg.Views = *views
		}

		// flag errors above should print usage, harvest errors should not
		cmd.SilenceUsage = true

		summary, err := harvest.Run(cmd.Context(), cfg, competitionID)
		if err != nil {
			return err
		}

		renderSummary(summary)
		return nil
	},
}

func renderSummary(summary harvest.Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Stage", "Status", "Requests", "Records", "Output"})

	for _, st := range summary.Stages {
		status := "done"
		if st.Skipped {
			status = "skipped"
		}
		t.AppendRow(table.Row{st.Stage, status, st.Requests, st.Records, st.Output})
	}

	t.SetStyle(table.StyleRounded)
	t.Render()
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
