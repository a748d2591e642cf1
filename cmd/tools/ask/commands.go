package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"insight-agents/internal/app"
	"insight-agents/internal/common/config"
	"insight-agents/internal/common/database"
	"insight-agents/internal/common/logger"
	"insight-agents/internal/history"
	orchestratequery "insight-agents/internal/workers/ai-conversation/orchestrate-query"
	"insight-agents/internal/models"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{}
	var propertyID, spreadsheetID string
	var refresh bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about GA4 traffic or the SEO audit sheet",
		Example: `  ask "Top 5 pages by page views in the last 7 days" --property 516821164
  ask "Which URLs do not use HTTPS?" --spreadsheet 1AbC...`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			log := logger.NewStructured(opts.logLevel, "console")
			ctx := cmd.Context()

			a, err := app.Build(ctx, cfg, log, app.Options{ServiceName: "ask"})
			if err != nil {
				return err
			}
			defer a.Close()

			if refresh && a.SheetCache != nil {
				id := spreadsheetID
				if id == "" {
					id = cfg.Google.DefaultSpreadsheetID
				}
				if err := a.SheetCache.Invalidate(ctx, id); err != nil {
					log.Warn("could not drop cached sheet", map[string]interface{}{"error": err.Error()})
				}
			}

			q, err := orchestratequery.ParseQuery(mustJSON(models.Query{
				Query:         strings.Join(args, " "),
				PropertyID:    propertyID,
				SpreadsheetID: spreadsheetID,
			}))
			if err != nil {
				return err
			}

			resp := a.Orchestrator.ProcessQuery(ctx, *q)
			if err := printResponse(out, resp); err != nil {
				return err
			}
			if resp.Metadata.Intent == models.IntentUnknown {
				return fmt.Errorf("query failed: %s", resp.Error)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a config yaml (defaults to configs/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	cmd.Flags().StringVarP(&propertyID, "property", "p", "", "GA4 property id")
	cmd.Flags().StringVarP(&spreadsheetID, "spreadsheet", "s", "", "SEO audit spreadsheet id")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "drop the cached copy of the spreadsheet first")

	cmd.AddCommand(newHistoryCmd(opts, out))
	return cmd
}

func newHistoryCmd(opts *rootOptions, out io.Writer) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently answered queries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			if !cfg.Database.Postgres.Enabled {
				return fmt.Errorf("query history needs database.postgres.enabled")
			}

			pg, err := database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			defer pg.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			entries, err := history.NewStore(pg.DB).Recent(ctx, limit)
			if err != nil {
				return err
			}
			return printEntries(out, entries)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show")
	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func printResponse(w io.Writer, resp models.OrchestratorResponse) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func printEntries(w io.Writer, entries []history.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tINTENT\tOK\tMS\tQUERY")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%d\t%s\n",
			e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			e.Intent, e.Success, e.ProcessingTimeMs, truncate(e.Query, 60))
	}
	return tw.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func mustJSON(v interface{}) []byte {
	b, _ := json.Marshal(v)
	return b
}
