package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/soyeahso/forager/internal/config"
	"github.com/soyeahso/forager/internal/domain"
	"github.com/soyeahso/forager/internal/store"
	"github.com/spf13/cobra"
)

func newJournalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the turn journal",
	}

	cmd.AddCommand(newJournalListCmd(), newJournalInfoCmd())
	return cmd
}

// openJournal opens the configured journal, refusing to create a new one.
func openJournal(cmd *cobra.Command) (*store.DB, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return nil, err
	}
	path := cfg.Journal.Path
	if path == "" {
		path = paths.Journal
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("no journal at %s (enable journal.enabled and run serve)", path)
	}
	return store.Open(cmd.Context(), path, log)
}

func newJournalInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the journal's location, schema version and size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openJournal(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			v, err := db.SchemaVersion(ctx)
			if err != nil {
				return err
			}
			n, err := store.NewJournal(db).Count(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Path:    %s\n", db.Path())
			fmt.Fprintf(out, "Schema:  %d\n", v)
			fmt.Fprintf(out, "Turns:   %d\n", n)
			return nil
		},
	}
}

func newJournalListCmd() *cobra.Command {
	var (
		agentID int64
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent journaled turns, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openJournal(cmd)
			if err != nil {
				return err
			}
			defer db.Close()
			j := store.NewJournal(db)

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			var recs []store.TurnRecord
			if cmd.Flags().Changed("agent") {
				recs, err = j.ListByEntity(ctx, domain.EntityID(agentID), limit)
			} else {
				recs, err = j.Recent(ctx, limit)
			}
			if err != nil {
				return err
			}

			printTurns(cmd, recs)
			return nil
		},
	}

	cmd.Flags().Int64Var(&agentID, "agent", 0, "only turns of this agent (entity) id")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum turns to show (0 for all)")

	return cmd
}

func printTurns(cmd *cobra.Command, recs []store.TurnRecord) {
	if len(recs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No turns recorded.")
		return
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tAGENT\tSTATUS\tACTION\tHISTORY\tDURATION\tDETAIL")
	for _, r := range recs {
		action, detail := "-", r.Error
		if r.Action != nil {
			action = string(r.Action.NextAction)
			detail = r.Action.Reasoning
		}
		if len(detail) > 60 {
			detail = detail[:57] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			r.CreatedAt.Local().Format(time.DateTime),
			r.EntityID,
			r.Status,
			action,
			len(r.History),
			r.Duration.Round(time.Millisecond),
			detail,
		)
	}
	w.Flush()
}
