package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ytget/yt-fetcher/internal/model"
)

func newHistoryCommand(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List finished downloads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runHistory(cmd.Context(), limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show")
	return cmd
}

func (a *app) runHistory(ctx context.Context, limit int) error {
	store, err := a.openHistory(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("history is disabled")
	}
	defer closeHistory(store, a.logger)

	records, err := store.List(ctx, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(a.out, a.texts.GetText(KeyNoHistory))
		return nil
	}
	return writeHistory(a.out, records)
}

func writeHistory(w io.Writer, records []model.TaskRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FINISHED\tSTATE\tKIND\tTOOK\tTITLE\tDETAIL")
	for _, rec := range records {
		detail := rec.Message
		if rec.ErrorKind != "" {
			detail = fmt.Sprintf("%s: %s", rec.ErrorKind, rec.Message)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			humanize.Time(rec.FinishedAt),
			rec.State,
			rec.Kind,
			rec.Elapsed().Round(100*time.Millisecond),
			rec.GetDisplayTitle(),
			detail,
		)
	}
	return tw.Flush()
}
