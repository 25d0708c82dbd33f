package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/hazz-dev/dnsswitch/internal/selector"
	"github.com/hazz-dev/dnsswitch/internal/storage"
)

type statusStore interface {
	Recent(ctx context.Context, limit int) ([]storage.Entry, error)
	LastStatus(ctx context.Context) (*storage.Entry, error)
}

func executeStatus(cmd *cobra.Command, db statusStore, limit int) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	last, err := db.LastStatus(ctx)
	if err != nil {
		return fmt.Errorf("querying status: %w", err)
	}
	entries, err := db.Recent(ctx, limit)
	if err != nil {
		return fmt.Errorf("querying journal: %w", err)
	}

	if last == nil && len(entries) == 0 {
		fmt.Fprintln(out, "No journal entries. Run 'dnsswitch serve' first.")
		return nil
	}

	if last != nil {
		p := selector.Pair{Primary: last.Primary, Secondary: last.Secondary}
		fmt.Fprintf(out, "%s (since %s)\n", p, last.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	} else {
		fmt.Fprintln(out, "No resolver pair recorded yet.")
	}

	if len(entries) == 0 {
		return nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Time", "Kind", "Text"})
	for _, e := range entries {
		t.AppendRow(table.Row{e.CreatedAt.Local().Format("2006-01-02 15:04:05"), e.Kind, e.Text})
	}
	fmt.Fprintln(out, t.Render())
	return nil
}
