package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	queryuc "github.com/kailas-cloud/shortlist/internal/usecase/query"
)

func newQueryCmd(c *cli) *cobra.Command {
	var (
		text   string
		count  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "query <pool>",
		Short: "Ask a question about the best-matching documents of a pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), c, queryuc.Request{PoolID: args[0], Text: text, Count: count}, asJSON, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&text, "query", "q", "", "question to ask (required)")
	cmd.Flags().IntVarP(&count, "count", "n", 5, "number of candidates to consider")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	_ = cmd.MarkFlagRequired("query")
	return cmd
}

func runQuery(ctx context.Context, c *cli, req queryuc.Request, asJSON bool, out io.Writer) error {
	a, err := buildApp(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer a.close()

	res, err := a.query.Query(ctx, req)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	return printResult(out, res, asJSON)
}

func printResult(out io.Writer, res queryuc.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	if res.Status != queryuc.StatusAnswered {
		_, _ = fmt.Fprintf(out, "No answer: %s\n", res.Status)
		return nil
	}

	_, _ = fmt.Fprintln(out, "Candidates:")
	for _, cand := range res.Candidates {
		_, _ = fmt.Fprintf(out, "  %d. %-30s fused=%6.2f persisted=%6.2f query=%6.2f\n",
			cand.Rank, cand.Name, cand.Fused, cand.Persisted, cand.Fresh)
	}
	if res.Omitted > 0 {
		_, _ = fmt.Fprintf(out, "  (%d left out of the prompt by the budget)\n", res.Omitted)
	}
	_, _ = fmt.Fprintf(out, "\n%s\n", res.Answer)
	return nil
}
