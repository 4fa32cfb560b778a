package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Kartekeya-Sharma/Contract-Guard/config"
	"github.com/Kartekeya-Sharma/Contract-Guard/model"
	"github.com/Kartekeya-Sharma/Contract-Guard/service"
	"github.com/spf13/cobra"
)

func askCmd() *cobra.Command {
	var clausesFile string

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about previously analyzed clauses",
		Long: `Sends a question to the query service together with a clause list. The clause
file may be the output of "analyze --json" or a raw clause list in any shape the
analysis service returns.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd.Context(), appConfig, strings.Join(args, " "), clausesFile, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&clausesFile, "clauses", "", "JSON file holding the clauses to ask about")

	return cmd
}

func runAsk(ctx context.Context, cfg *config.Config, question, clausesFile string, out io.Writer) error {
	if cfg.Query.Endpoint == "" {
		return errors.New("query endpoint is not configured (use --query-endpoint or CONTRACTGUARD_QUERY_ENDPOINT)")
	}

	clauses, err := readClauses(clausesFile)
	if err != nil {
		return err
	}

	answer, err := service.NewQueryService(&cfg.Query).Ask(ctx, question, clauses)
	if err != nil {
		return &commandError{err: err}
	}

	fmt.Fprintln(out, answer.Text)
	return nil
}

// readClauses loads a clause list from path. An empty path means no clauses.
func readClauses(path string) ([]model.Clause, error) {
	if path == "" {
		return []model.Clause{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read clauses: %w", err)
	}

	normalized, err := service.NormalizeJSON(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse clauses in %s: %w", path, err)
	}
	return normalized.Clauses, nil
}
