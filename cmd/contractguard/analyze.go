package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/Kartekeya-Sharma/Contract-Guard/config"
	"github.com/Kartekeya-Sharma/Contract-Guard/model"
	"github.com/Kartekeya-Sharma/Contract-Guard/service"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

type analyzeOptions struct {
	Questions  []string
	JSON       bool
	NoProgress bool
}

// analyzeReport is the --json output. Its clauses field is also what ask
// --clauses reads back.
type analyzeReport struct {
	Document       model.Document      `json:"document"`
	Clauses        []model.Clause      `json:"clauses"`
	SkippedRecords int                 `json:"skipped_records"`
	Aggregate      model.AggregateView `json:"aggregate"`
	Answers        []answerReport      `json:"answers,omitempty"`
}

// commandError prints the user-facing message of a service error and keeps
// the error itself available to errors.Is.
type commandError struct {
	err error
}

func (e *commandError) Error() string {
	return fmt.Sprintf("%s [%s]", service.UserMessage(e.err), service.Code(e.err))
}

func (e *commandError) Unwrap() error {
	return e.err
}

type answerReport struct {
	Question string `json:"question"`
	Answer   string `json:"answer,omitempty"`
	Error    string `json:"error,omitempty"`
}

func analyzeCmd() *cobra.Command {
	var opts analyzeOptions

	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Analyze a contract document",
		Long: `Validates the document against the configured size and type limits, uploads it
to the analysis service and prints the extracted clauses with a risk summary.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), appConfig, args[0], opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringArrayVar(&opts.Questions, "ask", nil, "question to ask about the clauses once analysis succeeds (repeatable)")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "print the result as JSON")
	cmd.Flags().BoolVar(&opts.NoProgress, "no-progress", false, "do not show the upload progress bar")

	return cmd
}

func runAnalyze(ctx context.Context, cfg *config.Config, path string, opts analyzeOptions, out, errOut io.Writer) error {
	if cfg.Analysis.Endpoint == "" {
		return errors.New("analysis endpoint is not configured (use --analysis-endpoint or CONTRACTGUARD_ANALYSIS_ENDPOINT)")
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open document: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat document: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}

	doc := model.Document{
		Filename:  filepath.Base(path),
		Size:      info.Size(),
		MediaType: model.MediaTypeForFilename(path),
	}

	lc := service.NewLifecycle(service.NewAnalysisService(&cfg.Analysis), service.PolicyFromConfig(&cfg.Analysis))
	if !opts.JSON && !opts.NoProgress {
		watchProgress(lc, errOut, doc.Filename)
	}

	snap, err := lc.Submit(ctx, doc, f)
	if err != nil {
		return &commandError{err: err}
	}

	report := analyzeReport{
		Document:       doc,
		Clauses:        snap.Clauses,
		SkippedRecords: snap.SkippedRecords,
		Aggregate:      service.Aggregate(snap.Clauses),
	}

	if len(opts.Questions) > 0 {
		if cfg.Query.Endpoint == "" {
			return errors.New("query endpoint is not configured (use --query-endpoint or CONTRACTGUARD_QUERY_ENDPOINT)")
		}
		asker := service.NewQueryService(&cfg.Query)
		for _, q := range opts.Questions {
			report.Answers = append(report.Answers, askOne(ctx, asker, q, snap.Clauses))
		}
	}

	if opts.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printReport(out, report)
	return nil
}

// watchProgress renders upload progress on w until the document is sent.
func watchProgress(lc *service.Lifecycle, w io.Writer, filename string) {
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(fmt.Sprintf("[cyan][bold]Uploading[reset] %s", filename)),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)

	analyzing := false
	lc.Subscribe(func(s service.Snapshot) {
		switch s.State {
		case model.StateUploading:
			if err := bar.Set(s.Progress); err != nil {
				slog.Warn("failed to update progress bar", "error", err)
			}
		case model.StateAnalyzing:
			if analyzing {
				return
			}
			analyzing = true
			if err := bar.Set(100); err != nil {
				slog.Warn("failed to update progress bar", "error", err)
			}
			fmt.Fprintln(w, "Analyzing...")
		}
	})
}

func askOne(ctx context.Context, asker *service.QueryService, question string, clauses []model.Clause) answerReport {
	answer, err := asker.Ask(ctx, question, clauses)
	if err != nil {
		slog.Warn("query failed", "question", question, "code", service.Code(err), "error", err)
		return answerReport{Question: question, Error: service.UserMessage(err)}
	}
	return answerReport{Question: question, Answer: answer.Text}
}

func printReport(w io.Writer, r analyzeReport) {
	fmt.Fprintf(w, "%s: %d clauses, %d high risk, %d clause types\n",
		r.Document.Filename, r.Aggregate.Total, r.Aggregate.HighRisk, r.Aggregate.UniqueTypes)
	if r.SkippedRecords > 0 {
		fmt.Fprintf(w, "%d malformed records skipped\n", r.SkippedRecords)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "RISK\tCOUNT")
	for _, b := range r.Aggregate.RiskBuckets() {
		fmt.Fprintf(tw, "%s\t%d\n", b.Risk, b.Count)
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "TYPE\tCOUNT")
	for _, tc := range r.Aggregate.CountsByType {
		fmt.Fprintf(tw, "%s\t%d\n", tc.Type, tc.Count)
	}
	tw.Flush()

	for i, c := range r.Clauses {
		fmt.Fprintf(w, "\n%d. [%s] %s\n", i+1, c.Risk, c.Type)
		fmt.Fprintf(w, "   %s\n", c.Text)
		if c.Explanation != "" {
			fmt.Fprintf(w, "   %s\n", c.Explanation)
		}
		for _, concern := range c.Concerns {
			fmt.Fprintf(w, "   - %s\n", concern)
		}
	}

	for _, a := range r.Answers {
		fmt.Fprintf(w, "\nQ: %s\n", a.Question)
		if a.Error != "" {
			fmt.Fprintf(w, "error: %s\n", a.Error)
			continue
		}
		fmt.Fprintf(w, "A: %s\n", a.Answer)
	}
}
