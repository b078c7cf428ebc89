package dbcmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/crucial707/audit-search/cmd/cli/output"
	"github.com/crucial707/audit-search/internal/config"
	"github.com/crucial707/audit-search/internal/models"
	"github.com/crucial707/audit-search/internal/registry"
	"github.com/crucial707/audit-search/internal/repo"
	"github.com/crucial707/audit-search/internal/search"
)

// Search types accepted by --type.
const (
	typeStructured = "structured"
	typeTrigram    = "trigram"
	typeAuto       = "auto"
)

type searchOptions struct {
	Type    string
	Term    string
	Explain bool
	Limit   int
	JSON    bool
}

// searcher runs one search strategy, or the full dispatcher, and reports the
// generated SQL, optionally its plan, and the first rows.
type searcher struct {
	audit      *repo.AuditRepo
	resolver   *search.StructuredResolver
	similarity *search.SimilarityEngine
	dispatcher *search.Dispatcher
}

type searchReport struct {
	Type     string              `json:"type"`
	Term     string              `json:"term"`
	Strategy string              `json:"strategy"`
	SQL      string              `json:"sql,omitempty"`
	Plan     []string            `json:"plan,omitempty"`
	Total    int                 `json:"total"`
	Items    []models.AuditEntry `json:"items"`
	Messages []search.Message    `json:"messages"`
}

func searchCmd() *cobra.Command {
	opts := searchOptions{}

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Run an audit log search against the database and show how it executes",
		Example: `  auditsearch search --type structured --search "Person:42"
  auditsearch search --type trigram --search "toagna"
  auditsearch search --type trigram --search "john@example.com" --explain
  auditsearch search --type auto --search "jane smith"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch opts.Type {
			case typeStructured, typeTrigram, typeAuto:
			default:
				return fmt.Errorf("--type must be one of structured, trigram, auto (got %q)", opts.Type)
			}

			cfg := config.Load()
			if err := cfg.Validate(); err != nil {
				return err
			}
			database, err := connect(cfg)
			if err != nil {
				return err
			}
			defer database.Close()

			ctx := commandContext(cmd)
			types, err := registry.FromConfig(repo.NewContentTypeRepo(database), cfg)
			if err != nil {
				return err
			}
			if err := types.Reload(ctx); err != nil {
				return err
			}
			dispatcher, err := search.FromConfig(cfg, types)
			if err != nil {
				return err
			}

			s := &searcher{
				audit:      repo.NewAuditRepo(database, cfg.UserLoginField),
				resolver:   &search.StructuredResolver{Types: types, UserAliases: cfg.UserAliases},
				similarity: &search.SimilarityEngine{MinLength: cfg.SearchMinTermLength},
				dispatcher: dispatcher,
			}
			return s.run(ctx, cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Type, "type", "", "search type: structured (ModelName:ID), trigram, or auto (full dispatcher)")
	cmd.Flags().StringVar(&opts.Term, "search", "", "search term")
	cmd.Flags().BoolVar(&opts.Explain, "explain", false, "show EXPLAIN ANALYZE output")
	cmd.Flags().IntVar(&opts.Limit, "limit", 10, "number of results to show")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "print a JSON report")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("search")

	return cmd
}

func (s *searcher) run(ctx context.Context, w io.Writer, opts searchOptions) error {
	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	rec := &search.Recorder{}
	var msg search.Messenger = rec
	if !opts.JSON {
		fmt.Fprintf(w, "Testing %s search\nSearch term: '%s'\n\n", strings.ToUpper(opts.Type), opts.Term)
		msg = search.MessengerFunc(func(level search.Level, text string) {
			rec.Message(level, text)
			fmt.Fprintf(w, "[%s] %s\n", strings.ToUpper(string(level)), text)
		})
	}

	res, err := s.resolve(ctx, opts, msg)
	if err != nil {
		return err
	}

	report := searchReport{Type: opts.Type, Term: opts.Term, Strategy: res.Strategy, Items: []models.AuditEntry{}}
	if !res.Query.IsNone() {
		report.SQL, _ = s.audit.SQL(res.Query)
		if opts.Explain {
			if report.Plan, err = s.audit.Explain(ctx, res.Query); err != nil {
				return fmt.Errorf("explain: %w", err)
			}
		}
		if report.Total, err = s.audit.Count(ctx, res.Query); err != nil {
			return fmt.Errorf("count: %w", err)
		}
		if report.Total > 0 {
			items, err := s.audit.Find(ctx, res.Query, opts.Limit, 0)
			if err != nil {
				return fmt.Errorf("find: %w", err)
			}
			report.Items = items
		}
	}
	report.Messages = rec.Messages()
	if report.Messages == nil {
		report.Messages = []search.Message{}
	}

	if opts.JSON {
		return output.RenderJSON(w, report)
	}
	printReport(w, report, res, opts.Limit)
	return nil
}

func (s *searcher) resolve(ctx context.Context, opts searchOptions, msg search.Messenger) (search.Result, error) {
	base := repo.AllEntries()
	switch opts.Type {
	case typeStructured:
		sq, ok := search.Classify(opts.Term)
		if !ok {
			return search.Result{}, fmt.Errorf("%w: expected format ModelName:ID (e.g. Person:42)", search.ErrNotStructured)
		}
		return s.resolver.Resolve(ctx, sq, base, msg)
	case typeTrigram:
		res, err := s.similarity.Search(opts.Term, base)
		if errors.Is(err, search.ErrTermTooShort) {
			return search.Result{}, fmt.Errorf("search term must be at least %d characters", s.similarity.MinTermLength())
		}
		return res, err
	default:
		return s.dispatcher.Search(ctx, opts.Term, base, msg)
	}
}

func printReport(w io.Writer, r searchReport, res search.Result, limit int) {
	fmt.Fprintf(w, "Strategy: %s\n", r.Strategy)
	if res.Query.IsNone() {
		reason := "empty result"
		if res.Err != nil {
			reason = res.Err.Error()
		}
		fmt.Fprintf(w, "No results (%s).\n", reason)
		return
	}

	fmt.Fprintf(w, "\nGenerated SQL (template):\n%s\n", r.SQL)
	if len(r.Plan) > 0 {
		fmt.Fprintln(w, "\nEXPLAIN ANALYZE:")
		for _, line := range r.Plan {
			fmt.Fprintln(w, line)
		}
	}

	fmt.Fprintf(w, "\nResults (showing first %d):\nTotal matches: %d\n", limit, r.Total)
	if r.Total == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	scored := res.Query.Scored()
	headers := []string{"#", "Timestamp", "Action", "Object"}
	if scored {
		headers = append(headers, "object_repr sim", "changes sim")
	}
	rows := make([][]interface{}, 0, len(r.Items))
	for i, e := range r.Items {
		row := []interface{}{i + 1, e.Timestamp.Format(time.DateTime), e.Action.String(), e.ObjectRepr}
		if scored && e.Similarity != nil {
			row = append(row, fmt.Sprintf("%.4f", e.Similarity.ObjectRepr), fmt.Sprintf("%.4f", e.Similarity.Changes))
		}
		rows = append(rows, row)
	}
	output.RenderTable(w, headers, rows)

	if r.Total > limit {
		fmt.Fprintf(w, "\n... and %d more results\n", r.Total-limit)
	}
}
