package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/iyulab/huntdesk/internal/esql"
	"github.com/iyulab/huntdesk/internal/hunt"
	"github.com/iyulab/huntdesk/internal/results"
	"github.com/iyulab/huntdesk/internal/sigma"
)

// queryFlags are the builder inputs shared by query and hunt.
type queryFlags struct {
	index   string
	where   []string
	sort    string
	limit   int
	dialect string
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.index, "index", "i", "", "index pattern (default from config)")
	cmd.Flags().StringArrayVarP(&f.where, "where", "w", nil, `filter "[and:|or:]field|OP|value" (repeatable)`)
	cmd.Flags().StringVarP(&f.sort, "sort", "s", "", `sort "field[:asc|desc]"`)
	cmd.Flags().IntVarP(&f.limit, "limit", "n", 0, "maximum hits (default from config)")
	cmd.Flags().StringVarP(&f.dialect, "dialect", "d", "esql", "query language: esql or kql")
}

func (f *queryFlags) request(a *app) (hunt.Request, error) {
	var req hunt.Request

	d, err := hunt.ParseDialect(f.dialect)
	if err != nil {
		return req, err
	}
	req.Dialect = d

	req.Query.Index = f.index
	if req.Query.Index == "" {
		req.Query.Index = a.cfg.Hunt.Index
	}
	req.Query.Limit = f.limit
	if req.Query.Limit <= 0 {
		req.Query.Limit = a.cfg.Hunt.Limit
	}

	for _, w := range f.where {
		c, err := esql.ParseCondition(w)
		if err != nil {
			return req, err
		}
		req.Query.Conditions = append(req.Query.Conditions, c)
	}

	if req.Query.SortField, req.Query.SortOrder, err = esql.ParseSort(f.sort); err != nil {
		return req, err
	}
	return req, nil
}

func newQueryCmd(a *app) *cobra.Command {
	var flags queryFlags

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Print the query built from filters without running it",
		Example: `  huntdesk query -w 'event.code|==|4625' -w 'or:user.name|LIKE|adm' -s @timestamp:desc
  huntdesk query -d kql -w 'host.name|==|ws01'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(a)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hunt.QueryText(req))
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newHuntCmd(a *app) *cobra.Command {
	var (
		flags   queryFlags
		format  string
		jqExpr  string
		outPath string
		noSigma bool
	)

	cmd := &cobra.Command{
		Use:   "hunt",
		Short: "Run a hunt against the backend and print the shaped hits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(a)
			if err != nil {
				return err
			}
			req.Projection = jqExpr

			format = strings.ToLower(format)
			switch format {
			case "table", "csv", "json":
			default:
				return fmt.Errorf("unsupported format %q (table, csv, json)", format)
			}

			var engine *sigma.Engine
			if !noSigma {
				if engine, err = sigma.NewWithDir(a.cfg.Hunt.RulesDir); err != nil {
					return err
				}
			}

			c := a.client()
			rep, err := hunt.New(c, c, engine).Run(cmd.Context(), req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				out = f
			}

			if err := writeReport(out, format, rep); err != nil {
				return err
			}

			stderr := cmd.ErrOrStderr()
			a.printer.Fprintf(stderr, "%d hits shown, %d total, backend took %d ms\n", len(rep.Hits), rep.Total, rep.Took)
			if len(rep.Matches) > 0 {
				a.printer.Fprintf(stderr, "\n%d Sigma rule matches:\n", len(rep.Matches))
				return renderMatches(stderr, rep.Matches)
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format: table, csv, json")
	cmd.Flags().StringVar(&jqExpr, "jq", "", "jq expression applied to each hit source")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write output to a file instead of stdout")
	cmd.Flags().BoolVar(&noSigma, "no-sigma", false, "skip Sigma rule evaluation")
	return cmd
}

func writeReport(w io.Writer, format string, rep *hunt.Report) error {
	if format == "json" {
		return results.WriteJSON(w, rep.Hits)
	}
	if len(rep.Hits) == 0 {
		if format == "table" {
			fmt.Fprintln(w, "No hits.")
		}
		return nil
	}

	var shaper results.Shaper
	shaper.Load(&results.Response{Hits: rep.Hits})
	if format == "csv" {
		return shaper.WriteCSV(w, rep.Hits)
	}
	return shaper.RenderTable(w, rep.Hits)
}

func renderMatches(w io.Writer, matches []sigma.Match) error {
	table := tablewriter.NewWriter(w)
	table.Header("Level", "Rule", "Index", "Hit")
	for _, m := range matches {
		if err := table.Append([]string{m.Level, m.RuleTitle, m.Index, m.HitID}); err != nil {
			return err
		}
	}
	return table.Render()
}
