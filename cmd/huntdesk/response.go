package main

import (
	"fmt"
	"path/filepath"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/iyulab/huntdesk/internal/backend"
	"github.com/iyulab/huntdesk/internal/releases"
)

func newUploadCmd(a *app) *cobra.Command {
	var caseID string

	cmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload evidence files to a case, one at a time",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
			lastPct := -1
			progress := func(p backend.UploadProgress) {
				if p.Total <= 0 {
					return
				}
				pct := int(p.Sent * 100 / p.Total)
				if pct/10 == lastPct/10 && pct < 100 {
					return
				}
				lastPct = pct
				fmt.Fprintf(stderr, "\r%s %3d%% (%s / %s)", p.File, pct,
					releases.FormatBytes(p.Sent), releases.FormatBytes(p.Total))
				if pct == 100 {
					fmt.Fprintln(stderr)
					lastPct = -1
				}
			}

			res := a.client().UploadEvidence(cmd.Context(), caseID, args, progress)

			failed := 0
			for _, r := range res {
				if r.Err != nil {
					failed++
					fmt.Fprintf(out, "FAIL %s: %v\n", filepath.Base(r.Path), r.Err)
					continue
				}
				fmt.Fprintf(out, "OK   %s -> %s\n", filepath.Base(r.Path), r.Evidence.ID)
			}
			a.printer.Fprintf(out, "%d of %d files uploaded\n", len(res)-failed, len(res))
			if failed > 0 {
				return fmt.Errorf("%d uploads failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&caseID, "case", "", "case ID to attach the evidence to")
	_ = cmd.MarkFlagRequired("case")
	return cmd
}

func newIsolateCmd(a *app) *cobra.Command {
	var caseID, reason string

	cmd := &cobra.Command{
		Use:   "isolate <host>",
		Short: "Network-isolate a host through the response integration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			act, err := a.client().IsolateHost(cmd.Context(), backend.IsolateRequest{
				Hostname: args[0],
				CaseID:   caseID,
				Reason:   reason,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Isolation of %s requested: action %s (%s)\n", args[0], act.ID, act.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&caseID, "case", "", "case ID to record the action against")
	cmd.Flags().StringVar(&reason, "reason", "", "reason shown in the audit trail")
	return cmd
}

func newCasesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cases",
		Short: "List or open investigation cases",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List cases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cases, err := a.client().ListCases(cmd.Context())
			if err != nil {
				return err
			}
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("ID", "Title", "Severity", "Status")
			for _, c := range cases {
				if err := table.Append([]string{c.ID, c.Title, c.Severity, c.Status}); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}

	var in backend.Case
	create := &cobra.Command{
		Use:   "create <title>",
		Short: "Open a new case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Title = args[0]
			c, err := a.client().CreateCase(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created case %s\n", c.ID)
			return nil
		},
	}
	create.Flags().StringVar(&in.Description, "description", "", "case description")
	create.Flags().StringVar(&in.Severity, "severity", "medium", "low, medium, high, or critical")

	cmd.AddCommand(list, create)
	return cmd
}

func newGraphCmd(a *app) *cobra.Command {
	var req backend.GraphRequest

	cmd := &cobra.Command{
		Use:   "graph <seed>...",
		Short: "Expand indicators or entities into a relationship graph",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Seeds = args
			g, err := a.client().BuildGraph(cmd.Context(), req)
			if err != nil {
				return err
			}
			labels := make(map[string]string, len(g.Nodes))
			for _, n := range g.Nodes {
				labels[n.ID] = n.Label
			}

			out := cmd.OutOrStdout()
			a.printer.Fprintf(out, "%d nodes, %d edges\n", len(g.Nodes), len(g.Edges))
			for _, e := range g.Edges {
				fmt.Fprintf(out, "  %s -[%s]-> %s\n", nodeLabel(labels, e.From), e.Relation, nodeLabel(labels, e.To))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&req.CaseID, "case", "", "case ID to scope the graph to")
	cmd.Flags().IntVar(&req.Depth, "depth", 2, "expansion depth")
	return cmd
}

func nodeLabel(labels map[string]string, id string) string {
	if l, ok := labels[id]; ok && l != "" {
		return l
	}
	return id
}
