package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/iyulab/huntdesk/internal/hunt"
	"github.com/iyulab/huntdesk/internal/indicators"
	"github.com/iyulab/huntdesk/internal/results"
)

func newIndicatorsCmd(a *app) *cobra.Command {
	var enrich bool

	cmd := &cobra.Command{
		Use:   "indicators <file|->",
		Short: "Extract IPs, hashes, and domains from hit sources",
		Long: `Reads a hit source object, an array of sources, or a search response
({"hits": [...]}) and lists the enrichable indicators it contains.
Use "-" to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			sources, err := loadSources(data)
			if err != nil {
				return err
			}
			inds := extractAll(sources)

			out := cmd.OutOrStdout()
			if len(inds) == 0 {
				fmt.Fprintln(out, hunt.NoIndicatorsMessage)
				return nil
			}

			table := tablewriter.NewWriter(out)
			if !enrich {
				table.Header("Type", "Value")
				for _, ind := range inds {
					if err := table.Append([]string{string(ind.Type), ind.Value}); err != nil {
						return err
					}
				}
				return table.Render()
			}

			enr, err := a.client().EnrichAll(cmd.Context(), inds)
			if err != nil {
				return err
			}
			table.Header("Type", "Value", "Verdict", "Score", "Tags")
			for _, e := range enr {
				verdict := e.Verdict
				if e.Error != "" {
					verdict += " (" + e.Error + ")"
				}
				row := []string{string(e.Indicator.Type), e.Indicator.Value, verdict, strconv.Itoa(e.Score), strings.Join(e.Tags, ",")}
				if err := table.Append(row); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}
	cmd.Flags().BoolVarP(&enrich, "enrich", "e", false, "look indicators up against the enrichment service")
	return cmd
}

func readInput(stdin io.Reader, arg string) ([]byte, error) {
	if arg == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}

// loadSources accepts a search response, an array of sources, or one source.
func loadSources(data []byte) ([]map[string]any, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("input is empty")
	}

	if data[0] == '[' {
		var list []map[string]any
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("decode source array: %w", err)
		}
		return list, nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	if _, ok := probe["hits"]; ok {
		var resp results.Response
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, fmt.Errorf("decode search response: %w", err)
		}
		sources := make([]map[string]any, 0, len(resp.Hits))
		for _, h := range resp.Hits {
			sources = append(sources, h.Source)
		}
		return sources, nil
	}

	var src map[string]any
	if err := json.Unmarshal(data, &src); err != nil {
		return nil, fmt.Errorf("decode source: %w", err)
	}
	return []map[string]any{src}, nil
}

// extractAll merges the indicators of every source, keeping first-seen order.
func extractAll(sources []map[string]any) []indicators.Indicator {
	seen := make(map[string]bool)
	out := []indicators.Indicator{}
	for _, src := range sources {
		for _, ind := range indicators.Extract(src) {
			if !seen[ind.Key()] {
				seen[ind.Key()] = true
				out = append(out, ind)
			}
		}
	}
	return out
}
