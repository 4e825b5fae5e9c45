package results

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

// MaxColumns caps the number of displayed columns.
const MaxColumns = 10

// EmptyCell is shown for absent or null values.
const EmptyCell = "-"

// Shaper derives the display column set from search responses. The column
// set is sticky: a response with no hits keeps the previous columns.
type Shaper struct {
	columns []string
}

// Load updates the column set from resp and returns it.
func (s *Shaper) Load(resp *Response) []string {
	if resp == nil || len(resp.Hits) == 0 {
		return s.columns
	}
	keys := resp.Hits[0].Keys()
	if len(keys) > MaxColumns {
		keys = keys[:MaxColumns]
	}
	s.columns = append([]string(nil), keys...)
	return s.columns
}

// Columns returns the current display columns.
func (s *Shaper) Columns() []string {
	return s.columns
}

// CellValue renders one cell for display: EmptyCell for nil/absent,
// compact JSON for objects and arrays, plain text otherwise.
func CellValue(h Hit, column string) string {
	v, ok := h.Source[column]
	if !ok || v == nil {
		return EmptyCell
	}
	return stringify(v)
}

// csvCell is CellValue without the display placeholder.
func csvCell(h Hit, column string) string {
	v, ok := h.Source[column]
	if !ok || v == nil {
		return ""
	}
	return stringify(v)
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case json.Number:
		return x.String()
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	default:
		return fmt.Sprint(x)
	}
}

// Rows renders hits as display rows over the current columns.
func (s *Shaper) Rows(hits []Hit) [][]string {
	rows := make([][]string, 0, len(hits))
	for _, h := range hits {
		row := make([]string, len(s.columns))
		for i, c := range s.columns {
			row[i] = CellValue(h, c)
		}
		rows = append(rows, row)
	}
	return rows
}

// WriteCSV writes an RFC 4180 CSV export of hits over the current columns.
func (s *Shaper) WriteCSV(w io.Writer, hits []Hit) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(s.columns); err != nil {
		return fmt.Errorf("csv header: %w", err)
	}
	for _, h := range hits {
		row := make([]string, len(s.columns))
		for i, c := range s.columns {
			row[i] = csvCell(h, c)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("csv row %s: %w", h.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the raw sources as a pretty-printed JSON array.
func WriteJSON(w io.Writer, hits []Hit) error {
	sources := make([]any, 0, len(hits))
	for _, h := range hits {
		sources = append(sources, h.orderedSource())
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(sources)
}

// RenderTable prints hits as a text table over the current columns.
func (s *Shaper) RenderTable(w io.Writer, hits []Hit) error {
	table := tablewriter.NewWriter(w)
	header := make([]any, len(s.columns))
	for i, c := range s.columns {
		header[i] = c
	}
	table.Header(header...)
	for _, row := range s.Rows(hits) {
		if err := table.Append(row); err != nil {
			return fmt.Errorf("table row: %w", err)
		}
	}
	return table.Render()
}
