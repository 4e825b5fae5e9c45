package results

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeResponse(t *testing.T, raw string) *Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal([]byte(raw), &resp))
	return &resp
}

const sampleResponse = `{
  "total": 2,
  "took": 7,
  "hits": [
    {"id": "a1", "index": "logs-2024", "source": {
      "@timestamp": "2024-05-01T10:00:00Z",
      "host.name": "ws01",
      "process.name": "powershell.exe",
      "process.args": ["-enc", "SQBFAFgA"],
      "event.code": 4688,
      "user": {"name": "bob", "domain": "CORP"},
      "signed": false,
      "parent": null
    }},
    {"id": "a2", "index": "logs-2024", "source": {
      "@timestamp": "2024-05-01T10:00:05Z",
      "host.name": "ws02",
      "process.name": "cmd.exe, \"quoted\""
    }}
  ]
}`

func TestHit_UnmarshalPreservesKeyOrder(t *testing.T) {
	resp := decodeResponse(t, sampleResponse)
	require.Len(t, resp.Hits, 2)
	assert.Equal(t, []string{
		"@timestamp", "host.name", "process.name", "process.args",
		"event.code", "user", "signed", "parent",
	}, resp.Hits[0].Keys())
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, 7, resp.Took)
	assert.Equal(t, "a1", resp.Hits[0].ID)
}

func TestShaper_ColumnsCappedAtTen(t *testing.T) {
	var sb strings.Builder
	sb.WriteString(`{"hits":[{"source":{`)
	for i := 0; i < 14; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(`"f` + string(rune('a'+i)) + `":1`)
	}
	sb.WriteString(`}}]}`)

	var s Shaper
	cols := s.Load(decodeResponse(t, sb.String()))
	require.Len(t, cols, MaxColumns)
	assert.Equal(t, "fa", cols[0])
	assert.Equal(t, "fj", cols[9])
}

func TestShaper_EmptyHitsKeepsPreviousColumns(t *testing.T) {
	var s Shaper
	assert.Empty(t, s.Load(&Response{}))

	s.Load(decodeResponse(t, sampleResponse))
	before := s.Columns()
	after := s.Load(&Response{Hits: nil})
	assert.Equal(t, before, after)
}

func TestCellValue(t *testing.T) {
	h := decodeResponse(t, sampleResponse).Hits[0]
	tests := []struct {
		column string
		want   string
	}{
		{"host.name", "ws01"},
		{"event.code", "4688"},
		{"signed", "false"},
		{"parent", EmptyCell},
		{"missing", EmptyCell},
		{"process.args", `["-enc","SQBFAFgA"]`},
		{"user", `{"domain":"CORP","name":"bob"}`},
	}
	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			assert.Equal(t, tt.want, CellValue(h, tt.column))
		})
	}
}

func TestShaper_WriteCSVEscapes(t *testing.T) {
	resp := decodeResponse(t, sampleResponse)
	var s Shaper
	s.columns = []string{"host.name", "process.name", "parent"}

	var buf bytes.Buffer
	require.NoError(t, s.WriteCSV(&buf, resp.Hits))

	want := "host.name,process.name,parent\n" +
		"ws01,powershell.exe,\n" +
		"ws02,\"cmd.exe, \"\"quoted\"\"\",\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteJSON_PrettyAndOrdered(t *testing.T) {
	resp := decodeResponse(t, sampleResponse)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, resp.Hits[1:]))

	want := `[
  {
    "@timestamp": "2024-05-01T10:00:05Z",
    "host.name": "ws02",
    "process.name": "cmd.exe, \"quoted\""
  }
]
`
	assert.Equal(t, want, buf.String())
}

func TestShaper_RenderTable(t *testing.T) {
	resp := decodeResponse(t, sampleResponse)
	var s Shaper
	s.Load(resp)

	var buf bytes.Buffer
	require.NoError(t, s.RenderTable(&buf, resp.Hits))
	out := buf.String()
	assert.Contains(t, out, "ws01")
	assert.Contains(t, out, "ws02")
	assert.Contains(t, out, "powershell.exe")
}

func TestNewHit_OrdersKnownKeysFirst(t *testing.T) {
	h := NewHit(map[string]any{"b": 1, "a": 2, "z": 3}, "z", "missing")
	assert.Equal(t, []string{"z", "a", "b"}, h.Keys())
}

func TestHit_MarshalRoundTripKeepsOrder(t *testing.T) {
	h := decodeResponse(t, sampleResponse).Hits[1]
	b, err := json.Marshal(h)
	require.NoError(t, err)
	assert.True(t, strings.Index(string(b), "@timestamp") < strings.Index(string(b), "process.name"))
}
