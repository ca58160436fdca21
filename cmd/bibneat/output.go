package main

import (
	"encoding/json"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// column describes one table column. WidthMax of 0 leaves the column unbounded.
type column struct {
	Header   string
	Numeric  bool
	WidthMax int
}

var (
	outcomeColumns = []column{
		{Header: "Key", WidthMax: 32},
		{Header: "Identifier"},
		{Header: "Status"},
		{Header: "Action"},
		{Header: "Published", WidthMax: 48},
	}
	entryColumns = []column{
		{Header: "#", Numeric: true},
		{Header: "Key", WidthMax: 32},
		{Header: "Title"},
		{Header: "arXiv"},
		{Header: "DOI"},
		{Header: "Source"},
		{Header: "Rev", Numeric: true},
	}
)

// renderTable lays rows out under columns, with title on its own line above
// the table. Short rows are padded and extra cells are dropped.
func renderTable(title string, columns []column, rows [][]string) string {
	if len(columns) == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(columns))
	configs := make([]table.ColumnConfig, len(columns))
	for i, col := range columns {
		header[i] = col.Header
		align := text.AlignLeft
		if col.Numeric {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
			WidthMax:    col.WidthMax,
		}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, cells := range rows {
		row := make(table.Row, len(columns))
		for i := range row {
			row[i] = ""
			if i < len(cells) {
				row[i] = cells[i]
			}
		}
		tw.AppendRow(row)
	}
	if title == "" {
		return tw.Render()
	}
	return title + "\n" + tw.Render()
}

// writeJSON prints v to stdout for scripting callers.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
