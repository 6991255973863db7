// Package output renders CLI listings (queue jobs, the model catalog) as
// borderless left-aligned tables.
package output

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// TableData collects rows for one listing.
type TableData struct {
	headers []string
	rows    [][]string
}

// NewTableData creates a table with the given column headers.
func NewTableData(headers ...string) *TableData {
	return &TableData{headers: headers}
}

// AddRow appends one row. Callers pass cells in header order.
func (t *TableData) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// PrintTable renders the table to w in the CLI house style: no borders,
// no separators, two-space padding.
func PrintTable(w io.Writer, data *TableData) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader(data.headers)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	for _, row := range data.rows {
		table.Append(row)
	}
	table.Render()
	return nil
}
