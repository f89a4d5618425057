package output

import (
	"github.com/jedib0t/go-pretty/v6/table"
)

// Table writes rows under header as a box table in text mode and a
// markdown table otherwise.
func (r *Renderer) Table(header []string, rows [][]string) {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)

	headerRow := make(table.Row, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	t.AppendHeader(headerRow)

	for _, cols := range rows {
		row := make(table.Row, len(cols))
		for i, c := range cols {
			row[i] = c
		}
		t.AppendRow(row)
	}

	if r.EffectiveMode() == ModeText {
		r.Println(t.Render())
		return
	}
	r.Println(t.RenderMarkdown())
}
