package core

import (
	"github.com/JonMunkholm/csvtable/internal/table"
)

// DefaultPreviewRows is the preview size used when none is requested.
const DefaultPreviewRows = 20

// Preview is the head of a table rendered as text.
type Preview struct {
	Info      TableInfo  `json:"info"`
	Header    []string   `json:"header"`
	Rows      [][]string `json:"rows"`
	Truncated bool       `json:"truncated"`
}

// Preview returns up to limit rows of a stored table.
func (s *Service) Preview(id string, limit int) (*Preview, error) {
	t, info, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	return BuildPreview(t, info, limit), nil
}

// BuildPreview renders the first limit rows of t. A non-positive limit
// selects DefaultPreviewRows.
func BuildPreview(t *table.Table, info TableInfo, limit int) *Preview {
	if limit <= 0 {
		limit = DefaultPreviewRows
	}
	rows := t.Rows()
	p := &Preview{
		Info:      info,
		Header:    t.ColumnNames(),
		Truncated: len(rows) > limit,
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}
	p.Rows = make([][]string, len(rows))
	for i, r := range rows {
		p.Rows[i] = formatRow(r)
	}
	return p
}

func formatRow(r table.Row) []string {
	out := make([]string, len(r))
	for i, v := range r {
		out[i] = table.FormatValue(v)
	}
	return out
}
