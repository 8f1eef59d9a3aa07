// Package table provides the in-memory tabular structure shared by the CSV
// loader, the CSV writer and the merger.
//
// A Table is an ordered list of named, typed columns plus an ordered list of
// rows. Every row carries exactly one cell per column. Tables are not safe
// for concurrent mutation; a single owner (the loader or the merger) builds
// a table and hands it out afterwards.
package table

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ValueType is the declared type of a column.
type ValueType string

const (
	TypeString ValueType = "string"
	TypeInt    ValueType = "int"
	TypeFloat  ValueType = "float"
	TypeBool   ValueType = "bool"
	TypeDate   ValueType = "date"
)

// DateLayout is the layout used to render TypeDate cells.
const DateLayout = "2006-01-02"

var (
	ErrEmptyColumnName = errors.New("column name is empty")
	ErrDuplicateColumn = errors.New("duplicate column name")
	ErrColumnNotFound  = errors.New("column not found")
	ErrRowWidth        = errors.New("row width does not match column count")
)

// Column describes a single table column.
type Column struct {
	Name string    `json:"name"`
	Type ValueType `json:"type"`
}

// Row holds cell values aligned positionally with the table columns.
// A nil cell renders as the empty string.
type Row []any

// Table is an ordered set of columns and rows.
type Table struct {
	Name string

	columns []Column
	index   map[string]int
	rows    []Row
	key     []string
}

// New creates an empty table.
func New(name string) *Table {
	return &Table{
		Name:  name,
		index: make(map[string]int),
	}
}

// AddColumn appends a column. Names must be non-empty and unique.
// An empty type defaults to TypeString.
func (t *Table) AddColumn(name string, typ ValueType) error {
	if name == "" {
		return ErrEmptyColumnName
	}
	if _, exists := t.index[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateColumn, name)
	}
	if typ == "" {
		typ = TypeString
	}

	t.index[name] = len(t.columns)
	t.columns = append(t.columns, Column{Name: name, Type: typ})

	// Keep existing rows aligned with the new column count.
	for i := range t.rows {
		t.rows[i] = append(t.rows[i], nil)
	}
	return nil
}

// Columns returns a copy of the column list.
func (t *Table) Columns() []Column {
	out := make([]Column, len(t.columns))
	copy(out, t.columns)
	return out
}

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.columns))
	for i, c := range t.columns {
		out[i] = c.Name
	}
	return out
}

// ColumnCount returns the number of columns.
func (t *Table) ColumnCount() int {
	return len(t.columns)
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// HasColumn reports whether the table has a column with the given name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// NewRow returns an empty row sized for the table. It is not appended.
func (t *Table) NewRow() Row {
	return make(Row, len(t.columns))
}

// AppendRow adds a row. The row must have exactly one cell per column.
func (t *Table) AppendRow(r Row) error {
	if len(r) != len(t.columns) {
		return fmt.Errorf("%w: got %d cells, want %d", ErrRowWidth, len(r), len(t.columns))
	}
	t.rows = append(t.rows, r)
	return nil
}

// Rows returns the rows. The slice is shared with the table.
func (t *Table) Rows() []Row {
	return t.rows
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Value returns the cell at the given row and column name.
func (t *Table) Value(row int, column string) (any, error) {
	ci := t.ColumnIndex(column)
	if ci < 0 {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, column)
	}
	if row < 0 || row >= len(t.rows) {
		return nil, fmt.Errorf("row %d out of range [0,%d)", row, len(t.rows))
	}
	return t.rows[row][ci], nil
}

// String returns the rendered cell at the given row and column name.
// Unknown columns and out-of-range rows render as "".
func (t *Table) String(row int, column string) string {
	v, err := t.Value(row, column)
	if err != nil {
		return ""
	}
	return FormatValue(v)
}

// SetKey designates the key columns used when merging. Every name must
// exist. Calling SetKey with no names clears the key.
func (t *Table) SetKey(names ...string) error {
	for _, n := range names {
		if !t.HasColumn(n) {
			return fmt.Errorf("key %w: %s", ErrColumnNotFound, n)
		}
	}
	t.key = append([]string(nil), names...)
	return nil
}

// Key returns the key column names.
func (t *Table) Key() []string {
	return append([]string(nil), t.key...)
}

// FormatValue renders a cell value as text.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(DateLayout)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// keyOf builds a comparable key tuple from the given column positions. It
// reports false when a key cell is nil: missing keys never match.
func keyOf(r Row, positions []int) (string, bool) {
	var b strings.Builder
	for i, p := range positions {
		if r[p] == nil {
			return "", false
		}
		if i > 0 {
			b.WriteByte(0x1f)
		}
		b.WriteString(FormatValue(r[p]))
	}
	return b.String(), true
}
