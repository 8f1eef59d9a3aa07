package table

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddColumn(t *testing.T) {
	tbl := New("people")
	require.NoError(t, tbl.AddColumn("id", TypeInt))
	require.NoError(t, tbl.AddColumn("name", ""))

	assert.ErrorIs(t, tbl.AddColumn("", TypeString), ErrEmptyColumnName)
	assert.ErrorIs(t, tbl.AddColumn("id", TypeString), ErrDuplicateColumn)

	assert.Equal(t, []string{"id", "name"}, tbl.ColumnNames())
	assert.Equal(t, TypeString, tbl.Columns()[1].Type)
	assert.Equal(t, 1, tbl.ColumnIndex("name"))
	assert.Equal(t, -1, tbl.ColumnIndex("missing"))
}

func TestAddColumnWidensExistingRows(t *testing.T) {
	tbl := New("")
	require.NoError(t, tbl.AddColumn("a", TypeString))
	require.NoError(t, tbl.AppendRow(Row{"1"}))

	require.NoError(t, tbl.AddColumn("b", TypeString))
	require.Len(t, tbl.Rows()[0], 2)
	assert.Equal(t, "", tbl.String(0, "b"))
}

func TestAppendRowWidth(t *testing.T) {
	tbl := New("")
	require.NoError(t, tbl.AddColumn("a", TypeString))
	require.NoError(t, tbl.AddColumn("b", TypeString))

	assert.ErrorIs(t, tbl.AppendRow(Row{"only one"}), ErrRowWidth)
	require.NoError(t, tbl.AppendRow(Row{"x", "y"}))
	assert.Equal(t, 1, tbl.Len())
	assert.Equal(t, "y", tbl.String(0, "b"))
	assert.Equal(t, "", tbl.String(5, "b"))
}

func TestSetKey(t *testing.T) {
	tbl := New("")
	require.NoError(t, tbl.AddColumn("id", TypeString))

	assert.ErrorIs(t, tbl.SetKey("nope"), ErrColumnNotFound)
	require.NoError(t, tbl.SetKey("id"))
	assert.Equal(t, []string{"id"}, tbl.Key())
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"text", "text"},
		{42, "42"},
		{int64(-7), "-7"},
		{1.5, "1.5"},
		{true, "true"},
		{time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), "2024-03-09"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatValue(tt.in))
	}
}

func TestInferType(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   ValueType
	}{
		{"integers", []string{"1", "-2", ""}, TypeInt},
		{"floats", []string{"1", "2.5", "0.10", " 3 "}, TypeFloat},
		{"bools", []string{"true", "false"}, TypeBool},
		{"dates", []string{"2024-01-02", "1999-12-31"}, TypeDate},
		{"mixed", []string{"1", "abc"}, TypeString},
		{"empty", []string{"", " "}, TypeString},
		{"zero padded", []string{"00501", "02134"}, TypeString},
		{"decimal comma", []string{"1,5", "2,25"}, TypeString},
		{"thousands separator", []string{"1,000.10"}, TypeString},
		{"currency", []string{"$10", "$20"}, TypeString},
		{"accounting negative", []string{"(12.50)"}, TypeString},
		{"exponent", []string{"1e3"}, TypeString},
		{"plus sign", []string{"+5"}, TypeString},
		{"beyond int64", []string{"12345678901234567890", "12345678901234567891"}, TypeString},
		{"beyond float precision", []string{"2.5", "9007199254740993"}, TypeString},
		{"yes no", []string{"yes", "no"}, TypeString},
		{"ambiguous date", []string{"1/3/2024"}, TypeString},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferType(tt.values))
		})
	}
}

func TestParseValue(t *testing.T) {
	v, err := ParseValue(TypeFloat, "(1,234.50)")
	require.NoError(t, err)
	assert.Equal(t, -1234.5, v)

	v, err = ParseValue(TypeInt, " ")
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = ParseValue(TypeBool, "maybe")
	assert.ErrorContains(t, err, "invalid bool")

	_, err = ParseValue(TypeDate, "31/31/2024")
	assert.ErrorContains(t, err, "invalid date")
}

func TestConvertColumn(t *testing.T) {
	tbl := New("")
	require.NoError(t, tbl.AddColumn("n", TypeString))
	require.NoError(t, tbl.AppendRow(Row{"10"}))
	require.NoError(t, tbl.AppendRow(Row{""}))

	require.NoError(t, tbl.ConvertColumn("n", TypeInt))
	assert.Equal(t, int64(10), tbl.Rows()[0][0])
	assert.Nil(t, tbl.Rows()[1][0])
	assert.Equal(t, TypeInt, tbl.Columns()[0].Type)

	require.NoError(t, tbl.AppendRow(Row{"x"}))
	err := tbl.ConvertColumn("n", TypeInt)
	require.Error(t, err)
	assert.Equal(t, int64(10), tbl.Rows()[0][0], "failed conversion must not modify cells")
}

func TestInferColumnTypes(t *testing.T) {
	tbl := New("")
	require.NoError(t, tbl.AddColumn("id", TypeString))
	require.NoError(t, tbl.AddColumn("name", TypeString))
	require.NoError(t, tbl.AppendRow(Row{"1", "a"}))
	require.NoError(t, tbl.AppendRow(Row{"2", "b"}))

	require.NoError(t, tbl.InferColumnTypes())
	cols := tbl.Columns()
	assert.Equal(t, TypeInt, cols[0].Type)
	assert.Equal(t, TypeString, cols[1].Type)
	assert.Equal(t, "2", tbl.String(1, "id"))
}

func TestInferColumnTypesKeepsValues(t *testing.T) {
	tbl := New("")
	for _, c := range []string{"zip", "price", "acct", "amount"} {
		require.NoError(t, tbl.AddColumn(c, TypeString))
	}
	rows := []Row{
		{"00501", "1,5", "12345678901234567890", "1.50"},
		{"02134", "2,25", "12345678901234567891", "-3"},
	}
	for _, r := range rows {
		require.NoError(t, tbl.AppendRow(r))
	}

	require.NoError(t, tbl.InferColumnTypes())
	cols := tbl.Columns()
	assert.Equal(t, TypeString, cols[0].Type)
	assert.Equal(t, TypeString, cols[1].Type)
	assert.Equal(t, TypeString, cols[2].Type)
	assert.Equal(t, TypeFloat, cols[3].Type)

	assert.Equal(t, "00501", tbl.String(0, "zip"))
	assert.Equal(t, "2,25", tbl.String(1, "price"))
	assert.NotEqual(t, tbl.String(0, "acct"), tbl.String(1, "acct"))
	assert.Equal(t, 1.5, tbl.Rows()[0][3])
}

func TestConvertColumnStaysLenient(t *testing.T) {
	tbl := New("")
	require.NoError(t, tbl.AddColumn("amount", TypeString))
	require.NoError(t, tbl.AppendRow(Row{"$1,000.10"}))

	require.NoError(t, tbl.ConvertColumn("amount", TypeFloat))
	assert.Equal(t, 1000.1, tbl.Rows()[0][0])
}
