package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/csvtable/internal/config"
	"github.com/JonMunkholm/csvtable/internal/csv"
	"github.com/JonMunkholm/csvtable/internal/table"
)

func TestLoadOptions_Layering(t *testing.T) {
	cfg := testConfig(t).CSV
	no := false

	opts, enc, err := LoadOptions(cfg, config.Profile{}, LoadRequest{})
	require.NoError(t, err)
	assert.Equal(t, ";", opts.Delimiter)
	assert.True(t, opts.HasColumns)
	assert.True(t, opts.CountBlankLines)
	assert.Equal(t, csv.Default, enc)

	p := config.Profile{Name: "p", Delimiter: "tab", Encoding: "cp1251", HasColumns: &no, Workers: 4, Key: []string{" ID "}}
	opts, enc, err = LoadOptions(cfg, p, LoadRequest{})
	require.NoError(t, err)
	assert.Equal(t, "\t", opts.Delimiter)
	assert.Equal(t, csv.Windows1251, enc)
	assert.False(t, opts.HasColumns)
	assert.Equal(t, 4, opts.Workers)
	assert.Equal(t, []string{"id"}, opts.Key)

	opts, enc, err = LoadOptions(cfg, p, LoadRequest{Delimiter: ",", Encoding: "utf-16le", HasColumns: yes(), Workers: 2, Key: []string{"code"}})
	require.NoError(t, err)
	assert.Equal(t, ",", opts.Delimiter)
	assert.Equal(t, csv.UTF16LE, enc)
	assert.True(t, opts.HasColumns)
	assert.Equal(t, 2, opts.Workers)
	assert.Equal(t, []string{"code"}, opts.Key)
}

func TestLoadOptions_RulesUseHeaderPositions(t *testing.T) {
	p := config.Profile{
		Name:        "p",
		SkipEmpty:   []string{"Name"},
		RejectEmpty: []string{"id"},
	}
	opts, _, err := LoadOptions(testConfig(t).CSV, p, LoadRequest{})
	require.NoError(t, err)

	tbl := table.New("t")
	require.NoError(t, tbl.AddColumn("id", table.TypeString))
	require.NoError(t, tbl.AddColumn("name", table.TypeString))
	require.NoError(t, opts.TableValidator(tbl))

	assert.False(t, opts.RowFilter(table.Row{"1", "ann"}))
	assert.True(t, opts.RowFilter(table.Row{"1", "  "}))
	assert.NoError(t, opts.RowValidator(table.Row{"1", ""}))
	assert.EqualError(t, opts.RowValidator(table.Row{"", "ann"}), "empty value in column id")
}

func TestSaveOptions(t *testing.T) {
	cfg := testConfig(t).CSV
	p := config.Profile{Name: "p", Delimiter: ",", Exclude: []string{"Secret"}}

	opts, enc, err := SaveOptions(cfg, p, SaveRequest{Encoding: "utf-8-bom", Exclude: []string{"note"}})
	require.NoError(t, err)
	assert.Equal(t, ",", opts.Delimiter)
	assert.Equal(t, csv.UTF8BOM, enc)
	require.NotNil(t, opts.ExcludeColumn)
	assert.True(t, opts.ExcludeColumn(table.Column{Name: "secret"}))
	assert.True(t, opts.ExcludeColumn(table.Column{Name: "note"}))
	assert.False(t, opts.ExcludeColumn(table.Column{Name: "id"}))

	opts, _, err = SaveOptions(cfg, config.Profile{}, SaveRequest{})
	require.NoError(t, err)
	assert.Nil(t, opts.ExcludeColumn)
}

func TestRegistry(t *testing.T) {
	reg, err := NewRegistry([]config.Profile{{Name: "b"}, {Name: "a"}})
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Count())

	all := reg.All()
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Name)

	assert.Error(t, reg.Register(config.Profile{Name: "a"}))
	assert.Error(t, reg.Register(config.Profile{Name: ""}))

	p, err := reg.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "", p.Name)

	_, err = reg.Resolve("zzz")
	assert.ErrorIs(t, err, ErrUnknownProfile)
	assert.Equal(t, "FILE004", MapError(err).Code)
}

func TestApplyTypes(t *testing.T) {
	load := func(data string) *table.Table {
		t.Helper()
		res, err := csv.LoadReader(t.Context(), strings.NewReader(data), csv.Default, csv.DefaultLoadOptions())
		require.NoError(t, err)
		return res.Table
	}
	p := config.Profile{Name: "accounts", Types: map[string]string{
		"Balance": "float",
		"opened":  " DATE ",
		"absent":  "int",
	}}

	tbl := load("id;balance;opened\n1;1,200.50;2024-01-15\n2;;01/02/2024\n")
	require.NoError(t, ApplyTypes(tbl, p))

	cols := tbl.Columns()
	assert.Equal(t, table.TypeString, cols[0].Type)
	assert.Equal(t, table.TypeFloat, cols[1].Type)
	assert.Equal(t, table.TypeDate, cols[2].Type)

	v, err := tbl.Value(0, "balance")
	require.NoError(t, err)
	assert.Equal(t, 1200.5, v)
	v, err = tbl.Value(1, "balance")
	require.NoError(t, err)
	assert.Nil(t, v)

	bad := load("id;balance\n1;lots\n")
	err = ApplyTypes(bad, p)
	require.ErrorIs(t, err, ErrColumnType)
	assert.Equal(t, table.TypeString, bad.Columns()[1].Type, "failed conversion leaves the column untouched")
}
