// Package export writes tables to destinations other than delimited text:
// Parquet files and PostgreSQL tables.
package export

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/JonMunkholm/csvtable/internal/table"
)

// ParquetParallelism is the number of goroutines parquet-go uses to encode
// and decode row groups.
var ParquetParallelism int64 = 4

var invalidParquetName = regexp.MustCompile(`[^A-Za-z0-9_]`)

var epoch = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// ParquetInfo describes a written Parquet file.
type ParquetInfo struct {
	Rows    int64    `json:"rows"`
	Columns []string `json:"columns"`
}

// WriteParquet writes t to path with snappy compression. Every column is
// optional; nil cells are written as nulls. Column names are reduced to
// letters, digits and underscores.
func WriteParquet(path string, t *table.Table) (err error) {
	cols := t.Columns()
	if len(cols) == 0 {
		return fmt.Errorf("write parquet: table %q has no columns", t.Name)
	}

	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("create parquet file: %w", err)
	}
	defer func() {
		if cerr := fw.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	pw, err := writer.NewCSVWriter(parquetSchema(cols), fw, ParquetParallelism)
	if err != nil {
		return fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for i, r := range t.Rows() {
		// The writer keeps rec until the row group is flushed.
		rec := make([]interface{}, len(cols))
		for j, c := range cols {
			v, err := parquetValue(c.Type, r[j])
			if err != nil {
				return fmt.Errorf("row %d column %s: %w", i, c.Name, err)
			}
			rec[j] = v
		}
		if err := pw.Write(rec); err != nil {
			return fmt.Errorf("write parquet row %d: %w", i, err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finish parquet file: %w", err)
	}
	return nil
}

// ReadParquetInfo reads the row count and column names of a Parquet file.
func ReadParquetInfo(path string) (*ParquetInfo, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("open parquet file: %w", err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, nil, ParquetParallelism)
	if err != nil {
		return nil, fmt.Errorf("read parquet footer: %w", err)
	}
	defer pr.ReadStop()

	info := &ParquetInfo{Rows: pr.GetNumRows()}
	// The first schema element is the root.
	for _, el := range pr.Footer.Schema[1:] {
		info.Columns = append(info.Columns, el.Name)
	}
	return info, nil
}

// ParquetColumnName returns the name a column is written under.
func ParquetColumnName(name string) string {
	n := invalidParquetName.ReplaceAllString(name, "_")
	if n == "" || (n[0] >= '0' && n[0] <= '9') {
		n = "c_" + n
	}
	return n
}

func parquetSchema(cols []table.Column) []string {
	md := make([]string, len(cols))
	for i, name := range parquetNames(cols) {
		c := cols[i]

		var typ string
		switch c.Type {
		case table.TypeInt:
			typ = "type=INT64"
		case table.TypeFloat:
			typ = "type=DOUBLE"
		case table.TypeBool:
			typ = "type=BOOLEAN"
		case table.TypeDate:
			typ = "type=INT32, convertedtype=DATE"
		default:
			typ = "type=BYTE_ARRAY, convertedtype=UTF8"
		}
		md[i] = fmt.Sprintf("name=%s, %s, repetitiontype=OPTIONAL", name, typ)
	}
	return md
}

// parquetNames returns a distinct written name per column. The first column
// with a given name keeps it; later ones get the first free "_<n>" suffix.
func parquetNames(cols []table.Column) []string {
	names := make([]string, len(cols))
	taken := make(map[string]bool, len(cols))
	dup := make([]bool, len(cols))
	for i, c := range cols {
		names[i] = ParquetColumnName(c.Name)
		if taken[names[i]] {
			dup[i] = true
			continue
		}
		taken[names[i]] = true
	}

	for i, base := range names {
		if !dup[i] {
			continue
		}
		name := base
		for n := 1; taken[name]; n++ {
			name = base + "_" + strconv.Itoa(n)
		}
		taken[name] = true
		names[i] = name
	}
	return names
}

// parquetValue converts a cell to the Go type parquet-go expects for typ.
func parquetValue(typ table.ValueType, v any) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch typ {
	case table.TypeInt:
		switch x := v.(type) {
		case int64:
			return x, nil
		case int:
			return int64(x), nil
		}
	case table.TypeFloat:
		switch x := v.(type) {
		case float64:
			return x, nil
		case int64:
			return float64(x), nil
		case int:
			return float64(x), nil
		}
	case table.TypeBool:
		if x, ok := v.(bool); ok {
			return x, nil
		}
	case table.TypeDate:
		if x, ok := v.(time.Time); ok {
			d := time.Date(x.Year(), x.Month(), x.Day(), 0, 0, 0, 0, time.UTC)
			return int32(d.Sub(epoch).Hours() / 24), nil
		}
	default:
		if s := table.FormatValue(v); s != "" {
			return s, nil
		}
		return nil, nil
	}

	// Typed column holding text: parse it.
	parsed, err := table.ParseValue(typ, table.FormatValue(v))
	if err != nil {
		return nil, err
	}
	if parsed == nil {
		return nil, nil
	}
	return parquetValue(typ, parsed)
}
