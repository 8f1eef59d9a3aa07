package table

// convert.go turns text cells into typed values.
//
// The rules follow what real-world CSV exports contain:
//   - Multiple date formats (US, EU, ISO, etc.)
//   - Currency symbols and thousand separators in numbers
//   - Various boolean representations (yes/no, true/false, t/f)
//
// Empty cells always convert to nil.

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// integerRegex matches plain integers without leading zeros.
var integerRegex = regexp.MustCompile(`^[+-]?(0|[1-9]\d*)$`)

// plainDecimalRegex matches decimals with no sign other than '-', no
// exponent and no leading zeros.
var plainDecimalRegex = regexp.MustCompile(`^-?(0|[1-9]\d*)(\.\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "2 Jan 2006",
	}
)

// ParseValue converts s to the Go value for typ.
func ParseValue(typ ValueType, s string) (any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	switch typ {
	case TypeString, "":
		return s, nil
	case TypeInt:
		if !integerRegex.MatchString(s) {
			return nil, fmt.Errorf("invalid integer: %q", s)
		}
		return strconv.ParseInt(s, 10, 64)
	case TypeFloat:
		cleaned, ok := cleanNumeric(s)
		if !ok {
			return nil, fmt.Errorf("invalid number: %q", s)
		}
		return strconv.ParseFloat(cleaned, 64)
	case TypeBool:
		switch strings.ToLower(s) {
		case "true", "t", "yes", "y":
			return true, nil
		case "false", "f", "no", "n":
			return false, nil
		}
		return nil, fmt.Errorf("invalid bool: %q", s)
	case TypeDate:
		if t, ok := parseDate(s); ok {
			return t, nil
		}
		return nil, fmt.Errorf("invalid date: %q", s)
	default:
		return nil, fmt.Errorf("unknown value type %q", typ)
	}
}

// InferType picks the narrowest type every non-empty value converts to
// without loss: the typed value must format back to the trimmed text.
// Columns with no non-empty values stay TypeString.
//
// Inference is stricter than ParseValue. Leading zeros, separators, currency
// symbols, yes/no booleans and non-ISO dates keep a column as text; explicit
// conversions through ConvertColumn still accept them.
func InferType(values []string) ValueType {
	candidates := []ValueType{TypeInt, TypeFloat, TypeBool, TypeDate}
	seen := false

	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		seen = true
		kept := candidates[:0]
		for _, c := range candidates {
			if lossless(c, v) {
				kept = append(kept, c)
			}
		}
		candidates = kept
		if len(candidates) == 0 {
			return TypeString
		}
	}

	if !seen {
		return TypeString
	}
	return candidates[0]
}

// lossless reports whether s converts to typ and formats back unchanged.
func lossless(typ ValueType, s string) bool {
	if typ == TypeFloat {
		return exactDecimal(s)
	}
	v, err := ParseValue(typ, s)
	return err == nil && FormatValue(v) == s
}

// exactDecimal accepts plain decimals a float64 holds exactly enough to
// print back. Trailing fractional zeros are allowed.
func exactDecimal(s string) bool {
	if !plainDecimalRegex.MatchString(s) {
		return false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return false
	}
	want := s
	if strings.Contains(want, ".") {
		want = strings.TrimRight(strings.TrimRight(want, "0"), ".")
	}
	return strconv.FormatFloat(f, 'f', -1, 64) == want
}

// ConvertColumn retypes a column, parsing every cell from its text form.
// The table is left untouched when any cell fails to parse.
func (t *Table) ConvertColumn(name string, typ ValueType) error {
	ci := t.ColumnIndex(name)
	if ci < 0 {
		return fmt.Errorf("%w: %s", ErrColumnNotFound, name)
	}

	converted := make([]any, len(t.rows))
	for i, r := range t.rows {
		v, err := ParseValue(typ, FormatValue(r[ci]))
		if err != nil {
			return fmt.Errorf("column %s row %d: %w", name, i, err)
		}
		converted[i] = v
	}

	for i := range t.rows {
		t.rows[i][ci] = converted[i]
	}
	t.columns[ci].Type = typ
	return nil
}

// InferColumnTypes retypes every TypeString column whose values all convert
// to a narrower type without loss (see InferType).
func (t *Table) InferColumnTypes() error {
	for ci, c := range t.columns {
		if c.Type != TypeString {
			continue
		}
		values := make([]string, len(t.rows))
		for i, r := range t.rows {
			values[i] = FormatValue(r[ci])
		}
		if typ := InferType(values); typ != TypeString {
			if err := t.ConvertColumn(c.Name, typ); err != nil {
				return err
			}
		}
	}
	return nil
}

// cleanNumeric strips currency symbols and thousands separators and
// handles the accounting format "(123.45)" for negatives.
func cleanNumeric(s string) (string, bool) {
	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "") // Euro
	s = strings.ReplaceAll(s, "£", "") // Pound
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if isNegative {
		s = "-" + s
	}
	return s, numericRegex.MatchString(s)
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}
	return time.Time{}, false
}
