// Package csv loads delimited text into tables and renders tables back to
// delimited text.
//
// The format is line based: one record per line, fields separated by a
// (possibly multi-character) delimiter, optional double-quoted fields with
// doubled quotes as escapes. Parsing is deliberately permissive: a quote
// that is never closed is read as a literal character instead of failing
// the whole file.
package csv

import "strings"

const quote = '"'

// SplitFields splits one line into its raw field values.
//
// A field starting with a quote runs to the first closing quote: a quote
// followed by the end of the line or by the delimiter that is not part of
// a doubled-quote escape. Doubled quotes inside a quoted field are
// unescaped. A field without a valid closing quote is read as an unquoted
// field.
//
// Every delimiter-separated position yields a field, so a line ending with
// the delimiter has a trailing empty field. An empty line yields no fields.
func SplitFields(line, delimiter string) []string {
	if line == "" || delimiter == "" {
		if line == "" {
			return nil
		}
		return []string{line}
	}

	var fields []string
	rest := line
	for {
		if rest != "" && rest[0] == quote {
			if end := closingQuote(rest, delimiter); end > 0 {
				fields = append(fields, strings.ReplaceAll(rest[1:end], `""`, `"`))
				rest = rest[end+1:]
				if rest == "" {
					return fields
				}
				rest = rest[len(delimiter):]
				continue
			}
		}

		field, remaining, last := readUnquoted(rest, delimiter)
		fields = append(fields, clearField(field))
		if last {
			return fields
		}
		rest = remaining
	}
}

// closingQuote returns the index of the quote closing the quoted field at
// the start of s, or -1. Doubled quotes are consumed pairwise from the
// left, so a quote is never taken as closing when it is the second half of
// an escape.
func closingQuote(s, delimiter string) int {
	for i := 1; i < len(s); i++ {
		if s[i] != quote {
			continue
		}
		if i+1 < len(s) && s[i+1] == quote {
			i++
			continue
		}
		if i+1 == len(s) || strings.HasPrefix(s[i+1:], delimiter) {
			return i
		}
	}
	return -1
}

// readUnquoted consumes one unquoted field from s. last reports whether s
// has been fully consumed.
func readUnquoted(s, delimiter string) (field, rest string, last bool) {
	switch i := strings.Index(s, delimiter); {
	case i > 0:
		return s[:i], s[i+len(delimiter):], false
	case i == 0:
		return "", s[len(delimiter):], false
	default:
		return s, "", true
	}
}

// clearField strips one leading and one trailing literal quote.
func clearField(s string) string {
	if s != "" && s[0] == quote {
		s = s[1:]
	}
	if s != "" && s[len(s)-1] == quote {
		s = s[:len(s)-1]
	}
	return s
}

// quoteField wraps s in quotes, doubling embedded quotes, when it contains
// the delimiter or a quote.
func quoteField(s, delimiter string) string {
	if !strings.Contains(s, delimiter) && !strings.ContainsRune(s, quote) {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
