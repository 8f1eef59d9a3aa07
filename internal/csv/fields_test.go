package csv

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitFields(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		delimiter string
		want      []string
	}{
		{"plain", "a;b;c", ";", []string{"a", "b", "c"}},
		{"empty middle", "a;;b", ";", []string{"a", "", "b"}},
		{"trailing delimiter", "a;b;", ";", []string{"a", "b", ""}},
		{"leading delimiter", ";a", ";", []string{"", "a"}},
		{"only delimiters", ";;", ";", []string{"", "", ""}},
		{"empty line", "", ";", nil},
		{"quoted delimiter", `"x;y";z`, ";", []string{"x;y", "z"}},
		{"escaped quotes", `"He said ""hi"";"`, ";", []string{`He said "hi";`}},
		{"quoted then trailing delimiter", `"a";`, ";", []string{"a", ""}},
		{"empty quoted", `"";x`, ";", []string{"", "x"}},
		{"escape at boundary", `"x""";y`, ";", []string{`x"`, "y"}},
		{"unterminated quote", `"abc;def`, ";", []string{"abc", "def"}},
		{"quote not followed by delimiter", `"a"b;c`, ";", []string{`a"b`, "c"}},
		{"trailing literal quote stripped", `abc";d`, ";", []string{"abc", "d"}},
		{"multi-char delimiter", `a||"b||c"||d`, "||", []string{"a", "b||c", "d"}},
		{"multi-char delimiter prefix only", `"a|b"|c`, "||", []string{`a|b"|c`}},
		{"tab", "1\t2", "\t", []string{"1", "2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitFields(tt.line, tt.delimiter))
		})
	}
}

func TestSplitFieldsMatchesPlainSplit(t *testing.T) {
	lines := []string{"a", "a;b", "a;;", "1;2;3;", ";x;;y", "  spaced ; values "}
	for _, l := range lines {
		assert.Equal(t, strings.Split(l, ";"), SplitFields(l, ";"), "line %q", l)
	}
}

func TestQuoteFieldRoundTrip(t *testing.T) {
	values := []string{
		`He said "hi";`,
		`"`,
		`";`,
		`a"";`,
		`;"`,
		`x";"y`,
		`""`,
		"a;b",
	}
	for _, v := range values {
		line := quoteField(v, ";") + ";tail"
		assert.Equal(t, []string{v, "tail"}, SplitFields(line, ";"), "value %q encoded as %q", v, line)
	}
}

func FuzzQuoteFieldRoundTrip(f *testing.F) {
	f.Add(`He said "hi";`, "plain")
	f.Add(`""`, `;`)
	f.Add(`a"";`, "")
	f.Fuzz(func(t *testing.T, a, b string) {
		if strings.ContainsAny(a+b, "\r\n") {
			t.Skip()
		}
		line := quoteField(a, ";") + ";" + quoteField(b, ";")
		got := SplitFields(line, ";")
		if len(got) != 2 || got[0] != a || got[1] != b {
			t.Fatalf("SplitFields(%q) = %q, want [%q %q]", line, got, a, b)
		}
	})
}
