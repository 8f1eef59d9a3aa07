package csv

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrUnknownEncoding is returned by LookupEncoding for unsupported names.
var ErrUnknownEncoding = errors.New("unknown encoding")

// Encoding is a text encoding for reading and writing CSV files together
// with its byte order mark, if it has one. The zero value is Default.
type Encoding struct {
	name     string
	codec    encoding.Encoding // nil means UTF-8
	preamble []byte
}

var (
	// Default is UTF-8 without a byte order mark.
	Default = Encoding{name: "default"}

	UTF8        = Encoding{name: "utf-8"}
	UTF8BOM     = Encoding{name: "utf-8-bom", preamble: []byte{0xEF, 0xBB, 0xBF}}
	UTF16LE     = Encoding{name: "utf-16le", codec: unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), preamble: []byte{0xFF, 0xFE}}
	UTF16BE     = Encoding{name: "utf-16be", codec: unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM), preamble: []byte{0xFE, 0xFF}}
	Windows1251 = Encoding{name: "windows-1251", codec: charmap.Windows1251}
	Windows1252 = Encoding{name: "windows-1252", codec: charmap.Windows1252}
	ISO8859_1   = Encoding{name: "iso-8859-1", codec: charmap.ISO8859_1}
	KOI8R       = Encoding{name: "koi8-r", codec: charmap.KOI8R}
)

var encodings = map[string]Encoding{
	"default":      Default,
	"utf-8":        UTF8,
	"utf8":         UTF8,
	"utf-8-bom":    UTF8BOM,
	"utf-16le":     UTF16LE,
	"utf-16":       UTF16LE,
	"unicode":      UTF16LE,
	"utf-16be":     UTF16BE,
	"windows-1251": Windows1251,
	"cp1251":       Windows1251,
	"windows-1252": Windows1252,
	"cp1252":       Windows1252,
	"iso-8859-1":   ISO8859_1,
	"latin1":       ISO8859_1,
	"koi8-r":       KOI8R,
}

// LookupEncoding resolves an encoding by name, case-insensitively.
// The empty name resolves to Default.
func LookupEncoding(name string) (Encoding, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return Default, nil
	}
	if e, ok := encodings[key]; ok {
		return e, nil
	}
	return Encoding{}, fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
}

// EncodingNames lists the canonical encoding names.
func EncodingNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, e := range encodings {
		if !seen[e.Name()] {
			seen[e.Name()] = true
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

// Name returns the canonical name.
func (e Encoding) Name() string {
	if e.name == "" {
		return Default.name
	}
	return e.name
}

func (e Encoding) String() string { return e.Name() }

// Preamble returns the byte order mark written at the start of a file.
func (e Encoding) Preamble() []byte {
	return append([]byte(nil), e.preamble...)
}

// NewReader decodes r to UTF-8. A leading byte order mark is consumed, and
// for UTF-16 input it overrides the configured byte order.
func (e Encoding) NewReader(r io.Reader) io.Reader {
	if e.codec == nil {
		return newUTF8Sanitizer(skipUTF8BOM(r))
	}
	return transform.NewReader(r, unicode.BOMOverride(e.codec.NewDecoder()))
}

// NewWriter encodes UTF-8 text written to it. Runes the encoding cannot
// represent are replaced. The caller must Close it to flush.
func (e Encoding) NewWriter(w io.Writer) io.WriteCloser {
	if e.codec == nil {
		return nopWriteCloser{w}
	}
	return transform.NewWriter(w, encoding.ReplaceUnsupported(e.codec.NewEncoder()))
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
