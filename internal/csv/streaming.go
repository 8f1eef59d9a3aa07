package csv

// streaming.go holds the input wrappers applied before lines are split:
//
//   - skipUTF8BOM drops a leading UTF-8 byte order mark
//   - utf8Sanitizer replaces invalid UTF-8 bytes with '?'
//   - countingReader tracks bytes consumed for the load summary
//
// All of them work in constant memory regardless of input size.

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

const sanitizeChunk = 32 * 1024

var bomUTF8 = []byte{0xEF, 0xBB, 0xBF}

// skipUTF8BOM returns a reader positioned after the UTF-8 BOM, if r starts
// with one.
func skipUTF8BOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(bomUTF8)); err == nil && bytes.Equal(head, bomUTF8) {
		_, _ = br.Discard(len(bomUTF8))
	}
	return br
}

// utf8Sanitizer passes valid UTF-8 through and replaces every invalid byte
// with '?'. A multi-byte sequence split across reads is held back until it
// is complete.
type utf8Sanitizer struct {
	r       io.Reader
	scratch []byte
	pending []byte
	out     []byte
	err     error
}

func newUTF8Sanitizer(r io.Reader) *utf8Sanitizer {
	return &utf8Sanitizer{
		r:       r,
		scratch: make([]byte, sanitizeChunk),
	}
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for len(s.out) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		s.fill()
	}
	n := copy(p, s.out)
	s.out = s.out[n:]
	return n, nil
}

func (s *utf8Sanitizer) fill() {
	n, err := s.r.Read(s.scratch)
	s.err = err
	data := append(s.pending, s.scratch[:n]...)
	atEOF := err != nil

	if isASCII(data) {
		s.out = data
		s.pending = nil
		return
	}

	out := make([]byte, 0, len(data))
	i := 0
	for i < len(data) {
		if data[i] < utf8.RuneSelf {
			out = append(out, data[i])
			i++
			continue
		}
		if !atEOF && !utf8.FullRune(data[i:]) {
			break
		}
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			out = append(out, '?')
		} else {
			out = append(out, data[i:i+size]...)
		}
		i += size
	}

	s.pending = append([]byte(nil), data[i:]...)
	s.out = out
}

func isASCII(data []byte) bool {
	for _, b := range data {
		if b >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// countingReader counts the bytes read through it.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
