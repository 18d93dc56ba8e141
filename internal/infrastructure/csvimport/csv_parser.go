package csvimport

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

// Encoding identifies the character encoding of an uploaded file.
// Legacy ERP exports commonly arrive in EUC-KR or Shift-JIS.
type Encoding string

const (
	EncodingUTF8     Encoding = "utf-8"
	EncodingEUCKR    Encoding = "euc-kr"
	EncodingShiftJIS Encoding = "shift-jis"
)

// IsValid checks if the encoding is supported
func (e Encoding) IsValid() bool {
	switch e {
	case EncodingUTF8, EncodingEUCKR, EncodingShiftJIS:
		return true
	}
	return false
}

func (e Encoding) decoder() *encoding.Decoder {
	switch e {
	case EncodingEUCKR:
		return korean.EUCKR.NewDecoder()
	case EncodingShiftJIS:
		return japanese.ShiftJIS.NewDecoder()
	default:
		return nil
	}
}

// CSVParser reads an uploaded tabular file row by row with header
// mapping, BOM stripping and legacy encoding support.
type CSVParser struct {
	delimiter  rune
	encoding   Encoding
	trimSpace  bool
	headerMap  map[string]int
	headers    []string
	currentRow int
	reader     *csv.Reader
}

// ParserOption is a functional option for CSVParser configuration
type ParserOption func(*CSVParser)

// WithDelimiter sets the field delimiter (default is comma)
func WithDelimiter(d rune) ParserOption {
	return func(p *CSVParser) {
		p.delimiter = d
	}
}

// WithEncoding sets the source encoding (default is UTF-8)
func WithEncoding(enc Encoding) ParserOption {
	return func(p *CSVParser) {
		if enc.IsValid() {
			p.encoding = enc
		}
	}
}

// WithTrimSpace enables trimming of leading/trailing spaces from fields
func WithTrimSpace(trim bool) ParserOption {
	return func(p *CSVParser) {
		p.trimSpace = trim
	}
}

// NewCSVParser creates a new CSV parser over a reader
func NewCSVParser(r io.Reader, opts ...ParserOption) (*CSVParser, error) {
	parser := &CSVParser{
		delimiter: ',',
		encoding:  EncodingUTF8,
		trimSpace: true,
		headerMap: make(map[string]int),
	}
	for _, opt := range opts {
		opt(parser)
	}

	src := bufio.NewReader(r)
	if dec := parser.encoding.decoder(); dec != nil {
		src = bufio.NewReader(transform.NewReader(src, dec))
	}

	// Strip a UTF-8 BOM if present.
	head, err := src.Peek(3)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(head) == 0 {
		return nil, ErrEmptyFile
	}
	if len(head) >= 3 && head[0] == 0xEF && head[1] == 0xBB && head[2] == 0xBF {
		_, _ = src.Discard(3)
	}

	if err := validateUTF8(src); err != nil {
		return nil, err
	}

	parser.reader = csv.NewReader(src)
	parser.reader.Comma = parser.delimiter
	parser.reader.LazyQuotes = true
	parser.reader.TrimLeadingSpace = parser.trimSpace
	parser.reader.FieldsPerRecord = -1

	return parser, nil
}

// validateUTF8 checks that the (decoded) content is valid UTF-8
func validateUTF8(r *bufio.Reader) error {
	const checkSize = 4096
	content, err := r.Peek(checkSize)
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read file for encoding validation: %w", err)
	}
	if len(content) == 0 {
		return ErrEmptyFile
	}
	// A peek can end mid-rune; trim up to 3 trailing bytes before checking.
	end := len(content)
	for end > 0 && end > len(content)-4 && !utf8.Valid(content[:end]) {
		end--
	}
	if end == 0 || !utf8.Valid(content[:end]) {
		return ErrInvalidEncoding
	}
	return nil
}

// ParseHeader reads the header row and builds the column lookup
func (p *CSVParser) ParseHeader() error {
	record, err := p.reader.Read()
	if err == io.EOF {
		return ErrMissingHeader
	}
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	p.headers = make([]string, len(record))
	for i, h := range record {
		header := strings.ToLower(strings.TrimSpace(h))
		p.headers[i] = header
		p.headerMap[header] = i
	}
	p.currentRow = 1
	return nil
}

// Headers returns the parsed header names
func (p *CSVParser) Headers() []string {
	return p.headers
}

// ColumnIndex returns the index of a header, matching any of the given
// aliases, or -1 when none is present.
func (p *CSVParser) ColumnIndex(aliases ...string) int {
	for _, alias := range aliases {
		if i, ok := p.headerMap[strings.ToLower(alias)]; ok {
			return i
		}
	}
	return -1
}

// ReadRow reads the next data row. io.EOF signals the end of the file.
func (p *CSVParser) ReadRow() ([]string, error) {
	record, err := p.reader.Read()
	if err != nil {
		return nil, err
	}
	p.currentRow++
	if p.trimSpace {
		for i := range record {
			record[i] = strings.TrimSpace(record[i])
		}
	}
	return record, nil
}

// CurrentRow returns the 1-based number of the row last read
func (p *CSVParser) CurrentRow() int {
	return p.currentRow
}

// Field returns the cell at the column index, or "" when the row is
// shorter than the header.
func Field(record []string, index int) string {
	if index < 0 || index >= len(record) {
		return ""
	}
	return record[index]
}
