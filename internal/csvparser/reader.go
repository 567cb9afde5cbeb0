package csvparser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ginjaninja78/enrollment-file-processor/internal/config"
	"github.com/ginjaninja78/enrollment-file-processor/internal/validation"
)

// maxLineSize bounds a single input line. Longer lines are rejected as
// MalformedRow and the read goes on.
const maxLineSize = 1024 * 1024

// rawPreviewSize caps the raw text kept for an over-long line.
const rawPreviewSize = 256

// =============================================================================
// STREAMING READER
// =============================================================================

// Reader parses a line-oriented source one row at a time.
//
// USAGE:
//   r, err := csvparser.Open(path, settings)
//   if err != nil {
//       return err // wraps validation.ErrSourceUnavailable
//   }
//   defer r.Close()
//
//   for r.Next() {
//       res := r.Result()
//       // ...
//   }
//   if err := r.Err(); err != nil {
//       return err
//   }
type Reader struct {
	closer     io.Closer
	lines      *bufio.Reader
	parser     *Parser
	source     string
	headerRows int

	current    Result
	lineNumber int
	err        error
}

// Open opens the file at path. Failing to open it is reported as
// validation.ErrSourceUnavailable.
func Open(path string, settings config.CSVSettings) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, validation.SourceUnavailable(path, err)
	}

	r, err := NewReader(file, settings)
	if err != nil {
		file.Close()
		return nil, err
	}
	r.closer = file
	r.source = path
	return r, nil
}

// NewReader reads from an already open stream. The caller keeps ownership of
// src; Close on the returned Reader does not close it.
func NewReader(src io.Reader, settings config.CSVSettings) (*Reader, error) {
	dec, err := decoderFor(settings.Encoding)
	if err != nil {
		return nil, err
	}

	lines := bufio.NewReaderSize(transform.NewReader(src, dec), 64*1024)

	headerRows := settings.HeaderRows
	if headerRows <= 0 {
		headerRows = 1
	}

	return &Reader{
		lines:      lines,
		parser:     NewParser(settings),
		source:     "<stream>",
		headerRows: headerRows,
	}, nil
}

// decoderFor returns the decoder for a configured encoding. A UTF-8 byte
// order mark is stripped.
func decoderFor(name string) (*encoding.Decoder, error) {
	normalized, ok := config.NormalizeEncoding(name)
	if !ok {
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
	switch normalized {
	case config.EncodingISO88591:
		return charmap.ISO8859_1.NewDecoder(), nil
	case config.EncodingWindows1252:
		return charmap.Windows1252.NewDecoder(), nil
	default:
		return unicode.UTF8BOM.NewDecoder(), nil
	}
}

// Next advances to the next data row. Header lines are skipped without
// validation and blank lines are skipped silently. Returns false at the end
// of input or on a read error.
func (r *Reader) Next() bool {
	if r.err != nil {
		return false
	}

	for {
		line, tooLong, err := r.readLine()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				r.err = validation.SourceUnavailable(r.source,
					fmt.Errorf("read failed after line %d: %w", r.lineNumber, err))
			}
			return false
		}
		r.lineNumber++

		if r.lineNumber <= r.headerRows {
			continue
		}
		if tooLong {
			r.current = rejected(&validation.Rejection{
				Reason: validation.ReasonMalformedRow,
				Raw:    line + "...",
				Line:   r.lineNumber,
				Detail: fmt.Sprintf("line exceeds %d bytes", maxLineSize),
			})
			return true
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		r.current = r.parser.ParseLine(line)
		if r.current.Rejection != nil {
			r.current.Rejection.Line = r.lineNumber
		}
		return true
	}
}

// readLine returns the next line without its line ending. A line longer than
// maxLineSize is drained and reported with tooLong set; only its first
// rawPreviewSize bytes are returned.
func (r *Reader) readLine() (string, bool, error) {
	var buf []byte
	tooLong := false
	for {
		chunk, isPrefix, err := r.lines.ReadLine()
		if err != nil {
			return "", false, err
		}

		if !tooLong {
			if len(buf)+len(chunk) > maxLineSize {
				tooLong = true
				buf = append(buf, chunk...)
				buf = buf[:rawPreviewSize]
			} else {
				buf = append(buf, chunk...)
			}
		}

		if !isPrefix {
			return string(buf), tooLong, nil
		}
	}
}

// Result returns the outcome for the current row.
func (r *Reader) Result() Result {
	return r.current
}

// LineNumber returns the 1-based number of the current line.
func (r *Reader) LineNumber() int {
	return r.lineNumber
}

// Source names the input, for log fields.
func (r *Reader) Source() string {
	return r.source
}

// Err returns the error that stopped the read, if any.
func (r *Reader) Err() error {
	return r.err
}

// Close releases the underlying file when the Reader opened it.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
