package csv

import (
	"io"
	"log/slog"
	"os"

	shapetokenizer "github.com/shapestone/shape-core/pkg/tokenizer"

	"github.com/shapestone/shape-csvreader/internal/parser"
)

type readerState int

const (
	stateUnopened readerState = iota
	statePositioned
	stateExhausted
	stateClosed
)

// Reader reads CSV records one at a time from an io.Reader.
// Only the current record is held in memory.
//
// A Reader is not safe for concurrent use.
//
// Example:
//
//	r := csv.NewReader(file)
//	defer r.Close()
//	for {
//	    ok, err := r.Read()
//	    if err != nil {
//	        return err
//	    }
//	    if !ok {
//	        break
//	    }
//	    name, _ := r.GetFieldByName("name")
//	    age, _ := csv.GetFieldByName[int](r, "age")
//	}
type Reader struct {
	opts   ReaderOptions
	logger *slog.Logger
	parser *parser.Parser
	src    *sourceReader
	closer io.Closer
	conv   *ConverterRegistry

	header    *headerMap
	record    []string
	row       int
	line      int
	state     readerState
	err       error
	iterating bool
}

// NewReader creates a Reader with DefaultReaderOptions.
func NewReader(src io.Reader) *Reader {
	r, err := NewReaderWithOptions(src, DefaultReaderOptions())
	if err != nil {
		panic(err)
	}
	return r
}

// NewReaderWithOptions creates a Reader with the given options.
// Returns *OptionsError if the options are invalid.
func NewReaderWithOptions(src io.Reader, opts ReaderOptions) (*Reader, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	logger := opts.logger()
	source := &sourceReader{r: src}
	stream := shapetokenizer.NewStreamFromReader(source)

	r := &Reader{
		opts:   opts,
		logger: logger,
		parser: parser.NewParserFromStreamWithOptions(stream, opts.parserOptions(logger)),
		src:    source,
		conv:   NewConverterRegistry(),
	}
	r.conv.SetNullValues(opts.NullValues...)
	for typ, conv := range opts.Converters {
		r.conv.Register(typ, conv)
	}
	return r, nil
}

// OpenFile opens the named file and returns a Reader that owns it.
// Close releases the file.
func OpenFile(path string, opts ReaderOptions) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReaderWithOptions(f, opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// Read advances to the next data record.
//
// On the first call with HasHeaderRecord set, the first record is consumed
// as the header before the first data record is read. Read returns
// (false, nil) once the input is exhausted, and keeps doing so. A malformed
// record or a failing source ends the session: the error is returned by
// this and every later call.
func (r *Reader) Read() (bool, error) {
	switch r.state {
	case stateClosed:
		return false, &StateError{Op: "Read", Reason: "reader is closed"}
	case stateExhausted:
		return false, r.err
	}

	if r.state == stateUnopened && r.opts.HasHeaderRecord {
		names, ok, err := r.next()
		if !ok {
			return false, err
		}
		r.header = newHeaderMap(names)
		r.logger.Debug("csv header captured", "fields", len(names), "line", r.parser.Line())
	}

	record, ok, err := r.next()
	if !ok {
		return false, err
	}
	r.record = record
	r.row++
	r.line = r.parser.Line()
	r.state = statePositioned
	return true, nil
}

// next pulls one record from the parser. On end of input or error the
// session becomes exhausted.
func (r *Reader) next() ([]string, bool, error) {
	record, err := r.parser.Next()
	if err == nil {
		return record, true, nil
	}
	if r.src.err != nil {
		// A failing source looks like a truncated stream to the parser.
		err = r.src.err
		r.logger.Debug("csv source failed", "error", err, "row", r.row+1)
	} else if err != io.EOF {
		err = wrapParseError(err)
		r.logger.Debug("csv read failed", "error", err, "row", r.row+1)
	} else {
		err = nil
		r.logger.Debug("csv stream exhausted", "rows", r.row)
	}
	r.state = stateExhausted
	r.record = nil
	r.err = err
	return nil, false, err
}

// sourceReader remembers the first non-EOF error from the source, which the
// token stream does not report.
type sourceReader struct {
	r   io.Reader
	err error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF && s.err == nil {
		s.err = err
	}
	return n, err
}

// current reports whether the reader is positioned on a record.
func (r *Reader) current(op string) error {
	switch r.state {
	case statePositioned:
		return nil
	case stateUnopened:
		return &StateError{Op: op, Reason: "Read has not been called"}
	case stateExhausted:
		return &StateError{Op: op, Reason: "no current record"}
	default:
		return &StateError{Op: op, Reason: "reader is closed"}
	}
}

// HasHeaderRecord reports whether the first record is treated as the header.
func (r *Reader) HasHeaderRecord() bool {
	return r.opts.HasHeaderRecord
}

// SetHasHeaderRecord changes header mode. It is only valid before the
// first Read.
func (r *Reader) SetHasHeaderRecord(v bool) error {
	if r.state != stateUnopened {
		return &StateError{Op: "SetHasHeaderRecord", Reason: "reading has already started"}
	}
	r.opts.HasHeaderRecord = v
	return nil
}

// FieldHeaders returns a copy of the header names.
// Returns *StateError when header mode is off or no header has been read.
func (r *Reader) FieldHeaders() ([]string, error) {
	if !r.opts.HasHeaderRecord {
		return nil, &StateError{Op: "FieldHeaders", Reason: "header record is disabled"}
	}
	if r.header == nil {
		return nil, &StateError{Op: "FieldHeaders", Reason: "no header record has been read"}
	}
	headers := make([]string, len(r.header.names))
	copy(headers, r.header.names)
	return headers, nil
}

// GetField returns the raw value of the field at index.
func (r *Reader) GetField(index int) (string, error) {
	if err := r.current("GetField"); err != nil {
		return "", err
	}
	if index < 0 || index >= len(r.record) {
		return "", &FieldIndexError{Index: index, Count: len(r.record)}
	}
	return r.record[index], nil
}

// GetFieldByName returns the raw value of the field under the named header.
// Names match exactly; duplicate header names resolve to the first column.
func (r *Reader) GetFieldByName(name string) (string, error) {
	if err := r.current("GetFieldByName"); err != nil {
		return "", err
	}
	index, err := r.indexOf(name)
	if err != nil {
		return "", err
	}
	if index >= len(r.record) {
		return "", &FieldIndexError{Index: index, Count: len(r.record), Name: name}
	}
	return r.record[index], nil
}

func (r *Reader) indexOf(name string) (int, error) {
	if r.header == nil {
		return -1, &FieldNameError{Name: name, NoHeader: true}
	}
	index, ok := r.header.index(name)
	if !ok {
		return -1, &FieldNameError{Name: name}
	}
	return index, nil
}

// Field returns the raw value at index, or ("", false) if there is no such
// field or no current record.
func (r *Reader) Field(index int) (string, bool) {
	v, err := r.GetField(index)
	return v, err == nil
}

// FieldByName returns the raw value under the named header, or ("", false)
// if there is no such field or no current record.
func (r *Reader) FieldByName(name string) (string, bool) {
	v, err := r.GetFieldByName(name)
	return v, err == nil
}

// Record returns a snapshot of the current record.
func (r *Reader) Record() (Record, error) {
	if err := r.current("Record"); err != nil {
		return Record{}, err
	}
	return Record{fields: r.record, header: r.header, row: r.row}, nil
}

// Row returns the 1-based number of the current data record, not counting
// the header. It is 0 before the first Read.
func (r *Reader) Row() int {
	return r.row
}

// Line returns the input line on which the current record started.
func (r *Reader) Line() int {
	return r.line
}

// Converters returns the reader's converter registry.
func (r *Reader) Converters() *ConverterRegistry {
	return r.conv
}

// Close releases the reader. If the reader owns its source (OpenFile), the
// source is closed. Close is idempotent.
func (r *Reader) Close() error {
	if r.state == stateClosed {
		return nil
	}
	r.state = stateClosed
	r.record = nil
	r.parser = nil
	if r.closer == nil {
		return nil
	}
	closer := r.closer
	r.closer = nil
	return closer.Close()
}
