package csv

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/shapestone/shape-csvreader/internal/parser"
)

// BadLineMode specifies how the reader handles malformed CSV lines.
type BadLineMode int

const (
	// BadLineModeError returns an error on malformed lines (default).
	BadLineModeError BadLineMode = iota
	// BadLineModeWarn logs a warning and skips the line.
	BadLineModeWarn
	// BadLineModeSkip silently skips malformed lines.
	BadLineModeSkip
)

// String returns the string representation of BadLineMode.
func (m BadLineMode) String() string {
	switch m {
	case BadLineModeError:
		return "error"
	case BadLineModeWarn:
		return "warn"
	case BadLineModeSkip:
		return "skip"
	default:
		return fmt.Sprintf("BadLineMode(%d)", m)
	}
}

func (m BadLineMode) parserMode() parser.BadLineMode {
	switch m {
	case BadLineModeWarn:
		return parser.BadLineModeWarn
	case BadLineModeSkip:
		return parser.BadLineModeSkip
	default:
		return parser.BadLineModeError
	}
}

// Error kinds. Every error returned by a Reader matches one of these with
// errors.Is.
var (
	// ErrMalformedRecord matches every *ParseError.
	ErrMalformedRecord = errors.New("csv: malformed record")
	// ErrIndexOutOfRange matches *FieldIndexError.
	ErrIndexOutOfRange = errors.New("csv: field index out of range")
	// ErrFieldNotFound matches *FieldNameError.
	ErrFieldNotFound = errors.New("csv: field not found")
	// ErrTypeConversion matches *ConversionError.
	ErrTypeConversion = errors.New("csv: type conversion failed")
	// ErrMissingConverter matches *MissingConverterError.
	ErrMissingConverter = errors.New("csv: no converter for type")
	// ErrInvalidOperation matches *StateError.
	ErrInvalidOperation = errors.New("csv: invalid operation")
	// ErrRecordMapping matches *MappingError.
	ErrRecordMapping = errors.New("csv: record mapping failed")
)

// Parsing errors, available through ParseError.Unwrap.
var (
	// ErrQuote indicates text after a closing quote.
	ErrQuote = parser.ErrQuote
	// ErrBareQuote indicates a quote inside an unquoted field.
	ErrBareQuote = parser.ErrBareQuote
	// ErrUnterminatedQuote indicates a quoted field left open at end of input.
	ErrUnterminatedQuote = parser.ErrUnterminatedQuote
	// ErrFieldCount indicates a record has the wrong number of fields.
	ErrFieldCount = parser.ErrFieldCount
	// ErrFieldTooLarge indicates a field exceeded MaxFieldSize.
	ErrFieldTooLarge = parser.ErrFieldTooLarge
)

// ParseError represents a malformed record with position information.
type ParseError struct {
	// StartLine is the line where the record started (1-indexed).
	StartLine int
	// Line is the line where the error occurred (1-indexed).
	Line int
	// Column is the column where the error occurred (1-indexed, 0 if unknown).
	Column int
	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message with position information.
func (e *ParseError) Error() string {
	if e.StartLine == e.Line {
		return fmt.Sprintf("csv: parse error on line %d, column %d: %v", e.Line, e.Column, e.Err)
	}
	return fmt.Sprintf("csv: parse error on line %d (started line %d), column %d: %v",
		e.Line, e.StartLine, e.Column, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrMalformedRecord.
func (e *ParseError) Is(target error) bool {
	return target == ErrMalformedRecord
}

// FieldIndexError reports a field index outside the current record.
type FieldIndexError struct {
	Index int
	Count int
	// Name is set when the index was resolved from a header name.
	Name string
}

func (e *FieldIndexError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("csv: field %q (index %d) out of range: record has %d fields", e.Name, e.Index, e.Count)
	}
	return fmt.Sprintf("csv: field index %d out of range: record has %d fields", e.Index, e.Count)
}

func (e *FieldIndexError) Is(target error) bool {
	return target == ErrIndexOutOfRange
}

// FieldNameError reports a header name that is not present.
type FieldNameError struct {
	Name string
	// NoHeader is true when the reader has no header record at all.
	NoHeader bool
}

func (e *FieldNameError) Error() string {
	if e.NoHeader {
		return fmt.Sprintf("csv: field %q not found: no header record", e.Name)
	}
	return fmt.Sprintf("csv: field %q not found in header", e.Name)
}

func (e *FieldNameError) Is(target error) bool {
	return target == ErrFieldNotFound
}

// ConversionError reports a raw field that could not be converted to the
// requested type.
type ConversionError struct {
	// Row is the 1-based data record number.
	Row int
	// Index is the field index, -1 if unknown.
	Index int
	// Name is the header name or mapped member name, if any.
	Name string
	// Value is the raw field value.
	Value string
	// Type is the target type.
	Type reflect.Type
	Err  error
}

func (e *ConversionError) Error() string {
	field := fmt.Sprintf("index %d", e.Index)
	if e.Name != "" {
		field = fmt.Sprintf("%q (index %d)", e.Name, e.Index)
	}
	return fmt.Sprintf("csv: row %d, field %s: cannot convert %q to %v: %v", e.Row, field, e.Value, e.Type, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

func (e *ConversionError) Is(target error) bool {
	return target == ErrTypeConversion
}

// MissingConverterError reports that no converter is registered for a type.
type MissingConverterError struct {
	Type reflect.Type
	// Name is set when a named converter was requested.
	Name string
	// Index is the field index, -1 if the lookup was not for a field.
	Index int
	// Field is the header name or mapped member name, if any.
	Field string
}

func (e *MissingConverterError) Error() string {
	msg := fmt.Sprintf("no converter for type %v", e.Type)
	if e.Name != "" {
		msg = fmt.Sprintf("no converter named %q", e.Name)
	}
	switch {
	case e.Field != "":
		return fmt.Sprintf("csv: field %q (index %d): %s", e.Field, e.Index, msg)
	case e.Index >= 0:
		return fmt.Sprintf("csv: field index %d: %s", e.Index, msg)
	}
	return "csv: " + msg
}

func (e *MissingConverterError) Is(target error) bool {
	return target == ErrMissingConverter
}

// StateError reports an operation that is not valid in the reader's
// current state.
type StateError struct {
	Op     string
	Reason string
}

func (e *StateError) Error() string {
	return "csv: " + e.Op + ": " + e.Reason
}

func (e *StateError) Is(target error) bool {
	return target == ErrInvalidOperation
}

// MappingError reports that a record cannot be mapped onto a type.
type MappingError struct {
	Type   reflect.Type
	Reason string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("csv: cannot map record to %v: %s", e.Type, e.Reason)
}

func (e *MappingError) Is(target error) bool {
	return target == ErrRecordMapping
}

// wrapParseError converts internal parser errors to *ParseError.
func wrapParseError(err error) error {
	var perr *parser.Error
	if errors.As(err, &perr) {
		return &ParseError{
			StartLine: perr.StartLine,
			Line:      perr.Line,
			Column:    perr.Column,
			Err:       perr.Err,
		}
	}
	return err
}
