package csv

import (
	"log/slog"
	"reflect"
	"unicode/utf8"

	"github.com/shapestone/shape-csvreader/internal/logging"
	"github.com/shapestone/shape-csvreader/internal/parser"
)

// ReaderOptions configures CSV reading behavior.
// The dialect fields mirror the encoding/csv.Reader configuration.
type ReaderOptions struct {
	// HasHeaderRecord controls whether the first record is the header.
	// Default: true
	HasHeaderRecord bool

	// Comma is the field delimiter.
	// It must be a valid rune and not \r, \n, the quote character, or the
	// Unicode replacement character (0xFFFD).
	// Default: ','
	Comma rune

	// Quote is the quote character.
	// Default: '"'
	Quote rune

	// Comment, if not 0, is the comment character. Lines beginning with the
	// Comment character without preceding whitespace are ignored.
	// Default: 0 (disabled)
	Comment rune

	// FieldsPerRecord is the expected number of fields per record.
	// If positive, each record must have exactly this many fields.
	// If 0, the first record determines the expected field count.
	// If negative, no field count validation is performed.
	// Default: -1
	FieldsPerRecord int

	// LazyQuotes controls whether a quote may appear in an unquoted field
	// and a non-doubled quote may appear in a quoted field.
	// Default: false
	LazyQuotes bool

	// TrimLeadingSpace controls whether leading white space in an unquoted
	// field is ignored.
	// Default: false
	TrimLeadingSpace bool

	// TrimTrailingSpace controls whether trailing white space in an
	// unquoted field is ignored.
	// Default: false
	TrimTrailingSpace bool

	// MaxFieldSize is the maximum allowed size for a single field in bytes.
	// 0 means no limit.
	MaxFieldSize int

	// OnBadLine specifies how to handle malformed lines.
	// Default: BadLineModeError
	OnBadLine BadLineMode

	// CaseSensitiveHeaders makes record mapping match header names exactly.
	// Name lookups through GetFieldByName are always exact.
	// Default: false
	CaseSensitiveHeaders bool

	// NullValues lists raw values treated as null by nullable target types.
	// Default: [""]
	NullValues []string

	// Converters are per-type overrides registered on the reader's registry.
	Converters map[reflect.Type]Converter

	// Logger receives debug and warning output. Default: discards everything.
	Logger *slog.Logger
}

// DefaultReaderOptions returns the default reader configuration.
func DefaultReaderOptions() ReaderOptions {
	return ReaderOptions{
		HasHeaderRecord: true,
		Comma:           ',',
		Quote:           '"',
		FieldsPerRecord: -1,
		OnBadLine:       BadLineModeError,
		NullValues:      []string{""},
	}
}

// validDelim reports whether r is a valid delimiter or quote character.
func validDelim(r rune) bool {
	return r != 0 && r != '\r' && r != '\n' && utf8.ValidRune(r) && r != utf8.RuneError
}

// Validate checks if the options are valid.
func (o ReaderOptions) Validate() error {
	if !validDelim(o.Comma) {
		return &OptionsError{Field: "Comma", Message: "invalid delimiter"}
	}
	if !validDelim(o.Quote) {
		return &OptionsError{Field: "Quote", Message: "invalid quote character"}
	}
	if o.Quote == o.Comma {
		return &OptionsError{Field: "Quote", Message: "quote character same as delimiter"}
	}
	if o.Comment != 0 && !validDelim(o.Comment) {
		return &OptionsError{Field: "Comment", Message: "invalid comment character"}
	}
	if o.Comment == o.Comma || o.Comment == o.Quote {
		return &OptionsError{Field: "Comment", Message: "comment character same as delimiter or quote"}
	}
	if o.MaxFieldSize < 0 {
		return &OptionsError{Field: "MaxFieldSize", Message: "must not be negative"}
	}
	switch o.OnBadLine {
	case BadLineModeError, BadLineModeWarn, BadLineModeSkip:
	default:
		return &OptionsError{Field: "OnBadLine", Message: "unknown mode " + o.OnBadLine.String()}
	}
	for typ, conv := range o.Converters {
		if typ == nil || conv == nil {
			return &OptionsError{Field: "Converters", Message: "nil type or converter"}
		}
	}
	return nil
}

func (o ReaderOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logging.Discard()
}

func (o ReaderOptions) parserOptions(logger *slog.Logger) parser.Options {
	return parser.Options{
		Comma:             o.Comma,
		Quote:             o.Quote,
		Comment:           o.Comment,
		FieldsPerRecord:   o.FieldsPerRecord,
		LazyQuotes:        o.LazyQuotes,
		TrimLeadingSpace:  o.TrimLeadingSpace,
		TrimTrailingSpace: o.TrimTrailingSpace,
		OnBadLine:         o.OnBadLine.parserMode(),
		MaxFieldSize:      o.MaxFieldSize,
		WarningCallback: func(line int, message string) {
			logger.Warn("skipping malformed line", "line", line, "error", message)
		},
	}
}

// OptionsError represents an invalid option configuration.
type OptionsError struct {
	Field   string
	Message string
}

func (e *OptionsError) Error() string {
	return "csv: invalid " + e.Field + ": " + e.Message
}
