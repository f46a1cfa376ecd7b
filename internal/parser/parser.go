// Package parser implements record-at-a-time CSV parsing on top of the token
// stream produced by internal/tokenizer.
//
// Grammar:
//
//	Record        = Field { Delimiter Field } ( LineTerminator | EOF ) ;
//	Field         = QuotedField | UnquotedField ;
//	QuotedField   = Quote { QuotedChar | Quote Quote } Quote ;
//	UnquotedField = { UnquotedChar } ;
//
// Each production corresponds to a parse function below. Records are pulled
// one at a time with Next, so memory use is bounded by the largest record.
package parser

import (
	"errors"
	"fmt"
	"io"
	"strings"

	shapetokenizer "github.com/shapestone/shape-core/pkg/tokenizer"
	"github.com/shapestone/shape-csvreader/internal/tokenizer"
)

// BadLineMode specifies how to handle malformed lines.
type BadLineMode int

const (
	// BadLineModeError returns an error on malformed lines (default).
	BadLineModeError BadLineMode = iota
	// BadLineModeWarn reports the line through WarningCallback and skips it.
	BadLineModeWarn
	// BadLineModeSkip silently skips malformed lines.
	BadLineModeSkip
)

// Parsing errors. They are wrapped in *Error, which carries the position.
var (
	ErrBareQuote         = errors.New("bare quote in non-quoted field")
	ErrQuote             = errors.New("extraneous or missing quote in quoted field")
	ErrUnterminatedQuote = errors.New("unterminated quoted field")
	ErrFieldCount        = errors.New("wrong number of fields")
	ErrFieldTooLarge     = errors.New("field exceeds maximum size")
)

// Error is a parsing error with position information.
type Error struct {
	// StartLine is the line where the record started (1-indexed).
	StartLine int
	// Line is the line where the error occurred (1-indexed).
	Line int
	// Column is the column where the error occurred, 0 if unknown.
	Column int
	// Err is the underlying error.
	Err error
}

func (e *Error) Error() string {
	if e.StartLine == e.Line {
		return fmt.Sprintf("parse error on line %d, column %d: %v", e.Line, e.Column, e.Err)
	}
	return fmt.Sprintf("parse error on line %d (started line %d), column %d: %v",
		e.Line, e.StartLine, e.Column, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Options configures the parser behavior.
type Options struct {
	// Comma is the field delimiter. Default: ','
	Comma rune
	// Quote is the quote character. Default: '"'
	Quote rune
	// Comment is the comment character. Lines starting with it are skipped. Default: 0 (disabled)
	Comment rune
	// FieldsPerRecord validates field count. 0=first record sets count, negative=no validation
	FieldsPerRecord int
	// LazyQuotes allows quotes in unquoted fields and non-doubled quotes in quoted fields
	LazyQuotes bool
	// TrimLeadingSpace trims leading whitespace from unquoted fields
	TrimLeadingSpace bool
	// TrimTrailingSpace trims trailing whitespace from unquoted fields
	TrimTrailingSpace bool
	// OnBadLine specifies how to handle malformed lines. Default: BadLineModeError
	OnBadLine BadLineMode
	// MaxFieldSize is the maximum allowed size for a single field in bytes. 0 means no limit.
	MaxFieldSize int
	// WarningCallback is invoked for skipped lines when OnBadLine is BadLineModeWarn
	WarningCallback func(line int, message string)
}

// DefaultOptions returns default parser options.
func DefaultOptions() Options {
	return Options{
		Comma:           ',',
		Quote:           '"',
		FieldsPerRecord: -1,
	}
}

// Parser pulls CSV records from a token stream.
// It keeps a single token of lookahead.
type Parser struct {
	tokenizer      *shapetokenizer.Tokenizer
	current        *shapetokenizer.Token
	hasToken       bool
	opts           Options
	expectedFields int
	line           int // line of the current token
	recordLine     int // line where the last returned record started
	capHint        int
}

// NewParser creates a parser for the given input string.
// For parsing from io.Reader, use NewParserFromStream instead.
func NewParser(input string) *Parser {
	return NewParserWithOptions(input, DefaultOptions())
}

// NewParserWithOptions creates a parser for the given input string with custom options.
func NewParserWithOptions(input string, opts Options) *Parser {
	return NewParserFromStreamWithOptions(shapetokenizer.NewStream(input), opts)
}

// NewParserFromStream creates a parser using a pre-configured stream.
// Use shapetokenizer.NewStreamFromReader to parse from an io.Reader.
func NewParserFromStream(stream shapetokenizer.Stream) *Parser {
	return NewParserFromStreamWithOptions(stream, DefaultOptions())
}

// NewParserFromStreamWithOptions creates a parser from a stream with custom options.
func NewParserFromStreamWithOptions(stream shapetokenizer.Stream, opts Options) *Parser {
	if opts.Comma == 0 {
		opts.Comma = ','
	}
	if opts.Quote == 0 {
		opts.Quote = '"'
	}
	tok := tokenizer.NewTokenizerWithStreamAndOptions(stream, tokenizer.Options{
		Comma: opts.Comma,
		Quote: opts.Quote,
	})

	p := &Parser{
		tokenizer:      &tok,
		opts:           opts,
		expectedFields: opts.FieldsPerRecord,
		line:           1,
	}
	p.advance()
	return p
}

// Next returns the next record.
// It returns io.EOF once the input is exhausted, and keeps returning it.
// Blank lines never produce records.
func (p *Parser) Next() ([]string, error) {
	for p.hasToken {
		if p.current.Kind() == tokenizer.TokenNewline {
			p.advanceLine()
			continue
		}

		if p.opts.Comment != 0 && p.isCommentLine() {
			p.skipLine()
			continue
		}

		startLine := p.line
		record, err := p.parseRecord(startLine)
		if err != nil {
			if err := p.handleBadLine(err); err != nil {
				return nil, err
			}
			p.skipLine()
			continue
		}

		if err := p.checkFieldCount(record, startLine); err != nil {
			if err := p.handleBadLine(err); err != nil {
				return nil, err
			}
			continue
		}

		if p.capHint == 0 {
			p.capHint = len(record)
		}
		p.recordLine = startLine
		return record, nil
	}
	return nil, io.EOF
}

// ParseAll reads every remaining record.
func (p *Parser) ParseAll() ([][]string, error) {
	records := make([][]string, 0, 16)
	for {
		record, err := p.Next()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
}

// Line returns the line on which the most recently returned record started.
func (p *Parser) Line() int {
	return p.recordLine
}

func (p *Parser) handleBadLine(err error) error {
	switch p.opts.OnBadLine {
	case BadLineModeSkip:
		return nil
	case BadLineModeWarn:
		if p.opts.WarningCallback != nil {
			line := p.line
			var perr *Error
			if errors.As(err, &perr) {
				line = perr.StartLine
			}
			p.opts.WarningCallback(line, err.Error())
		}
		return nil
	default:
		return err
	}
}

func (p *Parser) checkFieldCount(record []string, startLine int) error {
	if p.opts.FieldsPerRecord < 0 {
		return nil
	}
	if p.expectedFields == 0 {
		p.expectedFields = len(record)
		return nil
	}
	if len(record) != p.expectedFields {
		return &Error{
			StartLine: startLine,
			Line:      startLine,
			Column:    1,
			Err:       fmt.Errorf("%w (got %d, expected %d)", ErrFieldCount, len(record), p.expectedFields),
		}
	}
	return nil
}

// parseRecord parses a single record and consumes its line terminator.
//
// Grammar:
//
//	Record = Field { Delimiter Field } ( LineTerminator | EOF ) ;
func (p *Parser) parseRecord(startLine int) ([]string, error) {
	fields := make([]string, 0, p.capHint)

	for {
		field, err := p.parseField(startLine)
		if err != nil {
			return nil, err
		}
		fields = append(fields, field)

		if p.hasToken && p.current.Kind() == tokenizer.TokenComma {
			p.advance()
			continue
		}
		if p.hasToken && p.current.Kind() == tokenizer.TokenNewline {
			p.advanceLine()
		}
		return fields, nil
	}
}

// parseField parses a single field. It stops at a delimiter, a newline or
// the end of input without consuming it.
//
// Grammar:
//
//	Field = QuotedField | UnquotedField ;
func (p *Parser) parseField(startLine int) (string, error) {
	if p.opts.TrimLeadingSpace {
		for p.hasToken && p.current.Kind() == tokenizer.TokenField {
			value := p.current.ValueString()
			if strings.TrimLeft(value, " \t") != "" {
				break
			}
			p.advance()
		}
	}

	if p.hasToken && p.current.Kind() == tokenizer.TokenQuote {
		return p.parseQuotedField(startLine)
	}
	return p.parseUnquotedField(startLine)
}

// parseQuotedField parses a quoted field.
//
// Grammar:
//
//	QuotedField  = Quote { QuotedChar | EscapedQuote } Quote ;
//	EscapedQuote = Quote Quote ;
//
// Delimiters and newlines inside the quotes are kept literally.
func (p *Parser) parseQuotedField(startLine int) (string, error) {
	openColumn := p.current.Column()
	p.advance()

	var value strings.Builder
	for {
		if !p.hasToken {
			if p.opts.LazyQuotes {
				return p.checkFieldSize(value.String(), startLine)
			}
			return "", &Error{StartLine: startLine, Line: p.line, Column: openColumn, Err: ErrUnterminatedQuote}
		}

		tok := p.current
		switch tok.Kind() {
		case tokenizer.TokenQuote:
			p.advance()
			if p.hasToken && p.current.Kind() == tokenizer.TokenQuote {
				value.WriteString(p.current.ValueString())
				p.advance()
				continue
			}
			if !p.hasToken || p.current.Kind() == tokenizer.TokenComma || p.current.Kind() == tokenizer.TokenNewline {
				return p.checkFieldSize(value.String(), startLine)
			}
			if !p.opts.LazyQuotes {
				return "", &Error{StartLine: startLine, Line: p.line, Column: p.current.Column(), Err: ErrQuote}
			}
			value.WriteString(tok.ValueString())
		case tokenizer.TokenNewline:
			value.WriteString(tok.ValueString())
			p.advanceLine()
		default:
			value.WriteString(tok.ValueString())
			p.advance()
		}
	}
}

// parseUnquotedField parses an unquoted field.
//
// Grammar:
//
//	UnquotedField = { UnquotedChar } ;
//	UnquotedChar  = <any character except delimiter, quote, CR, LF> ;
//
// With LazyQuotes, quote characters are kept as literal content.
func (p *Parser) parseUnquotedField(startLine int) (string, error) {
	var value strings.Builder

	for p.hasToken {
		tok := p.current
		kind := tok.Kind()
		if kind == tokenizer.TokenComma || kind == tokenizer.TokenNewline {
			break
		}
		if kind == tokenizer.TokenQuote && !p.opts.LazyQuotes {
			return "", &Error{StartLine: startLine, Line: p.line, Column: tok.Column(), Err: ErrBareQuote}
		}
		value.WriteString(tok.ValueString())
		p.advance()
	}

	s := value.String()
	if p.opts.TrimLeadingSpace {
		s = strings.TrimLeft(s, " \t")
	}
	if p.opts.TrimTrailingSpace {
		s = strings.TrimRight(s, " \t")
	}
	return p.checkFieldSize(s, startLine)
}

func (p *Parser) checkFieldSize(s string, startLine int) (string, error) {
	if p.opts.MaxFieldSize > 0 && len(s) > p.opts.MaxFieldSize {
		return "", &Error{
			StartLine: startLine,
			Line:      p.line,
			Err:       fmt.Errorf("%w (%d > %d)", ErrFieldTooLarge, len(s), p.opts.MaxFieldSize),
		}
	}
	return s, nil
}

// advance moves to the next token.
func (p *Parser) advance() {
	token, ok := p.tokenizer.NextToken()
	if ok {
		p.current = token
		p.hasToken = true
	} else {
		p.current = nil
		p.hasToken = false
	}
}

// advanceLine consumes a newline token.
func (p *Parser) advanceLine() {
	p.line++
	p.advance()
}

// isCommentLine checks if the current line starts with the comment character.
func (p *Parser) isCommentLine() bool {
	if p.current.Kind() != tokenizer.TokenField {
		return false
	}
	value := p.current.ValueString()
	return strings.HasPrefix(value, string(p.opts.Comment))
}

// skipLine advances past all tokens until the next newline or EOF.
func (p *Parser) skipLine() {
	for p.hasToken {
		if p.current.Kind() == tokenizer.TokenNewline {
			p.advanceLine()
			return
		}
		p.advance()
	}
}
