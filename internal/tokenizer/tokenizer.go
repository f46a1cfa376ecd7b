package tokenizer

import (
	"github.com/shapestone/shape-core/pkg/tokenizer"
)

// Options configures the tokenizer behavior.
type Options struct {
	// Comma is the field delimiter. Default: ','
	Comma rune
	// Quote is the quote character. Default: '"'
	Quote rune
}

// DefaultOptions returns default tokenizer options.
func DefaultOptions() Options {
	return Options{
		Comma: ',',
		Quote: '"',
	}
}

// NewTokenizer creates a tokenizer for CSV format with the default delimiter
// and quote character.
//
// CSV field content depends on context (inside or outside quotes), so the
// tokenizer works at the character level and leaves that decision to the
// record parser. Matchers are tried in order of specificity:
//  1. Newlines (CRLF before LF and CR to match the longer sequence first)
//  2. Delimiter
//  3. Quote
//  4. Field content (any other character run)
//
// Whitespace is significant in CSV and is never skipped.
func NewTokenizer() tokenizer.Tokenizer {
	return NewTokenizerWithOptions(DefaultOptions())
}

// NewTokenizerWithOptions creates a tokenizer with custom options.
// Zero-valued options fall back to the defaults.
func NewTokenizerWithOptions(opts Options) tokenizer.Tokenizer {
	opts = opts.withDefaults()
	return tokenizer.NewTokenizerWithoutWhitespace(
		tokenizer.StringMatcherFunc(TokenNewline, "\r\n"),
		tokenizer.StringMatcherFunc(TokenNewline, "\n"),
		tokenizer.StringMatcherFunc(TokenNewline, "\r"),

		tokenizer.StringMatcherFunc(TokenComma, string(opts.Comma)),
		tokenizer.StringMatcherFunc(TokenQuote, string(opts.Quote)),

		FieldContentMatcher(opts.Comma, opts.Quote),
	)
}

// NewTokenizerWithStream creates a tokenizer over a pre-configured stream,
// such as one built with tokenizer.NewStreamFromReader.
func NewTokenizerWithStream(stream tokenizer.Stream) tokenizer.Tokenizer {
	return NewTokenizerWithStreamAndOptions(stream, DefaultOptions())
}

// NewTokenizerWithStreamAndOptions creates a tokenizer from a stream with custom options.
func NewTokenizerWithStreamAndOptions(stream tokenizer.Stream, opts Options) tokenizer.Tokenizer {
	tok := NewTokenizerWithOptions(opts)
	tok.InitializeFromStream(stream)
	return tok
}

func (o Options) withDefaults() Options {
	if o.Comma == 0 {
		o.Comma = ','
	}
	if o.Quote == 0 {
		o.Quote = '"'
	}
	return o
}

// FieldContentMatcher creates a matcher for field content.
// It matches runs of characters that are not the delimiter, the quote
// character, CR, or LF.
//
// Grammar:
//
//	Field = Character+ ;
//	Character = <any character except delimiter, quote, CR, LF> ;
//
// Uses ByteStream for fast scanning when both delimiter and quote are ASCII.
func FieldContentMatcher(delim, quote rune) tokenizer.Matcher {
	return func(stream tokenizer.Stream) *tokenizer.Token {
		if delim < 128 && quote < 128 {
			if byteStream, ok := stream.(tokenizer.ByteStream); ok {
				return fieldContentBytes(byteStream, byte(delim), byte(quote))
			}
		}
		return fieldContentRunes(stream, delim, quote)
	}
}

func fieldContentBytes(stream tokenizer.ByteStream, delim, quote byte) *tokenizer.Token {
	startPos := stream.BytePosition()

	for {
		b, ok := stream.PeekByte()
		if !ok {
			break
		}
		if b == delim || b == quote || b == '\n' || b == '\r' {
			break
		}
		stream.NextByte()
	}

	if stream.BytePosition() == startPos {
		return nil
	}

	value := stream.SliceFrom(startPos)
	return tokenizer.NewToken(TokenField, []rune(string(value)))
}

func fieldContentRunes(stream tokenizer.Stream, delim, quote rune) *tokenizer.Token {
	var value []rune

	for {
		r, ok := stream.PeekChar()
		if !ok {
			break
		}
		if r == delim || r == quote || r == '\n' || r == '\r' {
			break
		}
		stream.NextChar()
		value = append(value, r)
	}

	if len(value) == 0 {
		return nil
	}

	return tokenizer.NewToken(TokenField, value)
}
