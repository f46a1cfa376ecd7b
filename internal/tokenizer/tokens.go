// Package tokenizer provides CSV tokenization using Shape's tokenizer framework.
package tokenizer

// Token type constants for CSV format.
//
// The tokenizer emits character-level tokens only. Whether a delimiter or a
// newline belongs to a quoted field is decided by the record parser.
const (
	// Structural tokens
	TokenComma   = "Comma"   // field delimiter (configurable, ',' by default)
	TokenQuote   = "Quote"   // quote character (configurable, '"' by default)
	TokenNewline = "Newline" // \r\n, \n or \r (line terminator)

	// Field content token
	TokenField = "Field" // maximal run of non-structural characters
)
