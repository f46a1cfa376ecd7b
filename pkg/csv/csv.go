// Package csv provides a streaming CSV reader with typed field access.
//
// Records are read one at a time from any io.Reader. Fields are available
// by position or by header name, as raw strings or converted to Go types on
// demand, and whole records can be mapped onto structs.
//
// The tokenizer follows RFC 4180: quoted fields may contain delimiters,
// line breaks and doubled quotes; line endings may be \n, \r\n or \r.
//
// # Reading fields
//
//	r := csv.NewReader(strings.NewReader("name,age\nAlice,30\nBob,25"))
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
//	    age, err := csv.GetFieldByName[int](r, "age")
//	}
//
// # Mapping records
//
//	type Person struct {
//	    Name string `csv:"name"`
//	    Age  int    `csv:"age"`
//	}
//
//	for p, err := range csv.GetRecords[Person](r) {
//	    ...
//	}
//
// # Conversion
//
// Each Reader has its own ConverterRegistry. A converter passed to a call
// wins over a rule registered on the reader, which wins over the built-in
// rule for the type. Built-in rules cover strings, booleans, all integer
// and float types, time.Time, time.Duration, uuid.UUID, the database/sql
// Null types and the pgx pgtype types. Raw values listed in
// ReaderOptions.NullValues convert to null for pointer, sql.Null* and
// pgtype targets; for other non-string targets an empty value is a
// conversion error.
//
// # Thread Safety
//
// A Reader must be used by one goroutine at a time. Separate readers share
// nothing but an immutable cache of struct mapping plans, so concurrent use
// of different readers is safe.
package csv

import (
	"io"
	"strings"

	shapetokenizer "github.com/shapestone/shape-core/pkg/tokenizer"

	"github.com/shapestone/shape-csvreader/internal/parser"
)

// Validate checks if the input string is well-formed CSV under the default
// dialect.
//
// Returns nil if the input is valid CSV.
// Returns a *ParseError describing the first malformed record otherwise.
func Validate(input string) error {
	return ValidateReader(strings.NewReader(input))
}

// ValidateReader checks if the data from reader is well-formed CSV under
// the default dialect, without keeping any records.
func ValidateReader(reader io.Reader) error {
	stream := shapetokenizer.NewStreamFromReader(reader)
	p := parser.NewParserFromStream(stream)
	for {
		_, err := p.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return wrapParseError(err)
		}
	}
}
