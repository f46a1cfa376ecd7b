package parser

import (
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"

	shapetokenizer "github.com/shapestone/shape-core/pkg/tokenizer"
)

func TestParseAll(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  [][]string
	}{
		{"empty input", "", [][]string{}},
		{"single field", "a", [][]string{{"a"}}},
		{"single record", "a,b,c", [][]string{{"a", "b", "c"}}},
		{"trailing newline", "a,b\n", [][]string{{"a", "b"}}},
		{"multiple records", "a,b\nc,d\n", [][]string{{"a", "b"}, {"c", "d"}}},
		{"CRLF endings", "a,b\r\nc,d\r\n", [][]string{{"a", "b"}, {"c", "d"}}},
		{"CR endings", "a,b\rc,d", [][]string{{"a", "b"}, {"c", "d"}}},
		{"blank lines skipped", "a\n\n\nb\n\n", [][]string{{"a"}, {"b"}}},
		{"empty fields", ",,\n", [][]string{{"", "", ""}}},
		{"trailing delimiter", "a,b,", [][]string{{"a", "b", ""}}},
		{"quoted delimiter", `x,"y,z",w` + "\n", [][]string{{"x", "y,z", "w"}}},
		{"escaped quote", `"say ""hi"""`, [][]string{{`say "hi"`}}},
		{"empty quoted field", `"",b`, [][]string{{"", "b"}}},
		{"quoted newline", "a,\"b\nc\",d\ne,f,g", [][]string{{"a", "b\nc", "d"}, {"e", "f", "g"}}},
		{"quoted CRLF kept", "\"b\r\nc\"", [][]string{{"b\r\nc"}}},
		{"whitespace preserved", " a , b ", [][]string{{" a ", " b "}}},
		{"unicode", "名前,年齢\n太郎,30", [][]string{{"名前", "年齢"}, {"太郎", "30"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewParser(tt.input).ParseAll()
			if err != nil {
				t.Fatalf("ParseAll() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseAll() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseAll_Options(t *testing.T) {
	tests := []struct {
		name  string
		input string
		opts  func(*Options)
		want  [][]string
	}{
		{
			name:  "semicolon delimiter",
			input: "a;b,c\n",
			opts:  func(o *Options) { o.Comma = ';' },
			want:  [][]string{{"a", "b,c"}},
		},
		{
			name:  "single quote character",
			input: "'a;b';'it''s'",
			opts:  func(o *Options) { o.Comma = ';'; o.Quote = '\'' },
			want:  [][]string{{"a;b", "it's"}},
		},
		{
			name:  "comment lines",
			input: "# header comment\na,b\n#skip,me\nc,d",
			opts:  func(o *Options) { o.Comment = '#' },
			want:  [][]string{{"a", "b"}, {"c", "d"}},
		},
		{
			name:  "trim leading space",
			input: "  a,\t b,   \"c\"",
			opts:  func(o *Options) { o.TrimLeadingSpace = true },
			want:  [][]string{{"a", "b", "c"}},
		},
		{
			name:  "trim trailing space",
			input: "a  ,b\t, \"c \"",
			opts:  func(o *Options) { o.TrimTrailingSpace = true; o.LazyQuotes = true },
			want:  [][]string{{"a", "b", ` "c "`}},
		},
		{
			name:  "lazy bare quote",
			input: `a"b,c`,
			opts:  func(o *Options) { o.LazyQuotes = true },
			want:  [][]string{{`a"b`, "c"}},
		},
		{
			name:  "lazy quote after closing quote",
			input: `"a"b",c`,
			opts:  func(o *Options) { o.LazyQuotes = true },
			want:  [][]string{{`a"b`, "c"}},
		},
		{
			name:  "lazy unterminated quote ends at EOF",
			input: `"abc`,
			opts:  func(o *Options) { o.LazyQuotes = true },
			want:  [][]string{{"abc"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.opts(&opts)
			got, err := NewParserWithOptions(tt.input, opts).ParseAll()
			if err != nil {
				t.Fatalf("ParseAll() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseAll() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNext_Errors(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		opts      func(*Options)
		wantErr   error
		wantStart int
		wantLine  int
	}{
		{
			name:      "unterminated quote",
			input:     "a,b\nc,\"d\ne",
			wantErr:   ErrUnterminatedQuote,
			wantStart: 2,
			wantLine:  3,
		},
		{
			name:      "bare quote",
			input:     "a,b\"c\n",
			wantErr:   ErrBareQuote,
			wantStart: 1,
			wantLine:  1,
		},
		{
			name:      "text after closing quote",
			input:     "\"a\"b,c\n",
			wantErr:   ErrQuote,
			wantStart: 1,
			wantLine:  1,
		},
		{
			name:      "field count from first record",
			input:     "a,b\nc\n",
			opts:      func(o *Options) { o.FieldsPerRecord = 0 },
			wantErr:   ErrFieldCount,
			wantStart: 2,
			wantLine:  2,
		},
		{
			name:      "fixed field count",
			input:     "a,b\n",
			opts:      func(o *Options) { o.FieldsPerRecord = 3 },
			wantErr:   ErrFieldCount,
			wantStart: 1,
			wantLine:  1,
		},
		{
			name:      "field too large",
			input:     "abcdef\n",
			opts:      func(o *Options) { o.MaxFieldSize = 3 },
			wantErr:   ErrFieldTooLarge,
			wantStart: 1,
			wantLine:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			if tt.opts != nil {
				tt.opts(&opts)
			}
			_, err := NewParserWithOptions(tt.input, opts).ParseAll()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ParseAll() error = %v, want %v", err, tt.wantErr)
			}
			var perr *Error
			if !errors.As(err, &perr) {
				t.Fatalf("error %T is not *Error", err)
			}
			if perr.StartLine != tt.wantStart || perr.Line != tt.wantLine {
				t.Errorf("error position = start %d line %d, want start %d line %d",
					perr.StartLine, perr.Line, tt.wantStart, tt.wantLine)
			}
		})
	}
}

func TestNext_BadLineModes(t *testing.T) {
	input := "a,b\nc,d\"\ne,f\n"

	t.Run("skip", func(t *testing.T) {
		opts := DefaultOptions()
		opts.OnBadLine = BadLineModeSkip
		got, err := NewParserWithOptions(input, opts).ParseAll()
		if err != nil {
			t.Fatalf("ParseAll() error = %v", err)
		}
		want := [][]string{{"a", "b"}, {"e", "f"}}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("ParseAll() = %q, want %q", got, want)
		}
	})

	t.Run("warn", func(t *testing.T) {
		var warnedLines []int
		opts := DefaultOptions()
		opts.OnBadLine = BadLineModeWarn
		opts.WarningCallback = func(line int, message string) {
			warnedLines = append(warnedLines, line)
			if !strings.Contains(message, ErrBareQuote.Error()) {
				t.Errorf("warning message %q does not mention bare quote", message)
			}
		}
		got, err := NewParserWithOptions(input, opts).ParseAll()
		if err != nil {
			t.Fatalf("ParseAll() error = %v", err)
		}
		if len(got) != 2 {
			t.Errorf("got %d records, want 2", len(got))
		}
		if !reflect.DeepEqual(warnedLines, []int{2}) {
			t.Errorf("warned lines = %v, want [2]", warnedLines)
		}
	})
}

func TestNext_EOFIsSticky(t *testing.T) {
	p := NewParser("a\n")
	if _, err := p.Next(); err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := p.Next(); err != io.EOF {
			t.Fatalf("Next() call %d error = %v, want io.EOF", i, err)
		}
	}
}

func TestNext_RecordLine(t *testing.T) {
	p := NewParser("a\n\"b\nc\"\nd")
	wantLines := []int{1, 2, 4}
	for i, want := range wantLines {
		if _, err := p.Next(); err != nil {
			t.Fatalf("Next() %d error = %v", i, err)
		}
		if got := p.Line(); got != want {
			t.Errorf("record %d Line() = %d, want %d", i, got, want)
		}
	}
}

func TestNewParserFromStream(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 500; i++ {
		sb.WriteString("\"quoted, value\",plain,\"multi\nline\"\n")
	}

	stream := shapetokenizer.NewStreamFromReader(strings.NewReader(sb.String()))
	p := NewParserFromStream(stream)

	count := 0
	for {
		record, err := p.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next() error after %d records: %v", count, err)
		}
		want := []string{"quoted, value", "plain", "multi\nline"}
		if !reflect.DeepEqual(record, want) {
			t.Fatalf("record %d = %q, want %q", count, record, want)
		}
		count++
	}
	if count != 500 {
		t.Errorf("got %d records, want 500", count)
	}
}

func TestError_Message(t *testing.T) {
	same := &Error{StartLine: 5, Line: 5, Column: 10, Err: ErrBareQuote}
	if got, want := same.Error(), "parse error on line 5, column 10: bare quote in non-quoted field"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	spanning := &Error{StartLine: 3, Line: 5, Column: 1, Err: ErrUnterminatedQuote}
	if got, want := spanning.Error(), "parse error on line 5 (started line 3), column 1: unterminated quoted field"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
