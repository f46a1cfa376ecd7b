package csv_test

import (
	"database/sql"
	"errors"
	"net/netip"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/shapestone/shape-csvreader/pkg/csv"
)

type status string

type celsius int8

type level int

func (l *level) UnmarshalCSV(value string) error {
	switch strings.ToLower(value) {
	case "low":
		*l = 1
	case "high":
		*l = 2
	default:
		return errors.New("unknown level")
	}
	return nil
}

func numericFloat(t *testing.T, v any) float64 {
	t.Helper()
	n, ok := v.(pgtype.Numeric)
	if !ok {
		t.Fatalf("value %T is not pgtype.Numeric", v)
	}
	f, err := n.Float64Value()
	if err != nil {
		t.Fatalf("Numeric.Float64Value() error = %v", err)
	}
	return f.Float64
}

func mustParseFloat(t *testing.T, s string) float64 {
	t.Helper()
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		t.Fatalf("ParseFloat(%q) error = %v", s, err)
	}
	return f
}

func intPtr(v int) *int { return &v }

func TestConverterRegistry_Named(t *testing.T) {
	registry := csv.NewConverterRegistry()

	t.Run("built-in converters", func(t *testing.T) {
		names := []string{"int", "uint", "float", "bool", "date", "time", "datetime", "money"}
		for _, name := range names {
			if _, ok := registry.Named(name); !ok {
				t.Errorf("built-in converter %q not found", name)
			}
		}
	})

	t.Run("custom converter", func(t *testing.T) {
		registry.RegisterNamed("upper", csv.ConverterFunc(func(s string) (any, error) {
			return strings.ToUpper(s), nil
		}))

		conv, ok := registry.Named("upper")
		if !ok {
			t.Fatal("custom converter not found")
		}
		got, err := conv.Convert("test")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "TEST" {
			t.Errorf("custom converter returned %v, want \"TEST\"", got)
		}
	})

	t.Run("unknown converter", func(t *testing.T) {
		if _, ok := registry.Named("unknown"); ok {
			t.Error("unknown converter should not be found")
		}
	})
}

func TestConverterRegistry_Convert(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

	tests := []struct {
		name    string
		typ     reflect.Type
		raw     string
		want    any
		wantErr bool
	}{
		{"string", reflect.TypeFor[string](), "  hi ", "  hi ", false},
		{"empty string", reflect.TypeFor[string](), "", "", false},
		{"bytes", reflect.TypeFor[[]byte](), "ab", []byte("ab"), false},
		{"int", reflect.TypeFor[int](), "42", 42, false},
		{"int empty", reflect.TypeFor[int](), "", nil, true},
		{"int8 overflow", reflect.TypeFor[int8](), "300", nil, true},
		{"uint16", reflect.TypeFor[uint16](), "65535", uint16(65535), false},
		{"uint negative", reflect.TypeFor[uint](), "-1", nil, true},
		{"float32", reflect.TypeFor[float32](), "1.5", float32(1.5), false},
		{"float32 overflow", reflect.TypeFor[float32](), "1e40", nil, true},
		{"bool", reflect.TypeFor[bool](), "yes", true, false},
		{"bool empty", reflect.TypeFor[bool](), "", nil, true},
		{"time date", reflect.TypeFor[time.Time](), "2024-01-15", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), false},
		{"time rfc3339", reflect.TypeFor[time.Time](), "2024-01-15T10:30:00Z", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC), false},
		{"time ambiguous", reflect.TypeFor[time.Time](), "01/02/2024", nil, true},
		{"duration", reflect.TypeFor[time.Duration](), "1m30s", 90 * time.Second, false},
		{"uuid", reflect.TypeFor[uuid.UUID](), id.String(), id, false},
		{"uuid invalid", reflect.TypeFor[uuid.UUID](), "nope", nil, true},
		{"pointer", reflect.TypeFor[*int](), "7", intPtr(7), false},
		{"pointer null", reflect.TypeFor[*int](), "", (*int)(nil), false},
		{"pointer invalid", reflect.TypeFor[*int](), "x", nil, true},
		{"named string", reflect.TypeFor[status](), "active", status("active"), false},
		{"named int overflow", reflect.TypeFor[celsius](), "200", nil, true},
		{"named int", reflect.TypeFor[celsius](), "-40", celsius(-40), false},
		{"unmarshaler", reflect.TypeFor[level](), "High", level(2), false},
		{"unmarshaler error", reflect.TypeFor[level](), "mid", nil, true},
		{"text unmarshaler", reflect.TypeFor[netip.Addr](), "10.0.0.1", netip.MustParseAddr("10.0.0.1"), false},
		{"sql null string", reflect.TypeFor[sql.NullString](), "", sql.NullString{}, false},
		{"sql string", reflect.TypeFor[sql.NullString](), "x", sql.NullString{String: "x", Valid: true}, false},
		{"sql null int", reflect.TypeFor[sql.NullInt64](), "", sql.NullInt64{}, false},
		{"sql int", reflect.TypeFor[sql.NullInt64](), "5", sql.NullInt64{Int64: 5, Valid: true}, false},
		{"sql int invalid", reflect.TypeFor[sql.NullInt32](), "x", nil, true},
		{"pg null int4", reflect.TypeFor[pgtype.Int4](), "", pgtype.Int4{}, false},
		{"pg int4", reflect.TypeFor[pgtype.Int4](), "12", pgtype.Int4{Int32: 12, Valid: true}, false},
		{"pg text", reflect.TypeFor[pgtype.Text](), "a", pgtype.Text{String: "a", Valid: true}, false},
		{"pg bool", reflect.TypeFor[pgtype.Bool](), "false", pgtype.Bool{Bool: false, Valid: true}, false},
		{"pg date", reflect.TypeFor[pgtype.Date](), "2024-03-01", pgtype.Date{Time: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Valid: true}, false},
		{"pg uuid", reflect.TypeFor[pgtype.UUID](), id.String(), pgtype.UUID{Bytes: id, Valid: true}, false},
		{"pg null uuid", reflect.TypeFor[pgtype.UUID](), "", pgtype.UUID{}, false},
		{"pg numeric invalid", reflect.TypeFor[pgtype.Numeric](), "1,5", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := csv.NewConverterRegistry()
			got, err := registry.Convert(tt.typ, tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Convert(%v, %q) error = %v, wantErr %v", tt.typ, tt.raw, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if reflect.TypeOf(got) != tt.typ {
				t.Errorf("Convert(%v, %q) returned %T", tt.typ, tt.raw, got)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Convert(%v, %q) = %#v, want %#v", tt.typ, tt.raw, got, tt.want)
			}
		})
	}
}

func TestConverterRegistry_Numeric(t *testing.T) {
	registry := csv.NewConverterRegistry()
	got, err := registry.Convert(reflect.TypeFor[pgtype.Numeric](), "12.25")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f := numericFloat(t, got); f != 12.25 {
		t.Errorf("Convert(Numeric, \"12.25\") = %v, want 12.25", f)
	}

	got, err = registry.Convert(reflect.TypeFor[pgtype.Numeric](), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.(pgtype.Numeric).Valid {
		t.Error("Convert(Numeric, \"\") should be null")
	}
}

func TestConverterRegistry_MissingConverter(t *testing.T) {
	type point struct{ X, Y int }

	registry := csv.NewConverterRegistry()
	_, err := registry.Convert(reflect.TypeFor[point](), "1")
	if !errors.Is(err, csv.ErrMissingConverter) {
		t.Fatalf("Convert(point) error = %v, want ErrMissingConverter", err)
	}
	var mce *csv.MissingConverterError
	if !errors.As(err, &mce) || mce.Type != reflect.TypeFor[point]() {
		t.Errorf("MissingConverterError.Type = %v, want point", mce)
	}
	if _, ok := registry.Lookup(reflect.TypeFor[chan int]()); ok {
		t.Error("Lookup(chan int) should fail")
	}
}

func TestConverterRegistry_RegisterOverridesBuiltin(t *testing.T) {
	registry := csv.NewConverterRegistry()

	// Prime the resolved cache before overriding.
	if _, err := registry.Convert(reflect.TypeFor[*int](), "1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	csv.RegisterConverter(registry, func(s string) (int, error) {
		return len(s), nil
	})

	got, err := registry.Convert(reflect.TypeFor[int](), "abcd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 4 {
		t.Errorf("Convert(int) = %v, want 4", got)
	}

	// Derived pointer rules follow the override.
	got, err = registry.Convert(reflect.TypeFor[*int](), "abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p := got.(*int); p == nil || *p != 3 {
		t.Errorf("Convert(*int) = %v, want 3", got)
	}

	// A fresh registry is unaffected.
	if _, err := csv.NewConverterRegistry().Convert(reflect.TypeFor[int](), "abcd"); err == nil {
		t.Error("override leaked into another registry")
	}
}

func TestConverterRegistry_Coercion(t *testing.T) {
	tests := []struct {
		name    string
		result  any
		typ     reflect.Type
		want    any
		wantErr bool
	}{
		{"int64 to int8", int64(100), reflect.TypeFor[int8](), int8(100), false},
		{"int64 to int8 overflow", int64(1000), reflect.TypeFor[int8](), nil, true},
		{"negative to uint", int64(-1), reflect.TypeFor[uint](), nil, true},
		{"uint64 to int", uint64(5), reflect.TypeFor[int](), 5, false},
		{"string to named", "x", reflect.TypeFor[status](), status("x"), false},
		{"string to int", "x", reflect.TypeFor[int](), nil, true},
		{"float to int", 1.5, reflect.TypeFor[int](), nil, true},
		{"nil to pointer", nil, reflect.TypeFor[*int](), (*int)(nil), false},
		{"nil to int", nil, reflect.TypeFor[int](), nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := csv.NewConverterRegistry()
			registry.Register(tt.typ, csv.ConverterFunc(func(string) (any, error) {
				return tt.result, nil
			}))

			got, err := registry.Convert(tt.typ, "raw")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Convert() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Convert() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestConverterRegistry_NullValues(t *testing.T) {
	registry := csv.NewConverterRegistry()
	registry.SetNullValues("NULL", "N/A")

	got, err := registry.Convert(reflect.TypeFor[*int](), "NULL")
	if err != nil || got.(*int) != nil {
		t.Errorf("Convert(*int, NULL) = %v, %v; want nil pointer", got, err)
	}
	got, err = registry.Convert(reflect.TypeFor[pgtype.Int8](), "N/A")
	if err != nil || got.(pgtype.Int8).Valid {
		t.Errorf("Convert(Int8, N/A) = %v, %v; want null", got, err)
	}

	// The empty string is no longer null, so it reaches the int rule.
	if _, err := registry.Convert(reflect.TypeFor[*int](), ""); err == nil {
		t.Error("Convert(*int, \"\") should fail when \"\" is not a null value")
	}

	// Strings are never null.
	got, err = registry.Convert(reflect.TypeFor[string](), "NULL")
	if err != nil || got != "NULL" {
		t.Errorf("Convert(string, NULL) = %v, %v; want \"NULL\"", got, err)
	}

	if !registry.IsNull("N/A") || registry.IsNull("") {
		t.Error("IsNull() does not reflect SetNullValues")
	}
}
