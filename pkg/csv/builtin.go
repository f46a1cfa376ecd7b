package csv

import (
	"database/sql"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type builtinRule struct {
	conv Converter
	// nullable rules map the registry's null values to the zero value.
	nullable bool
}

func rule[T any](fn func(string) (T, error)) builtinRule {
	return builtinRule{conv: TypedConverter(fn)}
}

func nullableRule[T any](fn func(string) (T, error)) builtinRule {
	return builtinRule{conv: TypedConverter(fn), nullable: true}
}

// builtinRules is the immutable default rule table, consulted after the
// rules registered on a reader.
var builtinRules = map[reflect.Type]builtinRule{
	reflect.TypeFor[string](): rule(func(s string) (string, error) { return s, nil }),
	reflect.TypeFor[[]byte](): rule(func(s string) ([]byte, error) { return []byte(s), nil }),
	reflect.TypeFor[bool]():   rule(parseBool),

	reflect.TypeFor[int]():   {conv: IntConverter{BitSize: 0}},
	reflect.TypeFor[int8]():  {conv: IntConverter{BitSize: 8}},
	reflect.TypeFor[int16](): {conv: IntConverter{BitSize: 16}},
	reflect.TypeFor[int32](): {conv: IntConverter{BitSize: 32}},
	reflect.TypeFor[int64](): {conv: IntConverter{BitSize: 64}},

	reflect.TypeFor[uint]():   {conv: UintConverter{BitSize: 0}},
	reflect.TypeFor[uint8]():  {conv: UintConverter{BitSize: 8}},
	reflect.TypeFor[uint16](): {conv: UintConverter{BitSize: 16}},
	reflect.TypeFor[uint32](): {conv: UintConverter{BitSize: 32}},
	reflect.TypeFor[uint64](): {conv: UintConverter{BitSize: 64}},

	reflect.TypeFor[float32](): {conv: FloatConverter{BitSize: 32}},
	reflect.TypeFor[float64](): {conv: FloatConverter{BitSize: 64}},

	reflect.TypeFor[time.Time]():     rule(parseAnyTime),
	reflect.TypeFor[time.Duration](): rule(parseDuration),
	reflect.TypeFor[uuid.UUID]():     rule(parseUUID),

	reflect.TypeFor[sql.NullString](): nullableRule(func(s string) (sql.NullString, error) {
		return sql.NullString{String: s, Valid: true}, nil
	}),
	reflect.TypeFor[sql.NullBool](): nullableRule(func(s string) (sql.NullBool, error) {
		b, err := parseBool(s)
		return sql.NullBool{Bool: b, Valid: err == nil}, err
	}),
	reflect.TypeFor[sql.NullByte](): nullableRule(func(s string) (sql.NullByte, error) {
		u, err := parseUint(s, 10, 8)
		return sql.NullByte{Byte: byte(u), Valid: err == nil}, err
	}),
	reflect.TypeFor[sql.NullInt16](): nullableRule(func(s string) (sql.NullInt16, error) {
		i, err := parseInt(s, 10, 16)
		return sql.NullInt16{Int16: int16(i), Valid: err == nil}, err
	}),
	reflect.TypeFor[sql.NullInt32](): nullableRule(func(s string) (sql.NullInt32, error) {
		i, err := parseInt(s, 10, 32)
		return sql.NullInt32{Int32: int32(i), Valid: err == nil}, err
	}),
	reflect.TypeFor[sql.NullInt64](): nullableRule(func(s string) (sql.NullInt64, error) {
		i, err := parseInt(s, 10, 64)
		return sql.NullInt64{Int64: i, Valid: err == nil}, err
	}),
	reflect.TypeFor[sql.NullFloat64](): nullableRule(func(s string) (sql.NullFloat64, error) {
		f, err := parseFloat(s, 64)
		return sql.NullFloat64{Float64: f, Valid: err == nil}, err
	}),
	reflect.TypeFor[sql.NullTime](): nullableRule(func(s string) (sql.NullTime, error) {
		t, err := parseAnyTime(s)
		return sql.NullTime{Time: t, Valid: err == nil}, err
	}),

	reflect.TypeFor[pgtype.Text](): nullableRule(func(s string) (pgtype.Text, error) {
		return pgtype.Text{String: s, Valid: true}, nil
	}),
	reflect.TypeFor[pgtype.Bool](): nullableRule(func(s string) (pgtype.Bool, error) {
		b, err := parseBool(s)
		return pgtype.Bool{Bool: b, Valid: err == nil}, err
	}),
	reflect.TypeFor[pgtype.Int2](): nullableRule(func(s string) (pgtype.Int2, error) {
		i, err := parseInt(s, 10, 16)
		return pgtype.Int2{Int16: int16(i), Valid: err == nil}, err
	}),
	reflect.TypeFor[pgtype.Int4](): nullableRule(func(s string) (pgtype.Int4, error) {
		i, err := parseInt(s, 10, 32)
		return pgtype.Int4{Int32: int32(i), Valid: err == nil}, err
	}),
	reflect.TypeFor[pgtype.Int8](): nullableRule(func(s string) (pgtype.Int8, error) {
		i, err := parseInt(s, 10, 64)
		return pgtype.Int8{Int64: i, Valid: err == nil}, err
	}),
	reflect.TypeFor[pgtype.Float4](): nullableRule(func(s string) (pgtype.Float4, error) {
		f, err := parseFloat(s, 32)
		return pgtype.Float4{Float32: float32(f), Valid: err == nil}, err
	}),
	reflect.TypeFor[pgtype.Float8](): nullableRule(func(s string) (pgtype.Float8, error) {
		f, err := parseFloat(s, 64)
		return pgtype.Float8{Float64: f, Valid: err == nil}, err
	}),
	reflect.TypeFor[pgtype.Numeric](): nullableRule(parseNumeric),
	reflect.TypeFor[pgtype.Date](): nullableRule(func(s string) (pgtype.Date, error) {
		t, err := parseAnyTime(s)
		if err != nil {
			return pgtype.Date{}, err
		}
		y, m, d := t.Date()
		return pgtype.Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Valid: true}, nil
	}),
	reflect.TypeFor[pgtype.Timestamp](): nullableRule(func(s string) (pgtype.Timestamp, error) {
		t, err := parseAnyTime(s)
		return pgtype.Timestamp{Time: t, Valid: err == nil}, err
	}),
	reflect.TypeFor[pgtype.Timestamptz](): nullableRule(func(s string) (pgtype.Timestamptz, error) {
		t, err := parseAnyTime(s)
		return pgtype.Timestamptz{Time: t, Valid: err == nil}, err
	}),
	reflect.TypeFor[pgtype.UUID](): nullableRule(func(s string) (pgtype.UUID, error) {
		id, err := parseUUID(s)
		return pgtype.UUID{Bytes: id, Valid: err == nil}, err
	}),
}

// kindTypes maps a kind to the built-in type whose rule serves named types
// of that kind.
var kindTypes = map[reflect.Kind]reflect.Type{
	reflect.String:  reflect.TypeFor[string](),
	reflect.Bool:    reflect.TypeFor[bool](),
	reflect.Int:     reflect.TypeFor[int](),
	reflect.Int8:    reflect.TypeFor[int8](),
	reflect.Int16:   reflect.TypeFor[int16](),
	reflect.Int32:   reflect.TypeFor[int32](),
	reflect.Int64:   reflect.TypeFor[int64](),
	reflect.Uint:    reflect.TypeFor[uint](),
	reflect.Uint8:   reflect.TypeFor[uint8](),
	reflect.Uint16:  reflect.TypeFor[uint16](),
	reflect.Uint32:  reflect.TypeFor[uint32](),
	reflect.Uint64:  reflect.TypeFor[uint64](),
	reflect.Float32: reflect.TypeFor[float32](),
	reflect.Float64: reflect.TypeFor[float64](),
}

func parseDuration(s string) (time.Duration, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return 0, errEmptyValue
	}
	return time.ParseDuration(v)
}

func parseUUID(s string) (uuid.UUID, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return uuid.UUID{}, errEmptyValue
	}
	return uuid.Parse(v)
}

var numericPattern = regexp.MustCompile(`^-?\d+(\.\d+)?([eE][-+]?\d+)?$`)

func parseNumeric(s string) (pgtype.Numeric, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return pgtype.Numeric{}, errEmptyValue
	}
	if !numericPattern.MatchString(v) {
		return pgtype.Numeric{}, fmt.Errorf("invalid numeric %q", s)
	}
	var n pgtype.Numeric
	if err := n.Scan(v); err != nil {
		return pgtype.Numeric{}, err
	}
	return n, nil
}

// MoneyConverter converts accounting-formatted amounts to pgtype.Numeric.
// Currency symbols ($, €, £) and thousands separators are removed, and a
// value in parentheses is negative: "(1,234.50)" becomes -1234.50.
type MoneyConverter struct{}

// Convert implements Converter for MoneyConverter.
func (MoneyConverter) Convert(value string) (any, error) {
	v := strings.TrimSpace(value)
	negative := false
	if strings.HasPrefix(v, "(") && strings.HasSuffix(v, ")") {
		negative = true
		v = strings.TrimSpace(v[1 : len(v)-1])
	}
	v = strings.NewReplacer("$", "", "€", "", "£", "", ",", "").Replace(v)
	v = strings.TrimSpace(v)
	if negative {
		v = "-" + v
	}
	return parseNumeric(v)
}
