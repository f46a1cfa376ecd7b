package csv

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Converter transforms a raw field string into a typed Go value.
type Converter interface {
	// Convert transforms a string value into the target type.
	// Returns the converted value and any error encountered.
	Convert(value string) (any, error)
}

// ConverterFunc is a function adapter for the Converter interface.
type ConverterFunc func(string) (any, error)

// Convert implements Converter.
func (f ConverterFunc) Convert(value string) (any, error) {
	return f(value)
}

// TypedConverter adapts a typed conversion function to a Converter.
func TypedConverter[T any](fn func(string) (T, error)) Converter {
	return ConverterFunc(func(value string) (any, error) {
		v, err := fn(value)
		if err != nil {
			return nil, err
		}
		return v, nil
	})
}

// Unmarshaler is implemented by types that convert themselves from a raw
// CSV field. It is used when no converter is registered for the type.
type Unmarshaler interface {
	UnmarshalCSV(value string) error
}

var errEmptyValue = errors.New("empty value")

// IntConverter converts string values to int64.
type IntConverter struct {
	// Base is the numeric base for parsing (default: 10)
	Base int
	// BitSize is the integer size the value must fit in (default: 64)
	BitSize int
}

// Convert implements Converter for IntConverter.
func (c IntConverter) Convert(value string) (any, error) {
	return parseInt(value, c.Base, c.BitSize)
}

func parseInt(value string, base, bitSize int) (int64, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return 0, errEmptyValue
	}
	if base == 0 {
		base = 10
	}
	if bitSize == 0 {
		bitSize = 64
	}
	return strconv.ParseInt(v, base, bitSize)
}

// UintConverter converts string values to uint64.
type UintConverter struct {
	// Base is the numeric base for parsing (default: 10)
	Base int
	// BitSize is the integer size the value must fit in (default: 64)
	BitSize int
}

// Convert implements Converter for UintConverter.
func (c UintConverter) Convert(value string) (any, error) {
	return parseUint(value, c.Base, c.BitSize)
}

func parseUint(value string, base, bitSize int) (uint64, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return 0, errEmptyValue
	}
	if base == 0 {
		base = 10
	}
	if bitSize == 0 {
		bitSize = 64
	}
	return strconv.ParseUint(v, base, bitSize)
}

// FloatConverter converts string values to float64.
type FloatConverter struct {
	// BitSize is 32 or 64 (default: 64)
	BitSize int
}

// Convert implements Converter for FloatConverter.
func (c FloatConverter) Convert(value string) (any, error) {
	return parseFloat(value, c.BitSize)
}

func parseFloat(value string, bitSize int) (float64, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return 0, errEmptyValue
	}
	if bitSize == 0 {
		bitSize = 64
	}
	return strconv.ParseFloat(v, bitSize)
}

// BoolConverter converts string values to bool.
// Recognizes: true/false, 1/0, yes/no, y/n, on/off, t/f (case-insensitive)
type BoolConverter struct{}

// Convert implements Converter for BoolConverter.
func (c BoolConverter) Convert(value string) (any, error) {
	return parseBool(value)
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "y", "on", "t":
		return true, nil
	case "false", "0", "no", "n", "off", "f":
		return false, nil
	case "":
		return false, errEmptyValue
	default:
		return false, fmt.Errorf("invalid boolean %q", value)
	}
}

// DateConverter converts string values to time.Time.
type DateConverter struct {
	// Format is the date format string (default: "2006-01-02")
	Format string
	// Location is the timezone for parsing (default: UTC)
	Location *time.Location
}

// Convert implements Converter for DateConverter.
func (c DateConverter) Convert(value string) (any, error) {
	return parseTime(value, c.Format, "2006-01-02", c.Location)
}

// TimeConverter converts string values to time.Time with time component.
type TimeConverter struct {
	// Format is the time format string (default: "15:04:05")
	Format string
	// Location is the timezone for parsing (default: UTC)
	Location *time.Location
}

// Convert implements Converter for TimeConverter.
func (c TimeConverter) Convert(value string) (any, error) {
	return parseTime(value, c.Format, "15:04:05", c.Location)
}

// DateTimeConverter converts string values to time.Time with date and time.
type DateTimeConverter struct {
	// Format is the datetime format string (default: "2006-01-02 15:04:05")
	Format string
	// Location is the timezone for parsing (default: UTC)
	Location *time.Location
}

// Convert implements Converter for DateTimeConverter.
func (c DateTimeConverter) Convert(value string) (any, error) {
	return parseTime(value, c.Format, "2006-01-02 15:04:05", c.Location)
}

func parseTime(value, format, defaultFormat string, loc *time.Location) (any, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil, errEmptyValue
	}
	if format == "" {
		format = defaultFormat
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(format, v, loc)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// defaultTimeLayouts are tried in order by the built-in time.Time converter.
// Only unambiguous layouts are listed; day/month order is never guessed.
var defaultTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseAnyTime parses v with the first matching default layout, in UTC
// unless the value carries its own offset.
func parseAnyTime(value string) (time.Time, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return time.Time{}, errEmptyValue
	}
	for _, layout := range defaultTimeLayouts {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time format %q", value)
}

// InferType attempts to infer the type of a string value.
// Returns the inferred type name and converted value.
func InferType(value string) (string, any) {
	if value == "" {
		return "string", value
	}

	v := strings.TrimSpace(value)

	lower := strings.ToLower(v)
	if lower == "true" || lower == "false" {
		return "bool", lower == "true"
	}

	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		return "int", i
	}

	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return "float", f
	}

	if t, err := time.Parse("2006-01-02", v); err == nil {
		return "date", t
	}

	if t, err := parseAnyTime(v); err == nil {
		return "time", t
	}

	return "string", value
}

// CommonNullValues is a broader null vocabulary that can be assigned to
// ReaderOptions.NullValues.
var CommonNullValues = []string{"", "NULL", "null", "nil", "N/A", "n/a", "NA", "na", "-"}

// IsNullValue checks if a value should be treated as null.
func IsNullValue(value string, nullValues []string) bool {
	for _, nv := range nullValues {
		if value == nv {
			return true
		}
	}
	return false
}
