package csv

import "reflect"

// GetField returns the field at index converted to T using the reader's
// registry.
//
//	age, err := csv.GetField[int](r, 1)
func GetField[T any](r *Reader, index int) (T, error) {
	return GetFieldWith[T](r, index, nil)
}

// GetFieldByName returns the field under the named header converted to T.
func GetFieldByName[T any](r *Reader, name string) (T, error) {
	return GetFieldByNameWith[T](r, name, nil)
}

// GetFieldWith returns the field at index converted to T with conv. The
// converter receives the raw value unchanged, including null values. A nil
// conv falls back to the reader's registry.
func GetFieldWith[T any](r *Reader, index int, conv Converter) (T, error) {
	raw, err := r.GetField(index)
	if err != nil {
		var zero T
		return zero, err
	}
	return convertField[T](r, conv, raw, index, "")
}

// GetFieldByNameWith returns the field under the named header converted to
// T with conv.
func GetFieldByNameWith[T any](r *Reader, name string, conv Converter) (T, error) {
	raw, err := r.GetFieldByName(name)
	if err != nil {
		var zero T
		return zero, err
	}
	index, _ := r.header.index(name)
	return convertField[T](r, conv, raw, index, name)
}

func convertField[T any](r *Reader, conv Converter, raw string, index int, name string) (T, error) {
	var zero T
	typ := reflect.TypeFor[T]()
	if conv == nil {
		c, ok := r.conv.Lookup(typ)
		if !ok {
			return zero, &MissingConverterError{Type: typ, Index: index, Field: name}
		}
		conv = c
	}
	v, err := convertTo[T](conv, raw)
	if err != nil {
		return zero, &ConversionError{Row: r.row, Index: index, Name: name, Value: raw, Type: typ, Err: err}
	}
	return v, nil
}
