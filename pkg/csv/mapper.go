package csv

import (
	"iter"
	"reflect"
)

// GetRecord maps the current record onto a new T. T must be a struct or a
// pointer to a struct.
//
// Members are matched to header names by their csv tag, or by field name
// when untagged. Matching is case-insensitive unless
// ReaderOptions.CaseSensitiveHeaders is set. Supported tag options:
//
//	Name   string `csv:"full_name"`          // header name
//	Age    int    `csv:"age,index=2"`        // explicit column, header optional
//	Amount pgtype.Numeric `csv:",converter=money"` // named converter
//	Secret string `csv:"-"`                  // ignored
//
// Untagged embedded structs are flattened. Members with no matching column
// keep their zero value.
func GetRecord[T any](r *Reader) (T, error) {
	var zero T
	if err := r.current("GetRecord"); err != nil {
		return zero, err
	}

	typ := reflect.TypeFor[T]()
	structType := typ
	if typ.Kind() == reflect.Pointer {
		structType = typ.Elem()
	}
	if structType.Kind() != reflect.Struct {
		return zero, &MappingError{Type: typ, Reason: "not a struct or pointer to struct"}
	}

	plan, err := getStructPlan(structType, r.header, r.opts.CaseSensitiveHeaders)
	if err != nil {
		return zero, err
	}

	pv := reflect.New(structType)
	if err := r.bind(pv.Elem(), plan); err != nil {
		return zero, err
	}

	out := pv
	if typ.Kind() != reflect.Pointer {
		out = pv.Elem()
	}
	return out.Convert(typ).Interface().(T), nil
}

func (r *Reader) bind(v reflect.Value, plan *structPlan) error {
	for _, b := range plan.bindings {
		if b.column >= len(r.record) {
			return &FieldIndexError{Index: b.column, Count: len(r.record), Name: b.name}
		}
		raw := r.record[b.column]

		conv, err := r.memberConverter(b)
		if err != nil {
			return err
		}
		out, err := convertWith(conv, b.typ, raw)
		if err != nil {
			return &ConversionError{Row: r.row, Index: b.column, Name: b.name, Value: raw, Type: b.typ, Err: err}
		}
		if out != nil {
			v.FieldByIndex(b.index).Set(reflect.ValueOf(out))
		}
	}
	return nil
}

func (r *Reader) memberConverter(b fieldBinding) (Converter, error) {
	if b.converter != "" {
		conv, ok := r.conv.Named(b.converter)
		if !ok {
			return nil, &MissingConverterError{Type: b.typ, Name: b.converter, Index: b.column, Field: b.name}
		}
		return conv, nil
	}
	conv, ok := r.conv.Lookup(b.typ)
	if !ok {
		return nil, &MissingConverterError{Type: b.typ, Index: b.column, Field: b.name}
	}
	return conv, nil
}

// GetRecords returns a lazy sequence of the remaining records mapped onto T.
// Each step reads one record. The sequence can be ranged over once; a
// second range yields a single *StateError. Mixing it with manual Read
// calls on the same reader skips records.
//
//	for p, err := range csv.GetRecords[Person](r) {
//	    if err != nil {
//	        return err
//	    }
//	    ...
//	}
//
// Conversion and mapping errors are yielded per record and the sequence
// continues if the caller does. A parse error ends the sequence.
func GetRecords[T any](r *Reader) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		if r.iterating {
			yield(zero, &StateError{Op: "GetRecords", Reason: "records have already been enumerated"})
			return
		}
		r.iterating = true

		for {
			ok, err := r.Read()
			if err != nil {
				yield(zero, err)
				return
			}
			if !ok {
				return
			}
			if !yield(GetRecord[T](r)) {
				return
			}
		}
	}
}

// ReadAll maps every remaining record onto T. It stops at the first error.
func ReadAll[T any](r *Reader) ([]T, error) {
	var out []T
	for rec, err := range GetRecords[T](r) {
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
