package csv

import (
	"encoding"
	"fmt"
	"math"
	"reflect"
)

// ConverterRegistry resolves the converter used for a target type.
// Each Reader owns its own registry; rules registered on one reader never
// affect another.
//
// Lookup order is: rule registered for the exact type, then the built-in
// rule for the type, then a derived rule (Unmarshaler, TextUnmarshaler,
// pointer to a convertible type, named type of a built-in kind).
type ConverterRegistry struct {
	byType   map[reflect.Type]Converter
	named    map[string]Converter
	nulls    map[string]struct{}
	resolved map[reflect.Type]Converter
}

// NewConverterRegistry creates a registry with the built-in named converters
// and the empty string as the only null value.
func NewConverterRegistry() *ConverterRegistry {
	r := &ConverterRegistry{
		byType:   make(map[reflect.Type]Converter),
		named:    make(map[string]Converter),
		resolved: make(map[reflect.Type]Converter),
	}
	r.SetNullValues("")

	r.named["int"] = IntConverter{}
	r.named["uint"] = UintConverter{}
	r.named["float"] = FloatConverter{}
	r.named["bool"] = BoolConverter{}
	r.named["date"] = DateConverter{}
	r.named["time"] = TimeConverter{}
	r.named["datetime"] = DateTimeConverter{}
	r.named["money"] = MoneyConverter{}

	return r
}

// Register sets the converter for typ, replacing any previous rule.
func (r *ConverterRegistry) Register(typ reflect.Type, conv Converter) {
	r.byType[typ] = conv
	clear(r.resolved)
}

// RegisterConverter registers fn as the converter for T.
func RegisterConverter[T any](r *ConverterRegistry, fn func(string) (T, error)) {
	r.Register(reflect.TypeFor[T](), TypedConverter(fn))
}

// RegisterNamed registers a converter that struct tags can select with
// converter=NAME.
func (r *ConverterRegistry) RegisterNamed(name string, conv Converter) {
	r.named[name] = conv
}

// Named retrieves a converter registered with RegisterNamed.
func (r *ConverterRegistry) Named(name string) (Converter, bool) {
	conv, ok := r.named[name]
	return conv, ok
}

// SetNullValues replaces the raw values treated as null by nullable targets.
func (r *ConverterRegistry) SetNullValues(values ...string) {
	r.nulls = make(map[string]struct{}, len(values))
	for _, v := range values {
		r.nulls[v] = struct{}{}
	}
}

// IsNull reports whether raw is one of the registry's null values.
func (r *ConverterRegistry) IsNull(raw string) bool {
	_, ok := r.nulls[raw]
	return ok
}

// Lookup returns the converter for typ.
func (r *ConverterRegistry) Lookup(typ reflect.Type) (Converter, bool) {
	if conv, ok := r.byType[typ]; ok {
		return conv, true
	}
	if conv, ok := r.resolved[typ]; ok {
		return conv, true
	}
	conv := r.derive(typ)
	if conv == nil {
		return nil, false
	}
	r.resolved[typ] = conv
	return conv, true
}

// Convert converts raw to typ. The result's dynamic type is exactly typ.
func (r *ConverterRegistry) Convert(typ reflect.Type, raw string) (any, error) {
	conv, ok := r.Lookup(typ)
	if !ok {
		return nil, &MissingConverterError{Type: typ, Index: -1}
	}
	return convertWith(conv, typ, raw)
}

var (
	unmarshalerType     = reflect.TypeFor[Unmarshaler]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
)

func (r *ConverterRegistry) derive(typ reflect.Type) Converter {
	if rule, ok := builtinRules[typ]; ok {
		if rule.nullable {
			return nullableConverter{reg: r, null: reflect.Zero(typ).Interface(), conv: rule.conv}
		}
		return rule.conv
	}

	ptr := reflect.PointerTo(typ)
	switch {
	case ptr.Implements(unmarshalerType):
		return unmarshalerConverter{typ: typ}
	case ptr.Implements(textUnmarshalerType):
		return textUnmarshalerConverter{typ: typ}
	case typ.Kind() == reflect.Pointer:
		elem, ok := r.Lookup(typ.Elem())
		if !ok {
			return nil
		}
		return pointerConverter{reg: r, typ: typ, elem: elem}
	}

	if basic, ok := kindTypes[typ.Kind()]; ok && basic != typ {
		return builtinRules[basic].conv
	}
	return nil
}

// nullableConverter returns null for the registry's null values.
type nullableConverter struct {
	reg  *ConverterRegistry
	null any
	conv Converter
}

func (c nullableConverter) Convert(value string) (any, error) {
	if c.reg.IsNull(value) {
		return c.null, nil
	}
	return c.conv.Convert(value)
}

// pointerConverter converts to *T through the converter for T; null values
// produce a nil pointer.
type pointerConverter struct {
	reg  *ConverterRegistry
	typ  reflect.Type
	elem Converter
}

func (c pointerConverter) Convert(value string) (any, error) {
	if c.reg.IsNull(value) {
		return reflect.Zero(c.typ).Interface(), nil
	}
	v, err := c.elem.Convert(value)
	if err != nil {
		return nil, err
	}
	ev, err := coerceValue(v, c.typ.Elem())
	if err != nil {
		return nil, err
	}
	p := reflect.New(c.typ.Elem())
	p.Elem().Set(ev)
	return p.Interface(), nil
}

type unmarshalerConverter struct {
	typ reflect.Type
}

func (c unmarshalerConverter) Convert(value string) (any, error) {
	p := reflect.New(c.typ)
	if err := p.Interface().(Unmarshaler).UnmarshalCSV(value); err != nil {
		return nil, err
	}
	return p.Elem().Interface(), nil
}

type textUnmarshalerConverter struct {
	typ reflect.Type
}

func (c textUnmarshalerConverter) Convert(value string) (any, error) {
	p := reflect.New(c.typ)
	if err := p.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(value)); err != nil {
		return nil, err
	}
	return p.Elem().Interface(), nil
}

// convertWith runs conv and coerces its result to typ.
func convertWith(conv Converter, typ reflect.Type, raw string) (any, error) {
	v, err := conv.Convert(raw)
	if err != nil {
		return nil, err
	}
	out, err := coerceValue(v, typ)
	if err != nil {
		return nil, err
	}
	return out.Interface(), nil
}

// convertTo runs conv and returns the result as T.
func convertTo[T any](conv Converter, raw string) (T, error) {
	var zero T
	v, err := convertWith(conv, reflect.TypeFor[T](), raw)
	if err != nil {
		return zero, err
	}
	out, _ := v.(T)
	return out, nil
}

// coerceValue returns v as a value of type typ. Only lossless conversions
// are performed: numeric values must fit the target, other values must
// share typ's kind.
func coerceValue(v any, typ reflect.Type) (reflect.Value, error) {
	if v == nil {
		switch typ.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(typ), nil
		}
		return reflect.Value{}, fmt.Errorf("converter returned nil for %v", typ)
	}

	rv := reflect.ValueOf(v)
	src := rv.Type()
	if src == typ {
		return rv, nil
	}

	out := reflect.New(typ).Elem()
	if typ.Kind() == reflect.Interface {
		if !src.Implements(typ) {
			return reflect.Value{}, fmt.Errorf("converter returned %T, which does not implement %v", v, typ)
		}
		out.Set(rv)
		return out, nil
	}

	dk, sk := typ.Kind(), src.Kind()
	switch {
	case isIntKind(dk) && isIntKind(sk):
		if out.OverflowInt(rv.Int()) {
			return reflect.Value{}, overflowError(v, typ)
		}
		out.SetInt(rv.Int())
	case isUintKind(dk) && isUintKind(sk):
		if out.OverflowUint(rv.Uint()) {
			return reflect.Value{}, overflowError(v, typ)
		}
		out.SetUint(rv.Uint())
	case isIntKind(dk) && isUintKind(sk):
		u := rv.Uint()
		if u > math.MaxInt64 || out.OverflowInt(int64(u)) {
			return reflect.Value{}, overflowError(v, typ)
		}
		out.SetInt(int64(u))
	case isUintKind(dk) && isIntKind(sk):
		i := rv.Int()
		if i < 0 || out.OverflowUint(uint64(i)) {
			return reflect.Value{}, overflowError(v, typ)
		}
		out.SetUint(uint64(i))
	case isFloatKind(dk) && isFloatKind(sk):
		if out.OverflowFloat(rv.Float()) {
			return reflect.Value{}, overflowError(v, typ)
		}
		out.SetFloat(rv.Float())
	case dk == sk && src.ConvertibleTo(typ):
		out.Set(rv.Convert(typ))
	default:
		return reflect.Value{}, fmt.Errorf("converter returned %T, not assignable to %v", v, typ)
	}
	return out, nil
}

func overflowError(v any, typ reflect.Type) error {
	return fmt.Errorf("value %v overflows %v", v, typ)
}

func isIntKind(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUintKind(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uint64
}

func isFloatKind(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}
