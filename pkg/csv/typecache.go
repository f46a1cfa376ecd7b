package csv

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// fieldBinding maps one CSV column to a struct member.
type fieldBinding struct {
	column int
	// index is the reflect.Value.FieldByIndex path, through embedded structs.
	index []int
	// name is the header name or member name used in errors.
	name      string
	typ       reflect.Type
	converter string
}

// structPlan holds the cached bindings of a struct type for one header layout.
type structPlan struct {
	bindings []fieldBinding
}

// planKey uniquely identifies a struct type + header combination.
type planKey struct {
	typ           reflect.Type
	headerHash    string
	caseSensitive bool
}

// Global cache for mapping plans. Plans are immutable once stored.
var planCache sync.Map // map[planKey]*structPlan

// getStructPlan retrieves or computes the mapping plan for structType.
// header is nil when the reader has no header record.
func getStructPlan(structType reflect.Type, header *headerMap, caseSensitive bool) (*structPlan, error) {
	key := planKey{
		typ:           structType,
		headerHash:    hashHeaders(header),
		caseSensitive: caseSensitive,
	}

	if cached, ok := planCache.Load(key); ok {
		return cached.(*structPlan), nil
	}

	plan, err := computeStructPlan(structType, header, caseSensitive)
	if err != nil {
		return nil, err
	}
	planCache.Store(key, plan)
	return plan, nil
}

// member is a mappable struct field found while walking the type.
type member struct {
	index     []int
	name      string
	column    int // -1 unless set with index=N
	converter string
	typ       reflect.Type
}

func computeStructPlan(structType reflect.Type, header *headerMap, caseSensitive bool) (*structPlan, error) {
	var members []member
	if err := collectMembers(structType, nil, &members); err != nil {
		return nil, err
	}

	explicit := false
	for _, m := range members {
		if m.column >= 0 {
			explicit = true
			break
		}
	}
	if header == nil && !explicit {
		return nil, &MappingError{Type: structType, Reason: "no header record and no index= tags"}
	}

	// Shallower members win a column; ties go to the first declared.
	byColumn := make(map[int]int)
	plan := &structPlan{}
	for _, m := range members {
		column := m.column
		name := m.name
		if column < 0 {
			if header == nil {
				continue
			}
			i, ok := header.lookup(m.name, caseSensitive)
			if !ok {
				continue
			}
			column = i
			name = header.names[i]
		}

		b := fieldBinding{column: column, index: m.index, name: name, typ: m.typ, converter: m.converter}
		if at, ok := byColumn[column]; ok {
			if len(plan.bindings[at].index) <= len(m.index) {
				continue
			}
			plan.bindings[at] = b
			continue
		}
		byColumn[column] = len(plan.bindings)
		plan.bindings = append(plan.bindings, b)
	}
	return plan, nil
}

// collectMembers walks t's exported fields, flattening untagged embedded
// structs.
func collectMembers(t reflect.Type, parent []int, out *[]member) error {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag, hasTag := field.Tag.Lookup("csv")
		if tag == "-" {
			continue
		}

		name, column, converter, err := parseTag(tag)
		if err != nil {
			return &MappingError{Type: t, Reason: fmt.Sprintf("field %s: %v", field.Name, err)}
		}

		index := make([]int, len(parent)+1)
		copy(index, parent)
		index[len(parent)] = i

		if field.Anonymous && field.Type.Kind() == reflect.Struct && (!hasTag || name == "") && column < 0 {
			if err := collectMembers(field.Type, index, out); err != nil {
				return err
			}
			continue
		}

		// Skip unexported fields
		if !field.IsExported() {
			continue
		}

		if name == "" {
			name = field.Name
		}
		*out = append(*out, member{
			index:     index,
			name:      name,
			column:    column,
			converter: converter,
			typ:       field.Type,
		})
	}
	return nil
}

// parseTag parses `csv:"name,index=N,converter=NAME,omitempty"`.
func parseTag(tag string) (name string, column int, converter string, err error) {
	column = -1
	parts := strings.Split(tag, ",")
	name = strings.TrimSpace(parts[0])
	for _, opt := range parts[1:] {
		key, value, _ := strings.Cut(strings.TrimSpace(opt), "=")
		switch key {
		case "index":
			n, convErr := strconv.Atoi(value)
			if convErr != nil || n < 0 {
				return "", -1, "", fmt.Errorf("invalid index %q", value)
			}
			column = n
		case "converter":
			if value == "" {
				return "", -1, "", fmt.Errorf("empty converter name")
			}
			converter = value
		case "omitempty", "":
		default:
			return "", -1, "", fmt.Errorf("unknown tag option %q", key)
		}
	}
	return name, column, converter, nil
}

// hashHeaders creates a stable cache key from the header layout.
// Each name is length-prefixed, so distinct layouts never share a key.
func hashHeaders(header *headerMap) string {
	if header == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(strconv.Itoa(len(header.names)))
	for _, name := range header.names {
		b.WriteByte('|')
		b.WriteString(strconv.Itoa(len(name)))
		b.WriteByte(':')
		b.WriteString(name)
	}
	return b.String()
}

// clearPlanCache clears the entire plan cache.
func clearPlanCache() {
	planCache.Range(func(key, value any) bool {
		planCache.Delete(key)
		return true
	})
}
