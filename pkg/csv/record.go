package csv

import "strings"

// Record is a snapshot of one data record and the header it was read under.
// It stays valid after the Reader moves on.
type Record struct {
	fields []string
	header *headerMap
	row    int
}

// Get gets the field value at the specified index.
// Returns ("", false) if the index is out of bounds.
func (r Record) Get(index int) (string, bool) {
	if index < 0 || index >= len(r.fields) {
		return "", false
	}
	return r.fields[index], true
}

// GetByName gets the field value by exact header name.
// Returns ("", false) if the name is not in the header, if there is no
// header, or if this record is too short to contain the column.
func (r Record) GetByName(name string) (string, bool) {
	if r.header == nil {
		return "", false
	}
	i, ok := r.header.index(name)
	if !ok {
		return "", false
	}
	return r.Get(i)
}

// Fields returns a copy of all field values.
func (r Record) Fields() []string {
	fields := make([]string, len(r.fields))
	copy(fields, r.fields)
	return fields
}

// Len returns the number of fields in the record.
func (r Record) Len() int {
	return len(r.fields)
}

// Row returns the 1-based data record number.
func (r Record) Row() int {
	return r.row
}

// headerMap resolves header names to field indices. Duplicate names resolve
// to their first occurrence.
type headerMap struct {
	names  []string
	exact  map[string]int
	folded map[string]int
}

func newHeaderMap(names []string) *headerMap {
	h := &headerMap{
		names:  names,
		exact:  make(map[string]int, len(names)),
		folded: make(map[string]int, len(names)),
	}
	for i, name := range names {
		if _, ok := h.exact[name]; !ok {
			h.exact[name] = i
		}
		key := strings.ToLower(name)
		if _, ok := h.folded[key]; !ok {
			h.folded[key] = i
		}
	}
	return h
}

func (h *headerMap) index(name string) (int, bool) {
	i, ok := h.exact[name]
	return i, ok
}

func (h *headerMap) indexFold(name string) (int, bool) {
	i, ok := h.folded[strings.ToLower(name)]
	return i, ok
}

func (h *headerMap) lookup(name string, caseSensitive bool) (int, bool) {
	if caseSensitive {
		return h.index(name)
	}
	return h.indexFold(name)
}
