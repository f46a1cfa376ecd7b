package server

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/shapestone/shape-csvreader/internal/logging"
	"github.com/shapestone/shape-csvreader/pkg/csv"
)

// Column describes one preview column.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// PreviewResponse is the body of POST /api/preview.
type PreviewResponse struct {
	ID        string     `json:"id"`
	Headers   []string   `json:"headers"`
	Columns   []Column   `json:"columns"`
	Rows      [][]string `json:"rows"`
	RowCount  int        `json:"rowCount"`
	Truncated bool       `json:"truncated"`
}

// FieldValue is one converted cell. Error is set instead of Value when the
// cell could not be converted.
type FieldValue struct {
	Row   int    `json:"row"`
	Raw   string `json:"raw"`
	Value any    `json:"value"`
	Error string `json:"error,omitempty"`
}

// FieldResponse is the body of POST /api/preview/field.
type FieldResponse struct {
	ID         string       `json:"id"`
	Field      string       `json:"field,omitempty"`
	Index      int          `json:"index"`
	Type       string       `json:"type"`
	Values     []FieldValue `json:"values"`
	ErrorCount int          `json:"errorCount"`
	Truncated  bool         `json:"truncated"`
}

// fieldGetter converts the selected field of the current record.
type fieldGetter func(r *csv.Reader, name string, index int) (any, error)

// typed returns a fieldGetter for T. Non-string types are read through
// pointers or nullable types so null cells come back as JSON null.
func typed[T any]() fieldGetter {
	return func(r *csv.Reader, name string, index int) (any, error) {
		var (
			v   T
			err error
		)
		if name != "" {
			v, err = csv.GetFieldByName[T](r, name)
		} else {
			v, err = csv.GetField[T](r, index)
		}
		return v, err
	}
}

var fieldTypes = map[string]fieldGetter{
	"string":  typed[string](),
	"int":     typed[*int64](),
	"float":   typed[*float64](),
	"bool":    typed[*bool](),
	"time":    typed[*time.Time](),
	"uuid":    typed[*uuid.UUID](),
	"numeric": typed[pgtype.Numeric](),
}

// previewParams are the request options shared by both preview endpoints.
type previewParams struct {
	opts  csv.ReaderOptions
	limit int
}

func (s *Server) parseParams(r *http.Request) (previewParams, error) {
	q := r.URL.Query()

	opts := csv.DefaultReaderOptions()
	opts.HasHeaderRecord = s.cfg.Preview.HasHeader
	if s.cfg.Preview.NullValues != nil {
		opts.NullValues = s.cfg.Preview.NullValues
	}
	opts.Logger = logging.FromContext(r.Context())

	if v := q.Get("header"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return previewParams{}, &paramError{name: "header", msg: "must be a boolean"}
		}
		opts.HasHeaderRecord = b
	}
	if v := q.Get("delimiter"); v != "" {
		c, err := singleRune("delimiter", v)
		if err != nil {
			return previewParams{}, err
		}
		opts.Comma = c
	}
	if v := q.Get("quote"); v != "" {
		c, err := singleRune("quote", v)
		if err != nil {
			return previewParams{}, err
		}
		opts.Quote = c
	}
	if err := opts.Validate(); err != nil {
		return previewParams{}, err
	}

	limit := s.cfg.Preview.DefaultRows
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return previewParams{}, &paramError{name: "limit", msg: "must be a positive integer"}
		}
		limit = n
	}
	limit = min(limit, s.cfg.Preview.MaxRows)

	return previewParams{opts: opts, limit: limit}, nil
}

func singleRune(name, v string) (rune, error) {
	if utf8.RuneCountInString(v) != 1 {
		return 0, &paramError{name: name, msg: "must be a single character"}
	}
	c, _ := utf8.DecodeRuneInString(v)
	return c, nil
}

// scan reads up to limit records from reader, calling fn on each. It
// reports true when at least one more record followed.
func scan(reader *csv.Reader, limit int, fn func() error) (bool, error) {
	for n := 0; ; n++ {
		ok, err := reader.Read()
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		if n == limit {
			return true, nil
		}
		if err := fn(); err != nil {
			return false, err
		}
	}
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	params, err := s.parseParams(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	reader, err := csv.NewReaderWithOptions(r.Body, params.opts)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer reader.Close()

	rows := make([][]string, 0, params.limit)
	truncated, err := scan(reader, params.limit, func() error {
		rec, err := reader.Record()
		if err != nil {
			return err
		}
		rows = append(rows, rec.Fields())
		return nil
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	var headers []string
	if params.opts.HasHeaderRecord {
		headers, _ = reader.FieldHeaders()
	}

	resp := PreviewResponse{
		ID:        uuid.NewString(),
		Headers:   headers,
		Columns:   columns(headers, rows, s.cfg.Preview.InferRows, params.opts.NullValues),
		Rows:      rows,
		RowCount:  len(rows),
		Truncated: truncated,
	}

	logging.WithFields(r.Context(), "preview_id", resp.ID).Info("preview served",
		"rows", resp.RowCount,
		"columns", len(resp.Columns),
		"truncated", resp.Truncated,
	)
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePreviewField(w http.ResponseWriter, r *http.Request) {
	params, err := s.parseParams(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	q := r.URL.Query()
	name := q.Get("name")
	index := -1
	if name == "" {
		v := q.Get("index")
		if v == "" {
			respondError(w, r, &paramError{name: "name", msg: "name or index is required"})
			return
		}
		index, err = strconv.Atoi(v)
		if err != nil || index < 0 {
			respondError(w, r, &paramError{name: "index", msg: "must be a non-negative integer"})
			return
		}
	}
	typeName := q.Get("type")
	if typeName == "" {
		typeName = "string"
	}
	get, ok := fieldTypes[typeName]
	if !ok {
		respondError(w, r, &paramError{name: "type", msg: fmt.Sprintf("unsupported type %q", typeName)})
		return
	}

	reader, err := csv.NewReaderWithOptions(r.Body, params.opts)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer reader.Close()

	resp := FieldResponse{
		ID:     uuid.NewString(),
		Field:  name,
		Index:  index,
		Type:   typeName,
		Values: make([]FieldValue, 0, params.limit),
	}
	resp.Truncated, err = scan(reader, params.limit, func() error {
		fv := FieldValue{Row: reader.Row()}
		if name != "" {
			fv.Raw, _ = reader.FieldByName(name)
		} else {
			fv.Raw, _ = reader.Field(index)
		}

		v, err := get(reader, name, index)
		switch {
		case err == nil:
			fv.Value = v
		case errors.Is(err, csv.ErrTypeConversion), errors.Is(err, csv.ErrIndexOutOfRange):
			fv.Error = err.Error()
			resp.ErrorCount++
		default:
			return err
		}
		resp.Values = append(resp.Values, fv)
		return nil
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	if name != "" {
		headers, _ := reader.FieldHeaders()
		resp.Index = slices.Index(headers, name)
	}

	logging.WithFields(r.Context(), "preview_id", resp.ID).Info("field preview served",
		"type", typeName,
		"rows", len(resp.Values),
		"errors", resp.ErrorCount,
		"truncated", resp.Truncated,
	)
	respondJSON(w, http.StatusOK, resp)
}
