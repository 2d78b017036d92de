// Result Normalizer.
//
// Turns a tool result of unknown shape into a structured view (table, JSON or
// nothing) and a bounded plain-text view for downstream analysis.
//
// Information Hiding:
// - Shape detection over maps of any string-keyed type
// - Text rendering and truncation rules
// - Recovery from malformed input

package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	"goa.design/clue/log"
)

// Raw text limits, counted in characters.
const (
	MaxGenericRawChars = 2000
	MaxOpaqueRawChars  = 1000

	// sampleRows is the number of table rows previewed in raw text.
	sampleRows = 5
)

// Shape is the detected shape of a tool result.
type Shape int

const (
	// ShapeOpaque is anything not tabular or generic.
	ShapeOpaque Shape = iota
	// ShapeTabular is a mapping with both "columns" and "rows".
	ShapeTabular
	// ShapeGeneric is a mapping with a "data" field.
	ShapeGeneric
)

// String returns the shape name.
func (s Shape) String() string {
	switch s {
	case ShapeTabular:
		return "tabular"
	case ShapeGeneric:
		return "generic"
	default:
		return "opaque"
	}
}

// StructuredKind tags the Structured variant.
type StructuredKind int

const (
	StructuredNone StructuredKind = iota
	StructuredTable
	StructuredJSON
)

// Table is the structured view of a tabular result.
type Table struct {
	Headers     []string `json:"headers"`
	Rows        [][]any  `json:"rows"`
	RowCount    int      `json:"row_count"`
	ColumnCount int      `json:"column_count"`
}

// Structured is a tagged variant: nothing, a Table, or arbitrary JSON data.
type Structured struct {
	Kind  StructuredKind
	Table *Table
	Data  any
}

// MarshalJSON renders the variant as {"type":"table",...}, {"type":"json","data":...} or null.
func (s Structured) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case StructuredTable:
		return json.Marshal(struct {
			Type string `json:"type"`
			*Table
		}{Type: "table", Table: s.Table})
	case StructuredJSON:
		return json.Marshal(struct {
			Type string `json:"type"`
			Data any    `json:"data"`
		}{Type: "json", Data: s.Data})
	default:
		return []byte("null"), nil
	}
}

// Outcome tags whether normalization completed or degraded.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeDegraded
)

// String returns "ok" or "degraded".
func (o Outcome) String() string {
	if o == OutcomeDegraded {
		return "degraded"
	}
	return "ok"
}

// NormalizedResult holds both views of a tool result.
type NormalizedResult struct {
	Shape      Shape
	Structured Structured
	Raw        string
	Outcome    Outcome
	// Err is the cause of a degraded outcome.
	Err error
}

// Degraded reports whether normalization fell back to a best-effort rendering.
func (r NormalizedResult) Degraded() bool {
	return r.Outcome == OutcomeDegraded
}

// MarshalJSON implements custom JSON marshaling for NormalizedResult.
func (r NormalizedResult) MarshalJSON() ([]byte, error) {
	out := struct {
		Shape      string     `json:"shape"`
		Structured Structured `json:"structured"`
		Raw        string     `json:"raw"`
		Outcome    string     `json:"outcome"`
		Error      string     `json:"error,omitempty"`
	}{
		Shape:      r.Shape.String(),
		Structured: r.Structured,
		Raw:        r.Raw,
		Outcome:    r.Outcome.String(),
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return json.Marshal(out)
}

// DetectShape inspects result and reports which normalization branch applies.
// Tabular wins over generic when a mapping has all three fields.
func DetectShape(result any) Shape {
	fields, ok := asFields(result)
	if !ok {
		return ShapeOpaque
	}
	_, hasColumns := fields["columns"]
	_, hasRows := fields["rows"]
	if hasColumns && hasRows {
		return ShapeTabular
	}
	if _, hasData := fields["data"]; hasData {
		return ShapeGeneric
	}
	return ShapeOpaque
}

// Normalize converts a tool result into its structured and raw views.
// It never panics and never returns an error; failures produce a degraded result.
func Normalize(ctx context.Context, result any) (normalized NormalizedResult) {
	shape := DetectShape(result)

	defer func() {
		if r := recover(); r != nil {
			normalized = degrade(ctx, shape, result, fmt.Errorf("panic while normalizing: %v", r))
		}
	}()

	fields, _ := asFields(result)
	switch shape {
	case ShapeTabular:
		table, raw, err := normalizeTable(fields["columns"], fields["rows"])
		if err != nil {
			return degrade(ctx, shape, result, err)
		}
		return NormalizedResult{
			Shape:      shape,
			Structured: Structured{Kind: StructuredTable, Table: table},
			Raw:        raw,
		}
	case ShapeGeneric:
		data := fields["data"]
		return NormalizedResult{
			Shape:      shape,
			Structured: Structured{Kind: StructuredJSON, Data: data},
			Raw:        truncate(render(data), MaxGenericRawChars),
		}
	default:
		return NormalizedResult{
			Shape: shape,
			Raw:   truncate(render(result), MaxOpaqueRawChars),
		}
	}
}

// NormalizeJSON decodes tool output and normalizes it. Numbers keep their
// literal form. Text that is not JSON is normalized as an opaque string.
func NormalizeJSON(ctx context.Context, raw []byte) NormalizedResult {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return Normalize(ctx, string(raw))
	}
	return Normalize(ctx, v)
}

func normalizeTable(columnsValue, rowsValue any) (*Table, string, error) {
	columns, err := asStrings(columnsValue)
	if err != nil {
		return nil, "", fmt.Errorf("invalid columns: %w", err)
	}
	rows, err := asRows(rowsValue)
	if err != nil {
		return nil, "", fmt.Errorf("invalid rows: %w", err)
	}

	table := &Table{
		Headers:     columns,
		Rows:        rows,
		RowCount:    len(rows),
		ColumnCount: len(columns),
	}

	sample := min(sampleRows, len(rows))

	var b strings.Builder
	fmt.Fprintf(&b, "Retrieved %d rows with %d columns\n", len(rows), len(columns))
	b.WriteString("Columns: " + strings.Join(columns, ", ") + "\n\n")
	fmt.Fprintf(&b, "Sample rows (%d of %d):\n", sample, len(rows))
	for i := 0; i < sample; i++ {
		fmt.Fprintf(&b, "Row %d: %s\n", i+1, renderRow(columns, rows[i]))
	}

	return table, b.String(), nil
}

// renderRow renders a row as an ordered column-to-value object. Columns and
// cells pair up to the shorter of the two; a repeated column keeps its first
// position and takes the later value.
func renderRow(columns []string, row []any) string {
	n := min(len(columns), len(row))
	order := make([]string, 0, n)
	values := make(map[string]any, n)
	for i := 0; i < n; i++ {
		if _, seen := values[columns[i]]; !seen {
			order = append(order, columns[i])
		}
		values[columns[i]] = row[i]
	}

	var b strings.Builder
	b.WriteByte('{')
	for i, col := range order {
		if i > 0 {
			b.WriteByte(',')
		}
		key, _ := marshalCompact(col)
		b.WriteString(key)
		b.WriteByte(':')
		b.WriteString(renderJSONValue(values[col]))
	}
	b.WriteByte('}')
	return b.String()
}

// render stringifies a value: strings as-is, everything else as compact JSON,
// falling back to Go formatting for values JSON cannot encode.
func render(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return renderJSONValue(v)
}

func renderJSONValue(v any) string {
	if s, err := marshalCompact(v); err == nil {
		return s
	}
	// fmt does not detect cycles, so containers only show their type.
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Pointer, reflect.Struct, reflect.Interface:
		return fmt.Sprintf("%T", v)
	}
	return fmt.Sprintf("%v", v)
}

func marshalCompact(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// truncate cuts s to at most limit characters.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}

func degrade(ctx context.Context, shape Shape, result any, cause error) NormalizedResult {
	log.Error(ctx, cause,
		log.KV{K: "msg", V: "failed to format retrieval results"},
		log.KV{K: "shape", V: shape.String()})
	return NormalizedResult{
		Shape:   shape,
		Raw:     safeRender(result),
		Outcome: OutcomeDegraded,
		Err:     cause,
	}
}

func safeRender(v any) (s string) {
	defer func() {
		if r := recover(); r != nil {
			s = fmt.Sprintf("%T", v)
		}
	}()
	return render(v)
}

// asFields returns the entries of any map keyed by strings.
func asFields(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	fields := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		fields[iter.Key().String()] = iter.Value().Interface()
	}
	return fields, true
}

var errNotSequence = errors.New("not a sequence")

func asSlice(v any) ([]any, error) {
	if s, ok := v.([]any); ok {
		return s, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("%w: %T", errNotSequence, v)
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

func asStrings(v any) ([]string, error) {
	if s, ok := v.([]string); ok {
		return s, nil
	}
	items, err := asSlice(v)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("column %d is %T, not a string", i, item)
		}
		out[i] = s
	}
	return out, nil
}

func asRows(v any) ([][]any, error) {
	items, err := asSlice(v)
	if err != nil {
		return nil, err
	}
	rows := make([][]any, len(items))
	for i, item := range items {
		row, err := asSlice(item)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		rows[i] = row
	}
	return rows, nil
}
