package linkaudit

import "strings"

// NameColumns are tried in order to find a tool's display name
var NameColumns = []string{"App name", "Tool Name", "Name"}

// ToolRecord is one spreadsheet row: an ordered set of named string columns.
// Reading a column the record does not have yields "".
type ToolRecord struct {
	columns []string
	values  map[string]string
}

// NewToolRecord creates a record with the given column order and values.
// Values for columns not listed are kept but not emitted by Values.
func NewToolRecord(columns []string, values map[string]string) *ToolRecord {
	r := &ToolRecord{
		columns: append([]string(nil), columns...),
		values:  make(map[string]string, len(values)),
	}
	for k, v := range values {
		r.values[k] = v
	}
	return r
}

// Columns returns the column order
func (r *ToolRecord) Columns() []string {
	return append([]string(nil), r.columns...)
}

// Get returns the value of a column
func (r *ToolRecord) Get(column string) string {
	return r.values[column]
}

// Set updates a column, appending it to the column order if it is new
func (r *ToolRecord) Set(column, value string) {
	if _, ok := r.values[column]; !ok && !r.hasColumn(column) {
		r.columns = append(r.columns, column)
	}
	r.values[column] = value
}

// Has reports whether the record declares the column
func (r *ToolRecord) Has(column string) bool {
	return r.hasColumn(column)
}

func (r *ToolRecord) hasColumn(column string) bool {
	for _, c := range r.columns {
		if c == column {
			return true
		}
	}
	return false
}

// Link returns the trimmed URL stored for a link field
func (r *ToolRecord) Link(f Field) string {
	return strings.TrimSpace(r.values[f.Column()])
}

// SetLink stores a URL for a link field
func (r *ToolRecord) SetLink(f Field, url string) {
	r.Set(f.Column(), url)
}

// NameColumn returns the column holding the tool name
func (r *ToolRecord) NameColumn() string {
	for _, c := range NameColumns {
		if r.hasColumn(c) {
			return c
		}
	}
	if len(r.columns) > 0 {
		return r.columns[0]
	}
	return NameColumns[0]
}

// Name returns the tool's display name
func (r *ToolRecord) Name() string {
	return strings.TrimSpace(r.values[r.NameColumn()])
}

// Values returns the values in column order
func (r *ToolRecord) Values() []string {
	out := make([]string, len(r.columns))
	for i, c := range r.columns {
		out[i] = r.values[c]
	}
	return out
}

// Clone returns a deep copy
func (r *ToolRecord) Clone() *ToolRecord {
	return NewToolRecord(r.columns, r.values)
}

// Blank returns a record with the same columns and every value empty,
// used for the marker rows appended after each tool.
func (r *ToolRecord) Blank() *ToolRecord {
	return NewToolRecord(r.columns, nil)
}
