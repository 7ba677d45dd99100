package phishing

// Kind is the numeric type a feature is coerced to
type Kind string

const (
	KindInt   Kind = "int"
	KindFloat Kind = "float"
)

// Field describes one named model input
type Field struct {
	Name    string
	Kind    Kind
	Min     float64
	Max     float64
	Bounded bool // Min/Max are meaningful
}

// Schema is an immutable, ordered list of fields. The order is the column order
// of the vector the classifier was fitted on.
type Schema struct {
	fields []Field
	index  map[string]int
}

// NewSchema builds a schema from fields in canonical order
func NewSchema(fields ...Field) Schema {
	s := Schema{
		fields: make([]Field, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	copy(s.fields, fields)
	for i, f := range fields {
		s.index[f.Name] = i
	}
	return s
}

// Fields returns the ordered fields
func (s Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Len returns the number of fields
func (s Schema) Len() int {
	return len(s.fields)
}

// Names returns field names in order
func (s Schema) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Index returns the position of name in the schema
func (s Schema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

func count(name string) Field {
	return Field{Name: name, Kind: KindInt, Min: 0}
}

func flag(name string) Field {
	return Field{Name: name, Kind: KindInt, Min: 0, Max: 1, Bounded: true}
}

func pct(name string) Field {
	return Field{Name: name, Kind: KindFloat, Min: 0, Max: 1, Bounded: true}
}

var servingSchema = NewSchema(
	count("url_length"),
	count("num_dots"),
	count("subdomain_level"),
	count("path_level"),
	flag("has_https"),
	flag("has_ip_address"),
	count("num_sensitive_words"),
	flag("has_random_string"),
	count("hostname_length"),
	count("path_length"),
	count("query_length"),
	pct("pct_ext_hyperlinks"),
	pct("pct_ext_resource_urls"),
	flag("abnormal_form_action"),
	flag("iframe_or_frame"),
	flag("missing_title"),
	flag("right_click_disabled"),
	flag("popup_window"),
)

// ServingSchema returns the 18-field contract accepted by POST /predict
func ServingSchema() Schema {
	return servingSchema
}

// Dataset columns that are never model inputs
const (
	ColumnID    = "id"
	ColumnLabel = "CLASS_LABEL"
)

// DatasetSchema builds the wide training schema from a dataset header: every
// column except the identifier and the label, all floats, in header order.
func DatasetSchema(header []string) Schema {
	fields := make([]Field, 0, len(header))
	for _, col := range header {
		if col == ColumnID || col == ColumnLabel {
			continue
		}
		fields = append(fields, Field{Name: col, Kind: KindFloat})
	}
	return NewSchema(fields...)
}
