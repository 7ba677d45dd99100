package phishing

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
)

// UnknownValue is the upstream marker for "not computed"
const UnknownValue = -1

// FeatureRecord maps feature names to decoded JSON values
type FeatureRecord map[string]any

// FeatureVector is the ordered numeric input of a classifier
type FeatureVector []float64

// Assemble builds the vector for schema from record. Absent, nonnumeric and
// sentinel (-1) values become 0; everything else is coerced to the field kind.
// It never fails.
func Assemble(record FeatureRecord, schema Schema) FeatureVector {
	vec := make(FeatureVector, schema.Len())
	for i, f := range schema.fields {
		raw, ok := record[f.Name]
		if !ok {
			continue
		}
		v, ok := toFloat(raw)
		if !ok || v == UnknownValue {
			continue
		}
		if f.Kind == KindInt {
			v = math.Trunc(v)
		}
		vec[i] = v
	}
	return vec
}

// Missing returns schema fields absent from record, in schema order
func Missing(record FeatureRecord, schema Schema) []string {
	var missing []string
	for _, f := range schema.fields {
		if _, ok := record[f.Name]; !ok {
			missing = append(missing, f.Name)
		}
	}
	return missing
}

// Unknown returns record names the schema does not declare, sorted
func Unknown(record FeatureRecord, schema Schema) []string {
	var unknown []string
	for name := range record {
		if _, ok := schema.index[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	return unknown
}

func toFloat(raw any) (float64, bool) {
	var v float64
	switch x := raw.(type) {
	case float64:
		v = x
	case float32:
		v = float64(x)
	case int:
		v = float64(x)
	case int64:
		v = float64(x)
	case int32:
		v = float64(x)
	case uint8:
		v = float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		v = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		v = f
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
