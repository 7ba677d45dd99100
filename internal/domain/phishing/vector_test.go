package phishing

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullRecord() FeatureRecord {
	return FeatureRecord{
		"url_length":            72,
		"num_dots":              3,
		"subdomain_level":       1,
		"path_level":            5,
		"has_https":             0,
		"has_ip_address":        0,
		"num_sensitive_words":   0,
		"has_random_string":     0,
		"hostname_length":       21,
		"path_length":           44,
		"query_length":          0,
		"pct_ext_hyperlinks":    0.0,
		"pct_ext_resource_urls": 0.25,
		"abnormal_form_action":  0,
		"iframe_or_frame":       0,
		"missing_title":         1,
		"right_click_disabled":  0,
		"popup_window":          0,
	}
}

func TestServingSchema(t *testing.T) {
	s := ServingSchema()
	require.Equal(t, 18, s.Len())
	assert.Equal(t, "url_length", s.Names()[0])
	assert.Equal(t, "popup_window", s.Names()[17])

	i, ok := s.Index("pct_ext_hyperlinks")
	require.True(t, ok)
	assert.Equal(t, 11, i)
	assert.Equal(t, KindFloat, s.Fields()[i].Kind)
	assert.True(t, s.Fields()[i].Bounded)

	_, ok = s.Index("CLASS_LABEL")
	assert.False(t, ok)

	// Fields returns a copy
	fields := s.Fields()
	fields[0].Name = "mutated"
	assert.Equal(t, "url_length", s.Fields()[0].Name)
}

func TestServingColumnsMatchSchema(t *testing.T) {
	require.Len(t, ServingColumns, ServingSchema().Len())
	for i, col := range ServingColumns {
		assert.Equal(t, ServingSchema().Names()[i], col.Feature)
	}
}

func TestDatasetSchema(t *testing.T) {
	s := DatasetSchema([]string{"id", "NumDots", "UrlLength", "CLASS_LABEL"})
	assert.Equal(t, []string{"NumDots", "UrlLength"}, s.Names())
	assert.Equal(t, KindFloat, s.Fields()[0].Kind)
}

func TestAssemble_FullRecord(t *testing.T) {
	vec := Assemble(fullRecord(), ServingSchema())

	require.Len(t, vec, 18)
	assert.Equal(t, 72.0, vec[0])
	assert.Equal(t, 0.25, vec[12])
	assert.Equal(t, 1.0, vec[15])
}

func TestAssemble_Deterministic(t *testing.T) {
	rec := fullRecord()
	first := Assemble(rec, ServingSchema())
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Assemble(rec, ServingSchema()))
	}
}

func TestAssemble_ZeroFill(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  float64
	}{
		{"sentinel int", -1, 0},
		{"sentinel float", -1.0, 0},
		{"sentinel json number", json.Number("-1"), 0},
		{"nonnumeric string", "abc", 0},
		{"numeric string", "42", 42},
		{"nil", nil, 0},
		{"object", map[string]any{"a": 1}, 0},
		{"array", []any{1, 2}, 0},
		{"nan", math.NaN(), 0},
		{"inf", math.Inf(1), 0},
		{"bool true", true, 1},
		{"truncated to int", 72.9, 72},
		{"negative kept", -3, -3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := fullRecord()
			rec["url_length"] = tt.value
			vec := Assemble(rec, ServingSchema())
			require.Len(t, vec, 18)
			assert.Equal(t, tt.want, vec[0])
		})
	}
}

func TestAssemble_FloatFieldNotTruncated(t *testing.T) {
	rec := fullRecord()
	rec["pct_ext_hyperlinks"] = 0.375
	vec := Assemble(rec, ServingSchema())
	assert.Equal(t, 0.375, vec[11])
}

func TestAssemble_MissingAndExtra(t *testing.T) {
	rec := fullRecord()
	delete(rec, "url_length")
	rec["not_a_feature"] = 99

	vec := Assemble(rec, ServingSchema())
	require.Len(t, vec, 18)
	assert.Equal(t, 0.0, vec[0])
	assert.NotContains(t, vec, 99.0)

	assert.Equal(t, []string{"url_length"}, Missing(rec, ServingSchema()))
	assert.Equal(t, []string{"not_a_feature"}, Unknown(rec, ServingSchema()))
}

func TestAssemble_EmptyRecord(t *testing.T) {
	vec := Assemble(FeatureRecord{}, ServingSchema())
	assert.Equal(t, make(FeatureVector, 18), vec)
	assert.Len(t, Missing(FeatureRecord{}, ServingSchema()), 18)
}
