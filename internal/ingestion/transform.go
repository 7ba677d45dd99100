package ingestion

import (
	"math"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"phishguard/internal/domain/phishing"
	"phishguard/pkg/errors"
)

// Row is one dataset record keyed by column name
type Row map[string]string

// Transformer turns dataset rows into threat events with synthetic user context.
// It is not safe for concurrent use.
type Transformer struct {
	rng      *rand.Rand
	base     time.Time
	userPool int
	spanDays int
	kinds    map[string]phishing.Kind
}

// TransformerConfig seeds the synthetic fields
type TransformerConfig struct {
	// Seed of the random source; 0 picks a time-based seed
	Seed int64
	// Now anchors the timestamp window, which spans SpanDays before it
	Now      time.Time
	UserPool int
	SpanDays int
}

// NewTransformer creates a new transformer
func NewTransformer(cfg TransformerConfig) *Transformer {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}
	if cfg.UserPool <= 0 {
		cfg.UserPool = 500
	}
	if cfg.SpanDays <= 0 {
		cfg.SpanDays = 30
	}

	kinds := make(map[string]phishing.Kind)
	for _, f := range phishing.ServingSchema().Fields() {
		kinds[f.Name] = f.Kind
	}

	return &Transformer{
		rng:      rand.New(rand.NewSource(seed)),
		base:     cfg.Now.UTC().AddDate(0, 0, -cfg.SpanDays),
		userPool: cfg.UserPool,
		spanDays: cfg.SpanDays,
		kinds:    kinds,
	}
}

// Transform builds the event for row. A row lacking the id, the label or any
// column a serving feature is derived from fails with ErrMissingColumn.
func (t *Transformer) Transform(row Row) (*phishing.ThreatEvent, error) {
	id, ok := row[phishing.ColumnID]
	if !ok || strings.TrimSpace(id) == "" {
		return nil, errors.Wrap(errors.ErrMissingColumn, phishing.ColumnID)
	}
	id = strings.TrimSpace(id)

	label, err := column(row, phishing.ColumnLabel)
	if err != nil {
		return nil, err
	}
	isPhishing := 0
	eventType := phishing.EventLegitimateURL
	if label == phishing.ClassPhishing {
		isPhishing = 1
		eventType = phishing.EventThreatDetected
	}

	metadata := make(map[string]float64, len(phishing.ServingColumns))
	for _, dc := range phishing.ServingColumns {
		v, err := column(row, dc.Column)
		if err != nil {
			return nil, err
		}
		if t.kinds[dc.Feature] == phishing.KindInt {
			v = math.Trunc(v)
		}
		if dc.Invert {
			v = 1 - v
		}
		metadata[dc.Feature] = v
	}

	raw := make(map[string]float64, len(row))
	for col, s := range row {
		if col == phishing.ColumnID || col == phishing.ColumnLabel {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrInvalidInput, "column %s: %q is not numeric", col, s)
		}
		raw[col] = v
	}

	// draws happen in a fixed order so a seed reproduces a run exactly
	userID := "user_" + strconv.Itoa(t.rng.Intn(t.userPool)+1)
	days := t.rng.Intn(t.spanDays + 1)
	hours := t.rng.Intn(24)
	user := phishing.UserMetadata{
		Department: phishing.Departments[t.rng.Intn(len(phishing.Departments))],
		Region:     phishing.Regions[t.rng.Intn(len(phishing.Regions))],
		Role:       phishing.Roles[t.rng.Intn(len(phishing.Roles))],
	}

	return &phishing.ThreatEvent{
		EventID:      "evt_" + id,
		UserID:       userID,
		Timestamp:    t.base.AddDate(0, 0, days).Add(time.Duration(hours) * time.Hour),
		EventType:    eventType,
		ThreatID:     "threat_" + id,
		IsPhishing:   isPhishing,
		Metadata:     metadata,
		UserMetadata: user,
		RawFeatures:  raw,
	}, nil
}

func column(row Row, name string) (float64, error) {
	s, ok := row[name]
	if !ok {
		return 0, errors.Wrap(errors.ErrMissingColumn, name)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrInvalidInput, "column %s: %q is not numeric", name, s)
	}
	return v, nil
}
