// Package insights serves the threat intelligence dashboard endpoints. Values
// are static until the warehouse tables behind them exist.
package insights

import (
	"net/http"

	"phishguard/internal/api/respond"
)

// Default reporting window
const (
	DefaultStartDate = "2024-01-01"
	DefaultEndDate   = "2024-01-31"
)

// Period is a reporting window
type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Metric is a single headline metric
type Metric struct {
	Metric      string             `json:"metric"`
	Period      Period             `json:"period"`
	Value       float64            `json:"value"`
	Unit        string             `json:"unit"`
	Description string             `json:"description"`
	Components  map[string]float64 `json:"components,omitempty"`
}

// UserMetrics summarises one user's exposure
type UserMetrics struct {
	UserID         string  `json:"user_id"`
	TotalEvents    int     `json:"total_events"`
	PhishingEvents int     `json:"phishing_events"`
	PhishingRate   float64 `json:"phishing_rate"`
	ReportRate     float64 `json:"report_rate"`
	Department     string  `json:"department"`
	Region         string  `json:"region"`
}

// IndicatorCount is how often an indicator fired
type IndicatorCount struct {
	Indicator string `json:"indicator"`
	Count     int    `json:"count"`
}

// ThreatIntelSummary is the overall threat picture
type ThreatIntelSummary struct {
	TotalThreats         int              `json:"total_threats"`
	UniqueThreats        int              `json:"unique_threats"`
	SeverityDistribution map[string]int   `json:"severity_distribution"`
	TopIndicators        []IndicatorCount `json:"top_indicators"`
	Trend                string           `json:"trend"`
}

// Handler serves the /metrics/* insight endpoints
type Handler struct{}

// New creates a new insights handler
func New() *Handler {
	return &Handler{}
}

func period(r *http.Request) Period {
	p := Period{Start: r.URL.Query().Get("start_date"), End: r.URL.Query().Get("end_date")}
	if p.Start == "" {
		p.Start = DefaultStartDate
	}
	if p.End == "" {
		p.End = DefaultEndDate
	}
	return p
}

// HandleThreatBlockRate serves GET /metrics/threat-block-rate
func (h *Handler) HandleThreatBlockRate(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, Metric{
		Metric:      "threat_block_rate",
		Period:      period(r),
		Value:       0.85,
		Unit:        "percentage",
		Description: "Percentage of threats successfully blocked",
	})
}

// HandleProductEfficacy serves GET /metrics/product-efficacy
func (h *Handler) HandleProductEfficacy(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, Metric{
		Metric:      "product_efficacy_score",
		Period:      period(r),
		Value:       87.5,
		Unit:        "score",
		Description: "Overall product efficacy score (0-100)",
		Components: map[string]float64{
			"detection_rate":           85.0,
			"high_severity_catch_rate": 92.0,
		},
	})
}

// HandleUserMetrics serves GET /metrics/user/{user_id}
func (h *Handler) HandleUserMetrics(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, UserMetrics{
		UserID:         r.PathValue("user_id"),
		TotalEvents:    150,
		PhishingEvents: 45,
		PhishingRate:   30.0,
		ReportRate:     88.9,
		Department:     "Engineering",
		Region:         "US-East",
	})
}

// HandleThreatIntelSummary serves GET /metrics/threat-intel-summary
func (h *Handler) HandleThreatIntelSummary(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, ThreatIntelSummary{
		TotalThreats:  5000,
		UniqueThreats: 4500,
		SeverityDistribution: map[string]int{
			"high":   1500,
			"medium": 2000,
			"low":    1500,
		},
		TopIndicators: []IndicatorCount{
			{Indicator: "has_ip_address", Count: 1200},
			{Indicator: "abnormal_form_action", Count: 950},
			{Indicator: "iframe_or_frame", Count: 800},
		},
		Trend: "increasing",
	})
}
