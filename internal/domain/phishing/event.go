package phishing

import "time"

// Event types emitted by ingestion
const (
	EventThreatDetected = "threat_detected"
	EventLegitimateURL  = "legitimate_url"
)

// ThreatEvent is one dataset row reshaped into the product-log event format
type ThreatEvent struct {
	EventID      string             `json:"event_id"`
	UserID       string             `json:"user_id"`
	Timestamp    time.Time          `json:"timestamp"`
	EventType    string             `json:"event_type"`
	ThreatID     string             `json:"threat_id"`
	IsPhishing   int                `json:"is_phishing"`
	Metadata     map[string]float64 `json:"metadata"`
	UserMetadata UserMetadata       `json:"user_metadata"`
	RawFeatures  map[string]float64 `json:"raw_features"`
}

// UserMetadata is synthetic organisational context attached to an event
type UserMetadata struct {
	Department string `json:"department"`
	Region     string `json:"region"`
	Role       string `json:"role"`
}

// Synthetic metadata pools
var (
	Departments = []string{"Engineering", "Sales", "Marketing", "HR", "Finance", "Operations"}
	Regions     = []string{"US-East", "US-West", "EU", "APAC"}
	Roles       = []string{"Manager", "Individual Contributor", "Director", "VP"}
)

// DatasetColumn links a serving feature to the dataset column it is derived from
type DatasetColumn struct {
	Feature string
	Column  string
	Invert  bool // serving value is 1 - column value
}

// ServingColumns maps every serving-schema feature to its dataset column, in schema order
var ServingColumns = []DatasetColumn{
	{Feature: "url_length", Column: "UrlLength"},
	{Feature: "num_dots", Column: "NumDots"},
	{Feature: "subdomain_level", Column: "SubdomainLevel"},
	{Feature: "path_level", Column: "PathLevel"},
	{Feature: "has_https", Column: "NoHttps", Invert: true},
	{Feature: "has_ip_address", Column: "IpAddress"},
	{Feature: "num_sensitive_words", Column: "NumSensitiveWords"},
	{Feature: "has_random_string", Column: "RandomString"},
	{Feature: "hostname_length", Column: "HostnameLength"},
	{Feature: "path_length", Column: "PathLength"},
	{Feature: "query_length", Column: "QueryLength"},
	{Feature: "pct_ext_hyperlinks", Column: "PctExtHyperlinks"},
	{Feature: "pct_ext_resource_urls", Column: "PctExtResourceUrls"},
	{Feature: "abnormal_form_action", Column: "AbnormalFormAction"},
	{Feature: "iframe_or_frame", Column: "IframeOrFrame"},
	{Feature: "missing_title", Column: "MissingTitle"},
	{Feature: "right_click_disabled", Column: "RightClickDisabled"},
	{Feature: "popup_window", Column: "PopUpWindow"},
}
