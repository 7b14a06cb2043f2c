package models

import "time"

// ScanIDFormat renders scan IDs sortable by UTC start time,
// e.g. scan-20250107T113157.
const ScanIDFormat = "scan-20060102T150405"

// NewScanID derives a scan ID from a start time.
func NewScanID(t time.Time) string {
	return t.UTC().Format(ScanIDFormat)
}

// ThreatCluster groups detections linked by a shared entity across
// two or more missions. Created once per scan, read-only afterward.
type ThreatCluster struct {
	ClusterID         string              `json:"cluster_id"`
	ThreatName        string              `json:"threat_name"`
	Severity          string              `json:"severity"`
	ConnectedMissions []string            `json:"connected_missions"`
	SharedEntities    map[string][]string `json:"shared_entities,omitempty"`
	Narrative         string              `json:"narrative"`
	RecommendedAction string              `json:"recommended_action"`
}

// ThreatVector is one named threat in the executive narrative.
type ThreatVector struct {
	Name        string `json:"name"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

// Narrative is the executive intelligence brief composed in the last
// phase before persistence.
type Narrative struct {
	Title                     string         `json:"title"`
	ExecutiveSummary          string         `json:"executive_summary"`
	ThreatVectors             []ThreatVector `json:"threat_vectors"`
	ImmediateActions          []string       `json:"immediate_actions"`
	MonitoringRecommendations []string       `json:"monitoring_recommendations"`
	OverallRisk               int            `json:"overall_risk"`
	OverallSeverity           string         `json:"overall_severity"`
}

// ScanStats summarise one completed scan for the history index.
type ScanStats struct {
	TotalMissions   int    `json:"total_missions"`
	CriticalCount   int    `json:"critical_count"`
	HighCount       int    `json:"high_count"`
	OverallRisk     int    `json:"overall_risk"`
	OverallSeverity string `json:"overall_severity"`
}

// ScanRecord is the durable record of one completed scan. Immutable
// once written; retained up to the history cap, pruned oldest-first.
type ScanRecord struct {
	ScanID     string          `json:"scan_id"`
	Timestamp  time.Time       `json:"timestamp"`
	Stats      ScanStats       `json:"stats"`
	Detections []Detection     `json:"detections"`
	Clusters   []ThreatCluster `json:"clusters"`
	Narrative  *Narrative      `json:"narrative,omitempty"`
}

// ScanIndexEntry is the cheap listing form of a ScanRecord.
type ScanIndexEntry struct {
	ScanID    string    `json:"scan_id"`
	Timestamp time.Time `json:"timestamp"`
	ScanStats
}

// MissionSummary is the compact per-mission entry kept in summary
// history for adaptive learning.
type MissionSummary struct {
	Name      string `json:"name"`
	Query     string `json:"query"`
	Domain    string `json:"domain"`
	RiskScore int    `json:"risk_score"`
	Severity  string `json:"severity"`
	DataCount int    `json:"data_count"`
}

// ScanSummary is one entry of the rolling summary history that feeds
// the adaptive context.
type ScanSummary struct {
	Timestamp       time.Time        `json:"timestamp"`
	Missions        []MissionSummary `json:"missions"`
	DomainScores    map[string]int   `json:"domain_scores"`
	CriticalDomains []string         `json:"critical_domains"`
}

// AdaptiveContext carries weighting and avoidance signals derived from
// recent scan history. It is computed on read, never stored directly.
type AdaptiveContext struct {
	DomainWeights map[string]int `json:"domain_weights"`
	AvoidQueries  []string       `json:"avoid_queries"`
	FocusAreas    []string       `json:"focus_areas"`
	ScanCount     int            `json:"scan_count"`
}
