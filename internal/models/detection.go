package models

import "time"

// Severity bands for detections, clusters and scans.
const (
	SeverityLow      = "LOW"
	SeverityMedium   = "MEDIUM"
	SeverityHigh     = "HIGH"
	SeverityCritical = "CRITICAL"
)

var severityOrder = map[string]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// SeverityAtLeast reports whether severity meets or exceeds min.
// Unknown severities rank below LOW.
func SeverityAtLeast(severity, min string) bool {
	return severityOrder[severity] >= severityOrder[min]
}

// SeverityFromScore maps a 0-100 risk score into a severity band.
func SeverityFromScore(score int) string {
	switch {
	case score >= 75:
		return SeverityCritical
	case score >= 50:
		return SeverityHigh
	case score >= 25:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Row is one result row from the answer engine, as decoded JSON.
type Row map[string]any

// RiskFactor is one scored component of a detection's risk score.
type RiskFactor struct {
	Value  any    `json:"value"`
	Score  int    `json:"score"`
	Detail string `json:"detail"`
}

// LogEntry is one line from a mission's private log buffer.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// Detection is the scored, enriched result of executing one mission.
// It is never mutated after the executor builds it; a failed mission
// produces a Detection with Error set rather than an error return.
type Detection struct {
	MissionID   string `json:"mission_id"`
	MissionName string `json:"mission_name"`
	Domain      string `json:"domain"`
	Severity    string `json:"severity"`

	RiskScore   int                   `json:"risk_score"`
	RiskFactors map[string]RiskFactor `json:"risk_factors,omitempty"`

	SQL            string `json:"sql,omitempty"`
	DataCount      int    `json:"data_count"`
	Results        []Row  `json:"results"`
	Insight        string `json:"insight,omitempty"`
	Recommendation string `json:"recommendation,omitempty"`

	Depth           int    `json:"depth"`
	ParentMissionID string `json:"parent_mission_id,omitempty"`
	OriginalQuery   string `json:"original_query"`

	Logs  []LogEntry `json:"logs,omitempty"`
	Error string     `json:"error,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}
