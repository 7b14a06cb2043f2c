// Package narrative composes the executive intelligence brief from all
// detections and threat clusters.
package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sort"

	"github.com/derivinsight/sentinel/internal/llm"
	"github.com/derivinsight/sentinel/internal/models"
)

// Metadata carries scan-level facts into the brief.
type Metadata struct {
	TotalMissions int
	Timestamp     string
}

// Synthesizer writes the executive brief.
type Synthesizer struct {
	generator llm.Generator
}

// New creates a Synthesizer.
func New(generator llm.Generator) *Synthesizer {
	return &Synthesizer{generator: generator}
}

type detectionSummary struct {
	Mission      string `json:"mission"`
	Domain       string `json:"domain"`
	Severity     string `json:"severity"`
	RiskScore    int    `json:"risk_score"`
	DataCount    int    `json:"data_count"`
	Insight      string `json:"insight"`
	IsSubFinding bool   `json:"is_sub_finding"`
}

// generated is the collaborator's half of the narrative. Overall risk
// is computed locally; a well-formed collaborator value overrides it.
type generated struct {
	ExecutiveSummary          string                `json:"executive_summary"`
	ThreatVectors             []models.ThreatVector `json:"threat_vectors"`
	ImmediateActions          []string              `json:"immediate_actions"`
	MonitoringRecommendations []string              `json:"monitoring_recommendations"`
	OverallRisk               int                   `json:"overall_risk"`
}

// Synthesize builds the Narrative. Collaborator failure returns the
// minimal fixed brief rather than failing the scan.
func (s *Synthesizer) Synthesize(ctx context.Context, detections []models.Detection, clusters []models.ThreatCluster, meta Metadata) *models.Narrative {
	summaries := make([]detectionSummary, 0, len(detections))
	for _, d := range detections {
		insightText := d.Insight
		if len(insightText) > 300 {
			insightText = insightText[:300]
		}
		summaries = append(summaries, detectionSummary{
			Mission:      d.MissionName,
			Domain:       d.Domain,
			Severity:     d.Severity,
			RiskScore:    d.RiskScore,
			DataCount:    d.DataCount,
			Insight:      insightText,
			IsSubFinding: d.Depth > 0,
		})
	}

	summariesJSON, _ := json.MarshalIndent(summaries, "", "  ")
	clustersJSON, _ := json.MarshalIndent(clusters, "", "  ")

	prompt := fmt.Sprintf(`You are the Chief Intelligence Officer preparing a real-time threat brief for the executive board.

SCAN OVERVIEW:
- Total missions executed: %d
- Domains covered: security, compliance, risk, operations
- Timestamp: %s

DETECTION SUMMARIES:
%s

THREAT CLUSTERS (cross-domain correlations):
%s

Write a concise executive intelligence brief. Turn raw detections into actionable intelligence.

Structure:
1. ONE paragraph executive summary (3-5 sentences) - top threat vectors
2. List 2-4 identified threat vectors with severity and description
3. 3-5 immediate action items (specific, actionable, urgent-first)
4. 2-3 monitoring recommendations for ongoing vigilance

Tone: Professional, urgent but composed. Use specific numbers. Write for a CEO.

RESPONSE FORMAT (JSON only, no markdown):
{
    "executive_summary": "Your platform currently faces...",
    "threat_vectors": [
        {
            "name": "Threat name",
            "severity": "CRITICAL or HIGH or MEDIUM",
            "description": "1-2 sentence description"
        }
    ],
    "immediate_actions": ["Action 1", "Action 2"],
    "monitoring_recommendations": ["Recommendation 1"]
}`,
		meta.TotalMissions, meta.Timestamp, summariesJSON, clustersJSON)

	text, err := s.generator.Generate(ctx, prompt, 0.6)
	if err != nil {
		log.Printf("Warning: narrative generation failed: %v", err)
		return fallback()
	}

	gen, err := llm.ParseObject[generated](text)
	if err != nil {
		log.Printf("Warning: failed to parse narrative: %v", err)
		return fallback()
	}

	overallRisk := OverallRisk(detections)
	if gen.OverallRisk > 0 && gen.OverallRisk <= 100 {
		overallRisk = gen.OverallRisk
	}

	return &models.Narrative{
		Title:                     fmt.Sprintf("Intelligence Brief - %s", meta.Timestamp),
		ExecutiveSummary:          gen.ExecutiveSummary,
		ThreatVectors:             gen.ThreatVectors,
		ImmediateActions:          gen.ImmediateActions,
		MonitoringRecommendations: gen.MonitoringRecommendations,
		OverallRisk:               overallRisk,
		OverallSeverity:           models.SeverityFromScore(overallRisk),
	}
}

// OverallRisk is the rounded mean of the top 5 detection risk scores.
func OverallRisk(detections []models.Detection) int {
	var scores []int
	for _, d := range detections {
		if d.RiskScore > 0 {
			scores = append(scores, d.RiskScore)
		}
	}
	if len(scores) == 0 {
		return 0
	}

	sort.Sort(sort.Reverse(sort.IntSlice(scores)))
	if len(scores) > 5 {
		scores = scores[:5]
	}

	sum := 0
	for _, s := range scores {
		sum += s
	}
	return int(math.Round(float64(sum) / float64(len(scores))))
}

func fallback() *models.Narrative {
	return &models.Narrative{
		Title:                     "Intelligence Brief",
		ExecutiveSummary:          "Scan completed. Review individual findings for details.",
		ThreatVectors:             []models.ThreatVector{},
		ImmediateActions:          []string{"Review detection cards for specific findings"},
		MonitoringRecommendations: []string{"Continue scheduled scans"},
		OverallRisk:               0,
		OverallSeverity:           models.SeverityLow,
	}
}
