// Package deepdive generates bounded follow-up missions from high-risk
// detections, targeting the specific entities found.
package deepdive

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/derivinsight/sentinel/internal/llm"
	"github.com/derivinsight/sentinel/internal/models"
)

const (
	// TriggerThreshold is the minimum risk score that makes a
	// detection worth digging into.
	TriggerThreshold = 40

	// MaxFollowups bounds the fan-out of one expansion.
	MaxFollowups = 2

	// MaxSampleRows bounds how much result data goes into the prompt.
	MaxSampleRows = 10
)

// Expander turns a high-risk detection into follow-up missions.
type Expander struct {
	generator llm.Generator
	maxDepth  int
}

// New creates an Expander. maxDepth stops the mission tree from
// growing past that generation.
func New(generator llm.Generator, maxDepth int) *Expander {
	return &Expander{generator: generator, maxDepth: maxDepth}
}

// ShouldExpand reports whether the detection warrants a deep dive:
// it succeeded, found at least one row, and scored at or above the
// trigger threshold.
func (e *Expander) ShouldExpand(detection models.Detection) bool {
	if detection.Error != "" {
		return false
	}
	return len(detection.Results) >= 1 && detection.RiskScore >= TriggerThreshold
}

type rawFollowup struct {
	Name      string `json:"name"`
	Query     string `json:"query"`
	Domain    string `json:"domain"`
	Rationale string `json:"rationale"`
}

// Expand asks the collaborator for targeted follow-up missions. It
// returns an empty slice once depth reaches the configured maximum,
// and on any collaborator failure or malformed output.
func (e *Expander) Expand(ctx context.Context, detection models.Detection, depth int) []models.Mission {
	if depth >= e.maxDepth {
		return nil
	}

	sample := detection.Results
	if len(sample) > MaxSampleRows {
		sample = sample[:MaxSampleRows]
	}
	sampleJSON, err := json.MarshalIndent(sample, "", "  ")
	if err != nil {
		sampleJSON = []byte("[]")
	}

	insightText := detection.Insight
	if len(insightText) > 500 {
		insightText = insightText[:500]
	}

	prompt := fmt.Sprintf(`You are a forensic data analyst. A security scan mission just completed with findings.

PARENT MISSION: %s
PARENT QUERY: %s
DOMAIN: %s
RISK SCORE: %d/100
SEVERITY: %s

FINDINGS (sample):
%s

INSIGHT: %s

Generate %d targeted follow-up investigation queries that dig deeper into the specific entities found.

Rules:
- Extract SPECIFIC entity values (user_ids, countries, amounts) from the results
- Each follow-up should investigate a DIFFERENT angle of the same finding
- Think like a detective: "We found X, now let's check Y about the same actors"
- Queries must be natural language questions the NL2SQL system can answer

RESPONSE FORMAT (JSON array only, no markdown):
[
  {
    "name": "Short investigative name",
    "query": "Natural language question with SPECIFIC entities from findings",
    "domain": "%s",
    "rationale": "Why this follow-up matters"
  }
]`,
		detection.MissionName,
		detection.OriginalQuery,
		detection.Domain,
		detection.RiskScore,
		detection.Severity,
		sampleJSON,
		insightText,
		MaxFollowups,
		detection.Domain,
	)

	text, err := e.generator.Generate(ctx, prompt, 0.7)
	if err != nil {
		log.Printf("Warning: deep dive generation failed for %s: %v", detection.MissionID, err)
		return nil
	}

	raw, err := llm.ParseList[rawFollowup](text)
	if err != nil {
		log.Printf("Warning: failed to parse deep dive followups for %s: %v", detection.MissionID, err)
		return nil
	}

	if len(raw) > MaxFollowups {
		raw = raw[:MaxFollowups]
	}

	missions := make([]models.Mission, 0, len(raw))
	for i, f := range raw {
		if f.Query == "" {
			continue
		}

		name := f.Name
		if name == "" {
			name = "Follow-up Investigation"
		}
		domain := f.Domain
		if domain == "" {
			domain = detection.Domain
		}

		missions = append(missions, models.Mission{
			ID:              fmt.Sprintf("dd-%s-%d-%d", detection.MissionID, depth+1, i),
			Name:            name,
			Query:           f.Query,
			Domain:          domain,
			Severity:        detection.Severity,
			Depth:           depth + 1,
			ParentMissionID: detection.MissionID,
			Rationale:       f.Rationale,
		})
	}

	return missions
}
