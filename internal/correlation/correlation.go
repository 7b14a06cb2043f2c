// Package correlation finds entities shared across completed missions
// and groups them into threat clusters.
package correlation

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"

	"github.com/derivinsight/sentinel/internal/llm"
	"github.com/derivinsight/sentinel/internal/models"
)

// entityKeys are the entity-bearing row fields considered for
// cross-mission correlation.
var entityKeys = []string{"user_id", "country", "ip_address", "email", "email_attempted"}

// MaxCandidates caps the overlap list handed to the clustering
// collaborator, keeping the request bounded regardless of scan size.
const MaxCandidates = 10

// Overlap is one entity reference observed in two or more distinct
// missions.
type Overlap struct {
	Entity      string       `json:"entity"`
	Domains     []string     `json:"domains"`
	Missions    []overlapHit `json:"missions"`
	CrossDomain bool         `json:"cross_domain"`
}

type overlapHit struct {
	MissionID   string `json:"mission_id"`
	Domain      string `json:"domain"`
	MissionName string `json:"mission_name"`
}

// Analyzer correlates detections across domains.
type Analyzer struct {
	generator llm.Generator
}

// New creates an Analyzer.
func New(generator llm.Generator) *Analyzer {
	return &Analyzer{generator: generator}
}

// Correlate returns threat clusters for entities appearing across at
// least two missions. With no overlaps the collaborator is never
// called; malformed collaborator output yields an empty slice.
func (a *Analyzer) Correlate(ctx context.Context, detections []models.Detection) []models.ThreatCluster {
	overlaps := FindOverlaps(detections)
	if len(overlaps) == 0 {
		return nil
	}

	return a.cluster(ctx, detections, overlaps)
}

// FindOverlaps builds the entity map and returns references seen in
// two or more distinct missions, ranked cross-domain first then by the
// number of contributing missions, capped at MaxCandidates.
func FindOverlaps(detections []models.Detection) []Overlap {
	entityMap := make(map[string][]overlapHit)

	for _, det := range detections {
		for _, row := range det.Results {
			for _, key := range entityKeys {
				v, ok := row[key]
				if !ok || v == nil || v == "" {
					continue
				}

				ref := fmt.Sprintf("%s:%v", key, v)
				hit := overlapHit{MissionID: det.MissionID, Domain: det.Domain, MissionName: det.MissionName}
				if !containsHit(entityMap[ref], hit) {
					entityMap[ref] = append(entityMap[ref], hit)
				}
			}
		}
	}

	var overlaps []Overlap
	for ref, hits := range entityMap {
		missions := make(map[string]struct{})
		domains := make(map[string]struct{})
		for _, h := range hits {
			missions[h.MissionID] = struct{}{}
			domains[h.Domain] = struct{}{}
		}

		if len(missions) < 2 {
			continue
		}

		domainList := make([]string, 0, len(domains))
		for d := range domains {
			domainList = append(domainList, d)
		}
		sort.Strings(domainList)

		overlaps = append(overlaps, Overlap{
			Entity:      ref,
			Domains:     domainList,
			Missions:    hits,
			CrossDomain: len(domains) >= 2,
		})
	}

	sort.Slice(overlaps, func(i, j int) bool {
		if overlaps[i].CrossDomain != overlaps[j].CrossDomain {
			return overlaps[i].CrossDomain
		}
		if len(overlaps[i].Missions) != len(overlaps[j].Missions) {
			return len(overlaps[i].Missions) > len(overlaps[j].Missions)
		}
		return overlaps[i].Entity < overlaps[j].Entity
	})

	if len(overlaps) > MaxCandidates {
		overlaps = overlaps[:MaxCandidates]
	}

	return overlaps
}

type detectionSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Domain    string `json:"domain"`
	Severity  string `json:"severity"`
	RiskScore int    `json:"risk_score"`
	DataCount int    `json:"data_count"`
	Insight   string `json:"insight"`
}

func (a *Analyzer) cluster(ctx context.Context, detections []models.Detection, overlaps []Overlap) []models.ThreatCluster {
	summaries := make([]detectionSummary, 0, len(detections))
	for _, d := range detections {
		insightText := d.Insight
		if len(insightText) > 200 {
			insightText = insightText[:200]
		}
		summaries = append(summaries, detectionSummary{
			ID:        d.MissionID,
			Name:      d.MissionName,
			Domain:    d.Domain,
			Severity:  d.Severity,
			RiskScore: d.RiskScore,
			DataCount: d.DataCount,
			Insight:   insightText,
		})
	}

	summariesJSON, _ := json.MarshalIndent(summaries, "", "  ")
	overlapsJSON, _ := json.MarshalIndent(overlaps, "", "  ")

	prompt := fmt.Sprintf(`You are a threat intelligence analyst performing cross-domain correlation.

COMPLETED MISSION SUMMARIES:
%s

ENTITY OVERLAPS DETECTED (entities appearing across multiple missions):
%s

Group overlapping entities into THREAT CLUSTERS - related findings that together suggest a coordinated threat.

For each cluster:
1. Name the threat pattern
2. List connected mission IDs
3. List shared entities
4. Write a brief threat narrative connecting the dots
5. Recommend immediate action

RESPONSE FORMAT (JSON array only, no markdown):
[
  {
    "cluster_id": "TC-001",
    "threat_name": "Name of the threat pattern",
    "severity": "CRITICAL or HIGH or MEDIUM",
    "connected_missions": ["mission-id-1", "mission-id-2"],
    "shared_entities": {"user_ids": [], "countries": [], "ip_addresses": []},
    "narrative": "Connecting narrative...",
    "recommended_action": "Specific action..."
  }
]

Only create clusters where there is a MEANINGFUL connection. Return empty array [] if none exist.`,
		summariesJSON, overlapsJSON)

	text, err := a.generator.Generate(ctx, prompt, 0.4)
	if err != nil {
		log.Printf("Warning: correlation clustering failed: %v", err)
		return nil
	}

	clusters, err := llm.ParseList[models.ThreatCluster](text)
	if err != nil {
		log.Printf("Warning: failed to parse threat clusters: %v", err)
		return nil
	}

	return clusters
}

func containsHit(hits []overlapHit, hit overlapHit) bool {
	for _, h := range hits {
		if h == hit {
			return true
		}
	}
	return false
}
