// Package planner brainstorms the mission batch for one scan,
// weighting domains by adaptive context from scan memory.
package planner

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/derivinsight/sentinel/internal/llm"
	"github.com/derivinsight/sentinel/internal/models"
)

// schemaContext describes the dataset the answer engine can query.
// Mission questions are phrased against these tables.
const schemaContext = `ACTUAL TABLES:
- users (user_id, username, age, kyc_status, risk_level, risk_score, is_pep, account_status)
- transactions (txn_id, user_id, txn_type, instrument, amount, currency, amount_usd, status, flag_reason, payment_method)
- login_events (event_id, user_id, email_attempted, ip_address, status, country, city, device_type, failure_reason)`

// ContextSource supplies adaptive planning signals.
type ContextSource interface {
	AdaptiveContext(ctx context.Context) models.AdaptiveContext
}

// Planner asks the brainstorming collaborator for a weighted batch of
// investigation missions.
type Planner struct {
	generator       llm.Generator
	memory          ContextSource
	adaptiveEnabled bool
}

// New creates a Planner. When adaptiveEnabled is false (or no history
// exists) every domain gets a flat allocation.
func New(generator llm.Generator, memory ContextSource, adaptiveEnabled bool) *Planner {
	return &Planner{
		generator:       generator,
		memory:          memory,
		adaptiveEnabled: adaptiveEnabled,
	}
}

// rawMission is the shape the collaborator is asked to produce.
type rawMission struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Query    string `json:"query"`
	Domain   string `json:"domain"`
	Severity string `json:"severity"`
}

// Plan returns the mission batch for one scan. Malformed or empty
// collaborator output yields an empty slice; the orchestrator is
// responsible for substituting the fallback mission.
func (p *Planner) Plan(ctx context.Context, countPerDomain int) []models.Mission {
	adaptive := p.memory.AdaptiveContext(ctx)

	weights := adaptive.DomainWeights
	if !p.adaptiveEnabled || adaptive.ScanCount == 0 {
		weights = make(map[string]int, len(models.Domains))
		for _, domain := range models.Domains {
			weights[domain] = countPerDomain
		}
	}

	total := 0
	for _, w := range weights {
		total += w
	}

	prompt := buildPrompt(weights, total, adaptive)

	text, err := p.generator.Generate(ctx, prompt, 0.8)
	if err != nil {
		log.Printf("Warning: mission brainstorming failed: %v", err)
		return nil
	}

	raw, err := llm.ParseList[rawMission](text)
	if err != nil {
		log.Printf("Warning: failed to parse brainstormed missions: %v", err)
		return nil
	}

	missions := make([]models.Mission, 0, len(raw))
	for _, r := range raw {
		if r.Query == "" {
			continue
		}
		id := r.ID
		if id == "" {
			id = uuid.NewString()
		}
		missions = append(missions, models.Mission{
			ID:       id,
			Name:     r.Name,
			Query:    r.Query,
			Domain:   normalizeDomain(r.Domain),
			Severity: normalizeSeverity(r.Severity),
			Depth:    0,
		})
	}

	log.Printf("Planner brainstormed %d missions (requested %d)", len(missions), total)
	return missions
}

func buildPrompt(weights map[string]int, total int, adaptive models.AdaptiveContext) string {
	focus := strings.Join(adaptive.FocusAreas, "\n")
	if focus == "" {
		focus = "No previous data. This is the first scan."
	}

	var avoid strings.Builder
	for _, q := range adaptive.AvoidQueries {
		fmt.Fprintf(&avoid, "- %s\n", q)
	}
	avoidText := avoid.String()
	if avoidText == "" {
		avoidText = "None - first scan."
	}

	return fmt.Sprintf(`You are the "Sentinel Brain", an autonomous security and compliance agent for a financial platform.
Your task is to brainstorm dynamic, high-impact "Deep Audit Missions" based on the database schema.

SCHEMA:
%s

MISSION ALLOCATION BY DOMAIN:
- security: %d missions (threats, fraud, unusual logins, account takeovers)
- compliance: %d missions (regulatory violations, KYC gaps, PEP monitoring, AML)
- operations: %d missions (payment failures, system health, user performance)
- risk: %d missions (high-risk exposure, portfolio imbalances)

SCAN INTELLIGENCE (from %d previous scans):

FOCUS AREAS (generate DEEPER missions on these - they were critical last scan):
%s

QUERIES TO AVOID (already explored recently - generate NEW angles):
%s

GOAL:
Generate exactly %d distinct audit questions (missions).
The questions should be sophisticated, seeking hidden patterns or critical risks.
DIVERSIFY: Do NOT repeat previous queries. Explore new angles each scan.

RESPONSE FORMAT:
Provide ONLY a JSON list of objects:
[
  {
    "id": "unique_string",
    "name": "Short Mission Name",
    "query": "The natural language question for the AI to solve",
    "domain": "one of the domains above",
    "severity": "CRITICAL, HIGH, or MEDIUM"
  }
]`,
		schemaContext,
		weights[models.DomainSecurity],
		weights[models.DomainCompliance],
		weights[models.DomainOperations],
		weights[models.DomainRisk],
		adaptive.ScanCount,
		focus,
		avoidText,
		total,
	)
}

func normalizeDomain(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	for _, d := range models.Domains {
		if domain == d {
			return d
		}
	}
	return models.DomainSecurity
}

func normalizeSeverity(severity string) string {
	severity = strings.ToUpper(strings.TrimSpace(severity))
	switch severity {
	case models.SeverityCritical, models.SeverityHigh, models.SeverityMedium, models.SeverityLow:
		return severity
	default:
		return models.SeverityMedium
	}
}
