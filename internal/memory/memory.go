// Package memory keeps the durable record of past scans: compact
// summaries that feed adaptive mission planning, and full scan records
// for the history viewer. Everything goes through the shared two-tier
// store, so a cache outage only costs read latency.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/derivinsight/sentinel/internal/models"
	"github.com/derivinsight/sentinel/internal/store"
)

// ScanMemory persists scan summaries and full scan records.
type ScanMemory struct {
	store      *store.Tiered
	maxHistory int
}

// New creates a ScanMemory over the shared store. maxHistory caps both
// the summary list and the number of retained full scans.
func New(st *store.Tiered, maxHistory int) *ScanMemory {
	return &ScanMemory{store: st, maxHistory: maxHistory}
}

// loadHistory reads the rolling summary list. A missing key is an
// empty history, not an error.
func (m *ScanMemory) loadHistory(ctx context.Context) ([]models.ScanSummary, error) {
	data, err := m.store.Get(ctx, store.KeyScanHistory)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}

	var history []models.ScanSummary
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scan history: %w", err)
	}

	return history, nil
}

// RecordSummary appends a compact summary of the scan's detections to
// the rolling history, capped at maxHistory entries oldest-first.
func (m *ScanMemory) RecordSummary(ctx context.Context, detections []models.Detection) error {
	summary := models.ScanSummary{
		Timestamp:    time.Now().UTC(),
		Missions:     make([]models.MissionSummary, 0, len(detections)),
		DomainScores: make(map[string]int),
	}

	domainScores := make(map[string][]int)
	for _, det := range detections {
		summary.Missions = append(summary.Missions, models.MissionSummary{
			Name:      det.MissionName,
			Query:     det.OriginalQuery,
			Domain:    det.Domain,
			RiskScore: det.RiskScore,
			Severity:  det.Severity,
			DataCount: det.DataCount,
		})

		domainScores[det.Domain] = append(domainScores[det.Domain], det.RiskScore)

		if det.Severity == models.SeverityCritical && !contains(summary.CriticalDomains, det.Domain) {
			summary.CriticalDomains = append(summary.CriticalDomains, det.Domain)
		}
	}

	for domain, scores := range domainScores {
		total := 0
		for _, s := range scores {
			total += s
		}
		summary.DomainScores[domain] = int(math.Round(float64(total) / float64(len(scores))))
	}

	history, err := m.loadHistory(ctx)
	if err != nil {
		log.Printf("Warning: failed to load scan history, starting fresh: %v", err)
		history = nil
	}

	history = append(history, summary)
	if len(history) > m.maxHistory {
		history = history[len(history)-m.maxHistory:]
	}

	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to marshal scan history: %w", err)
	}

	return m.store.Set(ctx, store.KeyScanHistory, data, 0)
}

// AdaptiveContext derives planning signals from recent summaries:
// domain weights from the last 5 scans' average risk, up to 15 recent
// queries to avoid from the last 3, and focus areas from the most
// recent scan's CRITICAL findings.
func (m *ScanMemory) AdaptiveContext(ctx context.Context) models.AdaptiveContext {
	history, err := m.loadHistory(ctx)
	if err != nil {
		log.Printf("Warning: failed to load scan history for adaptive context: %v", err)
	}

	if len(history) == 0 {
		return models.AdaptiveContext{
			DomainWeights: flatWeights(2),
			AvoidQueries:  []string{},
			FocusAreas:    []string{},
			ScanCount:     0,
		}
	}

	recent := history
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}

	// Domain weights: higher average risk earns more missions.
	// weight = clamp(round(2 + avg/40), 1, 4)
	sums := make(map[string]int)
	counts := make(map[string]int)
	for _, scan := range recent {
		for domain, score := range scan.DomainScores {
			sums[domain] += score
			counts[domain]++
		}
	}

	weights := make(map[string]int, len(models.Domains))
	for _, domain := range models.Domains {
		avg := 0.0
		if counts[domain] > 0 {
			avg = float64(sums[domain]) / float64(counts[domain])
		}
		w := int(math.Round(2 + avg/40))
		if w < 1 {
			w = 1
		}
		if w > 4 {
			w = 4
		}
		weights[domain] = w
	}

	// Recently asked queries, deduplicated, last 3 scans only.
	var avoid []string
	start := len(recent) - 3
	if start < 0 {
		start = 0
	}
	for _, scan := range recent[start:] {
		for _, mission := range scan.Missions {
			if mission.Query != "" && !contains(avoid, mission.Query) {
				avoid = append(avoid, mission.Query)
			}
		}
	}
	if len(avoid) > 15 {
		avoid = avoid[len(avoid)-15:]
	}

	// Focus areas from the most recent scan's critical findings.
	var focus []string
	last := recent[len(recent)-1]
	for _, mission := range last.Missions {
		if mission.Severity == models.SeverityCritical {
			focus = append(focus, fmt.Sprintf(
				"CRITICAL finding in %s: '%s' (risk score %d). Generate deeper variations.",
				mission.Domain, mission.Name, mission.RiskScore))
		}
	}

	return models.AdaptiveContext{
		DomainWeights: weights,
		AvoidQueries:  avoid,
		FocusAreas:    focus,
		ScanCount:     len(history),
	}
}

// SaveFullScan computes scan stats, persists the complete record,
// updates the scan index, and prunes durable entries beyond the cap.
func (m *ScanMemory) SaveFullScan(ctx context.Context, scanID string, detections []models.Detection, clusters []models.ThreatCluster, narrative *models.Narrative) error {
	record := models.ScanRecord{
		ScanID:     scanID,
		Timestamp:  time.Now().UTC(),
		Stats:      computeStats(detections, narrative),
		Detections: detections,
		Clusters:   clusters,
		Narrative:  narrative,
	}
	if record.Clusters == nil {
		record.Clusters = []models.ThreatCluster{}
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal scan record: %w", err)
	}

	if err := m.store.Set(ctx, store.ScanKey(scanID), data, store.ScanTTL); err != nil {
		return fmt.Errorf("failed to store scan %s: %w", scanID, err)
	}

	if err := m.updateIndex(ctx, record); err != nil {
		log.Printf("Warning: failed to update scan index: %v", err)
	}

	m.pruneOldScans(ctx)
	return nil
}

func computeStats(detections []models.Detection, narrative *models.Narrative) models.ScanStats {
	critical, high := 0, 0
	scores := make([]int, 0, len(detections))
	for _, det := range detections {
		switch det.Severity {
		case models.SeverityCritical:
			critical++
		case models.SeverityHigh:
			high++
		}
		scores = append(scores, det.RiskScore)
	}

	// Overall risk: mean of the top 3 scores, unless the narrative
	// carries a well-formed value of its own.
	sort.Sort(sort.Reverse(sort.IntSlice(scores)))
	top := scores
	if len(top) > 3 {
		top = top[:3]
	}
	overallRisk := 0
	if len(top) > 0 {
		sum := 0
		for _, s := range top {
			sum += s
		}
		overallRisk = int(math.Round(float64(sum) / float64(len(top))))
	}
	if narrative != nil && narrative.OverallRisk > 0 {
		overallRisk = narrative.OverallRisk
	}

	severity := models.SeverityLow
	if critical > 0 {
		severity = models.SeverityCritical
	} else if high > 0 {
		severity = models.SeverityHigh
	}

	return models.ScanStats{
		TotalMissions:   len(detections),
		CriticalCount:   critical,
		HighCount:       high,
		OverallRisk:     overallRisk,
		OverallSeverity: severity,
	}
}

func (m *ScanMemory) updateIndex(ctx context.Context, record models.ScanRecord) error {
	var index []models.ScanIndexEntry

	data, err := m.store.Get(ctx, store.KeyScanIndex)
	if err == nil {
		if err := json.Unmarshal(data, &index); err != nil {
			log.Printf("Warning: corrupt scan index, rebuilding: %v", err)
			index = nil
		}
	} else if err != store.ErrNotFound {
		return err
	}

	index = append(index, models.ScanIndexEntry{
		ScanID:    record.ScanID,
		Timestamp: record.Timestamp,
		ScanStats: record.Stats,
	})

	if len(index) > m.maxHistory {
		index = index[len(index)-m.maxHistory:]
	}

	out, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("failed to marshal scan index: %w", err)
	}

	return m.store.Set(ctx, store.KeyScanIndex, out, 0)
}

// pruneOldScans deletes durable full-scan entries beyond the history
// cap, oldest first. Scan keys sort chronologically by construction.
func (m *ScanMemory) pruneOldScans(ctx context.Context) {
	keys, err := m.store.Keys(ctx, "scan:")
	if err != nil {
		log.Printf("Warning: failed to list scans for pruning: %v", err)
		return
	}

	if len(keys) <= m.maxHistory {
		return
	}

	for _, key := range keys[:len(keys)-m.maxHistory] {
		if err := m.store.Delete(ctx, key); err != nil {
			log.Printf("Warning: failed to prune %s: %v", key, err)
		}
	}
}

// ListScans returns metadata for all persisted scans, newest first.
// Empty history returns an empty slice, never an error.
func (m *ScanMemory) ListScans(ctx context.Context) ([]models.ScanIndexEntry, error) {
	data, err := m.store.Get(ctx, store.KeyScanIndex)
	if err != nil {
		if err == store.ErrNotFound {
			return m.rebuildIndex(ctx)
		}
		return nil, err
	}

	var index []models.ScanIndexEntry
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scan index: %w", err)
	}

	sort.Slice(index, func(i, j int) bool {
		return index[i].Timestamp.After(index[j].Timestamp)
	})

	return index, nil
}

// rebuildIndex recovers the index from individual scan records when
// the rolling index itself was lost.
func (m *ScanMemory) rebuildIndex(ctx context.Context) ([]models.ScanIndexEntry, error) {
	keys, err := m.store.Keys(ctx, "scan:")
	if err != nil {
		return nil, err
	}

	index := make([]models.ScanIndexEntry, 0, len(keys))
	for _, key := range keys {
		data, err := m.store.Get(ctx, key)
		if err != nil {
			continue
		}
		var record models.ScanRecord
		if err := json.Unmarshal(data, &record); err != nil {
			continue
		}
		index = append(index, models.ScanIndexEntry{
			ScanID:    record.ScanID,
			Timestamp: record.Timestamp,
			ScanStats: record.Stats,
		})
	}

	sort.Slice(index, func(i, j int) bool {
		return index[i].Timestamp.After(index[j].Timestamp)
	})

	if len(index) > 0 {
		if out, err := json.Marshal(index); err == nil {
			if err := m.store.Set(ctx, store.KeyScanIndex, out, 0); err != nil {
				log.Printf("Warning: failed to backfill scan index: %v", err)
			}
		}
	}

	return index, nil
}

// GetScan loads one full scan record by ID, or store.ErrNotFound.
func (m *ScanMemory) GetScan(ctx context.Context, scanID string) (*models.ScanRecord, error) {
	data, err := m.store.Get(ctx, store.ScanKey(scanID))
	if err != nil {
		return nil, err
	}

	var record models.ScanRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scan %s: %w", scanID, err)
	}

	return &record, nil
}

func flatWeights(perDomain int) map[string]int {
	weights := make(map[string]int, len(models.Domains))
	for _, domain := range models.Domains {
		weights[domain] = perDomain
	}
	return weights
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
