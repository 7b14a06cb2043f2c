// Package orchestrator sequences the scan phases: brainstorm missions,
// execute them concurrently, deep-dive on risky findings, correlate
// across missions, synthesize the executive brief, and persist the
// scan while keeping a live progress snapshot for pollers.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/derivinsight/sentinel/internal/config"
	"github.com/derivinsight/sentinel/internal/events"
	"github.com/derivinsight/sentinel/internal/models"
	"github.com/derivinsight/sentinel/internal/narrative"
	"github.com/derivinsight/sentinel/internal/notifier"
	"github.com/derivinsight/sentinel/internal/store"
)

// Collaborator contracts. Every dependency is injected so tests can
// substitute stubs and no component reaches for hidden global state.
type (
	// MissionPlanner brainstorms the mission batch.
	MissionPlanner interface {
		Plan(ctx context.Context, countPerDomain int) []models.Mission
	}

	// MissionExecutor runs one mission; it never fails, it degrades.
	MissionExecutor interface {
		Execute(ctx context.Context, mission models.Mission) models.Detection
	}

	// DeepDiveExpander generates bounded follow-up missions.
	DeepDiveExpander interface {
		ShouldExpand(detection models.Detection) bool
		Expand(ctx context.Context, detection models.Detection, depth int) []models.Mission
	}

	// Correlator groups shared entities into threat clusters.
	Correlator interface {
		Correlate(ctx context.Context, detections []models.Detection) []models.ThreatCluster
	}

	// Narrator composes the executive brief.
	Narrator interface {
		Synthesize(ctx context.Context, detections []models.Detection, clusters []models.ThreatCluster, meta narrative.Metadata) *models.Narrative
	}

	// ScanRecorder persists summaries and full scan records.
	ScanRecorder interface {
		RecordSummary(ctx context.Context, detections []models.Detection) error
		SaveFullScan(ctx context.Context, scanID string, detections []models.Detection, clusters []models.ThreatCluster, narrative *models.Narrative) error
		AdaptiveContext(ctx context.Context) models.AdaptiveContext
	}
)

// Orchestrator drives one scan at a time through its phases. Multiple
// scans may run concurrently; each one owns its progress key.
type Orchestrator struct {
	cfg      *config.Config
	planner  MissionPlanner
	executor MissionExecutor
	expander DeepDiveExpander
	analyzer Correlator
	narrator Narrator
	memory   ScanRecorder
	progress *store.ProgressStore
	notify   notifier.Notifier
	sink     events.Sink
}

// New wires the orchestrator. sink may be nil when no event consumers
// are configured; notify may be nil to disable alerting.
func New(cfg *config.Config, planner MissionPlanner, executor MissionExecutor, expander DeepDiveExpander, analyzer Correlator, narrator Narrator, memory ScanRecorder, progress *store.ProgressStore, notify notifier.Notifier, sink events.Sink) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		planner:  planner,
		executor: executor,
		expander: expander,
		analyzer: analyzer,
		narrator: narrator,
		memory:   memory,
		progress: progress,
		notify:   notify,
		sink:     sink,
	}
}

// StartScan seeds the progress snapshot and launches the scan in the
// background, returning immediately with the new scan ID. A poller
// querying right after this returns gets a valid running snapshot.
func (o *Orchestrator) StartScan(ctx context.Context) (string, error) {
	scanID := models.NewScanID(time.Now())

	if err := o.seedSnapshot(ctx, scanID); err != nil {
		return "", fmt.Errorf("failed to seed progress snapshot: %w", err)
	}

	go func() {
		// The scan outlives the HTTP request that started it.
		if _, err := o.Run(context.Background(), scanID, nil); err != nil {
			log.Printf("Scan %s failed: %v", scanID, err)
		}
	}()

	return scanID, nil
}

// RunSync executes a full scan synchronously and returns its
// detections, for callers that only need the end result.
func (o *Orchestrator) RunSync(ctx context.Context) ([]models.Detection, error) {
	scanID := models.NewScanID(time.Now())
	if err := o.seedSnapshot(ctx, scanID); err != nil {
		return nil, fmt.Errorf("failed to seed progress snapshot: %w", err)
	}
	return o.Run(ctx, scanID, nil)
}

func (o *Orchestrator) seedSnapshot(ctx context.Context, scanID string) error {
	adaptive := o.memory.AdaptiveContext(ctx)
	snapshot := &models.ProgressSnapshot{
		ScanID:          scanID,
		Status:          models.StatusRunning,
		Phase:           models.PhaseBrainstorming,
		AdaptiveContext: &adaptive,
	}
	return o.progress.Save(ctx, snapshot)
}

// Run drives the scan with the given ID through every phase. extra is
// an optional event sink on top of the configured one (the SSE stream
// attaches itself here). Any panic inside the scan body is converted
// into a terminal failed snapshot; Run itself returns the panic as an
// error.
func (o *Orchestrator) Run(ctx context.Context, scanID string, extra events.Sink) (detections []models.Detection, err error) {
	sink := events.Multi{o.sink, extra}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scan %s panicked: %v", scanID, r)
			log.Printf("Error: %v", err)
			o.failSnapshot(scanID, fmt.Sprintf("%v", r))
		}
	}()

	log.Printf("[%s] Initiating sentinel scan", scanID)

	adaptive := o.memory.AdaptiveContext(ctx)
	state := &scanState{
		snapshot: models.ProgressSnapshot{
			ScanID:          scanID,
			Status:          models.StatusRunning,
			Phase:           models.PhaseBrainstorming,
			AdaptiveContext: &adaptive,
		},
	}
	o.saveSnapshot(ctx, state)
	sink.Emit(events.New(events.ScanStarted, scanID, map[string]any{
		"scan_id": scanID,
		"status":  models.StatusRunning,
	}))

	// Phase 1: brainstorm. An empty plan never makes the scan
	// vacuous: one fixed fallback mission is substituted.
	missions := o.planner.Plan(ctx, o.cfg.CountPerDomain)
	if len(missions) == 0 {
		log.Printf("[%s] Planner returned no missions, using fallback", scanID)
		missions = []models.Mission{fallbackMission()}
	}

	state.snapshot.Missions = missions
	state.snapshot.Progress.Total = len(missions)
	state.snapshot.Phase = models.PhaseExecuting
	o.saveSnapshot(ctx, state)

	// Phase 2: concurrent execution, fan-in in completion order.
	o.runBatch(ctx, state, missions, sink)

	// Phase 3: one deep-dive round over every completed detection.
	if o.cfg.DeepDiveEnabled {
		followups := o.collectFollowups(ctx, state.snapshot.Detections)
		if len(followups) > 0 {
			log.Printf("[%s] Deep dive: %d follow-up missions", scanID, len(followups))

			state.snapshot.Phase = models.PhaseDeepDive
			state.snapshot.Missions = append(state.snapshot.Missions, followups...)
			state.snapshot.Progress.Total += len(followups)
			o.saveSnapshot(ctx, state)
			sink.Emit(events.New(events.DeepDiveStarted, scanID, map[string]any{
				"followup_count": len(followups),
			}))

			o.runBatch(ctx, state, followups, sink)
		}
	}

	// Phase 4: cross-mission correlation.
	if o.cfg.CorrelationEnabled {
		state.snapshot.Phase = models.PhaseCorrelating
		o.saveSnapshot(ctx, state)
		sink.Emit(events.New(events.CorrelationStarted, scanID, nil))

		clusters := o.analyzer.Correlate(ctx, state.snapshot.Detections)
		state.snapshot.Clusters = clusters
		o.saveSnapshot(ctx, state)
		sink.Emit(events.New(events.CorrelationComplete, scanID, map[string]any{
			"cluster_count": len(clusters),
		}))
	}

	// Phase 5: executive brief.
	state.snapshot.Phase = models.PhaseBriefing
	o.saveSnapshot(ctx, state)
	sink.Emit(events.New(events.NarrativeStarted, scanID, nil))

	brief := o.narrator.Synthesize(ctx, state.snapshot.Detections, state.snapshot.Clusters, narrative.Metadata{
		TotalMissions: len(state.snapshot.Detections),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	})
	state.snapshot.Narrative = brief
	o.saveSnapshot(ctx, state)
	sink.Emit(events.New(events.NarrativeComplete, scanID, brief))

	if o.notify != nil {
		go o.notify.NotifyNarrative(context.Background(), scanID, brief)
	}

	// Phase 6: persist under the same scan ID used for progress.
	if err := o.memory.RecordSummary(ctx, state.snapshot.Detections); err != nil {
		log.Printf("Warning: [%s] failed to record scan summary: %v", scanID, err)
	}
	if err := o.memory.SaveFullScan(ctx, scanID, state.snapshot.Detections, state.snapshot.Clusters, brief); err != nil {
		log.Printf("Warning: [%s] failed to save full scan: %v", scanID, err)
	}

	state.snapshot.Status = models.StatusComplete
	state.snapshot.Phase = models.PhaseComplete
	o.saveSnapshot(ctx, state)
	sink.Emit(events.New(events.ScanComplete, scanID, map[string]any{
		"scan_id":          scanID,
		"total_missions":   len(state.snapshot.Detections),
		"overall_risk":     brief.OverallRisk,
		"overall_severity": brief.OverallSeverity,
	}))

	log.Printf("[%s] Scan complete: %d detections, %d clusters",
		scanID, len(state.snapshot.Detections), len(state.snapshot.Clusters))

	return state.snapshot.Detections, nil
}

// scanState is the orchestrator's working copy of the snapshot. All
// mutation happens on the scan's own goroutine (fan-in serializes
// completions), so no locking is needed.
type scanState struct {
	snapshot models.ProgressSnapshot
}

// runBatch launches one concurrent task per mission and funnels
// completions through a single channel, so the detection list and
// completed counter advance monotonically in completion order.
// In-flight collaborator calls are bounded by the configured cap, but
// every mission is submitted immediately.
func (o *Orchestrator) runBatch(ctx context.Context, state *scanState, missions []models.Mission, sink events.Sink) {
	results := make(chan models.Detection)
	semaphore := make(chan struct{}, o.cfg.MaxConcurrentMissions)

	for _, mission := range missions {
		go func(m models.Mission) {
			semaphore <- struct{}{}
			defer func() { <-semaphore }()
			results <- o.executeSafe(ctx, m)
		}(mission)
	}

	// Full drain: failed missions come back as degraded detections,
	// so every launched task reports exactly once.
	for range missions {
		detection := <-results

		state.snapshot.Detections = append(state.snapshot.Detections, detection)
		state.snapshot.Progress.Completed++
		o.saveSnapshot(ctx, state)

		sink.Emit(events.New(events.MissionComplete, state.snapshot.ScanID, detection))

		if o.notify != nil {
			go o.notify.NotifyDetection(context.Background(), detection)
		}
	}
}

// executeSafe shields the batch from a panicking executor: the mission
// comes back as a degraded detection and the fan-in drain still sees
// exactly one result per launched task.
func (o *Orchestrator) executeSafe(ctx context.Context, mission models.Mission) (det models.Detection) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Error: mission %s panicked: %v", mission.ID, r)
			det = models.Detection{
				MissionID:       mission.ID,
				MissionName:     mission.Name,
				Domain:          mission.Domain,
				Severity:        mission.Severity,
				Results:         []models.Row{},
				Depth:           mission.Depth,
				ParentMissionID: mission.ParentMissionID,
				OriginalQuery:   mission.Query,
				Error:           fmt.Sprintf("mission panicked: %v", r),
				Timestamp:       time.Now().UTC(),
			}
		}
	}()

	return o.executor.Execute(ctx, mission)
}

// collectFollowups gathers deep-dive missions across all detections
// into one batch for a single additional execution round.
func (o *Orchestrator) collectFollowups(ctx context.Context, detections []models.Detection) []models.Mission {
	var followups []models.Mission
	for _, detection := range detections {
		if !o.expander.ShouldExpand(detection) {
			continue
		}
		followups = append(followups, o.expander.Expand(ctx, detection, detection.Depth)...)
	}
	return followups
}

func (o *Orchestrator) saveSnapshot(ctx context.Context, state *scanState) {
	if err := o.progress.Save(ctx, &state.snapshot); err != nil {
		log.Printf("Warning: [%s] failed to save progress snapshot: %v", state.snapshot.ScanID, err)
	}
}

// failSnapshot converts an unhandled panic into a terminal failed
// snapshot so no scan is left dangling in running forever.
func (o *Orchestrator) failSnapshot(scanID, message string) {
	snapshot := &models.ProgressSnapshot{
		ScanID: scanID,
		Status: models.StatusFailed,
		Phase:  models.PhaseError,
		Error:  message,
	}
	if err := o.progress.Save(context.Background(), snapshot); err != nil {
		log.Printf("Warning: [%s] failed to save failure snapshot: %v", scanID, err)
	}
}

// fallbackMission is the fixed mission substituted when brainstorming
// yields nothing.
func fallbackMission() models.Mission {
	return models.Mission{
		ID:       "fall-001",
		Name:     "Basic Security Audit",
		Query:    "Check for high risk logins",
		Domain:   models.DomainSecurity,
		Severity: models.SeverityHigh,
	}
}
