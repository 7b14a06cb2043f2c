package models

import "time"

// Scan lifecycle status values exposed to pollers.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// Scan phases in execution order. PhaseError is only reached through
// the top-level failure handler.
const (
	PhaseBrainstorming = "brainstorming"
	PhaseExecuting     = "executing"
	PhaseDeepDive      = "deep_dive"
	PhaseCorrelating   = "correlating"
	PhaseBriefing      = "briefing"
	PhaseComplete      = "complete"
	PhaseError         = "error"
)

// Progress counts mission completions against the running total. Total
// only ever grows within a scan (deep-dive follow-ups are added to it).
type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// ProgressSnapshot is the live, pollable state of an in-progress or
// just-completed scan. It is rewritten in place under its scan_id key
// after every state-changing step; UpdatedAt lets callers apply their
// own staleness policy to a snapshot stuck in running.
type ProgressSnapshot struct {
	ScanID          string           `json:"scan_id"`
	Status          string           `json:"status"`
	Phase           string           `json:"phase"`
	Progress        Progress         `json:"progress"`
	Missions        []Mission        `json:"missions,omitempty"`
	Detections      []Detection      `json:"detections,omitempty"`
	Clusters        []ThreatCluster  `json:"clusters,omitempty"`
	Narrative       *Narrative       `json:"narrative,omitempty"`
	AdaptiveContext *AdaptiveContext `json:"adaptive_context,omitempty"`
	Error           string           `json:"error,omitempty"`
	UpdatedAt       time.Time        `json:"updated_at"`
}
