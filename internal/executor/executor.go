// Package executor runs one mission end-to-end: ask the answer engine,
// score the result, capture structured logs.
package executor

import (
	"context"
	"time"

	"github.com/derivinsight/sentinel/internal/insight"
	"github.com/derivinsight/sentinel/internal/models"
	"github.com/derivinsight/sentinel/internal/scorer"
)

// Executor executes missions against the answer engine. Execute never
// returns an error: every failure is captured in the Detection's Error
// field so one failing mission cannot abort a scan batch.
type Executor struct {
	engine insight.Engine
}

// New creates an Executor over the given answer engine.
func New(engine insight.Engine) *Executor {
	return &Executor{engine: engine}
}

// Execute runs one mission and returns its Detection. The per-call log
// buffer is attached to the Detection on every exit path.
func (e *Executor) Execute(ctx context.Context, mission models.Mission) models.Detection {
	logs := NewLogBuffer()
	logs.Infof("Mission started: %s [%s]", mission.Name, mission.Domain)

	answer, err := e.engine.Answer(ctx, mission.Query, mission.Domain)
	if err != nil {
		logs.Errorf("Mission failed: %v", err)
		return models.Detection{
			MissionID:       mission.ID,
			MissionName:     mission.Name,
			Domain:          mission.Domain,
			Severity:        mission.Severity, // fall back to the planner's hint
			RiskScore:       0,
			Results:         []models.Row{},
			Depth:           mission.Depth,
			ParentMissionID: mission.ParentMissionID,
			OriginalQuery:   mission.Query,
			Logs:            logs.Entries(),
			Error:           err.Error(),
			Timestamp:       time.Now().UTC(),
		}
	}

	logs.Infof("Answer engine returned %d rows", len(answer.Results))

	verdict := scorer.Score(mission, answer.Results)
	logs.Infof("Risk score %d (%s)", verdict.RiskScore, verdict.Severity)

	results := answer.Results
	if results == nil {
		results = []models.Row{}
	}

	return models.Detection{
		MissionID:       mission.ID,
		MissionName:     mission.Name,
		Domain:          mission.Domain,
		Severity:        verdict.Severity,
		RiskScore:       verdict.RiskScore,
		RiskFactors:     verdict.Factors,
		SQL:             answer.SQL,
		DataCount:       len(results),
		Results:         results,
		Insight:         answer.Insight,
		Recommendation:  answer.Recommendation,
		Depth:           mission.Depth,
		ParentMissionID: mission.ParentMissionID,
		OriginalQuery:   mission.Query,
		Logs:            logs.Entries(),
		Timestamp:       time.Now().UTC(),
	}
}
