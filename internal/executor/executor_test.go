package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/derivinsight/sentinel/internal/insight"
	"github.com/derivinsight/sentinel/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	answer *insight.Answer
	err    error
}

func (f *fakeEngine) Answer(_ context.Context, _ string, _ string) (*insight.Answer, error) {
	return f.answer, f.err
}

func testMission() models.Mission {
	return models.Mission{
		ID:       "m-1",
		Name:     "Failed login burst",
		Query:    "Find accounts with many failed logins",
		Domain:   models.DomainSecurity,
		Severity: models.SeverityHigh,
	}
}

func TestExecute_Success(t *testing.T) {
	engine := &fakeEngine{answer: &insight.Answer{
		SQL: "SELECT * FROM login_events WHERE status = 'FAILED'",
		Results: []models.Row{
			{"user_id": "u-1", "status": "FAILED"},
			{"user_id": "u-2", "status": "FAILED"},
		},
		Insight:        "Two accounts show bursts of failed logins.",
		Recommendation: "Force password resets.",
	}}

	det := New(engine).Execute(context.Background(), testMission())

	assert.Equal(t, "m-1", det.MissionID)
	assert.Equal(t, models.DomainSecurity, det.Domain)
	assert.Empty(t, det.Error)
	assert.Equal(t, 2, det.DataCount)
	assert.NotEmpty(t, det.SQL)
	assert.NotEmpty(t, det.RiskFactors)
	assert.Greater(t, det.RiskScore, 0)
	assert.Equal(t, "Find accounts with many failed logins", det.OriginalQuery)
	assert.NotEmpty(t, det.Logs)
	assert.False(t, det.Timestamp.IsZero())
}

func TestExecute_EngineFailure(t *testing.T) {
	engine := &fakeEngine{err: errors.New("connection refused")}

	det := New(engine).Execute(context.Background(), testMission())

	assert.Equal(t, "m-1", det.MissionID)
	assert.Equal(t, "connection refused", det.Error)
	assert.Equal(t, 0, det.RiskScore)
	// severity falls back to the planning hint, not a computed band
	assert.Equal(t, models.SeverityHigh, det.Severity)
	assert.NotNil(t, det.Results)
	assert.Empty(t, det.Results)
	assert.NotEmpty(t, det.Logs)
}

func TestExecute_EmptyResults(t *testing.T) {
	engine := &fakeEngine{answer: &insight.Answer{Results: nil}}

	det := New(engine).Execute(context.Background(), testMission())

	assert.Empty(t, det.Error)
	assert.Equal(t, 0, det.RiskScore)
	assert.Equal(t, models.SeverityLow, det.Severity)
	assert.Equal(t, 0, det.DataCount)
	assert.NotNil(t, det.Results)
}

func TestExecute_PreservesLineage(t *testing.T) {
	engine := &fakeEngine{answer: &insight.Answer{Results: []models.Row{{"user_id": "u-1"}}}}

	mission := testMission()
	mission.ID = "dd-m-1-1-0"
	mission.Depth = 1
	mission.ParentMissionID = "m-1"

	det := New(engine).Execute(context.Background(), mission)

	assert.Equal(t, 1, det.Depth)
	assert.Equal(t, "m-1", det.ParentMissionID)
}

func TestLogBuffer_RecordsLevels(t *testing.T) {
	logs := NewLogBuffer()
	logs.Infof("started %s", "m-1")
	logs.Warnf("slow response")
	logs.Errorf("boom")

	entries := logs.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "INFO", entries[0].Level)
	assert.Equal(t, "started m-1", entries[0].Message)
	assert.Equal(t, "WARN", entries[1].Level)
	assert.Equal(t, "ERROR", entries[2].Level)
	assert.False(t, entries[0].Time.IsZero())
}
