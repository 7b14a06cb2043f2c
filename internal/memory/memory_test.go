package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/derivinsight/sentinel/internal/models"
	"github.com/derivinsight/sentinel/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemory(t *testing.T, maxHistory int) *ScanMemory {
	t.Helper()
	fs, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return New(store.NewTiered(nil, fs), maxHistory)
}

func detection(domain, severity string, score int) models.Detection {
	return models.Detection{
		MissionID:     "m-" + domain,
		MissionName:   "Check " + domain,
		Domain:        domain,
		Severity:      severity,
		RiskScore:     score,
		OriginalQuery: "query for " + domain,
		Timestamp:     time.Now().UTC(),
	}
}

func TestRecordSummary_DomainAverages(t *testing.T) {
	m := newTestMemory(t, 50)
	ctx := context.Background()

	err := m.RecordSummary(ctx, []models.Detection{
		detection(models.DomainSecurity, models.SeverityHigh, 60),
		detection(models.DomainSecurity, models.SeverityMedium, 40),
		detection(models.DomainCompliance, models.SeverityCritical, 90),
	})
	require.NoError(t, err)

	adaptive := m.AdaptiveContext(ctx)
	assert.Equal(t, 1, adaptive.ScanCount)
	// security avg 50 -> weight round(2+50/40)=3; compliance 90 -> round(2+2.25)=4
	assert.Equal(t, 3, adaptive.DomainWeights[models.DomainSecurity])
	assert.Equal(t, 4, adaptive.DomainWeights[models.DomainCompliance])
	// domains never seen still get a weight
	assert.Equal(t, 2, adaptive.DomainWeights[models.DomainRisk])
}

func TestRecordSummary_CapsHistory(t *testing.T) {
	m := newTestMemory(t, 3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		det := detection(models.DomainSecurity, models.SeverityLow, 10)
		det.OriginalQuery = fmt.Sprintf("query %d", i)
		require.NoError(t, m.RecordSummary(ctx, []models.Detection{det}))
	}

	adaptive := m.AdaptiveContext(ctx)
	assert.Equal(t, 3, adaptive.ScanCount)
	// only the last 3 scans' queries survive the cap
	assert.ElementsMatch(t, []string{"query 2", "query 3", "query 4"}, adaptive.AvoidQueries)
}

func TestAdaptiveContext_EmptyHistory(t *testing.T) {
	m := newTestMemory(t, 50)

	adaptive := m.AdaptiveContext(context.Background())

	assert.Equal(t, 0, adaptive.ScanCount)
	assert.Empty(t, adaptive.AvoidQueries)
	assert.Empty(t, adaptive.FocusAreas)
	for _, domain := range models.Domains {
		assert.Equal(t, 2, adaptive.DomainWeights[domain])
	}
}

func TestAdaptiveContext_FocusAreasFromLastScan(t *testing.T) {
	m := newTestMemory(t, 50)
	ctx := context.Background()

	require.NoError(t, m.RecordSummary(ctx, []models.Detection{
		detection(models.DomainSecurity, models.SeverityCritical, 90),
	}))
	require.NoError(t, m.RecordSummary(ctx, []models.Detection{
		detection(models.DomainRisk, models.SeverityCritical, 85),
		detection(models.DomainOperations, models.SeverityLow, 5),
	}))

	adaptive := m.AdaptiveContext(ctx)

	// only the most recent scan contributes focus areas
	require.Len(t, adaptive.FocusAreas, 1)
	assert.Contains(t, adaptive.FocusAreas[0], models.DomainRisk)
	assert.Contains(t, adaptive.FocusAreas[0], "85")
}

func TestAdaptiveContext_AvoidQueriesCapped(t *testing.T) {
	m := newTestMemory(t, 50)
	ctx := context.Background()

	var dets []models.Detection
	for i := 0; i < 20; i++ {
		det := detection(models.DomainSecurity, models.SeverityLow, 10)
		det.OriginalQuery = fmt.Sprintf("query %d", i)
		dets = append(dets, det)
	}
	require.NoError(t, m.RecordSummary(ctx, dets))

	adaptive := m.AdaptiveContext(ctx)
	assert.Len(t, adaptive.AvoidQueries, 15)
}

func TestSaveFullScan_RoundTrip(t *testing.T) {
	m := newTestMemory(t, 50)
	ctx := context.Background()

	detections := []models.Detection{
		detection(models.DomainSecurity, models.SeverityCritical, 90),
		detection(models.DomainCompliance, models.SeverityHigh, 60),
		detection(models.DomainRisk, models.SeverityMedium, 30),
		detection(models.DomainOperations, models.SeverityLow, 10),
	}
	clusters := []models.ThreatCluster{{
		ClusterID:         "TC-001",
		ThreatName:        "Coordinated takeover",
		Severity:          models.SeverityCritical,
		ConnectedMissions: []string{"m-security", "m-compliance"},
	}}
	narrative := &models.Narrative{Title: "Brief", OverallRisk: 0}

	require.NoError(t, m.SaveFullScan(ctx, "scan-20260101T120000", detections, clusters, narrative))

	record, err := m.GetScan(ctx, "scan-20260101T120000")
	require.NoError(t, err)

	assert.Equal(t, "scan-20260101T120000", record.ScanID)
	assert.Len(t, record.Detections, 4)
	assert.Equal(t, clusters, record.Clusters)
	require.NotNil(t, record.Narrative)
	assert.Equal(t, "Brief", record.Narrative.Title)

	// repeated reads are identical
	again, err := m.GetScan(ctx, "scan-20260101T120000")
	require.NoError(t, err)
	assert.Equal(t, record, again)
	assert.Equal(t, 4, record.Stats.TotalMissions)
	assert.Equal(t, 1, record.Stats.CriticalCount)
	assert.Equal(t, 1, record.Stats.HighCount)
	// mean of top 3 scores: (90+60+30)/3 = 60
	assert.Equal(t, 60, record.Stats.OverallRisk)
	assert.Equal(t, models.SeverityCritical, record.Stats.OverallSeverity)
}

func TestSaveFullScan_NarrativeRiskOverride(t *testing.T) {
	m := newTestMemory(t, 50)
	ctx := context.Background()

	detections := []models.Detection{detection(models.DomainSecurity, models.SeverityHigh, 60)}
	narrative := &models.Narrative{Title: "Brief", OverallRisk: 77}

	require.NoError(t, m.SaveFullScan(ctx, "scan-20260101T120000", detections, nil, narrative))

	record, err := m.GetScan(ctx, "scan-20260101T120000")
	require.NoError(t, err)
	assert.Equal(t, 77, record.Stats.OverallRisk)
}

func TestSaveFullScan_PrunesBeyondCap(t *testing.T) {
	m := newTestMemory(t, 2)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		scanID := fmt.Sprintf("scan-2026010%dT120000", i)
		require.NoError(t, m.SaveFullScan(ctx, scanID, []models.Detection{
			detection(models.DomainSecurity, models.SeverityLow, 10),
		}, nil, nil))
	}

	_, err := m.GetScan(ctx, "scan-20260101T120000")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = m.GetScan(ctx, "scan-20260102T120000")
	assert.NoError(t, err)
	_, err = m.GetScan(ctx, "scan-20260103T120000")
	assert.NoError(t, err)
}

func TestListScans_NewestFirst(t *testing.T) {
	m := newTestMemory(t, 50)
	ctx := context.Background()

	require.NoError(t, m.SaveFullScan(ctx, "scan-20260101T120000", nil, nil, nil))
	require.NoError(t, m.SaveFullScan(ctx, "scan-20260102T120000", nil, nil, nil))

	index, err := m.ListScans(ctx)
	require.NoError(t, err)
	require.Len(t, index, 2)
	assert.Equal(t, "scan-20260102T120000", index[0].ScanID)
	assert.Equal(t, "scan-20260101T120000", index[1].ScanID)
}

func TestListScans_Empty(t *testing.T) {
	m := newTestMemory(t, 50)

	index, err := m.ListScans(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, index)
}

func TestListScans_RebuildsLostIndex(t *testing.T) {
	fs, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	tiered := store.NewTiered(nil, fs)
	m := New(tiered, 50)
	ctx := context.Background()

	require.NoError(t, m.SaveFullScan(ctx, "scan-20260101T120000", []models.Detection{
		detection(models.DomainSecurity, models.SeverityHigh, 60),
	}, nil, nil))

	// simulate index loss; full records survive
	require.NoError(t, tiered.Delete(ctx, store.KeyScanIndex))

	index, err := m.ListScans(ctx)
	require.NoError(t, err)
	require.Len(t, index, 1)
	assert.Equal(t, "scan-20260101T120000", index[0].ScanID)
	assert.Equal(t, 1, index[0].TotalMissions)
}

func TestGetScan_Missing(t *testing.T) {
	m := newTestMemory(t, 50)

	record, err := m.GetScan(context.Background(), "scan-missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Nil(t, record)
}
