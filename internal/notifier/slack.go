// Package notifier delivers high-severity alerts to Slack through a
// workflow-trigger webhook. Delivery is fire-and-forget: failures are
// logged and swallowed, invisible to scan status.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/derivinsight/sentinel/internal/models"
)

// Notifier sends scan alerts to a chat channel.
type Notifier interface {
	NotifyDetection(ctx context.Context, detection models.Detection)
	NotifyNarrative(ctx context.Context, scanID string, narrative *models.Narrative)
}

// SlackNotifier posts alerts to a Slack webhook. A zero-value webhook
// URL disables delivery entirely.
type SlackNotifier struct {
	webhookURL  string
	minSeverity string
	httpClient  *http.Client
}

// NewSlackNotifier creates a notifier gated at minSeverity
// (HIGH by default).
func NewSlackNotifier(webhookURL, minSeverity string, timeout time.Duration) *SlackNotifier {
	if minSeverity == "" {
		minSeverity = models.SeverityHigh
	}
	return &SlackNotifier{
		webhookURL:  webhookURL,
		minSeverity: minSeverity,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// NotifyDetection sends one detection alert when it meets the severity
// gate.
func (n *SlackNotifier) NotifyDetection(ctx context.Context, detection models.Detection) {
	if n.webhookURL == "" {
		return
	}
	if !models.SeverityAtLeast(detection.Severity, n.minSeverity) {
		return
	}

	insightText := detection.Insight
	if len(insightText) > 400 {
		insightText = insightText[:400]
	}
	recommendation := detection.Recommendation
	if len(recommendation) > 250 {
		recommendation = recommendation[:250]
	}

	lines := []string{
		fmt.Sprintf("*SENTINEL ALERT: %s*", detection.MissionName),
		"",
		fmt.Sprintf("*Severity:* %s  |  *Risk Score:* %d/100  |  *Domain:* %s  |  *Records:* %d",
			detection.Severity, detection.RiskScore, titleCase(detection.Domain), detection.DataCount),
	}
	if insightText != "" {
		lines = append(lines, "", "*Insight:*", insightText)
	}
	if recommendation != "" {
		lines = append(lines, "", "*Recommended Action:*", recommendation)
	}
	if detection.SQL != "" {
		lines = append(lines, "", fmt.Sprintf("```%s```", detection.SQL))
	}

	n.post(ctx, strings.Join(lines, "\n"))
}

// NotifyNarrative sends the end-of-scan executive summary.
func (n *SlackNotifier) NotifyNarrative(ctx context.Context, scanID string, narrative *models.Narrative) {
	if n.webhookURL == "" || narrative == nil {
		return
	}

	lines := []string{
		fmt.Sprintf("*SENTINEL SCAN COMPLETE: %s*", scanID),
		"",
		fmt.Sprintf("*Overall Risk:* %d/100 (%s)", narrative.OverallRisk, narrative.OverallSeverity),
		"",
		narrative.ExecutiveSummary,
	}
	for _, action := range narrative.ImmediateActions {
		lines = append(lines, fmt.Sprintf("- %s", action))
	}

	n.post(ctx, strings.Join(lines, "\n"))
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (n *SlackNotifier) post(ctx context.Context, text string) {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		log.Printf("Warning: failed to marshal Slack payload: %v", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		log.Printf("Warning: failed to build Slack request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		log.Printf("Warning: Slack notification failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Printf("Warning: Slack webhook returned status %d", resp.StatusCode)
	}
}
