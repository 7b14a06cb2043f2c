package scorer

import (
	"fmt"
	"math"
	"strconv"

	"github.com/derivinsight/sentinel/internal/models"
)

// Factor weights. They sum to 1.0 so the weighted total stays on the
// 0-100 scale.
var factorWeights = map[string]float64{
	"affected_entities":   0.20,
	"dollar_exposure":     0.25,
	"velocity":            0.15,
	"pep_involvement":     0.15,
	"kyc_gaps":            0.10,
	"severity_escalation": 0.15,
}

// Result is the scorer's verdict on one mission's result set.
type Result struct {
	RiskScore int
	Severity  string
	Factors   map[string]models.RiskFactor
}

// Score computes a data-driven 0-100 risk score from actual result
// rows. It is a pure function: same mission and rows, same result.
// Empty result sets score zero.
func Score(mission models.Mission, rows []models.Row) Result {
	if len(rows) == 0 {
		return Result{RiskScore: 0, Severity: models.SeverityLow, Factors: map[string]models.RiskFactor{}}
	}

	factors := map[string]models.RiskFactor{
		"affected_entities":   scoreAffectedEntities(rows),
		"dollar_exposure":     scoreDollarExposure(rows),
		"velocity":            scoreVelocity(rows),
		"pep_involvement":     scorePEP(rows),
		"kyc_gaps":            scoreKYC(rows),
		"severity_escalation": scoreEscalation(mission),
	}

	weighted := 0.0
	for name, weight := range factorWeights {
		weighted += float64(factors[name].Score) * weight
	}

	score := int(math.Round(weighted))
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	return Result{
		RiskScore: score,
		Severity:  models.SeverityFromScore(score),
		Factors:   factors,
	}
}

func scoreAffectedEntities(rows []models.Row) models.RiskFactor {
	userIDs := make(map[string]struct{})
	for _, row := range rows {
		if v, ok := row["user_id"]; ok && v != nil {
			userIDs[fmt.Sprintf("%v", v)] = struct{}{}
		}
	}

	count := len(userIDs)
	if count == 0 {
		count = len(rows)
	}

	return models.RiskFactor{
		Value:  count,
		Score:  capped(count * 10),
		Detail: fmt.Sprintf("%d unique entities", count),
	}
}

func scoreDollarExposure(rows []models.Row) models.RiskFactor {
	amountKeys := []string{"amount_usd", "total_volume", "amount", "total_amount", "total_usd"}

	total := 0.0
	for _, row := range rows {
		for _, key := range amountKeys {
			if v, ok := row[key]; ok && v != nil {
				if f, ok := asFloat(v); ok {
					total += math.Abs(f)
				}
			}
		}
	}

	return models.RiskFactor{
		Value:  total,
		Score:  capped(int(total / 1000)),
		Detail: fmt.Sprintf("$%.0f exposure", total),
	}
}

func scoreVelocity(rows []models.Row) models.RiskFactor {
	count := len(rows)
	return models.RiskFactor{
		Value:  count,
		Score:  capped(count * 5),
		Detail: fmt.Sprintf("%d events", count),
	}
}

func scorePEP(rows []models.Row) models.RiskFactor {
	pepCount := 0
	for _, row := range rows {
		if isTruthy(row["is_pep"]) {
			pepCount++
		}
	}

	return models.RiskFactor{
		Value:  pepCount,
		Score:  capped(pepCount * 30),
		Detail: fmt.Sprintf("%d PEP accounts", pepCount),
	}
}

func scoreKYC(rows []models.Row) models.RiskFactor {
	gapStatuses := map[string]bool{"EXPIRED": true, "PENDING": true, "REJECTED": true}

	gapCount := 0
	for _, row := range rows {
		if s, ok := row["kyc_status"].(string); ok && gapStatuses[s] {
			gapCount++
		}
	}

	return models.RiskFactor{
		Value:  gapCount,
		Score:  capped(gapCount * 15),
		Detail: fmt.Sprintf("%d KYC gaps", gapCount),
	}
}

func scoreEscalation(mission models.Mission) models.RiskFactor {
	base := map[string]int{
		models.SeverityCritical: 80,
		models.SeverityHigh:     50,
		models.SeverityMedium:   25,
	}

	severity := mission.Severity
	score, ok := base[severity]
	if !ok {
		severity = models.SeverityMedium
		score = 25
	}

	return models.RiskFactor{
		Value:  severity,
		Score:  score,
		Detail: fmt.Sprintf("Base: %s", severity),
	}
}

func capped(score int) int {
	if score > 100 {
		return 100
	}
	return score
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func isTruthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t == 1
	case int:
		return t == 1
	case string:
		return t == "1" || t == "TRUE" || t == "True" || t == "true"
	default:
		return false
	}
}
