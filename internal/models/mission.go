package models

// Domains used to weight mission generation.
const (
	DomainSecurity   = "security"
	DomainCompliance = "compliance"
	DomainRisk       = "risk"
	DomainOperations = "operations"
)

// Domains lists all investigation domains in stable order.
var Domains = []string{DomainSecurity, DomainCompliance, DomainRisk, DomainOperations}

// Mission is one natural-language investigation question plus its domain
// and severity hint. Missions are immutable once created and consumed
// exactly once by the executor.
type Mission struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Query    string `json:"query"`
	Domain   string `json:"domain"`
	Severity string `json:"severity"`

	// Deep-dive lineage. Depth is 0 for planner missions and
	// parent.Depth+1 for every follow-up generation.
	Depth           int    `json:"depth"`
	ParentMissionID string `json:"parent_mission_id,omitempty"`
	Rationale       string `json:"rationale,omitempty"`
}
